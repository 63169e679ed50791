package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golaunch/pkg/protocol"
)

// ErrExhausted is returned by Prompt once every scripted turn was played.
var ErrExhausted = errors.New("script exhausted")

// Transport plays a Script. It implements session.Transport.
type Transport struct {
	script *Script
	log    *slog.Logger

	updates   chan protocol.Update
	perms     chan protocol.PermissionRequest
	pushes    chan []protocol.ConfigOption
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu      sync.Mutex
	status  protocol.Status
	options []protocol.ConfigOption
	next    int
	stop    context.CancelFunc // cancels the turn being played
	pending map[string]chan string
	prompts []string
}

// New returns a transport for s. log may be nil.
func New(s *Script, log *slog.Logger) *Transport {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	status := s.Status
	if status == "" {
		status = protocol.StatusDisconnected
	}
	t := &Transport{
		script:  s,
		log:     log,
		updates: make(chan protocol.Update),
		perms:   make(chan protocol.PermissionRequest),
		pushes:  make(chan []protocol.ConfigOption),
		done:    make(chan struct{}),
		status:  status,
		pending: make(map[string]chan string),
	}
	if status == protocol.StatusConnected {
		t.options = protocol.CloneConfigOptions(s.ConfigOptions)
	}
	return t
}

// Close stops playback. Pending sends are abandoned.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		t.mu.Lock()
		t.stopTurnLocked()
		t.mu.Unlock()
	})
	t.wg.Wait()
	return nil
}

// Connect marks the transport connected, or fails as the script says.
func (t *Transport) Connect(_ context.Context, cfg protocol.AgentConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.script.ConnectError != "" {
		t.status = protocol.StatusError
		return errors.New(t.script.ConnectError)
	}
	t.log.Debug("script connect", "agent_id", cfg.AgentID)
	t.status = protocol.StatusConnected
	t.options = protocol.CloneConfigOptions(t.script.ConfigOptions)
	return nil
}

// Disconnect abandons the turn being played.
func (t *Transport) Disconnect(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTurnLocked()
	t.status = protocol.StatusDisconnected
	t.options = nil
	return nil
}

// Status reports the connection status.
func (t *Transport) Status(context.Context) (protocol.Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status, nil
}

// Prompt starts playing the next scripted turn, stamping its events with
// turnID. It returns once playback has started.
func (t *Transport) Prompt(_ context.Context, turnID uint64, text string, _ []protocol.ContextItem) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != protocol.StatusConnected {
		return protocol.ErrNotConnected
	}
	t.prompts = append(t.prompts, text)
	if t.next >= len(t.script.Turns) {
		return ErrExhausted
	}
	turn := t.script.Turns[t.next]
	t.next++
	if turn.Fail != "" {
		return errors.New(turn.Fail)
	}

	t.stopTurnLocked()
	ctx, cancel := context.WithCancel(context.Background())
	t.stop = cancel
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.play(ctx, turnID, turn.Steps)
	}()
	return nil
}

// Cancel stops the turn being played. Playback ends with a cancelled
// turn_complete, as an agent would send.
func (t *Transport) Cancel(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTurnLocked()
	return nil
}

func (t *Transport) stopTurnLocked() {
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
	clear(t.pending)
}

// ResolvePermission answers a permission step waiting in playback.
func (t *Transport) ResolvePermission(_ context.Context, requestID, optionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.pending[requestID]
	if !ok {
		return fmt.Errorf("resolve %s: %w", requestID, protocol.ErrNoPermission)
	}
	delete(t.pending, requestID)
	ch <- optionID
	return nil
}

// ConfigOptions returns the current option set.
func (t *Transport) ConfigOptions(context.Context) ([]protocol.ConfigOption, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != protocol.StatusConnected {
		return nil, protocol.ErrNotConnected
	}
	return protocol.CloneConfigOptions(t.options), nil
}

// SetConfigOption returns the scripted response for (id, value) when there
// is one. Otherwise it updates the current value of id in place.
func (t *Transport) SetConfigOption(_ context.Context, id, value string) ([]protocol.ConfigOption, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != protocol.StatusConnected {
		return nil, protocol.ErrNotConnected
	}
	for _, r := range t.script.SetConfig {
		if r.ID != id || r.Value != value {
			continue
		}
		if r.Error != "" {
			return nil, errors.New(r.Error)
		}
		t.options = protocol.CloneConfigOptions(r.Options)
		return protocol.CloneConfigOptions(t.options), nil
	}
	for i := range t.options {
		o := &t.options[i]
		if o.ID != id {
			continue
		}
		if len(o.SelectOptions.Values()) > 0 && !o.SelectOptions.Allows(value) {
			return nil, fmt.Errorf("config option %s: value %q not allowed", id, value)
		}
		o.CurrentValue = value
		return protocol.CloneConfigOptions(t.options), nil
	}
	return nil, fmt.Errorf("config option %s: unknown", id)
}

// Updates returns the ordered stream of turn events played back.
func (t *Transport) Updates() <-chan protocol.Update { return t.updates }

// Permissions returns permission steps awaiting an answer.
func (t *Transport) Permissions() <-chan protocol.PermissionRequest { return t.perms }

// ConfigPushes returns config option lists pushed by config steps.
func (t *Transport) ConfigPushes() <-chan []protocol.ConfigOption { return t.pushes }

// Prompts returns the prompt texts received so far.
func (t *Transport) Prompts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.prompts...)
}

// play emits steps in order. A turn that does not end itself gets an
// end_turn completion.
func (t *Transport) play(ctx context.Context, turnID uint64, steps []Step) {
	completed := false
	for _, st := range steps {
		if ctx.Err() != nil {
			break
		}
		switch {
		case st.Delay > 0:
			select {
			case <-time.After(st.Delay):
			case <-ctx.Done():
			}

		case st.Permission != nil:
			choice, ok := t.askPermission(ctx, turnID, *st.Permission)
			if ok {
				t.log.Debug("script permission resolved", "request_id", st.Permission.RequestID, "option_id", choice)
			}

		case st.ConfigOptions != nil:
			t.mu.Lock()
			t.options = protocol.CloneConfigOptions(st.ConfigOptions)
			t.mu.Unlock()
			send(ctx, t.done, t.pushes, protocol.CloneConfigOptions(st.ConfigOptions))

		default:
			u := st.Update
			if u.TurnScoped() {
				u.TurnID = turnID
			}
			if send(ctx, t.done, t.updates, u) && u.Type == protocol.UpdateTurnComplete {
				completed = true
			}
		}
		if completed {
			return
		}
	}

	final := protocol.TurnComplete("end_turn")
	if ctx.Err() != nil {
		final.StopReason = "cancelled"
	}
	final.TurnID = turnID
	// The cancelled completion is a straggler; deliver it without ctx.
	send(context.Background(), t.done, t.updates, final)
}

// askPermission publishes req and waits for an answer or cancellation.
func (t *Transport) askPermission(ctx context.Context, turnID uint64, req protocol.PermissionRequest) (string, bool) {
	ch := make(chan string, 1)
	t.mu.Lock()
	if ctx.Err() != nil {
		t.mu.Unlock()
		return "", false
	}
	t.pending[req.RequestID] = ch
	t.mu.Unlock()

	req.TurnID = turnID
	req.Options = append([]protocol.PermissionOption(nil), req.Options...)
	if !send(ctx, t.done, t.perms, req) {
		return "", false
	}
	select {
	case choice := <-ch:
		return choice, true
	case <-ctx.Done():
		return "", false
	case <-t.done:
		return "", false
	}
}

func send[T any](ctx context.Context, done <-chan struct{}, ch chan<- T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-ctx.Done():
		return false
	case <-done:
		return false
	}
}
