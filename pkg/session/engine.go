// Package session implements the agent session engine: the connection
// lifecycle, the turn state machine that folds streamed agent output into
// a thread, and the binder that keeps that thread in step with stored
// conversations.
//
// All state lives in a State value owned by a single goroutine
// (Engine.Run). User operations and inbound transport events are posted to
// it and handled one at a time. Handlers are reducers: they mutate State
// and return Effects, which the engine performs on other goroutines before
// posting the outcome back. The engine therefore never blocks on the agent
// or the store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golaunch/pkg/protocol"
)

// inboxSize bounds queued operations and effect outcomes.
const inboxSize = 64

// Options configures an Engine. All fields are optional.
type Options struct {
	Logger   *slog.Logger
	Composer Composer
	Policy   PermissionPolicy
	// OnChange is called on the engine goroutine after every state change.
	// It must not block or call back into the engine other than Snapshot.
	OnChange func(Snapshot)
}

// Engine drives one agent connection and its conversation.
type Engine struct {
	transport Transport
	store     Store
	opts      Options
	log       *slog.Logger

	inbox   chan func()
	done    chan struct{}
	started atomic.Bool

	// Owned by the Run goroutine.
	state  *State
	ctx    context.Context
	writes *jobQueue
	sends  *jobQueue
	wg     sync.WaitGroup

	mu   sync.RWMutex
	snap Snapshot
}

// New creates an engine. Call Run before using it.
func New(t Transport, st Store, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	state := NewState()
	return &Engine{
		transport: t,
		store:     st,
		opts:      opts,
		log:       log,
		inbox:     make(chan func(), inboxSize),
		done:      make(chan struct{}),
		state:     state,
		writes:    newJobQueue(),
		sends:     newJobQueue(),
		snap:      state.Snapshot(),
	}
}

// Run processes operations and transport events until ctx is cancelled.
// Pending store writes are flushed before it returns.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return errors.New("session engine already running")
	}
	e.ctx = ctx

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.writes.run()
	}()
	go func() {
		defer e.wg.Done()
		e.sends.run()
	}()
	defer func() {
		close(e.done)
		e.writes.close()
		e.sends.close()
		e.wg.Wait()
	}()

	updates := e.transport.Updates()
	perms := e.transport.Permissions()
	pushes := e.transport.ConfigPushes()

	for {
		select {
		case <-ctx.Done():
			return nil

		case fn := <-e.inbox:
			fn()

		case u, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			e.log.Debug("agent update", "type", u.Type, "turn_id", u.TurnID, "id", u.ID)
			e.step(e.state.Apply(u))

		case req, ok := <-perms:
			if !ok {
				perms = nil
				continue
			}
			e.log.Debug("permission request", "request_id", req.RequestID, "tool", req.ToolName)
			e.step(e.state.RequestPermission(req, e.opts.Policy))

		case opts, ok := <-pushes:
			if !ok {
				pushes = nil
				continue
			}
			if e.state.ReplaceConfigOptions(0, opts) {
				e.publish()
			}
		}
	}
}

// Snapshot returns the state as of the last change. The returned value is
// shared with other readers and must not be modified.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// Status returns the connection status.
func (e *Engine) Status() protocol.Status {
	return e.Snapshot().Status
}

func (e *Engine) publish() {
	snap := e.state.Snapshot()
	e.mu.Lock()
	e.snap = snap
	e.mu.Unlock()
	if e.opts.OnChange != nil {
		e.opts.OnChange(snap)
	}
}

// step performs effects and publishes the new state.
func (e *Engine) step(effects []Effect) {
	e.perform(effects)
	e.publish()
}

// post hands fn to the engine goroutine.
func (e *Engine) post(ctx context.Context, fn func()) error {
	select {
	case e.inbox <- fn:
		return nil
	case <-e.done:
		return protocol.ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn on the engine goroutine and waits for it, or a goroutine
// it started, to reply.
func (e *Engine) call(ctx context.Context, fn func(reply func(error))) error {
	ch := make(chan error, 1)
	reply := func(err error) { ch <- err }
	if err := e.post(ctx, func() { fn(reply) }); err != nil {
		return err
	}
	select {
	case err := <-ch:
		return err
	case <-e.done:
		return protocol.ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// spawn runs work off the engine goroutine. The returned continuation, if
// any, runs back on the engine goroutine.
func (e *Engine) spawn(work func(ctx context.Context) func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(work(e.ctx))
	}()
}

// write queues a store job. Store jobs outlive cancellation of Run's
// context so accepted messages are not lost on shutdown.
func (e *Engine) write(work func(ctx context.Context) func()) {
	ctx := context.WithoutCancel(e.ctx)
	e.writes.push(func() { e.deliver(work(ctx)) })
}

// send queues an outbound agent call behind earlier ones.
func (e *Engine) send(work func(ctx context.Context) func()) {
	e.sends.push(func() { e.deliver(work(e.ctx)) })
}

func (e *Engine) deliver(then func()) {
	if then == nil {
		return
	}
	select {
	case e.inbox <- then:
	case <-e.done:
	}
}

func (e *Engine) perform(effects []Effect) {
	for _, ef := range effects {
		switch ef := ef.(type) {
		case CreateConversation:
			e.createConversation(ef)
		case PersistMessage:
			e.write(func(ctx context.Context) func() {
				if _, err := e.store.AddMessage(ctx, ef.ConversationID, ef.Role, ef.Content); err != nil {
					e.log.Warn("persist message failed", "conversation_id", ef.ConversationID, "role", ef.Role, "err", err)
				}
				return nil
			})
		case DropConversation:
			e.write(func(ctx context.Context) func() {
				if err := e.store.DeleteConversation(ctx, ef.ID); err != nil {
					e.log.Warn("drop abandoned conversation failed", "conversation_id", ef.ID, "err", err)
				}
				return nil
			})
		case SendPrompt:
			e.sendPrompt(ef)
		case SendCancel:
			e.send(func(ctx context.Context) func() {
				if err := e.transport.Cancel(ctx); err != nil {
					e.log.Debug("cancel failed", "err", err)
				}
				return nil
			})
		case SendPermission:
			e.log.Info("permission auto-allowed", "request_id", ef.RequestID, "option_id", ef.OptionID)
			e.send(func(ctx context.Context) func() {
				if err := e.transport.ResolvePermission(ctx, ef.RequestID, ef.OptionID); err != nil {
					e.log.Warn("auto-allow failed", "request_id", ef.RequestID, "err", err)
				}
				return nil
			})
		case FetchConfigOptions:
			e.spawn(func(ctx context.Context) func() {
				opts, err := e.transport.ConfigOptions(ctx)
				if err != nil {
					e.log.Warn("fetch config options failed", "err", err)
					return nil
				}
				return func() {
					if e.state.ReplaceConfigOptions(ef.ConnGen, opts) {
						e.publish()
					}
				}
			})
		}
	}
}

func (e *Engine) createConversation(ef CreateConversation) {
	e.write(func(ctx context.Context) func() {
		conv, err := e.store.CreateConversation(ctx, ef.Title)
		if err != nil {
			e.log.Warn("create conversation failed", "title", ef.Title, "err", err)
			return func() {
				if e.state.ConversationCreateFailed(ef.Gen) {
					e.log.Warn("dropped messages of unsaved conversation", "title", ef.Title)
				}
				e.publish()
			}
		}
		e.log.Debug("conversation created", "conversation_id", conv.ID, "title", conv.Title)
		return func() { e.step(e.state.ConversationCreated(ef.Gen, conv)) }
	})
}

func (e *Engine) sendPrompt(ef SendPrompt) {
	e.send(func(ctx context.Context) func() {
		text := ef.Text
		if e.opts.Composer != nil {
			composed, err := e.opts.Composer.Compose(ctx, ef.Text, ef.Items)
			if err != nil {
				e.log.Warn("compose prompt failed, sending raw text", "turn_id", ef.TurnID, "err", err)
			} else {
				text = composed
			}
		}
		if err := e.transport.Prompt(ctx, ef.TurnID, text, ef.Items); err != nil {
			e.log.Error("prompt failed", "turn_id", ef.TurnID, "err", err)
			return func() {
				e.state.PromptFailed(ef.TurnID)
				e.publish()
			}
		}
		return nil
	})
}

// Prompt starts a turn with text and the launcher items attached to it. It
// returns the turn id, or 0 when the prompt was ignored because text is
// blank or a turn is already active.
func (e *Engine) Prompt(ctx context.Context, text string, items []protocol.ContextItem) (uint64, error) {
	var turnID uint64
	err := e.call(ctx, func(reply func(error)) {
		var effects []Effect
		turnID, effects = e.state.Prompt(text, items)
		if turnID != 0 {
			e.log.Info("turn started", "turn_id", turnID, "conversation_id", e.state.ConversationID)
			e.step(effects)
		}
		reply(nil)
	})
	return turnID, err
}

// Cancel stops the active turn without waiting for the agent. The agent
// is told to stop even when no turn is active here.
func (e *Engine) Cancel(ctx context.Context) error {
	return e.call(ctx, func(reply func(error)) {
		if e.state.Turn.Active {
			e.log.Info("turn cancelled", "turn_id", e.state.Turn.ID)
		}
		e.step(e.state.Cancel())
		reply(nil)
	})
}

// ResolvePermission answers the outstanding permission request.
func (e *Engine) ResolvePermission(ctx context.Context, requestID, optionID string) error {
	return e.call(ctx, func(reply func(error)) {
		opt, err := e.state.checkResolve(requestID, optionID)
		if err != nil {
			reply(err)
			return
		}
		e.send(func(ctx context.Context) func() {
			err := e.transport.ResolvePermission(ctx, requestID, optionID)
			return func() {
				if err != nil {
					e.log.Warn("resolve permission failed", "request_id", requestID, "err", err)
					reply(fmt.Errorf("resolve permission %s: %w", requestID, err))
					return
				}
				e.state.PermissionResolved(requestID, opt.Kind)
				e.publish()
				reply(nil)
			}
		})
	})
}
