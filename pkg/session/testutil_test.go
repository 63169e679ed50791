package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"golaunch/pkg/protocol"
)

// waitFor polls condition every 5ms until it returns true or timeout elapses.
func waitFor(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("waitFor: condition not met within %v", timeout)
}

type promptCall struct {
	turnID uint64
	text   string
	items  []protocol.ContextItem
}

type resolveCall struct {
	requestID string
	optionID  string
}

// fakeTransport records outbound calls and lets tests inject inbound events.
// Its event channels are unbuffered: a completed send means the engine has
// received the event.
type fakeTransport struct {
	mu         sync.Mutex
	status     protocol.Status
	statusErr  error
	connectErr error
	promptErr  error
	resolveErr error
	setErr     error
	options    []protocol.ConfigOption
	setResult  []protocol.ConfigOption

	connects    []protocol.AgentConfig
	disconnects int
	prompts     []promptCall
	cancels     int
	resolved    []resolveCall
	sets        [][2]string

	updates chan protocol.Update
	perms   chan protocol.PermissionRequest
	pushes  chan []protocol.ConfigOption
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		status:  protocol.StatusDisconnected,
		updates: make(chan protocol.Update),
		perms:   make(chan protocol.PermissionRequest),
		pushes:  make(chan []protocol.ConfigOption),
	}
}

func (f *fakeTransport) Connect(_ context.Context, cfg protocol.AgentConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, cfg)
	if f.connectErr != nil {
		f.status = protocol.StatusError
		return f.connectErr
	}
	f.status = protocol.StatusConnected
	return nil
}

func (f *fakeTransport) Disconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.status = protocol.StatusDisconnected
	return nil
}

func (f *fakeTransport) Status(context.Context) (protocol.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statusErr
}

func (f *fakeTransport) Prompt(_ context.Context, turnID uint64, text string, items []protocol.ContextItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, promptCall{turnID: turnID, text: text, items: items})
	return f.promptErr
}

func (f *fakeTransport) Cancel(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return nil
}

func (f *fakeTransport) ResolvePermission(_ context.Context, requestID, optionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveErr != nil {
		return f.resolveErr
	}
	f.resolved = append(f.resolved, resolveCall{requestID: requestID, optionID: optionID})
	return nil
}

func (f *fakeTransport) ConfigOptions(context.Context) ([]protocol.ConfigOption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return protocol.CloneConfigOptions(f.options), nil
}

func (f *fakeTransport) SetConfigOption(_ context.Context, id, value string) ([]protocol.ConfigOption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets = append(f.sets, [2]string{id, value})
	if f.setErr != nil {
		return nil, f.setErr
	}
	return protocol.CloneConfigOptions(f.setResult), nil
}

func (f *fakeTransport) Updates() <-chan protocol.Update                { return f.updates }
func (f *fakeTransport) Permissions() <-chan protocol.PermissionRequest { return f.perms }
func (f *fakeTransport) ConfigPushes() <-chan []protocol.ConfigOption   { return f.pushes }

func (f *fakeTransport) promptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeTransport) lastPrompt() promptCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[len(f.prompts)-1]
}

func (f *fakeTransport) connectCalls() []protocol.AgentConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.AgentConfig(nil), f.connects...)
}

func (f *fakeTransport) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

func (f *fakeTransport) resolvedCalls() []resolveCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]resolveCall(nil), f.resolved...)
}

type storedMessage struct {
	conversationID string
	role           protocol.Role
	content        string
}

// fakeStore is an in-memory conversation store. When createGate is set,
// CreateConversation blocks until the gate is closed.
type fakeStore struct {
	mu            sync.Mutex
	seq           int
	conversations map[string]protocol.Conversation
	messages      []storedMessage
	deleted       []string
	createErr     error
	addErr        error
	createGate    chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{conversations: map[string]protocol.Conversation{}}
}

func (s *fakeStore) CreateConversation(_ context.Context, title string) (protocol.Conversation, error) {
	if s.createGate != nil {
		<-s.createGate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return protocol.Conversation{}, s.createErr
	}
	s.seq++
	c := protocol.Conversation{ID: fmt.Sprintf("conv-%d", s.seq), Title: title}
	s.conversations[c.ID] = c
	return c, nil
}

func (s *fakeStore) AddMessage(_ context.Context, conversationID string, role protocol.Role, content string) (protocol.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return protocol.ConversationMessage{}, s.addErr
	}
	if _, ok := s.conversations[conversationID]; !ok {
		return protocol.ConversationMessage{}, &protocol.ConversationNotFoundError{ID: conversationID}
	}
	s.messages = append(s.messages, storedMessage{conversationID: conversationID, role: role, content: content})
	return protocol.ConversationMessage{ConversationID: conversationID, Role: role, Content: content}, nil
}

func (s *fakeStore) Messages(_ context.Context, conversationID string) ([]protocol.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []protocol.ConversationMessage
	for i, m := range s.messages {
		if m.conversationID == conversationID {
			out = append(out, protocol.ConversationMessage{
				ID: fmt.Sprintf("sm-%d", i), ConversationID: m.conversationID, Role: m.role, Content: m.content,
			})
		}
	}
	return out, nil
}

func (s *fakeStore) ListConversations(context.Context, int) ([]protocol.ConversationPreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.ConversationPreview, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, protocol.ConversationPreview{ID: c.ID, Title: c.Title})
	}
	return out, nil
}

func (s *fakeStore) SearchConversations(context.Context, string) ([]protocol.ConversationPreview, error) {
	return nil, errors.New("search unavailable")
}

func (s *fakeStore) DeleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
	s.deleted = append(s.deleted, id)
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.conversationID != id {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	return nil
}

func (s *fakeStore) stored() []storedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storedMessage(nil), s.messages...)
}

func (s *fakeStore) countRole(role protocol.Role) int {
	n := 0
	for _, m := range s.stored() {
		if m.role == role {
			n++
		}
	}
	return n
}

func (s *fakeStore) title(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversations[id].Title
}

func (s *fakeStore) deletedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// seed adds a stored conversation with messages, bypassing the engine.
func (s *fakeStore) seed(id, title string, msgs ...storedMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[id] = protocol.Conversation{ID: id, Title: title}
	for _, m := range msgs {
		m.conversationID = id
		s.messages = append(s.messages, m)
	}
}

// startEngine runs an engine until the test ends.
func startEngine(t *testing.T, tr Transport, st Store, opts Options) *Engine {
	t.Helper()
	e := New(tr, st, opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("engine did not stop")
		}
	})
	return e
}

// connected starts an engine whose transport is already connected.
func connected(t *testing.T, tr *fakeTransport, st *fakeStore, opts Options) *Engine {
	t.Helper()
	e := startEngine(t, tr, st, opts)
	if err := e.Connect(context.Background(), protocol.AgentConfig{AgentID: "test", BinaryPath: "/bin/agent"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return e
}

// promptTurn issues a prompt and fails the test if it was not accepted.
func promptTurn(t *testing.T, e *Engine, text string) uint64 {
	t.Helper()
	id, err := e.Prompt(context.Background(), text, nil)
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if id == 0 {
		t.Fatalf("prompt %q was not accepted", text)
	}
	return id
}

// syncEngine round-trips through the engine goroutine so every event the
// engine received before it has been reduced.
func syncEngine(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.call(context.Background(), func(reply func(error)) { reply(nil) }); err != nil {
		t.Fatalf("sync: %v", err)
	}
}

const waitTimeout = 2 * time.Second

func sendUpdate(t *testing.T, tr *fakeTransport, u protocol.Update) {
	t.Helper()
	select {
	case tr.updates <- u:
	case <-time.After(waitTimeout):
		t.Fatalf("engine did not receive %s", u.Type)
	}
}

func sendPermission(t *testing.T, tr *fakeTransport, req protocol.PermissionRequest) {
	t.Helper()
	select {
	case tr.perms <- req:
	case <-time.After(waitTimeout):
		t.Fatalf("engine did not receive permission %s", req.RequestID)
	}
}
