package session

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golaunch/pkg/protocol"
)

// ToolStatus is the lifecycle state of a ToolCall.
type ToolStatus string

// Tool call statuses. Completed and Error are terminal.
const (
	ToolRunning           ToolStatus = "running"
	ToolPendingPermission ToolStatus = "pending_permission"
	ToolApproved          ToolStatus = "approved"
	ToolCompleted         ToolStatus = "completed"
	ToolError             ToolStatus = "error"
)

// ToolCall is an agent-initiated action shown in the thread.
type ToolCall struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Kind           string     `json:"kind,omitempty"`
	Status         ToolStatus `json:"status"`
	CommandPreview string     `json:"command_preview,omitempty"`
	// ChosenKind is the kind of the permission option that resolved this
	// call, empty when no permission was asked.
	ChosenKind string `json:"chosen_kind,omitempty"`
}

// ThreadMessage is one entry of the UI-facing thread. Tool is set only
// when Role is protocol.RoleTool.
type ThreadMessage struct {
	ID      string        `json:"id"`
	Role    protocol.Role `json:"role"`
	Content string        `json:"content"`
	Tool    *ToolCall     `json:"tool,omitempty"`
}

// Turn is the in-progress request/response cycle. Its buffers survive until
// the next prompt so the last turn can still be inspected.
type Turn struct {
	ID       uint64
	Active   bool
	Thought  string
	Message  string
	Thinking bool
	// ToolCalls share their pointers with the tool entries of the thread.
	ToolCalls []*ToolCall
	Plan      []protocol.PlanEntry
	// AssistantID is the thread message receiving text; PlaceholderID is
	// the first assistant message created by the prompt.
	AssistantID   string
	PlaceholderID string
	StopReason    string
}

// pendingMessage is a message waiting for its conversation to be created.
type pendingMessage struct {
	role    protocol.Role
	content string
}

// State is everything the engine owns. It is mutated only by the reducer
// methods in this package, which never block and never perform I/O; the
// effects they return describe the I/O to perform.
type State struct {
	Status        protocol.Status
	Config        protocol.AgentConfig
	ConfigOptions []protocol.ConfigOption

	ConversationID string
	Thread         []ThreadMessage
	Turn           Turn
	Permission     *protocol.PermissionRequest

	turnSeq uint64 // last issued turn id
	msgSeq  uint64 // thread message id counter
	connGen uint64 // bumped by connect and disconnect
	// binderGen is bumped whenever the active conversation is replaced, so
	// a conversation created for an abandoned thread is recognised.
	binderGen uint64
	loadSeq   uint64

	creating bool
	pending  []pendingMessage
}

// NewState returns a disconnected, empty state.
func NewState() *State {
	return &State{Status: protocol.StatusDisconnected}
}

func (s *State) nextMessageID() string {
	s.msgSeq++
	return "m" + strconv.FormatUint(s.msgSeq, 10)
}

func (s *State) appendMessage(role protocol.Role, content string) string {
	id := s.nextMessageID()
	s.Thread = append(s.Thread, ThreadMessage{ID: id, Role: role, Content: content})
	return id
}

func (s *State) message(id string) *ThreadMessage {
	for i := range s.Thread {
		if s.Thread[i].ID == id {
			return &s.Thread[i]
		}
	}
	return nil
}

func (s *State) toolCall(id string) *ToolCall {
	for _, tc := range s.Turn.ToolCalls {
		if tc.ID == id {
			return tc
		}
	}
	return nil
}

// endTurn makes the turn inactive. Buffers are kept for inspection.
func (s *State) endTurn() {
	s.Turn.Active = false
	s.Turn.Thinking = false
	s.Turn.AssistantID = ""
	s.Permission = nil
}

// clearConversation drops the thread and all transient state. Used by new,
// load, delete-of-active and disconnect. An active turn is cancelled at the
// agent too, since nothing could stop it once it is forgotten here.
func (s *State) clearConversation() []Effect {
	var effects []Effect
	if s.Turn.Active {
		effects = []Effect{SendCancel{}}
	}
	s.binderGen++
	s.Thread = nil
	s.Turn = Turn{}
	s.Permission = nil
	s.ConversationID = ""
	s.creating = false
	s.pending = nil
	return effects
}

// conversationTitle derives a title from the first prompt of a conversation.
func conversationTitle(prompt string) string {
	t := strings.TrimSpace(prompt)
	if utf8.RuneCountInString(t) <= protocol.TitleMaxRunes {
		return t
	}
	return string([]rune(t)[:protocol.TitleMaxRunes]) + "..."
}

// Snapshot is a deep copy of State safe to hand to other goroutines.
type Snapshot struct {
	Status         protocol.Status             `json:"status"`
	Config         protocol.AgentConfig        `json:"config"`
	ConfigOptions  []protocol.ConfigOption     `json:"config_options,omitempty"`
	ConversationID string                      `json:"conversation_id,omitempty"`
	Thread         []ThreadMessage             `json:"thread"`
	Turn           TurnView                    `json:"turn"`
	Permission     *protocol.PermissionRequest `json:"permission,omitempty"`
}

// TurnView is the copied form of Turn.
type TurnView struct {
	ID         uint64               `json:"id"`
	Active     bool                 `json:"active"`
	Thinking   bool                 `json:"thinking"`
	Thought    string               `json:"thought,omitempty"`
	Message    string               `json:"message,omitempty"`
	ToolCalls  []ToolCall           `json:"tool_calls,omitempty"`
	Plan       []protocol.PlanEntry `json:"plan,omitempty"`
	StopReason string               `json:"stop_reason,omitempty"`
}

// Snapshot copies the state.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Status:         s.Status,
		Config:         s.Config,
		ConfigOptions:  protocol.CloneConfigOptions(s.ConfigOptions),
		ConversationID: s.ConversationID,
		Turn: TurnView{
			ID:         s.Turn.ID,
			Active:     s.Turn.Active,
			Thinking:   s.Turn.Thinking,
			Thought:    s.Turn.Thought,
			Message:    s.Turn.Message,
			Plan:       append([]protocol.PlanEntry(nil), s.Turn.Plan...),
			StopReason: s.Turn.StopReason,
		},
	}
	if len(s.Thread) > 0 {
		snap.Thread = make([]ThreadMessage, len(s.Thread))
		for i, m := range s.Thread {
			if m.Tool != nil {
				tc := *m.Tool
				m.Tool = &tc
			}
			snap.Thread[i] = m
		}
	}
	for _, tc := range s.Turn.ToolCalls {
		snap.Turn.ToolCalls = append(snap.Turn.ToolCalls, *tc)
	}
	if s.Permission != nil {
		p := *s.Permission
		p.Options = append([]protocol.PermissionOption(nil), p.Options...)
		snap.Permission = &p
	}
	return snap
}

// ToolCall returns the tool call with the given id from the snapshot's turn.
func (s Snapshot) ToolCall(id string) (ToolCall, bool) {
	for _, tc := range s.Turn.ToolCalls {
		if tc.ID == id {
			return tc, true
		}
	}
	return ToolCall{}, false
}
