package protocol

// UpdateType tags an inbound Update.
type UpdateType string

// Inbound update types, in the order the agent typically emits them.
const (
	UpdateMessageChunk   UpdateType = "message_chunk"
	UpdateThoughtChunk   UpdateType = "thought_chunk"
	UpdateToolCall       UpdateType = "tool_call"
	UpdateToolCallUpdate UpdateType = "tool_call_update"
	UpdatePlan           UpdateType = "plan"
	UpdateTurnComplete   UpdateType = "turn_complete"
	UpdateStatusChange   UpdateType = "status_change"
)

// Update is one event on the transport's inbound stream. Which fields are
// meaningful depends on Type:
//
//	message_chunk, thought_chunk  Text
//	tool_call                     ID, Title, Kind
//	tool_call_update              ID, Title (empty = unchanged), Status (tool token)
//	plan                          Entries
//	turn_complete                 StopReason
//	status_change                 Status (connection status)
//
// TurnID is stamped by the transport with the id passed to Prompt. Zero
// means unstamped and applies to whatever turn is active.
type Update struct {
	Type       UpdateType  `json:"type" yaml:"type"`
	TurnID     uint64      `json:"turn_id,omitempty" yaml:"turn_id,omitempty"`
	Text       string      `json:"text,omitempty" yaml:"text,omitempty"`
	ID         string      `json:"id,omitempty" yaml:"id,omitempty"`
	Title      string      `json:"title,omitempty" yaml:"title,omitempty"`
	Kind       string      `json:"kind,omitempty" yaml:"kind,omitempty"`
	Status     string      `json:"status,omitempty" yaml:"status,omitempty"`
	Entries    []PlanEntry `json:"entries,omitempty" yaml:"entries,omitempty"`
	StopReason string      `json:"stop_reason,omitempty" yaml:"stop_reason,omitempty"`
}

// PlanEntry is one step of an agent plan.
type PlanEntry struct {
	Content  string `json:"content" yaml:"content"`
	Priority string `json:"priority" yaml:"priority"`
	Status   string `json:"status" yaml:"status"`
}

// TurnScoped reports whether the update belongs to a single turn. Status
// changes are connection-wide.
func (u Update) TurnScoped() bool {
	return u.Type != UpdateStatusChange
}

// ConnectionStatus returns the carried status of a status_change update.
func (u Update) ConnectionStatus() Status {
	return Status(u.Status)
}

// MessageChunk builds a message_chunk update.
func MessageChunk(text string) Update {
	return Update{Type: UpdateMessageChunk, Text: text}
}

// ThoughtChunk builds a thought_chunk update.
func ThoughtChunk(text string) Update {
	return Update{Type: UpdateThoughtChunk, Text: text}
}

// ToolCallStarted builds a tool_call update.
func ToolCallStarted(id, title, kind string) Update {
	return Update{Type: UpdateToolCall, ID: id, Title: title, Kind: kind}
}

// ToolCallChanged builds a tool_call_update update.
func ToolCallChanged(id, title, status string) Update {
	return Update{Type: UpdateToolCallUpdate, ID: id, Title: title, Status: status}
}

// TurnComplete builds a turn_complete update.
func TurnComplete(stopReason string) Update {
	return Update{Type: UpdateTurnComplete, StopReason: stopReason}
}

// StatusChange builds a status_change update.
func StatusChange(s Status) Update {
	return Update{Type: UpdateStatusChange, Status: string(s)}
}
