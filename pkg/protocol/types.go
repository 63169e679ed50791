// Package protocol holds the types shared between the session engine, the
// agent transport and the conversation store: connection status, agent
// configuration, inbound updates, permission requests, config options and
// persisted conversations.
package protocol

import "strings"

// Status is the connection state of the agent session.
type Status string

// Connection status constants.
const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error" // terminal until the next connect
)

// Live reports whether the status holds, or is establishing, a connection.
func (s Status) Live() bool {
	return s == StatusConnecting || s == StatusConnected
}

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusDisconnected, StatusConnecting, StatusConnected, StatusError:
		return true
	default:
		return false
	}
}

// AgentConfig describes how to reach an agent. The transport owns spawning;
// the engine only stores and forwards it.
type AgentConfig struct {
	Source       string `json:"source" yaml:"source" toml:"source"`                      // registry | custom
	AgentID      string `json:"agent_id" yaml:"agent_id" toml:"agent_id"`                // registry id, keys per-agent env
	BinaryPath   string `json:"binary_path" yaml:"binary_path" toml:"binary_path"`       // empty disables auto-reconnect
	Args         string `json:"args" yaml:"args" toml:"args"`                            // whitespace separated
	Env          string `json:"env" yaml:"env" toml:"env"`                               // KEY=VALUE,KEY2=VALUE2
	AutoFallback bool   `json:"auto_fallback" yaml:"auto_fallback" toml:"auto_fallback"` // fall back to a registry agent
}

// ArgList splits Args on whitespace.
func (c AgentConfig) ArgList() []string {
	return strings.Fields(c.Args)
}

// ContextItem is a launcher item forwarded alongside a prompt. The engine
// never inspects it.
type ContextItem struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Subtitle    string `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	ActionType  string `json:"action_type" yaml:"action_type"` // command | url | script
	ActionValue string `json:"action_value" yaml:"action_value"`
	Category    string `json:"category" yaml:"category"`
}

// PermissionOption is one choice offered by a permission request.
type PermissionOption struct {
	OptionID string `json:"option_id" yaml:"option_id"`
	Name     string `json:"name" yaml:"name"`
	Kind     string `json:"kind" yaml:"kind"` // AllowOnce | AllowAlways | RejectOnce | RejectAlways
}

// PermissionRequest asks the user to gate a pending tool call. RequestID is
// the id of the tool call it gates.
type PermissionRequest struct {
	RequestID      string             `json:"request_id" yaml:"request_id"`
	SessionID      string             `json:"session_id" yaml:"session_id"`
	TurnID         uint64             `json:"turn_id,omitempty" yaml:"turn_id,omitempty"`
	ToolName       string             `json:"tool_name" yaml:"tool_name"`
	Description    string             `json:"tool_description,omitempty" yaml:"tool_description,omitempty"`
	CommandPreview string             `json:"command_preview,omitempty" yaml:"command_preview,omitempty"`
	Options        []PermissionOption `json:"options" yaml:"options"`
}

// Option returns the option with the given id.
func (r PermissionRequest) Option(optionID string) (PermissionOption, bool) {
	for _, o := range r.Options {
		if o.OptionID == optionID {
			return o, true
		}
	}
	return PermissionOption{}, false
}

// Role is the author of a conversation or thread message.
type Role string

// Role constants. Only user and assistant messages are ever persisted.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Persistable reports whether messages with this role may be stored.
func (r Role) Persistable() bool {
	return r == RoleUser || r == RoleAssistant
}

// MemoryType classifies a stored memory.
type MemoryType string

// MemoryType constants. Preferences and patterns are put in every prompt;
// facts only when the query mentions them.
const (
	MemoryPreference MemoryType = "preference"
	MemoryPattern    MemoryType = "pattern"
	MemoryFact       MemoryType = "fact"
)

// Valid reports whether t is one of the known memory types.
func (t MemoryType) Valid() bool {
	switch t {
	case MemoryPreference, MemoryPattern, MemoryFact:
		return true
	}
	return false
}
