package session

import "golaunch/pkg/protocol"

// Effect is I/O requested by the reducer. The engine performs effects off
// the actor goroutine and feeds their outcome back as new inputs.
type Effect interface {
	effect()
}

// CreateConversation asks the store for a new conversation. Gen is the
// binder generation at request time.
type CreateConversation struct {
	Gen   uint64
	Title string
}

// PersistMessage appends a message to a stored conversation.
type PersistMessage struct {
	ConversationID string
	Role           protocol.Role
	Content        string
}

// DropConversation deletes a conversation that was created for a thread
// the user already abandoned.
type DropConversation struct {
	ID string
}

// SendPrompt issues the outbound prompt for a turn.
type SendPrompt struct {
	TurnID uint64
	Text   string
	Items  []protocol.ContextItem
}

// SendCancel asks the agent to stop the current turn.
type SendCancel struct{}

// SendPermission answers a permission request without user involvement.
type SendPermission struct {
	RequestID string
	OptionID  string
}

// FetchConfigOptions refreshes the config option set of connection ConnGen.
type FetchConfigOptions struct {
	ConnGen uint64
}

func (CreateConversation) effect() {}
func (PersistMessage) effect()     {}
func (DropConversation) effect()   {}
func (SendPrompt) effect()         {}
func (SendCancel) effect()         {}
func (SendPermission) effect()     {}
func (FetchConfigOptions) effect() {}
