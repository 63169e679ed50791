package session

import (
	"context"

	"golaunch/pkg/protocol"
)

// Transport is the agent connection. It owns the subprocess and the wire
// protocol; the engine only calls it and consumes its event channels.
//
// Updates carries the ordered inbound stream of the active connection.
// Permissions and ConfigPushes are independent channels. A nil channel
// means the transport never produces that kind of event.
type Transport interface {
	Connect(ctx context.Context, cfg protocol.AgentConfig) error
	Disconnect(ctx context.Context) error
	Status(ctx context.Context) (protocol.Status, error)

	// Prompt sends a prompt for turnID and returns once it is accepted.
	// Events of that turn should carry turnID.
	Prompt(ctx context.Context, turnID uint64, text string, items []protocol.ContextItem) error
	Cancel(ctx context.Context) error
	ResolvePermission(ctx context.Context, requestID, optionID string) error

	ConfigOptions(ctx context.Context) ([]protocol.ConfigOption, error)
	SetConfigOption(ctx context.Context, id, value string) ([]protocol.ConfigOption, error)

	Updates() <-chan protocol.Update
	Permissions() <-chan protocol.PermissionRequest
	ConfigPushes() <-chan []protocol.ConfigOption
}

// Store is the durable conversation history. *store.Store satisfies it.
type Store interface {
	CreateConversation(ctx context.Context, title string) (protocol.Conversation, error)
	AddMessage(ctx context.Context, conversationID string, role protocol.Role, content string) (protocol.ConversationMessage, error)
	Messages(ctx context.Context, conversationID string) ([]protocol.ConversationMessage, error)
	ListConversations(ctx context.Context, limit int) ([]protocol.ConversationPreview, error)
	SearchConversations(ctx context.Context, query string) ([]protocol.ConversationPreview, error)
	DeleteConversation(ctx context.Context, id string) error
}

// Composer turns the user's text into the prompt actually sent to the
// agent.
type Composer interface {
	Compose(ctx context.Context, text string, items []protocol.ContextItem) (string, error)
}

// SavedConfig is the persisted agent configuration used at startup.
type SavedConfig interface {
	Load(ctx context.Context) (protocol.AgentConfig, error)
	AgentEnv(ctx context.Context, agentID string) (string, error)
}
