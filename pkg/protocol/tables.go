package protocol

// Conversation represents a row in the conversations SQLite table.
type Conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ConversationPreview is the browsing projection of a conversation: no
// message bodies beyond the latest one.
type ConversationPreview struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
	MessageCount       int    `json:"message_count"`
	LastMessagePreview string `json:"last_message_preview,omitempty"`
}

// ConversationMessage represents a row in the conversation_messages table.
type ConversationMessage struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Role           Role   `json:"role"`
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at"`
}

// ConversationContext pairs a conversation with its most recent messages,
// oldest first.
type ConversationContext struct {
	Conversation Conversation          `json:"conversation"`
	Messages     []ConversationMessage `json:"messages"`
}

// Memory represents a row in the memory table. An empty Context is the
// global context and is stored as NULL.
type Memory struct {
	ID           string     `json:"id"`
	Key          string     `json:"key"`
	Value        string     `json:"value"`
	Context      string     `json:"context,omitempty"`
	Type         MemoryType `json:"memory_type"`
	Confidence   float64    `json:"confidence"`
	CreatedAt    string     `json:"created_at"`
	UpdatedAt    string     `json:"updated_at"`
	LastAccessed string     `json:"last_accessed"`
}

// NewMemory is the input to Store.AddMemory. An empty Type means
// MemoryFact.
type NewMemory struct {
	Key        string
	Value      string
	Context    string
	Type       MemoryType
	Confidence float64
}

// Setting represents a row in the settings table.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
