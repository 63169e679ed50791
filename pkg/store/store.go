// Package store persists conversations, their messages and launcher settings
// in SQLite. It is the durable half of the agent session: the session engine
// calls it, never the other way round.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golaunch/pkg/protocol"

	"github.com/google/uuid"
)

// previewRunes bounds ConversationPreview.LastMessagePreview.
const previewRunes = 100

// recentMessagesPerConversation is how many trailing messages RecentContext
// returns for each conversation.
const recentMessagesPerConversation = 5

// now is the SQLite expression used for every timestamp the store writes.
const now = `strftime('%Y-%m-%d %H:%M:%f', 'now')`

// Store manages the conversations, conversation_messages and settings tables.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store backed by the given SQLite database. The
// schema in protocol.SchemaDDL must already be applied.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateConversation inserts a new conversation with a fresh UUID.
func (s *Store) CreateConversation(ctx context.Context, title string) (protocol.Conversation, error) {
	id := uuid.NewString()
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO conversations (id, title) VALUES (?, ?)
		 RETURNING id, title, created_at, updated_at`,
		id, title,
	)
	var c protocol.Conversation
	if err := row.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return protocol.Conversation{}, fmt.Errorf("conversation create: %w", err)
	}
	return c, nil
}

// GetConversation returns the conversation row for id.
func (s *Store) GetConversation(ctx context.Context, id string) (protocol.Conversation, error) {
	var c protocol.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return protocol.Conversation{}, &protocol.ConversationNotFoundError{ID: id}
	}
	if err != nil {
		return protocol.Conversation{}, fmt.Errorf("conversation get %s: %w", id, err)
	}
	return c, nil
}

// AddMessage appends a message to a conversation and bumps the
// conversation's updated_at. Only user and assistant messages are stored.
func (s *Store) AddMessage(ctx context.Context, conversationID string, role protocol.Role, content string) (protocol.ConversationMessage, error) {
	if !role.Persistable() {
		return protocol.ConversationMessage{}, fmt.Errorf("message add: role %q is not persisted", role)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return protocol.ConversationMessage{}, fmt.Errorf("message add begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = `+now+` WHERE id = ?`, conversationID)
	if err != nil {
		return protocol.ConversationMessage{}, fmt.Errorf("message add touch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return protocol.ConversationMessage{}, &protocol.ConversationNotFoundError{ID: conversationID}
	}

	m := protocol.ConversationMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO conversation_messages (id, conversation_id, role, content)
		 VALUES (?, ?, ?, ?) RETURNING created_at`,
		m.ID, m.ConversationID, string(m.Role), m.Content,
	).Scan(&m.CreatedAt)
	if err != nil {
		return protocol.ConversationMessage{}, fmt.Errorf("message add insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return protocol.ConversationMessage{}, fmt.Errorf("message add commit: %w", err)
	}
	return m, nil
}

// Messages returns every message of a conversation in insertion order.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]protocol.ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM conversation_messages WHERE conversation_id = ?
		 ORDER BY seq ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("messages query: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListConversations returns previews of the most recently updated
// conversations. limit <= 0 uses protocol.DefaultListLimit.
func (s *Store) ListConversations(ctx context.Context, limit int) ([]protocol.ConversationPreview, error) {
	if limit <= 0 {
		limit = protocol.DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, previewSelect+`
		`+recentFirst+`
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation list: %w", err)
	}
	defer rows.Close()
	return scanPreviews(rows)
}

// SearchConversations matches query against titles and message bodies.
// An empty query matches nothing.
func (s *Store) SearchConversations(ctx context.Context, query string) ([]protocol.ConversationPreview, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx, previewSelect+`
		WHERE c.title LIKE ? ESCAPE '\'
		   OR EXISTS (SELECT 1 FROM conversation_messages m
		              WHERE m.conversation_id = c.id AND m.content LIKE ? ESCAPE '\')
		`+recentFirst+`
		LIMIT ?`, pattern, pattern, protocol.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("conversation search: %w", err)
	}
	defer rows.Close()
	return scanPreviews(rows)
}

// DeleteConversation removes a conversation and its messages. Deleting an
// id that does not exist is not an error.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("conversation delete begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("conversation delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("conversation delete: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("conversation delete commit: %w", err)
	}
	return nil
}

// RecentContext returns the limit most recently updated conversations, each
// with its last few messages in chronological order. Used to give the agent
// memory of earlier chats.
func (s *Store) RecentContext(ctx context.Context, limit int) ([]protocol.ConversationContext, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.title, c.created_at, c.updated_at FROM conversations c
		 `+recentFirst+` LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent context: %w", err)
	}
	var convs []protocol.Conversation
	for rows.Next() {
		var c protocol.Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("recent context scan: %w", err)
		}
		convs = append(convs, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent context rows: %w", err)
	}

	out := make([]protocol.ConversationContext, 0, len(convs))
	for _, c := range convs {
		msgs, err := s.lastMessages(ctx, c.ID, recentMessagesPerConversation)
		if err != nil {
			return nil, err
		}
		out = append(out, protocol.ConversationContext{Conversation: c, Messages: msgs})
	}
	return out, nil
}

func (s *Store) lastMessages(ctx context.Context, conversationID string, n int) ([]protocol.ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM conversation_messages WHERE conversation_id = ?
		 ORDER BY seq DESC LIMIT ?`, conversationID, n)
	if err != nil {
		return nil, fmt.Errorf("last messages: %w", err)
	}
	defer rows.Close()
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// recentFirst orders conversations by last activity. Timestamps have
// millisecond resolution, so ties fall back to the newest message.
const recentFirst = `ORDER BY c.updated_at DESC,
	COALESCE((SELECT MAX(m.seq) FROM conversation_messages m WHERE m.conversation_id = c.id), 0) DESC,
	c.rowid DESC`

const previewSelect = `
	SELECT c.id, c.title, c.created_at, c.updated_at,
	       (SELECT COUNT(*) FROM conversation_messages m WHERE m.conversation_id = c.id),
	       COALESCE((SELECT m.content FROM conversation_messages m
	                 WHERE m.conversation_id = c.id ORDER BY m.seq DESC LIMIT 1), '')
	FROM conversations c`

func scanPreviews(rows *sql.Rows) ([]protocol.ConversationPreview, error) {
	var out []protocol.ConversationPreview
	for rows.Next() {
		var p protocol.ConversationPreview
		if err := rows.Scan(&p.ID, &p.Title, &p.CreatedAt, &p.UpdatedAt, &p.MessageCount, &p.LastMessagePreview); err != nil {
			return nil, fmt.Errorf("preview scan: %w", err)
		}
		p.LastMessagePreview = truncateRunes(p.LastMessagePreview, previewRunes)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("preview rows: %w", err)
	}
	return out, nil
}

func scanMessages(rows *sql.Rows) ([]protocol.ConversationMessage, error) {
	var out []protocol.ConversationMessage
	for rows.Next() {
		var m protocol.ConversationMessage
		var role string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("message scan: %w", err)
		}
		m.Role = protocol.Role(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("message rows: %w", err)
	}
	return out, nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
