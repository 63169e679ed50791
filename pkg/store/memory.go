package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golaunch/pkg/protocol"

	"github.com/google/uuid"
)

const memorySelect = `SELECT id, key, value, context, memory_type, confidence,
	created_at, updated_at, last_accessed FROM memory`

// AddMemory stores a memory, replacing the value, type and confidence of
// an existing memory with the same key in the same context. A zero
// Confidence means 1.0.
func (s *Store) AddMemory(ctx context.Context, in protocol.NewMemory) (protocol.Memory, error) {
	key := strings.TrimSpace(in.Key)
	if key == "" {
		return protocol.Memory{}, errors.New("memory add: key is empty")
	}
	typ := in.Type
	if typ == "" {
		typ = protocol.MemoryFact
	}
	if !typ.Valid() {
		return protocol.Memory{}, fmt.Errorf("memory add: unknown type %q", typ)
	}
	confidence := in.Confidence
	if confidence == 0 {
		confidence = 1
	}
	if confidence < 0 || confidence > 1 {
		return protocol.Memory{}, fmt.Errorf("memory add: confidence %g outside (0, 1]", in.Confidence)
	}
	memCtx := nullString(in.Context)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return protocol.Memory{}, fmt.Errorf("memory add begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM memory WHERE key = ? AND context IS ?`, key, memCtx,
	).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO memory (id, key, value, context, memory_type, confidence)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, key, in.Value, memCtx, string(typ), confidence)
	case err == nil:
		_, err = tx.ExecContext(ctx,
			`UPDATE memory SET value = ?, memory_type = ?, confidence = ?, updated_at = `+now+`
			 WHERE id = ?`,
			in.Value, string(typ), confidence, id)
	}
	if err != nil {
		return protocol.Memory{}, fmt.Errorf("memory add %q: %w", key, err)
	}

	m, err := scanMemory(tx.QueryRowContext(ctx, memorySelect+` WHERE id = ?`, id))
	if err != nil {
		return protocol.Memory{}, fmt.Errorf("memory add read back: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return protocol.Memory{}, fmt.Errorf("memory add commit: %w", err)
	}
	return m, nil
}

// GetMemory returns the memory with the given id.
func (s *Store) GetMemory(ctx context.Context, id string) (protocol.Memory, error) {
	m, err := scanMemory(s.db.QueryRowContext(ctx, memorySelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return protocol.Memory{}, &protocol.MemoryNotFoundError{ID: id}
	}
	if err != nil {
		return protocol.Memory{}, fmt.Errorf("memory get %s: %w", id, err)
	}
	return m, nil
}

// MemoryByKey returns the memory stored under key in memCtx. An empty
// memCtx only matches global memories.
func (s *Store) MemoryByKey(ctx context.Context, key, memCtx string) (protocol.Memory, error) {
	m, err := scanMemory(s.db.QueryRowContext(ctx,
		memorySelect+` WHERE key = ? AND context IS ?`, key, nullString(memCtx)))
	if errors.Is(err, sql.ErrNoRows) {
		return protocol.Memory{}, &protocol.MemoryNotFoundError{Key: key, Context: memCtx}
	}
	if err != nil {
		return protocol.Memory{}, fmt.Errorf("memory get %q: %w", key, err)
	}
	return m, nil
}

// TouchMemory marks a memory as just read.
func (s *Store) TouchMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memory SET last_accessed = `+now+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("memory touch %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &protocol.MemoryNotFoundError{ID: id}
	}
	return nil
}

// RemoveMemory deletes a memory and reports whether it existed.
func (s *Store) RemoveMemory(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("memory remove %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("memory remove %s: %w", id, err)
	}
	return n > 0, nil
}

// ListMemories returns memories of typ, or all memories when typ is empty,
// most recently updated first.
func (s *Store) ListMemories(ctx context.Context, typ protocol.MemoryType) ([]protocol.Memory, error) {
	rows, err := s.db.QueryContext(ctx, memorySelect+`
		WHERE ? = '' OR memory_type = ?
		ORDER BY updated_at DESC, rowid DESC`, string(typ), string(typ))
	if err != nil {
		return nil, fmt.Errorf("memory list: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// SearchMemories matches query against keys, values and contexts, most
// recently read first. An empty query matches nothing.
func (s *Store) SearchMemories(ctx context.Context, query string) ([]protocol.Memory, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx, memorySelect+`
		WHERE key LIKE ? ESCAPE '\' OR value LIKE ? ESCAPE '\' OR context LIKE ? ESCAPE '\'
		ORDER BY last_accessed DESC, rowid DESC`, pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// RelevantMemories returns the preferences and patterns worth putting in
// every prompt: confident ones first, at most protocol.RelevantMemoryLimit.
// A non-empty memCtx also admits memories of that context; global
// memories always qualify.
func (s *Store) RelevantMemories(ctx context.Context, memCtx string) ([]protocol.Memory, error) {
	rows, err := s.db.QueryContext(ctx, memorySelect+`
		WHERE memory_type IN (?, ?)
		  AND confidence > ?
		  AND (context IS NULL OR context = ?)
		ORDER BY confidence DESC, last_accessed DESC, rowid DESC
		LIMIT ?`,
		string(protocol.MemoryPreference), string(protocol.MemoryPattern),
		protocol.RelevantMemoryMinConfidence, memCtx, protocol.RelevantMemoryLimit)
	if err != nil {
		return nil, fmt.Errorf("relevant memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (protocol.Memory, error) {
	var m protocol.Memory
	var memCtx sql.NullString
	var typ string
	if err := row.Scan(&m.ID, &m.Key, &m.Value, &memCtx, &typ, &m.Confidence,
		&m.CreatedAt, &m.UpdatedAt, &m.LastAccessed); err != nil {
		return protocol.Memory{}, err
	}
	m.Context = memCtx.String
	m.Type = protocol.MemoryType(typ)
	return m, nil
}

func scanMemories(rows *sql.Rows) ([]protocol.Memory, error) {
	var out []protocol.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("memory scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memory rows: %w", err)
	}
	return out, nil
}

// nullString stores "" as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
