package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golaunch/pkg/protocol"
)

// Setting returns the value stored under key. ok is false when the key is
// absent.
func (s *Store) Setting(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("setting get %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting upserts key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return fmt.Errorf("setting set %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes key. Missing keys are ignored.
func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("setting delete %s: %w", key, err)
	}
	return nil
}

// SettingsWithPrefix returns every setting whose key starts with prefix,
// ordered by key.
func (s *Store) SettingsWithPrefix(ctx context.Context, prefix string) ([]protocol.Setting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM settings WHERE substr(key, 1, ?) = ? ORDER BY key`,
		len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("settings list %s: %w", prefix, err)
	}
	defer rows.Close()

	var out []protocol.Setting
	for rows.Next() {
		var st protocol.Setting
		if err := rows.Scan(&st.Key, &st.Value); err != nil {
			return nil, fmt.Errorf("settings scan: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("settings rows: %w", err)
	}
	return out, nil
}
