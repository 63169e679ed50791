package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"golaunch/pkg/protocol"
	"golaunch/pkg/store"

	_ "modernc.org/sqlite"
)

// openDB opens a SQLite database at path and enforces production-safe
// defaults: WAL journal mode and a 5-second busy timeout. The parent
// directory is created when missing.
func openDB(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create db dir for %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode on %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}

	return db, nil
}

// openStore opens the default database, applies the schema and returns the
// store with a function that closes the database.
func openStore(ctx context.Context) (*store.Store, *Paths, func(), error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolve paths: %w", err)
	}

	db, err := openDB(ctx, paths.DBPath)
	if err != nil {
		return nil, nil, nil, err
	}

	if _, err := db.ExecContext(ctx, protocol.SchemaDDL); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("apply schema: %w", err)
	}

	return store.NewStore(db), paths, func() { _ = db.Close() }, nil
}
