// Package store opens the durable backends the ingestion core relies on:
// an embedded SQLite database for the request queue and a Postgres pool for
// the candidate-record collaborator
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteConfig controls OpenSQLite behavior
type SQLiteConfig struct {
	Path        string
	BusyTimeout int // milliseconds, default 10s
	Schemas     []string
}

// OpenSQLite opens (creating parent dirs as needed) an SQLite database with
// WAL journaling and the pragmas we need for concurrent queue access, then
// applies any schemas
func OpenSQLite(cfg SQLiteConfig) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: sqlite path is required")
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 10_000
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir %s: %w", filepath.Dir(cfg.Path), err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Path, err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	for _, schema := range cfg.Schemas {
		if _, err := db.Exec(schema); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: apply schema: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return db, nil
}

// OpenSQLiteMemory opens an in-memory database for tests.
// The pool is pinned to one connection so every statement sees the same
// in-memory database
func OpenSQLiteMemory(schemas ...string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	for _, schema := range schemas {
		if _, err := db.Exec(schema); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}
