package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens the SQLite run store at path and creates missing tables.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" || path == "file::memory:" {
		db.SetMaxOpenConns(1)
	} else {
		// Pragmas for better performance
		db.ExecContext(ctx, "PRAGMA journal_mode=WAL;")
		db.ExecContext(ctx, "PRAGMA synchronous=NORMAL;")
	}
	if err := EnsureMetaTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure meta tables: %w", err)
	}
	return db, nil
}
