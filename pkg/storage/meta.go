package storage

import (
	"context"
	"database/sql"
	"errors"
)

// Lookup errors.
var (
	ErrRunNotFound = errors.New("run not found")
	ErrNoResult    = errors.New("run has no result")
)

// Run states.
const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

func EnsureMetaTables(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS euq_runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			variant TEXT NOT NULL,
			unit TEXT,
			seed TEXT,
			simulations INTEGER DEFAULT 0,
			categories INTEGER DEFAULT 0,
			total_by REAL DEFAULT 0,
			total_ry REAL DEFAULT 0,
			u_by REAL DEFAULT 0,
			u_ry REAL DEFAULT 0,
			u_trend REAL DEFAULT 0,
			error TEXT,
			result BLOB,
			started_at TEXT,
			finished_at TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS euq_rows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			process TEXT NOT NULL,
			compound TEXT NOT NULL,
			resource TEXT NOT NULL,
			depth INTEGER NOT NULL,
			is_import INTEGER NOT NULL,
			quantity TEXT NOT NULL,
			status TEXT,
			value REAL,
			analytic_lower REAL,
			analytic_upper REAL,
			analytic_mean REAL,
			mc_mean REAL,
			mc_low REAL,
			mc_high REAL,
			mc_lower REAL,
			mc_upper REAL,
			mc_u REAL,
			corr REAL
		);`,
		`CREATE INDEX IF NOT EXISTS euq_rows_run ON euq_rows(run_id, position);`,
		`CREATE TABLE IF NOT EXISTS euq_diagnostics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			logged_at TEXT,
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			attrs TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS euq_diagnostics_run ON euq_diagnostics(run_id, position);`,
		`CREATE TABLE IF NOT EXISTS euq_key_categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			process TEXT NOT NULL,
			compound TEXT NOT NULL,
			resource TEXT NOT NULL,
			kind TEXT NOT NULL,
			approach INTEGER NOT NULL,
			share REAL NOT NULL,
			cumulative REAL NOT NULL,
			is_key INTEGER NOT NULL,
			extended INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS euq_key_categories_run ON euq_key_categories(run_id, position);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil { return err }
	}
	return nil
}

// RunInfo is the summary line of a stored run.
type RunInfo struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	Variant     string  `json:"variant"`
	Unit        string  `json:"unit,omitempty"`
	Seed        string  `json:"seed,omitempty"`
	Simulations int     `json:"simulations"`
	Categories  int     `json:"categories"`
	TotalBY     float64 `json:"total_by"`
	TotalRY     float64 `json:"total_ry"`
	UBY         float64 `json:"u_by"`
	URY         float64 `json:"u_ry"`
	UTrend      float64 `json:"u_trend"`
	Error       string  `json:"error,omitempty"`
	StartedAt   string  `json:"started_at,omitempty"`
	FinishedAt  string  `json:"finished_at,omitempty"`
}
