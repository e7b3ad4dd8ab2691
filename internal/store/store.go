// Package store provides a SQLite-backed execution history for the Azure CLI
// gateway. Every command the gateway runs — including logins — leaves one
// row with its redacted command text and outcome, persisted across restarts
// so operators can answer "what did the agent actually run".
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Execution is a single completed gateway call.
type Execution struct {
	// StartedAt is when the gateway accepted the command (UTC).
	StartedAt time.Time
	// Command is the redacted command text.
	Command string
	// Kind is "command" for ordinary executions or "login" for the
	// interactive login flow.
	Kind string
	// OK reports whether the result text was free of the error marker.
	OK bool
	// ExitCode is the process exit code, or -1 when unknown.
	ExitCode int
	// Duration is the wall-clock time the call took.
	Duration time.Duration
}

// ExecutionStore persists and retrieves execution history.
// Implementations must be safe for concurrent use.
type ExecutionStore interface {
	// Append persists a single execution.
	Append(ctx context.Context, e Execution) error
	// Recent returns the most recent n executions ordered oldest-first,
	// ready to render as a chronological activity feed. If fewer than n
	// exist, all are returned.
	Recent(ctx context.Context, n int) ([]Execution, error)
	// Ping verifies the underlying database is reachable.
	Ping(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is an ExecutionStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the execution history database.
// It resolves to ~/.azmcp/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".azmcp")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS executions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at   INTEGER NOT NULL,  -- Unix timestamp (seconds)
    command      TEXT    NOT NULL,
    kind         TEXT    NOT NULL CHECK(kind IN ('command','login')),
    ok           INTEGER NOT NULL,
    exit_code    INTEGER NOT NULL,
    duration_ms  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_executions_started
    ON executions (started_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single execution.
func (s *SQLiteStore) Append(ctx context.Context, e Execution) error {
	const q = `INSERT INTO executions (started_at, command, kind, ok, exit_code, duration_ms)
	           VALUES (?, ?, ?, ?, ?, ?)`
	ok := 0
	if e.OK {
		ok = 1
	}
	_, err := s.db.ExecContext(ctx, q,
		e.StartedAt.Unix(), e.Command, e.Kind, ok, e.ExitCode, e.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n executions, ordered oldest-first.
// Uses a subquery to select the tail then re-order for chronological display.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Execution, error) {
	const q = `
SELECT started_at, command, kind, ok, exit_code, duration_ms FROM (
    SELECT id, started_at, command, kind, ok, exit_code, duration_ms
    FROM   executions
    ORDER  BY started_at DESC, id DESC
    LIMIT  ?
) ORDER BY started_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var execs []Execution
	for rows.Next() {
		var (
			e     Execution
			ts    int64
			ok    int
			durMS int64
		)
		if err := rows.Scan(&ts, &e.Command, &e.Kind, &ok, &e.ExitCode, &durMS); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		e.StartedAt = time.Unix(ts, 0).UTC()
		e.OK = ok == 1
		e.Duration = time.Duration(durMS) * time.Millisecond
		execs = append(execs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return execs, nil
}

// Ping verifies the database file is still reachable and writable enough to
// serve the readiness probe.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
