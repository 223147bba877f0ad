// Package store persists invocation history in SQLite. It is the
// fire-and-forget sink for completed consultations: writes happen off the
// request path and write failures are logged by the caller, never surfaced
// to the consult response.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// busyTimeoutMillis is how long SQLite waits on a locked database before
// failing a statement.
const busyTimeoutMillis = 5000

// Store is an invocation history log backed by a single SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at path, creating the file and any
// parent directories on first use. WAL journaling, the busy timeout, and
// a single-connection pool are applied before the schema migration runs.
// The caller owns the returned store and must Close it.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis),
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Ping verifies the database is reachable. The readiness endpoint uses it.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
