package store

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// Every statement is IF NOT EXISTS, so replaying the list against an
// existing database is harmless.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS invocations (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		engine         TEXT    NOT NULL,
		prompt_sha256  TEXT    NOT NULL DEFAULT '',
		text_len       INTEGER NOT NULL DEFAULT 0,
		input_tokens   INTEGER NOT NULL DEFAULT 0,
		output_tokens  INTEGER NOT NULL DEFAULT 0,
		total_tokens   INTEGER NOT NULL DEFAULT 0,
		exact_usage    INTEGER NOT NULL DEFAULT 0,
		duration_ms    INTEGER NOT NULL DEFAULT 0,
		outcome        TEXT    NOT NULL,
		exit_code      INTEGER NOT NULL DEFAULT 0,
		created_at     TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,

	`CREATE INDEX IF NOT EXISTS idx_invocations_created ON invocations(created_at)`,

	`CREATE INDEX IF NOT EXISTS idx_invocations_engine ON invocations(engine, created_at)`,
}

// migrate brings the database up to schemaVersion, creating the version
// bookkeeping table on first open.
func migrate(db *sql.DB) error {
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("store: create schema_version: %w", err)
	}

	installed, err := installedVersion(ctx, db)
	if err != nil {
		return err
	}
	if installed >= schemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: schema statement failed: %w\n%s", err, stmt)
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("store: stamp schema version: %w", err)
	}
	return tx.Commit()
}

// installedVersion reads the highest stamped schema version, zero for a
// fresh database.
func installedVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("store: read schema version: %w", err)
	}
	return v, nil
}
