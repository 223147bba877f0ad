package store

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// timeLayout matches the strftime format the schema defaults use, so stored
// timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Outcome labels the terminal state of one invocation.
type Outcome string

// Invocation outcomes.
const (
	OutcomeOK                Outcome = "ok"
	OutcomeSpawnError        Outcome = "spawn_error"
	OutcomeInitialTimeout    Outcome = "initial_timeout"
	OutcomeInactivityTimeout Outcome = "inactivity_timeout"
	OutcomeProcessError      Outcome = "process_error"
	OutcomeCanceled          Outcome = "canceled"
)

// Record is one persisted invocation outcome. Prompts are stored only as a
// hash; the log never contains consultation content.
type Record struct {
	ID           int64
	Engine       string
	PromptSHA256 string
	TextLen      int
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	Exact        bool
	Duration     time.Duration
	Outcome      Outcome
	ExitCode     int
	CreatedAt    time.Time
}

// SaveBatch inserts all records in a single transaction. A zero CreatedAt
// is filled with the current time.
func (s *Store) SaveBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO invocations (
			engine, prompt_sha256, text_len,
			input_tokens, output_tokens, total_tokens, exact_usage,
			duration_ms, outcome, exit_code, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		exact := 0
		if r.Exact {
			exact = 1
		}

		_, err := stmt.ExecContext(ctx,
			r.Engine, r.PromptSHA256, r.TextLen,
			r.InputTokens, r.OutputTokens, r.TotalTokens, exact,
			r.Duration.Milliseconds(), string(r.Outcome), r.ExitCode,
			createdAt.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("store: insert invocation: %w", err)
		}
	}

	return tx.Commit()
}

// Recent returns the n most recent invocations in chronological order.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, engine, prompt_sha256, text_len,
		       input_tokens, output_tokens, total_tokens, exact_usage,
		       duration_ms, outcome, exit_code, created_at
		FROM invocations
		ORDER BY id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var (
			r          Record
			exact      int
			durationMS int64
			outcome    string
			createdAt  string
		)
		err := rows.Scan(
			&r.ID, &r.Engine, &r.PromptSHA256, &r.TextLen,
			&r.InputTokens, &r.OutputTokens, &r.TotalTokens, &exact,
			&durationMS, &outcome, &r.ExitCode, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("store: scan invocation: %w", err)
		}
		r.Exact = exact != 0
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.Outcome = Outcome(outcome)
		if t, err := time.Parse(timeLayout, createdAt); err == nil {
			r.CreatedAt = t
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}

	// Reverse to chronological order.
	slices.Reverse(records)
	return records, nil
}

// Prune deletes invocations created before the cutoff and reports how many
// rows were removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM invocations WHERE created_at < ?",
		olderThan.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("store: prune: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: prune rows affected: %w", err)
	}
	return removed, nil
}
