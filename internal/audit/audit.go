// Package audit records every handled prompt in a SQLite database.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS prompt_audit (
	id          TEXT PRIMARY KEY,
	created_ts  INTEGER NOT NULL,
	timezone    TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	prompt      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_prompt_audit_created_ts ON prompt_audit (created_ts);
`

// Entry is one handled prompt. Prompt is empty unless prompt storage is enabled.
type Entry struct {
	ID        string
	CreatedAt time.Time
	Timezone  string
	Action    string
	Outcome   string
	Detail    string
	Prompt    string
}

// Store is a SQLite-backed audit log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the audit database at path. Use
// ":memory:" for a throwaway log.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writes.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate audit database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts e. A zero CreatedAt is set to the current time.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	fields := []string{"id", "created_ts", "timezone", "action", "outcome", "detail", "prompt"}
	values := []any{e.ID, e.CreatedAt.UnixMicro(), e.Timezone, e.Action, e.Outcome, e.Detail, e.Prompt}

	stmt := `INSERT INTO prompt_audit (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(values)) + `)`
	if _, err := s.db.ExecContext(ctx, stmt, values...); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_ts, timezone, action, outcome, detail, prompt
		FROM prompt_audit
		ORDER BY created_ts DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var createdTs int64
		if err := rows.Scan(&e.ID, &createdTs, &e.Timezone, &e.Action, &e.Outcome, &e.Detail, &e.Prompt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.CreatedAt = time.UnixMicro(createdTs)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
