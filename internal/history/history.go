// Package history persists a record of training passes in an embedded
// SQLite database, so operators can audit what was compiled when and the
// trainer can consult the last fingerprint without re-reading artifacts.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one completed training pass.
type Run struct {
	ID           int64         `json:"id"`
	Profile      string        `json:"profile"`
	Fingerprint  string        `json:"fingerprint"`
	Intents      int           `json:"intents"`
	Sentences    int           `json:"sentences"`
	UnknownWords int           `json:"unknown_words"`
	Duration     time.Duration `json:"duration"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Store records training runs. Safe for use by a single training pass at
// a time; the compiler assumes single-writer access per profile.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path and applies the
// schema. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %q: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	profile       TEXT    NOT NULL,
	fingerprint   TEXT    NOT NULL,
	intents       INTEGER NOT NULL,
	sentences     INTEGER NOT NULL,
	unknown_words INTEGER NOT NULL,
	duration_ms   INTEGER NOT NULL,
	created_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_profile ON runs(profile, created_at);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Record appends a completed run.
func (s *Store) Record(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (profile, fingerprint, intents, sentences, unknown_words, duration_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.Profile, run.Fingerprint, run.Intents, run.Sentences,
		run.UnknownWords, run.Duration.Milliseconds(), run.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("history: record run: %w", err)
	}
	return nil
}

// LastFingerprint returns the fingerprint of the most recent run for
// profile, or "" when the profile has never been trained.
func (s *Store) LastFingerprint(ctx context.Context, profile string) (string, error) {
	var fp string
	err := s.db.QueryRowContext(ctx, `
SELECT fingerprint FROM runs WHERE profile = ? ORDER BY id DESC LIMIT 1`, profile).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("history: last fingerprint: %w", err)
	}
	return fp, nil
}

// Runs returns up to limit most recent runs for profile, newest first.
func (s *Store) Runs(ctx context.Context, profile string, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, profile, fingerprint, intents, sentences, unknown_words, duration_ms, created_at
FROM runs WHERE profile = ? ORDER BY id DESC LIMIT ?`, profile, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.Profile, &r.Fingerprint, &r.Intents,
			&r.Sentences, &r.UnknownWords, &durationMS, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate runs: %w", err)
	}
	return runs, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
