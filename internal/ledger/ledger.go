// Package ledger keeps a durable record of daemon jobs in SQLite so a
// restarted daemon (or an operator) can see what was processed.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"

	_ "modernc.org/sqlite"

	"seqmap/pkg/api"
)

// Job states stored in the ledger.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	file        TEXT NOT NULL,
	output      TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL DEFAULT '',
	finished_at TEXT NOT NULL DEFAULT '',
	elapsed_ms  INTEGER NOT NULL DEFAULT 0,
	batches     INTEGER NOT NULL DEFAULT 0,
	reads       INTEGER NOT NULL DEFAULT 0,
	bases       INTEGER NOT NULL DEFAULT 0,
	mapped      INTEGER NOT NULL DEFAULT 0,
	unmapped    INTEGER NOT NULL DEFAULT 0,
	ambiguous   INTEGER NOT NULL DEFAULT 0,
	errors      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS jobs_file ON jobs(file);
`

// Ledger records job progress. A nil *Ledger, or one opened with an empty
// path, accepts every call and stores nothing.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if path == "" {
		return &Ledger{}, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open ledger: %w", err)
	}
	dsn := url.URL{
		Scheme:   "file",
		Path:     abs,
		RawQuery: "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
	}
	db, err := sql.Open("sqlite", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("cannot open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Enabled reports whether records are persisted.
func (l *Ledger) Enabled() bool { return l != nil && l.db != nil }

// Close closes the database.
func (l *Ledger) Close() error {
	if !l.Enabled() {
		return nil
	}
	return l.db.Close()
}

// Record inserts or replaces the row for s.JobID.
func (l *Ledger) Record(ctx context.Context, s api.JobStatsV1) error {
	if !l.Enabled() {
		return nil
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO jobs (id, file, output, status, error, started_at, finished_at, elapsed_ms,
			batches, reads, bases, mapped, unmapped, ambiguous, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file = excluded.file, output = excluded.output, status = excluded.status,
			error = excluded.error, started_at = excluded.started_at,
			finished_at = excluded.finished_at, elapsed_ms = excluded.elapsed_ms,
			batches = excluded.batches, reads = excluded.reads, bases = excluded.bases,
			mapped = excluded.mapped, unmapped = excluded.unmapped,
			ambiguous = excluded.ambiguous, errors = excluded.errors`,
		s.JobID, s.File, s.Output, s.Status, s.Error, s.StartedAt, s.FinishedAt, s.ElapsedMS,
		s.Batches, s.Reads, s.Bases, s.Mapped, s.Unmapped, s.Ambiguous, s.Errors)
	if err != nil {
		return fmt.Errorf("recording job %s: %w", s.JobID, err)
	}
	return nil
}

// Jobs lists recorded jobs, oldest first. file, when non-empty, restricts
// the listing to one input file.
func (l *Ledger) Jobs(ctx context.Context, file string) ([]api.JobStatsV1, error) {
	if !l.Enabled() {
		return nil, nil
	}
	q := `SELECT id, file, output, status, error, started_at, finished_at, elapsed_ms,
		batches, reads, bases, mapped, unmapped, ambiguous, errors FROM jobs`
	var args []any
	if file != "" {
		q += ` WHERE file = ?`
		args = append(args, file)
	}
	q += ` ORDER BY started_at, rowid`

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var out []api.JobStatsV1
	for rows.Next() {
		var s api.JobStatsV1
		if err := rows.Scan(&s.JobID, &s.File, &s.Output, &s.Status, &s.Error, &s.StartedAt, &s.FinishedAt,
			&s.ElapsedMS, &s.Batches, &s.Reads, &s.Bases, &s.Mapped, &s.Unmapped, &s.Ambiguous, &s.Errors); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
