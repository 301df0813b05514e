// Package store keeps a SQLite ledger of slicing runs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one ledger row.
type Run struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	Status           string
	Error            string
	RecordsRead      int
	RecordsKept      int
	RecordsRejected  int
	Locations        int
	SlicesWritten    int
	SlicesSkipped    int
	CountriesWritten int
	CountriesSkipped int
	UnknownCountries int
	ClampedCells     int
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	records_read INTEGER NOT NULL,
	records_kept INTEGER NOT NULL,
	records_rejected INTEGER NOT NULL,
	locations INTEGER NOT NULL,
	slices_written INTEGER NOT NULL,
	slices_skipped INTEGER NOT NULL,
	countries_written INTEGER NOT NULL,
	countries_skipped INTEGER NOT NULL,
	unknown_countries INTEGER NOT NULL,
	clamped_cells INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);
`

// Ledger records runs in a SQLite database.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}
	// One writer at a time; the run driver is the only client.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create run ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// RecordRun inserts a run. Recording the same id twice is an error.
func (l *Ledger) RecordRun(ctx context.Context, r Run) error {
	_, err := l.db.ExecContext(ctx, `INSERT INTO runs (
		id, started_at, finished_at, status, error,
		records_read, records_kept, records_rejected, locations,
		slices_written, slices_skipped, countries_written, countries_skipped,
		unknown_countries, clamped_cells
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC(), r.FinishedAt.UTC(), r.Status, r.Error,
		r.RecordsRead, r.RecordsKept, r.RecordsRejected, r.Locations,
		r.SlicesWritten, r.SlicesSkipped, r.CountriesWritten, r.CountriesSkipped,
		r.UnknownCountries, r.ClampedCells,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT
		id, started_at, finished_at, status, error,
		records_read, records_kept, records_rejected, locations,
		slices_written, slices_skipped, countries_written, countries_skipped,
		unknown_countries, clamped_cells
	FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.Error,
			&r.RecordsRead, &r.RecordsKept, &r.RecordsRejected, &r.Locations,
			&r.SlicesWritten, &r.SlicesSkipped, &r.CountriesWritten, &r.CountriesSkipped,
			&r.UnknownCountries, &r.ClampedCells,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LastSucceeded returns the most recent successful run. ok is false when there
// is none.
func (l *Ledger) LastSucceeded(ctx context.Context) (r Run, ok bool, err error) {
	err = l.db.QueryRowContext(ctx, `SELECT id, started_at, finished_at, slices_written
		FROM runs WHERE status = ? ORDER BY started_at DESC LIMIT 1`, StatusSucceeded).
		Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.SlicesWritten)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("last successful run: %w", err)
	}
	r.Status = StatusSucceeded
	return r, true, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
