// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger keeps a local SQLite history of conversion runs: which
// export was converted, when, in which mode, and whether it succeeded.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/registrar-json/internal/registrar"
	"github.com/pdiddy/registrar-json/pkg/types"
)

const (
	// OutcomeOK marks a run that produced its document and every artifact
	// that was asked for.
	OutcomeOK = "ok"

	// OutcomeFailed marks a run that failed outside the converter, such
	// as a manifest that could not be written.
	OutcomeFailed = "failed"
)

const defaultLimit = 20

// timeLayout is fixed width so started_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run is one conversion attempt.
type Run struct {
	ID          string        `json:"id" yaml:"id"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	Source      string        `json:"source" yaml:"source"`
	Destination string        `json:"destination" yaml:"destination"`
	Mode        string        `json:"mode" yaml:"mode"`
	Outcome     string        `json:"outcome" yaml:"outcome"`
	Message     string        `json:"message,omitempty" yaml:"message,omitempty"`
	Rows        int           `json:"rows" yaml:"rows"`
	Written     int           `json:"written" yaml:"written"`
	Skipped     int           `json:"skipped" yaml:"skipped"`
	SourceBytes int64         `json:"source_bytes" yaml:"source_bytes"`
	OutputBytes int64         `json:"output_bytes" yaml:"output_bytes"`
}

// NewRun starts a run record with a fresh id.
func NewRun(source, destination, mode string, started time.Time) Run {
	return Run{
		ID:          uuid.NewString(),
		StartedAt:   started.UTC(),
		Source:      source,
		Destination: destination,
		Mode:        mode,
	}
}

// Finish fills in the result of the conversion. err may be nil.
func (r *Run) Finish(sum registrar.Summary, err error, finished time.Time) {
	r.Duration = finished.Sub(r.StartedAt)
	r.Rows = sum.Rows
	r.Written = sum.Written
	r.Skipped = sum.Skipped
	r.SourceBytes = sum.SourceBytes
	r.OutputBytes = sum.OutputBytes
	if err == nil {
		r.Outcome = OutcomeOK
		r.Message = ""
		return
	}
	r.Outcome = OutcomeFailed
	if kind := registrar.KindOf(err); kind != registrar.KindUnknown {
		r.Outcome = kind.String()
	}
	r.Message = err.Error()
}

// Succeeded reports whether the run produced its document.
func (r Run) Succeeded() bool { return r.Outcome == OutcomeOK }

// Store manages the ledger database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger at cfg.Path, creating the parent
// directory and schema as needed.
func Open(cfg types.LedgerConfig) (*Store, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("ledger path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			source TEXT NOT NULL,
			destination TEXT NOT NULL,
			mode TEXT NOT NULL,
			outcome TEXT NOT NULL,
			message TEXT,
			row_count INTEGER NOT NULL DEFAULT 0,
			written INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			source_bytes INTEGER NOT NULL DEFAULT 0,
			output_bytes INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores r. Recording the same id twice replaces the earlier row.
func (s *Store) Record(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, duration_ms, source, destination, mode, outcome, message,
			row_count, written, skipped, source_bytes, output_bytes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			started_at=excluded.started_at, duration_ms=excluded.duration_ms,
			source=excluded.source, destination=excluded.destination, mode=excluded.mode,
			outcome=excluded.outcome, message=excluded.message, row_count=excluded.row_count,
			written=excluded.written, skipped=excluded.skipped,
			source_bytes=excluded.source_bytes, output_bytes=excluded.output_bytes`,
		r.ID, r.StartedAt.UTC().Format(timeLayout), r.Duration.Milliseconds(),
		r.Source, r.Destination, r.Mode, r.Outcome, r.Message,
		r.Rows, r.Written, r.Skipped, r.SourceBytes, r.OutputBytes,
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", r.ID, err)
	}
	return nil
}

// QueryOptions filters List.
type QueryOptions struct {
	// Limit caps the number of runs returned. Zero uses the default (20).
	Limit int

	// Source keeps only runs of this CSV path.
	Source string

	// FailedOnly keeps only runs that did not produce a document.
	FailedOnly bool
}

// List returns runs, newest first.
func (s *Store) List(ctx context.Context, opts QueryOptions) ([]Run, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT id, started_at, duration_ms, source, destination, mode, outcome, message,
			row_count, written, skipped, source_bytes, output_bytes
		FROM runs WHERE 1=1`)
	if opts.Source != "" {
		qb.WriteString(` AND source = ?`)
		args = append(args, opts.Source)
	}
	if opts.FailedOnly {
		qb.WriteString(` AND outcome != ?`)
		args = append(args, OutcomeOK)
	}
	qb.WriteString(` ORDER BY started_at DESC, rowid DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, duration_ms, source, destination, mode, outcome, message,
			row_count, written, skipped, source_bytes, output_bytes
		FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("run %s not found", id)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r          Run
		startedAt  string
		durationMS int64
		message    sql.NullString
	)
	err := sc.Scan(&r.ID, &startedAt, &durationMS, &r.Source, &r.Destination, &r.Mode,
		&r.Outcome, &message, &r.Rows, &r.Written, &r.Skipped, &r.SourceBytes, &r.OutputBytes)
	if err == sql.ErrNoRows {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	t, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parsing started_at %q: %w", startedAt, err)
	}
	r.StartedAt = t
	r.Duration = time.Duration(durationMS) * time.Millisecond
	r.Message = message.String
	return r, nil
}
