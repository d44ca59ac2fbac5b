// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records harvest runs and per-task outcomes in SQLite so past
// runs can be inspected after the fact. The ledger is bookkeeping only; the
// CSV output file remains the product of a run.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/arxiv-harvest/pkg/types"
)

// timeLayout is fixed-width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func now() string { return time.Now().UTC().Format(timeLayout) }

// Ledger manages the run ledger database.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path, creating parent
// directories and the schema as needed.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			output_path TEXT,
			task_count INTEGER,
			config TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS task_outcomes (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			category TEXT NOT NULL,
			month TEXT NOT NULL,
			cap INTEGER,
			fetched INTEGER,
			written INTEGER,
			error TEXT,
			completed_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_task_outcomes_run_id ON task_outcomes(run_id)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// TaskOutcome is the ledger row for one completed task.
type TaskOutcome struct {
	Category string
	Month    string
	Cap      int
	Fetched  int
	Written  int
	Err      string
}

// Run is an open run in the ledger. Tasks are recorded against it as they
// complete.
type Run struct {
	ID string
	l  *Ledger
}

// BeginRun inserts a new run with a fresh ID, storing cfg as YAML.
func (l *Ledger) BeginRun(ctx context.Context, cfg types.HarvestConfig, taskCount int) (*Run, error) {
	cfgYAML, err := yaml.Marshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling run config: %w", err)
	}

	id := uuid.NewString()
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, output_path, task_count, config) VALUES (?, ?, ?, ?, ?)`,
		id, now(), cfg.OutputPath, taskCount, string(cfgYAML))
	if err != nil {
		return nil, fmt.Errorf("inserting run: %w", err)
	}
	return &Run{ID: id, l: l}, nil
}

// RecordTask stores the outcome of one task.
func (r *Run) RecordTask(ctx context.Context, o TaskOutcome) error {
	var errText any
	if o.Err != "" {
		errText = o.Err
	}
	_, err := r.l.db.ExecContext(ctx,
		`INSERT INTO task_outcomes (run_id, category, month, cap, fetched, written, error, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, o.Category, o.Month, o.Cap, o.Fetched, o.Written, errText,
		now())
	if err != nil {
		return fmt.Errorf("recording task %s %s: %w", o.Category, o.Month, err)
	}
	return nil
}

// Finish marks the run as complete.
func (r *Run) Finish(ctx context.Context) error {
	_, err := r.l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ? WHERE id = ?`,
		now(), r.ID)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", r.ID, err)
	}
	return nil
}

// RunInfo summarizes a past run.
type RunInfo struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	OutputPath string
	Tasks      int
	Completed  int
	Failed     int
	Papers     int
}

// Finished reports whether the run reached its end.
func (r RunInfo) Finished() bool { return !r.FinishedAt.IsZero() }

// Runs returns up to limit runs, most recent first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT r.id, r.started_at, COALESCE(r.finished_at, ''), COALESCE(r.output_path, ''), r.task_count,
		       COUNT(t.rowid),
		       COALESCE(SUM(CASE WHEN t.error IS NOT NULL THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(t.written), 0)
		FROM runs r
		LEFT JOIN task_outcomes t ON t.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var ri RunInfo
		var started, finished string
		if err := rows.Scan(&ri.ID, &started, &finished, &ri.OutputPath, &ri.Tasks,
			&ri.Completed, &ri.Failed, &ri.Papers); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		ri.StartedAt, _ = time.Parse(timeLayout, started)
		if finished != "" {
			ri.FinishedAt, _ = time.Parse(timeLayout, finished)
		}
		out = append(out, ri)
	}
	return out, rows.Err()
}

// Outcomes returns the task outcomes of one run in completion order.
func (l *Ledger) Outcomes(ctx context.Context, runID string) ([]TaskOutcome, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT category, month, cap, fetched, written, COALESCE(error, '')
		FROM task_outcomes WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	var out []TaskOutcome
	for rows.Next() {
		var o TaskOutcome
		if err := rows.Scan(&o.Category, &o.Month, &o.Cap, &o.Fetched, &o.Written, &o.Err); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
