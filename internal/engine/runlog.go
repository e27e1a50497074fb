package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// RunStatus is the outcome of a pipeline run.
type RunStatus string

const (
	RunDone   RunStatus = "done"
	RunFailed RunStatus = "failed"
)

// RunRecord is the metadata journaled for one pipeline run. Generated
// artifacts are never stored.
type RunRecord struct {
	ID         string    `json:"id"`
	Source     string    `json:"source,omitempty"`
	Status     RunStatus `json:"status"`
	Stage      string    `json:"stage,omitempty"` // failing stage
	Error      string    `json:"error,omitempty"`
	Chars      int       `json:"chars"`
	Chunks     int       `json:"chunks"`
	LLMCalls   int       `json:"llm_calls"`
	StartedAt  string    `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// RunLog is a SQLite journal of pipeline runs. Safe for concurrent use.
type RunLog struct {
	db *sql.DB
}

// DefaultRunLogPath returns ~/.go_notes/runs.db.
func DefaultRunLogPath() string {
	return filepath.Join(os.Getenv("HOME"), ".go_notes", "runs.db")
}

// OpenRunLog opens (or creates) the run log database at path.
func OpenRunLog(path string) (*RunLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("runlog: mkdir %s: %w", filepath.Dir(path), err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("runlog: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initRunLogSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("runlog: init schema: %w", err)
	}
	return &RunLog{db: db}, nil
}

func initRunLogSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		source      TEXT,
		status      TEXT NOT NULL,
		stage       TEXT,
		error       TEXT,
		chars       INTEGER NOT NULL DEFAULT 0,
		chunks      INTEGER NOT NULL DEFAULT 0,
		llm_calls   INTEGER NOT NULL DEFAULT 0,
		started_at  TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	)`)
	return err
}

// Close releases the database.
func (l *RunLog) Close() error { return l.db.Close() }

// Record stores rec. Error text is capped so a huge upstream message
// cannot bloat the journal.
func (l *RunLog) Record(ctx context.Context, rec RunRecord) error {
	if rec.ID == "" {
		return errors.New("runlog: record without id")
	}
	if rec.StartedAt == "" {
		rec.StartedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, source, status, stage, error, chars, chunks, llm_calls, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Source, string(rec.Status), rec.Stage, TruncateRunes(rec.Error, 500, "..."),
		rec.Chars, rec.Chunks, rec.LLMCalls, rec.StartedAt, rec.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("runlog: insert: %w", err)
	}
	return nil
}

// List returns the most recent runs, optionally filtered by status.
func (l *RunLog) List(ctx context.Context, status string, limit int) ([]RunRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var (
		rows *sql.Rows
		err  error
	)
	const cols = `id, source, status, stage, error, chars, chunks, llm_calls, started_at, duration_ms`
	if status != "" {
		status = strings.ToLower(status)
		if status != string(RunDone) && status != string(RunFailed) {
			return nil, fmt.Errorf("runlog: invalid status %q (valid: done, failed)", status)
		}
		rows, err = l.db.QueryContext(ctx,
			`SELECT `+cols+` FROM runs WHERE status = ? ORDER BY started_at DESC, rowid DESC LIMIT ?`,
			status, limit)
	} else {
		rows, err = l.db.QueryContext(ctx,
			`SELECT `+cols+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`,
			limit)
	}
	if err != nil {
		return nil, fmt.Errorf("runlog: query: %w", err)
	}
	defer rows.Close()

	out := []RunRecord{}
	for rows.Next() {
		var (
			r                         RunRecord
			st                        string
			source, stage, errMessage sql.NullString
		)
		if err := rows.Scan(&r.ID, &source, &st, &stage, &errMessage,
			&r.Chars, &r.Chunks, &r.LLMCalls, &r.StartedAt, &r.DurationMS); err != nil {
			return nil, fmt.Errorf("runlog: scan: %w", err)
		}
		r.Status = RunStatus(st)
		r.Source, r.Stage, r.Error = source.String, stage.String, errMessage.String
		out = append(out, r)
	}
	return out, rows.Err()
}
