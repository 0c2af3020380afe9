package storages

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var ErrRunNotFound = errors.New("run not found")

type RunRecord struct {
	ID              string
	CreatedAt       time.Time
	Query           string
	ControllerModel string
	DelegateModel   string
	Features        []string
	Status          string
	Answer          string
	HasAnswer       bool
	Steps           int
	ControllerIn    int
	ControllerOut   int
	DelegateIn      int
	DelegateOut     int
	DelegateCalls   int
	Elapsed         time.Duration
	LogDir          string
	Error           string
}

// RunStore keeps one row per finished run.
type RunStore struct {
	db *sql.DB
}

func OpenRunStore(ctx context.Context, path string) (*RunStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	s := &RunStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return s, nil
}

func (s *RunStore) Close() error {
	return s.db.Close()
}

func (s *RunStore) migrate(ctx context.Context) error {
	return WithTx(ctx, s.db, func(tx Tx) error {
		_, err := tx.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			query TEXT NOT NULL,
			controller_model TEXT NOT NULL,
			delegate_model TEXT NOT NULL,
			features TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL,
			answer TEXT NOT NULL DEFAULT '',
			has_answer INTEGER NOT NULL DEFAULT 0,
			steps INTEGER NOT NULL DEFAULT 0,
			controller_in INTEGER NOT NULL DEFAULT 0,
			controller_out INTEGER NOT NULL DEFAULT 0,
			delegate_in INTEGER NOT NULL DEFAULT 0,
			delegate_out INTEGER NOT NULL DEFAULT 0,
			delegate_calls INTEGER NOT NULL DEFAULT 0,
			elapsed_ms INTEGER NOT NULL DEFAULT 0,
			log_dir TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
		CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
		`)
		return err
	})
}

func (s *RunStore) Insert(ctx context.Context, run RunRecord) error {
	features, err := json.Marshal(run.Features)
	if err != nil {
		return err
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	return WithTx(ctx, s.db, func(tx Tx) error {
		_, err := tx.Exec(ctx, `
		INSERT INTO runs (
			id, created_at, query, controller_model, delegate_model, features,
			status, answer, has_answer, steps,
			controller_in, controller_out, delegate_in, delegate_out, delegate_calls,
			elapsed_ms, log_dir, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID, run.CreatedAt.UnixMilli(), run.Query, run.ControllerModel, run.DelegateModel, string(features),
			run.Status, run.Answer, run.HasAnswer, run.Steps,
			run.ControllerIn, run.ControllerOut, run.DelegateIn, run.DelegateOut, run.DelegateCalls,
			run.Elapsed.Milliseconds(), run.LogDir, run.Error,
		)
		if err != nil {
			return fmt.Errorf("insert run %s: %w", run.ID, err)
		}
		return nil
	})
}

const selectRuns = `
SELECT
	id, created_at, query, controller_model, delegate_model, features,
	status, answer, has_answer, steps,
	controller_in, controller_out, delegate_in, delegate_out, delegate_calls,
	elapsed_ms, log_dir, error
FROM runs
`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (run RunRecord, err error) {
	var createdAt, elapsedMS int64
	var features string
	if err = row.Scan(
		&run.ID, &createdAt, &run.Query, &run.ControllerModel, &run.DelegateModel, &features,
		&run.Status, &run.Answer, &run.HasAnswer, &run.Steps,
		&run.ControllerIn, &run.ControllerOut, &run.DelegateIn, &run.DelegateOut, &run.DelegateCalls,
		&elapsedMS, &run.LogDir, &run.Error,
	); err != nil {
		return
	}
	run.CreatedAt = time.UnixMilli(createdAt)
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	if err = json.Unmarshal([]byte(features), &run.Features); err != nil {
		return
	}
	return
}

func (s *RunStore) Get(ctx context.Context, id string) (run RunRecord, err error) {
	err = WithTx(ctx, s.db, func(tx Tx) error {
		row, err := tx.QueryRow(ctx, selectRuns+`WHERE id = ?`, id)
		if err != nil {
			return err
		}
		run, err = scanRun(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return err
	})
	return
}

// List returns the most recent runs first. A non-positive limit lists all.
func (s *RunStore) List(ctx context.Context, limit int) (runs []RunRecord, err error) {
	if limit <= 0 {
		limit = -1
	}
	err = WithTx(ctx, s.db, func(tx Tx) error {
		rows, err := tx.Query(ctx, selectRuns+`ORDER BY created_at DESC, id LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			run, err := scanRun(rows)
			if err != nil {
				return err
			}
			runs = append(runs, run)
		}
		return rows.Err()
	})
	return
}
