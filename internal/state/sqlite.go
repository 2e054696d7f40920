package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/mktwh/pkg/core"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements core.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ core.Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// NewSQLiteStoreWithDB wraps an existing connection.
func NewSQLiteStoreWithDB(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	s := NewSQLiteStore(logger)
	s.db = db
	return s
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("opened run ledger", slog.String("path", path))
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema brings the schema up to date.
func (s *SQLiteStore) InitSchema() error {
	if err := s.Migrate(); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func generateID() string {
	return uuid.New().String()
}

func (s *SQLiteStore) opened() error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	return nil
}

// --- Run operations ---

// CreateRun records the start of a build over window.
func (s *SQLiteStore) CreateRun(ctx context.Context, window core.Window) (*core.Run, error) {
	if err := s.opened(); err != nil {
		return nil, err
	}

	run := &core.Run{
		ID:          generateID(),
		Status:      core.RunStatusRunning,
		WindowStart: window.Start,
		WindowEnd:   window.End,
		StartedAt:   time.Now().UTC(),
	}

	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("window", window.String()))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, window_start, window_end, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(run.Status),
		run.WindowStart.Format(core.DateLayout), run.WindowEnd.Format(core.DateLayout),
		run.StartedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*core.Run, error) {
	if err := s.opened(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, window_start, window_end, started_at, completed_at, error FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status core.RunStatus, errMsg string) error {
	if err := s.opened(); err != nil {
		return err
	}

	var errVal sql.NullString
	if errMsg != "" {
		errVal = sql.NullString{String: errMsg, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(timeLayout), errVal, id)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// ListRuns retrieves the most recent runs up to the given limit.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*core.Run, error) {
	if err := s.opened(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, window_start, window_end, started_at, completed_at, error
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*core.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*core.Run, error) {
	var (
		run                     core.Run
		status                  string
		winStart, winEnd, start string
		completed, errMsg       sql.NullString
	)
	if err := sc.Scan(&run.ID, &status, &winStart, &winEnd, &start, &completed, &errMsg); err != nil {
		return nil, err
	}
	run.Status = core.RunStatus(status)

	var err error
	if run.WindowStart, err = time.Parse(core.DateLayout, winStart); err != nil {
		return nil, fmt.Errorf("run %s: window_start: %w", run.ID, err)
	}
	if run.WindowEnd, err = time.Parse(core.DateLayout, winEnd); err != nil {
		return nil, fmt.Errorf("run %s: window_end: %w", run.ID, err)
	}
	if run.StartedAt, err = time.Parse(timeLayout, start); err != nil {
		return nil, fmt.Errorf("run %s: started_at: %w", run.ID, err)
	}
	if completed.Valid {
		t, err := time.Parse(timeLayout, completed.String)
		if err != nil {
			return nil, fmt.Errorf("run %s: completed_at: %w", run.ID, err)
		}
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	return &run, nil
}

// --- Stage run operations ---

// RecordStageRun appends a stage outcome to its run. An empty ID is assigned.
func (s *SQLiteStore) RecordStageRun(ctx context.Context, sr *core.StageRun) error {
	if err := s.opened(); err != nil {
		return err
	}
	if sr.ID == "" {
		sr.ID = generateID()
	}

	var errVal sql.NullString
	if sr.Error != "" {
		errVal = sql.NullString{String: sr.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_runs (id, run_id, seq, stage, phase, status, rows_in, rows_out, duration_ms, error)
		 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM stage_runs WHERE run_id = ?), ?, ?, ?, ?, ?, ?, ?)`,
		sr.ID, sr.RunID, sr.RunID, sr.Stage, string(sr.Phase), string(sr.Status),
		sr.RowsIn, sr.RowsOut, sr.DurationMS, errVal)
	if err != nil {
		return fmt.Errorf("failed to record stage run %s: %w", sr.Stage, err)
	}
	return nil
}

// ListStageRuns returns a run's stages in execution order.
func (s *SQLiteStore) ListStageRuns(ctx context.Context, runID string) ([]*core.StageRun, error) {
	if err := s.opened(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, stage, phase, status, rows_in, rows_out, duration_ms, error
		 FROM stage_runs WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage runs: %w", err)
	}
	defer rows.Close()

	var out []*core.StageRun
	for rows.Next() {
		var (
			sr            core.StageRun
			phase, status string
			errMsg        sql.NullString
		)
		if err := rows.Scan(&sr.ID, &sr.RunID, &sr.Stage, &phase, &status,
			&sr.RowsIn, &sr.RowsOut, &sr.DurationMS, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan stage run: %w", err)
		}
		sr.Phase = core.Phase(phase)
		sr.Status = core.StageStatus(status)
		sr.Error = errMsg.String
		out = append(out, &sr)
	}
	return out, rows.Err()
}

// --- Validation check operations ---

// RecordChecks replaces the validation matrix stored for a run.
func (s *SQLiteStore) RecordChecks(ctx context.Context, runID string, checks []core.CheckResult) error {
	if err := s.opened(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM check_results WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear checks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO check_results (run_id, seq, table_name, check_name, status, observed, expected, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare check insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range checks {
		if _, err := stmt.ExecContext(ctx, runID, i, c.Table, c.Check, string(c.Status),
			c.Observed, c.Expected, c.Detail); err != nil {
			return fmt.Errorf("failed to record check %s/%s: %w", c.Table, c.Check, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checks: %w", err)
	}
	return nil
}

// ListChecks returns a run's validation matrix in the order it was recorded.
func (s *SQLiteStore) ListChecks(ctx context.Context, runID string) ([]core.CheckResult, error) {
	if err := s.opened(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name, check_name, status, observed, expected, detail
		 FROM check_results WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checks: %w", err)
	}
	defer rows.Close()

	var out []core.CheckResult
	for rows.Next() {
		var (
			c                          core.CheckResult
			status                     string
			observed, expected, detail sql.NullString
		)
		if err := rows.Scan(&c.Table, &c.Check, &status, &observed, &expected, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan check: %w", err)
		}
		c.Status = core.CheckStatus(status)
		c.Observed = observed.String
		c.Expected = expected.String
		c.Detail = detail.String
		out = append(out, c)
	}
	return out, rows.Err()
}
