// Package history records regression runs, their per-input outcomes and tree
// comparisons in a SQLite database so results can be followed across runs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/regress/internal/compare"
	"github.com/harrison/regress/internal/models"
)

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one stored regression run.
type RunRecord struct {
	ID         int64
	RunID      string
	DataRoot   string
	OutputRoot string
	StartedAt  time.Time
	Duration   time.Duration
	Workers    int
	Total      int
	Passed     int
	Failed     int
}

// JobRecord is one stored job outcome.
type JobRecord struct {
	ID         int64
	RunID      string
	Category   string
	InputPath  string
	Executable string
	Version    string
	Status     string
	ExitCode   int
	Error      string
	Duration   time.Duration
	LogPath    string
	StartedAt  time.Time // Start of the run the job belonged to
}

// ComparisonRecord is one stored tree comparison.
type ComparisonRecord struct {
	ID           int64
	RunID        string // Empty for standalone comparisons
	Left         string
	Right        string
	Verdict      string
	Differing    int
	LeftOnly     int
	RightOnly    int
	FailingPairs int
	Orphans      int
	Duration     time.Duration
	ComparedAt   time.Time
}

// Store manages the SQLite run history database
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new Store instance and initializes the database
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	// busy_timeout first so the remaining pragmas wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores a run summary and every job outcome in one transaction.
func (s *Store) RecordRun(ctx context.Context, summary *models.RunSummary) error {
	if summary == nil || summary.RunID == "" {
		return fmt.Errorf("record run: missing run id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(run_id, data_root, output_root, started_at, duration_ms, workers, total, passed, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID,
		summary.DataRoot,
		summary.OutputRoot,
		summary.StartedAt.UTC(),
		summary.Duration.Milliseconds(),
		summary.Workers,
		summary.Total,
		summary.Passed,
		summary.Failed,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO job_results
		(run_id, category, input_path, executable, version, status, exit_code, error_message, duration_ms, log_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare job insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range summary.Outcomes {
		if _, err := stmt.ExecContext(ctx,
			summary.RunID,
			o.Category,
			o.InputPath,
			o.Executable,
			nullString(o.Version),
			o.Status,
			o.ExitCode,
			nullString(o.Error),
			o.Duration.Milliseconds(),
			nullString(o.LogPath),
		); err != nil {
			return fmt.Errorf("insert job result for %s: %w", o.InputPath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// RecordComparison stores a comparison report. runID may be empty.
func (s *Store) RecordComparison(ctx context.Context, runID string, report *compare.Report) (int64, error) {
	if report == nil {
		return 0, fmt.Errorf("record comparison: nil report")
	}
	result, err := s.db.ExecContext(ctx, `INSERT INTO comparisons
		(run_id, left_path, right_path, verdict, differing, left_only, right_only, failing_pairs, orphans, duration_ms, compared_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullString(runID),
		report.Left,
		report.Right,
		report.Verdict.String(),
		report.Summary.Differing,
		report.Summary.LeftOnly,
		report.Summary.RightOnly,
		report.FailingPairs,
		len(report.Orphans),
		report.Duration.Milliseconds(),
		time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert comparison: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	return id, nil
}

const runColumns = `id, run_id, data_root, output_root, started_at, duration_ms, workers, total, passed, failed`

func scanRun(row interface{ Scan(...any) error }) (*RunRecord, error) {
	r := &RunRecord{}
	var durationMs int64
	if err := row.Scan(&r.ID, &r.RunID, &r.DataRoot, &r.OutputRoot, &r.StartedAt,
		&durationMs, &r.Workers, &r.Total, &r.Passed, &r.Failed); err != nil {
		return nil, err
	}
	r.Duration = time.Duration(durationMs) * time.Millisecond
	return r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// GetRun returns one run, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	return r, nil
}

func (s *Store) queryJobs(ctx context.Context, where string, args ...any) ([]*JobRecord, error) {
	query := `SELECT j.id, j.run_id, j.category, j.input_path, j.executable, j.version, j.status,
		j.exit_code, j.error_message, j.duration_ms, j.log_path, r.started_at
		FROM job_results j JOIN runs r ON r.run_id = j.run_id
		WHERE ` + where

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query job results: %w", err)
	}
	defer rows.Close()

	var jobs []*JobRecord
	for rows.Next() {
		j := &JobRecord{}
		var version, errMsg, logPath sql.NullString
		var durationMs int64
		if err := rows.Scan(&j.ID, &j.RunID, &j.Category, &j.InputPath, &j.Executable, &version,
			&j.Status, &j.ExitCode, &errMsg, &durationMs, &logPath, &j.StartedAt); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		if version.Valid {
			j.Version = version.String
		}
		if errMsg.Valid {
			j.Error = errMsg.String
		}
		if logPath.Valid {
			j.LogPath = logPath.String
		}
		j.Duration = time.Duration(durationMs) * time.Millisecond
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return jobs, nil
}

// GetJobResults returns a run's job outcomes in the order they were queued.
func (s *Store) GetJobResults(ctx context.Context, runID string) ([]*JobRecord, error) {
	return s.queryJobs(ctx, `j.run_id = ? ORDER BY j.id ASC`, runID)
}

// GetInputHistory returns the outcomes of one input across runs, most recent
// first. limit <= 0 returns all.
func (s *Store) GetInputHistory(ctx context.Context, inputPath string, limit int) ([]*JobRecord, error) {
	where := `j.input_path = ? ORDER BY r.started_at DESC, j.id DESC`
	args := []any{inputPath}
	if limit > 0 {
		where += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryJobs(ctx, where, args...)
}

// ListComparisons returns comparisons most recent first. An empty runID
// returns every comparison.
func (s *Store) ListComparisons(ctx context.Context, runID string) ([]*ComparisonRecord, error) {
	query := `SELECT id, run_id, left_path, right_path, verdict, differing, left_only, right_only,
		failing_pairs, orphans, duration_ms, compared_at FROM comparisons`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY compared_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query comparisons: %w", err)
	}
	defer rows.Close()

	var out []*ComparisonRecord
	for rows.Next() {
		c := &ComparisonRecord{}
		var run sql.NullString
		var durationMs int64
		if err := rows.Scan(&c.ID, &run, &c.Left, &c.Right, &c.Verdict, &c.Differing, &c.LeftOnly,
			&c.RightOnly, &c.FailingPairs, &c.Orphans, &durationMs, &c.ComparedAt); err != nil {
			return nil, fmt.Errorf("scan comparison row: %w", err)
		}
		if run.Valid {
			c.RunID = run.String
		}
		c.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comparison rows: %w", err)
	}
	return out, nil
}

// CleanupOldRuns removes runs started more than keepDays ago together with
// their job results and comparisons. Returns the number of deleted runs.
func (s *Store) CleanupOldRuns(ctx context.Context, keepDays int) (int64, error) {
	if keepDays <= 0 {
		return 0, nil // 0 or negative means keep forever
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -keepDays)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	old := `SELECT run_id FROM runs WHERE started_at < ?`
	if _, err := tx.ExecContext(ctx, `DELETE FROM job_results WHERE run_id IN (`+old+`)`, cutoff); err != nil {
		return 0, fmt.Errorf("cleanup job results: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM comparisons WHERE run_id IN (`+old+`)`, cutoff); err != nil {
		return 0, fmt.Errorf("cleanup comparisons: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup runs: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cleanup: %w", err)
	}
	return deleted, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
