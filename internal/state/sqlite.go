package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store instance. Call Open before use.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{}
}

// Open opens a connection to the SQLite database, creating parent
// directories as needed. Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	var dsn string
	if path == ":memory:" {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// A single connection keeps in-memory databases coherent; the pool
	// would otherwise hand each connection a fresh empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// --- Run operations ---

// CreateRun creates a new pipeline run in the running state.
func (s *SQLiteStore) CreateRun(env string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:          generateID(),
		Environment: env,
		Status:      RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, environment, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Environment, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run, err := scanRun(s.db.QueryRow(
		`SELECT id, environment, status, started_at, completed_at, error FROM runs WHERE id = ?`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(id string, status RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	result, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		status, now, errorPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// GetLatestRun retrieves the most recent run for an environment.
// Returns nil without error when no runs exist yet.
func (s *SQLiteStore) GetLatestRun(env string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run, err := scanRun(s.db.QueryRow(
		`SELECT id, environment, status, started_at, completed_at, error
		 FROM runs WHERE environment = ? ORDER BY started_at DESC LIMIT 1`,
		env,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs, newest first, up to limit.
func (s *SQLiteStore) ListRuns(limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, environment, status, started_at, completed_at, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// --- Step operations ---

// RecordStepRun registers a pending step for a run. Args are stored
// verbatim so history shows exactly what each entrypoint received.
func (s *SQLiteStore) RecordStepRun(runID, name string, kind StepKind, args []string) (*StepRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode args: %w", err)
	}

	step := &StepRun{
		ID:     generateID(),
		RunID:  runID,
		Name:   name,
		Kind:   kind,
		Status: StepStatusPending,
		Args:   args,
	}

	_, err = s.db.Exec(
		`INSERT INTO step_runs (id, run_id, name, kind, status, args) VALUES (?, ?, ?, ?, ?, ?)`,
		step.ID, step.RunID, step.Name, step.Kind, step.Status, string(argsJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record step run: %w", err)
	}
	return step, nil
}

// StartStepRun marks a pending step as running.
func (s *SQLiteStore) StartStepRun(id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	result, err := s.db.Exec(
		`UPDATE step_runs SET status = ?, started_at = ? WHERE id = ?`,
		StepStatusRunning, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to start step run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("step run not found: %s", id)
	}
	return nil
}

// FinishStepRun records the terminal status of a step. Duration is
// computed from started_at when the step actually ran.
func (s *SQLiteStore) FinishStepRun(id string, status StepStatus, exitCode int, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	result, err := s.db.Exec(
		`UPDATE step_runs SET
			status = ?,
			exit_code = ?,
			completed_at = ?,
			duration_ms = CASE WHEN started_at IS NOT NULL
				THEN CAST((julianday(?) - julianday(started_at)) * 86400000 AS INTEGER)
				ELSE NULL END,
			error = ?
		 WHERE id = ?`,
		status, exitCode, now, now, errorPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish step run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("step run not found: %s", id)
	}
	return nil
}

// GetStepRunsForRun retrieves all steps of a run in insertion order.
func (s *SQLiteStore) GetStepRunsForRun(runID string) ([]*StepRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, name, kind, status, args, exit_code, started_at, completed_at, duration_ms, error
		 FROM step_runs WHERE run_id = ? ORDER BY rowid`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get step runs: %w", err)
	}
	defer rows.Close()

	var steps []*StepRun
	for rows.Next() {
		step, err := scanStepRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step run: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get step runs: %w", err)
	}
	return steps, nil
}

// --- Row scanning ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := row.Scan(&run.ID, &run.Environment, &run.Status, &run.StartedAt, &completedAt, &errMsg)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return run, nil
}

func scanStepRun(row rowScanner) (*StepRun, error) {
	step := &StepRun{}
	var argsJSON sql.NullString
	var exitCode sql.NullInt64
	var startedAt, completedAt sql.NullTime
	var durationMS sql.NullInt64
	var errMsg sql.NullString

	err := row.Scan(&step.ID, &step.RunID, &step.Name, &step.Kind, &step.Status,
		&argsJSON, &exitCode, &startedAt, &completedAt, &durationMS, &errMsg)
	if err != nil {
		return nil, err
	}

	if argsJSON.Valid && argsJSON.String != "" {
		if err := json.Unmarshal([]byte(argsJSON.String), &step.Args); err != nil {
			return nil, fmt.Errorf("failed to decode args: %w", err)
		}
	}
	if exitCode.Valid {
		step.ExitCode = int(exitCode.Int64)
	}
	if startedAt.Valid {
		step.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		step.CompletedAt = &completedAt.Time
	}
	if durationMS.Valid {
		step.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	}
	if errMsg.Valid {
		step.Error = errMsg.String
	}
	return step, nil
}
