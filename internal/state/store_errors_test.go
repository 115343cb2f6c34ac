package state

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStore wires a sqlmock connection into a store for error-path tests.
func mockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &SQLiteStore{db: db, path: "mock"}, mock
}

func TestSQLiteStore_CreateRun_DBError(t *testing.T) {
	store, mock := mockStore(t)
	mock.ExpectExec("INSERT INTO runs").WillReturnError(assert.AnError)

	run, err := store.CreateRun("dev")
	require.Error(t, err)
	assert.Nil(t, run)
	assert.Contains(t, err.Error(), "failed to create run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_CompleteRun_DBError(t *testing.T) {
	store, mock := mockStore(t)
	mock.ExpectExec("UPDATE runs").WillReturnError(assert.AnError)

	err := store.CompleteRun("some-id", RunStatusCompleted, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to complete run")
}

func TestSQLiteStore_RecordStepRun_DBError(t *testing.T) {
	store, mock := mockStore(t)
	mock.ExpectExec("INSERT INTO step_runs").WillReturnError(assert.AnError)

	step, err := store.RecordStepRun("run-id", "frontend", StepKindBuild, []string{"--release"})
	require.Error(t, err)
	assert.Nil(t, step)
	assert.Contains(t, err.Error(), "failed to record step run")
}

func TestSQLiteStore_FinishStepRun_NoRows(t *testing.T) {
	store, mock := mockStore(t)
	mock.ExpectExec("UPDATE step_runs").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.FinishStepRun("missing-id", StepStatusSuccess, 0, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step run not found")
}

func TestSQLiteStore_ListRuns_DBError(t *testing.T) {
	store, mock := mockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM runs").WillReturnError(assert.AnError)

	runs, err := store.ListRuns(10)
	require.Error(t, err)
	assert.Nil(t, runs)
	assert.Contains(t, err.Error(), "failed to list runs")
}

func TestSQLiteStore_GetStepRunsForRun_BadArgs(t *testing.T) {
	store, mock := mockStore(t)
	rows := sqlmock.NewRows([]string{
		"id", "run_id", "name", "kind", "status", "args",
		"exit_code", "started_at", "completed_at", "duration_ms", "error",
	}).AddRow("id", "run-id", "frontend", "build", "success", "not json", 0, nil, nil, nil, nil)
	mock.ExpectQuery("SELECT (.+) FROM step_runs").WillReturnRows(rows)

	steps, err := store.GetStepRunsForRun("run-id")
	require.Error(t, err)
	assert.Nil(t, steps)
	assert.Contains(t, err.Error(), "failed to decode args")
}
