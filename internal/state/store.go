// Package state tracks pipeline runs in SQLite. Every run records its
// build and launch steps with their status, exit code, and timing, so
// history survives across invocations.
package state

import (
	"time"
)

// RunStatus is the lifecycle status of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// StepStatus is the lifecycle status of a single step within a run.
type StepStatus string

const (
	StepStatusPending StepStatus = "pending"
	StepStatusRunning StepStatus = "running"
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// StepKind distinguishes build steps from the final launch.
type StepKind string

const (
	StepKindBuild  StepKind = "build"
	StepKindLaunch StepKind = "launch"
)

// Run is one orchestrator invocation.
type Run struct {
	ID          string     `json:"id"`
	Environment string     `json:"environment"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// StepRun is one step execution within a run. Args holds the argument
// list the step's entrypoint was invoked with, verbatim. ExitCode is
// meaningful only when Status is success or failed.
type StepRun struct {
	ID          string        `json:"id"`
	RunID       string        `json:"run_id"`
	Name        string        `json:"name"`
	Kind        StepKind      `json:"kind"`
	Status      StepStatus    `json:"status"`
	Args        []string      `json:"args,omitempty"`
	ExitCode    int           `json:"exit_code"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration_ms"`
	Error       string        `json:"error,omitempty"`
}

// Store persists runs and their steps.
type Store interface {
	// Open opens the backing database, creating it if needed.
	// Use ":memory:" for an in-memory database.
	Open(path string) error
	Close() error

	// Migrate brings the schema up to date.
	Migrate() error

	CreateRun(env string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetLatestRun(env string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	// RecordStepRun registers a pending step for a run.
	RecordStepRun(runID, name string, kind StepKind, args []string) (*StepRun, error)
	// StartStepRun marks a pending step as running.
	StartStepRun(id string) error
	// FinishStepRun records the terminal status of a step.
	FinishStepRun(id string, status StepStatus, exitCode int, errMsg string) error
	GetStepRunsForRun(runID string) ([]*StepRun, error)
}
