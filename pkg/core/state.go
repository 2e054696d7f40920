package core

import (
	"context"
	"time"
)

// Store defines the interface for the run ledger.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	// Run operations
	CreateRun(ctx context.Context, window Window) (*Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// Stage run operations
	RecordStageRun(ctx context.Context, sr *StageRun) error
	ListStageRuns(ctx context.Context, runID string) ([]*StageRun, error)

	// Validation check operations
	RecordChecks(ctx context.Context, runID string, checks []CheckResult) error
	ListChecks(ctx context.Context, runID string) ([]CheckResult, error)
}

// RunStatus represents the status of a pipeline run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents one full warehouse rebuild.
type Run struct {
	ID          string
	Status      RunStatus
	WindowStart time.Time
	WindowEnd   time.Time
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Phase groups stages that share an ordering level in the build graph.
type Phase string

// Build phases, in execution order.
const (
	PhaseDimension Phase = "dimension"
	PhaseFact      Phase = "fact"
	PhaseValidate  Phase = "validate"
)

// StageStatus represents the outcome of a single stage.
type StageStatus string

// Stage statuses.
const (
	StageStatusSuccess StageStatus = "success"
	StageStatusFailed  StageStatus = "failed"
	StageStatusSkipped StageStatus = "skipped"
)

// StageRun records the execution of one stage within a run.
type StageRun struct {
	ID         string
	RunID      string
	Stage      string
	Phase      Phase
	Status     StageStatus
	RowsIn     int64
	RowsOut    int64
	DurationMS int64
	Error      string
}
