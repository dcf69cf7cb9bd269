package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested run does not exist.
var ErrNotFound = errors.New("ingest run not found")

// RunStatus mirrors the ingest_runs.status column.
type RunStatus string

// Run statuses persisted in ingest_runs.status.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunDryRun    RunStatus = "dry_run"
	RunFailed    RunStatus = "failed"
)

// RunCounters holds additive totals for one ingest run.
type RunCounters struct {
	URLs     int64
	Articles int64
	Rejected int64
	Failed   int64
	Bytes    int64
	Chunks   int64
}

// IsZero reports whether no counter moved.
func (c RunCounters) IsZero() bool {
	return c == RunCounters{}
}

// Run is one row of the ingest ledger.
type Run struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     RunStatus
	Counters   RunCounters
	// ErrorMessage is set for failed runs.
	ErrorMessage *string
}

// RunRepository persists ingest-run progress.
type RunRepository interface {
	// StartRun idempotently records a running run.
	StartRun(ctx context.Context, runID uuid.UUID, startedAt time.Time) error
	// AddCounters applies deltas to the run totals.
	AddCounters(ctx context.Context, runID uuid.UUID, delta RunCounters, at time.Time) error
	// FinishRun sets the terminal status.
	FinishRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time, status RunStatus, errMsg *string) error
	// GetRun loads a run or returns ErrNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (Run, error)
	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}
