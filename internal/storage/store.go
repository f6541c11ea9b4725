package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/roman-kulish/gait-fusion/internal/detect"
)

// ErrNotFound is returned when a trial or run does not exist.
var ErrNotFound = errors.New("storage: not found")

// Store provides an interface for persisting processed trials, detection runs, their events and
// their metrics. All operations that write to the database are atomic.
type Store interface {
	// SaveTrial inserts the trial or replaces the stored one with the same ID.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - trial: Trial summary, ID must be set
	//
	// Returns:
	//   - error: If storage fails or context is cancelled
	SaveTrial(ctx context.Context, trial *Trial) error

	// Trial retrieves a trial by its ID. Returns ErrNotFound when it does not exist.
	Trial(ctx context.Context, id string) (*Trial, error)

	// Trials returns all trials ordered by ID.
	Trials(ctx context.Context) ([]*Trial, error)

	// SaveRun stores a detector run, its events and its metrics in one transaction.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - run: Output of one detector over one trial; the trial must be saved first
	//   - metrics: Optional named values, e.g. accuracy against ground truth
	//
	// Returns:
	//   - runID: Unique identifier of the stored run
	//   - error: If storage fails or context is cancelled
	SaveRun(ctx context.Context, run detect.Run, metrics map[string]float64) (runID uuid.UUID, err error)

	// Run retrieves a run with its metrics. Returns ErrNotFound when it does not exist.
	Run(ctx context.Context, id uuid.UUID) (*Run, error)

	// Runs returns the runs of a trial, newest first. An empty trial ID selects every run.
	Runs(ctx context.Context, trialID string) ([]*Run, error)

	// DeleteRuns removes every run of the trial together with its events and metrics.
	DeleteRuns(ctx context.Context, trialID string) (int64, error)

	// ReadEvents creates an iterator over the events of a run. The reader must be closed after use.
	ReadEvents(ctx context.Context, runID uuid.UUID, opts ...ReaderOption) (EventReader, error)

	// Close releases all database connections and resources. It is safe to call Close multiple
	// times.
	Close() error
}
