package interfaces

import (
	"context"

	"github.com/seralab/tunex/internal/models"
)

// Controller turns latency telemetry into (concurrency, batch_size)
// recommendations. Implementations are pure over internal state and
// never perform I/O.
type Controller interface {
	Name() string
	Update(in models.ControllerInput) models.Recommendation
}

// Worker runs one job to completion. Start must not block; Wait blocks
// until the worker finishes. Cancel requests termination and may be
// escalated by the caller after a grace period.
type Worker interface {
	Start(ctx context.Context) error
	Cancel()
	Wait() WorkerResult
}

// WorkerResult is the terminal outcome of one worker.
type WorkerResult struct {
	Err       error
	ExitCode  int
	Cancelled bool
}

// WorkerFactory builds the worker for a queued job.
type WorkerFactory func(job *models.Job) (Worker, error)
