// Package interfaces defines service and storage contracts for Tunex
package interfaces

import "github.com/seralab/tunex/internal/models"

// JobStore is the durable job state store. It exclusively owns Job
// entries; every accessor returns deep copies.
type JobStore interface {
	// Get retrieves a job by id.
	Get(id string) (*models.Job, error)

	// List returns all jobs, newest first.
	List() ([]*models.Job, error)

	// Upsert writes a job snapshot and persists the full document.
	Upsert(job *models.Job) error

	// ReconcileOnBoot rewrites RUNNING entries whose pid is dead to
	// ABORTED and returns the reaped jobs. onReap runs per zombie
	// before the rewrite is persisted, so callers can journal first.
	ReconcileOnBoot(pidAlive func(pid int) bool, onReap func(job *models.Job)) ([]*models.Job, error)
}

// EventLog is the append-only per-run audit trail.
type EventLog interface {
	// Append journals one event for the run.
	Append(runID string, typ models.EventType, payload map[string]interface{}) error

	// ReadAll returns every event recorded for the run, in append order.
	ReadAll(runID string) ([]models.Event, error)
}

// BanditStore persists the bandit state document.
type BanditStore interface {
	Load() (*models.BanditState, error)
	Save(state *models.BanditState) error
}

// PolicyStore persists the SLA policy document.
type PolicyStore interface {
	Load() (models.SLAPolicy, error)
	Save(policy models.SLAPolicy) error
}
