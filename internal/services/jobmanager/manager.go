// Package jobmanager owns the experiment job lifecycle: idempotent
// submission, a single-concurrency worker loop, cancellation with
// escalation, and zombie reaping on boot.
package jobmanager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/interfaces"
	"github.com/seralab/tunex/internal/models"
)

// Manager serializes all job execution through one worker loop. Job
// status transitions are journaled to the event log before the store
// is updated, so the audit trail never lags the visible state.
type Manager struct {
	store   interfaces.JobStore
	events  interfaces.EventLog
	logger  *common.Logger
	config  common.JobsConfig
	factory interfaces.WorkerFactory

	mu      sync.Mutex
	queue   chan string
	cancels map[string]chan struct{}
	running string

	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewManager creates a job manager. The factory builds one worker per
// dequeued job.
func NewManager(
	store interfaces.JobStore,
	events interfaces.EventLog,
	factory interfaces.WorkerFactory,
	logger *common.Logger,
	config common.JobsConfig,
) *Manager {
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 32
	}
	return &Manager{
		store:   store,
		events:  events,
		factory: factory,
		logger:  logger,
		config:  config,
		queue:   make(chan string, queueSize),
		cancels: make(map[string]chan struct{}),
		now:     time.Now,
	}
}

// safeGo launches a goroutine with panic recovery and logging.
func (m *Manager) safeGo(name string, fn func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in job manager goroutine")
			}
		}()
		fn()
	}()
}

// Start reaps zombie jobs, re-enqueues queued work from the previous
// process, and launches the worker loop. Safe to call multiple times.
func (m *Manager) Start() error {
	if m.cancel != nil {
		m.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	reaped, err := m.store.ReconcileOnBoot(pidAlive, func(job *models.Job) {
		// Journaled before the store publishes ABORTED.
		if err := m.events.Append(job.JobID, models.EventRunFailed, map[string]interface{}{
			"reason": "zombie_reaped",
		}); err != nil {
			m.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to journal zombie reap")
		}
	})
	if err != nil {
		cancel()
		return common.WrapError(common.KindFatal, err, "boot reconcile")
	}
	for _, job := range reaped {
		m.logger.Warn().Str("job_id", job.JobID).Msg("Reaped zombie job")
	}

	// Jobs queued before the last shutdown go back on the queue.
	jobs, err := m.store.List()
	if err != nil {
		cancel()
		return common.WrapError(common.KindFatal, err, "boot queue recovery")
	}
	for i := len(jobs) - 1; i >= 0; i-- {
		if jobs[i].Status == models.JobStatusQueued {
			select {
			case m.queue <- jobs[i].JobID:
			default:
				m.logger.Warn().Str("job_id", jobs[i].JobID).Msg("Queue full during boot recovery")
			}
		}
	}

	m.safeGo("worker", func() { m.workerLoop(ctx) })
	m.logger.Info().Int("queue_size", cap(m.queue)).Msg("Job manager started")
	return nil
}

// Stop cancels the worker loop and waits for it to drain.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.wg.Wait()
	m.logger.Info().Msg("Job manager stopped")
}

// Submit validates and enqueues an experiment request. An identical
// request already in flight, or finished within the idempotency TTL,
// returns the existing job instead of creating a new one.
func (m *Manager) Submit(req models.ExperimentRequest) (*models.Job, error) {
	return m.SubmitWithFingerprint(req, Fingerprint(req))
}

// SubmitWithFingerprint enqueues a request under a caller-supplied
// fingerprint, for submitters whose normalized request carries more
// fields than the basic experiment body.
func (m *Manager) SubmitWithFingerprint(req models.ExperimentRequest, fp string) (*models.Job, error) {
	if !models.KnownJobKind(req.Kind) {
		return nil, common.ErrInvalidInput("unknown job kind %q", req.Kind)
	}
	if req.DatasetName != "" {
		// Unregistered datasets are rejected here rather than failing
		// the run once it is dequeued.
		if _, err := models.ResolveDataset(req.DatasetName); err != nil {
			return nil, err
		}
	}
	if fp == "" {
		fp = Fingerprint(req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, err := m.findByFingerprint(fp); err != nil {
		return nil, err
	} else if existing != nil {
		m.logger.Debug().Str("job_id", existing.JobID).Msg("Idempotent submit matched existing job")
		return existing, nil
	}

	now := m.now().UTC()
	job := &models.Job{
		JobID:              fmt.Sprintf("%s-%s-%s", req.Kind, fp[:8], now.Format("20060102T150405")),
		Kind:               req.Kind,
		Status:             models.JobStatusQueued,
		Dataset:            req.DatasetName,
		QueuedAt:           now,
		RequestFingerprint: fp,
	}

	if err := m.events.Append(job.JobID, models.EventRunQueued, map[string]interface{}{
		"kind":        job.Kind,
		"dataset":     job.Dataset,
		"fingerprint": fp,
	}); err != nil {
		return nil, err
	}
	if err := m.store.Upsert(job); err != nil {
		return nil, err
	}

	select {
	case m.queue <- job.JobID:
	default:
		// The stored job stays QUEUED and is recovered on next boot.
		return nil, common.ErrTransient("job queue full")
	}

	m.logger.Info().Str("job_id", job.JobID).Str("kind", job.Kind).Msg("Job queued")
	return job.Clone(), nil
}

// findByFingerprint returns a job satisfying the idempotency contract,
// or nil. Caller holds m.mu.
func (m *Manager) findByFingerprint(fp string) (*models.Job, error) {
	jobs, err := m.store.List()
	if err != nil {
		return nil, err
	}
	ttl := m.config.GetIdempotencyTTL()
	now := m.now()
	for _, job := range jobs {
		if job.RequestFingerprint != fp {
			continue
		}
		if !job.Status.Terminal() {
			return job, nil
		}
		if job.FinishedAt != nil && now.Sub(*job.FinishedAt) < ttl {
			return job, nil
		}
	}
	return nil, nil
}

// Get returns a job snapshot.
func (m *Manager) Get(id string) (*models.Job, error) {
	if err := common.ValidateJobID(id); err != nil {
		return nil, err
	}
	return m.store.Get(id)
}

// List returns all jobs, newest first, capped at limit when limit > 0.
func (m *Manager) List(limit int) ([]*models.Job, error) {
	jobs, err := m.store.List()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// QueuePosition reports how many queued jobs precede the given one.
// The running job has position 0; queued jobs start at 1.
func (m *Manager) QueuePosition(id string) (int, error) {
	job, err := m.Get(id)
	if err != nil {
		return 0, err
	}
	if job.Status != models.JobStatusQueued {
		return 0, nil
	}
	jobs, err := m.store.List()
	if err != nil {
		return 0, err
	}
	pos := 1
	for _, other := range jobs {
		if other.Status == models.JobStatusQueued && other.QueuedAt.Before(job.QueuedAt) {
			pos++
		}
	}
	return pos, nil
}

// Cancel requests termination. Terminal jobs are returned unchanged,
// queued jobs are cancelled immediately, and running jobs get their
// cancel flag raised; the worker loop handles escalation.
func (m *Manager) Cancel(id string) (*models.Job, error) {
	job, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case job.Status.Terminal():
		return job, nil
	case job.Status == models.JobStatusQueued:
		finished := m.now().UTC()
		job.FinishedAt = &finished
		job.Reason = "cancelled before start"
		if err := m.transition(job, models.JobStatusCancelled, models.EventRunCancelled, map[string]interface{}{
			"reason": job.Reason,
		}); err != nil {
			return nil, err
		}
		return job.Clone(), nil
	default:
		if ch, ok := m.cancels[id]; ok {
			select {
			case <-ch:
				// already signalled
			default:
				close(ch)
			}
		}
		return job, nil
	}
}

// AttachArtifacts merges artifact paths onto a job record. Used by the
// run pipeline as report files land on disk.
func (m *Manager) AttachArtifacts(id string, artifacts map[string]string) error {
	if len(artifacts) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Get(id)
	if err != nil {
		return err
	}
	if job.Artifacts == nil {
		job.Artifacts = make(map[string]string, len(artifacts))
	}
	for role, path := range artifacts {
		job.Artifacts[role] = path
	}
	return m.store.Upsert(job)
}

// transition journals the event, then persists the new status. The
// journal write comes first so the event log never misses a state the
// store has already published. The stored status is re-checked under
// the lock: a job that went terminal since the caller's snapshot (a
// cancel racing a dequeue) is refused before anything is journaled,
// so the log keeps exactly one terminal event. Caller holds m.mu.
func (m *Manager) transition(job *models.Job, status models.JobStatus, event models.EventType, payload map[string]interface{}) error {
	if cur, err := m.store.Get(job.JobID); err == nil && cur.Status.Terminal() && cur.Status != status {
		return common.ErrConflict("job %s is terminal (%s)", job.JobID, cur.Status)
	}
	if err := m.events.Append(job.JobID, event, payload); err != nil {
		return err
	}
	job.Status = status
	return m.store.Upsert(job)
}

// Fingerprint hashes the normalized request for idempotent submission.
func Fingerprint(req models.ExperimentRequest) string {
	sum := sha256.Sum256([]byte(req.Kind + "\x00" + req.DatasetName))
	return hex.EncodeToString(sum[:])
}

// pidAlive reports whether the OS process still exists. Signal 0
// performs the existence check without delivering anything.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}
