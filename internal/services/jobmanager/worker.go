package jobmanager

import (
	"context"
	"sync"
	"time"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/interfaces"
	"github.com/seralab/tunex/internal/models"
)

// pidReporter is implemented by workers that run an OS process.
type pidReporter interface {
	Pid() int
}

// killer is implemented by workers that support forced termination
// after the cancel grace period.
type killer interface {
	Kill()
}

// workerLoop dequeues and executes one job at a time. This loop is the
// single-concurrency serialization point: at most one job is RUNNING.
func (m *Manager) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-m.queue:
			m.runJob(ctx, id)
		}
	}
}

func (m *Manager) runJob(ctx context.Context, id string) {
	job, err := m.store.Get(id)
	if err != nil {
		m.logger.Warn().Err(err).Str("job_id", id).Msg("Dequeued job missing from store")
		return
	}
	if job.Status != models.JobStatusQueued {
		// Cancelled while waiting in the queue.
		return
	}

	cancelCh := make(chan struct{})
	m.mu.Lock()
	m.cancels[id] = cancelCh
	m.running = id
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.cancels, id)
		m.running = ""
		m.mu.Unlock()
	}()

	worker, err := m.factory(job)
	if err != nil {
		m.failJob(job, "start", err)
		return
	}

	started := m.now().UTC()
	job.StartedAt = &started

	m.mu.Lock()
	err = m.transition(job, models.JobStatusRunning, models.EventRunStarted, map[string]interface{}{
		"kind": job.Kind,
	})
	m.mu.Unlock()
	if err != nil {
		if common.IsKind(err, common.KindConflict) {
			// Cancelled between the dequeue check and the transition.
			m.logger.Info().Str("job_id", id).Msg("Job cancelled before start")
			return
		}
		m.logger.Error().Err(err).Str("job_id", id).Msg("Failed to persist RUNNING transition")
		return
	}

	if err := worker.Start(ctx); err != nil {
		m.failJob(job, "start", err)
		return
	}

	// Record the worker pid once running, when there is one.
	if pr, ok := worker.(pidReporter); ok {
		if pid := pr.Pid(); pid > 0 {
			job.PID = &pid
			m.mu.Lock()
			if err := m.store.Upsert(job); err != nil {
				m.logger.Warn().Err(err).Str("job_id", id).Msg("Failed to persist worker pid")
			}
			m.mu.Unlock()
		}
	}

	m.logger.Info().Str("job_id", id).Str("kind", job.Kind).Msg("Job running")
	result := m.awaitWorker(worker, cancelCh)

	finished := m.now().UTC()
	job.FinishedAt = &finished
	job.PID = nil

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case result.Cancelled:
		job.Reason = "cancelled by operator"
		if err := m.transition(job, models.JobStatusCancelled, models.EventRunCancelled, map[string]interface{}{
			"reason": job.Reason,
		}); err != nil {
			m.logger.Error().Err(err).Str("job_id", id).Msg("Failed to persist CANCELLED transition")
		}
	case result.Err != nil:
		job.Reason = result.Err.Error()
		if err := m.transition(job, models.JobStatusFailed, models.EventRunFailed, map[string]interface{}{
			"stage":     "execute",
			"reason":    job.Reason,
			"exit_code": result.ExitCode,
		}); err != nil {
			m.logger.Error().Err(err).Str("job_id", id).Msg("Failed to persist FAILED transition")
		}
	default:
		if err := m.transition(job, models.JobStatusSucceeded, models.EventRunSucceeded, nil); err != nil {
			m.logger.Error().Err(err).Str("job_id", id).Msg("Failed to persist SUCCEEDED transition")
		}
	}
	m.logger.Info().Str("job_id", id).Str("status", string(job.Status)).Msg("Job finished")
}

// awaitWorker blocks until the worker finishes. A cancel signal asks
// the worker to stop; if it overruns the grace period it is killed.
func (m *Manager) awaitWorker(worker interfaces.Worker, cancelCh chan struct{}) interfaces.WorkerResult {
	resCh := make(chan interfaces.WorkerResult, 1)
	go func() { resCh <- worker.Wait() }()

	select {
	case res := <-resCh:
		return res
	case <-cancelCh:
		worker.Cancel()
	}

	grace := m.config.GetCancelGrace()
	select {
	case res := <-resCh:
		res.Cancelled = true
		return res
	case <-time.After(grace):
		if k, ok := worker.(killer); ok {
			k.Kill()
			m.logger.Warn().Dur("grace", grace).Msg("Worker overran cancel grace, killed")
		}
	}

	res := <-resCh
	res.Cancelled = true
	return res
}

// failJob marks a job FAILED before it ever ran.
func (m *Manager) failJob(job *models.Job, stage string, cause error) {
	finished := m.now().UTC()
	job.FinishedAt = &finished
	job.Reason = cause.Error()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transition(job, models.JobStatusFailed, models.EventRunFailed, map[string]interface{}{
		"stage":  stage,
		"reason": job.Reason,
	}); err != nil {
		m.logger.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to persist FAILED transition")
	}
	m.logger.Warn().Str("job_id", job.JobID).Str("stage", stage).Err(cause).Msg("Job failed")
}

// FuncWorker runs an in-process job function. It satisfies the worker
// contract without spawning a subprocess.
type FuncWorker struct {
	fn     func(ctx context.Context) error
	cancel context.CancelFunc

	once sync.Once
	done chan struct{}
	res  interfaces.WorkerResult
}

// NewFuncWorker wraps a job function.
func NewFuncWorker(fn func(ctx context.Context) error) *FuncWorker {
	return &FuncWorker{fn: fn, done: make(chan struct{})}
}

// Start launches the function. It does not block.
func (w *FuncWorker) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go func() {
		defer close(w.done)
		err := w.fn(runCtx)
		w.res = interfaces.WorkerResult{Err: err, Cancelled: runCtx.Err() != nil}
		if err != nil && runCtx.Err() != nil {
			// Cancellation errors are not failures.
			w.res.Err = nil
		}
	}()
	return nil
}

// Cancel stops the function via its context.
func (w *FuncWorker) Cancel() {
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
	})
}

// Wait blocks until the function returns.
func (w *FuncWorker) Wait() interfaces.WorkerResult {
	<-w.done
	return w.res
}
