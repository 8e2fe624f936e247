// Package orchestrator runs the experiment pipeline: plan, commit,
// phased execution, aggregation, winner selection, and reporting.
package orchestrator

import (
	"sync"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/interfaces"
	"github.com/seralab/tunex/internal/models"
	"github.com/seralab/tunex/internal/services/bandit"
	"github.com/seralab/tunex/internal/services/control"
	"github.com/seralab/tunex/internal/services/jobmanager"
	"github.com/seralab/tunex/internal/services/metrics"
	"github.com/seralab/tunex/internal/services/router"
	"github.com/seralab/tunex/internal/services/sla"
)

// Orchestrator owns the run pipeline and the components it drives. The
// router and controllers belong to it; nothing reaches them except
// through snapshots.
type Orchestrator struct {
	jobs    *jobmanager.Manager
	events  interfaces.EventLog
	client  interfaces.SearchClient
	router  *router.Router
	control *control.Holder
	bandit  *bandit.Selector
	slaEval *sla.Evaluator
	tuner   *sla.AutoTuner
	logger  *common.Logger
	config  *common.Config

	mu      sync.Mutex
	plans   map[string]models.Plan
	stages  map[string]string
	reports map[string]*models.RunReport
	liveAgg *metrics.Aggregator
}

// New wires the orchestrator over its collaborators.
func New(
	jobs *jobmanager.Manager,
	events interfaces.EventLog,
	client interfaces.SearchClient,
	rtr *router.Router,
	ctl *control.Holder,
	sel *bandit.Selector,
	evaluator *sla.Evaluator,
	tuner *sla.AutoTuner,
	logger *common.Logger,
	config *common.Config,
) *Orchestrator {
	return &Orchestrator{
		jobs:    jobs,
		events:  events,
		client:  client,
		router:  rtr,
		control: ctl,
		bandit:  sel,
		slaEval: evaluator,
		tuner:   tuner,
		logger:  logger,
		config:  config,
		plans:   make(map[string]models.Plan),
		stages:  make(map[string]string),
		reports: make(map[string]*models.RunReport),
	}
}

// Router exposes the run router for the ops API.
func (o *Orchestrator) Router() *router.Router { return o.router }

// Control exposes the controller holder for the ops API.
func (o *Orchestrator) Control() *control.Holder { return o.control }

// Bandit exposes the arm selector for the ops API.
func (o *Orchestrator) Bandit() *bandit.Selector { return o.bandit }

// Window snapshots the metrics of the run currently (or most recently)
// executing. Before any run, the window is empty.
func (o *Orchestrator) Window() models.WindowSnapshot {
	o.mu.Lock()
	agg := o.liveAgg
	o.mu.Unlock()
	if agg == nil {
		return models.WindowSnapshot{Series: []models.BucketPoint{}}
	}
	return agg.Snapshot()
}

// DryRun plans a request without committing it and journals the plan.
func (o *Orchestrator) DryRun(req models.OrchestrateRequest) (models.Plan, error) {
	plan, err := Plan(req, o.config.Load)
	if err != nil {
		return models.Plan{}, err
	}

	planID := "plan-" + plan.Fingerprint[:12]
	if err := o.events.Append(planID, models.EventDryRunPlan, map[string]interface{}{
		"fingerprint":      plan.Fingerprint,
		"collection":       plan.Collection,
		"est_batches":      plan.EstBatches,
		"est_duration_sec": plan.EstDurationSec,
	}); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to journal dry-run plan")
	}
	return plan, nil
}

// Commit plans and enqueues a run. Identical committed requests return
// the existing run via the fingerprint.
func (o *Orchestrator) Commit(req models.OrchestrateRequest) (models.RunStatus, error) {
	plan, err := Plan(req, o.config.Load)
	if err != nil {
		return models.RunStatus{}, err
	}

	job, err := o.jobs.SubmitWithFingerprint(models.ExperimentRequest{
		Kind:        plan.Request.Kind,
		DatasetName: plan.Request.DatasetName,
	}, plan.Fingerprint)
	if err != nil {
		return models.RunStatus{}, err
	}

	o.mu.Lock()
	if _, ok := o.plans[job.JobID]; !ok {
		o.plans[job.JobID] = plan
		o.stages[job.JobID] = models.StagePending
	}
	o.mu.Unlock()

	pos, err := o.jobs.QueuePosition(job.JobID)
	if err != nil {
		pos = 0
	}
	return models.RunStatus{
		RunID:         job.JobID,
		Stage:         o.Stage(job.JobID),
		JobStatus:     job.Status,
		QueuePosition: pos,
	}, nil
}

// Stage returns the current stage for a run, defaulting to PENDING.
func (o *Orchestrator) Stage(runID string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if stage, ok := o.stages[runID]; ok {
		return stage
	}
	return models.StagePending
}

// Status reports stage, job status, and queue position for a run.
func (o *Orchestrator) Status(runID string) (models.RunStatus, error) {
	job, err := o.jobs.Get(runID)
	if err != nil {
		return models.RunStatus{}, err
	}
	pos, err := o.jobs.QueuePosition(runID)
	if err != nil {
		pos = 0
	}
	return models.RunStatus{
		RunID:         runID,
		Stage:         o.Stage(runID),
		JobStatus:     job.Status,
		QueuePosition: pos,
	}, nil
}

// Report returns the artifacts index and final verdict for a run.
func (o *Orchestrator) Report(runID string) (models.RunReport, error) {
	o.mu.Lock()
	report, ok := o.reports[runID]
	o.mu.Unlock()
	if ok {
		return *report, nil
	}

	// No in-memory report: fall back to the job's artifact index.
	job, err := o.jobs.Get(runID)
	if err != nil {
		return models.RunReport{}, err
	}
	if !job.Status.Terminal() {
		return models.RunReport{}, common.ErrConflict("run %s has not finished (%s)", runID, job.Status)
	}
	artifacts := job.Artifacts
	if artifacts == nil {
		artifacts = map[string]string{}
	}
	return models.RunReport{RunID: runID, Artifacts: artifacts}, nil
}

// planFor returns the committed plan, rebuilding one from the job when
// the run was committed by a previous process.
func (o *Orchestrator) planFor(job *models.Job) (models.Plan, error) {
	o.mu.Lock()
	plan, ok := o.plans[job.JobID]
	o.mu.Unlock()
	if ok {
		return plan, nil
	}
	return Plan(models.OrchestrateRequest{Kind: job.Kind, DatasetName: job.Dataset}, o.config.Load)
}

func (o *Orchestrator) setStage(runID, stage string, summary map[string]interface{}) {
	o.mu.Lock()
	o.stages[runID] = stage
	o.mu.Unlock()

	payload := map[string]interface{}{"stage": stage}
	for k, v := range summary {
		payload[k] = v
	}
	if err := o.events.Append(runID, models.EventStage, payload); err != nil {
		o.logger.Warn().Err(err).Str("run_id", runID).Str("stage", stage).Msg("Failed to journal stage")
	}
	o.logger.Info().Str("run_id", runID).Str("stage", stage).Msg("Run stage")
}
