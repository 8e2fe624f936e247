package orchestrator

import (
	"context"
	"time"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
	"github.com/seralab/tunex/internal/services/loadgen"
	"github.com/seralab/tunex/internal/services/metrics"
	"github.com/seralab/tunex/internal/services/sla"
)

// armProfile adjusts load parameters per bandit arm.
type armProfile struct {
	qpsFactor float64
	topKMix   []int
}

var armProfiles = map[string]armProfile{
	"fast":     {qpsFactor: 1.5, topKMix: []int{10}},
	"balanced": {qpsFactor: 1.0, topKMix: []int{10, 50}},
	"quality":  {qpsFactor: 0.6, topKMix: []int{50, 100}},
}

// Execute runs the committed plan for one job through the linear stage
// machine. Cancellation is observed before every phase; a failed stage
// returns an error the job manager records as RUN_FAILED.
func (o *Orchestrator) Execute(ctx context.Context, job *models.Job) error {
	runID := job.JobID
	plan, err := o.planFor(job)
	if err != nil {
		return o.failStage(runID, models.StagePending, err)
	}

	// Bandit runs pick their arm up front; the arm shapes the load.
	arm := ""
	if job.Kind == models.JobKindBanditRound {
		var reason string
		arm, reason, err = o.bandit.Select()
		if err != nil {
			return o.failStage(runID, models.StagePending, err)
		}
		o.logger.Info().Str("run_id", runID).Str("arm", arm).Str("reason", reason).Msg("Bandit arm selected")
	}

	agg := metrics.New()
	o.mu.Lock()
	o.liveAgg = agg
	o.mu.Unlock()

	genCfg := o.generatorConfig(plan, arm)
	phaseCost := map[string]float64{}
	controlGen, variantGen := o.newGenerators(genCfg, agg, phaseCost)

	window := time.Duration(plan.Request.WindowSec) * time.Second
	warmup := time.Duration(o.config.Load.WarmupSec) * time.Second
	if warmup <= 0 {
		warmup = window / 2
	}

	// WARMUP
	if err := ctx.Err(); err != nil {
		return err
	}
	o.setStage(runID, models.StageWarmup, map[string]interface{}{"duration_sec": warmup.Seconds()})
	warmStats := controlGen.RunPhase(ctx, "warmup", warmup)
	o.emitPhaseSample(runID, warmStats)

	// (PHASE_A -> PHASE_B)*
	var aPhases, bPhases []models.PhaseStats
	for round := 0; round < plan.Request.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.setStage(runID, models.StagePhaseA, map[string]interface{}{"round": round})
		a := controlGen.RunPhase(ctx, "A", window)
		a.CostPerQ = o.takePhaseCost(phaseCost, "A", a.Requests)
		aPhases = append(aPhases, a)
		o.emitPhaseSample(runID, a)
		o.updateControllers(agg)

		if err := ctx.Err(); err != nil {
			return err
		}
		o.setStage(runID, models.StagePhaseB, map[string]interface{}{"round": round})
		b := variantGen.RunPhase(ctx, "B", window)
		b.CostPerQ = o.takePhaseCost(phaseCost, "B", b.Requests)
		bPhases = append(bPhases, b)
		o.emitPhaseSample(runID, b)
		o.updateControllers(agg)
	}

	// AGGREGATE
	if err := ctx.Err(); err != nil {
		return err
	}
	comparison := Compare(aPhases, bPhases)
	o.setStage(runID, models.StageAggregate, map[string]interface{}{
		"p_value":      comparison.PValue,
		"delta_recall": comparison.DeltaRecall,
		"delta_p95_ms": comparison.DeltaP95MS,
	})

	// WINNERS
	if err := ctx.Err(); err != nil {
		return err
	}
	o.setStage(runID, models.StageWinners, nil)
	candidates := candidatesFrom(aPhases, bPhases)
	winners := pickForKind(job.Kind, candidates)
	verdict := o.slaEval.Evaluate(comparison)

	if err := o.events.Append(runID, models.EventWinner, winnerPayload(winners)); err != nil {
		o.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to journal winner")
	}
	if err := o.events.Append(runID, models.EventSLAVerdict, map[string]interface{}{
		"overall": verdict.Overall,
		"quality": verdict.Quality,
		"sla":     verdict.SLA,
		"cost":    verdict.Cost,
		"reason":  verdict.Reason,
	}); err != nil {
		o.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to journal verdict")
	}

	// REPORT
	if err := ctx.Err(); err != nil {
		return err
	}
	o.setStage(runID, models.StageReport, nil)
	artifacts, reportErr := o.writeReport(runID, plan, aPhases, bPhases, candidates, winners, verdict, agg.Snapshot())
	if len(artifacts) > 0 {
		// Partial artifacts are retained even when the report stage fails.
		if err := o.jobs.AttachArtifacts(runID, artifacts); err != nil {
			o.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to attach artifacts")
		}
	}
	if reportErr != nil {
		return o.failStage(runID, models.StageReport, reportErr)
	}

	o.mu.Lock()
	o.reports[runID] = &models.RunReport{
		RunID:     runID,
		Artifacts: artifacts,
		Winners:   &winners,
		Verdict:   &verdict,
	}
	o.mu.Unlock()

	// Side effects of an accepted run: policy retune, bandit update.
	if verdict.Overall == models.VerdictPass && winners.Balanced != nil {
		if _, err := o.tuner.Retune(*winners.Balanced, nil); err != nil {
			o.logger.Warn().Err(err).Str("run_id", runID).Msg("SLA retune failed")
		}
	}
	if arm != "" {
		won := verdict.Overall == models.VerdictPass && comparison.DeltaRecall > 0
		m := armMetricsFrom(bPhases)
		if err := o.bandit.Update(arm, m, won); err != nil {
			o.logger.Warn().Err(err).Str("run_id", runID).Str("arm", arm).Msg("Bandit update failed")
		}
		drift, err := o.bandit.Audit()
		if err == nil {
			o.logger.Info().Str("run_id", runID).Interface("drift", drift).Msg("Bandit drift audit")
		}
	}

	o.setStage(runID, models.StageDone, map[string]interface{}{"verdict": verdict.Overall})
	return nil
}

// failStage journals the failing stage and returns a wrapped error.
func (o *Orchestrator) failStage(runID, stage string, err error) error {
	o.logger.Error().Err(err).Str("run_id", runID).Str("stage", stage).Msg("Run stage failed")
	return common.WrapError(common.KindOf(err), err, "stage %s failed", stage)
}

// generatorConfig derives the load profile from the plan and arm.
func (o *Orchestrator) generatorConfig(plan models.Plan, arm string) loadgen.Config {
	cfg := loadgen.Config{
		Seed:         plan.Request.Seed,
		TopKMix:      plan.Request.TopKMix,
		QPS:          plan.Request.QPS,
		Concurrency:  plan.Request.Concurrency,
		RecallSample: plan.Request.RecallSample,
	}
	if profile, ok := armProfiles[arm]; ok {
		cfg.QPS *= profile.qpsFactor
		cfg.TopKMix = profile.topKMix
	}
	return cfg
}

// newGenerators builds the two phase drivers over one shared sink.
// The control generator pins dense; the variant generator routes. Both
// share the seed, so phases A and B replay identical query streams.
func (o *Orchestrator) newGenerators(cfg loadgen.Config, agg *metrics.Aggregator, phaseCost map[string]float64) (control, variant *loadgen.Generator) {
	sink := func(s models.MetricSample) {
		agg.Record(s)
		o.mu.Lock()
		phaseCost[s.Phase] += o.queryCost(s.Backend)
		o.mu.Unlock()
	}

	control = loadgen.New(cfg, o.client, o.logger, sink)
	variant = loadgen.New(cfg, o.client, o.logger, sink, loadgen.WithRouteFn(func(q models.QueryContext) string {
		return o.routeVariant(q, agg)
	}))
	return control, variant
}

// routeVariant consults the router with load snapshots derived from
// the live window.
func (o *Orchestrator) routeVariant(q models.QueryContext, agg *metrics.Aggregator) string {
	snap := agg.Snapshot()
	p95 := o.config.Control.TargetP95MS
	if snap.P95MS != nil {
		p95 = *snap.P95MS
	}
	load := models.BackendLoad{QPS: snap.TPS, P95MS: p95, Healthy: true}
	decision := o.router.Decide(q, load, load)
	return decision.Backend
}

// queryCost prices one query by backend.
func (o *Orchestrator) queryCost(backend string) float64 {
	if backend == models.BackendRich {
		return o.config.Router.RichPricePer1K / 1000
	}
	return o.config.Router.DensePricePer1K / 1000
}

func (o *Orchestrator) takePhaseCost(phaseCost map[string]float64, phase string, requests int) float64 {
	o.mu.Lock()
	total := phaseCost[phase]
	phaseCost[phase] = 0
	o.mu.Unlock()
	if requests == 0 {
		return 0
	}
	return total / float64(requests)
}

// updateControllers feeds the live window into the active controller.
func (o *Orchestrator) updateControllers(agg *metrics.Aggregator) {
	snap := agg.Snapshot()
	if snap.P95MS == nil {
		return
	}
	errorRate := 0.0
	if snap.Samples > 0 {
		errorRate = snap.DroppedRatio
	}
	rec := o.control.Update(models.ControllerInput{
		P95MS:     *snap.P95MS,
		ErrorRate: errorRate,
		Now:       time.Now(),
	})
	o.logger.Debug().
		Str("action", rec.Action).
		Int("concurrency", rec.Concurrency).
		Int("batch_size", rec.BatchSize).
		Str("reason", rec.Reason).
		Msg("Controller recommendation")
}

// emitPhaseSample journals a compact per-phase metric summary.
func (o *Orchestrator) emitPhaseSample(runID string, stats models.PhaseStats) {
	if err := o.events.Append(runID, models.EventMetricSample, map[string]interface{}{
		"phase":       stats.Phase,
		"requests":    stats.Requests,
		"errors":      stats.Errors,
		"p95_ms":      stats.P95MS,
		"recall_mean": stats.RecallMean,
		"qps":         stats.QPS,
	}); err != nil {
		o.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to journal phase sample")
	}
}

// candidatesFrom folds the phase stats into the two run candidates.
func candidatesFrom(aPhases, bPhases []models.PhaseStats) []models.Candidate {
	return []models.Candidate{
		candidateFrom("control", aPhases),
		candidateFrom("variant", bPhases),
	}
}

func candidateFrom(name string, phases []models.PhaseStats) models.Candidate {
	c := models.Candidate{Name: name}
	if len(phases) == 0 {
		return c
	}
	var recall, p95, qps, cost float64
	for _, p := range phases {
		recall += p.RecallMean
		p95 += p.P95MS
		qps += p.QPS
		cost += p.CostPerQ
	}
	n := float64(len(phases))
	c.RecallAt10 = recall / n
	c.P95MS = p95 / n
	c.QPS = qps / n
	c.Cost = cost / n
	return c
}

// pickForKind applies the strict gates on sweeps and the plain winner
// pass everywhere else.
func pickForKind(kind string, candidates []models.Candidate) models.Winners {
	if kind == models.JobKindSweep {
		var baseline *models.Candidate
		for i := range candidates {
			if candidates[i].Name == "control" {
				baseline = &candidates[i]
				break
			}
		}
		return sla.PickStrictWinners(candidates, baseline)
	}
	return sla.PickWinners(candidates)
}

func winnerPayload(w models.Winners) map[string]interface{} {
	payload := map[string]interface{}{}
	if w.Balanced != nil {
		payload["balanced"] = w.Balanced.Name
	}
	if w.Quality != nil {
		payload["quality"] = w.Quality.Name
	}
	if w.Latency != nil {
		payload["latency"] = w.Latency.Name
	}
	return payload
}

// armMetricsFrom summarizes the variant phases for the bandit update.
func armMetricsFrom(phases []models.PhaseStats) models.ArmMetrics {
	c := candidateFrom("", phases)
	samples := 0
	errors := 0
	requests := 0
	for _, p := range phases {
		samples += p.RecallN
		errors += p.Errors
		requests += p.Requests
	}
	errorRate := 0.0
	if requests > 0 {
		errorRate = float64(errors) / float64(requests)
	}
	return models.ArmMetrics{
		P95MS:      c.P95MS,
		RecallAt10: c.RecallAt10,
		ErrorRate:  errorRate,
		Cost:       c.Cost,
		Samples:    samples,
	}
}
