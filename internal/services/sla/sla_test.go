package sla

import (
	"math"
	"testing"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
)

func goodComparison() models.ComparisonMetrics {
	return models.ComparisonMetrics{
		PValue:       0.01,
		Buckets:      12,
		DeltaRecall:  0.02,
		DeltaP95MS:   2,
		SafetyRate:   0.995,
		ApplyRate:    0.98,
		CostPerQuery: 2e-5,
	}
}

func TestEvaluatePass(t *testing.T) {
	e := NewEvaluator(common.NewSilentLogger())
	v := e.Evaluate(goodComparison())
	if v.Overall != models.VerdictPass {
		t.Fatalf("overall = %s, want PASS: %+v", v.Overall, v)
	}
	if v.Quality != models.VerdictGreen || v.SLA != models.VerdictGreen || v.Cost != models.VerdictGreen {
		t.Errorf("sub-verdicts not all green: %+v", v)
	}
}

func TestEvaluateRecallRegressionFails(t *testing.T) {
	e := NewEvaluator(common.NewSilentLogger())
	m := goodComparison()
	m.DeltaRecall = -0.05
	v := e.Evaluate(m)
	if v.Quality != models.VerdictRed {
		t.Errorf("quality = %s, want red", v.Quality)
	}
	if v.Overall != models.VerdictFail {
		t.Errorf("overall = %s, want FAIL", v.Overall)
	}
	if v.Reason == "" {
		t.Error("failing verdict carries no reason")
	}
}

func TestEvaluateInsufficientEvidenceWarns(t *testing.T) {
	e := NewEvaluator(common.NewSilentLogger())

	m := goodComparison()
	m.PValue = 0.2
	if v := e.Evaluate(m); v.Quality != models.VerdictYellow || v.Overall != models.VerdictWarn {
		t.Errorf("high p-value: got %+v, want yellow/WARN", v)
	}

	m = goodComparison()
	m.Buckets = 5
	if v := e.Evaluate(m); v.Quality != models.VerdictYellow || v.Overall != models.VerdictWarn {
		t.Errorf("few buckets: got %+v, want yellow/WARN", v)
	}
}

func TestEvaluateSLAGrades(t *testing.T) {
	e := NewEvaluator(common.NewSilentLogger())

	m := goodComparison()
	m.DeltaP95MS = 10
	if v := e.Evaluate(m); v.SLA != models.VerdictYellow {
		t.Errorf("delta_p95=10: sla = %s, want yellow", v.SLA)
	}

	m = goodComparison()
	m.DeltaP95MS = 50
	if v := e.Evaluate(m); v.SLA != models.VerdictRed || v.Overall != models.VerdictFail {
		t.Errorf("delta_p95=50: got %+v, want red/FAIL", e.Evaluate(m))
	}

	m = goodComparison()
	m.SafetyRate = 0.90
	if v := e.Evaluate(m); v.SLA != models.VerdictRed {
		t.Errorf("safety=0.90: sla = %s, want red", v.SLA)
	}
}

func TestEvaluateCostGrades(t *testing.T) {
	e := NewEvaluator(common.NewSilentLogger())

	m := goodComparison()
	m.CostPerQuery = 8e-5
	if v := e.Evaluate(m); v.Cost != models.VerdictYellow || v.Overall != models.VerdictWarn {
		t.Errorf("cost=8e-5: got %+v, want yellow/WARN", v)
	}

	m.CostPerQuery = 5e-4
	if v := e.Evaluate(m); v.Cost != models.VerdictRed || v.Overall != models.VerdictFail {
		t.Errorf("cost=5e-4: got %+v, want red/FAIL", v)
	}
}

func sweepCandidates() []models.Candidate {
	return []models.Candidate{
		{Name: "hybrid", RecallAt10: 0.95, P95MS: 900, Cost: 3e-5, QPS: 40},
		{Name: "rerank", RecallAt10: 0.97, P95MS: 1400, Cost: 6e-5, QPS: 25},
		{Name: "fast", RecallAt10: 0.90, P95MS: 400, Cost: 1e-5, QPS: 80},
	}
}

func TestPickWinnersCategories(t *testing.T) {
	w := PickWinners(sweepCandidates())

	if w.Quality == nil || w.Quality.Name != "rerank" {
		t.Errorf("quality winner = %+v, want rerank", w.Quality)
	}
	if w.Latency == nil || w.Latency.Name != "fast" {
		t.Errorf("latency winner = %+v, want fast", w.Latency)
	}
	// balanced scores: hybrid 0.95-0.45=0.50, rerank 0.97-0.70=0.27, fast 0.90-0.20=0.70
	if w.Balanced == nil || w.Balanced.Name != "fast" {
		t.Errorf("balanced winner = %+v, want fast", w.Balanced)
	}
}

func TestPickWinnersTiebreaks(t *testing.T) {
	w := PickWinners([]models.Candidate{
		{Name: "a", RecallAt10: 0.95, P95MS: 800},
		{Name: "b", RecallAt10: 0.95, P95MS: 600},
		{Name: "c", RecallAt10: 0.80, P95MS: 600},
	})
	if w.Quality.Name != "b" {
		t.Errorf("quality tiebreak picked %s, want b (lower p95)", w.Quality.Name)
	}
	if w.Latency.Name != "b" {
		t.Errorf("latency tiebreak picked %s, want b (higher recall)", w.Latency.Name)
	}
}

func TestPickWinnersSkipsUnmeasuredLatency(t *testing.T) {
	w := PickWinners([]models.Candidate{
		{Name: "unmeasured", RecallAt10: 0.9, P95MS: 0},
		{Name: "measured", RecallAt10: 0.8, P95MS: 500},
	})
	if w.Latency == nil || w.Latency.Name != "measured" {
		t.Errorf("latency winner = %+v, want measured", w.Latency)
	}
}

func TestPickWinnersEmpty(t *testing.T) {
	w := PickWinners(nil)
	if w.Quality != nil || w.Latency != nil || w.Balanced != nil {
		t.Errorf("winners from empty set: %+v", w)
	}
}

func TestPickStrictWinnersGates(t *testing.T) {
	w := PickStrictWinners(sweepCandidates(), nil)
	// fast misses the recall floor; rerank and hybrid remain.
	if w.Quality == nil || w.Quality.Name != "rerank" {
		t.Errorf("strict quality = %+v, want rerank", w.Quality)
	}
	if w.Latency == nil || w.Latency.Name != "hybrid" {
		t.Errorf("strict latency = %+v, want hybrid", w.Latency)
	}
}

func TestPickStrictWinnersBaselineGates(t *testing.T) {
	baseline := &models.Candidate{Name: "hybrid", RecallAt10: 0.95, P95MS: 900}

	// rerank beats the baseline by 0.02 recall at +500ms: rejected on latency.
	w := PickStrictWinners([]models.Candidate{
		{Name: "rerank", RecallAt10: 0.97, P95MS: 1400},
	}, baseline)
	if w.Quality != nil {
		t.Errorf("latency-regressed variant accepted: %+v", w.Quality)
	}

	// A variant within both gates is accepted.
	w = PickStrictWinners([]models.Candidate{
		{Name: "rerank-lite", RecallAt10: 0.97, P95MS: 1000},
	}, baseline)
	if w.Quality == nil || w.Quality.Name != "rerank-lite" {
		t.Errorf("qualifying variant rejected: %+v", w.Quality)
	}

	// Insufficient recall gain is rejected even when fast.
	w = PickStrictWinners([]models.Candidate{
		{Name: "marginal", RecallAt10: 0.955, P95MS: 800},
	}, baseline)
	if w.Quality != nil {
		t.Errorf("marginal recall gain accepted: %+v", w.Quality)
	}
}

// memPolicyStore keeps the policy in memory.
type memPolicyStore struct {
	policy models.SLAPolicy
}

func (m *memPolicyStore) Load() (models.SLAPolicy, error) { return m.policy, nil }
func (m *memPolicyStore) Save(p models.SLAPolicy) error   { m.policy = p; return nil }

func TestAutoTuneFromWinner(t *testing.T) {
	store := &memPolicyStore{policy: models.SLAPolicy{SchemaVersion: 1, RecallAt10Min: 0.94, P95MSMax: 1800, CostMax: 5e-5}}
	tuner := NewAutoTuner(store, common.NewSilentLogger())

	got, err := tuner.Retune(models.Candidate{Name: "rerank", RecallAt10: 0.96, P95MS: 1000}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got.RecallAt10Min-0.864) > 1e-9 {
		t.Errorf("recall_at_10_min = %v, want 0.864", got.RecallAt10Min)
	}
	if got.P95MSMax != 1100 {
		t.Errorf("p95_ms_max = %v, want 1100", got.P95MSMax)
	}
	if got.CostMax != 5e-5 {
		t.Errorf("cost_max = %v, want preserved 5e-5", got.CostMax)
	}
	if got.UpdatedAt == "" {
		t.Error("updated_at not stamped")
	}
	if store.policy.RecallAt10Min != got.RecallAt10Min {
		t.Error("retuned policy not persisted")
	}
}

func TestAutoTuneClamps(t *testing.T) {
	store := &memPolicyStore{policy: models.SLAPolicy{SchemaVersion: 1, CostMax: 5e-5}}
	tuner := NewAutoTuner(store, common.NewSilentLogger())

	// Terrible winner: recall floor and p95 floor apply.
	got, err := tuner.Retune(models.Candidate{RecallAt10: 0.1, P95MS: 10}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.RecallAt10Min != 0.30 {
		t.Errorf("recall floor: got %v, want 0.30", got.RecallAt10Min)
	}
	if got.P95MSMax != 50 {
		t.Errorf("p95 floor: got %v, want 50", got.P95MSMax)
	}

	// Implausibly high recall hits the ceiling.
	got, err = tuner.Retune(models.Candidate{RecallAt10: 1.5, P95MS: 1000}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.RecallAt10Min != 0.99 {
		t.Errorf("recall ceiling: got %v, want 0.99", got.RecallAt10Min)
	}
}

func TestAutoTuneCostOverride(t *testing.T) {
	store := &memPolicyStore{policy: models.SLAPolicy{SchemaVersion: 1, CostMax: 5e-5}}
	tuner := NewAutoTuner(store, common.NewSilentLogger())

	override := 1e-4
	got, err := tuner.Retune(models.Candidate{RecallAt10: 0.95, P95MS: 900}, &override)
	if err != nil {
		t.Fatal(err)
	}
	if got.CostMax != 1e-4 {
		t.Errorf("cost_max = %v, want overridden 1e-4", got.CostMax)
	}
}
