package sla

import (
	"math"
	"time"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/interfaces"
	"github.com/seralab/tunex/internal/models"
)

// Auto-tune safety margins: thresholds follow the accepted winner with
// headroom, clamped so one anomalous run cannot gut the policy.
const (
	tuneRecallFactor = 0.9
	tuneRecallFloor  = 0.30
	tuneRecallCeil   = 0.99
	tuneP95Factor    = 1.10
	tuneP95FloorMS   = 50.0
)

// AutoTuner rewrites the persisted SLA policy from accepted winners.
type AutoTuner struct {
	store  interfaces.PolicyStore
	logger *common.Logger
	now    func() time.Time
}

// NewAutoTuner builds a tuner over the policy store.
func NewAutoTuner(store interfaces.PolicyStore, logger *common.Logger) *AutoTuner {
	return &AutoTuner{store: store, logger: logger, now: time.Now}
}

// Retune derives new thresholds from the winner and persists them.
// cost_max carries over unless costOverride is set. Returns the policy
// that was written.
func (t *AutoTuner) Retune(winner models.Candidate, costOverride *float64) (models.SLAPolicy, error) {
	policy, err := t.store.Load()
	if err != nil {
		return models.SLAPolicy{}, err
	}

	policy.RecallAt10Min = clampRange(tuneRecallFactor*winner.RecallAt10, tuneRecallFloor, tuneRecallCeil)
	policy.P95MSMax = math.Max(tuneP95FloorMS, tuneP95Factor*winner.P95MS)
	if costOverride != nil {
		policy.CostMax = *costOverride
	}
	policy.UpdatedAt = t.now().UTC().Format(time.RFC3339)

	if err := t.store.Save(policy); err != nil {
		return models.SLAPolicy{}, err
	}
	if t.logger != nil {
		t.logger.Info().
			Float64("recall_at_10_min", policy.RecallAt10Min).
			Float64("p95_ms_max", policy.P95MSMax).
			Str("winner", winner.Name).
			Msg("SLA policy retuned")
	}
	return policy, nil
}

func clampRange(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
