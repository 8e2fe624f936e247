// Package sla grades configuration measurements against SLA
// thresholds, picks per-category winners, and retunes thresholds from
// accepted winners.
package sla

import (
	"fmt"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
)

// Verdict thresholds. Quality needs statistical evidence and no recall
// regression; SLA tolerates a small p95 delta; cost is graded on
// per-query dollars.
const (
	qualityPValueMax   = 0.05
	qualityMinBuckets  = 10
	qualityRecallFloor = -0.01

	slaDeltaP95GreenMS  = 5.0
	slaDeltaP95YellowMS = 25.0
	slaSafetyGreen      = 0.99
	slaSafetyYellow     = 0.95
	slaApplyGreen       = 0.95
	slaApplyYellow      = 0.90

	costGreenMax  = 5e-5
	costYellowMax = 1e-4
)

// Evaluator grades comparison measurements.
type Evaluator struct {
	logger *common.Logger
}

// NewEvaluator builds an evaluator.
func NewEvaluator(logger *common.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// Evaluate computes the three sub-verdicts and the overall grade for
// one variant-vs-control measurement.
func (e *Evaluator) Evaluate(m models.ComparisonMetrics) models.SLAVerdict {
	v := models.SLAVerdict{
		Quality: qualityVerdict(m),
		SLA:     slaVerdict(m),
		Cost:    costVerdict(m.CostPerQuery),
	}

	switch {
	case v.Quality == models.VerdictGreen && v.SLA == models.VerdictGreen && v.Cost == models.VerdictGreen:
		v.Overall = models.VerdictPass
	case v.Quality == models.VerdictRed || v.SLA == models.VerdictRed || v.Cost == models.VerdictRed:
		v.Overall = models.VerdictFail
	default:
		v.Overall = models.VerdictWarn
	}
	v.Reason = verdictReason(v, m)

	if e.logger != nil {
		e.logger.Debug().
			Str("overall", v.Overall).
			Str("quality", v.Quality).
			Str("sla", v.SLA).
			Str("cost", v.Cost).
			Msg("SLA verdict computed")
	}
	return v
}

// qualityVerdict is red on a recall regression, yellow when the
// evidence is insufficient, green otherwise.
func qualityVerdict(m models.ComparisonMetrics) string {
	if m.DeltaRecall < qualityRecallFloor {
		return models.VerdictRed
	}
	if m.PValue >= qualityPValueMax || m.Buckets < qualityMinBuckets {
		return models.VerdictYellow
	}
	return models.VerdictGreen
}

func slaVerdict(m models.ComparisonMetrics) string {
	if m.DeltaP95MS > slaDeltaP95YellowMS || m.SafetyRate < slaSafetyYellow || m.ApplyRate < slaApplyYellow {
		return models.VerdictRed
	}
	if m.DeltaP95MS > slaDeltaP95GreenMS || m.SafetyRate < slaSafetyGreen || m.ApplyRate < slaApplyGreen {
		return models.VerdictYellow
	}
	return models.VerdictGreen
}

func costVerdict(costPerQuery float64) string {
	switch {
	case costPerQuery <= costGreenMax:
		return models.VerdictGreen
	case costPerQuery <= costYellowMax:
		return models.VerdictYellow
	default:
		return models.VerdictRed
	}
}

func verdictReason(v models.SLAVerdict, m models.ComparisonMetrics) string {
	switch {
	case v.Quality == models.VerdictRed:
		return fmt.Sprintf("recall regression: delta %.4f", m.DeltaRecall)
	case v.SLA == models.VerdictRed:
		return fmt.Sprintf("latency/safety breach: delta_p95 %.1fms safety %.3f apply %.3f", m.DeltaP95MS, m.SafetyRate, m.ApplyRate)
	case v.Cost == models.VerdictRed:
		return fmt.Sprintf("cost %.2e per query over budget", m.CostPerQuery)
	case v.Overall == models.VerdictWarn && v.Quality == models.VerdictYellow:
		return fmt.Sprintf("insufficient evidence: p=%.3f buckets=%d", m.PValue, m.Buckets)
	case v.Overall == models.VerdictWarn:
		return "degraded but within tolerances"
	default:
		return ""
	}
}
