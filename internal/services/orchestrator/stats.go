package orchestrator

import (
	"math"

	"github.com/seralab/tunex/internal/models"
)

// Compare folds per-round phase stats into one A-vs-B comparison.
// Deltas are variant minus control. The p-value comes from a Welch
// test over the per-round mean latencies.
func Compare(aPhases, bPhases []models.PhaseStats) models.ComparisonMetrics {
	a := candidateFrom("control", aPhases)
	b := candidateFrom("variant", bPhases)

	aMeans := make([]float64, len(aPhases))
	for i, p := range aPhases {
		aMeans[i] = p.MeanMS
	}
	bMeans := make([]float64, len(bPhases))
	for i, p := range bPhases {
		bMeans[i] = p.MeanMS
	}

	// Evidence is counted in aligned 5-second windows, not phases;
	// phases run back to back, so their windows never overlap.
	buckets := 0
	for _, p := range aPhases {
		buckets += p.Buckets
	}
	for _, p := range bPhases {
		buckets += p.Buckets
	}

	requests, errors := 0, 0
	for _, p := range bPhases {
		requests += p.Requests
		errors += p.Errors
	}
	safety := 1.0
	if requests > 0 {
		safety = 1 - float64(errors)/float64(requests)
	}

	apply := 0.0
	if len(aPhases) > 0 {
		// Rounds where the variant actually produced traffic.
		applied := 0
		for _, p := range bPhases {
			if p.Requests > 0 {
				applied++
			}
		}
		apply = float64(applied) / float64(len(aPhases))
	}

	return models.ComparisonMetrics{
		PValue:       welchPValue(aMeans, bMeans),
		Buckets:      buckets,
		DeltaRecall:  b.RecallAt10 - a.RecallAt10,
		DeltaP95MS:   b.P95MS - a.P95MS,
		SafetyRate:   safety,
		ApplyRate:    apply,
		CostPerQuery: b.Cost,
	}
}

// welchPValue is a two-sided Welch t-test approximated with the normal
// distribution. Tiny sample counts return 1: no evidence.
func welchPValue(a, b []float64) float64 {
	if len(a) < 2 || len(b) < 2 {
		return 1
	}

	ma, va := meanVar(a)
	mb, vb := meanVar(b)

	se := math.Sqrt(va/float64(len(a)) + vb/float64(len(b)))
	if se == 0 {
		if ma == mb {
			return 1
		}
		return 0
	}

	t := math.Abs(ma-mb) / se
	return 2 * (1 - normCDF(t))
}

func meanVar(xs []float64) (mean, variance float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs) - 1)
	return mean, variance
}

// normCDF is the standard normal CDF via the error function.
func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}
