package sla

import "github.com/seralab/tunex/internal/models"

// balancedLatencyPenalty trades 1 point of recall for 2000 ms of p95.
const balancedLatencyPenalty = 0.0005

// Strict acceptance gates applied on sweep winner passes.
const (
	strictRecallMin  = 0.94
	strictP95Max     = 1800.0
	strictDeltaRec   = 0.01
	strictDeltaP95MS = 200.0
)

// PickWinners selects the quality, latency and balanced winners from a
// candidate set. Empty input yields empty winners.
func PickWinners(candidates []models.Candidate) models.Winners {
	var w models.Winners
	for i := range candidates {
		c := &candidates[i]

		// quality: max recall, tiebreak min p95
		if w.Quality == nil ||
			c.RecallAt10 > w.Quality.RecallAt10 ||
			(c.RecallAt10 == w.Quality.RecallAt10 && c.P95MS < w.Quality.P95MS) {
			w.Quality = cloneCandidate(c)
		}

		// latency: min p95 among measured, tiebreak max recall
		if c.P95MS > 0 {
			if w.Latency == nil ||
				c.P95MS < w.Latency.P95MS ||
				(c.P95MS == w.Latency.P95MS && c.RecallAt10 > w.Latency.RecallAt10) {
				w.Latency = cloneCandidate(c)
			}
		}

		// balanced: max recall - penalty * p95
		if w.Balanced == nil || balancedScore(c) > balancedScore(w.Balanced) {
			w.Balanced = cloneCandidate(c)
		}
	}
	return w
}

// PickStrictWinners applies the sweep acceptance gates before winner
// selection: recall and p95 floors for every candidate, and the
// rerank-vs-hybrid improvement gates when a baseline is given.
func PickStrictWinners(candidates []models.Candidate, baseline *models.Candidate) models.Winners {
	accepted := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.RecallAt10 < strictRecallMin || c.P95MS > strictP95Max {
			continue
		}
		if baseline != nil {
			if c.RecallAt10-baseline.RecallAt10 < strictDeltaRec {
				continue
			}
			if c.P95MS-baseline.P95MS > strictDeltaP95MS {
				continue
			}
		}
		accepted = append(accepted, c)
	}
	return PickWinners(accepted)
}

func balancedScore(c *models.Candidate) float64 {
	return c.RecallAt10 - balancedLatencyPenalty*c.P95MS
}

func cloneCandidate(c *models.Candidate) *models.Candidate {
	dup := *c
	return &dup
}
