package bandit

import (
	"math"
	"time"

	"github.com/seralab/tunex/internal/models"
)

// Reward scores one measurement: recall pays, latency/error/cost
// penalize. recall is clamped to [0,1]; the latency ratio to [0,2].
func (s *Selector) Reward(m models.ArmMetrics) float64 {
	w := s.cfg.Weights

	recall := clamp(m.RecallAt10, 0, 1)
	latRatio := clamp(m.P95MS/s.targetP95, 0, 2)

	return w.Recall*recall - w.Latency*latRatio - w.Error*m.ErrorRate - w.Cost*m.Cost
}

// Update applies the EMA reward update for one arm. Under-sampled arms
// are damped: weight = α · min(1, samples/min_samples). won drives the
// streak; ties count as losses.
func (s *Selector) Update(arm string, m models.ArmMetrics, won bool) error {
	reward := s.Reward(m)

	state, err := s.store.Load()
	if err != nil {
		return err
	}

	a := state.Arms[arm]
	if a == nil {
		a = &models.ArmState{}
		state.Arms[arm] = a
	}

	if a.Counts == 0 {
		a.AvgReward = reward
	} else {
		weight := s.cfg.Alpha * math.Min(1, float64(m.Samples)/float64(s.cfg.MinSamples))
		a.AvgReward = (1-weight)*a.AvgReward + weight*reward
	}
	a.Counts++

	if won {
		a.Streak++
	} else {
		a.Streak = 0
	}

	now := s.now().UTC().Format(time.RFC3339)
	m.UpdatedAt = now
	a.LastMetrics = &m
	a.LastUpdated = now

	a.WindowStats.Rewards = append(a.WindowStats.Rewards, reward)
	if len(a.WindowStats.Rewards) > windowSize {
		a.WindowStats.Rewards = a.WindowStats.Rewards[len(a.WindowStats.Rewards)-windowSize:]
	}
	recomputeWindow(&a.WindowStats)

	return s.store.Save(state)
}

// Audit recomputes each arm's instant reward from last_metrics and
// compares it with the stored average.
func (s *Selector) Audit() (map[string]string, error) {
	state, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(s.cfg.Arms))
	for _, name := range s.cfg.Arms {
		a := state.Arms[name]
		if a == nil || a.LastMetrics == nil {
			out[name] = models.DriftMissing
			continue
		}
		instant := s.Reward(*a.LastMetrics)
		if math.Abs(instant-a.AvgReward) > driftThreshold {
			out[name] = models.DriftDrift
		} else {
			out[name] = models.DriftOK
		}
	}
	return out, nil
}

func recomputeWindow(w *models.WindowStats) {
	if len(w.Rewards) == 0 {
		w.Mean, w.Min, w.Max = 0, 0, 0
		return
	}
	sum := 0.0
	w.Min, w.Max = w.Rewards[0], w.Rewards[0]
	for _, r := range w.Rewards {
		sum += r
		if r < w.Min {
			w.Min = r
		}
		if r > w.Max {
			w.Max = r
		}
	}
	w.Mean = sum / float64(len(w.Rewards))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
