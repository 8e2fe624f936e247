package common

import (
	"strconv"
	"strings"
)

// RewardWeights weight the bandit reward terms. All values are
// non-negative multipliers; latency, error and cost act as penalties.
type RewardWeights struct {
	Recall  float64 `json:"recall" toml:"recall"`
	Latency float64 `json:"latency" toml:"latency"`
	Error   float64 `json:"error" toml:"error"`
	Cost    float64 `json:"cost" toml:"cost"`
}

// DefaultRewardWeights returns the documented default weighting.
func DefaultRewardWeights() RewardWeights {
	return RewardWeights{Recall: 1.0, Latency: 0.7, Error: 1.2, Cost: 0.3}
}

// ParseRewardWeights parses a "k=v,k=v" weight spec (the REWARD_WEIGHTS
// env format). Keys outside {recall, latency, error, cost} are rejected;
// omitted keys keep their defaults.
func ParseRewardWeights(spec string) (RewardWeights, error) {
	w := DefaultRewardWeights()
	if strings.TrimSpace(spec) == "" {
		return w, nil
	}

	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return w, ErrInvalidInput("reward weights: expected k=v, got %q", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return w, ErrInvalidInput("reward weights: bad value in %q", pair)
		}
		switch strings.TrimSpace(k) {
		case "recall":
			w.Recall = f
		case "latency":
			w.Latency = f
		case "error":
			w.Error = f
		case "cost":
			w.Cost = f
		default:
			return w, ErrInvalidInput("reward weights: unknown key %q", k)
		}
	}
	return w, nil
}
