// Package bandit selects policy arms (UCB1 or ε-greedy) over persisted
// arm state and applies EMA reward updates.
package bandit

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/interfaces"
	"github.com/seralab/tunex/internal/models"
)

// driftThreshold marks an arm as drifted when its stored average
// disagrees with the instant reward of its last measurement by more.
const driftThreshold = 0.1

// windowSize bounds the per-arm recent reward window.
const windowSize = 20

// Selector owns arm selection and reward accounting for one catalog
// of policy arms.
type Selector struct {
	store  interfaces.BanditStore
	cfg    common.BanditConfig
	logger *common.Logger

	targetP95 float64

	mu    sync.Mutex
	rng   *rand.Rand
	round int
	now   func() time.Time
}

// Option configures a Selector.
type Option func(*Selector)

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

// WithSeed seeds the ε-greedy exploration draw.
func WithSeed(seed int64) Option {
	return func(s *Selector) { s.rng = rand.New(rand.NewSource(seed)) }
}

// WithTargetP95 sets the latency target the reward normalizes against.
func WithTargetP95(ms float64) Option {
	return func(s *Selector) {
		if ms > 0 {
			s.targetP95 = ms
		}
	}
}

// New builds a selector over the persisted store.
func New(store interfaces.BanditStore, cfg common.BanditConfig, logger *common.Logger, opts ...Option) *Selector {
	if cfg.Alpha <= 0 {
		cfg.Alpha = 0.3
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 15
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = 0.1
	}
	if cfg.EpsDecay <= 0 {
		cfg.EpsDecay = 0.995
	}
	if len(cfg.Arms) == 0 {
		cfg.Arms = []string{"fast", "balanced", "quality"}
	}
	if cfg.Strategy == "" {
		cfg.Strategy = "ucb1"
	}

	s := &Selector{
		store:     store,
		cfg:       cfg,
		logger:    logger,
		targetP95: 1200,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select picks the next arm. Under-sampled arms are drained first in
// name order (min_sample_round_robin); then UCB1 or ε-greedy applies.
func (s *Selector) Select() (arm, reason string, err error) {
	state, err := s.store.Load()
	if err != nil {
		return "", "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.round++

	names := append([]string(nil), s.cfg.Arms...)
	sort.Strings(names)

	// Min-sample round robin: lowest count first, ties by name.
	under := ""
	underCount := s.cfg.MinSamples
	for _, name := range names {
		count := 0
		if a := state.Arms[name]; a != nil {
			count = a.Counts
		}
		if count < underCount {
			under = name
			underCount = count
		}
	}
	if under != "" {
		return under, "min_sample_round_robin", nil
	}

	if s.cfg.Strategy == "epsilon" {
		return s.selectEpsilon(state, names)
	}
	return s.selectUCB1(state, names)
}

// selectUCB1 maximizes avg_reward + sqrt(2 ln N / n). Caller holds s.mu.
func (s *Selector) selectUCB1(state *models.BanditState, names []string) (string, string, error) {
	total := 0
	for _, name := range names {
		if a := state.Arms[name]; a != nil {
			total += a.Counts
		}
	}

	best, bestScore := "", math.Inf(-1)
	for _, name := range names {
		a := state.Arms[name]
		if a == nil || a.Counts == 0 {
			// Unseen arms get an infinite index.
			return name, "ucb1_unseen", nil
		}
		score := a.AvgReward + math.Sqrt(2*math.Log(float64(total))/float64(a.Counts))
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	return best, fmt.Sprintf("ucb1 score %.4f", bestScore), nil
}

// selectEpsilon explores with decayed probability ε, otherwise exploits
// the best average (tiebreak lower counts). Caller holds s.mu.
func (s *Selector) selectEpsilon(state *models.BanditState, names []string) (string, string, error) {
	eps := s.cfg.Epsilon * math.Pow(s.cfg.EpsDecay, float64(s.round))
	if s.rng.Float64() < eps {
		pick := names[s.rng.Intn(len(names))]
		return pick, fmt.Sprintf("epsilon_explore eps=%.4f", eps), nil
	}

	best := ""
	bestReward := math.Inf(-1)
	bestCounts := math.MaxInt
	for _, name := range names {
		a := state.Arms[name]
		if a == nil {
			continue
		}
		if a.AvgReward > bestReward || (a.AvgReward == bestReward && a.Counts < bestCounts) {
			best, bestReward, bestCounts = name, a.AvgReward, a.Counts
		}
	}
	if best == "" {
		best = names[0]
	}
	return best, "epsilon_exploit", nil
}

// Round returns the number of selections made by this instance.
func (s *Selector) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

// Snapshot returns the persisted arm state plus the drift audit.
func (s *Selector) Snapshot() (models.BanditSnapshot, error) {
	state, err := s.store.Load()
	if err != nil {
		return models.BanditSnapshot{}, err
	}
	drift, err := s.Audit()
	if err != nil {
		return models.BanditSnapshot{}, err
	}
	return models.BanditSnapshot{
		Strategy: s.cfg.Strategy,
		Round:    s.Round(),
		Arms:     state.Arms,
		Drift:    drift,
	}, nil
}
