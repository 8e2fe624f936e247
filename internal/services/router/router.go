// Package router steers each query to the dense ANN backend or the
// rich filter-capable backend, by rules or by estimated cost.
package router

import (
	"math/rand"
	"sync"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
)

// Router holds per-instance routing state: mode, counters, and a
// bounded decision history. Not shared across runs.
type Router struct {
	cfg common.RouterConfig

	mu      sync.Mutex
	enabled bool
	mode    string
	manual  string
	rng     *rand.Rand

	counters models.RouterCounters
	history  []models.RouteDecision
}

// New builds a router. seed drives the sampling draw so routing is
// reproducible within a run.
func New(cfg common.RouterConfig, seed int64) *Router {
	if cfg.TopKThreshold <= 0 {
		cfg.TopKThreshold = 32
	}
	if cfg.SamplingPct <= 0 {
		cfg.SamplingPct = 0.05
	}
	if cfg.LatencyWeight <= 0 {
		cfg.LatencyWeight = 0.7
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 128
	}
	mode := cfg.Mode
	if mode == "" {
		mode = "rules"
	}
	return &Router{
		cfg:     cfg,
		enabled: true,
		mode:    mode,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// SetFlags reconfigures the router at runtime (ops API).
func (r *Router) SetFlags(enabled bool, mode, manual string) error {
	if mode != "rules" && mode != "cost" {
		return common.ErrInvalidInput("unknown router mode %q", mode)
	}
	if manual != "" && manual != models.BackendDense && manual != models.BackendRich {
		return common.ErrInvalidInput("unknown manual backend %q", manual)
	}

	r.mu.Lock()
	r.enabled = enabled
	r.mode = mode
	r.manual = manual
	r.mu.Unlock()
	return nil
}

// Decide routes one query given current backend load snapshots.
func (r *Router) Decide(q models.QueryContext, dense, rich models.BackendLoad) models.RouteDecision {
	r.mu.Lock()
	defer r.mu.Unlock()

	var d models.RouteDecision
	switch {
	case !r.enabled:
		d = models.RouteDecision{
			Backend:           models.BackendDense,
			Rule:              "disabled",
			Reason:            "routing disabled, defaulting to dense",
			Confidence:        0.5,
			FallbackAvailable: true,
		}
	case r.manual != "":
		d = models.RouteDecision{
			Backend:           r.manual,
			Rule:              "manual",
			Reason:            "manual backend override",
			Confidence:        1.0,
			FallbackAvailable: false,
		}
	case r.mode == "cost":
		d = r.decideCost(q, dense, rich)
	default:
		d = r.decideRules(q, dense)
	}

	r.record(d)
	return d
}

// Snapshot returns counters and the recent decision history.
func (r *Router) Snapshot() models.RouterSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	recent := make([]models.RouteDecision, len(r.history))
	copy(recent, r.history)
	return models.RouterSnapshot{
		Enabled:       r.enabled,
		Mode:          r.mode,
		ManualBackend: r.manual,
		Counters:      r.counters,
		Recent:        recent,
	}
}

// record updates counters and the bounded history. Caller holds r.mu.
func (r *Router) record(d models.RouteDecision) {
	switch d.Backend {
	case models.BackendDense:
		r.counters.Dense++
	case models.BackendRich:
		r.counters.Rich++
	}
	if d.Rule == "sampling" {
		r.counters.Sampling++
	}

	r.history = append(r.history, d)
	if len(r.history) > r.cfg.HistorySize {
		r.history = r.history[len(r.history)-r.cfg.HistorySize:]
	}
}
