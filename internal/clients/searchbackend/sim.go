package searchbackend

import (
	"context"
	"math/rand"
	"sync"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
)

// Latency profiles for the simulated backends. Rich carries the
// filter machinery and pays for it.
const (
	simDenseBaseMS  = 40.0
	simDenseSpanMS  = 120.0
	simRichBaseMS   = 90.0
	simRichSpanMS   = 260.0
	simCacheHitRate = 0.25
)

// Simulator is a deterministic in-process stand-in for both backends.
// The same seed always produces the same latency and recall stream,
// which keeps offline runs reproducible.
type Simulator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	errorRate float64
	logger    *common.Logger
}

// NewSimulator builds a simulator from the backend configuration.
func NewSimulator(cfg common.BackendsConfig, logger *common.Logger) *Simulator {
	seed := cfg.SimSeed
	if seed == 0 {
		seed = 1
	}
	return &Simulator{
		rng:       rand.New(rand.NewSource(seed)),
		errorRate: cfg.SimError,
		logger:    logger,
	}
}

// Search synthesizes one backend response. Injected errors surface as
// Transient, matching the HTTP client's behaviour.
func (s *Simulator) Search(ctx context.Context, backend string, q models.QueryContext) (models.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return models.SearchResult{Backend: backend, Status: 499},
			common.WrapError(common.KindTransient, err, "simulated search cancelled")
	}
	if backend != models.BackendDense && backend != models.BackendRich {
		return models.SearchResult{Backend: backend, Status: 400},
			common.ErrInvalidInput("unknown backend %q", backend)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.errorRate > 0 && s.rng.Float64() < s.errorRate {
		return models.SearchResult{Backend: backend, LatencyMS: simDenseBaseMS, Status: 503},
			common.ErrTransient("simulated %s backend failure", backend)
	}

	base, span := simDenseBaseMS, simDenseSpanMS
	recall := 0.88
	if backend == models.BackendRich {
		base, span = simRichBaseMS, simRichSpanMS
		recall = 0.94
	}

	// Larger topK and filters cost latency but buy recall.
	latency := base + s.rng.Float64()*span + float64(q.TopK)
	if q.HasFilter || q.HasFulltext {
		latency += 30
		recall += 0.02
	}
	recall += (s.rng.Float64() - 0.5) * 0.04
	if recall > 1 {
		recall = 1
	}

	cacheHit := s.rng.Float64() < simCacheHitRate
	if cacheHit {
		latency *= 0.3
	}

	return models.SearchResult{
		Backend:   backend,
		LatencyMS: latency,
		Status:    200,
		RecallAtK: recall,
		CacheHit:  cacheHit,
	}, nil
}
