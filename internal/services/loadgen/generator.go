// Package loadgen drives deterministic, QPS-paced request phases
// against a search backend and records per-request outcomes.
package loadgen

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/interfaces"
	"github.com/seralab/tunex/internal/models"
	"github.com/seralab/tunex/internal/services/metrics"
)

// Config parameterizes one generator instance. The same (Seed, TopKMix)
// pair always yields the same query sequence, so A and B phases of a
// run replay identical traffic.
type Config struct {
	Seed         int64
	TopKMix      []int
	QPS          float64
	Concurrency  int
	RecallSample float64
}

// Query is one generated request.
type Query struct {
	Seq          int
	TopK         int
	HasFilter    bool
	HasFulltext  bool
	SampleRecall bool
}

// Generator produces the deterministic query stream and paces it.
type Generator struct {
	cfg    Config
	client interfaces.SearchClient
	logger *common.Logger
	sink   func(models.MetricSample)
	route  func(q models.QueryContext) string
	now    func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock overrides the sample timestamp clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithRouteFn sets the per-query backend chooser. Defaults to dense.
func WithRouteFn(route func(q models.QueryContext) string) Option {
	return func(g *Generator) { g.route = route }
}

// New builds a generator. sink receives every per-request sample.
func New(cfg Config, client interfaces.SearchClient, logger *common.Logger, sink func(models.MetricSample), opts ...Option) *Generator {
	if cfg.QPS <= 0 {
		cfg.QPS = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if len(cfg.TopKMix) == 0 {
		cfg.TopKMix = []int{10}
	}
	g := &Generator{
		cfg:    cfg,
		client: client,
		logger: logger,
		sink:   sink,
		route:  func(models.QueryContext) string { return models.BackendDense },
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// QuerySequence returns the first n queries of the deterministic
// stream. The stream depends only on (Seed, TopKMix): repeated calls
// and repeated runs yield identical sequences for every phase.
func (g *Generator) QuerySequence(n int) []Query {
	rng := rand.New(rand.NewSource(g.cfg.Seed))
	queries := make([]Query, n)
	for i := range queries {
		topk := g.cfg.TopKMix[rng.Intn(len(g.cfg.TopKMix))]
		queries[i] = Query{
			Seq:          i,
			TopK:         topk,
			HasFilter:    rng.Float64() < 0.1,
			HasFulltext:  rng.Float64() < 0.05,
			SampleRecall: rng.Float64() < g.cfg.RecallSample,
		}
	}
	return queries
}

// RunPhase drives one phase for the given duration, pacing at the
// configured QPS under the concurrency cap. Requests started within
// the phase are awaited before return, so phase boundaries are hard.
// Cancellation is honoured at every request boundary.
func (g *Generator) RunPhase(ctx context.Context, phase string, duration time.Duration) models.PhaseStats {
	limiter := rate.NewLimiter(rate.Limit(g.cfg.QPS), 1)
	sem := make(chan struct{}, g.cfg.Concurrency)
	deadline := g.now().Add(duration)

	var (
		wg sync.WaitGroup
		mu sync.Mutex

		latencies []float64
		errors    int
		recallSum float64
		recallN   int
		buckets   = make(map[int64]struct{})
	)

	rng := rand.New(rand.NewSource(g.cfg.Seed))
	seq := 0
	started := g.now()

	for g.now().Before(deadline) {
		if err := limiter.Wait(ctx); err != nil {
			break // cancelled while pacing
		}
		if ctx.Err() != nil || !g.now().Before(deadline) {
			break
		}

		topk := g.cfg.TopKMix[rng.Intn(len(g.cfg.TopKMix))]
		q := Query{
			Seq:          seq,
			TopK:         topk,
			HasFilter:    rng.Float64() < 0.1,
			HasFulltext:  rng.Float64() < 0.05,
			SampleRecall: rng.Float64() < g.cfg.RecallSample,
		}
		seq++

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			goto drain
		}

		wg.Add(1)
		go func(q Query) {
			defer wg.Done()
			defer func() { <-sem }()

			qc := models.QueryContext{TopK: q.TopK, HasFilter: q.HasFilter, HasFulltext: q.HasFulltext}
			backend := g.route(qc)

			res, err := g.client.Search(ctx, backend, qc)
			s := models.MetricSample{
				TSMs:      g.now().UnixMilli(),
				Phase:     phase,
				QuerySeq:  q.Seq,
				TopK:      q.TopK,
				LatencyMS: res.LatencyMS,
				Status:    res.Status,
				Backend:   backend,
			}
			if err != nil {
				s.Error = err.Error()
				if s.Status == 0 {
					s.Status = 599
				}
			} else if q.SampleRecall {
				r := res.RecallAtK
				s.RecallAtK = &r
			}

			mu.Lock()
			latencies = append(latencies, res.LatencyMS)
			buckets[s.TSMs/5000] = struct{}{}
			if err != nil || res.Status >= 400 {
				errors++
			}
			if s.RecallAtK != nil {
				recallSum += *s.RecallAtK
				recallN++
			}
			mu.Unlock()

			if g.sink != nil {
				g.sink(s)
			}
		}(q)
	}

drain:
	wg.Wait()

	elapsed := g.now().Sub(started).Seconds()
	stats := models.PhaseStats{Phase: phase, Requests: seq, Errors: errors, RecallN: recallN, Buckets: len(buckets)}
	if len(latencies) > 0 {
		stats.P95MS = metrics.Percentile(latencies, 0.95)
		var sum float64
		for _, l := range latencies {
			sum += l
		}
		stats.MeanMS = sum / float64(len(latencies))
	}
	if recallN > 0 {
		stats.RecallMean = recallSum / float64(recallN)
	}
	if elapsed > 0 {
		stats.QPS = float64(seq) / elapsed
	}
	return stats
}
