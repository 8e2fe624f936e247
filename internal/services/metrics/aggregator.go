// Package metrics aggregates per-request samples into aligned
// 5-second buckets over a rolling 60-second window.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/seralab/tunex/internal/models"
)

const (
	// BucketSec is the bucket alignment in seconds.
	BucketSec = 5
	// WindowSec is the rolling window span in seconds.
	WindowSec = 60
	// driftToleranceMS lets slightly-early or slightly-late samples in.
	driftToleranceMS = 1000

	bucketCount = WindowSec / BucketSec
	minP95Count = 3
)

type bucket struct {
	start     int64 // epoch ms, aligned to BucketSec
	latencies []float64
	recallSum float64
	recallN   int
	count     int
	errors    int
}

// Aggregator maintains the bucket ring. A single short-lived lock
// guards appends; snapshots are O(bucket count).
type Aggregator struct {
	mu      sync.Mutex
	buckets [bucketCount]bucket

	total      int64
	dropped    int64
	lastAppend time.Time
	maxSkewMS  int64

	now func() time.Time
}

// New builds an aggregator using the wall clock.
func New() *Aggregator {
	return &Aggregator{now: time.Now}
}

// NewWithClock builds an aggregator with an injected clock, for tests.
func NewWithClock(now func() time.Time) *Aggregator {
	return &Aggregator{now: now}
}

func alignMS(tsMS int64) int64 {
	return tsMS - tsMS%(BucketSec*1000)
}

// Record appends one sample into its aligned bucket. Samples outside
// the window (beyond drift tolerance) are counted as dropped.
func (a *Aggregator) Record(s models.MetricSample) {
	nowMS := a.now().UnixMilli()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.lastAppend = a.now()
	if skew := s.TSMs - nowMS; skew > a.maxSkewMS {
		a.maxSkewMS = skew
	}

	oldest := alignMS(nowMS) - int64(WindowSec-BucketSec)*1000
	if s.TSMs < oldest-driftToleranceMS || s.TSMs > nowMS+driftToleranceMS {
		a.dropped++
		return
	}

	start := alignMS(s.TSMs)
	idx := (start / (BucketSec * 1000)) % bucketCount
	b := &a.buckets[idx]
	if b.start != start {
		*b = bucket{start: start}
	}

	b.count++
	b.latencies = append(b.latencies, s.LatencyMS)
	if s.Status >= 400 || s.Error != "" {
		b.errors++
	}
	if s.RecallAtK != nil {
		b.recallSum += *s.RecallAtK
		b.recallN++
	}
}

// Snapshot returns the aggregated 60-second view, series ordered
// oldest bucket first.
func (a *Aggregator) Snapshot() models.WindowSnapshot {
	nowMS := a.now().UnixMilli()
	current := alignMS(nowMS)

	a.mu.Lock()
	defer a.mu.Unlock()

	var (
		series    []models.BucketPoint
		allLat    []float64
		recallSum float64
		recallN   int
		samples   int
		nullCount int
	)

	for i := bucketCount - 1; i >= 0; i-- {
		start := current - int64(i)*BucketSec*1000
		idx := (start / (BucketSec * 1000)) % bucketCount
		b := &a.buckets[idx]

		point := models.BucketPoint{TS: start}
		if b.start == start && b.count > 0 {
			samples += b.count
			allLat = append(allLat, b.latencies...)
			point.TPS = float64(b.count) / BucketSec
			if len(b.latencies) >= minP95Count {
				p := percentile(b.latencies, 0.95)
				point.P95 = &p
			}
			if b.recallN > 0 {
				r := b.recallSum / float64(b.recallN)
				point.Recall = &r
				recallSum += b.recallSum
				recallN += b.recallN
			}
		} else {
			nullCount++
		}
		series = append(series, point)
	}

	snap := models.WindowSnapshot{
		Samples:           samples,
		TPS:               float64(samples) / WindowSec,
		Series:            series,
		FilledNullBuckets: nullCount,
	}
	if len(allLat) > 0 {
		p95 := percentile(allLat, 0.95)
		p99 := percentile(allLat, 0.99)
		snap.P95MS = &p95
		snap.P99MS = &p99
	}
	if recallN > 0 {
		mean := recallSum / float64(recallN)
		snap.RecallMean = &mean
	}
	if a.total > 0 {
		snap.DroppedRatio = float64(a.dropped) / float64(a.total)
	}
	if !a.lastAppend.IsZero() {
		snap.HeartbeatAgeMS = a.now().Sub(a.lastAppend).Milliseconds()
	}
	snap.ClockSkewMS = a.maxSkewMS
	return snap
}

// percentile computes the q-th percentile over a copy of values.
func percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := q * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Percentile is exported for phase-level summaries elsewhere.
func Percentile(values []float64, q float64) float64 {
	return percentile(values, q)
}
