package metrics

import (
	"testing"
	"time"

	"github.com/seralab/tunex/internal/models"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sample(tsMS int64, latency float64) models.MetricSample {
	return models.MetricSample{TSMs: tsMS, Phase: "A", LatencyMS: latency, Status: 200, Backend: "dense"}
}

func TestSnapshotAggregates(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 4, 0, time.UTC) // within the 12:00:00 bucket
	a := NewWithClock(fixedClock(now))

	base := now.Add(-2 * time.Second).UnixMilli()
	for i, lat := range []float64{10, 20, 30, 40, 50} {
		a.Record(sample(base+int64(i), lat))
	}

	snap := a.Snapshot()
	if snap.Samples != 5 {
		t.Fatalf("samples = %d, want 5", snap.Samples)
	}
	if snap.P95MS == nil || *snap.P95MS < 40 || *snap.P95MS > 50 {
		t.Errorf("p95 = %v, want in (40, 50]", snap.P95MS)
	}
	if len(snap.Series) != 12 {
		t.Fatalf("series length = %d, want 12", len(snap.Series))
	}
	// Newest bucket is last and aligned
	last := snap.Series[11]
	if last.TS%5000 != 0 {
		t.Errorf("bucket ts %d not aligned", last.TS)
	}
	if last.TPS != 1.0 { // 5 samples / 5s
		t.Errorf("tps = %v, want 1.0", last.TPS)
	}
}

func TestBucketP95NullUnderThreeSamples(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 4, 0, time.UTC)
	a := NewWithClock(fixedClock(now))

	a.Record(sample(now.Add(-time.Second).UnixMilli(), 10))
	a.Record(sample(now.Add(-time.Second).UnixMilli(), 20))

	snap := a.Snapshot()
	if got := snap.Series[11].P95; got != nil {
		t.Errorf("bucket p95 = %v with 2 samples, want nil", *got)
	}
}

func TestRecallMean(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 4, 0, time.UTC)
	a := NewWithClock(fixedClock(now))

	r1, r2 := 0.8, 1.0
	s1 := sample(now.UnixMilli(), 10)
	s1.RecallAtK = &r1
	s2 := sample(now.UnixMilli(), 10)
	s2.RecallAtK = &r2
	a.Record(s1)
	a.Record(s2)
	a.Record(sample(now.UnixMilli(), 10)) // no recall

	snap := a.Snapshot()
	if snap.RecallMean == nil || *snap.RecallMean != 0.9 {
		t.Errorf("recall mean = %v, want 0.9", snap.RecallMean)
	}
}

func TestOldSamplesDropped(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 4, 0, time.UTC)
	a := NewWithClock(fixedClock(now))

	a.Record(sample(now.Add(-2*time.Minute).UnixMilli(), 10))
	a.Record(sample(now.UnixMilli(), 10))

	snap := a.Snapshot()
	if snap.Samples != 1 {
		t.Errorf("samples = %d, want 1", snap.Samples)
	}
	if snap.DroppedRatio != 0.5 {
		t.Errorf("dropped ratio = %v, want 0.5", snap.DroppedRatio)
	}
}

func TestDriftToleranceAccepts(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 4, 0, time.UTC)
	a := NewWithClock(fixedClock(now))

	// 500ms into the future is within the ±1s tolerance
	a.Record(sample(now.Add(500*time.Millisecond).UnixMilli(), 10))
	snap := a.Snapshot()
	if snap.DroppedRatio != 0 {
		t.Errorf("near-future sample dropped: %+v", snap)
	}
	if snap.ClockSkewMS < 400 || snap.ClockSkewMS > 600 {
		t.Errorf("clock skew = %d, want ~500", snap.ClockSkewMS)
	}
}

func TestNullBucketCount(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 4, 0, time.UTC)
	a := NewWithClock(fixedClock(now))
	a.Record(sample(now.UnixMilli(), 10))

	snap := a.Snapshot()
	if snap.FilledNullBuckets != 11 {
		t.Errorf("null buckets = %d, want 11", snap.FilledNullBuckets)
	}
}

func TestPercentile(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if p := Percentile(vals, 0.5); p != 5.5 {
		t.Errorf("p50 = %v, want 5.5", p)
	}
	if p := Percentile(vals, 1.0); p != 10 {
		t.Errorf("p100 = %v, want 10", p)
	}
	if p := Percentile(nil, 0.95); p != 0 {
		t.Errorf("empty percentile = %v, want 0", p)
	}
}
