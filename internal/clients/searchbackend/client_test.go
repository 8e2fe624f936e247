package searchbackend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
)

func TestSearchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"latency_ms": 42.5, "recall_at_k": 0.91, "cache_hit": true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", WithLogger(common.NewSilentLogger()))
	res, err := c.Search(context.Background(), models.BackendDense, models.QueryContext{TopK: 10})
	if err != nil {
		t.Fatal(err)
	}
	if res.Backend != models.BackendDense || res.Status != 200 {
		t.Errorf("result = %+v", res)
	}
	if res.LatencyMS != 42.5 || res.RecallAtK != 0.91 || !res.CacheHit {
		t.Errorf("payload not carried through: %+v", res)
	}
}

func TestSearchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"latency_ms": 10, "recall_at_k": 0.9}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", WithLogger(common.NewSilentLogger()), WithRetries(2))
	res, err := c.Search(context.Background(), models.BackendDense, models.QueryContext{TopK: 10})
	if err != nil {
		t.Fatalf("retries did not recover: %v", err)
	}
	if res.Status != 200 {
		t.Errorf("status = %d", res.Status)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("backend called %d times, want 3", got)
	}
}

func TestSearchClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", WithLogger(common.NewSilentLogger()), WithRetries(3))
	_, err := c.Search(context.Background(), models.BackendDense, models.QueryContext{TopK: 10})
	if !common.IsKind(err, common.KindInvalidInput) {
		t.Errorf("err = %v, want InvalidInput", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("4xx retried: %d calls", got)
	}
}

func TestSearchTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "",
		WithLogger(common.NewSilentLogger()),
		WithTimeout(20*time.Millisecond),
		WithRetries(0),
	)
	_, err := c.Search(context.Background(), models.BackendDense, models.QueryContext{TopK: 10})
	if !common.IsKind(err, common.KindTransient) {
		t.Errorf("timeout err = %v, want Transient", err)
	}
}

func TestSearchUnknownBackend(t *testing.T) {
	c := NewClient("http://localhost:1", "http://localhost:1", WithLogger(common.NewSilentLogger()))
	_, err := c.Search(context.Background(), "exotic", models.QueryContext{})
	if !common.IsKind(err, common.KindInvalidInput) {
		t.Errorf("err = %v, want InvalidInput", err)
	}
}

func TestSearchRichBackendRouting(t *testing.T) {
	var richCalls int32
	rich := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&richCalls, 1)
		w.Write([]byte(`{"latency_ms": 10, "recall_at_k": 0.95}`))
	}))
	defer rich.Close()

	c := NewClient("http://localhost:1", rich.URL, WithLogger(common.NewSilentLogger()))
	res, err := c.Search(context.Background(), models.BackendRich, models.QueryContext{TopK: 10, HasFilter: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Backend != models.BackendRich || atomic.LoadInt32(&richCalls) != 1 {
		t.Errorf("rich backend not used: %+v calls=%d", res, richCalls)
	}
}

func TestSimulatorDeterministic(t *testing.T) {
	cfg := common.BackendsConfig{SimSeed: 99}
	s1 := NewSimulator(cfg, common.NewSilentLogger())
	s2 := NewSimulator(cfg, common.NewSilentLogger())

	for i := 0; i < 50; i++ {
		q := models.QueryContext{TopK: 10 + i%40}
		a, err1 := s1.Search(context.Background(), models.BackendDense, q)
		b, err2 := s2.Search(context.Background(), models.BackendDense, q)
		if err1 != nil || err2 != nil {
			t.Fatalf("sim errors with zero error rate: %v %v", err1, err2)
		}
		if a != b {
			t.Fatalf("sim diverged at query %d: %+v vs %+v", i, a, b)
		}
	}
}

func TestSimulatorErrorInjection(t *testing.T) {
	s := NewSimulator(common.BackendsConfig{SimSeed: 7, SimError: 1.0}, common.NewSilentLogger())
	res, err := s.Search(context.Background(), models.BackendDense, models.QueryContext{TopK: 10})
	if !common.IsKind(err, common.KindTransient) {
		t.Errorf("err = %v, want Transient", err)
	}
	if res.Status != 503 {
		t.Errorf("status = %d, want 503", res.Status)
	}
}

func TestSimulatorBackendProfiles(t *testing.T) {
	s := NewSimulator(common.BackendsConfig{SimSeed: 3}, common.NewSilentLogger())

	var denseSum, richSum float64
	n := 200
	for i := 0; i < n; i++ {
		d, err := s.Search(context.Background(), models.BackendDense, models.QueryContext{TopK: 10})
		if err != nil {
			t.Fatal(err)
		}
		r, err := s.Search(context.Background(), models.BackendRich, models.QueryContext{TopK: 10})
		if err != nil {
			t.Fatal(err)
		}
		denseSum += d.LatencyMS
		richSum += r.LatencyMS
	}
	if denseSum >= richSum {
		t.Errorf("dense mean latency %.1f >= rich %.1f", denseSum/float64(n), richSum/float64(n))
	}
}

func TestSimulatorCancelled(t *testing.T) {
	s := NewSimulator(common.BackendsConfig{SimSeed: 1}, common.NewSilentLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Search(ctx, models.BackendDense, models.QueryContext{TopK: 10})
	if !common.IsKind(err, common.KindTransient) {
		t.Errorf("cancelled err = %v, want Transient", err)
	}
}
