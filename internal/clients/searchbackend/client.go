// Package searchbackend provides clients for the dense and rich search
// backends, plus a deterministic simulator for offline runs.
package searchbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
)

const (
	DefaultTimeout   = 5 * time.Second
	DefaultRateLimit = 50 // requests per second
	DefaultRetries   = 2
)

// searchRequest is the wire body sent to either backend.
type searchRequest struct {
	TopK        int     `json:"topk"`
	HasFilter   bool    `json:"has_filter"`
	HasFulltext bool    `json:"has_fulltext"`
	Complexity  float64 `json:"complexity,omitempty"`
}

// searchResponse is the wire body returned by either backend.
type searchResponse struct {
	LatencyMS float64 `json:"latency_ms"`
	RecallAtK float64 `json:"recall_at_k"`
	CacheHit  bool    `json:"cache_hit"`
}

// Client issues search requests over HTTP with per-backend circuit
// breakers, client-side pacing, and bounded retries.
type Client struct {
	denseURL   string
	richURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	retries    int
	breakers   map[string]*gobreaker.CircuitBreaker
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the client-side request rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the per-request deadline
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetries sets the retry budget for 429/5xx responses
func WithRetries(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// NewClient creates an HTTP search client for the two backend URLs.
func NewClient(denseURL, richURL string, opts ...ClientOption) *Client {
	c := &Client{
		denseURL: denseURL,
		richURL:  richURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		retries: DefaultRetries,
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.breakers = map[string]*gobreaker.CircuitBreaker{
		models.BackendDense: newBreaker(models.BackendDense, c.logger),
		models.BackendRich:  newBreaker(models.BackendRich, c.logger),
	}
	return c
}

func newBreaker(name string, logger *common.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && counts.TotalFailures*2 > counts.Requests
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("backend", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Backend circuit breaker state change")
		},
	})
}

// Search sends one query to the named backend. Timeouts and backend
// unavailability surface as Transient errors so callers can fold them
// into the error rate without aborting a run.
func (c *Client) Search(ctx context.Context, backend string, q models.QueryContext) (models.SearchResult, error) {
	baseURL := c.denseURL
	if backend == models.BackendRich {
		baseURL = c.richURL
	}
	if baseURL == "" {
		return models.SearchResult{Backend: backend, Status: 503},
			common.ErrInvalidInput("no URL configured for backend %q", backend)
	}

	breaker, ok := c.breakers[backend]
	if !ok {
		return models.SearchResult{Backend: backend, Status: 400},
			common.ErrInvalidInput("unknown backend %q", backend)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return models.SearchResult{Backend: backend, Status: 499},
			common.WrapError(common.KindTransient, err, "rate limit wait")
	}

	started := time.Now()
	out, err := breaker.Execute(func() (interface{}, error) {
		return c.searchWithRetry(ctx, baseURL, backend, q)
	})
	if err != nil {
		status := 503
		if common.IsKind(err, common.KindInvalidInput) {
			status = 400
		}
		return models.SearchResult{Backend: backend, LatencyMS: msSince(started), Status: status},
			coerceTransient(err, backend)
	}

	res := out.(models.SearchResult)
	res.Backend = backend
	if res.LatencyMS == 0 {
		res.LatencyMS = msSince(started)
	}
	return res, nil
}

// searchWithRetry retries 429 and 5xx responses with exponential
// backoff up to the configured budget.
func (c *Client) searchWithRetry(ctx context.Context, baseURL, backend string, q models.QueryContext) (models.SearchResult, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 100 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return models.SearchResult{}, common.WrapError(common.KindTransient, ctx.Err(), "search cancelled during backoff")
			}
		}

		res, retryable, err := c.searchOnce(ctx, baseURL, backend, q)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retryable {
			return models.SearchResult{}, err
		}
		c.logger.Debug().
			Str("backend", backend).
			Int("attempt", attempt+1).
			Err(err).
			Msg("Search attempt failed, retrying")
	}
	return models.SearchResult{}, lastErr
}

func (c *Client) searchOnce(ctx context.Context, baseURL, backend string, q models.QueryContext) (models.SearchResult, bool, error) {
	body, err := json.Marshal(searchRequest{
		TopK:        q.TopK,
		HasFilter:   q.HasFilter,
		HasFulltext: q.HasFulltext,
		Complexity:  q.Complexity,
	})
	if err != nil {
		return models.SearchResult{}, false, common.WrapError(common.KindFatal, err, "encode search request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return models.SearchResult{}, false, common.WrapError(common.KindFatal, err, "create search request")
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Deadline and connection errors count against the error rate.
		return models.SearchResult{}, true, common.WrapError(common.KindTransient, err, "search %s backend", backend)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var sr searchResponse
		if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
			return models.SearchResult{}, false, common.WrapError(common.KindTransient, err, "decode search response")
		}
		res := models.SearchResult{
			LatencyMS: sr.LatencyMS,
			Status:    resp.StatusCode,
			RecallAtK: sr.RecallAtK,
			CacheHit:  sr.CacheHit,
		}
		if res.LatencyMS == 0 {
			res.LatencyMS = msSince(started)
		}
		return res, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return models.SearchResult{}, true,
			common.ErrTransient("%s backend returned %d", backend, resp.StatusCode)
	default:
		return models.SearchResult{}, false,
			common.ErrInvalidInput("%s backend rejected request: %d", backend, resp.StatusCode)
	}
}

// coerceTransient maps breaker-open errors into the taxonomy.
func coerceTransient(err error, backend string) error {
	var te *common.Error
	if errors.As(err, &te) {
		return err
	}
	return common.WrapError(common.KindTransient, err, "%s backend unavailable", backend)
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}

