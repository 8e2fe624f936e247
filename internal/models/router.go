package models

// Backend names. "dense" is the ANN-only backend, "rich" the
// filter-capable one.
const (
	BackendDense = "dense"
	BackendRich  = "rich"
)

// QueryContext describes one query for routing purposes.
type QueryContext struct {
	TopK        int     `json:"topk"`
	HasFilter   bool    `json:"has_filter"`
	HasFulltext bool    `json:"has_fulltext"`
	Complexity  float64 `json:"complexity"`
}

// BackendLoad is a point-in-time load snapshot for one backend.
type BackendLoad struct {
	CPUPct  float64 `json:"cpu_pct"`
	QPS     float64 `json:"qps"`
	P95MS   float64 `json:"p95_ms"`
	Healthy bool    `json:"healthy"`
}

// RouteDecision is the outcome of routing one query.
type RouteDecision struct {
	Backend           string            `json:"backend"`
	Rule              string            `json:"rule"`
	Reason            string            `json:"reason"`
	Confidence        float64           `json:"confidence"`
	FallbackAvailable bool              `json:"fallback_available"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// RouterCounters tracks per-backend decision counts.
type RouterCounters struct {
	Dense    int `json:"dense"`
	Rich     int `json:"rich"`
	Sampling int `json:"sampling"`
}

// RouterSnapshot is a consistent read of router state for the ops API.
type RouterSnapshot struct {
	Enabled       bool            `json:"enabled"`
	Mode          string          `json:"mode"`
	ManualBackend string          `json:"manual_backend,omitempty"`
	Counters      RouterCounters  `json:"counters"`
	Recent        []RouteDecision `json:"recent"`
}
