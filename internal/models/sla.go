package models

// SLAPolicy is the persisted SLA threshold document (sla_policy.yaml).
type SLAPolicy struct {
	SchemaVersion int     `json:"schema_version" yaml:"schema_version"`
	RecallAt10Min float64 `json:"recall_at_10_min" yaml:"recall_at_10_min"`
	P95MSMax      float64 `json:"p95_ms_max" yaml:"p95_ms_max"`
	CostMax       float64 `json:"cost_max" yaml:"cost_max"`
	UpdatedAt     string  `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Sub-verdict colours.
const (
	VerdictGreen  = "green"
	VerdictYellow = "yellow"
	VerdictRed    = "red"
)

// Overall verdicts.
const (
	VerdictPass = "PASS"
	VerdictWarn = "WARN"
	VerdictFail = "FAIL"
)

// ComparisonMetrics compares a variant against its control for SLA
// evaluation. Deltas are variant minus control.
type ComparisonMetrics struct {
	PValue       float64 `json:"p_value"`
	Buckets      int     `json:"buckets"`
	DeltaRecall  float64 `json:"delta_recall"`
	DeltaP95MS   float64 `json:"delta_p95_ms"`
	SafetyRate   float64 `json:"safety_rate"`
	ApplyRate    float64 `json:"apply_rate"`
	CostPerQuery float64 `json:"cost_per_query"`
}

// SLAVerdict is the coloured verdict for one configuration measurement.
type SLAVerdict struct {
	Quality string `json:"quality"`
	SLA     string `json:"sla"`
	Cost    string `json:"cost"`
	Overall string `json:"overall"`
	Reason  string `json:"reason,omitempty"`
}

// Candidate is one configuration considered by the winner picker.
type Candidate struct {
	Name       string  `json:"name"`
	RecallAt10 float64 `json:"recall_at_10"`
	P95MS      float64 `json:"p95_ms"`
	Cost       float64 `json:"cost"`
	QPS        float64 `json:"qps"`
}

// Winners holds the per-category winner selections.
type Winners struct {
	Balanced *Candidate `json:"balanced,omitempty"`
	Quality  *Candidate `json:"quality,omitempty"`
	Latency  *Candidate `json:"latency,omitempty"`
}
