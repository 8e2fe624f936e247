package models

// ArmMetrics is the last measured performance of a policy arm.
type ArmMetrics struct {
	P95MS      float64 `json:"p95_ms"`
	RecallAt10 float64 `json:"recall_at_10"`
	ErrorRate  float64 `json:"error_rate"`
	Cost       float64 `json:"cost"`
	Samples    int     `json:"samples"`
	UpdatedAt  string  `json:"updated_at"`
}

// WindowStats tracks recent reward history for an arm.
type WindowStats struct {
	Rewards []float64 `json:"rewards,omitempty"`
	Mean    float64   `json:"mean"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
}

// ArmState is the persisted state of one bandit arm.
type ArmState struct {
	Counts      int         `json:"counts"`
	AvgReward   float64     `json:"avg_reward"`
	LastUpdated string      `json:"last_updated"`
	Streak      int         `json:"streak"`
	LastMetrics *ArmMetrics `json:"last_metrics,omitempty"`
	WindowStats WindowStats `json:"window_stats"`
}

// BanditState is the single persisted bandit document.
type BanditState struct {
	SchemaVersion int                  `json:"schema_version"`
	Arms          map[string]*ArmState `json:"arms"`
}

// NewBanditState returns an empty state at the current schema version.
func NewBanditState() *BanditState {
	return &BanditState{SchemaVersion: 1, Arms: make(map[string]*ArmState)}
}

// Drift audit results per arm.
const (
	DriftOK      = "OK"
	DriftDrift   = "DRIFT"
	DriftMissing = "missing"
)

// BanditSnapshot is a consistent read of bandit state for the ops API.
type BanditSnapshot struct {
	Strategy string               `json:"strategy"`
	Round    int                  `json:"round"`
	Arms     map[string]*ArmState `json:"arms"`
	Drift    map[string]string    `json:"drift"`
}
