package models

import "time"

// Controller actions.
const (
	ActionIncrease = "increase"
	ActionDecrease = "decrease"
	ActionHold     = "hold"
)

// ControllerInput is one telemetry observation fed to a controller.
// ErrorRate and QueueDepth are recorded but unused by the MVP decision
// rules of both controllers.
type ControllerInput struct {
	P95MS      float64
	ErrorRate  float64
	QueueDepth int
	Now        time.Time
}

// Recommendation is a controller's output for the next window.
type Recommendation struct {
	Concurrency int     `json:"concurrency"`
	BatchSize   int     `json:"batch_size"`
	Action      string  `json:"action"`
	Reason      string  `json:"reason"`
	Confidence  float64 `json:"confidence"`
}

// AIMDState is the per-instance state of the AIMD controller.
type AIMDState struct {
	Multiplier   float64   `json:"current_multiplier"`
	LastDecrease time.Time `json:"last_decrease_ts"`
	Decisions    int       `json:"decisions"`
}

// PIDState is the per-instance state of the PID-lite controller.
type PIDState struct {
	Integral   float64   `json:"integral"`
	LastError  float64   `json:"last_error"`
	LastTS     time.Time `json:"last_ts"`
	Multiplier float64   `json:"current_multiplier"`
}
