// Package control implements the adaptive tuning controllers. Both
// controllers are pure over their own state and never perform I/O.
package control

import (
	"fmt"
	"math"
	"time"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
)

// Multiplier clamp bounds shared by both controllers.
const (
	MinMultiplier = 0.1
	MaxMultiplier = 2.0
)

// AIMD is the additive-increase / multiplicative-decrease controller.
// Decreases are gated by a cooldown window.
type AIMD struct {
	cfg   common.ControlConfig
	state models.AIMDState
}

// NewAIMD builds an AIMD controller, filling config defaults.
func NewAIMD(cfg common.ControlConfig) *AIMD {
	applyControlDefaults(&cfg)
	return &AIMD{
		cfg:   cfg,
		state: models.AIMDState{Multiplier: 1.0},
	}
}

// Name identifies the controller policy.
func (a *AIMD) Name() string { return "aimd" }

// State returns a copy of the controller state.
func (a *AIMD) State() models.AIMDState { return a.state }

// Update consumes one p95 observation and emits a recommendation.
func (a *AIMD) Update(in models.ControllerInput) models.Recommendation {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	a.state.Decisions++

	target := a.cfg.TargetP95MS
	upper := target * a.cfg.ThresholdFactor
	lower := target * 0.8
	cooldown := time.Duration(a.cfg.CooldownSec) * time.Second

	action := models.ActionHold
	reason := fmt.Sprintf("p95 %.1fms within [%.1f, %.1f]", in.P95MS, lower, upper)
	confidence := 0.6

	switch {
	case in.P95MS > upper:
		if sinceLast := now.Sub(a.state.LastDecrease); !a.state.LastDecrease.IsZero() && sinceLast < cooldown {
			reason = fmt.Sprintf("p95 %.1fms over threshold but in cooldown (%.0fs of %.0fs since last decrease)",
				in.P95MS, sinceLast.Seconds(), cooldown.Seconds())
			confidence = 0.5
		} else {
			a.state.Multiplier *= a.cfg.DecreaseFactor
			a.state.LastDecrease = now
			action = models.ActionDecrease
			reason = fmt.Sprintf("p95 %.1fms > %.1fms threshold", in.P95MS, upper)
			confidence = 0.9
		}
	case in.P95MS < lower:
		a.state.Multiplier *= 1 + a.cfg.IncreaseStep
		action = models.ActionIncrease
		reason = fmt.Sprintf("p95 %.1fms < %.1fms headroom bound", in.P95MS, lower)
		confidence = 0.7
	}

	a.state.Multiplier = clampMultiplier(a.state.Multiplier)

	return models.Recommendation{
		Concurrency: scaled(a.cfg.BaseConcurrency, a.state.Multiplier),
		BatchSize:   scaled(a.cfg.BaseBatchSize, a.state.Multiplier),
		Action:      action,
		Reason:      reason,
		Confidence:  confidence,
	}
}

func applyControlDefaults(cfg *common.ControlConfig) {
	if cfg.TargetP95MS <= 0 {
		cfg.TargetP95MS = 1200
	}
	if cfg.ThresholdFactor <= 0 {
		cfg.ThresholdFactor = 1.2
	}
	if cfg.IncreaseStep <= 0 {
		cfg.IncreaseStep = 0.05
	}
	if cfg.DecreaseFactor <= 0 {
		cfg.DecreaseFactor = 0.7
	}
	if cfg.CooldownSec <= 0 {
		cfg.CooldownSec = 30
	}
	if cfg.MaxAdjustment <= 0 {
		cfg.MaxAdjustment = 0.3
	}
	if cfg.BaseConcurrency <= 0 {
		cfg.BaseConcurrency = 8
	}
	if cfg.BaseBatchSize <= 0 {
		cfg.BaseBatchSize = 16
	}
}

func clampMultiplier(m float64) float64 {
	return math.Max(MinMultiplier, math.Min(MaxMultiplier, m))
}

func scaled(base int, multiplier float64) int {
	v := int(math.Round(float64(base) * multiplier))
	if v < 1 {
		return 1
	}
	return v
}
