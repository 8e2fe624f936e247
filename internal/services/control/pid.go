package control

import (
	"fmt"
	"math"
	"time"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
)

// PID integral clamp and action deadband.
const (
	integralMin = -2.0
	integralMax = 2.0
	deadband    = 0.02
	minDT       = 0.1
)

// PID is the PID-lite controller. Error is the normalized distance from
// the p95 target; output is clamped to ±MaxAdjustment per update.
type PID struct {
	cfg   common.ControlConfig
	state models.PIDState
}

// NewPID builds a PID controller, filling config defaults.
func NewPID(cfg common.ControlConfig) *PID {
	applyControlDefaults(&cfg)
	return &PID{
		cfg:   cfg,
		state: models.PIDState{Multiplier: 1.0},
	}
}

// Name identifies the controller policy.
func (p *PID) Name() string { return "pid" }

// State returns a copy of the controller state.
func (p *PID) State() models.PIDState { return p.state }

// Update consumes one p95 observation and emits a recommendation.
func (p *PID) Update(in models.ControllerInput) models.Recommendation {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	dt := minDT
	if !p.state.LastTS.IsZero() {
		dt = math.Max(now.Sub(p.state.LastTS).Seconds(), minDT)
	}

	errVal := (p.cfg.TargetP95MS - in.P95MS) / p.cfg.TargetP95MS

	p.state.Integral = math.Max(integralMin, math.Min(integralMax, p.state.Integral+errVal*dt))
	derivative := (errVal - p.state.LastError) / dt

	output := p.cfg.Kp*errVal + p.cfg.Ki*p.state.Integral + p.cfg.Kd*derivative
	output = math.Max(-p.cfg.MaxAdjustment, math.Min(p.cfg.MaxAdjustment, output))

	p.state.Multiplier = clampMultiplier(p.state.Multiplier * (1 + output))
	p.state.LastError = errVal
	p.state.LastTS = now

	action := models.ActionHold
	confidence := 0.6
	switch {
	case output > deadband:
		action = models.ActionIncrease
		confidence = 0.7
	case output < -deadband:
		action = models.ActionDecrease
		confidence = 0.8
	}

	return models.Recommendation{
		Concurrency: scaled(p.cfg.BaseConcurrency, p.state.Multiplier),
		BatchSize:   scaled(p.cfg.BaseBatchSize, p.state.Multiplier),
		Action:      action,
		Reason:      fmt.Sprintf("pid output %.3f (err %.3f, integral %.3f)", output, errVal, p.state.Integral),
		Confidence:  confidence,
	}
}
