package control

import (
	"sync"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/interfaces"
	"github.com/seralab/tunex/internal/models"
)

// Holder owns the active controller and supports runtime policy swap
// through the ops API. Swapping resets controller state.
type Holder struct {
	cfg common.ControlConfig

	mu      sync.Mutex
	current interfaces.Controller
}

// NewHolder builds a holder with the configured initial policy.
func NewHolder(cfg common.ControlConfig) (*Holder, error) {
	h := &Holder{cfg: cfg}
	policy := cfg.Policy
	if policy == "" {
		policy = "aimd"
	}
	if err := h.Swap(policy); err != nil {
		return nil, err
	}
	return h, nil
}

// Swap replaces the active controller. policy must be "aimd" or "pid".
func (h *Holder) Swap(policy string) error {
	var c interfaces.Controller
	switch policy {
	case "aimd":
		c = NewAIMD(h.cfg)
	case "pid":
		c = NewPID(h.cfg)
	default:
		return common.ErrInvalidInput("unknown controller policy %q", policy)
	}

	h.mu.Lock()
	h.current = c
	h.mu.Unlock()
	return nil
}

// Name returns the active policy name.
func (h *Holder) Name() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current.Name()
}

// Update delegates to the active controller.
func (h *Holder) Update(in models.ControllerInput) models.Recommendation {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current.Update(in)
}
