package router

import (
	"fmt"

	"github.com/seralab/tunex/internal/models"
)

// decideRules evaluates the rule chain top to bottom; first match wins.
// Ineligibility for dense (rules 1, 3, 4) is never recoverable by
// sampling. Caller holds r.mu.
func (r *Router) decideRules(q models.QueryContext, dense models.BackendLoad) models.RouteDecision {
	if q.HasFilter || q.HasFulltext {
		return models.RouteDecision{
			Backend:           models.BackendRich,
			Rule:              "filter_or_fulltext",
			Reason:            "query requires filter/fulltext capability",
			Confidence:        1.0,
			FallbackAvailable: false,
		}
	}

	if q.TopK > r.cfg.TopKThreshold {
		return models.RouteDecision{
			Backend:           models.BackendRich,
			Rule:              "topk_threshold",
			Reason:            fmt.Sprintf("topk %d > %d", q.TopK, r.cfg.TopKThreshold),
			Confidence:        0.8,
			FallbackAvailable: true,
		}
	}

	if !dense.Healthy {
		return models.RouteDecision{
			Backend:           models.BackendRich,
			Rule:              "dense_unhealthy",
			Reason:            "dense backend unhealthy",
			Confidence:        1.0,
			FallbackAvailable: false,
		}
	}

	if dense.CPUPct > 0.85 {
		return models.RouteDecision{
			Backend:           models.BackendRich,
			Rule:              "load_shed",
			Reason:            fmt.Sprintf("dense cpu %.0f%% over shed threshold", dense.CPUPct*100),
			Confidence:        0.9,
			FallbackAvailable: false,
		}
	}

	if r.rng.Float64() < r.cfg.SamplingPct {
		return models.RouteDecision{
			Backend:           models.BackendRich,
			Rule:              "sampling",
			Reason:            "comparison sampling draw",
			Confidence:        0.5,
			FallbackAvailable: true,
			Metadata:          map[string]string{"dense_eligible": "true"},
		}
	}

	return models.RouteDecision{
		Backend:           models.BackendDense,
		Rule:              "default",
		Reason:            "dense eligible",
		Confidence:        0.7,
		FallbackAvailable: true,
	}
}
