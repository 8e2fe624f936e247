package router

import (
	"fmt"
	"math"

	"github.com/seralab/tunex/internal/models"
)

// decideCost picks the cheaper backend by the weighted latency+price
// estimate. Queries ineligible for dense are forced to rich first.
// Caller holds r.mu.
func (r *Router) decideCost(q models.QueryContext, dense, rich models.BackendLoad) models.RouteDecision {
	if q.HasFilter || q.HasFulltext || q.TopK > r.cfg.TopKThreshold || !dense.Healthy {
		return models.RouteDecision{
			Backend:           models.BackendRich,
			Rule:              "cost_ineligible",
			Reason:            "query ineligible for dense backend",
			Confidence:        1.0,
			FallbackAvailable: false,
		}
	}

	norm := math.Max(math.Max(dense.P95MS, rich.P95MS), 1)
	w := r.cfg.LatencyWeight
	denseCost := w*(dense.P95MS/norm) + (1-w)*r.cfg.DensePricePer1K
	richCost := w*(rich.P95MS/norm) + (1-w)*r.cfg.RichPricePer1K

	backend := models.BackendDense
	if richCost < denseCost {
		backend = models.BackendRich
	}

	return models.RouteDecision{
		Backend:           backend,
		Rule:              "cost",
		Reason:            fmt.Sprintf("cost dense %.4f vs rich %.4f", denseCost, richCost),
		Confidence:        0.7,
		FallbackAvailable: true,
		Metadata: map[string]string{
			"dense_cost": fmt.Sprintf("%.4f", denseCost),
			"rich_cost":  fmt.Sprintf("%.4f", richCost),
		},
	}
}
