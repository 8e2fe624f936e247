package server

import (
	"net/http"
)

// handleControlPolicy handles POST /ops/control/policy.
// Swapping resets the active controller's internal state.
func (s *Server) handleControlPolicy(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Policy string `json:"policy"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	holder := s.app.Orchestrator.Control()
	if err := holder.Swap(req.Policy); err != nil {
		WriteErr(w, err)
		return
	}

	s.logger.Info().Str("policy", req.Policy).Msg("Controller policy swapped")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"policy": holder.Name(),
	})
}

// handleRoutingFlags handles POST /ops/routing/flags.
func (s *Server) handleRoutingFlags(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Enabled       bool   `json:"enabled"`
		Mode          string `json:"mode"`
		ManualBackend string `json:"manual_backend"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	rtr := s.app.Orchestrator.Router()
	if err := rtr.SetFlags(req.Enabled, req.Mode, req.ManualBackend); err != nil {
		WriteErr(w, err)
		return
	}

	s.logger.Info().
		Bool("enabled", req.Enabled).
		Str("mode", req.Mode).
		Str("manual_backend", req.ManualBackend).
		Msg("Router flags updated")
	WriteJSON(w, http.StatusOK, rtr.Snapshot())
}

// handleRoutingState handles GET /ops/routing/state.
func (s *Server) handleRoutingState(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, s.app.Orchestrator.Router().Snapshot())
}

// handleBanditState handles GET /ops/bandit/state.
func (s *Server) handleBanditState(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	snap, err := s.app.Orchestrator.Bandit().Snapshot()
	if err != nil {
		WriteErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}

// handleMetricsWindow handles GET /metrics/window60s.
func (s *Server) handleMetricsWindow(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, s.app.Orchestrator.Window())
}

// handleMetricsSeries handles GET /metrics/series60s.
func (s *Server) handleMetricsSeries(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	window := s.app.Orchestrator.Window()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"series":  window.Series,
		"samples": window.Samples,
	})
}
