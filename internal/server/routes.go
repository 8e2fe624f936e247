package server

import (
	"net/http"
	"time"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Experiment jobs
	mux.HandleFunc("/experiment/run", s.handleExperimentRun)
	mux.HandleFunc("/experiment/status/", s.handleExperimentStatus)
	mux.HandleFunc("/experiment/logs/", s.handleExperimentLogs)
	mux.HandleFunc("/experiment/cancel/", s.handleExperimentCancel)
	mux.HandleFunc("/experiment/jobs", s.handleExperimentJobs)

	// Orchestrated runs
	mux.HandleFunc("/orchestrate/run", s.handleOrchestrateRun)
	mux.HandleFunc("/orchestrate/status", s.handleOrchestrateStatus)
	mux.HandleFunc("/orchestrate/report", s.handleOrchestrateReport)

	// Ops
	mux.HandleFunc("/ops/control/policy", s.handleControlPolicy)
	mux.HandleFunc("/ops/routing/flags", s.handleRoutingFlags)
	mux.HandleFunc("/ops/routing/state", s.handleRoutingState)
	mux.HandleFunc("/ops/bandit/state", s.handleBanditState)

	// Metrics
	mux.HandleFunc("/metrics/window60s", s.handleMetricsWindow)
	mux.HandleFunc("/metrics/series60s", s.handleMetricsSeries)

	// System
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/diagnostics", s.handleDiagnostics)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}
