package server

import (
	"net/http"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
)

// handleOrchestrateRun handles POST /orchestrate/run?commit={true|false}.
// Without commit=true the plan is returned (and journaled) but nothing
// is enqueued.
func (s *Server) handleOrchestrateRun(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.OrchestrateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	commit := r.URL.Query().Get("commit") == "true"
	if !commit {
		plan, err := s.app.Orchestrator.DryRun(req)
		if err != nil {
			WriteErr(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"committed": false,
			"plan":      plan,
		})
		return
	}

	status, err := s.app.Orchestrator.Commit(req)
	if err != nil {
		WriteErr(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"committed": true,
		"run":       status,
	})
}

// handleOrchestrateStatus handles GET /orchestrate/status?run_id=X.
func (s *Server) handleOrchestrateStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	runID := r.URL.Query().Get("run_id")
	if err := common.ValidateJobID(runID); err != nil {
		WriteErr(w, err)
		return
	}

	status, err := s.app.Orchestrator.Status(runID)
	if err != nil {
		WriteErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// handleOrchestrateReport handles GET /orchestrate/report?run_id=X.
func (s *Server) handleOrchestrateReport(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	runID := r.URL.Query().Get("run_id")
	if err := common.ValidateJobID(runID); err != nil {
		WriteErr(w, err)
		return
	}

	report, err := s.app.Orchestrator.Report(runID)
	if err != nil {
		WriteErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}
