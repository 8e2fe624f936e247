package server

import (
	"net/http"
	"strconv"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
)

// handleExperimentRun handles POST /experiment/run.
func (s *Server) handleExperimentRun(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.ExperimentRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := s.app.Jobs.Submit(req)
	if err != nil {
		WriteErr(w, err)
		return
	}

	pos, err := s.app.Jobs.QueuePosition(job.JobID)
	if err != nil {
		pos = 0
	}
	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":         job.JobID,
		"status":         job.Status,
		"queue_position": pos,
	})
}

// handleExperimentStatus handles GET /experiment/status/{job_id}.
func (s *Server) handleExperimentStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := PathParam(r, "/experiment/status/", "")
	if err := common.ValidateJobID(id); err != nil {
		WriteErr(w, err)
		return
	}

	job, err := s.app.Jobs.Get(id)
	if err != nil {
		WriteErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// handleExperimentLogs handles GET /experiment/logs/{job_id}?tail=N.
func (s *Server) handleExperimentLogs(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := PathParam(r, "/experiment/logs/", "")
	if err := common.ValidateJobID(id); err != nil {
		WriteErr(w, err)
		return
	}

	tail := 100
	if raw := r.URL.Query().Get("tail"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteError(w, http.StatusBadRequest, "tail must be a non-negative integer")
			return
		}
		tail = n
	}

	lines, err := s.app.Jobs.Logs(id, tail)
	if err != nil {
		WriteErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": id,
		"lines":  lines,
	})
}

// handleExperimentCancel handles POST /experiment/cancel/{job_id}.
// Cancel is idempotent: repeating it on a terminal job returns the
// terminal state unchanged.
func (s *Server) handleExperimentCancel(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	id := PathParam(r, "/experiment/cancel/", "")
	if err := common.ValidateJobID(id); err != nil {
		WriteErr(w, err)
		return
	}

	job, err := s.app.Jobs.Cancel(id)
	if err != nil {
		WriteErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// handleExperimentJobs handles GET /experiment/jobs?limit=K.
func (s *Server) handleExperimentJobs(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	jobs, err := s.app.Jobs.List(limit)
	if err != nil {
		WriteErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}
