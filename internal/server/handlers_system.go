package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/seralab/tunex/internal/common"
)

// handleHealthz handles GET /healthz. Liveness only: the process is up.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}

// handleReadyz handles GET /readyz. Ready once the job manager loop is
// accepting work.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if !s.app.Ready() {
		WriteError(w, http.StatusServiceUnavailable, "job manager not started")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
	})
}

// handleVersion handles GET /api/version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version": common.GetVersion(),
		"build":   common.Build,
		"commit":  common.GitCommit,
	})
}

// handleDiagnostics handles GET /api/diagnostics.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":        common.GetFullVersion(),
		"environment":    s.app.Config.Environment,
		"uptime_sec":     int(time.Since(s.app.StartupTime).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"heap_alloc_mb":  float64(mem.HeapAlloc) / (1 << 20),
		"heap_sys_mb":    float64(mem.HeapSys) / (1 << 20),
		"num_gc":         mem.NumGC,
		"backends_mode":  s.app.Config.Backends.Mode,
		"control_policy": s.app.Orchestrator.Control().Name(),
	})
}
