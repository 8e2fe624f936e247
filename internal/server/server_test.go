package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seralab/tunex/internal/app"
	"github.com/seralab/tunex/internal/models"
)

// newTestApp builds a full application over a temp data dir. The job
// manager loop is NOT started, so submitted jobs stay QUEUED and
// handler tests are deterministic.
func newTestApp(t *testing.T) *app.App {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TUNEX_DATA_PATH", dir)
	t.Setenv("TUNEX_LOG_LEVEL", "error")

	a, err := app.NewApp(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	return NewServer(newTestApp(t)).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReflectsJobManager(t *testing.T) {
	a := newTestApp(t)
	h := NewServer(a).Handler()

	rec := doJSON(t, h, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, a.Start())
	rec = doJSON(t, h, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVersionAndDiagnostics(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var version map[string]interface{}
	decodeBody(t, rec, &version)
	assert.NotEmpty(t, version["version"])

	rec = doJSON(t, h, http.MethodGet, "/api/diagnostics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var diag map[string]interface{}
	decodeBody(t, rec, &diag)
	assert.Equal(t, "sim", diag["backends_mode"])
	assert.NotNil(t, diag["goroutines"])
}

func TestExperimentSubmitAndStatus(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/experiment/run", models.ExperimentRequest{
		Kind:        models.JobKindFiqaFast,
		DatasetName: "fiqa",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var submitted struct {
		JobID         string `json:"job_id"`
		Status        string `json:"status"`
		QueuePosition int    `json:"queue_position"`
	}
	decodeBody(t, rec, &submitted)
	require.NotEmpty(t, submitted.JobID)
	assert.Equal(t, string(models.JobStatusQueued), submitted.Status)
	assert.Equal(t, 1, submitted.QueuePosition)

	rec = doJSON(t, h, http.MethodGet, "/experiment/status/"+submitted.JobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var job models.Job
	decodeBody(t, rec, &job)
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Equal(t, "fiqa", job.Dataset)
}

func TestExperimentSubmitRejectsUnknownKind(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/experiment/run", models.ExperimentRequest{
		Kind:        "mystery",
		DatasetName: "fiqa",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "InvalidInput", body.Error.Kind)
}

func TestExperimentSubmitRejectsUnknownDataset(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/experiment/run", models.ExperimentRequest{
		Kind:        models.JobKindAB,
		DatasetName: "marco",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "InvalidInput", body.Error.Kind)
	assert.Contains(t, body.Error.Message, "unknown dataset")
}

func TestExperimentSubmitRejectsUnknownFields(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/experiment/run", map[string]interface{}{
		"kind":         models.JobKindAB,
		"dataset_name": "fiqa",
		"surprise":     true,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestExperimentStatusGuardsJobID(t *testing.T) {
	h := newTestHandler(t)

	// Invalid characters are rejected before any storage lookup.
	rec := doJSON(t, h, http.MethodGet, "/experiment/status/bad.id", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/experiment/status/no-such-job", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExperimentCancelQueuedIsIdempotent(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/experiment/run", models.ExperimentRequest{
		Kind:        models.JobKindCanary,
		DatasetName: "quora",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var submitted struct {
		JobID string `json:"job_id"`
	}
	decodeBody(t, rec, &submitted)

	rec = doJSON(t, h, http.MethodPost, "/experiment/cancel/"+submitted.JobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var job models.Job
	decodeBody(t, rec, &job)
	assert.Equal(t, models.JobStatusCancelled, job.Status)

	// Repeating the cancel returns the terminal state unchanged.
	rec = doJSON(t, h, http.MethodPost, "/experiment/cancel/"+submitted.JobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &job)
	assert.Equal(t, models.JobStatusCancelled, job.Status)
}

func TestExperimentJobsList(t *testing.T) {
	h := newTestHandler(t)

	for _, dataset := range []string{"fiqa", "quora"} {
		rec := doJSON(t, h, http.MethodPost, "/experiment/run", models.ExperimentRequest{
			Kind:        models.JobKindAB,
			DatasetName: dataset,
		})
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/experiment/jobs?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Jobs  []models.Job `json:"jobs"`
		Count int          `json:"count"`
	}
	decodeBody(t, rec, &listed)
	assert.Equal(t, 2, listed.Count)

	rec = doJSON(t, h, http.MethodGet, "/experiment/jobs?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExperimentLogsEmptyForQueuedJob(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/experiment/run", models.ExperimentRequest{
		Kind:        models.JobKindSweep,
		DatasetName: "scifact",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var submitted struct {
		JobID string `json:"job_id"`
	}
	decodeBody(t, rec, &submitted)

	rec = doJSON(t, h, http.MethodGet, "/experiment/logs/"+submitted.JobID+"?tail=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs struct {
		Lines []string `json:"lines"`
	}
	decodeBody(t, rec, &logs)
	assert.Empty(t, logs.Lines)
}

func TestOrchestrateDryRunReturnsPlan(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/orchestrate/run", models.OrchestrateRequest{
		Kind:        models.JobKindAB,
		DatasetName: "fiqa",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Committed bool        `json:"committed"`
		Plan      models.Plan `json:"plan"`
	}
	decodeBody(t, rec, &body)
	assert.False(t, body.Committed)
	assert.NotEmpty(t, body.Plan.Fingerprint)
	assert.Equal(t, "fiqa_chunks", body.Plan.Collection)

	// Nothing was enqueued.
	rec = doJSON(t, h, http.MethodGet, "/experiment/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &listed)
	assert.Equal(t, 0, listed.Count)
}

func TestOrchestrateCommitAndStatus(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/orchestrate/run?commit=true", models.OrchestrateRequest{
		Kind:        models.JobKindAB,
		DatasetName: "fiqa",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var body struct {
		Committed bool             `json:"committed"`
		Run       models.RunStatus `json:"run"`
	}
	decodeBody(t, rec, &body)
	assert.True(t, body.Committed)
	require.NotEmpty(t, body.Run.RunID)
	assert.Equal(t, models.StagePending, body.Run.Stage)

	rec = doJSON(t, h, http.MethodGet, "/orchestrate/status?run_id="+body.Run.RunID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status models.RunStatus
	decodeBody(t, rec, &status)
	assert.Equal(t, models.JobStatusQueued, status.JobStatus)

	// A report for an unfinished run is a conflict.
	rec = doJSON(t, h, http.MethodGet, "/orchestrate/report?run_id="+body.Run.RunID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestOrchestrateRejectsUnknownDataset(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/orchestrate/run", models.OrchestrateRequest{
		Kind:        models.JobKindAB,
		DatasetName: "marco",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestControlPolicySwap(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/ops/control/policy", map[string]string{"policy": "pid"})
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "pid", body["policy"])

	rec = doJSON(t, h, http.MethodPost, "/ops/control/policy", map[string]string{"policy": "fuzzy"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutingFlagsAndState(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/ops/routing/flags", map[string]interface{}{
		"enabled":        true,
		"mode":           "cost",
		"manual_backend": models.BackendRich,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.RouterSnapshot
	decodeBody(t, rec, &snap)
	assert.Equal(t, "cost", snap.Mode)
	assert.Equal(t, models.BackendRich, snap.ManualBackend)

	rec = doJSON(t, h, http.MethodGet, "/ops/routing/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &snap)
	assert.True(t, snap.Enabled)

	rec = doJSON(t, h, http.MethodPost, "/ops/routing/flags", map[string]interface{}{
		"enabled": true,
		"mode":    "manual",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBanditState(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/ops/bandit/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.BanditSnapshot
	decodeBody(t, rec, &snap)
	assert.Equal(t, "ucb1", snap.Strategy)
}

func TestMetricsEndpointsEmptyBeforeRuns(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/metrics/window60s", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var window models.WindowSnapshot
	decodeBody(t, rec, &window)
	assert.Zero(t, window.Samples)
	assert.NotNil(t, window.Series)

	rec = doJSON(t, h, http.MethodGet, "/metrics/series60s", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestShutdownDisabledInProduction(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TUNEX_DATA_PATH", dir)
	t.Setenv("TUNEX_LOG_LEVEL", "error")
	t.Setenv("TUNEX_ENV", "production")

	a, err := app.NewApp(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	h := NewServer(a).Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/shutdown", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodDelete, "/experiment/run", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST", rec.Header().Get("Allow"))
}
