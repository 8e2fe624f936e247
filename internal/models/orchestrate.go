package models

// OrchestrateRequest is the closed body for POST /orchestrate/run.
// Zero-valued numeric fields take configured defaults during plan
// normalization.
type OrchestrateRequest struct {
	Kind         string  `json:"kind"`
	DatasetName  string  `json:"dataset_name"`
	WindowSec    int     `json:"window_sec,omitempty"`
	Rounds       int     `json:"rounds,omitempty"`
	QPS          float64 `json:"qps,omitempty"`
	Concurrency  int     `json:"concurrency,omitempty"`
	Seed         int64   `json:"seed,omitempty"`
	TopKMix      []int   `json:"topk_mix,omitempty"`
	RecallSample float64 `json:"recall_sample,omitempty"`
}

// Plan is the pure output of the orchestrator's plan stage.
type Plan struct {
	Fingerprint    string             `json:"fingerprint"`
	Request        OrchestrateRequest `json:"request"`
	Collection     string             `json:"collection"`
	QrelsPath      string             `json:"qrels_path"`
	EstBatches     int                `json:"est_batches"`
	EstDurationSec int                `json:"est_duration_sec"`
}

// Run stages for the orchestrator's linear state machine.
const (
	StagePending   = "PENDING"
	StageWarmup    = "WARMUP"
	StagePhaseA    = "PHASE_A"
	StagePhaseB    = "PHASE_B"
	StageAggregate = "AGGREGATE"
	StageWinners   = "WINNERS"
	StageReport    = "REPORT"
	StageDone      = "DONE"
)

// RunStatus reports a run's stage and queue position.
type RunStatus struct {
	RunID         string    `json:"run_id"`
	Stage         string    `json:"stage"`
	JobStatus     JobStatus `json:"job_status"`
	QueuePosition int       `json:"queue_position"`
}

// RunReport is the artifacts index plus the final SLA verdict.
type RunReport struct {
	RunID     string            `json:"run_id"`
	Artifacts map[string]string `json:"artifacts"`
	Winners   *Winners          `json:"winners,omitempty"`
	Verdict   *SLAVerdict       `json:"verdict,omitempty"`
}

// SearchResult is the outcome of one backend query.
type SearchResult struct {
	Backend   string  `json:"backend"`
	LatencyMS float64 `json:"latency_ms"`
	Status    int     `json:"status"`
	RecallAtK float64 `json:"recall_at_k"`
	CacheHit  bool    `json:"cache_hit"`
}
