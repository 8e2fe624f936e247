package models

// MetricSample is one per-request outcome pushed by the load generator.
type MetricSample struct {
	TSMs      int64    `json:"ts_ms"`
	Phase     string   `json:"phase"`
	QuerySeq  int      `json:"query_seq"`
	TopK      int      `json:"topk"`
	LatencyMS float64  `json:"latency_ms"`
	Status    int      `json:"status"`
	Error     string   `json:"error,omitempty"`
	RecallAtK *float64 `json:"recall_at_k,omitempty"`
	Backend   string   `json:"backend_used"`
	CacheHit  *bool    `json:"cache_hit,omitempty"`
}

// BucketPoint is one aligned 5-second bucket in the 60-second series.
// P95 and Recall are nil when the bucket lacks enough samples.
type BucketPoint struct {
	TS     int64    `json:"ts"`
	P95    *float64 `json:"p95"`
	TPS    float64  `json:"tps"`
	Recall *float64 `json:"recall"`
}

// WindowSnapshot is the aggregated view over the last 60 seconds.
type WindowSnapshot struct {
	Samples           int           `json:"samples"`
	P95MS             *float64      `json:"p95_ms"`
	P99MS             *float64      `json:"p99_ms"`
	TPS               float64       `json:"tps"`
	RecallMean        *float64      `json:"recall_mean"`
	Series            []BucketPoint `json:"series"`
	DroppedRatio      float64       `json:"dropped_ratio"`
	FilledNullBuckets int           `json:"filled_null_buckets"`
	HeartbeatAgeMS    int64         `json:"heartbeat_age_ms"`
	ClockSkewMS       int64         `json:"clock_skew_ms"`
}

// PhaseStats summarizes one completed load phase. Buckets counts the
// distinct aligned 5-second windows the phase produced samples in.
type PhaseStats struct {
	Phase      string  `json:"phase"`
	Requests   int     `json:"requests"`
	Errors     int     `json:"errors"`
	Buckets    int     `json:"buckets"`
	P95MS      float64 `json:"p95_ms"`
	MeanMS     float64 `json:"mean_ms"`
	RecallMean float64 `json:"recall_mean"`
	RecallN    int     `json:"recall_n"`
	QPS        float64 `json:"qps"`
	CostPerQ   float64 `json:"cost_per_query"`
}
