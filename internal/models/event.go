package models

import "time"

// EventType enumerates the append-only audit events for a run.
type EventType string

const (
	EventRunQueued    EventType = "RUN_QUEUED"
	EventRunStarted   EventType = "RUN_STARTED"
	EventDryRunPlan   EventType = "DRY_RUN_PLAN"
	EventStage        EventType = "STAGE"
	EventMetricSample EventType = "METRIC_SAMPLE"
	EventWinner       EventType = "WINNER"
	EventSLAVerdict   EventType = "SLA_VERDICT"
	EventRunSucceeded EventType = "RUN_SUCCEEDED"
	EventRunFailed    EventType = "RUN_FAILED"
	EventRunCancelled EventType = "RUN_CANCELLED"
	EventTruncated    EventType = "TRUNCATED"
)

// Event is one line of a run's JSONL audit trail.
type Event struct {
	TS      time.Time              `json:"ts"`
	RunID   string                 `json:"run_id"`
	Type    EventType              `json:"event_type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}
