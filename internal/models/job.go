// Package models defines the data structures shared across Tunex services.
package models

import "time"

// JobStatus is the job lifecycle state machine.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
	JobStatusAborted   JobStatus = "ABORTED"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled, JobStatusAborted:
		return true
	}
	return false
}

// Allowed job kinds. Unknown kinds are rejected at submit.
const (
	JobKindFiqaFast    = "fiqa-fast"
	JobKindCanary      = "canary"
	JobKindAB          = "ab"
	JobKindSweep       = "sweep"
	JobKindBanditRound = "bandit-round"
)

// KnownJobKind reports whether kind is in the fixed allow-list.
func KnownJobKind(kind string) bool {
	switch kind {
	case JobKindFiqaFast, JobKindCanary, JobKindAB, JobKindSweep, JobKindBanditRound:
		return true
	}
	return false
}

// Job is a single experiment job owned by the job state store.
// Cmd is resolved internally per kind and never accepted from clients.
type Job struct {
	JobID              string            `json:"job_id"`
	Kind               string            `json:"kind"`
	Status             JobStatus         `json:"status"`
	Cmd                []string          `json:"cmd,omitempty"`
	PID                *int              `json:"pid"`
	Dataset            string            `json:"dataset,omitempty"`
	QueuedAt           time.Time         `json:"queued_at"`
	StartedAt          *time.Time        `json:"started_at,omitempty"`
	FinishedAt         *time.Time        `json:"finished_at,omitempty"`
	RequestFingerprint string            `json:"request_fingerprint"`
	Reason             string            `json:"reason,omitempty"`
	Artifacts          map[string]string `json:"artifacts,omitempty"`
}

// Clone returns a deep copy so callers hold immutable snapshots.
func (j *Job) Clone() *Job {
	c := *j
	if j.PID != nil {
		pid := *j.PID
		c.PID = &pid
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	if j.Cmd != nil {
		c.Cmd = append([]string(nil), j.Cmd...)
	}
	if j.Artifacts != nil {
		c.Artifacts = make(map[string]string, len(j.Artifacts))
		for k, v := range j.Artifacts {
			c.Artifacts[k] = v
		}
	}
	return &c
}

// ExperimentRequest is the closed submit body for POST /experiment/run.
type ExperimentRequest struct {
	Kind        string `json:"kind"`
	DatasetName string `json:"dataset_name"`
}
