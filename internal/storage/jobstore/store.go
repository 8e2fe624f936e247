// Package jobstore implements the durable job state store backed by a
// single jobs.json document with snapshot-rewrite persistence.
package jobstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
)

const schemaVersion = 1

// document is the on-disk shape of jobs.json.
type document struct {
	SchemaVersion int           `json:"schema_version"`
	Jobs          []*models.Job `json:"jobs"`
	UpdatedAt     string        `json:"updated_at"`
}

// Store holds the in-memory job map and rewrites jobs.json on every
// mutation. Writes are sequenced by the store mutex; the job manager
// provides the higher-level transition ordering.
type Store struct {
	path   string
	logger *common.Logger

	mu   sync.Mutex
	jobs map[string]*models.Job
}

// Open loads jobs.json (an absent file yields an empty store).
func Open(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, common.WrapError(common.KindFatal, err, "failed to create job store dir")
	}

	s := &Store{path: path, logger: logger, jobs: make(map[string]*models.Job)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, common.WrapError(common.KindFatal, err, "failed to read %s", path)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, common.WrapError(common.KindFatal, err, "corrupt job store %s", path)
	}
	for _, j := range doc.Jobs {
		s.jobs[j.JobID] = j
	}
	logger.Info().Int("jobs", len(s.jobs)).Str("path", path).Msg("Job store opened")
	return s, nil
}

// Get retrieves a copy of a job by id.
func (s *Store) Get(id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, common.ErrNotFound("job %s not found", id)
	}
	return j.Clone(), nil
}

// List returns all jobs, newest first by queued_at.
func (s *Store) List() ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].QueuedAt.Equal(out[k].QueuedAt) {
			return out[i].QueuedAt.After(out[k].QueuedAt)
		}
		return out[i].JobID < out[k].JobID
	})
	return out, nil
}

// Upsert writes a job snapshot and persists the full document.
// Terminal states are immutable.
func (s *Store) Upsert(job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.jobs[job.JobID]; ok && cur.Status.Terminal() && cur.Status != job.Status {
		return common.ErrConflict("job %s is terminal (%s)", job.JobID, cur.Status)
	}

	s.jobs[job.JobID] = job.Clone()
	return s.persist()
}

// ReconcileOnBoot rewrites RUNNING entries whose pid is dead to ABORTED
// with reason zombie_reaped, and returns the reaped jobs. onReap is
// invoked per zombie before jobs.json is rewritten, so the caller's
// journal entry lands ahead of the persisted state change.
func (s *Store) ReconcileOnBoot(pidAlive func(pid int) bool, onReap func(job *models.Job)) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reaped []*models.Job
	for _, j := range s.jobs {
		if j.Status != models.JobStatusRunning {
			continue
		}
		if j.PID != nil && pidAlive(*j.PID) {
			continue
		}
		now := time.Now().UTC()
		j.Status = models.JobStatusAborted
		j.Reason = "zombie_reaped"
		j.PID = nil
		j.FinishedAt = &now
		c := j.Clone()
		if onReap != nil {
			onReap(c)
		}
		reaped = append(reaped, c)
	}

	if len(reaped) > 0 {
		if err := s.persist(); err != nil {
			return nil, err
		}
		s.logger.Warn().Int("count", len(reaped)).Msg("Reaped zombie jobs on boot")
	}
	return reaped, nil
}

// persist rewrites jobs.json via temp file + rename. Caller holds s.mu.
func (s *Store) persist() error {
	doc := document{
		SchemaVersion: schemaVersion,
		Jobs:          make([]*models.Job, 0, len(s.jobs)),
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	for _, j := range s.jobs {
		doc.Jobs = append(doc.Jobs, j)
	}
	sort.Slice(doc.Jobs, func(i, k int) bool {
		if !doc.Jobs[i].QueuedAt.Equal(doc.Jobs[k].QueuedAt) {
			return doc.Jobs[i].QueuedAt.Before(doc.Jobs[k].QueuedAt)
		}
		return doc.Jobs[i].JobID < doc.Jobs[k].JobID
	})

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return common.WrapError(common.KindFatal, err, "failed to marshal job store")
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".tmp-jobs-*")
	if err != nil {
		return common.WrapError(common.KindFatal, err, "failed to create temp file")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return common.WrapError(common.KindFatal, err, "failed to write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return common.WrapError(common.KindFatal, err, "failed to close temp file")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return common.WrapError(common.KindFatal, err, "failed to rename temp file")
	}
	return nil
}
