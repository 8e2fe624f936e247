package jobstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.json")
	s, err := Open(common.NewSilentLogger(), path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return s, path
}

func queuedJob(id string) *models.Job {
	return &models.Job{
		JobID:    id,
		Kind:     models.JobKindFiqaFast,
		Status:   models.JobStatusQueued,
		QueuedAt: time.Now().UTC(),
	}
}

func TestUpsertGetRoundTrip(t *testing.T) {
	s, path := openTestStore(t)

	job := queuedJob("job-1")
	if err := s.Upsert(job); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := s.Get("job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.JobStatusQueued || got.Kind != models.JobKindFiqaFast {
		t.Errorf("got %+v", got)
	}

	// Reopen from disk to verify persistence
	s2, err := Open(common.NewSilentLogger(), path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s2.Get("job-1"); err != nil {
		t.Errorf("persisted job missing after reopen: %v", err)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	s, _ := openTestStore(t)
	if err := s.Upsert(queuedJob("job-snap")); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Get("job-snap")
	got.Status = models.JobStatusFailed // mutate the copy

	again, _ := s.Get("job-snap")
	if again.Status != models.JobStatusQueued {
		t.Error("Get exposed shared mutable state")
	}
}

func TestTerminalIsImmutable(t *testing.T) {
	s, _ := openTestStore(t)

	job := queuedJob("job-t")
	job.Status = models.JobStatusSucceeded
	if err := s.Upsert(job); err != nil {
		t.Fatal(err)
	}

	job.Status = models.JobStatusRunning
	err := s.Upsert(job)
	if !common.IsKind(err, common.KindConflict) {
		t.Fatalf("got %v, want Conflict", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	s, _ := openTestStore(t)

	old := queuedJob("job-old")
	old.QueuedAt = time.Now().Add(-time.Hour)
	recent := queuedJob("job-new")

	if err := s.Upsert(old); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(recent); err != nil {
		t.Fatal(err)
	}

	jobs, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 || jobs[0].JobID != "job-new" {
		t.Errorf("list order wrong: %v", jobs)
	}
}

func TestReconcileOnBootReapsDeadPIDs(t *testing.T) {
	s, path := openTestStore(t)

	deadPID := 4194000 // outside normal pid range
	zombie := queuedJob("zombie-1")
	zombie.Status = models.JobStatusRunning
	zombie.PID = &deadPID
	if err := s.Upsert(zombie); err != nil {
		t.Fatal(err)
	}

	alivePID := os.Getpid()
	live := queuedJob("live-1")
	live.Status = models.JobStatusRunning
	live.PID = &alivePID
	if err := s.Upsert(live); err != nil {
		t.Fatal(err)
	}

	reaped, err := s.ReconcileOnBoot(func(pid int) bool { return pid == alivePID }, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(reaped) != 1 || reaped[0].JobID != "zombie-1" {
		t.Fatalf("reaped = %v", reaped)
	}

	got, _ := s.Get("zombie-1")
	if got.Status != models.JobStatusAborted || got.Reason != "zombie_reaped" {
		t.Errorf("zombie not rewritten: %+v", got)
	}
	stillLive, _ := s.Get("live-1")
	if stillLive.Status != models.JobStatusRunning {
		t.Errorf("live job touched: %+v", stillLive)
	}

	// Survives reopen
	s2, err := Open(common.NewSilentLogger(), path)
	if err != nil {
		t.Fatal(err)
	}
	got2, _ := s2.Get("zombie-1")
	if got2.Status != models.JobStatusAborted {
		t.Error("reaped status not persisted")
	}
}

func TestReconcileOnBootCallbackRunsBeforePersist(t *testing.T) {
	s, path := openTestStore(t)

	deadPID := 4194000
	zombie := queuedJob("zombie-order")
	zombie.Status = models.JobStatusRunning
	zombie.PID = &deadPID
	if err := s.Upsert(zombie); err != nil {
		t.Fatal(err)
	}

	// The callback observes the file the previous process left: the
	// journal entry it writes must precede the ABORTED rewrite on disk.
	var calls int
	_, err := s.ReconcileOnBoot(func(int) bool { return false }, func(job *models.Job) {
		calls++
		if job.Status != models.JobStatusAborted || job.Reason != "zombie_reaped" {
			t.Errorf("callback job = %+v", job)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(raw), string(models.JobStatusAborted)) {
			t.Error("jobs.json already shows ABORTED during callback")
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("callback ran %d times, want 1", calls)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), string(models.JobStatusAborted)) {
		t.Error("ABORTED not persisted after reconcile")
	}
}

func TestGetUnknown(t *testing.T) {
	s, _ := openTestStore(t)
	_, err := s.Get("missing")
	if !common.IsKind(err, common.KindNotFound) {
		t.Fatalf("got %v, want NotFound", err)
	}
}
