package eventlog

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
)

func newTestLog(t *testing.T, opts ...Option) *Log {
	t.Helper()
	l, err := New(common.NewSilentLogger(), t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return l
}

func TestAppendAndReadAll(t *testing.T) {
	l := newTestLog(t)

	if err := l.Append("run-1", models.EventRunQueued, map[string]interface{}{"kind": "ab"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Append("run-1", models.EventRunStarted, nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	events, err := l.ReadAll("run-1")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != models.EventRunQueued || events[1].Type != models.EventRunStarted {
		t.Errorf("event order wrong: %v, %v", events[0].Type, events[1].Type)
	}
	if events[1].TS.Before(events[0].TS) {
		t.Error("timestamps not nondecreasing")
	}
}

func TestAppendRejectsBadRunID(t *testing.T) {
	l := newTestLog(t)
	err := l.Append("../escape", models.EventRunQueued, nil)
	if !common.IsKind(err, common.KindInvalidInput) {
		t.Fatalf("got %v, want InvalidInput", err)
	}
}

func TestEventBudgetTruncates(t *testing.T) {
	l := newTestLog(t, WithEventBudget(3))

	for i := 0; i < 10; i++ {
		if err := l.Append("run-cap", models.EventMetricSample, nil); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	events, err := l.ReadAll("run-cap")
	if err != nil {
		t.Fatal(err)
	}
	// 3 within budget + exactly one TRUNCATED marker
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[3].Type != models.EventTruncated {
		t.Errorf("last event = %v, want TRUNCATED", events[3].Type)
	}
}

func TestEventBudgetSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	logger := common.NewSilentLogger()

	l1, err := New(logger, dir, WithEventBudget(3))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := l1.Append("run-boot", models.EventMetricSample, nil); err != nil {
			t.Fatal(err)
		}
	}

	// A restarted process opens a fresh Log over the same directory.
	// The budget continues from the file, it does not reset.
	l2, err := New(logger, dir, WithEventBudget(3))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := l2.Append("run-boot", models.EventMetricSample, nil); err != nil {
			t.Fatal(err)
		}
	}

	events, err := l2.ReadAll("run-boot")
	if err != nil {
		t.Fatal(err)
	}
	// 2 before restart + 1 after + one TRUNCATED marker
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[3].Type != models.EventTruncated {
		t.Errorf("last event = %v, want TRUNCATED", events[3].Type)
	}

	// A further restart also recovers the truncated state: no second
	// marker, no more events.
	l3, err := New(logger, dir, WithEventBudget(3))
	if err != nil {
		t.Fatal(err)
	}
	if err := l3.Append("run-boot", models.EventMetricSample, nil); err != nil {
		t.Fatal(err)
	}
	events, err = l3.ReadAll("run-boot")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 4 {
		t.Errorf("got %d events after third open, want 4", len(events))
	}
}

func TestRotationKeepsAppending(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	l := newTestLog(t, WithSizeCap(200), WithClock(func() time.Time { return now }))

	for i := 0; i < 20; i++ {
		now = now.Add(time.Second)
		if err := l.Append("run-rot", models.EventStage, map[string]interface{}{"i": i}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		t.Fatal(err)
	}
	var rotated int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "run-rot.") && e.Name() != "run-rot.jsonl" {
			rotated++
		}
	}
	if rotated == 0 {
		t.Error("expected at least one rotated backup file")
	}

	// Active file still readable after rotation
	if _, err := l.ReadAll("run-rot"); err != nil {
		t.Fatalf("ReadAll after rotation: %v", err)
	}
}

func TestReadAllUnknownRun(t *testing.T) {
	l := newTestLog(t)
	_, err := l.ReadAll("nope")
	if !common.IsKind(err, common.KindNotFound) {
		t.Fatalf("got %v, want NotFound", err)
	}
}
