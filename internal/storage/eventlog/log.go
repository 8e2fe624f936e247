// Package eventlog implements the append-only per-run JSONL audit trail.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
)

const (
	// DefaultSizeCap rotates a run's file once it exceeds this size.
	DefaultSizeCap = 10 << 20 // 10 MiB

	// DefaultEventBudget caps events per run; past it, writes are
	// dropped after a single TRUNCATED marker.
	DefaultEventBudget = 2000
)

// Log writes one JSONL file per run_id under an events/ directory.
// Appends use O_APPEND; rotation renames with a UTC timestamp suffix.
type Log struct {
	dir    string
	logger *common.Logger

	sizeCap int64
	budget  int

	mu        sync.Mutex
	counts    map[string]int
	truncated map[string]bool
	now       func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithSizeCap overrides the rotation size cap.
func WithSizeCap(cap int64) Option {
	return func(l *Log) { l.sizeCap = cap }
}

// WithEventBudget overrides the per-run event budget.
func WithEventBudget(n int) Option {
	return func(l *Log) { l.budget = n }
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New opens (creating if needed) the events directory.
func New(logger *common.Logger, dir string, opts ...Option) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, common.WrapError(common.KindFatal, err, "failed to create events dir %s", dir)
	}
	l := &Log{
		dir:       dir,
		logger:    logger,
		sizeCap:   DefaultSizeCap,
		budget:    DefaultEventBudget,
		counts:    make(map[string]int),
		truncated: make(map[string]bool),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Path returns the active JSONL file for a run.
func (l *Log) Path(runID string) string {
	return filepath.Join(l.dir, runID+".jsonl")
}

// Append journals one event. Events past the per-run budget are
// dropped after a single TRUNCATED marker.
func (l *Log) Append(runID string, typ models.EventType, payload map[string]interface{}) error {
	if err := common.ValidateJobID(runID); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.recoverBudget(runID)
	if l.counts[runID] >= l.budget {
		if l.truncated[runID] {
			return nil
		}
		l.truncated[runID] = true
		return l.write(runID, models.Event{
			TS:    l.now().UTC(),
			RunID: runID,
			Type:  models.EventTruncated,
			Payload: map[string]interface{}{
				"budget": l.budget,
			},
		})
	}

	l.counts[runID]++
	return l.write(runID, models.Event{
		TS:      l.now().UTC(),
		RunID:   runID,
		Type:    typ,
		Payload: payload,
	})
}

// recoverBudget seeds the per-run counters from the active file on the
// first append after open, so the event budget survives a process
// restart mid-run. Caller holds l.mu.
func (l *Log) recoverBudget(runID string) {
	if _, ok := l.counts[runID]; ok {
		return
	}
	l.counts[runID] = 0

	f, err := os.Open(l.Path(runID))
	if err != nil {
		return
	}
	defer f.Close()

	n := 0
	truncated := false
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var ev models.Event
		if json.Unmarshal(scanner.Bytes(), &ev) == nil && ev.Type == models.EventTruncated {
			// The marker sits outside the budget.
			truncated = true
			continue
		}
		n++
	}
	l.counts[runID] = n
	if truncated {
		l.truncated[runID] = true
	}
}

// write appends a single JSON line, rotating first when over the cap.
// Caller holds l.mu.
func (l *Log) write(runID string, ev models.Event) error {
	path := l.Path(runID)

	if info, err := os.Stat(path); err == nil && info.Size() >= l.sizeCap {
		if err := l.rotate(runID, path); err != nil {
			return err
		}
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return common.WrapError(common.KindFatal, err, "failed to marshal event")
	}
	line = append(line, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return common.WrapError(common.KindFatal, err, "failed to open event log %s", path)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return common.WrapError(common.KindFatal, err, "failed to append event to %s", path)
	}
	return nil
}

func (l *Log) rotate(runID, path string) error {
	stamp := l.now().UTC().Format("20060102T150405Z")
	backup := filepath.Join(l.dir, fmt.Sprintf("%s.%s.jsonl", runID, stamp))
	if err := os.Rename(path, backup); err != nil {
		return common.WrapError(common.KindFatal, err, "failed to rotate event log %s", path)
	}
	l.logger.Info().Str("run_id", runID).Str("backup", backup).Msg("Event log rotated")
	return nil
}

// ReadAll returns every event in the run's active file, in append order.
// Readers that need rotated history follow the timestamped backups.
func (l *Log) ReadAll(runID string) ([]models.Event, error) {
	if err := common.ValidateJobID(runID); err != nil {
		return nil, err
	}

	f, err := os.Open(l.Path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.ErrNotFound("no events for run %s", runID)
		}
		return nil, common.WrapError(common.KindFatal, err, "failed to open event log")
	}
	defer f.Close()

	var events []models.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var ev models.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, common.WrapError(common.KindFatal, err, "corrupt event line in %s", runID)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, common.WrapError(common.KindFatal, err, "failed to scan event log")
	}
	return events, nil
}
