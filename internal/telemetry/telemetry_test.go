package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tiervault/tiervault/pkg/types"
)

func TestCollector_CountsEvents(t *testing.T) {
	c := NewCollector(&Config{Enabled: true, Namespace: "test"})

	c.Emit(Event{Name: "upload", Fields: map[string]interface{}{"filename": "a.pdf", "size_bytes": 42}})
	c.Emit(Event{Name: "upload"})
	c.Emit(Event{Name: "sweep"})

	if got := testutil.ToFloat64(c.eventCounter.WithLabelValues("upload")); got != 2 {
		t.Errorf("upload events = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.eventCounter.WithLabelValues("sweep")); got != 1 {
		t.Errorf("sweep events = %v, want 1", got)
	}
}

func TestCollector_CountsOutcomes(t *testing.T) {
	c := NewCollector(&Config{Enabled: true, Namespace: "test"})

	c.RecordOutcome(types.TaskOutcome{Key: "a", Stage: types.StageBackup, Status: types.StatusSuccess})
	c.RecordOutcome(types.TaskOutcome{Key: "b", Stage: types.StageBackup, Status: types.StatusFailed, ErrorCode: "STORE_UNAVAILABLE"})
	c.RecordOutcome(types.TaskOutcome{Key: "c", Stage: types.StageArchival, Status: types.StatusSuccess})

	if got := testutil.ToFloat64(c.outcomeCounter.WithLabelValues("backup", "success")); got != 1 {
		t.Errorf("backup successes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.outcomeCounter.WithLabelValues("backup", "failed")); got != 1 {
		t.Errorf("backup failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.outcomeCounter.WithLabelValues("archival", "success")); got != 1 {
		t.Errorf("archival successes = %v, want 1", got)
	}
}

func TestCollector_CountsRuns(t *testing.T) {
	c := NewCollector(&Config{Enabled: true, Namespace: "test"})

	start := time.Now()
	c.RecordRun(types.BatchSummary{StartedAt: start, FinishedAt: start.Add(time.Second)})
	c.RecordRun(types.BatchSummary{StartedAt: start, FinishedAt: start.Add(time.Second), Aborted: true, AbortCause: "store unreachable"})

	if got := testutil.ToFloat64(c.runCounter.WithLabelValues("completed")); got != 1 {
		t.Errorf("completed runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.runCounter.WithLabelValues("aborted")); got != 1 {
		t.Errorf("aborted runs = %v, want 1", got)
	}
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	c := NewCollector(&Config{Enabled: true, Namespace: "test"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				c.Emit(Event{Name: "upload"})
				c.RecordOutcome(types.TaskOutcome{Stage: types.StageBackup, Status: types.StatusSuccess})
			}
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(c.eventCounter.WithLabelValues("upload")); got != 200 {
		t.Errorf("upload events = %v, want 200", got)
	}
	if got := testutil.ToFloat64(c.outcomeCounter.WithLabelValues("backup", "success")); got != 200 {
		t.Errorf("backup successes = %v, want 200", got)
	}
}

func TestCollector_DisabledNeverPanics(t *testing.T) {
	c := NewCollector(&Config{Enabled: false})

	// All paths must be safe with no registry behind them.
	c.Emit(Event{Name: "upload"})
	c.RecordOutcome(types.TaskOutcome{Key: "a", Stage: types.StageBackup, Status: types.StatusSuccess})
	c.RecordRun(types.BatchSummary{})

	if c.Registry() != nil {
		t.Error("Disabled collector should have no registry")
	}
}
