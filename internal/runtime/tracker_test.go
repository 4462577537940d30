package runtime

import (
	"sync"
	"testing"
)

func TestSessionTracker_RecordCycle(t *testing.T) {
	tr := NewSessionTracker()

	tr.RecordCycle(true, "answered")
	tr.RecordCycle(false, "generate: model backend unavailable")

	stats := tr.Snapshot()
	if stats.Cycles != 2 {
		t.Errorf("expected 2 cycles, got %d", stats.Cycles)
	}
	if stats.Failures != 1 {
		t.Errorf("expected 1 failure, got %d", stats.Failures)
	}
	if stats.LastOutcome != "generate: model backend unavailable" {
		t.Errorf("unexpected last outcome: %q", stats.LastOutcome)
	}
	if stats.StartedAt.IsZero() || stats.LastActivity.Before(stats.StartedAt) {
		t.Error("activity clock not advancing")
	}
}

func TestSessionTracker_RecordSearchAndResearch(t *testing.T) {
	tr := NewSessionTracker()

	tr.RecordSearch()
	tr.RecordSearch()
	tr.RecordResearch()

	stats := tr.Snapshot()
	if stats.Searches != 2 || stats.Researches != 1 {
		t.Errorf("unexpected counters: %+v", stats)
	}
	if stats.Cycles != 0 {
		t.Errorf("searches should not count as cycles, got %d", stats.Cycles)
	}
}

func TestSessionTracker_SnapshotIsCopy(t *testing.T) {
	tr := NewSessionTracker()
	tr.RecordCycle(true, "first")

	snap := tr.Snapshot()
	tr.RecordCycle(true, "second")

	if snap.Cycles != 1 || snap.LastOutcome != "first" {
		t.Error("snapshot should not track later mutations")
	}
}

func TestSessionTracker_Concurrent(t *testing.T) {
	tr := NewSessionTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.RecordCycle(true, "ok")
			tr.RecordSearch()
		}()
	}
	wg.Wait()

	stats := tr.Snapshot()
	if stats.Cycles != 50 || stats.Searches != 50 {
		t.Errorf("lost updates under concurrency: %+v", stats)
	}
}
