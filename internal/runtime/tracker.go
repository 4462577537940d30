package runtime

import (
	"sync"
	"time"
)

// SessionStats is a point-in-time copy of the per-process counters.
type SessionStats struct {
	Cycles       int
	Failures     int
	Searches     int
	Researches   int
	LastOutcome  string
	StartedAt    time.Time
	LastActivity time.Time
}

// SessionTracker accumulates counters for the lifetime of one process.
// It never persists anything; the store keeps the durable history.
type SessionTracker struct {
	mu    sync.RWMutex
	stats SessionStats
}

// NewSessionTracker starts the clock for this process.
func NewSessionTracker() *SessionTracker {
	now := time.Now()
	return &SessionTracker{
		stats: SessionStats{StartedAt: now, LastActivity: now},
	}
}

// RecordCycle counts one finished cycle. Failed cycles count twice: in
// Cycles and in Failures.
func (st *SessionTracker) RecordCycle(success bool, outcome string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.stats.Cycles++
	if !success {
		st.stats.Failures++
	}
	st.stats.LastOutcome = outcome
	st.stats.LastActivity = time.Now()
}

// RecordSearch counts one unified search.
func (st *SessionTracker) RecordSearch() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.stats.Searches++
	st.stats.LastActivity = time.Now()
}

// RecordResearch counts one research run.
func (st *SessionTracker) RecordResearch() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.stats.Researches++
	st.stats.LastActivity = time.Now()
}

// Snapshot returns a copy of the current counters.
func (st *SessionTracker) Snapshot() SessionStats {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.stats
}
