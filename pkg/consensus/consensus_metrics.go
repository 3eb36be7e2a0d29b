package consensus

import (
	"sync"
	"time"
)

// Metrics tracks registry activity
type Metrics struct {
	sessionsCreated   int64
	sessionsCompleted int64
	sessionsTimedOut  int64
	quickVotes        int64
	conflictsResolved int64
	averageLatency    time.Duration
	lastUpdate        time.Time
	mu                sync.RWMutex
}

// Stats is a point-in-time snapshot of registry metrics
type Stats struct {
	ActiveSessions    int
	SessionsCreated   int64
	SessionsCompleted int64
	SessionsTimedOut  int64
	QuickVotes        int64
	ConflictsResolved int64
	AverageLatency    time.Duration
	LastUpdate        time.Time
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncrementSessionsCreated increments the sessionsCreated counter
func (m *Metrics) IncrementSessionsCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionsCreated++
	m.lastUpdate = time.Now()
}

// IncrementSessionsCompleted increments the sessionsCompleted counter
func (m *Metrics) IncrementSessionsCompleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionsCompleted++
	m.lastUpdate = time.Now()
}

// IncrementSessionsTimedOut increments the sessionsTimedOut counter
func (m *Metrics) IncrementSessionsTimedOut() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionsTimedOut++
	m.lastUpdate = time.Now()
}

// IncrementQuickVotes increments the quickVotes counter
func (m *Metrics) IncrementQuickVotes() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quickVotes++
	m.lastUpdate = time.Now()
}

// IncrementConflictsResolved increments the conflictsResolved counter
func (m *Metrics) IncrementConflictsResolved() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflictsResolved++
	m.lastUpdate = time.Now()
}

// UpdateAverageLatency folds a session's open-to-complete latency into the
// exponential moving average
func (m *Metrics) UpdateAverageLatency(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.averageLatency == 0 {
		m.averageLatency = latency
	} else {
		alpha := 0.1
		m.averageLatency = time.Duration(float64(m.averageLatency)*(1-alpha) + float64(latency)*alpha)
	}
	m.lastUpdate = time.Now()
}

// GetStats returns the current metrics snapshot
func (m *Metrics) GetStats(activeSessions int) Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		ActiveSessions:    activeSessions,
		SessionsCreated:   m.sessionsCreated,
		SessionsCompleted: m.sessionsCompleted,
		SessionsTimedOut:  m.sessionsTimedOut,
		QuickVotes:        m.quickVotes,
		ConflictsResolved: m.conflictsResolved,
		AverageLatency:    m.averageLatency,
		LastUpdate:        m.lastUpdate,
	}
}
