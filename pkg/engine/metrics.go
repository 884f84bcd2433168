package engine

import (
	"sync"
	"time"
)

// Metrics tracks one agent's iteration counters.
type Metrics struct {
	mu        sync.Mutex
	name      string
	processed int
	errors    int
	lastRun   *time.Time
	lastError string
	totalTime time.Duration
}

func newMetrics(name string) *Metrics {
	return &Metrics{name: name}
}

func (m *Metrics) recordSuccess(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.processed++
	m.totalTime += duration
	m.lastRun = &now
}

func (m *Metrics) recordError(err error, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.errors++
	m.totalTime += duration
	m.lastRun = &now
	m.lastError = err.Error()
}

// MetricsSnapshot is an immutable copy of an agent's counters.
type MetricsSnapshot struct {
	Name      string
	Processed int
	Errors    int
	LastRun   *time.Time
	LastError string
	TotalTime time.Duration
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Name:      m.name,
		Processed: m.processed,
		Errors:    m.errors,
		LastRun:   m.lastRun,
		LastError: m.lastError,
		TotalTime: m.totalTime,
	}
}

// Runs returns the total number of completed iterations.
func (s MetricsSnapshot) Runs() int { return s.Processed + s.Errors }

// ErrorRate returns the fraction of iterations that failed.
func (s MetricsSnapshot) ErrorRate() float64 {
	runs := s.Runs()
	if runs == 0 {
		return 0
	}
	return float64(s.Errors) / float64(runs)
}

// healthy reports whether the agent's recent behavior is acceptable: some
// history with an error rate of at most 50%, or no history at all yet.
func (s MetricsSnapshot) healthy() bool {
	if s.Runs() == 0 {
		return true
	}
	return s.ErrorRate() <= 0.5
}

// StatusSnapshot is the serialized engine state served by the control
// surface.
type StatusSnapshot struct {
	Running bool                   `json:"running"`
	Agents  map[string]AgentStatus `json:"agents"`
}

// AgentStatus is one agent's entry in the status snapshot.
type AgentStatus struct {
	Enabled   bool       `json:"enabled"`
	Interval  string     `json:"interval"`
	Processed int        `json:"processed"`
	Errors    int        `json:"errors"`
	ErrorRate float64    `json:"error_rate"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Healthy   bool       `json:"healthy"`
}
