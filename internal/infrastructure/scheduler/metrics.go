package scheduler

import (
	"sync"
	"time"
)

// SchedulerMetrics counts job runs, scheduled and manual alike.
type SchedulerMetrics struct {
	mu       sync.Mutex
	total    int64
	failures int64
	elapsed  time.Duration
	perJob   map[string]*jobCounters
}

type jobCounters struct {
	runs, failures int64
	last           time.Duration
}

// NewSchedulerMetrics returns empty counters.
func NewSchedulerMetrics() *SchedulerMetrics {
	return &SchedulerMetrics{perJob: make(map[string]*jobCounters)}
}

// RecordExecution adds one finished run.
func (m *SchedulerMetrics) RecordExecution(jobName string, d time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.perJob[jobName]
	if !ok {
		c = &jobCounters{}
		m.perJob[jobName] = c
	}
	c.runs++
	c.last = d

	m.total++
	m.elapsed += d
	if !success {
		m.failures++
		c.failures++
	}
}

// MetricsSnapshot is a copy of the counters at one point in time.
type MetricsSnapshot struct {
	TotalExecutions int64
	TotalSuccesses  int64
	TotalFailures   int64
	SuccessRate     float64
	AverageDuration time.Duration
	FailuresByJob   map[string]int64
}

// Snapshot copies the counters.
func (m *SchedulerMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		TotalExecutions: m.total,
		TotalSuccesses:  m.total - m.failures,
		TotalFailures:   m.failures,
		FailuresByJob:   make(map[string]int64, len(m.perJob)),
	}
	if m.total > 0 {
		snap.AverageDuration = m.elapsed / time.Duration(m.total)
		snap.SuccessRate = float64(snap.TotalSuccesses) / float64(m.total)
	}
	for name, c := range m.perJob {
		if c.failures > 0 {
			snap.FailuresByJob[name] = c.failures
		}
	}
	return snap
}
