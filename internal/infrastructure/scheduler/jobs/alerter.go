package jobs

import (
	"log/slog"
	"sync"
)

// Alerter receives scheduled job failures.
type Alerter interface {
	JobFailed(jobName string, err error)
}

// LogAlerter reports job failures as error-level log records and keeps
// a per-job failure count.
type LogAlerter struct {
	logger *slog.Logger

	mu       sync.Mutex
	failures map[string]int
}

// NewLogAlerter creates a new LogAlerter.
func NewLogAlerter(logger *slog.Logger) *LogAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAlerter{
		logger:   logger.With("component", "alerter"),
		failures: make(map[string]int),
	}
}

// JobFailed records and logs a failure.
func (a *LogAlerter) JobFailed(jobName string, err error) {
	a.mu.Lock()
	a.failures[jobName]++
	n := a.failures[jobName]
	a.mu.Unlock()

	a.logger.Error("scheduled job failed",
		"job", jobName,
		"failures", n,
		"error", err,
	)
}

// Failures returns how many times jobName has failed.
func (a *LogAlerter) Failures(jobName string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failures[jobName]
}
