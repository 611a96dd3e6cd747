package handlers

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthChecker reports liveness and readiness for /health and /ready.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthCheckFunc returns nil when the dependency is reachable.
type HealthCheckFunc func(ctx context.Context) error

// HealthStatus is the body of /health and /ready.
// Healthy means every check passed; Ready only needs the critical ones.
type HealthStatus struct {
	Healthy   bool                   `json:"healthy"`
	Ready     bool                   `json:"ready"`
	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSITE
// ══════════════════════════════════════════════════════════════════════════════

const checkTimeout = 5 * time.Second

type registeredCheck struct {
	name     string
	fn       HealthCheckFunc
	critical bool
}

// CompositeHealthChecker runs its checks in parallel, each under its own
// timeout, and reports failures in registration order.
type CompositeHealthChecker struct {
	version string
	started time.Time

	mu     sync.RWMutex
	checks []registeredCheck
}

// NewCompositeHealthChecker creates a checker with no checks.
func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{version: version, started: time.Now()}
}

// AddCheck registers a dependency the service cannot serve without.
func (c *CompositeHealthChecker) AddCheck(name string, fn HealthCheckFunc) {
	c.register(registeredCheck{name: name, fn: fn, critical: true})
}

// AddOptionalCheck registers a dependency whose loss only degrades the service.
func (c *CompositeHealthChecker) AddOptionalCheck(name string, fn HealthCheckFunc) {
	c.register(registeredCheck{name: name, fn: fn})
}

func (c *CompositeHealthChecker) register(rc registeredCheck) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.checks {
		if c.checks[i].name == rc.name {
			c.checks[i] = rc
			return
		}
	}
	c.checks = append(c.checks, rc)
}

// Check implements HealthChecker.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := append([]registeredCheck(nil), c.checks...)
	c.mu.RUnlock()

	status := HealthStatus{
		Healthy:   true,
		Ready:     true,
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}
	if len(checks) == 0 {
		status.Message = "No health checks registered"
		return status
	}

	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, rc := range checks {
		i, rc := i, rc
		g.Go(func() error {
			results[i] = runCheck(ctx, rc)
			return nil
		})
	}
	_ = g.Wait()

	status.Checks = make(map[string]CheckResult, len(checks))
	var failed []string
	for i, rc := range checks {
		res := results[i]
		status.Checks[rc.name] = res
		if res.Healthy {
			continue
		}
		status.Healthy = false
		status.Ready = status.Ready && !res.Critical
		failed = append(failed, rc.name)
	}

	if status.Healthy {
		status.Message = "All checks passed"
	} else {
		status.Message = "Some checks failed: " + strings.Join(failed, ", ")
	}
	return status
}

func runCheck(ctx context.Context, rc registeredCheck) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := rc.fn(ctx)

	res := CheckResult{
		Healthy:  err == nil,
		Critical: rc.critical,
		Message:  "OK",
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		res.Message = err.Error()
	}
	return res
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// Pinger is the store pool or the cache client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewPingCheck adapts a Pinger.
func NewPingCheck(p Pinger) HealthCheckFunc {
	return p.Ping
}

// NoopHealthChecker is used when the server is built without checks.
type NoopHealthChecker struct {
	started time.Time
}

// NewNoopHealthChecker creates an always-healthy checker.
func NewNoopHealthChecker() *NoopHealthChecker {
	return &NoopHealthChecker{started: time.Now()}
}

// Check implements HealthChecker.
func (n *NoopHealthChecker) Check(context.Context) HealthStatus {
	return HealthStatus{
		Healthy:   true,
		Ready:     true,
		Message:   "OK",
		Uptime:    time.Since(n.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}
}
