// Package circuitbreaker stops calls to the content generator after a run of
// failures and lets a probe through once the open timeout has elapsed.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned without calling the service.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned while the half-open probe is in flight.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// ══════════════════════════════════════════════════════════════════════════════
// OPTIONS
// ══════════════════════════════════════════════════════════════════════════════

type settings struct {
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
	maxProbes        int
	isFailure        func(error) bool
	onStateChange    func(name string, from, to State)
	now              func() time.Time
}

// Option configures a CircuitBreaker.
type Option func(*settings)

// WithFailureThreshold sets how many consecutive failures open the circuit.
func WithFailureThreshold(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many half-open successes close the circuit.
func WithSuccessThreshold(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.successThreshold = n
		}
	}
}

// WithTimeout sets how long the circuit stays open before a probe.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.openTimeout = d
		}
	}
}

// WithMaxHalfOpenRequests bounds concurrent probes.
func WithMaxHalfOpenRequests(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxProbes = n
		}
	}
}

// WithIsFailure decides which errors count against the service.
func WithIsFailure(fn func(error) bool) Option {
	return func(s *settings) { s.isFailure = fn }
}

// WithOnStateChange is called after every transition, outside the lock.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(s *settings) { s.onStateChange = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BREAKER
// ══════════════════════════════════════════════════════════════════════════════

// Counts are cumulative except for the consecutive runs.
type Counts struct {
	Requests             int
	TotalSuccesses       int
	TotalFailures        int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// CircuitBreaker guards one upstream.
type CircuitBreaker struct {
	name string
	cfg  settings

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	probes   int
}

// New creates a closed breaker: 5 failures to open, 30s open, 1 probe.
func New(name string, opts ...Option) *CircuitBreaker {
	cfg := settings{
		failureThreshold: 5,
		successThreshold: 2,
		openTimeout:      30 * time.Second,
		maxProbes:        1,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &CircuitBreaker{name: name, cfg: cfg}
}

type transition struct {
	from, to State
}

// Execute calls fn unless the circuit is open and records the outcome.
// Caller cancellation is never counted as a failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	t, err := cb.admit()
	cb.notify(t)
	if err != nil {
		return err
	}

	err = fn(ctx)
	cb.notify(cb.record(err))
	return err
}

func (cb *CircuitBreaker) admit() (*transition, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil, nil
	case StateOpen:
		if cb.cfg.now().Sub(cb.openedAt) < cb.cfg.openTimeout {
			return nil, ErrCircuitOpen
		}
		t := cb.moveTo(StateHalfOpen)
		cb.probes = 1
		return t, nil
	default:
		if cb.probes >= cb.cfg.maxProbes {
			return nil, ErrTooManyRequests
		}
		cb.probes++
		return nil, nil
	}
}

func (cb *CircuitBreaker) record(err error) *transition {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.Requests++

	failed := err != nil && !errors.Is(err, context.Canceled)
	if failed && cb.cfg.isFailure != nil {
		failed = cb.cfg.isFailure(err)
	}

	if !failed {
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.cfg.successThreshold {
			return cb.moveTo(StateClosed)
		}
		return nil
	}

	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0

	if cb.state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.cfg.failureThreshold {
		cb.openedAt = cb.cfg.now()
		return cb.moveTo(StateOpen)
	}
	return nil
}

// moveTo must be called with mu held.
func (cb *CircuitBreaker) moveTo(to State) *transition {
	if cb.state == to {
		return nil
	}
	t := &transition{from: cb.state, to: to}
	cb.state = to
	cb.counts.ConsecutiveSuccesses = 0
	cb.counts.ConsecutiveFailures = 0
	cb.probes = 0
	return t
}

func (cb *CircuitBreaker) notify(t *transition) {
	if t != nil && cb.cfg.onStateChange != nil {
		cb.cfg.onStateChange(cb.name, t.from, t.to)
	}
}

// State returns the current position.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a copy of the counters.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// IsOpen reports whether calls are being rejected.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// IsClosed reports whether calls flow normally.
func (cb *CircuitBreaker) IsClosed() bool {
	return cb.State() == StateClosed
}

// GeneratorBreaker returns the breaker for the content generator.
// Only failures matching isFailure are counted, so a malformed answer
// does not open the circuit while an outage does.
func GeneratorBreaker(isFailure func(error) bool, onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(
		"content-generator",
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithTimeout(45*time.Second), // shorter than the 60s generation retry delay
		WithMaxHalfOpenRequests(1),
		WithIsFailure(isFailure),
		WithOnStateChange(onStateChange),
	)
}
