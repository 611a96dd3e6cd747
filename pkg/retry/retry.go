// Package retry runs an operation a bounded number of times with a pause
// between attempts. The daily exercise generation uses a fixed pause; the
// exponential backoff is kept for calls to flaky upstreams.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MARKERS
// ══════════════════════════════════════════════════════════════════════════════

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as worth another attempt under the default policy.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent stops the loop; Do returns the wrapped error as is.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// ══════════════════════════════════════════════════════════════════════════════
// BACKOFF
// ══════════════════════════════════════════════════════════════════════════════

// Backoff returns the pause after the given failed attempt (1-based).
type Backoff func(attempt int) time.Duration

// Fixed pauses for the same delay after every attempt.
func Fixed(delay time.Duration) Backoff {
	return func(int) time.Duration { return delay }
}

// Exponential doubles (by multiplier) from initial up to max, with +/- jitter.
func Exponential(initial, max time.Duration, multiplier, jitter float64) Backoff {
	return func(attempt int) time.Duration {
		d := float64(initial) * math.Pow(multiplier, float64(attempt-1))
		if d > float64(max) {
			d = float64(max)
		}
		if jitter > 0 {
			d += d * jitter * (rand.Float64()*2 - 1)
		}
		if d < 0 {
			d = 0
		}
		return time.Duration(d)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RETRIER
// ══════════════════════════════════════════════════════════════════════════════

type policy struct {
	attempts int
	backoff  Backoff
	retryIf  func(error) bool
	onRetry  func(attempt int, err error, delay time.Duration)
}

// Option configures a Retrier.
type Option func(*policy)

// WithMaxAttempts sets the number of attempts, the first one included.
func WithMaxAttempts(n int) Option {
	return func(p *policy) {
		if n > 0 {
			p.attempts = n
		}
	}
}

// WithBackoff replaces the pause strategy.
func WithBackoff(b Backoff) Option {
	return func(p *policy) {
		if b != nil {
			p.backoff = b
		}
	}
}

// WithInitialDelay keeps the exponential strategy with a different start.
func WithInitialDelay(d time.Duration) Option {
	return func(p *policy) {
		if d > 0 {
			p.backoff = Exponential(d, 30*time.Second, 2.0, 0.1)
		}
	}
}

// WithRetryIf decides which errors get another attempt.
// Without it only errors marked Retryable are retried.
func WithRetryIf(fn func(error) bool) Option {
	return func(p *policy) { p.retryIf = fn }
}

// WithOnRetry is called before every pause.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(p *policy) { p.onRetry = fn }
}

// Retrier runs operations under one policy.
type Retrier struct {
	p policy
}

// New creates a Retrier: three attempts, exponential backoff from 100ms.
func New(opts ...Option) *Retrier {
	p := policy{
		attempts: 3,
		backoff:  Exponential(100*time.Millisecond, 30*time.Second, 2.0, 0.1),
		retryIf:  IsRetryable,
	}
	for _, opt := range opts {
		opt(&p)
	}
	if p.retryIf == nil {
		p.retryIf = IsRetryable
	}
	return &Retrier{p: p}
}

// Do runs op until it succeeds, fails permanently, runs out of attempts or
// ctx is done. The last operation error wins over the context error.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var last error

	for attempt := 1; attempt <= r.p.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return last
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		last = unwrapMarker(err)

		if IsPermanent(err) || !r.p.retryIf(err) || attempt == r.p.attempts {
			return last
		}

		delay := r.p.backoff(attempt)
		if r.p.onRetry != nil {
			r.p.onRetry(attempt, last, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last
		case <-timer.C:
		}
	}

	return last
}

func unwrapMarker(err error) error {
	var p *permanentError
	if errors.As(err, &p) && err == error(p) {
		return p.err
	}
	var r *retryableError
	if errors.As(err, &r) && err == error(r) {
		return r.err
	}
	return err
}

// Do runs op with a one-off Retrier.
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, op)
}

// GenerationRetrier returns the policy for daily exercise generation:
// a fixed number of attempts with a fixed pause, every error retried
// unless marked Permanent.
func GenerationRetrier(attempts int, delay time.Duration, onRetry func(attempt int, err error, delay time.Duration)) *Retrier {
	return New(
		WithMaxAttempts(attempts),
		WithBackoff(Fixed(delay)),
		WithRetryIf(func(err error) bool { return !IsPermanent(err) }),
		WithOnRetry(onRetry),
	)
}
