package redis

import (
	"context"
	"errors"
	"time"

	"github.com/dailycodechallenge/backend/internal/domain/shared"
)

// ChallengeLimiter enforces the extra-challenge quota: at most Limit
// generations per user per day, and one request per Wait interval.
type ChallengeLimiter struct {
	store Store
	limit int
	wait  time.Duration
}

// NewChallengeLimiter creates a new ChallengeLimiter.
func NewChallengeLimiter(store Store, limit int, wait time.Duration) *ChallengeLimiter {
	if limit <= 0 {
		limit = 5
	}
	if wait <= 0 {
		wait = TTLChallengeCooldown
	}
	return &ChallengeLimiter{store: store, limit: limit, wait: wait}
}

// Limit returns the daily quota.
func (l *ChallengeLimiter) Limit() int {
	return l.limit
}

// Check verifies the quota and claims the cooldown slot.
// It returns the remaining quota before this request is counted.
func (l *ChallengeLimiter) Check(ctx context.Context, subjectID, date string) (int, error) {
	used, err := l.used(ctx, subjectID, date)
	if err != nil {
		return 0, err
	}
	if used >= l.limit {
		return 0, shared.ErrChallengeLimit
	}

	ok, err := l.store.SetNX(ctx, ChallengeCooldownKey(subjectID), time.Now().Unix(), l.wait)
	if err != nil {
		return 0, err
	}
	if !ok {
		return l.limit - used, shared.ErrChallengeCooldown
	}

	return l.limit - used, nil
}

// Consume counts a successful generation and returns the remaining quota.
func (l *ChallengeLimiter) Consume(ctx context.Context, subjectID, date string) (int, error) {
	n, err := l.store.IncrWithTTL(ctx, ChallengeCountKey(subjectID, date), TTLChallengeCounter)
	if err != nil {
		return 0, err
	}
	remaining := l.limit - int(n)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (l *ChallengeLimiter) used(ctx context.Context, subjectID, date string) (int, error) {
	var n int
	err := l.store.Get(ctx, ChallengeCountKey(subjectID, date), &n)
	if errors.Is(err, shared.ErrCacheMiss) {
		return 0, nil
	}
	return n, err
}
