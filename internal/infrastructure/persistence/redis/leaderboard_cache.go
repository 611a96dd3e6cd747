package redis

import (
	"context"
	"time"

	"github.com/dailycodechallenge/backend/internal/domain/leaderboard"
)

// LeaderboardCache implements leaderboard.Cache: one JSON snapshot of the
// top-10 per period under leaderboard:{period}:top10.
type LeaderboardCache struct {
	store Store
}

var _ leaderboard.Cache = (*LeaderboardCache)(nil)

// NewLeaderboardCache creates a new LeaderboardCache.
func NewLeaderboardCache(store Store) *LeaderboardCache {
	return &LeaderboardCache{store: store}
}

// Get returns the cached snapshot of a period.
func (l *LeaderboardCache) Get(ctx context.Context, period leaderboard.Period) (*leaderboard.Snapshot, error) {
	var snap leaderboard.Snapshot
	if err := l.store.Get(ctx, LeaderboardKey(period.String()), &snap); err != nil {
		return nil, err
	}
	if snap.Period == "" {
		snap.Period = period
	}
	return &snap, nil
}

// Set overwrites the snapshot of its period.
func (l *LeaderboardCache) Set(ctx context.Context, snapshot *leaderboard.Snapshot, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLLeaderboard
	}
	return l.store.Set(ctx, LeaderboardKey(snapshot.Period.String()), snapshot, ttl)
}
