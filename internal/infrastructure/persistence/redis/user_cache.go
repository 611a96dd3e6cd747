package redis

import (
	"context"
	"time"

	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/domain/user"
)

// UserCache implements user.Cache over a Store.
type UserCache struct {
	store Store
}

var _ user.Cache = (*UserCache)(nil)

// NewUserCache creates a new UserCache.
func NewUserCache(store Store) *UserCache {
	return &UserCache{store: store}
}

// Get retrieves a user snapshot from cache.
func (c *UserCache) Get(ctx context.Context, subjectID shared.SubjectID) (*user.Snapshot, error) {
	var snap user.Snapshot
	if err := c.store.Get(ctx, UserKey(subjectID.String()), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Set overwrites a user snapshot.
func (c *UserCache) Set(ctx context.Context, subjectID shared.SubjectID, snapshot *user.Snapshot, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLUserSnapshot
	}
	return c.store.Set(ctx, UserKey(subjectID.String()), snapshot, ttl)
}

// Delete removes a user snapshot.
func (c *UserCache) Delete(ctx context.Context, subjectID shared.SubjectID) error {
	return c.store.Delete(ctx, UserKey(subjectID.String()))
}
