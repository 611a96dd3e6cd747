package redis

import (
	"context"
	"time"

	"github.com/dailycodechallenge/backend/internal/domain/exercise"
)

// ExerciseCache implements exercise.Cache over the single exercise_of_the_day key.
type ExerciseCache struct {
	store Store
}

var _ exercise.Cache = (*ExerciseCache)(nil)

// NewExerciseCache creates a new ExerciseCache.
func NewExerciseCache(store Store) *ExerciseCache {
	return &ExerciseCache{store: store}
}

// Get returns the cached exercise set.
func (c *ExerciseCache) Get(ctx context.Context) (*exercise.Set, error) {
	var set exercise.Set
	if err := c.store.Get(ctx, KeyExerciseOfTheDay, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// Set overwrites the cached exercise set.
func (c *ExerciseCache) Set(ctx context.Context, set *exercise.Set, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLExerciseOfTheDay
	}
	return c.store.Set(ctx, KeyExerciseOfTheDay, set, ttl)
}
