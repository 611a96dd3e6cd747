package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailycodechallenge/backend/internal/domain/exercise"
	"github.com/dailycodechallenge/backend/internal/domain/leaderboard"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/domain/user"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCacheFromClient(client), mr
}

func TestCache_SetGetMiss(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	var dst map[string]int
	err := cache.Get(ctx, "missing", &dst)
	assert.ErrorIs(t, err, shared.ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))
	require.NoError(t, cache.Get(ctx, "k", &dst))
	assert.Equal(t, 1, dst["a"])

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, cache.Get(ctx, "k", &dst), shared.ErrCacheMiss)
}

func TestCache_Validation(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	assert.ErrorIs(t, cache.Set(ctx, "", 1, time.Minute), ErrCacheKeyEmpty)
	assert.ErrorIs(t, cache.Set(ctx, "k", nil, time.Minute), ErrCacheNilValue)
	assert.ErrorIs(t, cache.Set(ctx, "k", 1, -time.Second), ErrCacheInvalidTTL)
}

func TestCache_IncrWithTTL_StartsTTLOnce(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	n, err := cache.IncrWithTTL(ctx, "counter", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mr.FastForward(30 * time.Minute)

	n, err = cache.IncrWithTTL(ctx, "counter", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// The second increment must not extend the window.
	assert.Equal(t, 30*time.Minute, mr.TTL("counter"))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "user:abc", UserKey("abc"))
	assert.Equal(t, "leaderboard:weekly:top10", LeaderboardKey("weekly"))
	assert.Equal(t, "ratelimit:abc:2024-03-10", ChallengeCountKey("abc", "2024-03-10"))
	assert.Equal(t, "ratelimit:abc:cooldown", ChallengeCooldownKey("abc"))
}

func TestUserCache_RoundTrip(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	uc := NewUserCache(cache)

	snap := &user.Snapshot{
		Username:              "ana",
		LastCompletedExercise: "2024-03-10",
		Scores:                user.Scores{Daily: 6.4, Weekly: 6.4, Monthly: 6.4, Global: 12.8},
		RecentActivity:        user.ActivityLog{},
	}
	require.NoError(t, uc.Set(ctx, "sub-1", snap, 0))

	got, err := uc.Get(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, snap, got)
	assert.Equal(t, TTLUserSnapshot, mr.TTL("user:sub-1"))

	// Wire format keeps the client-facing field names.
	raw, err := mr.Get("user:sub-1")
	require.NoError(t, err)
	assert.Contains(t, raw, `"dailyScore":6.4`)
	assert.Contains(t, raw, `"lastCompletedExercise":"2024-03-10"`)

	require.NoError(t, uc.Delete(ctx, "sub-1"))
	_, err = uc.Get(ctx, "sub-1")
	assert.ErrorIs(t, err, shared.ErrCacheMiss)
}

func TestLeaderboardCache_PerPeriodKeys(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	lc := NewLeaderboardCache(cache)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	daily := leaderboard.NewSnapshot(leaderboard.PeriodDaily, []leaderboard.Entry{
		{Username: "ana", Score: 10, SubjectID: "a"},
		{Username: "bo", Score: 8, SubjectID: "b"},
	}, now, time.Hour)
	require.NoError(t, lc.Set(ctx, daily, time.Hour))

	assert.True(t, mr.Exists("leaderboard:daily:top10"))
	assert.False(t, mr.Exists("leaderboard:weekly:top10"))

	got, err := lc.Get(ctx, leaderboard.PeriodDaily)
	require.NoError(t, err)
	assert.Equal(t, daily.Entries, got.Entries)

	_, err = lc.Get(ctx, leaderboard.PeriodWeekly)
	assert.ErrorIs(t, err, shared.ErrCacheMiss)
}

func TestExerciseCache_RoundTrip(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	ec := NewExerciseCache(cache)

	set := &exercise.Set{
		ID:    "id-1",
		Date:  "2024-03-10",
		Theme: exercise.ThemeGeneral,
		Exercise: exercise.Tiers{
			Easy: exercise.Tier{EN: exercise.Content{Title: "Sum", Exercise: "Add"}},
		},
		CreatedAt: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, ec.Set(ctx, set, 0))
	assert.Equal(t, TTLExerciseOfTheDay, mr.TTL(KeyExerciseOfTheDay))

	got, err := ec.Get(ctx)
	require.NoError(t, err)
	assert.True(t, got.Matches("2024-03-10", exercise.ThemeGeneral))
	assert.Equal(t, "Sum", got.Exercise.Easy.EN.Title)
}

func TestChallengeLimiter(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	limiter := NewChallengeLimiter(cache, 2, time.Minute)
	const day = "2024-03-10"

	remaining, err := limiter.Check(ctx, "sub", day)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	remaining, err = limiter.Consume(ctx, "sub", day)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	// Within the cooldown window.
	remaining, err = limiter.Check(ctx, "sub", day)
	assert.ErrorIs(t, err, shared.ErrChallengeCooldown)
	assert.Equal(t, 1, remaining)

	mr.FastForward(61 * time.Second)
	_, err = limiter.Check(ctx, "sub", day)
	require.NoError(t, err)
	_, err = limiter.Consume(ctx, "sub", day)
	require.NoError(t, err)

	mr.FastForward(61 * time.Second)
	remaining, err = limiter.Check(ctx, "sub", day)
	assert.ErrorIs(t, err, shared.ErrChallengeLimit)
	assert.Equal(t, 0, remaining)

	// A new day starts a fresh quota.
	_, err = limiter.Check(ctx, "sub", "2024-03-11")
	assert.NoError(t, err)
}
