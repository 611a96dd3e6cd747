package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailycodechallenge/backend/internal/application/command"
	"github.com/dailycodechallenge/backend/internal/domain/exercise"
	"github.com/dailycodechallenge/backend/internal/domain/leaderboard"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/domain/user"
	"github.com/dailycodechallenge/backend/internal/infrastructure/persistence/memory"
	"github.com/dailycodechallenge/backend/internal/infrastructure/persistence/redis"
	"github.com/dailycodechallenge/backend/pkg/timeutil"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

const testToday = "2024-03-10"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedUser создаёт пользователя и начисляет ему points за день.
func seedUser(t *testing.T, repo *memory.UserRepository, subject, name string, points float64) {
	t.Helper()
	ctx := context.Background()

	u, err := user.NewUser(user.NewUserParams{
		ID:        subject + "-id",
		SubjectID: shared.SubjectID(subject),
		Username:  shared.Username(name),
		Now:       testNow,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, u))

	if points > 0 {
		_, err = repo.ApplyGrading(ctx, u.SubjectID, user.Grading{
			Today:    testToday,
			Points:   points,
			Activity: user.NewCompletedActivity(testToday, "Two Sum", "Dos Sumas", points, "ok"),
		})
		require.NoError(t, err)
	}
}

// buildTop кладёт в кеш топ периода так же, как это делает Builder.
func buildTop(t *testing.T, users *memory.UserRepository, cache leaderboard.Cache, period leaderboard.Period) {
	t.Helper()
	ctx := context.Background()
	entries, err := users.TopByPeriod(ctx, period, leaderboard.TopSize)
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, leaderboard.NewSnapshot(period, entries, testNow, time.Hour), time.Hour))
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

func TestGetLeaderboardAndRank_TopWithLiveRank(t *testing.T) {
	users := memory.NewUserRepository()
	for i := 1; i <= 12; i++ {
		seedUser(t, users, fmt.Sprintf("sub-%d", i), fmt.Sprintf("user%02d", i), float64(i))
	}
	cache := redis.NewLeaderboardCache(memory.NewKV())
	buildTop(t, users, cache, leaderboard.PeriodWeekly)

	h := NewGetLeaderboardAndRankHandler(cache, users, users, quietLogger())
	res, err := h.Handle(context.Background(), GetLeaderboardAndRankQuery{Filter: "weekly", SubjectID: "sub-1"})
	require.NoError(t, err)

	assert.Equal(t, "weekly", res.Period)
	require.Len(t, res.Entries, leaderboard.TopSize)
	assert.Equal(t, "user12", res.Entries[0].Username)
	assert.Equal(t, 1, res.Entries[0].Rank)
	assert.Equal(t, 10, res.Entries[9].Rank)

	// Пользователь вне топа всё равно получает ранг.
	require.NotNil(t, res.UserRank)
	assert.Equal(t, "user01", res.UserRank.Username)
	assert.Equal(t, 12, res.UserRank.Rank)
	assert.InDelta(t, 1.0, res.UserRank.Score, 1e-9)
}

func TestGetLeaderboardAndRank_TiesShareRank(t *testing.T) {
	users := memory.NewUserRepository()
	seedUser(t, users, "sub-1", "ana", 10)
	seedUser(t, users, "sub-2", "bob", 10)
	seedUser(t, users, "sub-3", "eva", 8)
	cache := redis.NewLeaderboardCache(memory.NewKV())
	buildTop(t, users, cache, leaderboard.PeriodGlobal)

	h := NewGetLeaderboardAndRankHandler(cache, users, users, quietLogger())
	res, err := h.Handle(context.Background(), GetLeaderboardAndRankQuery{SubjectID: "sub-2"})
	require.NoError(t, err)

	ranks := make([]int, 0, len(res.Entries))
	for _, e := range res.Entries {
		ranks = append(ranks, e.Rank)
	}
	assert.Equal(t, []int{1, 1, 3}, ranks)
	require.NotNil(t, res.UserRank)
	assert.Equal(t, 1, res.UserRank.Rank)
}

func TestGetLeaderboardAndRank_NotBuiltYet(t *testing.T) {
	users := memory.NewUserRepository()
	h := NewGetLeaderboardAndRankHandler(redis.NewLeaderboardCache(memory.NewKV()), users, users, quietLogger())

	_, err := h.Handle(context.Background(), GetLeaderboardAndRankQuery{Filter: "daily"})
	assert.ErrorIs(t, err, shared.ErrLeaderboardUnavailable)
	assert.True(t, shared.IsNotFound(err))
}

func TestGetLeaderboardAndRank_UnknownCallerHasNoRank(t *testing.T) {
	users := memory.NewUserRepository()
	seedUser(t, users, "sub-1", "ana", 4)
	cache := redis.NewLeaderboardCache(memory.NewKV())
	buildTop(t, users, cache, leaderboard.PeriodDaily)

	h := NewGetLeaderboardAndRankHandler(cache, users, users, quietLogger())

	for _, subject := range []shared.SubjectID{"", "sub-404"} {
		res, err := h.Handle(context.Background(), GetLeaderboardAndRankQuery{Filter: "daily", SubjectID: subject})
		require.NoError(t, err)
		assert.Len(t, res.Entries, 1)
		assert.Nil(t, res.UserRank)
	}
}

type brokenScores struct{ leaderboard.ScoreSource }

func (brokenScores) CountGreater(context.Context, leaderboard.Period, float64) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestGetLeaderboardAndRank_RankFailureKeepsTop(t *testing.T) {
	users := memory.NewUserRepository()
	seedUser(t, users, "sub-1", "ana", 4)
	cache := redis.NewLeaderboardCache(memory.NewKV())
	buildTop(t, users, cache, leaderboard.PeriodDaily)

	h := NewGetLeaderboardAndRankHandler(cache, brokenScores{users}, users, quietLogger())
	res, err := h.Handle(context.Background(), GetLeaderboardAndRankQuery{Filter: "daily", SubjectID: "sub-1"})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 1)
	assert.Nil(t, res.UserRank)
}

func TestGetLeaderboardAndRank_InvalidFilter(t *testing.T) {
	q := GetLeaderboardAndRankQuery{Filter: "yearly"}
	assert.ErrorIs(t, q.Validate(), shared.ErrInvalidPeriod)

	users := memory.NewUserRepository()
	h := NewGetLeaderboardAndRankHandler(redis.NewLeaderboardCache(memory.NewKV()), users, users, quietLogger())
	_, err := h.Handle(context.Background(), q)
	assert.ErrorIs(t, err, shared.ErrInvalidPeriod)
}

// ══════════════════════════════════════════════════════════════════════════════
// USER DATA
// ══════════════════════════════════════════════════════════════════════════════

func TestGetUserData_CacheAside(t *testing.T) {
	users := memory.NewUserRepository()
	seedUser(t, users, "sub-1", "ana", 6.4)
	cache := redis.NewUserCache(memory.NewKV())
	h := NewGetUserDataHandler(users, cache, time.Hour, quietLogger())
	ctx := context.Background()

	first, err := h.Handle(ctx, GetUserDataQuery{SubjectID: "sub-1"})
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, "ana", first.User.Username)
	assert.Equal(t, testToday, first.User.LastCompletedExercise)
	assert.InDelta(t, 6.4, first.User.Scores.Global, 1e-9)

	second, err := h.Handle(ctx, GetUserDataQuery{SubjectID: "sub-1"})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.User.Scores, second.User.Scores)
	require.Len(t, second.User.RecentActivity, 1)
}

func TestGetUserData_Errors(t *testing.T) {
	h := NewGetUserDataHandler(memory.NewUserRepository(), redis.NewUserCache(memory.NewKV()), 0, quietLogger())

	_, err := h.Handle(context.Background(), GetUserDataQuery{SubjectID: "sub-9"})
	assert.ErrorIs(t, err, shared.ErrUserNotFound)

	_, err = h.Handle(context.Background(), GetUserDataQuery{})
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

// ══════════════════════════════════════════════════════════════════════════════
// USERNAME CHECKS
// ══════════════════════════════════════════════════════════════════════════════

func TestCheckUsername(t *testing.T) {
	users := memory.NewUserRepository()
	seedUser(t, users, "sub-1", "ana", 0)
	h := NewCheckUsernameHandler(users)

	tests := []struct {
		name      string
		username  string
		available bool
	}{
		{"taken", "ana", false},
		{"free", "bob", true},
		{"bad format", "a b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.Handle(context.Background(), CheckUsernameQuery{Username: tt.username})
			require.NoError(t, err)
			assert.Equal(t, tt.available, res.Available)
		})
	}

	_, err := h.Handle(context.Background(), CheckUsernameQuery{Username: "  "})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCheckUsernameAndSubject(t *testing.T) {
	users := memory.NewUserRepository()
	seedUser(t, users, "sub-1", "ana", 0)
	h := NewCheckUsernameAndSubjectHandler(users)
	ctx := context.Background()

	res, err := h.Handle(ctx, CheckUsernameAndSubjectQuery{UID: "sub-1", Username: "ana"})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	_, err = h.Handle(ctx, CheckUsernameAndSubjectQuery{UID: "sub-1", Username: "bob"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = h.Handle(ctx, CheckUsernameAndSubjectQuery{UID: "sub-2", Username: "ana"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = h.Handle(ctx, CheckUsernameAndSubjectQuery{UID: "sub-1"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY EXERCISE
// ══════════════════════════════════════════════════════════════════════════════

func dailySet(t *testing.T) *exercise.Set {
	t.Helper()
	en := make([]exercise.Content, exercise.TierCount)
	es := make([]exercise.Content, exercise.TierCount)
	for i := range en {
		en[i] = exercise.Content{Title: fmt.Sprintf("Task %d", i+1), Exercise: "Solve it", Examples: "1 -> 1", Hints: "loop"}
		es[i] = exercise.Content{Title: fmt.Sprintf("Tarea %d", i+1), Exercise: "Resuélvelo", Examples: "1 -> 1", Hints: "bucle"}
	}
	tiers, err := exercise.Assemble(en, es)
	require.NoError(t, err)
	return &exercise.Set{ID: "set-1", Date: testToday, Theme: exercise.ThemeGeneral, Exercise: tiers, CreatedAt: testNow}
}

func TestGetDailyExercise_ServesStoredSet(t *testing.T) {
	repo := memory.NewExerciseRepository()
	require.NoError(t, repo.Insert(context.Background(), dailySet(t)))

	provisioner := command.NewProvisionExerciseHandler(repo, redis.NewExerciseCache(memory.NewKV()), nil, command.ProvisionExerciseConfig{
		Clock:  timeutil.FixedClock(testNow),
		Logger: quietLogger(),
	})
	h := NewGetDailyExerciseHandler(provisioner, quietLogger())

	res, err := h.Handle(context.Background(), GetDailyExerciseQuery{})
	require.NoError(t, err)
	assert.Equal(t, "set-1", res.Set.ID)
	assert.Equal(t, command.SourceStore, res.Source)

	again, err := h.Handle(context.Background(), GetDailyExerciseQuery{})
	require.NoError(t, err)
	assert.Equal(t, command.SourceCache, again.Source)
}

type failingProvisioner struct{ err error }

func (f failingProvisioner) Handle(context.Context, command.ProvisionExerciseCommand) (*command.ProvisionExerciseResult, error) {
	return nil, f.err
}

func TestGetDailyExercise_GenerationFailure(t *testing.T) {
	h := NewGetDailyExerciseHandler(failingProvisioner{err: shared.ErrExerciseGeneration}, quietLogger())

	_, err := h.Handle(context.Background(), GetDailyExerciseQuery{})
	assert.ErrorIs(t, err, shared.ErrGenerationFailed)
}
