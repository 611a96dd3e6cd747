package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/domain/user"
	"github.com/dailycodechallenge/backend/internal/infrastructure/persistence/memory"
	"github.com/dailycodechallenge/backend/internal/infrastructure/persistence/redis"
	"github.com/dailycodechallenge/backend/pkg/timeutil"
)

func newGradingHandler(users *memory.UserRepository) (*ApplyGradingHandler, *redis.UserCache) {
	cache := redis.NewUserCache(memory.NewKV())
	h := NewApplyGradingHandler(users, cache, ApplyGradingConfig{
		Clock:  timeutil.FixedClock(testNow),
		Logger: quietLogger(),
	})
	return h, cache
}

func TestApplyGrading_CreditsAllCountersAndCaches(t *testing.T) {
	users := memory.NewUserRepository()
	seedUser(t, users, "sub-1", "ana")
	h, cache := newGradingHandler(users)
	ctx := context.Background()

	res, err := h.Handle(ctx, ApplyGradingCommand{
		SubjectID:  "sub-1",
		Difficulty: user.DifficultyHard,
		RawScore:   8,
		TitleEN:    "Sum",
		TitleES:    "Suma",
		Feedback:   "good",
	})
	require.NoError(t, err)

	assert.Equal(t, 6.4, res.Points)
	assert.Equal(t, testToday, res.Today)
	assert.Equal(t, user.Scores{Daily: 6.4, Weekly: 6.4, Monthly: 6.4, Global: 6.4}, res.Snapshot.Scores)
	assert.Equal(t, testToday, res.Snapshot.LastCompletedExercise)
	require.Len(t, res.Snapshot.RecentActivity, 1)
	assert.Equal(t, "Suma", res.Snapshot.RecentActivity[0].ChallengeES)
	assert.Equal(t, user.StatusCompletedEN, res.Snapshot.RecentActivity[0].StatusEN)

	cached, err := cache.Get(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, res.Snapshot, cached)
}

func TestApplyGrading_OncePerDay(t *testing.T) {
	users := memory.NewUserRepository()
	seedUser(t, users, "sub-1", "ana")
	h, _ := newGradingHandler(users)
	ctx := context.Background()

	cmd := ApplyGradingCommand{SubjectID: "sub-1", Difficulty: user.DifficultyEasy, RawScore: 5}
	_, err := h.Handle(ctx, cmd)
	require.NoError(t, err)

	_, err = h.Handle(ctx, cmd)
	assert.ErrorIs(t, err, shared.ErrAlreadyCompletedToday)
	assert.Equal(t, shared.CodeAlreadyCompleted, shared.CodeOf(err))

	u, err := users.GetBySubjectID(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, 2.0, u.Scores.Global)
}

func TestApplyGrading_PersistenceFailureLeavesCacheUntouched(t *testing.T) {
	users := memory.NewUserRepository()
	seedUser(t, users, "sub-1", "ana")
	users.FailWrites = errors.New("connection reset")
	h, cache := newGradingHandler(users)
	ctx := context.Background()

	_, err := h.Handle(ctx, ApplyGradingCommand{SubjectID: "sub-1", Difficulty: user.DifficultyEasy, RawScore: 5})
	assert.ErrorIs(t, err, shared.ErrUpstream)

	_, err = cache.Get(ctx, "sub-1")
	assert.ErrorIs(t, err, shared.ErrCacheMiss)
}

func TestApplyGrading_Validation(t *testing.T) {
	users := memory.NewUserRepository()
	h, _ := newGradingHandler(users)
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  ApplyGradingCommand
		want error
	}{
		{"missing subject", ApplyGradingCommand{Difficulty: user.DifficultyEasy, RawScore: 1}, shared.ErrInvalidToken},
		{"unknown difficulty", ApplyGradingCommand{SubjectID: "s", Difficulty: "legendary", RawScore: 1}, shared.ErrInvalidDifficulty},
		{"zero score", ApplyGradingCommand{SubjectID: "s", Difficulty: user.DifficultyEasy}, shared.ErrNonPositiveScore},
		{"negative score", ApplyGradingCommand{SubjectID: "s", Difficulty: user.DifficultyEasy, RawScore: -3}, shared.ErrNonPositiveScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(ctx, tt.cmd)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestApplyGrading_UnknownUser(t *testing.T) {
	h, _ := newGradingHandler(memory.NewUserRepository())

	_, err := h.Handle(context.Background(), ApplyGradingCommand{SubjectID: "ghost", Difficulty: user.DifficultyEasy, RawScore: 5})
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
}
