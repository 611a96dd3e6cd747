package command

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/infrastructure/persistence/memory"
	"github.com/dailycodechallenge/backend/internal/infrastructure/persistence/redis"
	"github.com/dailycodechallenge/backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LINK USER
// ══════════════════════════════════════════════════════════════════════════════

func TestLinkUser_CreatesThenReturnsExisting(t *testing.T) {
	users := memory.NewUserRepository()
	h := NewLinkUserHandler(users, timeutil.FixedClock(testNow), quietLogger())
	ctx := context.Background()

	res, err := h.Handle(ctx, LinkUserCommand{SubjectID: "sub-1", Username: "ana"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "ana", res.User.Username.String())
	assert.NotEmpty(t, res.User.ID)

	again, err := h.Handle(ctx, LinkUserCommand{SubjectID: "sub-1", Username: "another"})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, "ana", again.User.Username.String())
	assert.Equal(t, res.User.ID, again.User.ID)
}

func TestLinkUser_TakenUsernameGetsSuffix(t *testing.T) {
	users := memory.NewUserRepository()
	seedUser(t, users, "sub-1", "ana")
	h := NewLinkUserHandler(users, timeutil.FixedClock(testNow), quietLogger())
	h.suffix = func() int { return 42 }

	res, err := h.Handle(context.Background(), LinkUserCommand{SubjectID: "sub-2", Username: "ana"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "ana42", res.User.Username.String())
}

func TestLinkUser_SuffixKeepsLengthLimit(t *testing.T) {
	users := memory.NewUserRepository()
	long := strings.Repeat("a", 30)
	seedUser(t, users, "sub-1", long)
	h := NewLinkUserHandler(users, timeutil.FixedClock(testNow), quietLogger())
	h.suffix = func() int { return 999 }

	res, err := h.Handle(context.Background(), LinkUserCommand{SubjectID: "sub-2", Username: long})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 27)+"999", res.User.Username.String())
	assert.True(t, res.User.Username.IsValid())
}

func TestLinkUser_GivesUpWhenEverySuffixIsTaken(t *testing.T) {
	users := memory.NewUserRepository()
	seedUser(t, users, "sub-1", "ana")
	seedUser(t, users, "sub-2", "ana7")
	h := NewLinkUserHandler(users, timeutil.FixedClock(testNow), quietLogger())
	h.suffix = func() int { return 7 }

	_, err := h.Handle(context.Background(), LinkUserCommand{SubjectID: "sub-3", Username: "ana"})
	assert.ErrorIs(t, err, shared.ErrUsernameTaken)
}

func TestLinkUser_InvalidUsername(t *testing.T) {
	h := NewLinkUserHandler(memory.NewUserRepository(), nil, quietLogger())

	_, err := h.Handle(context.Background(), LinkUserCommand{SubjectID: "sub-1", Username: "a b"})
	assert.ErrorIs(t, err, shared.ErrInvalidUsername)
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE USERNAME
// ══════════════════════════════════════════════════════════════════════════════

func newUpdateUsernameHandler(users *memory.UserRepository, clock timeutil.Clock) (*UpdateUsernameHandler, *redis.UserCache) {
	cache := redis.NewUserCache(memory.NewKV())
	return NewUpdateUsernameHandler(users, cache, UpdateUsernameConfig{
		Clock:    clock,
		Cooldown: 10 * 24 * time.Hour,
		Logger:   quietLogger(),
	}), cache
}

func TestUpdateUsername_RenamesAndEnforcesCooldown(t *testing.T) {
	users := memory.NewUserRepository()
	seedUser(t, users, "sub-1", "ana")
	clock := newTestClock(testNow)
	h, cache := newUpdateUsernameHandler(users, clock)
	ctx := context.Background()

	res, err := h.Handle(ctx, UpdateUsernameCommand{SubjectID: "sub-1", OldUsername: "ana", NewUsername: "ana_dev"})
	require.NoError(t, err)
	assert.Equal(t, "ana", res.OldUsername)
	assert.Equal(t, "ana_dev", res.NewUsername)

	cached, err := cache.Get(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "ana_dev", cached.Username)

	clock.Advance(3 * 24 * time.Hour)
	_, err = h.Handle(ctx, UpdateUsernameCommand{SubjectID: "sub-1", OldUsername: "ana_dev", NewUsername: "ana_ops"})
	var cooldown *shared.UsernameCooldownError
	require.True(t, errors.As(err, &cooldown))
	assert.Equal(t, 7, cooldown.DaysRemaining)
	assert.Equal(t, shared.CodeDaysRemaining, shared.CodeOf(err))

	clock.Advance(7 * 24 * time.Hour)
	_, err = h.Handle(ctx, UpdateUsernameCommand{SubjectID: "sub-1", OldUsername: "ana_dev", NewUsername: "ana_ops"})
	require.NoError(t, err)
}

func TestUpdateUsername_OldNameMustBelongToCaller(t *testing.T) {
	users := memory.NewUserRepository()
	seedUser(t, users, "sub-1", "ana")
	seedUser(t, users, "sub-2", "bob")
	h, _ := newUpdateUsernameHandler(users, timeutil.FixedClock(testNow))

	_, err := h.Handle(context.Background(), UpdateUsernameCommand{SubjectID: "sub-1", OldUsername: "bob", NewUsername: "bobby"})
	assert.ErrorIs(t, err, shared.ErrUsernameMismatch)
	assert.True(t, shared.IsNotFound(err))
}

func TestUpdateUsername_TakenName(t *testing.T) {
	users := memory.NewUserRepository()
	seedUser(t, users, "sub-1", "ana")
	seedUser(t, users, "sub-2", "bob")
	h, _ := newUpdateUsernameHandler(users, timeutil.FixedClock(testNow))

	_, err := h.Handle(context.Background(), UpdateUsernameCommand{SubjectID: "sub-1", OldUsername: "ana", NewUsername: "bob"})
	assert.ErrorIs(t, err, shared.ErrUsernameTaken)
}

// ══════════════════════════════════════════════════════════════════════════════
// MORE CHALLENGES
// ══════════════════════════════════════════════════════════════════════════════

func TestMoreChallenges_QuotaAndCooldown(t *testing.T) {
	clock := newTestClock(testNow)
	kv := memory.NewKV().WithClock(clock.Now)
	gen := &fakeGenerator{single: "Reverse a linked list"}
	h := NewMoreChallengesHandler(redis.NewChallengeLimiter(kv, 2, time.Minute), gen, clock, quietLogger())
	ctx := context.Background()
	cmd := MoreChallengesCommand{SubjectID: "sub-1", Difficulty: "easy", Language: "en"}

	res, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, "Reverse a linked list", res.Challenge)
	assert.Equal(t, 1, res.RemainingRequests)

	res, err = h.Handle(ctx, cmd)
	assert.ErrorIs(t, err, shared.ErrChallengeCooldown)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.RemainingRequests)

	clock.Advance(61 * time.Second)
	res, err = h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, 0, res.RemainingRequests)

	clock.Advance(61 * time.Second)
	res, err = h.Handle(ctx, cmd)
	assert.ErrorIs(t, err, shared.ErrChallengeLimit)
	assert.Equal(t, 0, res.RemainingRequests)
	assert.Equal(t, 2, gen.singleCalls)
}

func TestMoreChallenges_FailedGenerationKeepsQuota(t *testing.T) {
	clock := newTestClock(testNow)
	kv := memory.NewKV().WithClock(clock.Now)
	limiter := redis.NewChallengeLimiter(kv, 5, time.Minute)
	gen := &fakeGenerator{singleErr: shared.ErrGeneratorUnavailable}
	h := NewMoreChallengesHandler(limiter, gen, clock, quietLogger())
	ctx := context.Background()

	_, err := h.Handle(ctx, MoreChallengesCommand{SubjectID: "sub-1", Difficulty: "hard"})
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)

	clock.Advance(61 * time.Second)
	remaining, err := limiter.Check(ctx, "sub-1", testToday)
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)
}

func TestMoreChallenges_Validation(t *testing.T) {
	h := NewMoreChallengesHandler(nil, &fakeGenerator{}, nil, quietLogger())

	_, err := h.Handle(context.Background(), MoreChallengesCommand{SubjectID: "sub-1", Difficulty: "trivial"})
	assert.ErrorIs(t, err, shared.ErrInvalidDifficulty)
}

// ══════════════════════════════════════════════════════════════════════════════
// CUSTOM TOKEN
// ══════════════════════════════════════════════════════════════════════════════

func TestCreateCustomToken(t *testing.T) {
	users := memory.NewUserRepository()
	seedUser(t, users, "sub-1", "ana")
	h := NewCreateCustomTokenHandler(users, fakeIssuer{token: "tok"}, quietLogger())
	ctx := context.Background()

	res, err := h.Handle(ctx, CreateCustomTokenCommand{UID: "sub-1", Username: "ana"})
	require.NoError(t, err)
	assert.Equal(t, "tok:sub-1", res.CustomToken)

	tests := []struct {
		name string
		cmd  CreateCustomTokenCommand
	}{
		{"wrong username", CreateCustomTokenCommand{UID: "sub-1", Username: "bob"}},
		{"unknown uid", CreateCustomTokenCommand{UID: "sub-9", Username: "ana"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(ctx, tt.cmd)
			assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
			assert.ErrorIs(t, err, shared.ErrUnauthorized)
		})
	}

	_, err = h.Handle(ctx, CreateCustomTokenCommand{Username: "ana"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateCustomToken_IssuerFailure(t *testing.T) {
	users := memory.NewUserRepository()
	seedUser(t, users, "sub-1", "ana")
	h := NewCreateCustomTokenHandler(users, fakeIssuer{err: shared.WrapError("identity", "CustomToken", shared.ErrUpstream, "sign failed", errors.New("bad key"))}, quietLogger())

	_, err := h.Handle(context.Background(), CreateCustomTokenCommand{UID: "sub-1", Username: "ana"})
	assert.ErrorIs(t, err, shared.ErrUpstream)
}
