package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dailycodechallenge/backend/internal/domain/exercise"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/domain/user"
	"github.com/dailycodechallenge/backend/internal/infrastructure/persistence/memory"
	"github.com/dailycodechallenge/backend/pkg/timeutil"
)

// 06:00 in Mexico City, a General-theme day.
var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

const testToday = "2024-03-10"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ timeutil.Clock = (*testClock)(nil)

func seedUser(t *testing.T, repo *memory.UserRepository, subject, name string) *user.User {
	t.Helper()
	u, err := user.NewUser(user.NewUserParams{
		ID:        subject + "-id",
		SubjectID: shared.SubjectID(subject),
		Username:  shared.Username(name),
		Now:       testNow,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func contents(prefix string) []exercise.Content {
	out := make([]exercise.Content, exercise.TierCount)
	for i := range out {
		out[i] = exercise.Content{
			Title:    fmt.Sprintf("%s %d", prefix, i+1),
			Exercise: fmt.Sprintf("Solve %s %d", prefix, i+1),
			Examples: "in -> out",
			Hints:    "think",
		}
	}
	return out
}

func testSet(date string, theme exercise.Theme, prefix string) *exercise.Set {
	tiers, err := exercise.Assemble(contents(prefix), contents(prefix+" es"))
	if err != nil {
		panic(err)
	}
	return &exercise.Set{
		ID:        prefix + "-" + date,
		Date:      date,
		Theme:     theme,
		Exercise:  tiers,
		CreatedAt: testNow,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeGenerator struct {
	mu sync.Mutex

	generateCalls int
	requests      []exercise.GenerateRequest

	// generate returns the English tiers for call n (1-based).
	generate  func(n int) ([]exercise.Content, error)
	translate func(en []exercise.Content) ([]exercise.Content, error)

	// release, when set, blocks Generate until closed.
	release chan struct{}

	single      string
	singleErr   error
	singleCalls int
}

func (g *fakeGenerator) Generate(ctx context.Context, req exercise.GenerateRequest) ([]exercise.Content, error) {
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	g.generateCalls++
	n := g.generateCalls
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	if g.generate == nil {
		return contents("Fresh"), nil
	}
	return g.generate(n)
}

func (g *fakeGenerator) Translate(_ context.Context, en []exercise.Content) ([]exercise.Content, error) {
	if g.translate != nil {
		return g.translate(en)
	}
	out := make([]exercise.Content, len(en))
	for i, c := range en {
		out[i] = exercise.Content{
			Title:    c.Title + " (es)",
			Exercise: c.Exercise + " (es)",
			Examples: c.Examples,
			Hints:    c.Hints,
		}
	}
	return out, nil
}

func (g *fakeGenerator) GenerateSingle(_ context.Context, _ exercise.Theme, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.singleCalls++
	return g.single, g.singleErr
}

func (g *fakeGenerator) GenerateCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generateCalls
}

type fakeReviewer struct {
	mu       sync.Mutex
	review   *exercise.Review
	err      error
	calls    int
	requests []exercise.ReviewRequest
}

func (r *fakeReviewer) Review(_ context.Context, req exercise.ReviewRequest) (*exercise.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	return r.review, nil
}

type fakeIssuer struct {
	token string
	err   error
}

func (i fakeIssuer) CustomToken(_ context.Context, subject shared.SubjectID) (string, error) {
	if i.err != nil {
		return "", i.err
	}
	return i.token + ":" + subject.String(), nil
}
