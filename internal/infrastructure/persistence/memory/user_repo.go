package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dailycodechallenge/backend/internal/domain/leaderboard"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements user.Repository and leaderboard.ScoreSource in memory.
// All mutations run under one lock, which gives the same per-user atomicity
// as the conditional UPDATE of the SQL store.
type UserRepository struct {
	mu sync.RWMutex

	bySubject map[shared.SubjectID]*user.User
	order     []shared.SubjectID // registration order, for stable ties
	now       func() time.Time

	// FailWrites makes every mutation fail; tests use it to simulate an outage.
	FailWrites error
}

var (
	_ user.Repository         = (*UserRepository)(nil)
	_ leaderboard.ScoreSource = (*UserRepository)(nil)
)

// NewUserRepository creates an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		bySubject: make(map[shared.SubjectID]*user.User),
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (r *UserRepository) WithClock(now func() time.Time) *UserRepository {
	r.now = now
	return r
}

func clone(u *user.User) *user.User {
	c := *u
	c.RecentActivity = append(user.ActivityLog{}, u.RecentActivity...)
	return &c
}

// Create stores a new user.
func (r *UserRepository) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailWrites != nil {
		return shared.ErrPersistenceFailure.WithErr(r.FailWrites)
	}
	if _, ok := r.bySubject[u.SubjectID]; ok {
		return shared.ErrUserAlreadyExists
	}
	if r.usernameTakenLocked(u.Username, "") {
		return shared.ErrUsernameTaken
	}

	r.bySubject[u.SubjectID] = clone(u)
	r.order = append(r.order, u.SubjectID)
	return nil
}

// GetBySubjectID returns a user by subject.
func (r *UserRepository) GetBySubjectID(_ context.Context, subjectID shared.SubjectID) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.bySubject[subjectID]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return clone(u), nil
}

// GetByUsername returns a user by username.
func (r *UserRepository) GetByUsername(_ context.Context, username shared.Username) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.bySubject {
		if u.Username == username {
			return clone(u), nil
		}
	}
	return nil, shared.ErrUserNotFound
}

// UsernameExists checks whether a username is taken.
func (r *UserRepository) UsernameExists(_ context.Context, username shared.Username) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.usernameTakenLocked(username, ""), nil
}

func (r *UserRepository) usernameTakenLocked(username shared.Username, except shared.SubjectID) bool {
	for s, u := range r.bySubject {
		if s != except && u.Username == username {
			return true
		}
	}
	return false
}

// ApplyGrading applies a grading atomically.
func (r *UserRepository) ApplyGrading(_ context.Context, subjectID shared.SubjectID, g user.Grading) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailWrites != nil {
		return nil, shared.ErrPersistenceFailure.WithErr(r.FailWrites)
	}
	u, ok := r.bySubject[subjectID]
	if !ok {
		return nil, shared.ErrUserNotFound
	}

	next := clone(u)
	if err := next.ApplyGrading(g, r.now()); err != nil {
		return nil, err
	}
	r.bySubject[subjectID] = next
	return clone(next), nil
}

// UpdateUsername sets a new username.
func (r *UserRepository) UpdateUsername(_ context.Context, subjectID shared.SubjectID, username shared.Username, changedAt time.Time) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailWrites != nil {
		return nil, shared.ErrPersistenceFailure.WithErr(r.FailWrites)
	}
	u, ok := r.bySubject[subjectID]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	if r.usernameTakenLocked(username, subjectID) {
		return nil, shared.ErrUsernameTaken
	}

	next := clone(u)
	next.Username = username
	next.LastUsernameChange = changedAt
	next.UpdatedAt = changedAt
	r.bySubject[subjectID] = next
	return clone(next), nil
}

// ResetScores zeroes one period for every user.
func (r *UserRepository) ResetScores(_ context.Context, period leaderboard.Period) (int64, error) {
	if !period.IsResettable() {
		return 0, shared.ErrInvalidPeriod
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailWrites != nil {
		return 0, shared.ErrPersistenceFailure.WithErr(r.FailWrites)
	}

	var n int64
	for _, u := range r.bySubject {
		if u.Scores.Get(period) != 0 {
			u.Scores = u.Scores.Reset(period)
			n++
		}
	}
	return n, nil
}

// TopByPeriod returns the highest scores; ties keep registration order.
func (r *UserRepository) TopByPeriod(_ context.Context, period leaderboard.Period, limit int) ([]leaderboard.Entry, error) {
	if !period.IsValid() {
		return nil, shared.ErrInvalidPeriod
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]leaderboard.Entry, 0, len(r.order))
	for _, s := range r.order {
		u := r.bySubject[s]
		entries = append(entries, leaderboard.Entry{
			Username:  u.Username.String(),
			Score:     u.Scores.Get(period),
			SubjectID: s.String(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// CountGreater counts users with a strictly greater score.
func (r *UserRepository) CountGreater(_ context.Context, period leaderboard.Period, score float64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, u := range r.bySubject {
		if u.Scores.Get(period) > score {
			n++
		}
	}
	return n, nil
}
