package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dailycodechallenge/backend/internal/domain/exercise"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
)

// ExerciseRepository implements exercise.Repository in memory, one set per date.
type ExerciseRepository struct {
	mu     sync.RWMutex
	byDate map[string]exercise.Set
}

var _ exercise.Repository = (*ExerciseRepository)(nil)

// NewExerciseRepository creates an empty repository.
func NewExerciseRepository() *ExerciseRepository {
	return &ExerciseRepository{byDate: make(map[string]exercise.Set)}
}

// FindByDateAndTheme returns the set for a date when its theme matches.
func (r *ExerciseRepository) FindByDateAndTheme(_ context.Context, date string, theme exercise.Theme) (*exercise.Set, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.byDate[date]
	if !ok || set.Theme != theme {
		return nil, shared.ErrExerciseNotFound
	}
	return &set, nil
}

// FindByDate returns the set for a date.
func (r *ExerciseRepository) FindByDate(_ context.Context, date string) (*exercise.Set, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.byDate[date]
	if !ok {
		return nil, shared.ErrExerciseNotFound
	}
	return &set, nil
}

// Recent returns up to limit sets, newest date first.
func (r *ExerciseRepository) Recent(_ context.Context, limit int) ([]*exercise.Set, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dates := make([]string, 0, len(r.byDate))
	for d := range r.byDate {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	if limit > 0 && len(dates) > limit {
		dates = dates[:limit]
	}

	sets := make([]*exercise.Set, 0, len(dates))
	for _, d := range dates {
		set := r.byDate[d]
		sets = append(sets, &set)
	}
	return sets, nil
}

// Insert stores a set; a second set for the same date is rejected.
func (r *ExerciseRepository) Insert(_ context.Context, set *exercise.Set) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byDate[set.Date]; ok {
		return fmt.Errorf("%w: exercise set for %s", shared.ErrAlreadyExists, set.Date)
	}
	r.byDate[set.Date] = *set
	return nil
}

// DeleteOlderThan removes sets dated before cutoff. Dates are ISO strings,
// so lexical order is chronological.
func (r *ExerciseRepository) DeleteOlderThan(_ context.Context, cutoff string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for d := range r.byDate {
		if d < cutoff {
			delete(r.byDate, d)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored sets.
func (r *ExerciseRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byDate)
}
