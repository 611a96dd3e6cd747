// Package local keeps the exercise of the day in a JSON file on disk.
// It replaces the Redis key when the cache is disabled, so a restarted
// process still serves the same set without a store round-trip.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dailycodechallenge/backend/internal/domain/exercise"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
)

// FileName is the name of the exercise file inside the data directory.
const FileName = "exercise_of_the_day.json"

// fileEnvelope is the on-disk format.
type fileEnvelope struct {
	ExpiresAt time.Time     `json:"expiresAt"`
	Set       *exercise.Set `json:"set"`
}

// ExerciseFile implements exercise.Cache over a single file.
type ExerciseFile struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

var _ exercise.Cache = (*ExerciseFile)(nil)

// NewExerciseFile creates the data directory if needed.
func NewExerciseFile(dir string) (*ExerciseFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local: create %s: %w", dir, err)
	}
	return &ExerciseFile{
		path: filepath.Join(dir, FileName),
		now:  time.Now,
	}, nil
}

// Path returns the file location.
func (f *ExerciseFile) Path() string {
	return f.path
}

// Get returns the stored set, or shared.ErrCacheMiss when the file is
// absent, expired or unreadable.
func (f *ExerciseFile) Get(_ context.Context) (*exercise.Set, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, shared.ErrCacheMiss
		}
		return nil, fmt.Errorf("local: read %s: %w", f.path, err)
	}

	var env fileEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.Set == nil {
		// A corrupt file is treated as absent and rewritten on the next Set.
		return nil, shared.ErrCacheMiss
	}
	if !env.ExpiresAt.IsZero() && !f.now().Before(env.ExpiresAt) {
		return nil, shared.ErrCacheMiss
	}

	return env.Set, nil
}

// Set replaces the file atomically.
func (f *ExerciseFile) Set(_ context.Context, set *exercise.Set, ttl time.Duration) error {
	env := fileEnvelope{Set: set}
	if ttl > 0 {
		env.ExpiresAt = f.now().Add(ttl)
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("local: marshal exercise: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), FileName+".*")
	if err != nil {
		return fmt.Errorf("local: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("local: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("local: close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("local: replace %s: %w", f.path, err)
	}
	return nil
}
