package local

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailycodechallenge/backend/internal/domain/exercise"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
)

func TestExerciseFile_RoundTrip(t *testing.T) {
	f, err := NewExerciseFile(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = f.Get(ctx)
	assert.ErrorIs(t, err, shared.ErrCacheMiss)

	set := &exercise.Set{ID: "id-1", Date: "2024-12-01", Theme: exercise.ThemeChristmas}
	require.NoError(t, f.Set(ctx, set, time.Hour))

	got, err := f.Get(ctx)
	require.NoError(t, err)
	assert.True(t, got.Matches("2024-12-01", exercise.ThemeChristmas))

	// A second process reading the same directory sees the set.
	other := &ExerciseFile{path: f.Path(), now: time.Now}
	got, err = other.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
}

func TestExerciseFile_Expires(t *testing.T) {
	f, err := NewExerciseFile(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }
	require.NoError(t, f.Set(ctx, &exercise.Set{Date: "2024-03-10"}, 24*time.Hour))

	now = now.Add(24 * time.Hour)
	_, err = f.Get(ctx)
	assert.ErrorIs(t, err, shared.ErrCacheMiss)
}

func TestExerciseFile_CorruptIsMiss(t *testing.T) {
	f, err := NewExerciseFile(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(f.Path(), []byte("{not json"), 0o644))
	_, err = f.Get(context.Background())
	assert.ErrorIs(t, err, shared.ErrCacheMiss)
}
