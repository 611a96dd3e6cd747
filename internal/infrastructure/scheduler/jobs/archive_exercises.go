package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dailycodechallenge/backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ARCHIVE EXERCISES JOB
// ══════════════════════════════════════════════════════════════════════════════

// ExerciseArchive deletes old exercise sets.
type ExerciseArchive interface {
	DeleteOlderThan(ctx context.Context, cutoff string) (int64, error)
}

// ArchiveExercisesJob removes exercise sets older than the retention window.
type ArchiveExercisesJob struct {
	archive ExerciseArchive
	maxAge  int // days
	clock   timeutil.Clock
	logger  *slog.Logger
}

// NewArchiveExercisesJob creates a new archive job keeping maxAgeDays of history.
func NewArchiveExercisesJob(archive ExerciseArchive, maxAgeDays int, clock timeutil.Clock, logger *slog.Logger) *ArchiveExercisesJob {
	if maxAgeDays <= 0 {
		maxAgeDays = 60
	}
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveExercisesJob{
		archive: archive,
		maxAge:  maxAgeDays,
		clock:   clock,
		logger:  logger.With("job", "archive_exercises"),
	}
}

// Name returns the job name.
func (j *ArchiveExercisesJob) Name() string {
	return "archive_exercises"
}

// Description returns a human-readable description.
func (j *ArchiveExercisesJob) Description() string {
	return fmt.Sprintf("Deletes exercise sets older than %d days", j.maxAge)
}

// Run deletes every set dated before the cutoff.
func (j *ArchiveExercisesJob) Run(ctx context.Context) error {
	cutoff := timeutil.DaysAgo(j.clock.Now(), j.maxAge)

	deleted, err := j.archive.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive exercises before %s: %w", cutoff, err)
	}

	j.logger.Info("old exercises archived", "cutoff", cutoff, "deleted", deleted)
	return nil
}
