package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/dailycodechallenge/backend/internal/application/command"
	"github.com/dailycodechallenge/backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROVISION EXERCISE JOB
// Creates the day's exercise set at midnight so the first request of the day
// does not pay for generation. A failed run pulls itself forward by the retry
// delay instead of surfacing an error.
// ══════════════════════════════════════════════════════════════════════════════

// ExerciseProvisioner returns the set of the day, generating it when missing.
type ExerciseProvisioner interface {
	Handle(ctx context.Context, cmd command.ProvisionExerciseCommand) (*command.ProvisionExerciseResult, error)
}

// Rescheduler moves a job's next run.
type Rescheduler interface {
	RunAt(jobName string, at time.Time) error
}

// ProvisionExerciseJob provisions the exercise of the day.
type ProvisionExerciseJob struct {
	provisioner ExerciseProvisioner
	rescheduler Rescheduler
	retryDelay  time.Duration
	clock       timeutil.Clock
	logger      *slog.Logger
}

// NewProvisionExerciseJob creates a new provisioning job.
// rescheduler may be nil; a failed run then waits for the next midnight.
func NewProvisionExerciseJob(
	provisioner ExerciseProvisioner,
	rescheduler Rescheduler,
	retryDelay time.Duration,
	clock timeutil.Clock,
	logger *slog.Logger,
) *ProvisionExerciseJob {
	if retryDelay <= 0 {
		retryDelay = time.Minute
	}
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProvisionExerciseJob{
		provisioner: provisioner,
		rescheduler: rescheduler,
		retryDelay:  retryDelay,
		clock:       clock,
		logger:      logger.With("job", "provision_exercise"),
	}
}

// Name returns the job name.
func (j *ProvisionExerciseJob) Name() string {
	return "provision_exercise"
}

// Description returns a human-readable description.
func (j *ProvisionExerciseJob) Description() string {
	return "Generates and stores the exercise set of the day"
}

// Run provisions today's set. It never returns an error.
func (j *ProvisionExerciseJob) Run(ctx context.Context) error {
	now := j.clock.Now()

	res, err := j.provisioner.Handle(ctx, command.ProvisionExerciseCommand{At: now})
	if err != nil {
		retryAt := now.Add(j.retryDelay)
		j.logger.Warn("exercise provisioning failed, will retry",
			"date", timeutil.FormatDateStr(now),
			"retry_at", retryAt.Format(time.RFC3339),
			"error", err,
		)
		if j.rescheduler != nil {
			if rerr := j.rescheduler.RunAt(j.Name(), retryAt); rerr != nil {
				j.logger.Error("failed to reschedule provisioning", "error", rerr)
			}
		}
		return nil
	}

	j.logger.Info("exercise of the day ready",
		"date", res.Set.Date,
		"theme", res.Set.Theme,
		"source", res.Source,
	)
	return nil
}
