package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dailycodechallenge/backend/internal/application/command"
	"github.com/dailycodechallenge/backend/internal/domain/leaderboard"
	"github.com/dailycodechallenge/backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESET SCORES JOBS
// One job per resettable period. The monthly cron fires on days 28-31 and
// the job itself skips every day that is not the last of the month.
// ══════════════════════════════════════════════════════════════════════════════

// ScoreResetter zeroes a period counter and rebuilds the leaderboards.
type ScoreResetter interface {
	Handle(ctx context.Context, cmd command.ResetScoresCommand) (*command.ResetScoresResult, error)
}

// ResetScoresJob resets one period.
type ResetScoresJob struct {
	period   leaderboard.Period
	resetter ScoreResetter
	clock    timeutil.Clock
	logger   *slog.Logger

	// due reports whether the reset should happen at the given instant.
	due func(now time.Time) bool
}

// NewDailyResetJob resets daily scores every midnight.
func NewDailyResetJob(resetter ScoreResetter, clock timeutil.Clock, logger *slog.Logger) *ResetScoresJob {
	return newResetScoresJob(leaderboard.PeriodDaily, resetter, clock, logger, nil)
}

// NewWeeklyResetJob resets weekly scores on Sunday night.
func NewWeeklyResetJob(resetter ScoreResetter, clock timeutil.Clock, logger *slog.Logger) *ResetScoresJob {
	return newResetScoresJob(leaderboard.PeriodWeekly, resetter, clock, logger, nil)
}

// NewMonthlyResetJob resets monthly scores on the last day of the month.
func NewMonthlyResetJob(resetter ScoreResetter, clock timeutil.Clock, logger *slog.Logger) *ResetScoresJob {
	return newResetScoresJob(leaderboard.PeriodMonthly, resetter, clock, logger, timeutil.IsLastDayOfMonth)
}

func newResetScoresJob(
	period leaderboard.Period,
	resetter ScoreResetter,
	clock timeutil.Clock,
	logger *slog.Logger,
	due func(now time.Time) bool,
) *ResetScoresJob {
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if due == nil {
		due = func(time.Time) bool { return true }
	}

	j := &ResetScoresJob{
		period:   period,
		resetter: resetter,
		clock:    clock,
		due:      due,
	}
	j.logger = logger.With("job", j.Name())
	return j
}

// Name returns the job name.
func (j *ResetScoresJob) Name() string {
	return "reset_" + j.period.String() + "_scores"
}

// Description returns a human-readable description.
func (j *ResetScoresJob) Description() string {
	return fmt.Sprintf("Zeroes %s scores and rebuilds the leaderboards", j.period)
}

// Period returns the period this job resets.
func (j *ResetScoresJob) Period() leaderboard.Period {
	return j.period
}

// Run executes the reset. Failures are not retried: the next scheduled
// run is the next attempt.
func (j *ResetScoresJob) Run(ctx context.Context) error {
	now := j.clock.Now()
	if !j.due(now) {
		j.logger.Debug("reset skipped", "date", timeutil.FormatDateStr(now))
		return nil
	}

	res, err := j.resetter.Handle(ctx, command.ResetScoresCommand{Period: j.period})
	if err != nil {
		return fmt.Errorf("reset %s scores: %w", j.period, err)
	}

	j.logger.Info("scores reset",
		"period", j.period,
		"users", res.UsersReset,
	)
	return nil
}
