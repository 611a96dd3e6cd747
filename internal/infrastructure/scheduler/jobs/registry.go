package jobs

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dailycodechallenge/backend/config"
	"github.com/dailycodechallenge/backend/internal/infrastructure/scheduler"
	"github.com/dailycodechallenge/backend/pkg/timeutil"
)

// Dependencies holds the handlers the jobs delegate to.
type Dependencies struct {
	Rebuilder   LeaderboardRebuilder
	Resetter    ScoreResetter
	Provisioner ExerciseProvisioner
	Archive     ExerciseArchive
	Alerter     Alerter
	Clock       timeutil.Clock
	Logger      *slog.Logger
}

// Register adds every backend job to s using the schedules in cfg.
// Cron expressions are evaluated in loc.
func Register(s *scheduler.Scheduler, deps Dependencies, cfg config.SchedulerConfig, loc *time.Location) error {
	if loc == nil {
		loc = timeutil.Location()
	}

	cron := func(expr string) (scheduler.Schedule, error) {
		return scheduler.ParseCronExpressionIn(expr, loc)
	}
	timeout := scheduler.WithTimeout(cfg.JobTimeout)

	var errs []error
	add := func(job scheduler.Job, schedule scheduler.Schedule, err error, opts ...scheduler.RegisterOption) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.Name(), err))
			return
		}
		if err := s.Register(job, schedule, append(opts, timeout)...); err != nil {
			errs = append(errs, err)
		}
	}

	interval := cfg.RebuildLeaderboardInterval
	if interval <= 0 {
		interval = time.Hour
	}
	rebuild := NewRebuildLeaderboardJob(deps.Rebuilder, deps.Clock, deps.Logger, DefaultRebuildLeaderboardConfig())
	add(rebuild, scheduler.NewAlignedSchedule(interval, loc), nil, scheduler.RunOnStart())

	daily, err := cron(cfg.DailyResetCron)
	add(NewDailyResetJob(deps.Resetter, deps.Clock, deps.Logger), daily, err)

	weekly, err := cron(cfg.WeeklyResetCron)
	add(NewWeeklyResetJob(deps.Resetter, deps.Clock, deps.Logger), weekly, err)

	monthly, err := cron(cfg.MonthlyResetCron)
	add(NewMonthlyResetJob(deps.Resetter, deps.Clock, deps.Logger), monthly, err)

	provision, err := cron(cfg.ProvisionCron)
	add(NewProvisionExerciseJob(deps.Provisioner, s, cfg.ProvisionRetryIn, deps.Clock, deps.Logger), provision, err)

	archive, err := cron(cfg.ArchiveCron)
	add(NewArchiveExercisesJob(deps.Archive, cfg.ArchiveAfterDays, deps.Clock, deps.Logger), archive, err)

	if deps.Alerter != nil {
		s.OnJobError(deps.Alerter.JobFailed)
	}

	return errors.Join(errs...)
}

// FeatureToggles maps jobs to the feature flag that gates them.
var FeatureToggles = map[string]string{
	"provision_exercise": config.FeatureBackgroundProvisioner,
	"archive_exercises":  config.FeatureArchiveSweep,
}

// ApplyFeatureFlags disables the jobs whose feature is off. A job that
// cannot be disabled is logged and reported; the others are still handled.
func ApplyFeatureFlags(s *scheduler.Scheduler, flags *config.FeatureFlags, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	var errs []error
	for job, feature := range FeatureToggles {
		if flags.IsEnabled(feature, nil) {
			continue
		}
		if err := s.DisableJob(job); err != nil {
			logger.Error("failed to disable job", "job", job, "feature", feature, "error", err)
			errs = append(errs, err)
			continue
		}
		logger.Info("job disabled by feature flag", "job", job, "feature", feature)
	}
	return errors.Join(errs...)
}
