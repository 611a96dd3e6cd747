// Package jobs contains implementations of scheduled jobs for the daily
// challenge backend. Jobs are thin adapters: the work itself lives in the
// application command handlers.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dailycodechallenge/backend/internal/application/command"
	"github.com/dailycodechallenge/backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRebuilder recomputes the cached leaderboards.
type LeaderboardRebuilder interface {
	Handle(ctx context.Context, cmd command.RebuildLeaderboardCommand) (*command.RebuildLeaderboardResult, error)
}

// RebuildLeaderboardJob refreshes every period's top-10 snapshot.
type RebuildLeaderboardJob struct {
	rebuilder LeaderboardRebuilder
	clock     timeutil.Clock
	logger    *slog.Logger
	config    RebuildLeaderboardConfig

	lastRebuildStats atomic.Value // *RebuildStats
	runs             atomic.Int64
}

// RebuildLeaderboardConfig contains configuration for the rebuild job.
type RebuildLeaderboardConfig struct {
	// Timeout is the maximum duration for the rebuild operation.
	Timeout time.Duration
}

// DefaultRebuildLeaderboardConfig returns sensible defaults.
func DefaultRebuildLeaderboardConfig() RebuildLeaderboardConfig {
	return RebuildLeaderboardConfig{
		Timeout: 2 * time.Minute,
	}
}

// RebuildStats contains statistics from a rebuild run.
type RebuildStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Reason      string
	Rebuilt     int
	Failed      int
}

// NewRebuildLeaderboardJob creates a new rebuild leaderboard job.
func NewRebuildLeaderboardJob(
	rebuilder LeaderboardRebuilder,
	clock timeutil.Clock,
	logger *slog.Logger,
	config RebuildLeaderboardConfig,
) *RebuildLeaderboardJob {
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RebuildLeaderboardJob{
		rebuilder: rebuilder,
		clock:     clock,
		logger:    logger.With("job", "rebuild_leaderboard"),
		config:    config,
	}
}

// Name returns the job name.
func (j *RebuildLeaderboardJob) Name() string {
	return "rebuild_leaderboard"
}

// Description returns a human-readable description.
func (j *RebuildLeaderboardJob) Description() string {
	return "Rebuilds the daily, weekly, monthly and global top-10 snapshots"
}

// Run executes the rebuild job.
// The first run after process start is logged as "startup".
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	startedAt := j.clock.Now()

	reason := "hourly"
	if j.runs.Add(1) == 1 {
		reason = "startup"
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	res, err := j.rebuilder.Handle(ctx, command.RebuildLeaderboardCommand{Reason: reason})

	stats := &RebuildStats{
		StartedAt:   startedAt,
		CompletedAt: j.clock.Now(),
		Reason:      reason,
	}
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	if res != nil {
		stats.Rebuilt = len(res.Rebuilt)
		stats.Failed = len(res.Failed)
	}
	j.lastRebuildStats.Store(stats)

	if err != nil {
		return fmt.Errorf("rebuild leaderboard (%s): %w", reason, err)
	}
	return nil
}

// LastRebuildStats returns statistics from the last rebuild.
func (j *RebuildLeaderboardJob) LastRebuildStats() *RebuildStats {
	if v := j.lastRebuildStats.Load(); v != nil {
		return v.(*RebuildStats)
	}
	return nil
}
