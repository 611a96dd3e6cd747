package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dailycodechallenge/backend/internal/domain/leaderboard"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD COMMAND
// Recomputes the top-10 of each period from the store and overwrites the
// cached snapshot. Periods are independent: one failure leaves the others
// rebuilt and the failed period's previous snapshot in place.
// ══════════════════════════════════════════════════════════════════════════════

// RebuildLeaderboardCommand selects the periods to rebuild.
type RebuildLeaderboardCommand struct {
	// Periods to rebuild. Empty means all four.
	Periods []leaderboard.Period

	// Reason is logged with the rebuild ("hourly", "reset:daily", "startup").
	Reason string
}

// Validate validates the command.
func (c RebuildLeaderboardCommand) Validate() error {
	for _, p := range c.Periods {
		if !p.IsValid() {
			return fmt.Errorf("rebuild_leaderboard: %w: %q", shared.ErrInvalidPeriod, p)
		}
	}
	return nil
}

// RebuildLeaderboardResult contains the outcome per period.
type RebuildLeaderboardResult struct {
	Rebuilt  []leaderboard.Period
	Failed   []leaderboard.Period
	Duration time.Duration
}

// RebuildLeaderboardHandler handles the RebuildLeaderboard command.
type RebuildLeaderboardHandler struct {
	source leaderboard.ScoreSource
	cache  leaderboard.Cache
	ttl    time.Duration
	clock  timeutil.Clock
	logger *slog.Logger
}

// NewRebuildLeaderboardHandler creates a new RebuildLeaderboardHandler.
func NewRebuildLeaderboardHandler(
	source leaderboard.ScoreSource,
	cache leaderboard.Cache,
	ttl time.Duration,
	clock timeutil.Clock,
	logger *slog.Logger,
) *RebuildLeaderboardHandler {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RebuildLeaderboardHandler{
		source: source,
		cache:  cache,
		ttl:    ttl,
		clock:  clock,
		logger: logger.With("handler", "rebuild_leaderboard"),
	}
}

// Handle rebuilds the requested periods.
// The returned error joins the per-period failures; the result is always set.
func (h *RebuildLeaderboardHandler) Handle(ctx context.Context, cmd RebuildLeaderboardCommand) (*RebuildLeaderboardResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	periods := cmd.Periods
	if len(periods) == 0 {
		periods = leaderboard.AllPeriods()
	}

	start := time.Now()
	result := &RebuildLeaderboardResult{}
	var errs []error

	for _, period := range periods {
		if err := h.rebuild(ctx, period); err != nil {
			h.logger.Error("failed to rebuild leaderboard",
				"period", period,
				"reason", cmd.Reason,
				"error", err,
			)
			result.Failed = append(result.Failed, period)
			errs = append(errs, fmt.Errorf("%s: %w", period, err))
			continue
		}
		result.Rebuilt = append(result.Rebuilt, period)
	}

	result.Duration = time.Since(start)
	h.logger.Info("leaderboard rebuilt",
		"reason", cmd.Reason,
		"rebuilt", len(result.Rebuilt),
		"failed", len(result.Failed),
		"duration", result.Duration,
	)

	return result, errors.Join(errs...)
}

func (h *RebuildLeaderboardHandler) rebuild(ctx context.Context, period leaderboard.Period) error {
	entries, err := h.source.TopByPeriod(ctx, period, leaderboard.TopSize)
	if err != nil {
		return fmt.Errorf("query top: %w", err)
	}

	snapshot := leaderboard.NewSnapshot(period, entries, h.clock.Now(), h.ttl)
	if err := h.cache.Set(ctx, snapshot, h.ttl); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
