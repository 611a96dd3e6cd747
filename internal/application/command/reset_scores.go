package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dailycodechallenge/backend/internal/domain/leaderboard"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESET SCORES COMMAND
// Zeroes one period counter for every user, then rebuilds all leaderboards.
// The global counter is never reset.
// ══════════════════════════════════════════════════════════════════════════════

// ResetScoresCommand selects the period to reset.
type ResetScoresCommand struct {
	Period leaderboard.Period
}

// Validate validates the command.
func (c ResetScoresCommand) Validate() error {
	if !c.Period.IsResettable() {
		return fmt.Errorf("reset_scores: period %q cannot be reset: %w", c.Period, shared.ErrInvalidPeriod)
	}
	return nil
}

// ResetScoresResult contains the reset outcome.
type ResetScoresResult struct {
	Period     leaderboard.Period
	UsersReset int64
	Rebuild    *RebuildLeaderboardResult
}

// ResetScoresHandler handles the ResetScores command.
type ResetScoresHandler struct {
	users   user.Repository
	rebuild *RebuildLeaderboardHandler
	logger  *slog.Logger
}

// NewResetScoresHandler creates a new ResetScoresHandler.
func NewResetScoresHandler(users user.Repository, rebuild *RebuildLeaderboardHandler, logger *slog.Logger) *ResetScoresHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetScoresHandler{
		users:   users,
		rebuild: rebuild,
		logger:  logger.With("handler", "reset_scores"),
	}
}

// Handle resets the period counter.
// A failed reset does not trigger a rebuild, so the cached snapshots keep
// showing the pre-reset standings until the next scheduled rebuild.
func (h *ResetScoresHandler) Handle(ctx context.Context, cmd ResetScoresCommand) (*ResetScoresResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	n, err := h.users.ResetScores(ctx, cmd.Period)
	if err != nil {
		h.logger.Error("failed to reset scores", "period", cmd.Period, "error", err)
		return nil, fmt.Errorf("reset %s scores: %w", cmd.Period, err)
	}

	h.logger.Info("scores reset", "period", cmd.Period, "users", n)

	result := &ResetScoresResult{Period: cmd.Period, UsersReset: n}
	rebuilt, err := h.rebuild.Handle(ctx, RebuildLeaderboardCommand{Reason: "reset:" + cmd.Period.String()})
	result.Rebuild = rebuilt
	if err != nil {
		return result, fmt.Errorf("rebuild after %s reset: %w", cmd.Period, err)
	}

	return result, nil
}
