// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/domain/user"
	"github.com/dailycodechallenge/backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLY GRADING COMMAND
// Turns a reviewer score into points: one graded attempt per user per local day,
// all four counters updated together, the user snapshot cache overwritten.
// ══════════════════════════════════════════════════════════════════════════════

// ApplyGradingCommand contains a graded attempt.
type ApplyGradingCommand struct {
	// SubjectID is the identity-provider key of the user.
	SubjectID shared.SubjectID

	// Difficulty of the attempted tier.
	Difficulty user.Difficulty

	// RawScore is the reviewer score before the difficulty multiplier.
	RawScore float64

	// Titles of the attempted exercise for the activity log.
	TitleEN string
	TitleES string

	// Feedback from the reviewer.
	Feedback string
}

// Validate validates the command.
func (c ApplyGradingCommand) Validate() error {
	if !c.SubjectID.IsValid() {
		return shared.ErrInvalidToken
	}
	if !c.Difficulty.IsValid() {
		return shared.ErrInvalidDifficulty
	}
	if c.RawScore <= 0 {
		return shared.ErrNonPositiveScore
	}
	return nil
}

// ApplyGradingResult contains the updated user state.
type ApplyGradingResult struct {
	// Points credited to every counter.
	Points float64

	// Today is the local date the attempt was credited to.
	Today string

	// Snapshot of the user after the update.
	Snapshot *user.Snapshot
}

// ApplyGradingConfig configures the handler.
type ApplyGradingConfig struct {
	Clock   timeutil.Clock
	UserTTL time.Duration
	Logger  *slog.Logger
}

// ApplyGradingHandler handles the ApplyGrading command.
type ApplyGradingHandler struct {
	users   user.Repository
	cache   user.Cache
	clock   timeutil.Clock
	userTTL time.Duration
	logger  *slog.Logger
}

// NewApplyGradingHandler creates a new ApplyGradingHandler.
func NewApplyGradingHandler(users user.Repository, cache user.Cache, cfg ApplyGradingConfig) *ApplyGradingHandler {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.SystemClock()
	}
	if cfg.UserTTL <= 0 {
		cfg.UserTTL = 6 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ApplyGradingHandler{
		users:   users,
		cache:   cache,
		clock:   cfg.Clock,
		userTTL: cfg.UserTTL,
		logger:  cfg.Logger.With("handler", "apply_grading"),
	}
}

// Handle credits the attempt.
// The repository performs the once-per-day check and the counter update as one
// atomic step; the cache is written only after the store accepted the change.
func (h *ApplyGradingHandler) Handle(ctx context.Context, cmd ApplyGradingCommand) (*ApplyGradingResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	points, err := user.FinalScore(cmd.RawScore, cmd.Difficulty)
	if err != nil {
		return nil, err
	}

	today := timeutil.Today(h.clock)
	grading := user.Grading{
		Today:    today,
		Points:   points,
		Activity: user.NewCompletedActivity(today, cmd.TitleEN, cmd.TitleES, points, cmd.Feedback),
	}

	updated, err := h.users.ApplyGrading(ctx, cmd.SubjectID, grading)
	if err != nil {
		if shared.IsConflict(err) || shared.IsNotFound(err) {
			return nil, err
		}
		h.logger.Error("failed to persist grading",
			"subject_id", cmd.SubjectID,
			"error", err,
		)
		return nil, fmt.Errorf("apply_grading: %w", err)
	}

	snapshot := updated.ToSnapshot()
	if err := h.cache.Set(ctx, cmd.SubjectID, snapshot, h.userTTL); err != nil {
		// The store is authoritative; a stale snapshot expires with its TTL.
		h.logger.Warn("failed to refresh user snapshot",
			"subject_id", cmd.SubjectID,
			"error", err,
		)
	}

	h.logger.Info("grading applied",
		"subject_id", cmd.SubjectID,
		"difficulty", cmd.Difficulty,
		"points", points,
		"date", today,
	)

	return &ApplyGradingResult{
		Points:   points,
		Today:    today,
		Snapshot: snapshot,
	}, nil
}
