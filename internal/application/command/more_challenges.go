package command

import (
	"context"
	"log/slog"

	"github.com/dailycodechallenge/backend/internal/domain/exercise"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/domain/user"
	"github.com/dailycodechallenge/backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MORE CHALLENGES COMMAND
// Generates an extra practice challenge outside the daily set.
// Ungraded, quota-limited per user and day, one request per cooldown window.
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeQuota tracks the extra-challenge allowance of a user.
type ChallengeQuota interface {
	// Check verifies the quota and claims the cooldown slot.
	Check(ctx context.Context, subjectID, date string) (int, error)
	// Consume counts a delivered challenge and returns the remaining quota.
	Consume(ctx context.Context, subjectID, date string) (int, error)
}

// MoreChallengesCommand contains the request.
type MoreChallengesCommand struct {
	SubjectID  shared.SubjectID
	Difficulty string
	Language   string
}

// Validate validates the command.
func (c MoreChallengesCommand) Validate() error {
	if !c.SubjectID.IsValid() {
		return shared.ErrInvalidToken
	}
	if _, err := user.ParseDifficulty(c.Difficulty); err != nil {
		return err
	}
	if _, err := shared.ParseLanguage(c.Language); err != nil {
		return err
	}
	return nil
}

// MoreChallengesResult contains the challenge text.
// On a quota error the result carries the remaining count with the error.
type MoreChallengesResult struct {
	Challenge         string
	RemainingRequests int
}

// MoreChallengesHandler handles the MoreChallenges command.
type MoreChallengesHandler struct {
	quota     ChallengeQuota
	generator exercise.Generator
	clock     timeutil.Clock
	logger    *slog.Logger
}

// NewMoreChallengesHandler creates a new MoreChallengesHandler.
func NewMoreChallengesHandler(quota ChallengeQuota, generator exercise.Generator, clock timeutil.Clock, logger *slog.Logger) *MoreChallengesHandler {
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MoreChallengesHandler{
		quota:     quota,
		generator: generator,
		clock:     clock,
		logger:    logger.With("handler", "more_challenges"),
	}
}

// Handle generates one challenge. The quota is consumed only on success;
// a failed generation still spends the cooldown slot.
func (h *MoreChallengesHandler) Handle(ctx context.Context, cmd MoreChallengesCommand) (*MoreChallengesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	lang, _ := shared.ParseLanguage(cmd.Language)

	now := h.clock.Now()
	today := timeutil.FormatDateStr(now)
	subject := cmd.SubjectID.String()

	remaining, err := h.quota.Check(ctx, subject, today)
	if err != nil {
		if shared.CodeOf(err) != "" {
			return &MoreChallengesResult{RemainingRequests: remaining}, err
		}
		return nil, err
	}

	challenge, err := h.generator.GenerateSingle(ctx, exercise.ThemeFor(timeutil.ToLocal(now)), cmd.Difficulty, string(lang))
	if err != nil {
		h.logger.Warn("challenge generation failed", "subject_id", subject, "error", err)
		return nil, err
	}

	left, err := h.quota.Consume(ctx, subject, today)
	if err != nil {
		// The challenge was generated; report the estimate rather than fail.
		h.logger.Warn("failed to count challenge", "subject_id", subject, "error", err)
		left = remaining - 1
	}

	h.logger.Info("extra challenge generated",
		"subject_id", subject,
		"difficulty", cmd.Difficulty,
		"remaining", left,
	)

	return &MoreChallengesResult{Challenge: challenge, RemainingRequests: left}, nil
}
