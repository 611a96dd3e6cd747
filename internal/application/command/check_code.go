package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dailycodechallenge/backend/internal/domain/exercise"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/domain/user"
	"github.com/dailycodechallenge/backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECK CODE COMMAND
// Sends a submission for today's exercise to the reviewer and, on a positive
// score, credits it through ApplyGradingHandler.
// ══════════════════════════════════════════════════════════════════════════════

// MaxCodeLength bounds a submission sent to the reviewer.
const MaxCodeLength = 20000

// CheckCodeCommand contains a code submission.
type CheckCodeCommand struct {
	SubjectID  shared.SubjectID
	Difficulty string
	Language   string
	Code       string
}

// Validate validates the command.
func (c CheckCodeCommand) Validate() error {
	if !c.SubjectID.IsValid() {
		return shared.ErrInvalidToken
	}
	if _, err := user.ParseDifficulty(c.Difficulty); err != nil {
		return err
	}
	if _, err := shared.ParseLanguage(c.Language); err != nil {
		return err
	}
	if strings.TrimSpace(c.Code) == "" {
		return fmt.Errorf("%w: code is required", shared.ErrValidation)
	}
	if len(c.Code) > MaxCodeLength {
		return fmt.Errorf("%w: code exceeds %d bytes", shared.ErrValueOutOfRange, MaxCodeLength)
	}
	return nil
}

// CheckCodeResult contains the review outcome.
// On ErrNonPositiveScore the result is returned together with the error so the
// caller can still show the feedback.
type CheckCodeResult struct {
	Feedback   string
	RawScore   float64
	Points     float64
	Today      string
	Snapshot   *user.Snapshot
	TitleEN    string
	TitleES    string
	Difficulty user.Difficulty
}

// CheckCodeHandler handles the CheckCode command.
type CheckCodeHandler struct {
	users     user.Repository
	exercises exercise.Repository
	cache     exercise.Cache
	reviewer  exercise.Reviewer
	grading   *ApplyGradingHandler
	clock     timeutil.Clock
	logger    *slog.Logger
}

// NewCheckCodeHandler creates a new CheckCodeHandler.
func NewCheckCodeHandler(
	users user.Repository,
	exercises exercise.Repository,
	cache exercise.Cache,
	reviewer exercise.Reviewer,
	grading *ApplyGradingHandler,
	clock timeutil.Clock,
	logger *slog.Logger,
) *CheckCodeHandler {
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckCodeHandler{
		users:     users,
		exercises: exercises,
		cache:     cache,
		reviewer:  reviewer,
		grading:   grading,
		clock:     clock,
		logger:    logger.With("handler", "check_code"),
	}
}

// Handle reviews the submission and credits a positive score.
func (h *CheckCodeHandler) Handle(ctx context.Context, cmd CheckCodeCommand) (*CheckCodeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	difficulty, _ := user.ParseDifficulty(cmd.Difficulty)
	lang, _ := shared.ParseLanguage(cmd.Language)
	today := timeutil.Today(h.clock)

	// Fail fast before paying for a review. ApplyGrading re-checks atomically.
	u, err := h.users.GetBySubjectID(ctx, cmd.SubjectID)
	if err != nil {
		return nil, err
	}
	if u.CompletedOn(today) {
		return nil, shared.ErrAlreadyCompletedToday
	}

	set, err := h.todaysSet(ctx, today)
	if err != nil {
		return nil, err
	}
	tier, ok := set.Exercise.ByDifficulty(string(difficulty))
	if !ok {
		return nil, shared.ErrInvalidDifficulty
	}
	content := tier.In(string(lang))
	if !content.IsComplete() {
		return nil, shared.ErrTierNotFound
	}

	review, err := h.reviewer.Review(ctx, exercise.ReviewRequest{
		Title:      content.Title,
		Exercise:   content.Exercise,
		Code:       cmd.Code,
		Difficulty: string(difficulty),
		Language:   string(lang),
	})
	if err != nil {
		h.logger.Warn("review failed", "subject_id", cmd.SubjectID, "error", err)
		return nil, err
	}

	result := &CheckCodeResult{
		Feedback:   review.Feedback,
		RawScore:   review.Score,
		Today:      today,
		TitleEN:    tier.EN.Title,
		TitleES:    tier.ES.Title,
		Difficulty: difficulty,
	}
	if review.Score <= 0 {
		return result, shared.ErrNonPositiveScore
	}

	graded, err := h.grading.Handle(ctx, ApplyGradingCommand{
		SubjectID:  cmd.SubjectID,
		Difficulty: difficulty,
		RawScore:   review.Score,
		TitleEN:    tier.EN.Title,
		TitleES:    tier.ES.Title,
		Feedback:   review.Feedback,
	})
	if err != nil {
		return nil, err
	}

	result.Points = graded.Points
	result.Snapshot = graded.Snapshot
	return result, nil
}

// todaysSet reads the day's set from the cache, then the store.
// Grading never triggers generation.
func (h *CheckCodeHandler) todaysSet(ctx context.Context, today string) (*exercise.Set, error) {
	cached, err := h.cache.Get(ctx)
	switch {
	case err == nil && cached.Date == today:
		return cached, nil
	case err != nil && !shared.IsCacheMiss(err):
		h.logger.Warn("exercise cache read failed", "error", err)
	}

	set, err := h.exercises.FindByDate(ctx, today)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrExerciseNotFound
		}
		return nil, fmt.Errorf("check_code: load exercise: %w", err)
	}
	return set, nil
}
