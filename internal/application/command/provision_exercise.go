package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dailycodechallenge/backend/internal/domain/exercise"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/pkg/retry"
	"github.com/dailycodechallenge/backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROVISION EXERCISE COMMAND
// Returns the exercise set of a day, generating it at most once per date:
// cache, then store (exact theme, then the General fallback), then the
// generator. Concurrent callers for the same date share one generation.
// ══════════════════════════════════════════════════════════════════════════════

// RecentWindow is how many past sets a new set must not repeat titles from.
const RecentWindow = 5

// Sources of a provisioned set.
const (
	SourceCache     = "cache"
	SourceStore     = "store"
	SourceFallback  = "fallback"
	SourceGenerated = "generated"
)

// ProvisionExerciseCommand selects the day to provision.
type ProvisionExerciseCommand struct {
	// At is any instant of the wanted day. Zero means now.
	At time.Time
}

// ProvisionExerciseResult contains the provisioned set.
type ProvisionExerciseResult struct {
	Set    *exercise.Set
	Source string
}

// ProvisionExerciseConfig configures the handler.
type ProvisionExerciseConfig struct {
	Clock       timeutil.Clock
	ExerciseTTL time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	// CallTimeout bounds one generator call. A shared generation gets
	// MaxAttempts x (2 x CallTimeout + RetryDelay) before it is abandoned.
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// ProvisionExerciseHandler handles the ProvisionExercise command.
type ProvisionExerciseHandler struct {
	repo      exercise.Repository
	cache     exercise.Cache
	generator exercise.Generator

	clock       timeutil.Clock
	ttl         time.Duration
	maxAttempts int
	retryDelay  time.Duration
	budget      time.Duration
	logger      *slog.Logger

	flight singleflight.Group
}

// NewProvisionExerciseHandler creates a new ProvisionExerciseHandler.
func NewProvisionExerciseHandler(
	repo exercise.Repository,
	cache exercise.Cache,
	generator exercise.Generator,
	cfg ProvisionExerciseConfig,
) *ProvisionExerciseHandler {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.SystemClock()
	}
	if cfg.ExerciseTTL <= 0 {
		cfg.ExerciseTTL = 24 * time.Hour
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Minute
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ProvisionExerciseHandler{
		repo:        repo,
		cache:       cache,
		generator:   generator,
		clock:       cfg.Clock,
		ttl:         cfg.ExerciseTTL,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		budget:      time.Duration(cfg.MaxAttempts) * (2*cfg.CallTimeout + cfg.RetryDelay),
		logger:      cfg.Logger.With("handler", "provision_exercise"),
	}
}

// Handle returns the set for the day, generating it if nothing servable exists.
func (h *ProvisionExerciseHandler) Handle(ctx context.Context, cmd ProvisionExerciseCommand) (*ProvisionExerciseResult, error) {
	at := cmd.At
	if at.IsZero() {
		at = h.clock.Now()
	}
	day := timeutil.ToLocal(at)
	date := timeutil.FormatDateStr(day)
	theme := exercise.ThemeFor(day)

	if set, source, err := h.lookup(ctx, date, theme); err != nil {
		return nil, err
	} else if set != nil {
		return &ProvisionExerciseResult{Set: set, Source: source}, nil
	}

	// The generation belongs to every caller of the date, so it must not
	// die with whichever request happened to start it.
	flightCtx := context.WithoutCancel(ctx)
	ch := h.flight.DoChan(date, func() (any, error) {
		ctx, cancel := context.WithTimeout(flightCtx, h.budget)
		defer cancel()
		return h.generate(ctx, date, theme)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			h.logger.Debug("joined in-flight generation", "date", date)
		}
		return res.Val.(*ProvisionExerciseResult), nil
	}
}

// lookup serves the set without generating. A nil set means nothing servable.
func (h *ProvisionExerciseHandler) lookup(ctx context.Context, date string, theme exercise.Theme) (*exercise.Set, string, error) {
	cached, err := h.cache.Get(ctx)
	switch {
	case err == nil && cached.Matches(date, theme):
		return cached, SourceCache, nil
	case err != nil && !shared.IsCacheMiss(err):
		h.logger.Warn("exercise cache read failed", "error", err)
	}

	set, err := h.repo.FindByDateAndTheme(ctx, date, theme)
	switch {
	case err == nil:
		h.store(ctx, set)
		return set, SourceStore, nil
	case !errors.Is(err, shared.ErrNotFound):
		return nil, "", fmt.Errorf("provision_exercise: find %s: %w", date, err)
	}

	if theme == exercise.ThemeGeneral {
		return nil, "", nil
	}

	set, err = h.repo.FindByDateAndTheme(ctx, date, exercise.ThemeGeneral)
	switch {
	case err == nil:
		return set, SourceFallback, nil
	case !errors.Is(err, shared.ErrNotFound):
		return nil, "", fmt.Errorf("provision_exercise: find %s fallback: %w", date, err)
	}
	return nil, "", nil
}

// generate runs inside the single flight for date.
func (h *ProvisionExerciseHandler) generate(ctx context.Context, date string, theme exercise.Theme) (*ProvisionExerciseResult, error) {
	// Another instance may have stored the day while this one waited.
	if set, err := h.repo.FindByDate(ctx, date); err == nil && set.Servable(date, theme) {
		return &ProvisionExerciseResult{Set: set, Source: SourceStore}, nil
	}

	recent, err := h.repo.Recent(ctx, RecentWindow)
	if err != nil {
		h.logger.Warn("failed to load recent exercises", "error", err)
		recent = nil
	}
	avoid := make([]string, 0, len(recent)*exercise.TierCount)
	for _, r := range recent {
		for _, title := range r.Titles() {
			if title != "" {
				avoid = append(avoid, title)
			}
		}
	}

	h.logger.Info("generating exercise set", "date", date, "theme", theme)

	retrier := retry.GenerationRetrier(h.maxAttempts, h.retryDelay, func(attempt int, err error, delay time.Duration) {
		h.logger.Warn("exercise generation attempt failed",
			"date", date,
			"attempt", attempt,
			"retry_in", delay,
			"error", err,
		)
	})

	var tiers exercise.Tiers
	err = retrier.Do(ctx, func(ctx context.Context) error {
		en, err := h.generator.Generate(ctx, exercise.GenerateRequest{Theme: theme, AvoidTitles: avoid})
		if err != nil {
			return err
		}
		if len(en) != exercise.TierCount {
			return shared.ErrMalformedExercise.WithErr(exercise.ErrWrongTierCount)
		}
		if exercise.CollidesWith(exercise.TitlesOf(en), recent) {
			return shared.ErrDuplicateTitle
		}

		es, err := h.generator.Translate(ctx, en)
		if err != nil {
			return err
		}
		assembled, err := exercise.Assemble(en, es)
		if err != nil {
			return shared.ErrMalformedExercise.WithErr(err)
		}
		tiers = assembled
		return nil
	})
	if err != nil {
		h.logger.Error("exercise generation failed", "date", date, "attempts", h.maxAttempts, "error", err)
		return nil, shared.ErrExerciseGeneration.WithErr(err)
	}

	set := &exercise.Set{
		ID:        uuid.NewString(),
		Date:      date,
		Theme:     theme,
		Exercise:  tiers,
		CreatedAt: h.clock.Now(),
	}

	if err := h.repo.Insert(ctx, set); err != nil {
		if !shared.IsAlreadyExists(err) {
			return nil, fmt.Errorf("provision_exercise: insert %s: %w", date, err)
		}
		// Lost the race for the date: the stored set wins.
		winner, ferr := h.repo.FindByDate(ctx, date)
		if ferr != nil {
			return nil, fmt.Errorf("provision_exercise: reread %s: %w", date, ferr)
		}
		if !winner.Servable(date, theme) {
			h.logger.Error("stored exercise set does not match the day",
				"date", date,
				"theme", theme,
				"stored_theme", winner.Theme,
			)
			return nil, shared.ErrExerciseThemeMismatch
		}
		h.logger.Info("exercise set already stored by another writer", "date", date)
		h.store(ctx, winner)
		return &ProvisionExerciseResult{Set: winner, Source: SourceStore}, nil
	}

	h.store(ctx, set)
	h.logger.Info("exercise set stored", "date", date, "theme", theme, "id", set.ID)
	return &ProvisionExerciseResult{Set: set, Source: SourceGenerated}, nil
}

// store writes the set of the day to the cache. Failures only cost a store read later.
func (h *ProvisionExerciseHandler) store(ctx context.Context, set *exercise.Set) {
	if err := h.cache.Set(ctx, set, h.ttl); err != nil {
		h.logger.Warn("failed to cache exercise set", "date", set.Date, "error", err)
	}
}
