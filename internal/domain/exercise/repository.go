package exercise

import (
	"context"
	"errors"
	"time"
)

// Domain errors for the exercise package.
var (
	ErrWrongTierCount    = errors.New("exercise: expected exactly four tiers")
	ErrIncompleteContent = errors.New("exercise: tier is missing title or body")
)

// Repository is the durable store of exercise sets.
type Repository interface {
	// FindByDateAndTheme returns shared.ErrExerciseNotFound when absent.
	FindByDateAndTheme(ctx context.Context, date string, theme Theme) (*Set, error)

	// FindByDate returns the set stored for a date regardless of theme.
	FindByDate(ctx context.Context, date string) (*Set, error)

	// Recent returns up to limit sets, newest first.
	Recent(ctx context.Context, limit int) ([]*Set, error)

	// Insert stores a new set. Returns shared.ErrAlreadyExists (wrapped)
	// when a set for the same date already exists.
	Insert(ctx context.Context, set *Set) error

	// DeleteOlderThan removes sets dated before cutoff and returns the count.
	DeleteOlderThan(ctx context.Context, cutoff string) (int64, error)
}

// Cache holds the singleton "exercise of the day".
type Cache interface {
	// Get returns the cached set or shared.ErrCacheMiss.
	Get(ctx context.Context) (*Set, error)

	// Set overwrites the cached set.
	Set(ctx context.Context, set *Set, ttl time.Duration) error
}

// GenerateRequest describes one generation attempt.
type GenerateRequest struct {
	Theme Theme

	// AvoidTitles are recent English titles the generator is asked not to reuse.
	// Collisions are still checked after generation.
	AvoidTitles []string
}

// Generator is the external content generator.
type Generator interface {
	// Generate returns English exercises, one per tier in ascending difficulty.
	Generate(ctx context.Context, req GenerateRequest) ([]Content, error)

	// Translate returns the Spanish version of the given exercises, same order.
	Translate(ctx context.Context, en []Content) ([]Content, error)

	// GenerateSingle returns one free-form exercise for a difficulty and language.
	GenerateSingle(ctx context.Context, theme Theme, difficulty, lang string) (string, error)
}

// Review is the grading of a code submission.
type Review struct {
	Feedback string
	Score    float64
}

// ReviewRequest describes a code submission to grade.
type ReviewRequest struct {
	Title      string
	Exercise   string
	Code       string
	Difficulty string
	Language   string
}

// Reviewer grades user code against an exercise.
type Reviewer interface {
	Review(ctx context.Context, req ReviewRequest) (*Review, error)
}
