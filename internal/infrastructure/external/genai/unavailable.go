package genai

import (
	"context"

	"github.com/dailycodechallenge/backend/internal/domain/exercise"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
)

// Unavailable stands in for the client when no API key is configured.
// Every call fails with shared.ErrGeneratorUnavailable, so stored sets are
// still served and only generation and review are refused.
type Unavailable struct{}

var (
	_ exercise.Generator = Unavailable{}
	_ exercise.Reviewer  = Unavailable{}
)

// Generate implements exercise.Generator.
func (Unavailable) Generate(context.Context, exercise.GenerateRequest) ([]exercise.Content, error) {
	return nil, shared.ErrGeneratorUnavailable
}

// Translate implements exercise.Generator.
func (Unavailable) Translate(context.Context, []exercise.Content) ([]exercise.Content, error) {
	return nil, shared.ErrGeneratorUnavailable
}

// GenerateSingle implements exercise.Generator.
func (Unavailable) GenerateSingle(context.Context, exercise.Theme, string, string) (string, error) {
	return "", shared.ErrGeneratorUnavailable
}

// Review implements exercise.Reviewer.
func (Unavailable) Review(context.Context, exercise.ReviewRequest) (*exercise.Review, error) {
	return nil, shared.ErrGeneratorUnavailable
}
