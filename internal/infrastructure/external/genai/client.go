// Package genai implements the content generator and the code reviewer over an
// OpenAI-compatible chat completions API.
//
// Prompts live in embedded YAML files. Structured answers use the JSON
// response format and are decoded into the exercise domain types.
package genai

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v2"

	"github.com/dailycodechallenge/backend/internal/domain/exercise"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROMPTS
// ══════════════════════════════════════════════════════════════════════════════

//go:embed prompts/generate_exercises.yaml
var generateExercisesYAML []byte

//go:embed prompts/translate_exercises.yaml
var translateExercisesYAML []byte

//go:embed prompts/review_code.yaml
var reviewCodeYAML []byte

//go:embed prompts/single_challenge.yaml
var singleChallengeYAML []byte

// ChatPrompt is a system + user prompt pair.
type ChatPrompt struct {
	SystemPrompt string `yaml:"system_prompt"`
	UserPrompt   string `yaml:"user_prompt"`
}

// LocalizedPrompt holds one user prompt per language.
type LocalizedPrompt struct {
	EN string `yaml:"en"`
	ES string `yaml:"es"`
}

type prompts struct {
	generate  ChatPrompt
	translate ChatPrompt
	review    ChatPrompt
	single    LocalizedPrompt
}

func loadPrompts() (*prompts, error) {
	p := &prompts{}
	files := []struct {
		name string
		data []byte
		dest any
	}{
		{"generate_exercises", generateExercisesYAML, &p.generate},
		{"translate_exercises", translateExercisesYAML, &p.translate},
		{"review_code", reviewCodeYAML, &p.review},
		{"single_challenge", singleChallengeYAML, &p.single},
	}
	for _, f := range files {
		if err := yaml.Unmarshal(f.data, f.dest); err != nil {
			return nil, fmt.Errorf("error parsing %s prompt yaml: %w", f.name, err)
		}
	}
	return p, nil
}

// render replaces {{.Name}} placeholders.
func render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{."+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the generator client.
type Config struct {
	APIKey  string
	BaseURL string

	// ExerciseModel is used for daily sets, translations and extra challenges.
	ExerciseModel string

	// ReviewModel is used for code review.
	ReviewModel string

	// RequestTimeout bounds every single API call.
	RequestTimeout time.Duration

	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:         apiKey,
		ExerciseModel:  openai.GPT4o,
		ReviewModel:    openai.GPT4oMini,
		RequestTimeout: 60 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client implements exercise.Generator and exercise.Reviewer.
type Client struct {
	api     *openai.Client
	cfg     Config
	prompts *prompts
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

var (
	_ exercise.Generator = (*Client)(nil)
	_ exercise.Reviewer  = (*Client)(nil)
)

// NewClient creates a new generator client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("genai: api key is required")
	}
	if cfg.ExerciseModel == "" {
		cfg.ExerciseModel = openai.GPT4o
	}
	if cfg.ReviewModel == "" {
		cfg.ReviewModel = cfg.ExerciseModel
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p, err := loadPrompts()
	if err != nil {
		return nil, err
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		apiCfg.HTTPClient = cfg.HTTPClient
	}

	logger := cfg.Logger.With("component", "genai")

	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		cfg:     cfg,
		prompts: p,
		breaker: circuitbreaker.GeneratorBreaker(shared.IsExternalService, func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}),
		logger: logger,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GENERATOR
// ══════════════════════════════════════════════════════════════════════════════

type exercisesPayload struct {
	Exercises []exercise.Content `json:"exercises"`
}

// Generate asks for four English exercises on the theme, easiest first.
func (c *Client) Generate(ctx context.Context, req exercise.GenerateRequest) ([]exercise.Content, error) {
	avoid := "none"
	if len(req.AvoidTitles) > 0 {
		avoid = `"` + strings.Join(req.AvoidTitles, `", "`) + `"`
	}

	user := render(c.prompts.generate.UserPrompt, map[string]string{
		"Theme":       req.Theme.String(),
		"AvoidTitles": avoid,
	})

	var payload exercisesPayload
	if err := c.completeJSON(ctx, c.cfg.ExerciseModel, c.prompts.generate.SystemPrompt, user, &payload); err != nil {
		return nil, err
	}
	return payload.Exercises, nil
}

// Translate returns the Spanish version of the exercises, same order.
func (c *Client) Translate(ctx context.Context, en []exercise.Content) ([]exercise.Content, error) {
	source, err := json.MarshalIndent(exercisesPayload{Exercises: en}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("genai: marshal exercises: %w", err)
	}

	user := render(c.prompts.translate.UserPrompt, map[string]string{
		"Exercises": string(source),
	})

	var payload exercisesPayload
	if err := c.completeJSON(ctx, c.cfg.ExerciseModel, c.prompts.translate.SystemPrompt, user, &payload); err != nil {
		return nil, err
	}
	return payload.Exercises, nil
}

// GenerateSingle returns one free-form exercise in the requested language.
func (c *Client) GenerateSingle(ctx context.Context, theme exercise.Theme, difficulty, lang string) (string, error) {
	tmpl := c.prompts.single.EN
	if lang == string(shared.LanguageES) {
		tmpl = c.prompts.single.ES
	}

	user := render(tmpl, map[string]string{
		"Theme":      theme.String(),
		"Difficulty": difficulty,
	})

	text, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.ExerciseModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 1.0,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REVIEWER
// ══════════════════════════════════════════════════════════════════════════════

type evaluation struct {
	Response string  `json:"Response"`
	Score    float64 `json:"Score"`
}

type reviewPayload struct {
	Evaluation []evaluation `json:"evaluation"`
}

var reviewLanguages = map[string]string{
	"en": "english",
	"es": "spanish",
}

// Review grades submitted code against an exercise.
func (c *Client) Review(ctx context.Context, req exercise.ReviewRequest) (*exercise.Review, error) {
	language, ok := reviewLanguages[req.Language]
	if !ok {
		language = reviewLanguages["en"]
	}

	user := render(c.prompts.review.UserPrompt, map[string]string{
		"Difficulty": req.Difficulty,
		"Title":      req.Title,
		"Exercise":   req.Exercise,
		"Code":       req.Code,
		"Language":   language,
	})

	var payload reviewPayload
	if err := c.completeJSON(ctx, c.cfg.ReviewModel, c.prompts.review.SystemPrompt, user, &payload); err != nil {
		return nil, err
	}
	if len(payload.Evaluation) == 0 {
		return nil, shared.ErrGeneratorResponse.WithErr(errors.New("empty evaluation"))
	}

	first := payload.Evaluation[0]
	return &exercise.Review{Feedback: first.Response, Score: first.Score}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// completeJSON requests a JSON object answer and decodes it into dest.
func (c *Client) completeJSON(ctx context.Context, model, system, user string, dest any) error {
	text, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 1.0,
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(stripFence(text)), dest); err != nil {
		return shared.ErrGeneratorResponse.WithErr(err)
	}
	return nil
}

// complete performs one chat completion under the per-call timeout and the breaker.
func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	var text string

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()

		start := time.Now()
		resp, err := c.api.CreateChatCompletion(callCtx, req)
		if err != nil {
			return classify(err)
		}

		c.logger.Debug("chat completion finished",
			"model", req.Model,
			"duration", time.Since(start),
			"total_tokens", resp.Usage.TotalTokens,
		)

		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return shared.ErrGeneratorResponse.WithErr(errors.New("empty completion"))
		}
		text = resp.Choices[0].Message.Content
		return nil
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return "", shared.ErrGeneratorUnavailable.WithErr(err)
	}
	return text, err
}

// classify maps transport and API errors onto the shared taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return shared.ErrGeneratorTimeout.WithErr(err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500 {
			return shared.ErrGeneratorUnavailable.WithErr(err)
		}
		return shared.ErrGeneratorResponse.WithErr(err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 && reqErr.HTTPStatusCode < 500 &&
		reqErr.HTTPStatusCode != http.StatusTooManyRequests {
		return shared.ErrGeneratorResponse.WithErr(err)
	}

	return shared.ErrGeneratorUnavailable.WithErr(err)
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
