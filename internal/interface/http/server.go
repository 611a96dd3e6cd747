// Package http exposes the daily challenge REST API: exercises, grading,
// leaderboards and user accounts, plus health probes.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dailycodechallenge/backend/config"
	"github.com/dailycodechallenge/backend/internal/application/command"
	"github.com/dailycodechallenge/backend/internal/application/query"
	"github.com/dailycodechallenge/backend/internal/interface/http/handlers"
	"github.com/dailycodechallenge/backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// MaxBodyBytes - maximum size of request bodies. Code submissions are the largest.
	MaxBodyBytes int64

	EnableCORS     bool
	AllowedOrigins []string

	// RateLimitPerMinute - requests per minute per IP (0 = disabled).
	RateLimitPerMinute int

	// MoreChallengesPerDay is quoted in the limit-reached message.
	MoreChallengesPerDay int

	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:                 "0.0.0.0",
		Port:                 8080,
		ReadTimeout:          15 * time.Second,
		WriteTimeout:         90 * time.Second,
		IdleTimeout:          60 * time.Second,
		MaxHeaderBytes:       1 << 20,
		MaxBodyBytes:         256 << 10,
		EnableCORS:           true,
		AllowedOrigins:       []string{"*"},
		RateLimitPerMinute:   120,
		MoreChallengesPerDay: 5,
	}
}

// ConfigFrom builds the server configuration from application settings.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	c.Host = cfg.HTTP.Host
	c.Port = cfg.HTTP.Port
	c.ReadTimeout = cfg.HTTP.ReadTimeout
	c.WriteTimeout = cfg.HTTP.WriteTimeout
	c.IdleTimeout = cfg.HTTP.IdleTimeout
	c.AllowedOrigins = cfg.HTTP.AllowedOrigins
	c.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	c.MoreChallengesPerDay = cfg.Limits.MoreChallengesPerDay
	c.Version = cfg.App.Version
	return c
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Exercises
	GetDailyExercise *query.GetDailyExerciseHandler
	CheckCode        *command.CheckCodeHandler
	MoreChallenges   *command.MoreChallengesHandler

	// Leaderboard
	GetLeaderboard *query.GetLeaderboardAndRankHandler

	// Users
	CheckUsername           *query.CheckUsernameHandler
	CheckUsernameAndSubject *query.CheckUsernameAndSubjectHandler
	GetUserData             *query.GetUserDataHandler
	LinkUser                *command.LinkUserHandler
	UpdateUsername          *command.UpdateUsernameHandler
	CreateCustomToken       *command.CreateCustomTokenHandler

	// Identity provider used to verify bearer tokens.
	Verifier handlers.TokenVerifier

	// Feature flags; nil enables everything.
	Features *config.FeatureFlags

	HealthChecker handlers.HealthChecker
	Logger        *slog.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	logger     *slog.Logger
	auth       *handlers.TokenAuth

	rateLimiter *rateLimiter
	running     atomic.Bool
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(cfg Config, deps Dependencies) *Server {
	s := &Server{
		config: cfg,
		deps:   deps,
		router: http.NewServeMux(),
		logger: deps.Logger,
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(logger.Component("http"))

	if s.deps.HealthChecker == nil {
		s.deps.HealthChecker = handlers.NewNoopHealthChecker()
	}

	s.auth = handlers.NewTokenAuth(deps.Verifier, s.logger)

	if cfg.RateLimitPerMinute > 0 {
		s.rateLimiter = newRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	}

	s.setupRoutes()
	s.handler = s.withMiddleware(s.router)

	s.httpServer = &http.Server{
		Addr:           cfg.Address(),
		Handler:        s.handler,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	return s
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /live", s.handleLive)
	s.router.HandleFunc("GET /{$}", s.handleRoot)

	// ─────────────────────────────────────────────────────────────────────────
	// Exercises
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /api/v1/exercises/daily", s.handleGetDailyExercise)
	s.router.Handle("POST /api/v1/exercises/check", s.auth.Required(http.HandlerFunc(s.handleCheckCode)))
	s.router.Handle("POST /api/v1/exercises/more",
		s.requireFeature(config.FeatureMoreChallenges, s.auth.Required(http.HandlerFunc(s.handleMoreChallenges))))

	// ─────────────────────────────────────────────────────────────────────────
	// Leaderboard
	// ─────────────────────────────────────────────────────────────────────────
	s.router.Handle("GET /api/v1/leaderboard", s.auth.Optional(http.HandlerFunc(s.handleGetLeaderboard)))

	// ─────────────────────────────────────────────────────────────────────────
	// Users
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("POST /api/v1/users/username/availability", s.handleCheckUsername)
	s.router.HandleFunc("POST /api/v1/users/verify", s.handleVerifyUser)
	s.router.Handle("POST /api/v1/users", s.auth.Required(http.HandlerFunc(s.handleLinkUser)))
	s.router.Handle("GET /api/v1/users/me", s.auth.Required(http.HandlerFunc(s.handleGetUserData)))
	s.router.Handle("PUT /api/v1/users/username",
		s.requireFeature(config.FeatureUsernameChange, s.auth.Required(http.HandlerFunc(s.handleUpdateUsername))))
	s.router.Handle("POST /api/v1/users/custom-token",
		s.requireFeature(config.FeatureCustomToken, http.HandlerFunc(s.handleCreateCustomToken)))
}

// requireFeature answers 404 while a feature is switched off.
func (s *Server) requireFeature(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.deps.Features.IsEnabled(name, nil) {
			writeJSONError(w, http.StatusNotFound, "Not found")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start listens until Shutdown. http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("http: server already running")
	}

	s.logger.Info("starting HTTP server", "address", s.config.Address(), "version", s.config.Version)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http: listen: %w", err)
	}
	return nil
}

// StartAsync runs Start in a goroutine. The channel yields at most one
// error and is closed when the server stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Start(); err != nil {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
