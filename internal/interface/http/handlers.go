package http

import (
	"errors"
	"net/http"

	"github.com/dailycodechallenge/backend/config"
	"github.com/dailycodechallenge/backend/internal/application/query"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/interface/http/handlers"
	"github.com/dailycodechallenge/backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{
		"name":    "Daily Code Challenge API",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":      "/health",
			"daily":       "/api/v1/exercises/daily",
			"leaderboard": "/api/v1/leaderboard",
			"me":          "/api/v1/users/me",
		},
	})
}

// handleHealth reports every dependency check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleReady fails only when a critical dependency is down.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": status.Message,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard?filter=daily|weekly|monthly|global
// Аноним получает только топ; авторизованный ещё и свою позицию.
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := query.GetLeaderboardAndRankQuery{Filter: r.URL.Query().Get("filter")}

	if subject, ok := handlers.SubjectFromContext(r.Context()); ok {
		fc := &config.FeatureContext{SubjectID: subject.String()}
		if s.deps.Features.IsEnabled(config.FeatureLeaderboardRank, fc) {
			q.SubjectID = subject
		}
	}

	res, err := s.deps.GetLeaderboard.Handle(r.Context(), q)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{
		"period":      res.Period,
		"leaderboard": res.Entries,
		"userRank":    res.UserRank,
		"generatedAt": res.GeneratedAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// subjectOrFail returns the authenticated subject or writes 401.
func subjectOrFail(w http.ResponseWriter, r *http.Request) (shared.SubjectID, bool) {
	subject, ok := handlers.SubjectFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized: No token provided")
		return "", false
	}
	return subject, true
}

// logFailure logs a server-side handler error with the request logger.
func logFailure(r *http.Request, msg string, err error) {
	if statusFor(err) < http.StatusInternalServerError && !errors.Is(err, shared.ErrGeneratorResponse) {
		return
	}
	logger.FromContext(r.Context()).Error(msg, "path", r.URL.Path, "error", err)
}
