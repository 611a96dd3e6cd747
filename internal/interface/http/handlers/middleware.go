package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/infrastructure/external/identity"
)

// ══════════════════════════════════════════════════════════════════════════════
// TOKEN AUTHENTICATION MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// TokenVerifier verifies bearer tokens issued by the identity provider.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (shared.SubjectID, error)
}

// TokenAuth resolves the caller's subject from the Authorization header.
type TokenAuth struct {
	verifier TokenVerifier
	logger   *slog.Logger
}

// NewTokenAuth creates a new TokenAuth.
func NewTokenAuth(verifier TokenVerifier, logger *slog.Logger) *TokenAuth {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenAuth{
		verifier: verifier,
		logger:   logger.With("component", "auth"),
	}
}

// Required rejects requests without a valid token.
func (a *TokenAuth) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := identity.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized: No token provided")
			return
		}

		subject, err := a.verifier.Verify(r.Context(), token)
		if err != nil {
			a.logger.Debug("token rejected", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusUnauthorized, "Unauthorized: Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
	})
}

// Optional attaches the subject when a valid token is present and
// lets anonymous requests through otherwise.
func (a *TokenAuth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := identity.BearerToken(r.Header.Get("Authorization"))
		if token != "" {
			subject, err := a.verifier.Verify(r.Context(), token)
			if err == nil {
				r = r.WithContext(WithSubject(r.Context(), subject))
			} else if !errors.Is(err, shared.ErrUnauthorized) {
				a.logger.Warn("token verification failed", "path", r.URL.Path, "error", err)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ContextKey is a type for context keys.
type ContextKey string

// ContextKeySubject is the context key for the authenticated subject.
const ContextKeySubject ContextKey = "subject_id"

// WithSubject returns a context carrying the authenticated subject.
func WithSubject(ctx context.Context, subject shared.SubjectID) context.Context {
	return context.WithValue(ctx, ContextKeySubject, subject)
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) (shared.SubjectID, bool) {
	subject, ok := ctx.Value(ContextKeySubject).(shared.SubjectID)
	return subject, ok && subject.IsValid()
}

// ══════════════════════════════════════════════════════════════════════════════
// SECURITY HEADERS MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// SecurityHeadersMiddleware adds security-related headers.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST SIZE LIMIT MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// RequestSizeLimitMiddleware limits the size of request bodies.
func RequestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// MiddlewareFunc is a function that wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// Chain chains multiple middleware functions.
// The first middleware is the outermost.
func Chain(middlewares ...MiddlewareFunc) MiddlewareFunc {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// ChainHandler chains middleware and wraps a final handler.
func ChainHandler(handler http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	return Chain(middlewares...)(handler)
}

// writeError writes the error envelope used across the API.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "error",
		"message": message,
	})
}
