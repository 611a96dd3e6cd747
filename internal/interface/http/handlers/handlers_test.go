package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/infrastructure/external/identity"
)

func TestCompositeHealthChecker(t *testing.T) {
	tests := []struct {
		name        string
		database    error
		cache       error
		wantHealthy bool
		wantReady   bool
		wantMessage string
	}{
		{"all up", nil, nil, true, true, "All checks passed"},
		{"cache down", nil, errors.New("refused"), false, true, "Some checks failed: cache"},
		{"store down", errors.New("timeout"), nil, false, false, "Some checks failed: database"},
		{"both down", errors.New("timeout"), errors.New("refused"), false, false, "Some checks failed: database, cache"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCompositeHealthChecker("1.0.0")
			c.AddCheck("database", func(context.Context) error { return tt.database })
			c.AddOptionalCheck("cache", func(context.Context) error { return tt.cache })

			status := c.Check(context.Background())
			assert.Equal(t, tt.wantHealthy, status.Healthy)
			assert.Equal(t, tt.wantReady, status.Ready)
			assert.Equal(t, tt.wantMessage, status.Message)
			assert.Equal(t, "1.0.0", status.Version)
			require.Len(t, status.Checks, 2)
			assert.True(t, status.Checks["database"].Critical)
			assert.False(t, status.Checks["cache"].Critical)
		})
	}
}

func TestCompositeHealthChecker_ReRegisterReplaces(t *testing.T) {
	c := NewCompositeHealthChecker("")
	c.AddCheck("database", func(context.Context) error { return errors.New("down") })
	c.AddCheck("database", func(context.Context) error { return nil })

	status := c.Check(context.Background())
	assert.True(t, status.Ready)
	assert.Len(t, status.Checks, 1)
}

func TestCompositeHealthChecker_Empty(t *testing.T) {
	status := NewCompositeHealthChecker("").Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "No health checks registered", status.Message)
}

func TestTokenAuth(t *testing.T) {
	auth := NewTokenAuth(identity.DevProvider{}, nil)

	var seen shared.SubjectID
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name        string
		header      string
		required    bool
		wantStatus  int
		wantSubject shared.SubjectID
		wantMessage string
	}{
		{"required without header", "", true, http.StatusUnauthorized, "", "No token provided"},
		{"required with bad token", "Bearer nope", true, http.StatusUnauthorized, "", "Invalid token"},
		{"required with dev token", "Bearer dev:abc", true, http.StatusNoContent, "abc", ""},
		{"optional anonymous", "", false, http.StatusNoContent, "", ""},
		{"optional bad token", "Bearer nope", false, http.StatusNoContent, "", ""},
		{"optional dev token", "Bearer dev:abc", false, http.StatusNoContent, "abc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h := auth.Optional(echo)
			if tt.required {
				h = auth.Required(echo)
			}
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantSubject, seen)
			if tt.wantMessage != "" {
				assert.Contains(t, rec.Body.String(), tt.wantMessage)
				assert.Contains(t, rec.Body.String(), `"status":"error"`)
			}
		})
	}
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	h := RequestSizeLimitMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}")))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChain_FirstIsOutermost(t *testing.T) {
	var order []string
	mark := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := ChainHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("a"), mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "handler"}, order)
}
