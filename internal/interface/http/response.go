package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// envelope is a flat JSON object; every response carries a "status" field.
type envelope map[string]any

const (
	statusSuccess = "success"
	statusError   = "error"
)

// writeJSON writes body as JSON.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeSuccess writes {"status":"success", ...fields}.
func writeSuccess(w http.ResponseWriter, status int, fields envelope) {
	body := envelope{"status": statusSuccess}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// writeJSONError writes {"status":"error","message":...}.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{"status": statusError, "message": message})
}

// writeErrorWith writes the error envelope with extra fields.
func writeErrorWith(w http.ResponseWriter, status int, message string, fields envelope) {
	body := envelope{"status": statusError}
	if message != "" {
		body["message"] = message
	}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// decodeJSON decodes the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", shared.ErrValidation)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	// Generator failures wrap parse errors that would otherwise read as validation.
	case errors.Is(err, shared.ErrGenerationFailed),
		errors.Is(err, shared.ErrGeneratorResponse),
		shared.IsExternalService(err):
		return http.StatusInternalServerError
	case shared.IsValidation(err):
		return http.StatusBadRequest
	case shared.IsConflict(err):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrRateLimited):
		return http.StatusTooManyRequests
	case shared.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the part of err that is safe to show a client.
func publicMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	for _, kind := range []error{shared.ErrValidation, shared.ErrInvalidInput, shared.ErrValueOutOfRange, shared.ErrEmptyValue} {
		if errors.Is(err, kind) {
			if msg, ok := strings.CutPrefix(err.Error(), kind.Error()+": "); ok {
				return msg
			}
			return kind.Error()
		}
	}
	return "Internal server error"
}

// writeDomainError writes the generic error response for err.
// Conflicts carry their client code; 5xx details are logged, not returned.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		writeJSONError(w, status, "Internal server error")
		return
	}

	var cooldown *shared.UsernameCooldownError
	if errors.As(err, &cooldown) {
		writeErrorWith(w, status, "", envelope{"code": shared.CodeDaysRemaining, "days": cooldown.DaysRemaining})
		return
	}

	if code := shared.CodeOf(err); code != "" {
		writeErrorWith(w, status, publicMessage(err), envelope{"code": code})
		return
	}

	writeJSONError(w, status, publicMessage(err))
}
