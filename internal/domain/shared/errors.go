// Package shared contains common domain types and errors that are used
// across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")

	// Conflict errors carry a structured code for the caller.
	ErrConflict = errors.New("conflict")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// Upstream errors: store, cache, generator or identity provider.
	ErrUpstream           = errors.New("upstream failure")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")

	// ErrGenerationFailed is returned once the generator retries are exhausted.
	ErrGenerationFailed = errors.New("generation failed")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "user", "leaderboard", "exercise"
	Op      string // Operation that failed, e.g., "ApplyGrading"
	Kind    error  // Base error type for errors.Is() checking
	Code    string // Structured code surfaced to API clients (optional)
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
// A DomainError also matches another DomainError with the same Domain, Op, Code
// and Message, so package-level sentinels still match after WithErr.
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e.Domain == t.Domain && e.Op == t.Op && e.Code == t.Code && e.Message == t.Message
	}
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// WithErr returns a copy of the error wrapping err.
func (e *DomainError) WithErr(err error) *DomainError {
	cp := *e
	cp.Err = err
	return &cp
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// NewCodedError creates a domain error carrying a structured client code.
func NewCodedError(domain, op string, kind error, code, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Conflict codes returned to API clients.
const (
	CodeAlreadyCompleted = "ALREADY_COMPLETED"
	CodeDaysRemaining    = "DAYS_REMAINING"
	CodeUsernameTaken    = "USERNAME_TAKEN"
	CodeLimitReached     = "LIMIT_REACHED"
	CodeCooldown         = "COOLDOWN"
)

// User domain errors
var (
	ErrUserNotFound          = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrUserAlreadyExists     = NewDomainError("user", "Create", ErrAlreadyExists, "user already exists")
	ErrAlreadyCompletedToday = NewCodedError("user", "ApplyGrading", ErrConflict, CodeAlreadyCompleted, "exercise already completed today")
	ErrNonPositiveScore      = NewDomainError("user", "ApplyGrading", ErrValidation, "score must be positive")
	ErrPersistenceFailure    = NewDomainError("user", "Persist", ErrUpstream, "failed to persist user")
	ErrInvalidDifficulty     = NewDomainError("user", "Validate", ErrInvalidInput, "invalid difficulty")
	ErrInvalidLanguage       = NewDomainError("user", "Validate", ErrInvalidInput, "invalid language")
	ErrInvalidUsername       = NewDomainError("user", "Validate", ErrInvalidInput, "invalid username")
	ErrUsernameTaken         = NewCodedError("user", "UpdateUsername", ErrConflict, CodeUsernameTaken, "username already taken")
	ErrUsernameMismatch      = NewDomainError("user", "UpdateUsername", ErrNotFound, "username does not belong to user")
)

// Leaderboard domain errors
var (
	ErrLeaderboardUnavailable = NewDomainError("leaderboard", "Get", ErrNotFound, "Leaderboard not available")
	ErrInvalidPeriod          = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "invalid period filter")
)

// Exercise domain errors
var (
	ErrExerciseNotFound      = NewDomainError("exercise", "Find", ErrNotFound, "exercise not found")
	ErrTierNotFound          = NewDomainError("exercise", "FindTier", ErrNotFound, "no exercise for the selected difficulty")
	ErrExerciseGeneration    = NewDomainError("exercise", "Generate", ErrGenerationFailed, "failed to generate exercise")
	ErrMalformedExercise     = NewDomainError("exercise", "Validate", ErrInvalidInput, "generated exercise is malformed")
	ErrExerciseThemeMismatch = NewDomainError("exercise", "Provision", ErrGenerationFailed, "stored exercise has another theme for the day")
	ErrDuplicateTitle        = NewDomainError("exercise", "Validate", ErrAlreadyExists, "generated title repeats a recent exercise")
	ErrChallengeLimit        = NewCodedError("exercise", "MoreChallenges", ErrRateLimited, CodeLimitReached, "daily challenge limit reached")
	ErrChallengeCooldown     = NewCodedError("exercise", "MoreChallenges", ErrRateLimited, CodeCooldown, "please wait before requesting another challenge")
)

// External service errors
var (
	ErrGeneratorUnavailable = NewDomainError("genai", "Request", ErrServiceUnavailable, "content generator is unavailable")
	ErrGeneratorTimeout     = NewDomainError("genai", "Request", ErrTimeout, "content generator request timeout")
	ErrGeneratorResponse    = NewDomainError("genai", "Parse", ErrInvalidInput, "invalid response from content generator")
	ErrInvalidToken         = NewDomainError("identity", "Verify", ErrUnauthorized, "invalid token")
	ErrTokenRequired        = NewDomainError("identity", "Verify", ErrUnauthorized, "token required")
	ErrInvalidCredentials   = NewDomainError("identity", "CustomToken", ErrUnauthorized, "Invalid UID or username")
)

// UsernameCooldownError is the conflict returned while a username change is still locked.
type UsernameCooldownError struct {
	DaysRemaining int
}

// Error implements the error interface.
func (e *UsernameCooldownError) Error() string {
	return fmt.Sprintf("user.UpdateUsername: username can be changed in %d days", e.DaysRemaining)
}

// Is matches ErrConflict.
func (e *UsernameCooldownError) Is(target error) bool {
	return target == ErrConflict
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsConflict checks if the error is a conflict carrying a client code.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrUpstream) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// CodeOf extracts the structured client code from err, if any.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	var ce *UsernameCooldownError
	if errors.As(err, &ce) {
		return CodeDaysRemaining
	}
	return ""
}

// ErrCacheMiss is returned by cache ports when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// IsCacheMiss checks if the error is a cache miss.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
