package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dailycodechallenge/backend/internal/application/command"
	"github.com/dailycodechallenge/backend/internal/application/query"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXERCISE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetDailyExercise handles GET /api/v1/exercises/daily.
// The first request of a day may trigger generation.
func (s *Server) handleGetDailyExercise(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetDailyExercise.Handle(r.Context(), query.GetDailyExerciseQuery{})
	if err != nil {
		logFailure(r, "daily exercise unavailable", err)
		writeJSONError(w, http.StatusInternalServerError, messagesFor("en").DailyError)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{
		"date":      res.Set.Date,
		"theme":     res.Set.Theme,
		"challenge": res.Set.Exercise,
	})
}

type checkCodeRequest struct {
	Difficulty string `json:"difficulty"`
	UserCode   string `json:"userCode"`
	Language   string `json:"language"`
}

// handleCheckCode handles POST /api/v1/exercises/check.
func (s *Server) handleCheckCode(w http.ResponseWriter, r *http.Request) {
	subject, ok := subjectOrFail(w, r)
	if !ok {
		return
	}

	var req checkCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	msgs := messagesFor(req.Language)

	res, err := s.deps.CheckCode.Handle(r.Context(), command.CheckCodeCommand{
		SubjectID:  subject,
		Difficulty: req.Difficulty,
		Language:   req.Language,
		Code:       req.UserCode,
	})

	switch {
	case err == nil:
		body := envelope{"feedback": res.Feedback, "points": res.Points}
		if res.Snapshot != nil {
			body["score"] = res.Snapshot.Scores.Daily
			body["globalScore"] = res.Snapshot.Scores.Global
		}
		writeSuccess(w, http.StatusOK, body)

	case errors.Is(err, shared.ErrNonPositiveScore) && res != nil:
		writeErrorWith(w, http.StatusBadRequest, msgs.InvalidCode, envelope{
			"feedback": res.Feedback,
			"score":    res.RawScore,
		})

	case errors.Is(err, shared.ErrAlreadyCompletedToday):
		writeErrorWith(w, http.StatusBadRequest, msgs.AlreadyCompleted, envelope{"code": shared.CodeAlreadyCompleted})

	case errors.Is(err, shared.ErrTierNotFound):
		writeJSONError(w, http.StatusNotFound, msgs.NoExercise)

	case errors.Is(err, shared.ErrExerciseNotFound):
		writeJSONError(w, http.StatusNotFound, msgs.NoChallenge)

	case errors.Is(err, shared.ErrGeneratorResponse):
		logFailure(r, "reviewer returned an unusable response", err)
		writeJSONError(w, http.StatusInternalServerError, msgs.InvalidResponse)

	case statusFor(err) >= http.StatusInternalServerError:
		logFailure(r, "code check failed", err)
		writeJSONError(w, http.StatusInternalServerError, msgs.ServerError)

	default:
		writeDomainError(w, r, err)
	}
}

type moreChallengesRequest struct {
	Difficulty string `json:"difficulty"`
	Language   string `json:"language"`
}

// handleMoreChallenges handles POST /api/v1/exercises/more.
func (s *Server) handleMoreChallenges(w http.ResponseWriter, r *http.Request) {
	subject, ok := subjectOrFail(w, r)
	if !ok {
		return
	}

	var req moreChallengesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	msgs := messagesFor(req.Language)

	res, err := s.deps.MoreChallenges.Handle(r.Context(), command.MoreChallengesCommand{
		SubjectID:  subject,
		Difficulty: req.Difficulty,
		Language:   req.Language,
	})

	remaining := 0
	if res != nil {
		remaining = res.RemainingRequests
	}

	switch {
	case err == nil:
		writeSuccess(w, http.StatusOK, envelope{
			"challenge":         res.Challenge,
			"remainingRequests": remaining,
		})

	case errors.Is(err, shared.ErrChallengeLimit):
		writeErrorWith(w, http.StatusTooManyRequests, fmt.Sprintf(msgs.LimitReached, s.config.MoreChallengesPerDay), envelope{
			"code":              shared.CodeLimitReached,
			"remainingRequests": 0,
		})

	case errors.Is(err, shared.ErrChallengeCooldown):
		writeErrorWith(w, http.StatusTooManyRequests, msgs.CooldownWait, envelope{
			"code":              shared.CodeCooldown,
			"remainingRequests": remaining,
		})

	case statusFor(err) >= http.StatusInternalServerError:
		logFailure(r, "challenge generation failed", err)
		writeJSONError(w, http.StatusInternalServerError, msgs.ChallengeError)

	default:
		writeDomainError(w, r, err)
	}
}
