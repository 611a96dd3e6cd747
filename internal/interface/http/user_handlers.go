package http

import (
	"net/http"

	"github.com/dailycodechallenge/backend/internal/application/command"
	"github.com/dailycodechallenge/backend/internal/application/query"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// codeUserNotFound is returned when a rename targets a record the caller does not own.
const codeUserNotFound = "USER_NOT_FOUND"

type usernameRequest struct {
	Username string `json:"username"`
}

// handleCheckUsername handles POST /api/v1/users/username/availability.
func (s *Server) handleCheckUsername(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	res, err := s.deps.CheckUsername.Handle(r.Context(), query.CheckUsernameQuery{Username: req.Username})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"available": res.Available})
}

type credentialsRequest struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
}

// handleVerifyUser handles POST /api/v1/users/verify.
func (s *Server) handleVerifyUser(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	res, err := s.deps.CheckUsernameAndSubject.Handle(r.Context(), query.CheckUsernameAndSubjectQuery{
		UID:      req.UID,
		Username: req.Username,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"valid": res.Valid})
}

// handleLinkUser handles POST /api/v1/users.
// 201 for a new record, 200 when the subject was already linked.
func (s *Server) handleLinkUser(w http.ResponseWriter, r *http.Request) {
	subject, ok := subjectOrFail(w, r)
	if !ok {
		return
	}

	var req usernameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	res, err := s.deps.LinkUser.Handle(r.Context(), command.LinkUserCommand{
		SubjectID: subject,
		Username:  req.Username,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeSuccess(w, status, envelope{"user": res.User.ToSnapshot()})
}

// handleGetUserData handles GET /api/v1/users/me.
func (s *Server) handleGetUserData(w http.ResponseWriter, r *http.Request) {
	subject, ok := subjectOrFail(w, r)
	if !ok {
		return
	}

	res, err := s.deps.GetUserData.Handle(r.Context(), query.GetUserDataQuery{SubjectID: subject})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"user": res.User})
}

type updateUsernameRequest struct {
	OldUsername string `json:"oldUsername"`
	NewUsername string `json:"newUsername"`
}

// handleUpdateUsername handles PUT /api/v1/users/username.
func (s *Server) handleUpdateUsername(w http.ResponseWriter, r *http.Request) {
	subject, ok := subjectOrFail(w, r)
	if !ok {
		return
	}

	var req updateUsernameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	res, err := s.deps.UpdateUsername.Handle(r.Context(), command.UpdateUsernameCommand{
		SubjectID:   subject,
		OldUsername: req.OldUsername,
		NewUsername: req.NewUsername,
	})
	if err != nil {
		if shared.IsNotFound(err) {
			writeErrorWith(w, http.StatusNotFound, "", envelope{"code": codeUserNotFound})
			return
		}
		writeDomainError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{
		"message":  "Username updated successfully",
		"username": res.NewUsername,
		"user":     res.Snapshot,
	})
}

// handleCreateCustomToken handles POST /api/v1/users/custom-token.
func (s *Server) handleCreateCustomToken(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	res, err := s.deps.CreateCustomToken.Handle(r.Context(), command.CreateCustomTokenCommand{
		UID:      req.UID,
		Username: req.Username,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"customToken": res.CustomToken})
}
