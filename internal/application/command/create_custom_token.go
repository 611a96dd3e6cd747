package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE CUSTOM TOKEN COMMAND
// Issues an identity-provider custom token for a uid and username pair.
// ══════════════════════════════════════════════════════════════════════════════

// TokenIssuer mints custom sign-in tokens.
type TokenIssuer interface {
	CustomToken(ctx context.Context, subject shared.SubjectID) (string, error)
}

// CreateCustomTokenCommand contains the credentials pair.
type CreateCustomTokenCommand struct {
	UID      string
	Username string
}

// Validate validates the command.
func (c CreateCustomTokenCommand) Validate() error {
	if strings.TrimSpace(c.UID) == "" || strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("%w: UID and username are required", shared.ErrValidation)
	}
	return nil
}

// CreateCustomTokenResult contains the token.
type CreateCustomTokenResult struct {
	CustomToken string
}

// CreateCustomTokenHandler handles the CreateCustomToken command.
type CreateCustomTokenHandler struct {
	users  user.Repository
	issuer TokenIssuer
	logger *slog.Logger
}

// NewCreateCustomTokenHandler creates a new CreateCustomTokenHandler.
func NewCreateCustomTokenHandler(users user.Repository, issuer TokenIssuer, logger *slog.Logger) *CreateCustomTokenHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreateCustomTokenHandler{
		users:  users,
		issuer: issuer,
		logger: logger.With("handler", "create_custom_token"),
	}
}

// Handle issues the token when the pair names an existing user.
// Unknown uid and wrong username produce the same error.
func (h *CreateCustomTokenHandler) Handle(ctx context.Context, cmd CreateCustomTokenCommand) (*CreateCustomTokenResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	subject := shared.SubjectID(strings.TrimSpace(cmd.UID))
	u, err := h.users.GetBySubjectID(ctx, subject)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if u.Username.String() != cmd.Username {
		return nil, shared.ErrInvalidCredentials
	}

	token, err := h.issuer.CustomToken(ctx, subject)
	if err != nil {
		h.logger.Error("failed to issue custom token", "subject_id", subject, "error", err)
		return nil, err
	}

	return &CreateCustomTokenResult{CustomToken: token}, nil
}
