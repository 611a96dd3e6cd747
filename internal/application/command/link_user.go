package command

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"

	"github.com/google/uuid"

	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/domain/user"
	"github.com/dailycodechallenge/backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LINK USER COMMAND
// Creates the user record for an identity-provider subject on first sign-in.
// A subject that already has a record gets the existing one back.
// A taken username gets a random numeric suffix.
// ══════════════════════════════════════════════════════════════════════════════

// usernameSuffixAttempts bounds the suffix search for a taken username.
const usernameSuffixAttempts = 5

// LinkUserCommand contains the sign-in data.
type LinkUserCommand struct {
	SubjectID shared.SubjectID
	Username  string
}

// Validate validates the command.
func (c LinkUserCommand) Validate() error {
	if !c.SubjectID.IsValid() {
		return shared.ErrInvalidToken
	}
	if _, err := shared.NewUsername(c.Username); err != nil {
		return err
	}
	return nil
}

// LinkUserResult contains the linked user.
type LinkUserResult struct {
	User    *user.User
	Created bool
}

// LinkUserHandler handles the LinkUser command.
type LinkUserHandler struct {
	users  user.Repository
	clock  timeutil.Clock
	suffix func() int
	logger *slog.Logger
}

// NewLinkUserHandler creates a new LinkUserHandler.
func NewLinkUserHandler(users user.Repository, clock timeutil.Clock, logger *slog.Logger) *LinkUserHandler {
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkUserHandler{
		users:  users,
		clock:  clock,
		suffix: func() int { return rand.Intn(1000) },
		logger: logger.With("handler", "link_user"),
	}
}

// Handle creates the user if the subject has no record yet.
func (h *LinkUserHandler) Handle(ctx context.Context, cmd LinkUserCommand) (*LinkUserResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	base, _ := shared.NewUsername(cmd.Username)

	if existing, err := h.users.GetBySubjectID(ctx, cmd.SubjectID); err == nil {
		return &LinkUserResult{User: existing}, nil
	} else if !shared.IsNotFound(err) {
		return nil, err
	}

	name := base
	for attempt := 0; attempt <= usernameSuffixAttempts; attempt++ {
		if attempt > 0 {
			name = h.withSuffix(base)
		}

		taken, err := h.users.UsernameExists(ctx, name)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		u, err := user.NewUser(user.NewUserParams{
			ID:        uuid.NewString(),
			SubjectID: cmd.SubjectID,
			Username:  name,
			Now:       h.clock.Now(),
		})
		if err != nil {
			return nil, err
		}

		err = h.users.Create(ctx, u)
		switch {
		case err == nil:
			h.logger.Info("user created", "subject_id", cmd.SubjectID, "username", name)
			return &LinkUserResult{User: u, Created: true}, nil
		case shared.IsAlreadyExists(err):
			// Concurrent sign-in of the same subject.
			existing, gerr := h.users.GetBySubjectID(ctx, cmd.SubjectID)
			if gerr != nil {
				return nil, gerr
			}
			return &LinkUserResult{User: existing}, nil
		case shared.IsConflict(err):
			// Username claimed between the check and the insert.
			continue
		default:
			return nil, err
		}
	}

	return nil, fmt.Errorf("link_user: no free variant of %q: %w", base, shared.ErrUsernameTaken)
}

// withSuffix appends a 0-999 suffix, trimming the base to stay within the length limit.
func (h *LinkUserHandler) withSuffix(base shared.Username) shared.Username {
	suffix := strconv.Itoa(h.suffix())
	runes := []rune(base.String())
	if limit := 30 - len(suffix); len(runes) > limit {
		runes = runes[:limit]
	}
	return shared.Username(string(runes) + suffix)
}
