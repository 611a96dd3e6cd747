package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/domain/user"
	"github.com/dailycodechallenge/backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE USERNAME COMMAND
// Renames a user at most once per cooldown window.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateUsernameCommand contains the rename request.
type UpdateUsernameCommand struct {
	SubjectID   shared.SubjectID
	OldUsername string
	NewUsername string
}

// Validate validates the command.
func (c UpdateUsernameCommand) Validate() error {
	if !c.SubjectID.IsValid() {
		return shared.ErrInvalidToken
	}
	if _, err := shared.NewUsername(c.NewUsername); err != nil {
		return err
	}
	return nil
}

// UpdateUsernameResult contains the renamed user.
type UpdateUsernameResult struct {
	OldUsername string
	NewUsername string
	Snapshot    *user.Snapshot
}

// UpdateUsernameConfig configures the handler.
type UpdateUsernameConfig struct {
	Clock    timeutil.Clock
	Cooldown time.Duration
	UserTTL  time.Duration
	Logger   *slog.Logger
}

// UpdateUsernameHandler handles the UpdateUsername command.
type UpdateUsernameHandler struct {
	users    user.Repository
	cache    user.Cache
	clock    timeutil.Clock
	cooldown time.Duration
	userTTL  time.Duration
	logger   *slog.Logger
}

// NewUpdateUsernameHandler creates a new UpdateUsernameHandler.
func NewUpdateUsernameHandler(users user.Repository, cache user.Cache, cfg UpdateUsernameConfig) *UpdateUsernameHandler {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.SystemClock()
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * 24 * time.Hour
	}
	if cfg.UserTTL <= 0 {
		cfg.UserTTL = 6 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &UpdateUsernameHandler{
		users:    users,
		cache:    cache,
		clock:    cfg.Clock,
		cooldown: cfg.Cooldown,
		userTTL:  cfg.UserTTL,
		logger:   cfg.Logger.With("handler", "update_username"),
	}
}

// Handle renames the user.
// The old username must belong to the caller; the cooldown is checked
// against the stored record before the store is touched.
func (h *UpdateUsernameHandler) Handle(ctx context.Context, cmd UpdateUsernameCommand) (*UpdateUsernameResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	newName, _ := shared.NewUsername(cmd.NewUsername)

	current, err := h.users.GetBySubjectID(ctx, cmd.SubjectID)
	if err != nil {
		return nil, err
	}
	if current.Username.String() != cmd.OldUsername {
		return nil, shared.ErrUsernameMismatch
	}

	now := h.clock.Now()
	if err := current.ChangeUsername(newName, now, h.cooldown); err != nil {
		return nil, err
	}

	updated, err := h.users.UpdateUsername(ctx, cmd.SubjectID, newName, now)
	if err != nil {
		return nil, err
	}

	snapshot := updated.ToSnapshot()
	if err := h.cache.Set(ctx, cmd.SubjectID, snapshot, h.userTTL); err != nil {
		h.logger.Warn("failed to refresh user snapshot", "subject_id", cmd.SubjectID, "error", err)
	}

	h.logger.Info("username changed",
		"subject_id", cmd.SubjectID,
		"old", cmd.OldUsername,
		"new", newName,
	)

	return &UpdateUsernameResult{
		OldUsername: cmd.OldUsername,
		NewUsername: newName.String(),
		Snapshot:    snapshot,
	}, nil
}
