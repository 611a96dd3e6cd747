package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER DATA QUERY
// Снапшот пользователя по схеме cache-aside: кеш, затем хранилище с записью
// в кеш на 6 часов.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserDataQuery содержит идентификатор пользователя.
type GetUserDataQuery struct {
	SubjectID shared.SubjectID
}

// GetUserDataResult содержит снапшот.
type GetUserDataResult struct {
	User *user.Snapshot

	// FromCache - снапшот взят из кеша.
	FromCache bool
}

// GetUserDataHandler обрабатывает запрос данных пользователя.
type GetUserDataHandler struct {
	users  user.Repository
	cache  user.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewGetUserDataHandler создаёт новый обработчик.
func NewGetUserDataHandler(users user.Repository, cache user.Cache, ttl time.Duration, logger *slog.Logger) *GetUserDataHandler {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GetUserDataHandler{
		users:  users,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("handler", "get_user_data"),
	}
}

// Handle выполняет запрос.
func (h *GetUserDataHandler) Handle(ctx context.Context, q GetUserDataQuery) (*GetUserDataResult, error) {
	if !q.SubjectID.IsValid() {
		return nil, shared.ErrTokenRequired
	}

	snapshot, err := h.cache.Get(ctx, q.SubjectID)
	if err == nil {
		return &GetUserDataResult{User: snapshot, FromCache: true}, nil
	}
	if !shared.IsCacheMiss(err) {
		h.logger.Warn("user cache read failed", "subject_id", q.SubjectID, "error", err)
	}

	u, err := h.users.GetBySubjectID(ctx, q.SubjectID)
	if err != nil {
		return nil, err
	}

	snapshot = u.ToSnapshot()
	if err := h.cache.Set(ctx, q.SubjectID, snapshot, h.ttl); err != nil {
		h.logger.Warn("failed to cache user snapshot", "subject_id", q.SubjectID, "error", err)
	}

	return &GetUserDataResult{User: snapshot}, nil
}
