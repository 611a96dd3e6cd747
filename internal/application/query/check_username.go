package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECK USERNAME QUERIES
// Доступность имени и проверка пары uid + username.
// ══════════════════════════════════════════════════════════════════════════════

// CheckUsernameQuery содержит проверяемое имя.
type CheckUsernameQuery struct {
	Username string
}

// CheckUsernameResult содержит ответ.
type CheckUsernameResult struct {
	Available bool `json:"available"`
}

// CheckUsernameHandler проверяет, свободно ли имя.
type CheckUsernameHandler struct {
	users user.Repository
}

// NewCheckUsernameHandler создаёт новый обработчик.
func NewCheckUsernameHandler(users user.Repository) *CheckUsernameHandler {
	return &CheckUsernameHandler{users: users}
}

// Handle выполняет запрос.
// Имя, не проходящее формат, считается недоступным: его нельзя занять.
func (h *CheckUsernameHandler) Handle(ctx context.Context, q CheckUsernameQuery) (*CheckUsernameResult, error) {
	if strings.TrimSpace(q.Username) == "" {
		return nil, fmt.Errorf("%w: Username is required", shared.ErrValidation)
	}

	name, err := shared.NewUsername(q.Username)
	if err != nil {
		return &CheckUsernameResult{Available: false}, nil
	}

	taken, err := h.users.UsernameExists(ctx, name)
	if err != nil {
		return nil, err
	}
	return &CheckUsernameResult{Available: !taken}, nil
}

// CheckUsernameAndSubjectQuery содержит пару для проверки.
type CheckUsernameAndSubjectQuery struct {
	UID      string
	Username string
}

// CheckUsernameAndSubjectResult содержит ответ.
type CheckUsernameAndSubjectResult struct {
	Valid bool `json:"valid"`
}

// CheckUsernameAndSubjectHandler проверяет, что имя принадлежит uid.
type CheckUsernameAndSubjectHandler struct {
	users user.Repository
}

// NewCheckUsernameAndSubjectHandler создаёт новый обработчик.
func NewCheckUsernameAndSubjectHandler(users user.Repository) *CheckUsernameAndSubjectHandler {
	return &CheckUsernameAndSubjectHandler{users: users}
}

// Handle выполняет запрос. Несовпадение возвращает ErrInvalidCredentials.
func (h *CheckUsernameAndSubjectHandler) Handle(ctx context.Context, q CheckUsernameAndSubjectQuery) (*CheckUsernameAndSubjectResult, error) {
	if strings.TrimSpace(q.UID) == "" || strings.TrimSpace(q.Username) == "" {
		return nil, fmt.Errorf("%w: Username and UID are required", shared.ErrValidation)
	}

	u, err := h.users.GetBySubjectID(ctx, shared.SubjectID(strings.TrimSpace(q.UID)))
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if u.Username.String() != q.Username {
		return nil, shared.ErrInvalidCredentials
	}
	return &CheckUsernameAndSubjectResult{Valid: true}, nil
}
