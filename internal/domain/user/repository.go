package user

import (
	"context"
	"time"

	"github.com/dailycodechallenge/backend/internal/domain/leaderboard"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над пользователями.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create создаёт нового пользователя.
	// Возвращает ErrUserAlreadyExists при конфликте subject или username.
	Create(ctx context.Context, u *User) error

	// GetBySubjectID возвращает пользователя по ключу провайдера идентификации.
	// Возвращает ErrUserNotFound, если пользователь не найден.
	GetBySubjectID(ctx context.Context, subjectID shared.SubjectID) (*User, error)

	// GetByUsername возвращает пользователя по имени.
	// Возвращает ErrUserNotFound, если пользователь не найден.
	GetByUsername(ctx context.Context, username shared.Username) (*User, error)

	// UsernameExists проверяет, занято ли имя.
	UsernameExists(ctx context.Context, username shared.Username) (bool, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Atomic mutations
	// ─────────────────────────────────────────────────────────────────────────

	// ApplyGrading атомарно применяет результат проверки:
	// обновление происходит, только если lastCompletedExercise != g.Today.
	// Возвращает ErrAlreadyCompletedToday, если условие не выполнено.
	ApplyGrading(ctx context.Context, subjectID shared.SubjectID, g Grading) (*User, error)

	// UpdateUsername меняет имя и время последней смены.
	// Возвращает ErrUsernameTaken, если имя уже занято.
	UpdateUsername(ctx context.Context, subjectID shared.SubjectID, username shared.Username, changedAt time.Time) (*User, error)

	// ResetScores обнуляет счёт периода у всех пользователей.
	// Возвращает количество затронутых записей.
	ResetScores(ctx context.Context, period leaderboard.Period) (int64, error)
}

// Cache определяет кеш снапшотов пользователей (cache-aside).
type Cache interface {
	// Get возвращает снапшот или shared.ErrCacheMiss.
	Get(ctx context.Context, subjectID shared.SubjectID) (*Snapshot, error)

	// Set перезаписывает снапшот с TTL.
	Set(ctx context.Context, subjectID shared.SubjectID, snapshot *Snapshot, ttl time.Duration) error

	// Delete удаляет снапшот.
	Delete(ctx context.Context, subjectID shared.SubjectID) error
}
