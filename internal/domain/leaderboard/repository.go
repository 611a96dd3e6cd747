package leaderboard

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// ScoreSource - источник истины для построения рейтинга (постоянное хранилище).
type ScoreSource interface {
	// TopByPeriod возвращает до limit записей по убыванию счёта периода.
	TopByPeriod(ctx context.Context, period Period, limit int) ([]Entry, error)

	// CountGreater возвращает количество пользователей со строго большим счётом.
	CountGreater(ctx context.Context, period Period, score float64) (int64, error)
}

// Cache хранит снапшоты лидерборда с TTL.
type Cache interface {
	// Get возвращает снапшот или shared.ErrCacheMiss.
	Get(ctx context.Context, period Period) (*Snapshot, error)

	// Set перезаписывает снапшот периода.
	Set(ctx context.Context, snapshot *Snapshot, ttl time.Duration) error
}
