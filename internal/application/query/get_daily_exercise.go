package query

import (
	"context"
	"log/slog"

	"github.com/dailycodechallenge/backend/internal/application/command"
	"github.com/dailycodechallenge/backend/internal/domain/exercise"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DAILY EXERCISE QUERY
// Набор дня. Если набора ещё нет, его создаёт провизионер: клиенту
// не важно, пришёл набор из кеша или был только что сгенерирован.
// ══════════════════════════════════════════════════════════════════════════════

// DailyProvisioner - источник набора дня.
type DailyProvisioner interface {
	Handle(ctx context.Context, cmd command.ProvisionExerciseCommand) (*command.ProvisionExerciseResult, error)
}

// GetDailyExerciseQuery пуст: день определяется часами сервера.
type GetDailyExerciseQuery struct{}

// GetDailyExerciseResult содержит набор дня.
type GetDailyExerciseResult struct {
	Set    *exercise.Set
	Source string
}

// GetDailyExerciseHandler обрабатывает запрос набора дня.
type GetDailyExerciseHandler struct {
	provisioner DailyProvisioner
	logger      *slog.Logger
}

// NewGetDailyExerciseHandler создаёт новый обработчик.
func NewGetDailyExerciseHandler(provisioner DailyProvisioner, logger *slog.Logger) *GetDailyExerciseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetDailyExerciseHandler{
		provisioner: provisioner,
		logger:      logger.With("handler", "get_daily_exercise"),
	}
}

// Handle выполняет запрос.
func (h *GetDailyExerciseHandler) Handle(ctx context.Context, _ GetDailyExerciseQuery) (*GetDailyExerciseResult, error) {
	res, err := h.provisioner.Handle(ctx, command.ProvisionExerciseCommand{})
	if err != nil {
		h.logger.Error("daily exercise unavailable", "error", err)
		return nil, err
	}
	if res.Set == nil {
		return nil, shared.ErrExerciseNotFound
	}

	h.logger.Debug("daily exercise served", "date", res.Set.Date, "theme", res.Set.Theme, "source", res.Source)
	return &GetDailyExerciseResult{Set: res.Set, Source: res.Source}, nil
}
