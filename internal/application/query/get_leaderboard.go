// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/dailycodechallenge/backend/internal/domain/leaderboard"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD AND RANK QUERY
// Отдаёт топ-10 периода из кеша и, если пользователь известен, его живой ранг.
// Топ никогда не пересчитывается по запросу: его строит только Builder.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardAndRankQuery содержит параметры запроса лидерборда.
type GetLeaderboardAndRankQuery struct {
	// Filter - период: daily, weekly, monthly, global (пусто = global).
	Filter string

	// SubjectID - проверенный идентификатор вызывающего (пусто = без ранга).
	SubjectID shared.SubjectID
}

// Validate проверяет корректность параметров запроса.
func (q GetLeaderboardAndRankQuery) Validate() error {
	_, err := leaderboard.ParsePeriod(q.Filter)
	return err
}

// LeaderboardEntryDTO - запись топа.
type LeaderboardEntryDTO struct {
	// Rank - позиция; равные счета делят позицию.
	Rank     int     `json:"rank"`
	Username string  `json:"username"`
	Score    float64 `json:"score"`
}

// UserRankDTO - позиция вызывающего в полном рейтинге.
type UserRankDTO struct {
	Username string  `json:"username"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
}

// GetLeaderboardAndRankResult содержит результат запроса.
type GetLeaderboardAndRankResult struct {
	Period      string                `json:"period"`
	Entries     []LeaderboardEntryDTO `json:"leaderboard"`
	UserRank    *UserRankDTO          `json:"userRank"`
	GeneratedAt time.Time             `json:"generatedAt"`
}

// GetLeaderboardAndRankHandler обрабатывает запрос лидерборда.
type GetLeaderboardAndRankHandler struct {
	cache  leaderboard.Cache
	scores leaderboard.ScoreSource
	users  user.Repository
	logger *slog.Logger
}

// NewGetLeaderboardAndRankHandler создаёт новый обработчик.
func NewGetLeaderboardAndRankHandler(
	cache leaderboard.Cache,
	scores leaderboard.ScoreSource,
	users user.Repository,
	logger *slog.Logger,
) *GetLeaderboardAndRankHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetLeaderboardAndRankHandler{
		cache:  cache,
		scores: scores,
		users:  users,
		logger: logger.With("handler", "get_leaderboard"),
	}
}

// Handle выполняет запрос.
func (h *GetLeaderboardAndRankHandler) Handle(ctx context.Context, q GetLeaderboardAndRankQuery) (*GetLeaderboardAndRankResult, error) {
	period, err := leaderboard.ParsePeriod(q.Filter)
	if err != nil {
		return nil, err
	}

	snapshot, err := h.cache.Get(ctx, period)
	if err != nil {
		if !shared.IsCacheMiss(err) {
			h.logger.Warn("leaderboard cache read failed", "period", period, "error", err)
		}
		return nil, shared.ErrLeaderboardUnavailable
	}

	result := &GetLeaderboardAndRankResult{
		Period:      period.String(),
		Entries:     toEntryDTOs(snapshot.Entries),
		GeneratedAt: snapshot.GeneratedAt,
	}

	if q.SubjectID.IsValid() {
		// Ошибка ранга не ломает ответ: топ отдаётся без ранга.
		rank, err := h.rankOf(ctx, q.SubjectID, period)
		if err != nil && !shared.IsNotFound(err) {
			h.logger.Warn("failed to compute rank", "subject_id", q.SubjectID, "period", period, "error", err)
		}
		result.UserRank = rank
	}

	return result, nil
}

// rankOf считает ранг по живому хранилищу: 1 + число строго больших счетов.
func (h *GetLeaderboardAndRankHandler) rankOf(ctx context.Context, subject shared.SubjectID, period leaderboard.Period) (*UserRankDTO, error) {
	u, err := h.users.GetBySubjectID(ctx, subject)
	if err != nil {
		return nil, err
	}

	score := u.Scores.Get(period)
	greater, err := h.scores.CountGreater(ctx, period, score)
	if err != nil {
		return nil, err
	}

	return &UserRankDTO{
		Username: u.Username.String(),
		Score:    score,
		Rank:     shared.RankFromGreaterCount(greater).Int(),
	}, nil
}

// toEntryDTOs нумерует топ так же, как живой ранг: [10,10,8] → [1,1,3].
func toEntryDTOs(entries []leaderboard.Entry) []LeaderboardEntryDTO {
	out := make([]LeaderboardEntryDTO, 0, len(entries))
	for i, e := range entries {
		rank := i + 1
		if i > 0 && e.Score == entries[i-1].Score {
			rank = out[i-1].Rank
		}
		out = append(out, LeaderboardEntryDTO{Rank: rank, Username: e.Username, Score: e.Score})
	}
	return out
}
