// Package leaderboard содержит доменную модель лидерборда Daily Code Challenge.
// Лидерборд строится по периодам (день, неделя, месяц, всё время) и хранится
// в кеше как снапшот топ-10; ранг пользователя всегда считается по живым данным.
package leaderboard

import (
	"strings"
	"time"

	"github.com/dailycodechallenge/backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD
// ══════════════════════════════════════════════════════════════════════════════

// Period определяет окно подсчёта очков.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodGlobal  Period = "global"
)

// AllPeriods возвращает все периоды в порядке перестроения.
func AllPeriods() []Period {
	return []Period{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodGlobal}
}

// IsValid проверяет, что период известен.
func (p Period) IsValid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodGlobal:
		return true
	default:
		return false
	}
}

// IsResettable возвращает true для периодов, которые обнуляются по расписанию.
// Глобальный счёт никогда не сбрасывается.
func (p Period) IsResettable() bool {
	return p == PeriodDaily || p == PeriodWeekly || p == PeriodMonthly
}

// ScoreField возвращает имя поля счёта для периода (как в JSON-снапшоте пользователя).
func (p Period) ScoreField() string {
	return string(p) + "Score"
}

// String возвращает строковое представление.
func (p Period) String() string {
	return string(p)
}

// ParsePeriod разбирает фильтр из запроса. Пустой фильтр означает global.
func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return PeriodGlobal, nil
	}
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", shared.ErrInvalidPeriod
	}
	return p, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// TopSize - размер снапшота лидерборда.
const TopSize = 10

// Entry - одна строка лидерборда.
type Entry struct {
	Username  string  `json:"username"`
	Score     float64 `json:"score"`
	SubjectID string  `json:"uid"`
}

// Snapshot - упорядоченный топ пользователей для периода.
// Entries отсортированы по убыванию Score; при равенстве порядок задаёт хранилище.
type Snapshot struct {
	Period      Period    `json:"period"`
	Entries     []Entry   `json:"entries"`
	GeneratedAt time.Time `json:"generatedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// NewSnapshot создаёт снапшот, обрезая записи до TopSize.
func NewSnapshot(period Period, entries []Entry, now time.Time, ttl time.Duration) *Snapshot {
	if len(entries) > TopSize {
		entries = entries[:TopSize]
	}
	if entries == nil {
		entries = []Entry{}
	}
	return &Snapshot{
		Period:      period,
		Entries:     entries,
		GeneratedAt: now,
		ExpiresAt:   now.Add(ttl),
	}
}

// IsExpired проверяет, истёк ли срок свежести снапшота.
func (s *Snapshot) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// IsSorted проверяет инвариант сортировки по убыванию.
func (s *Snapshot) IsSorted() bool {
	for i := 1; i < len(s.Entries); i++ {
		if s.Entries[i].Score > s.Entries[i-1].Score {
			return false
		}
	}
	return true
}

// Standing - снапшот вместе с живым рангом запрашивающего пользователя.
type Standing struct {
	Snapshot *Snapshot
	Rank     shared.Rank // 0, если пользователь не указан или не найден
}

// HasRank возвращает true, если ранг был вычислен.
func (s Standing) HasRank() bool {
	return !s.Rank.IsUnranked()
}
