package user

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dailycodechallenge/backend/internal/domain/leaderboard"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DIFFICULTY
// ══════════════════════════════════════════════════════════════════════════════

// Difficulty - уровень сложности упражнения.
type Difficulty string

const (
	DifficultyEasy         Difficulty = "easy"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyHard         Difficulty = "hard"
	DifficultyExtreme      Difficulty = "extreme"
)

// Множители строго возрастают; итоговый балл нормируется на максимальный.
var multipliers = map[Difficulty]decimal.Decimal{
	DifficultyEasy:         decimal.RequireFromString("1.0"),
	DifficultyIntermediate: decimal.RequireFromString("1.5"),
	DifficultyHard:         decimal.RequireFromString("2.0"),
	DifficultyExtreme:      decimal.RequireFromString("2.5"),
}

var (
	maxMultiplier = decimal.RequireFromString("2.5")
	maxScore      = decimal.NewFromInt(10)
)

// Difficulties возвращает все уровни в порядке возрастания.
func Difficulties() []Difficulty {
	return []Difficulty{DifficultyEasy, DifficultyIntermediate, DifficultyHard, DifficultyExtreme}
}

// IsValid проверяет, что уровень известен.
func (d Difficulty) IsValid() bool {
	_, ok := multipliers[d]
	return ok
}

// Multiplier возвращает множитель уровня.
func (d Difficulty) Multiplier() float64 {
	m, _ := multipliers[d].Float64()
	return m
}

// ParseDifficulty разбирает уровень из запроса.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(s)
	if !d.IsValid() {
		return "", shared.ErrInvalidDifficulty
	}
	return d, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORE RULES
// ══════════════════════════════════════════════════════════════════════════════

// FinalScore вычисляет итоговый балл: min(10, round2(raw * multiplier / 2.5)).
// Возвращает ErrNonPositiveScore для raw <= 0.
func FinalScore(raw float64, d Difficulty) (float64, error) {
	if !d.IsValid() {
		return 0, shared.ErrInvalidDifficulty
	}
	if raw <= 0 || math.IsNaN(raw) {
		return 0, shared.ErrNonPositiveScore
	}
	score := decimal.NewFromFloat(raw).Mul(multipliers[d]).Div(maxMultiplier).Round(2)
	if score.GreaterThan(maxScore) {
		score = maxScore
	}
	f, _ := score.Float64()
	return f, nil
}

// AddScore прибавляет delta к счётчику и округляет сумму до двух знаков.
// Округление после сложения не накапливает ошибку усечения.
func AddScore(counter, delta float64) float64 {
	f, _ := decimal.NewFromFloat(counter).Add(decimal.NewFromFloat(delta)).Round(2).Float64()
	return f
}

// Scores - четыре счётчика пользователя.
type Scores struct {
	Daily   float64 `json:"dailyScore"`
	Weekly  float64 `json:"weeklyScore"`
	Monthly float64 `json:"monthlyScore"`
	Global  float64 `json:"globalScore"`
}

// Add прибавляет балл ко всем четырём счётчикам.
func (s Scores) Add(points float64) Scores {
	return Scores{
		Daily:   AddScore(s.Daily, points),
		Weekly:  AddScore(s.Weekly, points),
		Monthly: AddScore(s.Monthly, points),
		Global:  AddScore(s.Global, points),
	}
}

// Get возвращает счёт периода.
func (s Scores) Get(p leaderboard.Period) float64 {
	switch p {
	case leaderboard.PeriodDaily:
		return s.Daily
	case leaderboard.PeriodWeekly:
		return s.Weekly
	case leaderboard.PeriodMonthly:
		return s.Monthly
	default:
		return s.Global
	}
}

// Reset обнуляет счёт периода. Глобальный счёт не сбрасывается.
func (s Scores) Reset(p leaderboard.Period) Scores {
	switch p {
	case leaderboard.PeriodDaily:
		s.Daily = 0
	case leaderboard.PeriodWeekly:
		s.Weekly = 0
	case leaderboard.PeriodMonthly:
		s.Monthly = 0
	}
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// RECENT ACTIVITY
// ══════════════════════════════════════════════════════════════════════════════

// MaxRecentActivity - глубина журнала последних попыток.
const MaxRecentActivity = 2

const (
	StatusCompletedEN = "Completed"
	StatusCompletedES = "Completado"
)

// Activity - запись о засчитанной попытке.
type Activity struct {
	Date        string  `json:"date"`
	ChallengeEN string  `json:"challengeEN"`
	ChallengeES string  `json:"challengeES"`
	StatusEN    string  `json:"statusEN"`
	StatusES    string  `json:"statusES"`
	Points      float64 `json:"points"`
	Feedback    string  `json:"feedback"`
}

// NewCompletedActivity создаёт запись о выполненном упражнении.
func NewCompletedActivity(date, titleEN, titleES string, points float64, feedback string) Activity {
	return Activity{
		Date:        date,
		ChallengeEN: titleEN,
		ChallengeES: titleES,
		StatusEN:    StatusCompletedEN,
		StatusES:    StatusCompletedES,
		Points:      points,
		Feedback:    feedback,
	}
}

// ActivityLog - FIFO-журнал глубины MaxRecentActivity.
type ActivityLog []Activity

// Push добавляет запись в хвост, вытесняя самую старую при переполнении.
func (l ActivityLog) Push(a Activity) ActivityLog {
	out := make(ActivityLog, 0, MaxRecentActivity)
	out = append(out, l...)
	out = append(out, a)
	if len(out) > MaxRecentActivity {
		out = out[len(out)-MaxRecentActivity:]
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// USER ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// User - пользователь, привязанный к внешнему провайдеру идентификации.
type User struct {
	ID                    string
	SubjectID             shared.SubjectID
	Username              shared.Username
	Scores                Scores
	LastCompletedExercise string // YYYY-MM-DD в опорном часовом поясе
	RecentActivity        ActivityLog
	LastUsernameChange    time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewUserParams - параметры создания пользователя.
type NewUserParams struct {
	ID        string
	SubjectID shared.SubjectID
	Username  shared.Username
	Now       time.Time
}

// NewUser создаёт пользователя с нулевыми счётчиками.
func NewUser(p NewUserParams) (*User, error) {
	if !p.SubjectID.IsValid() {
		return nil, shared.ErrInvalidToken
	}
	if !p.Username.IsValid() {
		return nil, shared.ErrInvalidUsername
	}
	return &User{
		ID:             p.ID,
		SubjectID:      p.SubjectID,
		Username:       p.Username,
		RecentActivity: ActivityLog{},
		CreatedAt:      p.Now,
		UpdatedAt:      p.Now,
	}, nil
}

// CompletedOn проверяет, засчитана ли попытка в указанный день.
func (u *User) CompletedOn(date string) bool {
	return u.LastCompletedExercise == date
}

// Grading - засчитываемый результат проверки.
type Grading struct {
	Today    string
	Points   float64
	Activity Activity
}

// ApplyGrading применяет результат: не более одной попытки в день.
func (u *User) ApplyGrading(g Grading, now time.Time) error {
	if u.CompletedOn(g.Today) {
		return shared.ErrAlreadyCompletedToday
	}
	if g.Points <= 0 {
		return shared.ErrNonPositiveScore
	}
	u.Scores = u.Scores.Add(g.Points)
	u.RecentActivity = u.RecentActivity.Push(g.Activity)
	u.LastCompletedExercise = g.Today
	u.UpdatedAt = now
	return nil
}

// UsernameCooldownDays возвращает, сколько дней осталось до разрешённой смены имени.
// Ноль означает, что менять можно.
func (u *User) UsernameCooldownDays(now time.Time, cooldown time.Duration) int {
	if u.LastUsernameChange.IsZero() {
		return 0
	}
	left := u.LastUsernameChange.Add(cooldown).Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// ChangeUsername меняет имя с учётом периода ожидания.
func (u *User) ChangeUsername(name shared.Username, now time.Time, cooldown time.Duration) error {
	if !name.IsValid() {
		return shared.ErrInvalidUsername
	}
	if days := u.UsernameCooldownDays(now, cooldown); days > 0 {
		return &shared.UsernameCooldownError{DaysRemaining: days}
	}
	u.Username = name
	u.LastUsernameChange = now
	u.UpdatedAt = now
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot - сериализуемое представление пользователя для кеша и API.
type Snapshot struct {
	Username              string      `json:"username"`
	LastCompletedExercise string      `json:"lastCompletedExercise"`
	Scores                Scores      `json:"scores"`
	RecentActivity        ActivityLog `json:"recentActivity"`
}

// ToSnapshot строит снапшот пользователя.
func (u *User) ToSnapshot() *Snapshot {
	activity := u.RecentActivity
	if activity == nil {
		activity = ActivityLog{}
	}
	return &Snapshot{
		Username:              u.Username.String(),
		LastCompletedExercise: u.LastCompletedExercise,
		Scores:                u.Scores,
		RecentActivity:        activity,
	}
}
