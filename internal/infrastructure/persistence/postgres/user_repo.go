package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dailycodechallenge/backend/internal/domain/leaderboard"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
	"github.com/dailycodechallenge/backend/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements user.Repository and leaderboard.ScoreSource.
type UserRepository struct {
	conn *Connection
	now  func() time.Time
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn, now: time.Now}
}

const userColumns = `
	id, firebase_id, username,
	daily_score, weekly_score, monthly_score, global_score,
	COALESCE(to_char(last_completed_exercise, 'YYYY-MM-DD'), ''),
	recent_activity, last_username_change, created_at, updated_at`

// scoreColumn maps a period to its column; the result is safe to interpolate.
func scoreColumn(p leaderboard.Period) (string, error) {
	switch p {
	case leaderboard.PeriodDaily:
		return "daily_score", nil
	case leaderboard.PeriodWeekly:
		return "weekly_score", nil
	case leaderboard.PeriodMonthly:
		return "monthly_score", nil
	case leaderboard.PeriodGlobal:
		return "global_score", nil
	default:
		return "", shared.ErrInvalidPeriod
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (
			id, firebase_id, username,
			daily_score, weekly_score, monthly_score, global_score,
			last_completed_exercise, recent_activity, last_username_change,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::date, $9, $10, $11, $12)
	`

	activity, err := json.Marshal(nonNilActivity(u.RecentActivity))
	if err != nil {
		return fmt.Errorf("failed to marshal recent activity: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		u.ID,
		u.SubjectID.String(),
		u.Username.String(),
		u.Scores.Daily,
		u.Scores.Weekly,
		u.Scores.Monthly,
		u.Scores.Global,
		u.LastCompletedExercise,
		activity,
		nullTime(u.LastUsernameChange),
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			if ConstraintName(err) == constraintUsername {
				return shared.ErrUsernameTaken
			}
			return shared.ErrUserAlreadyExists
		}
		return shared.ErrPersistenceFailure.WithErr(err)
	}

	return nil
}

// GetBySubjectID returns a user by identity-provider subject.
func (r *UserRepository) GetBySubjectID(ctx context.Context, subjectID shared.SubjectID) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE firebase_id = $1`
	return r.scanUser(r.conn.QueryRow(ctx, query, subjectID.String()))
}

// GetByUsername returns a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username shared.Username) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.scanUser(r.conn.QueryRow(ctx, query, username.String()))
}

// UsernameExists checks whether a username is taken.
func (r *UserRepository) UsernameExists(ctx context.Context, username shared.Username) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`,
		username.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Atomic mutations
// ─────────────────────────────────────────────────────────────────────────────

// ApplyGrading locks the row, applies the grading rules, and writes the
// result with a conditional UPDATE so two concurrent gradings for the same
// day cannot both succeed.
func (r *UserRepository) ApplyGrading(ctx context.Context, subjectID shared.SubjectID, g user.Grading) (*user.User, error) {
	var updated *user.User

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		current, err := r.scanUser(tx.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE firebase_id = $1 FOR UPDATE`,
			subjectID.String(),
		))
		if err != nil {
			return err
		}

		now := r.now()
		if err := current.ApplyGrading(g, now); err != nil {
			return err
		}

		activity, err := json.Marshal(current.RecentActivity)
		if err != nil {
			return fmt.Errorf("failed to marshal recent activity: %w", err)
		}

		query := `
			UPDATE users SET
				daily_score = ROUND(daily_score + $2, 2),
				weekly_score = ROUND(weekly_score + $2, 2),
				monthly_score = ROUND(monthly_score + $2, 2),
				global_score = ROUND(global_score + $2, 2),
				last_completed_exercise = $3::date,
				recent_activity = $4,
				updated_at = $5
			WHERE firebase_id = $1
			  AND last_completed_exercise IS DISTINCT FROM $3::date
			RETURNING ` + userColumns

		updated, err = r.scanUser(tx.QueryRow(ctx, query,
			subjectID.String(),
			g.Points,
			g.Today,
			activity,
			now,
		))
		if shared.IsNotFound(err) {
			return shared.ErrAlreadyCompletedToday
		}
		return err
	})
	if err != nil {
		if shared.IsConflict(err) || shared.IsNotFound(err) || shared.IsValidation(err) {
			return nil, err
		}
		return nil, shared.ErrPersistenceFailure.WithErr(err)
	}

	return updated, nil
}

// UpdateUsername sets a new username and the change timestamp.
func (r *UserRepository) UpdateUsername(ctx context.Context, subjectID shared.SubjectID, username shared.Username, changedAt time.Time) (*user.User, error) {
	query := `
		UPDATE users SET
			username = $2,
			last_username_change = $3,
			updated_at = $3
		WHERE firebase_id = $1
		RETURNING ` + userColumns

	u, err := r.scanUser(r.conn.QueryRow(ctx, query, subjectID.String(), username.String(), changedAt))
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, shared.ErrUsernameTaken
		}
		return nil, err
	}
	return u, nil
}

// ResetScores zeroes one period counter for every user.
func (r *UserRepository) ResetScores(ctx context.Context, period leaderboard.Period) (int64, error) {
	if !period.IsResettable() {
		return 0, shared.ErrInvalidPeriod
	}
	col, err := scoreColumn(period)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`UPDATE users SET %s = 0, updated_at = NOW() WHERE %s <> 0`, col, col)
	tag, err := r.conn.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to reset %s scores: %w", period, err)
	}
	return tag.RowsAffected(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// leaderboard.ScoreSource
// ─────────────────────────────────────────────────────────────────────────────

// TopByPeriod returns the highest scores of a period. Ties keep registration order.
func (r *UserRepository) TopByPeriod(ctx context.Context, period leaderboard.Period, limit int) ([]leaderboard.Entry, error) {
	col, err := scoreColumn(period)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT username, %s, firebase_id
		FROM users
		ORDER BY %s DESC, created_at ASC
		LIMIT $1
	`, col, col)

	rows, err := r.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s leaderboard: %w", period, err)
	}
	defer rows.Close()

	entries := make([]leaderboard.Entry, 0, limit)
	for rows.Next() {
		var e leaderboard.Entry
		if err := rows.Scan(&e.Username, &e.Score, &e.SubjectID); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// CountGreater counts users with a strictly greater score for a period.
func (r *UserRepository) CountGreater(ctx context.Context, period leaderboard.Period, score float64) (int64, error) {
	col, err := scoreColumn(period)
	if err != nil {
		return 0, err
	}

	var count int64
	err = r.conn.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM users WHERE %s > $1::numeric`, col),
		score,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count greater scores: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *UserRepository) scanUser(row pgx.Row) (*user.User, error) {
	var (
		u              user.User
		subject        string
		username       string
		activity       []byte
		usernameChange *time.Time
	)

	err := row.Scan(
		&u.ID,
		&subject,
		&username,
		&u.Scores.Daily,
		&u.Scores.Weekly,
		&u.Scores.Monthly,
		&u.Scores.Global,
		&u.LastCompletedExercise,
		&activity,
		&usernameChange,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, err
	}

	u.SubjectID = shared.SubjectID(subject)
	u.Username = shared.Username(username)
	if usernameChange != nil {
		u.LastUsernameChange = *usernameChange
	}

	u.RecentActivity = user.ActivityLog{}
	if len(activity) > 0 {
		if err := json.Unmarshal(activity, &u.RecentActivity); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recent activity: %w", err)
		}
	}

	return &u, nil
}

func nonNilActivity(l user.ActivityLog) user.ActivityLog {
	if l == nil {
		return user.ActivityLog{}
	}
	return l
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
