package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dailycodechallenge/backend/internal/domain/exercise"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXERCISE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ExerciseRepository implements exercise.Repository for PostgreSQL.
type ExerciseRepository struct {
	conn *Connection
}

// NewExerciseRepository creates a new ExerciseRepository.
func NewExerciseRepository(conn *Connection) *ExerciseRepository {
	return &ExerciseRepository{conn: conn}
}

const exerciseColumns = `id, to_char(date, 'YYYY-MM-DD'), theme, content, created_at`

// FindByDateAndTheme returns the set stored for a date and theme.
func (r *ExerciseRepository) FindByDateAndTheme(ctx context.Context, date string, theme exercise.Theme) (*exercise.Set, error) {
	query := `SELECT ` + exerciseColumns + ` FROM exercises WHERE date = $1::date AND theme = $2`
	return r.scanSet(r.conn.QueryRow(ctx, query, date, theme.String()))
}

// FindByDate returns the set stored for a date regardless of theme.
func (r *ExerciseRepository) FindByDate(ctx context.Context, date string) (*exercise.Set, error) {
	query := `SELECT ` + exerciseColumns + ` FROM exercises WHERE date = $1::date`
	return r.scanSet(r.conn.QueryRow(ctx, query, date))
}

// Recent returns the newest sets first.
func (r *ExerciseRepository) Recent(ctx context.Context, limit int) ([]*exercise.Set, error) {
	query := `SELECT ` + exerciseColumns + ` FROM exercises ORDER BY date DESC LIMIT $1`

	rows, err := r.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent exercises: %w", err)
	}
	defer rows.Close()

	sets := make([]*exercise.Set, 0, limit)
	for rows.Next() {
		set, err := r.scanSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}

	return sets, rows.Err()
}

// Insert stores a new set. A second set for the same date violates the
// unique date constraint and is reported as shared.ErrAlreadyExists.
func (r *ExerciseRepository) Insert(ctx context.Context, set *exercise.Set) error {
	content, err := json.Marshal(set.Exercise)
	if err != nil {
		return fmt.Errorf("failed to marshal exercise content: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO exercises (id, date, theme, content, created_at)
		VALUES ($1, $2::date, $3, $4, $5)
	`, set.ID, set.Date, set.Theme.String(), content, set.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: exercise set for %s", shared.ErrAlreadyExists, set.Date)
		}
		return fmt.Errorf("failed to insert exercise: %w", err)
	}

	return nil
}

// DeleteOlderThan removes sets dated strictly before cutoff.
func (r *ExerciseRepository) DeleteOlderThan(ctx context.Context, cutoff string) (int64, error) {
	tag, err := r.conn.Exec(ctx, `DELETE FROM exercises WHERE date < $1::date`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old exercises: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ExerciseRepository) scanSet(row pgx.Row) (*exercise.Set, error) {
	var (
		set     exercise.Set
		theme   string
		content []byte
	)

	if err := row.Scan(&set.ID, &set.Date, &theme, &content, &set.CreatedAt); err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrExerciseNotFound
		}
		return nil, fmt.Errorf("failed to scan exercise: %w", err)
	}

	set.Theme = exercise.Theme(theme)
	if err := json.Unmarshal(content, &set.Exercise); err != nil {
		return nil, fmt.Errorf("failed to unmarshal exercise content: %w", err)
	}

	return &set, nil
}
