package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE USERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    firebase_id TEXT NOT NULL,
    username VARCHAR(30) NOT NULL,
    daily_score NUMERIC(12,2) NOT NULL DEFAULT 0,
    weekly_score NUMERIC(12,2) NOT NULL DEFAULT 0,
    monthly_score NUMERIC(12,2) NOT NULL DEFAULT 0,
    global_score NUMERIC(12,2) NOT NULL DEFAULT 0,
    last_completed_exercise DATE,
    recent_activity JSONB NOT NULL DEFAULT '[]'::jsonb,
    last_username_change TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT users_firebase_id_key UNIQUE (firebase_id),
    CONSTRAINT users_username_key UNIQUE (username),
    CONSTRAINT valid_scores CHECK (
        daily_score >= 0 AND weekly_score >= 0 AND monthly_score >= 0 AND global_score >= 0
    )
);

-- Leaderboard queries order by score, then by registration order
CREATE INDEX IF NOT EXISTS idx_users_daily_score ON users(daily_score DESC, created_at ASC);
CREATE INDEX IF NOT EXISTS idx_users_weekly_score ON users(weekly_score DESC, created_at ASC);
CREATE INDEX IF NOT EXISTS idx_users_monthly_score ON users(monthly_score DESC, created_at ASC);
CREATE INDEX IF NOT EXISTS idx_users_global_score ON users(global_score DESC, created_at ASC);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE EXERCISES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- One set per calendar date; the unique index arbitrates concurrent provisioning.

CREATE TABLE IF NOT EXISTS exercises (
    id UUID PRIMARY KEY,
    date DATE NOT NULL,
    theme VARCHAR(50) NOT NULL DEFAULT 'General',
    content JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT exercises_date_key UNIQUE (date)
);

CREATE INDEX IF NOT EXISTS idx_exercises_date_theme ON exercises(date, theme);
CREATE INDEX IF NOT EXISTS idx_exercises_created_at ON exercises(created_at DESC);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// migrationLockID serialises migrations across API instances starting together.
const migrationLockID int64 = 0x6463635f736368 // "dcc_sch"

// Migration is one forward-only schema step.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

var schema = []Migration{
	{Version: 1, Name: "create_users", SQL: migration001Up},
	{Version: 2, Name: "create_exercises", SQL: migration002Up},
}

// Migrations returns the schema steps in version order.
func Migrations() []Migration {
	return append([]Migration(nil), schema...)
}

// Migrator applies pending migrations and records them in schema_migrations.
type Migrator struct {
	conn *Connection
}

// NewMigrator creates a migrator over conn.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn}
}

// Migrate applies every pending step, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if _, err := m.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	for _, mig := range schema {
		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			return applyOnce(ctx, tx, mig)
		})
		if err != nil {
			return fmt.Errorf("%w: %03d_%s: %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
	}
	return nil
}

// applyOnce takes the transaction-scoped lock, then re-checks the version
// so a second instance sees the first one's commit.
func applyOnce(ctx context.Context, tx pgx.Tx, mig Migration) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return err
	}

	var applied bool
	err := tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", mig.Version,
	).Scan(&applied)
	if err != nil || applied {
		return err
	}

	if _, err := tx.Exec(ctx, mig.SQL); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, "INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", mig.Version, mig.Name)
	return err
}
