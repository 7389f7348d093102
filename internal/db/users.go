package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/soundvault/backend/internal/model"
)

func (db *Postgres) EnsureAuthSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT UNIQUE,
			password_hash TEXT NOT NULL,
			roles TEXT[] NOT NULL DEFAULT '{user}',
			failed_login_attempts INT NOT NULL DEFAULT 0,
			lock_until TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS refresh_tokens (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token_hash TEXT NOT NULL UNIQUE,
			expires_at TIMESTAMPTZ NOT NULL,
			ip TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS refresh_tokens_user_id_idx ON refresh_tokens(user_id)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (db *Postgres) CreateUser(ctx context.Context, username string, email *string, passwordHash string, roles []string) (*model.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, username, email, password_hash, roles, failed_login_attempts, lock_until, created_at, updated_at
	`
	return db.scanUser(db.Pool.QueryRow(ctx, query, username, email, passwordHash, roles))
}

func (db *Postgres) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `
		SELECT id, username, email, password_hash, roles, failed_login_attempts, lock_until, created_at, updated_at
		FROM users
		WHERE username = $1
	`
	return db.scanUser(db.Pool.QueryRow(ctx, query, username))
}

func (db *Postgres) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	query := `
		SELECT id, username, email, password_hash, roles, failed_login_attempts, lock_until, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return db.scanUser(db.Pool.QueryRow(ctx, query, userID))
}

// RecordLoginFailure increments the failure counter in a single statement so
// concurrent wrong-password attempts cannot overshoot the threshold. Reaching
// the threshold sets lock_until and resets the counter to 0.
func (db *Postgres) RecordLoginFailure(ctx context.Context, userID int64, threshold int, lockUntil time.Time) (bool, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN 0
				ELSE failed_login_attempts + 1
			END,
			lock_until = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN $3
				ELSE lock_until
			END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING lock_until IS NOT NULL AND lock_until > NOW()
	`
	var locked bool
	if err := db.Pool.QueryRow(ctx, query, userID, threshold, lockUntil).Scan(&locked); err != nil {
		return false, err
	}
	return locked, nil
}

func (db *Postgres) ClearLoginFailures(ctx context.Context, userID int64) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0, lock_until = NULL, updated_at = NOW()
		WHERE id = $1
	`
	_, err := db.Pool.Exec(ctx, query, userID)
	return err
}

func (db *Postgres) scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Roles,
		&user.FailedLoginAttempts,
		&user.LockUntil,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func IsNoRows(err error) bool {
	return err == pgx.ErrNoRows
}
