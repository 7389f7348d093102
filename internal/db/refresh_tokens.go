package db

import (
	"context"
	"time"

	"github.com/soundvault/backend/internal/model"
)

func (db *Postgres) InsertRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time, ip, userAgent string) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := db.Pool.Exec(ctx, query, userID, tokenHash, expiresAt, ip, userAgent)
	return err
}

// ConsumeRefreshToken deletes the matching unexpired record and returns it.
// The delete is the arbiter for concurrent refreshes with the same token:
// exactly one caller gets the row, the rest see pgx.ErrNoRows.
func (db *Postgres) ConsumeRefreshToken(ctx context.Context, userID int64, tokenHash string) (*model.RefreshToken, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1 AND token_hash = $2 AND expires_at > NOW()
		RETURNING id, user_id, token_hash, expires_at, ip, user_agent, created_at
	`
	var token model.RefreshToken
	err := db.Pool.QueryRow(ctx, query, userID, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.IP,
		&token.UserAgent,
		&token.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (db *Postgres) DeleteRefreshToken(ctx context.Context, userID int64, tokenHash string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1 AND token_hash = $2
	`
	_, err := db.Pool.Exec(ctx, query, userID, tokenHash)
	return err
}

func (db *Postgres) DeleteAllRefreshTokens(ctx context.Context, userID int64) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1
	`
	tag, err := db.Pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (db *Postgres) DeleteExpiredRefreshTokens(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at <= NOW()
	`
	tag, err := db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
