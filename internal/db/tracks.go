package db

import (
	"context"

	"github.com/soundvault/backend/internal/model"
)

func (db *Postgres) EnsureMediaSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS tracks (
			id UUID PRIMARY KEY,
			owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			storage_key TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT 'audio/mpeg',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	_, err := db.Pool.Exec(ctx, query)
	return err
}

func (db *Postgres) CreateTrack(ctx context.Context, id string, ownerID int64, title, storageKey, contentType string) (*model.Track, error) {
	query := `
		INSERT INTO tracks (id, owner_id, title, storage_key, content_type, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, owner_id, title, storage_key, content_type, created_at
	`
	var track model.Track
	err := db.Pool.QueryRow(ctx, query, id, ownerID, title, storageKey, contentType).Scan(
		&track.ID,
		&track.OwnerID,
		&track.Title,
		&track.StorageKey,
		&track.ContentType,
		&track.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &track, nil
}

func (db *Postgres) GetTrackByID(ctx context.Context, id string) (*model.Track, error) {
	query := `
		SELECT id, owner_id, title, storage_key, content_type, created_at
		FROM tracks
		WHERE id = $1
	`
	var track model.Track
	err := db.Pool.QueryRow(ctx, query, id).Scan(
		&track.ID,
		&track.OwnerID,
		&track.Title,
		&track.StorageKey,
		&track.ContentType,
		&track.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &track, nil
}

func (db *Postgres) ListTracks(ctx context.Context) ([]model.Track, error) {
	query := `
		SELECT id, owner_id, title, storage_key, content_type, created_at
		FROM tracks
		ORDER BY created_at DESC
	`
	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []model.Track
	for rows.Next() {
		var track model.Track
		if err := rows.Scan(
			&track.ID,
			&track.OwnerID,
			&track.Title,
			&track.StorageKey,
			&track.ContentType,
			&track.CreatedAt,
		); err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}
