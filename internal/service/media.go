package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/soundvault/backend/internal/client"
	"github.com/soundvault/backend/internal/db"
	"github.com/soundvault/backend/internal/model"
)

type TrackStore interface {
	CreateTrack(ctx context.Context, id string, ownerID int64, title, storageKey, contentType string) (*model.Track, error)
	GetTrackByID(ctx context.Context, id string) (*model.Track, error)
	ListTracks(ctx context.Context) ([]model.Track, error)
}

type StorageFetcher interface {
	Fetch(ctx context.Context, key, byteRange string) (*client.StorageObject, error)
}

// MediaService authorizes stream requests and relays bytes from object
// storage. The backing storage key never leaves the service.
type MediaService struct {
	tracks  TrackStore
	storage StorageFetcher
	tokens  *TokenService
	logger  zerolog.Logger
}

func NewMediaService(tracks TrackStore, storage StorageFetcher, tokens *TokenService, logger zerolog.Logger) *MediaService {
	return &MediaService{
		tracks:  tracks,
		storage: storage,
		tokens:  tokens,
		logger:  logger,
	}
}

func (s *MediaService) EnsureSchema(ctx context.Context) error {
	type schemaEnsurer interface {
		EnsureMediaSchema(ctx context.Context) error
	}
	if ensurer, ok := s.tracks.(schemaEnsurer); ok {
		return ensurer.EnsureMediaSchema(ctx)
	}
	return nil
}

func (s *MediaService) CreateTrack(ctx context.Context, ownerID int64, req model.CreateTrackRequest) (*model.Track, error) {
	if req.Title == "" || req.StorageKey == "" {
		return nil, ErrInvalidInput
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return s.tracks.CreateTrack(ctx, uuid.NewString(), ownerID, req.Title, req.StorageKey, contentType)
}

func (s *MediaService) ListTracks(ctx context.Context) ([]model.Track, error) {
	return s.tracks.ListTracks(ctx)
}

// IssueStreamToken mints a capability bound to exactly one track for an
// authenticated session subject.
func (s *MediaService) IssueStreamToken(ctx context.Context, user *model.AuthUser, mediaID string) (*model.StreamTokenResponse, error) {
	if _, err := uuid.Parse(mediaID); err != nil {
		return nil, ErrNotFound
	}
	if _, err := s.tracks.GetTrackByID(ctx, mediaID); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	token, expiresIn, err := s.tokens.IssueStream(strconv.FormatInt(user.ID, 10), mediaID)
	if err != nil {
		return nil, err
	}

	return &model.StreamTokenResponse{
		Token:     token,
		ExpiresIn: expiresIn,
	}, nil
}

// Authorize grants access to one media id. A presented stream token is checked
// first and is sufficient on its own; without one, a verified session is
// required. The token's media binding is always enforced.
func (s *MediaService) Authorize(mediaID, streamToken string, session *model.AuthUser) (string, error) {
	if streamToken != "" {
		grant, err := s.tokens.ParseStream(streamToken)
		if err != nil {
			return "", ErrInvalidToken
		}
		if grant.MediaID != mediaID {
			s.logger.Warn().
				Str("granted_media", grant.MediaID).
				Str("requested_media", mediaID).
				Str("subject", grant.Subject).
				Msg("stream token presented for wrong media")
			return "", ErrMediaMismatch
		}
		return grant.Subject, nil
	}

	if session != nil {
		return strconv.FormatInt(session.ID, 10), nil
	}

	return "", ErrMissingToken
}

// Stream resolves the track's private storage key and fetches its bytes,
// forwarding a client byte range upstream when present. The returned body is
// tied to ctx so a client disconnect abandons the upstream fetch.
func (s *MediaService) Stream(ctx context.Context, mediaID, byteRange string) (*client.StorageObject, error) {
	// tracks.id is a uuid column; a malformed id is just absent media, not a
	// query error.
	if _, err := uuid.Parse(mediaID); err != nil {
		return nil, ErrNotFound
	}
	track, err := s.tracks.GetTrackByID(ctx, mediaID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	obj, err := s.storage.Fetch(ctx, track.StorageKey, byteRange)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return obj, nil
}
