package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/soundvault/backend/internal/config"
	"github.com/soundvault/backend/internal/model"
)

type accessClaims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	jwt.RegisteredClaims
}

type streamClaims struct {
	MediaID string `json:"mediaId"`
	jwt.RegisteredClaims
}

// StreamGrant - 스트림 토큰에서 복원한 권한 (subject + 단일 media id)
type StreamGrant struct {
	Subject string
	MediaID string
}

// TokenService signs and parses access, refresh and stream tokens. The three
// secrets are independent so compromise of one does not expose the others.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	streamSecret  []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	streamTTL     time.Duration
}

func NewTokenService(authCfg config.AuthConfig, streamCfg config.StreamConfig) (*TokenService, error) {
	if authCfg.AccessSecret == "" || authCfg.RefreshSecret == "" || streamCfg.Secret == "" {
		return nil, fmt.Errorf("%w: AUTH_ACCESS_SECRET, AUTH_REFRESH_SECRET and STREAM_TOKEN_SECRET are required", ErrMisconfigured)
	}
	if subtle.ConstantTimeCompare([]byte(authCfg.AccessSecret), []byte(authCfg.RefreshSecret)) == 1 {
		return nil, fmt.Errorf("%w: access and refresh secrets must differ", ErrMisconfigured)
	}

	accessTTL, err := time.ParseDuration(authCfg.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_ACCESS_TTL", ErrMisconfigured)
	}
	refreshTTL, err := time.ParseDuration(authCfg.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_REFRESH_TTL", ErrMisconfigured)
	}
	streamTTL, err := time.ParseDuration(streamCfg.TTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid STREAM_TOKEN_TTL", ErrMisconfigured)
	}

	return &TokenService{
		accessSecret:  []byte(authCfg.AccessSecret),
		refreshSecret: []byte(authCfg.RefreshSecret),
		streamSecret:  []byte(streamCfg.Secret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		streamTTL:     streamTTL,
	}, nil
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }
func (s *TokenService) StreamTTL() time.Duration  { return s.streamTTL }

func (s *TokenService) IssueAccess(user *model.User) (string, int64, error) {
	now := time.Now()
	claims := accessClaims{
		Username: user.Username,
		Roles:    user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.accessTTL.Seconds()), nil
}

// IssueRefresh embeds a fresh random jti so every refresh token's signature is
// unique even for the same subject.
func (s *TokenService) IssueRefresh(user *model.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.refreshTTL)
	claims := refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *TokenService) IssueStream(subject, mediaID string) (string, int64, error) {
	now := time.Now()
	claims := streamClaims{
		MediaID: mediaID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.streamTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.streamSecret)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.streamTTL.Seconds()), nil
}

func (s *TokenService) ParseAccess(tokenStr string) (*model.AuthUser, error) {
	claims := &accessClaims{}
	if err := s.parse(tokenStr, claims, s.accessSecret); err != nil {
		return nil, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &model.AuthUser{
		ID:       userID,
		Username: claims.Username,
		Roles:    claims.Roles,
	}, nil
}

// ParseRefresh returns the subject user id of a structurally valid refresh
// token. Registry membership is checked separately by the session manager.
func (s *TokenService) ParseRefresh(tokenStr string) (int64, error) {
	claims := &refreshClaims{}
	if err := s.parse(tokenStr, claims, s.refreshSecret); err != nil {
		return 0, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return userID, nil
}

// ParseStream allows one second of leeway so a token presented at its exact
// expiry second still plays.
func (s *TokenService) ParseStream(tokenStr string) (*StreamGrant, error) {
	claims := &streamClaims{}
	if err := s.parse(tokenStr, claims, s.streamSecret, jwt.WithLeeway(time.Second)); err != nil {
		return nil, err
	}
	return &StreamGrant{
		Subject: claims.Subject,
		MediaID: claims.MediaID,
	}, nil
}

// parse normalizes every signature/format/expiry failure to ErrInvalidToken;
// no library error detail crosses the trust boundary.
func (s *TokenService) parse(tokenStr string, claims jwt.Claims, secret []byte, opts ...jwt.ParserOption) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// HashToken is the one-way hash under which refresh tokens are stored; the
// raw token never touches the database.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
