package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/soundvault/backend/internal/config"
	"github.com/soundvault/backend/internal/db"
	"github.com/soundvault/backend/internal/model"
)

const (
	accessCookieName  = "soundvault_access"
	refreshCookieName = "soundvault_refresh"
	minUsernameLength = 3
	minPasswordLength = 8
)

type UserStore interface {
	CreateUser(ctx context.Context, username string, email *string, passwordHash string, roles []string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	RecordLoginFailure(ctx context.Context, userID int64, threshold int, lockUntil time.Time) (bool, error)
	ClearLoginFailures(ctx context.Context, userID int64) error
}

type RefreshTokenStore interface {
	InsertRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time, ip, userAgent string) error
	ConsumeRefreshToken(ctx context.Context, userID int64, tokenHash string) (*model.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, userID int64, tokenHash string) error
	DeleteAllRefreshTokens(ctx context.Context, userID int64) (int64, error)
}

// CookieConfig is produced once from deployment config and consumed by every
// cookie-writing path; flags are never re-derived at call sites.
type CookieConfig struct {
	AccessName    string
	RefreshName   string
	Path          string
	Domain        string
	Secure        bool
	SameSite      http.SameSite
	AccessMaxAge  int
	RefreshMaxAge int
}

type TokenPair struct {
	AccessToken      string
	AccessExpiresIn  int64
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Provenance - 로그인/갱신 요청의 출처 메타데이터 (정보성)
type Provenance struct {
	IP        string
	UserAgent string
}

type AuthService struct {
	users       UserStore
	refresh     RefreshTokenStore
	tokens      *TokenService
	hasher      *PasswordHasher
	maxAttempts int
	lockFor     time.Duration
	cookieCfg   CookieConfig
	logger      zerolog.Logger
}

func NewAuthService(users UserStore, refresh RefreshTokenStore, tokens *TokenService, hasher *PasswordHasher, cfg config.AuthConfig, logger zerolog.Logger) (*AuthService, error) {
	maxAttempts, err := strconv.Atoi(cfg.MaxLoginAttempts)
	if err != nil || maxAttempts < 1 {
		return nil, wrapMisconfigured("invalid AUTH_MAX_LOGIN_ATTEMPTS")
	}

	lockFor, err := time.ParseDuration(cfg.LockDuration)
	if err != nil {
		return nil, wrapMisconfigured("invalid AUTH_LOCK_DURATION")
	}

	cookieSecure, err := parseBool(cfg.CookieSecure, true)
	if err != nil {
		return nil, wrapMisconfigured("invalid AUTH_COOKIE_SECURE")
	}

	cookieSameSite, err := parseSameSite(cfg.CookieSameSite)
	if err != nil {
		return nil, wrapMisconfigured("invalid AUTH_COOKIE_SAMESITE")
	}

	if cookieSameSite == http.SameSiteNoneMode && !cookieSecure {
		return nil, wrapMisconfigured("SameSite=None requires Secure cookie")
	}

	cookiePath := cfg.CookiePath
	if strings.TrimSpace(cookiePath) == "" {
		cookiePath = "/"
	}

	return &AuthService{
		users:       users,
		refresh:     refresh,
		tokens:      tokens,
		hasher:      hasher,
		maxAttempts: maxAttempts,
		lockFor:     lockFor,
		cookieCfg: CookieConfig{
			AccessName:    accessCookieName,
			RefreshName:   refreshCookieName,
			Path:          cookiePath,
			Domain:        cfg.CookieDomain,
			Secure:        cookieSecure,
			SameSite:      cookieSameSite,
			AccessMaxAge:  int(tokens.AccessTTL().Seconds()),
			RefreshMaxAge: int(tokens.RefreshTTL().Seconds()),
		},
		logger: logger,
	}, nil
}

func (s *AuthService) CookieConfig() CookieConfig {
	return s.cookieCfg
}

func (s *AuthService) EnsureSchema(ctx context.Context) error {
	type schemaEnsurer interface {
		EnsureAuthSchema(ctx context.Context) error
	}
	if ensurer, ok := s.users.(schemaEnsurer); ok {
		return ensurer.EnsureAuthSchema(ctx)
	}
	return nil
}

// Register creates an account. A duplicate username surfaces as the same
// generic ErrInvalidInput as a validation failure, to avoid enumeration.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = normalizeUsername(username)
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	var emailPtr *string
	if normalized := strings.ToLower(strings.TrimSpace(email)); normalized != "" {
		emailPtr = &normalized
	}

	user, err := s.users.CreateUser(ctx, username, emailPtr, hash, []string{"user"})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrInvalidInput
		}
		return nil, err
	}

	return user, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string, prov Provenance) (*model.User, *TokenPair, error) {
	username = normalizeUsername(username)
	if err := validateCredentials(username, password); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	now := time.Now()
	if user.LockUntil != nil && now.Before(*user.LockUntil) {
		s.logger.Warn().
			Int64("user_id", user.ID).
			Time("lock_until", *user.LockUntil).
			Str("ip", prov.IP).
			Str("user_agent", prov.UserAgent).
			Msg("login attempt for locked account")
		return nil, nil, ErrAccountLocked
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		locked, recordErr := s.users.RecordLoginFailure(ctx, user.ID, s.maxAttempts, now.Add(s.lockFor))
		if recordErr != nil {
			s.logger.Error().Err(recordErr).Int64("user_id", user.ID).Msg("failed to record login failure")
		}
		if locked {
			s.logger.Warn().
				Int64("user_id", user.ID).
				Str("ip", prov.IP).
				Str("user_agent", prov.UserAgent).
				Msg("account locked after repeated login failures")
			return nil, nil, ErrAccountLocked
		}
		return nil, nil, ErrInvalidCredentials
	}

	if err := s.users.ClearLoginFailures(ctx, user.ID); err != nil {
		return nil, nil, err
	}

	pair, err := s.issueSession(ctx, user, prov)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh rotates a refresh token. A structurally valid token that is absent
// from the registry is a replay signal: the whole session family is revoked.
func (s *AuthService) Refresh(ctx context.Context, rawToken string, prov Provenance) (*model.User, *TokenPair, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, nil, ErrMissingToken
	}

	userID, err := s.tokens.ParseRefresh(rawToken)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}

	_, err = s.refresh.ConsumeRefreshToken(ctx, user.ID, HashToken(rawToken))
	if err != nil {
		if db.IsNoRows(err) {
			revoked, revokeErr := s.refresh.DeleteAllRefreshTokens(ctx, user.ID)
			if revokeErr != nil {
				s.logger.Error().Err(revokeErr).Int64("user_id", user.ID).Msg("failed to revoke refresh tokens after reuse")
			}
			s.logger.Warn().
				Int64("user_id", user.ID).
				Int64("revoked", revoked).
				Str("ip", prov.IP).
				Str("user_agent", prov.UserAgent).
				Msg("refresh token reuse detected, session family revoked")
			return nil, nil, ErrSessionInvalidated
		}
		return nil, nil, err
	}

	pair, err := s.issueSession(ctx, user, prov)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Logout removes only the presented token's record; cookie clearing is the
// handler's job and happens regardless of token validity.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if strings.TrimSpace(rawToken) == "" {
		return nil
	}

	userID, err := s.tokens.ParseRefresh(rawToken)
	if err != nil {
		return nil
	}

	return s.refresh.DeleteRefreshToken(ctx, userID, HashToken(rawToken))
}

func (s *AuthService) ParseAccessToken(tokenStr string) (*model.AuthUser, error) {
	return s.tokens.ParseAccess(tokenStr)
}

func (s *AuthService) issueSession(ctx context.Context, user *model.User, prov Provenance) (*TokenPair, error) {
	accessToken, expiresIn, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshExpiresAt, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return nil, err
	}

	if err := s.refresh.InsertRefreshToken(ctx, user.ID, HashToken(refreshToken), refreshExpiresAt, prov.IP, prov.UserAgent); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresIn:  expiresIn,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateCredentials(username, password string) error {
	if len(username) < minUsernameLength || len(username) > 64 {
		return ErrInvalidInput
	}
	if len(password) < minPasswordLength || len(password) > 128 {
		return ErrInvalidInput
	}
	return nil
}

func parseBool(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseBool(value)
}

func parseSameSite(value string) (http.SameSite, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, ErrInvalidInput
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
