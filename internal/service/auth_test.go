package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/soundvault/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[int64]*model.User)}
}

func (f *fakeUserStore) CreateUser(ctx context.Context, username string, email *string, passwordHash string, roles []string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			return nil, &pgconn.PgError{Code: "23505"}
		}
	}
	f.nextID++
	user := &model.User{
		ID:           f.nextID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Roles:        roles,
	}
	f.users[user.ID] = user
	return copyUser(user), nil
}

func (f *fakeUserStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserStore) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		return copyUser(u), nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserStore) RecordLoginFailure(ctx context.Context, userID int64, threshold int, lockUntil time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if u.FailedLoginAttempts+1 >= threshold {
		u.FailedLoginAttempts = 0
		u.LockUntil = &lockUntil
	} else {
		u.FailedLoginAttempts++
	}
	return u.LockUntil != nil && u.LockUntil.After(time.Now()), nil
}

func (f *fakeUserStore) ClearLoginFailures(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.FailedLoginAttempts = 0
		u.LockUntil = nil
	}
	return nil
}

func (f *fakeUserStore) setLockUntil(userID int64, until *time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID].LockUntil = until
}

func copyUser(u *model.User) *model.User {
	c := *u
	return &c
}

type fakeRefreshStore struct {
	mu      sync.Mutex
	records map[string]model.RefreshToken
}

func newFakeRefreshStore() *fakeRefreshStore {
	return &fakeRefreshStore{records: make(map[string]model.RefreshToken)}
}

func (f *fakeRefreshStore) InsertRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time, ip, userAgent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[tokenHash] = model.RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		IP:        ip,
		UserAgent: userAgent,
	}
	return nil
}

func (f *fakeRefreshStore) ConsumeRefreshToken(ctx context.Context, userID int64, tokenHash string) (*model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[tokenHash]
	if !ok || rec.UserID != userID || !rec.ExpiresAt.After(time.Now()) {
		return nil, pgx.ErrNoRows
	}
	delete(f.records, tokenHash)
	return &rec, nil
}

func (f *fakeRefreshStore) DeleteRefreshToken(ctx context.Context, userID int64, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[tokenHash]; ok && rec.UserID == userID {
		delete(f.records, tokenHash)
	}
	return nil
}

func (f *fakeRefreshStore) DeleteAllRefreshTokens(ctx context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for hash, rec := range f.records {
		if rec.UserID == userID {
			delete(f.records, hash)
			n++
		}
	}
	return n, nil
}

func (f *fakeRefreshStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type authFixture struct {
	svc     *AuthService
	users   *fakeUserStore
	refresh *fakeRefreshStore
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	authCfg, streamCfg := testTokenConfig()
	authCfg.MaxLoginAttempts = "5"
	authCfg.LockDuration = "15m"
	authCfg.CookieSecure = "false"

	tokens, err := NewTokenService(authCfg, streamCfg)
	require.NoError(t, err)

	users := newFakeUserStore()
	refresh := newFakeRefreshStore()

	svc, err := NewAuthService(users, refresh, tokens, testHasher(t), authCfg, zerolog.Nop())
	require.NoError(t, err)

	return &authFixture{svc: svc, users: users, refresh: refresh}
}

func (fx *authFixture) register(t *testing.T, username, password string) *model.User {
	t.Helper()
	user, err := fx.svc.Register(context.Background(), username, "", password)
	require.NoError(t, err)
	return user
}

var testProv = Provenance{IP: "203.0.113.9", UserAgent: "go-test"}

func TestRegisterNormalizesUsername(t *testing.T) {
	fx := newAuthFixture(t)

	user := fx.register(t, "  ALICE ", "secret123")
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, []string{"user"}, user.Roles)
}

func TestRegisterNormalizesEmail(t *testing.T) {
	fx := newAuthFixture(t)

	user, err := fx.svc.Register(context.Background(), "alice", " Alice@Example.Com ", "secret123")
	require.NoError(t, err)
	require.NotNil(t, user.Email)
	assert.Equal(t, "alice@example.com", *user.Email)
}

func TestRegisterDuplicateIsGeneric(t *testing.T) {
	fx := newAuthFixture(t)
	fx.register(t, "alice", "secret123")

	_, err := fx.svc.Register(context.Background(), "alice", "", "secret456")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRegisterValidatesInput(t *testing.T) {
	fx := newAuthFixture(t)

	_, err := fx.svc.Register(context.Background(), "al", "", "secret123")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = fx.svc.Register(context.Background(), "alice", "", "short")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLoginUnknownUserAndWrongPasswordIndistinguishable(t *testing.T) {
	fx := newAuthFixture(t)
	fx.register(t, "alice", "secret123")

	_, _, errUnknown := fx.svc.Login(context.Background(), "nobody", "secret123", testProv)
	_, _, errWrong := fx.svc.Login(context.Background(), "alice", "wrongpass", testProv)

	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestLoginSuccessIssuesSession(t *testing.T) {
	fx := newAuthFixture(t)
	fx.register(t, "alice", "secret123")

	user, pair, err := fx.svc.Login(context.Background(), "Alice", "secret123", testProv)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, 1, fx.refresh.count())

	me, err := fx.svc.ParseAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, []string{"user"}, me.Roles)
}

func TestLockoutAfterThresholdFailures(t *testing.T) {
	fx := newAuthFixture(t)
	fx.register(t, "alice", "secret123")

	for i := 0; i < 4; i++ {
		_, _, err := fx.svc.Login(context.Background(), "alice", "wrongpass", testProv)
		assert.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i+1)
	}

	// The fifth failure trips the lock.
	_, _, err := fx.svc.Login(context.Background(), "alice", "wrongpass", testProv)
	assert.ErrorIs(t, err, ErrAccountLocked)

	// Even the correct password is rejected while the lock holds.
	_, _, err = fx.svc.Login(context.Background(), "alice", "secret123", testProv)
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestLockLiftsAfterWindow(t *testing.T) {
	fx := newAuthFixture(t)
	user := fx.register(t, "alice", "secret123")

	for i := 0; i < 5; i++ {
		fx.svc.Login(context.Background(), "alice", "wrongpass", testProv)
	}

	past := time.Now().Add(-time.Second)
	fx.users.setLockUntil(user.ID, &past)

	got, _, err := fx.svc.Login(context.Background(), "alice", "secret123", testProv)
	require.NoError(t, err)
	assert.Equal(t, 0, got.FailedLoginAttempts)

	stored, err := fx.users.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockUntil)
}

func TestRefreshRotatesToken(t *testing.T) {
	fx := newAuthFixture(t)
	fx.register(t, "alice", "secret123")

	_, pair, err := fx.svc.Login(context.Background(), "alice", "secret123", testProv)
	require.NoError(t, err)

	_, rotated, err := fx.svc.Refresh(context.Background(), pair.RefreshToken, testProv)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	assert.Equal(t, 1, fx.refresh.count())
}

func TestRefreshReuseRevokesSessionFamily(t *testing.T) {
	fx := newAuthFixture(t)
	fx.register(t, "alice", "secret123")

	// Two independent sessions for the same account.
	_, first, err := fx.svc.Login(context.Background(), "alice", "secret123", testProv)
	require.NoError(t, err)
	_, other, err := fx.svc.Login(context.Background(), "alice", "secret123", testProv)
	require.NoError(t, err)

	_, rotated, err := fx.svc.Refresh(context.Background(), first.RefreshToken, testProv)
	require.NoError(t, err)

	// Replaying the consumed token is a theft signal.
	_, _, err = fx.svc.Refresh(context.Background(), first.RefreshToken, testProv)
	assert.ErrorIs(t, err, ErrSessionInvalidated)
	assert.Equal(t, 0, fx.refresh.count())

	// Every other token of the account is dead too.
	_, _, err = fx.svc.Refresh(context.Background(), rotated.RefreshToken, testProv)
	assert.ErrorIs(t, err, ErrSessionInvalidated)
	_, _, err = fx.svc.Refresh(context.Background(), other.RefreshToken, testProv)
	assert.ErrorIs(t, err, ErrSessionInvalidated)
}

func TestRefreshMissingAndGarbageTokens(t *testing.T) {
	fx := newAuthFixture(t)

	_, _, err := fx.svc.Refresh(context.Background(), "", testProv)
	assert.ErrorIs(t, err, ErrMissingToken)

	_, _, err = fx.svc.Refresh(context.Background(), "not-a-jwt", testProv)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogoutRemovesOnlyPresentedToken(t *testing.T) {
	fx := newAuthFixture(t)
	fx.register(t, "alice", "secret123")

	_, first, err := fx.svc.Login(context.Background(), "alice", "secret123", testProv)
	require.NoError(t, err)
	_, second, err := fx.svc.Login(context.Background(), "alice", "secret123", testProv)
	require.NoError(t, err)

	require.NoError(t, fx.svc.Logout(context.Background(), first.RefreshToken))
	assert.Equal(t, 1, fx.refresh.count())

	// The surviving session still refreshes.
	_, _, err = fx.svc.Refresh(context.Background(), second.RefreshToken, testProv)
	assert.NoError(t, err)
}

func TestLogoutToleratesGarbage(t *testing.T) {
	fx := newAuthFixture(t)

	assert.NoError(t, fx.svc.Logout(context.Background(), ""))
	assert.NoError(t, fx.svc.Logout(context.Background(), "garbage"))
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	fx := newAuthFixture(t)
	fx.register(t, "alice", "secret123")

	_, pair, err := fx.svc.Login(context.Background(), "alice", "secret123", testProv)
	require.NoError(t, err)

	const workers = 8
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := fx.svc.Refresh(context.Background(), pair.RefreshToken, testProv)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrSessionInvalidated)
		}
	}
	assert.Equal(t, 1, wins)
}
