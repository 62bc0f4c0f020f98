// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/course-portal/internal/config"
	"github.com/carterperez-dev/course-portal/internal/core"
)

type memAccounts struct {
	mu   sync.Mutex
	byID map[string]*Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[string]*Account{}}
}

func (m *memAccounts) Create(_ context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.byID {
		if existing.Email == a.Email {
			return fmt.Errorf("create account: %w", core.ErrDuplicateKey)
		}
	}
	cp := *a
	cp.CreatedAt = time.Now()
	m.byID[a.ID] = &cp
	return nil
}

func (m *memAccounts) GetByID(_ context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.byID {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get account by email: %w", core.ErrNotFound)
}

func (m *memAccounts) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("update password: %w", core.ErrNotFound)
	}
	a.PasswordHash = hash
	a.TokenVersion++
	return nil
}

func (m *memAccounts) RehashPassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.byID[id]; ok {
		a.PasswordHash = hash
	}
	return nil
}

func (m *memAccounts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return fmt.Errorf("delete account: %w", core.ErrNotFound)
	}
	delete(m.byID, id)
	return nil
}

type memTokens struct {
	mu     sync.Mutex
	byHash map[string]*RefreshToken
}

func newMemTokens() *memTokens {
	return &memTokens{byHash: map[string]*RefreshToken{}}
}

func (m *memTokens) Create(_ context.Context, t *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *t
	m.byHash[t.TokenHash] = &cp
	return nil
}

func (m *memTokens) FindByHash(_ context.Context, hash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.byHash[hash]
	if !ok {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *memTokens) each(fn func(*RefreshToken)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.byHash {
		fn(t)
	}
}

func (m *memTokens) MarkAsUsed(_ context.Context, id, replacedBy string) error {
	m.each(func(t *RefreshToken) {
		if t.ID == id {
			t.IsUsed = true
			t.ReplacedByID = &replacedBy
		}
	})
	return nil
}

func (m *memTokens) RevokeByID(_ context.Context, id string) error {
	now := time.Now()
	m.each(func(t *RefreshToken) {
		if t.ID == id {
			t.RevokedAt = &now
		}
	})
	return nil
}

func (m *memTokens) RevokeByFamilyID(_ context.Context, familyID string) error {
	now := time.Now()
	m.each(func(t *RefreshToken) {
		if t.FamilyID == familyID {
			t.RevokedAt = &now
		}
	})
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID string) error {
	now := time.Now()
	m.each(func(t *RefreshToken) {
		if t.UserID == userID {
			t.RevokedAt = &now
		}
	})
	return nil
}

func newTestJWT(t *testing.T) *JWTManager {
	t.Helper()

	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	require.NoError(t, GenerateKeyPair(priv, pub))

	m, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:     priv,
		PublicKeyPath:      pub,
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 24 * time.Hour,
		Issuer:             "course-portal",
		Audience:           "course-portal",
	})
	require.NoError(t, err)
	return m
}

type fixture struct {
	svc      *Service
	accounts *memAccounts
	tokens   *memTokens
	verifier *SessionVerifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	accounts := newMemAccounts()
	tokens := newMemTokens()
	jwtManager := newTestJWT(t)

	svc := NewService(tokens, accounts, jwtManager, nil, nil, nil, config.IdentityConfig{
		MinPasswordLength: 6,
		ResetTokenTTL:     time.Hour,
	})

	return &fixture{
		svc:      svc,
		accounts: accounts,
		tokens:   tokens,
		verifier: NewSessionVerifier(jwtManager, accounts, nil),
	}
}

func TestCreateAccountThenLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.CreateAccount(ctx, "  Ana@Example.com ", "secret1", nil)
	require.NoError(t, err)
	assert.True(t, core.IsUUID(id))

	resp, err := f.svc.Login(ctx, LoginRequest{Email: "ana@example.com", Password: "secret1"}, "ua", "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, id, resp.User.ID)
	assert.Equal(t, "ana@example.com", resp.User.Email)
	assert.Equal(t, "Bearer", resp.Tokens.TokenType)

	claims, err := f.verifier.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
}

func TestCreateAccountRejectsDuplicateAndShortPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateAccount(ctx, "dup@example.com", "secret1", nil)
	require.NoError(t, err)

	_, err = f.svc.CreateAccount(ctx, "dup@example.com", "secret2", nil)
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = f.svc.CreateAccount(ctx, "short@example.com", "12345", nil)
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateAccount(ctx, "bob@example.com", "secret1", nil)
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "wrong-pass"}, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "secret1"}, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateAccount(ctx, "cy@example.com", "secret1", nil)
	require.NoError(t, err)

	first, err := f.svc.Login(ctx, LoginRequest{Email: "cy@example.com", Password: "secret1"}, "", "")
	require.NoError(t, err)

	second, err := f.svc.Refresh(ctx, first.Tokens.RefreshToken, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.RefreshToken, second.Tokens.RefreshToken)

	_, err = f.svc.Refresh(ctx, first.Tokens.RefreshToken, "", "")
	assert.ErrorIs(t, err, ErrTokenReuse)

	_, err = f.svc.Refresh(ctx, second.Tokens.RefreshToken, "", "")
	assert.ErrorIs(t, err, core.ErrTokenRevoked)

	_, err = f.svc.Refresh(ctx, "not-a-token", "", "")
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestUpdatePasswordRevokesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.CreateAccount(ctx, "di@example.com", "secret1", nil)
	require.NoError(t, err)

	resp, err := f.svc.Login(ctx, LoginRequest{Email: "di@example.com", Password: "secret1"}, "", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdatePassword(ctx, id, "secret2"))

	_, err = f.verifier.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)

	_, err = f.svc.Refresh(ctx, resp.Tokens.RefreshToken, "", "")
	assert.ErrorIs(t, err, core.ErrTokenRevoked)

	_, err = f.svc.Login(ctx, LoginRequest{Email: "di@example.com", Password: "secret2"}, "", "")
	assert.NoError(t, err)

	err = f.svc.UpdatePassword(ctx, "00000000-0000-0000-0000-000000000000", "secret3")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeletedAccountTokenRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.CreateAccount(ctx, "ed@example.com", "secret1", nil)
	require.NoError(t, err)

	resp, err := f.svc.Login(ctx, LoginRequest{Email: "ed@example.com", Password: "secret1"}, "", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteAccount(ctx, id))

	_, err = f.verifier.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestLogoutOwnershipCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.CreateAccount(ctx, "fi@example.com", "secret1", nil)
	require.NoError(t, err)

	resp, err := f.svc.Login(ctx, LoginRequest{Email: "fi@example.com", Password: "secret1"}, "", "")
	require.NoError(t, err)

	err = f.svc.Logout(ctx, resp.Tokens.RefreshToken, "someone-else")
	assert.ErrorIs(t, err, core.ErrForbidden)

	require.NoError(t, f.svc.Logout(ctx, resp.Tokens.RefreshToken, id))

	_, err = f.svc.Refresh(ctx, resp.Tokens.RefreshToken, "", "")
	assert.ErrorIs(t, err, core.ErrTokenRevoked)

	assert.NoError(t, f.svc.Logout(ctx, "", id))
}

func TestResetLink(t *testing.T) {
	link, err := resetLink("", "https://portal.example.com/reset?lang=pt", "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example.com/reset?lang=pt&token=abc", link)

	link, err = resetLink("https://portal.example.com/r", "https://portal.example.com/reset", "xyz")
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example.com/r?token=xyz", link)

	_, err = resetLink("https://other.example.com/r", "https://portal.example.com/reset", "xyz")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	link, err = resetLink("https://other.example.com/r", "", "xyz")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com/r?token=xyz", link)

	_, err = resetLink("", "", "abc")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
