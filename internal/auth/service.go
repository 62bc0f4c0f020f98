// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/course-portal/internal/config"
	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/events"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenReuse         = errors.New("token reuse detected")
	ErrEmailExists        = errors.New("email already exists")
	ErrWeakPassword       = errors.New("password too short")
	ErrResetTokenInvalid  = errors.New("reset token invalid or expired")
	ErrResetUnavailable   = errors.New("password reset is not configured")
)

const resetKeyPrefix = "pwreset:"

// ResetTokenStore holds single-use reset tokens keyed by their hash.
type ResetTokenStore interface {
	PutOnce(ctx context.Context, key, value string, ttl time.Duration) error
	TakeOnce(ctx context.Context, key string) (string, error)
}

// ProfileTracker records sign-in activity on the member profile.
type ProfileTracker interface {
	TouchLastSeen(ctx context.Context, userID string) error
}

type Service struct {
	tokens    TokenRepository
	accounts  AccountRepository
	jwt       *JWTManager
	profiles  ProfileTracker
	resets    ResetTokenStore
	publisher events.Publisher
	cfg       config.IdentityConfig
}

func NewService(
	tokens TokenRepository,
	accounts AccountRepository,
	jwt *JWTManager,
	profiles ProfileTracker,
	resets ResetTokenStore,
	publisher events.Publisher,
	cfg config.IdentityConfig,
) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}

	return &Service{
		tokens:    tokens,
		accounts:  accounts,
		jwt:       jwt,
		profiles:  profiles,
		resets:    resets,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // burns the same argon2 work as a real account
			_, _ = core.CheckPassword(req.Password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	check, err := core.CheckPassword(req.Password, &account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !check.Valid {
		return nil, ErrInvalidCredentials
	}

	if check.Rehash != "" {
		if err := s.accounts.RehashPassword(ctx, account.ID, check.Rehash); err != nil {
			slog.Warn("password rehash failed", "user_id", account.ID, "error", err)
		}
	}

	if s.profiles != nil {
		if err := s.profiles.TouchLastSeen(ctx, account.ID); err != nil {
			slog.Warn("touch last seen failed", "user_id", account.ID, "error", err)
		}
	}

	return s.createAuthResponse(ctx, account, userAgent, ipAddress, "", nil)
}

func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	tokenHash := core.HashToken(refreshToken)

	storedToken, err := s.tokens.FindByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	if storedToken.IsUsed {
		if revokeErr := s.tokens.RevokeByFamilyID(ctx, storedToken.FamilyID); revokeErr != nil {
			slog.Error("revoke token family failed",
				"family_id", storedToken.FamilyID,
				"error", revokeErr,
			)
		}
		return nil, ErrTokenReuse
	}

	if !storedToken.IsValid() {
		if storedToken.IsRevoked() {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
		}
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	account, err := s.accounts.GetByID(ctx, storedToken.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	return s.createAuthResponse(
		ctx,
		account,
		userAgent,
		ipAddress,
		storedToken.FamilyID,
		&storedToken.ID,
	)
}

func (s *Service) Logout(
	ctx context.Context,
	refreshToken, userID string,
) error {
	if refreshToken == "" {
		return nil
	}

	storedToken, err := s.tokens.FindByHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find token: %w", err)
	}

	if storedToken.UserID != userID {
		return fmt.Errorf("logout: %w", core.ErrForbidden)
	}

	if err := s.tokens.RevokeByID(ctx, storedToken.ID); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

// RequestPasswordReset stores a one-time token and emits a notification
// event carrying the reset link. The raw token only exists in the event.
func (s *Service) RequestPasswordReset(
	ctx context.Context,
	email, redirectTo string,
) error {
	if !s.resetEnabled() {
		return ErrResetUnavailable
	}

	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}

	token, err := core.GenerateSecureToken(32)
	if err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}

	link, err := resetLink(redirectTo, s.cfg.ResetRedirectURL, token)
	if err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}

	key := resetKeyPrefix + core.HashToken(token)
	if err := s.resets.PutOnce(ctx, key, account.ID, s.cfg.ResetTokenTTL); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	err = s.publisher.Publish(ctx, events.New(
		events.PasswordResetRequest,
		map[string]any{
			"user_id":    account.ID,
			"email":      account.Email,
			"reset_url":  link,
			"expires_at": time.Now().Add(s.cfg.ResetTokenTTL).UTC(),
		},
	))
	if err != nil {
		if _, takeErr := s.resets.TakeOnce(ctx, key); takeErr != nil {
			slog.Warn("reset token cleanup failed", "user_id", account.ID, "error", takeErr)
		}
		return fmt.Errorf("deliver reset link: %w: %w", ErrResetUnavailable, err)
	}

	return nil
}

// resetEnabled needs both a token store and a broker to deliver the link.
func (s *Service) resetEnabled() bool {
	if s.resets == nil {
		return false
	}
	_, nop := s.publisher.(events.Nop)
	return !nop
}

func (s *Service) ConfirmPasswordReset(
	ctx context.Context,
	token, newPassword string,
) error {
	if s.resets == nil {
		return ErrResetUnavailable
	}

	key := resetKeyPrefix + core.HashToken(token)

	userID, err := s.resets.TakeOnce(ctx, key)
	if errors.Is(err, core.ErrNotFound) {
		return ErrResetTokenInvalid
	}
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}

	return s.UpdatePassword(ctx, userID, newPassword)
}

// CreateAccount registers a pre-verified account and returns its ID.
func (s *Service) CreateAccount(
	ctx context.Context,
	email, password string,
	fullName *string,
) (string, error) {
	if len(password) < s.cfg.MinPasswordLength {
		return "", ErrWeakPassword
	}

	hash, err := core.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	account := &Account{
		ID:           uuid.New().String(),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		FullName:     fullName,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return "", ErrEmailExists
		}
		return "", fmt.Errorf("create account: %w", err)
	}

	return account.ID, nil
}

// UpdatePassword replaces the password and signs the user out everywhere.
func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, newPassword string,
) error {
	if len(newPassword) < s.cfg.MinPasswordLength {
		return ErrWeakPassword
	}

	hash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.accounts.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	return nil
}

func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	return s.accounts.Delete(ctx, userID)
}

func (s *Service) createAuthResponse(
	ctx context.Context,
	account *Account,
	userAgent, ipAddress, familyID string,
	oldTokenID *string,
) (*AuthResponse, error) {
	accessToken, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID:       account.ID,
		TokenVersion: account.TokenVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshData, err := s.jwt.CreateRefreshToken(account.ID, familyID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	newTokenID := uuid.New().String()

	if err := s.tokens.Create(ctx, &RefreshToken{
		ID:        newTokenID,
		UserID:    account.ID,
		TokenHash: refreshData.Hash,
		FamilyID:  refreshData.FamilyID,
		ExpiresAt: refreshData.ExpiresAt,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	if oldTokenID != nil {
		if err := s.tokens.MarkAsUsed(ctx, *oldTokenID, newTokenID); err != nil {
			slog.Warn("mark refresh token used failed", "token_id", *oldTokenID, "error", err)
		}
	}

	ttl := s.jwt.AccessTokenTTL()

	return &AuthResponse{
		User: UserResponse{
			ID:       account.ID,
			Email:    account.Email,
			FullName: account.FullName,
		},
		Tokens: TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshData.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(ttl / time.Second),
			ExpiresAt:    time.Now().Add(ttl),
		},
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// resetLink appends the token to redirectTo, or to the configured fallback.
// A caller-supplied redirect must stay on the fallback's host so the token
// never leaves the portal.
func resetLink(redirectTo, fallback, token string) (string, error) {
	base := redirectTo
	if base == "" {
		base = fallback
	}
	if base == "" {
		return "", fmt.Errorf("no reset redirect configured: %w", core.ErrInvalidInput)
	}

	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("parse redirect: %w", core.ErrInvalidInput)
	}

	if redirectTo != "" && fallback != "" {
		allowed, err := url.Parse(fallback)
		if err != nil || !strings.EqualFold(allowed.Host, u.Host) || allowed.Scheme != u.Scheme {
			return "", fmt.Errorf("redirect host not allowed: %w", core.ErrInvalidInput)
		}
	}

	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
