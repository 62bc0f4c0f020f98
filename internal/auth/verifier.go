// AngelaMos | 2026
// verifier.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/carterperez-dev/course-portal/internal/config"
	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/middleware"
)

// OIDCVerifier accepts access tokens minted by an external identity
// provider. The token subject must be the ID of an existing account.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(
	ctx context.Context,
	cfg config.IdentityConfig,
) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}

	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{
			ClientID:          cfg.OIDCClientID,
			SkipClientIDCheck: cfg.OIDCClientID == "",
		}),
	}, nil
}

func (o *OIDCVerifier) Verify(ctx context.Context, raw string) (string, error) {
	token, err := o.verifier.Verify(ctx, raw)
	if err != nil {
		var expired *oidc.TokenExpiredError
		if errors.As(err, &expired) {
			return "", fmt.Errorf("verify oidc token: %w", core.ErrTokenExpired)
		}
		return "", fmt.Errorf("verify oidc token: %w", core.ErrTokenInvalid)
	}

	if !core.IsUUID(token.Subject) {
		return "", fmt.Errorf(
			"verify oidc token: subject is not an account id: %w",
			core.ErrTokenInvalid,
		)
	}

	return token.Subject, nil
}

// SessionVerifier resolves the caller for the auth middleware. Locally
// issued tokens are checked first, then the external provider if one is
// configured. Both paths confirm the account still exists, and local
// tokens must carry the account's current token_version.
type SessionVerifier struct {
	jwt      *JWTManager
	accounts AccountRepository
	oidc     *OIDCVerifier
}

func NewSessionVerifier(
	jwt *JWTManager,
	accounts AccountRepository,
	external *OIDCVerifier,
) *SessionVerifier {
	return &SessionVerifier{
		jwt:      jwt,
		accounts: accounts,
		oidc:     external,
	}
}

func (v *SessionVerifier) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := v.jwt.VerifyAccessToken(ctx, token)
	if err == nil {
		account, accErr := v.account(ctx, claims.UserID)
		if accErr != nil {
			return nil, accErr
		}
		if claims.TokenVersion < account.TokenVersion {
			return nil, fmt.Errorf("verify session: %w", core.ErrTokenRevoked)
		}
		return claims, nil
	}

	if v.oidc == nil || errors.Is(err, core.ErrTokenExpired) {
		return nil, err
	}

	subject, oidcErr := v.oidc.Verify(ctx, token)
	if oidcErr != nil {
		return nil, err
	}

	account, accErr := v.account(ctx, subject)
	if accErr != nil {
		return nil, accErr
	}

	return &middleware.AccessTokenClaims{
		UserID:       account.ID,
		TokenVersion: account.TokenVersion,
	}, nil
}

func (v *SessionVerifier) account(ctx context.Context, id string) (*Account, error) {
	account, err := v.accounts.GetByID(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("verify session: %w", core.ErrTokenRevoked)
	}
	if err != nil {
		slog.Error("session account lookup failed", "user_id", id, "error", err)
		return nil, core.NewAppError(
			err,
			"an unexpected error occurred, please try again",
			http.StatusInternalServerError,
			"INTERNAL_ERROR",
		)
	}
	return account, nil
}

var _ middleware.TokenVerifier = (*SessionVerifier)(nil)
