// Package identity resolves the user behind a transport connection from
// the credential cookies carried on the upgrade request.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrUnauthenticated is returned when no credential resolves to a user.
// Binding failure is not fatal to a connection: the socket stays open and
// simply receives no personalized push.
var ErrUnauthenticated = errors.New("no valid credential")

// TokenResolver looks up the user a refresh-token id was issued to.
type TokenResolver interface {
	ResolveRefreshToken(ctx context.Context, tokenID string) (string, error)
}

// Binder resolves user identities for incoming connections. The access
// token is tried first; an expired or missing one falls back to the
// refresh token. A connection left anonymous here may still claim an
// identity via a GET_USER_ID frame, with no verification (a trust gap
// inherited from the wire protocol, kept deliberately).
type Binder struct {
	jwt    *JWTManager
	tokens TokenResolver
	logger *slog.Logger
}

// NewBinder creates a binder over the given token manager and resolver.
func NewBinder(jwt *JWTManager, tokens TokenResolver) *Binder {
	return &Binder{
		jwt:    jwt,
		tokens: tokens,
		logger: slog.Default(),
	}
}

// Resolve returns the user id for the given credential cookies.
func (b *Binder) Resolve(ctx context.Context, accessToken, refreshToken string) (string, error) {
	if accessToken != "" {
		claims, err := b.jwt.ValidateAccessToken(accessToken)
		if err == nil {
			return claims.UserID, nil
		}
		b.logger.Debug("access token rejected, trying refresh", "error", err)
	}

	if refreshToken != "" {
		claims, err := b.jwt.ValidateRefreshToken(refreshToken)
		if err != nil {
			return "", ErrUnauthenticated
		}
		userID, err := b.tokens.ResolveRefreshToken(ctx, claims.TokenID)
		if err != nil {
			return "", fmt.Errorf("refresh token not on record: %w", ErrUnauthenticated)
		}
		return userID, nil
	}

	return "", ErrUnauthenticated
}
