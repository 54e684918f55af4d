package auth

import (
	"context"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// JWKSProvider verifies asymmetrically signed access tokens against a
// remote key set.
type JWKSProvider struct {
	jwks keyfunc.Keyfunc
	opts []jwt.ParserOption
}

// NewJWKSProvider fetches the key set at jwksURL and keeps it refreshed in
// the background.
func NewJWKSProvider(jwksURL, issuer, audience string) (*JWKSProvider, error) {
	if jwksURL == "" {
		return nil, fmt.Errorf("jwks url is required")
	}
	jwks, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("fetch JWKS from %s: %w", jwksURL, err)
	}
	return newJWKSProvider(jwks, issuer, audience), nil
}

func newJWKSProvider(jwks keyfunc.Keyfunc, issuer, audience string) *JWKSProvider {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &JWKSProvider{jwks: jwks, opts: opts}
}

func (p *JWKSProvider) ValidateToken(ctx context.Context, tokenStr string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, p.jwks.KeyfuncCtx(ctx), p.opts...)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return identityFromClaims(token)
}

func (p *JWKSProvider) Name() string { return "jwks" }
