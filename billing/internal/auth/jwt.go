package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the Supabase access token claims the service reads.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTProvider verifies HS256 access tokens locally with the project secret.
type JWTProvider struct {
	secret []byte
	opts   []jwt.ParserOption
}

// NewJWTProvider creates a provider. Issuer and audience are checked only
// when non-empty.
func NewJWTProvider(secret, issuer, audience string) (*JWTProvider, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 characters")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &JWTProvider{secret: []byte(secret), opts: opts}, nil
}

func (p *JWTProvider) ValidateToken(_ context.Context, tokenStr string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return p.secret, nil
	}, p.opts...)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return identityFromClaims(token)
}

func (p *JWTProvider) Name() string { return "jwt" }

func identityFromClaims(token *jwt.Token) (*Identity, error) {
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrUnauthorized
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}
