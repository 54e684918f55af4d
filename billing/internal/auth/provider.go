// Package auth resolves bearer tokens to caller identities.
package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned for any token that does not resolve to a user.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the caller a token resolved to.
type Identity struct {
	UserID string // Supabase auth user id
	Email  string
	Role   string // "authenticated" for signed-in users
}

// Provider validates bearer tokens and returns identities.
type Provider interface {
	ValidateToken(ctx context.Context, token string) (*Identity, error)
	Name() string
}
