package auth

import (
	"fmt"

	"github.com/mealplanpro/mealplan/billing/internal/config"
)

// NewProvider creates an auth Provider based on configuration.
func NewProvider(cfg config.AuthConfig) (Provider, error) {
	switch cfg.Provider {
	case "supabase", "":
		return NewSupabaseProvider(cfg.SupabaseURL, cfg.ServiceRoleKey, cfg.Timeout.Duration)
	case "jwt":
		return NewJWTProvider(cfg.JWTSecret, cfg.Issuer, cfg.Audience)
	case "jwks":
		return NewJWKSProvider(cfg.JWKSURL, cfg.Issuer, cfg.Audience)
	default:
		return nil, fmt.Errorf("unknown auth provider: %q", cfg.Provider)
	}
}
