package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SupabaseProvider asks the Supabase auth server who a token belongs to.
type SupabaseProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSupabaseProvider creates a provider for the project at baseURL using
// the service role key as the api key.
func NewSupabaseProvider(baseURL, serviceRoleKey string, timeout time.Duration) (*SupabaseProvider, error) {
	if baseURL == "" || serviceRoleKey == "" {
		return nil, fmt.Errorf("supabase url and service role key are required")
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &SupabaseProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     serviceRoleKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ValidateToken calls GET /auth/v1/user with the caller's token.
func (p *SupabaseProvider) ValidateToken(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, ErrUnauthorized
	}

	var u supabaseUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&u); err != nil || u.ID == "" {
		return nil, ErrUnauthorized
	}
	return &Identity{UserID: u.ID, Email: u.Email, Role: u.Role}, nil
}

func (p *SupabaseProvider) Name() string { return "supabase" }
