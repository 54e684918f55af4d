// Package config handles billing service configuration loading and validation.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the top-level billing service configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Auth      AuthConfig      `json:"auth"`
	Storage   StorageConfig   `json:"storage"`
	Razorpay  RazorpayConfig  `json:"razorpay"`
	Plan      PlanConfig      `json:"plan,omitempty"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
	RateLimit RateLimitConfig `json:"rate_limit,omitempty"`
	Metrics   MetricsConfig   `json:"metrics,omitempty"`
}

// ServerConfig defines the HTTP listener settings.
type ServerConfig struct {
	Addr            string   `json:"addr"`                       // e.g. ":8080"
	Path            string   `json:"path,omitempty"`             // action route; default "/razorpay"
	TLSCert         string   `json:"tls_cert,omitempty"`
	TLSKey          string   `json:"tls_key,omitempty"`
	AllowedOrigins  []string `json:"allowed_origins,omitempty"`  // CORS origins; default ["*"]
	MaxBodyBytes    int64    `json:"max_body_bytes,omitempty"`   // default 64KB
	ShutdownTimeout Duration `json:"shutdown_timeout,omitempty"` // default 30s
}

// AuthConfig selects and configures the identity verifier.
type AuthConfig struct {
	Provider       string   `json:"provider,omitempty"` // "supabase" (default), "jwt" or "jwks"
	SupabaseURL    string   `json:"supabase_url,omitempty"`
	ServiceRoleKey string   `json:"service_role_key,omitempty"`
	JWTSecret      string   `json:"jwt_secret,omitempty"` // HS256 project secret for "jwt"
	JWKSURL        string   `json:"jwks_url,omitempty"`   // defaults to the Supabase well-known JWKS
	Issuer         string   `json:"issuer,omitempty"`
	Audience       string   `json:"audience,omitempty"`
	Timeout        Duration `json:"timeout,omitempty"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Driver string `json:"driver"` // "sqlite" (default) or "postgres"
	DSN    string `json:"dsn"`
}

// RazorpayConfig holds the billing provider credentials.
type RazorpayConfig struct {
	KeyID     string   `json:"key_id"`
	KeySecret string   `json:"key_secret"`
	BaseURL   string   `json:"base_url,omitempty"`
	Timeout   Duration `json:"timeout,omitempty"`
}

// PlanConfig describes the canonical subscription plan. Amount is in the
// currency's minor unit (paise for INR).
type PlanConfig struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Amount      int64  `json:"amount,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Period      string `json:"period,omitempty"`
	Interval    int    `json:"interval,omitempty"`
	TotalCount  int    `json:"total_count,omitempty"` // billing cycles per subscription
	PeriodDays  int    `json:"period_days,omitempty"` // length of an activated period
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"` // "json" or "text"
}

// RateLimitConfig defines per-user rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"` // default 5
	Burst             int     `json:"burst,omitempty"`               // default 10
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Disabled bool   `json:"disabled,omitempty"`
	Path     string `json:"path,omitempty"` // default "/metrics"
}

// Duration is a JSON-friendly time.Duration.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		dur, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		d.Duration = dur
	case float64:
		d.Duration = time.Duration(val) * time.Second
	default:
		return fmt.Errorf("invalid duration: %v", v)
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Load reads the config file at path (optional when empty), overlays the
// environment, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadRazorpay is Load for provider-only tooling. Only the razorpay and plan
// sections are validated, so auth and storage may be left unconfigured.
func LoadRazorpay(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := errors.Join(cfg.validateRazorpay()...); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// applyEnv overlays the deployment variables the hosted function used.
func (c *Config) applyEnv() {
	setFromEnv(&c.Auth.SupabaseURL, "SUPABASE_URL")
	setFromEnv(&c.Auth.ServiceRoleKey, "SUPABASE_SERVICE_ROLE_KEY")
	setFromEnv(&c.Auth.JWTSecret, "SUPABASE_JWT_SECRET")
	setFromEnv(&c.Razorpay.KeyID, "RAZORPAY_KEY_ID")
	setFromEnv(&c.Razorpay.KeySecret, "RAZORPAY_KEY_SECRET")
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Storage.DSN = dsn
		if c.Storage.Driver == "" {
			c.Storage.Driver = "postgres"
		}
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.Path == "" {
		c.Server.Path = "/razorpay"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 64 * 1024
	}
	if c.Server.ShutdownTimeout.Duration == 0 {
		c.Server.ShutdownTimeout.Duration = 30 * time.Second
	}
	if c.Auth.Provider == "" {
		c.Auth.Provider = "supabase"
	}
	c.Auth.SupabaseURL = strings.TrimRight(c.Auth.SupabaseURL, "/")
	if c.Auth.JWKSURL == "" && c.Auth.SupabaseURL != "" {
		c.Auth.JWKSURL = c.Auth.SupabaseURL + "/auth/v1/.well-known/jwks.json"
	}
	if c.Auth.Timeout.Duration == 0 {
		c.Auth.Timeout.Duration = 10 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.DSN == "" && c.Storage.Driver == "sqlite" {
		c.Storage.DSN = "mealplan-billing.db"
	}
	if c.Razorpay.BaseURL == "" {
		c.Razorpay.BaseURL = "https://api.razorpay.com/v1"
	}
	if c.Razorpay.Timeout.Duration == 0 {
		c.Razorpay.Timeout.Duration = 15 * time.Second
	}
	if c.Plan.Name == "" {
		c.Plan.Name = "Meal Plan Pro"
	}
	if c.Plan.Description == "" {
		c.Plan.Description = "Access to personalized AI meal plans"
	}
	if c.Plan.Amount == 0 {
		c.Plan.Amount = 100 // ₹1 in paise
	}
	if c.Plan.Currency == "" {
		c.Plan.Currency = "INR"
	}
	if c.Plan.Period == "" {
		c.Plan.Period = "monthly"
	}
	if c.Plan.Interval == 0 {
		c.Plan.Interval = 1
	}
	if c.Plan.TotalCount == 0 {
		c.Plan.TotalCount = 12
	}
	if c.Plan.PeriodDays == 0 {
		c.Plan.PeriodDays = 30
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 5
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

func (c *Config) validate() error {
	errs := c.validateRazorpay()
	if !strings.HasPrefix(c.Server.Path, "/") {
		errs = append(errs, fmt.Errorf("server.path must start with /"))
	}

	switch c.Auth.Provider {
	case "supabase":
		if c.Auth.SupabaseURL == "" || c.Auth.ServiceRoleKey == "" {
			errs = append(errs, fmt.Errorf("auth.supabase_url and auth.service_role_key are required for the supabase provider"))
		}
	case "jwt":
		if len(c.Auth.JWTSecret) < 32 {
			errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
		}
	case "jwks":
		if c.Auth.JWKSURL == "" {
			errs = append(errs, fmt.Errorf("auth.jwks_url or auth.supabase_url is required for the jwks provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth.provider: %q", c.Auth.Provider))
	}

	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported storage.driver: %q", c.Storage.Driver))
	}
	if c.Storage.DSN == "" {
		errs = append(errs, fmt.Errorf("storage.dsn is required"))
	}

	return errors.Join(errs...)
}

func (c *Config) validateRazorpay() []error {
	var errs []error
	if c.Razorpay.KeyID == "" || c.Razorpay.KeySecret == "" {
		errs = append(errs, fmt.Errorf("razorpay credentials not configured (razorpay.key_id, razorpay.key_secret)"))
	}
	if c.Plan.Amount < 0 {
		errs = append(errs, fmt.Errorf("plan.amount must be positive"))
	}
	if c.Plan.TotalCount < 0 || c.Plan.PeriodDays < 0 {
		errs = append(errs, fmt.Errorf("plan.total_count and plan.period_days must be positive"))
	}
	return errs
}

// PeriodLength is the span of one activated billing period.
func (p PlanConfig) PeriodLength() time.Duration {
	return time.Duration(p.PeriodDays) * 24 * time.Hour
}
