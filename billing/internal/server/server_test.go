package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mealplanpro/mealplan/billing/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Addr:            "127.0.0.1:0",
			Path:            "/razorpay",
			AllowedOrigins:  []string{"https://mealplan.example"},
			MaxBodyBytes:    64 * 1024,
			ShutdownTimeout: config.Duration{Duration: 2 * time.Second},
		},
		Auth: config.AuthConfig{
			Provider:  "jwt",
			JWTSecret: "test-secret-at-least-32-chars-long",
		},
		Storage: config.StorageConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(t.TempDir(), "billing.db"),
		},
		Razorpay: config.RazorpayConfig{
			KeyID:     "rzp_test_key",
			KeySecret: "secret",
			BaseURL:   "http://127.0.0.1:1",
		},
		Plan: config.PlanConfig{
			Name: "Meal Plan Pro", Amount: 100, Currency: "INR",
			Period: "monthly", Interval: 1, TotalCount: 12, PeriodDays: 30,
		},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 5, Burst: 10},
		Metrics:   config.MetricsConfig{Path: "/metrics"},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWiresHandler(t *testing.T) {
	s, err := New(testConfig(t), discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.store.Close() })

	for path, want := range map[string]int{
		"/healthz": http.StatusOK,
		"/readyz":  http.StatusOK,
		"/metrics": http.StatusOK,
	} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Errorf("%s: got %d, want %d", path, rec.Code, want)
		}
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/razorpay", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated action: got %d, want 401", rec.Code)
	}
}

func TestNewRejectsBadAuthConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth = config.AuthConfig{Provider: "ldap"}
	if _, err := New(cfg, discardLogger()); err == nil {
		t.Fatal("expected error for unknown auth provider")
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	cfg := testConfig(t)

	// Reserve a free port.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Server.Addr = ln.Addr().String()
	ln.Close()

	s, err := New(cfg, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	url := "http://" + cfg.Server.Addr + "/healthz"
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run: got %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
