// Package server ties the billing service components together.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mealplanpro/mealplan/billing/internal/api"
	"github.com/mealplanpro/mealplan/billing/internal/auth"
	"github.com/mealplanpro/mealplan/billing/internal/config"
	"github.com/mealplanpro/mealplan/billing/internal/metrics"
	"github.com/mealplanpro/mealplan/billing/internal/razorpay"
	"github.com/mealplanpro/mealplan/billing/internal/store"
	"github.com/mealplanpro/mealplan/billing/internal/subscription"
)

// Server is the billing service process.
type Server struct {
	cfg     *config.Config
	store   store.Store
	service *subscription.Service
	api     *api.Server
	logger  *slog.Logger
}

// New creates a server from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	// Initialize storage.
	db, err := store.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	authProvider, err := auth.NewProvider(cfg.Auth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init auth provider: %w", err)
	}

	var m *metrics.Metrics
	if !cfg.Metrics.Disabled {
		m = metrics.New()
	}

	billing := NewRazorpayClient(cfg.Razorpay)
	svc := subscription.New(billing, db, cfg.Plan, logger, subscription.WithMetrics(m))
	apiSrv := api.NewServer(svc, db, authProvider, cfg, m, logger)

	s := &Server{
		cfg:     cfg,
		store:   db,
		service: svc,
		api:     apiSrv,
		logger:  logger.With("component", "server"),
	}

	if err := db.Ping(context.Background()); err != nil {
		s.logger.Warn("store not reachable at startup", "error", err)
	}
	for _, origin := range cfg.Server.AllowedOrigins {
		if origin == "*" {
			s.logger.Warn("CORS allowed_origins contains wildcard '*', restrict to the web app origin in production")
			break
		}
	}
	if strings.HasPrefix(cfg.Razorpay.KeyID, "rzp_test_") {
		s.logger.Info("using Razorpay test mode credentials")
	}
	s.logger.Info("billing service configured",
		"auth_provider", authProvider.Name(),
		"storage", cfg.Storage.Driver,
		"path", cfg.Server.Path,
		"plan", cfg.Plan.Name)

	return s, nil
}

// NewRazorpayClient builds the provider client from configuration.
func NewRazorpayClient(cfg config.RazorpayConfig) *razorpay.Client {
	return razorpay.NewClient(razorpay.Config{
		KeyID:     cfg.KeyID,
		KeySecret: cfg.KeySecret,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout.Duration,
	})
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.api.Handler()
}

// Run serves HTTP and blocks until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.api.StartBackgroundTasks(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("billing service listening", "addr", s.cfg.Server.Addr)
		if s.cfg.Server.TLSCert != "" && s.cfg.Server.TLSKey != "" {
			errCh <- srv.ListenAndServeTLS(s.cfg.Server.TLSCert, s.cfg.Server.TLSKey)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout.Duration)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
			_ = srv.Close()
		} else {
			s.logger.Info("http server stopped gracefully")
		}

		s.logger.Info("closing store")
		_ = s.store.Close()
		s.logger.Info("shutdown complete")
		return ctx.Err()

	case err := <-errCh:
		_ = s.store.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
