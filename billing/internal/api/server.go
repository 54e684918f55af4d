// Package api exposes the subscription actions over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mealplanpro/mealplan/billing/internal/auth"
	"github.com/mealplanpro/mealplan/billing/internal/config"
	"github.com/mealplanpro/mealplan/billing/internal/metrics"
	"github.com/mealplanpro/mealplan/billing/internal/store"
	"github.com/mealplanpro/mealplan/billing/internal/subscription"
)

// ActionHandler runs a decoded action for an authenticated caller.
type ActionHandler interface {
	Handle(ctx context.Context, caller *auth.Identity, req subscription.Request) (any, error)
}

// Server is the HTTP API server.
type Server struct {
	actions      ActionHandler
	store        store.Store
	authProvider auth.Provider
	metrics      *metrics.Metrics
	logger       *slog.Logger
	startTime    time.Time
	maxBodyBytes int64
	rl           *rateLimiter
	mux          *chi.Mux
}

// NewServer creates a new API server. m may be nil to disable metrics.
func NewServer(actions ActionHandler, s store.Store, ap auth.Provider, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *Server {
	srv := &Server{
		actions:      actions,
		store:        s,
		authProvider: ap,
		metrics:      m,
		logger:       logger.With("component", "api"),
		startTime:    time.Now(),
		maxBodyBytes: cfg.Server.MaxBodyBytes,
		rl:           newRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(requestLogger(srv.logger))
	mux.Use(metricsMiddleware(m))
	mux.Use(chimw.Recoverer)
	mux.Use(securityHeadersMiddleware)
	mux.Use(makeCORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check routes (unauthenticated)
	mux.Get("/healthz", srv.handleHealthz)
	mux.Get("/readyz", srv.handleReadyz)

	if m != nil && !cfg.Metrics.Disabled {
		mux.Method(http.MethodGet, cfg.Metrics.Path, m.Handler())
	}

	// Action routes. "/" is kept as an alias so clients that post to the
	// bare function URL keep working.
	mux.Group(func(r chi.Router) {
		r.Use(srv.authMiddleware)
		r.Use(rateLimitMiddleware(srv.rl))

		r.Post(cfg.Server.Path, srv.handleAction)
		if cfg.Server.Path != "/" {
			r.Post("/", srv.handleAction)
		}
	})

	srv.mux = mux
	return srv
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// StartBackgroundTasks starts periodic cleanup of idle rate limiter buckets.
func (s *Server) StartBackgroundTasks(ctx context.Context) {
	s.rl.StartCleanup(ctx, 5*time.Minute, 10*time.Minute)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	identity := getIdentityFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	req, err := subscription.DecodeRequest(r.Body)
	if err != nil {
		s.writeActionError(w, r, "", err)
		return
	}

	resp, err := s.actions.Handle(r.Context(), identity, req)
	if err != nil {
		s.writeActionError(w, r, req.Action(), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeActionError maps service errors to status codes. Untyped errors are
// reported as 500 with their message.
func (s *Server) writeActionError(w http.ResponseWriter, r *http.Request, action string, err error) {
	var svcErr *subscription.Error
	if errors.As(err, &svcErr) {
		status := svcErr.Kind.HTTPStatus()
		if status >= http.StatusInternalServerError {
			s.logger.Error("action failed", "action", action, "kind", svcErr.Kind.String(),
				"request_id", chimw.GetReqID(r.Context()), "error", err)
		}
		writeError(w, status, svcErr.Message)
		return
	}
	s.logger.Error("action failed", "action", action, "request_id", chimw.GetReqID(r.Context()), "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

// --- Health handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.startTime).Truncate(time.Second).String(),
	})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
