// Package subscription implements the subscription lifecycle actions:
// plan creation, checkout subscription creation, payment verification and
// status checks.
package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mealplanpro/mealplan/billing/internal/auth"
	"github.com/mealplanpro/mealplan/billing/internal/config"
	"github.com/mealplanpro/mealplan/billing/internal/metrics"
	"github.com/mealplanpro/mealplan/billing/internal/razorpay"
	"github.com/mealplanpro/mealplan/billing/internal/store"
)

// Billing is the subset of the Razorpay client the service uses.
type Billing interface {
	KeyID() string
	CreatePlan(ctx context.Context, req razorpay.PlanRequest) (*razorpay.Plan, error)
	FindPlan(ctx context.Context, match func(razorpay.Plan) bool) (*razorpay.Plan, error)
	CreateSubscription(ctx context.Context, req razorpay.SubscriptionRequest) (*razorpay.Subscription, error)
	VerifyPayment(paymentID, subscriptionID, signature string) bool
}

// PlanResponse is returned by create-plan.
type PlanResponse struct {
	Success bool           `json:"success"`
	Plan    *razorpay.Plan `json:"plan"`
}

// SubscriptionResponse is returned by create-subscription. KeyID is the
// public key the checkout widget is opened with.
type SubscriptionResponse struct {
	Success      bool                   `json:"success"`
	Subscription *razorpay.Subscription `json:"subscription"`
	KeyID        string                 `json:"keyId"`
}

// VerifyResponse is returned by verify-payment.
type VerifyResponse struct {
	Success  bool `json:"success"`
	Verified bool `json:"verified"`
}

// StatusResponse is returned by check-subscription.
type StatusResponse struct {
	Success      bool                `json:"success"`
	IsSubscribed bool                `json:"isSubscribed"`
	Subscription *store.Subscription `json:"subscription"`
}

// Service runs subscription actions on behalf of an authenticated caller.
type Service struct {
	billing Billing
	store   store.Store
	plan    config.PlanConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for records and periods.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics records action and provider metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(billing Billing, st store.Store, plan config.PlanConfig, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		billing: billing,
		store:   st,
		plan:    plan,
		logger:  logger.With("component", "subscription"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle dispatches req for the caller. The result is one of the response
// types in this package; failures are *Error.
func (s *Service) Handle(ctx context.Context, caller *auth.Identity, req Request) (any, error) {
	if caller == nil || caller.UserID == "" {
		return nil, Unauthorized("Invalid token")
	}

	var (
		resp any
		err  error
	)
	switch r := req.(type) {
	case CreatePlanRequest:
		resp, err = s.CreatePlan(ctx)
	case CreateSubscriptionRequest:
		resp, err = s.CreateSubscription(ctx, caller.UserID)
	case VerifyPaymentRequest:
		resp, err = s.VerifyPayment(ctx, caller.UserID, r)
	case CheckSubscriptionRequest:
		resp, err = s.CheckSubscription(ctx, caller.UserID)
	default:
		return nil, BadRequest("Invalid action")
	}

	outcome := "success"
	if err != nil {
		outcome = KindOf(err).String()
	}
	s.metrics.ObserveAction(req.Action(), outcome)
	return resp, err
}

// CreatePlan creates the canonical plan with the provider.
func (s *Service) CreatePlan(ctx context.Context) (*PlanResponse, error) {
	plan, err := s.createPlan(ctx)
	if err != nil {
		return nil, err
	}
	return &PlanResponse{Success: true, Plan: plan}, nil
}

// CreateSubscription finds or creates the canonical plan, subscribes the
// caller to it and records a pending subscription. Failing to record the
// subscription is logged but not returned: the provider subscription exists
// and checkout can proceed.
func (s *Service) CreateSubscription(ctx context.Context, userID string) (*SubscriptionResponse, error) {
	plan, err := s.findPlan(ctx)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		if plan, err = s.createPlan(ctx); err != nil {
			return nil, err
		}
	}

	start := s.now()
	sub, err := s.billing.CreateSubscription(ctx, razorpay.SubscriptionRequest{
		PlanID:         plan.ID,
		TotalCount:     s.plan.TotalCount,
		CustomerNotify: 1,
		Notes:          razorpay.Notes{"user_id": userID},
	})
	s.metrics.ObserveProvider("create_subscription", err, s.now().Sub(start))
	if err != nil {
		s.logger.Error("create subscription failed", "user_id", userID, "plan_id", plan.ID, "error", err)
		return nil, providerError(providerMessage(err, "Failed to create subscription"), err)
	}

	now := s.now()
	rec := &store.Subscription{
		ID:                     uuid.New().String(),
		UserID:                 userID,
		RazorpaySubscriptionID: sub.ID,
		RazorpayPlanID:         plan.ID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.store.UpsertPendingSubscription(ctx, rec); err != nil {
		s.metrics.StoreError("upsert_subscription")
		s.logger.Error("record pending subscription failed",
			"user_id", userID, "subscription_id", sub.ID, "plan_id", plan.ID, "error", err)
		s.audit(ctx, store.AuditSubscriptionRecordFailed, userID, sub.ID, map[string]any{
			"plan_id": plan.ID,
			"error":   err.Error(),
		})
	} else {
		s.audit(ctx, store.AuditSubscriptionCreated, userID, sub.ID, map[string]any{"plan_id": plan.ID})
	}

	s.logger.Info("subscription created", "user_id", userID, "subscription_id", sub.ID, "plan_id", plan.ID)
	return &SubscriptionResponse{Success: true, Subscription: sub, KeyID: s.billing.KeyID()}, nil
}

// VerifyPayment checks the checkout signature and activates the caller's
// matching pending subscription for one period.
func (s *Service) VerifyPayment(ctx context.Context, userID string, req VerifyPaymentRequest) (*VerifyResponse, error) {
	if req.SubscriptionID == "" || req.PaymentID == "" || req.Signature == "" {
		return nil, BadRequest("subscriptionId, paymentId and signature are required")
	}

	if !s.billing.VerifyPayment(req.PaymentID, req.SubscriptionID, req.Signature) {
		s.logger.Warn("payment signature mismatch",
			"user_id", userID, "subscription_id", req.SubscriptionID, "payment_id", req.PaymentID)
		s.audit(ctx, store.AuditPaymentRejected, userID, req.SubscriptionID, map[string]any{"payment_id": req.PaymentID})
		return nil, providerError("Invalid payment signature", nil)
	}

	start := s.now()
	end := start.Add(s.plan.PeriodLength())
	if err := s.store.ActivateSubscription(ctx, userID, req.SubscriptionID, start, end); err != nil {
		s.metrics.StoreError("activate_subscription")
		level := slog.LevelError
		if errors.Is(err, store.ErrNotFound) {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "activate subscription failed",
			"user_id", userID, "subscription_id", req.SubscriptionID, "payment_id", req.PaymentID, "error", err)
		return nil, persistenceError("Failed to update subscription status", err)
	}

	s.audit(ctx, store.AuditPaymentVerified, userID, req.SubscriptionID, map[string]any{
		"payment_id":           req.PaymentID,
		"current_period_end":   end.UTC().Format(time.RFC3339),
		"current_period_start": start.UTC().Format(time.RFC3339),
	})
	s.logger.Info("subscription activated", "user_id", userID, "subscription_id", req.SubscriptionID)
	return &VerifyResponse{Success: true, Verified: true}, nil
}

// CheckSubscription reports whether the caller has an active subscription.
func (s *Service) CheckSubscription(ctx context.Context, userID string) (*StatusResponse, error) {
	rec, err := s.store.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		s.metrics.StoreError("get_subscription")
		s.logger.Error("get subscription failed", "user_id", userID, "error", err)
		return nil, persistenceError("Failed to check subscription status", err)
	}
	return &StatusResponse{Success: true, IsSubscribed: rec.IsActive(), Subscription: rec}, nil
}

// EnsurePlan returns the canonical plan, creating it when the provider has
// none. The bool reports whether it was created.
func (s *Service) EnsurePlan(ctx context.Context) (*razorpay.Plan, bool, error) {
	plan, err := s.findPlan(ctx)
	if err != nil {
		return nil, false, err
	}
	if plan != nil {
		return plan, false, nil
	}
	plan, err = s.createPlan(ctx)
	if err != nil {
		return nil, false, err
	}
	return plan, true, nil
}

func (s *Service) planRequest() razorpay.PlanRequest {
	return razorpay.PlanRequest{
		Period:   s.plan.Period,
		Interval: s.plan.Interval,
		Item: razorpay.Item{
			Name:        s.plan.Name,
			Amount:      s.plan.Amount,
			Currency:    s.plan.Currency,
			Description: s.plan.Description,
		},
	}
}

// matchesPlan identifies the canonical plan by name, amount and currency.
func (s *Service) matchesPlan(p razorpay.Plan) bool {
	return p.Item.Name == s.plan.Name &&
		p.Item.Amount == s.plan.Amount &&
		p.Item.Currency == s.plan.Currency
}

func (s *Service) findPlan(ctx context.Context) (*razorpay.Plan, error) {
	start := s.now()
	plan, err := s.billing.FindPlan(ctx, s.matchesPlan)
	s.metrics.ObserveProvider("list_plans", err, s.now().Sub(start))
	if err != nil {
		s.logger.Error("list plans failed", "error", err)
		return nil, providerError(providerMessage(err, "Failed to fetch plans"), err)
	}
	return plan, nil
}

func (s *Service) createPlan(ctx context.Context) (*razorpay.Plan, error) {
	start := s.now()
	plan, err := s.billing.CreatePlan(ctx, s.planRequest())
	s.metrics.ObserveProvider("create_plan", err, s.now().Sub(start))
	if err != nil {
		s.logger.Error("create plan failed", "plan", s.plan.Name, "error", err)
		return nil, providerError(providerMessage(err, "Failed to create plan"), err)
	}
	s.logger.Info("plan created", "plan_id", plan.ID, "plan", s.plan.Name)
	return plan, nil
}

// providerMessage surfaces Razorpay's own error description and falls back
// to fallback for transport failures.
func providerMessage(err error, fallback string) string {
	var apiErr *razorpay.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return fallback
}

// audit writes a best-effort audit event.
func (s *Service) audit(ctx context.Context, action, userID, subscriptionID string, detail map[string]any) {
	raw, err := json.Marshal(detail)
	if err != nil {
		raw = nil
	}
	ev := &store.AuditEvent{
		ID:             uuid.New().String(),
		Action:         action,
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Detail:         raw,
		CreatedAt:      s.now(),
	}
	if err := s.store.LogAuditEvent(ctx, ev); err != nil {
		s.metrics.StoreError("log_audit_event")
		s.logger.Warn("audit log failed", "action", action, "user_id", userID, "error", fmt.Errorf("log audit event: %w", err))
	}
}
