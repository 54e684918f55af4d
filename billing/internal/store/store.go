// Package store defines the storage interface for subscription records and
// provides SQLite and PostgreSQL implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by updates that matched no row.
var ErrNotFound = errors.New("not found")

// Subscription statuses. Only pending and active are ever written.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// Store is the persistence interface for the billing service.
type Store interface {
	// Subscriptions
	UpsertPendingSubscription(ctx context.Context, sub *Subscription) error
	ActivateSubscription(ctx context.Context, userID, razorpaySubscriptionID string, start, end time.Time) error
	GetSubscriptionByUser(ctx context.Context, userID string) (*Subscription, error)

	// Audit
	LogAuditEvent(ctx context.Context, event *AuditEvent) error
	ListAuditEvents(ctx context.Context, userID string, limit int) ([]AuditEvent, error)

	// Health
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Subscription is a user's subscription record. The JSON form uses the
// table's column names.
type Subscription struct {
	ID                     string     `json:"id"`
	UserID                 string     `json:"user_id"`
	RazorpaySubscriptionID string     `json:"razorpay_subscription_id"`
	RazorpayPlanID         string     `json:"razorpay_plan_id"`
	Status                 string     `json:"status"`
	CurrentPeriodStart     *time.Time `json:"current_period_start"`
	CurrentPeriodEnd       *time.Time `json:"current_period_end"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// IsActive reports whether the record grants access.
func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == StatusActive
}

// AuditEvent records a billing action for reconciliation.
type AuditEvent struct {
	ID             string          `json:"id"`
	Action         string          `json:"action"`
	UserID         string          `json:"user_id"`
	SubscriptionID string          `json:"subscription_id,omitempty"`
	Detail         json.RawMessage `json:"detail,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Audit actions.
const (
	AuditSubscriptionCreated      = "subscription.created"
	AuditSubscriptionRecordFailed = "subscription.record_failed"
	AuditPaymentVerified          = "payment.verified"
	AuditPaymentRejected          = "payment.rejected"
)

func detailOrEmpty(d json.RawMessage) string {
	if len(d) == 0 {
		return "{}"
	}
	return string(d)
}

const subscriptionCols = `id, user_id, razorpay_subscription_id, razorpay_plan_id, status,
	current_period_start, current_period_end, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row scanner) (*Subscription, error) {
	var sub Subscription
	var start, end sql.NullTime
	err := row.Scan(&sub.ID, &sub.UserID, &sub.RazorpaySubscriptionID, &sub.RazorpayPlanID, &sub.Status,
		&start, &end, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if start.Valid {
		t := start.Time
		sub.CurrentPeriodStart = &t
	}
	if end.Valid {
		t := end.Time
		sub.CurrentPeriodEnd = &t
	}
	return &sub, nil
}

func scanAuditEvents(rows *sql.Rows) ([]AuditEvent, error) {
	defer rows.Close()
	var events []AuditEvent
	for rows.Next() {
		var ev AuditEvent
		var detail []byte
		if err := rows.Scan(&ev.ID, &ev.Action, &ev.UserID, &ev.SubscriptionID, &detail, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Detail = json.RawMessage(detail)
		events = append(events, ev)
	}
	return events, rows.Err()
}
