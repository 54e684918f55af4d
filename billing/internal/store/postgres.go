package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a new PostgreSQL store and runs migrations.
func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := runMigrations(db, "postgres", "migrations/postgres"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return newPostgresFromDB(db), nil
}

// newPostgresFromDB wraps an open handle without migrating it.
func newPostgresFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) UpsertPendingSubscription(ctx context.Context, sub *Subscription) error {
	sub.Status = StatusPending
	sub.CurrentPeriodStart = nil
	sub.CurrentPeriodEnd = nil
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, user_id, razorpay_subscription_id, razorpay_plan_id, status,
			current_period_start, current_period_end, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NULL, NULL, $6, $7)
		 ON CONFLICT(user_id) DO UPDATE SET
			razorpay_subscription_id=EXCLUDED.razorpay_subscription_id,
			razorpay_plan_id=EXCLUDED.razorpay_plan_id,
			status=EXCLUDED.status,
			current_period_start=NULL,
			current_period_end=NULL,
			updated_at=EXCLUDED.updated_at`,
		sub.ID, sub.UserID, sub.RazorpaySubscriptionID, sub.RazorpayPlanID, sub.Status,
		sub.CreatedAt.UTC(), sub.UpdatedAt.UTC())
	return err
}

func (s *PostgresStore) ActivateSubscription(ctx context.Context, userID, razorpaySubscriptionID string, start, end time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET status=$1, current_period_start=$2, current_period_end=$3, updated_at=$4
		 WHERE user_id=$5 AND razorpay_subscription_id=$6`,
		StatusActive, start.UTC(), end.UTC(), start.UTC(), userID, razorpaySubscriptionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetSubscriptionByUser(ctx context.Context, userID string) (*Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE user_id=$1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

func (s *PostgresStore) LogAuditEvent(ctx context.Context, event *AuditEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, action, user_id, subscription_id, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.Action, event.UserID, event.SubscriptionID, detailOrEmpty(event.Detail), event.CreatedAt.UTC())
	return err
}

func (s *PostgresStore) ListAuditEvents(ctx context.Context, userID string, limit int) ([]AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, user_id, subscription_id, detail, created_at
		 FROM audit_events WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	return scanAuditEvents(rows)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
