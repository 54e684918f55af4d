package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite store and runs migrations.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Each connection to ":memory:" is its own database.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := runMigrations(db, "sqlite3", "migrations/sqlite"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) UpsertPendingSubscription(ctx context.Context, sub *Subscription) error {
	sub.Status = StatusPending
	sub.CurrentPeriodStart = nil
	sub.CurrentPeriodEnd = nil
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, user_id, razorpay_subscription_id, razorpay_plan_id, status,
			current_period_start, current_period_end, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, NULL, NULL, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			razorpay_subscription_id=excluded.razorpay_subscription_id,
			razorpay_plan_id=excluded.razorpay_plan_id,
			status=excluded.status,
			current_period_start=NULL,
			current_period_end=NULL,
			updated_at=excluded.updated_at`,
		sub.ID, sub.UserID, sub.RazorpaySubscriptionID, sub.RazorpayPlanID, sub.Status,
		sub.CreatedAt.UTC(), sub.UpdatedAt.UTC())
	return err
}

func (s *SQLiteStore) ActivateSubscription(ctx context.Context, userID, razorpaySubscriptionID string, start, end time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET status=?, current_period_start=?, current_period_end=?, updated_at=?
		 WHERE user_id=? AND razorpay_subscription_id=?`,
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

func (s *SQLiteStore) GetSubscriptionByUser(ctx context.Context, userID string) (*Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE user_id=?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

func (s *SQLiteStore) LogAuditEvent(ctx context.Context, event *AuditEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, action, user_id, subscription_id, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.Action, event.UserID, event.SubscriptionID, detailOrEmpty(event.Detail), event.CreatedAt.UTC())
	return err
}

func (s *SQLiteStore) ListAuditEvents(ctx context.Context, userID string, limit int) ([]AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, user_id, subscription_id, detail, created_at
		 FROM audit_events WHERE user_id=? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	return scanAuditEvents(rows)
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
