package store

import (
	"context"
	"errors"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealplanpro/mealplan/billing/internal/config"
)

func configFor(driver, dsn string) config.StorageConfig {
	return config.StorageConfig{Driver: driver, DSN: dsn}
}

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newPostgresFromDB(db), mock
}

func TestPostgresUpsertPendingSubscription(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sub := &Subscription{
		ID:                     "rec-1",
		UserID:                 "user-1",
		RazorpaySubscriptionID: "sub_1",
		RazorpayPlanID:         "plan_1",
		Status:                 StatusActive,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO subscriptions`)).
		WithArgs("rec-1", "user-1", "sub_1", "plan_1", StatusPending, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpsertPendingSubscription(context.Background(), sub))
	assert.Equal(t, StatusPending, sub.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertUsesConflictClause(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`ON CONFLICT\(user_id\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpsertPendingSubscription(context.Background(), &Subscription{
		ID: "rec-1", UserID: "user-1", CreatedAt: now, UpdatedAt: now,
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresActivateSubscription(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE subscriptions SET status=$1`)).
		WithArgs(StatusActive, start, end, start, "user-1", "sub_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.ActivateSubscription(context.Background(), "user-1", "sub_1", start, end))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresActivateSubscriptionNoRows(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE subscriptions`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.ActivateSubscription(context.Background(), "user-1", "sub_1", now, now)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresActivateSubscriptionError(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	dbErr := errors.New("connection reset")

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE subscriptions`)).WillReturnError(dbErr)

	err := s.ActivateSubscription(context.Background(), "user-1", "sub_1", now, now)
	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func subscriptionColumns() []string {
	return []string{"id", "user_id", "razorpay_subscription_id", "razorpay_plan_id", "status",
		"current_period_start", "current_period_end", "created_at", "updated_at"}
}

func TestPostgresGetSubscriptionByUser(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)

	rows := sqlmock.NewRows(subscriptionColumns()).
		AddRow("rec-1", "user-1", "sub_1", "plan_1", StatusActive, start, end, start, start)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM subscriptions WHERE user_id=$1`)).
		WithArgs("user-1").
		WillReturnRows(rows)

	sub, err := s.GetSubscriptionByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "sub_1", sub.RazorpaySubscriptionID)
	assert.True(t, sub.IsActive())
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, sub.CurrentPeriodEnd.Equal(end))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetSubscriptionByUserPending(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(subscriptionColumns()).
		AddRow("rec-1", "user-1", "sub_1", "plan_1", StatusPending, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM subscriptions`)).WillReturnRows(rows)

	sub, err := s.GetSubscriptionByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Nil(t, sub.CurrentPeriodStart)
	assert.Nil(t, sub.CurrentPeriodEnd)
	assert.False(t, sub.IsActive())
}

func TestPostgresGetSubscriptionByUserMissing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM subscriptions`)).
		WillReturnRows(sqlmock.NewRows(subscriptionColumns()))

	sub, err := s.GetSubscriptionByUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, sub)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLogAuditEvent(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO audit_events`)).
		WithArgs("ev-1", AuditPaymentRejected, "user-1", "sub_1", "{}", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.LogAuditEvent(context.Background(), &AuditEvent{
		ID: "ev-1", Action: AuditPaymentRejected, UserID: "user-1", SubscriptionID: "sub_1", CreatedAt: now,
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListAuditEvents(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "action", "user_id", "subscription_id", "detail", "created_at"}).
		AddRow("ev-2", AuditPaymentVerified, "user-1", "sub_1", []byte(`{}`), now).
		AddRow("ev-1", AuditSubscriptionCreated, "user-1", "sub_1", []byte(`{"plan_id":"plan_1"}`), now.Add(-time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM audit_events WHERE user_id=$1`)).
		WithArgs("user-1", int64(100)).
		WillReturnRows(rows)

	events, err := s.ListAuditEvents(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ev-2", events[0].ID)
	assert.JSONEq(t, `{"plan_id":"plan_1"}`, string(events[1].Detail))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("database is down"))
	s := newPostgresFromDB(db)
	assert.Error(t, s.Ping(context.Background()))
}

func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set, skipping Postgres tests")
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestPostgresFullFlow runs the pending -> active lifecycle against a live database.
func TestPostgresFullFlow(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()

	userID := "user_test_" + uuid.New().String()[:8]
	subID := "sub_test_" + uuid.New().String()[:8]
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, s.UpsertPendingSubscription(ctx, &Subscription{
		ID: uuid.New().String(), UserID: userID, RazorpaySubscriptionID: subID, RazorpayPlanID: "plan_test",
		CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, s.ActivateSubscription(ctx, userID, subID, now, now.Add(30*24*time.Hour)))

	sub, err := s.GetSubscriptionByUser(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.True(t, sub.IsActive())

	assert.ErrorIs(t, s.ActivateSubscription(ctx, "someone-else", subID, now, now), ErrNotFound)
}
