package followup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"smallbiznis-reputation/pkg/config"
	"smallbiznis-reputation/pkg/notification"
	"smallbiznis-reputation/services/business"
	"smallbiznis-reputation/services/customer"
	"smallbiznis-reputation/services/review"
	"smallbiznis-reputation/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeGateway struct {
	mu     sync.Mutex
	sent   []notification.Message
	result *notification.Result
}

func (f *fakeGateway) Send(_ context.Context, msg notification.Message) notification.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if f.result != nil {
		return *f.result
	}
	return notification.Delivered()
}

type draftCall struct {
	step      int
	incentive string
}

type fakeDrafter struct {
	mu    sync.Mutex
	calls []draftCall
}

func (f *fakeDrafter) DraftFollowUp(_ context.Context, customerName, businessName string, step int, incentive string) (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, draftCall{step: step, incentive: incentive})
	return fmt.Sprintf("Step %d for %s", step, customerName), fmt.Sprintf("Hi %s, please review %s.", customerName, businessName)
}

type fixture struct {
	svc        *Service
	db         *gorm.DB
	businesses *business.Service
	customers  *customer.Service
	biz        *business.Business
	cust       *customer.Customer
	gateway    *fakeGateway
	drafter    *fakeDrafter
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	var models []any
	models = append(models, business.Models()...)
	models = append(models, customer.Models()...)
	models = append(models, review.Models()...)
	models = append(models, Models()...)
	db := testutil.NewTestDB(t, models...)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	businesses := business.NewService(business.ServiceParams{DB: db, Node: node})
	customers := customer.NewService(customer.ServiceParams{DB: db, Node: node})

	biz, err := businesses.CreateBusiness(ctx, business.CreateBusinessInput{Name: "Corner Cafe", OwnerEmail: "owner@example.com"})
	require.NoError(t, err)
	cust, err := customers.Create(ctx, biz.ID, customer.CreateInput{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)

	cfg := &config.Config{PublicBaseURL: "https://reviews.example.com"}
	cfg.Automation.CustomerParallel = 1
	cfg.Automation.SendingGrace = time.Hour

	f := &fixture{
		db:         db,
		businesses: businesses,
		customers:  customers,
		biz:        biz,
		cust:       cust,
		gateway:    &fakeGateway{},
		drafter:    &fakeDrafter{},
		now:        time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(ServiceParams{
		DB:         db,
		Node:       node,
		Config:     cfg,
		Businesses: businesses,
		Customers:  customers,
		Gateway:    f.gateway,
		Drafter:    f.drafter,
	})
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) rows(t *testing.T, customerID string) []*FollowUpSequence {
	t.Helper()
	var rows []*FollowUpSequence
	require.NoError(t, f.db.Where("customer_id = ?", customerID).Order("step asc").Find(&rows).Error)
	return rows
}

func TestScheduleCreatesOneRowPerDelay(t *testing.T) {
	f := newFixture(t)

	n, err := f.svc.Schedule(context.Background(), f.cust.ID)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	rows := f.rows(t, f.cust.ID)
	require.Len(t, rows, 3)
	for i, days := range []int{3, 7, 14} {
		require.Equal(t, i+1, rows[i].Step)
		require.Equal(t, StatusScheduled, rows[i].Status)
		require.True(t, rows[i].ScheduledFor.Equal(f.now.AddDate(0, 0, days)), "step %d", i+1)
	}
}

func TestScheduleIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Schedule(ctx, f.cust.ID)
	require.NoError(t, err)

	n, err := f.svc.Schedule(ctx, f.cust.ID)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Len(t, f.rows(t, f.cust.ID), 3)
}

func TestScheduleSkipsZeroDelaysAndDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	zero := 0
	_, err := f.businesses.UpdateSettings(ctx, f.biz.ID, business.SettingsUpdate{FollowUpDelay2: &zero})
	require.NoError(t, err)

	n, err := f.svc.Schedule(ctx, f.cust.ID)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	rows := f.rows(t, f.cust.ID)
	require.Equal(t, 1, rows[0].Step)
	require.Equal(t, 3, rows[1].Step)

	other, err := f.customers.Create(ctx, f.biz.ID, customer.CreateInput{Name: "Bo", Email: "bo@example.com"})
	require.NoError(t, err)
	off := false
	_, err = f.businesses.UpdateSettings(ctx, f.biz.ID, business.SettingsUpdate{FollowUpEnabled: &off})
	require.NoError(t, err)

	n, err = f.svc.Schedule(ctx, other.ID)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, f.rows(t, other.ID))
}

func TestProcessDueSendsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Schedule(ctx, f.cust.ID)
	require.NoError(t, err)

	early, err := f.svc.ProcessDue(ctx, f.now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Zero(t, early.Due)
	require.Empty(t, f.gateway.sent)

	at := f.now.AddDate(0, 0, 4)
	f.now = at
	sum, err := f.svc.ProcessDue(ctx, at)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Due)
	require.Equal(t, 1, sum.Sent)
	require.Len(t, f.gateway.sent, 1)
	require.Equal(t, "Step 1 for Ana", f.gateway.sent[0].Subject)

	again, err := f.svc.ProcessDue(ctx, at)
	require.NoError(t, err)
	require.Zero(t, again.Sent)
	require.Len(t, f.gateway.sent, 1)

	rows := f.rows(t, f.cust.ID)
	require.Equal(t, StatusSent, rows[0].Status)
	require.NotNil(t, rows[0].SentAt)
	require.Equal(t, "Hi Ana, please review Corner Cafe.", rows[0].EmailContent)
	require.Equal(t, StatusScheduled, rows[1].Status)
}

func TestProcessDuePassesIncentiveOnlyOnFinalStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Schedule(ctx, f.cust.ID)
	require.NoError(t, err)

	sum, err := f.svc.ProcessDue(ctx, f.now.AddDate(0, 0, 15))
	require.NoError(t, err)
	require.Equal(t, 3, sum.Sent)

	require.Equal(t, []draftCall{
		{step: 1},
		{step: 2},
		{step: 3, incentive: business.DefaultRewardValue},
	}, f.drafter.calls)
}

func TestProcessDueSuppressedByReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Schedule(ctx, f.cust.ID)
	require.NoError(t, err)

	// Reviewed within a day before step 1 was due.
	require.NoError(t, f.db.Create(&review.Review{
		ID:              "rev_1",
		BusinessID:      f.biz.ID,
		CustomerID:      f.cust.ID,
		ReviewRequestID: "req_1",
		Rating:          5,
		Status:          review.StatusPending,
		CreatedAt:       f.now.AddDate(0, 0, 2).Add(2 * time.Hour),
	}).Error)

	sum, err := f.svc.ProcessDue(ctx, f.now.AddDate(0, 0, 4))
	require.NoError(t, err)
	require.Equal(t, 3, sum.Cancelled)
	require.Zero(t, sum.Sent)
	require.Empty(t, f.gateway.sent)

	for _, row := range f.rows(t, f.cust.ID) {
		require.Equal(t, StatusCancelled, row.Status)
	}
}

func TestProcessDueIgnoresOldReviews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.Create(&review.Review{
		ID:              "rev_old",
		BusinessID:      f.biz.ID,
		CustomerID:      f.cust.ID,
		ReviewRequestID: "req_old",
		Rating:          4,
		Status:          review.StatusPending,
		CreatedAt:       f.now.AddDate(0, -2, 0),
	}).Error)

	_, err := f.svc.Schedule(ctx, f.cust.ID)
	require.NoError(t, err)

	sum, err := f.svc.ProcessDue(ctx, f.now.AddDate(0, 0, 4))
	require.NoError(t, err)
	require.Equal(t, 1, sum.Sent)
	require.Zero(t, sum.Cancelled)
}

func TestProcessDueUsesPresetContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg := "Hi {customer_name}, {business_name} would love a review: {review_link}"
	_, err := f.businesses.UpdateSettings(ctx, f.biz.ID, business.SettingsUpdate{FollowUpMessage1: &msg})
	require.NoError(t, err)

	require.NoError(t, f.db.Create(&review.ReviewRequest{
		ID:         "req_1",
		BusinessID: f.biz.ID,
		CustomerID: f.cust.ID,
		Token:      "tok-123",
		Status:     review.RequestSent,
		SentAt:     f.now,
	}).Error)

	_, err = f.svc.Schedule(ctx, f.cust.ID)
	require.NoError(t, err)

	sum, err := f.svc.ProcessDue(ctx, f.now.AddDate(0, 0, 4))
	require.NoError(t, err)
	require.Equal(t, 1, sum.Sent)
	require.Empty(t, f.drafter.calls)

	require.Len(t, f.gateway.sent, 1)
	require.Equal(t, ReminderSubject, f.gateway.sent[0].Subject)
	require.Equal(t, "Hi Ana, Corner Cafe would love a review: https://reviews.example.com/r/tok-123", f.gateway.sent[0].Text)
}

func TestProcessDueRetriesFailedDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Schedule(ctx, f.cust.ID)
	require.NoError(t, err)

	failed := notification.Failed(notification.ReasonTransport, errors.New("smtp down"))
	f.gateway.result = &failed

	at := f.now.AddDate(0, 0, 4)
	sum, err := f.svc.ProcessDue(ctx, at)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Failed)

	rows := f.rows(t, f.cust.ID)
	require.Equal(t, StatusScheduled, rows[0].Status)
	require.Equal(t, 1, rows[0].Attempts)
	require.Nil(t, rows[0].SentAt)

	f.gateway.result = nil
	sum, err = f.svc.ProcessDue(ctx, at)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Sent)

	rows = f.rows(t, f.cust.ID)
	require.Equal(t, StatusSent, rows[0].Status)
	require.Equal(t, 2, rows[0].Attempts)
}

func TestProcessDueCancelsRowAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.maxAttempt = 2

	_, err := f.svc.Schedule(ctx, f.cust.ID)
	require.NoError(t, err)

	failed := notification.Failed(notification.ReasonInvalidRecipient, errors.New("mailbox unavailable"))
	f.gateway.result = &failed
	at := f.now.AddDate(0, 0, 4)

	sum, err := f.svc.ProcessDue(ctx, at)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Failed)
	require.Zero(t, sum.Abandoned)
	require.Equal(t, StatusScheduled, f.rows(t, f.cust.ID)[0].Status)

	sum, err = f.svc.ProcessDue(ctx, at)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Abandoned)

	rows := f.rows(t, f.cust.ID)
	require.Equal(t, StatusCancelled, rows[0].Status)
	require.Equal(t, 2, rows[0].Attempts)
	require.Equal(t, StatusScheduled, rows[1].Status)

	sum, err = f.svc.ProcessDue(ctx, at)
	require.NoError(t, err)
	require.Zero(t, sum.Due)
	require.Len(t, f.gateway.sent, 2)
}

func TestProcessDueCancelsRowWithoutRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.maxAttempt = 1

	_, err := f.svc.Schedule(ctx, f.cust.ID)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&customer.Customer{}).Where("id = ?", f.cust.ID).Update("email", "").Error)

	sum, err := f.svc.ProcessDue(ctx, f.now.AddDate(0, 0, 4))
	require.NoError(t, err)
	require.Equal(t, 1, sum.Abandoned)
	require.Empty(t, f.gateway.sent)
	require.Equal(t, StatusCancelled, f.rows(t, f.cust.ID)[0].Status)
}

func TestScheduleBlockedBySendingRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Schedule(ctx, f.cust.ID)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&FollowUpSequence{}).
		Where("customer_id = ? AND step = ?", f.cust.ID, 1).
		Update("status", string(StatusSending)).Error)
	require.NoError(t, f.db.Model(&FollowUpSequence{}).
		Where("customer_id = ? AND step > ?", f.cust.ID, 1).
		Update("status", string(StatusSent)).Error)

	n, err := f.svc.Schedule(ctx, f.cust.ID)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Len(t, f.rows(t, f.cust.ID), 3)
}

func TestProcessDueRecoversStaleSendingRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Schedule(ctx, f.cust.ID)
	require.NoError(t, err)

	at := f.now.AddDate(0, 0, 4)
	claimed := at.Add(-2 * time.Hour)
	rows := f.rows(t, f.cust.ID)
	require.NoError(t, f.db.Model(&FollowUpSequence{}).Where("id = ?", rows[0].ID).Updates(map[string]any{
		"status":     string(StatusSending),
		"claimed_at": claimed,
	}).Error)

	sum, err := f.svc.ProcessDue(ctx, at)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Recovered)
	require.Equal(t, 1, sum.Sent)
}

func TestProcessDueLeavesFreshSendingRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Schedule(ctx, f.cust.ID)
	require.NoError(t, err)

	at := f.now.AddDate(0, 0, 4)
	rows := f.rows(t, f.cust.ID)
	require.NoError(t, f.db.Model(&FollowUpSequence{}).Where("id = ?", rows[0].ID).Updates(map[string]any{
		"status":     string(StatusSending),
		"claimed_at": at.Add(-time.Minute),
	}).Error)

	sum, err := f.svc.ProcessDue(ctx, at)
	require.NoError(t, err)
	require.Zero(t, sum.Recovered)
	require.Zero(t, sum.Due)
	require.Empty(t, f.gateway.sent)
}

func TestProcessDueIsolatesCustomers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.customers.Create(ctx, f.biz.ID, customer.CreateInput{Name: "Bo", Email: "bo@example.com"})
	require.NoError(t, err)

	_, err = f.svc.Schedule(ctx, f.cust.ID)
	require.NoError(t, err)
	_, err = f.svc.Schedule(ctx, other.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.Create(&review.Review{
		ID:              "rev_1",
		BusinessID:      f.biz.ID,
		CustomerID:      f.cust.ID,
		ReviewRequestID: "req_1",
		Rating:          5,
		Status:          review.StatusPending,
		CreatedAt:       f.now.AddDate(0, 0, 3),
	}).Error)

	sum, err := f.svc.ProcessDue(ctx, f.now.AddDate(0, 0, 4))
	require.NoError(t, err)
	require.Equal(t, 3, sum.Cancelled)
	require.Equal(t, 1, sum.Sent)
	require.Len(t, f.gateway.sent, 1)
	require.Equal(t, "bo@example.com", f.gateway.sent[0].To)
}
