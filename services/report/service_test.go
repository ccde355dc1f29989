package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

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

type memStore struct {
	objects map[string][]byte
	err     error
}

func (m *memStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return "reports/" + key, nil
}

type fixture struct {
	svc   *Service
	db    *gorm.DB
	store *memStore
	biz   *business.Business
	ana   *customer.Customer
	ben   *customer.Customer
	now   time.Time
	seq   int
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
	ana, err := customers.Create(ctx, biz.ID, customer.CreateInput{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	ben, err := customers.Create(ctx, biz.ID, customer.CreateInput{Name: "Ben", Email: "ben@example.com"})
	require.NoError(t, err)

	f := &fixture{db: db, store: &memStore{}, biz: biz, ana: ana, ben: ben, now: time.Now().UTC()}
	f.svc = NewService(ServiceParams{DB: db, Node: node, Businesses: businesses, Store: f.store})
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) addReview(t *testing.T, c *customer.Customer, rating int, comment, sentiment string, status review.Status, age time.Duration) {
	t.Helper()
	f.seq++
	require.NoError(t, f.db.Create(&review.Review{
		ID:              fmt.Sprintf("rev_%d", f.seq),
		BusinessID:      f.biz.ID,
		CustomerID:      c.ID,
		ReviewRequestID: fmt.Sprintf("req_%d", f.seq),
		Rating:          rating,
		Comment:         comment,
		Sentiment:       sentiment,
		Status:          status,
		CreatedAt:       f.now.Add(-age),
	}).Error)
}

func TestIsDue(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	eightDaysAgo := now.AddDate(0, 0, -8)
	threeDaysAgo := now.AddDate(0, 0, -3)

	due, days := IsDue(business.ReportWeekly, &eightDaysAgo, now)
	require.True(t, due)
	require.Equal(t, 8, days)

	due, days = IsDue(business.ReportWeekly, &threeDaysAgo, now)
	require.False(t, due)
	require.Equal(t, 3, days)

	due, days = IsDue(business.ReportWeekly, nil, now)
	require.True(t, due)
	require.Equal(t, NeverGenerated, days)

	almostWeek := now.Add(-(7*24*time.Hour - time.Minute))
	due, _ = IsDue(business.ReportWeekly, &almostWeek, now)
	require.False(t, due)

	monthAgo := now.AddDate(0, 0, -30)
	due, _ = IsDue(business.ReportMonthly, &monthAgo, now)
	require.True(t, due)
	due, _ = IsDue(business.ReportMonthly, &eightDaysAgo, now)
	require.False(t, due)

	due, _ = IsDue(business.ReportFrequency("daily"), nil, now)
	require.False(t, due)
}

func TestDueUsesLastGenerationOfSameCadence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due, days, err := f.svc.Due(ctx, f.biz.ID, business.ReportWeekly, f.now)
	require.NoError(t, err)
	require.True(t, due)
	require.Equal(t, NeverGenerated, days)

	_, err = f.svc.Record(ctx, RecordInput{
		BusinessID:   f.biz.ID,
		Frequency:    business.ReportWeekly,
		GeneratedAt:  f.now.AddDate(0, 0, -8),
		ArtifactPath: "reports/a.pdf",
		SentTo:       []string{"owner@example.com"},
	})
	require.NoError(t, err)

	due, days, err = f.svc.Due(ctx, f.biz.ID, business.ReportWeekly, f.now)
	require.NoError(t, err)
	require.True(t, due)
	require.Equal(t, 8, days)

	_, err = f.svc.Record(ctx, RecordInput{
		BusinessID:   f.biz.ID,
		Frequency:    business.ReportWeekly,
		GeneratedAt:  f.now.AddDate(0, 0, -3),
		ArtifactPath: "reports/b.pdf",
	})
	require.NoError(t, err)

	due, days, err = f.svc.Due(ctx, f.biz.ID, business.ReportWeekly, f.now)
	require.NoError(t, err)
	require.False(t, due)
	require.Equal(t, 3, days)

	due, _, err = f.svc.Due(ctx, f.biz.ID, business.ReportMonthly, f.now)
	require.NoError(t, err)
	require.True(t, due)

	rows, err := f.svc.List(ctx, f.biz.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "reports/b.pdf", rows[0].ArtifactPath)
}

func TestAggregateWeekly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := 24 * time.Hour

	f.addReview(t, f.ana, 5, "Great coffee", "positive", review.StatusResponded, 6*day)
	f.addReview(t, f.ben, 4, "", "positive", review.StatusPending, 5*day)
	f.addReview(t, f.ana, 2, strings.Repeat("x", 160), "negative", review.StatusPending, 4*day)
	f.addReview(t, f.ben, 5, "Lovely", "", review.StatusForwardedToGoogle, 3*day)
	f.addReview(t, f.ana, 3, "Okay", "neutral", review.StatusNeedsResponse, 2*day)
	f.addReview(t, f.ben, 1, "Cold food", "very_negative", review.StatusResponded, day)
	// Outside the window, still pending.
	f.addReview(t, f.ben, 1, "Rude staff", "negative", review.StatusPending, 20*day)

	d, err := f.svc.Aggregate(ctx, f.biz.ID, business.ReportWeekly, f.now)
	require.NoError(t, err)

	require.Equal(t, "Weekly Review Report - Corner Cafe", d.Title())
	require.True(t, strings.HasPrefix(d.PeriodLine(), "Report Period: "))
	require.Equal(t, 6, d.TotalReviews)
	require.InDelta(t, 20.0/6.0, d.AverageRating, 0.0001)
	require.Equal(t, int64(2), d.NewCustomers)
	require.Equal(t, [5]int{1, 1, 1, 1, 2}, d.Histogram)

	rows := d.SummaryRows()
	require.Equal(t, []string{"Average Rating", "3.3/5.0"}, rows[1])
	require.Equal(t, []string{"5-Star Reviews", "2"}, rows[3])
	require.Equal(t, []string{"1-Star Reviews", "1"}, rows[7])

	require.Equal(t, []SentimentCount{
		{Sentiment: "Positive", Count: 2},
		{Sentiment: "Negative", Count: 1},
		{Sentiment: "Neutral", Count: 1},
		{Sentiment: "Very Negative", Count: 1},
	}, d.Sentiments)

	require.Len(t, d.Recent, 5)
	require.Equal(t, 4, d.Recent[0].Rating)
	require.Equal(t, "Ben", d.Recent[0].CustomerName)
	require.Equal(t, strings.Repeat("x", 100)+"...", d.Recent[1].Comment)
	require.Equal(t, "Cold food", d.Recent[4].Comment)

	require.Len(t, d.Attention, 2)
	require.Equal(t, "Rude staff", d.Attention[0].Comment)
	require.Equal(t, strings.Repeat("x", 150)+"...", d.Attention[1].Comment)
	require.Equal(t, "Ana", d.Attention[1].CustomerName)
}

func TestAggregateMonthlyWindowAndEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.Aggregate(ctx, f.biz.ID, business.ReportMonthly, f.now)
	require.NoError(t, err)
	require.Equal(t, 0, d.TotalReviews)
	require.Equal(t, "0.0/5.0", d.SummaryRows()[1][1])
	require.Empty(t, d.Sentiments)
	require.Empty(t, d.Recent)

	f.addReview(t, f.ana, 4, "Nice", "", review.StatusPending, 20*24*time.Hour)
	d, err = f.svc.Aggregate(ctx, f.biz.ID, business.ReportMonthly, f.now)
	require.NoError(t, err)
	require.Equal(t, 1, d.TotalReviews)
	require.Equal(t, f.now.AddDate(0, 0, -30), d.Start)
}

func TestAggregateRejectsUnknownPeriod(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Aggregate(context.Background(), f.biz.ID, business.ReportFrequency("daily"), f.now)
	require.Error(t, err)
}

func TestBuildStoresPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addReview(t, f.ana, 2, "Café was cold", "negative", review.StatusPending, time.Hour)

	art, err := f.svc.Build(ctx, f.biz.ID, business.ReportWeekly, f.now)
	require.NoError(t, err)
	require.Equal(t, "Weekly Review Report - Corner Cafe", art.Title)
	require.True(t, bytes.HasPrefix(art.Data, []byte("%PDF")))

	key := ObjectKey(f.biz.ID, f.biz.Name, business.ReportWeekly, f.now)
	require.Equal(t, "reports/"+key, art.Path)
	require.True(t, strings.HasPrefix(key, f.biz.ID+"/corner-cafe-weekly-report-"))
	require.True(t, strings.HasSuffix(art.Filename, ".pdf"))
	require.Contains(t, f.store.objects, key)
}

func TestBuildFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.err = errors.New("bucket unavailable")
	art, err := f.svc.Build(ctx, f.biz.ID, business.ReportWeekly, f.now)
	require.Error(t, err)
	require.Nil(t, art)

	f.svc.store = nil
	_, err = f.svc.Build(ctx, f.biz.ID, business.ReportWeekly, f.now)
	require.ErrorIs(t, err, ErrNoArtifactStore)

	f.svc.store = &memStore{}
	_, err = f.svc.Build(ctx, "missing", business.ReportWeekly, f.now)
	require.Error(t, err)
}

func TestPreviewDoesNotStore(t *testing.T) {
	f := newFixture(t)
	art, err := f.svc.Preview(context.Background(), f.biz.ID, business.ReportMonthly)
	require.NoError(t, err)
	require.Empty(t, art.Path)
	require.True(t, bytes.HasPrefix(art.Data, []byte("%PDF")))
	require.Empty(t, f.store.objects)
}

func TestTruncateAndTitleCase(t *testing.T) {
	require.Equal(t, "short", truncate("short", 100))
	require.Equal(t, "ab...", truncate("abc", 2))
	require.Equal(t, "Very Positive", titleCase("very_positive"))
	require.Equal(t, "", titleCase(""))
}
