package referral

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"smallbiznis-reputation/pkg/config"
	"smallbiznis-reputation/pkg/errutil"
	"smallbiznis-reputation/pkg/notification"
	"smallbiznis-reputation/services/business"
	"smallbiznis-reputation/services/customer"
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

type fixture struct {
	svc        *Service
	db         *gorm.DB
	businesses *business.Service
	customers  *customer.Service
	biz        *business.Business
	cust       *customer.Customer
	gateway    *fakeGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	var models []any
	models = append(models, business.Models()...)
	models = append(models, customer.Models()...)
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

	f := &fixture{
		db:         db,
		businesses: businesses,
		customers:  customers,
		biz:        biz,
		cust:       cust,
		gateway:    &fakeGateway{},
	}
	f.svc = NewService(ServiceParams{
		DB:         db,
		Node:       node,
		Config:     &config.Config{PublicBaseURL: "https://reviews.example.com"},
		Businesses: businesses,
		Customers:  customers,
		Gateway:    f.gateway,
	})
	return f
}

var tokenPattern = regexp.MustCompile(`^[0-9A-F]{8}$`)

func TestNewTokenFormat(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok := NewToken()
		require.Regexp(t, tokenPattern, tok)
		seen[tok] = true
	}
	require.Greater(t, len(seen), 90)
}

func TestIssueCreatesReferralAndSendsOneEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ref, err := f.svc.Issue(ctx, f.cust.ID, "rev_1")
	require.NoError(t, err)
	require.NotNil(t, ref)
	require.Regexp(t, tokenPattern, ref.Token)
	require.True(t, ref.RewardSent)
	require.Equal(t, business.DefaultRewardValue, ref.RewardValue)

	require.Len(t, f.gateway.sent, 1)
	msg := f.gateway.sent[0]
	require.Equal(t, "ana@example.com", msg.To)
	require.Equal(t, RewardSubject, msg.Subject)
	require.Contains(t, msg.Text, "Dear Ana,")
	require.Contains(t, msg.Text, "offer you 10% off next service")
	require.Contains(t, msg.Text, "https://reviews.example.com/referral/"+ref.Token)
	require.Contains(t, msg.Text, "Corner Cafe Team")

	c, err := f.customers.GetByID(ctx, f.cust.ID)
	require.NoError(t, err)
	require.True(t, c.HasTag(customer.TagReferrer))

	again, err := f.svc.Issue(ctx, f.cust.ID, "rev_1")
	require.NoError(t, err)
	require.Equal(t, ref.ID, again.ID)
	require.Len(t, f.gateway.sent, 1)
}

func TestIssueSkipsWhenDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	off := false
	_, err := f.businesses.UpdateSettings(ctx, f.biz.ID, business.SettingsUpdate{ReferralRewardEnabled: &off})
	require.NoError(t, err)

	ref, err := f.svc.Issue(ctx, f.cust.ID, "rev_1")
	require.NoError(t, err)
	require.Nil(t, ref)
	require.Empty(t, f.gateway.sent)

	require.Zero(t, testutil.Count(t, f.db, &Referral{}))
}

func TestIssueTokenCollisionIsAnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.newToken = func() string { return "ABCDEF12" }

	_, err := f.svc.Issue(ctx, f.cust.ID, "rev_1")
	require.NoError(t, err)

	_, err = f.svc.Issue(ctx, f.cust.ID, "rev_2")
	require.ErrorIs(t, err, ErrTokenCollision)
	require.Len(t, f.gateway.sent, 1)

	require.EqualValues(t, 1, testutil.Count(t, f.db, &Referral{}))
}

func TestIssueReturnsReferralFromConcurrentWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Another worker inserts the referral for the same review between the
	// existence check and this call's insert.
	f.svc.newToken = func() string {
		require.NoError(t, f.db.Create(&Referral{
			ID:             "ref_winner",
			BusinessID:     f.biz.ID,
			CustomerID:     f.cust.ID,
			SourceReviewID: "rev_1",
			Token:          "WINNER01",
		}).Error)
		return "LOSER002"
	}

	ref, err := f.svc.Issue(ctx, f.cust.ID, "rev_1")
	require.NoError(t, err)
	require.Equal(t, "ref_winner", ref.ID)
	require.Equal(t, "WINNER01", ref.Token)
	require.Empty(t, f.gateway.sent)

	require.EqualValues(t, 1, testutil.Count(t, f.db, &Referral{}, "source_review_id = ?", "rev_1"))
}

func TestIssueKeepsReferralWhenEmailFails(t *testing.T) {
	f := newFixture(t)
	failed := notification.Failed(notification.ReasonTransport, errors.New("smtp down"))
	f.gateway.result = &failed

	ref, err := f.svc.Issue(context.Background(), f.cust.ID, "rev_1")
	require.NoError(t, err)
	require.False(t, ref.RewardSent)
	require.Len(t, f.gateway.sent, 1)

	var stored Referral
	require.NoError(t, f.db.First(&stored, "id = ?", ref.ID).Error)
	require.False(t, stored.RewardSent)
}

func TestIssueUsesConfiguredReward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reward := "a free pastry"
	_, err := f.businesses.UpdateSettings(ctx, f.biz.ID, business.SettingsUpdate{ReferralRewardValue: &reward})
	require.NoError(t, err)

	ref, err := f.svc.Issue(ctx, f.cust.ID, "rev_1")
	require.NoError(t, err)
	require.Equal(t, reward, ref.RewardValue)
	require.Contains(t, f.gateway.sent[0].Text, "offer you a free pastry")
}

func TestRedeem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ref, err := f.svc.Issue(ctx, f.cust.ID, "rev_1")
	require.NoError(t, err)

	friend, err := f.customers.Create(ctx, f.biz.ID, customer.CreateInput{Name: "Bo", Email: "bo@example.com"})
	require.NoError(t, err)

	_, err = f.svc.Redeem(ctx, f.biz.ID, ref.Token, f.cust.ID)
	require.ErrorIs(t, err, ErrSelfReferral)

	out, err := f.svc.Redeem(ctx, f.biz.ID, ref.Token, friend.ID)
	require.NoError(t, err)
	require.NotNil(t, out.UsedAt)
	require.Equal(t, friend.ID, *out.ReferredCustomerID)

	_, err = f.svc.Redeem(ctx, f.biz.ID, ref.Token, friend.ID)
	require.ErrorIs(t, err, ErrAlreadyRedeemed)

	view, err := f.svc.View(ctx, ref.Token)
	require.NoError(t, err)
	require.True(t, view.Redeemed)
	require.Equal(t, "Ana", view.ReferrerName)

	_, err = f.svc.Redeem(ctx, "other", ref.Token, friend.ID)
	require.True(t, errutil.HasStatus(err, errutil.StatusNotFound))
}

func TestRewardBody(t *testing.T) {
	body := RewardBody("Ana", "Cafe", "10% off", "https://x/referral/AB12CD34")
	require.Equal(t, `Dear Ana,

Thank you so much for your 5-star review! We're thrilled that you had such a positive experience with Cafe.

As a token of our appreciation, we'd like to offer you 10% off and invite you to share Cafe with friends and family.

Your personal referral link: https://x/referral/AB12CD34

When someone books through your link, they'll receive a special welcome offer, and you'll get additional rewards!

Thank you again for your support.

Best regards,
Cafe Team`, body)
}
