package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smallbiznis-reputation/pkg/config"
	"smallbiznis-reputation/pkg/db/option"
	"smallbiznis-reputation/pkg/errutil"
	"smallbiznis-reputation/pkg/logger"
	"smallbiznis-reputation/pkg/metrics"
	"smallbiznis-reputation/pkg/notification"
	"smallbiznis-reputation/pkg/repository"
	"smallbiznis-reputation/services/business"
	"smallbiznis-reputation/services/customer"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const TokenLength = 8

var (
	ErrReferralNotFound = errors.New("referral not found")
	ErrTokenCollision   = errors.New("referral token collision")
	ErrAlreadyRedeemed  = errors.New("referral already redeemed")
	ErrSelfReferral     = errors.New("customer cannot redeem their own referral")
)

type Service struct {
	db         *gorm.DB
	node       *snowflake.Node
	baseURL    string
	businesses *business.Service
	customers  *customer.Service
	repo       repository.Repository[Referral]
	gateway    notification.Gateway
	newToken   func() string
	now        func() time.Time
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Node       *snowflake.Node
	Config     *config.Config
	Businesses *business.Service
	Customers  *customer.Service
	Gateway    notification.Gateway
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:         p.DB,
		node:       p.Node,
		baseURL:    p.Config.PublicBaseURL,
		businesses: p.Businesses,
		customers:  p.Customers,
		repo:       repository.ProvideStore[Referral](p.DB),
		gateway:    p.Gateway,
		newToken:   NewToken,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// NewToken returns an 8 character uppercase token taken from a random UUID.
func NewToken() string {
	return strings.ToUpper(uuid.NewString()[:TokenLength])
}

// Link is the public referral page for token.
func Link(baseURL, token string) string {
	return fmt.Sprintf("%s/referral/%s", strings.TrimRight(baseURL, "/"), token)
}

// TriggerReward issues the referral for a 5-star review.
func (s *Service) TriggerReward(ctx context.Context, customerID, reviewID string) error {
	_, err := s.Issue(ctx, customerID, reviewID)
	return err
}

// Issue creates the referral for reviewID and emails the customer their
// link. It returns nil, nil when referral rewards are disabled. Calling it
// again for the same review returns the existing referral without a
// second email, including when a concurrent call for the same review wins
// the insert. A token collision is returned as an error, never retried.
func (s *Service) Issue(ctx context.Context, customerID, reviewID string) (*Referral, error) {
	zapLog := logger.FromContext(ctx).With(zap.String("customer_id", customerID), zap.String("review_id", reviewID))

	c, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	settings, err := s.businesses.GetSettings(ctx, c.BusinessID)
	if err != nil {
		return nil, err
	}
	if !settings.ReferralRewardEnabled {
		zapLog.Debug("[Referral] rewards disabled, skipping")
		return nil, nil
	}

	existing, err := s.repo.FindOne(ctx, &Referral{SourceReviewID: reviewID})
	if err != nil {
		return nil, errutil.Internal("failed to get referral", err)
	}
	if existing != nil {
		return existing, nil
	}

	ref := &Referral{
		ID:             s.node.Generate().String(),
		BusinessID:     c.BusinessID,
		CustomerID:     c.ID,
		SourceReviewID: reviewID,
		Token:          s.newToken(),
		RewardValue:    settings.RewardValue(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTrx(tx).Create(ctx, ref); err != nil {
			return err
		}
		return customer.AddTag(ctx, tx, c.ID, customer.TagReferrer)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			winner, findErr := s.repo.FindOne(ctx, &Referral{SourceReviewID: reviewID})
			if findErr == nil && winner != nil {
				zapLog.Info("[Referral] referral issued concurrently", zap.String("referral_id", winner.ID))
				return winner, nil
			}
			zapLog.Error("[Referral] token collision", zap.String("token", ref.Token))
			return nil, errutil.Conflict(ErrTokenCollision.Error(), ErrTokenCollision)
		}
		zapLog.Error("[Referral] failed to create referral", zap.Error(err))
		return nil, errutil.Internal("failed to create referral", err)
	}
	metrics.ReferralsIssuedTotal.Inc()

	b, err := s.businesses.GetBusiness(ctx, c.BusinessID)
	if err != nil {
		zapLog.Error("[Referral] reward email skipped", zap.Error(err))
		return ref, nil
	}

	name := b.Name
	if strings.TrimSpace(name) == "" {
		name = business.FallbackName
	}
	res := s.gateway.Send(ctx, notification.Message{
		To:      c.Email,
		Subject: RewardSubject,
		Text:    RewardBody(c.Name, name, ref.RewardValue, Link(s.baseURL, ref.Token)),
		Kind:    "referral_reward",
	})
	if !res.Delivered {
		// The referral stands; the owner can resend the link by hand.
		zapLog.Warn("[Referral] reward email not delivered", zap.String("referral_id", ref.ID), zap.String("reason", res.Reason.String()), zap.Error(res.Err))
		return ref, nil
	}

	if err := s.repo.Update(ctx, ref.ID, map[string]any{"reward_sent": true}); err != nil {
		zapLog.Error("[Referral] failed to mark reward sent", zap.Error(err))
		return ref, nil
	}
	ref.RewardSent = true

	zapLog.Info("[Referral] referral issued", zap.String("referral_id", ref.ID))
	return ref, nil
}

// Resolve looks up a referral by its public token.
func (s *Service) Resolve(ctx context.Context, token string) (*Referral, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return nil, errutil.NotFound("referral not found", ErrReferralNotFound)
	}
	ref, err := s.repo.FindOne(ctx, &Referral{Token: token})
	if err != nil {
		return nil, errutil.Internal("failed to get referral", err)
	}
	if ref == nil {
		return nil, errutil.NotFound("referral not found", ErrReferralNotFound)
	}
	return ref, nil
}

// PublicView is what a referred visitor sees.
type PublicView struct {
	Token        string `json:"token"`
	BusinessName string `json:"business_name"`
	ReferrerName string `json:"referrer_name"`
	Redeemed     bool   `json:"redeemed"`
}

func (s *Service) View(ctx context.Context, token string) (*PublicView, error) {
	ref, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	b, err := s.businesses.GetBusiness(ctx, ref.BusinessID)
	if err != nil {
		return nil, err
	}
	c, err := s.customers.GetByID(ctx, ref.CustomerID)
	if err != nil {
		return nil, err
	}
	return &PublicView{
		Token:        ref.Token,
		BusinessName: b.Name,
		ReferrerName: c.Name,
		Redeemed:     ref.UsedAt != nil,
	}, nil
}

// Redeem attaches the referred customer to the referral. A referral is
// redeemed at most once.
func (s *Service) Redeem(ctx context.Context, businessID, token, referredCustomerID string) (*Referral, error) {
	ref, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if ref.BusinessID != businessID {
		return nil, errutil.NotFound("referral not found", ErrReferralNotFound)
	}
	if _, err := s.customers.Get(ctx, businessID, referredCustomerID); err != nil {
		return nil, err
	}
	if referredCustomerID == ref.CustomerID {
		return nil, errutil.UnprocessableEntity(ErrSelfReferral.Error(), ErrSelfReferral)
	}

	now := s.now()
	res := s.db.WithContext(ctx).Model(&Referral{}).
		Where("id = ? AND used_at IS NULL", ref.ID).
		Updates(map[string]any{"used_at": now, "referred_customer_id": referredCustomerID})
	if res.Error != nil {
		return nil, errutil.Internal("failed to redeem referral", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errutil.Conflict(ErrAlreadyRedeemed.Error(), ErrAlreadyRedeemed)
	}

	ref.UsedAt = &now
	ref.ReferredCustomerID = &referredCustomerID
	return ref, nil
}

func (s *Service) ListForBusiness(ctx context.Context, businessID string) ([]*Referral, error) {
	rows, err := s.repo.Find(ctx, &Referral{BusinessID: businessID},
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc"}),
	)
	if err != nil {
		return nil, errutil.Internal("failed to list referrals", err)
	}
	return rows, nil
}
