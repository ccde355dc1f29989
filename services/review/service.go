package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smallbiznis-reputation/pkg/config"
	"smallbiznis-reputation/pkg/db/option"
	"smallbiznis-reputation/pkg/db/pagination"
	"smallbiznis-reputation/pkg/errutil"
	"smallbiznis-reputation/pkg/featureflags"
	"smallbiznis-reputation/pkg/logger"
	"smallbiznis-reputation/pkg/notification"
	"smallbiznis-reputation/pkg/repository"
	"smallbiznis-reputation/pkg/task"
	"smallbiznis-reputation/pkg/taskname"
	"smallbiznis-reputation/services/business"
	"smallbiznis-reputation/services/customer"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	ErrRequestNotFound    = errors.New("review request not found")
	ErrReviewNotFound     = errors.New("review not found")
	ErrAlreadyCompleted   = errors.New("review request already completed")
	ErrRequestFailed      = errors.New("review request was never delivered")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrFeedbackNotAllowed = errors.New("detailed feedback is only collected for ratings of 3 or lower")
	ErrFeedbackRecorded   = errors.New("detailed feedback already recorded")
	ErrForwardNotAllowed  = errors.New("only ratings of 4 or higher are forwarded")
	ErrNoPublicURL        = errors.New("business has no public review url")
	ErrDispatchFailed     = errors.New("email was not delivered")
	ErrNoResponse         = errors.New("no response message available")
)

// FollowUpScheduler starts the follow-up sequence for a customer.
type FollowUpScheduler interface {
	Schedule(ctx context.Context, customerID string) (int, error)
}

// ReferralEngine issues the referral reward for a qualifying review.
type ReferralEngine interface {
	TriggerReward(ctx context.Context, customerID, reviewID string) error
}

// TextGenerator is the enrichment surface of the text-generation adapter.
// Every method degrades to a fallback value instead of failing.
type TextGenerator interface {
	AnalyzeSentiment(ctx context.Context, text string) (string, float64)
	Categorize(ctx context.Context, text string) string
	DraftReply(ctx context.Context, text string, rating int, businessName, tone string) string
}

type Service struct {
	db            *gorm.DB
	node          *snowflake.Node
	baseURL       string
	businesses    *business.Service
	customers     *customer.Service
	requests      repository.Repository[ReviewRequest]
	reviews       repository.Repository[Review]
	conversations repository.Repository[ReviewConversation]
	gateway       notification.Gateway
	textgen       TextGenerator
	flags         featureflags.FeatureFlag
	enqueuer      task.Enqueuer
	followups     FollowUpScheduler
	referrals     ReferralEngine
	now           func() time.Time
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Node       *snowflake.Node
	Config     *config.Config
	Businesses *business.Service
	Customers  *customer.Service
	Gateway    notification.Gateway
	TextGen    TextGenerator
	Flags      featureflags.FeatureFlag `optional:"true"`
	Enqueuer   task.Enqueuer            `optional:"true"`
	FollowUps  FollowUpScheduler        `optional:"true"`
	Referrals  ReferralEngine           `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:            p.DB,
		node:          p.Node,
		baseURL:       p.Config.PublicBaseURL,
		businesses:    p.Businesses,
		customers:     p.Customers,
		requests:      repository.ProvideStore[ReviewRequest](p.DB),
		reviews:       repository.ProvideStore[Review](p.DB),
		conversations: repository.ProvideStore[ReviewConversation](p.DB),
		gateway:       p.Gateway,
		textgen:       p.TextGen,
		flags:         p.Flags,
		enqueuer:      p.Enqueuer,
		followups:     p.FollowUps,
		referrals:     p.Referrals,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Link is the public review page for token.
func Link(baseURL, token string) string {
	return fmt.Sprintf("%s/r/%s", strings.TrimRight(baseURL, "/"), token)
}

func (s *Service) findRequest(ctx context.Context, token string) (*ReviewRequest, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errutil.NotFound("review request not found", ErrRequestNotFound)
	}
	req, err := s.requests.FindOne(ctx, &ReviewRequest{Token: token})
	if err != nil {
		return nil, errutil.Internal("failed to get review request", err)
	}
	if req == nil {
		return nil, errutil.NotFound("review request not found", ErrRequestNotFound)
	}
	return req, nil
}

func (s *Service) findReviewForRequest(ctx context.Context, requestID string) (*Review, error) {
	rv, err := s.reviews.FindOne(ctx, &Review{ReviewRequestID: requestID})
	if err != nil {
		return nil, errutil.Internal("failed to get review", err)
	}
	if rv == nil {
		return nil, errutil.NotFound("review not found", ErrReviewNotFound)
	}
	return rv, nil
}

func displayName(b *business.Business) string {
	if b == nil || strings.TrimSpace(b.Name) == "" {
		return business.FallbackName
	}
	return b.Name
}

type IssueInput struct {
	CustomerID string `json:"customer_id" binding:"required"`
	TemplateID string `json:"template_id"`
}

// IssueRequest emails a review link to a customer. A request whose email is
// not delivered is kept with status failed and returned with the error.
func (s *Service) IssueRequest(ctx context.Context, businessID string, in IssueInput) (*ReviewRequest, error) {
	zapLog := logger.FromContext(ctx).With(zap.String("business_id", businessID), zap.String("customer_id", in.CustomerID))

	b, err := s.businesses.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	c, err := s.customers.Get(ctx, businessID, in.CustomerID)
	if err != nil {
		return nil, err
	}
	tpl, err := s.businesses.ResolveTemplate(ctx, businessID, in.TemplateID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	req := &ReviewRequest{
		ID:         s.node.Generate().String(),
		BusinessID: businessID,
		CustomerID: c.ID,
		TemplateID: tpl.ID,
		Token:      uuid.NewString(),
		Status:     RequestSent,
		SentAt:     now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requests.WithTrx(tx).Create(ctx, req); err != nil {
			return err
		}
		return customer.MarkReviewRequested(ctx, tx, c.ID, now)
	})
	if err != nil {
		zapLog.Error("[Review] failed to create review request", zap.Error(err))
		return nil, errutil.Internal("failed to create review request", err)
	}

	vars := business.Vars{
		CustomerName: c.Name,
		BusinessName: displayName(b),
		ReviewLink:   Link(s.baseURL, req.Token),
	}
	res := s.gateway.Send(ctx, notification.Message{
		To:      c.Email,
		Subject: business.Render(tpl.Subject, vars),
		Text:    business.Render(tpl.Message, vars),
		Kind:    "review_request",
	})
	if !res.Delivered {
		if err := s.db.WithContext(ctx).Model(&ReviewRequest{}).
			Where("id = ? AND status = ?", req.ID, string(RequestSent)).
			Update("status", string(RequestFailed)).Error; err != nil {
			zapLog.Error("[Review] failed to mark request failed", zap.String("request_id", req.ID), zap.Error(err))
		}
		req.Status = RequestFailed
		zapLog.Warn("[Review] review request not delivered", zap.String("request_id", req.ID), zap.String("reason", res.Reason.String()))
		return req, errutil.BadGateway("review request email was not delivered", errors.Join(ErrDispatchFailed, res.Err))
	}

	if s.followups != nil {
		n, err := s.followups.Schedule(ctx, c.ID)
		if err != nil {
			zapLog.Error("[Review] failed to schedule follow-ups", zap.Error(err))
		} else {
			zapLog.Debug("[Review] follow-ups scheduled", zap.Int("count", n))
		}
	}

	zapLog.Info("[Review] review request sent", zap.String("request_id", req.ID))
	return req, nil
}

// PublicView is what the customer sees on the review page.
type PublicView struct {
	Token        string        `json:"token"`
	Status       RequestStatus `json:"status"`
	BusinessName string        `json:"business_name"`
	CustomerName string        `json:"customer_name"`
	Completed    bool          `json:"completed"`
}

// Open resolves a token for the public page. The first view moves a sent
// request to opened.
func (s *Service) Open(ctx context.Context, token string) (*PublicView, error) {
	req, err := s.findRequest(ctx, token)
	if err != nil {
		return nil, err
	}

	if req.Status == RequestSent {
		now := s.now()
		res := s.db.WithContext(ctx).Model(&ReviewRequest{}).
			Where("id = ? AND status = ?", req.ID, string(RequestSent)).
			Updates(map[string]any{"status": string(RequestOpened), "opened_at": now})
		if res.Error != nil {
			return nil, errutil.Internal("failed to open review request", res.Error)
		}
		if res.RowsAffected > 0 {
			req.Status = RequestOpened
			req.OpenedAt = &now
		}
	}

	b, err := s.businesses.GetBusiness(ctx, req.BusinessID)
	if err != nil {
		return nil, err
	}
	c, err := s.customers.GetByID(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	return &PublicView{
		Token:        req.Token,
		Status:       req.Status,
		BusinessName: displayName(b),
		CustomerName: c.Name,
		Completed:    req.Status == RequestCompleted,
	}, nil
}

type NextStep string

const (
	NextDetailedFeedback NextStep = "detailed_feedback"
	NextPublicReview     NextStep = "public_review"
	NextThankYou         NextStep = "thank_you"
)

type SubmitInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type SubmitResult struct {
	Review          *Review  `json:"review"`
	Next            NextStep `json:"next"`
	PublicReviewURL string   `json:"public_review_url,omitempty"`
}

// Submit records the customer's rating. The request moves to completed
// exactly once; a second submission for the same token is rejected.
func (s *Service) Submit(ctx context.Context, token string, in SubmitInput) (*SubmitResult, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, errutil.ValidationFailed(ErrInvalidRating.Error(), ErrInvalidRating)
	}

	req, err := s.findRequest(ctx, token)
	if err != nil {
		return nil, err
	}
	switch req.Status {
	case RequestCompleted:
		return nil, errutil.Conflict(ErrAlreadyCompleted.Error(), ErrAlreadyCompleted)
	case RequestFailed:
		return nil, errutil.Conflict(ErrRequestFailed.Error(), ErrRequestFailed)
	}

	zapLog := logger.FromContext(ctx).With(zap.String("business_id", req.BusinessID), zap.String("request_id", req.ID))

	now := s.now()
	rv := &Review{
		ID:              s.node.Generate().String(),
		BusinessID:      req.BusinessID,
		CustomerID:      req.CustomerID,
		ReviewRequestID: req.ID,
		Rating:          in.Rating,
		Comment:         strings.TrimSpace(in.Comment),
		Status:          StatusPending,
		CreatedAt:       now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ReviewRequest{}).
			Where("id = ? AND status IN ?", req.ID, []string{string(RequestSent), string(RequestOpened)}).
			Updates(map[string]any{"status": string(RequestCompleted), "completed_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyCompleted
		}

		if err := s.reviews.WithTrx(tx).Create(ctx, rv); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyCompleted
			}
			return err
		}

		if rv.Comment != "" {
			if err := s.conversations.WithTrx(tx).Create(ctx, &ReviewConversation{
				ID:        s.node.Generate().String(),
				ReviewID:  rv.ID,
				Sender:    SenderCustomer,
				Message:   rv.Comment,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}

		return customer.ApplyRating(ctx, tx, rv.CustomerID, rv.Rating)
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyCompleted) {
			return nil, errutil.Conflict(ErrAlreadyCompleted.Error(), ErrAlreadyCompleted)
		}
		zapLog.Error("[Review] failed to submit review", zap.Error(err))
		return nil, errutil.Internal("failed to submit review", err)
	}

	zapLog.Info("[Review] review submitted", zap.String("review_id", rv.ID), zap.Int("rating", rv.Rating))

	s.enqueueEnrichment(ctx, rv)
	s.enqueueReferral(ctx, rv)

	result := &SubmitResult{Review: rv, Next: NextThankYou}
	switch {
	case rv.Rating <= 3:
		result.Next = NextDetailedFeedback
	default:
		b, err := s.businesses.GetBusiness(ctx, rv.BusinessID)
		if err == nil && b.PublicReviewURL != "" {
			result.Next = NextPublicReview
			result.PublicReviewURL = b.PublicReviewURL
		}
	}
	return result, nil
}

type reviewPayload struct {
	ReviewID string `json:"review_id"`
}

const referralMaxRetry = 10

// enqueueEnrichment hands AI processing to the worker. Without a queue
// client the enrichment runs inline.
func (s *Service) enqueueEnrichment(ctx context.Context, rv *Review) {
	if rv.Comment == "" {
		return
	}
	if s.enqueuer == nil {
		if err := s.ProcessWithAI(ctx, rv.ID); err != nil {
			logger.FromContext(ctx).Warn("[Review] inline enrichment failed", zap.String("review_id", rv.ID), zap.Error(err))
		}
		return
	}
	s.enqueue(ctx, taskname.ReviewProcessAI, rv.ID, 3)
}

// enqueueReferral hands the reward for a 5-star review to the worker, which
// retries until the referral engine succeeds.
func (s *Service) enqueueReferral(ctx context.Context, rv *Review) {
	if rv.Rating != 5 || s.referrals == nil {
		return
	}
	if s.enqueuer == nil {
		if err := s.IssueReferral(ctx, rv.ID); err != nil {
			logger.FromContext(ctx).Error("[Review] inline referral reward failed", zap.String("review_id", rv.ID), zap.Error(err))
		}
		return
	}
	s.enqueue(ctx, taskname.ReviewReferralReward, rv.ID, referralMaxRetry)
}

func (s *Service) enqueue(ctx context.Context, typeName, reviewID string, maxRetry int) {
	_, err := task.EnqueueJSON(s.enqueuer, typeName, reviewPayload{ReviewID: reviewID},
		asynq.Queue(taskname.QueueCritical),
		asynq.MaxRetry(maxRetry),
		asynq.TaskID(typeName+":"+reviewID),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		logger.FromContext(ctx).Error("[Review] failed to enqueue task", zap.String("task_type", typeName), zap.String("review_id", reviewID), zap.Error(err))
	}
}

// IssueReferral triggers the referral reward for a 5-star review. The
// referral engine issues at most one referral per review, so a retried
// task never issues a second one.
func (s *Service) IssueReferral(ctx context.Context, reviewID string) error {
	rv, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		return errutil.Internal("failed to get review", err)
	}
	if rv == nil {
		return errutil.NotFound("review not found", ErrReviewNotFound)
	}
	if rv.Rating != 5 || s.referrals == nil {
		return nil
	}
	if err := s.referrals.TriggerReward(ctx, rv.CustomerID, rv.ID); err != nil {
		logger.FromContext(ctx).Warn("[Review] referral reward failed", zap.String("review_id", rv.ID), zap.Error(err))
		return err
	}
	return nil
}

// DecodeReviewTask reads the review id from a review task payload.
func DecodeReviewTask(t *asynq.Task) (string, error) {
	var p reviewPayload
	if err := task.DecodePayload(t, &p); err != nil {
		return "", err
	}
	if p.ReviewID == "" {
		return "", fmt.Errorf("empty review_id: %w", asynq.SkipRetry)
	}
	return p.ReviewID, nil
}

// ProcessWithAI fills sentiment, category and, when auto-reply is on, a
// suggested response. Reviews without a comment, or already processed,
// are left alone.
func (s *Service) ProcessWithAI(ctx context.Context, reviewID string) error {
	zapLog := logger.FromContext(ctx).With(zap.String("review_id", reviewID))

	rv, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		return errutil.Internal("failed to get review", err)
	}
	if rv == nil {
		return errutil.NotFound("review not found", ErrReviewNotFound)
	}
	if rv.AIProcessedAt != nil || strings.TrimSpace(rv.Comment) == "" {
		return nil
	}
	if s.flags != nil && !s.flags.Enabled(ctx, rv.BusinessID, featureflags.AIEnrichment) {
		zapLog.Debug("[Review] enrichment disabled by feature flag")
		return nil
	}

	settings, err := s.businesses.GetSettings(ctx, rv.BusinessID)
	if err != nil {
		return err
	}
	b, err := s.businesses.GetBusiness(ctx, rv.BusinessID)
	if err != nil {
		return err
	}

	var (
		sentiment  string
		confidence float64
		category   string
		suggestion string
	)

	var g errgroup.Group
	g.Go(func() error {
		sentiment, confidence = s.textgen.AnalyzeSentiment(ctx, rv.Comment)
		return nil
	})
	g.Go(func() error {
		category = s.textgen.Categorize(ctx, rv.Comment)
		return nil
	})
	if settings.AIAutoReplyEnabled {
		g.Go(func() error {
			suggestion = s.textgen.DraftReply(ctx, rv.Comment, rv.Rating, displayName(b), settings.AITone.String())
			return nil
		})
	}
	_ = g.Wait()

	values := map[string]any{
		"sentiment":       sentiment,
		"sentiment_score": confidence,
		"review_category": category,
		"ai_processed_at": s.now(),
	}
	if settings.AIAutoReplyEnabled {
		values["ai_suggested_response"] = suggestion
	}

	res := s.db.WithContext(ctx).Model(&Review{}).
		Where("id = ? AND ai_processed_at IS NULL", rv.ID).
		Updates(values)
	if res.Error != nil {
		zapLog.Error("[Review] failed to store enrichment", zap.Error(res.Error))
		return errutil.Internal("failed to store enrichment", res.Error)
	}

	zapLog.Info("[Review] review enriched", zap.String("sentiment", sentiment), zap.String("category", category))
	return nil
}

type DetailedFeedbackInput struct {
	Issues        []string `json:"issues"`
	WhatWentWrong string   `json:"what_went_wrong"`
	Suggestions   string   `json:"suggestions"`
	ContactMe     bool     `json:"contact_me"`
}

// SubmitDetailedFeedback merges the low-rating follow-up form into the
// review and alerts the business owner.
func (s *Service) SubmitDetailedFeedback(ctx context.Context, token string, in DetailedFeedbackInput) (*Review, error) {
	req, err := s.findRequest(ctx, token)
	if err != nil {
		return nil, err
	}
	rv, err := s.findReviewForRequest(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if rv.Rating > 3 {
		return nil, errutil.UnprocessableEntity(ErrFeedbackNotAllowed.Error(), ErrFeedbackNotAllowed)
	}
	if rv.DetailedFeedbackAt != nil {
		return nil, errutil.Conflict(ErrFeedbackRecorded.Error(), ErrFeedbackRecorded)
	}

	issues, unknown := normalizeIssues(in.Issues)
	if len(unknown) > 0 {
		return nil, errutil.ValidationFailed("unknown issues: "+strings.Join(unknown, ", "), nil)
	}

	comment := FormatDetailedFeedback(rv.Comment, issues, in.WhatWentWrong, in.Suggestions, in.ContactMe)
	status := StatusPending
	if in.ContactMe {
		status = StatusNeedsResponse
	}
	now := s.now()

	res := s.db.WithContext(ctx).Model(&Review{}).
		Where("id = ? AND detailed_feedback_at IS NULL", rv.ID).
		Updates(map[string]any{
			"comment":              comment,
			"status":               string(status),
			"detailed_feedback_at": now,
		})
	if res.Error != nil {
		return nil, errutil.Internal("failed to store detailed feedback", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errutil.Conflict(ErrFeedbackRecorded.Error(), ErrFeedbackRecorded)
	}

	rv.Comment = comment
	rv.Status = status
	rv.DetailedFeedbackAt = &now

	s.notifyLowRating(ctx, rv)
	return rv, nil
}

func (s *Service) notifyLowRating(ctx context.Context, rv *Review) {
	zapLog := logger.FromContext(ctx).With(zap.String("review_id", rv.ID))

	b, err := s.businesses.GetBusiness(ctx, rv.BusinessID)
	if err != nil {
		zapLog.Error("[Review] low rating alert skipped", zap.Error(err))
		return
	}
	c, err := s.customers.GetByID(ctx, rv.CustomerID)
	if err != nil {
		zapLog.Error("[Review] low rating alert skipped", zap.Error(err))
		return
	}

	res := s.gateway.Send(ctx, notification.Message{
		To:      b.OwnerEmail,
		Subject: lowRatingSubject(rv.Rating, c.Name),
		Text:    lowRatingBody(rv.Rating, c.Name, rv.Comment),
		Kind:    "low_rating_alert",
	})
	if !res.Delivered {
		zapLog.Warn("[Review] low rating alert not delivered", zap.String("reason", res.Reason.String()), zap.Error(res.Err))
	}
}

type ForwardResult struct {
	Review          *Review `json:"review"`
	PublicReviewURL string  `json:"public_review_url"`
}

// RecordForward marks a high rating as sent on to the public review site
// and returns where to send the customer.
func (s *Service) RecordForward(ctx context.Context, token string) (*ForwardResult, error) {
	req, err := s.findRequest(ctx, token)
	if err != nil {
		return nil, err
	}
	rv, err := s.findReviewForRequest(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if rv.Rating < 4 {
		return nil, errutil.UnprocessableEntity(ErrForwardNotAllowed.Error(), ErrForwardNotAllowed)
	}
	b, err := s.businesses.GetBusiness(ctx, rv.BusinessID)
	if err != nil {
		return nil, err
	}
	if b.PublicReviewURL == "" {
		return nil, errutil.UnprocessableEntity(ErrNoPublicURL.Error(), ErrNoPublicURL)
	}

	if rv.Status == StatusPending {
		now := s.now()
		res := s.db.WithContext(ctx).Model(&Review{}).
			Where("id = ? AND status = ?", rv.ID, string(StatusPending)).
			Updates(map[string]any{"status": string(StatusForwardedToGoogle), "forwarded_at": now})
		if res.Error != nil {
			return nil, errutil.Internal("failed to record forward", res.Error)
		}
		if res.RowsAffected > 0 {
			rv.Status = StatusForwardedToGoogle
			rv.ForwardedAt = &now
		}
	}

	return &ForwardResult{Review: rv, PublicReviewURL: b.PublicReviewURL}, nil
}

func (s *Service) getScoped(ctx context.Context, businessID, reviewID string) (*Review, error) {
	rv, err := s.reviews.FindOne(ctx, &Review{ID: reviewID, BusinessID: businessID})
	if err != nil {
		return nil, errutil.Internal("failed to get review", err)
	}
	if rv == nil {
		return nil, errutil.NotFound("review not found", ErrReviewNotFound)
	}
	return rv, nil
}

type RespondInput struct {
	Message string `json:"message" binding:"required"`
}

// RespondToReview records an owner reply without emailing it.
func (s *Service) RespondToReview(ctx context.Context, businessID, reviewID string, in RespondInput) (*Review, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, errutil.ValidationFailed("message is required", nil)
	}
	rv, err := s.getScoped(ctx, businessID, reviewID)
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, rv, message, SenderAdmin)
}

type SendResponseInput struct {
	Message string `json:"message"`
}

// SendResponse emails a reply to the reviewer, using the AI suggestion when
// no message is given, then records it on the review.
func (s *Service) SendResponse(ctx context.Context, businessID, reviewID string, in SendResponseInput) (*Review, error) {
	rv, err := s.getScoped(ctx, businessID, reviewID)
	if err != nil {
		return nil, err
	}

	message := strings.TrimSpace(in.Message)
	if message == "" {
		message = strings.TrimSpace(rv.AISuggestedResponse)
	}
	if message == "" {
		return nil, errutil.UnprocessableEntity(ErrNoResponse.Error(), ErrNoResponse)
	}
	sender := SenderAdmin
	if message == strings.TrimSpace(rv.AISuggestedResponse) {
		sender = SenderAI
	}

	b, err := s.businesses.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	c, err := s.customers.GetByID(ctx, rv.CustomerID)
	if err != nil {
		return nil, err
	}

	res := s.gateway.Send(ctx, notification.Message{
		To:      c.Email,
		Subject: responseSubject(displayName(b)),
		Text:    message,
		Kind:    "review_response",
	})
	if !res.Delivered {
		return nil, errutil.BadGateway("review response email was not delivered", errors.Join(ErrDispatchFailed, res.Err))
	}

	return s.respond(ctx, rv, message, sender)
}

func (s *Service) respond(ctx context.Context, rv *Review, message string, sender Sender) (*Review, error) {
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.conversations.WithTrx(tx).Create(ctx, &ReviewConversation{
			ID:            s.node.Generate().String(),
			ReviewID:      rv.ID,
			Sender:        sender,
			Message:       message,
			IsAIGenerated: sender == SenderAI,
			CreatedAt:     now,
		}); err != nil {
			return err
		}
		return s.reviews.WithTrx(tx).Update(ctx, rv.ID, map[string]any{
			"admin_response": message,
			"response_date":  now,
			"status":         string(StatusResponded),
		})
	})
	if err != nil {
		logger.FromContext(ctx).Error("[Review] failed to record response", zap.String("review_id", rv.ID), zap.Error(err))
		return nil, errutil.Internal("failed to record response", err)
	}

	rv.AdminResponse = message
	rv.ResponseDate = &now
	rv.Status = StatusResponded
	return rv, nil
}

type ListInput struct {
	pagination.Pagination
	Status    string `form:"status"`
	MaxRating int    `form:"max_rating" binding:"omitempty,gte=1,lte=5"`
}

func (s *Service) ListReviews(ctx context.Context, businessID string, in ListInput) ([]*Review, *pagination.PageInfo, error) {
	query := &Review{BusinessID: businessID}
	if in.Status != "" {
		status := Status(in.Status)
		if status.String() == "" {
			return nil, nil, errutil.ValidationFailed("unknown status "+in.Status, nil)
		}
		query.Status = status
	}

	opts := []option.QueryOption{option.ApplyPagination(in.Pagination)}
	if in.MaxRating > 0 {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "rating", Operator: option.LTE, Value: in.MaxRating}))
	}

	rows, err := s.reviews.Find(ctx, query, opts...)
	if err != nil {
		return nil, nil, errutil.Internal("failed to list reviews", err)
	}
	data, info := pagination.Page(rows, in.Limit, func(r *Review) string { return r.ID })
	return data, info, nil
}

type Detail struct {
	Review       *Review               `json:"review"`
	Conversation []*ReviewConversation `json:"conversation"`
}

func (s *Service) GetReview(ctx context.Context, businessID, reviewID string) (*Detail, error) {
	rv, err := s.getScoped(ctx, businessID, reviewID)
	if err != nil {
		return nil, err
	}
	thread, err := s.conversations.Find(ctx, &ReviewConversation{ReviewID: rv.ID}, func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at asc").Order("id asc")
	})
	if err != nil {
		return nil, errutil.Internal("failed to get conversation", err)
	}
	return &Detail{Review: rv, Conversation: thread}, nil
}

func (s *Service) ListRequests(ctx context.Context, businessID string, p pagination.Pagination) ([]*ReviewRequest, *pagination.PageInfo, error) {
	rows, err := s.requests.Find(ctx, &ReviewRequest{BusinessID: businessID}, option.ApplyPagination(p))
	if err != nil {
		return nil, nil, errutil.Internal("failed to list review requests", err)
	}
	data, info := pagination.Page(rows, p.Limit, func(r *ReviewRequest) string { return r.ID })
	return data, info, nil
}
