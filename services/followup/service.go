package followup

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"smallbiznis-reputation/pkg/config"
	"smallbiznis-reputation/pkg/errutil"
	"smallbiznis-reputation/pkg/logger"
	"smallbiznis-reputation/pkg/metrics"
	"smallbiznis-reputation/pkg/notification"
	"smallbiznis-reputation/pkg/repository"
	"smallbiznis-reputation/services/business"
	"smallbiznis-reputation/services/customer"
	"smallbiznis-reputation/services/review"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ReminderSubject is used for steps that carry preset content.
const ReminderSubject = "Reminder - Share your experience"

// IncentiveStep is the step that offers the referral reward as an incentive.
const IncentiveStep = 3

const defaultMaxAttempts = 5

// Drafter writes a follow-up email when the business has no preset body.
type Drafter interface {
	DraftFollowUp(ctx context.Context, customerName, businessName string, step int, incentive string) (string, string)
}

type Service struct {
	db         *gorm.DB
	node       *snowflake.Node
	baseURL    string
	grace      time.Duration
	parallel   int
	maxAttempt int
	businesses *business.Service
	customers  *customer.Service
	repo       repository.Repository[FollowUpSequence]
	gateway    notification.Gateway
	drafter    Drafter
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
	Drafter    Drafter
}

func NewService(p ServiceParams) *Service {
	parallel := p.Config.Automation.CustomerParallel
	if parallel <= 0 {
		parallel = 1
	}
	grace := p.Config.Automation.SendingGrace
	if grace <= 0 {
		grace = time.Hour
	}
	maxAttempt := p.Config.Automation.MaxSendAttempts
	if maxAttempt <= 0 {
		maxAttempt = defaultMaxAttempts
	}

	return &Service{
		db:         p.DB,
		node:       p.Node,
		baseURL:    p.Config.PublicBaseURL,
		grace:      grace,
		parallel:   parallel,
		maxAttempt: maxAttempt,
		businesses: p.Businesses,
		customers:  p.Customers,
		repo:       repository.ProvideStore[FollowUpSequence](p.DB),
		gateway:    p.Gateway,
		drafter:    p.Drafter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Schedule creates one row per configured non-zero delay. It is a no-op
// when the customer already has a pending row or follow-ups are off. The
// customer row is locked for the check so concurrent calls create one
// sequence.
func (s *Service) Schedule(ctx context.Context, customerID string) (int, error) {
	zapLog := logger.FromContext(ctx).With(zap.String("customer_id", customerID))

	c, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return 0, err
	}

	settings, err := s.businesses.GetSettings(ctx, c.BusinessID)
	if err != nil {
		if errutil.HasStatus(err, errutil.StatusNotFound) {
			zapLog.Warn("[FollowUp] no automation settings, skipping schedule")
			return 0, nil
		}
		return 0, err
	}
	if !settings.FollowUpEnabled {
		return 0, nil
	}

	now := s.now()
	delays := settings.Delays()
	messages := settings.Messages()

	var rows []*FollowUpSequence
	for i, days := range delays {
		if days <= 0 {
			continue
		}
		rows = append(rows, &FollowUpSequence{
			ID:           s.node.Generate().String(),
			BusinessID:   c.BusinessID,
			CustomerID:   c.ID,
			Step:         i + 1,
			ScheduledFor: now.AddDate(0, 0, days),
			Status:       StatusScheduled,
			EmailContent: strings.TrimSpace(messages[i]),
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	created := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := customer.LockForUpdate(ctx, tx, c.ID); err != nil {
			return err
		}

		var existing int64
		if err := tx.WithContext(ctx).Model(&FollowUpSequence{}).
			Where("customer_id = ? AND status IN ?", c.ID, []string{string(StatusScheduled), string(StatusSending)}).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		if err := s.repo.WithTrx(tx).BatchCreate(ctx, rows); err != nil {
			return err
		}
		created = len(rows)
		return nil
	})
	if err != nil {
		zapLog.Error("[FollowUp] failed to schedule", zap.Error(err))
		return 0, errutil.Internal("failed to schedule follow-ups", err)
	}

	if created > 0 {
		metrics.FollowUpsTotal.WithLabelValues("scheduled").Add(float64(created))
		zapLog.Info("[FollowUp] sequence scheduled", zap.Int("steps", created))
	}
	return created, nil
}

// Summary counts what one processing pass did.
type Summary struct {
	Due       int `json:"due"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Skipped   int `json:"skipped"`
	Recovered int `json:"recovered"`
	Abandoned int `json:"abandoned"`
}

func (s *Summary) add(o Summary) {
	s.Due += o.Due
	s.Sent += o.Sent
	s.Failed += o.Failed
	s.Cancelled += o.Cancelled
	s.Skipped += o.Skipped
	s.Recovered += o.Recovered
	s.Abandoned += o.Abandoned
}

// ProcessDue sends every scheduled row whose time has come. Customers are
// processed in parallel; rows of one customer run in step order so a
// suppression stops the rest of that customer's batch. A failure on one
// row never aborts the pass.
func (s *Service) ProcessDue(ctx context.Context, now time.Time) (Summary, error) {
	zapLog := logger.FromContext(ctx)

	var sum Summary
	sum.Recovered = s.recoverStale(ctx, now)

	var due []*FollowUpSequence
	if err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", string(StatusScheduled), now).
		Order("customer_id asc").Order("step asc").
		Find(&due).Error; err != nil {
		zapLog.Error("[FollowUp] failed to load due rows", zap.Error(err))
		return sum, errutil.Internal("failed to load due follow-ups", err)
	}
	sum.Due = len(due)

	var order []string
	groups := map[string][]*FollowUpSequence{}
	for _, row := range due {
		if _, ok := groups[row.CustomerID]; !ok {
			order = append(order, row.CustomerID)
		}
		groups[row.CustomerID] = append(groups[row.CustomerID], row)
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.parallel)
	for _, customerID := range order {
		rows := groups[customerID]
		g.Go(func() error {
			out := s.processCustomer(ctx, rows, now)
			mu.Lock()
			sum.add(out)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	zapLog.Info("[FollowUp] pass complete",
		zap.Int("due", sum.Due),
		zap.Int("sent", sum.Sent),
		zap.Int("failed", sum.Failed),
		zap.Int("cancelled", sum.Cancelled),
		zap.Int("skipped", sum.Skipped),
		zap.Int("recovered", sum.Recovered),
		zap.Int("abandoned", sum.Abandoned),
	)
	return sum, nil
}

// recoverStale returns rows abandoned in sending to scheduled. A crash
// between delivery and the sent update can therefore resend one email.
func (s *Service) recoverStale(ctx context.Context, now time.Time) int {
	res := s.db.WithContext(ctx).Model(&FollowUpSequence{}).
		Where("status = ? AND claimed_at < ?", string(StatusSending), now.Add(-s.grace)).
		Update("status", string(StatusScheduled))
	if res.Error != nil {
		logger.FromContext(ctx).Error("[FollowUp] failed to recover stale rows", zap.Error(res.Error))
		return 0
	}
	if res.RowsAffected > 0 {
		metrics.FollowUpsTotal.WithLabelValues("recovered").Add(float64(res.RowsAffected))
		logger.FromContext(ctx).Warn("[FollowUp] returned stale sending rows to scheduled", zap.Int64("rows", res.RowsAffected))
	}
	return int(res.RowsAffected)
}

func (s *Service) processCustomer(ctx context.Context, rows []*FollowUpSequence, now time.Time) Summary {
	var out Summary
	for _, row := range rows {
		if ctx.Err() != nil {
			return out
		}

		zapLog := logger.FromContext(ctx).With(
			zap.String("followup_id", row.ID),
			zap.String("customer_id", row.CustomerID),
			zap.Int("step", row.Step),
		)

		suppressed, err := s.reviewedSince(ctx, row.CustomerID, row.ScheduledFor.Add(-24*time.Hour))
		if err != nil {
			zapLog.Error("[FollowUp] suppression check failed", zap.Error(err))
			out.Failed++
			continue
		}
		if suppressed {
			n, err := s.cancelForCustomer(ctx, row.CustomerID)
			if err != nil {
				zapLog.Error("[FollowUp] failed to cancel sequence", zap.Error(err))
				out.Failed++
				return out
			}
			out.Cancelled += n
			zapLog.Info("[FollowUp] customer reviewed, sequence cancelled", zap.Int("cancelled", n))
			return out
		}

		switch s.sendOne(ctx, zapLog, row, now) {
		case outcomeSent:
			out.Sent++
		case outcomeSkipped:
			out.Skipped++
		case outcomeParked:
			out.Failed++
			out.Abandoned++
		default:
			out.Failed++
		}
	}
	return out
}

// reviewedSince reports whether the customer left any review at or after since.
func (s *Service) reviewedSince(ctx context.Context, customerID string, since time.Time) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&review.Review{}).
		Where("customer_id = ? AND created_at >= ?", customerID, since).
		Count(&n).Error
	return n > 0, err
}

// cancelForCustomer cancels every still-scheduled row of the customer.
func (s *Service) cancelForCustomer(ctx context.Context, customerID string) (int, error) {
	res := s.db.WithContext(ctx).Model(&FollowUpSequence{}).
		Where("customer_id = ? AND status = ?", customerID, string(StatusScheduled)).
		Update("status", string(StatusCancelled))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		metrics.FollowUpsTotal.WithLabelValues("cancelled").Add(float64(res.RowsAffected))
	}
	return int(res.RowsAffected), nil
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeSent
	outcomeSkipped
	outcomeParked
)

func (s *Service) sendOne(ctx context.Context, zapLog *zap.Logger, row *FollowUpSequence, now time.Time) outcome {
	claim := s.db.WithContext(ctx).Model(&FollowUpSequence{}).
		Where("id = ? AND status = ?", row.ID, string(StatusScheduled)).
		Updates(map[string]any{
			"status":     string(StatusSending),
			"claimed_at": now,
			"attempts":   gorm.Expr("attempts + 1"),
		})
	if claim.Error != nil {
		zapLog.Error("[FollowUp] failed to claim row", zap.Error(claim.Error))
		return outcomeFailed
	}
	if claim.RowsAffected == 0 {
		return outcomeSkipped
	}

	subject, body, to, err := s.compose(ctx, row)
	if err != nil {
		zapLog.Error("[FollowUp] failed to compose email", zap.Error(err))
		return s.release(ctx, zapLog, row)
	}

	res := s.gateway.Send(ctx, notification.Message{
		To:      to,
		Subject: subject,
		Text:    body,
		Kind:    "followup",
	})
	if !res.Delivered {
		zapLog.Warn("[FollowUp] email not delivered", zap.String("reason", res.Reason.String()), zap.Error(res.Err))
		return s.release(ctx, zapLog, row)
	}

	sentAt := s.now()
	if err := s.db.WithContext(ctx).Model(&FollowUpSequence{}).
		Where("id = ? AND status = ?", row.ID, string(StatusSending)).
		Updates(map[string]any{
			"status":        string(StatusSent),
			"sent_at":       sentAt,
			"subject":       subject,
			"email_content": body,
		}).Error; err != nil {
		zapLog.Error("[FollowUp] delivered but failed to mark sent", zap.Error(err))
		return outcomeFailed
	}

	metrics.FollowUpsTotal.WithLabelValues("sent").Inc()
	zapLog.Info("[FollowUp] follow-up sent")
	return outcomeSent
}

// release returns a claimed row to scheduled for the next pass. A row that
// used up its attempts is cancelled instead.
func (s *Service) release(ctx context.Context, zapLog *zap.Logger, row *FollowUpSequence) outcome {
	metrics.FollowUpsTotal.WithLabelValues("failed").Inc()

	attempts := row.Attempts + 1
	next, result := StatusScheduled, outcomeFailed
	if attempts >= s.maxAttempt {
		next, result = StatusCancelled, outcomeParked
	}

	if err := s.db.WithContext(ctx).Model(&FollowUpSequence{}).
		Where("id = ? AND status = ?", row.ID, string(StatusSending)).
		Updates(map[string]any{"status": string(next), "claimed_at": nil}).Error; err != nil {
		zapLog.Error("[FollowUp] failed to release row", zap.Error(err))
		return outcomeFailed
	}

	if result == outcomeParked {
		metrics.FollowUpsTotal.WithLabelValues("abandoned").Inc()
		zapLog.Warn("[FollowUp] giving up after max attempts", zap.Int("attempts", attempts))
	}
	return result
}

var errNoRecipient = errors.New("customer has no email")

// compose reads customer, business and settings fresh and builds the email.
func (s *Service) compose(ctx context.Context, row *FollowUpSequence) (subject, body, to string, err error) {
	c, err := s.customers.GetByID(ctx, row.CustomerID)
	if err != nil {
		return "", "", "", err
	}
	if strings.TrimSpace(c.Email) == "" {
		return "", "", "", errNoRecipient
	}
	b, err := s.businesses.GetBusiness(ctx, row.BusinessID)
	if err != nil {
		return "", "", "", err
	}
	settings, err := s.businesses.GetSettings(ctx, row.BusinessID)
	if err != nil {
		return "", "", "", err
	}

	name := b.Name
	if strings.TrimSpace(name) == "" {
		name = business.FallbackName
	}
	link := s.latestLink(ctx, c.ID)

	if preset := strings.TrimSpace(row.EmailContent); preset != "" {
		body = business.Render(preset, business.Vars{
			CustomerName: c.Name,
			BusinessName: name,
			ReviewLink:   link,
		})
		return ReminderSubject, body, c.Email, nil
	}

	incentive := ""
	if row.Step == IncentiveStep {
		incentive = settings.RewardValue()
	}
	subject, body = s.drafter.DraftFollowUp(ctx, c.Name, name, row.Step, incentive)
	if link != "" && !strings.Contains(body, link) {
		body = body + "\n\n" + link
	}
	return subject, body, c.Email, nil
}

// latestLink is the review page of the customer's most recent request.
func (s *Service) latestLink(ctx context.Context, customerID string) string {
	var req review.ReviewRequest
	err := s.db.WithContext(ctx).
		Where("customer_id = ? AND status IN ?", customerID, []string{string(review.RequestSent), string(review.RequestOpened)}).
		Order("created_at desc").
		First(&req).Error
	if err != nil {
		return ""
	}
	return review.Link(s.baseURL, req.Token)
}

// ListForCustomer returns the customer's rows in step order.
func (s *Service) ListForCustomer(ctx context.Context, businessID, customerID string) ([]*FollowUpSequence, error) {
	rows, err := s.repo.Find(ctx, &FollowUpSequence{BusinessID: businessID, CustomerID: customerID}, func(db *gorm.DB) *gorm.DB {
		return db.Order("step asc").Order("created_at asc")
	})
	if err != nil {
		return nil, errutil.Internal("failed to list follow-ups", err)
	}
	return rows, nil
}
