package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smallbiznis-reputation/pkg/config"
	"smallbiznis-reputation/pkg/errutil"
	"smallbiznis-reputation/pkg/lock"
	"smallbiznis-reputation/pkg/logger"
	"smallbiznis-reputation/pkg/metrics"
	"smallbiznis-reputation/pkg/notification"
	"smallbiznis-reputation/pkg/taskname"
	"smallbiznis-reputation/services/business"
	"smallbiznis-reputation/services/followup"
	"smallbiznis-reputation/services/report"
	"smallbiznis-reputation/services/review"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultLockTTL = 30 * time.Minute

type SettingsLister interface {
	ListSettings(ctx context.Context) ([]*business.AutomationSettings, error)
}

type FollowUpProcessor interface {
	ProcessDue(ctx context.Context, now time.Time) (followup.Summary, error)
}

type Enricher interface {
	ProcessWithAI(ctx context.Context, reviewID string) error
}

type ReferralIssuer interface {
	IssueReferral(ctx context.Context, reviewID string) error
}

type ReportBuilder interface {
	Due(ctx context.Context, businessID string, freq business.ReportFrequency, now time.Time) (bool, int, error)
	Build(ctx context.Context, businessID string, freq business.ReportFrequency, now time.Time) (*report.Artifact, error)
	Record(ctx context.Context, in report.RecordInput) (*report.ReportGeneration, error)
}

// Orchestrator drives the periodic automation passes. Each pass holds a
// named lock so overlapping ticks of the same pass never run together,
// while the follow-up and report passes never wait on each other.
type Orchestrator struct {
	settings  SettingsLister
	followUps FollowUpProcessor
	enricher  Enricher
	referrals ReferralIssuer
	reports   ReportBuilder
	gateway   notification.Gateway
	locker    lock.Locker
	lockTTL   time.Duration
	now       func() time.Time
}

type Params struct {
	fx.In
	Config     *config.Config
	Businesses *business.Service
	FollowUps  *followup.Service
	Reviews    *review.Service
	Reports    *report.Service
	Gateway    notification.Gateway
	Locker     lock.Locker
}

func NewOrchestrator(p Params) *Orchestrator {
	ttl := p.Config.Automation.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Orchestrator{
		settings:  p.Businesses,
		followUps: p.FollowUps,
		enricher:  p.Reviews,
		referrals: p.Reviews,
		reports:   p.Reports,
		gateway:   p.Gateway,
		locker:    p.Locker,
		lockTTL:   ttl,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// guard runs fn under the named lock. A held lock means the previous tick
// is still running, so this tick is skipped.
func (o *Orchestrator) guard(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	release, err := o.locker.TryLock(ctx, name, o.lockTTL)
	if errors.Is(err, lock.ErrHeld) {
		logger.FromContext(ctx).Info("[Automation] previous pass still running, skipping", zap.String("pass", name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("acquire %s lock: %w", name, err)
	}
	defer release()
	return fn(ctx)
}

func (o *Orchestrator) HandleFollowUpDue(ctx context.Context, t *asynq.Task) error {
	defer metrics.ObserveTask(t.Type(), time.Now())
	return o.guard(ctx, taskname.FollowUpProcessDue, func(ctx context.Context) error {
		_, err := o.followUps.ProcessDue(ctx, o.now())
		return err
	})
}

func (o *Orchestrator) HandleReportCycle(ctx context.Context, t *asynq.Task) error {
	defer metrics.ObserveTask(t.Type(), time.Now())
	return o.guard(ctx, taskname.ReportCycle, func(ctx context.Context) error {
		_, err := o.RunReportCycle(ctx, o.now())
		return err
	})
}

func (o *Orchestrator) HandleProcessAI(ctx context.Context, t *asynq.Task) error {
	defer metrics.ObserveTask(t.Type(), time.Now())

	reviewID, err := review.DecodeReviewTask(t)
	if err != nil {
		return err
	}
	return skipNotFound(o.enricher.ProcessWithAI(ctx, reviewID))
}

// HandleReferralReward issues the reward for a 5-star review. Any failure
// other than a missing review is returned so asynq retries the task.
func (o *Orchestrator) HandleReferralReward(ctx context.Context, t *asynq.Task) error {
	defer metrics.ObserveTask(t.Type(), time.Now())

	reviewID, err := review.DecodeReviewTask(t)
	if err != nil {
		return err
	}
	return skipNotFound(o.referrals.IssueReferral(ctx, reviewID))
}

func skipNotFound(err error) error {
	if errutil.HasStatus(err, errutil.StatusNotFound) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// ReportSummary counts what one report cycle did.
type ReportSummary struct {
	Considered int `json:"considered"`
	Sent       int `json:"sent"`
	NotDue     int `json:"not_due"`
	Failed     int `json:"failed"`
}

// RunReportCycle emails a report to every business whose cadence is due.
// A business whose report cannot be built gets no audit row and is tried
// again next cycle. A built report is recorded with its delivered count,
// zero included. One business failing never stops the others.
func (o *Orchestrator) RunReportCycle(ctx context.Context, now time.Time) (ReportSummary, error) {
	zapLog := logger.FromContext(ctx)

	var sum ReportSummary
	all, err := o.settings.ListSettings(ctx)
	if err != nil {
		zapLog.Error("[Automation] failed to list settings", zap.Error(err))
		return sum, err
	}

	for _, s := range all {
		recipients := s.Recipients()
		if len(recipients) == 0 {
			continue
		}
		sum.Considered++

		switch o.reportBusiness(ctx, s, recipients, now) {
		case reportSent:
			sum.Sent++
		case reportNotDue:
			sum.NotDue++
		default:
			sum.Failed++
		}
	}

	zapLog.Info("[Automation] report cycle complete",
		zap.Int("considered", sum.Considered),
		zap.Int("sent", sum.Sent),
		zap.Int("not_due", sum.NotDue),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}

type reportOutcome int

const (
	reportFailed reportOutcome = iota
	reportSent
	reportNotDue
)

func (o *Orchestrator) reportBusiness(ctx context.Context, s *business.AutomationSettings, recipients []string, now time.Time) reportOutcome {
	freq := s.ReportFrequency
	zapLog := logger.FromContext(ctx).With(zap.String("business_id", s.BusinessID), zap.String("period", freq.String()))

	due, days, err := o.reports.Due(ctx, s.BusinessID, freq, now)
	if err != nil {
		zapLog.Error("[Automation] failed to check report cadence", zap.Error(err))
		return reportFailed
	}
	if !due {
		zapLog.Debug("[Automation] report not due", zap.Int("days_since_last", days))
		return reportNotDue
	}

	art, err := o.reports.Build(ctx, s.BusinessID, freq, now)
	if err != nil || art == nil {
		zapLog.Warn("[Automation] report not built, skipping this cycle", zap.Error(err))
		return reportFailed
	}

	delivered := 0
	for _, to := range recipients {
		res := o.gateway.Send(ctx, notification.Message{
			To:      to,
			Subject: art.Title,
			Text:    fmt.Sprintf("Please find attached your %s review report.", freq),
			Attachment: &notification.Attachment{
				Filename:    art.Filename,
				ContentType: report.ContentType,
				Data:        art.Data,
			},
			Kind: "report",
		})
		if res.Delivered {
			delivered++
		}
	}
	if _, err := o.reports.Record(ctx, report.RecordInput{
		BusinessID:     s.BusinessID,
		Frequency:      freq,
		GeneratedAt:    now,
		ArtifactPath:   art.Path,
		SentTo:         recipients,
		DeliveredCount: delivered,
	}); err != nil {
		zapLog.Error("[Automation] failed to record report", zap.Error(err))
		return reportFailed
	}

	if delivered == 0 {
		metrics.ReportsGeneratedTotal.WithLabelValues(freq.String(), "undelivered").Inc()
		zapLog.Warn("[Automation] report reached no recipient", zap.String("path", art.Path))
		return reportFailed
	}

	metrics.ReportsGeneratedTotal.WithLabelValues(freq.String(), "sent").Inc()
	zapLog.Info("[Automation] report sent", zap.Int("delivered", delivered), zap.Int("recipients", len(recipients)))
	return reportSent
}
