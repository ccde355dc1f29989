package report

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"smallbiznis-reputation/pkg/db/option"
	"smallbiznis-reputation/pkg/errutil"
	"smallbiznis-reputation/pkg/logger"
	"smallbiznis-reputation/pkg/metrics"
	"smallbiznis-reputation/pkg/repository"
	"smallbiznis-reputation/services/business"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ContentType  = "application/pdf"
	storeTimeout = time.Minute
)

var ErrNoArtifactStore = errors.New("report artifact store not configured")

var sortable = map[string]bool{"generated_at": true}

type Service struct {
	db         *gorm.DB
	node       *snowflake.Node
	businesses *business.Service
	repo       repository.Repository[ReportGeneration]
	store      ArtifactStore
	now        func() time.Time
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Node       *snowflake.Node
	Businesses *business.Service
	Store      ArtifactStore `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:         p.DB,
		node:       p.Node,
		businesses: p.Businesses,
		repo:       repository.ProvideStore[ReportGeneration](p.DB),
		store:      p.Store,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Artifact is a rendered and stored report.
type Artifact struct {
	Path     string
	Filename string
	Data     []byte
	Title    string
}

// Build aggregates, renders and stores the report of cadence freq for
// businessID. Any failure returns an error and no artifact.
func (s *Service) Build(ctx context.Context, businessID string, freq business.ReportFrequency, now time.Time) (*Artifact, error) {
	zapLog := logger.FromContext(ctx).With(zap.String("business_id", businessID), zap.String("period", freq.String()))

	if s.store == nil {
		return nil, ErrNoArtifactStore
	}

	data, err := s.Aggregate(ctx, businessID, freq, now)
	if err != nil {
		metrics.ReportsGeneratedTotal.WithLabelValues(freq.String(), "aggregate_failed").Inc()
		return nil, err
	}

	pdf, err := Render(data)
	if err != nil {
		metrics.ReportsGeneratedTotal.WithLabelValues(freq.String(), "render_failed").Inc()
		zapLog.Error("[Report] failed to render", zap.Error(err))
		return nil, err
	}

	key := ObjectKey(businessID, data.BusinessName, freq, now)
	putCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	p, err := s.store.Put(putCtx, key, pdf, ContentType)
	if err != nil {
		metrics.ReportsGeneratedTotal.WithLabelValues(freq.String(), "store_failed").Inc()
		zapLog.Error("[Report] failed to store artifact", zap.String("key", key), zap.Error(err))
		return nil, err
	}

	metrics.ReportsGeneratedTotal.WithLabelValues(freq.String(), "built").Inc()
	zapLog.Info("[Report] report built", zap.String("path", p), zap.Int("bytes", len(pdf)))
	return &Artifact{Path: p, Filename: path.Base(key), Data: pdf, Title: data.Title()}, nil
}

// Preview renders the report without storing it.
func (s *Service) Preview(ctx context.Context, businessID string, freq business.ReportFrequency) (*Artifact, error) {
	now := s.now()
	data, err := s.Aggregate(ctx, businessID, freq, now)
	if err != nil {
		return nil, err
	}
	pdf, err := Render(data)
	if err != nil {
		return nil, errutil.Internal("failed to render report", err)
	}
	return &Artifact{
		Filename: path.Base(ObjectKey(businessID, data.BusinessName, freq, now)),
		Data:     pdf,
		Title:    data.Title(),
	}, nil
}

// ObjectKey is "{businessID}/{name-slug}-{period}-report-{timestamp}.pdf".
func ObjectKey(businessID, businessName string, freq business.ReportFrequency, now time.Time) string {
	name := slug.Make(businessName)
	if name == "" {
		name = "business"
	}
	return fmt.Sprintf("%s/%s-%s-report-%s.pdf", businessID, name, freq, now.UTC().Format("20060102_150405"))
}

// LastGeneratedAt returns when the last report of cadence freq was
// generated for businessID, or nil when there is none.
func (s *Service) LastGeneratedAt(ctx context.Context, businessID string, freq business.ReportFrequency) (*time.Time, error) {
	last, err := s.repo.FindOne(ctx, &ReportGeneration{BusinessID: businessID, ReportType: freq}, func(db *gorm.DB) *gorm.DB {
		return db.Order("generated_at desc")
	})
	if err != nil {
		return nil, errutil.Internal("failed to get last report", err)
	}
	if last == nil {
		return nil, nil
	}
	return &last.GeneratedAt, nil
}

// Due reports whether businessID needs a report of cadence freq at now.
func (s *Service) Due(ctx context.Context, businessID string, freq business.ReportFrequency, now time.Time) (bool, int, error) {
	last, err := s.LastGeneratedAt(ctx, businessID, freq)
	if err != nil {
		return false, 0, err
	}
	due, days := IsDue(freq, last, now)
	return due, days, nil
}

type RecordInput struct {
	BusinessID     string
	Frequency      business.ReportFrequency
	GeneratedAt    time.Time
	ArtifactPath   string
	SentTo         []string
	DeliveredCount int
}

// Record appends the audit row for a delivered report.
func (s *Service) Record(ctx context.Context, in RecordInput) (*ReportGeneration, error) {
	gen := &ReportGeneration{
		ID:             s.node.Generate().String(),
		BusinessID:     in.BusinessID,
		ReportType:     in.Frequency,
		GeneratedAt:    in.GeneratedAt,
		ArtifactPath:   in.ArtifactPath,
		SentTo:         datatypes.JSONSlice[string](in.SentTo),
		DeliveredCount: in.DeliveredCount,
	}
	if err := s.repo.Create(ctx, gen); err != nil {
		return nil, errutil.Internal("failed to record report", err)
	}
	return gen, nil
}

const listLimit = 100

// List returns the most recent audit rows for businessID, newest first.
func (s *Service) List(ctx context.Context, businessID string) ([]*ReportGeneration, error) {
	rows, err := s.repo.Find(ctx, &ReportGeneration{BusinessID: businessID},
		option.WithSortBy(option.QuerySortBy{SortBy: "generated_at", OrderBy: "desc", Allow: sortable}),
		option.WithLimit(listLimit),
	)
	if err != nil {
		return nil, errutil.Internal("failed to list reports", err)
	}
	return rows, nil
}
