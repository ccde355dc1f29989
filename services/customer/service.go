package customer

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"smallbiznis-reputation/pkg/db/option"
	"smallbiznis-reputation/pkg/db/pagination"
	"smallbiznis-reputation/pkg/errutil"
	"smallbiznis-reputation/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrCustomerNotFound = errors.New("customer not found")

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	repo repository.Repository[Customer]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		repo: repository.ProvideStore[Customer](p.DB),
	}
}

type CreateInput struct {
	Name            string     `json:"name" binding:"required"`
	Email           string     `json:"email" binding:"required,email"`
	Phone           string     `json:"phone"`
	ServiceType     string     `json:"service_type"`
	AppointmentDate *time.Time `json:"appointment_date"`
	Location        string     `json:"location"`
	Notes           string     `json:"notes"`
}

func (s *Service) Create(ctx context.Context, businessID string, in CreateInput) (*Customer, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errutil.ValidationFailed("name is required", nil)
	}
	email := strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, errutil.ValidationFailed("email is invalid", err)
	}

	c := &Customer{
		ID:              s.node.Generate().String(),
		BusinessID:      businessID,
		Name:            name,
		Email:           email,
		Phone:           strings.TrimSpace(in.Phone),
		ServiceType:     strings.TrimSpace(in.ServiceType),
		AppointmentDate: in.AppointmentDate,
		Location:        strings.TrimSpace(in.Location),
		Notes:           in.Notes,
		TotalServices:   1,
		SegmentTags:     datatypes.JSONSlice[string]{},
	}

	if err := s.repo.Create(ctx, c); err != nil {
		zap.L().Error("[Customer] failed to create customer", zap.String("business_id", businessID), zap.Error(err))
		return nil, errutil.Internal("failed to create customer", err)
	}
	return c, nil
}

// Get returns a customer scoped to businessID.
func (s *Service) Get(ctx context.Context, businessID, id string) (*Customer, error) {
	c, err := s.repo.FindOne(ctx, &Customer{ID: id, BusinessID: businessID})
	if err != nil {
		return nil, errutil.Internal("failed to get customer", err)
	}
	if c == nil {
		return nil, errutil.NotFound("customer not found", ErrCustomerNotFound)
	}
	return c, nil
}

// GetByID is the unscoped lookup used by background work.
func (s *Service) GetByID(ctx context.Context, id string) (*Customer, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, errutil.Internal("failed to get customer", err)
	}
	if c == nil {
		return nil, errutil.NotFound("customer not found", ErrCustomerNotFound)
	}
	return c, nil
}

type ListInput struct {
	pagination.Pagination
	Tag string `form:"tag"`
}

func (s *Service) List(ctx context.Context, businessID string, in ListInput) ([]*Customer, *pagination.PageInfo, error) {
	opts := []option.QueryOption{}
	if tag := strings.TrimSpace(in.Tag); tag != "" {
		opts = append(opts, option.ApplyJSONContains("segment_tags", tag))
	}
	opts = append(opts, option.ApplyPagination(in.Pagination))

	rows, err := s.repo.Find(ctx, &Customer{BusinessID: businessID}, opts...)
	if err != nil {
		return nil, nil, errutil.Internal("failed to list customers", err)
	}

	data, info := pagination.Page(rows, in.Limit, func(c *Customer) string { return c.ID })
	return data, info, nil
}

// RecordVisit counts another completed service for the customer.
func (s *Service) RecordVisit(ctx context.Context, businessID, id string) (*Customer, error) {
	c, err := s.Get(ctx, businessID, id)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&Customer{}).Where("id = ?", c.ID).
		Update("total_services", gorm.Expr("total_services + 1")).Error; err != nil {
		return nil, errutil.Internal("failed to record visit", err)
	}
	c.TotalServices++
	return c, nil
}
