package business

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"smallbiznis-reputation/pkg/errutil"
	"smallbiznis-reputation/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrBusinessNotFound = errors.New("business not found")
	ErrSettingsNotFound = errors.New("automation settings not found")
	ErrTemplateNotFound = errors.New("review template not found")
	ErrNoTemplate       = errors.New("business has no active review template")
)

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	repo      repository.Repository[Business]
	settings  repository.Repository[AutomationSettings]
	templates repository.Repository[ReviewTemplate]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		repo:      repository.ProvideStore[Business](p.DB),
		settings:  repository.ProvideStore[AutomationSettings](p.DB),
		templates: repository.ProvideStore[ReviewTemplate](p.DB),
	}
}

type CreateBusinessInput struct {
	Name            string `json:"name" binding:"required"`
	OwnerEmail      string `json:"owner_email" binding:"required,email"`
	PublicReviewURL string `json:"public_review_url" binding:"omitempty,url"`
}

// CreateBusiness registers a business together with its default automation
// settings and the preset review templates.
func (s *Service) CreateBusiness(ctx context.Context, in CreateBusinessInput) (*Business, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errutil.ValidationFailed("name is required", nil)
	}
	if _, err := mail.ParseAddress(in.OwnerEmail); err != nil {
		return nil, errutil.ValidationFailed("owner_email is invalid", err)
	}

	b := &Business{
		ID:              s.node.Generate().String(),
		Name:            name,
		OwnerEmail:      strings.TrimSpace(in.OwnerEmail),
		PublicReviewURL: strings.TrimSpace(in.PublicReviewURL),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b.Slug = slug.Make(name)
		taken, err := s.repo.WithTrx(tx).Count(ctx, &Business{Slug: b.Slug})
		if err != nil {
			return err
		}
		if taken > 0 {
			b.Slug = fmt.Sprintf("%s-%s", b.Slug, b.ID[len(b.ID)-4:])
		}

		if err := s.repo.WithTrx(tx).Create(ctx, b); err != nil {
			return err
		}

		if err := s.settings.WithTrx(tx).Create(ctx, DefaultSettings(s.node.Generate().String(), b.ID)); err != nil {
			return err
		}

		templates := make([]*ReviewTemplate, 0, len(presets))
		for _, p := range presets {
			templates = append(templates, &ReviewTemplate{
				ID:         s.node.Generate().String(),
				BusinessID: b.ID,
				Name:       p.name,
				Subject:    p.subject,
				Message:    p.message,
				IsDefault:  p.isDefault,
				IsActive:   true,
			})
		}
		return s.templates.WithTrx(tx).BatchCreate(ctx, templates)
	})
	if err != nil {
		zap.L().Error("[Business] failed to create business", zap.String("name", name), zap.Error(err))
		return nil, errutil.Internal("failed to create business", err)
	}

	zap.L().Info("[Business] business created", zap.String("business_id", b.ID), zap.String("slug", b.Slug))
	return b, nil
}

func (s *Service) GetBusiness(ctx context.Context, id string) (*Business, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, errutil.Internal("failed to get business", err)
	}
	if b == nil {
		return nil, errutil.NotFound("business not found", ErrBusinessNotFound)
	}
	return b, nil
}

type UpdateBusinessInput struct {
	Name            *string `json:"name"`
	PublicReviewURL *string `json:"public_review_url" binding:"omitempty,url"`
}

func (s *Service) UpdateBusiness(ctx context.Context, id string, in UpdateBusinessInput) (*Business, error) {
	if _, err := s.GetBusiness(ctx, id); err != nil {
		return nil, err
	}

	values := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, errutil.ValidationFailed("name must not be empty", nil)
		}
		values["name"] = name
	}
	if in.PublicReviewURL != nil {
		values["public_review_url"] = strings.TrimSpace(*in.PublicReviewURL)
	}

	if len(values) > 0 {
		if err := s.repo.Update(ctx, id, values); err != nil {
			return nil, errutil.Internal("failed to update business", err)
		}
	}
	return s.GetBusiness(ctx, id)
}

// GetSettings reads the current settings row. There is no cache.
func (s *Service) GetSettings(ctx context.Context, businessID string) (*AutomationSettings, error) {
	settings, err := s.settings.FindOne(ctx, &AutomationSettings{BusinessID: businessID})
	if err != nil {
		return nil, errutil.Internal("failed to get automation settings", err)
	}
	if settings == nil {
		return nil, errutil.NotFound("automation settings not found", ErrSettingsNotFound)
	}
	return settings, nil
}

// SettingsUpdate is a partial update; nil fields are left unchanged.
type SettingsUpdate struct {
	FollowUpEnabled       *bool     `json:"follow_up_enabled"`
	FollowUpDelay1        *int      `json:"follow_up_delay_1"`
	FollowUpDelay2        *int      `json:"follow_up_delay_2"`
	FollowUpDelay3        *int      `json:"follow_up_delay_3"`
	FollowUpMessage1      *string   `json:"follow_up_message_1"`
	FollowUpMessage2      *string   `json:"follow_up_message_2"`
	FollowUpMessage3      *string   `json:"follow_up_message_3"`
	AIAutoReplyEnabled    *bool     `json:"ai_auto_reply_enabled"`
	AITone                *string   `json:"ai_tone"`
	ReportFrequency       *string   `json:"report_frequency"`
	ReportRecipients      *[]string `json:"report_recipients"`
	ReferralRewardEnabled *bool     `json:"referral_reward_enabled"`
	ReferralRewardValue   *string   `json:"referral_reward_value"`
}

const maxDelayDays = 365

type fieldError struct {
	field string
	msg   string
}

func (e *fieldError) Error() string {
	return e.msg
}

func invalidField(field, format string, args ...any) error {
	return &fieldError{field: field, msg: fmt.Sprintf(format, args...)}
}

func (u SettingsUpdate) values() (map[string]any, error) {
	values := map[string]any{}

	if u.FollowUpEnabled != nil {
		values["follow_up_enabled"] = *u.FollowUpEnabled
	}
	for col, d := range map[string]*int{
		"follow_up_delay_1": u.FollowUpDelay1,
		"follow_up_delay_2": u.FollowUpDelay2,
		"follow_up_delay_3": u.FollowUpDelay3,
	} {
		if d == nil {
			continue
		}
		if *d < 0 || *d > maxDelayDays {
			return nil, invalidField(col, "%s must be between 0 and %d", col, maxDelayDays)
		}
		values[col] = *d
	}
	for col, m := range map[string]*string{
		"follow_up_message_1": u.FollowUpMessage1,
		"follow_up_message_2": u.FollowUpMessage2,
		"follow_up_message_3": u.FollowUpMessage3,
	} {
		if m != nil {
			values[col] = strings.TrimSpace(*m)
		}
	}
	if u.AIAutoReplyEnabled != nil {
		values["ai_auto_reply_enabled"] = *u.AIAutoReplyEnabled
	}
	if u.AITone != nil {
		tone := Tone(strings.ToLower(strings.TrimSpace(*u.AITone)))
		if tone.String() == "" {
			return nil, invalidField("ai_tone", "ai_tone %q is not supported", *u.AITone)
		}
		values["ai_tone"] = tone
	}
	if u.ReportFrequency != nil {
		freq := ReportFrequency(strings.ToLower(strings.TrimSpace(*u.ReportFrequency)))
		if freq.String() == "" {
			return nil, invalidField("report_frequency", "report_frequency %q is not supported", *u.ReportFrequency)
		}
		values["report_frequency"] = freq
	}
	if u.ReportRecipients != nil {
		recipients := make([]string, 0, len(*u.ReportRecipients))
		for _, r := range *u.ReportRecipients {
			r = strings.TrimSpace(r)
			if r == "" {
				continue
			}
			if _, err := mail.ParseAddress(r); err != nil {
				return nil, invalidField("report_recipients", "report recipient %q is invalid", r)
			}
			recipients = append(recipients, r)
		}
		values["report_recipients"] = datatypes.JSONSlice[string](recipients)
	}
	if u.ReferralRewardEnabled != nil {
		values["referral_reward_enabled"] = *u.ReferralRewardEnabled
	}
	if u.ReferralRewardValue != nil {
		values["referral_reward_value"] = strings.TrimSpace(*u.ReferralRewardValue)
	}

	return values, nil
}

func (s *Service) UpdateSettings(ctx context.Context, businessID string, in SettingsUpdate) (*AutomationSettings, error) {
	current, err := s.GetSettings(ctx, businessID)
	if err != nil {
		return nil, err
	}

	values, err := in.values()
	if err != nil {
		var fe *fieldError
		if errors.As(err, &fe) {
			return nil, errutil.ValidationFailed(fe.msg, err, errutil.WithDetails(errutil.Detail{Field: fe.field, Message: fe.msg}))
		}
		return nil, errutil.ValidationFailed(err.Error(), err)
	}
	if len(values) == 0 {
		return current, nil
	}

	if err := s.settings.Update(ctx, current.ID, values); err != nil {
		zap.L().Error("[Business] failed to update settings", zap.String("business_id", businessID), zap.Error(err))
		return nil, errutil.Internal("failed to update automation settings", err)
	}

	return s.GetSettings(ctx, businessID)
}

// ListSettings returns every business's settings for scheduled cycles.
func (s *Service) ListSettings(ctx context.Context) ([]*AutomationSettings, error) {
	return s.settings.Find(ctx, nil)
}

func (s *Service) ListTemplates(ctx context.Context, businessID string) ([]*ReviewTemplate, error) {
	templates, err := s.templates.Find(ctx, &ReviewTemplate{BusinessID: businessID}, func(db *gorm.DB) *gorm.DB {
		return db.Order("is_default desc").Order("created_at asc")
	})
	if err != nil {
		return nil, errutil.Internal("failed to list templates", err)
	}
	return templates, nil
}

type TemplateInput struct {
	Name      string `json:"name" binding:"required"`
	Subject   string `json:"subject" binding:"required"`
	Message   string `json:"message" binding:"required"`
	IsDefault bool   `json:"is_default"`
}

func (s *Service) CreateTemplate(ctx context.Context, businessID string, in TemplateInput) (*ReviewTemplate, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Subject) == "" || strings.TrimSpace(in.Message) == "" {
		return nil, errutil.ValidationFailed("name, subject and message are required", nil)
	}
	if !strings.Contains(in.Message, PlaceholderReviewLink) {
		return nil, errutil.ValidationFailed("message must contain "+PlaceholderReviewLink, nil)
	}
	if _, err := s.GetBusiness(ctx, businessID); err != nil {
		return nil, err
	}

	t := &ReviewTemplate{
		ID:         s.node.Generate().String(),
		BusinessID: businessID,
		Name:       strings.TrimSpace(in.Name),
		Subject:    strings.TrimSpace(in.Subject),
		Message:    in.Message,
		IsDefault:  in.IsDefault,
		IsActive:   true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if t.IsDefault {
			if err := clearDefault(tx, businessID); err != nil {
				return err
			}
		}
		return s.templates.WithTrx(tx).Create(ctx, t)
	})
	if err != nil {
		return nil, errutil.Internal("failed to create template", err)
	}
	return t, nil
}

// SetDefaultTemplate makes templateID the single default for the business.
func (s *Service) SetDefaultTemplate(ctx context.Context, businessID, templateID string) (*ReviewTemplate, error) {
	t, err := s.templates.FindOne(ctx, &ReviewTemplate{ID: templateID, BusinessID: businessID})
	if err != nil {
		return nil, errutil.Internal("failed to get template", err)
	}
	if t == nil {
		return nil, errutil.NotFound("review template not found", ErrTemplateNotFound)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := clearDefault(tx, businessID); err != nil {
			return err
		}
		return tx.Model(&ReviewTemplate{}).Where("id = ?", t.ID).Updates(map[string]any{
			"is_default": true,
			"is_active":  true,
		}).Error
	})
	if err != nil {
		return nil, errutil.Internal("failed to set default template", err)
	}

	t.IsDefault = true
	t.IsActive = true
	return t, nil
}

func clearDefault(tx *gorm.DB, businessID string) error {
	return tx.Model(&ReviewTemplate{}).
		Where("business_id = ? AND is_default = ?", businessID, true).
		Update("is_default", false).Error
}

// ResolveTemplate returns templateID when given, otherwise the business
// default, otherwise its oldest active template.
func (s *Service) ResolveTemplate(ctx context.Context, businessID, templateID string) (*ReviewTemplate, error) {
	if templateID != "" {
		t, err := s.templates.FindOne(ctx, &ReviewTemplate{ID: templateID, BusinessID: businessID, IsActive: true})
		if err != nil {
			return nil, errutil.Internal("failed to get template", err)
		}
		if t == nil {
			return nil, errutil.NotFound("review template not found", ErrTemplateNotFound)
		}
		return t, nil
	}

	t, err := s.templates.FindOne(ctx, &ReviewTemplate{BusinessID: businessID, IsActive: true}, func(db *gorm.DB) *gorm.DB {
		return db.Order("is_default desc").Order("created_at asc")
	})
	if err != nil {
		return nil, errutil.Internal("failed to get template", err)
	}
	if t == nil {
		return nil, errutil.UnprocessableEntity("business has no active review template", ErrNoTemplate)
	}
	return t, nil
}
