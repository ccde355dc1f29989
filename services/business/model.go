package business

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneFriendly     Tone = "friendly"
	ToneCasual       Tone = "casual"
)

func (t Tone) String() string {
	switch t {
	case ToneProfessional, ToneFriendly, ToneCasual:
		return string(t)
	default:
		return ""
	}
}

type ReportFrequency string

const (
	ReportWeekly  ReportFrequency = "weekly"
	ReportMonthly ReportFrequency = "monthly"
)

func (f ReportFrequency) String() string {
	switch f {
	case ReportWeekly, ReportMonthly:
		return string(f)
	default:
		return ""
	}
}

// Title is the capitalised frequency used in report subjects.
func (f ReportFrequency) Title() string {
	s := f.String()
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

type Business struct {
	ID              string    `gorm:"column:id;primaryKey;size:32" json:"id"`
	Name            string    `gorm:"column:name;size:255;not null" json:"name"`
	Slug            string    `gorm:"column:slug;size:255;uniqueIndex;not null" json:"slug"`
	OwnerEmail      string    `gorm:"column:owner_email;size:255;not null" json:"owner_email"`
	PublicReviewURL string    `gorm:"column:public_review_url;size:512" json:"public_review_url,omitempty"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// AutomationSettings is the per-business automation configuration. Callers
// read it fresh at every decision point.
type AutomationSettings struct {
	ID                    string                      `gorm:"column:id;primaryKey;size:32" json:"id"`
	BusinessID            string                      `gorm:"column:business_id;size:32;uniqueIndex;not null" json:"business_id"`
	FollowUpEnabled       bool                        `gorm:"column:follow_up_enabled;not null" json:"follow_up_enabled"`
	FollowUpDelay1        int                         `gorm:"column:follow_up_delay_1;not null" json:"follow_up_delay_1"`
	FollowUpDelay2        int                         `gorm:"column:follow_up_delay_2;not null" json:"follow_up_delay_2"`
	FollowUpDelay3        int                         `gorm:"column:follow_up_delay_3;not null" json:"follow_up_delay_3"`
	FollowUpMessage1      string                      `gorm:"column:follow_up_message_1;type:text" json:"follow_up_message_1"`
	FollowUpMessage2      string                      `gorm:"column:follow_up_message_2;type:text" json:"follow_up_message_2"`
	FollowUpMessage3      string                      `gorm:"column:follow_up_message_3;type:text" json:"follow_up_message_3"`
	AIAutoReplyEnabled    bool                        `gorm:"column:ai_auto_reply_enabled;not null" json:"ai_auto_reply_enabled"`
	AITone                Tone                        `gorm:"column:ai_tone;size:32;not null" json:"ai_tone"`
	ReportFrequency       ReportFrequency             `gorm:"column:report_frequency;size:16;not null" json:"report_frequency"`
	ReportRecipients      datatypes.JSONSlice[string] `gorm:"column:report_recipients" json:"report_recipients"`
	ReferralRewardEnabled bool                        `gorm:"column:referral_reward_enabled;not null" json:"referral_reward_enabled"`
	ReferralRewardValue   string                      `gorm:"column:referral_reward_value;size:255" json:"referral_reward_value"`
	CreatedAt             time.Time                   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time                   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// Delays returns the configured follow-up delays in days, indexed by step-1.
func (s *AutomationSettings) Delays() [3]int {
	return [3]int{s.FollowUpDelay1, s.FollowUpDelay2, s.FollowUpDelay3}
}

// Messages returns the preset follow-up bodies, indexed by step-1.
func (s *AutomationSettings) Messages() [3]string {
	return [3]string{s.FollowUpMessage1, s.FollowUpMessage2, s.FollowUpMessage3}
}

// Recipients returns the trimmed, non-empty report recipients.
func (s *AutomationSettings) Recipients() []string {
	out := make([]string, 0, len(s.ReportRecipients))
	for _, r := range s.ReportRecipients {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// RewardValue falls back to the stock incentive when none is configured.
func (s *AutomationSettings) RewardValue() string {
	if v := strings.TrimSpace(s.ReferralRewardValue); v != "" {
		return v
	}
	return DefaultRewardValue
}

type ReviewTemplate struct {
	ID         string    `gorm:"column:id;primaryKey;size:32" json:"id"`
	BusinessID string    `gorm:"column:business_id;size:32;index;not null" json:"business_id"`
	Name       string    `gorm:"column:name;size:255;not null" json:"name"`
	Subject    string    `gorm:"column:subject;size:255;not null" json:"subject"`
	Message    string    `gorm:"column:message;type:text;not null" json:"message"`
	IsDefault  bool      `gorm:"column:is_default;not null" json:"is_default"`
	IsActive   bool      `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// Models lists the tables owned by this package.
func Models() []any {
	return []any{&Business{}, &AutomationSettings{}, &ReviewTemplate{}}
}
