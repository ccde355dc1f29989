package referral

import "time"

// Referral is a shareable reward link issued after a 5-star review. One
// referral exists per qualifying review.
type Referral struct {
	ID                 string     `gorm:"column:id;primaryKey;size:32" json:"id"`
	BusinessID         string     `gorm:"column:business_id;size:32;index;not null" json:"business_id"`
	CustomerID         string     `gorm:"column:customer_id;size:32;index;not null" json:"customer_id"`
	SourceReviewID     string     `gorm:"column:source_review_id;size:32;uniqueIndex;not null" json:"source_review_id"`
	Token              string     `gorm:"column:token;size:16;uniqueIndex;not null" json:"token"`
	RewardValue        string     `gorm:"column:reward_value;size:255" json:"reward_value"`
	RewardSent         bool       `gorm:"column:reward_sent;not null" json:"reward_sent"`
	ReferredCustomerID *string    `gorm:"column:referred_customer_id;size:32" json:"referred_customer_id,omitempty"`
	UsedAt             *time.Time `gorm:"column:used_at" json:"used_at,omitempty"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func Models() []any {
	return []any{&Referral{}}
}
