package customer

import (
	"time"

	"gorm.io/datatypes"
)

// Segment tags maintained from review ratings and referral activity.
const (
	TagPromoter  = "promoter"
	TagPassive   = "passive"
	TagDetractor = "detractor"
	TagReferrer  = "referrer"
)

type Customer struct {
	ID                string                      `gorm:"column:id;primaryKey;size:32" json:"id"`
	BusinessID        string                      `gorm:"column:business_id;size:32;index;not null" json:"business_id"`
	Name              string                      `gorm:"column:name;size:255;not null" json:"name"`
	Email             string                      `gorm:"column:email;size:255;not null" json:"email"`
	Phone             string                      `gorm:"column:phone;size:32" json:"phone,omitempty"`
	ServiceType       string                      `gorm:"column:service_type;size:128" json:"service_type,omitempty"`
	AppointmentDate   *time.Time                  `gorm:"column:appointment_date" json:"appointment_date,omitempty"`
	Location          string                      `gorm:"column:location;size:255" json:"location,omitempty"`
	Notes             string                      `gorm:"column:notes;type:text" json:"notes,omitempty"`
	ReviewRequested   bool                        `gorm:"column:review_requested;not null" json:"review_requested"`
	ReviewRequestDate *time.Time                  `gorm:"column:review_request_date" json:"review_request_date,omitempty"`
	TotalServices     int                         `gorm:"column:total_services;not null" json:"total_services"`
	ReviewCount       int                         `gorm:"column:review_count;not null" json:"review_count"`
	AverageRating     *float64                    `gorm:"column:average_rating" json:"average_rating,omitempty"`
	LastRating        *int                        `gorm:"column:last_rating" json:"last_rating,omitempty"`
	SegmentTags       datatypes.JSONSlice[string] `gorm:"column:segment_tags" json:"segment_tags"`
	CreatedAt         time.Time                   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time                   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (c *Customer) HasTag(tag string) bool {
	for _, t := range c.SegmentTags {
		if t == tag {
			return true
		}
	}
	return false
}

func Models() []any {
	return []any{&Customer{}}
}
