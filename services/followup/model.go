package followup

import "time"

type Status string

const (
	StatusScheduled Status = "scheduled"
	// StatusSending marks a row claimed by a processing pass. Rows stuck
	// here past the grace window are returned to scheduled.
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string {
	switch s {
	case StatusScheduled, StatusSending, StatusSent, StatusCancelled:
		return string(s)
	default:
		return ""
	}
}

type FollowUpSequence struct {
	ID           string     `gorm:"column:id;primaryKey;size:32" json:"id"`
	BusinessID   string     `gorm:"column:business_id;size:32;index;not null" json:"business_id"`
	CustomerID   string     `gorm:"column:customer_id;size:32;index;not null" json:"customer_id"`
	Step         int        `gorm:"column:step;not null" json:"step"`
	ScheduledFor time.Time  `gorm:"column:scheduled_for;index;not null" json:"scheduled_for"`
	Status       Status     `gorm:"column:status;size:16;index;not null" json:"status"`
	Subject      string     `gorm:"column:subject;size:255" json:"subject,omitempty"`
	EmailContent string     `gorm:"column:email_content;type:text" json:"email_content,omitempty"`
	SentAt       *time.Time `gorm:"column:sent_at" json:"sent_at,omitempty"`
	ClaimedAt    *time.Time `gorm:"column:claimed_at" json:"claimed_at,omitempty"`
	Attempts     int        `gorm:"column:attempts;not null" json:"attempts"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func Models() []any {
	return []any{&FollowUpSequence{}}
}
