package review

import (
	"time"
)

type RequestStatus string

const (
	RequestSent      RequestStatus = "sent"
	RequestOpened    RequestStatus = "opened"
	RequestCompleted RequestStatus = "completed"
	RequestFailed    RequestStatus = "failed"
)

func (s RequestStatus) String() string {
	switch s {
	case RequestSent, RequestOpened, RequestCompleted, RequestFailed:
		return string(s)
	default:
		return ""
	}
}

type Status string

const (
	StatusPending           Status = "pending"
	StatusResponded         Status = "responded"
	StatusNeedsResponse     Status = "needs_response"
	StatusForwardedToGoogle Status = "forwarded_to_google"
)

func (s Status) String() string {
	switch s {
	case StatusPending, StatusResponded, StatusNeedsResponse, StatusForwardedToGoogle:
		return string(s)
	default:
		return ""
	}
}

type Sender string

const (
	SenderAdmin    Sender = "admin"
	SenderAI       Sender = "ai"
	SenderCustomer Sender = "customer"
)

func (s Sender) String() string {
	switch s {
	case SenderAdmin, SenderAI, SenderCustomer:
		return string(s)
	default:
		return ""
	}
}

// ReviewRequest is one emailed review link. Token is the only credential
// the public review page accepts.
type ReviewRequest struct {
	ID          string        `gorm:"column:id;primaryKey;size:32" json:"id"`
	BusinessID  string        `gorm:"column:business_id;size:32;index;not null" json:"business_id"`
	CustomerID  string        `gorm:"column:customer_id;size:32;index;not null" json:"customer_id"`
	TemplateID  string        `gorm:"column:template_id;size:32" json:"template_id,omitempty"`
	Token       string        `gorm:"column:token;size:64;uniqueIndex;not null" json:"token"`
	Status      RequestStatus `gorm:"column:status;size:16;not null" json:"status"`
	SentAt      time.Time     `gorm:"column:sent_at" json:"sent_at"`
	OpenedAt    *time.Time    `gorm:"column:opened_at" json:"opened_at,omitempty"`
	CompletedAt *time.Time    `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

type Review struct {
	ID                  string     `gorm:"column:id;primaryKey;size:32" json:"id"`
	BusinessID          string     `gorm:"column:business_id;size:32;index;not null" json:"business_id"`
	CustomerID          string     `gorm:"column:customer_id;size:32;index;not null" json:"customer_id"`
	ReviewRequestID     string     `gorm:"column:review_request_id;size:32;uniqueIndex;not null" json:"review_request_id"`
	Rating              int        `gorm:"column:rating;not null" json:"rating"`
	Comment             string     `gorm:"column:comment;type:text" json:"comment"`
	Status              Status     `gorm:"column:status;size:32;index;not null" json:"status"`
	AdminResponse       string     `gorm:"column:admin_response;type:text" json:"admin_response,omitempty"`
	ResponseDate        *time.Time `gorm:"column:response_date" json:"response_date,omitempty"`
	Sentiment           string     `gorm:"column:sentiment;size:32" json:"sentiment,omitempty"`
	SentimentScore      *float64   `gorm:"column:sentiment_score" json:"sentiment_score,omitempty"`
	Category            string     `gorm:"column:review_category;size:32" json:"review_category,omitempty"`
	AISuggestedResponse string     `gorm:"column:ai_suggested_response;type:text" json:"ai_suggested_response,omitempty"`
	AIProcessedAt       *time.Time `gorm:"column:ai_processed_at" json:"ai_processed_at,omitempty"`
	DetailedFeedbackAt  *time.Time `gorm:"column:detailed_feedback_at" json:"detailed_feedback_at,omitempty"`
	ForwardedAt         *time.Time `gorm:"column:forwarded_at" json:"forwarded_at,omitempty"`
	CreatedAt           time.Time  `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// ReviewConversation is an append-only thread entry on a review.
type ReviewConversation struct {
	ID            string    `gorm:"column:id;primaryKey;size:32" json:"id"`
	ReviewID      string    `gorm:"column:review_id;size:32;index;not null" json:"review_id"`
	Sender        Sender    `gorm:"column:sender;size:16;not null" json:"sender"`
	Message       string    `gorm:"column:message;type:text;not null" json:"message"`
	IsAIGenerated bool      `gorm:"column:is_ai_generated;not null" json:"is_ai_generated"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func Models() []any {
	return []any{&ReviewRequest{}, &Review{}, &ReviewConversation{}}
}
