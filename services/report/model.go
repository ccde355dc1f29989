package report

import (
	"time"

	"smallbiznis-reputation/services/business"

	"gorm.io/datatypes"
)

// ReportGeneration is the append-only audit row written after a report has
// been emailed.
type ReportGeneration struct {
	ID             string                      `gorm:"column:id;primaryKey;size:32" json:"id"`
	BusinessID     string                      `gorm:"column:business_id;size:32;index:idx_report_business_type;not null" json:"business_id"`
	ReportType     business.ReportFrequency    `gorm:"column:report_type;size:16;index:idx_report_business_type;not null" json:"report_type"`
	GeneratedAt    time.Time                   `gorm:"column:generated_at;not null" json:"generated_at"`
	ArtifactPath   string                      `gorm:"column:artifact_path;size:512;not null" json:"artifact_path"`
	SentTo         datatypes.JSONSlice[string] `gorm:"column:sent_to" json:"sent_to"`
	DeliveredCount int                         `gorm:"column:delivered_count;not null" json:"delivered_count"`
	CreatedAt      time.Time                   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func Models() []any {
	return []any{&ReportGeneration{}}
}
