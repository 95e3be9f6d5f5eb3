package models

import "time"

const (
	ReportPending   = "pending"
	ReportReviewed  = "reviewed"
	ReportDismissed = "dismissed"
)

// Report là báo cáo vi phạm một user gửi về user khác, có thể gắn với một match.
type Report struct {
	ID             uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ReporterID     uint      `gorm:"column:reporter_id;not null;index" json:"reporter_id"`
	ReportedUserID uint      `gorm:"column:reported_user_id;not null;index" json:"reported_user_id"`
	MatchID        *uint     `gorm:"column:match_id" json:"match_id"`
	Reason         string    `gorm:"column:reason;size:100;not null" json:"reason"`
	Description    string    `gorm:"column:description;type:text" json:"description"`
	Status         string    `gorm:"column:status;size:20;not null;default:'pending';index" json:"status"` // pending | reviewed | dismissed
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Report) TableName() string {
	return "reports"
}

func ValidReportStatus(s string) bool {
	switch s {
	case ReportPending, ReportReviewed, ReportDismissed:
		return true
	}
	return false
}
