package models

import "time"

type Notification struct {
	ID             uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID         uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	Kind           string    `gorm:"column:kind;size:40;not null" json:"kind"`
	Message        string    `gorm:"column:message;type:text;not null" json:"message"`
	Severity       string    `gorm:"column:severity;size:20;not null;default:'info'" json:"type"`
	RelatedMatchID *uint     `gorm:"column:related_match_id" json:"related_match_id"`
	IsRead         bool      `gorm:"column:is_read;not null;default:false" json:"is_read"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
