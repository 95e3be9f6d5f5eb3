package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"column:username;size:50;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"column:email;size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;size:255;not null" json:"-"` // chỉ lưu hash
	SkillRating  *float64  `gorm:"column:skill_rating" json:"skill_rating"`
	Role         string    `gorm:"column:role;size:20;not null;default:'user'" json:"role"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
