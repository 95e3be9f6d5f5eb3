package models

import "time"

const (
	FriendPending  = "pending"
	FriendAccepted = "accepted"
	FriendRejected = "rejected"
)

type Friendship struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RequesterID uint      `gorm:"column:requester_id;not null;index" json:"requester_id"`
	AddresseeID uint      `gorm:"column:addressee_id;not null;index" json:"addressee_id"`
	Status      string    `gorm:"column:status;size:20;not null;default:'pending'" json:"status"` // pending | accepted | rejected
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Friendship) TableName() string {
	return "friendships"
}

// Other trả về id của người còn lại trong quan hệ.
func (f Friendship) Other(userID uint) uint {
	if f.RequesterID == userID {
		return f.AddresseeID
	}
	return f.RequesterID
}
