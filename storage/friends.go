package storage

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/vnkhanh/matchday-server/models"
)

// AreFriends reports whether a and b have an accepted friendship in either direction.
func AreFriends(db *gorm.DB, a, b uint) (bool, error) {
	if a == b {
		return false, nil
	}
	var n int64
	err := db.Model(&models.Friendship{}).
		Where("status = ?", models.FriendAccepted).
		Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)", a, b, b, a).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("storage: friendship lookup: %w", err)
	}
	return n > 0, nil
}

// FindFriendship returns the friendship row between a and b in either direction, or nil.
func FindFriendship(db *gorm.DB, a, b uint) (*models.Friendship, error) {
	var f models.Friendship
	err := db.Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)", a, b, b, a).
		Limit(1).Find(&f).Error
	if err != nil {
		return nil, fmt.Errorf("storage: friendship lookup: %w", err)
	}
	if f.ID == 0 {
		return nil, nil
	}
	return &f, nil
}
