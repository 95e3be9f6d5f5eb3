// Package storage holds the gorm persistence for matches and rosters.
package storage

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/vnkhanh/matchday-server/models"
)

// AutoMigrate creates or updates every table the server uses.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Match{},
		&models.Participant{},
		&models.Friendship{},
		&models.Vote{},
		&models.Notification{},
		&models.Report{},
	)
	if err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}
	return nil
}
