package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/vnkhanh/matchday-server/models"
	"github.com/vnkhanh/matchday-server/roster"
)

// PlatformStats đếm bản ghi cho dashboard admin. Reports chỉ tính báo cáo đang chờ.
type PlatformStats struct {
	Users         int64 `json:"users"`
	Matches       int64 `json:"matches"`
	Votes         int64 `json:"votes"`
	Friendships   int64 `json:"friendships"`
	Participants  int64 `json:"participants"`
	Notifications int64 `json:"notifications"`
	Reports       int64 `json:"reports"`
}

func GetPlatformStats(ctx context.Context, db *gorm.DB) (PlatformStats, error) {
	db = db.WithContext(ctx)
	var s PlatformStats
	counts := []struct {
		model any
		dst   *int64
		where []any
	}{
		{&models.User{}, &s.Users, nil},
		{&models.Match{}, &s.Matches, nil},
		{&models.Vote{}, &s.Votes, nil},
		{&models.Friendship{}, &s.Friendships, nil},
		{&models.Participant{}, &s.Participants, nil},
		{&models.Notification{}, &s.Notifications, nil},
		{&models.Report{}, &s.Reports, []any{"status = ?", models.ReportPending}},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if len(c.where) > 0 {
			q = q.Where(c.where[0], c.where[1:]...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return s, fmt.Errorf("storage: platform stats: %w", err)
		}
	}
	return s, nil
}

// OpenMatchesOf trả id các match đang open mà user có mặt trong roster.
func OpenMatchesOf(ctx context.Context, db *gorm.DB, userID uint) ([]uint, error) {
	var ids []uint
	err := db.WithContext(ctx).Model(&models.Participant{}).
		Joins("JOIN matches ON matches.id = participants.match_id").
		Where("participants.user_id = ? AND matches.status = ?", userID, models.MatchOpen).
		Pluck("participants.match_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("storage: open matches of %d: %w", userID, err)
	}
	return ids, nil
}

// DeleteUser xoá user cùng mọi dữ liệu gắn với họ. Match họ tạo vẫn giữ, creator thành NULL.
func DeleteUser(ctx context.Context, db *gorm.DB, userID uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.User{}, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %d", roster.ErrNotFound, userID)
			}
			return fmt.Errorf("storage: load user %d: %w", userID, err)
		}
		steps := []struct {
			what string
			run  func() error
		}{
			{"participants", func() error { return tx.Where("user_id = ?", userID).Delete(&models.Participant{}).Error }},
			{"votes", func() error {
				return tx.Where("voter_id = ? OR target_id = ?", userID, userID).Delete(&models.Vote{}).Error
			}},
			{"friendships", func() error {
				return tx.Where("requester_id = ? OR addressee_id = ?", userID, userID).Delete(&models.Friendship{}).Error
			}},
			{"notifications", func() error { return tx.Where("user_id = ?", userID).Delete(&models.Notification{}).Error }},
			{"reports", func() error {
				return tx.Where("reporter_id = ? OR reported_user_id = ?", userID, userID).Delete(&models.Report{}).Error
			}},
			{"created matches", func() error {
				return tx.Model(&models.Match{}).Where("creator_id = ?", userID).Update("creator_id", nil).Error
			}},
			{"user", func() error { return tx.Delete(&models.User{}, userID).Error }},
		}
		for _, s := range steps {
			if err := s.run(); err != nil {
				return fmt.Errorf("storage: delete user %d %s: %w", userID, s.what, err)
			}
		}
		return nil
	})
}

// DeleteMatch xoá match, roster và phiếu bầu. Notification và report chỉ mất liên kết tới match.
func DeleteMatch(ctx context.Context, db *gorm.DB, matchID uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Match{}, matchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: match %d", roster.ErrNotFound, matchID)
			}
			return fmt.Errorf("storage: load match %d: %w", matchID, err)
		}
		if err := tx.Where("match_id = ?", matchID).Delete(&models.Participant{}).Error; err != nil {
			return fmt.Errorf("storage: delete participants of %d: %w", matchID, err)
		}
		if err := tx.Where("match_id = ?", matchID).Delete(&models.Vote{}).Error; err != nil {
			return fmt.Errorf("storage: delete votes of %d: %w", matchID, err)
		}
		err := tx.Model(&models.Notification{}).Where("related_match_id = ?", matchID).Update("related_match_id", nil).Error
		if err != nil {
			return fmt.Errorf("storage: unlink notifications of %d: %w", matchID, err)
		}
		if err := tx.Model(&models.Report{}).Where("match_id = ?", matchID).Update("match_id", nil).Error; err != nil {
			return fmt.Errorf("storage: unlink reports of %d: %w", matchID, err)
		}
		if err := tx.Delete(&models.Match{}, matchID).Error; err != nil {
			return fmt.Errorf("storage: delete match %d: %w", matchID, err)
		}
		return nil
	})
}
