package storage

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vnkhanh/matchday-server/models"
)

// CreateMatch stores m and enrolls its creator as a confirmed match admin.
func CreateMatch(ctx context.Context, db *gorm.DB, m *models.Match) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return fmt.Errorf("storage: create match: %w", err)
		}
		if m.CreatorID == nil {
			return nil
		}
		p := models.Participant{
			MatchID: m.ID,
			UserID:  *m.CreatorID,
			Status:  models.StatusConfirmed,
			IsAdmin: true,
		}
		if err := tx.Create(&p).Error; err != nil {
			return fmt.Errorf("storage: enroll creator: %w", err)
		}
		return nil
	})
}

// RecomputeRatings sets skill_rating of every player rated in matchID to the average of all
// votes they ever received.
func RecomputeRatings(tx *gorm.DB, matchID uint) error {
	var targets []uint
	err := tx.Model(&models.Vote{}).Where("match_id = ?", matchID).Distinct("target_id").Pluck("target_id", &targets).Error
	if err != nil {
		return fmt.Errorf("storage: rated players: %w", err)
	}
	for _, id := range targets {
		var avg sql.NullFloat64
		row := tx.Model(&models.Vote{}).Select("AVG(rating)").Where("target_id = ?", id).Row()
		if err := row.Scan(&avg); err != nil {
			return fmt.Errorf("storage: average rating of %d: %w", id, err)
		}
		if !avg.Valid {
			continue
		}
		if err := tx.Model(&models.User{}).Where("id = ?", id).Update("skill_rating", avg.Float64).Error; err != nil {
			return fmt.Errorf("storage: update rating of %d: %w", id, err)
		}
	}
	return nil
}

// ConfirmedCounts returns confirmed participants per match id.
func ConfirmedCounts(ctx context.Context, db *gorm.DB, matchIDs []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(matchIDs))
	if len(matchIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		MatchID uint
		Total   int64
	}
	err := db.WithContext(ctx).Model(&models.Participant{}).
		Select("match_id, COUNT(*) AS total").
		Where("match_id IN ? AND status = ?", matchIDs, models.StatusConfirmed).
		Group("match_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("storage: confirmed counts: %w", err)
	}
	for _, r := range rows {
		out[r.MatchID] = r.Total
	}
	return out, nil
}

// UpsertVote stores the vote, replacing rating and tags of an earlier vote for the same target.
func UpsertVote(ctx context.Context, db *gorm.DB, v *models.Vote) error {
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "match_id"}, {Name: "voter_id"}, {Name: "target_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "tags"}),
	}).Create(v).Error
	if err != nil {
		return fmt.Errorf("storage: upsert vote: %w", err)
	}
	return nil
}
