package models

import "time"

type Vote struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	MatchID   uint      `gorm:"column:match_id;not null;uniqueIndex:idx_votes_match_voter_target" json:"match_id"`
	VoterID   uint      `gorm:"column:voter_id;not null;uniqueIndex:idx_votes_match_voter_target" json:"voter_id"`
	TargetID  uint      `gorm:"column:target_id;not null;uniqueIndex:idx_votes_match_voter_target;index" json:"target_id"`
	Rating    int       `gorm:"column:rating;not null" json:"rating"`
	Tags      *string   `gorm:"column:tags;type:text" json:"tags"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Vote) TableName() string {
	return "votes"
}
