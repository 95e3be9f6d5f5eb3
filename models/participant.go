package models

import (
	"encoding/json"
	"time"
)

type ParticipantStatus string

const (
	StatusConfirmed       ParticipantStatus = "confirmed"
	StatusWaitlist        ParticipantStatus = "waitlist"
	StatusPendingApproval ParticipantStatus = "pending_approval"
	StatusDeclined        ParticipantStatus = "declined"
)

// Team là nhãn đội; chuỗi rỗng nghĩa là chưa chia đội.
type Team string

const (
	TeamNone Team = ""
	TeamA    Team = "A"
	TeamB    Team = "B"
)

// ParseTeam accepts "A", "B", the legacy "Team A"/"Team B" labels, and "" / "none" for no team.
func ParseTeam(s string) (Team, bool) {
	switch s {
	case "", "none":
		return TeamNone, true
	case "A", "a", "Team A":
		return TeamA, true
	case "B", "b", "Team B":
		return TeamB, true
	}
	return TeamNone, false
}

func (t Team) MarshalJSON() ([]byte, error) {
	if t == TeamNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(t))
}

type Participant struct {
	ID        uint              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	MatchID   uint              `gorm:"column:match_id;not null;uniqueIndex:idx_participants_match_user" json:"match_id"`
	UserID    uint              `gorm:"column:user_id;not null;uniqueIndex:idx_participants_match_user;index" json:"user_id"`
	Status    ParticipantStatus `gorm:"column:status;size:20;not null;default:'confirmed'" json:"status"`
	Team      Team              `gorm:"column:team;size:1;not null;default:''" json:"team"`
	IsAdmin   bool              `gorm:"column:is_admin;not null;default:false" json:"is_admin"`
	Captain   bool              `gorm:"column:captain;not null;default:false" json:"captain"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	Match *Match `gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE" json:"-"`
	User  *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Participant) TableName() string {
	return "participants"
}
