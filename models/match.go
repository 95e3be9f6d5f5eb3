package models

import "time"

type MatchStatus string

const (
	MatchOpen     MatchStatus = "open"
	MatchLocked   MatchStatus = "locked"
	MatchVoting   MatchStatus = "voting"
	MatchFinished MatchStatus = "finished"
)

// DefaultMaxPlayers được dùng khi client không gửi max_players.
const DefaultMaxPlayers = 10

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchOpen, MatchLocked, MatchVoting, MatchFinished:
		return true
	}
	return false
}

type Match struct {
	ID         uint        `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	DateTime   time.Time   `gorm:"column:date_time;not null" json:"date_time"`
	Location   string      `gorm:"column:location;size:255" json:"location"`
	SportType  string      `gorm:"column:sport_type;size:50;not null" json:"sport_type"`
	PriceTotal *float64    `gorm:"column:price_total" json:"price_total"`
	MaxPlayers int         `gorm:"column:max_players;not null;default:10" json:"max_players"`
	IsPrivate  bool        `gorm:"column:is_private;not null;default:false" json:"is_private"`
	AccessCode *string     `gorm:"column:access_code;size:64" json:"-"` // chỉ trả cho creator/admin
	Status     MatchStatus `gorm:"column:status;size:20;not null;default:'open';index" json:"status"`
	ScoreA     *int        `gorm:"column:score_team_a" json:"score_team_a"`
	ScoreB     *int        `gorm:"column:score_team_b" json:"score_team_b"`
	CreatorID  *uint       `gorm:"column:creator_id;index" json:"creator_id"`
	CreatedAt  time.Time   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Creator      *User         `gorm:"foreignKey:CreatorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	Participants []Participant `gorm:"foreignKey:MatchID" json:"-"`
}

func (Match) TableName() string {
	return "matches"
}

func (m Match) IsCreator(userID uint) bool {
	return m.CreatorID != nil && *m.CreatorID == userID
}

func (m Match) IsOpen() bool {
	return m.Status == MatchOpen
}

// Kết quả của một đội trong match.
const (
	ResultWin  = "win"
	ResultLoss = "loss"
	ResultDraw = "draw"
)

// ResultFor trả win/loss/draw cho team; chưa có tỉ số hoặc không có team thì tính là hòa.
func (m Match) ResultFor(team Team) string {
	if m.ScoreA == nil || m.ScoreB == nil || team == TeamNone || *m.ScoreA == *m.ScoreB {
		return ResultDraw
	}
	winner := TeamA
	if *m.ScoreB > *m.ScoreA {
		winner = TeamB
	}
	if team == winner {
		return ResultWin
	}
	return ResultLoss
}
