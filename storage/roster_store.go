package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vnkhanh/matchday-server/models"
	"github.com/vnkhanh/matchday-server/roster"
)

// RosterStore implements roster.Store with gorm.
type RosterStore struct {
	db *gorm.DB
}

func NewRosterStore(db *gorm.DB) *RosterStore {
	return &RosterStore{db: db}
}

var _ roster.Store = (*RosterStore)(nil)

// InTx locks the match row (SELECT ... FOR UPDATE) for the whole transaction, so capacity checks and
// the writes that depend on them cannot interleave with another instance touching the same match.
func (s *RosterStore) InTx(ctx context.Context, matchID uint, fn func(tx roster.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.Match
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, matchID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: match %d", roster.ErrNotFound, matchID)
		}
		if err != nil {
			return fmt.Errorf("storage: lock match %d: %w", matchID, err)
		}
		return fn(&rosterTx{db: tx, match: m})
	})
}

type rosterTx struct {
	db    *gorm.DB
	match models.Match
}

func (t *rosterTx) Match() models.Match {
	return t.match
}

func (t *rosterTx) participants() *gorm.DB {
	return t.db.Model(&models.Participant{}).Where("match_id = ?", t.match.ID)
}

func (t *rosterTx) Participant(userID uint) (*models.Participant, error) {
	var p models.Participant
	err := t.db.Where("match_id = ? AND user_id = ?", t.match.ID, userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load participant: %w", err)
	}
	return &p, nil
}

func (t *rosterTx) CountConfirmed() (int64, error) {
	var n int64
	if err := t.participants().Where("status = ?", models.StatusConfirmed).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("storage: count confirmed: %w", err)
	}
	return n, nil
}

func (t *rosterTx) TeamSizes() (int64, int64, error) {
	var rows []struct {
		Team  models.Team
		Total int64
	}
	err := t.participants().
		Select("team, COUNT(*) AS total").
		Where("status = ? AND team <> ''", models.StatusConfirmed).
		Group("team").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, fmt.Errorf("storage: team sizes: %w", err)
	}
	var a, b int64
	for _, r := range rows {
		switch r.Team {
		case models.TeamA:
			a = r.Total
		case models.TeamB:
			b = r.Total
		}
	}
	return a, b, nil
}

func (t *rosterTx) OldestWaitlisted() (*models.Participant, error) {
	var p models.Participant
	err := t.db.Where("match_id = ? AND status = ?", t.match.ID, models.StatusWaitlist).
		Order("id ASC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: waitlist head: %w", err)
	}
	return &p, nil
}

func (t *rosterTx) Confirmed() ([]roster.RatedParticipant, error) {
	var rows []struct {
		ID          uint
		UserID      uint
		SkillRating *float64
	}
	err := t.db.Table("participants AS p").
		Select("p.id, p.user_id, u.skill_rating").
		Joins("JOIN users u ON u.id = p.user_id").
		Where("p.match_id = ? AND p.status = ?", t.match.ID, models.StatusConfirmed).
		Order("p.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("storage: confirmed participants: %w", err)
	}
	out := make([]roster.RatedParticipant, 0, len(rows))
	for _, r := range rows {
		out = append(out, roster.RatedParticipant{ParticipantID: r.ID, UserID: r.UserID, Skill: r.SkillRating})
	}
	return out, nil
}

func (t *rosterTx) AreFriends(a, b uint) (bool, error) {
	return AreFriends(t.db, a, b)
}

func (t *rosterTx) Insert(p *models.Participant) error {
	if err := t.db.Create(p).Error; err != nil {
		return fmt.Errorf("storage: insert participant: %w", err)
	}
	return nil
}

func (t *rosterTx) Update(participantID uint, patch roster.ParticipantPatch) error {
	if patch.Empty() {
		return nil
	}
	updates := map[string]interface{}{}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.Team != nil {
		updates["team"] = *patch.Team
	}
	if patch.Captain != nil {
		updates["captain"] = *patch.Captain
	}
	if patch.IsAdmin != nil {
		updates["is_admin"] = *patch.IsAdmin
	}
	err := t.db.Model(&models.Participant{}).
		Where("id = ? AND match_id = ?", participantID, t.match.ID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("storage: update participant %d: %w", participantID, err)
	}
	return nil
}

func (t *rosterTx) Delete(participantID uint) error {
	err := t.db.Where("match_id = ?", t.match.ID).Delete(&models.Participant{}, participantID).Error
	if err != nil {
		return fmt.Errorf("storage: delete participant %d: %w", participantID, err)
	}
	return nil
}

func (t *rosterTx) ClearCaptain(team models.Team) error {
	err := t.participants().
		Where("team = ? AND captain = ?", team, true).
		Update("captain", false).Error
	if err != nil {
		return fmt.Errorf("storage: clear captain: %w", err)
	}
	return nil
}

func (t *rosterTx) UpdateMatch(patch roster.MatchPatch) error {
	if patch.Empty() {
		return nil
	}
	updates := map[string]interface{}{}
	if patch.DateTime != nil {
		updates["date_time"] = *patch.DateTime
	}
	if patch.Location != nil {
		updates["location"] = *patch.Location
	}
	if patch.SportType != nil {
		updates["sport_type"] = *patch.SportType
	}
	if patch.PriceSet {
		updates["price_total"] = patch.PriceTotal
	}
	if patch.MaxPlayers != nil {
		updates["max_players"] = *patch.MaxPlayers
	}
	if patch.IsPrivate != nil {
		updates["is_private"] = *patch.IsPrivate
	}
	if patch.CodeSet {
		updates["access_code"] = patch.AccessCode
	}
	if err := t.db.Model(&models.Match{}).Where("id = ?", t.match.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("storage: update match %d: %w", t.match.ID, err)
	}
	return t.reload()
}

func (t *rosterTx) SetStatus(status models.MatchStatus, score *roster.Score) error {
	updates := map[string]interface{}{"status": status}
	if score != nil {
		updates["score_team_a"] = score.A
		updates["score_team_b"] = score.B
	}
	if err := t.db.Model(&models.Match{}).Where("id = ?", t.match.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("storage: update status of match %d: %w", t.match.ID, err)
	}
	return t.reload()
}

func (t *rosterTx) RecomputeRatings() error {
	return RecomputeRatings(t.db, t.match.ID)
}

func (t *rosterTx) reload() error {
	var m models.Match
	if err := t.db.First(&m, t.match.ID).Error; err != nil {
		return fmt.Errorf("storage: reload match %d: %w", t.match.ID, err)
	}
	t.match = m
	return nil
}
