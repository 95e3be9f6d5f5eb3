package roster

import (
	"sort"

	"github.com/vnkhanh/matchday-server/models"
)

// defaultSkill stands in for players without a rating.
const defaultSkill = 6.0

// RatedParticipant is a confirmed player with their user skill rating, nil when unrated.
type RatedParticipant struct {
	ParticipantID uint
	UserID        uint
	Skill         *float64
}

func (p RatedParticipant) skill() float64 {
	if p.Skill == nil {
		return defaultSkill
	}
	return *p.Skill
}

// Assignment puts one participant on a team.
type Assignment struct {
	ParticipantID uint
	UserID        uint
	Team          models.Team
}

// TeamSummary is the head count and skill sum of each team after balancing.
type TeamSummary struct {
	CountA int     `json:"teamA_count"`
	SkillA float64 `json:"teamA_skill"`
	CountB int     `json:"teamB_count"`
	SkillB float64 `json:"teamB_skill"`
}

// BalanceTeams splits players into A and B greedily: strongest first, each to the team with the
// lower skill sum. Ties go to the team with fewer players, then to A. Equal ratings are ordered by
// participant id so the result is deterministic.
func BalanceTeams(players []RatedParticipant) ([]Assignment, TeamSummary) {
	sorted := make([]RatedParticipant, len(players))
	copy(sorted, players)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := sorted[i].skill(), sorted[j].skill()
		if si != sj {
			return si > sj
		}
		return sorted[i].ParticipantID < sorted[j].ParticipantID
	})

	var sum TeamSummary
	out := make([]Assignment, 0, len(sorted))
	for _, p := range sorted {
		team := models.TeamA
		switch {
		case sum.SkillB < sum.SkillA:
			team = models.TeamB
		case sum.SkillB == sum.SkillA && sum.CountB < sum.CountA:
			team = models.TeamB
		}
		if team == models.TeamA {
			sum.CountA++
			sum.SkillA += p.skill()
		} else {
			sum.CountB++
			sum.SkillB += p.skill()
		}
		out = append(out, Assignment{ParticipantID: p.ParticipantID, UserID: p.UserID, Team: team})
	}
	return out, sum
}

// smallerTeam picks the team with fewer confirmed players once teams have been started.
// It returns TeamNone when nobody has a team yet or both sides are even.
func smallerTeam(a, b int64) models.Team {
	switch {
	case a == 0 && b == 0:
		return models.TeamNone
	case a < b:
		return models.TeamA
	case b < a:
		return models.TeamB
	}
	return models.TeamNone
}
