package roster

import (
	"context"
	"time"

	"github.com/vnkhanh/matchday-server/models"
)

// Store gives the manager a unit of work over one match.
type Store interface {
	// InTx runs fn in a transaction that holds a write lock on the match row.
	// It returns an error wrapping ErrNotFound when the match does not exist.
	InTx(ctx context.Context, matchID uint, fn func(tx Tx) error) error
}

// Tx is the roster of one locked match.
type Tx interface {
	Match() models.Match
	// Participant returns nil, nil when userID has no row in the match.
	Participant(userID uint) (*models.Participant, error)
	CountConfirmed() (int64, error)
	// TeamSizes counts confirmed participants on each team.
	TeamSizes() (a, b int64, err error)
	// OldestWaitlisted returns the first-inserted waitlist row, or nil.
	OldestWaitlisted() (*models.Participant, error)
	// Confirmed lists confirmed participants with their skill rating, ordered by id.
	Confirmed() ([]RatedParticipant, error)
	AreFriends(a, b uint) (bool, error)

	Insert(p *models.Participant) error
	Update(participantID uint, patch ParticipantPatch) error
	Delete(participantID uint) error
	// ClearCaptain removes the captain flag from everyone on team.
	ClearCaptain(team models.Team) error
	// UpdateMatch writes the set fields of patch; Match() reflects them afterwards.
	UpdateMatch(patch MatchPatch) error
	// SetStatus moves the match to status and, when score is non-nil, records the final score.
	SetStatus(status models.MatchStatus, score *Score) error
	// RecomputeRatings sets the skill rating of everyone voted on in this match to the
	// average of all votes they ever received.
	RecomputeRatings() error
}

// MatchPatch lists the match fields an update may touch. Nil pointers are left alone.
// PriceSet and CodeSet mark the nullable columns as written, so a nil value clears them.
type MatchPatch struct {
	DateTime   *time.Time
	Location   *string
	SportType  *string
	PriceSet   bool
	PriceTotal *float64
	MaxPlayers *int
	IsPrivate  *bool
	CodeSet    bool
	AccessCode *string
}

func (p MatchPatch) Empty() bool {
	return p.DateTime == nil && p.Location == nil && p.SportType == nil && !p.PriceSet &&
		p.MaxPlayers == nil && p.IsPrivate == nil && !p.CodeSet
}

// Score is the final result of a match.
type Score struct {
	A int
	B int
}

// ParticipantPatch lists the participant fields an update may touch. Nil fields are left alone.
type ParticipantPatch struct {
	Status  *models.ParticipantStatus
	Team    *models.Team
	Captain *bool
	IsAdmin *bool
}

func (p ParticipantPatch) Empty() bool {
	return p.Status == nil && p.Team == nil && p.Captain == nil && p.IsAdmin == nil
}

func statusPtr(s models.ParticipantStatus) *models.ParticipantStatus { return &s }
func teamPtr(t models.Team) *models.Team                             { return &t }
func boolPtr(b bool) *bool                                           { return &b }
