// Package roster decides how a user's participation in a match changes: join, leave,
// waitlist promotion, private-match approval and team assignment.
package roster

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vnkhanh/matchday-server/models"
	"github.com/vnkhanh/matchday-server/notify"
	"github.com/vnkhanh/matchday-server/realtime"
	"github.com/vnkhanh/matchday-server/utils"
)

// Notifier delivers a message to a user. It must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, userID uint, msg notify.Message)
}

// Publisher signals subscribers that a match changed.
type Publisher interface {
	Publish(ctx context.Context, ev realtime.Event)
}

// Actor is the authenticated caller.
type Actor struct {
	UserID uint
	Role   string
}

// JoinRequest carries the optional parts of a join.
type JoinRequest struct {
	Team       *models.Team
	AccessCode string
	// Status is empty or confirmed for a normal join, declined for an RSVP "no".
	Status models.ParticipantStatus
}

// Result is the caller's participation after an operation.
type Result struct {
	Status models.ParticipantStatus `json:"status"`
	Team   models.Team              `json:"team"`
}

// Manager applies roster changes one match at a time. Every change runs under the match's
// in-process lock and inside a store transaction that holds the match row.
type Manager struct {
	store     Store
	notifier  Notifier
	publisher Publisher
	locks     *matchLocks
	log       zerolog.Logger
}

// NewManager wires the manager to its store. notifier and publisher may be nil.
func NewManager(store Store, notifier Notifier, publisher Publisher, log zerolog.Logger) *Manager {
	return &Manager{
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		locks:     newMatchLocks(),
		log:       log.With().Str("component", "roster").Logger(),
	}
}

type notice struct {
	userID uint
	msg    notify.Message
}

// effects are emitted only after the transaction commits.
type effects struct {
	notices []notice
	events  []realtime.Event
}

func (fx *effects) notify(userID uint, msg notify.Message) {
	fx.notices = append(fx.notices, notice{userID: userID, msg: msg})
}

func (fx *effects) event(matchID uint, kind realtime.EventKind) {
	fx.events = append(fx.events, realtime.Event{Kind: kind, MatchID: matchID})
}

// mutate serializes on the match, runs fn in a locked transaction and flushes side effects on success.
func (m *Manager) mutate(ctx context.Context, matchID uint, fn func(tx Tx, fx *effects) error) error {
	unlock := m.locks.lock(matchID)
	defer unlock()

	var fx effects
	err := m.store.InTx(ctx, matchID, func(tx Tx) error {
		fx = effects{}
		return fn(tx, &fx)
	})
	if err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)
	for _, ev := range fx.events {
		if m.publisher != nil {
			m.publisher.Publish(ctx, ev)
		}
	}
	for _, n := range fx.notices {
		if m.notifier != nil {
			m.notifier.Notify(ctx, n.userID, n.msg)
		}
	}
	return nil
}

// Join adds the actor to the match roster or updates their existing row.
func (m *Manager) Join(ctx context.Context, matchID uint, actor Actor, req JoinRequest) (Result, error) {
	var res Result
	switch req.Status {
	case "", models.StatusConfirmed, models.StatusDeclined:
	default:
		return res, fmt.Errorf("%w: cannot join with status %q", ErrValidation, req.Status)
	}

	err := m.mutate(ctx, matchID, func(tx Tx, fx *effects) error {
		match := tx.Match()
		if !match.IsOpen() {
			return fmt.Errorf("%w: match %d is %s", ErrInvalidState, matchID, match.Status)
		}
		existing, err := tx.Participant(actor.UserID)
		if err != nil {
			return err
		}

		if req.Status == models.StatusDeclined {
			res, err = decline(tx, match, actor.UserID, existing, fx)
			return err
		}

		target := models.StatusConfirmed
		if match.IsPrivate && !match.IsCreator(actor.UserID) {
			allowed, err := privateAccess(tx, match, actor.UserID, req.AccessCode)
			if err != nil {
				return err
			}
			if !allowed {
				target = models.StatusPendingApproval
			}
		}
		if target == models.StatusConfirmed {
			if target, err = admit(tx, match, existing); err != nil {
				return err
			}
		}

		if existing != nil {
			res, err = rejoin(tx, existing, target, req.Team)
		} else {
			res, err = insert(tx, match, actor.UserID, target, req.Team)
		}
		if err != nil {
			return err
		}

		newlyPending := res.Status == models.StatusPendingApproval &&
			(existing == nil || existing.Status != models.StatusPendingApproval)
		if newlyPending && match.CreatorID != nil {
			fx.notify(*match.CreatorID, notify.JoinRequested{MatchID: matchID, RequesterID: actor.UserID})
		}
		fx.event(matchID, realtime.RosterChanged)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	m.log.Debug().Uint("match_id", matchID).Uint("user_id", actor.UserID).
		Str("status", string(res.Status)).Str("team", string(res.Team)).Msg("join")
	return res, nil
}

// Leave removes the actor from the match and promotes the head of the waitlist into a freed slot.
func (m *Manager) Leave(ctx context.Context, matchID uint, actor Actor) error {
	return m.mutate(ctx, matchID, func(tx Tx, fx *effects) error {
		match := tx.Match()
		if !match.IsOpen() {
			return fmt.Errorf("%w: cannot leave match %d while %s", ErrInvalidState, matchID, match.Status)
		}
		p, err := tx.Participant(actor.UserID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: user %d is not in match %d", ErrNotFound, actor.UserID, matchID)
		}
		if err := tx.Delete(p.ID); err != nil {
			return err
		}
		if _, err := promote(tx, match, fx); err != nil {
			return err
		}
		fx.event(matchID, realtime.RosterChanged)
		return nil
	})
}

// Approve admits a pending_approval participant, subject to capacity.
func (m *Manager) Approve(ctx context.Context, matchID uint, actor Actor, targetUserID uint) (Result, error) {
	var res Result
	err := m.mutate(ctx, matchID, func(tx Tx, fx *effects) error {
		match := tx.Match()
		if err := authorize(tx, match, actor); err != nil {
			return err
		}
		target, err := pendingTarget(tx, matchID, targetUserID)
		if err != nil {
			return err
		}
		if !match.IsOpen() {
			return fmt.Errorf("%w: match %d is %s", ErrInvalidState, matchID, match.Status)
		}

		status, err := admit(tx, match, nil)
		if err != nil {
			return err
		}
		team := target.Team
		if status == models.StatusConfirmed && team == models.TeamNone {
			if team, err = autoTeam(tx); err != nil {
				return err
			}
		}
		if err := tx.Update(target.ID, ParticipantPatch{Status: statusPtr(status), Team: teamPtr(team)}); err != nil {
			return err
		}
		res = Result{Status: status, Team: team}

		if status == models.StatusConfirmed {
			fx.notify(targetUserID, notify.Approved{MatchID: matchID})
		} else {
			fx.notify(targetUserID, notify.Waitlisted{MatchID: matchID})
		}
		fx.event(matchID, realtime.RosterChanged)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Reject deletes a pending_approval participant.
func (m *Manager) Reject(ctx context.Context, matchID uint, actor Actor, targetUserID uint) error {
	return m.mutate(ctx, matchID, func(tx Tx, fx *effects) error {
		if err := authorize(tx, tx.Match(), actor); err != nil {
			return err
		}
		target, err := pendingTarget(tx, matchID, targetUserID)
		if err != nil {
			return err
		}
		if err := tx.Delete(target.ID); err != nil {
			return err
		}
		fx.notify(targetUserID, notify.Rejected{MatchID: matchID})
		fx.event(matchID, realtime.RosterChanged)
		return nil
	})
}

// GenerateTeams rebalances every confirmed participant into A and B by skill.
// Captain flags are cleared since the old teams no longer exist.
func (m *Manager) GenerateTeams(ctx context.Context, matchID uint, actor Actor) (TeamSummary, error) {
	var summary TeamSummary
	err := m.mutate(ctx, matchID, func(tx Tx, fx *effects) error {
		if err := authorize(tx, tx.Match(), actor); err != nil {
			return err
		}
		players, err := tx.Confirmed()
		if err != nil {
			return err
		}
		if len(players) < 2 {
			return fmt.Errorf("%w: need at least 2 confirmed participants, have %d", ErrValidation, len(players))
		}

		var assignments []Assignment
		assignments, summary = BalanceTeams(players)
		for _, a := range assignments {
			patch := ParticipantPatch{Team: teamPtr(a.Team), Captain: boolPtr(false)}
			if err := tx.Update(a.ParticipantID, patch); err != nil {
				return err
			}
			fx.notify(a.UserID, notify.TeamsGenerated{MatchID: matchID})
		}
		fx.event(matchID, realtime.TeamsGenerated)
		return nil
	})
	if err != nil {
		return TeamSummary{}, err
	}
	return summary, nil
}

// MovePlayer puts the target on team. A captain moved to another team loses the armband.
func (m *Manager) MovePlayer(ctx context.Context, matchID uint, actor Actor, targetUserID uint, team models.Team) error {
	return m.mutate(ctx, matchID, func(tx Tx, fx *effects) error {
		target, err := managedTarget(tx, actor, targetUserID)
		if err != nil {
			return err
		}
		patch := ParticipantPatch{Team: teamPtr(team)}
		if target.Captain && target.Team != team {
			patch.Captain = boolPtr(false)
		}
		if err := tx.Update(target.ID, patch); err != nil {
			return err
		}
		fx.event(matchID, realtime.RosterChanged)
		return nil
	})
}

// SetCaptain makes the target the only captain of their team.
func (m *Manager) SetCaptain(ctx context.Context, matchID uint, actor Actor, targetUserID uint) error {
	return m.mutate(ctx, matchID, func(tx Tx, fx *effects) error {
		target, err := managedTarget(tx, actor, targetUserID)
		if err != nil {
			return err
		}
		if err := tx.ClearCaptain(target.Team); err != nil {
			return err
		}
		if err := tx.Update(target.ID, ParticipantPatch{Captain: boolPtr(true)}); err != nil {
			return err
		}
		fx.event(matchID, realtime.RosterChanged)
		return nil
	})
}

// ToggleAdmin flips the target's admin flag and returns the new value.
func (m *Manager) ToggleAdmin(ctx context.Context, matchID uint, actor Actor, targetUserID uint) (bool, error) {
	var isAdmin bool
	err := m.mutate(ctx, matchID, func(tx Tx, fx *effects) error {
		target, err := managedTarget(tx, actor, targetUserID)
		if err != nil {
			return err
		}
		isAdmin = !target.IsAdmin
		if err := tx.Update(target.ID, ParticipantPatch{IsAdmin: boolPtr(isAdmin)}); err != nil {
			return err
		}
		fx.event(matchID, realtime.RosterChanged)
		return nil
	})
	return isAdmin, err
}

// Resize changes the match capacity. It cannot drop below the confirmed count; extra slots are
// filled from the waitlist in order.
func (m *Manager) Resize(ctx context.Context, matchID uint, actor Actor, capacity int) error {
	_, err := m.UpdateMatch(ctx, matchID, actor, MatchPatch{MaxPlayers: &capacity})
	return err
}

// UpdateMatch applies patch in one transaction and returns the stored match. A private match
// always ends up with an access code and a public one never keeps one. Capacity cannot drop
// below the confirmed count; new slots go to the waitlist head first.
func (m *Manager) UpdateMatch(ctx context.Context, matchID uint, actor Actor, patch MatchPatch) (models.Match, error) {
	if err := validatePatch(patch); err != nil {
		return models.Match{}, err
	}
	var updated models.Match
	err := m.mutate(ctx, matchID, func(tx Tx, fx *effects) error {
		match := tx.Match()
		if err := authorizeCreator(match, actor); err != nil {
			return err
		}

		private := match.IsPrivate
		if patch.IsPrivate != nil {
			private = *patch.IsPrivate
		}
		switch {
		case !private && patch.CodeSet && patch.AccessCode != nil:
			return fmt.Errorf("%w: access code requires a private match", ErrValidation)
		case !private && match.AccessCode != nil:
			patch.CodeSet, patch.AccessCode = true, nil
		case private:
			code := match.AccessCode
			if patch.CodeSet {
				code = patch.AccessCode
			}
			if code == nil {
				generated := utils.GenerateAccessCode()
				code = &generated
			}
			if match.AccessCode == nil || *match.AccessCode != *code {
				patch.CodeSet, patch.AccessCode = true, code
			}
		}

		if patch.MaxPlayers != nil {
			count, err := tx.CountConfirmed()
			if err != nil {
				return err
			}
			if int64(*patch.MaxPlayers) < count {
				return fmt.Errorf("%w: capacity %d is below %d confirmed players", ErrValidation, *patch.MaxPlayers, count)
			}
		}

		if patch.Empty() {
			updated = match
			return nil
		}
		if err := tx.UpdateMatch(patch); err != nil {
			return err
		}
		updated = tx.Match()
		if updated.IsOpen() {
			if err := fill(tx, fx); err != nil {
				return err
			}
		}
		fx.event(matchID, realtime.MatchUpdated)
		return nil
	})
	if err != nil {
		return models.Match{}, err
	}
	return updated, nil
}

func validatePatch(p MatchPatch) error {
	switch {
	case p.MaxPlayers != nil && *p.MaxPlayers < 1:
		return fmt.Errorf("%w: capacity must be at least 1, got %d", ErrValidation, *p.MaxPlayers)
	case p.DateTime != nil && p.DateTime.IsZero():
		return fmt.Errorf("%w: date_time cannot be empty", ErrValidation)
	case p.SportType != nil && *p.SportType == "":
		return fmt.Errorf("%w: sport_type cannot be empty", ErrValidation)
	case p.PriceSet && p.PriceTotal != nil && *p.PriceTotal < 0:
		return fmt.Errorf("%w: price_total cannot be negative", ErrValidation)
	}
	return nil
}

// SetStatus moves the match through its lifecycle and returns the previous status.
// Reopening fills free slots from the waitlist, entering voting or finished notifies the
// confirmed players, and finishing recomputes the ratings of everyone voted on.
func (m *Manager) SetStatus(ctx context.Context, matchID uint, actor Actor, status models.MatchStatus, score *Score) (models.MatchStatus, error) {
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if score != nil {
		if status != models.MatchVoting && status != models.MatchFinished {
			return "", fmt.Errorf("%w: a score can only be set when voting or finished", ErrValidation)
		}
		if score.A < 0 || score.B < 0 {
			return "", fmt.Errorf("%w: score cannot be negative", ErrValidation)
		}
	}

	var prev models.MatchStatus
	err := m.mutate(ctx, matchID, func(tx Tx, fx *effects) error {
		match := tx.Match()
		if err := authorizeCreator(match, actor); err != nil {
			return err
		}
		prev = match.Status
		if prev == status && score == nil {
			return nil
		}
		if err := tx.SetStatus(status, score); err != nil {
			return err
		}

		if status != prev {
			switch status {
			case models.MatchOpen:
				if err := fill(tx, fx); err != nil {
					return err
				}
			case models.MatchVoting, models.MatchFinished:
				if status == models.MatchFinished {
					if err := tx.RecomputeRatings(); err != nil {
						return err
					}
				}
				players, err := tx.Confirmed()
				if err != nil {
					return err
				}
				for _, p := range players {
					if status == models.MatchVoting {
						fx.notify(p.UserID, notify.VotingStarted{MatchID: matchID})
					} else {
						fx.notify(p.UserID, notify.MatchFinished{MatchID: matchID})
					}
				}
			}
		}
		fx.events = append(fx.events, realtime.Event{Kind: realtime.MatchUpdated, MatchID: matchID, Status: string(status)})
		return nil
	})
	if err != nil {
		return "", err
	}
	return prev, nil
}

// privateAccess reports whether userID may skip approval. A supplied but wrong code is an error.
func privateAccess(tx Tx, match models.Match, userID uint, code string) (bool, error) {
	if code != "" {
		if match.AccessCode == nil || subtle.ConstantTimeCompare([]byte(*match.AccessCode), []byte(code)) != 1 {
			return false, fmt.Errorf("%w: wrong access code for match %d", ErrForbidden, match.ID)
		}
		return true, nil
	}
	if match.CreatorID == nil {
		return false, nil
	}
	return tx.AreFriends(*match.CreatorID, userID)
}

// admit returns confirmed if there is room (or existing is already confirmed), waitlist otherwise.
// Someone other than the waitlist head never takes a free slot while people are waiting.
func admit(tx Tx, match models.Match, existing *models.Participant) (models.ParticipantStatus, error) {
	if existing != nil && existing.Status == models.StatusConfirmed {
		return models.StatusConfirmed, nil
	}
	count, err := tx.CountConfirmed()
	if err != nil {
		return "", err
	}
	if count >= int64(match.MaxPlayers) {
		return models.StatusWaitlist, nil
	}
	// slot trống thuộc về người chờ lâu nhất
	head, err := tx.OldestWaitlisted()
	if err != nil {
		return "", err
	}
	if head != nil && (existing == nil || head.ID != existing.ID) {
		return models.StatusWaitlist, nil
	}
	return models.StatusConfirmed, nil
}

func autoTeam(tx Tx) (models.Team, error) {
	a, b, err := tx.TeamSizes()
	if err != nil {
		return models.TeamNone, err
	}
	return smallerTeam(a, b), nil
}

func insert(tx Tx, match models.Match, userID uint, status models.ParticipantStatus, requested *models.Team) (Result, error) {
	team := models.TeamNone
	switch {
	case requested != nil:
		team = *requested
	case status == models.StatusConfirmed:
		var err error
		if team, err = autoTeam(tx); err != nil {
			return Result{}, err
		}
	}
	p := &models.Participant{MatchID: match.ID, UserID: userID, Status: status, Team: team}
	if err := tx.Insert(p); err != nil {
		return Result{}, err
	}
	return Result{Status: status, Team: team}, nil
}

// rejoin updates an existing row in place, which keeps its waitlist position.
func rejoin(tx Tx, existing *models.Participant, status models.ParticipantStatus, requested *models.Team) (Result, error) {
	if existing.Status == models.StatusConfirmed && status == models.StatusPendingApproval {
		status = models.StatusConfirmed
	}
	team := existing.Team
	switch {
	case requested != nil:
		team = *requested
	case status == models.StatusConfirmed && existing.Status != models.StatusConfirmed && team == models.TeamNone:
		var err error
		if team, err = autoTeam(tx); err != nil {
			return Result{}, err
		}
	}
	if err := tx.Update(existing.ID, ParticipantPatch{Status: statusPtr(status), Team: teamPtr(team)}); err != nil {
		return Result{}, err
	}
	return Result{Status: status, Team: team}, nil
}

// decline records an RSVP "no". A confirmed player declining frees a slot.
func decline(tx Tx, match models.Match, userID uint, existing *models.Participant, fx *effects) (Result, error) {
	res := Result{Status: models.StatusDeclined, Team: models.TeamNone}
	if existing == nil {
		if err := tx.Insert(&models.Participant{MatchID: match.ID, UserID: userID, Status: models.StatusDeclined}); err != nil {
			return res, err
		}
		fx.event(match.ID, realtime.RosterChanged)
		return res, nil
	}
	patch := ParticipantPatch{
		Status:  statusPtr(models.StatusDeclined),
		Team:    teamPtr(models.TeamNone),
		Captain: boolPtr(false),
	}
	if err := tx.Update(existing.ID, patch); err != nil {
		return res, err
	}
	if existing.Status == models.StatusConfirmed {
		if _, err := promote(tx, match, fx); err != nil {
			return res, err
		}
	}
	fx.event(match.ID, realtime.RosterChanged)
	return res, nil
}

// promote confirms the oldest waitlisted participant if a slot is free. At most one per call.
func promote(tx Tx, match models.Match, fx *effects) (bool, error) {
	count, err := tx.CountConfirmed()
	if err != nil {
		return false, err
	}
	if count >= int64(match.MaxPlayers) {
		return false, nil
	}
	head, err := tx.OldestWaitlisted()
	if err != nil || head == nil {
		return false, err
	}
	team := head.Team
	if team == models.TeamNone {
		if team, err = autoTeam(tx); err != nil {
			return false, err
		}
	}
	if err := tx.Update(head.ID, ParticipantPatch{Status: statusPtr(models.StatusConfirmed), Team: teamPtr(team)}); err != nil {
		return false, err
	}
	fx.notify(head.UserID, notify.Promoted{MatchID: match.ID})
	return true, nil
}

// fill promotes from the waitlist until the match is full or nobody is waiting.
func fill(tx Tx, fx *effects) error {
	for {
		promoted, err := promote(tx, tx.Match(), fx)
		if err != nil || !promoted {
			return err
		}
	}
}

// authorizeCreator allows only the match creator or a platform admin.
func authorizeCreator(match models.Match, actor Actor) error {
	if match.IsCreator(actor.UserID) || actor.Role == models.RoleAdmin {
		return nil
	}
	return fmt.Errorf("%w: only the creator can change match %d", ErrForbidden, match.ID)
}

// authorize allows the match creator, a participant with the admin flag, or a platform admin.
func authorize(tx Tx, match models.Match, actor Actor) error {
	if match.IsCreator(actor.UserID) || actor.Role == models.RoleAdmin {
		return nil
	}
	own, err := tx.Participant(actor.UserID)
	if err != nil {
		return err
	}
	if own != nil && own.IsAdmin {
		return nil
	}
	return fmt.Errorf("%w: user %d cannot manage match %d", ErrForbidden, actor.UserID, match.ID)
}

func managedTarget(tx Tx, actor Actor, targetUserID uint) (*models.Participant, error) {
	match := tx.Match()
	if err := authorize(tx, match, actor); err != nil {
		return nil, err
	}
	target, err := tx.Participant(targetUserID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("%w: user %d is not in match %d", ErrNotFound, targetUserID, match.ID)
	}
	return target, nil
}

func pendingTarget(tx Tx, matchID, targetUserID uint) (*models.Participant, error) {
	target, err := tx.Participant(targetUserID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("%w: user %d has no request for match %d", ErrNotFound, targetUserID, matchID)
	}
	if target.Status != models.StatusPendingApproval {
		return nil, fmt.Errorf("%w: user %d is %s, not pending approval", ErrInvalidState, targetUserID, target.Status)
	}
	return target, nil
}
