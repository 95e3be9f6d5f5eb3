// Package notify turns typed notification messages into persisted, pushed notifications.
package notify

type Kind string

const (
	KindPromoted       Kind = "waitlist_promoted"
	KindApproved       Kind = "join_approved"
	KindWaitlisted     Kind = "join_waitlisted"
	KindRejected       Kind = "join_rejected"
	KindJoinRequested  Kind = "join_requested"
	KindTeamsGenerated Kind = "teams_generated"
	KindVotingStarted  Kind = "voting_started"
	KindMatchFinished  Kind = "match_finished"
	KindFriendRequest  Kind = "friend_request"
	KindFriendAccepted Kind = "friend_accepted"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Message is implemented only by the types in this file.
type Message interface {
	Kind() Kind
	isMessage()
}

// Promoted: a waitlisted player got a confirmed slot.
type Promoted struct{ MatchID uint }

// Approved: a private-match request was approved with a confirmed slot.
type Approved struct{ MatchID uint }

// Waitlisted: a private-match request was approved but the match was full.
type Waitlisted struct{ MatchID uint }

type Rejected struct{ MatchID uint }

// JoinRequested goes to the match creator.
type JoinRequested struct {
	MatchID     uint
	RequesterID uint
}

type TeamsGenerated struct{ MatchID uint }

type VotingStarted struct{ MatchID uint }

type MatchFinished struct{ MatchID uint }

type FriendRequest struct{ FromUserID uint }

type FriendAccepted struct{ ByUserID uint }

func (Promoted) Kind() Kind       { return KindPromoted }
func (Approved) Kind() Kind       { return KindApproved }
func (Waitlisted) Kind() Kind     { return KindWaitlisted }
func (Rejected) Kind() Kind       { return KindRejected }
func (JoinRequested) Kind() Kind  { return KindJoinRequested }
func (TeamsGenerated) Kind() Kind { return KindTeamsGenerated }
func (VotingStarted) Kind() Kind  { return KindVotingStarted }
func (MatchFinished) Kind() Kind  { return KindMatchFinished }
func (FriendRequest) Kind() Kind  { return KindFriendRequest }
func (FriendAccepted) Kind() Kind { return KindFriendAccepted }

func (Promoted) isMessage()       {}
func (Approved) isMessage()       {}
func (Waitlisted) isMessage()     {}
func (Rejected) isMessage()       {}
func (JoinRequested) isMessage()  {}
func (TeamsGenerated) isMessage() {}
func (VotingStarted) isMessage()  {}
func (MatchFinished) isMessage()  {}
func (FriendRequest) isMessage()  {}
func (FriendAccepted) isMessage() {}
