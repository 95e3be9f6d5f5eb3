package notify

// Delivery is a rendered message addressed to one user. It is also the queue payload.
type Delivery struct {
	UserID   uint     `json:"user_id"`
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
	MatchID  *uint    `json:"match_id,omitempty"`
}

// Render builds the user-facing text for msg.
func Render(userID uint, msg Message) Delivery {
	d := Delivery{UserID: userID, Kind: msg.Kind(), Severity: SeverityInfo}
	switch m := msg.(type) {
	case Promoted:
		d.Text = "A spot opened up! You have been promoted from waitlist to confirmed."
		d.Severity = SeveritySuccess
		d.MatchID = ref(m.MatchID)
	case Approved:
		d.Text = "Your request to join the match was approved."
		d.Severity = SeveritySuccess
		d.MatchID = ref(m.MatchID)
	case Waitlisted:
		d.Text = "Your request was approved, but the match is full: you are on the waitlist."
		d.MatchID = ref(m.MatchID)
	case Rejected:
		d.Text = "Your request to join the match was declined."
		d.Severity = SeverityWarning
		d.MatchID = ref(m.MatchID)
	case JoinRequested:
		d.Text = "A player asked to join your private match."
		d.MatchID = ref(m.MatchID)
	case TeamsGenerated:
		d.Text = "Teams have been generated for your match!"
		d.MatchID = ref(m.MatchID)
	case VotingStarted:
		d.Text = "Voting has started for your match!"
		d.MatchID = ref(m.MatchID)
	case MatchFinished:
		d.Text = "Match finished! Check out the results."
		d.MatchID = ref(m.MatchID)
	case FriendRequest:
		d.Text = "You have a new friend request!"
	case FriendAccepted:
		d.Text = "Your friend request was accepted!"
		d.Severity = SeveritySuccess
	}
	return d
}

func ref(id uint) *uint {
	return &id
}
