package realtime

import "encoding/json"

// EventKind names a change that subscribers of a match should react to.
type EventKind string

const (
	MatchCreated   EventKind = "match_created"
	MatchUpdated   EventKind = "match_updated"
	RosterChanged  EventKind = "roster_changed"
	TeamsGenerated EventKind = "teams_generated"
	MatchDeleted   EventKind = "match_deleted"
)

// Event is a best-effort signal that state of a match changed.
type Event struct {
	Kind    EventKind `json:"kind"`
	MatchID uint      `json:"match_id"`
	Status  string    `json:"status,omitempty"`
}

// Frame is what goes over the websocket to clients.
type Frame struct {
	Event   string          `json:"event"`
	MatchID uint            `json:"match_id,omitempty"`
	Kind    EventKind       `json:"kind,omitempty"`
	Status  string          `json:"status,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func eventFrame(ev Event) Frame {
	name := string(ev.Kind)
	// client cũ chỉ nghe match_updated / match_created
	if ev.Kind == RosterChanged || ev.Kind == TeamsGenerated {
		name = string(MatchUpdated)
	}
	return Frame{Event: name, MatchID: ev.MatchID, Kind: ev.Kind, Status: ev.Status}
}

// ClientFrame is a command sent by a connected client.
type ClientFrame struct {
	Action  string `json:"action"` // subscribe | unsubscribe | ping
	MatchID uint   `json:"match_id"`
}
