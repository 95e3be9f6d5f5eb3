package realtime

import "sync"

// Hub tracks websocket sessions on this instance and the matches each session watches.
// One active connection per user; a new one replaces the old.
type Hub struct {
	mu           sync.RWMutex
	sessions     map[string]*Connection          // sessionID -> connection
	userSessions map[uint]string                 // userID -> sessionID
	rooms        map[uint]map[string]*Connection // matchID -> sessionID -> connection
	sessionRooms map[string]map[uint]struct{}    // sessionID -> matchIDs
}

func NewHub() *Hub {
	return &Hub{
		sessions:     make(map[string]*Connection),
		userSessions: make(map[uint]string),
		rooms:        make(map[uint]map[string]*Connection),
		sessionRooms: make(map[string]map[uint]struct{}),
	}
}

// Attach registers conn and starts its write loop.
func (h *Hub) Attach(conn *Connection) {
	var previous *Connection

	h.mu.Lock()
	if existingID, ok := h.userSessions[conn.UserID]; ok {
		if existing := h.sessions[existingID]; existing != nil {
			previous = existing
			h.detachLocked(existingID)
		}
	}
	h.sessions[conn.ID] = conn
	h.userSessions[conn.UserID] = conn.ID
	h.sessionRooms[conn.ID] = make(map[uint]struct{})
	h.mu.Unlock()

	conn.Start()

	if previous != nil {
		previous.Close(4001, "session replaced")
	}
}

func (h *Hub) Detach(conn *Connection) {
	h.mu.Lock()
	h.detachLocked(conn.ID)
	h.mu.Unlock()
}

// Subscribe adds conn to the match room.
func (h *Hub) Subscribe(matchID uint, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[conn.ID]; !ok {
		return
	}

	room := h.rooms[matchID]
	if room == nil {
		room = make(map[string]*Connection)
		h.rooms[matchID] = room
	}
	room[conn.ID] = conn
	h.sessionRooms[conn.ID][matchID] = struct{}{}
}

func (h *Hub) Unsubscribe(matchID uint, conn *Connection) {
	h.mu.Lock()
	h.leaveLocked(matchID, conn.ID)
	h.mu.Unlock()
}

// Broadcast writes payload to every session watching matchID and returns how many got it.
func (h *Hub) Broadcast(matchID uint, payload []byte) int {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.rooms[matchID]))
	for _, conn := range h.rooms[matchID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	return sendAll(conns, payload)
}

// BroadcastAll writes payload to every session on this instance.
func (h *Hub) BroadcastAll(payload []byte) int {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.sessions))
	for _, conn := range h.sessions {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	return sendAll(conns, payload)
}

// NotifyUser delivers payload to the user's current session, if any.
func (h *Hub) NotifyUser(userID uint, payload []byte) bool {
	h.mu.RLock()
	conn := h.sessions[h.userSessions[userID]]
	h.mu.RUnlock()
	if conn == nil {
		return false
	}
	return conn.Send(payload) == nil
}

// Watchers returns how many sessions are subscribed to matchID.
func (h *Hub) Watchers(matchID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[matchID])
}

// Close drops every session.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.sessions))
	for _, conn := range h.sessions {
		conns = append(conns, conn)
	}
	h.sessions = make(map[string]*Connection)
	h.userSessions = make(map[uint]string)
	h.rooms = make(map[uint]map[string]*Connection)
	h.sessionRooms = make(map[string]map[uint]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close(1001, "server shutdown")
	}
}

func sendAll(conns []*Connection, payload []byte) int {
	delivered := 0
	for _, conn := range conns {
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) detachLocked(sessionID string) {
	conn, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	delete(h.sessions, sessionID)

	if current, ok := h.userSessions[conn.UserID]; ok && current == sessionID {
		delete(h.userSessions, conn.UserID)
	}
	for matchID := range h.sessionRooms[sessionID] {
		h.leaveLocked(matchID, sessionID)
	}
	delete(h.sessionRooms, sessionID)
}

func (h *Hub) leaveLocked(matchID uint, sessionID string) {
	room := h.rooms[matchID]
	if room == nil {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(h.rooms, matchID)
	}
	if memberships, ok := h.sessionRooms[sessionID]; ok {
		delete(memberships, matchID)
	}
}
