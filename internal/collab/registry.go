// Package collab holds the in-memory state of live collaboration rooms:
// who is in each room, who is typing, and the last relayed editor state.
package collab

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Registry maps room identifiers to their participant sets. A room exists
// exactly while its participant set is non-empty; there is no creation or
// teardown API. A connection belongs to at most one room at a time.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room

	// connID -> roomID. Makes the one-room-per-connection invariant
	// explicit and the disconnect path a lookup instead of a scan.
	conns map[string]string

	now func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*room),
		conns: make(map[string]string),
		now:   time.Now,
	}
}

// JoinResult is the state handed back to the presence coordinator after a
// successful join.
type JoinResult struct {
	// Full membership of the joined room, joiner included.
	Participants []Participant

	// Current editor state for the late-joiner snapshot.
	Code     string
	Language string

	// Rejoined is true when the connection was already a member and its
	// record was replaced in place.
	Rejoined bool

	// Displaced is set when the connection was a member of a different
	// room and had to be removed from it first.
	Displaced *RoomChange
}

// RoomChange describes a membership change in a room, for broadcasting.
type RoomChange struct {
	RoomID       string
	Participant  Participant
	Participants []Participant
}

// Join registers the connection in the room, replacing any existing record
// with the same connection ID. A fresh display color is assigned each time.
func (g *Registry) Join(roomID, connID, name string) JoinResult {
	res := JoinResult{}

	g.mu.Lock()
	if prev, ok := g.conns[connID]; ok && prev != roomID {
		if p, parts, removed := g.removeLocked(prev, connID); removed {
			res.Displaced = &RoomChange{RoomID: prev, Participant: p, Participants: parts}
		}
	}

	r, ok := g.rooms[roomID]
	if !ok {
		r = newRoom()
		g.rooms[roomID] = r
	}
	g.conns[connID] = roomID

	r.mu.Lock()
	res.Rejoined = r.upsert(Participant{ConnID: connID, Name: name, Color: randomColor()})
	// A re-join after reconnect is a fresh composing state.
	delete(r.typing, connID)
	res.Participants = r.snapshot()
	res.Code = r.code
	res.Language = r.language
	r.mu.Unlock()
	g.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"conn_id": connID,
		"members": len(res.Participants),
	}).Info("Participant joined room")

	return res
}

// Leave removes the connection from the room. Safe no-op if it was never a
// member. The second return value reports whether membership changed.
func (g *Registry) Leave(roomID, connID string) (RoomChange, bool) {
	g.mu.Lock()
	p, parts, removed := g.removeLocked(roomID, connID)
	g.mu.Unlock()

	if removed {
		logrus.WithFields(logrus.Fields{
			"room_id": roomID,
			"conn_id": connID,
			"members": len(parts),
		}).Info("Participant left room")
	}
	return RoomChange{RoomID: roomID, Participant: p, Participants: parts}, removed
}

// Disconnect is the fallback path for a transport close without an explicit
// leave. The connection's single room membership, if any, is removed.
func (g *Registry) Disconnect(connID string) (RoomChange, bool) {
	g.mu.Lock()
	roomID, ok := g.conns[connID]
	if !ok {
		g.mu.Unlock()
		return RoomChange{}, false
	}
	p, parts, removed := g.removeLocked(roomID, connID)
	g.mu.Unlock()

	if removed {
		logrus.WithFields(logrus.Fields{
			"room_id": roomID,
			"conn_id": connID,
			"members": len(parts),
		}).Info("Participant disconnected")
	}
	return RoomChange{RoomID: roomID, Participant: p, Participants: parts}, removed
}

// removeLocked drops connID from roomID and deletes the room when it
// becomes empty. Caller must hold g.mu.
func (g *Registry) removeLocked(roomID, connID string) (Participant, []Participant, bool) {
	r, ok := g.rooms[roomID]
	if !ok {
		return Participant{}, nil, false
	}

	r.mu.Lock()
	p, removed := r.remove(connID)
	parts := r.snapshot()
	empty := len(r.participants) == 0
	r.mu.Unlock()

	if removed {
		delete(g.conns, connID)
	}
	if empty {
		delete(g.rooms, roomID)
		logrus.WithField("room_id", roomID).Info("Room closed (empty)")
	}
	return p, parts, removed
}

// StartTyping marks the connection as composing. Reports false if the
// connection is not a member of the room.
func (g *Registry) StartTyping(roomID, connID, name string) bool {
	r, ok := g.room(roomID)
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.has(connID) {
		return false
	}
	r.typing[connID] = typingMark{name: name, since: g.now()}
	return true
}

// StopTyping clears the connection's typing mark. Reports whether the room
// exists; the stop signal is broadcast regardless of whether a mark was set.
func (g *Registry) StopTyping(roomID, connID string) bool {
	r, ok := g.room(roomID)
	if !ok {
		return false
	}

	r.mu.Lock()
	delete(r.typing, connID)
	r.mu.Unlock()
	return true
}

// Typing returns the connections currently marked as typing in the room.
func (g *Registry) Typing(roomID string) map[string]string {
	r, ok := g.room(roomID)
	if !ok {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.typing))
	for connID, mark := range r.typing {
		out[connID] = mark.name
	}
	return out
}

// TypingEviction identifies a typing mark cleared by the server because the
// client never sent a stop signal.
type TypingEviction struct {
	RoomID string
	ConnID string
}

// ExpireTyping clears typing marks older than ttl across all rooms and
// returns them so the caller can notify observers.
func (g *Registry) ExpireTyping(ttl time.Duration) []TypingEviction {
	cutoff := g.now().Add(-ttl)

	g.mu.RLock()
	rooms := make(map[string]*room, len(g.rooms))
	for id, r := range g.rooms {
		rooms[id] = r
	}
	g.mu.RUnlock()

	var evicted []TypingEviction
	for id, r := range rooms {
		r.mu.Lock()
		for connID, mark := range r.typing {
			if mark.since.Before(cutoff) {
				delete(r.typing, connID)
				evicted = append(evicted, TypingEviction{RoomID: id, ConnID: connID})
			}
		}
		r.mu.Unlock()
	}
	return evicted
}

// SetCode stores the last relayed code buffer for late-joiner snapshots.
// Reports whether the room exists.
func (g *Registry) SetCode(roomID, code string) bool {
	r, ok := g.room(roomID)
	if !ok {
		return false
	}

	r.mu.Lock()
	r.code = code
	r.mu.Unlock()
	return true
}

// SetLanguage stores the last relayed language tag. Reports whether the
// room exists.
func (g *Registry) SetLanguage(roomID, language string) bool {
	r, ok := g.room(roomID)
	if !ok {
		return false
	}

	r.mu.Lock()
	r.language = language
	r.mu.Unlock()
	return true
}

// Participants returns the room's membership, or nil if the room is absent.
func (g *Registry) Participants(roomID string) []Participant {
	r, ok := g.room(roomID)
	if !ok {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Member reports whether the connection is registered in the room.
func (g *Registry) Member(roomID, connID string) bool {
	r, ok := g.room(roomID)
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.has(connID)
}

// ActiveRooms returns participant counts keyed by room ID.
func (g *Registry) ActiveRooms() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[string]int, len(g.rooms))
	for id, r := range g.rooms {
		r.mu.Lock()
		out[id] = len(r.participants)
		r.mu.Unlock()
	}
	return out
}

// RoomCount returns the number of rooms with at least one participant.
func (g *Registry) RoomCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// ClientCount returns the number of registered connections.
func (g *Registry) ClientCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}

func (g *Registry) room(roomID string) (*room, bool) {
	g.mu.RLock()
	r, ok := g.rooms[roomID]
	g.mu.RUnlock()
	return r, ok
}
