package collab

import (
	"math/rand"
	"sync"
	"time"
)

// Display colors assigned to participants at join time. Picked uniformly at
// random; collisions within a room are acceptable.
var palette = [...]string{
	"#f87171", // red
	"#fb923c", // orange
	"#facc15", // yellow
	"#4ade80", // green
	"#60a5fa", // blue
	"#c084fc", // purple
}

func randomColor() string {
	return palette[rand.Intn(len(palette))]
}

// Participant is one live connection's membership record within a room.
type Participant struct {
	ConnID string `json:"connectionId"`
	Name   string `json:"userName"`
	Color  string `json:"color"`
}

// typingMark records that a connection is composing input, and since when.
type typingMark struct {
	name  string
	since time.Time
}

// A collaborative code session. Exists only while at least one participant
// is registered; the registry deletes it the moment it becomes empty.
type room struct {
	mu sync.Mutex

	// Ordered by join time. Re-joins replace in place.
	participants []Participant

	// connID -> mark, present only while actively typing.
	typing map[string]typingMark

	// Last relayed editor state, sent to late joiners.
	code     string
	language string
}

func newRoom() *room {
	return &room{
		participants: make([]Participant, 0, 4),
		typing:       make(map[string]typingMark),
	}
}

// upsert adds the participant or replaces an existing record with the same
// connection ID, preserving its position. Reports whether this was a re-join.
func (r *room) upsert(p Participant) bool {
	for i := range r.participants {
		if r.participants[i].ConnID == p.ConnID {
			r.participants[i] = p
			return true
		}
	}
	r.participants = append(r.participants, p)
	return false
}

// remove drops the participant and any typing mark it left behind.
// Reports whether the connection was a member.
func (r *room) remove(connID string) (Participant, bool) {
	for i := range r.participants {
		if r.participants[i].ConnID == connID {
			p := r.participants[i]
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			delete(r.typing, connID)
			return p, true
		}
	}
	return Participant{}, false
}

func (r *room) has(connID string) bool {
	for i := range r.participants {
		if r.participants[i].ConnID == connID {
			return true
		}
	}
	return false
}

// snapshot returns a copy safe to hand out after the lock is released.
func (r *room) snapshot() []Participant {
	out := make([]Participant, len(r.participants))
	copy(out, r.participants)
	return out
}
