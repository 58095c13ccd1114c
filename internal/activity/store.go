// Package activity provides the durable, time-bounded audit trail of room
// events. Entries are immutable once written and expire on a wall-clock TTL
// independent of room lifecycle.
package activity

import (
	"context"
	"time"
)

// Entry is one durable record of a room event.
type Entry struct {
	ID         int64     `json:"id"`
	RoomID     string    `json:"roomId"`
	Actor      string    `json:"user"`
	Action     string    `json:"action"`
	OccurredAt time.Time `json:"timestamp"`
}

// Store defines the interface for persisting activity entries.
type Store interface {
	// Append durably stores one entry. The timestamp is assigned by the
	// store at write time, never supplied by the caller.
	Append(ctx context.Context, roomID, actor, action string) error

	// Recent returns the most recent limit entries for a room in
	// ascending chronological order (oldest first).
	Recent(ctx context.Context, roomID string, limit int) ([]Entry, error)

	// DeleteExpired permanently removes entries that occurred before
	// cutoff and returns how many were deleted.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying resources.
	Close() error
}
