package collab

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paletteContains(color string) bool {
	for _, c := range palette {
		if c == color {
			return true
		}
	}
	return false
}

func TestJoinLeaveLifecycle(t *testing.T) {
	reg := NewRegistry()

	res := reg.Join("AB12CD", "conn-1", "Alice")
	require.Len(t, res.Participants, 1)
	assert.Equal(t, "Alice", res.Participants[0].Name)
	assert.Equal(t, "conn-1", res.Participants[0].ConnID)
	assert.True(t, paletteContains(res.Participants[0].Color))
	assert.False(t, res.Rejoined)
	assert.Nil(t, res.Displaced)
	assert.Equal(t, 1, reg.RoomCount())
	assert.Equal(t, 1, reg.ClientCount())

	change, removed := reg.Leave("AB12CD", "conn-1")
	require.True(t, removed)
	assert.Equal(t, "Alice", change.Participant.Name)
	assert.Empty(t, change.Participants)

	// Last participant out deletes the room entirely.
	assert.Equal(t, 0, reg.RoomCount())
	assert.Equal(t, 0, reg.ClientCount())
	assert.Nil(t, reg.Participants("AB12CD"))
}

func TestLeaveWhenNotMember(t *testing.T) {
	reg := NewRegistry()

	_, removed := reg.Leave("nowhere", "conn-1")
	assert.False(t, removed)

	reg.Join("room", "conn-1", "Alice")
	_, removed = reg.Leave("room", "conn-2")
	assert.False(t, removed)
	assert.Len(t, reg.Participants("room"), 1)
}

func TestRejoinReplacesInPlace(t *testing.T) {
	reg := NewRegistry()

	reg.Join("room", "conn-1", "Alice")
	reg.Join("room", "conn-2", "Bob")

	res := reg.Join("room", "conn-1", "Alicia")
	assert.True(t, res.Rejoined)
	require.Len(t, res.Participants, 2)

	// Same position, updated name: never two entries for one connection.
	assert.Equal(t, "conn-1", res.Participants[0].ConnID)
	assert.Equal(t, "Alicia", res.Participants[0].Name)
	assert.Equal(t, "conn-2", res.Participants[1].ConnID)
}

func TestJoinDisplacesPreviousRoom(t *testing.T) {
	reg := NewRegistry()

	reg.Join("room-a", "conn-1", "Alice")
	reg.Join("room-a", "conn-2", "Bob")

	res := reg.Join("room-b", "conn-1", "Alice")
	require.NotNil(t, res.Displaced)
	assert.Equal(t, "room-a", res.Displaced.RoomID)
	assert.Equal(t, "Alice", res.Displaced.Participant.Name)
	require.Len(t, res.Displaced.Participants, 1)
	assert.Equal(t, "Bob", res.Displaced.Participants[0].Name)

	assert.False(t, reg.Member("room-a", "conn-1"))
	assert.True(t, reg.Member("room-b", "conn-1"))
	assert.Equal(t, 2, reg.RoomCount())
}

func TestDisconnect(t *testing.T) {
	reg := NewRegistry()

	reg.Join("room", "conn-1", "Alice")
	reg.Join("room", "conn-2", "Bob")

	change, removed := reg.Disconnect("conn-2")
	require.True(t, removed)
	assert.Equal(t, "room", change.RoomID)
	assert.Equal(t, "Bob", change.Participant.Name)
	require.Len(t, change.Participants, 1)
	assert.Equal(t, "Alice", change.Participants[0].Name)

	_, removed = reg.Disconnect("conn-unknown")
	assert.False(t, removed)
}

func TestTypingRequiresMembership(t *testing.T) {
	reg := NewRegistry()

	assert.False(t, reg.StartTyping("room", "conn-1", "Alice"))

	reg.Join("room", "conn-1", "Alice")
	assert.False(t, reg.StartTyping("room", "conn-2", "Bob"))
	assert.True(t, reg.StartTyping("room", "conn-1", "Alice"))
	assert.Equal(t, map[string]string{"conn-1": "Alice"}, reg.Typing("room"))
}

func TestTypingStopClearsMark(t *testing.T) {
	reg := NewRegistry()

	reg.Join("room", "conn-1", "Alice")
	require.True(t, reg.StartTyping("room", "conn-1", "Alice"))
	require.True(t, reg.StopTyping("room", "conn-1"))
	assert.Empty(t, reg.Typing("room"))

	// Stop without a prior start is still acknowledged for the broadcast.
	assert.True(t, reg.StopTyping("room", "conn-1"))
	assert.False(t, reg.StopTyping("absent-room", "conn-1"))
}

func TestLeaveClearsTypingMark(t *testing.T) {
	reg := NewRegistry()

	reg.Join("room", "conn-1", "Alice")
	reg.Join("room", "conn-2", "Bob")
	require.True(t, reg.StartTyping("room", "conn-2", "Bob"))

	_, removed := reg.Leave("room", "conn-2")
	require.True(t, removed)
	assert.Empty(t, reg.Typing("room"))
}

func TestRejoinResetsTypingMark(t *testing.T) {
	reg := NewRegistry()

	reg.Join("room", "conn-1", "Alice")
	reg.Join("room", "conn-2", "Bob")
	require.True(t, reg.StartTyping("room", "conn-1", "Alice"))

	reg.Join("room", "conn-1", "Alice")
	assert.Empty(t, reg.Typing("room"))
}

func TestExpireTyping(t *testing.T) {
	reg := NewRegistry()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	reg.Join("room", "conn-1", "Alice")
	require.True(t, reg.StartTyping("room", "conn-1", "Alice"))

	// Nothing stale yet.
	assert.Empty(t, reg.ExpireTyping(5*time.Second))

	now = now.Add(6 * time.Second)
	evicted := reg.ExpireTyping(5 * time.Second)
	require.Len(t, evicted, 1)
	assert.Equal(t, TypingEviction{RoomID: "room", ConnID: "conn-1"}, evicted[0])
	assert.Empty(t, reg.Typing("room"))
}

func TestCodeLanguageSnapshotOnJoin(t *testing.T) {
	reg := NewRegistry()

	reg.Join("room", "conn-1", "Alice")
	require.True(t, reg.SetCode("room", "print(1)"))
	require.True(t, reg.SetLanguage("room", "python"))

	res := reg.Join("room", "conn-2", "Bob")
	assert.Equal(t, "print(1)", res.Code)
	assert.Equal(t, "python", res.Language)

	assert.False(t, reg.SetCode("absent-room", "x"))
	assert.False(t, reg.SetLanguage("absent-room", "go"))
}

func TestActiveRooms(t *testing.T) {
	reg := NewRegistry()

	reg.Join("room-a", "conn-1", "Alice")
	reg.Join("room-a", "conn-2", "Bob")
	reg.Join("room-b", "conn-3", "Carol")

	assert.Equal(t, map[string]int{"room-a": 2, "room-b": 1}, reg.ActiveRooms())
}

func TestConcurrentJoinsAndLeaves(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			roomID := fmt.Sprintf("room-%d", i%10)
			connID := fmt.Sprintf("conn-%d", i)
			reg.Join(roomID, connID, fmt.Sprintf("user-%d", i))
		}(i)
	}
	wg.Wait()

	if reg.ClientCount() != 100 {
		t.Errorf("Expected 100 clients, got %d", reg.ClientCount())
	}
	if reg.RoomCount() != 10 {
		t.Errorf("Expected 10 rooms, got %d", reg.RoomCount())
	}

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg.Disconnect(fmt.Sprintf("conn-%d", i))
		}(i)
	}
	wg.Wait()

	if reg.ClientCount() != 0 {
		t.Errorf("Expected 0 clients after disconnects, got %d", reg.ClientCount())
	}
	if reg.RoomCount() != 0 {
		t.Errorf("Expected 0 rooms after disconnects, got %d", reg.RoomCount())
	}
}
