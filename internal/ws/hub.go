package ws

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Hub tracks live client connections grouped by room and fans messages out
// to them. Room membership here mirrors the collab registry at the
// transport level: the registry owns who is in a room, the hub owns how to
// reach them.
type Hub struct {
	mu sync.RWMutex

	// Registered clients by room
	rooms map[string]map[*Client]bool

	// All registered clients by connection ID
	clients map[string]*Client

	// presence serializes a room membership change together with its
	// room_users_update fan-out, so membership snapshots reach the send
	// queues in the order they were computed. Relays and activity pushes
	// are not ordered through it.
	presence sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]bool),
		clients: make(map[string]*Client),
	}
}

// Register adds the client to the hub's connection table. Called once per
// connection, before any room placement.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.connID] = c
	h.mu.Unlock()
}

// Unregister removes the client from the hub entirely and closes its send
// channel, terminating its write pump.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.connID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.connID)
	if roomClients, ok := h.rooms[c.roomID()]; ok {
		delete(roomClients, c)
		if len(roomClients) == 0 {
			delete(h.rooms, c.roomID())
		}
	}
	close(c.send)
	h.mu.Unlock()
}

// AddToRoom places the client in a room's fan-out set, removing it from its
// previous room if it had one.
func (h *Hub) AddToRoom(roomID string, c *Client) {
	h.mu.Lock()
	if prev := c.roomID(); prev != "" && prev != roomID {
		if roomClients, ok := h.rooms[prev]; ok {
			delete(roomClients, c)
			if len(roomClients) == 0 {
				delete(h.rooms, prev)
			}
		}
	}
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][c] = true
	c.setRoomID(roomID)
	h.mu.Unlock()
}

// RemoveFromRoom takes the client out of the room's fan-out set without
// unregistering the connection.
func (h *Hub) RemoveFromRoom(roomID string, c *Client) {
	h.mu.Lock()
	if roomClients, ok := h.rooms[roomID]; ok {
		delete(roomClients, c)
		if len(roomClients) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if c.roomID() == roomID {
		c.setRoomID("")
	}
	h.mu.Unlock()
}

// Broadcast sends data to every client in the room.
func (h *Hub) Broadcast(roomID string, data []byte) {
	h.BroadcastExcept(roomID, "", data)
}

// BroadcastExcept sends data to every client in the room except the named
// connection. Sends are non-blocking: a client with a full send buffer is
// skipped and will be cleaned up by its own read pump. The sends happen
// under the read lock so they can never overlap Unregister closing a send
// channel under the write lock.
func (h *Hub) BroadcastExcept(roomID, exceptConnID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[roomID] {
		if c.connID == exceptConnID {
			continue
		}
		select {
		case c.send <- data:
		default:
			logrus.WithFields(logrus.Fields{
				"room_id": roomID,
				"conn_id": c.connID,
			}).Warn("Client send buffer full, dropping message")
		}
	}
}

// Send delivers data to a single connection, if it is still registered.
// Like BroadcastExcept, the send stays under the read lock so it cannot
// race the channel close in Unregister.
func (h *Hub) Send(connID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}

	select {
	case c.send <- data:
	default:
		logrus.WithField("conn_id", connID).Warn("Client send buffer full, dropping message")
	}
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
