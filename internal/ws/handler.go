// Package ws carries the multiplexed room protocol over one websocket
// connection per client.
package ws

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/codehuddle/backend/internal/activity"
	"github.com/codehuddle/backend/internal/collab"
	"github.com/codehuddle/backend/internal/ratelimit"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP requests to websocket connections and wires each
// one into a Session.
type Handler struct {
	hub          *Hub
	registry     *collab.Registry
	store        activity.Store
	recorder     *activity.Recorder
	historyLimit int
}

func NewHandler(hub *Hub, registry *collab.Registry, store activity.Store, recorder *activity.Recorder, historyLimit int) *Handler {
	return &Handler{
		hub:          hub,
		registry:     registry,
		store:        store,
		recorder:     recorder,
		historyLimit: historyLimit,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := &Client{
		hub:         h.hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		connID:      uuid.NewString(),
		rateLimiter: ratelimit.NewLimiter(messagesPerSecond, messageBurst),
	}
	client.session = newSession(h.hub, h.registry, h.store, h.recorder, h.historyLimit, client)

	h.hub.Register(client)
	logrus.WithField("conn_id", client.connID).Info("Client connected")

	go client.writePump()
	go client.readPump()
}

// NotifyTypingStopped broadcasts a stop signal for a typing mark the server
// expired on the client's behalf.
func (h *Handler) NotifyTypingStopped(ev collab.TypingEviction) {
	data, err := encodeEvent(EventUserTyping, TypingEvent{ConnID: ev.ConnID, IsTyping: false})
	if err != nil {
		logrus.WithError(err).Error("Failed to encode typing stop event")
		return
	}
	h.hub.BroadcastExcept(ev.RoomID, ev.ConnID, data)
}
