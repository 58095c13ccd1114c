package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/codehuddle/backend/internal/ratelimit"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 1024 * 1024
	messagesPerSecond = 100
	messageBurst      = 200
	sendBufferSize    = 256
)

// Client binds one websocket connection to its send queue and session.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	connID      string
	rateLimiter *ratelimit.Limiter
	session     *Session

	// room is the transport-level room placement, guarded by hub.mu.
	room string
}

func (c *Client) roomID() string          { return c.room }
func (c *Client) setRoomID(roomID string) { c.room = roomID }

func (c *Client) readPump() {
	defer func() {
		c.session.handleDisconnect()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	rateLimitWarnings := 0

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("conn_id", c.connID).WithError(err).Warn("WebSocket read error")
			}
			break
		}

		if !c.rateLimiter.Allow() {
			rateLimitWarnings++
			if rateLimitWarnings%100 == 1 {
				logrus.WithFields(logrus.Fields{
					"conn_id":  c.connID,
					"warnings": rateLimitWarnings,
				}).Warn("Rate limit exceeded for client")
			}
			if rateLimitWarnings > 1000 {
				logrus.WithField("conn_id", c.connID).Warn("Disconnecting client for excessive rate limit violations")
				return
			}
			continue
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			logrus.WithField("conn_id", c.connID).Debug("Dropping malformed message")
			continue
		}

		c.session.Handle(env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
