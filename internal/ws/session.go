package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codehuddle/backend/internal/activity"
	"github.com/codehuddle/backend/internal/collab"
)

const historyTimeout = 5 * time.Second

// Session is the per-connection actor binding a transport connection to a
// display name and current room. All events for one connection are handled
// sequentially by its read pump, which preserves per-sender ordering.
type Session struct {
	hub          *Hub
	registry     *collab.Registry
	store        activity.Store
	recorder     *activity.Recorder
	historyLimit int

	client *Client
	connID string

	// name is the last display name supplied on join. Only the read pump
	// writes it.
	name string
}

func newSession(hub *Hub, registry *collab.Registry, store activity.Store, recorder *activity.Recorder, historyLimit int, client *Client) *Session {
	return &Session{
		hub:          hub,
		registry:     registry,
		store:        store,
		recorder:     recorder,
		historyLimit: historyLimit,
		client:       client,
		connID:       client.connID,
	}
}

// Handle dispatches one inbound event. Malformed events are dropped; there
// is no response channel for fire-and-forget messages.
func (s *Session) Handle(env Envelope) {
	switch env.Event {
	case EventJoinRoom:
		var p joinPayload
		if !s.decode(env, &p) || p.RoomID == "" || p.UserName == "" {
			return
		}
		s.handleJoin(p.RoomID, p.UserName)

	case EventLeaveRoom:
		var p joinPayload
		if !s.decode(env, &p) || p.RoomID == "" {
			return
		}
		s.handleLeave(p.RoomID)

	case EventTypingStart:
		var p joinPayload
		if !s.decode(env, &p) || p.RoomID == "" {
			return
		}
		s.handleTypingStart(p.RoomID, p.UserName)

	case EventTypingStop:
		var p roomPayload
		if !s.decode(env, &p) || p.RoomID == "" {
			return
		}
		s.handleTypingStop(p.RoomID)

	case EventCodeChange:
		var p codePayload
		if !s.decode(env, &p) || p.RoomID == "" {
			return
		}
		s.handleCodeChange(p.RoomID, p.Code)

	case EventLanguageChange:
		var p languagePayload
		if !s.decode(env, &p) || p.RoomID == "" || p.Language == "" {
			return
		}
		s.handleLanguageChange(p.RoomID, p.Language)

	case EventTriggerAction:
		var p actionPayload
		if !s.decode(env, &p) || p.RoomID == "" || p.ActionType == "" {
			return
		}
		s.handleTriggerAction(p.RoomID, p.UserName, p.ActionType)

	default:
		logrus.WithFields(logrus.Fields{
			"conn_id": s.connID,
			"event":   env.Event,
		}).Debug("Dropping unknown event")
	}
}

func (s *Session) decode(env Envelope, v interface{}) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		logrus.WithFields(logrus.Fields{
			"conn_id": s.connID,
			"event":   env.Event,
		}).Debug("Dropping event with malformed payload")
		return false
	}
	return true
}

func (s *Session) handleJoin(roomID, userName string) {
	// The membership change and its snapshot broadcast must not interleave
	// with another membership change on the same room, or a stale snapshot
	// could be queued after a fresh one.
	s.hub.presence.Lock()
	res := s.registry.Join(roomID, s.connID, userName)
	s.name = userName

	// Moves the connection's fan-out placement, clearing any previous room.
	s.hub.AddToRoom(roomID, s.client)

	// The connection can only be in one room; if it was elsewhere, the old
	// room sees it leave.
	if d := res.Displaced; d != nil {
		s.broadcastUsers(d.RoomID, d.Participants)
	}
	s.broadcastUsers(roomID, res.Participants)
	s.hub.presence.Unlock()

	if d := res.Displaced; d != nil {
		s.recorder.Record(d.RoomID, d.Participant.Name, "Left")
		s.pushActivity(d.RoomID, "", d.Participant.Name, "Left")
	}

	// Editor snapshot and history replay go to the joining client alone.
	s.sendTo(s.connID, EventRoomState, RoomStateEvent{Code: res.Code, Language: res.Language})
	s.sendHistory(roomID)

	s.recorder.Record(roomID, userName, "Joined the session")
	s.pushActivity(roomID, s.connID, userName, "Joined the session")
}

func (s *Session) handleLeave(roomID string) {
	s.hub.presence.Lock()
	change, removed := s.registry.Leave(roomID, s.connID)
	s.hub.RemoveFromRoom(roomID, s.client)
	if removed {
		s.broadcastUsers(roomID, change.Participants)
	}
	s.hub.presence.Unlock()
	if !removed {
		return
	}

	s.recorder.Record(roomID, change.Participant.Name, "Left")
	s.pushActivity(roomID, "", change.Participant.Name, "Left")
}

// handleDisconnect is the fallback path when the transport closes without an
// explicit leave.
func (s *Session) handleDisconnect() {
	s.hub.presence.Lock()
	change, removed := s.registry.Disconnect(s.connID)
	if !removed {
		s.hub.presence.Unlock()
		return
	}
	s.hub.RemoveFromRoom(change.RoomID, s.client)
	s.broadcastUsers(change.RoomID, change.Participants)
	s.hub.presence.Unlock()

	s.recorder.Record(change.RoomID, change.Participant.Name, "Disconnected")
	s.pushActivity(change.RoomID, "", change.Participant.Name, "Disconnected")
}

func (s *Session) handleTypingStart(roomID, userName string) {
	if userName == "" {
		userName = s.name
	}
	if !s.registry.StartTyping(roomID, s.connID, userName) {
		return
	}
	s.broadcastEventExcept(roomID, s.connID, EventUserTyping, TypingEvent{
		ConnID:   s.connID,
		UserName: userName,
		IsTyping: true,
	})
}

func (s *Session) handleTypingStop(roomID string) {
	if !s.registry.StopTyping(roomID, s.connID) {
		return
	}
	s.broadcastEventExcept(roomID, s.connID, EventUserTyping, TypingEvent{
		ConnID:   s.connID,
		IsTyping: false,
	})
}

func (s *Session) handleCodeChange(roomID, code string) {
	if !s.registry.Member(roomID, s.connID) {
		return
	}
	s.registry.SetCode(roomID, code)
	s.broadcastEventExcept(roomID, s.connID, EventCodeUpdate, code)
}

func (s *Session) handleLanguageChange(roomID, language string) {
	if !s.registry.Member(roomID, s.connID) {
		return
	}
	s.registry.SetLanguage(roomID, language)
	s.broadcastEventExcept(roomID, s.connID, EventLanguageUpdate, language)

	action := "Switched to " + language
	s.recorder.Record(roomID, s.name, action)
	s.pushActivity(roomID, "", s.name, action)
}

func (s *Session) handleTriggerAction(roomID, userName, actionType string) {
	if !s.registry.Member(roomID, s.connID) {
		return
	}
	if userName == "" {
		userName = s.name
	}

	s.recorder.Record(roomID, userName, actionType)
	s.pushActivity(roomID, "", userName, actionType)
}

// sendHistory replays the most recent activity entries, oldest first, to the
// joining client. A store fault degrades to an empty replay.
func (s *Session) sendHistory(roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	entries, err := s.store.Recent(ctx, roomID, s.historyLimit)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to load activity history")
		entries = nil
	}

	events := make([]ActivityEvent, 0, len(entries))
	for _, e := range entries {
		events = append(events, ActivityEvent{User: e.Actor, Action: e.Action, Timestamp: e.OccurredAt})
	}
	s.sendTo(s.connID, EventLoadPreviousLogs, events)
}

func (s *Session) broadcastUsers(roomID string, participants []collab.Participant) {
	if participants == nil {
		participants = []collab.Participant{}
	}
	s.broadcastEventExcept(roomID, "", EventRoomUsersUpdate, participants)
}

func (s *Session) pushActivity(roomID, exceptConnID, user, action string) {
	s.broadcastEventExcept(roomID, exceptConnID, EventActivityLog, ActivityEvent{
		User:      user,
		Action:    action,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Session) broadcastEventExcept(roomID, exceptConnID, event string, payload interface{}) {
	data, err := encodeEvent(event, payload)
	if err != nil {
		logrus.WithField("event", event).WithError(err).Error("Failed to encode event")
		return
	}
	s.hub.BroadcastExcept(roomID, exceptConnID, data)
}

func (s *Session) sendTo(connID, event string, payload interface{}) {
	data, err := encodeEvent(event, payload)
	if err != nil {
		logrus.WithField("event", event).WithError(err).Error("Failed to encode event")
		return
	}
	s.hub.Send(connID, data)
}
