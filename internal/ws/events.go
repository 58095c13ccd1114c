package ws

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound event names (client -> server).
const (
	EventJoinRoom       = "join_room"
	EventLeaveRoom      = "leave_room"
	EventTypingStart    = "typing_start"
	EventTypingStop     = "typing_stop"
	EventCodeChange     = "code_change"
	EventLanguageChange = "language_change"
	EventTriggerAction  = "trigger_action"
)

// Outbound event names (server -> client).
const (
	EventRoomUsersUpdate  = "room_users_update"
	EventActivityLog      = "activity_log"
	EventLoadPreviousLogs = "load_previous_logs"
	EventUserTyping       = "user_typing"
	EventCodeUpdate       = "code_update"
	EventLanguageUpdate   = "language_update"
	EventRoomState        = "room_state"
)

// Envelope is the wire frame carrying every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type joinPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type codePayload struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

type languagePayload struct {
	RoomID   string `json:"roomId"`
	Language string `json:"language"`
}

type actionPayload struct {
	RoomID     string `json:"roomId"`
	UserName   string `json:"userName"`
	ActionType string `json:"actionType"`
}

// TypingEvent is the user_typing payload. UserName is omitted on stop
// signals.
type TypingEvent struct {
	ConnID   string `json:"connectionId"`
	UserName string `json:"userName,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

// ActivityEvent is the activity_log payload pushed on live room events.
type ActivityEvent struct {
	User      string    `json:"user"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomStateEvent is the editor snapshot sent to a joining client so it does
// not start from a stale buffer.
type RoomStateEvent struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

func encodeEvent(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
