package gateway

import (
	"encoding/json"
	"time"
)

// Wire event names. Inbound events arrive from clients; outbound events are
// produced by the gateway. The names match what the web client listens for.
const (
	// Inbound
	EventJoinRoom = "join-room"
	EventMessage  = "message" // also outbound: the broadcast echo
	EventSignal   = "signal"  // also outbound: the relayed envelope

	// Outbound only
	EventMessageHistory   = "message-history"
	EventMessageError     = "message-error"
	EventUserConnected    = "user-connected"
	EventUserDisconnected = "user-disconnected"
	EventOnlineUsersCount = "online-users-count"
)

// Event is the envelope for every frame sent to a client.
//
// JSON example:
//
//	{"event":"message","data":{"id":"018f...","content":"hi","sender":{...},"createdAt":"..."}}
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"data"`
}

// ClientFrame is the envelope for every frame received from a client.
// Data stays raw until the per-event handler decodes it into its typed
// payload — malformed payloads are rejected at that boundary.
type ClientFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// JoinRoomPayload is the data of an inbound join-room event.
// For compatibility with older clients the payload may also be a bare JSON
// string holding the room id; decodeJoinRoom handles both shapes.
// Username is informational only — the identity attached at admission is
// authoritative for presence.
type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username,omitempty"`
}

// decodeJoinRoom accepts either {"roomId":"...","username":"..."} or a bare
// "room-id" string.
func decodeJoinRoom(raw json.RawMessage) (JoinRoomPayload, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return JoinRoomPayload{RoomID: s}, nil
	}
	var p JoinRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return JoinRoomPayload{}, err
	}
	return p, nil
}

// MessagePayload is the data of an inbound message event.
type MessagePayload struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// SignalPayload is the data of an inbound signal event. Signal is opaque —
// the gateway forwards it without interpretation, validation, or storage.
// UserID names the destination: a connection id or a username.
type SignalPayload struct {
	UserID string          `json:"userId"`
	Signal json.RawMessage `json:"signal"`
}

// SignalForward is the data of an outbound signal event. UserID carries the
// *sender's* connection id so the receiving peer knows whom to answer.
type SignalForward struct {
	UserID string          `json:"userId"`
	Signal json.RawMessage `json:"signal"`
}

// MessageSender is the public subset of a user identity embedded in
// broadcast messages. Never includes ids, emails, or credential fields.
type MessageSender struct {
	Username string `json:"username"`
	Color    string `json:"color"`
}

// StoredMessage is a persisted chat message as rendered to clients, both in
// live broadcasts and in message-history replay.
type StoredMessage struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Sender    MessageSender `json:"sender"`
	CreatedAt time.Time     `json:"createdAt"`
}
