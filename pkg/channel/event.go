// Package channel defines the event-channel wire contract shared by the
// server hub and the client connection manager: a JSON envelope with a
// name and an opaque payload, plus the name builders for the per-user
// event keys.
package channel

import "encoding/json"

// Event is the envelope carried over the websocket in both directions.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an envelope, marshaling the payload. A nil payload
// produces an empty Data field.
func NewEvent(name string, payload any) (Event, error) {
	ev := Event{Name: name}
	if payload == nil {
		return ev, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return ev, err
	}
	ev.Data = b
	return ev, nil
}

// Connection-health events, synthesized locally by the client side.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

// Client-to-server event names.
const (
	EventSendMessage = "send_message"
	EventStartTyping = "start_typing"
	EventEndTyping   = "end_typing"
	EventJoinRoom    = "on_join_room"
	EventLeftRoom    = "on_left_room"
)

// EventUpdateJoinArray carries the full room roster on every change.
const EventUpdateJoinArray = "update_join_array"

// MessageReceived is the inbound message event key for a recipient.
func MessageReceived(userID string) string {
	return "message_received_" + userID
}

// StartedTyping keys a typing-start notification on the ordered pair
// (typist, recipient).
func StartedTyping(fromID, toID string) string {
	return "started_typing_" + fromID + "_" + toID
}

// EndedTyping keys a typing-end notification on the ordered pair
// (typist, recipient).
func EndedTyping(fromID, toID string) string {
	return "ended_typing_" + fromID + "_" + toID
}

// TypingPayload is the body of start_typing / end_typing.
type TypingPayload struct {
	To   string `json:"to"`
	From string `json:"from"`
}
