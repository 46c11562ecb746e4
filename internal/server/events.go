// Package server defines the JSON event vocabulary exchanged between
// clients and the relay: a tagged envelope plus per-kind payload types.
package server

import (
	"encoding/json"
	"strings"
	"time"
)

// EventType discriminates the envelope. The set mirrors the client
// protocol: inbound kinds are requests from a client, outbound kinds are
// what the relay pushes back.
type EventType string

// Inbound event kinds.
const (
	EventJoin              EventType = "join"
	EventSendMessage       EventType = "sendMessage"
	EventSendMessageToRoom EventType = "sendMessageToRoom"
	EventJoinRoom          EventType = "joinRoom"
	EventTyping            EventType = "typing"
	EventStopTyping        EventType = "stopTyping"
	EventReactToMessage    EventType = "reactToMessage"
	EventMessageRead       EventType = "messageRead"
	EventPrivateMessage    EventType = "privateMessage"
)

// Outbound event kinds. EventTyping, EventStopTyping, and
// EventPrivateMessage are reused in both directions.
const (
	EventOnlineUsers     EventType = "onlineUsers"
	EventUserJoined      EventType = "userJoined"
	EventUserLeft        EventType = "userLeft"
	EventReceiveMessage  EventType = "receiveMessage"
	EventMessageReaction EventType = "messageReaction"
	EventMessageReadAck  EventType = "messageReadAck"
)

// Event is the wire envelope. Data carries the kind-specific payload and
// is absent for signal-only events such as stopTyping.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// JoinPayload announces the sender's self-asserted display name.
// Names are not required to be unique.
type JoinPayload struct {
	Username string `json:"username"`
}

// ChatPayload is a global chat message. At least one of Message and
// Image is expected; Image carries a client-encoded data URL.
type ChatPayload struct {
	Message string `json:"message,omitempty"`
	Image   string `json:"image,omitempty"`
}

// RoomPayload selects the sender's active room.
type RoomPayload struct {
	Room string `json:"room"`
}

// RoomChatPayload is a message scoped to the sender's active room.
type RoomChatPayload struct {
	Message string `json:"message"`
}

// ReactionPayload attaches an emoji to a message. MessageIndex is the
// ordinal position in the recipient's local history, not a stable
// identifier.
type ReactionPayload struct {
	MessageIndex int    `json:"messageIndex"`
	Reaction     string `json:"reaction"`
}

// ReadPayload acknowledges that the sender has read a message authored
// by From. Same ordinal indexing as reactions.
type ReadPayload struct {
	From         string `json:"from"`
	MessageIndex int    `json:"messageIndex"`
}

// PrivatePayload is a direct message request addressed by display name.
type PrivatePayload struct {
	ToUsername string `json:"toUsername"`
	Message    string `json:"message"`
}

// OnlineUsersPayload is the presence list pushed after every session
// change. Duplicate names appear once per session holding them.
type OnlineUsersPayload struct {
	Users []string `json:"users"`
}

// NoticePayload carries system text such as join/leave announcements.
type NoticePayload struct {
	Text string `json:"text"`
}

// IncomingMessagePayload is a delivered chat message, global or
// room-scoped. Username is omitted when the sender never joined.
type IncomingMessagePayload struct {
	Username  string `json:"username,omitempty"`
	Message   string `json:"message,omitempty"`
	Image     string `json:"image,omitempty"`
	Timestamp string `json:"timestamp"`
}

// TypingPayload names the user currently typing.
type TypingPayload struct {
	Username string `json:"username,omitempty"`
}

// ReactionNoticePayload fans a reaction out to every connection.
type ReactionNoticePayload struct {
	MessageIndex int    `json:"messageIndex"`
	Reaction     string `json:"reaction"`
	Username     string `json:"username,omitempty"`
}

// ReadAckPayload is delivered to the message author only.
type ReadAckPayload struct {
	MessageIndex int    `json:"messageIndex"`
	By           string `json:"by,omitempty"`
}

// PrivateDeliveryPayload is a direct message as seen by its recipient.
type PrivateDeliveryPayload struct {
	From      string `json:"from,omitempty"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// encodeEvent marshals an envelope around the given payload. A nil
// payload produces a signal-only event.
func encodeEvent(kind EventType, payload any) ([]byte, error) {
	evt := Event{Type: kind}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		evt.Data = data
	}
	return json.Marshal(evt)
}

// timestampLayout matches the locale time strings the clients render,
// e.g. "3:07:45 PM".
const timestampLayout = "3:04:05 PM"

func localTimestamp() string {
	return time.Now().Format(timestampLayout)
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
