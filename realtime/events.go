package realtime

import (
	"encoding/json"
	"time"
)

// Inbound and outbound event names on the real-time channel
const (
	EventNewMessage        = "new_message"
	EventMessageSent       = "message_sent"
	EventNewNotification   = "new_notification"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventSendMessage       = "send_message"
	EventJoinRoom          = "join_room"
)

// Frame is the wire envelope for every event in either direction
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Sender is the display info attached to a live message
type Sender struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar,omitempty"`
}

// Message is a live chat message. Immutable once created; unique by ID across
// the durable store and the push stream.
type Message struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	SenderID   string    `json:"senderId"`
	ReceiverID *string   `json:"receiverId,omitempty"`
	GroupID    *string   `json:"groupId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	Sender     Sender    `json:"sender"`
}

// Notification is a pushed, session-local notification. It has no id and can
// only be cleared in bulk.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Kind    string `json:"type"`
}

// Typing is the transient presence payload
type Typing struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
}

// sendMessagePayload is the outbound chat payload; exactly one of receiverId
// or groupId is set
type sendMessagePayload struct {
	Content    string  `json:"content"`
	ReceiverID *string `json:"receiverId,omitempty"`
	GroupID    *string `json:"groupId,omitempty"`
}

type joinRoomPayload struct {
	RoomID string `json:"roomId"`
}
