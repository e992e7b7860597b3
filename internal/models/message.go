package models

import "time"

// KindText is the only message kind currently written. The column exists
// so future kinds do not need a migration.
const KindText = "text"

// Message is a single message inside a conversation. Messages are
// append-only; only the read flag changes after creation.
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	SenderID       string    `db:"sender_id" json:"sender_id"`
	Body           string    `db:"body" json:"body"`
	Read           bool      `db:"read" json:"read"`
	Kind           string    `db:"kind" json:"kind"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ConversationEvent is broadcast through the conversation websocket.
type ConversationEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
	Status  Status   `json:"status,omitempty"`
}

// InboxEvent is broadcast through the inbox websocket. The full current
// list is re-emitted on every change, most recently active first.
type InboxEvent struct {
	Type    string       `json:"type"`
	Entries []InboxEntry `json:"entries"`
}
