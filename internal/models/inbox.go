package models

import "time"

// InboxEntry is the denormalized per-user view of a conversation used to
// render the chat list without fanning out reads. Two entries exist per
// conversation, one per participant, and each is owned by a single user's
// inbox.
type InboxEntry struct {
	UserID         string    `db:"user_id" json:"user_id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	OtherUserID    string    `db:"other_user_id" json:"other_user_id"`
	OtherUserName  string    `db:"other_user_name" json:"other_user_name"`
	OtherUserPhoto string    `db:"other_user_photo" json:"other_user_photo"`
	OtherUserRole  Role      `db:"other_user_role" json:"other_user_role"`
	UnreadCount    int       `db:"unread_count" json:"unread_count"`
	LastMessage    string    `db:"last_message" json:"last_message"`
	LastMessageAt  time.Time `db:"last_message_at" json:"last_message_at"`
	ListingID      string    `db:"listing_id" json:"listing_id,omitempty"`
	ListingTitle   string    `db:"listing_title" json:"listing_title,omitempty"`
	Status         Status    `db:"status" json:"status"`
}

// Profile is the read-only user snapshot this service copies into inbox
// entries at creation time.
type Profile struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
	PhotoURL string `db:"photo_url" json:"photo_url"`
	Role     Role   `db:"role" json:"role"`
}
