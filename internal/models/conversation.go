package models

import (
	"sort"
	"strings"
	"time"
)

// Conversation represents a private conversation between exactly two users,
// usually opened about a listing. Its id is derived from the participant
// pair so the same pair always maps to the same record.
type Conversation struct {
	ID            string    `db:"id" json:"id"`
	User1ID       string    `db:"user1_id" json:"user1_id"`
	User2ID       string    `db:"user2_id" json:"user2_id"`
	InitiatorID   string    `db:"initiator_id" json:"initiator_id"`
	ListingID     string    `db:"listing_id" json:"listing_id,omitempty"`
	ListingTitle  string    `db:"listing_title" json:"listing_title,omitempty"`
	Status        Status    `db:"status" json:"status"`
	LastMessage   string    `db:"last_message" json:"last_message"`
	LastMessageAt time.Time `db:"last_message_at" json:"last_message_at"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// PairKey derives the deterministic conversation id for two user ids.
// Sorting makes the key symmetric in its arguments.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// HasParticipant reports whether the user belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// OtherParticipant returns the participant that is not userID.
func (c Conversation) OtherParticipant(userID string) string {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}
