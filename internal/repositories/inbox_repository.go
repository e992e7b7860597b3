package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"flatter-chat/internal/models"
)

const inboxColumns = `user_id, conversation_id, other_user_id, other_user_name, other_user_photo, other_user_role, unread_count, last_message, last_message_at, listing_id, listing_title, status`

const upsertInboxEntryQuery = `INSERT INTO inbox_entries (` + inboxColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (user_id, conversation_id) DO UPDATE SET
            other_user_id = EXCLUDED.other_user_id,
            other_user_name = EXCLUDED.other_user_name,
            other_user_photo = EXCLUDED.other_user_photo,
            other_user_role = EXCLUDED.other_user_role,
            unread_count = EXCLUDED.unread_count,
            last_message = EXCLUDED.last_message,
            last_message_at = EXCLUDED.last_message_at,
            listing_id = EXCLUDED.listing_id,
            listing_title = EXCLUDED.listing_title,
            status = EXCLUDED.status`

// InboxRepository abstracts the per-user preview projection. Touch and
// TouchAndIncrement report how many rows they hit so callers can detect a
// lost entry and recreate it.
type InboxRepository interface {
	ListForUser(ctx context.Context, userID string) ([]models.InboxEntry, error)
	Upsert(ctx context.Context, entry models.InboxEntry) error
	Touch(ctx context.Context, userID, conversationID, text string, at time.Time) (int64, error)
	TouchAndIncrement(ctx context.Context, userID, conversationID, text string, at time.Time) (int64, error)
	ResetUnread(ctx context.Context, userID, conversationID string) error
	Delete(ctx context.Context, userID, conversationID string) error
}

// InboxRepo is a sqlx implementation of InboxRepository.
type InboxRepo struct {
	db *sqlx.DB
}

// NewInboxRepo constructs an InboxRepo.
func NewInboxRepo(db *sqlx.DB) *InboxRepo {
	return &InboxRepo{db: db}
}

// ListForUser returns the user's inbox, most recently active first.
func (r *InboxRepo) ListForUser(ctx context.Context, userID string) ([]models.InboxEntry, error) {
	var entries []models.InboxEntry
	err := r.db.SelectContext(ctx, &entries, `SELECT `+inboxColumns+` FROM inbox_entries WHERE user_id=$1 ORDER BY last_message_at DESC`, userID)
	return entries, err
}

// Upsert writes a full inbox entry, replacing any existing row.
func (r *InboxRepo) Upsert(ctx context.Context, entry models.InboxEntry) error {
	_, err := r.db.ExecContext(ctx, upsertInboxEntryQuery,
		entry.UserID, entry.ConversationID, entry.OtherUserID, entry.OtherUserName, entry.OtherUserPhoto,
		entry.OtherUserRole, entry.UnreadCount, entry.LastMessage, entry.LastMessageAt,
		entry.ListingID, entry.ListingTitle, entry.Status)
	return err
}

// Touch updates the last-message fields of one entry.
func (r *InboxRepo) Touch(ctx context.Context, userID, conversationID, text string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE inbox_entries SET last_message=$3, last_message_at=$4 WHERE user_id=$1 AND conversation_id=$2`,
		userID, conversationID, text, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// TouchAndIncrement updates the last-message fields and bumps the unread
// counter in a single statement, so concurrent sends never lose an
// increment.
func (r *InboxRepo) TouchAndIncrement(ctx context.Context, userID, conversationID, text string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE inbox_entries SET last_message=$3, last_message_at=$4, unread_count = unread_count + 1 WHERE user_id=$1 AND conversation_id=$2`,
		userID, conversationID, text, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetUnread zeroes the unread counter for one entry.
func (r *InboxRepo) ResetUnread(ctx context.Context, userID, conversationID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE inbox_entries SET unread_count = 0 WHERE user_id=$1 AND conversation_id=$2`, userID, conversationID)
	return err
}

// Delete removes a single user's entry. The conversation and the other
// participant's entry are untouched.
func (r *InboxRepo) Delete(ctx context.Context, userID, conversationID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM inbox_entries WHERE user_id=$1 AND conversation_id=$2`, userID, conversationID)
	return err
}
