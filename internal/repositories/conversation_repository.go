package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"flatter-chat/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

const conversationColumns = `id, user1_id, user2_id, initiator_id, listing_id, listing_title, status, last_message, last_message_at, created_at`

// ConversationRepository abstracts conversation persistence. Create also
// writes both inbox entries so a conversation can never exist without its
// previews.
type ConversationRepository interface {
	Get(ctx context.Context, conversationID string) (models.Conversation, error)
	Create(ctx context.Context, conv models.Conversation, previews []models.InboxEntry) error
	SetLastMessage(ctx context.Context, conversationID string, text string, at time.Time) error
	SetStatus(ctx context.Context, conversationID string, status models.Status) error
	IsParticipant(ctx context.Context, conversationID string, userID string) (bool, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// Create inserts the conversation and both inbox entries in one
// transaction. A partial record is never left behind.
func (r *ConversationRepo) Create(ctx context.Context, conv models.Conversation, previews []models.InboxEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO conversations (`+conversationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		conv.ID, conv.User1ID, conv.User2ID, conv.InitiatorID, conv.ListingID, conv.ListingTitle,
		conv.Status, conv.LastMessage, conv.LastMessageAt, conv.CreatedAt); err != nil {
		return err
	}

	for _, entry := range previews {
		if _, err = tx.ExecContext(ctx, upsertInboxEntryQuery,
			entry.UserID, entry.ConversationID, entry.OtherUserID, entry.OtherUserName, entry.OtherUserPhoto,
			entry.OtherUserRole, entry.UnreadCount, entry.LastMessage, entry.LastMessageAt,
			entry.ListingID, entry.ListingTitle, entry.Status); err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

// SetLastMessage updates the denormalized last-message fields.
func (r *ConversationRepo) SetLastMessage(ctx context.Context, conversationID string, text string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET last_message=$2, last_message_at=$3 WHERE id=$1`, conversationID, text, at)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// SetStatus updates the conversation status and mirrors it onto both
// inbox entries in the same transaction.
func (r *ConversationRepo) SetStatus(ctx context.Context, conversationID string, status models.Status) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE conversations SET status=$2 WHERE id=$1`, conversationID, status)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		err = ErrConversationNotFound
		return err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE inbox_entries SET status=$2 WHERE conversation_id=$1`, conversationID, status); err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID string, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM conversations WHERE id=$1 AND (user1_id=$2 OR user2_id=$2))`, conversationID, userID)
	return exists, err
}
