package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"flatter-chat/internal/models"
)

const messageColumns = `id, conversation_id, sender_id, body, read, kind, created_at`

// MessageRepository defines interactions for conversation messages.
// Messages are append-only; MarkRead is the only mutation and touches
// only messages not authored by the reader.
type MessageRepository interface {
	Append(ctx context.Context, msg models.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID string, readerID string) (int64, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a message.
func (r *MessageRepo) Append(ctx context.Context, msg models.Message) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO messages (`+messageColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Body, msg.Read, msg.Kind, msg.CreatedAt)
	return err
}

// ListByConversation returns the conversation's messages ordered by
// creation time ascending.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE conversation_id=$1 ORDER BY created_at ASC`, conversationID)
	return msgs, err
}

// MarkRead flips read=true on all unread messages not sent by the reader
// and reports how many were affected.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID string, readerID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET read = TRUE WHERE conversation_id=$1 AND sender_id<>$2 AND read = FALSE`,
		conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
