package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"flatter-chat/internal/models"
	"flatter-chat/internal/repositories"
)

var (
	ErrNoIdentity         = errors.New("no authenticated user")
	ErrSelfConversation   = errors.New("cannot start a conversation with yourself")
	ErrNotParticipant     = errors.New("user is not a conversation participant")
	ErrEmptyMessage       = errors.New("message body is empty")
	ErrInvalidTransition  = errors.New("status transition not allowed from current state")
	ErrTransitionNotYours = errors.New("participant may not perform this status change")
)

// Service is the chat domain API consumed by the HTTP and websocket
// layers.
type Service interface {
	GetOrCreateConversation(ctx context.Context, selfID, otherID, listingID, listingTitle string) (models.Conversation, bool, error)
	Conversation(ctx context.Context, conversationID string) (models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	Messages(ctx context.Context, conversationID, userID string) ([]models.Message, error)
	SendMessage(ctx context.Context, conversationID, senderID, text string) (models.Message, models.Conversation, error)
	MarkAsRead(ctx context.Context, conversationID, readerID string) error
	UpdateStatus(ctx context.Context, conversationID, actorID string, next models.Status) (models.Conversation, error)
	Inbox(ctx context.Context, userID string) ([]models.InboxEntry, error)
	RemovePreview(ctx context.Context, userID, conversationID string) error
}

// ChatService implements Service on top of the repository collaborators.
type ChatService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	inbox         repositories.InboxRepository
	profiles      repositories.ProfileRepository
	now           func() time.Time
}

// NewChatService constructs a ChatService.
func NewChatService(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	inbox repositories.InboxRepository,
	profiles repositories.ProfileRepository,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		inbox:         inbox,
		profiles:      profiles,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreateConversation returns the conversation for the pair, creating
// it together with both inbox entries on first contact. The returned bool
// reports whether a new conversation was created. Creation fails whole if
// either profile cannot be read; a conversation is never left without its
// previews.
func (s *ChatService) GetOrCreateConversation(ctx context.Context, selfID, otherID, listingID, listingTitle string) (models.Conversation, bool, error) {
	if selfID == "" {
		return models.Conversation{}, false, ErrNoIdentity
	}
	if otherID == "" || otherID == selfID {
		return models.Conversation{}, false, ErrSelfConversation
	}

	id := models.PairKey(selfID, otherID)
	conv, err := s.conversations.Get(ctx, id)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, repositories.ErrConversationNotFound) {
		return models.Conversation{}, false, err
	}

	selfProfile, err := s.profiles.Get(ctx, selfID)
	if err != nil {
		return models.Conversation{}, false, fmt.Errorf("load initiator profile: %w", err)
	}
	otherProfile, err := s.profiles.Get(ctx, otherID)
	if err != nil {
		return models.Conversation{}, false, fmt.Errorf("load counterpart profile: %w", err)
	}

	now := s.now()
	user1, user2 := selfID, otherID
	if user1 > user2 {
		user1, user2 = user2, user1
	}
	conv = models.Conversation{
		ID:            id,
		User1ID:       user1,
		User2ID:       user2,
		InitiatorID:   selfID,
		ListingID:     listingID,
		ListingTitle:  listingTitle,
		Status:        models.StatusPending,
		LastMessageAt: now,
		CreatedAt:     now,
	}

	previews := []models.InboxEntry{
		newInboxEntry(conv, selfID, otherProfile, now),
		newInboxEntry(conv, otherID, selfProfile, now),
	}
	if err := s.conversations.Create(ctx, conv, previews); err != nil {
		// Two devices may race on the same deterministic key; the loser
		// of the race reads the winner's record.
		if existing, getErr := s.conversations.Get(ctx, id); getErr == nil {
			return existing, false, nil
		}
		return models.Conversation{}, false, err
	}
	return conv, true, nil
}

// Conversation fetches a conversation by id.
func (s *ChatService) Conversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	return s.conversations.Get(ctx, conversationID)
}

// IsParticipant checks conversation membership.
func (s *ChatService) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	if userID == "" {
		return false, ErrNoIdentity
	}
	return s.conversations.IsParticipant(ctx, conversationID, userID)
}

// Messages returns the ordered message list, gated on membership.
func (s *ChatService) Messages(ctx context.Context, conversationID, userID string) ([]models.Message, error) {
	if userID == "" {
		return nil, ErrNoIdentity
	}
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return s.messages.ListByConversation(ctx, conversationID)
}

// SendMessage appends a message and keeps the conversation and both
// inbox entries in step: sender's preview gets the new last message, the
// recipient's additionally gets an atomic unread increment. A missing
// preview is recreated from profile snapshots instead of failing the
// send. When the non-initiator sends while the conversation is still
// pending, the send doubles as an accept.
func (s *ChatService) SendMessage(ctx context.Context, conversationID, senderID, text string) (models.Message, models.Conversation, error) {
	if senderID == "" {
		return models.Message{}, models.Conversation{}, ErrNoIdentity
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, models.Conversation{}, ErrEmptyMessage
	}

	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return models.Message{}, models.Conversation{}, err
	}
	if !conv.HasParticipant(senderID) {
		return models.Message{}, models.Conversation{}, ErrNotParticipant
	}

	now := s.now()
	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           text,
		Kind:           models.KindText,
		CreatedAt:      now,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return models.Message{}, models.Conversation{}, err
	}

	if err := s.conversations.SetLastMessage(ctx, conversationID, text, now); err != nil {
		return models.Message{}, models.Conversation{}, err
	}
	conv.LastMessage = text
	conv.LastMessageAt = now

	recipientID := conv.OtherParticipant(senderID)

	affected, err := s.inbox.Touch(ctx, senderID, conversationID, text, now)
	if err != nil {
		return models.Message{}, models.Conversation{}, err
	}
	if affected == 0 {
		if err := s.recreateEntry(ctx, conv, senderID, text, now, 0); err != nil {
			return models.Message{}, models.Conversation{}, err
		}
	}

	affected, err = s.inbox.TouchAndIncrement(ctx, recipientID, conversationID, text, now)
	if err != nil {
		return models.Message{}, models.Conversation{}, err
	}
	if affected == 0 {
		if err := s.recreateEntry(ctx, conv, recipientID, text, now, 1); err != nil {
			return models.Message{}, models.Conversation{}, err
		}
	}

	// Send-implies-accept: the contacted party answering a pending
	// request accepts it.
	if conv.Status == models.StatusPending && senderID != conv.InitiatorID {
		if err := s.conversations.SetStatus(ctx, conversationID, models.StatusAccepted); err != nil {
			return models.Message{}, models.Conversation{}, err
		}
		conv.Status = models.StatusAccepted
	}

	return msg, conv, nil
}

// MarkAsRead flips read on all messages not authored by the reader and
// zeroes the reader's unread counter.
func (s *ChatService) MarkAsRead(ctx context.Context, conversationID, readerID string) error {
	if readerID == "" {
		return ErrNoIdentity
	}
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(readerID) {
		return ErrNotParticipant
	}
	if _, err := s.messages.MarkRead(ctx, conversationID, readerID); err != nil {
		return err
	}
	return s.inbox.ResetUnread(ctx, readerID, conversationID)
}

// UpdateStatus applies a lifecycle transition. Only pending conversations
// move; the non-initiator accepts or declines, the initiator cancels. The
// new status is mirrored onto both inbox entries.
func (s *ChatService) UpdateStatus(ctx context.Context, conversationID, actorID string, next models.Status) (models.Conversation, error) {
	if actorID == "" {
		return models.Conversation{}, ErrNoIdentity
	}
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	if !conv.HasParticipant(actorID) {
		return models.Conversation{}, ErrNotParticipant
	}
	if !conv.Status.CanTransitionTo(next) {
		return models.Conversation{}, ErrInvalidTransition
	}

	switch next {
	case models.StatusAccepted, models.StatusDeclined:
		if actorID == conv.InitiatorID {
			return models.Conversation{}, ErrTransitionNotYours
		}
	case models.StatusCancelled:
		if actorID != conv.InitiatorID {
			return models.Conversation{}, ErrTransitionNotYours
		}
	}

	if err := s.conversations.SetStatus(ctx, conversationID, next); err != nil {
		return models.Conversation{}, err
	}
	conv.Status = next
	return conv, nil
}

// Inbox returns the user's preview entries, most recently active first.
func (s *ChatService) Inbox(ctx context.Context, userID string) ([]models.InboxEntry, error) {
	if userID == "" {
		return nil, ErrNoIdentity
	}
	return s.inbox.ListForUser(ctx, userID)
}

// RemovePreview hides the conversation from one user's inbox. The
// conversation, its messages, and the other entry remain intact.
func (s *ChatService) RemovePreview(ctx context.Context, userID, conversationID string) error {
	if userID == "" {
		return ErrNoIdentity
	}
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return ErrNotParticipant
	}
	return s.inbox.Delete(ctx, userID, conversationID)
}

// recreateEntry rebuilds a lost inbox entry from the current profile
// snapshot. Unread state before the loss is gone; the projection is
// eventually consistent and self-heals from here.
func (s *ChatService) recreateEntry(ctx context.Context, conv models.Conversation, ownerID, lastMessage string, at time.Time, unread int) error {
	otherProfile, err := s.profiles.Get(ctx, conv.OtherParticipant(ownerID))
	if err != nil {
		return fmt.Errorf("recreate inbox entry: %w", err)
	}
	entry := newInboxEntry(conv, ownerID, otherProfile, at)
	entry.UnreadCount = unread
	entry.LastMessage = lastMessage
	entry.Status = conv.Status
	return s.inbox.Upsert(ctx, entry)
}

func newInboxEntry(conv models.Conversation, ownerID string, other models.Profile, at time.Time) models.InboxEntry {
	return models.InboxEntry{
		UserID:         ownerID,
		ConversationID: conv.ID,
		OtherUserID:    other.ID,
		OtherUserName:  other.FullName,
		OtherUserPhoto: other.PhotoURL,
		OtherUserRole:  other.Role,
		LastMessageAt:  at,
		ListingID:      conv.ListingID,
		ListingTitle:   conv.ListingTitle,
		Status:         conv.Status,
	}
}

var _ Service = (*ChatService)(nil)
