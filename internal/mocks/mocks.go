package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"flatter-chat/internal/chat"
	"flatter-chat/internal/models"
)

type ChatServiceMock struct {
	mock.Mock
}

func (m *ChatServiceMock) GetOrCreateConversation(ctx context.Context, selfID, otherID, listingID, listingTitle string) (models.Conversation, bool, error) {
	args := m.Called(ctx, selfID, otherID, listingID, listingTitle)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Bool(1), args.Error(2)
}

func (m *ChatServiceMock) Conversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ChatServiceMock) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatServiceMock) Messages(ctx context.Context, conversationID, userID string) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, userID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *ChatServiceMock) SendMessage(ctx context.Context, conversationID, senderID, text string) (models.Message, models.Conversation, error) {
	args := m.Called(ctx, conversationID, senderID, text)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	var conv models.Conversation
	if val := args.Get(1); val != nil {
		conv = val.(models.Conversation)
	}
	return msg, conv, args.Error(2)
}

func (m *ChatServiceMock) MarkAsRead(ctx context.Context, conversationID, readerID string) error {
	args := m.Called(ctx, conversationID, readerID)
	return args.Error(0)
}

func (m *ChatServiceMock) UpdateStatus(ctx context.Context, conversationID, actorID string, next models.Status) (models.Conversation, error) {
	args := m.Called(ctx, conversationID, actorID, next)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ChatServiceMock) Inbox(ctx context.Context, userID string) ([]models.InboxEntry, error) {
	args := m.Called(ctx, userID)
	var entries []models.InboxEntry
	if val := args.Get(0); val != nil {
		entries = val.([]models.InboxEntry)
	}
	return entries, args.Error(1)
}

func (m *ChatServiceMock) RemovePreview(ctx context.Context, userID, conversationID string) error {
	args := m.Called(ctx, userID, conversationID)
	return args.Error(0)
}

var _ chat.Service = (*ChatServiceMock)(nil)
