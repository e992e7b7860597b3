package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"flatter-chat/internal/chat"
	"flatter-chat/internal/mocks"
	"flatter-chat/internal/models"
	"flatter-chat/internal/repositories"
	"flatter-chat/internal/ws"
)

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "alice")
		c.Next()
	})
	r.GET("/chats", handler.ListChats)
	r.POST("/chats/start", handler.StartChat)
	r.GET("/chats/:chat_id/messages", handler.GetChatMessages)
	r.POST("/chats/:chat_id/messages", handler.PostChatMessage)
	r.PUT("/chats/:chat_id/status", handler.UpdateChatStatus)
	r.POST("/chats/:chat_id/read", handler.MarkChatRead)
	r.DELETE("/chats/:chat_id/me", handler.DeleteChatForMe)
	return r
}

func TestListChatsSuccess(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	entries := []models.InboxEntry{{
		UserID:         "alice",
		ConversationID: "alice_bob",
		OtherUserID:    "bob",
		UnreadCount:    2,
	}}
	svc.On("Inbox", mock.Anything, "alice").Return(entries, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Chats []models.InboxEntry `json:"chats"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Chats, 1)
	assert.Equal(t, "bob", resp.Chats[0].OtherUserID)
	assert.Equal(t, 2, resp.Chats[0].UnreadCount)
	svc.AssertExpectations(t)
}

func TestListChatsEmptyInbox(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	svc.On("Inbox", mock.Anything, "alice").Return(([]models.InboxEntry)(nil), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chats":[]}`, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestListChatsServiceError(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	svc.On("Inbox", mock.Anything, "alice").Return(([]models.InboxEntry)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	svc.AssertExpectations(t)
}

func TestStartChatCreates(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	conv := models.Conversation{
		ID:          "alice_bob",
		User1ID:     "alice",
		User2ID:     "bob",
		InitiatorID: "alice",
		Status:      models.StatusPending,
	}
	svc.On("GetOrCreateConversation", mock.Anything, "alice", "bob", "listing-9", "Hola").
		Return(conv, true, nil).Once()
	svc.On("Inbox", mock.Anything, "alice").Return([]models.InboxEntry{}, nil).Once()
	svc.On("Inbox", mock.Anything, "bob").Return([]models.InboxEntry{}, nil).Once()

	body := bytes.NewBufferString(`{"other_user_id":"bob","listing_id":"listing-9","listing_title":"Hola"}`)
	req := httptest.NewRequest(http.MethodPost, "/chats/start", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "alice_bob", resp["chat_id"])
	assert.Equal(t, "pending", resp["status"])
	assert.Equal(t, true, resp["created"])
	svc.AssertExpectations(t)
}

func TestStartChatExistingSkipsBroadcast(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	conv := models.Conversation{ID: "alice_bob", User1ID: "alice", User2ID: "bob", InitiatorID: "alice", Status: models.StatusAccepted}
	svc.On("GetOrCreateConversation", mock.Anything, "alice", "bob", "", "").
		Return(conv, false, nil).Once()

	body := bytes.NewBufferString(`{"other_user_id":"bob"}`)
	req := httptest.NewRequest(http.MethodPost, "/chats/start", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, false, resp["created"])
	svc.AssertExpectations(t)
	svc.AssertNotCalled(t, "Inbox", mock.Anything, mock.Anything)
}

func TestStartChatWithSelf(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	svc.On("GetOrCreateConversation", mock.Anything, "alice", "alice", "", "").
		Return(models.Conversation{}, false, chat.ErrSelfConversation).Once()

	body := bytes.NewBufferString(`{"other_user_id":"alice"}`)
	req := httptest.NewRequest(http.MethodPost, "/chats/start", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestStartChatUnknownUser(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	svc.On("GetOrCreateConversation", mock.Anything, "alice", "ghost", "", "").
		Return(models.Conversation{}, false, repositories.ErrProfileNotFound).Once()

	body := bytes.NewBufferString(`{"other_user_id":"ghost"}`)
	req := httptest.NewRequest(http.MethodPost, "/chats/start", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	svc.AssertExpectations(t)
}

func TestStartChatMissingBody(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/chats/start", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "GetOrCreateConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetChatMessagesSuccess(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	msgs := []models.Message{
		{ID: "m1", ConversationID: "alice_bob", SenderID: "bob", Body: "hey"},
		{ID: "m2", ConversationID: "alice_bob", SenderID: "alice", Body: "hi"},
	}
	svc.On("Messages", mock.Anything, "alice_bob", "alice").Return(msgs, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/alice_bob/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "m1", resp.Messages[0].ID)
	svc.AssertExpectations(t)
}

func TestGetChatMessagesNotParticipant(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	svc.On("Messages", mock.Anything, "bob_carl", "alice").
		Return(([]models.Message)(nil), chat.ErrNotParticipant).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/bob_carl/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	svc.AssertExpectations(t)
}

func TestGetChatMessagesUnknownChat(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	svc.On("Messages", mock.Anything, "nope", "alice").
		Return(([]models.Message)(nil), repositories.ErrConversationNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/nope/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	svc.AssertExpectations(t)
}

func TestPostChatMessageSuccess(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	msg := models.Message{ID: "m1", ConversationID: "alice_bob", SenderID: "alice", Body: "hello"}
	conv := models.Conversation{ID: "alice_bob", User1ID: "alice", User2ID: "bob", InitiatorID: "alice", Status: models.StatusPending}
	svc.On("SendMessage", mock.Anything, "alice_bob", "alice", "hello").Return(msg, conv, nil).Once()
	svc.On("Inbox", mock.Anything, "alice").Return([]models.InboxEntry{}, nil).Once()
	svc.On("Inbox", mock.Anything, "bob").Return([]models.InboxEntry{}, nil).Once()

	body := bytes.NewBufferString(`{"body":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/chats/alice_bob/messages", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, "hello", got.Body)
	svc.AssertExpectations(t)
}

func TestPostChatMessageEmptyBody(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	body := bytes.NewBufferString(`{"body":""}`)
	req := httptest.NewRequest(http.MethodPost, "/chats/alice_bob/messages", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostChatMessageWhitespaceOnly(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	svc.On("SendMessage", mock.Anything, "alice_bob", "alice", "   ").
		Return(models.Message{}, models.Conversation{}, chat.ErrEmptyMessage).Once()

	body := bytes.NewBufferString(`{"body":"   "}`)
	req := httptest.NewRequest(http.MethodPost, "/chats/alice_bob/messages", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestUpdateChatStatusAccept(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	conv := models.Conversation{ID: "alice_bob", User1ID: "alice", User2ID: "bob", InitiatorID: "bob", Status: models.StatusAccepted}
	svc.On("UpdateStatus", mock.Anything, "alice_bob", "alice", models.StatusAccepted).Return(conv, nil).Once()
	svc.On("Inbox", mock.Anything, "alice").Return([]models.InboxEntry{}, nil).Once()
	svc.On("Inbox", mock.Anything, "bob").Return([]models.InboxEntry{}, nil).Once()

	body := bytes.NewBufferString(`{"status":"accepted"}`)
	req := httptest.NewRequest(http.MethodPut, "/chats/alice_bob/status", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Conversation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, models.StatusAccepted, got.Status)
	svc.AssertExpectations(t)
}

func TestUpdateChatStatusUnknownValue(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	body := bytes.NewBufferString(`{"status":"archived"}`)
	req := httptest.NewRequest(http.MethodPut, "/chats/alice_bob/status", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateChatStatusFromTerminal(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	svc.On("UpdateStatus", mock.Anything, "alice_bob", "alice", models.StatusDeclined).
		Return(models.Conversation{}, chat.ErrInvalidTransition).Once()

	body := bytes.NewBufferString(`{"status":"declined"}`)
	req := httptest.NewRequest(http.MethodPut, "/chats/alice_bob/status", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	svc.AssertExpectations(t)
}

func TestUpdateChatStatusWrongParty(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	svc.On("UpdateStatus", mock.Anything, "alice_bob", "alice", models.StatusCancelled).
		Return(models.Conversation{}, chat.ErrTransitionNotYours).Once()

	body := bytes.NewBufferString(`{"status":"cancelled"}`)
	req := httptest.NewRequest(http.MethodPut, "/chats/alice_bob/status", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	svc.AssertExpectations(t)
}

func TestMarkChatReadSuccess(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	svc.On("MarkAsRead", mock.Anything, "alice_bob", "alice").Return(nil).Once()
	svc.On("Inbox", mock.Anything, "alice").Return([]models.InboxEntry{}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/alice_bob/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestMarkChatReadFailureStillNoContent(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	svc.On("MarkAsRead", mock.Anything, "alice_bob", "alice").Return(assert.AnError).Once()
	svc.On("Inbox", mock.Anything, "alice").Return([]models.InboxEntry{}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/alice_bob/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestMarkChatReadUnknownChat(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	svc.On("MarkAsRead", mock.Anything, "nope", "alice").Return(repositories.ErrConversationNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/nope/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	svc.AssertExpectations(t)
}

func TestDeleteChatForMeSuccess(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	svc.On("RemovePreview", mock.Anything, "alice", "alice_bob").Return(nil).Once()
	svc.On("Inbox", mock.Anything, "alice").Return([]models.InboxEntry{}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/alice_bob/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestDeleteChatForMeNotParticipant(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	handler := NewChatHandler(svc, ws.NewHub())
	router := setupChatRouter(handler)

	svc.On("RemovePreview", mock.Anything, "alice", "bob_carl").Return(chat.ErrNotParticipant).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/bob_carl/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	svc.AssertExpectations(t)
}
