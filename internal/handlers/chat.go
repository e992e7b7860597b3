package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"flatter-chat/internal/chat"
	"flatter-chat/internal/models"
	"flatter-chat/internal/observability"
	"flatter-chat/internal/repositories"
	"flatter-chat/internal/ws"
)

// ChatHandler exposes the conversation endpoints.
type ChatHandler struct {
	svc chat.Service
	hub *ws.Hub
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(svc chat.Service, hub *ws.Hub) *ChatHandler {
	return &ChatHandler{svc: svc, hub: hub}
}

// ListChats returns the authenticated user's inbox, most recently active
// conversation first.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	entries, err := h.svc.Inbox(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}
	if entries == nil {
		entries = []models.InboxEntry{}
	}

	c.JSON(http.StatusOK, gin.H{"chats": entries})
}

// StartChat creates or returns the conversation between the caller and
// another user, optionally tied to a listing.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		OtherUserID  string `json:"other_user_id" binding:"required"`
		ListingID    string `json:"listing_id"`
		ListingTitle string `json:"listing_title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	conv, created, err := h.svc.GetOrCreateConversation(c.Request.Context(), userID, req.OtherUserID, req.ListingID, req.ListingTitle)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrSelfConversation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
		case errors.Is(err, repositories.ErrProfileNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		}
		return
	}

	if created {
		h.pushInbox(c.Request.Context(), conv.User1ID, conv.User2ID)
		h.publishChatEvent(c, "chat_events.status", "chat_requested", conv)
	}

	c.JSON(http.StatusOK, gin.H{"chat_id": conv.ID, "status": conv.Status, "created": created})
}

// GetChatMessages returns the conversation's messages for a participant.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	conversationID := c.Param("chat_id")
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	msgs, err := h.svc.Messages(c.Request.Context(), conversationID, userID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		case errors.Is(err, chat.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		}
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostChatMessage stores a message, broadcasts it, and refreshes both
// participants' inboxes. A reply from the contacted party while the
// conversation is pending also flips it to accepted.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	conversationID := c.Param("chat_id")
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, conv, err := h.svc.SendMessage(c.Request.Context(), conversationID, userID, req.Body)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		case errors.Is(err, chat.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		case errors.Is(err, chat.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "message body is empty"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		}
		return
	}

	observability.IncMessageSent()
	h.hub.BroadcastMessage(conversationID, msg)
	if conv.Status == models.StatusAccepted && msg.SenderID != conv.InitiatorID {
		h.hub.BroadcastStatus(conversationID, conv.Status)
	}
	h.pushInbox(c.Request.Context(), conv.User1ID, conv.User2ID)
	h.publishChatEvent(c, "chat_events.messages", "message_sent", conv)

	c.JSON(http.StatusCreated, msg)
}

// UpdateChatStatus applies accept/decline/cancel to a pending
// conversation and fans the new status out to both parties.
func (h *ChatHandler) UpdateChatStatus(c *gin.Context) {
	conversationID := c.Param("chat_id")
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	next, err := models.ParseStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	conv, err := h.svc.UpdateStatus(c.Request.Context(), conversationID, userID, next)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		case errors.Is(err, chat.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		case errors.Is(err, chat.ErrTransitionNotYours):
			c.JSON(http.StatusForbidden, gin.H{"error": "status change not allowed for this participant"})
		case errors.Is(err, chat.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "status transition not allowed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update status"})
		}
		return
	}

	observability.IncStatusTransition(string(conv.Status))
	h.hub.BroadcastStatus(conversationID, conv.Status)
	h.pushInbox(c.Request.Context(), conv.User1ID, conv.User2ID)
	h.publishChatEvent(c, "chat_events.status", "status_changed", conv)

	c.JSON(http.StatusOK, conv)
}

// MarkChatRead flips unread messages and zeroes the caller's counter.
// Read receipts are best-effort; a failure is logged, not surfaced.
func (h *ChatHandler) MarkChatRead(c *gin.Context) {
	conversationID := c.Param("chat_id")
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	if err := h.svc.MarkAsRead(c.Request.Context(), conversationID, userID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return
		case errors.Is(err, chat.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
			return
		default:
			log.Printf("mark read failed for chat %s: %v", conversationID, err)
		}
	}

	h.pushInbox(c.Request.Context(), userID)
	c.Status(http.StatusNoContent)
}

// DeleteChatForMe hides the conversation from the caller's inbox only.
func (h *ChatHandler) DeleteChatForMe(c *gin.Context) {
	conversationID := c.Param("chat_id")
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	if err := h.svc.RemovePreview(c.Request.Context(), userID, conversationID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		case errors.Is(err, chat.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not hide chat"})
		}
		return
	}

	h.pushInbox(c.Request.Context(), userID)
	c.Status(http.StatusNoContent)
}

// pushInbox re-emits the full inbox to each user's live subscriptions.
func (h *ChatHandler) pushInbox(ctx context.Context, userIDs ...string) {
	if h.hub == nil {
		return
	}
	for _, userID := range userIDs {
		entries, err := h.svc.Inbox(ctx, userID)
		if err != nil {
			log.Printf("inbox refresh failed for user %s: %v", userID, err)
			continue
		}
		h.hub.BroadcastInbox(userID, entries)
	}
}

func (h *ChatHandler) publishChatEvent(c *gin.Context, routingKey, eventName string, conv models.Conversation) {
	requestID := requestIDFromContext(c)
	payload := map[string]interface{}{
		"conversation_id": conv.ID,
		"status":          conv.Status,
		"initiator_id":    conv.InitiatorID,
		"listing_id":      conv.ListingID,
	}
	_ = observability.PublishEvent(c.Request.Context(), routingKey, observability.EventEnvelope{
		EventType: "chat_events",
		EventName: eventName,
		Payload:   payload,
	}, observability.BuildHeaders(requestID, ""))
}
