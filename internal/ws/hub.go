package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"flatter-chat/internal/models"
	"flatter-chat/internal/observability"
)

// Hub maintains the live subscriptions: one room per conversation and one
// room per user inbox. Consumers register on connect and are dropped on
// the first failed write; the client re-subscribes at will.
type Hub struct {
	conversationRooms    map[string]map[*websocket.Conn]bool
	inboxRooms           map[string]map[*websocket.Conn]bool
	conversationConnInfo map[string]map[*websocket.Conn]ConnInfo
	inboxConnInfo        map[string]map[*websocket.Conn]ConnInfo
	mu                   sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conversationRooms:    make(map[string]map[*websocket.Conn]bool),
		inboxRooms:           make(map[string]map[*websocket.Conn]bool),
		conversationConnInfo: make(map[string]map[*websocket.Conn]ConnInfo),
		inboxConnInfo:        make(map[string]map[*websocket.Conn]ConnInfo),
	}
}

// AddConversationClient registers a websocket connection to a
// conversation room.
func (h *Hub) AddConversationClient(conversationID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conversationRooms[conversationID]; !ok {
		h.conversationRooms[conversationID] = make(map[*websocket.Conn]bool)
	}
	h.conversationRooms[conversationID][conn] = true
	if _, ok := h.conversationConnInfo[conversationID]; !ok {
		h.conversationConnInfo[conversationID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.conversationConnInfo[conversationID][conn] = info
}

// RemoveConversationClient removes a conversation websocket connection.
func (h *Hub) RemoveConversationClient(conversationID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.conversationRooms[conversationID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.conversationRooms, conversationID)
		}
	}
	if infos, ok := h.conversationConnInfo[conversationID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.conversationConnInfo, conversationID)
		}
	}
}

// AddInboxClient registers a websocket connection to a user's inbox room.
func (h *Hub) AddInboxClient(userID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.inboxRooms[userID]; !ok {
		h.inboxRooms[userID] = make(map[*websocket.Conn]bool)
	}
	h.inboxRooms[userID][conn] = true
	if _, ok := h.inboxConnInfo[userID]; !ok {
		h.inboxConnInfo[userID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.inboxConnInfo[userID][conn] = info
}

// RemoveInboxClient removes an inbox websocket connection.
func (h *Hub) RemoveInboxClient(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.inboxRooms[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.inboxRooms, userID)
		}
	}
	if infos, ok := h.inboxConnInfo[userID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.inboxConnInfo, userID)
		}
	}
}

// BroadcastMessage sends a new message to all clients in a conversation.
func (h *Hub) BroadcastMessage(conversationID string, msg models.Message) {
	h.broadcastConversation(conversationID, models.ConversationEvent{Type: "message", Message: &msg})
}

// BroadcastStatus notifies conversation clients of a lifecycle change.
func (h *Hub) BroadcastStatus(conversationID string, status models.Status) {
	h.broadcastConversation(conversationID, models.ConversationEvent{Type: "status", Status: status})
}

func (h *Hub) broadcastConversation(conversationID string, event models.ConversationEvent) {
	h.mu.RLock()
	conns := h.conversationRooms[conversationID]
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemoveConversationClient(conversationID, conn)
			h.publishWSError("conversation", conversationID, conn, err)
		}
	}
}

// BroadcastInbox re-emits the full current inbox to all of the user's
// connections. The whole list is sent every time, not a delta.
func (h *Hub) BroadcastInbox(userID string, entries []models.InboxEntry) {
	h.mu.RLock()
	conns := h.inboxRooms[userID]
	h.mu.RUnlock()

	event := models.InboxEvent{Type: "inbox", Entries: entries}
	payload, _ := json.Marshal(event)
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemoveInboxClient(userID, conn)
			h.publishWSError("inbox", userID, conn, err)
		}
	}
}

func (h *Hub) publishWSError(kind, resourceID string, conn *websocket.Conn, err error) {
	info, ok := h.getConnInfo(kind, resourceID, conn)
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        kind,
			"resource_id": resourceID,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), wsRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent(kind, "ws_error")
}

func (h *Hub) getConnInfo(kind, resourceID string, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if kind == "conversation" {
		if infos, ok := h.conversationConnInfo[resourceID]; ok {
			info, exists := infos[conn]
			return info, exists
		}
		return ConnInfo{}, false
	}
	if infos, ok := h.inboxConnInfo[resourceID]; ok {
		info, exists := infos[conn]
		return info, exists
	}
	return ConnInfo{}, false
}

func wsRoutingKey(kind string) string {
	if kind == "inbox" {
		return "ws_events.inbox"
	}
	return "ws_events.conversations"
}
