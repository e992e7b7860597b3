package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"flatter-chat/internal/auth"
	"flatter-chat/internal/chat"
	"flatter-chat/internal/models"
	"flatter-chat/internal/observability"
)

// InboxWebSocketHandler serves the live inbox subscription. The full
// preview list is pushed on connect and re-pushed on every change.
type InboxWebSocketHandler struct {
	hub      *Hub
	svc      chat.Service
	verifier *auth.JWT
}

// NewInboxWebSocketHandler constructs an InboxWebSocketHandler.
func NewInboxWebSocketHandler(hub *Hub, svc chat.Service, verifier *auth.JWT) *InboxWebSocketHandler {
	return &InboxWebSocketHandler{hub: hub, svc: svc, verifier: verifier}
}

// Handle upgrades and registers a websocket connection for the caller's
// inbox.
func (h *InboxWebSocketHandler) Handle(c *gin.Context) {
	userID, err := h.validateToken(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	entries, err := h.svc.Inbox(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load inbox"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		ConnectedAt: time.Now(),
	}
	h.hub.AddInboxClient(userID, conn, info)
	observability.IncWSActive("inbox")
	observability.IncWSEvent("inbox", "ws_connect")

	// Initial snapshot so the client renders without a separate fetch.
	snapshot, _ := json.Marshal(models.InboxEvent{Type: "inbox", Entries: entries})
	if err := conn.WriteMessage(websocket.TextMessage, snapshot); err != nil {
		log.Printf("websocket write error: %v", err)
		h.hub.RemoveInboxClient(userID, conn)
		observability.DecWSActive("inbox")
		conn.Close()
		return
	}

	go func() {
		defer func() {
			h.hub.RemoveInboxClient(userID, conn)
			observability.DecWSActive("inbox")
			observability.IncWSEvent("inbox", "ws_disconnect")
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *InboxWebSocketHandler) validateToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if token := c.Query("token"); token != "" {
			header = "Bearer " + token
		}
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid token")
	}
	claims, err := h.verifier.Parse(parts[1])
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}
