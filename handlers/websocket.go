package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"parley/chat-service/middleware"
	"parley/chat-service/realtime"
	"parley/chat-service/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type WebSocketHandler struct {
	hub    *realtime.Hub
	logger *utils.Logger
}

func NewWebSocketHandler(hub *realtime.Hub, logger *utils.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		logger: logger,
	}
}

// Serve handles GET /ws. The auth middleware has already rejected bad
// credentials with an HTTP 401 before the upgrade, so a connection that
// reaches the hub always carries a verified identity and a rejected one
// never causes presence churn.
func (h *WebSocketHandler) Serve(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	username := c.GetString(middleware.ContextUsername)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing identity"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	// Blocks until the connection closes; teardown happens inside.
	h.hub.HandleConnection(conn, userID, username)
}
