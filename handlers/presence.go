package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parley/chat-service/realtime"
)

type PresenceHandler struct {
	registry *realtime.Registry
}

func NewPresenceHandler(registry *realtime.Registry) *PresenceHandler {
	return &PresenceHandler{registry: registry}
}

// Online handles GET /api/presence/online — the live directory snapshot, one
// entry per user regardless of device count.
func (h *PresenceHandler) Online(c *gin.Context) {
	users := h.registry.OnlineUsers("")
	c.JSON(http.StatusOK, gin.H{
		"count": len(users),
		"users": users,
	})
}
