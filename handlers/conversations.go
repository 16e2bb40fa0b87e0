package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"parley/chat-service/realtime"
	"parley/chat-service/services"
	"parley/chat-service/utils"
)

type ConversationHandler struct {
	conversations *services.ConversationService
	users         *services.UserService
	hub           *realtime.Hub
	logger        *utils.Logger
}

func NewConversationHandler(conversations *services.ConversationService, users *services.UserService, hub *realtime.Hub, logger *utils.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		users:         users,
		hub:           hub,
		logger:        logger,
	}
}

type createConversationRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// List handles GET /api/conversations
func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	conversations, err := h.conversations.ListForUser(userID)
	if err != nil {
		h.logger.Error("Failed to list conversations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list conversations"})
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// Create handles POST /api/conversations — find-or-create the pairwise
// conversation with another user.
func (h *ConversationHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	otherID, err := uuid.Parse(req.ParticipantID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid participant id"})
		return
	}
	if otherID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot start a conversation with yourself"})
		return
	}
	if _, err := h.users.FindByID(otherID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Participant not found"})
		return
	}

	conversation, err := h.conversations.FindOrCreate(userID, otherID)
	if err != nil {
		h.logger.Error("Failed to create conversation", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create conversation"})
		return
	}

	c.JSON(http.StatusOK, conversation)
}

// Messages handles GET /api/conversations/:id/messages
func (h *ConversationHandler) Messages(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	conversationID, ok := h.authorizeParticipant(c, userID)
	if !ok {
		return
	}

	messages, err := h.conversations.MessagesOf(conversationID)
	if err != nil {
		h.logger.Error("Failed to load messages", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, messages)
}

// SendMessage handles POST /api/conversations/:id/messages. The durable
// write happens here; live fan-out is triggered by the hub's
// message-created hook and only after the write succeeds.
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	conversationID, ok := h.authorizeParticipant(c, userID)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	sender, err := h.users.FindByID(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown sender"})
		return
	}

	message, err := h.conversations.CreateMessage(conversationID, sender, req.Content)
	if err != nil {
		h.logger.Error("Failed to create message", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create message"})
		return
	}

	h.hub.OnMessageCreated(c.Request.Context(), message)

	c.JSON(http.StatusOK, message)
}

// authorizeParticipant parses the conversation id and rejects callers who are
// not participants.
func (h *ConversationHandler) authorizeParticipant(c *gin.Context, userID uuid.UUID) (uuid.UUID, bool) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation id"})
		return uuid.Nil, false
	}

	isParticipant, err := h.conversations.IsParticipant(conversationID, userID)
	if err != nil {
		h.logger.Error("Failed to check participant", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check conversation access"})
		return uuid.Nil, false
	}
	if !isParticipant {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this conversation"})
		return uuid.Nil, false
	}
	return conversationID, true
}
