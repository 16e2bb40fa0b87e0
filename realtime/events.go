package realtime

import (
	"encoding/json"
	"fmt"

	"parley/chat-service/models"
)

// Event names mirror the socket vocabulary the web client listens on.
const (
	// Inbound (client -> server)
	EventJoinConversation  = "join-conversation"
	EventLeaveConversation = "leave-conversation"
	EventTyping            = "typing"
	EventMessageRead       = "message-read"

	// Outbound (server -> client)
	EventOnlineUsers         = "online-users"
	EventUserOnline          = "user-online"
	EventUserOffline         = "user-offline"
	EventNewMessage          = "new-message"
	EventMessageNotification = "message-notification"
	EventUserTyping          = "user-typing"
	EventError               = "error"
)

// Envelope is the wire frame for every websocket event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TypingRequest is the inbound payload for the typing event.
type TypingRequest struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

// ReadRequest is the inbound payload for the message-read event.
type ReadRequest struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

// TypingNotice is the outbound user-typing payload.
type TypingNotice struct {
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

// MessageNotification is the reduced payload delivered to participants who
// are online but not viewing the conversation.
type MessageNotification struct {
	ConversationID string          `json:"conversationId"`
	Message        *models.Message `json:"message"`
}

// ReadNotice is the outbound message-read payload.
type ReadNotice struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// ErrorNotice is the connection-scoped error payload.
type ErrorNotice struct {
	Message string `json:"message"`
}

// Encode marshals an event envelope ready for the send channel.
func Encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	payload, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", event, err)
	}
	return payload, nil
}
