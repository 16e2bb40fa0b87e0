package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account. The password column holds a bcrypt hash and
// is never serialized.
type User struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null" binding:"required,email"`
	Username  string    `json:"username" gorm:"not null" binding:"required,min=3"`
	Password  string    `json:"-" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Conversation is a pairwise thread between two users. Participants are kept
// in a join table so membership can be queried without loading user rows.
type Conversation struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Participants []User   `json:"participants,omitempty" gorm:"many2many:conversation_participants;"`
	LastMessage  *Message `json:"lastMessage,omitempty" gorm:"-"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// ConversationParticipant is the join row behind Conversation.Participants.
type ConversationParticipant struct {
	ConversationID uuid.UUID `json:"conversation_id" gorm:"type:uuid;primary_key"`
	UserID         uuid.UUID `json:"user_id" gorm:"type:uuid;primary_key"`
}

func (ConversationParticipant) TableName() string {
	return "conversation_participants"
}

// Message is one durable chat message.
type Message struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	ConversationID uuid.UUID  `json:"conversationId" gorm:"type:uuid;not null;index"`
	SenderID       uuid.UUID  `json:"senderId" gorm:"type:uuid;not null"`
	SenderName     string     `json:"senderName" gorm:"not null"`
	Content        string     `json:"content" gorm:"not null" binding:"required"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}

// OnlineUser is the presence projection pushed over the websocket. It is
// derived from live connections, never stored.
type OnlineUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}
