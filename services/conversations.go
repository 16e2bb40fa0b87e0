package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"parley/chat-service/models"
)

var ErrNotParticipant = errors.New("user is not a participant of this conversation")

// ConversationService owns conversation and message persistence. It is also
// the participant directory the realtime dispatcher consults.
type ConversationService struct {
	db *gorm.DB
}

func NewConversationService(db *gorm.DB) *ConversationService {
	return &ConversationService{db: db}
}

// ListForUser returns the caller's conversations with participants and the
// last message attached, most recently updated first.
func (cs *ConversationService) ListForUser(userID uuid.UUID) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := cs.db.
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", userID).
		Preload("Participants").
		Order("conversations.updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	for i := range conversations {
		var last models.Message
		err := cs.db.
			Where("conversation_id = ?", conversations[i].ID).
			Order("created_at DESC").
			First(&last).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load last message: %w", err)
		}
		conversations[i].LastMessage = &last
	}

	return conversations, nil
}

// FindOrCreate returns the pairwise conversation between two users, creating
// it if it does not exist yet.
func (cs *ConversationService) FindOrCreate(userID, otherID uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	err := cs.db.
		Joins("JOIN conversation_participants a ON a.conversation_id = conversations.id AND a.user_id = ?", userID).
		Joins("JOIN conversation_participants b ON b.conversation_id = conversations.id AND b.user_id = ?", otherID).
		Preload("Participants").
		First(&conversation).Error
	if err == nil {
		return &conversation, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}

	conversation = models.Conversation{ID: uuid.New()}
	err = cs.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conversation).Error; err != nil {
			return err
		}
		rows := []models.ConversationParticipant{
			{ConversationID: conversation.ID, UserID: userID},
			{ConversationID: conversation.ID, UserID: otherID},
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	if err := cs.db.Preload("Participants").First(&conversation, "id = ?", conversation.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload conversation: %w", err)
	}
	return &conversation, nil
}

// IsParticipant reports whether a user belongs to a conversation.
func (cs *ConversationService) IsParticipant(conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := cs.db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return count > 0, nil
}

// MessagesOf returns a conversation's messages, oldest first.
func (cs *ConversationService) MessagesOf(conversationID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := cs.db.
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return messages, nil
}

// CreateMessage persists a message and bumps the conversation's updated_at so
// the conversation list sorts it to the top.
func (cs *ConversationService) CreateMessage(conversationID uuid.UUID, sender *models.User, content string) (*models.Message, error) {
	message := models.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       sender.ID,
		SenderName:     sender.Username,
		Content:        content,
	}

	err := cs.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&message).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	return &message, nil
}

// ParticipantsOf implements the realtime ConversationStore collaborator:
// the user IDs of a conversation's participants.
func (cs *ConversationService) ParticipantsOf(ctx context.Context, conversationID string) ([]string, error) {
	convID, err := uuid.Parse(conversationID)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation id: %w", err)
	}

	var rows []models.ConversationParticipant
	err = cs.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID.String())
	}
	return ids, nil
}

// MarkMessageRead records a read receipt. Only a participant other than the
// sender may mark a message read; anything else is a silent no-op.
func (cs *ConversationService) MarkMessageRead(ctx context.Context, messageID, readerID string) error {
	msgID, err := uuid.Parse(messageID)
	if err != nil {
		return fmt.Errorf("invalid message id: %w", err)
	}
	reader, err := uuid.Parse(readerID)
	if err != nil {
		return fmt.Errorf("invalid reader id: %w", err)
	}

	now := time.Now()
	err = cs.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND sender_id <> ? AND read_at IS NULL", msgID, reader).
		Update("read_at", &now).Error
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	return nil
}
