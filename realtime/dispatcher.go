package realtime

import (
	"context"

	"parley/chat-service/models"
	"parley/chat-service/utils"
)

// ConversationStore is the persistence collaborator the dispatcher consults.
// The dispatcher never owns durable state.
type ConversationStore interface {
	ParticipantsOf(ctx context.Context, conversationID string) ([]string, error)
	MarkMessageRead(ctx context.Context, messageID, readerID string) error
}

// Tier is the delivery class a participant resolves to at dispatch time.
type Tier int

const (
	// TierViewing participants have the conversation open and get the full event.
	TierViewing Tier = iota
	// TierNotifiable participants are online elsewhere and get a reduced
	// notification that keeps their conversation list live.
	TierNotifiable
	// TierOffline participants get nothing; the store is the sole record.
	TierOffline
)

// ResolveTier classifies one participant given the viewing set and an online
// check. It is a pure function so delivery policy is testable without live
// connections.
func ResolveTier(userID string, viewing map[string]bool, online func(string) bool) Tier {
	if viewing[userID] {
		return TierViewing
	}
	if online(userID) {
		return TierNotifiable
	}
	return TierOffline
}

// Dispatcher fans one triggering event out to a conversation's participants,
// with the payload shape varying by recipient tier.
type Dispatcher struct {
	registry *Registry
	rooms    *Rooms
	store    ConversationStore
	logger   *utils.Logger

	// echoTyping, when enabled, repeats typing signals to the sender's
	// other devices. Off by default.
	echoTyping bool
}

func NewDispatcher(registry *Registry, rooms *Rooms, store ConversationStore, logger *utils.Logger, echoTyping bool) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		rooms:      rooms,
		store:      store,
		logger:     logger,
		echoTyping: echoTyping,
	}
}

// DispatchMessage delivers a created message to the conversation's other
// participants: the full new-message event to viewers, a reduced
// message-notification to online non-viewers, nothing to offline users.
// The REST collaborator invokes this once per durable write, which keeps
// per-conversation delivery in invocation order.
func (d *Dispatcher) DispatchMessage(ctx context.Context, message *models.Message) {
	conversationID := message.ConversationID.String()
	senderID := message.SenderID.String()

	participants, err := d.store.ParticipantsOf(ctx, conversationID)
	if err != nil {
		d.logger.Error("failed to resolve participants", "conversation_id", conversationID, "error", err)
		return
	}

	full, err := Encode(EventNewMessage, message)
	if err != nil {
		d.logger.Error("failed to encode message event", "error", err)
		return
	}
	reduced, err := Encode(EventMessageNotification, MessageNotification{
		ConversationID: conversationID,
		Message:        message,
	})
	if err != nil {
		d.logger.Error("failed to encode notification event", "error", err)
		return
	}

	viewing := d.rooms.ViewerUsers(conversationID)
	for _, userID := range participants {
		if userID == senderID {
			continue
		}
		switch ResolveTier(userID, viewing, d.registry.IsOnline) {
		case TierViewing:
			d.deliver(userID, full)
		case TierNotifiable:
			d.deliver(userID, reduced)
		case TierOffline:
			// Normal case, not an error: the client fetches on next load.
		}
	}
}

// DispatchTyping delivers a typing signal to viewing participants. Typing is
// never downgraded to a notification: off-screen it has no value. The
// originating session is always excluded; the sender's other devices are
// excluded too unless echo is enabled. originSessionID is empty for
// timer-synthesized stops.
func (d *Dispatcher) DispatchTyping(ctx context.Context, conversationID, userID, username string, isTyping bool, originSessionID string) {
	participants, err := d.store.ParticipantsOf(ctx, conversationID)
	if err != nil {
		d.logger.Error("failed to resolve participants", "conversation_id", conversationID, "error", err)
		return
	}

	payload, err := Encode(EventUserTyping, TypingNotice{
		UserID:         userID,
		Username:       username,
		ConversationID: conversationID,
		IsTyping:       isTyping,
	})
	if err != nil {
		d.logger.Error("failed to encode typing event", "error", err)
		return
	}

	viewing := d.rooms.ViewerUsers(conversationID)
	for _, participantID := range participants {
		if participantID == userID {
			if !d.echoTyping {
				continue
			}
			if viewing[participantID] {
				d.deliverExcept(participantID, payload, originSessionID)
			}
			continue
		}
		if ResolveTier(participantID, viewing, d.registry.IsOnline) == TierViewing {
			d.deliver(participantID, payload)
		}
	}
}

// DispatchRead records a read receipt in the store and delivers it to viewing
// participants other than the reader.
func (d *Dispatcher) DispatchRead(ctx context.Context, conversationID, messageID, readerID string) {
	if err := d.store.MarkMessageRead(ctx, messageID, readerID); err != nil {
		d.logger.Error("failed to persist read receipt", "message_id", messageID, "error", err)
		return
	}

	participants, err := d.store.ParticipantsOf(ctx, conversationID)
	if err != nil {
		d.logger.Error("failed to resolve participants", "conversation_id", conversationID, "error", err)
		return
	}

	payload, err := Encode(EventMessageRead, ReadNotice{
		MessageID:      messageID,
		ConversationID: conversationID,
		UserID:         readerID,
	})
	if err != nil {
		d.logger.Error("failed to encode read event", "error", err)
		return
	}

	viewing := d.rooms.ViewerUsers(conversationID)
	for _, participantID := range participants {
		if participantID == readerID {
			continue
		}
		if ResolveTier(participantID, viewing, d.registry.IsOnline) == TierViewing {
			d.deliver(participantID, payload)
		}
	}
}

// deliver enqueues a payload on every live session of a user. A session that
// closed between resolution and handoff drops the payload; late delivery is
// never an error.
func (d *Dispatcher) deliver(userID string, payload []byte) {
	d.deliverExcept(userID, payload, "")
}

func (d *Dispatcher) deliverExcept(userID string, payload []byte, skipSessionID string) {
	for _, s := range d.registry.Lookup(userID) {
		if s.ID == skipSessionID {
			continue
		}
		if !s.Enqueue(payload) {
			d.logger.Debug("delivery dropped", "user_id", userID, "session_id", s.ID)
		}
	}
}
