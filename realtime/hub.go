package realtime

import (
	"context"
	"encoding/json"
	"time"

	"parley/chat-service/models"
	"parley/chat-service/utils"
)

// Options tunes the hub. Zero values fall back to sane defaults.
type Options struct {
	TypingTimeout      time.Duration
	SendBufferSize     int
	TypingEchoToSender bool
	MirrorRefresh      time.Duration
}

// Hub is the connection-lifecycle orchestrator: it admits authenticated
// connections, wires them into the registry, presence directory, room table
// and typing tracker, routes their inbound events, and unwinds everything
// exactly once on disconnect. All runtime state is process-local and rebuilt
// from scratch on restart.
type Hub struct {
	registry   *Registry
	rooms      *Rooms
	typing     *TypingTracker
	presence   *Presence
	dispatcher *Dispatcher
	logger     *utils.Logger
	opts       Options
}

func NewHub(store ConversationStore, mirror PresenceMirror, logger *utils.Logger, opts Options) *Hub {
	if opts.MirrorRefresh <= 0 {
		opts.MirrorRefresh = 60 * time.Second
	}

	registry := NewRegistry()
	rooms := NewRooms()

	h := &Hub{
		registry: registry,
		rooms:    rooms,
		presence: NewPresence(registry, mirror, logger),
		dispatcher: NewDispatcher(
			registry, rooms, store, logger, opts.TypingEchoToSender,
		),
		logger: logger,
		opts:   opts,
	}
	h.typing = NewTypingTracker(opts.TypingTimeout, h.onTypingExpired)
	return h
}

// Registry exposes the connection registry for read-side consumers such as
// the presence REST handler.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Run keeps the presence mirror fresh until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.opts.MirrorRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.presence.RefreshMirror(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// HandleConnection runs one authenticated connection from admission to
// teardown. The caller has already verified the credential; a rejected
// credential never reaches the hub, so failed auth leaves no presence trace.
// The call blocks until the connection closes.
func (h *Hub) HandleConnection(conn Conn, userID, username string) {
	s := NewSession(conn, userID, username, h.opts.SendBufferSize, h.logger)

	first := h.registry.Register(s)
	go s.WritePump()

	// The fresh connection gets the full snapshot before any delta, so it
	// cannot miss users who came online before it connected.
	if payload, err := Encode(EventOnlineUsers, h.presence.Snapshot(userID)); err == nil {
		s.Enqueue(payload)
	} else {
		h.logger.Error("failed to encode online snapshot", "error", err)
	}

	if first {
		h.presence.UserOnline(context.Background(), models.OnlineUser{UserID: userID, Username: username})
	}

	h.logger.Info("connection established",
		"session_id", s.ID, "user_id", userID, "username", username, "first", first)

	s.ReadPump(func(env Envelope) {
		h.route(s, env)
	})

	h.teardown(s)
}

// route handles one inbound client event while the connection is active.
func (h *Hub) route(s *Session, env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch env.Event {
	case EventJoinConversation:
		conversationID, ok := decodeString(env.Data)
		if !ok {
			s.SendError("join-conversation requires a conversation id")
			return
		}
		h.rooms.Join(conversationID, s)
		h.logger.Debug("joined conversation", "session_id", s.ID, "conversation_id", conversationID)

	case EventLeaveConversation:
		conversationID, ok := decodeString(env.Data)
		if !ok {
			s.SendError("leave-conversation requires a conversation id")
			return
		}
		h.rooms.Leave(conversationID, s.ID)

	case EventTyping:
		var req TypingRequest
		if err := json.Unmarshal(env.Data, &req); err != nil || req.ConversationID == "" {
			s.SendError("malformed typing event")
			return
		}
		h.typing.Set(req.ConversationID, s.UserID, req.IsTyping)
		h.dispatcher.DispatchTyping(ctx, req.ConversationID, s.UserID, s.Username, req.IsTyping, s.ID)

	case EventMessageRead:
		var req ReadRequest
		if err := json.Unmarshal(env.Data, &req); err != nil || req.MessageID == "" || req.ConversationID == "" {
			s.SendError("malformed message-read event")
			return
		}
		h.dispatcher.DispatchRead(ctx, req.ConversationID, req.MessageID, s.UserID)

	default:
		s.SendError("unknown event: " + env.Event)
	}
}

// OnMessageCreated is the hook the REST collaborator invokes after a durable
// write. It is the dispatcher's sole trigger for message fan-out.
func (h *Hub) OnMessageCreated(ctx context.Context, message *models.Message) {
	h.dispatcher.DispatchMessage(ctx, message)
}

// teardown unwinds a connection's state in order: room memberships, typing
// flags owned by the departing user, registry entry, then — only if that was
// the user's last connection — the offline broadcast. It runs exactly once
// per session no matter how many times disconnect is signaled.
func (h *Hub) teardown(s *Session) {
	s.teardownOnce.Do(func() { h.unwind(s) })
}

func (h *Hub) unwind(s *Session) {
	s.Close()
	h.rooms.LeaveAll(s.ID)

	// Typing flags are keyed per user, so they are cleared only when the
	// departing session is the user's last; another device may still be
	// typing.
	if h.registry.ConnectionCount(s.UserID) <= 1 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		for _, conversationID := range h.typing.ClearUser(s.UserID) {
			h.dispatcher.DispatchTyping(ctx, conversationID, s.UserID, s.Username, false, s.ID)
		}
		cancel()
	}

	_, last := h.registry.Unregister(s.ID)
	if last {
		h.presence.UserOffline(context.Background(), models.OnlineUser{UserID: s.UserID, Username: s.Username})
	}

	h.logger.Info("connection closed", "session_id", s.ID, "user_id", s.UserID, "last", last)
}

// onTypingExpired synthesizes the stop event for a typing flag that was not
// refreshed in time.
func (h *Hub) onTypingExpired(conversationID, userID string) {
	username := userID
	if sessions := h.registry.Lookup(userID); len(sessions) > 0 {
		username = sessions[0].Username
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.dispatcher.DispatchTyping(ctx, conversationID, userID, username, false, "")
}

// decodeString accepts the bare-string payload the client sends for
// join/leave events.
func decodeString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", false
	}
	return s, true
}
