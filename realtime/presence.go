package realtime

import (
	"context"
	"time"

	"parley/chat-service/models"
	"parley/chat-service/utils"
)

// PresenceMirror publishes the in-memory presence view to an external store
// so sibling services can read who is online. Calls are best-effort: a mirror
// failure is logged and never affects live delivery.
type PresenceMirror interface {
	SetOnline(ctx context.Context, user models.OnlineUser) error
	SetOffline(ctx context.Context, userID string) error
	Refresh(ctx context.Context, users []models.OnlineUser) error
}

// Presence derives the online-user directory from the registry and broadcasts
// the edge transitions. Only true offline->online and online->offline edges
// fire events; extra devices connecting or disconnecting are silent.
type Presence struct {
	registry *Registry
	mirror   PresenceMirror
	logger   *utils.Logger
}

func NewPresence(registry *Registry, mirror PresenceMirror, logger *utils.Logger) *Presence {
	return &Presence{
		registry: registry,
		mirror:   mirror,
		logger:   logger,
	}
}

// Snapshot returns the current online users, excluding the caller. A fresh
// connection receives this before any delta so it never misses users who
// came online earlier.
func (p *Presence) Snapshot(excludeUserID string) []models.OnlineUser {
	return p.registry.OnlineUsers(excludeUserID)
}

// UserOnline broadcasts user-online to every connection belonging to other
// users and mirrors the transition.
func (p *Presence) UserOnline(ctx context.Context, user models.OnlineUser) {
	p.broadcast(EventUserOnline, user)

	if p.mirror != nil {
		if err := p.mirror.SetOnline(ctx, user); err != nil {
			p.logger.Warn("presence mirror set online failed", "user_id", user.UserID, "error", err)
		}
	}
}

// UserOffline broadcasts user-offline to every connection belonging to other
// users and mirrors the transition.
func (p *Presence) UserOffline(ctx context.Context, user models.OnlineUser) {
	p.broadcast(EventUserOffline, user)

	if p.mirror != nil {
		if err := p.mirror.SetOffline(ctx, user.UserID); err != nil {
			p.logger.Warn("presence mirror set offline failed", "user_id", user.UserID, "error", err)
		}
	}
}

// RefreshMirror re-asserts every online user in the mirror. The hub runs this
// periodically so mirror entries with a TTL do not lapse while users stay
// connected.
func (p *Presence) RefreshMirror(ctx context.Context) {
	if p.mirror == nil {
		return
	}
	users := p.registry.OnlineUsers("")
	if len(users) == 0 {
		return
	}
	refreshCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.mirror.Refresh(refreshCtx, users); err != nil {
		p.logger.Warn("presence mirror refresh failed", "error", err)
	}
}

func (p *Presence) broadcast(event string, user models.OnlineUser) {
	payload, err := Encode(event, user)
	if err != nil {
		p.logger.Error("failed to encode presence event", "event", event, "error", err)
		return
	}
	for _, s := range p.registry.Sessions() {
		if s.UserID == user.UserID {
			continue
		}
		if !s.Enqueue(payload) {
			p.logger.Debug("presence event dropped", "event", event, "session_id", s.ID)
		}
	}
}
