package realtime

import (
	"sort"
	"sync"

	"parley/chat-service/models"
)

// Registry tracks live sessions as a multimap userID -> sessions. A user with
// several devices holds several sessions; presence cares only about the
// zero<->nonzero edges, which Register and Unregister report.
type Registry struct {
	mu        sync.RWMutex
	byUser    map[string]map[string]*Session
	bySession map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		byUser:    make(map[string]map[string]*Session),
		bySession: make(map[string]*Session),
	}
}

// Register adds a session and reports whether it is the user's first live
// connection (the offline -> online transition).
func (r *Registry) Register(s *Session) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := r.byUser[s.UserID]
	if sessions == nil {
		sessions = make(map[string]*Session)
		r.byUser[s.UserID] = sessions
	}
	first = len(sessions) == 0
	sessions[s.ID] = s
	r.bySession[s.ID] = s
	return first
}

// Unregister removes a session and reports whether the user has no remaining
// connections (the online -> offline transition). Unregistering an unknown
// session is a no-op; duplicate disconnect signals are expected.
func (r *Registry) Unregister(sessionID string) (s *Session, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.bySession[sessionID]
	if !ok {
		return nil, false
	}
	delete(r.bySession, sessionID)

	sessions := r.byUser[s.UserID]
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(r.byUser, s.UserID)
		return s, true
	}
	return s, false
}

// Lookup returns every live session for a user.
func (r *Registry) Lookup(userID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := r.byUser[userID]
	if len(sessions) == 0 {
		return nil
	}
	out := make([]*Session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s)
	}
	return out
}

// ConnectionCount returns the number of live sessions for a user.
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

// IsOnline reports whether the user has at least one live session.
func (r *Registry) IsOnline(userID string) bool {
	return r.ConnectionCount(userID) > 0
}

// Sessions returns every live session across all users.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.bySession))
	for _, s := range r.bySession {
		out = append(out, s)
	}
	return out
}

// OnlineUsers returns the presence snapshot, one entry per user regardless of
// device count, sorted by username for stable output. excludeUserID removes
// the caller from their own snapshot.
func (r *Registry) OnlineUsers(excludeUserID string) []models.OnlineUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.OnlineUser, 0, len(r.byUser))
	for userID, sessions := range r.byUser {
		if userID == excludeUserID || len(sessions) == 0 {
			continue
		}
		var username string
		for _, s := range sessions {
			username = s.Username
			break
		}
		out = append(out, models.OnlineUser{UserID: userID, Username: username})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
