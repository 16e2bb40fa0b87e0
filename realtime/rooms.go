package realtime

import "sync"

// Rooms tracks which sessions are actively viewing which conversation.
// Viewing is narrower than online: a session joins a conversation when the
// client opens it and leaves when it closes it or disconnects.
type Rooms struct {
	mu             sync.RWMutex
	byConversation map[string]map[string]*Session
	bySession      map[string]map[string]bool
}

func NewRooms() *Rooms {
	return &Rooms{
		byConversation: make(map[string]map[string]*Session),
		bySession:      make(map[string]map[string]bool),
	}
}

// Join marks a session as viewing a conversation. Repeated joins are no-ops.
// A session may view any number of conversations at once; the table never
// assumes the client keeps only one open.
func (r *Rooms) Join(conversationID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.byConversation[conversationID]
	if members == nil {
		members = make(map[string]*Session)
		r.byConversation[conversationID] = members
	}
	members[s.ID] = s

	joined := r.bySession[s.ID]
	if joined == nil {
		joined = make(map[string]bool)
		r.bySession[s.ID] = joined
	}
	joined[conversationID] = true
}

// Leave removes a session from a conversation. Leaving a conversation the
// session never joined is a no-op.
func (r *Rooms) Leave(conversationID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(conversationID, sessionID)
}

// LeaveAll removes a session from every conversation it joined. The gateway
// runs this on disconnect so no membership entry outlives its session.
func (r *Rooms) LeaveAll(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for conversationID := range r.bySession[sessionID] {
		r.leaveLocked(conversationID, sessionID)
	}
}

func (r *Rooms) leaveLocked(conversationID, sessionID string) {
	if members := r.byConversation[conversationID]; members != nil {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.byConversation, conversationID)
		}
	}
	if joined := r.bySession[sessionID]; joined != nil {
		delete(joined, conversationID)
		if len(joined) == 0 {
			delete(r.bySession, sessionID)
		}
	}
}

// Members returns the sessions currently viewing a conversation.
func (r *Rooms) Members(conversationID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.byConversation[conversationID]
	if len(members) == 0 {
		return nil
	}
	out := make([]*Session, 0, len(members))
	for _, s := range members {
		out = append(out, s)
	}
	return out
}

// ViewerUsers returns the set of user IDs with at least one session viewing
// the conversation. The dispatcher uses this to resolve delivery tiers.
func (r *Rooms) ViewerUsers(conversationID string) map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.byConversation[conversationID]
	if len(members) == 0 {
		return nil
	}
	out := make(map[string]bool, len(members))
	for _, s := range members {
		out[s.UserID] = true
	}
	return out
}

// Conversations returns the conversations a session is viewing.
func (r *Rooms) Conversations(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.bySession[sessionID]
	if len(joined) == 0 {
		return nil
	}
	out := make([]string, 0, len(joined))
	for conversationID := range joined {
		out = append(out, conversationID)
	}
	return out
}
