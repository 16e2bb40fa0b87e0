package realtime

import (
	"sync"
	"time"
)

type typingKey struct {
	conversationID string
	userID         string
}

// TypingTracker holds the short-lived typing flag per (conversation, user).
// A typing signal that is not refreshed within the timeout auto-retracts:
// the tracker fires onExpire exactly once, which the hub delivers the same
// way an explicit stop would be. Only the latest signal per key matters.
type TypingTracker struct {
	mu       sync.Mutex
	timeout  time.Duration
	timers   map[typingKey]*time.Timer
	onExpire func(conversationID, userID string)
}

func NewTypingTracker(timeout time.Duration, onExpire func(conversationID, userID string)) *TypingTracker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &TypingTracker{
		timeout:  timeout,
		timers:   make(map[typingKey]*time.Timer),
		onExpire: onExpire,
	}
}

// Set records a typing signal. isTyping=true (re)starts the expiry timer for
// the key, superseding any pending one. isTyping=false clears the state and
// cancels the timer so no stale expiry fires afterwards.
func (t *TypingTracker) Set(conversationID, userID string, isTyping bool) {
	key := typingKey{conversationID: conversationID, userID: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
	}
	if !isTyping {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(t.timeout, func() {
		t.expire(key, timer)
	})
	t.timers[key] = timer
}

// expire fires the synthesized stop only if the timer is still the current
// one for its key; a refresh or explicit stop that raced the callback wins.
func (t *TypingTracker) expire(key typingKey, timer *time.Timer) {
	t.mu.Lock()
	current, ok := t.timers[key]
	if !ok || current != timer {
		t.mu.Unlock()
		return
	}
	delete(t.timers, key)
	t.mu.Unlock()

	if t.onExpire != nil {
		t.onExpire(key.conversationID, key.userID)
	}
}

// IsTyping reports whether the key currently has a live typing flag.
func (t *TypingTracker) IsTyping(conversationID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[typingKey{conversationID: conversationID, userID: userID}]
	return ok
}

// ClearUser cancels every live typing flag owned by a user and returns the
// conversations that held one. The gateway calls this on the user's last
// disconnect so no timer outlives its owner; it emits the stop notices
// itself, outside the tracker's lock.
func (t *TypingTracker) ClearUser(userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var conversations []string
	for key, timer := range t.timers {
		if key.userID != userID {
			continue
		}
		timer.Stop()
		delete(t.timers, key)
		conversations = append(conversations, key.conversationID)
	}
	return conversations
}
