package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type expiryRecorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *expiryRecorder) record(conversationID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, conversationID+"/"+userID)
}

func (r *expiryRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func TestTypingTracker_ExpiresOnce(t *testing.T) {
	req := require.New(t)
	rec := &expiryRecorder{}
	tracker := NewTypingTracker(30*time.Millisecond, rec.record)

	// Given a typing signal that is never refreshed
	tracker.Set("conv-1", "alice", true)
	req.True(tracker.IsTyping("conv-1", "alice"))

	// Then the synthesized stop fires exactly once
	req.Eventually(func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	req.False(tracker.IsTyping("conv-1", "alice"))

	time.Sleep(60 * time.Millisecond)
	req.Equal(1, rec.count())
}

func TestTypingTracker_RefreshResetsTimer(t *testing.T) {
	req := require.New(t)
	rec := &expiryRecorder{}
	tracker := NewTypingTracker(50*time.Millisecond, rec.record)

	tracker.Set("conv-1", "alice", true)

	// When the signal is refreshed before expiry
	time.Sleep(30 * time.Millisecond)
	tracker.Set("conv-1", "alice", true)

	// Then the first timer's emission is suppressed
	time.Sleep(30 * time.Millisecond)
	req.Equal(0, rec.count())

	// And the refreshed timer still expires
	req.Eventually(func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestTypingTracker_ExplicitStopCancelsTimer(t *testing.T) {
	req := require.New(t)
	rec := &expiryRecorder{}
	tracker := NewTypingTracker(30*time.Millisecond, rec.record)

	tracker.Set("conv-1", "alice", true)
	tracker.Set("conv-1", "alice", false)

	req.False(tracker.IsTyping("conv-1", "alice"))

	// No synthesized stop after an explicit one
	time.Sleep(60 * time.Millisecond)
	req.Equal(0, rec.count())
}

func TestTypingTracker_LaterWriteWins(t *testing.T) {
	req := require.New(t)
	rec := &expiryRecorder{}
	tracker := NewTypingTracker(40*time.Millisecond, rec.record)

	// Rapid signals for the same key leave a single live flag
	tracker.Set("conv-1", "alice", true)
	tracker.Set("conv-1", "alice", true)
	tracker.Set("conv-1", "alice", true)

	req.True(tracker.IsTyping("conv-1", "alice"))
	req.Eventually(func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	req.Equal(1, rec.count())
}

func TestTypingTracker_ClearUser_StopsTimersSilently(t *testing.T) {
	req := require.New(t)
	rec := &expiryRecorder{}
	tracker := NewTypingTracker(30*time.Millisecond, rec.record)

	tracker.Set("conv-1", "alice", true)
	tracker.Set("conv-2", "alice", true)
	tracker.Set("conv-1", "bob", true)

	// When the user disconnects
	conversations := tracker.ClearUser("alice")

	// Then their flags are gone without firing expiry callbacks
	req.ElementsMatch([]string{"conv-1", "conv-2"}, conversations)
	req.False(tracker.IsTyping("conv-1", "alice"))
	req.False(tracker.IsTyping("conv-2", "alice"))

	// And the other user's timer still runs its course
	req.True(tracker.IsTyping("conv-1", "bob"))
	req.Eventually(func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
}
