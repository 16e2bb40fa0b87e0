package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"parley/chat-service/models"
	"parley/chat-service/utils"
)

type fakeMirror struct {
	online    []string
	offline   []string
	refreshed [][]models.OnlineUser
	fail      bool
}

func (m *fakeMirror) SetOnline(_ context.Context, user models.OnlineUser) error {
	if m.fail {
		return errors.New("mirror down")
	}
	m.online = append(m.online, user.UserID)
	return nil
}

func (m *fakeMirror) SetOffline(_ context.Context, userID string) error {
	if m.fail {
		return errors.New("mirror down")
	}
	m.offline = append(m.offline, userID)
	return nil
}

func (m *fakeMirror) Refresh(_ context.Context, users []models.OnlineUser) error {
	if m.fail {
		return errors.New("mirror down")
	}
	m.refreshed = append(m.refreshed, users)
	return nil
}

func TestPresence_BroadcastExcludesSubject(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	p := NewPresence(registry, nil, utils.NewLogger("production"))

	alice := newTestSession("alice", "Alice")
	alicePhone := newTestSession("alice", "Alice")
	bob := newTestSession("bob", "Bob")
	registry.Register(alice)
	registry.Register(alicePhone)
	registry.Register(bob)

	// When Alice's online transition is announced
	p.UserOnline(context.Background(), models.OnlineUser{UserID: "alice", Username: "Alice"})

	// Then Bob hears it and none of Alice's own devices do
	req.Len(drainEvents(t, bob), 1)
	req.Empty(drainEvents(t, alice))
	req.Empty(drainEvents(t, alicePhone))
}

func TestPresence_MirrorTracksTransitions(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	mirror := &fakeMirror{}
	p := NewPresence(registry, mirror, utils.NewLogger("production"))

	registry.Register(newTestSession("alice", "Alice"))

	p.UserOnline(context.Background(), models.OnlineUser{UserID: "alice", Username: "Alice"})
	p.UserOffline(context.Background(), models.OnlineUser{UserID: "alice", Username: "Alice"})

	req.Equal([]string{"alice"}, mirror.online)
	req.Equal([]string{"alice"}, mirror.offline)
}

func TestPresence_MirrorFailureIsBestEffort(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	mirror := &fakeMirror{fail: true}
	p := NewPresence(registry, mirror, utils.NewLogger("production"))

	bob := newTestSession("bob", "Bob")
	registry.Register(bob)

	// A failing mirror must not block the live broadcast
	p.UserOnline(context.Background(), models.OnlineUser{UserID: "alice", Username: "Alice"})
	req.Len(drainEvents(t, bob), 1)
}

func TestPresence_RefreshSkipsEmptyDirectory(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	mirror := &fakeMirror{}
	p := NewPresence(registry, mirror, utils.NewLogger("production"))

	// Nothing online means nothing to refresh
	p.RefreshMirror(context.Background())
	req.Empty(mirror.refreshed)

	registry.Register(newTestSession("alice", "Alice"))
	p.RefreshMirror(context.Background())
	req.Len(mirror.refreshed, 1)
	req.Equal("alice", mirror.refreshed[0][0].UserID)
}
