package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("fake connection closed")

// fakeConn stands in for a websocket connection so the hub can be exercised
// without a network socket. Inbound frames are fed through a channel; text
// frames written by the session's write pump come out of outbound.
type fakeConn struct {
	inbound  chan []byte
	outbound chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:  make(chan []byte, 16),
		outbound: make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.inbound:
		if !ok {
			return 0, nil, errConnClosed
		}
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	if messageType != websocket.TextMessage {
		return nil
	}
	select {
	case c.outbound <- data:
	default:
	}
	return nil
}

func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (c *fakeConn) SetReadLimit(int64)               {}
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// sendEvent feeds an inbound client event frame.
func (c *fakeConn) sendEvent(t *testing.T, event string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal event data: %v", err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	c.inbound <- frame
}

// nextEvent waits for the next outbound frame and decodes it.
func (c *fakeConn) nextEvent(t *testing.T) (Envelope, bool) {
	t.Helper()
	select {
	case data := <-c.outbound:
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("unmarshal outbound frame: %v", err)
		}
		return env, true
	case <-time.After(2 * time.Second):
		return Envelope{}, false
	}
}

// expectEvent waits until a frame with the given event name arrives,
// skipping unrelated ones.
func (c *fakeConn) expectEvent(t *testing.T, event string) Envelope {
	t.Helper()
	for {
		env, ok := c.nextEvent(t)
		if !ok {
			t.Fatalf("timed out waiting for %q", event)
		}
		if env.Event == event {
			return env
		}
	}
}

// expectSilence asserts no frame arrives within the window.
func (c *fakeConn) expectSilence(t *testing.T, window time.Duration) {
	t.Helper()
	select {
	case data := <-c.outbound:
		t.Fatalf("expected no event, got %s", data)
	case <-time.After(window):
	}
}
