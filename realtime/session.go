package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"parley/chat-service/utils"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size.
	maxMessageSize = 4096
)

// Conn is the subset of *websocket.Conn the session uses, extracted so the
// hub can be exercised in tests without a network socket.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Session is one live authenticated websocket connection. Delivery to a
// session is a non-blocking enqueue onto its send channel; the write pump is
// the only goroutine that touches the socket for writes.
type Session struct {
	ID          string
	UserID      string
	Username    string
	ConnectedAt time.Time

	conn         Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	teardownOnce sync.Once
	logger       *utils.Logger
}

func NewSession(conn Conn, userID, username string, sendBuffer int, logger *utils.Logger) *Session {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		Username:    username,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Enqueue hands a payload to the session's send path. It never blocks: a
// closed session or a full buffer drops the payload and reports false.
func (s *Session) Enqueue(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- payload:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}

// Close tears the transport down. Safe to call more than once and
// concurrently with in-flight enqueues.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Done is closed once the session is shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// WritePump drains the send channel onto the socket and keeps the connection
// alive with pings. It exits when the session closes or a write fails.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debug("write failed, closing session", "session_id", s.ID, "error", err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// ReadPump reads inbound frames and routes each decoded envelope to onEvent.
// It returns when the peer disconnects or the session is closed; the caller
// runs teardown after it returns.
func (s *Session) ReadPump(onEvent func(Envelope)) {
	defer s.Close()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.logger.Debug("read failed", "session_id", s.ID, "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.SendError("malformed event")
			continue
		}
		onEvent(env)
	}
}

// SendError pushes a connection-scoped error event. Errors never cross
// connection boundaries.
func (s *Session) SendError(message string) {
	payload, err := Encode(EventError, ErrorNotice{Message: message})
	if err != nil {
		return
	}
	s.Enqueue(payload)
}
