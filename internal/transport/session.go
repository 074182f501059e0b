// Package transport implements the websocket side of a gateway connection.
// Each session runs two goroutines: readPump (decodes inbound frames and
// feeds them to the gateway dispatch) and writePump (serialises outbound
// events onto the wire and keeps the connection alive with pings). It uses
// gorilla/websocket under the hood.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/causerie-app/causerie/internal/gateway"
)

const (
	// writeWait is the maximum time allowed to write a message to the peer.
	// If the write does not complete within this window the connection is
	// closed — this prevents a stalled client from blocking the writePump.
	writeWait = 10 * time.Second

	// pongWait is how long the server waits for a pong reply after sending
	// a ping. The connection is closed if no pong arrives in time.
	pongWait = 60 * time.Second

	// pingPeriod is how often the server sends a ping frame to the client.
	// Must be less than pongWait so the client has time to reply.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum inbound frame size in bytes. Chat
	// messages and signaling envelopes fit comfortably; anything larger is
	// a misbehaving client.
	maxMessageSize = 16 * 1024

	// sendBufferSize is the capacity of the per-session outbound channel.
	// If the buffer fills up the client is considered too slow and the
	// session closes itself so it cannot stall fan-out to other members.
	sendBufferSize = 64
)

// Sentinel errors returned by Enqueue.
var (
	// ErrSessionClosed is returned when enqueueing to a closed session.
	ErrSessionClosed = errors.New("transport: session closed")

	// ErrSlowConsumer is returned when the outbound buffer is full. The
	// session has already initiated its own shutdown when this is returned.
	ErrSlowConsumer = errors.New("transport: send buffer full")
)

// upgrader performs the HTTP → WebSocket protocol upgrade.
// CheckOrigin always returns true — origin validation is the responsibility
// of the reverse proxy (nginx, Caddy) in production deployments.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Session is one live websocket connection implementing gateway.Session.
// The send channel is the handoff point between gateway fan-out and the
// writePump; Enqueue never blocks on it.
type Session struct {
	id     string
	conn   *websocket.Conn
	gw     *gateway.Gateway
	send   chan gateway.Event
	logger *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewSession upgrades the HTTP request to a websocket and returns the
// session. Returns an error if the upgrade fails (the upgrader has already
// written the error response in that case).
func NewSession(gw *gateway.Gateway, w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*Session, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	return &Session{
		id:     id,
		conn:   conn,
		gw:     gw,
		send:   make(chan gateway.Event, sendBufferSize),
		logger: logger.With(zap.String("conn_id", id), zap.String("remote_addr", r.RemoteAddr)),
		done:   make(chan struct{}),
	}, nil
}

// ID returns the transport-assigned connection id.
func (s *Session) ID() string { return s.id }

// Enqueue implements gateway.Session. It never blocks: a closed session
// returns ErrSessionClosed, and a full buffer closes the session and
// returns ErrSlowConsumer so the gateway's fan-out is never stalled by one
// slow reader.
func (s *Session) Enqueue(ev gateway.Event) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.send <- ev:
		return nil
	default:
		s.logger.Warn("send buffer full, disconnecting slow consumer",
			zap.String("event", ev.Name),
		)
		s.Close()
		return ErrSlowConsumer
	}
}

// Close implements gateway.Session. It tears the websocket down and unblocks
// both pumps; the disconnect cascade runs via readPump's exit path. Safe to
// call any number of times from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Run admits the session to the gateway and pumps frames until the
// connection closes. It blocks; the HTTP handler calls it after a
// successful upgrade. If admission fails the client receives a close frame
// with a policy-violation code and the session ends without ever joining
// the gateway.
func (s *Session) Run(token string) {
	if _, err := s.gw.Connect(s, token); err != nil {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		s.Close()
		return
	}

	go s.writePump()
	s.readPump()
}

// readPump reads inbound frames, decodes the event envelope, and hands it
// to the gateway dispatch. When the loop exits — connection closed, read
// error, oversized frame — the disconnect cascade runs exactly once.
func (s *Session) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.Close()
		s.gw.Disconnect(s.id)
	}()

	s.conn.SetReadLimit(maxMessageSize)

	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Warn("ws: failed to set read deadline", zap.Error(err))
		return
	}

	s.conn.SetPongHandler(func(string) error {
		// Reset the deadline each time a pong arrives so the connection
		// stays alive as long as the client is responsive.
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				s.logger.Warn("ws: unexpected close", zap.Error(err))
			}
			return
		}

		var frame gateway.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			s.logger.Debug("ws: malformed frame dropped")
			continue
		}

		s.gw.HandleEvent(ctx, s.id, frame.Event, frame.Data)
	}
}

// writePump forwards events from the send channel to the wire and sends
// periodic pings so readPump can detect stale connections.
//
// writePump is the only goroutine that writes to conn — gorilla/websocket
// connections are not safe for concurrent writes.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case ev := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.logger.Warn("ws: failed to set write deadline", zap.Error(err))
				return
			}
			if err := s.conn.WriteJSON(ev); err != nil {
				s.logger.Warn("ws: write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.logger.Warn("ws: failed to set write deadline", zap.Error(err))
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Warn("ws: ping error", zap.Error(err))
				return
			}

		case <-s.done:
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
