// Package gateway implements the realtime core of the Causerie server: the
// connection registry, presence tracker, room directory, message pipeline,
// and signaling relay, tied together by an explicit event dispatch table.
//
// The transport layer feeds it three boundary events — Connect, Disconnect,
// HandleEvent — and the gateway produces outbound events on the sessions it
// was handed. All state here is in-memory and authoritative for "who is
// online, in which room, right now"; it is rebuilt from zero on restart.
// Durable writes go through the Store collaborator only.
//
// Locking is fine-grained on purpose: registry, presence, directory, and
// each room carry their own lock, so unrelated rooms and unrelated concerns
// never serialize on a central mutex.
package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/causerie-app/causerie/internal/metrics"
)

// handlerFunc processes one decoded client event for an admitted connection.
type handlerFunc func(ctx context.Context, conn *Connection, data json.RawMessage)

// Gateway wires the core components together and dispatches client events.
type Gateway struct {
	registry *Registry
	presence *Presence
	rooms    *Directory
	pipeline *Pipeline
	relay    *Relay
	metrics  *metrics.Set
	logger   *zap.Logger

	// handlers maps wire event names to their handlers. Built once in New;
	// read-only afterwards. The table makes the protocol surface explicit —
	// an event name not present here is not part of the protocol.
	handlers map[string]handlerFunc
}

// New assembles a Gateway from a token verifier and a message store.
func New(verifier Verifier, store Store, set *metrics.Set, logger *zap.Logger) *Gateway {
	logger = logger.Named("gateway")

	registry := NewRegistry(verifier, logger)
	presence := NewPresence()
	rooms := NewDirectory(registry, logger)

	g := &Gateway{
		registry: registry,
		presence: presence,
		rooms:    rooms,
		pipeline: NewPipeline(store, rooms, logger),
		relay:    NewRelay(registry, presence, logger),
		metrics:  set,
		logger:   logger,
	}

	g.handlers = map[string]handlerFunc{
		EventJoinRoom: g.handleJoinRoom,
		EventMessage:  g.handleMessage,
		EventSignal:   g.handleSignal,
	}

	return g
}

// Connect admits a new transport session. The token is verified before the
// connection enters the registry — there is no anonymous admission. On
// success the connection counts toward presence immediately (identity is
// attached at admission, so "count only after identity" and "count at
// connect" coincide), and if it is the user's first connection the new
// distinct-user count is broadcast to every connection.
func (g *Gateway) Connect(sess Session, token string) (*Connection, error) {
	conn, err := g.registry.Admit(sess, token)
	if err != nil {
		g.logger.Warn("connection refused",
			zap.String("conn_id", sess.ID()),
			zap.Error(err),
		)
		return nil, err
	}

	first := g.presence.Attach(conn.Identity().Username, conn.ID())
	if first {
		// Attach completed above, so the count already includes this user.
		g.registry.Broadcast(Event{Name: EventOnlineUsersCount, Payload: g.presence.Count()})
	}

	g.logger.Info("connection admitted",
		zap.String("conn_id", conn.ID()),
		zap.String("username", conn.Identity().Username),
		zap.Bool("first_for_user", first),
	)
	return conn, nil
}

// Disconnect runs the cleanup cascade for a closing connection. It is
// idempotent: the registry hands the connection out for cleanup exactly
// once, so concurrent triggers (transport error, explicit close, shutdown)
// collapse into a single cascade.
//
// Ordering: room membership and presence are removed first; the
// user-disconnected and online-users-count notices are emitted only after
// the removal they describe, so every broadcast reflects completed cleanup.
func (g *Gateway) Disconnect(connID string) {
	conn, ok := g.registry.Remove(connID)
	if !ok {
		return
	}

	g.rooms.LeaveAll(connID)

	userKey, last := g.presence.Detach(connID)
	if last {
		g.registry.Broadcast(Event{Name: EventOnlineUsersCount, Payload: g.presence.Count()})
	}

	// Cancel any pending outbound delivery to this connection.
	conn.sess.Close()

	g.logger.Info("connection closed",
		zap.String("conn_id", connID),
		zap.String("username", userKey),
		zap.Bool("last_for_user", last),
	)
}

// HandleEvent dispatches one inbound client event. Events from unknown
// connections and unknown event names are dropped with a log line; payload
// decoding and validation happen inside the per-event handlers.
func (g *Gateway) HandleEvent(ctx context.Context, connID, name string, data json.RawMessage) {
	conn, ok := g.registry.Get(connID)
	if !ok {
		g.logger.Debug("event from unknown connection",
			zap.String("conn_id", connID),
			zap.String("event", name),
		)
		return
	}

	handler, ok := g.handlers[name]
	if !ok {
		g.logger.Warn("unknown event",
			zap.String("conn_id", connID),
			zap.String("event", name),
		)
		return
	}

	handler(ctx, conn, data)
}

// handleJoinRoom processes a join-room event: the connection is added to
// the room, receives the full message history, and the other members are
// notified. Re-joining is a no-op.
func (g *Gateway) handleJoinRoom(ctx context.Context, conn *Connection, data json.RawMessage) {
	payload, err := decodeJoinRoom(data)
	if err != nil || payload.RoomID == "" {
		g.emitError(conn, "a room id is required to join")
		return
	}

	joined, err := g.rooms.Join(ctx, payload.RoomID, conn.ID(), func(ctx context.Context) (Event, error) {
		return g.pipeline.History(ctx, payload.RoomID)
	})
	if err != nil {
		g.logger.Error("join failed",
			zap.String("conn_id", conn.ID()),
			zap.String("room_id", payload.RoomID),
			zap.Error(err),
		)
		g.emitError(conn, "failed to join room")
		return
	}

	if joined {
		g.logger.Info("joined room",
			zap.String("conn_id", conn.ID()),
			zap.String("room_id", payload.RoomID),
			zap.String("username", conn.Identity().Username),
		)
	}
}

// handleMessage processes a message event through the pipeline. All
// failures — validation, missing identity, store errors — are reported to
// the sender only; nothing is broadcast on failure.
func (g *Gateway) handleMessage(ctx context.Context, conn *Connection, data json.RawMessage) {
	var payload MessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		g.metrics.MessageErrorsTotal.Inc()
		g.emitError(conn, "malformed message payload")
		return
	}

	_, err := g.pipeline.Submit(ctx, conn, payload.RoomID, payload.Message)
	if err != nil {
		g.metrics.MessageErrorsTotal.Inc()
		switch {
		case errors.Is(err, ErrUnauthenticated):
			g.emitError(conn, "authentication required")
		case errors.Is(err, ErrNoRoom):
			g.emitError(conn, "a room id is required")
		case errors.Is(err, ErrEmptyMessage):
			g.emitError(conn, "message content must not be empty")
		default:
			g.logger.Error("message submission failed",
				zap.String("conn_id", conn.ID()),
				zap.String("room_id", payload.RoomID),
				zap.Error(err),
			)
			g.emitError(conn, "failed to send message")
		}
		return
	}

	g.metrics.MessagesTotal.Inc()
}

// handleSignal relays a signaling envelope. Malformed payloads and
// unresolved targets are dropped without an error to the sender — relay is
// best-effort by contract.
func (g *Gateway) handleSignal(_ context.Context, conn *Connection, data json.RawMessage) {
	var payload SignalPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.UserID == "" {
		g.metrics.SignalsDroppedTotal.Inc()
		g.logger.Debug("malformed signal payload dropped",
			zap.String("conn_id", conn.ID()),
		)
		return
	}

	if g.relay.Relay(conn.ID(), payload.UserID, payload.Signal) {
		g.metrics.SignalsRelayedTotal.Inc()
	} else {
		g.metrics.SignalsDroppedTotal.Inc()
	}
}

// emitError sends a message-error event to a single connection.
func (g *Gateway) emitError(conn *Connection, msg string) {
	if err := conn.Enqueue(Event{Name: EventMessageError, Payload: msg}); err != nil {
		g.logger.Debug("error event enqueue failed",
			zap.String("conn_id", conn.ID()),
			zap.Error(err),
		)
	}
}

// ConnectionCount returns the number of admitted connections.
func (g *Gateway) ConnectionCount() int { return g.registry.Len() }

// PresenceCount returns the number of distinct online users.
func (g *Gateway) PresenceCount() int { return g.presence.Count() }

// RoomCount returns the number of materialized rooms.
func (g *Gateway) RoomCount() int { return g.rooms.RoomCount() }
