package gateway

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Store is the persistence collaborator. The gateway treats its failures as
// transient: they are reported to the originating connection and never
// retried internally. The store is the only component performing durable
// writes — everything else in this package is in-memory authority that is
// rebuilt from zero on restart.
type Store interface {
	// Save persists a message and returns it with its assigned id and
	// creation timestamp.
	Save(ctx context.Context, roomID string, sender Identity, content string) (*StoredMessage, error)

	// ListByRoom returns the room's messages in ascending creation-time order.
	ListByRoom(ctx context.Context, roomID string) ([]StoredMessage, error)
}

// Pipeline validates incoming chat messages, persists them through the
// store, and fans them out to the room.
type Pipeline struct {
	store  Store
	rooms  *Directory
	logger *zap.Logger
}

// NewPipeline creates a Pipeline over the given store and room directory.
func NewPipeline(store Store, rooms *Directory, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		store:  store,
		rooms:  rooms,
		logger: logger.Named("pipeline"),
	}
}

// Submit validates, persists, and broadcasts one chat message.
//
// The connection must carry a verified identity (ErrUnauthenticated
// otherwise — the connection itself stays open), the room id must be set
// (ErrNoRoom) and the content non-empty (ErrEmptyMessage). A store failure
// is returned to the caller and nothing is broadcast.
//
// Persist and fan-out run under the room's ordering lock, so the broadcast
// order of a room equals its submission order, and the rendered message is
// delivered to every member including the sender. The rendered payload
// carries only the public sender fields, never the raw identity.
func (p *Pipeline) Submit(ctx context.Context, conn *Connection, roomID, content string) (*StoredMessage, error) {
	if conn.Identity().UserID == "" {
		// Admission attaches identity unconditionally, so this is only
		// reachable for connections constructed outside Registry.Admit.
		return nil, ErrUnauthenticated
	}
	if roomID == "" {
		return nil, ErrNoRoom
	}
	if content == "" {
		return nil, ErrEmptyMessage
	}

	var saved *StoredMessage
	err := p.rooms.BroadcastPrepared(ctx, roomID, func(ctx context.Context) (Event, error) {
		msg, err := p.store.Save(ctx, roomID, conn.Identity(), content)
		if err != nil {
			return Event{}, fmt.Errorf("gateway: persisting message: %w", err)
		}
		saved = msg
		return Event{Name: EventMessage, Payload: msg}, nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Debug("message broadcast",
		zap.String("room_id", roomID),
		zap.String("message_id", saved.ID),
		zap.String("sender", conn.Identity().Username),
	)
	return saved, nil
}

// History returns the room's full message history as a message-history
// event, ascending by creation time. Directory.Join calls this under the
// room lock so replay cannot interleave with live broadcasts.
func (p *Pipeline) History(ctx context.Context, roomID string) (Event, error) {
	messages, err := p.store.ListByRoom(ctx, roomID)
	if err != nil {
		return Event{}, fmt.Errorf("gateway: loading history: %w", err)
	}
	if messages == nil {
		messages = []StoredMessage{}
	}
	return Event{Name: EventMessageHistory, Payload: messages}, nil
}
