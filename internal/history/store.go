// Package history implements the gateway's message store over the GORM
// repositories. It is the only bridge between the in-memory realtime core
// and durable storage.
package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/causerie-app/causerie/internal/db"
	"github.com/causerie-app/causerie/internal/gateway"
	"github.com/causerie-app/causerie/internal/repository"
)

// Store persists and replays chat messages. It satisfies gateway.Store.
type Store struct {
	messages repository.MessageRepository
}

// NewStore creates a Store over the given message repository.
func NewStore(messages repository.MessageRepository) *Store {
	return &Store{messages: messages}
}

// Save persists one message and returns it rendered for broadcast. Room and
// sender ids must be valid UUIDs — a dangling room id surfaces as a foreign
// key error, which the pipeline reports to the sender as a failed send.
func (s *Store) Save(ctx context.Context, roomID string, sender gateway.Identity, content string) (*gateway.StoredMessage, error) {
	rid, err := uuid.Parse(roomID)
	if err != nil {
		return nil, fmt.Errorf("history: invalid room id %q: %w", roomID, err)
	}
	sid, err := uuid.Parse(sender.UserID)
	if err != nil {
		return nil, fmt.Errorf("history: invalid sender id %q: %w", sender.UserID, err)
	}

	msg := &db.Message{
		Content:  content,
		SenderID: sid,
		RoomID:   rid,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	return &gateway.StoredMessage{
		ID:      msg.ID.String(),
		Content: msg.Content,
		Sender: gateway.MessageSender{
			Username: sender.Username,
			Color:    sender.Color,
		},
		CreatedAt: msg.CreatedAt,
	}, nil
}

// ListByRoom returns the room's messages ascending by creation time,
// rendered with the public sender fields only. An unknown room yields an
// empty history, not an error — rooms may legitimately have no messages yet.
func (s *Store) ListByRoom(ctx context.Context, roomID string) ([]gateway.StoredMessage, error) {
	rid, err := uuid.Parse(roomID)
	if err != nil {
		return nil, fmt.Errorf("history: invalid room id %q: %w", roomID, err)
	}

	rows, err := s.messages.ListByRoom(ctx, rid, 0)
	if err != nil {
		return nil, err
	}

	out := make([]gateway.StoredMessage, 0, len(rows))
	for i := range rows {
		out = append(out, gateway.StoredMessage{
			ID:      rows[i].ID.String(),
			Content: rows[i].Content,
			Sender: gateway.MessageSender{
				Username: rows[i].Sender.Username,
				Color:    rows[i].Sender.Color,
			},
			CreatedAt: rows[i].CreatedAt,
		})
	}
	return out, nil
}
