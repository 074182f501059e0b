package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/causerie-app/causerie/internal/db"
)

// gormMessageRepository is the GORM implementation of MessageRepository.
type gormMessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository returns a MessageRepository backed by the provided *gorm.DB.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

// Create inserts a new message record.
func (r *gormMessageRepository) Create(ctx context.Context, msg *db.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("messages: create: %w", err)
	}
	return nil
}

// ListByRoom returns messages for a room in ascending creation-time order,
// with the Sender association preloaded. When limit > 0 the result is the
// *last* limit messages of the room, still in ascending order — this is the
// shape history replay and the room detail endpoint need.
func (r *gormMessageRepository) ListByRoom(ctx context.Context, roomID uuid.UUID, limit int) ([]db.Message, error) {
	var messages []db.Message

	q := r.db.WithContext(ctx).Preload("Sender").Where("room_id = ?", roomID)

	if limit > 0 {
		// Fetch the newest N descending, then reverse in memory. Cheaper
		// than a COUNT + OFFSET and correct under concurrent inserts.
		if err := q.Order("created_at desc").Limit(limit).Find(&messages).Error; err != nil {
			return nil, fmt.Errorf("messages: list by room: %w", err)
		}
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
		return messages, nil
	}

	if err := q.Order("created_at asc").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("messages: list by room: %w", err)
	}
	return messages, nil
}

// CountByRoom returns the number of messages in a room.
// Used by the rooms REST endpoints to report message counts.
func (r *gormMessageRepository) CountByRoom(ctx context.Context, roomID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Message{}).
		Where("room_id = ?", roomID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("messages: count by room: %w", err)
	}
	return count, nil
}
