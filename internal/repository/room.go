package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/causerie-app/causerie/internal/db"
)

// gormRoomRepository is the GORM implementation of RoomRepository.
type gormRoomRepository struct {
	db *gorm.DB
}

// NewRoomRepository returns a RoomRepository backed by the provided *gorm.DB.
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &gormRoomRepository{db: db}
}

// Create inserts a new room record. Returns ErrConflict if a room with the
// same name already exists.
func (r *gormRoomRepository) Create(ctx context.Context, room *db.Room) error {
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return fmt.Errorf("rooms: create: %w", err)
	}
	return nil
}

// GetByID retrieves a room by its UUID. Returns ErrNotFound if no record exists.
func (r *gormRoomRepository) GetByID(ctx context.Context, id uuid.UUID) (*db.Room, error) {
	var room db.Room
	err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("rooms: get by id: %w", err)
	}
	return &room, nil
}

// GetByName retrieves a room by its unique name. Returns ErrNotFound if no
// record exists.
func (r *gormRoomRepository) GetByName(ctx context.Context, name string) (*db.Room, error) {
	var room db.Room
	err := r.db.WithContext(ctx).First(&room, "name = ?", name).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("rooms: get by name: %w", err)
	}
	return &room, nil
}

// List returns all rooms, newest first.
func (r *gormRoomRepository) List(ctx context.Context) ([]db.Room, error) {
	var rooms []db.Room
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("rooms: list: %w", err)
	}
	return rooms, nil
}

// Delete removes a room. Messages in the room are removed by the foreign
// key cascade. Returns ErrNotFound if the room does not exist.
func (r *gormRoomRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&db.Room{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("rooms: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
