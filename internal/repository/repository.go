// Package repository provides the data access layer over GORM.
// Each repository is a small interface with a GORM-backed implementation;
// handlers and services depend on the interfaces so tests can substitute
// in-memory fakes without a database.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/causerie-app/causerie/internal/db"
)

// ErrNotFound is returned by repository methods when the requested record
// does not exist in the database. Callers should check for this error
// explicitly using errors.Is to distinguish missing records from other
// database errors.
//
//	user, err := repo.GetByID(ctx, id)
//	if errors.Is(err, repository.ErrNotFound) {
//	    handle not found
//	}
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when an insert violates a unique constraint,
// for example when registering a username that already exists or creating
// a room with a taken name.
var ErrConflict = errors.New("record already exists")

// UserRepository manages user records.
type UserRepository interface {
	Create(ctx context.Context, user *db.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetByUsername(ctx context.Context, username string) (*db.User, error)
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	List(ctx context.Context) ([]db.User, error)
	Update(ctx context.Context, user *db.User) error
}

// RoomRepository manages room records.
type RoomRepository interface {
	Create(ctx context.Context, room *db.Room) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.Room, error)
	GetByName(ctx context.Context, name string) (*db.Room, error)
	List(ctx context.Context) ([]db.Room, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// MessageRepository manages message records. Messages are append-only:
// there is no update or single-row delete, only the room cascade.
type MessageRepository interface {
	Create(ctx context.Context, msg *db.Message) error
	ListByRoom(ctx context.Context, roomID uuid.UUID, limit int) ([]db.Message, error)
	CountByRoom(ctx context.Context, roomID uuid.UUID) (int64, error)
}
