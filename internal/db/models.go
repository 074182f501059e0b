package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// base contains the common fields shared by all models.
// ID uses UUID v7 (time-ordered) for efficient B-tree indexing and natural
// chronological ordering without a separate created_at sort. CreatedAt and
// UpdatedAt are managed automatically by GORM.
type base struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a new UUID v7 if the ID is not already set.
// This ensures every record has a valid time-ordered ID before insertion.
func (b *base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == (uuid.UUID{}) {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		b.ID = id
	}
	return nil
}

// User represents a registered chat user. Password holds the Argon2id hash
// in PHC string format — the plaintext never touches the database.
// Color is the display color attached to every message the user sends.
type User struct {
	base
	Username    string `gorm:"uniqueIndex;not null"`
	Email       string `gorm:"uniqueIndex;not null"`
	Password    string `gorm:"not null"`
	Color       string `gorm:"not null;default:'#888888'"`
	LastLoginAt *time.Time
}

// Room is a named broadcast scope. The row is the durable identity of a
// room — live membership is held in memory by the gateway directory and is
// intentionally not persisted (it is rebuilt from zero on restart).
type Room struct {
	base
	Name string `gorm:"uniqueIndex;not null"`
}

// Message is one persisted chat message. Messages are immutable after
// creation: UpdatedAt is written once by GORM and never changes.
// Deleting a room cascades to its messages (enforced in the migration).
type Message struct {
	base
	Content  string    `gorm:"not null"`
	SenderID uuid.UUID `gorm:"type:text;not null;index"`
	Sender   User      `gorm:"foreignKey:SenderID"`
	RoomID   uuid.UUID `gorm:"type:text;not null;index"`
}
