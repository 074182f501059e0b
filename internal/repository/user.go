package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/causerie-app/causerie/internal/db"
)

// gormUserRepository is the GORM implementation of UserRepository.
type gormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a UserRepository backed by the provided *gorm.DB.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// Create inserts a new user record into the database.
// Returns ErrConflict if the username or email is already taken.
func (r *gormUserRepository) Create(ctx context.Context, user *db.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return fmt.Errorf("users: create: %w", err)
	}
	return nil
}

// GetByID retrieves a user by its UUID. Returns ErrNotFound if no record exists.
func (r *gormUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*db.User, error) {
	var user db.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("users: get by id: %w", err)
	}
	return &user, nil
}

// GetByUsername retrieves a user by username. Returns ErrNotFound if no record exists.
func (r *gormUserRepository) GetByUsername(ctx context.Context, username string) (*db.User, error) {
	var user db.User
	err := r.db.WithContext(ctx).First(&user, "username = ?", username).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("users: get by username: %w", err)
	}
	return &user, nil
}

// GetByEmail retrieves a user by email address. Returns ErrNotFound if no record exists.
func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	var user db.User
	err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("users: get by email: %w", err)
	}
	return &user, nil
}

// List returns all users ordered by username.
func (r *gormUserRepository) List(ctx context.Context) ([]db.User, error) {
	var users []db.User
	if err := r.db.WithContext(ctx).Order("username asc").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return users, nil
}

// Update persists changes to an existing user record.
func (r *gormUserRepository) Update(ctx context.Context, user *db.User) error {
	result := r.db.WithContext(ctx).Save(user)
	if result.Error != nil {
		return fmt.Errorf("users: update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
