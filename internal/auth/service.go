package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/causerie-app/causerie/internal/db"
	"github.com/causerie-app/causerie/internal/repository"
)

// defaultColor is assigned to users who register without choosing one.
const defaultColor = "#888888"

// Service is the entry point for all authentication operations.
// The REST API layer and the websocket gateway depend on Service, never on
// the JWTManager or repositories directly.
type Service struct {
	users      repository.UserRepository
	jwtManager *JWTManager
}

// NewService creates a Service with the given dependencies.
func NewService(users repository.UserRepository, jwtManager *JWTManager) *Service {
	return &Service{
		users:      users,
		jwtManager: jwtManager,
	}
}

// LoginResult carries everything the login endpoint returns to the client.
type LoginResult struct {
	AccessToken string
	User        *db.User
}

// Login validates username/password and returns an access token on success.
// The same ErrInvalidCredentials is returned for an unknown username and a
// wrong password to avoid user enumeration.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: fetching user by username: %w", err)
	}

	if !VerifyPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwtManager.GenerateAccessToken(user.ID.String(), user.Username, user.Color)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		// Login stamping is best-effort; the token is already issued.
		return &LoginResult{AccessToken: token, User: user}, nil
	}

	return &LoginResult{AccessToken: token, User: user}, nil
}

// Register creates a new user with a hashed password.
// Returns ErrUserExists if the username or email is already taken.
func (s *Service) Register(ctx context.Context, username, email, password, color string) (*db.User, error) {
	if color == "" {
		color = defaultColor
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &db.User{
		Username: username,
		Email:    email,
		Password: hashed,
		Color:    color,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("auth: creating user: %w", err)
	}

	return user, nil
}

// ValidateAccessToken parses and verifies a JWT access token.
// Used by the HTTP middleware and the websocket handshake.
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.jwtManager.ValidateAccessToken(tokenString)
}

// JWTManager exposes the underlying JWTManager for callers that need direct
// access, e.g. the websocket upgrade handler.
func (s *Service) JWTManager() *JWTManager {
	return s.jwtManager
}
