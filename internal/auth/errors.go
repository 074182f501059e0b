package auth

import "errors"

// Sentinel errors returned by the auth service.
// Callers should use errors.Is for comparison.
var (
	// ErrInvalidCredentials is returned when username/password do not match.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrUserNotFound is returned when no user exists for the given identifier.
	ErrUserNotFound = errors.New("auth: user not found")

	// ErrUserExists is returned by Register when the username or email is
	// already taken.
	ErrUserExists = errors.New("auth: user already exists")

	// ErrTokenExpired is returned when an access token has expired.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrTokenInvalid is returned when a token cannot be parsed or verified.
	ErrTokenInvalid = errors.New("auth: token invalid")
)
