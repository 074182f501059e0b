package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/causerie-app/causerie/internal/auth"
	"github.com/causerie-app/causerie/internal/db"
)

// AuthHandler groups the authentication HTTP handlers.
// It depends on auth.Service as the single entry point for all auth operations.
type AuthHandler struct {
	svc    *auth.Service
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *auth.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		logger: logger.Named("auth_handler"),
	}
}

// userResponse is the public shape of a user in API responses.
// Never includes the password hash or email of other users.
type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Color    string `json:"color"`
}

func renderUser(u *db.User, includeEmail bool) userResponse {
	resp := userResponse{
		ID:       u.ID.String(),
		Username: u.Username,
		Color:    u.Color,
	}
	if includeEmail {
		resp.Email = u.Email
	}
	return resp
}

// loginRequest is the JSON body expected by POST /api/v1/auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the JSON body returned on successful login. The access
// token doubles as the websocket handshake token.
type loginResponse struct {
	AccessToken string       `json:"access_token"`
	User        userResponse `json:"user"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		ErrBadRequest(w, "username and password are required")
		return
	}

	result, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			ErrUnauthorized(w)
			return
		}
		h.logger.Error("login failed", zap.String("username", req.Username), zap.Error(err))
		ErrInternal(w)
		return
	}

	Ok(w, loginResponse{
		AccessToken: result.AccessToken,
		User:        renderUser(result.User, true),
	})
}

// registerRequest is the JSON body expected by POST /api/v1/auth/register.
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Color    string `json:"color"`
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	switch {
	case req.Username == "":
		ErrBadRequest(w, "username is required")
		return
	case req.Email == "":
		ErrBadRequest(w, "email is required")
		return
	case len(req.Password) < 8:
		ErrUnprocessable(w, "password must be at least 8 characters")
		return
	}

	user, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password, req.Color)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			ErrConflict(w, "username or email already taken")
			return
		}
		h.logger.Error("registration failed", zap.String("username", req.Username), zap.Error(err))
		ErrInternal(w)
		return
	}

	Created(w, renderUser(user, true))
}
