package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/causerie-app/causerie/internal/repository"
)

// UserHandler serves the user profile endpoints.
type UserHandler struct {
	users  repository.UserRepository
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users repository.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger.Named("user_handler"),
	}
}

// GetMe handles GET /api/v1/users/me — the authenticated user's own profile.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromCtx(r.Context())
	if claims == nil {
		ErrUnauthorized(w)
		return
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		ErrUnauthorized(w)
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// The token outlived the account.
			ErrUnauthorized(w)
			return
		}
		h.logger.Error("fetching current user failed", zap.String("user_id", claims.UserID), zap.Error(err))
		ErrInternal(w)
		return
	}

	Ok(w, renderUser(user, true))
}

// List handles GET /api/v1/users — all users, public fields only.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.logger.Error("listing users failed", zap.Error(err))
		ErrInternal(w)
		return
	}

	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, renderUser(&users[i], false))
	}
	Ok(w, out)
}
