package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/causerie-app/causerie/internal/db"
	"github.com/causerie-app/causerie/internal/repository"
)

const (
	// roomNameMinLen / roomNameMaxLen bound room names on creation.
	roomNameMinLen = 3
	roomNameMaxLen = 50

	// roomDetailMessageLimit is how many trailing messages the room detail
	// endpoint returns. Older history is reachable over the websocket
	// replay, which returns everything.
	roomDetailMessageLimit = 50
)

// RoomHandler serves the room management endpoints.
type RoomHandler struct {
	rooms    repository.RoomRepository
	messages repository.MessageRepository
	logger   *zap.Logger
}

// NewRoomHandler creates a new RoomHandler.
func NewRoomHandler(rooms repository.RoomRepository, messages repository.MessageRepository, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{
		rooms:    rooms,
		messages: messages,
		logger:   logger.Named("room_handler"),
	}
}

// roomResponse is the public shape of a room in API responses.
type roomResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CreatedAt    string `json:"createdAt"`
	MessageCount int64  `json:"messageCount"`
}

// messageResponse mirrors the websocket rendering of a message: public
// sender fields only.
type messageResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Sender  struct {
		Username string `json:"username"`
		Color    string `json:"color"`
	} `json:"sender"`
	CreatedAt time.Time `json:"createdAt"`
}

func renderMessage(m *db.Message) messageResponse {
	var out messageResponse
	out.ID = m.ID.String()
	out.Content = m.Content
	out.Sender.Username = m.Sender.Username
	out.Sender.Color = m.Sender.Color
	out.CreatedAt = m.CreatedAt
	return out
}

// roomDetailResponse extends roomResponse with the trailing messages.
type roomDetailResponse struct {
	roomResponse
	Messages []messageResponse `json:"messages"`
}

// List handles GET /api/v1/rooms — all rooms, newest first, with message counts.
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.List(r.Context())
	if err != nil {
		h.logger.Error("listing rooms failed", zap.Error(err))
		ErrInternal(w)
		return
	}

	out := make([]roomResponse, 0, len(rooms))
	for i := range rooms {
		count, err := h.messages.CountByRoom(r.Context(), rooms[i].ID)
		if err != nil {
			h.logger.Error("counting room messages failed",
				zap.String("room_id", rooms[i].ID.String()),
				zap.Error(err),
			)
			ErrInternal(w)
			return
		}
		out = append(out, roomResponse{
			ID:           rooms[i].ID.String(),
			Name:         rooms[i].Name,
			CreatedAt:    rooms[i].CreatedAt.Format(time.RFC3339),
			MessageCount: count,
		})
	}
	Ok(w, out)
}

// GetByID handles GET /api/v1/rooms/{id} — the room with its trailing
// messages in ascending creation-time order.
func (h *RoomHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrBadRequest(w, "invalid room id")
		return
	}

	room, err := h.rooms.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("fetching room failed", zap.String("room_id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	msgs, err := h.messages.ListByRoom(r.Context(), id, roomDetailMessageLimit)
	if err != nil {
		h.logger.Error("fetching room messages failed", zap.String("room_id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}
	count, err := h.messages.CountByRoom(r.Context(), id)
	if err != nil {
		h.logger.Error("counting room messages failed", zap.String("room_id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	resp := roomDetailResponse{
		roomResponse: roomResponse{
			ID:           room.ID.String(),
			Name:         room.Name,
			CreatedAt:    room.CreatedAt.Format(time.RFC3339),
			MessageCount: count,
		},
		Messages: make([]messageResponse, 0, len(msgs)),
	}
	for i := range msgs {
		resp.Messages = append(resp.Messages, renderMessage(&msgs[i]))
	}
	Ok(w, resp)
}

// createRoomRequest is the JSON body expected by POST /api/v1/rooms.
type createRoomRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/v1/rooms. Room names are unique and bounded in
// length.
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if len(req.Name) < roomNameMinLen || len(req.Name) > roomNameMaxLen {
		ErrUnprocessable(w, "room name must be between 3 and 50 characters")
		return
	}

	room := &db.Room{Name: req.Name}
	if err := h.rooms.Create(r.Context(), room); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			ErrConflict(w, "a room with this name already exists")
			return
		}
		h.logger.Error("creating room failed", zap.String("name", req.Name), zap.Error(err))
		ErrInternal(w)
		return
	}

	Created(w, roomResponse{
		ID:        room.ID.String(),
		Name:      room.Name,
		CreatedAt: room.CreatedAt.Format(time.RFC3339),
	})
}

// Delete handles DELETE /api/v1/rooms/{id}. Messages are removed by the
// foreign key cascade. Live websocket membership is unaffected: the
// in-memory directory tracks liveness, not durable rooms.
func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrBadRequest(w, "invalid room id")
		return
	}

	if err := h.rooms.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("deleting room failed", zap.String("room_id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	NoContent(w)
}
