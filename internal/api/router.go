package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/causerie-app/causerie/internal/auth"
	"github.com/causerie-app/causerie/internal/gateway"
	"github.com/causerie-app/causerie/internal/repository"
)

// RouterConfig holds all dependencies needed to build the HTTP router.
// It is populated in main.go after all components are initialized and
// passed to NewRouter as a single struct to keep the constructor signature
// manageable as the number of dependencies grows.
type RouterConfig struct {
	AuthService *auth.Service
	Gateway     *gateway.Gateway
	Logger      *zap.Logger

	// Repositories — used directly by handlers that do not need service-layer logic.
	Users    repository.UserRepository
	Rooms    repository.RoomRepository
	Messages repository.MessageRepository
}

// NewRouter builds and returns the fully configured Chi router.
// All API routes are registered under /api/v1; the Prometheus scrape
// endpoint is served from /metrics.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// --- Global middleware ---
	// RequestID generates a unique ID for each request, used in logs and
	// response headers for tracing.
	r.Use(middleware.RequestID)

	// RealIP extracts the real client IP from X-Forwarded-For or X-Real-IP
	// headers when the server runs behind a reverse proxy.
	r.Use(middleware.RealIP)

	// RequestLogger logs every request with method, path, status and latency.
	r.Use(RequestLogger(cfg.Logger))

	// Recoverer catches panics in handlers, logs them, and returns a 500
	// instead of crashing the server.
	r.Use(middleware.Recoverer)

	// --- Initialize handlers ---
	authHandler := NewAuthHandler(cfg.AuthService, cfg.Logger)
	userHandler := NewUserHandler(cfg.Users, cfg.Logger)
	roomHandler := NewRoomHandler(cfg.Rooms, cfg.Messages, cfg.Logger)
	wsHandler := NewWSHandler(cfg.Gateway, cfg.AuthService.JWTManager(), cfg.Logger)

	// jwtMgr is used by the Authenticate middleware to validate Bearer tokens.
	jwtMgr := cfg.AuthService.JWTManager()

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {

		// --- Public routes (no authentication required) ---
		r.Group(func(r chi.Router) {
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/register", authHandler.Register)
		})

		// The websocket endpoint authenticates via the token query
		// parameter inside the handler, not the Bearer middleware.
		r.Get("/ws", wsHandler.ServeWS)

		// --- Authenticated routes (valid JWT required) ---
		r.Group(func(r chi.Router) {
			r.Use(Authenticate(jwtMgr))

			// Users
			r.Get("/users/me", userHandler.GetMe)
			r.Get("/users", userHandler.List)

			// Rooms
			r.Get("/rooms", roomHandler.List)
			r.Post("/rooms", roomHandler.Create)
			r.Get("/rooms/{id}", roomHandler.GetByID)
			r.Delete("/rooms/{id}", roomHandler.Delete)
		})
	})

	return r
}
