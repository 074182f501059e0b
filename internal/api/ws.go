package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/causerie-app/causerie/internal/auth"
	"github.com/causerie-app/causerie/internal/gateway"
	"github.com/causerie-app/causerie/internal/transport"
)

// WSHandler handles the WebSocket upgrade endpoint GET /api/v1/ws.
// Authentication uses a JWT passed as the `token` query parameter instead of
// the Authorization header — browsers cannot set custom headers on WebSocket
// connections opened via the native WebSocket API.
//
// The handler pre-checks the token so obviously bad handshakes are refused
// with a plain 401 before the upgrade; the gateway registry remains the
// authority and verifies the token again at admission.
//
// Example connection URL:
//
//	ws://host/api/v1/ws?token=<jwt>
type WSHandler struct {
	gw     *gateway.Gateway
	jwtMgr *auth.JWTManager
	logger *zap.Logger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(gw *gateway.Gateway, jwtMgr *auth.JWTManager, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		gw:     gw,
		jwtMgr: jwtMgr,
		logger: logger.Named("ws_handler"),
	}
}

// ServeWS handles GET /api/v1/ws.
// It authenticates the request, upgrades the connection, and runs the
// session pumps. The handler blocks until the connection closes — this is
// expected for WebSocket handlers.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		ErrUnauthorized(w)
		return
	}

	claims, err := h.jwtMgr.ValidateAccessToken(token)
	if err != nil {
		ErrUnauthorized(w)
		return
	}

	sess, err := transport.NewSession(h.gw, w, r, h.logger)
	if err != nil {
		// The upgrader has already written the error response.
		h.logger.Warn("ws: upgrade failed",
			zap.String("username", claims.Username),
			zap.Error(err),
		)
		return
	}

	h.logger.Info("ws: client connected",
		zap.String("conn_id", sess.ID()),
		zap.String("username", claims.Username),
		zap.String("remote_addr", r.RemoteAddr),
	)

	// Run blocks until the connection closes. The read pump triggers the
	// gateway disconnect cascade on exit.
	sess.Run(token)

	h.logger.Info("ws: client disconnected",
		zap.String("conn_id", sess.ID()),
		zap.String("username", claims.Username),
	)
}
