package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"edalens/internal/config"
	apierrors "edalens/internal/errors"
	ws "edalens/internal/websocket"
)

// WebSocketHandler upgrades connections and registers clients with the hub
type WebSocketHandler struct {
	hub          *ws.Hub
	cfg          *config.Config
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	upgrader     websocket.Upgrader
}

// NewWebSocketHandler creates the websocket endpoint handler
func NewWebSocketHandler(hub *ws.Hub, cfg *config.Config, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *WebSocketHandler {
	allowed := make(map[string]struct{}, len(cfg.Security.AllowedOrigins))
	for _, origin := range cfg.Security.AllowedOrigins {
		allowed[origin] = struct{}{}
	}

	return &WebSocketHandler{
		hub:          hub,
		cfg:          cfg,
		logger:       logger.With(slog.String("component", "websocket_handler")),
		errorHandler: errorHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					// Non-browser clients send no Origin header
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// ServeWS handles GET /ws. The connection is bound to the request's session
// so report events reach only the tabs of the browser that uploaded.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := SessionFromRequest(r, h.cfg.Session)
	if sessionID == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("session", "A session cookie is required before connecting"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr))
		return
	}

	client := ws.NewClient(h.hub, conn, sessionID, h.cfg.WebSocket, h.logger)
	h.hub.Register(client)
	client.Start()
}
