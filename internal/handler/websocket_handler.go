package handler

import (
	"log/slog"
	"net/http"

	"direct-chat/internal/middleware"
	"direct-chat/internal/observability"
	"direct-chat/internal/service"
	ws "direct-chat/internal/websocket"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		// In production, check against allowed origins
		return true
	},
}

// WebSocketHandler upgrades authenticated requests into realtime sessions
type WebSocketHandler struct {
	gateway     *ws.Gateway
	authService *service.AuthService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(gateway *ws.Gateway, authService *service.AuthService) *WebSocketHandler {
	return &WebSocketHandler{
		gateway:     gateway,
		authService: authService,
	}
}

// HandleConnection handles WebSocket upgrade and connection
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	// Get user ID from context (set by auth middleware)
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	// Get user info
	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		http.Error(w, `{"error":"User not found"}`, http.StatusUnauthorized)
		return
	}

	// Upgrade connection
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		observability.FromContext(r.Context()).Warn("websocket upgrade failed",
			slog.String("error", err.Error()))
		return
	}

	// Create client and register presence
	client := ws.NewClient(h.gateway, conn, userID, user.Username)
	h.gateway.Register(client)

	// Start client pumps
	go client.WritePump()
	go client.ReadPump()
}
