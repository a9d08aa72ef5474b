package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/docschat/internal/identity"
	"github.com/ashureev/docschat/internal/session"
	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// stateEvent is the wire format of a state push.
type stateEvent struct {
	Type  string        `json:"type"`
	State session.State `json:"state"`
}

// Handler upgrades /ws/session requests and streams session state.
type Handler struct {
	sessions      *session.Manager
	sm            *Manager
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a new WebSocket state stream handler.
func NewHandler(sessions *session.Manager, sm *Manager, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		sessions:      sessions,
		sm:            sm,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade. The client
// receives the current state on connect and a push after every mutation;
// inbound messages are ignored, the socket is one-way.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.sm.Register(userID, sessionID, ws)
	defer h.sm.Unregister(userID, sessionID, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Initial state so a reconnecting tab catches up immediately.
	ctrl := h.sessions.Get(ctx, userID)
	if err := writeState(ctx, ws, ctrl.State()); err != nil {
		slog.Debug("Failed to write initial state", "error", err, "user_id", userID)
		return
	}

	// Drain inbound frames until the client goes away.
	for {
		if _, _, err := ws.Read(ctx); err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Debug("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}
	}
}

// Broadcast pushes a state snapshot to every connection the user has open.
// Wired as the session manager's change hook.
func (h *Handler) Broadcast(userID string, st session.State) {
	for _, conn := range h.sm.Connections(userID) {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := writeState(ctx, conn, st); err != nil {
			slog.Debug("State push failed", "error", err, "user_id", userID)
		}
		cancel()
	}
}

func writeState(ctx context.Context, ws *websocket.Conn, st session.State) error {
	data, err := json.Marshal(stateEvent{Type: "state", State: st})
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
