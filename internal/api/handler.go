// Package api provides HTTP handlers for the docs chat API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ashureev/docschat/internal/config"
	"github.com/ashureev/docschat/internal/session"
	"github.com/go-chi/chi/v5"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size.
const defaultMaxRequestBodySize = 1 << 20 // 1MB

// BackendProber checks reachability of the remote assistant service.
type BackendProber interface {
	Health(ctx context.Context) error
}

// Handler exposes the session facade over HTTP. All session mutation goes
// through the actions registered here; there is no other mutation path.
type Handler struct {
	sessions    *session.Manager
	backend     BackendProber
	limiter     *RateLimiter
	maxBody     int64
	maxQueryLen int
}

// NewHandler creates a new Handler with its dependencies.
func NewHandler(sessions *session.Manager, backend BackendProber, cfg *config.Config) *Handler {
	maxBody := int64(defaultMaxRequestBodySize)
	maxQueryLen := defaultMaxQueryLength
	limit := 10
	window := config.DefaultRateLimitWindow

	if cfg != nil {
		if cfg.MaxRequestBodySize > 0 {
			maxBody = cfg.MaxRequestBodySize
		}
		if cfg.MaxQueryLength > 0 {
			maxQueryLen = cfg.MaxQueryLength
		}
		if cfg.RateLimit.RequestsPerWindow > 0 {
			limit = cfg.RateLimit.RequestsPerWindow
		}
		if cfg.RateLimit.WindowDuration > 0 {
			window = cfg.RateLimit.WindowDuration
		}
	}

	return &Handler{
		sessions:    sessions,
		backend:     backend,
		limiter:     NewRateLimiter(limit, window),
		maxBody:     maxBody,
		maxQueryLen: maxQueryLen,
	}
}

// RegisterRoutes registers session facade and health routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", h.HandleGetSession)
		r.Post("/send", h.HandleSend)
		r.Post("/clear", h.HandleClear)
		r.Post("/panel", h.HandlePanel)
	})
	r.Get("/api/health", h.HandleHealth)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// ErrorCode writes a JSON error response carrying a machine code.
func ErrorCode(w http.ResponseWriter, status int, message, code string) {
	JSON(w, status, map[string]string{"error": message, "code": code})
}
