package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/docschat/internal/identity"
	"github.com/ashureev/docschat/internal/session"
)

type sendRequest struct {
	Query string `json:"query"`
}

type panelRequest struct {
	Open *bool `json:"open"`
}

// HandleGetSession handles GET /api/session.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctrl := h.sessions.Get(r.Context(), userID)
	JSON(w, http.StatusOK, ctrl.State())
}

// HandleSend handles POST /api/session/send. The handler blocks until the
// send settles and returns the resulting state; single-flight rejection is
// the controller's call, surfaced here as 409.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Rate-limit by userID so one client cannot starve the backend.
	if !h.limiter.Allow(userID) {
		ErrorCode(w, http.StatusTooManyRequests, "Too many requests. Please try again later.", "RATE_LIMIT")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if msg, ok := validateQuery(req.Query, h.maxQueryLen); !ok {
		ErrorCode(w, http.StatusBadRequest, msg, "INVALID_QUERY")
		return
	}

	ctrl := h.sessions.Get(r.Context(), userID)

	slog.Info("chat send",
		"user_id", userID,
		"query_length", len(req.Query),
	)

	err := ctrl.Send(r.Context(), req.Query)
	switch {
	case errors.Is(err, session.ErrEmptyQuery):
		// Whitespace-only input is a silent no-op.
		w.WriteHeader(http.StatusNoContent)
		return
	case errors.Is(err, session.ErrBusy):
		ErrorCode(w, http.StatusConflict, "a send is already in flight", "BUSY")
		return
	}

	JSON(w, http.StatusOK, ctrl.State())
}

// HandleClear handles POST /api/session/clear.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctrl := h.sessions.Get(r.Context(), userID)
	ctrl.Clear(r.Context())

	slog.Info("chat history cleared", "user_id", userID)
	JSON(w, http.StatusOK, ctrl.State())
}

// HandlePanel handles POST /api/session/panel. With a body of {"open":bool}
// the flag is set explicitly; with no usable body the flag is toggled.
func (h *Handler) HandlePanel(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctrl := h.sessions.Get(r.Context(), userID)

	var req panelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Open != nil {
		ctrl.SetPanelOpen(*req.Open)
	} else {
		ctrl.Toggle()
	}

	JSON(w, http.StatusOK, ctrl.State())
}
