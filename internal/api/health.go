package api

import (
	"net/http"
	"time"
)

// healthResponse reports service status plus backend reachability.
type healthResponse struct {
	Status    string `json:"status"`
	Backend   bool   `json:"backend"`
	Timestamp int64  `json:"timestamp"`
}

// HandleHealth handles GET /api/health. The backend probe degrades the
// reported status but never fails the endpoint itself.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	backendUp := false
	if h.backend != nil {
		backendUp = h.backend.Health(r.Context()) == nil
	}

	status := "healthy"
	if !backendUp {
		status = "degraded"
	}

	JSON(w, http.StatusOK, healthResponse{
		Status:    status,
		Backend:   backendUp,
		Timestamp: time.Now().Unix(),
	})
}
