package api

import (
	"context"
	"net/http"
	"time"

	"github.com/technosupport/control-center/internal/stream"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db  Pinger
	hub *stream.Hub
}

func NewHealthHandler(db Pinger, hub *stream.Hub) *HealthHandler {
	return &HealthHandler{db: db, hub: hub}
}

// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{"status": "ok"}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = err.Error()
		}
	}
	if h.hub != nil {
		body["subscribers"] = h.hub.Count()
	}
	respondJSON(w, status, body)
}
