package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/technosupport/control-center/internal/data"
	"github.com/technosupport/control-center/internal/events"
	"go.uber.org/zap"
)

type EventService interface {
	CreateEvent(ctx context.Context, req events.CreateEventRequest) (*data.Event, error)
	CreateTrafficEvent(ctx context.Context, req events.TrafficEventRequest) (*data.Event, error)
	Query(ctx context.Context, c events.Criteria) *data.EventPage
	ListByCamera(ctx context.Context, cameraID string) ([]*data.Event, error)
	Get(ctx context.Context, id uuid.UUID) (*data.Event, error)
}

type EventHandler struct {
	Service EventService
	logger  *zap.Logger
}

func NewEventHandler(svc EventService, logger *zap.Logger) *EventHandler {
	return &EventHandler{Service: svc, logger: logger}
}

// POST /api/events
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req events.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	e, err := h.Service.CreateEvent(r.Context(), req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, e)
}

// POST /api/events/traffic
func (h *EventHandler) CreateTraffic(w http.ResponseWriter, r *http.Request) {
	var req events.TrafficEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	e, err := h.Service.CreateTrafficEvent(r.Context(), req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, e)
}

// GET /api/events?cameraId=&eventType=&startDate=&endDate=&severity=&page=&size=
// Always 200: store failures come back as an empty page.
func (h *EventHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := h.Service.Query(r.Context(), events.Criteria{
		CameraID:    q.Get("cameraId"),
		EventType:   q.Get("eventType"),
		StartDate:   q.Get("startDate"),
		EndDate:     q.Get("endDate"),
		MinSeverity: queryInt(r, "severity", 0),
		Page:        queryInt(r, "page", 0),
		Size:        queryInt(r, "size", events.DefaultPageSize),
	})
	respondJSON(w, http.StatusOK, page)
}

// GET /api/events/camera/{cameraId}
func (h *EventHandler) ListByCamera(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListByCamera(r.Context(), chi.URLParam(r, "cameraId"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// GET /api/events/{id}
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid event ID")
		return
	}
	e, err := h.Service.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}
