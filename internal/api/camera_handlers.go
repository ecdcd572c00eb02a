package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/technosupport/control-center/internal/cameras"
	"github.com/technosupport/control-center/internal/data"
	"github.com/technosupport/control-center/internal/middleware"
	"go.uber.org/zap"
)

type CameraService interface {
	List(ctx context.Context, userID uuid.UUID) ([]*data.Camera, error)
	Get(ctx context.Context, id string, userID uuid.UUID) (*data.Camera, error)
	Create(ctx context.Context, req cameras.CameraRequest, userID uuid.UUID) (*data.Camera, error)
	Update(ctx context.Context, id string, req cameras.CameraRequest, userID uuid.UUID) (*data.Camera, error)
	UpdateStatus(ctx context.Context, id, status string, userID uuid.UUID) (*data.Camera, error)
	Delete(ctx context.Context, id string, userID uuid.UUID) error
}

type CameraHandler struct {
	Service CameraService
	logger  *zap.Logger
}

func NewCameraHandler(svc CameraService, logger *zap.Logger) *CameraHandler {
	return &CameraHandler{Service: svc, logger: logger}
}

func (h *CameraHandler) user(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	ac, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	return ac.UserID, true
}

// GET /api/cameras
func (h *CameraHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	list, err := h.Service.List(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// GET /api/cameras/{id}
func (h *CameraHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	c, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// POST /api/cameras
func (h *CameraHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req cameras.CameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	c, err := h.Service.Create(r.Context(), req, userID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// PUT /api/cameras/{id}
func (h *CameraHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req cameras.CameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	c, err := h.Service.Update(r.Context(), chi.URLParam(r, "id"), req, userID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// PUT /api/cameras/{id}/status?status=ONLINE
func (h *CameraHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	c, err := h.Service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("status"), userID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// DELETE /api/cameras/{id}
func (h *CameraHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
