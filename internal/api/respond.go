package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/technosupport/control-center/internal/cameras"
	"github.com/technosupport/control-center/internal/events"
	"go.uber.org/zap"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps domain errors onto HTTP status codes.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, events.ErrCameraNotFound),
		errors.Is(err, events.ErrVideoNotFound),
		errors.Is(err, events.ErrEventNotFound),
		errors.Is(err, cameras.ErrCameraNotFound),
		errors.Is(err, cameras.ErrUserNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, cameras.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, events.ErrValidation),
		errors.Is(err, cameras.ErrInvalidStatus),
		errors.Is(err, cameras.ErrNameRequired),
		errors.Is(err, cameras.ErrNameTooLong),
		errors.Is(err, cameras.ErrProtectedCamera):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// queryInt reads an integer query parameter, falling back to def when the
// value is missing or not a number.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
