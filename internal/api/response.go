package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/staticnest/staticnest/internal/apperr"
)

// envelope is the JSON response shape shared by all API endpoints.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: true, Message: message})
}

// respondError maps an error to its category's status code. Client errors
// carry the error text; internal and external failures are logged with full
// detail and surface only their category.
func respondError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrInvalidPath):
		writeJSON(w, http.StatusNotFound, envelope{Error: err.Error()})
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, envelope{Error: err.Error()})
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, envelope{Error: err.Error()})
	case errors.Is(err, apperr.ErrExternalService):
		log.Error("container runtime failure", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, envelope{Error: "container runtime unavailable"})
	default:
		log.Error("internal failure", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, envelope{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
