package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/logger"
)

const alreadyHandledMsg = "join request already handled"

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

// writeError maps service errors onto HTTP status codes. resolving switches
// NotFound and InvalidState to the single "already handled" message.
func writeError(w http.ResponseWriter, route string, resolving bool, err error) {
	var rerr *domain.ReconciliationError
	switch {
	case errors.As(err, &rerr):
		logger.Error("Resolution needs manual reconciliation", "route", route, "requestID", rerr.RequestID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "decision partially saved, manual reconciliation required")
	case errors.Is(err, domain.ErrWriteFailed):
		logger.Error("Write failed", "route", route, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to save changes")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		writeJSONError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, domain.ErrNotFound):
		if resolving {
			writeJSONError(w, http.StatusNotFound, alreadyHandledMsg)
			return
		}
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		if resolving {
			writeJSONError(w, http.StatusConflict, alreadyHandledMsg)
			return
		}
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSONError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		logger.Error("Unexpected error", "route", route, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}
