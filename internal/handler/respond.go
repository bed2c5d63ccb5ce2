package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yourorg/businesshub/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain errors onto HTTP statuses. Anything outside the
// known taxonomy is a store or infrastructure fault and surfaces as 500
// without leaking its message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var perr *domain.PartialFailureError
	if errors.As(err, &perr) {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":       "business created but creator membership write failed",
			"business_id": perr.BusinessID,
		})
		return
	}

	status := statusFromError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()))
		message = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
