package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is satisfied by the mongo and redis clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	mongo  Pinger
	redis  Pinger
	logger *slog.Logger
}

func NewHealthHandler(mongo, redis Pinger, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{mongo: mongo, redis: redis, logger: logger}
}

// Healthz handles GET /healthz. Liveness only; no dependency checks.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz. The store is required; the cache is
// degraded-but-ready because search falls through to the store without it.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"mongodb": "ok", "redis": "ok"}
	status := http.StatusOK

	if err := h.mongo.Ping(ctx); err != nil {
		h.logger.Warn("readiness: mongodb unreachable", slog.String("error", err.Error()))
		checks["mongodb"] = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			h.logger.Warn("readiness: redis unreachable", slog.String("error", err.Error()))
			checks["redis"] = "degraded"
		}
	} else {
		checks["redis"] = "disabled"
	}

	writeJSON(w, status, checks)
}
