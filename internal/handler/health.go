// Package handler contains the HTTP handlers of the prompt library API.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming HTTP request (query params, body, path values)
//  2. Call the service layer with the authenticated user's ID
//  3. Write the HTTP response through writeJSON / writeError
//
// Handlers hold no business rules. Validation, ownership and versioning
// all live in internal/service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is implemented by storage backends that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers load balancer and container probes.
type HealthHandler struct {
	db     Pinger
	logger *slog.Logger
}

func NewHealthHandler(db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// HandleHealth reports whether the database answers.
//
// HTTP: GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
