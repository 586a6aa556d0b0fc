package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler reports liveness, optionally checking a dependency
type HealthHandler struct {
	check  func(ctx context.Context) error
	logger *slog.Logger
}

// NewHealthHandler creates a health handler. check may be nil.
func NewHealthHandler(check func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{check: check, logger: slog.Default()}
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := h.check(ctx); err != nil {
			h.logger.Warn("Health check failed", "error", err)
			http.Error(w, "Unhealthy", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
