package handler

import (
	"context"
	"net/http"
	"time"

	"go-pharmacy-catalog/internal/model"
)

// HealthChecker is nil for the memory store.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	checker HealthChecker
	driver  string
}

func NewHealthHandler(checker HealthChecker, driver string) *HealthHandler {
	return &HealthHandler{checker: checker, driver: driver}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.checker != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.checker.Health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, model.HealthResponse{Status: "unavailable", Store: h.driver})
			return
		}
	}

	writeJSON(w, http.StatusOK, model.HealthResponse{Status: "ok", Store: h.driver})
}
