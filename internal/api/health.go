package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cryptoquip/internal/store"
)

// HealthHandler reports process and database health.
type HealthHandler struct {
	repo      store.Repository
	startedAt time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(repo store.Repository) *HealthHandler {
	return &HealthHandler{repo: repo, startedAt: time.Now()}
}

// RegisterHealth registers the health route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}

// Health returns liveness plus a database connectivity check.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	database := "ok"
	status := http.StatusOK
	if err := h.repo.Ping(r.Context()); err != nil {
		database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	JSON(w, status, map[string]interface{}{
		"status":         "ok",
		"database":       database,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}
