// Package api provides HTTP handlers for the cryptoquip API.
package api

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"sync"

	"cryptoquip/internal/config"
	"cryptoquip/internal/daily"
	"cryptoquip/internal/quotes"
	"cryptoquip/internal/store"
)

// Handler provides common handler dependencies.
type Handler struct {
	repo      store.Repository
	lifecycle *daily.Lifecycle
	quotes    *quotes.Source
	cfg       *config.Config
	hub       *Hub

	// rng feeds ad-hoc game ciphers; rand.Rand is not goroutine-safe.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, lifecycle *daily.Lifecycle, src *quotes.Source, cfg *config.Config, hub *Hub) *Handler {
	return &Handler{
		repo:      repo,
		lifecycle: lifecycle,
		quotes:    src,
		cfg:       cfg,
		hub:       hub,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
