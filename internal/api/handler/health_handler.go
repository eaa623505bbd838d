package handler

import "net/http"

// HealthHandler serves the liveness probe endpoints.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

// Index handles GET /
//
// Kept for compatibility with the original deployment's root probe, which
// answers {"status": 200}.
func (h *HealthHandler) Index(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]int{"status": http.StatusOK})
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
