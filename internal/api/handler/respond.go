package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/remindly/expiry-notifier/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// mapError translates domain sentinel errors to HTTP status codes.
// All mapping lives here so individual handlers stay concise. Every failure
// still produces a JSON body; no handler ever lets an error escape.
func mapError(w http.ResponseWriter, err error) {
	var qerr *domain.QueryError
	switch {
	case errors.Is(err, domain.ErrQueueNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrMissingParams),
		errors.Is(err, domain.ErrUnsupportedPlatform),
		errors.Is(err, domain.ErrMalformedMessage):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &qerr):
		respondError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, domain.ErrConfigMissing):
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
