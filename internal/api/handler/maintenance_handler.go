package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/remindly/expiry-notifier/internal/domain"
)

type maintainer interface {
	Purge(ctx context.Context, queueName string) (int, error)
	DrainBatch(ctx context.Context) (domain.DrainReport, error)
}

// MaintenanceHandler exposes the administrative queue operations. These act
// on the queue directly and bypass the dispatch path entirely.
type MaintenanceHandler struct {
	dispatcher maintainer
	logger     *zap.Logger
}

func NewMaintenanceHandler(dispatcher maintainer, logger *zap.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{dispatcher: dispatcher, logger: logger}
}

// Cleanup handles GET /cleanup-queue/{queue_name}
//
// Purging is irreversible: every message currently on the named queue is
// dropped. A missing or empty queue purges zero messages and still succeeds.
func (h *MaintenanceHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	queueName := chi.URLParam(r, "queue_name")
	n, err := h.dispatcher.Purge(r.Context(), queueName)
	if err != nil {
		h.logger.Warn("purge failed", zap.String("queue", queueName), zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"purged_msg_count": n})
}

// Drain handles GET /delete-fetched-messages-from-the-queue
func (h *MaintenanceHandler) Drain(w http.ResponseWriter, r *http.Request) {
	report, err := h.dispatcher.DrainBatch(r.Context())
	if err != nil {
		h.logger.Warn("drain failed", zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
