package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/remindly/expiry-notifier/internal/domain"
)

// Small interfaces over the pipeline components so handlers can be exercised
// without a broker or database behind them.
type expiringLister interface {
	FetchExpiring(ctx context.Context) ([]domain.CustomerRow, error)
}

type enqueuer interface {
	EnqueueExpiring(ctx context.Context) (domain.EnqueueReport, error)
}

type puller interface {
	FetchOne(ctx context.Context) (domain.PullResult, error)
}

// Sender delivers one notification; satisfied by sender.Messenger.
// Exported so the router can accept it without importing the sender package.
type Sender interface {
	Send(ctx context.Context, req domain.DeliveryRequest) domain.DeliveryResult
}

// DispatchHandler exposes the produce and consume sides of the pipeline.
type DispatchHandler struct {
	customers  expiringLister
	producer   enqueuer
	dispatcher puller
	sender     Sender
	logger     *zap.Logger
}

func NewDispatchHandler(
	customers expiringLister,
	producer enqueuer,
	dispatcher puller,
	sender Sender,
	logger *zap.Logger,
) *DispatchHandler {
	return &DispatchHandler{
		customers:  customers,
		producer:   producer,
		dispatcher: dispatcher,
		sender:     sender,
		logger:     logger,
	}
}

// ListExpiring handles GET /users-with-expired-payments
func (h *DispatchHandler) ListExpiring(w http.ResponseWriter, r *http.Request) {
	rows, err := h.customers.FetchExpiring(r.Context())
	if err != nil {
		h.logger.Warn("expiring-customer query failed", zap.Error(err))
		mapError(w, err)
		return
	}
	if rows == nil {
		rows = []domain.CustomerRow{}
	}
	respondJSON(w, http.StatusOK, rows)
}

// Enqueue handles GET /add-users-to-the-queue
func (h *DispatchHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	report, err := h.producer.EnqueueExpiring(r.Context())
	if err != nil {
		h.logger.Warn("enqueue pass failed",
			zap.Int("enqueued", report.Enqueued), zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Fetch handles GET /fetch-msg-from-the-queue
func (h *DispatchHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	result, err := h.dispatcher.FetchOne(r.Context())
	if err != nil {
		h.logger.Warn("pull-mode fetch failed", zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// SendMessage handles POST /send-message
//
// The sender folds its own failures into the result, so this handler only
// chooses a status code: validation failures map to 422, provider or
// transport failures to 502, success to 200. The body is always the
// DeliveryResult JSON.
func (h *DispatchHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req domain.DeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result := h.sender.Send(r.Context(), req)

	status := http.StatusOK
	if !result.Sent {
		switch result.Error {
		case domain.ErrMissingParams.Error(), domain.ErrUnsupportedPlatform.Error():
			status = http.StatusUnprocessableEntity
		case domain.ErrConfigMissing.Error():
			status = http.StatusInternalServerError
		default:
			status = http.StatusBadGateway
		}
	}
	respondJSON(w, status, result)
}
