package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/remindly/expiry-notifier/internal/api/handler"
	apimw "github.com/remindly/expiry-notifier/internal/api/middleware"
	"github.com/remindly/expiry-notifier/internal/customers"
	"github.com/remindly/expiry-notifier/internal/dispatcher"
	"github.com/remindly/expiry-notifier/internal/producer"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
// Route paths match the original deployment so existing callers keep working.
func NewRouter(
	cust *customers.Service,
	prod *producer.Producer,
	disp *dispatcher.Dispatcher,
	send handler.Sender,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	dh := handler.NewDispatchHandler(cust, prod, disp, send, logger)
	mh := handler.NewMaintenanceHandler(disp, logger)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/", hh.Index)
	r.Get("/health", hh.Health)

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Dispatch pipeline
	r.Get("/users-with-expired-payments", dh.ListExpiring)
	r.Get("/add-users-to-the-queue", dh.Enqueue)
	r.Get("/fetch-msg-from-the-queue", dh.Fetch)
	r.Post("/send-message", dh.SendMessage)

	// Queue maintenance
	r.Get("/cleanup-queue/{queue_name}", mh.Cleanup)
	r.Get("/delete-fetched-messages-from-the-queue", mh.Drain)

	return r
}
