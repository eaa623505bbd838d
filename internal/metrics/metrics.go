package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
type Metrics struct {
	CustomersEnqueued      prometheus.Counter
	CustomersSkipped       prometheus.Counter
	NotificationsDelivered *prometheus.CounterVec
	NotificationsFailed    *prometheus.CounterVec
	DeliveryLatency        prometheus.Histogram
	QueuePurged            prometheus.Counter
	QueueDepth             prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CustomersEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "customers_enqueued_total",
			Help: "Total number of expired-payment customers placed on the queue.",
		}),
		CustomersSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "customers_skipped_total",
			Help: "Total number of query rows skipped for lacking a recipient id.",
		}),
		NotificationsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Total number of notifications accepted by the messaging provider.",
		}, []string{"mode"}),
		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of send attempts the provider rejected or that failed in transport.",
		}, []string{"mode"}),
		DeliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "notification_delivery_seconds",
			Help:    "Latency of a single provider send attempt.",
			Buckets: prometheus.DefBuckets,
		}),
		QueuePurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_purged_total",
			Help: "Total number of messages removed by administrative purges.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Most recently observed approximate message count of the dispatch queue.",
		}),
	}

	reg.MustRegister(
		m.CustomersEnqueued,
		m.CustomersSkipped,
		m.NotificationsDelivered,
		m.NotificationsFailed,
		m.DeliveryLatency,
		m.QueuePurged,
		m.QueueDepth,
	)

	return m
}
