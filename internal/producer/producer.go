package producer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/remindly/expiry-notifier/internal/domain"
	"github.com/remindly/expiry-notifier/internal/metrics"
	"github.com/remindly/expiry-notifier/internal/queue"
)

// CustomerSource yields the rows to enqueue. Implemented by customers.Service;
// tests substitute a mock.
type CustomerSource interface {
	FetchExpiring(ctx context.Context) ([]domain.CustomerRow, error)
}

// Producer turns one expiring-customer query pass into queue messages,
// one message per customer, sequentially.
type Producer struct {
	source  CustomerSource
	broker  queue.Broker
	queue   string
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func New(
	source CustomerSource,
	broker queue.Broker,
	queueName string,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Producer {
	return &Producer{
		source:  source,
		broker:  broker,
		queue:   queueName,
		metrics: m,
		logger:  logger,
	}
}

// EnqueueExpiring queries for expired-payment customers and enqueues one
// message per row that carries a recipient id. Rows without one are skipped
// silently. A publish failure aborts the remaining pass: messages already on
// the queue stay there (at-least-once, not all-or-nothing), and the report
// reflects what was enqueued before the failure.
func (p *Producer) EnqueueExpiring(ctx context.Context) (domain.EnqueueReport, error) {
	var report domain.EnqueueReport

	rows, err := p.source.FetchExpiring(ctx)
	if err != nil {
		return report, err
	}

	for _, row := range rows {
		if !row.HasRecipient() {
			report.Skipped++
			p.metrics.CustomersSkipped.Inc()
			continue
		}

		body, err := domain.QueueMessage{FBID: row.RecipientID}.Encode()
		if err != nil {
			return report, fmt.Errorf("encode message for %q: %w", row.RecipientID, err)
		}

		if err := p.broker.Publish(ctx, p.queue, body); err != nil {
			p.logger.Error("publish failed, aborting pass",
				zap.String("fb_id", row.RecipientID),
				zap.Int("enqueued", report.Enqueued),
				zap.Error(err))
			return report, fmt.Errorf("publish message: %w", err)
		}
		report.Enqueued++
		p.metrics.CustomersEnqueued.Inc()
	}

	p.logger.Info("enqueue pass complete",
		zap.Int("enqueued", report.Enqueued),
		zap.Int("skipped", report.Skipped))
	return report, nil
}
