package dispatcher

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/remindly/expiry-notifier/internal/domain"
	"github.com/remindly/expiry-notifier/internal/metrics"
	"github.com/remindly/expiry-notifier/internal/queue"
	"github.com/remindly/expiry-notifier/internal/ratelimiter"
)

// EmptyQueueMsg is the sentinel returned by a pull-mode fetch when the queue
// reports no messages.
const EmptyQueueMsg = "Nothing left on queue!"

// Sender delivers a single notification. Implemented by sender.Messenger;
// tests use a mock.
type Sender interface {
	Send(ctx context.Context, req domain.DeliveryRequest) domain.DeliveryResult
}

// TextResolver supplies the notification text for one dispatch. Push and pull
// mode share the same pipeline and differ only in trigger and text source, so
// the strategy is injected rather than duplicated into two dispatchers.
type TextResolver func(ctx context.Context) string

// StaticText always resolves to the given text.
func StaticText(text string) TextResolver {
	return func(context.Context) string { return text }
}

// ConfigText resolves the text from a config store record at dispatch time,
// falling back when the record or its template is absent. Resolution happens
// per message, so template edits in the store apply to in-flight queues.
type configGetter interface {
	Get(ctx context.Context, key string) (*domain.CredentialRecord, error)
}

func ConfigText(store configGetter, key, fallback string) TextResolver {
	return func(ctx context.Context) string {
		rec, err := store.Get(ctx, key)
		if err != nil || rec.MessageText == "" {
			return fallback
		}
		return rec.MessageText
	}
}

// Options fixes the per-pipeline parameters.
type Options struct {
	QueueName string
	Text      TextResolver

	// BatchLimit caps how many messages one pull-mode receive takes.
	BatchLimit int

	// DeleteOnFailure preserves the historical pull-mode contract: every
	// received message is deleted after the send attempt completes, success
	// or not (at-most-once). With false, a failed send leaves the batch
	// unacknowledged so the broker redelivers it (at-least-once).
	DeleteOnFailure bool
}

// Dispatcher drains the queue and delivers notifications. The same
// per-message processing backs both invocation modes: HandlePush for
// broker-driven delivery and FetchOne for explicit pulls.
type Dispatcher struct {
	broker  queue.Broker
	sender  Sender
	limiter *ratelimiter.SendLimiter
	opts    Options
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func New(
	broker queue.Broker,
	sender Sender,
	limiter *ratelimiter.SendLimiter,
	opts Options,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Dispatcher {
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = 10
	}
	return &Dispatcher{
		broker:  broker,
		sender:  sender,
		limiter: limiter,
		opts:    opts,
		metrics: m,
		logger:  logger,
	}
}

// Run subscribes to the queue in push mode and blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	return d.broker.Consume(ctx, d.opts.QueueName, d.HandlePush)
}

// HandlePush processes one pushed message. Returning nil acknowledges it;
// returning an error leaves it to the broker to redeliver. Malformed bodies
// are acknowledged rather than requeued: redelivery can never fix them.
func (d *Dispatcher) HandlePush(ctx context.Context, msg queue.Message) error {
	result, retryable := d.process(ctx, msg, "push")
	if result.Sent {
		return nil
	}
	if !retryable {
		return nil
	}
	return errors.New(result.Error)
}

// FetchOne is the pull-mode fetch: check the approximate count, and when the
// queue is non-empty receive a batch, deliver the first message, then settle
// the whole batch according to the deletion policy. The send attempt always
// completes before any deletion.
func (d *Dispatcher) FetchOne(ctx context.Context) (domain.PullResult, error) {
	count, err := d.broker.ApproximateCount(ctx, d.opts.QueueName)
	if err != nil {
		return domain.PullResult{}, err
	}
	d.metrics.QueueDepth.Set(float64(count))

	if count == 0 {
		return domain.PullResult{Msg: EmptyQueueMsg}, nil
	}

	batch, err := d.broker.Receive(ctx, d.opts.QueueName, d.opts.BatchLimit)
	if err != nil {
		return domain.PullResult{}, err
	}
	defer batch.Close()

	msgs := batch.Messages()
	if len(msgs) == 0 {
		// Another consumer drained the window between count and receive.
		return domain.PullResult{Msg: EmptyQueueMsg}, nil
	}

	first := msgs[0]
	result, retryable := d.process(ctx, first, "pull")

	deleted := 0
	switch {
	case result.Sent || d.opts.DeleteOnFailure:
		// Historical behaviour: the whole batch is removed regardless of the
		// send outcome. A failed send therefore loses the message.
		for _, msg := range msgs {
			if err := batch.Delete(msg.Receipt); err != nil {
				d.logger.Error("delete after dispatch failed",
					zap.Uint64("receipt", msg.Receipt), zap.Error(err))
				continue
			}
			deleted++
		}
	case !retryable:
		// Redelivering a malformed message can never succeed; drop just it
		// and let the rest of the batch redeliver.
		if err := batch.Delete(first.Receipt); err == nil {
			deleted++
		}
	}

	d.metrics.QueueDepth.Set(float64(count - deleted))
	return domain.PullResult{Delivery: &result, Deleted: deleted}, nil
}

// DrainBatch receives one batch and deletes every message in it without
// dispatching anything. Maintenance only; not part of the delivery path.
func (d *Dispatcher) DrainBatch(ctx context.Context) (domain.DrainReport, error) {
	batch, err := d.broker.Receive(ctx, d.opts.QueueName, d.opts.BatchLimit)
	if err != nil {
		return domain.DrainReport{}, err
	}
	defer batch.Close()

	var report domain.DrainReport
	for _, msg := range batch.Messages() {
		if err := batch.Delete(msg.Receipt); err != nil {
			d.logger.Error("drain delete failed",
				zap.Uint64("receipt", msg.Receipt), zap.Error(err))
			continue
		}
		report.Deleted++
	}
	return report, nil
}

// Purge drops every message on the named queue. Purging a missing or empty
// queue is a no-op.
func (d *Dispatcher) Purge(ctx context.Context, queueName string) (int, error) {
	n, err := d.broker.Purge(ctx, queueName)
	if err != nil {
		return 0, err
	}
	d.metrics.QueuePurged.Add(float64(n))
	d.logger.Info("queue purged", zap.String("queue", queueName), zap.Int("messages", n))
	return n, nil
}

// process decodes and delivers one message. The bool reports whether a
// failure is retryable: malformed bodies are not, delivery failures are.
func (d *Dispatcher) process(ctx context.Context, msg queue.Message, mode string) (domain.DeliveryResult, bool) {
	decoded, err := domain.DecodeQueueMessage(msg.Body)
	if err != nil {
		d.logger.Warn("dropping malformed queue message",
			zap.String("mode", mode), zap.Error(err))
		d.metrics.NotificationsFailed.WithLabelValues(mode).Inc()
		return domain.DeliveryResult{Error: err.Error()}, false
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return domain.DeliveryResult{Error: err.Error()}, true
	}

	result := d.sender.Send(ctx, domain.DeliveryRequest{
		RecipientID: decoded.FBID,
		MessageText: d.opts.Text(ctx),
		Platform:    domain.PlatformFacebook,
	})

	if result.Sent {
		d.metrics.NotificationsDelivered.WithLabelValues(mode).Inc()
		d.logger.Info("notification delivered",
			zap.String("mode", mode), zap.String("fb_id", decoded.FBID))
	} else {
		d.metrics.NotificationsFailed.WithLabelValues(mode).Inc()
		d.logger.Warn("notification failed",
			zap.String("mode", mode),
			zap.String("fb_id", decoded.FBID),
			zap.String("error", result.Error))
	}
	return result, true
}
