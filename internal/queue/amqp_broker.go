package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/remindly/expiry-notifier/internal/domain"
)

// AMQPBroker implements Broker over a RabbitMQ connection.
//
// A fresh channel is opened per operation: AMQP closes a channel on any
// channel-level error (such as a passive declare of a missing queue), and
// per-call acquisition keeps one failed operation from poisoning the next.
type AMQPBroker struct {
	conn   *amqp.Connection
	logger *zap.Logger
}

func NewAMQPBroker(conn *amqp.Connection, logger *zap.Logger) *AMQPBroker {
	return &AMQPBroker{conn: conn, logger: logger}
}

func (b *AMQPBroker) Publish(_ context.Context, queue string, body []byte) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", queue, err)
	}

	err = ch.Publish("", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %q: %w", queue, err)
	}
	return nil
}

func (b *AMQPBroker) ApproximateCount(_ context.Context, queue string) (int, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return 0, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclarePassive(queue, true, false, false, false, nil)
	if err != nil {
		if isNotFound(err) {
			return 0, domain.ErrQueueNotFound
		}
		return 0, fmt.Errorf("inspect queue %q: %w", queue, err)
	}
	return q.Messages, nil
}

func (b *AMQPBroker) Receive(_ context.Context, queue string, max int) (Batch, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	var messages []Message
	for len(messages) < max {
		d, ok, err := ch.Get(queue, false)
		if err != nil {
			ch.Close()
			if isNotFound(err) {
				return nil, domain.ErrQueueNotFound
			}
			return nil, fmt.Errorf("receive from %q: %w", queue, err)
		}
		if !ok {
			break
		}
		messages = append(messages, Message{Body: d.Body, Receipt: d.DeliveryTag})
	}

	return &amqpBatch{ch: ch, messages: messages}, nil
}

func (b *AMQPBroker) Purge(_ context.Context, queue string) (int, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return 0, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	n, err := ch.QueuePurge(queue, false)
	if err != nil {
		if isNotFound(err) {
			return 0, nil // purging a missing queue is a no-op
		}
		return 0, fmt.Errorf("purge queue %q: %w", queue, err)
	}
	return n, nil
}

// Consume drives push-mode dispatch: prefetch 1, manual acknowledgment.
// It blocks until ctx is cancelled or the broker closes the channel.
func (b *AMQPBroker) Consume(ctx context.Context, queue string, handler func(context.Context, Message) error) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", queue, err)
	}

	// One unacknowledged message at a time, matching the batch size of 1 the
	// push subscription is designed around.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer on %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("consumer channel closed by broker")
			}
			msg := Message{Body: d.Body, Receipt: d.DeliveryTag}
			if err := handler(ctx, msg); err != nil {
				b.logger.Warn("push handler failed, requeueing",
					zap.String("queue", queue), zap.Error(err))
				if nackErr := d.Nack(false, true); nackErr != nil {
					return fmt.Errorf("nack delivery: %w", nackErr)
				}
				continue
			}
			if ackErr := d.Ack(false); ackErr != nil {
				return fmt.Errorf("ack delivery: %w", ackErr)
			}
		}
	}
}

type amqpBatch struct {
	ch       *amqp.Channel
	messages []Message
}

func (b *amqpBatch) Messages() []Message { return b.messages }

func (b *amqpBatch) Delete(receipt uint64) error {
	return b.ch.Ack(receipt, false)
}

// Close releases the batch channel. Messages not deleted beforehand are
// returned to the queue by the broker.
func (b *amqpBatch) Close() error { return b.ch.Close() }

func isNotFound(err error) bool {
	var amqpErr *amqp.Error
	return errors.As(err, &amqpErr) && amqpErr.Code == amqp.NotFound
}

var _ Broker = (*AMQPBroker)(nil)
