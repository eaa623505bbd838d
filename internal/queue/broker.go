package queue

import "context"

// Message is one received queue message. Receipt is the broker's
// acknowledgment handle, valid only within the Batch it came from.
type Message struct {
	Body    []byte
	Receipt uint64
}

// Batch is one receive operation's worth of messages. Receipts are scoped to
// the batch: Delete acknowledges a single message, and Close releases the
// batch, returning any still-unacknowledged messages to the queue for
// redelivery (the broker-side equivalent of a visibility timeout expiring).
type Batch interface {
	Messages() []Message
	Delete(receipt uint64) error
	Close() error
}

// Broker abstracts the message queue provider. The AMQP implementation is in
// amqp_broker.go; tests use the hand-written MockBroker.
type Broker interface {
	// Publish enqueues one message, creating the queue if needed.
	Publish(ctx context.Context, queue string, body []byte) error

	// ApproximateCount reports the broker's current message count for the
	// queue. A missing queue yields domain.ErrQueueNotFound.
	ApproximateCount(ctx context.Context, queue string) (int, error)

	// Receive fetches up to max messages. The caller must Close the batch.
	Receive(ctx context.Context, queue string, max int) (Batch, error)

	// Purge drops every message currently on the queue and returns the count.
	// Purging a missing or empty queue is a no-op, never an error.
	Purge(ctx context.Context, queue string) (int, error)

	// Consume delivers messages one at a time to handler until ctx is
	// cancelled. A nil handler error acknowledges the message; a non-nil
	// error returns it to the queue for redelivery.
	Consume(ctx context.Context, queue string, handler func(context.Context, Message) error) error
}
