package queue

import (
	"context"
	"sync"

	"github.com/remindly/expiry-notifier/internal/domain"
)

// MockBroker is a hand-written, in-memory Broker used in unit tests.
// It reproduces the semantics the dispatcher depends on: receipt-scoped
// deletion, requeue-on-close of unacknowledged messages, and the
// missing-queue / empty-queue distinctions.
type MockBroker struct {
	mu      sync.Mutex
	queues  map[string][]Message
	nextTag uint64

	// Optional error overrides — set in tests to simulate broker failures.
	PublishErr error
	ReceiveErr error

	// Call counters for asserting interaction order.
	PublishCalls int
	ReceiveCalls int
	PurgeCalls   int
}

func NewMockBroker() *MockBroker {
	return &MockBroker{queues: make(map[string][]Message)}
}

// Declare creates an empty queue, mirroring a broker-side declaration.
func (m *MockBroker) Declare(queue string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queues[queue]; !ok {
		m.queues[queue] = nil
	}
}

// Depth reports the number of messages currently held for a queue.
func (m *MockBroker) Depth(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[queue])
}

func (m *MockBroker) Publish(_ context.Context, queue string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishCalls++
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.nextTag++
	m.queues[queue] = append(m.queues[queue], Message{Body: body, Receipt: m.nextTag})
	return nil
}

func (m *MockBroker) ApproximateCount(_ context.Context, queue string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs, ok := m.queues[queue]
	if !ok {
		return 0, domain.ErrQueueNotFound
	}
	return len(msgs), nil
}

func (m *MockBroker) Receive(_ context.Context, queue string, max int) (Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReceiveCalls++
	if m.ReceiveErr != nil {
		return nil, m.ReceiveErr
	}
	if _, ok := m.queues[queue]; !ok {
		return nil, domain.ErrQueueNotFound
	}

	n := max
	if n > len(m.queues[queue]) {
		n = len(m.queues[queue])
	}
	taken := make([]Message, n)
	copy(taken, m.queues[queue][:n])
	m.queues[queue] = m.queues[queue][n:]

	return &mockBatch{broker: m, queue: queue, pending: taken}, nil
}

func (m *MockBroker) Purge(_ context.Context, queue string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PurgeCalls++
	n := len(m.queues[queue])
	if _, ok := m.queues[queue]; ok {
		m.queues[queue] = nil
	}
	return n, nil
}

// Consume drains the queue through handler and returns once it is empty or
// ctx is cancelled. Failed messages are returned to the back of the queue,
// and consumption stops so tests cannot spin on a permanently failing message.
func (m *MockBroker) Consume(ctx context.Context, queue string, handler func(context.Context, Message) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		m.mu.Lock()
		msgs := m.queues[queue]
		if len(msgs) == 0 {
			m.mu.Unlock()
			return nil
		}
		msg := msgs[0]
		m.queues[queue] = msgs[1:]
		m.mu.Unlock()

		if err := handler(ctx, msg); err != nil {
			m.mu.Lock()
			m.queues[queue] = append(m.queues[queue], msg)
			m.mu.Unlock()
			return nil
		}
	}
}

type mockBatch struct {
	broker  *MockBroker
	queue   string
	pending []Message
	deleted map[uint64]bool
	closed  bool
}

func (b *mockBatch) Messages() []Message { return b.pending }

func (b *mockBatch) Delete(receipt uint64) error {
	if b.deleted == nil {
		b.deleted = make(map[uint64]bool)
	}
	b.deleted[receipt] = true
	return nil
}

func (b *mockBatch) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.broker.mu.Lock()
	defer b.broker.mu.Unlock()
	for _, msg := range b.pending {
		if !b.deleted[msg.Receipt] {
			b.broker.queues[b.queue] = append(b.broker.queues[b.queue], msg)
		}
	}
	return nil
}

var _ Broker = (*MockBroker)(nil)
