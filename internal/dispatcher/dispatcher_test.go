package dispatcher_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/remindly/expiry-notifier/internal/configstore"
	"github.com/remindly/expiry-notifier/internal/dispatcher"
	"github.com/remindly/expiry-notifier/internal/domain"
	"github.com/remindly/expiry-notifier/internal/metrics"
	"github.com/remindly/expiry-notifier/internal/queue"
	"github.com/remindly/expiry-notifier/internal/ratelimiter"
)

const testQueue = "payment-reminders"

// mockSender records send attempts and appends to an optional event log so
// tests can assert ordering against batch deletions.
type mockSender struct {
	fail     bool
	requests []domain.DeliveryRequest
	events   *[]string
}

func (m *mockSender) Send(_ context.Context, req domain.DeliveryRequest) domain.DeliveryResult {
	m.requests = append(m.requests, req)
	if m.events != nil {
		*m.events = append(*m.events, "send")
	}
	if m.fail {
		return domain.DeliveryResult{Error: "provider rejected"}
	}
	return domain.DeliveryResult{Sent: true}
}

// logBroker wraps MockBroker to record deletion events.
type logBroker struct {
	*queue.MockBroker
	events *[]string
}

func (b *logBroker) Receive(ctx context.Context, q string, max int) (queue.Batch, error) {
	batch, err := b.MockBroker.Receive(ctx, q, max)
	if err != nil {
		return nil, err
	}
	return &logBatch{Batch: batch, events: b.events}, nil
}

type logBatch struct {
	queue.Batch
	events *[]string
}

func (b *logBatch) Delete(receipt uint64) error {
	*b.events = append(*b.events, "delete")
	return b.Batch.Delete(receipt)
}

func newDispatcher(broker queue.Broker, s dispatcher.Sender, deleteOnFailure bool) *dispatcher.Dispatcher {
	m := metrics.New(prometheus.NewRegistry())
	return dispatcher.New(broker, s, ratelimiter.New(1000), dispatcher.Options{
		QueueName:       testQueue,
		Text:            dispatcher.StaticText("Your payment is expired!"),
		BatchLimit:      10,
		DeleteOnFailure: deleteOnFailure,
	}, m, zap.NewNop())
}

func publish(t *testing.T, broker *queue.MockBroker, ids ...string) {
	t.Helper()
	for _, id := range ids {
		body, err := domain.QueueMessage{FBID: id}.Encode()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := broker.Publish(context.Background(), testQueue, body); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestDispatcher_FetchOne_EmptyQueue(t *testing.T) {
	broker := queue.NewMockBroker()
	broker.Declare(testQueue)
	sender := &mockSender{}
	d := newDispatcher(broker, sender, true)

	res, err := d.FetchOne(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Msg != dispatcher.EmptyQueueMsg {
		t.Fatalf("expected empty-queue sentinel, got %+v", res)
	}
	if broker.ReceiveCalls != 0 {
		t.Fatal("expected no receive call for an empty queue")
	}
	if len(sender.requests) != 0 {
		t.Fatal("expected no send attempts")
	}
}

func TestDispatcher_FetchOne_MissingQueue(t *testing.T) {
	d := newDispatcher(queue.NewMockBroker(), &mockSender{}, true)

	_, err := d.FetchOne(context.Background())
	if !errors.Is(err, domain.ErrQueueNotFound) {
		t.Fatalf("expected ErrQueueNotFound, got %v", err)
	}
}

func TestDispatcher_FetchOne_DeliversFirstAndDeletesBatch(t *testing.T) {
	broker := queue.NewMockBroker()
	publish(t, broker, "1", "2", "3")
	sender := &mockSender{}
	d := newDispatcher(broker, sender, true)

	res, err := d.FetchOne(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.requests) != 1 {
		t.Fatalf("expected exactly one send, got %d", len(sender.requests))
	}
	if sender.requests[0].RecipientID != "1" {
		t.Fatalf("expected first message dispatched, got %q", sender.requests[0].RecipientID)
	}
	if sender.requests[0].MessageText != "Your payment is expired!" {
		t.Fatalf("unexpected message text %q", sender.requests[0].MessageText)
	}
	if res.Delivery == nil || !res.Delivery.Sent {
		t.Fatalf("expected successful delivery, got %+v", res.Delivery)
	}
	if res.Deleted != 3 {
		t.Fatalf("expected whole batch deleted, got %d", res.Deleted)
	}
	if broker.Depth(testQueue) != 0 {
		t.Fatalf("expected empty queue, got depth %d", broker.Depth(testQueue))
	}
}

func TestDispatcher_FetchOne_SendBeforeAnyDelete(t *testing.T) {
	var events []string
	inner := queue.NewMockBroker()
	publish(t, inner, "1", "2")
	broker := &logBroker{MockBroker: inner, events: &events}
	sender := &mockSender{events: &events}
	d := newDispatcher(broker, sender, true)

	if _, err := d.FetchOne(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 1 send + 2 deletes, got %v", events)
	}
	if events[0] != "send" {
		t.Fatalf("expected the send attempt before any deletion, got %v", events)
	}
}

func TestDispatcher_FetchOne_FailedSendStillDeletes(t *testing.T) {
	// Historical at-most-once behaviour: DeleteOnFailure=true removes the
	// batch even though the send failed.
	broker := queue.NewMockBroker()
	publish(t, broker, "1", "2")
	sender := &mockSender{fail: true}
	d := newDispatcher(broker, sender, true)

	res, err := d.FetchOne(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Delivery.Sent {
		t.Fatal("expected failed delivery")
	}
	if res.Deleted != 2 {
		t.Fatalf("expected both messages deleted, got %d", res.Deleted)
	}
	if broker.Depth(testQueue) != 0 {
		t.Fatal("expected messages to be lost under the parity policy")
	}
}

func TestDispatcher_FetchOne_FailedSendRequeuesWhenPolicyOff(t *testing.T) {
	broker := queue.NewMockBroker()
	publish(t, broker, "1", "2")
	sender := &mockSender{fail: true}
	d := newDispatcher(broker, sender, false)

	res, err := d.FetchOne(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Deleted != 0 {
		t.Fatalf("expected no deletions, got %d", res.Deleted)
	}
	if broker.Depth(testQueue) != 2 {
		t.Fatalf("expected both messages requeued, got depth %d", broker.Depth(testQueue))
	}
}

func TestDispatcher_FetchOne_MalformedFirstMessageDropped(t *testing.T) {
	broker := queue.NewMockBroker()
	if err := broker.Publish(context.Background(), testQueue, []byte("not-json")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	publish(t, broker, "2")
	sender := &mockSender{}
	d := newDispatcher(broker, sender, false)

	res, err := d.FetchOne(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.requests) != 0 {
		t.Fatal("expected no send for a malformed message")
	}
	if res.Deleted != 1 {
		t.Fatalf("expected only the malformed message deleted, got %d", res.Deleted)
	}
	if broker.Depth(testQueue) != 1 {
		t.Fatalf("expected the well-formed message requeued, got depth %d", broker.Depth(testQueue))
	}
}

func TestDispatcher_HandlePush(t *testing.T) {
	body, _ := domain.QueueMessage{FBID: "42"}.Encode()

	t.Run("success acknowledges", func(t *testing.T) {
		sender := &mockSender{}
		d := newDispatcher(queue.NewMockBroker(), sender, true)

		if err := d.HandlePush(context.Background(), queue.Message{Body: body}); err != nil {
			t.Fatalf("expected nil (ack), got %v", err)
		}
		if len(sender.requests) != 1 || sender.requests[0].RecipientID != "42" {
			t.Fatalf("unexpected sends: %+v", sender.requests)
		}
	})

	t.Run("send failure requeues", func(t *testing.T) {
		d := newDispatcher(queue.NewMockBroker(), &mockSender{fail: true}, true)

		if err := d.HandlePush(context.Background(), queue.Message{Body: body}); err == nil {
			t.Fatal("expected an error so the broker redelivers")
		}
	})

	t.Run("malformed body is acknowledged", func(t *testing.T) {
		sender := &mockSender{}
		d := newDispatcher(queue.NewMockBroker(), sender, true)

		if err := d.HandlePush(context.Background(), queue.Message{Body: []byte("{}")}); err != nil {
			t.Fatalf("expected nil for a poison message, got %v", err)
		}
		if len(sender.requests) != 0 {
			t.Fatal("expected no send attempt for a malformed body")
		}
	})
}

func TestDispatcher_Run_DrainsQueueInPushMode(t *testing.T) {
	broker := queue.NewMockBroker()
	publish(t, broker, "1", "2")
	sender := &mockSender{}
	d := newDispatcher(broker, sender, true)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.requests) != 2 {
		t.Fatalf("expected both messages dispatched, got %d", len(sender.requests))
	}
	if broker.Depth(testQueue) != 0 {
		t.Fatal("expected queue drained")
	}
}

func TestDispatcher_DrainBatch(t *testing.T) {
	broker := queue.NewMockBroker()
	publish(t, broker, "1", "2")
	sender := &mockSender{}
	d := newDispatcher(broker, sender, true)

	report, err := d.DrainBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", report.Deleted)
	}
	if len(sender.requests) != 0 {
		t.Fatal("drain must not dispatch anything")
	}
	if broker.Depth(testQueue) != 0 {
		t.Fatal("expected queue drained")
	}
}

func TestDispatcher_Purge_Idempotent(t *testing.T) {
	broker := queue.NewMockBroker()
	d := newDispatcher(broker, &mockSender{}, true)
	ctx := context.Background()

	t.Run("missing queue is a no-op", func(t *testing.T) {
		n, err := d.Purge(ctx, "never-created")
		if err != nil || n != 0 {
			t.Fatalf("expected (0, nil), got (%d, %v)", n, err)
		}
	})

	t.Run("empty queue is a no-op", func(t *testing.T) {
		broker.Declare(testQueue)
		n, err := d.Purge(ctx, testQueue)
		if err != nil || n != 0 {
			t.Fatalf("expected (0, nil), got (%d, %v)", n, err)
		}
	})

	t.Run("purge removes all messages", func(t *testing.T) {
		publish(t, broker, "1", "2", "3")
		n, err := d.Purge(ctx, testQueue)
		if err != nil || n != 3 {
			t.Fatalf("expected (3, nil), got (%d, %v)", n, err)
		}
		if broker.Depth(testQueue) != 0 {
			t.Fatal("expected queue emptied")
		}
	})
}

func TestConfigText_ResolvesAtDispatchTime(t *testing.T) {
	store := configstore.NewMockStore()
	resolver := dispatcher.ConfigText(store, "stage_creds", "fallback text")
	ctx := context.Background()

	if got := resolver(ctx); got != "fallback text" {
		t.Fatalf("expected fallback when record absent, got %q", got)
	}

	store.Put(&domain.CredentialRecord{Key: "stage_creds", MessageText: "fresh template"})
	if got := resolver(ctx); got != "fresh template" {
		t.Fatalf("expected stored template, got %q", got)
	}
}
