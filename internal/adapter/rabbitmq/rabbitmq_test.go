package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YelzhanWeb/coffeequeue/internal/adapter/logger"
	"github.com/YelzhanWeb/coffeequeue/internal/domain"
	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu         sync.Mutex
	exchanges  []string
	queues     []string
	published  []published
	deliveries chan amqp.Delivery
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges = append(f.exchanges, name)
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == "" {
		name = "amq.gen-test"
	}
	f.queues = append(f.queues, name)
	return Queue{Name: name}, nil
}

func (f *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error { return nil }
func (f *fakeChannel) Close() error                                           { return nil }
func (f *fakeChannel) NotifyClose() <-chan *amqp.Error                        { return make(chan *amqp.Error) }

type fakeConnection struct {
	ch *fakeChannel
}

func (f *fakeConnection) Channel() (Channel, error)       { return f.ch, nil }
func (f *fakeConnection) Close() error                    { return nil }
func (f *fakeConnection) NotifyClose() <-chan *amqp.Error { return make(chan *amqp.Error) }
func (f *fakeConnection) IsClosed() bool                  { return false }
func (f *fakeConnection) Reconnect() error                { return nil }

// ackRecorder captures how each delivery was settled.
type ackRecorder struct {
	mu      sync.Mutex
	acked   []uint64
	requeue []uint64
	dead    []uint64
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		a.requeue = append(a.requeue, tag)
	} else {
		a.dead = append(a.dead, tag)
	}
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestSettleClassifiesHandlerErrors(t *testing.T) {
	acks := &ackRecorder{}
	c := &consumer{logger: logger.Nop()}

	c.settle(amqp.Delivery{Acknowledger: acks, DeliveryTag: 1}, nil)
	c.settle(amqp.Delivery{Acknowledger: acks, DeliveryTag: 2}, fmt.Errorf("commit: %w", domain.ErrTransientStore))
	c.settle(amqp.Delivery{Acknowledger: acks, DeliveryTag: 3}, errors.New("bad payload"))

	assert.Equal(t, []uint64{1}, acks.acked)
	assert.Equal(t, []uint64{2}, acks.requeue)
	assert.Equal(t, []uint64{3}, acks.dead)
}

func TestConsumePaymentsDeliversAndDeclaresTopology(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 2)}
	acks := &ackRecorder{}
	ch.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 1, Body: []byte(`{"order_id":5}`)}
	ch.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 2, Body: []byte(`{"order_id":6}`)}
	close(ch.deliveries)

	c := &consumer{conn: &fakeConnection{ch: ch}, prefetch: 1, logger: logger.Nop()}

	var seen []string
	err := c.consumePayments(context.Background(), func(ctx context.Context, body []byte) error {
		seen = append(seen, string(body))
		if len(seen) == 2 {
			return domain.ErrTransientStore
		}
		return nil
	})

	assert.ErrorContains(t, err, "messages channel closed")
	assert.Len(t, seen, 2)
	assert.Equal(t, []uint64{1}, acks.acked)
	assert.Equal(t, []uint64{2}, acks.requeue)
	assert.Contains(t, ch.exchanges, paymentsExchange)
	assert.Contains(t, ch.exchanges, paymentsDLQExchange)
	assert.Contains(t, ch.queues, paymentsQueue)
}

func TestConsumeStopsOnCancel(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery)}
	c := NewConsumer(&fakeConnection{ch: ch}, 1, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.ConsumeNotifications(ctx, func(ctx context.Context, body []byte) error { return nil })
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestPublishStatusUpdate(t *testing.T) {
	ch := &fakeChannel{}
	pub := NewPublisher(&fakeConnection{ch: ch})

	msg := interfaces.StatusUpdateMessage{
		MessageID: "m-1",
		OrderID:   12,
		OldStatus: domain.QueueWaiting,
		NewStatus: domain.QueuePreparing,
		ChangedBy: "alice",
		Timestamp: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, pub.PublishStatusUpdate(context.Background(), msg))

	require.Len(t, ch.published, 1)
	got := ch.published[0]
	assert.Equal(t, notificationsExchange, got.exchange)
	assert.Equal(t, "m-1", got.msg.MessageId)

	var decoded interfaces.StatusUpdateMessage
	require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
	assert.Equal(t, msg, decoded)
}

func TestPublishPayment(t *testing.T) {
	ch := &fakeChannel{}
	err := PublishPayment(context.Background(), &fakeConnection{ch: ch}, interfaces.PaymentSucceededMessage{OrderID: 3, PaymentID: "p-3"})
	require.NoError(t, err)

	require.Len(t, ch.published, 1)
	assert.Equal(t, paymentsExchange, ch.published[0].exchange)
	assert.Equal(t, paymentSucceededKey, ch.published[0].key)
	assert.Equal(t, uint8(amqp.Persistent), ch.published[0].msg.DeliveryMode)
}
