package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/YelzhanWeb/coffeequeue/internal/adapter/logger"
	"github.com/YelzhanWeb/coffeequeue/internal/domain"
	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"
)

const reconnectDelay = 5 * time.Second

type consumer struct {
	conn     Connection
	prefetch int
	logger   logger.Logger
}

func NewConsumer(conn Connection, prefetch int, log logger.Logger) interfaces.MessageConsumer {
	return &consumer{conn: conn, prefetch: prefetch, logger: log}
}

func (c *consumer) ConsumePayments(ctx context.Context, handler interfaces.PaymentMessageHandler) error {
	return c.loop(ctx, "payments", func(ctx context.Context) error {
		return c.consumePayments(ctx, handler)
	})
}

func (c *consumer) ConsumeNotifications(ctx context.Context, handler interfaces.NotificationHandler) error {
	return c.loop(ctx, "notifications", func(ctx context.Context) error {
		return c.consumeNotifications(ctx, handler)
	})
}

// loop restarts consume after a disconnect until ctx is cancelled.
func (c *consumer) loop(ctx context.Context, name string, consume func(ctx context.Context) error) error {
	for {
		err := consume(ctx)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}

		c.logger.Warn("consumer_disconnected", fmt.Sprintf("%s consumer disconnected, reconnecting in %s", name, reconnectDelay), "",
			map[string]interface{}{"error": err.Error()})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}

		if c.conn.IsClosed() {
			if err := c.conn.Reconnect(); err != nil {
				c.logger.Error("rabbitmq_reconnect_failed", "Failed to reconnect to RabbitMQ", "", nil, err)
			}
		}
	}
}

func (c *consumer) consumePayments(ctx context.Context, handler interfaces.PaymentMessageHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	closeChan := ch.NotifyClose()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	if err := declarePayments(ch); err != nil {
		return err
	}

	msgs, err := ch.Consume(paymentsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return fmt.Errorf("channel closed gracefully")

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("messages channel closed")
			}
			c.settle(msg, handler(ctx, msg.Body))
		}
	}
}

// settle acks handled deliveries, requeues transient failures and dead-letters the rest.
func (c *consumer) settle(msg amqp.Delivery, err error) {
	var ackErr error
	switch {
	case err == nil:
		ackErr = msg.Ack(false)
	case errors.Is(err, domain.ErrTransientStore):
		c.logger.Warn("payment_requeued", "Transient failure, message requeued", msg.MessageId, map[string]interface{}{
			"error": err.Error(),
		})
		ackErr = msg.Nack(false, true)
	default:
		c.logger.Error("payment_dead_lettered", "Message sent to DLQ", msg.MessageId, nil, err)
		ackErr = msg.Nack(false, false)
	}

	if ackErr != nil {
		c.logger.Error("delivery_settle_failed", "Failed to ack delivery", msg.MessageId, nil, ackErr)
	}
}

func (c *consumer) consumeNotifications(ctx context.Context, handler interfaces.NotificationHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	closeChan := ch.NotifyClose()

	if err := declareNotifications(ch); err != nil {
		return err
	}

	// one exclusive temporary queue per subscriber
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", notificationsExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return fmt.Errorf("channel closed gracefully")

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("messages channel closed")
			}
			if err := handler(ctx, msg.Body); err != nil {
				c.logger.Debug("notification_dropped", "Notification handler failed", msg.MessageId, map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}
