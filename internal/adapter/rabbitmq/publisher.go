package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"
)

type publisher struct {
	conn Connection
}

func NewPublisher(conn Connection) interfaces.MessagePublisher {
	return &publisher{conn: conn}
}

func (p *publisher) PublishStatusUpdate(ctx context.Context, msg interfaces.StatusUpdateMessage) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := declareNotifications(ch); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = ch.PublishWithContext(ctx, notificationsExchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   msg.MessageID,
		Timestamp:   msg.Timestamp,
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// PublishPayment emits a payment.succeeded event. The queue itself only consumes these; the CLI uses it to replay payments.
func PublishPayment(ctx context.Context, conn Connection, msg interfaces.PaymentSucceededMessage) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := declarePayments(ch); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = ch.PublishWithContext(ctx, paymentsExchange, paymentSucceededKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    msg.PaymentID,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish payment: %w", err)
	}
	return nil
}
