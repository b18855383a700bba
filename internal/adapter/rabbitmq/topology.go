package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	paymentsExchange      = "payments_topic"
	paymentsDLQExchange   = "payments_dlq"
	paymentsQueue         = "coffee_queue_payments"
	paymentsDLQ           = "coffee_queue_payments_dlq"
	paymentSucceededKey   = "payment.succeeded"
	notificationsExchange = "notifications_fanout"
)

func declarePayments(ch Channel) error {
	if err := ch.ExchangeDeclare(paymentsExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare payments exchange: %w", err)
	}

	if err := ch.ExchangeDeclare(paymentsDLQExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(paymentsDLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}
	if err := ch.QueueBind(paymentsDLQ, "#", paymentsDLQExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange": paymentsDLQExchange,
	}
	q, err := ch.QueueDeclare(paymentsQueue, true, false, false, false, args)
	if err != nil {
		return fmt.Errorf("failed to declare payments queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, paymentSucceededKey, paymentsExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind payments queue: %w", err)
	}
	return nil
}

func declareNotifications(ch Channel) error {
	if err := ch.ExchangeDeclare(notificationsExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	return nil
}
