package interfaces

import (
	"context"
	"time"

	"github.com/YelzhanWeb/coffeequeue/internal/domain"
)

// Broker messages
type PaymentSucceededMessage struct {
	OrderID   int64     `json:"order_id"`
	PaymentID string    `json:"payment_id"`
	PaidAt    time.Time `json:"paid_at"`
}

type StatusUpdateMessage struct {
	MessageID           string             `json:"message_id"`
	OrderID             int64              `json:"order_id"`
	OldStatus           domain.QueueStatus `json:"old_status"`
	NewStatus           domain.QueueStatus `json:"new_status"`
	ChangedBy           string             `json:"changed_by"`
	Timestamp           time.Time          `json:"timestamp"`
	EstimatedCompletion *time.Time         `json:"estimated_completion,omitempty"`
}

type MessagePublisher interface {
	PublishStatusUpdate(ctx context.Context, msg StatusUpdateMessage) error
}

type NotificationSubscriber interface {
	ConsumeNotifications(ctx context.Context, handler NotificationHandler) error
}

type MessageConsumer interface {
	NotificationSubscriber
	ConsumePayments(ctx context.Context, handler PaymentMessageHandler) error
}

type (
	PaymentMessageHandler func(ctx context.Context, body []byte) error
	NotificationHandler   func(ctx context.Context, body []byte) error
)
