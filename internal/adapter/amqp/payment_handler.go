package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/YelzhanWeb/coffeequeue/internal/adapter/logger"
	"github.com/YelzhanWeb/coffeequeue/internal/domain"
	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, orderID int64) (*domain.QueueEntry, error)
}

// PaymentHandler enqueues orders whose payment succeeded.
type PaymentHandler struct {
	service Enqueuer
	logger  logger.Logger
}

func NewPaymentHandler(service Enqueuer, logger logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger,
	}
}

// HandlePayment returns nil for messages that should be acked, including orders that cannot enter the queue.
func (h *PaymentHandler) HandlePayment(ctx context.Context, body []byte) error {
	var msg interfaces.PaymentSucceededMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse payment message", "", nil, err)
		return err
	}
	if msg.OrderID <= 0 {
		return fmt.Errorf("payment %s has no order id", msg.PaymentID)
	}

	entry, err := h.service.Enqueue(ctx, msg.OrderID)
	switch {
	case err == nil:
		h.logger.Info("payment_enqueued", fmt.Sprintf("Order %d is at position %d", entry.OrderID, entry.Position), msg.PaymentID,
			map[string]interface{}{"order_id": entry.OrderID, "position": entry.Position})
		return nil
	case errors.Is(err, domain.ErrNotEligible):
		h.logger.Info("payment_skipped", fmt.Sprintf("Order %d does not enter the queue", msg.OrderID), msg.PaymentID,
			map[string]interface{}{"order_id": msg.OrderID, "reason": err.Error()})
		return nil
	default:
		return err
	}
}
