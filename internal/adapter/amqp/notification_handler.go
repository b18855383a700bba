package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/YelzhanWeb/coffeequeue/internal/adapter/logger"
	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"
)

type NotificationHandler struct {
	logger logger.Logger
	out    io.Writer
}

func NewNotificationHandler(logger logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		logger: logger,
		out:    os.Stdout,
	}
}

func (h *NotificationHandler) HandleNotification(ctx context.Context, body []byte) error {
	var msg interfaces.StatusUpdateMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse notification", "", nil, err)
		return err
	}

	h.logger.Debug("notification_received", fmt.Sprintf("Received status update for order %d", msg.OrderID),
		msg.MessageID, map[string]interface{}{
			"order_id":   msg.OrderID,
			"new_status": msg.NewStatus,
		})

	from := string(msg.OldStatus)
	if from == "" {
		from = "new"
	}
	line := fmt.Sprintf("Notification for order %d: Status changed from '%s' to '%s' by %s",
		msg.OrderID, from, msg.NewStatus, msg.ChangedBy)
	if msg.EstimatedCompletion != nil {
		line += fmt.Sprintf(", ready around %s", msg.EstimatedCompletion.Format("15:04"))
	}
	_, err := fmt.Fprintln(h.out, line)
	return err
}
