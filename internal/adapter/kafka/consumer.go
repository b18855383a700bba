package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/YelzhanWeb/coffeequeue/internal/adapter/logger"
	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"
)

// Subscriber reads status updates from a consumer group.
type Subscriber struct {
	brokers []string
	groupID string
	topic   string
	logger  logger.Logger
}

var _ interfaces.NotificationSubscriber = (*Subscriber)(nil)

func NewSubscriber(brokers []string, groupID, topic string, log logger.Logger) *Subscriber {
	return &Subscriber{brokers: brokers, groupID: groupID, topic: topic, logger: log}
}

func (s *Subscriber) ConsumeNotifications(ctx context.Context, handler interfaces.NotificationHandler) error {
	group, err := sarama.NewConsumerGroup(s.brokers, s.groupID, NewSaramaConfig())
	if err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	defer func() {
		if err := group.Close(); err != nil {
			s.logger.Error("kafka_group_close_failed", "Failed to close consumer group", "", nil, err)
		}
	}()

	h := &groupHandler{handler: handler, logger: s.logger}
	for {
		if err := group.Consume(ctx, []string{s.topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			s.logger.Warn("kafka_consume_failed", "Error from consumer", "", map[string]interface{}{"error": err.Error()})
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

type groupHandler struct {
	handler interfaces.NotificationHandler
	logger  logger.Logger
}

func (groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.handler(session.Context(), msg.Value); err != nil {
			h.logger.Debug("notification_dropped", "Notification handler failed", "", map[string]interface{}{
				"partition": msg.Partition,
				"offset":    msg.Offset,
				"error":     err.Error(),
			})
		}
		session.MarkMessage(msg, "")
	}
	return nil
}
