package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YelzhanWeb/coffeequeue/internal/adapter/logger"
	"github.com/YelzhanWeb/coffeequeue/internal/domain"
	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"
)

func TestPublishStatusUpdate(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewSaramaConfig())
	msg := interfaces.StatusUpdateMessage{
		MessageID: "m-7",
		OrderID:   7,
		OldStatus: domain.QueueWaiting,
		NewStatus: domain.QueueReady,
		ChangedBy: "bob",
		Timestamp: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
	}

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(pm *sarama.ProducerMessage) error {
		if pm.Topic != "coffee.queue.status" {
			return errors.New("unexpected topic " + pm.Topic)
		}
		key, err := pm.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "7" {
			return errors.New("unexpected key " + string(key))
		}
		value, err := pm.Value.Encode()
		if err != nil {
			return err
		}
		var decoded interfaces.StatusUpdateMessage
		if err := json.Unmarshal(value, &decoded); err != nil {
			return err
		}
		if decoded.OrderID != msg.OrderID || decoded.NewStatus != msg.NewStatus || !decoded.Timestamp.Equal(msg.Timestamp) {
			return errors.New("payload mismatch")
		}
		return nil
	})

	pub := NewPublisherWithProducer(producer, "coffee.queue.status", logger.Nop())
	require.NoError(t, pub.PublishStatusUpdate(context.Background(), msg))
	require.NoError(t, pub.Close())
}

func TestPublishStatusUpdateFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewSaramaConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewPublisherWithProducer(producer, "coffee.queue.status", logger.Nop())
	err := pub.PublishStatusUpdate(context.Background(), interfaces.StatusUpdateMessage{OrderID: 1})

	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, pub.Close())
}
