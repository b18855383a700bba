package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"github.com/YelzhanWeb/coffeequeue/internal/adapter/logger"
	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"
)

type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   logger.Logger
}

var _ interfaces.MessagePublisher = (*Publisher)(nil)

func NewSaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Timeout = 5 * time.Second
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	return cfg
}

func NewPublisher(brokers []string, topic string, log logger.Logger) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewPublisherWithProducer(producer, topic, log), nil
}

func NewPublisherWithProducer(producer sarama.SyncProducer, topic string, log logger.Logger) *Publisher {
	return &Publisher{producer: producer, topic: topic, logger: log}
}

// PublishStatusUpdate keys messages by order id so updates for one order keep their order within a partition.
func (p *Publisher) PublishStatusUpdate(ctx context.Context, msg interfaces.StatusUpdateMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(msg.OrderID, 10)),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("message_id"), Value: []byte(msg.MessageID)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send message to topic %s: %w", p.topic, err)
	}

	p.logger.Debug("status_update_published", "Status update stored in kafka", msg.MessageID, map[string]interface{}{
		"topic":     p.topic,
		"partition": partition,
		"offset":    offset,
		"order_id":  msg.OrderID,
	})
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
