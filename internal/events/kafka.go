package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Producer is the part of *kgo.Client the Kafka publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Kafka publishes events as JSON records keyed by account ID, so each
// account's events stay ordered within a partition.
type Kafka struct {
	producer Producer
	topic    string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewKafka connects a producer to brokers.
func NewKafka(brokers []string, topic string, logger *zap.Logger) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("kafka publisher initialized", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return NewKafkaWithProducer(client, topic, logger), nil
}

// NewKafkaWithProducer wraps an existing producer.
func NewKafkaWithProducer(p Producer, topic string, logger *zap.Logger) *Kafka {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Kafka{producer: p, topic: topic, timeout: 5 * time.Second, logger: logger}
}

// Publish implements Publisher.
func (k *Kafka) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(NewEnvelope(e))
	if err != nil {
		return fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	rec := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(e.AccountID),
		Value: data,
		Headers: []kgo.RecordHeader{
			{Key: "event", Value: []byte(e.Type)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	if err := k.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce %s event: %w", e.Type, err)
	}
	return nil
}

// Close flushes and closes the producer.
func (k *Kafka) Close() {
	k.producer.Close()
}
