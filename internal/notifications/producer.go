package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"templeq/pkg/logger"

	"github.com/IBM/sarama"
)

// KafkaProducerConfig contains configuration for the lifecycle event producer
type KafkaProducerConfig struct {
	Brokers          []string
	Topic            string
	RetryMax         int
	TimeoutMs        int
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
	MaxMessageBytes  int
}

// DefaultKafkaProducerConfig returns a default producer configuration
func DefaultKafkaProducerConfig() *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:          []string{"localhost:9092"},
		Topic:            "booking-lifecycle",
		RetryMax:         3,
		TimeoutMs:        10000,             // 10 seconds
		RequiredAcks:     sarama.WaitForAll, // Wait for all in-sync replicas
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
		MaxMessageBytes:  1000000, // 1MB
	}
}

// NewSaramaProducerConfig builds the sarama settings for a producer config
func NewSaramaProducerConfig(config *KafkaProducerConfig) *sarama.Config {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = config.RequiredAcks
	saramaConfig.Producer.Compression = config.CompressionType
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = time.Duration(config.TimeoutMs) * time.Millisecond
	saramaConfig.Producer.Idempotent = config.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = config.MaxMessageBytes

	// Idempotent producers need a single in-flight request
	if config.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Hash partitioner keeps a booking's events in order
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	return saramaConfig
}

// KafkaProducer publishes lifecycle events to Kafka
type KafkaProducer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *logger.Logger
}

// NewKafkaProducer dials the brokers and creates a sync producer
func NewKafkaProducer(config *KafkaProducerConfig) (*KafkaProducer, error) {
	producer, err := sarama.NewSyncProducer(config.Brokers, NewSaramaProducerConfig(config))
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewKafkaProducerWith(producer, config.Topic), nil
}

// NewKafkaProducerWith wraps an existing sync producer
func NewKafkaProducerWith(producer sarama.SyncProducer, topic string) *KafkaProducer {
	return &KafkaProducer{producer: producer, topic: topic, logger: logger.GetDefault()}
}

// Publish sends one event keyed by booking id
func (p *KafkaProducer) Publish(ctx context.Context, event *LifecycleEvent) error {
	messageBytes, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycle event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(event.GetPartitionKey()),
		Value:     sarama.ByteEncoder(messageBytes),
		Headers:   p.createHeaders(event),
		Timestamp: event.OccurredAt,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send lifecycle event to Kafka: %w", err)
	}

	p.logger.DebugContext(ctx, "Lifecycle event published",
		slog.String("topic", p.topic),
		slog.Int("partition", int(partition)),
		slog.Int64("offset", offset),
		slog.String("type", string(event.Type)),
		slog.String("booking_id", event.BookingID),
	)
	return nil
}

func (p *KafkaProducer) createHeaders(event *LifecycleEvent) []sarama.RecordHeader {
	headers := []sarama.RecordHeader{
		{Key: []byte("event_id"), Value: []byte(event.ID.String())},
		{Key: []byte("event_type"), Value: []byte(event.Type)},
		{Key: []byte("temple_id"), Value: []byte(event.TempleID)},
		{Key: []byte("producer"), Value: []byte("templeq-queue")},
		{Key: []byte("occurred_at"), Value: []byte(event.OccurredAt.Format(time.RFC3339))},
	}
	if event.PreviousBookingID != "" {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte("previous_booking_id"),
			Value: []byte(event.PreviousBookingID),
		})
	}
	return headers
}

// Close closes the Kafka producer
func (p *KafkaProducer) Close() error {
	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			return fmt.Errorf("failed to close Kafka producer: %w", err)
		}
		p.logger.Info("Kafka lifecycle producer closed")
	}
	return nil
}
