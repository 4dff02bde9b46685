package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"templeq/pkg/logger"

	"github.com/IBM/sarama"
)

type ConsumerConfig struct {
	Brokers              []string
	GroupID              string
	Topics               []string
	SessionTimeoutMs     int
	HeartbeatMs          int
	RetryBackoffMs       int
	MaxProcessingTime    time.Duration
	AutoCommit           bool
	OffsetOldest         bool
	MaxRetries           int
	RetryBackoffDuration time.Duration
}

func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		Brokers:              []string{"localhost:9092"},
		GroupID:              "templeq-refund-workers",
		Topics:               []string{"booking-lifecycle"},
		SessionTimeoutMs:     30000,
		HeartbeatMs:          3000,
		RetryBackoffMs:       100,
		MaxProcessingTime:    time.Minute,
		AutoCommit:           true,
		OffsetOldest:         true,
		MaxRetries:           3,
		RetryBackoffDuration: time.Second,
	}
}

// KafkaConsumer feeds lifecycle events from a consumer group into a handler
type KafkaConsumer struct {
	consumerGroup sarama.ConsumerGroup
	config        *ConsumerConfig
	handler       EventHandler
	logger        *logger.Logger
	wg            sync.WaitGroup
	cancel        context.CancelFunc
}

func NewKafkaConsumer(config *ConsumerConfig, handler EventHandler) (*KafkaConsumer, error) {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Consumer.Group.Session.Timeout = time.Duration(config.SessionTimeoutMs) * time.Millisecond
	saramaConfig.Consumer.Group.Heartbeat.Interval = time.Duration(config.HeartbeatMs) * time.Millisecond
	saramaConfig.Consumer.Retry.Backoff = time.Duration(config.RetryBackoffMs) * time.Millisecond
	saramaConfig.Consumer.MaxProcessingTime = config.MaxProcessingTime
	saramaConfig.Consumer.Return.Errors = true

	if config.OffsetOldest {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	if config.AutoCommit {
		saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
		saramaConfig.Consumer.Offsets.AutoCommit.Interval = 1 * time.Second
	}

	consumerGroup, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &KafkaConsumer{
		consumerGroup: consumerGroup,
		config:        config,
		handler:       handler,
		logger:        logger.GetDefault(),
	}, nil
}

// Start launches numWorkers consume loops
func (kc *KafkaConsumer) Start(ctx context.Context, numWorkers int) {
	ctx, kc.cancel = context.WithCancel(ctx)
	kc.logger.Info("Starting lifecycle consumers", slog.Int("workers", numWorkers), slog.Any("topics", kc.config.Topics))

	go kc.handleErrors()

	for i := 0; i < numWorkers; i++ {
		kc.wg.Add(1)
		go func(workerID int) {
			defer kc.wg.Done()
			kc.runWorker(ctx, workerID)
		}(i)
	}
}

func (kc *KafkaConsumer) runWorker(ctx context.Context, workerID int) {
	handler := &ConsumerGroupHandler{
		handler:  kc.handler,
		workerID: workerID,
		config:   kc.config,
		logger:   kc.logger,
	}

	for {
		select {
		case <-ctx.Done():
			kc.logger.Info("Lifecycle consumer worker shutting down", slog.Int("worker", workerID))
			return
		default:
			if err := kc.consumerGroup.Consume(ctx, kc.config.Topics, handler); err != nil {
				kc.logger.Error("Error consuming lifecycle events", slog.Int("worker", workerID), slog.String("error", err.Error()))
				time.Sleep(time.Second)
			}
		}
	}
}

func (kc *KafkaConsumer) handleErrors() {
	for err := range kc.consumerGroup.Errors() {
		kc.logger.Error("Consumer group error", slog.String("error", err.Error()))
	}
}

// Stop cancels the workers and closes the consumer group
func (kc *KafkaConsumer) Stop() error {
	if kc.cancel != nil {
		kc.cancel()
	}
	kc.wg.Wait()

	if err := kc.consumerGroup.Close(); err != nil {
		return fmt.Errorf("failed to close consumer group: %w", err)
	}
	kc.logger.Info("Lifecycle consumer stopped")
	return nil
}

// ConsumerGroupHandler implements sarama.ConsumerGroupHandler
type ConsumerGroupHandler struct {
	handler  EventHandler
	workerID int
	config   *ConsumerConfig
	logger   *logger.Logger
}

func (h *ConsumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.logger.Debug("Consumer group session started", slog.Int("worker", h.workerID))
	return nil
}

func (h *ConsumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Debug("Consumer group session ended", slog.Int("worker", h.workerID))
	return nil
}

func (h *ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			if err := h.processMessage(session.Context(), message); err != nil {
				h.logger.Error("Error processing lifecycle event", slog.Int("worker", h.workerID), slog.String("error", err.Error()))
			} else {
				session.MarkMessage(message, "")
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *ConsumerGroupHandler) processMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	var event LifecycleEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal lifecycle event: %w", err)
	}
	return h.executeWithRetry(ctx, &event)
}

func (h *ConsumerGroupHandler) executeWithRetry(ctx context.Context, event *LifecycleEvent) error {
	maxRetries := h.config.MaxRetries
	backoff := h.config.RetryBackoffDuration

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := h.handler.HandleEvent(ctx, event)
		if err == nil {
			return nil
		}

		if attempt == maxRetries {
			return fmt.Errorf("event %s failed after %d retries: %w", event.ID, maxRetries, err)
		}

		// Exponential backoff
		delay := backoff * time.Duration(1<<attempt)
		h.logger.Warn("Retrying lifecycle event",
			slog.Int("worker", h.workerID),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
