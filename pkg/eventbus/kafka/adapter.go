// Package kafka implements the eventbus contract on Apache Kafka using
// segmentio/kafka-go.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/crudkit/crudkit/pkg/eventbus"
	"github.com/crudkit/crudkit/pkg/observability/logger"
)

// ErrClosed is returned by operations on an adapter that has been closed.
var ErrClosed = errors.New("kafka adapter is closed")

// Adapter implements eventbus.EventBus for Apache Kafka. It manages a
// single writer for publishing and one reader per subscribed topic.
type Adapter struct {
	producer  *kafka.Writer
	consumers map[string]*kafka.Reader
	logger    logger.Logger
	config    Config
	mu        sync.RWMutex
	closed    bool
}

// Config holds the configuration for the Kafka adapter.
type Config struct {
	// Brokers is the list of Kafka broker addresses (e.g., ["localhost:9092"])
	Brokers []string

	// OperationTimeout is the timeout for publish and subscribe operations
	OperationTimeout time.Duration

	// MaxRetries is the maximum number of write attempts for failed operations
	MaxRetries int

	// GroupID is the consumer group ID for subscriptions
	GroupID string
}

// New creates a Kafka adapter with the specified configuration. It
// initializes the writer eagerly; readers are created per subscription.
func New(cfg Config, log logger.Logger) (*Adapter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker address is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "crudkit-consumer-group"
	}

	producer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  cfg.MaxRetries,
		WriteTimeout: cfg.OperationTimeout,
		ReadTimeout:  cfg.OperationTimeout,
		Async:        false,
	}

	log.Info("kafka adapter initialized",
		"brokers", cfg.Brokers,
		"group_id", cfg.GroupID,
		"operation_timeout", cfg.OperationTimeout,
	)

	return &Adapter{
		producer:  producer,
		consumers: make(map[string]*kafka.Reader),
		logger:    log,
		config:    cfg,
	}, nil
}

// Publish sends a single message to the specified topic.
func (a *Adapter) Publish(ctx context.Context, topic string, message *eventbus.Message) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.OperationTimeout)
	defer cancel()

	kafkaMsg := kafka.Message{
		Topic:   topic,
		Key:     []byte(message.Key),
		Value:   message.Value,
		Headers: convertHeaders(message.Headers),
		Time:    message.Timestamp,
	}

	if err := a.producer.WriteMessages(ctx, kafkaMsg); err != nil {
		a.logger.Error("failed to publish message",
			"topic", topic,
			"message_id", message.ID,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}

	a.logger.Debug("message published",
		"topic", topic,
		"message_id", message.ID,
		"key", message.Key,
	)

	return nil
}

// PublishBatch sends multiple messages to the specified topic in a single
// write.
func (a *Adapter) PublishBatch(ctx context.Context, topic string, messages []*eventbus.Message) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}

	if len(messages) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.OperationTimeout)
	defer cancel()

	kafkaMessages := make([]kafka.Message, len(messages))
	for i, msg := range messages {
		kafkaMessages[i] = kafka.Message{
			Topic:   topic,
			Key:     []byte(msg.Key),
			Value:   msg.Value,
			Headers: convertHeaders(msg.Headers),
			Time:    msg.Timestamp,
		}
	}

	if err := a.producer.WriteMessages(ctx, kafkaMessages...); err != nil {
		a.logger.Error("failed to publish batch",
			"topic", topic,
			"batch_size", len(messages),
			"error", err,
		)
		return fmt.Errorf("failed to publish batch to topic %s: %w", topic, err)
	}

	a.logger.Debug("batch published",
		"topic", topic,
		"batch_size", len(messages),
	)

	return nil
}

// Subscribe registers a handler for the topic and starts consuming in a
// background goroutine. Subscribing twice to the same topic is an error.
func (a *Adapter) Subscribe(ctx context.Context, topic string, handler eventbus.MessageHandler) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	if _, exists := a.consumers[topic]; exists {
		return fmt.Errorf("already subscribed to topic: %s", topic)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        a.config.Brokers,
		Topic:          topic,
		GroupID:        a.config.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
		MaxWait:        500 * time.Millisecond,
	})

	a.consumers[topic] = reader

	go a.consumeMessages(ctx, topic, reader, handler)

	a.logger.Info("subscribed to topic",
		"topic", topic,
		"group_id", a.config.GroupID,
	)

	return nil
}

// Unsubscribe closes the consumer for the topic and removes it.
func (a *Adapter) Unsubscribe(topic string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	reader, exists := a.consumers[topic]
	if !exists {
		return fmt.Errorf("not subscribed to topic: %s", topic)
	}

	if err := reader.Close(); err != nil {
		a.logger.Error("failed to close consumer",
			"topic", topic,
			"error", err,
		)
		return fmt.Errorf("failed to close consumer for topic %s: %w", topic, err)
	}

	delete(a.consumers, topic)

	a.logger.Info("unsubscribed from topic", "topic", topic)

	return nil
}

// Close shuts down the writer and all active consumers.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}

	a.closed = true

	var errs []error

	if err := a.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close producer: %w", err))
	}

	for topic, reader := range a.consumers {
		if err := reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close consumer for topic %s: %w", topic, err))
		}
	}

	a.consumers = make(map[string]*kafka.Reader)

	a.logger.Info("kafka adapter closed")

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

// HealthCheck dials the first broker and fetches cluster metadata.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", a.config.Brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to kafka broker: %w", err)
	}
	defer conn.Close()

	if _, err = conn.Brokers(); err != nil {
		return fmt.Errorf("failed to fetch broker metadata: %w", err)
	}

	return nil
}

func (a *Adapter) ensureOpen() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	return nil
}

// consumeMessages reads from the topic until the context is cancelled,
// invoking the handler per message and committing offsets only after the
// handler succeeds.
func (a *Adapter) consumeMessages(ctx context.Context, topic string, reader *kafka.Reader, handler eventbus.MessageHandler) {
	a.logger.Info("started consuming messages", "topic", topic)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("stopping message consumption", "topic", topic)
			return
		default:
			msg, err := reader.FetchMessage(ctx)
			if err != nil {
				// The reader reports io.EOF once it has been closed.
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					return
				}
				a.logger.Error("failed to fetch message",
					"topic", topic,
					"error", err,
				)
				continue
			}

			eventMsg := &eventbus.Message{
				Key:       string(msg.Key),
				Value:     msg.Value,
				Headers:   convertKafkaHeaders(msg.Headers),
				Timestamp: msg.Time,
			}

			if err := handler(ctx, eventMsg); err != nil {
				a.logger.Error("message handler failed",
					"topic", topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
				// No commit on failure; the message is redelivered.
				continue
			}

			if err := reader.CommitMessages(ctx, msg); err != nil {
				a.logger.Error("failed to commit message",
					"topic", topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
			}
		}
	}
}

// convertHeaders converts eventbus headers to Kafka headers.
func convertHeaders(headers map[string]string) []kafka.Header {
	if headers == nil {
		return nil
	}

	kafkaHeaders := make([]kafka.Header, 0, len(headers))
	for key, value := range headers {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{
			Key:   key,
			Value: []byte(value),
		})
	}

	return kafkaHeaders
}

// convertKafkaHeaders converts Kafka headers to eventbus headers.
func convertKafkaHeaders(headers []kafka.Header) map[string]string {
	if headers == nil {
		return nil
	}

	eventHeaders := make(map[string]string, len(headers))
	for _, header := range headers {
		eventHeaders[header.Key] = string(header.Value)
	}

	return eventHeaders
}
