// Package eventbus carries entity change events to a message broker.
// The broker adapters (Kafka, RabbitMQ, SQS) implement a common
// Producer/Consumer contract; the Sink bridges committed writes from the
// data-access service onto per-collection topics.
package eventbus

import (
	"context"
	"time"
)

// Producer publishes messages to topics.
type Producer interface {
	// Publish sends a single message to the topic.
	Publish(ctx context.Context, topic string, message *Message) error

	// PublishBatch sends several messages to the topic in one operation.
	// Brokers that have no native batch API fall back to sequential sends.
	PublishBatch(ctx context.Context, topic string, messages []*Message) error

	// Close flushes pending messages and shuts the producer down.
	Close() error
}

// Consumer subscribes handlers to topics. Adapters support multiple
// concurrent subscriptions on one connection.
type Consumer interface {
	// Subscribe registers a handler invoked for each message on the topic.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error

	// Unsubscribe stops delivery for the topic.
	Unsubscribe(topic string) error

	// Close stops all subscriptions and releases the connection.
	Close() error
}

// EventBus is the full broker adapter contract: publish, subscribe and
// connectivity checks for readiness probes.
type EventBus interface {
	Producer
	Consumer

	// HealthCheck verifies connectivity to the broker.
	HealthCheck(ctx context.Context) error
}

// Message is one unit on the wire, in either direction.
type Message struct {
	// ID uniquely identifies the message.
	ID string

	// Key selects the partition on brokers that shard by key, so changes
	// to one collection stay ordered.
	Key string

	// Value is the serialized payload.
	Value []byte

	// Headers carries arbitrary string metadata.
	Headers map[string]string

	// ContentType names the serialization format of Value.
	ContentType string

	// Timestamp is when the message was created.
	Timestamp time.Time
}

// MessageHandler processes one consumed message. A returned error signals
// the adapter to retry or redeliver, depending on the broker.
type MessageHandler func(ctx context.Context, msg *Message) error
