package eventbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crudkit/crudkit/pkg/crud"
)

// SinkConfig configures how committed writes are published.
type SinkConfig struct {
	// TopicPrefix is prepended to every change topic. Empty means topics
	// start at the collection name.
	TopicPrefix string

	// ServiceName identifies the publishing service in the envelope.
	ServiceName string

	// OperationTimeout bounds each publish. Zero means the caller's
	// context deadline applies unchanged.
	OperationTimeout time.Duration
}

// Sink publishes committed writes as change events on per-collection
// topics. It implements the service's event hook: one event per write,
// published synchronously, with failures reported back to the caller
// (the service logs them and never fails the write).
type Sink struct {
	producer Producer
	config   SinkConfig
}

// NewSink creates a sink that publishes through the given producer.
func NewSink(producer Producer, cfg SinkConfig) (*Sink, error) {
	if producer == nil {
		return nil, errors.New("producer is required")
	}

	return &Sink{
		producer: producer,
		config:   cfg,
	}, nil
}

// ChangeTopic builds the topic name for a change:
// "<prefix>.<collection>.<action>", or "<collection>.<action>" when the
// prefix is empty.
func ChangeTopic(prefix, collection string, action crud.Action) string {
	parts := make([]string, 0, 3)
	if strings.TrimSpace(prefix) != "" {
		parts = append(parts, strings.TrimSpace(prefix))
	}
	parts = append(parts, collection, string(action))
	return strings.Join(parts, ".")
}

// EntityChanged wraps the change into an envelope and publishes it.
func (s *Sink) EntityChanged(ctx context.Context, change crud.Change) error {
	envelope := NewChangeEnvelope(s.config.ServiceName, change)

	msg, err := envelope.ToMessage()
	if err != nil {
		return fmt.Errorf("failed to build change event: %w", err)
	}

	if s.config.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.OperationTimeout)
		defer cancel()
	}

	topic := ChangeTopic(s.config.TopicPrefix, change.Collection, change.Action)
	if err := s.producer.Publish(ctx, topic, msg); err != nil {
		return fmt.Errorf("failed to publish change event to topic %s: %w", topic, err)
	}

	return nil
}

var _ crud.EventSink = (*Sink)(nil)
