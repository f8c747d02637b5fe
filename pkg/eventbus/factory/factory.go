// Package factory builds broker adapters and the change-event sink from
// configuration.
package factory

import (
	"fmt"
	"strings"

	"github.com/crudkit/crudkit/pkg/config"
	"github.com/crudkit/crudkit/pkg/eventbus"
	"github.com/crudkit/crudkit/pkg/eventbus/kafka"
	"github.com/crudkit/crudkit/pkg/eventbus/rabbitmq"
	"github.com/crudkit/crudkit/pkg/eventbus/sqs"
	"github.com/crudkit/crudkit/pkg/observability/logger"
)

// Cosa fa: seleziona e inizializza l'event bus adapter in base alla config.
// Cosa NON fa: non supporta multipli bus attivi nella stessa factory call.
// Esempio minimo: bus, err := factory.NewEventBusAdapter(cfg.EventBus, log)
func NewEventBusAdapter(cfg config.EventBusConfig, log logger.Logger) (eventbus.EventBus, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case config.EventBusTypeKafka:
		return kafka.New(kafka.Config{
			Brokers:          cfg.Brokers,
			OperationTimeout: cfg.OperationTimeout,
			GroupID:          cfg.GroupID,
		}, log)
	case config.EventBusTypeRabbitMQ:
		url := cfg.URL
		if url == "" && len(cfg.Brokers) > 0 {
			url = cfg.Brokers[0]
		}
		return rabbitmq.New(rabbitmq.Config{
			URL:              url,
			Exchange:         cfg.Exchange,
			ExchangeType:     cfg.ExchangeType,
			QueueName:        cfg.QueueName,
			RoutingKey:       cfg.RoutingKey,
			OperationTimeout: cfg.OperationTimeout,
			ConsumerTag:      cfg.ConsumerTag,
		}, log)
	case config.EventBusTypeSQS:
		return sqs.New(sqs.Config{
			Region:            cfg.Region,
			QueueURL:          cfg.QueueURL,
			Endpoint:          cfg.Endpoint,
			AccessKeyID:       cfg.AccessKeyID,
			SecretAccessKey:   cfg.SecretAccessKey,
			SessionToken:      cfg.SessionToken,
			OperationTimeout:  cfg.OperationTimeout,
			WaitTimeSeconds:   cfg.WaitTimeSeconds,
			MaxMessages:       cfg.MaxMessages,
			VisibilityTimeout: cfg.VisibilityTimeout,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported eventbus.type %q (supported: kafka, rabbitmq, sqs)", cfg.Type)
	}
}

// NewChangeSink connects a broker adapter from config and wraps it in a
// sink suitable for crud.ServiceOptions.Events. An empty eventbus.type
// returns a nil sink and no error: publishing is disabled.
func NewChangeSink(cfg config.EventBusConfig, serviceName string, log logger.Logger) (*eventbus.Sink, eventbus.EventBus, error) {
	if strings.TrimSpace(cfg.Type) == "" {
		return nil, nil, nil
	}

	bus, err := NewEventBusAdapter(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	sink, err := eventbus.NewSink(bus, eventbus.SinkConfig{
		TopicPrefix:      cfg.TopicPrefix,
		ServiceName:      serviceName,
		OperationTimeout: cfg.OperationTimeout,
	})
	if err != nil {
		closeErr := bus.Close()
		if closeErr != nil {
			log.Warn("failed to close event bus after sink error", "error", closeErr)
		}
		return nil, nil, err
	}

	return sink, bus, nil
}
