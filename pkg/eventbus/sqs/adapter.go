// Package sqs implements the eventbus contract on AWS SQS using
// aws-sdk-go-v2.
package sqs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/crudkit/crudkit/pkg/eventbus"
	"github.com/crudkit/crudkit/pkg/observability/logger"
)

// ErrClosed is returned by operations on an adapter that has been closed.
var ErrClosed = errors.New("sqs adapter is closed")

// topicAttribute carries the logical topic on queue messages, since SQS
// itself has queues rather than topics.
const topicAttribute = "topic"

// Adapter implements eventbus.EventBus for AWS SQS. SQS has no topic
// concept: messages go to the configured queue with the logical topic as
// a message attribute. A topic that is itself a queue URL overrides the
// configured queue.
type Adapter struct {
	client *sqs.Client
	logger logger.Logger
	config Config
	mu     sync.RWMutex
	subs   map[string]context.CancelFunc
	closed bool
}

// Config holds SQS adapter configuration.
type Config struct {
	Region            string
	QueueURL          string
	Endpoint          string
	AccessKeyID       string
	SecretAccessKey   string
	SessionToken      string
	OperationTimeout  time.Duration
	WaitTimeSeconds   int32
	MaxMessages       int32
	VisibilityTimeout int32
}

// Cosa fa: crea adapter SQS con supporto endpoint custom e long polling.
// Cosa NON fa: non crea code o policy IAM.
// Esempio minimo: adapter, err := sqs.New(cfg, log)
func New(cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.Region == "" {
		return nil, errors.New("aws region is required")
	}
	if cfg.QueueURL == "" {
		return nil, errors.New("sqs queue URL is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = 30 * time.Second
	}
	if cfg.WaitTimeSeconds == 0 {
		cfg.WaitTimeSeconds = 10
	}
	if cfg.MaxMessages == 0 {
		cfg.MaxMessages = 10
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	var opts []func(*sqs.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	client := sqs.NewFromConfig(awsCfg, opts...)
	adapter := &Adapter{
		client: client,
		logger: log,
		config: cfg,
		subs:   make(map[string]context.CancelFunc),
	}
	if err := adapter.HealthCheck(context.Background()); err != nil {
		return nil, err
	}

	log.Info("sqs adapter initialized",
		"region", cfg.Region,
		"queue_url", cfg.QueueURL,
	)

	return adapter, nil
}

// Publish sends a message to the queue, carrying the topic as an attribute.
func (a *Adapter) Publish(ctx context.Context, topic string, message *eventbus.Message) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	if message == nil {
		return errors.New("message is required")
	}

	queueURL := a.resolveQueueURL(topic)
	opCtx, cancel := context.WithTimeout(ctx, a.config.OperationTimeout)
	defer cancel()

	_, err := a.client.SendMessage(opCtx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(queueURL),
		MessageBody:       aws.String(string(message.Value)),
		MessageAttributes: a.outgoingAttributes(topic, message.Headers),
	})
	if err != nil {
		return fmt.Errorf("failed to publish sqs message: %w", err)
	}
	return nil
}

// PublishBatch sends messages in SQS batch chunks of at most ten entries.
func (a *Adapter) PublishBatch(ctx context.Context, topic string, messages []*eventbus.Message) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}

	if len(messages) == 0 {
		return nil
	}

	queueURL := a.resolveQueueURL(topic)
	for i := 0; i < len(messages); i += 10 {
		end := i + 10
		if end > len(messages) {
			end = len(messages)
		}
		batch := messages[i:end]
		entries := make([]types.SendMessageBatchRequestEntry, 0, len(batch))
		for idx, m := range batch {
			entries = append(entries, types.SendMessageBatchRequestEntry{
				Id:                aws.String(strconv.Itoa(i + idx)),
				MessageBody:       aws.String(string(m.Value)),
				MessageAttributes: a.outgoingAttributes(topic, m.Headers),
			})
		}

		opCtx, cancel := context.WithTimeout(ctx, a.config.OperationTimeout)
		_, err := a.client.SendMessageBatch(opCtx, &sqs.SendMessageBatchInput{QueueUrl: aws.String(queueURL), Entries: entries})
		cancel()
		if err != nil {
			return fmt.Errorf("failed to publish sqs batch: %w", err)
		}
	}
	return nil
}

// Subscribe starts a long-polling loop against the queue. Every message on
// the queue is delivered regardless of its topic attribute; the attribute
// arrives in the message headers for consumer-side dispatch.
func (a *Adapter) Subscribe(ctx context.Context, topic string, handler eventbus.MessageHandler) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if _, ok := a.subs[topic]; ok {
		return fmt.Errorf("already subscribed to topic: %s", topic)
	}

	subCtx, cancel := context.WithCancel(ctx)
	a.subs[topic] = cancel
	queueURL := a.resolveQueueURL(topic)
	go a.pollLoop(subCtx, queueURL, handler)

	a.logger.Info("subscribed to queue",
		"topic", topic,
		"queue_url", queueURL,
	)

	return nil
}

func (a *Adapter) pollLoop(ctx context.Context, queueURL string, handler eventbus.MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			recvCtx, cancel := context.WithTimeout(ctx, a.config.OperationTimeout)
			out, err := a.client.ReceiveMessage(recvCtx, &sqs.ReceiveMessageInput{
				QueueUrl:              aws.String(queueURL),
				MaxNumberOfMessages:   a.config.MaxMessages,
				WaitTimeSeconds:       a.config.WaitTimeSeconds,
				VisibilityTimeout:     a.config.VisibilityTimeout,
				MessageAttributeNames: []string{"All"},
			})
			cancel()
			if err != nil {
				a.logger.Error("sqs receive failed", "error", err)
				time.Sleep(200 * time.Millisecond)
				continue
			}

			for _, m := range out.Messages {
				headers := fromSQSAttributes(m.MessageAttributes)
				msg := &eventbus.Message{
					ID:      aws.ToString(m.MessageId),
					Key:     headers[topicAttribute],
					Value:   []byte(aws.ToString(m.Body)),
					Headers: headers,
				}
				if err := handler(ctx, msg); err != nil {
					a.logger.Error("message handler failed",
						"message_id", msg.ID,
						"error", err,
					)
					// Not deleted; the message reappears after the
					// visibility timeout.
					continue
				}
				if m.ReceiptHandle != nil {
					_, _ = a.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{QueueUrl: aws.String(queueURL), ReceiptHandle: m.ReceiptHandle})
				}
			}
		}
	}
}

// Unsubscribe stops the polling loop for the topic.
func (a *Adapter) Unsubscribe(topic string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cancel, ok := a.subs[topic]
	if !ok {
		return fmt.Errorf("not subscribed to topic: %s", topic)
	}
	cancel()
	delete(a.subs, topic)

	a.logger.Info("unsubscribed from queue", "topic", topic)

	return nil
}

// HealthCheck fetches queue attributes to verify connectivity.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}

	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := a.client.GetQueueAttributes(hcCtx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(a.config.QueueURL),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameQueueArn,
		},
	})
	if err != nil {
		return fmt.Errorf("sqs health check failed: %w", err)
	}
	return nil
}

// Close stops all polling loops.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	for _, cancel := range a.subs {
		cancel()
	}
	a.subs = map[string]context.CancelFunc{}

	a.logger.Info("sqs adapter closed")

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

// resolveQueueURL treats a topic that looks like a queue URL as an
// override; anything else publishes to the configured queue.
func (a *Adapter) resolveQueueURL(topic string) string {
	if strings.HasPrefix(topic, "http://") || strings.HasPrefix(topic, "https://") {
		return topic
	}
	return a.config.QueueURL
}

// outgoingAttributes merges the logical topic into the message attributes.
func (a *Adapter) outgoingAttributes(topic string, headers map[string]string) map[string]types.MessageAttributeValue {
	attrs := toSQSAttributes(headers)
	if topic == "" || strings.HasPrefix(topic, "http://") || strings.HasPrefix(topic, "https://") {
		return attrs
	}
	if attrs == nil {
		attrs = make(map[string]types.MessageAttributeValue, 1)
	}
	attrs[topicAttribute] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(topic)}
	return attrs
}

func toSQSAttributes(headers map[string]string) map[string]types.MessageAttributeValue {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]types.MessageAttributeValue, len(headers))
	for k, v := range headers {
		out[k] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}
	return out
}

func fromSQSAttributes(headers map[string]types.MessageAttributeValue) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = aws.ToString(v.StringValue)
	}
	return out
}
