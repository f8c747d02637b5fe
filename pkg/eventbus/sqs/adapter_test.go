package sqs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/crudkit/crudkit/pkg/eventbus"
	"github.com/crudkit/crudkit/pkg/observability/logger"
)

const testQueueURL = "https://sqs.eu-west-1.amazonaws.com/123456789012/entity-changes"

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}, logger.NewNop()); err == nil {
		t.Fatal("expected error for empty region")
	}
	if _, err := New(Config{Region: "eu-west-1"}, logger.NewNop()); err == nil {
		t.Fatal("expected error for empty queue URL")
	}
	if _, err := New(Config{Region: "eu-west-1", QueueURL: testQueueURL}, nil); err == nil {
		t.Fatal("expected error for missing logger")
	}
}

func TestClosedAdapterOperations(t *testing.T) {
	a := &Adapter{closed: true, subs: map[string]context.CancelFunc{}, logger: logger.NewNop()}
	msg := &eventbus.Message{ID: "change-1", Value: []byte(`{"collection":"users"}`), Timestamp: time.Now()}

	if err := a.Publish(context.Background(), "entity.users.created", msg); !errors.Is(err, ErrClosed) {
		t.Fatalf("Publish on closed adapter = %v, want ErrClosed", err)
	}
	if err := a.PublishBatch(context.Background(), "entity.users.created", []*eventbus.Message{msg}); !errors.Is(err, ErrClosed) {
		t.Fatalf("PublishBatch on closed adapter = %v, want ErrClosed", err)
	}
	if err := a.Subscribe(context.Background(), "entity.users.created", func(context.Context, *eventbus.Message) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("Subscribe on closed adapter = %v, want ErrClosed", err)
	}
	if err := a.HealthCheck(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("HealthCheck on closed adapter = %v, want ErrClosed", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close on closed adapter = %v, want nil", err)
	}
}

func TestUnsubscribe_NotSubscribed(t *testing.T) {
	a := &Adapter{subs: map[string]context.CancelFunc{}, logger: logger.NewNop()}
	if err := a.Unsubscribe("entity.orders.deleted"); err == nil {
		t.Fatal("expected error for missing subscription")
	}
}

func TestResolveQueueURL(t *testing.T) {
	a := &Adapter{config: Config{QueueURL: testQueueURL}}

	if got := a.resolveQueueURL("entity.users.created"); got != testQueueURL {
		t.Fatalf("logical topic should map to the configured queue, got %s", got)
	}
	if got := a.resolveQueueURL(""); got != testQueueURL {
		t.Fatalf("empty topic should map to the configured queue, got %s", got)
	}

	override := "https://sqs.eu-west-1.amazonaws.com/123456789012/other-queue"
	if got := a.resolveQueueURL(override); got != override {
		t.Fatalf("queue URL topic should override, got %s", got)
	}
}

func TestOutgoingAttributes(t *testing.T) {
	a := &Adapter{config: Config{QueueURL: testQueueURL}}

	attrs := a.outgoingAttributes("entity.users.created", map[string]string{"collection": "users"})
	if got := aws.ToString(attrs[topicAttribute].StringValue); got != "entity.users.created" {
		t.Fatalf("topic attribute = %q, want entity.users.created", got)
	}
	if got := aws.ToString(attrs["collection"].StringValue); got != "users" {
		t.Fatalf("collection attribute = %q, want users", got)
	}

	// No headers still produces the topic attribute.
	attrs = a.outgoingAttributes("entity.orders.deleted", nil)
	if len(attrs) != 1 {
		t.Fatalf("expected only the topic attribute, got %d attributes", len(attrs))
	}

	// A queue URL topic carries no logical topic.
	attrs = a.outgoingAttributes(testQueueURL, map[string]string{"collection": "users"})
	if _, ok := attrs[topicAttribute]; ok {
		t.Fatal("queue URL topic should not become a topic attribute")
	}

	if attrs := a.outgoingAttributes("", nil); attrs != nil {
		t.Fatalf("empty topic with no headers should produce nil attributes, got %#v", attrs)
	}
}

func TestAttributesConversion(t *testing.T) {
	if toSQSAttributes(nil) != nil {
		t.Fatal("toSQSAttributes(nil) should be nil")
	}
	if fromSQSAttributes(nil) != nil {
		t.Fatal("fromSQSAttributes(nil) should be nil")
	}

	in := map[string]string{"collection": "users", "action": "created"}
	out := fromSQSAttributes(toSQSAttributes(in))
	if len(out) != len(in) || out["collection"] != "users" || out["action"] != "created" {
		t.Fatalf("unexpected attrs round trip: %#v", out)
	}

	decoded := fromSQSAttributes(map[string]types.MessageAttributeValue{
		"producer": {DataType: aws.String("String"), StringValue: aws.String("data-service")},
	})
	if decoded["producer"] != "data-service" {
		t.Fatalf("expected data-service, got %q", decoded["producer"])
	}
}
