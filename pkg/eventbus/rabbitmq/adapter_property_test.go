package rabbitmq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/crudkit/crudkit/pkg/eventbus"
)

// A closed adapter rejects every publish, whatever the payload.
func TestProperty_ClosePreventsPublish(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 20
	properties := gopter.NewProperties(params)

	properties.Property("closed adapter always rejects publish", prop.ForAll(
		func(body string) bool {
			a := &Adapter{closed: true, subs: map[string]*subscription{}}
			msg := &eventbus.Message{ID: "change-1", Value: []byte(body), Timestamp: time.Now()}
			return errors.Is(a.Publish(context.Background(), "entity.users.created", msg), ErrClosed)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
