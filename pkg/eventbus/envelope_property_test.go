package eventbus

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/crudkit/crudkit/pkg/crud"
)

// TestProperty_ChangeEnvelopeRoundTrip checks that any valid change
// envelope survives serialization unchanged in its routing fields, count
// metadata, and document payload.
func TestProperty_ChangeEnvelopeRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	actions := []crud.Action{crud.ActionCreated, crud.ActionUpdated, crud.ActionDeleted}

	properties.Property("serialized envelopes preserve routing fields and counts", prop.ForAll(
		func(
			id string,
			collection string,
			producer string,
			actionIdx uint8,
			docID string,
			docName string,
			matched uint16,
			modified uint16,
			deleted uint16,
		) bool {
			if strings.TrimSpace(id) == "" || strings.TrimSpace(collection) == "" {
				return true
			}

			action := actions[int(actionIdx)%len(actions)]

			e := &ChangeEnvelope{
				ID:         id,
				Collection: collection,
				Action:     action,
				Producer:   producer,
				OccurredAt: time.Now().UTC().Truncate(time.Millisecond),
			}
			switch action {
			case crud.ActionCreated:
				e.Docs = []crud.Document{{"_id": docID, "name": docName}}
			case crud.ActionUpdated:
				e.Filter = crud.Filter{"_id": docID}
				e.MatchedCount = int64(matched)
				e.ModifiedCount = int64(modified)
			case crud.ActionDeleted:
				e.Filter = crud.Filter{"_id": docID}
				e.DeletedCount = int64(deleted)
			}

			encoded, err := e.Serialize()
			if err != nil {
				t.Logf("serialize failed: %v", err)
				return false
			}

			decoded, err := DeserializeChangeEnvelope(encoded)
			if err != nil {
				t.Logf("deserialize failed: %v", err)
				return false
			}

			if decoded.ID != e.ID ||
				decoded.Collection != e.Collection ||
				decoded.Action != e.Action ||
				decoded.Producer != e.Producer {
				return false
			}

			switch action {
			case crud.ActionCreated:
				return len(decoded.Docs) == 1 && decoded.Docs[0]["_id"] == docID
			case crud.ActionUpdated:
				return decoded.MatchedCount == int64(matched) && decoded.ModifiedCount == int64(modified)
			default:
				return decoded.DeletedCount == int64(deleted)
			}
		},
		gen.Identifier(),
		gen.Identifier(),
		gen.Identifier(),
		gen.UInt8(),
		gen.Identifier(),
		gen.AlphaString(),
		gen.UInt16(),
		gen.UInt16(),
		gen.UInt16(),
	))

	properties.TestingRun(t)
}
