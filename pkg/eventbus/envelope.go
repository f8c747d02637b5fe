package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crudkit/crudkit/pkg/crud"
)

// ChangeContentType is the content type of serialized change envelopes.
const ChangeContentType = "application/json"

// ChangeEnvelope is the wire shape of an entity change event. Created
// events carry the inserted documents (exempt fields already masked by the
// service); updated and deleted events carry the selecting filter plus the
// store's count metadata.
type ChangeEnvelope struct {
	ID            string          `json:"id"`
	Collection    string          `json:"collection"`
	Action        crud.Action     `json:"action"`
	Docs          []crud.Document `json:"docs,omitempty"`
	Filter        crud.Filter     `json:"filter,omitempty"`
	MatchedCount  int64           `json:"matched_count,omitempty"`
	ModifiedCount int64           `json:"modified_count,omitempty"`
	DeletedCount  int64           `json:"deleted_count,omitempty"`
	Producer      string          `json:"producer,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewChangeEnvelope wraps a committed write into an envelope with a fresh
// event id and timestamp. The producer names the publishing service.
func NewChangeEnvelope(producer string, change crud.Change) *ChangeEnvelope {
	return &ChangeEnvelope{
		ID:            uuid.New().String(),
		Collection:    change.Collection,
		Action:        change.Action,
		Docs:          change.Docs,
		Filter:        change.Filter,
		MatchedCount:  change.Matched,
		ModifiedCount: change.Modified,
		DeletedCount:  change.Deleted,
		Producer:      producer,
		OccurredAt:    time.Now().UTC(),
	}
}

// Validate checks that the envelope can be interpreted by a consumer.
func (e *ChangeEnvelope) Validate() error {
	if e == nil {
		return errors.New("change envelope is nil")
	}
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("missing required field: id")
	}
	if strings.TrimSpace(e.Collection) == "" {
		return errors.New("missing required field: collection")
	}
	switch e.Action {
	case crud.ActionCreated, crud.ActionUpdated, crud.ActionDeleted:
	default:
		return fmt.Errorf("invalid action: %q", e.Action)
	}
	if e.Action == crud.ActionCreated && len(e.Docs) == 0 {
		return errors.New("created events must carry at least one document")
	}
	if e.OccurredAt.IsZero() {
		return errors.New("occurred_at is required")
	}
	return nil
}

// Serialize marshals the envelope to JSON.
func (e *ChangeEnvelope) Serialize() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize change envelope: %w", err)
	}
	return data, nil
}

// DeserializeChangeEnvelope unmarshals and validates an envelope from JSON.
func DeserializeChangeEnvelope(data []byte) (*ChangeEnvelope, error) {
	if len(data) == 0 {
		return nil, errors.New("cannot deserialize empty envelope")
	}

	var envelope ChangeEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to deserialize change envelope: %w", err)
	}

	if err := envelope.Validate(); err != nil {
		return nil, err
	}

	return &envelope, nil
}

// ToMessage converts the envelope into an eventbus message. The collection
// doubles as the partition key so consumers observe each collection's
// changes in commit order.
func (e *ChangeEnvelope) ToMessage() (*Message, error) {
	payload, err := e.Serialize()
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:          e.ID,
		Key:         e.Collection,
		Value:       payload,
		ContentType: ChangeContentType,
		Timestamp:   e.OccurredAt,
		Headers: map[string]string{
			"collection": e.Collection,
			"action":     string(e.Action),
			"producer":   e.Producer,
		},
	}, nil
}

// ChangeEnvelopeFromMessage decodes a change envelope from a consumed message.
func ChangeEnvelopeFromMessage(msg *Message) (*ChangeEnvelope, error) {
	if msg == nil {
		return nil, errors.New("message is nil")
	}
	if len(msg.Value) == 0 {
		return nil, errors.New("message payload is empty")
	}

	return DeserializeChangeEnvelope(msg.Value)
}
