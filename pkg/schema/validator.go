// Package schema validates documents against the JSON Schema a model
// descriptor carries. Schemas are compiled on first use and cached per
// collection, so registering a model costs nothing until traffic arrives.
package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/crudkit/crudkit/pkg/apperror"
	"github.com/crudkit/crudkit/pkg/crud"
)

// Validator implements crud.PayloadValidator on descriptor schemas.
// Descriptors without a schema pass every payload.
type Validator struct {
	mu    sync.RWMutex
	cache map[string]*compiled
}

type compiled struct {
	raw     []byte
	full    *jsonschema.Resolved
	partial *jsonschema.Resolved
}

// NewValidator creates an empty schema validator.
func NewValidator() *Validator {
	return &Validator{cache: make(map[string]*compiled)}
}

// ValidatePayload applies the descriptor's full schema to a create payload.
func (v *Validator) ValidatePayload(ctx context.Context, desc crud.Descriptor, payload crud.Document) error {
	entry, err := v.compiledFor(desc)
	if err != nil || entry == nil {
		return err
	}
	if err := entry.full.Validate(map[string]interface{}(payload)); err != nil {
		return validationFailure(err)
	}
	return nil
}

// ValidatePartial checks an update payload field by field: every provided
// field must match its property schema, but top-level presence constraints
// (required, dependentRequired, minProperties) are not enforced. Nested
// objects supplied in the payload are replaced wholesale and stay subject
// to their full sub-schema.
func (v *Validator) ValidatePartial(ctx context.Context, desc crud.Descriptor, payload crud.Document) error {
	entry, err := v.compiledFor(desc)
	if err != nil || entry == nil {
		return err
	}
	if err := entry.partial.Validate(map[string]interface{}(payload)); err != nil {
		return validationFailure(err)
	}
	return nil
}

// compiledFor returns the cached compilation for the descriptor, rebuilding
// it when the descriptor's schema bytes changed since the last call.
func (v *Validator) compiledFor(desc crud.Descriptor) (*compiled, error) {
	if len(desc.Schema) == 0 {
		return nil, nil
	}

	v.mu.RLock()
	entry, ok := v.cache[desc.Collection]
	v.mu.RUnlock()
	if ok && bytes.Equal(entry.raw, desc.Schema) {
		return entry, nil
	}

	entry, err := compile(desc.Schema)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.cache[desc.Collection] = entry
	v.mu.Unlock()
	return entry, nil
}

func compile(raw json.RawMessage) (*compiled, error) {
	full, err := parseSchema(raw)
	if err != nil {
		return nil, err
	}
	resolvedFull, err := full.Resolve(nil)
	if err != nil {
		return nil, invalidSchema(err)
	}

	partial, err := parseSchema(raw)
	if err != nil {
		return nil, err
	}
	partial.Required = nil
	partial.DependentRequired = nil
	partial.MinProperties = nil
	resolvedPartial, err := partial.Resolve(nil)
	if err != nil {
		return nil, invalidSchema(err)
	}

	return &compiled{
		raw:     append([]byte(nil), raw...),
		full:    resolvedFull,
		partial: resolvedPartial,
	}, nil
}

func parseSchema(raw json.RawMessage) (*jsonschema.Schema, error) {
	s := new(jsonschema.Schema)
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, invalidSchema(err)
	}
	return s, nil
}

func invalidSchema(err error) error {
	return apperror.NewValidation(fmt.Sprintf("descriptor schema is invalid: %v", err))
}

func validationFailure(err error) error {
	return apperror.NewValidation("payload does not match the model schema").
		WithDetails(map[string]interface{}{"cause": err.Error()})
}

var _ crud.PayloadValidator = (*Validator)(nil)
