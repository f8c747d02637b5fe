package crud

import "context"

// PayloadValidator checks payloads against a descriptor's schema before any
// store call, rejecting them with a ValidationError. ValidatePayload applies
// the full schema to create payloads; ValidatePartial checks only the fields
// present in an operator-free update expression.
type PayloadValidator interface {
	ValidatePayload(ctx context.Context, desc Descriptor, payload Document) error
	ValidatePartial(ctx context.Context, desc Descriptor, payload Document) error
}
