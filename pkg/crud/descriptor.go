package crud

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crudkit/crudkit/pkg/apperror"
)

// Relation describes a reference from documents of one collection to
// documents of another. LocalField holds the reference value on the owning
// document, ForeignField is matched against it on the related collection.
type Relation struct {
	Collection   string
	LocalField   string
	ForeignField string
}

// UniqueKey names a set of fields whose combined value must be unique within
// the collection. Index management turns these into unique indexes, which is
// the durable guard behind create's check-then-insert window.
type UniqueKey struct {
	Name   string
	Fields []string
}

// Descriptor identifies a target collection together with the policies the
// service applies to it. Callers supply one per operation; the service keeps
// no descriptor state between calls.
type Descriptor struct {
	// Collection is the store collection the operation targets.
	Collection string

	// ExemptFields are excluded from every document the service returns.
	// Reads push them to the store as exclusion projections, write results
	// are masked service side.
	ExemptFields []string

	// Relations maps a document field to the relation it references.
	// Populate specs resolve against this table.
	Relations map[string]Relation

	// UniqueKeys drive index management and duplicate-check filters derived
	// by transport adapters.
	UniqueKeys []UniqueKey

	// Schema optionally carries a JSON Schema applied to create and update
	// payloads before any store call.
	Schema json.RawMessage
}

// Validate checks the descriptor is well formed. It returns a ValidationError
// so transports map malformed descriptors to 400 before any store call.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Collection) == "" {
		return apperror.NewValidation("descriptor collection is required")
	}
	for path, rel := range d.Relations {
		if strings.TrimSpace(path) == "" {
			return apperror.NewValidation(fmt.Sprintf("collection %s: relation path is required", d.Collection))
		}
		if strings.TrimSpace(rel.Collection) == "" || strings.TrimSpace(rel.LocalField) == "" || strings.TrimSpace(rel.ForeignField) == "" {
			return apperror.NewValidation(fmt.Sprintf("collection %s: relation %s is incomplete", d.Collection, path))
		}
	}
	for i, key := range d.UniqueKeys {
		if len(key.Fields) == 0 {
			return apperror.NewValidation(fmt.Sprintf("collection %s: unique key %d names no fields", d.Collection, i))
		}
		for _, field := range key.Fields {
			if strings.TrimSpace(field) == "" {
				return apperror.NewValidation(fmt.Sprintf("collection %s: unique key %d has an empty field", d.Collection, i))
			}
		}
	}
	return nil
}

// Relation resolves a populate path against the descriptor's relation table.
func (d Descriptor) Relation(path string) (Relation, bool) {
	rel, ok := d.Relations[path]
	return rel, ok
}

// projection builds the read projection for this descriptor. Requested fields
// become an inclusion projection with exempt fields subtracted; without a
// field selection the exempt fields become an exclusion projection.
func (d Descriptor) projection(fields []string) Projection {
	if len(fields) == 0 {
		return Projection{Exclude: d.ExemptFields}
	}
	exempt := d.exemptSet()
	include := make([]string, 0, len(fields))
	for _, field := range fields {
		if _, skip := exempt[field]; skip {
			continue
		}
		include = append(include, field)
	}
	if len(include) == 0 {
		return Projection{Exclude: d.ExemptFields}
	}
	return Projection{Include: include}
}

// mask removes the exempt fields from a write result before it is returned.
// The input is cloned so store-owned documents are never mutated.
func (d Descriptor) mask(doc Document) Document {
	if doc == nil {
		return nil
	}
	if len(d.ExemptFields) == 0 {
		return doc
	}
	out := doc.Clone()
	for _, field := range d.ExemptFields {
		delete(out, field)
	}
	return out
}

func (d Descriptor) maskAll(docs []Document) []Document {
	if len(d.ExemptFields) == 0 {
		return docs
	}
	out := make([]Document, len(docs))
	for i, doc := range docs {
		out[i] = d.mask(doc)
	}
	return out
}

func (d Descriptor) exemptSet() map[string]struct{} {
	set := make(map[string]struct{}, len(d.ExemptFields))
	for _, field := range d.ExemptFields {
		set[field] = struct{}{}
	}
	return set
}
