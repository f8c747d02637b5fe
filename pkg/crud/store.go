package crud

import (
	"context"
	"errors"
)

// ErrNoDocuments is the sentinel Store implementations return from FindOne
// when no document matches the filter.
var ErrNoDocuments = errors.New("no documents found")

// Projection selects the fields returned by a read. A non-empty Include list
// restricts results to exactly those fields; otherwise Exclude removes the
// named fields from otherwise complete documents.
type Projection struct {
	Include []string
	Exclude []string
}

// FindOptions carries the pagination window, sorting and projection of a
// multi-document read.
type FindOptions struct {
	Projection Projection
	Sort       []SortField
	Skip       int64
	Limit      int64
}

// PopulateSpec tells the store how to resolve a single relation hop.
type PopulateSpec struct {
	// Path is the document field the resolved documents replace.
	Path string
	// Projection limits the fields of the related documents.
	Projection Projection
}

// UpdateResult reports the effect of an UpdateMany call.
type UpdateResult struct {
	MatchedCount  int64 `json:"matched_count"`
	ModifiedCount int64 `json:"modified_count"`
}

// DeleteResult reports the effect of a DeleteMany call.
type DeleteResult struct {
	DeletedCount int64 `json:"deleted_count"`
}

// Store is the minimal capability set the service requires from a document
// database. Implementations translate the opaque filter and update
// expressions into their native query language and return plain documents.
// Store failures are reported as ordinary errors; the service wraps them as
// internal errors without logging or reformatting them.
type Store interface {
	// Find returns the documents matching filter inside the window described
	// by opts. An empty result is a nil or empty slice, never an error.
	Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]Document, error)

	// FindOne returns the first document matching filter in the store's
	// natural order, or ErrNoDocuments when nothing matches.
	FindOne(ctx context.Context, collection string, filter Filter, projection Projection) (Document, error)

	// InsertOne stores one document and returns it as persisted, including
	// any store-assigned identity.
	InsertOne(ctx context.Context, collection string, doc Document) (Document, error)

	// InsertMany stores all documents in order and returns them as
	// persisted. Implementations without multi-document transactions cannot
	// roll back a partial batch; the service documents that window and keeps
	// its duplicate checks ahead of the insert.
	InsertMany(ctx context.Context, collection string, docs []Document) ([]Document, error)

	// UpdateMany applies update to every document matching filter. Matching
	// nothing is not an error.
	UpdateMany(ctx context.Context, collection string, filter Filter, update Update) (UpdateResult, error)

	// DeleteMany removes every document matching filter. Matching nothing is
	// not an error.
	DeleteMany(ctx context.Context, collection string, filter Filter) (DeleteResult, error)

	// Count returns the number of documents matching filter.
	Count(ctx context.Context, collection string, filter Filter) (int64, error)

	// Populate resolves one relation hop on the given documents in place.
	// Reference values at relation.LocalField are replaced with the related
	// documents selected by spec.Projection. Unresolvable references leave
	// the document untouched.
	Populate(ctx context.Context, docs []Document, relation Relation, spec PopulateSpec) error
}

// IndexEnsurer is an optional Store capability used by index management to
// materialize a descriptor's unique keys as unique indexes.
type IndexEnsurer interface {
	EnsureDescriptorIndexes(ctx context.Context, desc Descriptor) ([]string, error)
}
