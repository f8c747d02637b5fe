package crud

import "context"

// Action names the kind of committed write a change event describes.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Change describes a committed write on a collection. Docs carries the
// created documents with exempt fields already masked; updates and deletes
// carry the filter that selected the affected documents plus the store's
// count metadata.
type Change struct {
	Collection string
	Action     Action
	Docs       []Document
	Filter     Filter
	Matched    int64
	Modified   int64
	Deleted    int64
}

// EventSink receives change notifications after successful writes. Sink
// failures never fail the write; the service logs them and moves on.
type EventSink interface {
	EntityChanged(ctx context.Context, change Change) error
}
