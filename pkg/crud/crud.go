// Package crud implements a model-agnostic CRUD service layer for document
// stores. Operations take a caller-supplied Descriptor plus opaque filter and
// update expressions, run existence-checked writes and paginated populated
// reads against a minimal Store contract, and shape every outcome into the
// uniform Result envelope.
package crud

// Document is a schemaless document as stored and returned by the Store.
type Document map[string]interface{}

// Filter is an opaque, store-native query predicate. The service passes it
// through to the Store unmodified.
type Filter map[string]interface{}

// Update is an opaque, store-native partial-update expression. The service
// passes it through to the Store unmodified.
type Update map[string]interface{}

// Clone returns a shallow copy of the document. Nested documents stay shared
// with the original.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for key, value := range d {
		out[key] = value
	}
	return out
}

// mergeFilters combines query-derived terms with an explicit filter. Explicit
// terms win on key collision.
func mergeFilters(derived map[string]interface{}, explicit Filter) Filter {
	if len(derived) == 0 && len(explicit) == 0 {
		return Filter{}
	}
	out := make(Filter, len(derived)+len(explicit))
	for key, value := range derived {
		out[key] = value
	}
	for key, value := range explicit {
		out[key] = value
	}
	return out
}
