package crud

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the descriptors an application works with, keyed by
// collection. The service uses it to resolve nested populate hops across
// models, index management walks it to materialize unique keys, and the
// OpenAPI generator derives resource schemas from it. Safe for concurrent
// use.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
}

// NewRegistry creates an empty descriptor registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]Descriptor)}
}

// Register adds a descriptor. Registering the same collection twice is an
// error so wiring mistakes surface at startup.
func (r *Registry) Register(desc Descriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptors[desc.Collection]; exists {
		return fmt.Errorf("descriptor already registered for collection %s", desc.Collection)
	}
	r.descriptors[desc.Collection] = desc
	return nil
}

// Lookup returns the descriptor registered for a collection.
func (r *Registry) Lookup(collection string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.descriptors[collection]
	return desc, ok
}

// Descriptors returns all registered descriptors ordered by collection name.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.descriptors))
	for _, desc := range r.descriptors {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Collection < out[j].Collection })
	return out
}
