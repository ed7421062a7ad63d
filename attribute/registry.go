package attribute

import (
	"fmt"
	"sync"
)

// Registry maps attribute names to extractors.
//
// Resolution takes a shared lock; registration is an administrative
// operation that takes the exclusive lock. Field, expression and custom
// definitions are stored in the same namespace and are indistinguishable once
// registered.
type Registry[K comparable, V any] struct {
	mu         sync.RWMutex
	extractors map[string]Extractor[K, V]
	types      map[string]FieldType
	order      []string
}

// NewRegistry creates an empty registry.
func NewRegistry[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		extractors: make(map[string]Extractor[K, V]),
		types:      make(map[string]FieldType),
	}
}

// Register adds the given definitions.
//
// Registration is all-or-nothing: if any definition is invalid or collides
// with an existing name (or another definition in the same call), nothing is
// registered.
func (r *Registry[K, V]) Register(defs ...Definition[K, V]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return ErrEmptyName
		}
		if d.Extractor == nil {
			return fmt.Errorf("%w: %q", ErrNilExtractor, d.Name)
		}
		if _, ok := r.extractors[d.Name]; ok {
			return &DuplicateAttributeError{Name: d.Name}
		}
		if _, ok := seen[d.Name]; ok {
			return &DuplicateAttributeError{Name: d.Name}
		}
		seen[d.Name] = struct{}{}
	}

	for _, d := range defs {
		r.extractors[d.Name] = d.extractor()
		r.types[d.Name] = d.Type
		r.order = append(r.order, d.Name)
	}
	return nil
}

// RegisterExtractor associates name with ex.
func (r *Registry[K, V]) RegisterExtractor(name string, ex Extractor[K, V]) error {
	return r.Register(Custom(name, ex))
}

// Resolve returns the extractor registered under name.
func (r *Registry[K, V]) Resolve(name string) (Extractor[K, V], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ex, ok := r.extractors[name]
	if !ok {
		return nil, &UnknownAttributeError{Name: name}
	}
	return ex, nil
}

// Type returns the declared type of name.
func (r *Registry[K, V]) Type(name string) (FieldType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	return t, ok
}

// Names returns the registered names in registration order.
func (r *Registry[K, V]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered attributes.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.extractors)
}
