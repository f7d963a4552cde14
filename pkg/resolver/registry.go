package resolver

import (
	"context"
	"sort"
	"sync"
)

// MapRegistry is an in-memory Registry.
// Safe for concurrent use.
type MapRegistry struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewMapRegistry creates a registry holding entries.
func NewMapRegistry(entries map[string]any) *MapRegistry {
	r := &MapRegistry{entries: make(map[string]any, len(entries))}
	for k, v := range entries {
		r.entries[k] = v
	}
	return r
}

// NameSet creates a registry where each name maps to itself.
func NameSet(names ...string) *MapRegistry {
	r := NewMapRegistry(nil)
	for _, name := range names {
		r.Register(name, name)
	}
	return r
}

// Register adds an entry. An existing entry is overwritten.
func (r *MapRegistry) Register(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = value
}

// Lookup implements Registry.
func (r *MapRegistry) Lookup(_ context.Context, name string) (any, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[name]
	return v, ok, nil
}

// Names returns the sorted registered names.
func (r *MapRegistry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
