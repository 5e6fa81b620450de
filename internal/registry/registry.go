package registry

import (
	"strings"
	"sync"
)

// Registry maps topic keys to per-item daemon state.
//
// Keys are the base topic of an item, with any control suffix already
// stripped. The zero value is not usable; call New.
type Registry[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{items: make(map[string]T)}
}

// Lookup returns the item for key, if present.
func (r *Registry[T]) Lookup(key string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[key]
	return item, ok
}

// Ensure returns the item for key, creating it with create when absent.
// The boolean reports whether the item already existed. create runs under
// the registry lock and must not call back into the registry.
func (r *Registry[T]) Ensure(key string, create func() T) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.items[key]; ok {
		return item, true
	}
	item := create()
	r.items[key] = item
	return item, false
}

// Store inserts or replaces the item for key.
func (r *Registry[T]) Store(key string, item T) {
	r.mu.Lock()
	r.items[key] = item
	r.mu.Unlock()
}

// Remove deletes the item for key and returns it. The boolean is false
// when no such item existed.
func (r *Registry[T]) Remove(key string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[key]
	if ok {
		delete(r.items, key)
	}
	return item, ok
}

// ForEach calls fn for every item. Iteration order is unspecified. fn runs
// under the registry lock and must not mutate the registry.
func (r *Registry[T]) ForEach(fn func(key string, item T)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for key, item := range r.items {
		fn(key, item)
	}
}

// Keys returns a snapshot of all registered keys, in unspecified order.
func (r *Registry[T]) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.items))
	for key := range r.items {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of registered items.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// MatchSuffix reports whether topic is a control topic under the given
// suffix and, if so, returns the base key with the suffix removed.
//
// The match is exact: the topic must be strictly longer than the suffix,
// so the suffix alone is not a control topic. An empty suffix never
// matches.
func MatchSuffix(topic, suffix string) (string, bool) {
	if suffix == "" || len(topic) <= len(suffix) {
		return "", false
	}
	if !strings.HasSuffix(topic, suffix) {
		return "", false
	}
	return topic[:len(topic)-len(suffix)], true
}
