package liverepo

import (
	"context"
	"sync"
)

// EqualFunc reports whether two keys identify the same cache entry.
// It must be a true equivalence relation (reflexive, symmetric, transitive)
// or lookups become inconsistent. It is the only equality the registry ever
// uses; keys are never hashed or compared by identity, so structurally equal
// but distinct key values resolve to the same entry.
type EqualFunc[K any] func(a, b K) bool

type entry[K, V any] struct {
	key   K
	cache *Cache[V]
}

// Registry is an ordered, append-only collection of keyed caches offering the
// same lazy-multicast contract as Cache, addressed by key. At most one entry
// exists per logical key as judged by the EqualFunc. Entries persist for the
// registry's lifetime; there is no eviction, so growth is bounded only by the
// number of distinct keys ever initialized.
//
// An existing entry never accepts a replacement source: any Source supplied
// for a key that already has an entry is silently ignored, even when that
// entry holds no value yet.
type Registry[K, V any] struct {
	mu      sync.Mutex
	equal   EqualFunc[K]
	entries []entry[K, V]
}

// NewRegistry returns an empty registry using equal for key lookups.
// equal must be non-nil.
func NewRegistry[K, V any](equal EqualFunc[K]) *Registry[K, V] {
	if equal == nil {
		panic("liverepo: nil EqualFunc")
	}
	return &Registry[K, V]{equal: equal}
}

// Watch returns the multicast output stream for key, creating a new entry
// from src when no entry matches and src is non-nil. With no matching entry
// and no source the returned channel is already closed.
func (r *Registry[K, V]) Watch(key K, src Source[V]) <-chan V {
	c := r.acquire(key, src)
	if c == nil {
		return closedChan[V]()
	}
	return c.Watch(nil)
}

// Latest returns the most recent value for key, creating a new entry from
// src when no entry matches and src is non-nil. On an existing entry that
// holds no value yet it suspends until that entry's first value arrives,
// regardless of any src supplied on this call.
func (r *Registry[K, V]) Latest(ctx context.Context, key K, src Source[V]) (V, bool) {
	c := r.acquire(key, src)
	if c == nil {
		var zero V
		return zero, false
	}
	return c.Latest(ctx, nil)
}

// Peek returns the latest value for key without suspending. ok is false when
// no entry matches or the entry holds no value.
func (r *Registry[K, V]) Peek(key K) (V, bool) {
	r.mu.Lock()
	c := r.lookupLocked(key)
	r.mu.Unlock()
	if c == nil {
		var zero V
		return zero, false
	}
	return c.Peek()
}

// Write publishes v to the entry for key, subject to Cache.Write gating.
// No-op when no entry matches.
func (r *Registry[K, V]) Write(key K, v V) {
	r.mu.Lock()
	c := r.lookupLocked(key)
	r.mu.Unlock()
	if c != nil {
		c.Write(v)
	}
}

// Len reports the number of entries ever created.
func (r *Registry[K, V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close closes every entry's cache.
func (r *Registry[K, V]) Close() {
	r.mu.Lock()
	entries := r.entries
	r.mu.Unlock()
	for _, e := range entries {
		e.cache.Close()
	}
}

// acquire resolves key to its cache, appending a fresh entry when none
// matches and src is non-nil. The new entry is initialized from src before
// the registry lock is released so concurrent callers for the same key
// always observe an initialized cache.
func (r *Registry[K, V]) acquire(key K, src Source[V]) *Cache[V] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c := r.lookupLocked(key); c != nil {
		return c
	}
	if src == nil {
		return nil
	}
	c := NewCache[V]()
	if !c.init(src) {
		return nil
	}
	r.entries = append(r.entries, entry[K, V]{key: key, cache: c})
	return c
}

func (r *Registry[K, V]) lookupLocked(key K) *Cache[V] {
	for i := range r.entries {
		if r.equal(r.entries[i].key, key) {
			return r.entries[i].cache
		}
	}
	return nil
}
