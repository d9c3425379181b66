// Package cache persists lookup results so enrichment runs never repeat a
// network call for a key they have already resolved.
package cache

import (
	"context"

	"github.com/rotisserie/eris"
)

// Store persists one whole key/value mapping. Load returns an empty map
// when nothing has been saved yet. Save replaces the persisted mapping.
type Store[V any] interface {
	Load(ctx context.Context) (map[string]V, error)
	Save(ctx context.Context, entries map[string]V) error
}

// Cache is an in-memory view over a Store. It is loaded once and flushed
// periodically by a single owner; it is not safe for concurrent use.
type Cache[V any] struct {
	store   Store[V]
	entries map[string]V
	dirty   bool
}

// Open loads the mapping behind s.
func Open[V any](ctx context.Context, s Store[V]) (*Cache[V], error) {
	entries, err := s.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "cache: load")
	}
	if entries == nil {
		entries = make(map[string]V)
	}
	return &Cache[V]{store: s, entries: entries}, nil
}

// Get returns the cached value for key. A present key with an empty value
// is a hit.
func (c *Cache[V]) Get(key string) (V, bool) {
	v, ok := c.entries[key]
	return v, ok
}

// Put records a value for key. Keys are never removed.
func (c *Cache[V]) Put(key string, v V) {
	c.entries[key] = v
	c.dirty = true
}

// Len returns the number of cached keys.
func (c *Cache[V]) Len() int {
	return len(c.entries)
}

// Flush saves the mapping if anything changed since the last flush.
func (c *Cache[V]) Flush(ctx context.Context) error {
	if !c.dirty {
		return nil
	}
	if err := c.store.Save(ctx, c.entries); err != nil {
		return eris.Wrap(err, "cache: flush")
	}
	c.dirty = false
	return nil
}
