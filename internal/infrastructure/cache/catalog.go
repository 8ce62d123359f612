// Package cache keeps catalog lookups in process and drops them when
// PostgreSQL reports a catalog change with NOTIFY.
package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"prodledger/internal/core/id"
)

// Getter loads one catalog item.
type Getter[T any] interface {
	GetByID(ctx context.Context, id id.ID) (T, error)
}

// Catalog caches GetByID results. Errors (including not-found) are never
// cached, so an item created after a miss is found on the next call.
type Catalog[T any] struct {
	src Getter[T]

	mu    sync.RWMutex
	items map[id.ID]T

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCatalog wraps src.
func NewCatalog[T any](src Getter[T]) *Catalog[T] {
	return &Catalog[T]{
		src:   src,
		items: make(map[id.ID]T),
	}
}

// GetByID returns the cached item or loads it from the source.
func (c *Catalog[T]) GetByID(ctx context.Context, itemID id.ID) (T, error) {
	c.mu.RLock()
	item, ok := c.items[itemID]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return item, nil
	}

	c.misses.Add(1)
	item, err := c.src.GetByID(ctx, itemID)
	if err != nil {
		return item, err
	}

	c.mu.Lock()
	c.items[itemID] = item
	c.mu.Unlock()
	return item, nil
}

// Invalidate drops every cached item.
func (c *Catalog[T]) Invalidate() {
	c.mu.Lock()
	c.items = make(map[id.ID]T)
	c.mu.Unlock()
}

// Stats is a point-in-time view of a Catalog.
type Stats struct {
	Size   int   `json:"size"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Stats returns current cache statistics.
func (c *Catalog[T]) Stats() Stats {
	c.mu.RLock()
	size := len(c.items)
	c.mu.RUnlock()
	return Stats{Size: size, Hits: c.hits.Load(), Misses: c.misses.Load()}
}
