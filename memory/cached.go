package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/hupe1980/agentkernel/core"
)

// CachedStore decorates a MemoryStore with an in-process read cache. Writes
// and removals go to the inner store first and then invalidate the cached
// record, so versions are always those of the inner store.
type CachedStore struct {
	inner core.MemoryStore
	cache *ristretto.Cache[string, core.Record]
	// fill serializes cache population against invalidation so a slow Load
	// can never re-insert a record older than a concurrent Store.
	fill sync.Mutex
}

// NewCachedStore wraps inner with a cache holding up to maxItems records.
func NewCachedStore(inner core.MemoryStore, maxItems int64) (*CachedStore, error) {
	if maxItems <= 0 {
		maxItems = 1024
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, core.Record]{
		NumCounters:        maxItems * 10,
		MaxCost:            maxItems,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create record cache: %w", err)
	}
	return &CachedStore{inner: inner, cache: c}, nil
}

// Store writes through to the inner store and drops the cached record.
func (c *CachedStore) Store(ctx context.Context, key string, value any) (uint64, error) {
	v, err := c.inner.Store(ctx, key, value)
	if err != nil {
		return 0, err
	}
	c.invalidate(key)
	return v, nil
}

// Load serves from cache, falling back to the inner store.
func (c *CachedStore) Load(ctx context.Context, key string) (core.Record, error) {
	if rec, ok := c.cache.Get(key); ok {
		return rec, nil
	}

	c.fill.Lock()
	defer c.fill.Unlock()

	rec, err := c.inner.Load(ctx, key)
	if err != nil {
		return core.Record{}, err
	}
	c.cache.Set(key, rec, 1)
	c.cache.Wait()
	return rec, nil
}

// Remove deletes from the inner store and drops the cached record.
func (c *CachedStore) Remove(ctx context.Context, key string) error {
	err := c.inner.Remove(ctx, key)
	c.invalidate(key)
	return err
}

// Keys delegates to the inner store.
func (c *CachedStore) Keys(ctx context.Context) ([]string, error) {
	return c.inner.Keys(ctx)
}

// Close releases cache resources. The inner store is not closed.
func (c *CachedStore) Close() {
	c.cache.Close()
}

func (c *CachedStore) invalidate(key string) {
	c.fill.Lock()
	defer c.fill.Unlock()
	c.cache.Del(key)
	c.cache.Wait()
}
