package dataset

import (
	"context"

	"golang.org/x/sync/singleflight"

	"pmpm/internal/cache"
	"pmpm/internal/core"
)

// LookupObserver is told whether each snapshot lookup was served from cache.
type LookupObserver func(name string, hit bool)

// CachedReader keeps recently used snapshots in memory. Entries live until
// their TTL passes or the caller invalidates them.
type CachedReader struct {
	reader   Reader
	cache    *cache.LRUCache[core.Dataset]
	group    singleflight.Group
	observer LookupObserver
}

var _ Reader = (*CachedReader)(nil)

// NewCachedReader wraps reader with the given snapshot cache.
func NewCachedReader(reader Reader, c *cache.LRUCache[core.Dataset]) *CachedReader {
	return &CachedReader{reader: reader, cache: c}
}

// OnLookup registers an observer for cache hits and misses.
func (c *CachedReader) OnLookup(fn LookupObserver) {
	c.observer = fn
}

// Snapshot returns the cached snapshot of name, loading it on a miss.
// Concurrent misses for the same name share one load.
func (c *CachedReader) Snapshot(ctx context.Context, name string) (core.Dataset, error) {
	if ds, ok := c.cache.Get(name); ok {
		c.observe(name, true)
		return ds, nil
	}
	c.observe(name, false)

	v, err, _ := c.group.Do(name, func() (any, error) {
		ds, err := c.reader.Snapshot(ctx, name)
		if err != nil {
			return core.Dataset{}, err
		}
		c.cache.Set(name, ds)
		return ds, nil
	})
	if err != nil {
		return core.Dataset{}, err
	}
	return v.(core.Dataset), nil
}

// Datasets is passed through uncached.
func (c *CachedReader) Datasets(ctx context.Context) ([]string, error) {
	return c.reader.Datasets(ctx)
}

// Invalidate drops the cached snapshot of name.
func (c *CachedReader) Invalidate(name string) {
	c.cache.Delete(name)
}

// Purge drops every cached snapshot.
func (c *CachedReader) Purge() {
	c.cache.Purge()
}

// Cached returns the names currently held in cache.
func (c *CachedReader) Cached() []string {
	return c.cache.Keys()
}

func (c *CachedReader) observe(name string, hit bool) {
	if c.observer != nil {
		c.observer(name, hit)
	}
}
