package i18n

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes derived trees by locale for the life of the process.
// Entries are only ever added. Concurrent misses for the same locale share
// one computation.
type Cache struct {
	mu    sync.RWMutex
	trees map[string]Tree
	group singleflight.Group

	// waiting counts callers that joined a computation and have not
	// received its result yet.
	waiting atomic.Int64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{trees: make(map[string]Tree)}
}

// Get returns the cached tree for locale.
func (c *Cache) Get(locale string) (Tree, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.trees[locale]
	return t, ok
}

// Set stores a tree. An existing entry is kept.
func (c *Cache) Set(locale string, t Tree) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.trees[locale]; !ok {
		c.trees[locale] = t
	}
}

// Len returns the number of cached locales.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.trees)
}

// GetOrCompute returns the cached tree or runs compute once for all
// concurrent callers of the same locale. compute receives a context that is
// not cancelled when an individual caller gives up; a failed computation is
// not stored. A caller whose ctx ends returns ctx.Err() without waiting.
func (c *Cache) GetOrCompute(ctx context.Context, locale string, compute func(context.Context) (Tree, error)) (Tree, error) {
	if t, ok := c.Get(locale); ok {
		return t, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(locale, func() (any, error) {
		if t, ok := c.Get(locale); ok {
			return t, nil
		}
		t, err := compute(shared)
		if err != nil {
			return nil, err
		}
		c.Set(locale, t)
		return t, nil
	})
	c.waiting.Add(1)
	defer c.waiting.Add(-1)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Tree), nil
	}
}
