// Package profilecache memoizes public professional lookups by slug for a fixed TTL.
package profilecache

import (
	"context"
	"sync"
	"time"

	"github.com/agendly/agendly/services/booking-service/internal/model"
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// Cache is a TTL map with an injectable clock. Expired entries are dropped lazily.
type Cache[K comparable, V any] struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[K]entry[V]
}

func New[K comparable, V any](ttl time.Duration, now func() time.Time) *Cache[K, V] {
	if now == nil {
		now = time.Now
	}
	return &Cache[K, V]{ttl: ttl, now: now, entries: map[K]entry[V]{}}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.insertedAt) >= c.ttl {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, insertedAt: c.now()}
}

func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Purge removes every expired entry and returns how many were dropped.
func (c *Cache[K, V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.entries {
		if now.Sub(e.insertedAt) >= c.ttl {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type Lookup interface {
	GetProfessionalBySlug(ctx context.Context, slug string) (model.Professional, error)
}

// Resolver fronts the slug lookup with a Cache. Failed lookups are not cached.
type Resolver struct {
	lookup Lookup
	cache  *Cache[string, model.Professional]
}

func NewResolver(lookup Lookup, cache *Cache[string, model.Professional]) *Resolver {
	return &Resolver{lookup: lookup, cache: cache}
}

func (r *Resolver) BySlug(ctx context.Context, slug string) (model.Professional, error) {
	if p, ok := r.cache.Get(slug); ok {
		return p, nil
	}
	p, err := r.lookup.GetProfessionalBySlug(ctx, slug)
	if err != nil {
		return model.Professional{}, err
	}
	r.cache.Set(slug, p)
	return p, nil
}
