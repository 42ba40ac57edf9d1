package solr

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachingBackend memoizes replies of another Backend keyed by the encoded parameters.
// Errors are never cached. Cached replies are shared and must be treated as read-only.
type CachingBackend struct {
	next  Backend
	cache *expirable.LRU[string, *Reply]
}

// NewCachingBackend wraps next with an LRU of size entries that expire after ttl.
// A ttl of zero keeps entries until they are evicted.
func NewCachingBackend(next Backend, size int, ttl time.Duration) *CachingBackend {
	return &CachingBackend{
		next:  next,
		cache: expirable.NewLRU[string, *Reply](size, nil, ttl),
	}
}

// Select returns a cached reply for params or fetches and caches one.
func (c *CachingBackend) Select(ctx context.Context, params *Params) (*Reply, error) {
	key := params.Encode()
	if reply, ok := c.cache.Get(key); ok {
		return reply, nil
	}
	reply, err := c.next.Select(ctx, params)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, reply)
	return reply, nil
}

// Len returns the number of cached replies.
func (c *CachingBackend) Len() int {
	return c.cache.Len()
}

// Purge drops every cached reply.
func (c *CachingBackend) Purge() {
	c.cache.Purge()
}
