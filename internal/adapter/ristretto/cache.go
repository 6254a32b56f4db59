// Package ristretto provides the in-process retrieval cache backed by
// dgraph-io/ristretto, sized by total value bytes.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// admission counters per cached byte; ristretto wants roughly 10x the
// expected item count, and passages average around a kilobyte.
const countersPerKB = 10

// Cache adapts a ristretto instance to the cache port. Cost equals the
// serialized value size, so MaxCost bounds resident bytes.
type Cache struct {
	inner *ristretto.Cache[string, []byte]
}

// New builds a cache holding at most maxBytes of values.
func New(maxBytes int64) (*Cache, error) {
	inner, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxBytes / 1024 * countersPerKB,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner}, nil
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, ok := c.inner.Get(key)
	if !ok {
		return nil, false, nil
	}
	return val, true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.inner.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.inner.Del(key)
	return nil
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() {
	c.inner.Close()
}
