// Package natskv implements the cache port over a NATS JetStream
// KeyValue bucket, used as the shared L2 behind the in-process cache.
package natskv

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Cache wraps one JetStream KV bucket.
type Cache struct {
	bucket jetstream.KeyValue
}

// New creates a KV-backed cache.
func New(bucket jetstream.KeyValue) *Cache {
	return &Cache{bucket: bucket}
}

// Get retrieves a value. A missing key is not an error.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := c.bucket.Get(ctx, key)
	switch {
	case err == nil:
		return entry.Value(), true, nil
	case errors.Is(err, jetstream.ErrKeyNotFound):
		return nil, false, nil
	default:
		return nil, false, err
	}
}

// Set stores a value. Expiry is governed by the bucket TTL, so the
// per-entry TTL is ignored here.
func (c *Cache) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if _, err := c.bucket.Put(ctx, key, value); err != nil {
		return err
	}
	return nil
}

// Delete removes a value. Deleting a missing key is a no-op.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.bucket.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return err
	}
	return nil
}
