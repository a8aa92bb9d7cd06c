package cache

import (
	"context"
	"time"
)

// Cache is the shared TTL key/value capability handed to the components
// that memoize ledger queries. Values survive a JSON round trip; a hit
// must be structurally identical to a fresh computation.
type Cache interface {
	// Get unmarshals the cached value into dest and reports whether the
	// key was present and unexpired.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
