package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Service abstracts the read-through cache used by invoice reads and the
// dashboard. Values are JSON-encoded. Implementations must treat every
// method as best-effort: a cache failure never fails the business operation.
type Service interface {
	// Get unmarshals the cached value for key into dest. Returns ErrCacheMiss
	// when absent.
	Get(ctx context.Context, key string, dest any) error
	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Del removes the given keys.
	Del(ctx context.Context, keys ...string) error
	// GetOrSet returns the cached value if present, otherwise calls loader,
	// caches the result with ttl, and unmarshals it into dest.
	GetOrSet(ctx context.Context, key string, dest any, ttl time.Duration, loader func() (any, error)) error
	// InvalidatePattern removes all keys matching a glob pattern, e.g.
	// "invoices:t1:list:*".
	InvalidatePattern(ctx context.Context, pattern string) error
}
