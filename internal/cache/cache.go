package cache

import (
	"context"
	"time"
)

// Cache stores oracle responses keyed by a digest of the request.
type Cache interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value with TTL. A zero TTL keeps it until purged.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Purge drops every cached entry and reports how many were removed.
	Purge(ctx context.Context) (int, error)

	// Close closes the cache connection
	Close() error
}
