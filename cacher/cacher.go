// Package cacher provides a generic read-through cache with automatic
// fetching on misses and stampede prevention for concurrent requests to the
// same missing key. The device layer uses it to keep static device identity
// (model, firmware, service tag) off the command path; the memory
// implementation suits a single process, the Redis implementation a fleet of
// pollers sharing one cache.
package cacher

import (
	"context"
	"time"
)

// FetchFunc fetches a value from the source when a cache miss occurs. For
// the device layer the source is a query round-trip over the device session.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Cacher is a read-through cache. Implementations must be safe for
// concurrent use and must collapse concurrent fetches of the same missing
// key into one.
type Cacher[T any] interface {
	// GetOrFetch retrieves the value for key, fetching and storing it with
	// the given TTL on a miss.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - key: The cache key to retrieve or set
	//   - ttl: Time-to-live for a freshly fetched value
	//   - fetchFn: Function invoked on a miss
	//
	// Returns:
	//   - The cached or fetched value
	//   - An error if retrieval or fetching fails
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc[T]) (T, error)

	// Delete removes a key from the cache.
	Delete(ctx context.Context, key string) error

	// Clear removes all items from the cache.
	Clear(ctx context.Context) error
}
