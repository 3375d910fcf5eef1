package cacher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// lockTTL bounds how long a fetch may hold the distributed lock before
// another process may take over.
const lockTTL = 30 * time.Second

// redisCacher is a Redis-backed implementation of Cacher. Values are stored
// as JSON; a SetNX lock keyed per cache key prevents stampedes across
// processes when several pollers miss the same key simultaneously.
type redisCacher[T any] struct {
	client *redis.Client
}

// NewRedisCacher creates a Redis-backed cacher.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	c := cacher.NewRedisCacher[string](client)
func NewRedisCacher[T any](client *redis.Client) Cacher[T] {
	return &redisCacher[T]{client: client}
}

// GetOrFetch implements Cacher. On a miss it tries to acquire the per-key
// lock; the winner fetches, caches, and releases, while losers poll the
// cache until the winner's value appears or the lock vanishes.
func (c *redisCacher[T]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc[T]) (T, error) {
	var zero T

	val, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return decode[T](val)
	}
	if !errors.Is(err, redis.Nil) {
		return zero, fmt.Errorf("redis get error: %w", err)
	}

	lockKey := key + ":lock"
	lockValue := fmt.Sprintf("%d", time.Now().UnixNano())

	acquired, err := c.client.SetNX(ctx, lockKey, lockValue, lockTTL).Result()
	if err != nil {
		return zero, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !acquired {
		return c.waitForCache(ctx, key, lockKey)
	}

	// Release only if still the owner; background context so cleanup
	// survives caller cancellation.
	defer func() {
		script := `
			if redis.call("get", KEYS[1]) == ARGV[1] then
				return redis.call("del", KEYS[1])
			else
				return 0
			end
		`
		c.client.Eval(context.Background(), script, []string{lockKey}, lockValue)
	}()

	result, err := fetchFn(ctx)
	if err != nil {
		return zero, fmt.Errorf("fetch function failed: %w", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := c.client.Set(context.Background(), key, data, ttl).Err(); err != nil {
		return zero, fmt.Errorf("failed to cache result: %w", err)
	}

	return result, nil
}

// waitForCache polls for the value another process is fetching, with
// exponential backoff from 10ms up to 500ms, until the value appears, the
// lock disappears without a value, or ctx is done.
func (c *redisCacher[T]) waitForCache(ctx context.Context, key, lockKey string) (T, error) {
	var zero T

	backoff := 10 * time.Millisecond
	const maxBackoff = 500 * time.Millisecond
	deadline := time.Now().Add(lockTTL)

	for {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		if time.Now().After(deadline) {
			return zero, errors.New("timeout waiting for cache")
		}

		val, err := c.client.Get(ctx, key).Result()
		if err == nil {
			return decode[T](val)
		}
		if !errors.Is(err, redis.Nil) {
			return zero, fmt.Errorf("redis get error: %w", err)
		}

		exists, err := c.client.Exists(ctx, lockKey).Result()
		if err != nil {
			return zero, fmt.Errorf("failed to check lock existence: %w", err)
		}
		if exists == 0 {
			// Lock gone with no value: the other fetch failed. One last
			// read covers the release-after-set window.
			val, err := c.client.Get(ctx, key).Result()
			if err == nil {
				return decode[T](val)
			}
			return zero, errors.New("fetch operation failed or cache not populated")
		}

		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Delete implements Cacher.
func (c *redisCacher[T]) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	return nil
}

// Clear implements Cacher.
func (c *redisCacher[T]) Clear(ctx context.Context) error {
	if err := c.client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	return nil
}

func decode[T any](val string) (T, error) {
	var result T
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return result, nil
}
