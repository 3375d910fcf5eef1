package cacher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemoryCacher(t *testing.T) {
	c := NewMemoryCacher[string](time.Minute, 10*time.Minute)
	require.NotNil(t, c)
}

func TestMemoryCacher_GetOrFetch_CacheMiss(t *testing.T) {
	c := NewMemoryCacher[string](cache.NoExpiration, time.Minute)
	ctx := context.Background()

	fetchCount := 0
	fetchFn := func(ctx context.Context) (string, error) {
		fetchCount++
		return "1.3.0.6", nil
	}

	val, err := c.GetOrFetch(ctx, "firmware", time.Minute, fetchFn)
	require.NoError(t, err)
	assert.Equal(t, "1.3.0.6", val)
	assert.Equal(t, 1, fetchCount)
}

func TestMemoryCacher_GetOrFetch_CacheHit(t *testing.T) {
	c := NewMemoryCacher[string](cache.NoExpiration, time.Minute)
	ctx := context.Background()

	fetchCount := 0
	_, err := c.GetOrFetch(ctx, "model", time.Minute, func(ctx context.Context) (string, error) {
		fetchCount++
		return "PB-400-IPV", nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fetchCount)

	// Second call hits the cache; the new fetch function is never invoked.
	val, err := c.GetOrFetch(ctx, "model", time.Minute, func(ctx context.Context) (string, error) {
		fetchCount++
		return "should not be used", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "PB-400-IPV", val)
	assert.Equal(t, 1, fetchCount)
}

func TestMemoryCacher_GetOrFetch_FetchError(t *testing.T) {
	c := NewMemoryCacher[string](cache.NoExpiration, time.Minute)
	ctx := context.Background()

	val, err := c.GetOrFetch(ctx, "key", time.Minute, func(ctx context.Context) (string, error) {
		return "", assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, val)

	// An error is not cached; the next call fetches again.
	fetchCount := 0
	val, err = c.GetOrFetch(ctx, "key", time.Minute, func(ctx context.Context) (string, error) {
		fetchCount++
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", val)
	assert.Equal(t, 1, fetchCount)
}

func TestMemoryCacher_GetOrFetch_ConcurrentSameKey_Singleflight(t *testing.T) {
	c := NewMemoryCacher[string](cache.NoExpiration, time.Minute)
	ctx := context.Background()

	var fetchCount int32
	fetchFn := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&fetchCount, 1)
		time.Sleep(20 * time.Millisecond)
		return "concurrent-value", nil
	}

	const goroutines = 10
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, err := c.GetOrFetch(ctx, "shared", time.Minute, fetchFn)
			assert.NoError(t, err)
			assert.Equal(t, "concurrent-value", val)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&fetchCount))
}

func TestMemoryCacher_Delete(t *testing.T) {
	c := NewMemoryCacher[string](cache.NoExpiration, time.Minute)
	ctx := context.Background()

	_, err := c.GetOrFetch(ctx, "key", time.Minute, func(ctx context.Context) (string, error) {
		return "value", nil
	})
	require.NoError(t, err)

	require.NoError(t, c.Delete(ctx, "key"))

	fetchCount := 0
	_, err = c.GetOrFetch(ctx, "key", time.Minute, func(ctx context.Context) (string, error) {
		fetchCount++
		return "value", nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fetchCount)
}

func TestMemoryCacher_Clear(t *testing.T) {
	c := NewMemoryCacher[int](cache.NoExpiration, time.Minute)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		_, err := c.GetOrFetch(ctx, key, time.Minute, func(ctx context.Context) (int, error) {
			return 1, nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, c.Clear(ctx))

	fetchCount := 0
	_, err := c.GetOrFetch(ctx, "a", time.Minute, func(ctx context.Context) (int, error) {
		fetchCount++
		return 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fetchCount)
}

func TestMemoryCacher_Delete_ContextCancelled(t *testing.T) {
	c := NewMemoryCacher[string](cache.NoExpiration, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, c.Delete(ctx, "key"))
	assert.Error(t, c.Clear(ctx))
}
