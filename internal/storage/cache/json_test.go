package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Count int `json:"count"`
}

func newTestCache(t *testing.T) (*JSONCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewJSONCache(client, time.Minute), mr
}

func TestJSONCacheFetch(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	var calls int
	loader := func(context.Context) (any, error) {
		calls++
		return payload{Count: calls}, nil
	}

	var got payload
	require.NoError(t, c.Fetch(ctx, "summary", &got, loader))
	assert.Equal(t, 1, got.Count)

	require.NoError(t, c.Fetch(ctx, "summary", &got, loader))
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, 1, calls)

	assert.True(t, mr.Exists("summary"))
	assert.Equal(t, time.Minute, mr.TTL("summary"))

	t.Run("Should reload after invalidation", func(t *testing.T) {
		require.NoError(t, c.Invalidate(ctx, "summary"))

		require.NoError(t, c.Fetch(ctx, "summary", &got, loader))
		assert.Equal(t, 2, got.Count)
	})

	t.Run("Should reload after expiry", func(t *testing.T) {
		mr.FastForward(2 * time.Minute)

		require.NoError(t, c.Fetch(ctx, "summary", &got, loader))
		assert.Equal(t, 3, got.Count)
	})
}

func TestJSONCacheFetchLoaderError(t *testing.T) {
	c, mr := newTestCache(t)
	loaderErr := errors.New("db down")

	var got payload
	err := c.Fetch(context.Background(), "summary", &got, func(context.Context) (any, error) {
		return nil, loaderErr
	})

	assert.ErrorIs(t, err, loaderErr)
	assert.False(t, mr.Exists("summary"))
}

func TestJSONCacheFetchCollapsesConcurrentMisses(t *testing.T) {
	c, _ := newTestCache(t)

	var calls atomic.Int32
	release := make(chan struct{})
	loader := func(context.Context) (any, error) {
		calls.Add(1)
		<-release
		return payload{Count: 7}, nil
	}

	const n = 8
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)
	results := make([]payload, n)
	errs := make([]error, n)
	started.Add(n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			errs[i] = c.Fetch(context.Background(), "summary", &results[i], loader)
		}()
	}

	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, 7, results[i].Count)
	}
	assert.LessOrEqual(t, calls.Load(), int32(n))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestJSONCacheWithoutClient(t *testing.T) {
	c := NewJSONCache(nil, time.Minute)

	var calls int
	loader := func(context.Context) (any, error) {
		calls++
		return payload{Count: calls}, nil
	}

	var got payload
	require.NoError(t, c.Fetch(context.Background(), "summary", &got, loader))
	require.NoError(t, c.Fetch(context.Background(), "summary", &got, loader))

	assert.Equal(t, 2, got.Count)
	assert.NoError(t, c.Invalidate(context.Background(), "summary"))
}

func TestJSONCacheInvalidateDuringLoad(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	loading := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	var stale payload
	go func() {
		done <- c.Fetch(ctx, "summary", &stale, func(context.Context) (any, error) {
			close(loading)
			<-release
			return payload{Count: 1}, nil
		})
	}()

	<-loading
	require.NoError(t, c.Invalidate(ctx, "summary"))
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, 1, stale.Count)
	assert.False(t, mr.Exists("summary"))

	var fresh payload
	require.NoError(t, c.Fetch(ctx, "summary", &fresh, func(context.Context) (any, error) {
		return payload{Count: 2}, nil
	}))
	assert.Equal(t, 2, fresh.Count)

	t.Run("Should cache loads that start after invalidation", func(t *testing.T) {
		var got payload
		require.NoError(t, c.Fetch(ctx, "summary", &got, func(context.Context) (any, error) {
			return payload{Count: 3}, nil
		}))

		assert.Equal(t, 2, got.Count)
		assert.Equal(t, time.Minute, mr.TTL("summary"))
	})
}
