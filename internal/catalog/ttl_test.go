package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	ID   string
	Name string
}

func TestTTLCacheReloadsAfterThreshold(t *testing.T) {
	var calls atomic.Int32
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	cache := NewTTLCache(5*time.Minute, func(ctx context.Context) ([]entry, error) {
		calls.Add(1)
		return []entry{{ID: "b", Name: "second"}, {ID: "a", Name: "first"}}, nil
	}, func(e entry) string { return e.ID })
	cache.now = func() time.Time { return now }

	items, hit, err := cache.All(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []entry{{ID: "b", Name: "second"}, {ID: "a", Name: "first"}}, items, "source order is kept")

	now = now.Add(4 * time.Minute)
	_, hit, err = cache.All(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(time.Minute)
	_, hit, err = cache.All(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTTLCacheGetAndInvalidate(t *testing.T) {
	var calls atomic.Int32
	cache := NewTTLCache(time.Hour, func(ctx context.Context) ([]entry, error) {
		calls.Add(1)
		return []entry{{ID: "a", Name: "first"}}, nil
	}, func(e entry) string { return e.ID })

	got, ok, err := cache.Get(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", got.Name)

	_, ok, err = cache.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(1), calls.Load())

	cache.Invalidate()
	_, _, err = cache.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTTLCacheCollapsesConcurrentLoads(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	cache := NewTTLCache(time.Hour, func(ctx context.Context) ([]entry, error) {
		calls.Add(1)
		<-release
		return []entry{{ID: "a"}}, nil
	}, func(e entry) string { return e.ID })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := cache.All(context.Background())
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestTTLCacheLoadErrorKeepsCacheEmpty(t *testing.T) {
	boom := errors.New("backend down")
	cache := NewTTLCache(time.Hour, func(ctx context.Context) ([]entry, error) {
		return nil, boom
	}, func(e entry) string { return e.ID })

	_, _, err := cache.All(context.Background())
	require.ErrorIs(t, err, boom)
	_, fresh := cache.snapshot(true)
	assert.False(t, fresh)
}

func TestTTLCacheZeroTTLAlwaysReloads(t *testing.T) {
	var calls atomic.Int32
	cache := NewTTLCache(0, func(ctx context.Context) ([]entry, error) {
		calls.Add(1)
		return []entry{{ID: "a", Name: "first"}}, nil
	}, func(e entry) string { return e.ID })

	for i := 0; i < 2; i++ {
		items, hit, err := cache.All(context.Background())
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Len(t, items, 1)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestTTLCacheLoadOutlivesCancelledCaller(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var loadErr atomic.Value
	cache := NewTTLCache(time.Hour, func(ctx context.Context) ([]entry, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			loadErr.Store(err)
			return nil, err
		}
		return []entry{{ID: "a", Name: "first"}}, nil
	}, func(e entry) string { return e.ID })

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, _, err := cache.All(first)
		firstDone <- err
	}()
	<-started

	secondDone := make(chan []entry, 1)
	go func() {
		items, _, err := cache.All(context.Background())
		assert.NoError(t, err)
		secondDone <- items
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstDone, context.Canceled)
	close(release)

	assert.Equal(t, []entry{{ID: "a", Name: "first"}}, <-secondDone)
	assert.Nil(t, loadErr.Load())
}

func TestTTLCacheInvalidateDuringLoadForcesReload(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	cache := NewTTLCache(time.Hour, func(ctx context.Context) ([]entry, error) {
		n := calls.Add(1)
		started <- struct{}{}
		if n == 1 {
			<-release
			return []entry{{ID: "a", Name: "before"}}, nil
		}
		return []entry{{ID: "a", Name: "after"}}, nil
	}, func(e entry) string { return e.ID })

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, err := cache.All(context.Background())
		assert.NoError(t, err)
	}()
	<-started
	cache.Invalidate()
	close(release)
	<-done

	got, ok, err := cache.Get(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "after", got.Name)
	assert.Equal(t, int32(2), calls.Load())

	_, hit, err := cache.All(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
}
