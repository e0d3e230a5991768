package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/l1jgo/bestiary/internal/creature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func pikachu() creature.Creature {
	return creature.Creature{ID: 1, Name: "Pikachu", Type: "Electric", Level: 5, Power: 50}
}

func TestPutGetEvict(t *testing.T) {
	c := New(zaptest.NewLogger(t))

	_, ok := c.Get(1)
	assert.False(t, ok)

	c.Put(1, pikachu())
	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, pikachu(), got)

	c.Evict(1)
	_, ok = c.Get(1)
	assert.False(t, ok)

	// evicting an absent entry is a no-op
	assert.NotPanics(t, func() {
		c.Evict(1)
		c.Evict(42)
	})
	_, ok = c.Get(1)
	assert.False(t, ok)
}

func TestEvictAll(t *testing.T) {
	c := New(zaptest.NewLogger(t))
	for id := int32(1); id <= 3; id++ {
		v := pikachu()
		v.ID = id
		c.Put(id, v)
	}
	require.Equal(t, 3, c.Stats().Items)

	c.EvictAll()
	assert.Equal(t, 0, c.Stats().Items)
	c.EvictAll()
}

func TestLoadSingleFlight(t *testing.T) {
	c := New(zaptest.NewLogger(t))

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (creature.Creature, error) {
		calls.Add(1)
		<-release
		return pikachu(), nil
	}

	const n = 16
	var wg sync.WaitGroup
	results := make([]creature.Creature, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Load(context.Background(), 1, fetch)
		}(i)
	}

	// let every caller reach the flight before the fetch returns
	require.Eventually(t, func() bool { return c.Stats().Misses == n }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, pikachu(), results[i])
	}

	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, pikachu(), got)
	assert.Equal(t, uint64(1), c.Stats().Fills)

	// now served from cache
	_, err := c.Load(context.Background(), 1, func(context.Context) (creature.Creature, error) {
		t.Fatal("fetch called on a cached id")
		return creature.Creature{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.Stats().Hits)
}

func TestLoadErrorNotCached(t *testing.T) {
	c := New(zaptest.NewLogger(t))
	notFound := &creature.NotFoundError{ID: 999}

	_, err := c.Load(context.Background(), 999, func(context.Context) (creature.Creature, error) {
		return creature.Creature{}, notFound
	})
	require.Error(t, err)
	assert.True(t, creature.IsNotFound(err))

	_, ok := c.Get(999)
	assert.False(t, ok)
}

func TestEvictDuringFetchDiscardsResult(t *testing.T) {
	c := New(zaptest.NewLogger(t))

	started := make(chan struct{})
	release := make(chan struct{})
	stale := pikachu()

	done := make(chan creature.Creature)
	go func() {
		v, _ := c.Load(context.Background(), 1, func(context.Context) (creature.Creature, error) {
			close(started)
			<-release
			return stale, nil
		})
		done <- v
	}()

	<-started
	// a write commits and evicts while the slow read is still in flight
	c.Evict(1)

	fresh := stale
	fresh.Level = 42
	var freshCalls atomic.Int32
	got, err := c.Load(context.Background(), 1, func(context.Context) (creature.Creature, error) {
		freshCalls.Add(1)
		return fresh, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(42), got.Level, "callers after the eviction must not join the stale flight")
	assert.Equal(t, int32(1), freshCalls.Load())

	close(release)
	assert.Equal(t, stale, <-done)

	cached, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, int32(42), cached.Level, "the stale fetch must not overwrite the fresh entry")
}

func TestEvictAllDuringFetchDiscardsResult(t *testing.T) {
	c := New(zaptest.NewLogger(t))

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Load(context.Background(), 1, func(context.Context) (creature.Creature, error) {
			close(started)
			<-release
			return pikachu(), nil
		})
	}()

	<-started
	c.EvictAll()
	close(release)
	<-done

	_, ok := c.Get(1)
	assert.False(t, ok)
}

func TestLoadCallerCancelled(t *testing.T) {
	c := New(zaptest.NewLogger(t))

	release := make(chan struct{})
	var fetchErr atomic.Value
	fetched := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error)
	go func() {
		_, err := c.Load(ctx, 1, func(fctx context.Context) (creature.Creature, error) {
			defer close(fetched)
			<-release
			if err := fctx.Err(); err != nil {
				fetchErr.Store(err)
			}
			return pikachu(), nil
		})
		errCh <- err
	}()

	require.Eventually(t, func() bool { return c.Stats().Misses == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.True(t, errors.Is(<-errCh, context.Canceled))

	close(release)
	<-fetched
	assert.Nil(t, fetchErr.Load(), "the shared fetch must not inherit the caller's cancellation")

	require.Eventually(t, func() bool {
		_, ok := c.Get(1)
		return ok
	}, time.Second, time.Millisecond)
}

func TestEvictKeepsNoStateForIdleIDs(t *testing.T) {
	c := New(zaptest.NewLogger(t))
	for id := int32(1); id <= 100000; id++ {
		c.Evict(id)
	}
	assert.Equal(t, 0, c.Stats().Items)
	assert.Empty(t, c.gens)
	assert.Empty(t, c.inflight)

	// an eviction during a fetch is recorded only until that fetch ends
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Load(context.Background(), 7, func(context.Context) (creature.Creature, error) {
			close(started)
			<-release
			return pikachu(), nil
		})
	}()
	<-started
	c.Evict(7)
	c.mu.Lock()
	assert.Len(t, c.gens, 1)
	c.mu.Unlock()

	close(release)
	<-done
	_, ok := c.Get(7)
	assert.False(t, ok)
	assert.Empty(t, c.gens)
	assert.Empty(t, c.inflight)
}
