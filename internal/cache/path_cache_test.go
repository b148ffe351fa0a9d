package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathCache_SetGet(t *testing.T) {
	c := New(Pathfinding, Config{})

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", []string{"a", "b"})
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, v)

	st := c.Stats()
	assert.Equal(t, Pathfinding, st.Name)
	assert.Equal(t, 10*time.Minute, st.TTL)
	assert.Equal(t, DefaultMaxKeys, st.MaxKeys)
	assert.EqualValues(t, 1, st.Hits)
	assert.EqualValues(t, 1, st.Misses)
	assert.InDelta(t, 0.5, st.HitRate, 1e-9)
}

func TestPathCache_TTLExpiry(t *testing.T) {
	c := New(ConnectionSearch, Config{TTL: 20 * time.Millisecond, MaxKeys: 10})
	c.Set("k", 1)

	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry should have expired")
}

func TestPathCache_CapacityEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(BatchProfileLookup, Config{MaxKeys: 2})
	c.Set("a", 1)
	c.Set("b", 2)

	// Touch a so b becomes the eviction candidate.
	_, _ = c.Get("a")
	c.Set("c", 3)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.GreaterOrEqual(t, c.Stats().Evictions, int64(1))
}

func TestPathCache_NeverExceedsMaxKeys(t *testing.T) {
	c := New(Pathfinding, Config{MaxKeys: 50})
	for i := 0; i < 500; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
		require.LessOrEqual(t, c.Len(), 50)
	}
}

func TestPathCache_Purge(t *testing.T) {
	c := New(Pathfinding, Config{})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestKey_MapOrderIndependent(t *testing.T) {
	a := map[string]any{"from": "demo-user-001", "to": "person-42", "max_hops": 2}
	b := map[string]any{"max_hops": 2, "to": "person-42", "from": "demo-user-001"}

	ka, err := Key("pathfinding", a)
	require.NoError(t, err)
	kb, err := Key("pathfinding", b)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
	assert.Regexp(t, `^pathfinding:[0-9a-f]{16}$`, ka)

	kc, err := Key("pathfinding", map[string]any{"from": "demo-user-001", "to": "person-43", "max_hops": 2})
	require.NoError(t, err)
	assert.NotEqual(t, ka, kc)

	kd, err := Key("connection_search", a)
	require.NoError(t, err)
	assert.NotEqual(t, ka, kd, "operation name is part of the key")
}

func TestKey_UnsupportedType(t *testing.T) {
	_, err := Key("op", map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestRegistry_DefaultsAndOverrides(t *testing.T) {
	r := NewRegistry(map[Name]Config{ConnectionSearch: {TTL: time.Minute, MaxKeys: 5}})

	stats := r.Stats()
	require.Len(t, stats, 3)
	assert.Equal(t, BatchProfileLookup, stats[0].Name)
	assert.Equal(t, 30*time.Minute, stats[0].TTL)
	assert.Equal(t, ConnectionSearch, stats[1].Name)
	assert.Equal(t, time.Minute, stats[1].TTL)
	assert.Equal(t, 5, stats[1].MaxKeys)
	assert.Equal(t, Pathfinding, stats[2].Name)

	assert.Nil(t, r.Cache("nope"))
}

func TestRegistry_GetOrComputeCollapsesConcurrentMisses(t *testing.T) {
	r := NewRegistry(nil)
	var calls atomic.Int32
	release := make(chan struct{})

	compute := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := r.GetOrCompute(context.Background(), Pathfinding, "k", compute)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(30 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, v := range results {
		assert.Equal(t, "value", v)
	}

	v, hit, err := r.GetOrCompute(context.Background(), Pathfinding, "k", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "value", v)
}

func TestRegistry_GetOrComputeDoesNotCacheErrors(t *testing.T) {
	r := NewRegistry(nil)
	boom := errors.New("store down")

	_, _, err := r.GetOrCompute(context.Background(), ConnectionSearch, "k", func(context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.Cache(ConnectionSearch).Len())

	_, _, err = r.GetOrCompute(context.Background(), "bogus", "k", nil)
	assert.Error(t, err)
}

func TestRegistry_PurgeAll(t *testing.T) {
	r := NewRegistry(nil)
	r.Cache(Pathfinding).Set("a", 1)
	r.Cache(BatchProfileLookup).Set("b", 2)
	r.PurgeAll()
	for _, st := range r.Stats() {
		assert.Zero(t, st.Size, st.Name)
	}
}

func TestRegistry_GetOrComputeSurvivesStarterCancellation(t *testing.T) {
	r := NewRegistry(nil)
	started := make(chan struct{})
	release := make(chan struct{})

	compute := func(ctx context.Context) (any, error) {
		close(started)
		select {
		case <-release:
			return "value", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	starterCtx, cancelStarter := context.WithCancel(context.Background())
	starterErr := make(chan error, 1)
	go func() {
		_, _, err := r.GetOrCompute(starterCtx, ConnectionSearch, "k", compute)
		starterErr <- err
	}()
	<-started

	type result struct {
		v   any
		err error
	}
	joined := make(chan result, 1)
	go func() {
		v, _, err := r.GetOrCompute(context.Background(), ConnectionSearch, "k", compute)
		joined <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelStarter()
	assert.ErrorIs(t, <-starterErr, context.Canceled)

	close(release)
	got := <-joined
	require.NoError(t, got.err)
	assert.Equal(t, "value", got.v)
	assert.Equal(t, 1, r.Cache(ConnectionSearch).Len())
}

func TestRegistry_GetOrComputeTimeout(t *testing.T) {
	r := NewRegistry(nil, WithComputeTimeout(20*time.Millisecond))

	_, _, err := r.GetOrCompute(context.Background(), Pathfinding, "k", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistry_PurgeDuringComputeDropsResult(t *testing.T) {
	r := NewRegistry(nil)
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan any, 1)
	go func() {
		v, _, err := r.GetOrCompute(context.Background(), ConnectionSearch, "k", func(context.Context) (any, error) {
			close(started)
			<-release
			return "stale", nil
		})
		assert.NoError(t, err)
		done <- v
	}()

	<-started
	r.PurgeAll()
	close(release)

	assert.Equal(t, "stale", <-done, "the caller still gets its answer")
	assert.Equal(t, 0, r.Cache(ConnectionSearch).Len(), "a pre-purge result must not be cached")

	v, hit, err := r.GetOrCompute(context.Background(), ConnectionSearch, "k", func(context.Context) (any, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "fresh", v)
}

func TestPathCache_SetIfGeneration(t *testing.T) {
	c := New(Pathfinding, Config{})
	gen := c.Generation()
	assert.True(t, c.SetIfGeneration("a", 1, gen))

	c.Purge()
	assert.False(t, c.SetIfGeneration("b", 2, gen))
	assert.True(t, c.SetIfGeneration("b", 2, c.Generation()))
	assert.Equal(t, 1, c.Len())
}
