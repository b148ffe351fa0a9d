package cache

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"
)

// ComputeFunc produces a value on a cache miss.
type ComputeFunc func(ctx context.Context) (any, error)

// DefaultComputeTimeout bounds a shared compute.
const DefaultComputeTimeout = 30 * time.Second

// Registry owns the named caches and deduplicates concurrent misses.
type Registry struct {
	caches         map[Name]*PathCache
	flight         singleflight.Group
	computeTimeout time.Duration
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithComputeTimeout bounds each shared compute. Non-positive values keep
// DefaultComputeTimeout.
func WithComputeTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.computeTimeout = d
		}
	}
}

// NewRegistry creates every named cache. cfgs may be nil or partial;
// missing entries use DefaultConfigs.
func NewRegistry(cfgs map[Name]Config, opts ...RegistryOption) *Registry {
	r := &Registry{
		caches:         make(map[Name]*PathCache, 3),
		computeTimeout: DefaultComputeTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	for name, def := range DefaultConfigs() {
		cfg := def
		if override, ok := cfgs[name]; ok {
			cfg = override
		}
		r.caches[name] = New(name, cfg)
	}
	return r
}

// Cache returns the named cache, or nil for an unknown name.
func (r *Registry) Cache(name Name) *PathCache {
	return r.caches[name]
}

// GetOrCompute returns the cached value for key, or runs compute once for
// all concurrent callers asking for the same key and caches the result.
//
// The shared compute runs detached from the cancellation of whichever caller
// started it, bounded by the registry's compute timeout, so one caller going
// away never fails the others. Each caller stops waiting when its own ctx
// ends and then gets ctx.Err(). Errors are returned to every waiter and are
// never cached. A result finished after a Purge is returned but not stored.
// hit reports whether the value came from the cache.
func (r *Registry) GetOrCompute(ctx context.Context, name Name, key string, compute ComputeFunc) (value any, hit bool, err error) {
	c := r.caches[name]
	if c == nil {
		return nil, false, fmt.Errorf("cache: unknown cache %q", name)
	}

	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	gen := c.Generation()
	ch := r.flight.DoChan(fmt.Sprintf("%s|%d|%s", name, gen, key), func() (interface{}, error) {
		// Another caller may have filled the entry while we waited.
		if v, ok := c.lru.Get(key); ok {
			return v, nil
		}
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.computeTimeout)
		defer cancel()
		v, err := compute(cctx)
		if err != nil {
			return nil, err
		}
		c.SetIfGeneration(key, v, gen)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Stats returns a snapshot of every cache ordered by name.
func (r *Registry) Stats() []Stats {
	out := make([]Stats, 0, len(r.caches))
	for _, c := range r.caches {
		out = append(out, c.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PurgeAll empties every cache.
func (r *Registry) PurgeAll() {
	for _, c := range r.caches {
		c.Purge()
	}
}
