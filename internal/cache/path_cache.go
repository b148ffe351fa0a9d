// Package cache provides the TTL- and capacity-bounded result caches used by
// path discovery.
//
// Three named caches exist: connection_search holds whole resolver
// responses, pathfinding holds graph search results, and
// batch_profile_lookup holds individual people fetched by id. Each is an
// expiring LRU, so capacity is enforced by evicting the least recently used
// entry and expired entries are dropped on read and by a background sweep.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Name identifies one of the named caches.
type Name string

// Named caches.
const (
	ConnectionSearch   Name = "connection_search"
	Pathfinding        Name = "pathfinding"
	BatchProfileLookup Name = "batch_profile_lookup"
)

// DefaultMaxKeys is the per-cache capacity when none is configured.
const DefaultMaxKeys = 1000

// Config bounds a single cache.
type Config struct {
	TTL     time.Duration `yaml:"ttl"`
	MaxKeys int           `yaml:"max_keys"`
}

// DefaultConfigs returns the standard TTLs for every named cache.
func DefaultConfigs() map[Name]Config {
	return map[Name]Config{
		ConnectionSearch:   {TTL: 5 * time.Minute, MaxKeys: DefaultMaxKeys},
		Pathfinding:        {TTL: 10 * time.Minute, MaxKeys: DefaultMaxKeys},
		BatchProfileLookup: {TTL: 30 * time.Minute, MaxKeys: DefaultMaxKeys},
	}
}

// Stats is a point-in-time snapshot of one cache.
type Stats struct {
	Name      Name          `json:"name"`
	Size      int           `json:"size"`
	MaxKeys   int           `json:"max_keys"`
	TTL       time.Duration `json:"ttl"`
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Evictions int64         `json:"evictions"`
	HitRate   float64       `json:"hit_rate"`
}

// PathCache is a single named cache. It is safe for concurrent use.
type PathCache struct {
	name    Name
	ttl     time.Duration
	maxKeys int
	lru     *expirable.LRU[string, any]

	// gen counts purges; mu orders them against generation-checked writes.
	mu  sync.Mutex
	gen uint64

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a cache. Non-positive values in cfg fall back to the defaults
// for name.
func New(name Name, cfg Config) *PathCache {
	def, ok := DefaultConfigs()[name]
	if !ok {
		def = Config{TTL: 5 * time.Minute, MaxKeys: DefaultMaxKeys}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = def.MaxKeys
	}

	c := &PathCache{name: name, ttl: cfg.TTL, maxKeys: cfg.MaxKeys}
	// onEvict fires for capacity eviction, expiry, Remove and Purge.
	c.lru = expirable.NewLRU[string, any](cfg.MaxKeys, func(string, any) {
		c.evictions.Add(1)
	}, cfg.TTL)
	return c
}

// Name returns the cache's name.
func (c *PathCache) Name() Name { return c.name }

// Get returns the live value for key.
func (c *PathCache) Get(key string) (any, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *PathCache) Set(key string, value any) {
	c.lru.Add(key, value)
}

// Generation returns the current purge generation.
func (c *PathCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// SetIfGeneration stores value only when no purge happened since gen was
// read. It reports whether the value was stored.
func (c *PathCache) SetIfGeneration(key string, value any, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.lru.Add(key, value)
	return true
}

// Remove deletes key if present.
func (c *PathCache) Remove(key string) {
	c.lru.Remove(key)
}

// Len returns the number of entries, including any not yet swept.
func (c *PathCache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry. Values computed before the purge and written
// with SetIfGeneration afterwards are discarded.
func (c *PathCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.lru.Purge()
}

// Stats returns a snapshot of the cache's counters.
func (c *PathCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Name:      c.name,
		Size:      c.lru.Len(),
		MaxKeys:   c.maxKeys,
		TTL:       c.ttl,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		HitRate:   rate,
	}
}
