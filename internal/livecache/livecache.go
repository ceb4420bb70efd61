package livecache

import (
	"context"
	"sync"
	"time"

	"github.com/dshills/signscope/internal/world"
	"github.com/dshills/signscope/pkg/types"
)

const (
	// DefaultValidity is how long an entry may be served by Get
	DefaultValidity = 5 * time.Second
	// DefaultExpiry is the age after which Sweep purges an entry
	DefaultExpiry = 10 * time.Second
	// DefaultSoftLimit is the size above which Put triggers a sweep
	DefaultSoftLimit = 1000
)

// Config controls the live cache time windows and size
type Config struct {
	Validity  time.Duration
	Expiry    time.Duration
	SoftLimit int
}

func (c *Config) defaults() {
	if c.Validity <= 0 {
		c.Validity = DefaultValidity
	}
	if c.Expiry <= 0 {
		c.Expiry = DefaultExpiry
	}
	if c.Expiry < c.Validity {
		c.Expiry = c.Validity
	}
	if c.SoftLimit <= 0 {
		c.SoftLimit = DefaultSoftLimit
	}
}

// Option configures a Cache
type Option func(*Cache)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// entry is cached marker content with the time it was stored
type entry struct {
	content  types.MarkerContent
	cachedAt time.Time
}

// Cache is a short-lived, position-keyed cache of marker content.
// A hit is only served while it is younger than the validity window and the
// world still confirms a marker of the same kind at that position.
type Cache struct {
	mu      sync.Mutex
	entries map[types.Position]entry
	prober  world.Prober
	cfg     Config
	now     func() time.Time
}

// New creates a live cache that re-validates hits with prober
func New(prober world.Prober, cfg Config, opts ...Option) *Cache {
	cfg.defaults()
	c := &Cache{
		entries: make(map[types.Position]entry),
		prober:  prober,
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached content for pos. Stale entries are removed as a side effect.
func (c *Cache) Get(ctx context.Context, pos types.Position) (types.MarkerContent, bool) {
	c.mu.Lock()
	e, ok := c.entries[pos]
	if !ok {
		c.mu.Unlock()
		return types.MarkerContent{}, false
	}
	if c.now().Sub(e.cachedAt) >= c.cfg.Validity {
		delete(c.entries, pos)
		c.mu.Unlock()
		return types.MarkerContent{}, false
	}
	c.mu.Unlock()

	// Probe outside the lock; the world may be slow
	if c.prober != nil && !c.prober.Probe(ctx, pos).Confirms(e.content.Kind) {
		c.mu.Lock()
		if cur, ok := c.entries[pos]; ok && cur.cachedAt.Equal(e.cachedAt) {
			delete(c.entries, pos)
		}
		c.mu.Unlock()
		return types.MarkerContent{}, false
	}

	return e.content.Clone(), true
}

// Put stores content for pos, sweeping expired entries once the soft limit is exceeded
func (c *Cache) Put(pos types.Position, content types.MarkerContent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[pos] = entry{content: content.Clone(), cachedAt: c.now()}
	if len(c.entries) > c.cfg.SoftLimit {
		c.sweepLocked()
	}
}

// GetOrCompute returns the cached content for pos or stores and returns compute()
func (c *Cache) GetOrCompute(ctx context.Context, pos types.Position, compute func() types.MarkerContent) types.MarkerContent {
	if content, ok := c.Get(ctx, pos); ok {
		return content
	}
	content := compute()
	c.Put(pos, content)
	return content.Clone()
}

// Invalidate removes the entry for pos
func (c *Cache) Invalidate(pos types.Position) {
	c.mu.Lock()
	delete(c.entries, pos)
	c.mu.Unlock()
}

// Sweep removes entries older than the expiry window and returns how many were removed
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked()
}

func (c *Cache) sweepLocked() int {
	now := c.now()
	evicted := 0
	for pos, e := range c.entries {
		if now.Sub(e.cachedAt) > c.cfg.Expiry {
			delete(c.entries, pos)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of entries, including ones not yet swept
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge removes every entry
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = make(map[types.Position]entry)
	c.mu.Unlock()
}
