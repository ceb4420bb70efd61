package localcache

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dshills/signscope/internal/storage"
	"github.com/dshills/signscope/internal/world"
	"github.com/dshills/signscope/pkg/types"
)

// ErrStoreUnreadable is returned by saves after a failed load that could not
// move the unreadable snapshot aside. Saving would replace the persisted markers.
var ErrStoreUnreadable = errors.New("persisted markers could not be loaded; saving is disabled until a load succeeds")

// setAsider is implemented by backends that can move an unreadable snapshot
// out of the way of later saves
type setAsider interface {
	SetAside() (string, error)
}

// Config controls when the cache writes to its backend
type Config struct {
	// SaveOnDetection allows CheckAndSave to flush pending changes
	SaveOnDetection bool
}

// Option configures a Cache
type Option func(*Cache)

// WithClock overrides the time source used to stamp entries
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// Stats summarizes the cache contents
type Stats struct {
	Partitions map[types.PartitionKey]int `json:"partitions"`
	Total      int                        `json:"total"`
	Dirty      bool                       `json:"dirty"`
	Location   string                     `json:"location,omitempty"`
	LastSaved  time.Time                  `json:"last_saved"`
	LoadFailed bool                       `json:"load_failed"`
}

type partition map[types.Position]types.PersistedEntry

// Cache is the durable, partitioned store of previously detected markers.
// Mutations only mark the cache dirty; writing happens in CheckAndSave or Flush.
type Cache struct {
	backend storage.Backend
	cfg     Config
	now     func() time.Time

	mu         sync.RWMutex
	partitions map[types.PartitionKey]partition
	generation uint64
	savedGen   uint64
	lastSaved  time.Time
	loadFailed bool

	// saveMu serializes writes to the backend
	saveMu sync.Mutex
}

// New creates an empty cache. backend may be nil, in which case nothing is persisted.
func New(backend storage.Backend, cfg Config, opts ...Option) *Cache {
	c := &Cache{
		backend:    backend,
		cfg:        cfg,
		now:        time.Now,
		partitions: make(map[types.PartitionKey]partition),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Partition returns a view of the entries stored under key
func (c *Cache) Partition(key types.PartitionKey) *Partition {
	return &Partition{c: c, key: key}
}

// PartitionFor returns the view for a raw region identifier
func (c *Cache) PartitionFor(dimension string) *Partition {
	return c.Partition(types.SanitizePartition(dimension))
}

// Keys returns the partitions that currently hold entries, sorted
func (c *Cache) Keys() []types.PartitionKey {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]types.PartitionKey, 0, len(c.partitions))
	for k, p := range c.partitions {
		if len(p) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Load replaces the cache contents with the backend's latest snapshot and
// returns the number of entries loaded. A failed load is logged and leaves
// the cache empty. The unreadable snapshot is moved aside when the backend
// supports it; otherwise saves are refused until a later Load succeeds.
func (c *Cache) Load(ctx context.Context) int {
	if c.backend == nil {
		return 0
	}

	data, err := c.backend.Load(ctx)
	loadFailed := false
	if err != nil {
		slog.Warn("failed to load marker cache", "location", c.backend.Location(), "error", err)
		data = nil
		loadFailed = !c.setAside()
	}

	partitions := make(map[types.PartitionKey]partition, len(data))
	total := 0
	for key, entries := range data {
		key = types.SanitizePartition(string(key))
		p, ok := partitions[key]
		if !ok {
			p = make(partition, len(entries))
			partitions[key] = p
		}
		for _, e := range entries {
			if e.Kind == "" {
				e.Kind = types.KindSign
			}
			if _, dup := p[e.Position]; !dup {
				total++
			}
			p[e.Position] = e.Clone()
		}
	}

	c.mu.Lock()
	c.partitions = partitions
	c.generation++
	c.savedGen = c.generation
	c.loadFailed = loadFailed
	c.mu.Unlock()

	if err == nil {
		slog.Info("marker cache loaded", "entries", total, "partitions", len(partitions), "location", c.backend.Location())
	}
	return total
}

// setAside asks the backend to move the unreadable snapshot away and reports
// whether later saves are safe
func (c *Cache) setAside() bool {
	sa, ok := c.backend.(setAsider)
	if !ok {
		slog.Error("persisted markers are unreadable; saving is disabled for this session", "location", c.backend.Location())
		return false
	}
	path, err := sa.SetAside()
	if err != nil || path == "" {
		slog.Error("persisted markers are unreadable; saving is disabled for this session", "location", c.backend.Location(), "error", err)
		return false
	}
	slog.Warn("moved unreadable marker snapshot aside", "path", path)
	return true
}

// Dirty reports whether there are changes not yet written to the backend
func (c *Cache) Dirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation != c.savedGen
}

// CheckAndSave writes pending changes when the cache is dirty and save on
// detection is enabled. It reports whether a save took place.
func (c *Cache) CheckAndSave(ctx context.Context) (bool, error) {
	if c.backend == nil || !c.cfg.SaveOnDetection || !c.Dirty() {
		return false, nil
	}
	if err := c.save(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Flush writes pending changes regardless of the save policy
func (c *Cache) Flush(ctx context.Context) error {
	if !c.Dirty() {
		return nil
	}
	return c.save(ctx)
}

func (c *Cache) save(ctx context.Context) error {
	if c.backend == nil {
		return nil
	}

	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.RLock()
	if c.loadFailed {
		c.mu.RUnlock()
		return ErrStoreUnreadable
	}
	gen := c.generation
	data := c.snapshotLocked()
	c.mu.RUnlock()

	if err := c.backend.Save(ctx, data); err != nil {
		// Dirty state is kept so the next trigger retries
		slog.Error("failed to save marker cache", "location", c.backend.Location(), "error", err)
		return err
	}

	c.mu.Lock()
	// Changes made during the save stay pending
	if gen > c.savedGen {
		c.savedGen = gen
	}
	c.lastSaved = c.now()
	c.mu.Unlock()

	slog.Debug("marker cache saved", "entries", storage.CountEntries(data), "location", c.backend.Location())
	return nil
}

// Snapshot returns a deep copy of every non-empty partition, entries sorted by position
func (c *Cache) Snapshot() types.PartitionedEntries {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Cache) snapshotLocked() types.PartitionedEntries {
	out := make(types.PartitionedEntries, len(c.partitions))
	for key, p := range c.partitions {
		if len(p) == 0 {
			continue
		}
		out[key] = sortedEntries(p, nil)
	}
	return out
}

// Clear removes every entry from every partition
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.partitions) == 0 {
		return
	}
	c.partitions = make(map[types.PartitionKey]partition)
	c.generation++
}

// Stats returns per-partition entry counts
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Partitions: make(map[types.PartitionKey]int, len(c.partitions)),
		Dirty:      c.generation != c.savedGen,
		LastSaved:  c.lastSaved,
		LoadFailed: c.loadFailed,
	}
	if c.backend != nil {
		s.Location = c.backend.Location()
	}
	for key, p := range c.partitions {
		if len(p) == 0 {
			continue
		}
		s.Partitions[key] = len(p)
		s.Total += len(p)
	}
	return s
}

// Validate probes every entry of a partition and evicts the ones whose
// absence is confirmed. Entries in unloaded chunks are kept. It returns the
// number of evicted entries.
func (c *Cache) Validate(ctx context.Context, key types.PartitionKey, prober world.Prober) int {
	p := c.Partition(key)
	evicted := 0
	for _, e := range p.All() {
		if ctx.Err() != nil {
			break
		}
		if !prober.Probe(ctx, e.Position).ConfirmsAbsence(e.Content().Kind) {
			continue
		}
		if p.RemoveIfUnchanged(e) {
			slog.Info("evicted persisted marker", "partition", key, "pos", e.Position.String(), "reason", "validation")
			evicted++
		}
	}
	return evicted
}

func sortedEntries(p partition, keep func(types.PersistedEntry) bool) []types.PersistedEntry {
	out := make([]types.PersistedEntry, 0, len(p))
	for _, e := range p {
		if keep != nil && !keep(e) {
			continue
		}
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position.Less(out[j].Position) })
	return out
}
