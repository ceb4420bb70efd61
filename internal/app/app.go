// Package app assembles the search engine from configuration and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dshills/signscope/internal/config"
	"github.com/dshills/signscope/internal/livecache"
	"github.com/dshills/signscope/internal/localcache"
	"github.com/dshills/signscope/internal/maintenance"
	"github.com/dshills/signscope/internal/matcher"
	"github.com/dshills/signscope/internal/searcher"
	"github.com/dshills/signscope/internal/storage"
	"github.com/dshills/signscope/internal/world"
	"github.com/dshills/signscope/pkg/types"
)

// App holds every long-lived component. The caches are shared by all searches.
type App struct {
	World       *world.StaticWorld
	Patterns    *matcher.PatternCache
	Matcher     *matcher.Matcher
	Live        *livecache.Cache
	Local       *localcache.Cache
	Backend     storage.Backend
	Searcher    *searcher.Searcher
	Maintenance *maintenance.Service

	mu      sync.RWMutex
	cfg     *config.Config
	watcher *config.Watcher
}

// New builds the engine described by cfg and loads the persisted cache
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	w := world.NewStaticWorld(cfg.World.Dimension)
	if cfg.World.SnapshotPath != "" {
		if err := w.Reload(cfg.World.SnapshotPath); err != nil {
			return nil, fmt.Errorf("failed to load world: %w", err)
		}
	}

	var backend storage.Backend
	if cfg.Persistence.Enabled {
		b, err := storage.Open(cfg.StorageOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		backend = b
	}

	patterns := matcher.NewPatternCache(cfg.PatternCache.Capacity)
	m := matcher.New(patterns, cfg.Presets)

	live := livecache.New(w, livecache.Config{
		Validity:  cfg.LiveCache.Validity,
		Expiry:    cfg.LiveCache.Expiry,
		SoftLimit: cfg.LiveCache.SoftLimit,
	})

	local := localcache.New(backend, localcache.Config{SaveOnDetection: cfg.Persistence.SaveOnDetection})
	local.Load(ctx)

	s := searcher.NewSearcher(w, live, m, local, searcher.Config{
		PersistenceEnabled: cfg.Persistence.Enabled,
		Supplement:         cfg.SupplementPolicy(),
		Workers:            cfg.Search.Workers,
		DefaultRadius:      cfg.Search.DefaultRadius,
		MaxRadius:          cfg.Search.MaxRadius,
	})

	maint := maintenance.NewService(maintenance.Config{
		SweepInterval: cfg.LiveCache.SweepInterval,
		SaveInterval:  cfg.Persistence.SaveInterval,
	}, live, local)

	slog.Info("engine ready",
		"dimension", w.Dimension(),
		"persistence", cfg.Persistence.Enabled,
		"backend", cfg.Persistence.Backend,
		"supplement", cfg.Search.SupplementPolicy,
		"sqlite_driver", storage.DriverName,
	)

	return &App{
		World:       w,
		Patterns:    patterns,
		Matcher:     m,
		Live:        live,
		Local:       local,
		Backend:     backend,
		Searcher:    s,
		Maintenance: maint,
		cfg:         cfg,
	}, nil
}

// Config returns the active configuration
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Start runs the maintenance loop and, when configPath exists, watches it
// and the world snapshot for changes
func (a *App) Start(configPath string) error {
	a.Maintenance.Start()

	if configPath == "" {
		return nil
	}
	if _, err := os.Stat(configPath); err != nil {
		slog.Debug("config file not found, hot reload disabled", "path", configPath)
		return nil
	}

	watcher, err := config.NewWatcher(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	watcher.OnChange(a.ApplyConfig)
	if path := a.Config().World.SnapshotPath; path != "" {
		watcher.OnFileChange(path, a.reloadWorld)
	}

	// Published before Start so a reload that lands immediately can re-point the snapshot watch
	a.mu.Lock()
	a.watcher = watcher
	a.mu.Unlock()

	if err := watcher.Start(); err != nil {
		a.mu.Lock()
		a.watcher = nil
		a.mu.Unlock()
		watcher.Stop()
		return fmt.Errorf("failed to start config watcher: %w", err)
	}
	return nil
}

// ApplyConfig applies the settings that can change without a restart:
// presets and the world snapshot path
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Matcher.SetPresets(cfg.Presets)

	a.mu.Lock()
	prev := a.cfg
	a.cfg = cfg
	watcher := a.watcher
	a.mu.Unlock()

	if cfg.World.SnapshotPath != "" && cfg.World.SnapshotPath != prev.World.SnapshotPath {
		a.reloadWorld(cfg.World.SnapshotPath)
		if watcher != nil {
			// Follow the snapshot to its new path
			watcher.Unwatch(prev.World.SnapshotPath)
			if err := watcher.Watch(cfg.World.SnapshotPath, a.reloadWorld); err != nil {
				slog.Error("failed to watch world snapshot", "path", cfg.World.SnapshotPath, "error", err)
			}
		}
	}
	slog.Info("configuration applied", "text_presets", len(cfg.Presets.Text), "regex_presets", len(cfg.Presets.Regex))
}

func (a *App) reloadWorld(path string) {
	if err := a.World.Reload(path); err != nil {
		slog.Error("world reload failed", "path", path, "error", err)
		return
	}
	a.Live.Purge()
	slog.Info("world reloaded", "path", path, "dimension", a.World.Dimension())
}

// SearchOptions are the caller-facing search parameters
type SearchOptions struct {
	Text          string
	Kind          string
	Radius        float64
	Center        types.Position
	CaseSensitive *bool
}

// Search runs a query using configured defaults for unset options
func (a *App) Search(ctx context.Context, opts SearchOptions) (*searcher.SearchResponse, error) {
	kind, err := types.ParseQueryKind(opts.Kind)
	if err != nil {
		return nil, err
	}

	caseSensitive := a.Config().Search.CaseSensitive
	if opts.CaseSensitive != nil {
		caseSensitive = *opts.CaseSensitive
	}

	return a.Searcher.Search(ctx, searcher.SearchRequest{
		Query: types.Query{
			Text:          opts.Text,
			Kind:          kind,
			Radius:        opts.Radius,
			CaseSensitive: caseSensitive,
		},
		Center: opts.Center,
	})
}

// Status is a snapshot of cache and world state
type Status struct {
	Dimension     string           `json:"dimension"`
	Partition     string           `json:"partition"`
	Persistence   bool             `json:"persistence"`
	BuildMode     string           `json:"build_mode"`
	LiveEntries   int              `json:"live_entries"`
	PatternsCache int              `json:"pattern_entries"`
	Local         localcache.Stats `json:"local"`
}

// Status reports the current cache sizes
func (a *App) Status() Status {
	dimension := a.World.Dimension()
	return Status{
		Dimension:     dimension,
		Partition:     string(types.SanitizePartition(dimension)),
		Persistence:   a.Backend != nil,
		BuildMode:     storage.BuildMode,
		LiveEntries:   a.Live.Len(),
		PatternsCache: a.Patterns.Len(),
		Local:         a.Local.Stats(),
	}
}

// Save writes pending local cache changes regardless of the save policy
func (a *App) Save(ctx context.Context) error {
	if a.Backend == nil {
		return errors.New("persistence is disabled")
	}
	return a.Local.Flush(ctx)
}

// Validate evicts confirmed-absent entries from the current partition
func (a *App) Validate(ctx context.Context) int {
	key := types.SanitizePartition(a.World.Dimension())
	return a.Local.Validate(ctx, key, a.World)
}

// Clear empties the local cache, or one partition when dimension is set
func (a *App) Clear(dimension string) int {
	if dimension == "" {
		n := a.Local.Stats().Total
		a.Local.Clear()
		a.Live.Purge()
		return n
	}
	p := a.Local.PartitionFor(dimension)
	n := 0
	for _, e := range p.All() {
		if p.Remove(e.Position) {
			n++
		}
	}
	return n
}

// Close stops background work, saves pending changes under the save policy and closes storage
func (a *App) Close(ctx context.Context) error {
	a.mu.Lock()
	watcher := a.watcher
	a.watcher = nil
	a.mu.Unlock()
	if watcher != nil {
		watcher.Stop()
	}

	var errs []error
	// Stop saves when the loop was running; the second check covers an app that never started.
	// Both honor save_on_detection; explicit saves go through Save.
	if err := a.Maintenance.Stop(ctx); err != nil {
		errs = append(errs, err)
	} else if _, err := a.Local.CheckAndSave(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.Backend != nil {
		if err := a.Backend.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
