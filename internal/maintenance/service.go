// Package maintenance runs the periodic background work of the engine:
// sweeping expired live cache entries and saving the local cache when it has
// pending changes. Both run independently of searches.
package maintenance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/signscope/internal/livecache"
	"github.com/dshills/signscope/internal/localcache"
)

const (
	defaultSweepInterval = 10 * time.Second
	defaultSaveInterval  = 5 * time.Minute
)

// Config holds the maintenance intervals.
type Config struct {
	SweepInterval time.Duration
	SaveInterval  time.Duration
	Retry         RetryConfig
}

// Result reports what a single maintenance pass did.
type Result struct {
	Swept int
	Saved bool
}

// Service manages the periodic maintenance loop.
type Service struct {
	cfg   Config
	live  *livecache.Cache
	local *localcache.Cache

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewService creates a maintenance service. Either cache may be nil.
func NewService(cfg Config, live *livecache.Cache, local *localcache.Cache) *Service {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = defaultSaveInterval
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	return &Service{cfg: cfg, live: live, local: local}
}

// Start begins the maintenance loop in a background goroutine.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx, s.done)
	slog.Info("maintenance service started",
		"sweep_interval", s.cfg.SweepInterval,
		"save_interval", s.cfg.SaveInterval,
	)
}

// Stop halts the loop, waits for it to exit and writes any pending changes
// when save on detection is enabled.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	done := s.done
	s.running = false
	s.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	slog.Info("maintenance service stopped")

	if s.local == nil {
		return nil
	}
	// Final save, retried with backoff. It follows the save-on-detection policy like every automatic save.
	return retryWithBackoff(ctx, s.cfg.Retry, func() error {
		_, err := s.local.CheckAndSave(ctx)
		return err
	})
}

// IsRunning returns whether the maintenance loop is active.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunOnce sweeps the live cache and saves the local cache if it is dirty.
func (s *Service) RunOnce(ctx context.Context) Result {
	return Result{Swept: s.sweep(), Saved: s.save(ctx)}
}

func (s *Service) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	sweepTicker := time.NewTicker(s.cfg.SweepInterval)
	defer sweepTicker.Stop()
	saveTicker := time.NewTicker(s.cfg.SaveInterval)
	defer saveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweepTicker.C:
			s.sweep()
		case <-saveTicker.C:
			s.save(ctx)
		}
	}
}

func (s *Service) sweep() int {
	if s.live == nil {
		return 0
	}
	n := s.live.Sweep()
	if n > 0 {
		slog.Debug("swept live cache", "evicted", n, "remaining", s.live.Len())
	}
	return n
}

func (s *Service) save(ctx context.Context) bool {
	if s.local == nil {
		return false
	}
	saved, err := s.local.CheckAndSave(ctx)
	if err != nil {
		// Logged by the cache; it stays dirty for the next tick
		return false
	}
	return saved
}
