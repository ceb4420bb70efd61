package maintenance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/signscope/internal/livecache"
	"github.com/dshills/signscope/internal/localcache"
	"github.com/dshills/signscope/internal/storage"
	"github.com/dshills/signscope/internal/world"
	"github.com/dshills/signscope/pkg/types"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFileCache(t *testing.T, saveOnDetection bool) (*localcache.Cache, *storage.FileBackend) {
	t.Helper()
	backend, err := storage.NewFileBackend(storage.FileConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	return localcache.New(backend, localcache.Config{SaveOnDetection: saveOnDetection}), backend
}

func addEntry(c *localcache.Cache) {
	c.Partition("overworld").Add(types.PersistedEntry{
		Position: types.Position{X: 1, Y: 64, Z: 1},
		Lines:    []string{"Chest"},
	})
}

func TestNewServiceDefaults(t *testing.T) {
	s := NewService(Config{}, nil, nil)
	assert.Equal(t, defaultSweepInterval, s.cfg.SweepInterval)
	assert.Equal(t, defaultSaveInterval, s.cfg.SaveInterval)
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
	w := world.NewStaticWorld("")
	live := livecache.New(w, livecache.Config{}, livecache.WithClock(clk.Now))
	local, backend := newFileCache(t, true)
	s := NewService(Config{}, live, local)

	live.Put(types.Position{X: 1}, types.MarkerContent{Kind: types.KindSign, Lines: []string{"A"}})
	addEntry(local)

	res := s.RunOnce(ctx)
	assert.Zero(t, res.Swept)
	assert.True(t, res.Saved)

	clk.Advance(11 * time.Second)
	res = s.RunOnce(ctx)
	assert.Equal(t, 1, res.Swept)
	assert.False(t, res.Saved, "nothing changed since the last save")

	loaded, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, storage.CountEntries(loaded))
}

func TestRunOnceNilCaches(t *testing.T) {
	s := NewService(Config{}, nil, nil)
	assert.Equal(t, Result{}, s.RunOnce(context.Background()))
}

func TestStartStop(t *testing.T) {
	local, backend := newFileCache(t, true)
	s := NewService(Config{SweepInterval: 5 * time.Millisecond, SaveInterval: 5 * time.Millisecond}, nil, local)

	s.Start()
	s.Start() // idempotent
	assert.True(t, s.IsRunning())

	addEntry(local)
	assert.Eventually(t, func() bool { return !local.Dirty() }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop(context.Background()), "second stop is a no-op")

	files, err := backend.Files()
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestStopFlushesPendingChanges(t *testing.T) {
	// The save ticker never fires; only the final save writes
	local, backend := newFileCache(t, true)
	s := NewService(Config{SaveInterval: time.Hour}, nil, local)
	s.Start()

	addEntry(local)
	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, local.Dirty())

	loaded, err := backend.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, storage.CountEntries(loaded))
}

func TestStopHonorsSavePolicy(t *testing.T) {
	local, backend := newFileCache(t, false)
	s := NewService(Config{SaveInterval: time.Hour}, nil, local)
	s.Start()

	addEntry(local)
	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, local.Dirty(), "save on detection is off")

	files, err := backend.Files()
	require.NoError(t, err)
	assert.Empty(t, files)
}
