package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/signscope/internal/searcher"
	"github.com/dshills/signscope/internal/storage"
	"github.com/dshills/signscope/pkg/types"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "signscope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvConfig, EnvDataDir, EnvWorld, EnvLogLevel} {
		t.Setenv(k, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 64.0, cfg.Search.DefaultRadius)
	assert.Equal(t, 512.0, cfg.Search.MaxRadius)
	assert.Equal(t, "always", cfg.Search.SupplementPolicy)
	assert.True(t, cfg.Persistence.Enabled)
	assert.True(t, cfg.Persistence.SaveOnDetection)
	assert.Equal(t, 5*time.Minute, cfg.Persistence.SaveInterval)
	assert.Equal(t, "file", cfg.Persistence.Backend)
	assert.Equal(t, "overwrite", cfg.Persistence.Rotation)
	assert.Equal(t, 5*time.Second, cfg.LiveCache.Validity)
	assert.Equal(t, 10*time.Second, cfg.LiveCache.Expiry)
	assert.Equal(t, 1000, cfg.LiveCache.SoftLimit)
	assert.Equal(t, 100, cfg.PatternCache.Capacity)
	assert.Equal(t, "minecraft:overworld", cfg.World.Dimension)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Search, cfg.Search)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, `
search:
  default_radius: 32
  case_sensitive: true
  supplement_policy: when_empty
persistence:
  enabled: false
  save_interval: 30s
  backend: sqlite
  dir: `+dir+`
  rotation: daily_split
  compress: true
live_cache:
  validity: 2s
  expiry: 4s
presets:
  text:
    storage:
      text: "chest, barrel"
      kind: keyword_array
  regex:
    coords: '-?\d+ -?\d+'
world:
  snapshot_path: world.yaml
  dimension: minecraft:the_nether
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 32.0, cfg.Search.DefaultRadius)
	assert.Equal(t, 512.0, cfg.Search.MaxRadius, "unset fields keep defaults")
	assert.True(t, cfg.Search.CaseSensitive)
	assert.Equal(t, searcher.SupplementWhenEmpty, cfg.SupplementPolicy())
	assert.False(t, cfg.Persistence.Enabled)
	assert.True(t, cfg.Persistence.SaveOnDetection)
	assert.Equal(t, 30*time.Second, cfg.Persistence.SaveInterval)
	assert.Equal(t, 2*time.Second, cfg.LiveCache.Validity)
	assert.Equal(t, 4*time.Second, cfg.LiveCache.Expiry)
	assert.Equal(t, types.QueryKeywordArray, cfg.Presets.Text["storage"].Kind)
	assert.Equal(t, `-?\d+ -?\d+`, cfg.Presets.Regex["coords"])
	assert.Equal(t, "minecraft:the_nether", cfg.World.Dimension)

	opts := cfg.StorageOptions()
	assert.Equal(t, storage.KindSQLite, opts.Kind)
	assert.Equal(t, storage.RotationDailySplit, opts.File.Rotation)
	assert.True(t, opts.File.Compress)
	assert.Equal(t, filepath.Join(dir, "markers.db"), opts.SQLitePath)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, "persistence:\n  dir: /from/file\n")

	t.Setenv(EnvDataDir, filepath.Join(dir, "data"))
	t.Setenv(EnvWorld, "/tmp/world.yaml")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.Persistence.Dir)
	assert.Equal(t, "/tmp/world.yaml", cfg.World.SnapshotPath)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestResolvePath(t *testing.T) {
	clearEnv(t)
	assert.Equal(t, "explicit.yaml", ResolvePath("explicit.yaml"))
	assert.Equal(t, DefaultFileName, ResolvePath(""))

	t.Setenv(EnvConfig, "/etc/signscope.yaml")
	assert.Equal(t, "/etc/signscope.yaml", ResolvePath(""))
}

func TestLoadInvalid(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		content string
	}{
		{"supplement policy", "search:\n  supplement_policy: sometimes\n"},
		{"rotation", "persistence:\n  rotation: hourly\n"},
		{"backend", "persistence:\n  backend: redis\n"},
		{"radius", "search:\n  default_radius: 600\n"},
		{"windows", "live_cache:\n  validity: 20s\n  expiry: 10s\n"},
		{"preset kind", "presets:\n  text:\n    x:\n      text: a\n      kind: fuzzy\n"},
		{"log level", "log:\n  level: loud\n"},
		{"log format", "log:\n  format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := Load(path)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, t.TempDir(), "search: [unclosed\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "warn", "error"} {
		_, err := ParseLogLevel(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestWatcherReloads(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, "search:\n  default_radius: 10\n")
	snapshot := filepath.Join(dir, "world.yaml")
	require.NoError(t, os.WriteFile(snapshot, []byte("markers: []\n"), 0644))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	var radius atomic.Value
	var snapshotChanges atomic.Int32
	w.OnChange(func(cfg *Config) { radius.Store(cfg.Search.DefaultRadius) })
	w.OnFileChange(snapshot, func(string) { snapshotChanges.Add(1) })

	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("search:\n  default_radius: 20\n"), 0644))
	assert.Eventually(t, func() bool {
		v, ok := radius.Load().(float64)
		return ok && v == 20
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(snapshot, []byte("markers: []\n# edited\n"), 0644))
	assert.Eventually(t, func() bool { return snapshotChanges.Load() > 0 }, 2*time.Second, 10*time.Millisecond)

	// Unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644))
}

func TestWatcherWatchAfterStart(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, "search:\n  default_radius: 10\n")
	first := filepath.Join(dir, "world.yaml")
	require.NoError(t, os.WriteFile(first, []byte("markers: []\n"), 0644))
	// The second snapshot lives in a directory the watcher does not know yet
	otherDir := t.TempDir()
	second := filepath.Join(otherDir, "world.yaml")
	require.NoError(t, os.WriteFile(second, []byte("markers: []\n"), 0644))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	var firstChanges, secondChanges atomic.Int32
	w.OnFileChange(first, func(string) { firstChanges.Add(1) })
	require.NoError(t, w.Start())
	defer w.Stop()

	w.Unwatch(first)
	require.NoError(t, w.Watch(second, func(string) { secondChanges.Add(1) }))

	require.NoError(t, os.WriteFile(second, []byte("markers: []\n# edited\n"), 0644))
	assert.Eventually(t, func() bool { return secondChanges.Load() > 0 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(first, []byte("markers: []\n# edited\n"), 0644))
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, firstChanges.Load(), "unwatched file is ignored")
}
