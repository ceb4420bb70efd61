// Package config loads the signscope YAML configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/signscope/internal/matcher"
	"github.com/dshills/signscope/internal/searcher"
	"github.com/dshills/signscope/internal/storage"
	"github.com/dshills/signscope/internal/world"
	"github.com/dshills/signscope/pkg/types"
)

// Environment variables that override the file
const (
	EnvConfig   = "SIGNSCOPE_CONFIG"
	EnvDataDir  = "SIGNSCOPE_DATA_DIR"
	EnvWorld    = "SIGNSCOPE_WORLD"
	EnvLogLevel = "SIGNSCOPE_LOG_LEVEL"
)

// DefaultFileName is looked up in the working directory when no path is given
const DefaultFileName = "signscope.yaml"

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all signscope configuration.
type Config struct {
	Search       SearchConfig       `yaml:"search"`
	Persistence  PersistenceConfig  `yaml:"persistence"`
	LiveCache    LiveCacheConfig    `yaml:"live_cache"`
	PatternCache PatternCacheConfig `yaml:"pattern_cache"`
	Presets      matcher.Presets    `yaml:"presets"`
	World        WorldConfig        `yaml:"world"`
	Log          LogConfig          `yaml:"log"`
}

// SearchConfig controls query defaults and result assembly.
type SearchConfig struct {
	DefaultRadius    float64 `yaml:"default_radius"`
	MaxRadius        float64 `yaml:"max_radius"`
	CaseSensitive    bool    `yaml:"case_sensitive"`
	SupplementPolicy string  `yaml:"supplement_policy"`
	Workers          int     `yaml:"workers"`
}

// PersistenceConfig controls the local cache and its backend.
type PersistenceConfig struct {
	Enabled         bool          `yaml:"enabled"`
	SaveOnDetection bool          `yaml:"save_on_detection"`
	SaveInterval    time.Duration `yaml:"save_interval"`
	Backend         string        `yaml:"backend"`
	Dir             string        `yaml:"dir"`
	BaseName        string        `yaml:"base_name"`
	Rotation        string        `yaml:"rotation"`
	Compress        bool          `yaml:"compress"`
}

// LiveCacheConfig controls the live marker cache windows.
type LiveCacheConfig struct {
	Validity      time.Duration `yaml:"validity"`
	Expiry        time.Duration `yaml:"expiry"`
	SoftLimit     int           `yaml:"soft_limit"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// PatternCacheConfig controls the compiled regex cache.
type PatternCacheConfig struct {
	Capacity int `yaml:"capacity"`
}

// WorldConfig points at the world snapshot to search.
type WorldConfig struct {
	SnapshotPath string `yaml:"snapshot_path"`
	Dimension    string `yaml:"dimension"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{
		Search: SearchConfig{
			SupplementPolicy: string(searcher.SupplementAlways),
		},
		Persistence: PersistenceConfig{
			Enabled:         true,
			SaveOnDetection: true,
			Backend:         string(storage.KindFile),
			Rotation:        string(storage.RotationOverwrite),
		},
	}
	cfg.defaults()
	return cfg
}

func (c *Config) defaults() {
	if c.Search.DefaultRadius <= 0 {
		c.Search.DefaultRadius = searcher.DefaultRadius
	}
	if c.Search.MaxRadius <= 0 {
		c.Search.MaxRadius = searcher.DefaultMaxRadius
	}
	if c.Search.SupplementPolicy == "" {
		c.Search.SupplementPolicy = string(searcher.SupplementAlways)
	}
	if c.Search.Workers <= 0 {
		c.Search.Workers = runtime.NumCPU()
	}
	if c.Persistence.SaveInterval <= 0 {
		c.Persistence.SaveInterval = 5 * time.Minute
	}
	if c.Persistence.Backend == "" {
		c.Persistence.Backend = string(storage.KindFile)
	}
	if c.Persistence.Dir == "" {
		c.Persistence.Dir = defaultDataDir()
	}
	if c.Persistence.BaseName == "" {
		c.Persistence.BaseName = "markers"
	}
	if c.Persistence.Rotation == "" {
		c.Persistence.Rotation = string(storage.RotationOverwrite)
	}
	if c.LiveCache.Validity <= 0 {
		c.LiveCache.Validity = 5 * time.Second
	}
	if c.LiveCache.Expiry <= 0 {
		c.LiveCache.Expiry = 10 * time.Second
	}
	if c.LiveCache.SoftLimit <= 0 {
		c.LiveCache.SoftLimit = 1000
	}
	if c.LiveCache.SweepInterval <= 0 {
		c.LiveCache.SweepInterval = 10 * time.Second
	}
	if c.PatternCache.Capacity <= 0 {
		c.PatternCache.Capacity = matcher.DefaultPatternCapacity
	}
	if c.World.Dimension == "" {
		c.World.Dimension = world.DefaultDimension
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// defaultDataDir returns ~/.signscope/data, or a relative path without a home directory
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".signscope", "data")
	}
	return filepath.Join(home, ".signscope", "data")
}

// ResolvePath picks the config file: the explicit path, then $SIGNSCOPE_CONFIG,
// then signscope.yaml in the working directory.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return env
	}
	return DefaultFileName
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.defaults()
	cfg.Persistence.Dir = expandHome(cfg.Persistence.Dir)
	cfg.World.SnapshotPath = expandHome(cfg.World.SnapshotPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Persistence.Dir = v
	}
	if v := os.Getenv(EnvWorld); v != "" {
		c.World.SnapshotPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate checks enumerated values and window ordering.
func (c *Config) Validate() error {
	if _, err := searcher.ParseSupplementPolicy(c.Search.SupplementPolicy); err != nil {
		return fmt.Errorf("%w: search.supplement_policy: %v", ErrInvalidConfig, err)
	}
	if c.Search.DefaultRadius > c.Search.MaxRadius {
		return fmt.Errorf("%w: search.default_radius %.0f exceeds max_radius %.0f", ErrInvalidConfig, c.Search.DefaultRadius, c.Search.MaxRadius)
	}
	if _, err := storage.ParseRotation(c.Persistence.Rotation); err != nil {
		return fmt.Errorf("%w: persistence.rotation: %v", ErrInvalidConfig, err)
	}
	switch storage.Kind(c.Persistence.Backend) {
	case storage.KindFile, storage.KindSQLite:
	default:
		return fmt.Errorf("%w: persistence.backend: unknown backend %q", ErrInvalidConfig, c.Persistence.Backend)
	}
	if c.LiveCache.Expiry < c.LiveCache.Validity {
		return fmt.Errorf("%w: live_cache.expiry %s is shorter than validity %s", ErrInvalidConfig, c.LiveCache.Expiry, c.LiveCache.Validity)
	}
	for name, p := range c.Presets.Text {
		if p.Kind == "" {
			continue
		}
		if _, err := types.ParseQueryKind(string(p.Kind)); err != nil {
			return fmt.Errorf("%w: presets.text.%s: %v", ErrInvalidConfig, name, err)
		}
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format: unknown format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// StorageOptions converts the persistence section into backend options
func (c *Config) StorageOptions() storage.Options {
	rotation, _ := storage.ParseRotation(c.Persistence.Rotation)
	return storage.Options{
		Kind: storage.Kind(c.Persistence.Backend),
		File: storage.FileConfig{
			Dir:      c.Persistence.Dir,
			BaseName: c.Persistence.BaseName,
			Rotation: rotation,
			Compress: c.Persistence.Compress,
		},
		SQLitePath: filepath.Join(c.Persistence.Dir, c.Persistence.BaseName+".db"),
	}
}

// SupplementPolicy returns the parsed search.supplement_policy
func (c *Config) SupplementPolicy() searcher.SupplementPolicy {
	p, err := searcher.ParseSupplementPolicy(c.Search.SupplementPolicy)
	if err != nil {
		return searcher.SupplementAlways
	}
	return p
}

// ParseLogLevel maps a level name onto slog levels
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
