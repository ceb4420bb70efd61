package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/signscope/internal/app"
	"github.com/dshills/signscope/internal/config"
)

var (
	configPath string
	logLevel   string
	dataDir    string
	worldPath  string
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:           "signscope",
	Short:         "Find signs and item displays in a world snapshot",
	Long:          "Search labeled markers around a position and remember them across sessions. Runs as an MCP server or as a one-shot CLI.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $SIGNSCOPE_CONFIG or ./signscope.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Persistence directory (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&worldPath, "world", "w", "", "World snapshot YAML (overrides config)")
}

// loadConfig resolves the config file and applies command-line overrides
func loadConfig() (*config.Config, string, error) {
	path := config.ResolvePath(configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if dataDir != "" {
		cfg.Persistence.Dir = dataDir
	}
	if worldPath != "" {
		cfg.World.SnapshotPath = worldPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setupLogging installs the slog handler on stderr; stdout is reserved for output and MCP
func setupLogging(cfg *config.Config) {
	level, err := config.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// openApp loads configuration, sets up logging and assembles the engine
func openApp(ctx context.Context) (*app.App, string, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, "", err
	}
	return a, path, nil
}
