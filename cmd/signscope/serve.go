package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/signscope/internal/mcp"
	"github.com/dshills/signscope/internal/storage"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long:  "Serve the search engine over the Model Context Protocol on stdin/stdout. Logs are written to stderr.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	rootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, path, err := openApp(cmd.Context())
	if err != nil {
		return err
	}

	slog.Info("signscope MCP server starting", "version", version, "build_mode", storage.BuildMode, "driver", storage.DriverName)

	if err := a.Start(path); err != nil {
		_ = a.Close(context.Background())
		return err
	}

	server, err := mcp.NewServer(a)
	if err != nil {
		_ = a.Close(context.Background())
		return fmt.Errorf("create MCP server: %w", err)
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Start server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		slog.Info("MCP server ready, listening on stdio")
		errChan <- server.Serve(ctx)
	}()

	// Wait for shutdown signal or error
	var serveErr error
	select {
	case sig := <-sigChan:
		slog.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	case serveErr = <-errChan:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := a.Close(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}

	slog.Info("server stopped")
	return serveErr
}
