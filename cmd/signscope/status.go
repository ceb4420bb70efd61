package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/signscope/internal/storage"
)

func init() {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Evict persisted markers confirmed gone from the current dimension",
		Args:  cobra.NoArgs,
		RunE:  runValidate,
	}

	clearCmd := &cobra.Command{
		Use:   "clear [dimension]",
		Short: "Forget persisted markers for one dimension, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runClear,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "signscope\n")
			fmt.Fprintf(out, "Version: %s\n", version)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
		},
	}

	rootCmd.AddCommand(statusCmd, validateCmd, clearCmd, versionCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, _, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	b, _ := json.MarshalIndent(a.Status(), "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, _, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	evicted := a.Validate(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "evicted %d markers from %s\n", evicted, a.Status().Partition)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	a, _, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	dimension := ""
	if len(args) == 1 {
		dimension = args[0]
	}
	removed := a.Clear(dimension)
	if a.Backend != nil {
		if err := a.Save(cmd.Context()); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d markers\n", removed)
	return nil
}
