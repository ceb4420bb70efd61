package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/signscope/internal/app"
	"github.com/dshills/signscope/internal/searcher"
	"github.com/dshills/signscope/pkg/types"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search markers around a position",
		Long:  "Search signs and item displays within a radius. With no query every marker in range is returned.",
		RunE:  runSearch,
	}

	cmd.Flags().StringP("kind", "k", "literal", "Query kind: literal, regex, keyword_array, preset")
	cmd.Flags().Float64P("radius", "r", 0, "Search radius (default from config)")
	cmd.Flags().IntSlice("at", []int{0, 64, 0}, "Search center as x,y,z")
	cmd.Flags().Bool("case-sensitive", false, "Match case exactly")
	cmd.Flags().StringP("format", "f", "json", "Output format: json or text")

	rootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	radius, _ := cmd.Flags().GetFloat64("radius")
	at, _ := cmd.Flags().GetIntSlice("at")
	format, _ := cmd.Flags().GetString("format")

	if len(at) != 3 {
		return fmt.Errorf("--at needs three coordinates, got %d", len(at))
	}

	a, _, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	// Close saves recorded markers when save_on_detection is on
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			slog.Error("failed to save markers", "error", err)
		}
	}()

	opts := app.SearchOptions{
		Text:   strings.Join(args, " "),
		Kind:   kind,
		Radius: radius,
		Center: types.Position{X: at[0], Y: at[1], Z: at[2]},
	}
	if cmd.Flags().Changed("case-sensitive") {
		v, _ := cmd.Flags().GetBool("case-sensitive")
		opts.CaseSensitive = &v
	}

	resp, err := a.Search(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	out := cmd.OutOrStdout()
	if format == "text" {
		printText(out, resp)
		return nil
	}
	b, _ := json.MarshalIndent(resp.Results, "", "  ")
	if len(resp.Results) == 0 {
		b = []byte("[]")
	}
	fmt.Fprintln(out, string(b))
	return nil
}

func printText(out io.Writer, resp *searcher.SearchResponse) {
	for _, m := range resp.Results {
		source := "live"
		if m.IsPersisted() {
			source = "saved"
		}
		fmt.Fprintf(out, "%-20s %7.1f  %-12s %-5s  %s\n", m.Position(), m.Distance(), m.Kind(), source, m.Preview())
	}
	fmt.Fprintf(out, "%d live, %d saved (%d updated, %d evicted) in %s\n",
		resp.LiveCount, resp.PersistedCount, resp.Updated, resp.Evicted, resp.Duration)
}
