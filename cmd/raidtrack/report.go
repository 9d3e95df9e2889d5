package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	service "github.com/okian/raidtrack/internal/app"
	"github.com/okian/raidtrack/internal/config"
	"github.com/okian/raidtrack/internal/domain/analytics"
)

var reportFlags struct {
	race    string
	limit   int
	section string
}

func init() {
	reportCmd.Flags().StringVar(&reportFlags.race, "race", "", "Restrict the view to one race")
	reportCmd.Flags().IntVar(&reportFlags.limit, "limit", 0, "Rows per table (default depends on the view)")
	reportCmd.Flags().StringVar(&reportFlags.section, "section", "", `Section of section-performance, as "From → To"`)
}

var reportCmd = &cobra.Command{
	Use:       "report <view>",
	Short:     "Print an analytics view of the cache as JSON",
	Long:      "Views: " + strings.Join(service.ViewNames(), ", "),
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: service.ViewNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := analytics.Query{Race: reportFlags.race, Limit: reportFlags.limit, Section: reportFlags.section}
		return report(cmd.Context(), cfg, args[0], q, cmd.OutOrStdout())
	},
}

func report(ctx context.Context, cfg *config.Config, view string, q analytics.Query, out io.Writer) error {
	if q.Limit < 0 || q.Limit > cfg.MaxLimit {
		return fmt.Errorf("limit must be between 1 and %d", cfg.MaxLimit)
	}
	svc, err := buildService(ctx, cfg, buildOptions{})
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	result, err := svc.View(ctx, view, q)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(result)
}
