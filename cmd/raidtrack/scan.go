package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	service "github.com/okian/raidtrack/internal/app"
	"github.com/okian/raidtrack/internal/config"
	"github.com/okian/raidtrack/internal/domain/biblist"
	"github.com/okian/raidtrack/pkg/logger"
)

var scanFlags struct {
	from int
	to   int
	file string
}

func init() {
	scanCmd.Flags().IntVar(&scanFlags.from, "from", 0, "First bib of a range")
	scanCmd.Flags().IntVar(&scanFlags.to, "to", 0, "Last bib of a range (inclusive)")
	scanCmd.Flags().StringVarP(&scanFlags.file, "file", "f", "", "Bib list file (one bib or range per line)")
	scanCmd.MarkFlagsRequiredTogether("from", "to")
}

var scanCmd = &cobra.Command{
	Use:   "scan [bib...]",
	Short: "Fetch runners into the cache and print the batch report",
	Long: `Fetches the given bibs, a --from/--to range or the bibs of a --file.
Cached bibs are not fetched again. Interrupting the command cancels the bibs
not yet started; records already written are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bibs, err := collectBibs(args, scanFlags.from, scanFlags.to, scanFlags.file)
		if err != nil {
			return err
		}
		return scan(cmd.Context(), cfg, bibs, cmd.OutOrStdout())
	},
}

// collectBibs merges positional bibs, the range and the file in that order.
func collectBibs(args []string, from, to int, file string) ([]int, error) {
	var bibs []int
	for _, arg := range args {
		bib, err := strconv.Atoi(arg)
		if err != nil || bib <= 0 {
			return nil, fmt.Errorf("%w: %q", biblist.ErrInvalidEntry, arg)
		}
		bibs = append(bibs, bib)
	}
	if from != 0 || to != 0 {
		r, err := biblist.Range(from, to)
		if err != nil {
			return nil, err
		}
		bibs = append(bibs, r...)
	}
	if file != "" {
		listed, err := biblist.ReadFile(file)
		if err != nil {
			return nil, err
		}
		bibs = append(bibs, listed...)
	}
	if len(bibs) == 0 {
		return nil, errors.New("nothing to scan: give bibs, --from/--to or --file")
	}
	return bibs, nil
}

func scan(ctx context.Context, cfg *config.Config, bibs []int, out io.Writer) error {
	log := logger.Get()

	svc, err := buildService(ctx, cfg, buildOptions{source: true})
	if err != nil {
		return err
	}
	// The batch must outlive ctx so an interrupt can cancel it cleanly.
	runCtx := context.WithoutCancel(ctx)
	if err := svc.Start(runCtx); err != nil {
		return err
	}
	defer svc.Stop()

	id, err := svc.Scan(runCtx, bibs)
	if err != nil {
		return err
	}

	report, err := svc.Wait(ctx, id)
	if errors.Is(err, context.Canceled) {
		log.Warn(runCtx, "interrupted; cancelling remaining bibs", logger.String("batch", id))
		if err := svc.Cancel(runCtx, id); err != nil && !errors.Is(err, service.ErrBatchNotFound) {
			return err
		}
		report, err = svc.Wait(runCtx, id)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if report.Failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d bibs failed\n", report.Failed, report.Total)
	}
	return nil
}
