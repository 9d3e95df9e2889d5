package main

import (
	"context"
	"fmt"

	"github.com/okian/raidtrack/internal/adapters/repository"
	"github.com/okian/raidtrack/internal/adapters/source"
	service "github.com/okian/raidtrack/internal/app"
	"github.com/okian/raidtrack/internal/config"
	"github.com/okian/raidtrack/internal/domain/analytics"
	"github.com/okian/raidtrack/internal/domain/normalize"
	"github.com/okian/raidtrack/pkg/logger"
)

// buildOptions selects the optional parts of the service a command needs.
type buildOptions struct {
	source    bool
	scheduled bool
}

// buildService assembles the service from cfg. The caller starts and stops it.
func buildService(ctx context.Context, cfg *config.Config, b buildOptions) (*service.Service, error) {
	log := logger.Get()

	store, err := repository.Open(ctx, cfg.Store.Driver,
		repository.WithPath(cfg.Store.Path),
		repository.WithAtomicWrite(cfg.Store.AtomicWrite),
		repository.WithLogger(log.Named("repository")),
	)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithStore(store),
		service.WithNormalizer(normalize.New(normalize.WithRaceNames(cfg.RaceNames))),
		service.WithEngine(analytics.New()),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithFetchInterval(cfg.FetchInterval),
		service.WithViewCacheTTL(cfg.ViewCacheTTL),
		service.WithDefaultLimits(cfg.LeaderboardLimit, cfg.RankingLimit),
		service.WithBibsFile(cfg.BibsFile),
	}
	if b.source {
		if cfg.Source.BaseURL == "" {
			log.Warn(ctx, "source.base_url not set; scans are disabled")
		} else {
			opts = append(opts, service.WithFetcher(source.NewHTTPSource(cfg.Source.BaseURL,
				source.WithTimeout(cfg.Source.Timeout),
				source.WithRetryMax(cfg.Source.RetryMax),
				source.WithLogger(log.Named("source")),
			)))
		}
	}
	if b.scheduled && cfg.ScanSchedule != "" {
		opts = append(opts, service.WithScanSchedule(cfg.ScanSchedule))
	}
	return service.New(opts...), nil
}
