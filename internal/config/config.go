// Package config defines service configuration structures and loading hooks.
package config

import (
	"context"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	Store  StoreConfig  `koanf:"store"`
	Source SourceConfig `koanf:"source"`

	// FetchInterval is the minimum spacing between two page fetches.
	FetchInterval time.Duration `koanf:"fetch_interval" validate:"gte=0"`

	// QueueSize bounds the number of pending scan jobs.
	QueueSize int `koanf:"queue_size" validate:"gte=1"`

	// DedupeSize bounds the per-batch bib de-duplication set (0 = unbounded).
	DedupeSize int `koanf:"dedupe_size" validate:"gte=0"`

	// ViewCacheTTL is how long a computed analytics view is reused for the same cache version.
	ViewCacheTTL time.Duration `koanf:"view_cache_ttl" validate:"gte=0"`

	// MaxLimit caps the limit query parameter of analytics views.
	MaxLimit int `koanf:"max_limit" validate:"gte=1"`

	// LeaderboardLimit is the default size of the short tables (race top, segments, regularity).
	LeaderboardLimit int `koanf:"leaderboard_limit" validate:"gte=1,ltefield=MaxLimit"`

	// RankingLimit is the default size of the long tables (progression, climbers, speeds).
	RankingLimit int `koanf:"ranking_limit" validate:"gte=1,ltefield=MaxLimit"`

	// ScanSchedule is a cron expression that re-scans BibsFile; empty disables it.
	ScanSchedule string `koanf:"scan_schedule"`

	// BibsFile lists the bibs to scan, one per line or as ranges.
	BibsFile string `koanf:"bibs_file"`

	// WatchBibsFile re-scans BibsFile whenever it changes on disk.
	WatchBibsFile bool `koanf:"watch_bibs_file"`

	// CORSOrigins lists the origins allowed to read the API.
	CORSOrigins []string `koanf:"cors_origins"`

	// RaceNames maps upstream race codes to display names.
	RaceNames map[string]string `koanf:"race_names"`
}

// StoreConfig selects and configures the runner cache backend.
type StoreConfig struct {
	// Driver is json (flat file) or sqlite.
	Driver string `koanf:"driver" validate:"oneof=json sqlite"`
	Path   string `koanf:"path" validate:"required"`
	// AtomicWrite makes the json driver write a temp file and rename it over the cache.
	AtomicWrite bool `koanf:"atomic_write"`
}

// SourceConfig points at the page-extraction collaborator.
type SourceConfig struct {
	BaseURL  string        `koanf:"base_url" validate:"omitempty,url"`
	Timeout  time.Duration `koanf:"timeout" validate:"gte=0"`
	RetryMax int           `koanf:"retry_max" validate:"gte=0"`
}

// New returns a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":9080",
		Store: StoreConfig{
			Driver: "json",
			Path:   "race_data.json",
		},
		Source: SourceConfig{
			Timeout:  30 * time.Second,
			RetryMax: 2,
		},
		FetchInterval:    time.Second,
		QueueSize:        10_000,
		DedupeSize:       0,
		ViewCacheTTL:     5 * time.Minute,
		MaxLimit:         100,
		LeaderboardLimit: 7,
		RankingLimit:     20,
		CORSOrigins:      []string{"*"},
		RaceNames: map[string]string{
			"MAS": "Mascareignes",
			"GRR": "Diagonale des Fous",
			"TDB": "Trail de Bourbon",
			"MTR": "Métiss Trail",
			"ZEM": "Zembrocal",
		},
	}
}
