// Command raidtrack caches ultra-trail runner pages and serves analytics over them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/raidtrack/internal/config"
	"github.com/okian/raidtrack/pkg/logger"
)

var (
	configFile string
	logLevel   string
	cfg        *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML configuration file (overrides RAID_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.AddCommand(serveCmd, scanCmd, reportCmd)
}

var rootCmd = &cobra.Command{
	Use:           "raidtrack",
	Short:         "Track ultra-trail runners and rank them",
	Long:          `raidtrack fetches runner pages from the live-results collaborator, keeps them in a local cache and computes leaderboards and segment analytics over it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setup(cmd.Context())
	},
}

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// setup loads the configuration and initializes logging. Logs go to stderr so
// that command output on stdout stays machine readable.
func setup(ctx context.Context) error {
	if configFile != "" {
		if err := os.Setenv("RAID_CONFIG", configFile); err != nil {
			return err
		}
	}
	loaded, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		loaded.LogLevel = logLevel
	}
	cfg = loaded

	if err := logger.InitWithWriter(os.Stderr, cfg.LogFormat); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}
