package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/raidtrack/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"RAID_CONFIG",
	"RAID_ENV_FILE",
	"RAID_ADDR",
	"RAID_QUEUE_SIZE",
	"RAID_FETCH_INTERVAL",
	"RAID_STORE__DRIVER",
	"RAID_STORE__PATH",
	"RAID_CORS_ORIGINS",
	"RAID_LOG_LEVEL",
	"RAID_LEADERBOARD_LIMIT",
	"RAID_SOURCE__BASE_URL",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Store.Driver, convey.ShouldEqual, "json")
				convey.So(cfg.Store.Path, convey.ShouldEqual, "race_data.json")
				convey.So(cfg.FetchInterval, convey.ShouldEqual, time.Second)
				convey.So(cfg.LeaderboardLimit, convey.ShouldEqual, 7)
				convey.So(cfg.RankingLimit, convey.ShouldEqual, 20)
				convey.So(cfg.RaceNames["GRR"], convey.ShouldEqual, "Diagonale des Fous")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("RAID_ADDR", ":8080")
			_ = os.Setenv("RAID_QUEUE_SIZE", "500")
			_ = os.Setenv("RAID_FETCH_INTERVAL", "250ms")
			_ = os.Setenv("RAID_STORE__DRIVER", "sqlite")
			_ = os.Setenv("RAID_STORE__PATH", "runners.db")
			_ = os.Setenv("RAID_CORS_ORIGINS", "http://a.test, http://b.test")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.FetchInterval, convey.ShouldEqual, 250*time.Millisecond)
				convey.So(cfg.Store.Driver, convey.ShouldEqual, "sqlite")
				convey.So(cfg.Store.Path, convey.ShouldEqual, "runners.db")
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"http://a.test", "http://b.test"})
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := writeFile(t, "raid.yaml", `
addr: ":9090"
log_format: json
store:
  atomic_write: true
source:
  base_url: "http://extractor.local"
  retry_max: 4
race_names:
  xyz: "Course Test"
`)
			_ = os.Setenv("RAID_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should layer the file over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.Store.AtomicWrite, convey.ShouldBeTrue)
				convey.So(cfg.Store.Driver, convey.ShouldEqual, "json")
				convey.So(cfg.Source.BaseURL, convey.ShouldEqual, "http://extractor.local")
				convey.So(cfg.Source.RetryMax, convey.ShouldEqual, 4)
				convey.So(cfg.RaceNames["XYZ"], convey.ShouldEqual, "Course Test")
				convey.So(cfg.RaceNames["MAS"], convey.ShouldEqual, "Mascareignes")
			})
		})

		convey.Convey("When a .env file is provided", func() {
			path := writeFile(t, "test.env", "RAID_ADDR=:7070\n")
			_ = os.Setenv("RAID_ENV_FILE", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then its values are applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
			})
		})

		convey.Convey("When the YAML file does not exist", func() {
			_ = os.Setenv("RAID_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

			_, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When values fail validation", func() {
			_ = os.Setenv("RAID_STORE__DRIVER", "postgres")
			_ = os.Setenv("RAID_LEADERBOARD_LIMIT", "500")

			_, err := config.Load(ctx)

			convey.Convey("Then an invalid config error names the fields", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "Driver")
				convey.So(err.Error(), convey.ShouldContainSubstring, "LeaderboardLimit")
			})
		})
	})
}
