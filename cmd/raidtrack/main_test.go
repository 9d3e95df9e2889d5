package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/raidtrack/internal/adapters/repository"
	"github.com/okian/raidtrack/internal/config"
	"github.com/okian/raidtrack/internal/domain/analytics"
	"github.com/okian/raidtrack/internal/domain/biblist"
	"github.com/okian/raidtrack/internal/domain/model"
	"github.com/okian/raidtrack/pkg/logger"
)

func init() {
	if err := logger.InitWithWriter(nil, "text"); err != nil {
		panic(err)
	}
}

func seededConfig(t *testing.T) *config.Config {
	path := filepath.Join(t.TempDir(), "race_data.json")
	store := repository.NewJSONStore(repository.WithPath(path))
	ctx := context.Background()
	for bib, cat := range map[int]string{1: "SEH", 2: "SEF"} {
		rank := bib
		r := model.Runner{
			Infos: model.Info{
				RaceName: "Diagonale des Fous", BibNumber: bib, Name: "R", Category: cat,
				State: model.StateFinisher, OverallRank: "1", FinishTime: "24h00",
			},
			Checkpoints: []model.Checkpoint{
				{Point: "Départ", Kilometer: 0, RaceTime: "00:00:00", Rank: &rank},
				{Point: "Arrivée", Kilometer: 30, RaceTime: "24:00:00", Rank: &rank},
			},
		}
		if err := store.Put(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	_ = store.Close()

	cfg := config.New(ctx)
	cfg.Store.Path = path
	return cfg
}

func TestCollectBibs(t *testing.T) {
	convey.Convey("Given scan arguments", t, func() {
		convey.Convey("Positional bibs, a range and a file are merged", func() {
			file := filepath.Join(t.TempDir(), "bibs.txt")
			convey.So(os.WriteFile(file, []byte("10\n"), 0o600), convey.ShouldBeNil)
			bibs, err := collectBibs([]string{"1", "2"}, 5, 6, file)
			convey.So(err, convey.ShouldBeNil)
			convey.So(bibs, convey.ShouldResemble, []int{1, 2, 5, 6, 10})
		})

		convey.Convey("Invalid bibs are refused", func() {
			_, err := collectBibs([]string{"x"}, 0, 0, "")
			convey.So(errors.Is(err, biblist.ErrInvalidEntry), convey.ShouldBeTrue)
			_, err = collectBibs([]string{"-3"}, 0, 0, "")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("An inverted range is refused", func() {
			_, err := collectBibs(nil, 9, 3, "")
			convey.So(errors.Is(err, biblist.ErrRange), convey.ShouldBeTrue)
		})

		convey.Convey("Nothing to scan is an error", func() {
			_, err := collectBibs(nil, 0, 0, "")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestReport(t *testing.T) {
	convey.Convey("Given a cache with two finishers", t, func() {
		cfg := seededConfig(t)
		ctx := context.Background()

		convey.Convey("The leaderboards view is printed as JSON", func() {
			var out bytes.Buffer
			convey.So(report(ctx, cfg, "leaderboards", analytics.Query{}, &out), convey.ShouldBeNil)
			var boards []analytics.RaceLeaderboard
			convey.So(json.Unmarshal(out.Bytes(), &boards), convey.ShouldBeNil)
			convey.So(boards, convey.ShouldHaveLength, 1)
			convey.So(boards[0].Men, convey.ShouldHaveLength, 1)
			convey.So(boards[0].Women, convey.ShouldHaveLength, 1)
		})

		convey.Convey("A limit above the maximum is refused", func() {
			var out bytes.Buffer
			err := report(ctx, cfg, "leaderboards", analytics.Query{Limit: cfg.MaxLimit + 1}, &out)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(out.Len(), convey.ShouldEqual, 0)
		})
	})
}

func TestHTTPServer(t *testing.T) {
	convey.Convey("Given the HTTP server of a started service", t, func() {
		cfg := seededConfig(t)
		ctx := context.Background()
		svc, err := buildService(ctx, cfg, buildOptions{})
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		srv := newHTTPServer(cfg, svc, logger.Nop())
		convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)

		convey.Convey("Cached runners are served", func() {
			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runners/2", nil))
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Scans are unavailable without a source", func() {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/scans", bytes.NewBufferString(`{"bibs":[3]}`))
			srv.Handler.ServeHTTP(w, req)
			convey.So(w.Code, convey.ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestLoadConfigFromEnv(t *testing.T) {
	convey.Convey("Given RAID_ environment variables", t, func() {
		t.Setenv("RAID_ADDR", ":8088")
		t.Setenv("RAID_QUEUE_SIZE", "500")
		t.Setenv("RAID_STORE__DRIVER", "sqlite")

		convey.Convey("Then the configuration picks them up", func() {
			loaded, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(loaded.Addr, convey.ShouldEqual, ":8088")
			convey.So(loaded.QueueSize, convey.ShouldEqual, 500)
			convey.So(loaded.Store.Driver, convey.ShouldEqual, repository.DriverSQLite)
		})
	})
}
