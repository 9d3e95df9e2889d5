package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/raidtrack/internal/domain/normalize"
)

func TestHTTPSource(t *testing.T) {
	ctx := context.Background()

	Convey("Given a collaborator serving runner pages", t, func() {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			switch r.URL.Path {
			case "/runners/42":
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{
					"header": {"race_code": "GRR", "name": "Élodie", "state": "Finisher",
					           "rankings": {"GÉNÉRAL": "12"}},
					"checkpoints": [{"point": "Départ", "race_time": "00:00:00"},
					                {"point": "Cilaos", "race_time": "25:10:00", "elevation_gain": "+1200"}]
				}`))
			case "/runners/7":
				_, _ = w.Write([]byte(`{"checkpoints": []}`))
			case "/runners/8":
				_, _ = w.Write([]byte(`<html>`))
			case "/runners/9":
				w.WriteHeader(http.StatusBadRequest)
			case "/runners/500":
				w.WriteHeader(http.StatusInternalServerError)
			default:
				http.NotFound(w, r)
			}
		}))
		Reset(srv.Close)

		src := NewHTTPSource(srv.URL+"/", WithRetryMax(1), WithRetryWait(time.Millisecond, 2*time.Millisecond))

		Convey("A page decodes into the raw header and rows", func() {
			h, rows, err := src.Fetch(ctx, 42)
			So(err, ShouldBeNil)
			So(h.RaceCode, ShouldEqual, "GRR")
			So(h.Name, ShouldEqual, "Élodie")
			So(h.Rankings["GÉNÉRAL"], ShouldEqual, "12")
			So(rows, ShouldHaveLength, 2)
			So(rows[1].ElevationGain, ShouldEqual, "+1200")
		})

		Convey("The fetched page normalizes", func() {
			h, rows, err := src.Fetch(ctx, 42)
			So(err, ShouldBeNil)
			r, err := normalize.New().Normalize(42, h, rows)
			So(err, ShouldBeNil)
			So(r.Infos.BibNumber, ShouldEqual, 42)
			So(r.Infos.TotalElevationGain, ShouldEqual, 1200)
		})

		Convey("An unknown bib is ErrNotFound and not retried", func() {
			_, _, err := src.Fetch(ctx, 1)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			So(calls.Load(), ShouldEqual, 1)
		})

		Convey("A page without header is ErrNoHeader", func() {
			_, _, err := src.Fetch(ctx, 7)
			So(errors.Is(err, normalize.ErrNoHeader), ShouldBeTrue)
		})

		Convey("An undecodable body is ErrUpstream", func() {
			_, _, err := src.Fetch(ctx, 8)
			So(errors.Is(err, ErrUpstream), ShouldBeTrue)
		})

		Convey("A client error is ErrUpstream without retry", func() {
			_, _, err := src.Fetch(ctx, 9)
			So(errors.Is(err, ErrUpstream), ShouldBeTrue)
			So(calls.Load(), ShouldEqual, 1)
		})

		Convey("A server error is retried then reported as ErrUpstream", func() {
			_, _, err := src.Fetch(ctx, 500)
			So(errors.Is(err, ErrUpstream), ShouldBeTrue)
			So(calls.Load(), ShouldEqual, 2)
		})

		Convey("A cancelled context stops the fetch", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, _, err := src.Fetch(cctx, 42)
			So(err, ShouldNotBeNil)
		})
	})
}
