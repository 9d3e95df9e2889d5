package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	model "github.com/okian/raidtrack/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func intp(v int) *int { return &v }

func TestParseDuration(t *testing.T) {
	convey.Convey("Given race time strings", t, func() {
		convey.Convey("When hours exceed a day", func() {
			secs, ok := model.ParseDuration("25:10:00")

			convey.Convey("Then they accumulate instead of wrapping", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(secs, convey.ShouldEqual, 25*3600+10*60)
			})
		})

		convey.Convey("When the value is short or malformed", func() {
			hm, okHM := model.ParseDuration("1:30")
			_, okNA := model.ParseDuration(model.Sentinel)
			_, okBad := model.ParseDuration("01:75:00")

			convey.Convey("Then H:MM parses and garbage fails", func() {
				convey.So(okHM, convey.ShouldBeTrue)
				convey.So(hm, convey.ShouldEqual, 5400)
				convey.So(okNA, convey.ShouldBeFalse)
				convey.So(okBad, convey.ShouldBeFalse)
			})
		})
	})
}

func TestNumberExtraction(t *testing.T) {
	convey.Convey("Given free text numbers", t, func() {
		n, ok := model.FirstInt("(+12)")
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(n, convey.ShouldEqual, 12)

		n, ok = model.FirstInt("-7 places")
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(n, convey.ShouldEqual, -7)

		_, ok = model.FirstInt("abc")
		convey.So(ok, convey.ShouldBeFalse)

		f, ok := model.FirstFloat("12,5 km")
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(f, convey.ShouldEqual, 12.5)

		s, ok := model.ParseSpeed("7.52 km/h")
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(s, convey.ShouldEqual, 7.52)

		_, ok = model.ParseSpeed("N/A")
		convey.So(ok, convey.ShouldBeFalse)
	})
}

func TestStateDecoding(t *testing.T) {
	convey.Convey("Given persisted state labels", t, func() {
		convey.So(model.ParseState("finisher"), convey.ShouldEqual, model.StateFinisher)
		convey.So(model.ParseState("Not-Started"), convey.ShouldEqual, model.StateNotStarted)
		convey.So(model.ParseState("En course"), convey.ShouldEqual, model.StateRacing)
		convey.So(model.ParseState("Non partant"), convey.ShouldEqual, model.StateNotStarted)
		convey.So(model.ParseState("Abandon"), convey.ShouldEqual, model.StateAbandoned)
		convey.So(model.ParseState("???"), convey.ShouldEqual, model.StateUnknown)
	})
}

func TestCheckpointDecoding(t *testing.T) {
	convey.Convey("Given a legacy checkpoint with string ranks and extra keys", t, func() {
		raw := `{"point":"Cilaos","kilometer":66.5,"race_time":"14:02:11","rank":"123","rank_evolution":"(-4)","extra":true}`
		var cp model.Checkpoint
		err := json.Unmarshal([]byte(raw), &cp)

		convey.Convey("Then ranks are coerced and the rest is kept", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cp.Point, convey.ShouldEqual, "Cilaos")
			convey.So(cp.Kilometer, convey.ShouldEqual, 66.5)
			convey.So(*cp.Rank, convey.ShouldEqual, 123)
			convey.So(*cp.RankEvolution, convey.ShouldEqual, -4)
		})
	})

	convey.Convey("Given a checkpoint with missing and null ranks", t, func() {
		var cp model.Checkpoint
		err := json.Unmarshal([]byte(`{"point":"Start","rank":null}`), &cp)

		convey.Convey("Then ranks are absent", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cp.Rank, convey.ShouldBeNil)
			convey.So(cp.RankEvolution, convey.ShouldBeNil)
		})
	})
}

func TestRunnerDerive(t *testing.T) {
	convey.Convey("Given a runner with checkpoints", t, func() {
		r := model.Runner{
			Infos: model.Info{RaceName: "Trail de Bourbon", BibNumber: 12, State: model.StateRacing, LastCheckpoint: "stale"},
			Checkpoints: []model.Checkpoint{
				{Point: "Start", ElevationGain: 0, ElevationLoss: 0, Rank: intp(10)},
				{Point: "Piton", ElevationGain: 850, ElevationLoss: 120},
				{Point: "Cilaos", ElevationGain: 300, ElevationLoss: 900},
			},
		}
		r.Derive()

		convey.Convey("Then totals and last checkpoint come from the checkpoints", func() {
			convey.So(r.Infos.TotalElevationGain, convey.ShouldEqual, 1150)
			convey.So(r.Infos.TotalElevationLoss, convey.ShouldEqual, 1020)
			convey.So(r.Infos.LastCheckpoint, convey.ShouldEqual, "Cilaos")
		})

		convey.Convey("Then a clone does not share rank pointers", func() {
			c := r.Clone()
			*c.Checkpoints[0].Rank = 99
			convey.So(*r.Checkpoints[0].Rank, convey.ShouldEqual, 10)
		})

		convey.Convey("Then the record validates", func() {
			convey.So(r.Validate(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given an invalid runner", t, func() {
		r := model.Runner{Infos: model.Info{RaceName: "X", BibNumber: 0, State: model.StateRacing}}
		err := r.Validate()

		convey.Convey("Then validation fails", func() {
			convey.So(errors.Is(err, model.ErrInvalidRunner), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given categories", t, func() {
		f := model.Runner{Infos: model.Info{Category: "SEF"}}
		m := model.Runner{Infos: model.Info{Category: "V1H"}}
		convey.So(f.IsFemale(), convey.ShouldBeTrue)
		convey.So(m.IsFemale(), convey.ShouldBeFalse)
	})
}
