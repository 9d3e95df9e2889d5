package normalize_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/okian/raidtrack/internal/domain/model"
	"github.com/okian/raidtrack/internal/domain/normalize"
	. "github.com/smartystreets/goconvey/convey"
)

func finisherPage() (*normalize.RawHeader, []normalize.RawCheckpoint) {
	h := &normalize.RawHeader{
		RaceCode:     "GRR",
		Name:         "  Jean   Dupont ",
		Category:     "V1H",
		State:        "Finisher",
		FinishTime:   "38:12:45",
		AverageSpeed: "4,31 km/h",
		Rankings: map[string]string{
			"GÉNÉRAL":   "154",
			"SEXE":      "148",
			"CATÉGORIE": "37",
		},
	}
	rows := []normalize.RawCheckpoint{
		{Point: "Point de passage", Kilometer: "Km", RaceTime: "Temps"},
		{Point: "Départ", Kilometer: "0", PassageTime: "22:00:00", RaceTime: "00:00:00", Rank: "1200"},
		{Point: "Domaine Vidot", Kilometer: "14,2", PassageTime: "0:31:10", RaceTime: "2:31:10",
			Speed: "5.63 km/h", EffortSpeed: "9.1 km/h", ElevationGain: "+1050 m", ElevationLoss: "-120", Rank: "850", RankEvolution: "(+350)"},
		{Point: "N/A", Kilometer: "N/A", Speed: "N/A"},
		{Point: "Cilaos", Kilometer: "66.5", RaceTime: "14:02:11", Speed: "N/A", ElevationGain: "abc", Rank: "N/A", RankEvolution: "-"},
		{Point: "Notre Dame de la Paix", PassageTime: "N/A", RaceTime: "N/A", Speed: "N/A", EffortSpeed: "N/A",
			ElevationGain: "N/A", ElevationLoss: "N/A", Rank: "N/A", RankEvolution: "N/A", Kilometer: "N/A"},
	}
	return h, rows
}

func TestNormalize(t *testing.T) {
	Convey("Given a finisher page with noisy rows", t, func() {
		n := normalize.New()
		h, rows := finisherPage()

		r, err := n.Normalize(2042, h, rows)

		Convey("Then the header is normalized", func() {
			So(err, ShouldBeNil)
			So(r.Infos.BibNumber, ShouldEqual, 2042)
			So(r.Infos.RaceName, ShouldEqual, "Diagonale des Fous")
			So(r.Infos.Name, ShouldEqual, "Jean Dupont")
			So(r.Infos.State, ShouldEqual, model.StateFinisher)
			So(r.Infos.FinishTime, ShouldEqual, "38h12")
			So(r.Infos.AverageSpeed, ShouldEqual, "4.31 km/h")
			So(r.Infos.OverallRank, ShouldEqual, "154")
			So(r.Infos.GenderRank, ShouldEqual, "148")
			So(r.Infos.CategoryRank, ShouldEqual, "37")
		})

		Convey("Then header rows and empty rows are dropped", func() {
			So(len(r.Checkpoints), ShouldEqual, 3)
			So(r.Checkpoints[0].Point, ShouldEqual, "Départ")
			So(r.Checkpoints[2].Point, ShouldEqual, "Cilaos")
		})

		Convey("Then numeric fields are coerced with their own fallback", func() {
			vidot := r.Checkpoints[1]
			So(vidot.Kilometer, ShouldEqual, 14.2)
			So(vidot.RaceTime, ShouldEqual, "02:31:10")
			So(vidot.PassageTime, ShouldEqual, "00:31:10")
			So(vidot.Speed, ShouldEqual, "5.63 km/h")
			So(vidot.ElevationGain, ShouldEqual, 1050)
			So(vidot.ElevationLoss, ShouldEqual, 120)
			So(*vidot.Rank, ShouldEqual, 850)
			So(*vidot.RankEvolution, ShouldEqual, 350)

			cilaos := r.Checkpoints[2]
			So(cilaos.Speed, ShouldEqual, model.Sentinel)
			So(cilaos.EffortSpeed, ShouldEqual, model.Sentinel)
			So(cilaos.PassageTime, ShouldEqual, model.Sentinel)
			So(cilaos.ElevationGain, ShouldEqual, 0)
			So(cilaos.Rank, ShouldBeNil)
			So(cilaos.RankEvolution, ShouldBeNil)
		})

		Convey("Then derived fields come from the kept checkpoints", func() {
			So(r.Infos.LastCheckpoint, ShouldEqual, "Cilaos")
			So(r.Infos.TotalElevationGain, ShouldEqual, 1050)
			So(r.Infos.TotalElevationLoss, ShouldEqual, 120)
		})

		Convey("Then normalizing again yields byte-identical output", func() {
			h2, rows2 := finisherPage()
			again, err := n.Normalize(2042, h2, rows2)
			So(err, ShouldBeNil)

			a, _ := json.Marshal(r)
			b, _ := json.Marshal(again)
			So(string(b), ShouldEqual, string(a))
		})

		Convey("Then the record passes validation", func() {
			So(r.Validate(), ShouldBeNil)
		})
	})

	Convey("Given a runner that did not start", t, func() {
		n := normalize.New()
		h := &normalize.RawHeader{RaceCode: "MAS", Name: "Marie", Category: "SEF", State: "non partant", OverallRank: "12"}
		rows := []normalize.RawCheckpoint{{Point: "Départ", RaceTime: "00:00:00"}}

		r, err := n.Normalize(7, h, rows)

		Convey("Then the record short-circuits to empty fields", func() {
			So(err, ShouldBeNil)
			So(r.Infos.State, ShouldEqual, model.StateNotStarted)
			So(r.Infos.RaceName, ShouldEqual, "Mascareignes")
			So(r.Infos.OverallRank, ShouldEqual, model.NotApplicable)
			So(r.Infos.FinishTime, ShouldEqual, model.NotApplicable)
			So(r.Infos.AverageSpeed, ShouldEqual, model.NotApplicable)
			So(r.Infos.LastCheckpoint, ShouldEqual, model.NotApplicable)
			So(r.Infos.TotalElevationGain, ShouldEqual, 0)
			So(r.Checkpoints, ShouldBeEmpty)
		})
	})

	Convey("Given a runner still racing with an unknown race code", t, func() {
		n := normalize.New(normalize.WithRaceNames(map[string]string{"zz": "Course Z"}))
		h := &normalize.RawHeader{RaceCode: "QQQ", State: "Dernier pointage 12:00", FinishTime: "10:00:00"}

		r, err := n.Normalize(15, h, nil)

		Convey("Then placeholders and the racing marker are used", func() {
			So(err, ShouldBeNil)
			So(r.Infos.RaceName, ShouldEqual, model.DefaultRaceName)
			So(r.Infos.Name, ShouldEqual, model.DefaultName)
			So(r.Infos.Category, ShouldEqual, model.DefaultCategory)
			So(r.Infos.State, ShouldEqual, model.StateRacing)
			So(r.Infos.FinishTime, ShouldEqual, model.RacingMarker)
			So(r.Infos.AverageSpeed, ShouldEqual, model.Sentinel)
			So(r.Infos.LastCheckpoint, ShouldEqual, "")
		})
	})

	Convey("Given an abandon with an unparsable time", t, func() {
		r, err := normalize.New().Normalize(3, &normalize.RawHeader{State: "ABANDON", FinishTime: "hors délai"}, nil)

		Convey("Then the raw text is kept", func() {
			So(err, ShouldBeNil)
			So(r.Infos.State, ShouldEqual, model.StateAbandoned)
			So(r.Infos.FinishTime, ShouldEqual, "hors délai")
		})
	})

	Convey("Given a total extraction failure", t, func() {
		n := normalize.New()
		_, errNil := n.Normalize(10, nil, nil)
		_, errEmpty := n.Normalize(10, &normalize.RawHeader{Name: "N/A"}, nil)
		_, errBib := n.Normalize(0, &normalize.RawHeader{Name: "x"}, nil)

		Convey("Then normalization fails with a sentinel", func() {
			So(errors.Is(errNil, normalize.ErrNoHeader), ShouldBeTrue)
			So(errors.Is(errEmpty, normalize.ErrNoHeader), ShouldBeTrue)
			So(errors.Is(errBib, normalize.ErrInvalidBib), ShouldBeTrue)
		})
	})
}

func TestClassifyState(t *testing.T) {
	Convey("Given the default ordered rules", t, func() {
		rules := normalize.DefaultStateRules

		Convey("Then markers match case-insensitively by substring", func() {
			So(normalize.ClassifyState("Non Partant", rules), ShouldEqual, model.StateNotStarted)
			So(normalize.ClassifyState("abandon au km 80", rules), ShouldEqual, model.StateAbandoned)
			So(normalize.ClassifyState("FINISHER", rules), ShouldEqual, model.StateFinisher)
			So(normalize.ClassifyState("En course", rules), ShouldEqual, model.StateRacing)
			So(normalize.ClassifyState("  ", rules), ShouldEqual, model.StateUnknown)
		})

		Convey("Then earlier rules win over later ones", func() {
			So(normalize.ClassifyState("FINISHER ABANDON", rules), ShouldEqual, model.StateAbandoned)
			So(normalize.ClassifyState("NON PARTANT / ABANDON", rules), ShouldEqual, model.StateNotStarted)
		})
	})
}
