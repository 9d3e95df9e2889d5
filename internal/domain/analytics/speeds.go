package analytics

import (
	"sort"

	"github.com/okian/raidtrack/internal/domain/model"
)

// Regularity is a runner's spread of reported speeds.
type Regularity struct {
	RunnerRef
	MinSpeed  float64 `json:"min_speed_kmh"`
	MaxSpeed  float64 `json:"max_speed_kmh"`
	Variation float64 `json:"variation_kmh"`
	Samples   int     `json:"samples"`
	score     float64
}

// lessRegularity orders by variation ascending, then bib.
func lessRegularity(a, b *Regularity) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.Bib < b.Bib
}

// MostRegular ranks runners by max-min of their parsable checkpoint speeds.
// Runners with fewer than two samples are left out.
func (e *Engine) MostRegular(runners []model.Runner, q Query) []Regularity {
	out := make([]Regularity, 0)
	for _, r := range selectRunners(runners, q.Race) {
		speeds := reportedSpeeds(r, (*model.Checkpoint).SpeedKmh)
		if len(speeds) < 2 {
			continue
		}
		lo, hi := speeds[0], speeds[0]
		for _, v := range speeds[1:] {
			lo = min(lo, v)
			hi = max(hi, v)
		}
		out = append(out, Regularity{
			RunnerRef: refOf(r),
			MinSpeed:  lo,
			MaxSpeed:  hi,
			Variation: round2(hi - lo),
			Samples:   len(speeds),
			score:     hi - lo,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return lessRegularity(&out[i], &out[j]) })
	return truncate(out, q.Limit)
}

func reportedSpeeds(r *model.Runner, read func(*model.Checkpoint) (float64, bool)) []float64 {
	var out []float64
	for i := range r.Checkpoints {
		if v, ok := read(&r.Checkpoints[i]); ok {
			out = append(out, v)
		}
	}
	return out
}

// SpeedRanking is a runner's mean of a reported speed.
type SpeedRanking struct {
	RunnerRef
	SpeedKmh float64 `json:"speed_kmh"`
	Samples  int     `json:"samples"`
	score    float64
}

// lessSpeed orders by speed descending, then bib.
func lessSpeed(a, b *SpeedRanking) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.Bib < b.Bib
}

// AverageSpeeds ranks runners by the mean of the speeds reported at their checkpoints.
// A checkpoint counts only when both its speed and effort speed parse.
func (e *Engine) AverageSpeeds(runners []model.Runner, q Query) []SpeedRanking {
	return speedRanking(runners, q, func(speed, _ float64) float64 { return speed })
}

// AverageEffortSpeeds ranks runners by the mean of the effort speeds reported at their
// checkpoints, over the same checkpoints as AverageSpeeds.
func (e *Engine) AverageEffortSpeeds(runners []model.Runner, q Query) []SpeedRanking {
	return speedRanking(runners, q, func(_, effort float64) float64 { return effort })
}

func speedRanking(runners []model.Runner, q Query, pick func(speed, effort float64) float64) []SpeedRanking {
	out := make([]SpeedRanking, 0)
	for _, r := range selectRunners(runners, q.Race) {
		var speeds []float64
		for i := range r.Checkpoints {
			cp := &r.Checkpoints[i]
			v, ok := cp.SpeedKmh()
			eff, effOK := cp.EffortSpeedKmh()
			if ok && effOK {
				speeds = append(speeds, pick(v, eff))
			}
		}
		if len(speeds) == 0 {
			continue
		}
		m := mean(speeds)
		out = append(out, SpeedRanking{RunnerRef: refOf(r), SpeedKmh: round2(m), Samples: len(speeds), score: m})
	}
	sort.SliceStable(out, func(i, j int) bool { return lessSpeed(&out[i], &out[j]) })
	return truncate(out, q.Limit)
}

// SectionSpeed is a runner's computed speed over one section.
type SectionSpeed struct {
	RunnerRef
	Section    string  `json:"section"`
	DistanceKm float64 `json:"distance_km"`
	Duration   string  `json:"duration"`
	SpeedKmh   float64 `json:"speed_kmh"`
	score      float64
	index      int
}

// lessSectionSpeed orders by speed descending, then bib, then position along the course.
func lessSectionSpeed(a, b *SectionSpeed) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.Bib != b.Bib {
		return a.Bib < b.Bib
	}
	return a.index < b.index
}

// SectionSpeeds ranks every (runner, section) pair by distance over elapsed time.
func (e *Engine) SectionSpeeds(runners []model.Runner, q Query) []SectionSpeed {
	out := make([]SectionSpeed, 0)
	for _, r := range selectRunners(runners, q.Race) {
		for _, l := range legsOf(r) {
			d, ok := l.distance()
			if !ok {
				continue
			}
			v := d / l.hours()
			out = append(out, SectionSpeed{
				RunnerRef:  refOf(r),
				Section:    l.key(),
				DistanceKm: round2(d),
				Duration:   FormatSeconds(l.seconds),
				SpeedKmh:   round2(v),
				score:      v,
				index:      l.index,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return lessSectionSpeed(&out[i], &out[j]) })
	return truncate(out, q.Limit)
}
