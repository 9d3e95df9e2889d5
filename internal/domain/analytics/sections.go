package analytics

import (
	"sort"
	"strings"

	"github.com/okian/raidtrack/internal/domain/model"
)

// Terrain tendencies of a section, from its net elevation over its length.
const (
	TendencyUp   = "up"
	TendencyDown = "down"
	TendencyFlat = "flat"
)

// SectionInfo describes a section of the course.
type SectionInfo struct {
	Section       string  `json:"section"`
	From          string  `json:"from"`
	To            string  `json:"to"`
	DistanceKm    float64 `json:"distance_km"`
	ElevationGain int     `json:"elevation_gain"`
	ElevationLoss int     `json:"elevation_loss"`
	Runners       int     `json:"runners"`
}

// Sections lists the sections seen in the snapshot in course order. Distance and
// elevation come from the lowest bib covering the section; elevation is the delta
// reported at the arrival checkpoint.
func (e *Engine) Sections(runners []model.Runner, q Query) []SectionInfo {
	infos := make(map[string]*SectionInfo)
	order := make(map[string]*sectionOrder)
	for _, r := range selectRunners(runners, q.Race) {
		for _, l := range legsOf(r) {
			noteSection(order, l)
			key := l.key()
			if info, ok := infos[key]; ok {
				info.Runners++
				continue
			}
			d, _ := l.distance()
			infos[key] = &SectionInfo{
				Section:       key,
				From:          l.from.Point,
				To:            l.to.Point,
				DistanceKm:    round2(d),
				ElevationGain: l.to.ElevationGain,
				ElevationLoss: l.to.ElevationLoss,
				Runners:       1,
			}
		}
	}
	out := make([]SectionInfo, 0, len(infos))
	for _, s := range courseOrder(order) {
		out = append(out, *infos[s.key])
	}
	return truncate(out, q.Limit)
}

// SectionResult is one runner's performance over the requested section.
type SectionResult struct {
	RunnerRef
	Seconds        int     `json:"seconds"`
	Duration       string  `json:"duration"`
	SpeedKmh       float64 `json:"speed_kmh"`
	EffortSpeedKmh float64 `json:"effort_speed_kmh"`
	Progression    *int    `json:"progression"`
	Tendency       string  `json:"tendency"`
	speed          float64
	effort         float64
}

// SectionPerformance ranks the runners of one section four ways.
type SectionPerformance struct {
	Section       string          `json:"section"`
	ByTime        []SectionResult `json:"by_time"`
	BySpeed       []SectionResult `json:"by_speed"`
	ByEffort      []SectionResult `json:"by_effort"`
	ByProgression []SectionResult `json:"by_progression"`
}

func lessByTime(a, b *SectionResult) bool {
	if a.Seconds != b.Seconds {
		return a.Seconds < b.Seconds
	}
	return a.Bib < b.Bib
}

func lessBySpeed(a, b *SectionResult) bool {
	if a.speed != b.speed {
		return a.speed > b.speed
	}
	return a.Bib < b.Bib
}

func lessByEffort(a, b *SectionResult) bool {
	if a.effort != b.effort {
		return a.effort > b.effort
	}
	return a.Bib < b.Bib
}

func lessByProgression(a, b *SectionResult) bool {
	if *a.Progression != *b.Progression {
		return *a.Progression > *b.Progression
	}
	return a.Bib < b.Bib
}

// SectionPerformance ranks the runners who covered q.Section by time (ascending),
// speed, effort speed and places gained (descending). Section speed and effort
// speed are computed from distance and elapsed time; the tendency is the terrain
// profile of the section and does not depend on how fast the runner went.
func (e *Engine) SectionPerformance(runners []model.Runner, q Query) SectionPerformance {
	section := strings.TrimSpace(q.Section)
	var results []SectionResult

	for _, r := range selectRunners(runners, q.Race) {
		for _, l := range legsOf(r) {
			if l.key() != section {
				continue
			}
			res := SectionResult{
				RunnerRef: refOf(r),
				Seconds:   l.seconds,
				Duration:  FormatSeconds(l.seconds),
				Tendency:  TendencyFlat,
			}
			if d, ok := l.distance(); ok {
				res.speed = d / l.hours()
				res.SpeedKmh = round2(res.speed)
				if eff, ok := EffortSpeed(d, float64(l.to.ElevationGain), float64(l.to.ElevationLoss), l.hours()); ok {
					res.effort = eff
					res.EffortSpeedKmh = round2(eff)
				}
				res.Tendency = tendency(d, l.to.ElevationGain, l.to.ElevationLoss)
			}
			if l.from.Rank != nil && l.to.Rank != nil {
				g := PlacesGained(*l.from.Rank, *l.to.Rank)
				res.Progression = &g
			}
			results = append(results, res)
			break
		}
	}

	perf := SectionPerformance{Section: section}
	perf.ByTime = rankResults(results, lessByTime, q.Limit, func(*SectionResult) bool { return true })
	perf.BySpeed = rankResults(results, lessBySpeed, q.Limit, func(r *SectionResult) bool { return r.speed > 0 })
	perf.ByEffort = rankResults(results, lessByEffort, q.Limit, func(r *SectionResult) bool { return r.effort > 0 })
	perf.ByProgression = rankResults(results, lessByProgression, q.Limit, func(r *SectionResult) bool { return r.Progression != nil })
	return perf
}

// tendency classifies a section by (D+ - D-) per meter of distance. Sections
// without a usable distance read flat.
func tendency(distanceKm float64, gain, loss int) string {
	if distanceKm <= 0 {
		return TendencyFlat
	}
	grade := float64(gain-loss) / (distanceKm * 1000)
	switch {
	case grade > tendencyGrade:
		return TendencyUp
	case grade < -tendencyGrade:
		return TendencyDown
	default:
		return TendencyFlat
	}
}

func rankResults(results []SectionResult, less func(a, b *SectionResult) bool, limit int, keep func(*SectionResult) bool) []SectionResult {
	out := make([]SectionResult, 0, len(results))
	for i := range results {
		if keep(&results[i]) {
			out = append(out, results[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return truncate(out, limit)
}
