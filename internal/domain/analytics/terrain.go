package analytics

import (
	"sort"

	"github.com/okian/raidtrack/internal/domain/model"
)

// Effort speed weights: one kilometer of climbing counts as ten flat kilometers,
// one kilometer of descent as two. Kept fixed so results stay comparable.
const (
	ClimbWeight   = 10.0
	DescentWeight = 2.0
)

// Ratio thresholds for the slope indicator of a terrain specialist.
const (
	steepRatio    = 0.15
	moderateRatio = 0.10
)

// EffortSpeed is the terrain-normalized speed in km/h:
// (distance + gain_km*10 + loss_km*2) / hours. It is undefined for a non-positive duration.
func EffortSpeed(distanceKm, gainM, lossM, hours float64) (float64, bool) {
	if hours <= 0 {
		return 0, false
	}
	return (distanceKm + gainM/1000*ClimbWeight + lossM/1000*DescentWeight) / hours, true
}

// TerrainSpecialist aggregates a runner's significant climbs or descents.
type TerrainSpecialist struct {
	RunnerRef
	// MetersPerHour is total qualifying elevation over total qualifying hours.
	MetersPerHour float64 `json:"meters_per_hour"`
	Elevation     int     `json:"elevation"`
	Hours         float64 `json:"hours"`
	DistanceKm    float64 `json:"distance_km"`
	// Ratio is elevation over horizontal distance, both in meters.
	Ratio     float64 `json:"ratio"`
	Indicator string  `json:"indicator"`
	Sections  int     `json:"sections"`
	score     float64
}

// lessTerrain orders by vertical speed descending, then bib.
func lessTerrain(a, b *TerrainSpecialist) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.Bib < b.Bib
}

func slopeIndicator(ratio float64) string {
	switch {
	case ratio > steepRatio:
		return "steep"
	case ratio > moderateRatio:
		return "moderate"
	default:
		return "rolling"
	}
}

// Climbers ranks runners by vertical speed over sections whose arrival checkpoint
// reports more elevation gain than the climb threshold.
func (e *Engine) Climbers(runners []model.Runner, q Query) []TerrainSpecialist {
	return e.terrain(runners, q, e.climbThreshold, func(cp *model.Checkpoint) int { return cp.ElevationGain })
}

// Descenders is the symmetric view over elevation loss.
func (e *Engine) Descenders(runners []model.Runner, q Query) []TerrainSpecialist {
	return e.terrain(runners, q, e.descentThreshold, func(cp *model.Checkpoint) int { return cp.ElevationLoss })
}

// terrain qualifies each leg on the delta reported at its arriving checkpoint,
// the elevation covered since the previous checkpoint. A delta reported on the
// first checkpoint closes no leg and is never counted.
func (e *Engine) terrain(runners []model.Runner, q Query, threshold int, elevation func(*model.Checkpoint) int) []TerrainSpecialist {
	out := make([]TerrainSpecialist, 0)
	for _, r := range selectRunners(runners, q.Race) {
		var (
			total    int
			hours    float64
			distance float64
			sections int
		)
		for _, l := range legsOf(r) {
			elev := elevation(l.to)
			if elev <= threshold {
				continue
			}
			total += elev
			hours += l.hours()
			if d, ok := l.distance(); ok {
				distance += d
			}
			sections++
		}
		if hours <= 0 {
			continue
		}
		ts := TerrainSpecialist{
			RunnerRef:  refOf(r),
			Elevation:  total,
			Hours:      round2(hours),
			DistanceKm: round2(distance),
			Sections:   sections,
			score:      float64(total) / hours,
		}
		ts.MetersPerHour = round2(ts.score)
		if distance > 0 {
			ratio := float64(total) / (distance * 1000)
			ts.Ratio = round2(ratio)
			ts.Indicator = slopeIndicator(ratio)
		}
		out = append(out, ts)
	}
	sort.SliceStable(out, func(i, j int) bool { return lessTerrain(&out[i], &out[j]) })
	return truncate(out, q.Limit)
}
