package analytics

import (
	"sort"

	"github.com/okian/raidtrack/internal/domain/model"
)

// Progression is a gain of places between two checkpoints.
type Progression struct {
	RunnerRef
	From     string `json:"from"`
	To       string `json:"to"`
	FromRank int    `json:"from_rank"`
	ToRank   int    `json:"to_rank"`
	Gained   int    `json:"gained"`
	index    int
}

// ProgressionReport holds the global and per-segment "most places gained" tables.
type ProgressionReport struct {
	Global   []Progression `json:"global"`
	Segments []Progression `json:"segments"`
}

// PlacesGained is rank(A) - rank(B): positive when the runner moved up.
func PlacesGained(rankA, rankB int) int {
	return rankA - rankB
}

// lessProgression orders by places gained descending, then bib, then position along the course.
func lessProgression(a, b *Progression) bool {
	if a.Gained != b.Gained {
		return a.Gained > b.Gained
	}
	if a.Bib != b.Bib {
		return a.Bib < b.Bib
	}
	return a.index < b.index
}

// Progressions computes places gained from the first to the last ranked checkpoint
// and over each adjacent pair of ranked checkpoints. Only gains are kept.
func (e *Engine) Progressions(runners []model.Runner, q Query) ProgressionReport {
	var global, segments []Progression

	for _, r := range selectRunners(runners, q.Race) {
		ref := refOf(r)

		first, last := -1, -1
		for i := range r.Checkpoints {
			if r.Checkpoints[i].Rank == nil {
				continue
			}
			if first < 0 {
				first = i
			}
			last = i
		}
		if first >= 0 && last > first {
			a, b := &r.Checkpoints[first], &r.Checkpoints[last]
			if g := PlacesGained(*a.Rank, *b.Rank); g > 0 {
				global = append(global, Progression{
					RunnerRef: ref, From: a.Point, To: b.Point,
					FromRank: *a.Rank, ToRank: *b.Rank, Gained: g, index: first,
				})
			}
		}

		for i := 0; i+1 < len(r.Checkpoints); i++ {
			a, b := &r.Checkpoints[i], &r.Checkpoints[i+1]
			if a.Rank == nil || b.Rank == nil {
				continue
			}
			if g := PlacesGained(*a.Rank, *b.Rank); g > 0 {
				segments = append(segments, Progression{
					RunnerRef: ref, From: a.Point, To: b.Point,
					FromRank: *a.Rank, ToRank: *b.Rank, Gained: g, index: i,
				})
			}
		}
	}

	sort.SliceStable(global, func(i, j int) bool { return lessProgression(&global[i], &global[j]) })
	sort.SliceStable(segments, func(i, j int) bool { return lessProgression(&segments[i], &segments[j]) })

	return ProgressionReport{
		Global:   nonNil(truncate(global, q.Limit)),
		Segments: nonNil(truncate(segments, q.Limit)),
	}
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
