// Package analytics derives ranked views from a snapshot of runner records.
//
// Every view is a pure function of its input: records are never mutated and
// a value that cannot be parsed only removes its own contribution from the view.
// A Query limit of zero or less disables truncation.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/okian/raidtrack/internal/domain/model"
)

const (
	defaultClimbThreshold   = 100
	defaultDescentThreshold = 100
	tendencyGrade           = 0.05
)

// Query scopes a view.
type Query struct {
	// Race restricts the view to one race name (case-insensitive). Empty means all races.
	Race string
	// Limit is the number of rows kept per table after sorting.
	Limit int
	// Section selects the section of SectionPerformance, as rendered by SectionKey.
	Section string
}

// RunnerRef identifies the runner behind a leaderboard row.
type RunnerRef struct {
	Bib      int    `json:"bib_number"`
	Name     string `json:"name"`
	Race     string `json:"race_name"`
	Category string `json:"category"`
}

func refOf(r *model.Runner) RunnerRef {
	return RunnerRef{
		Bib:      r.Infos.BibNumber,
		Name:     r.Infos.Name,
		Race:     r.Infos.RaceName,
		Category: r.Infos.Category,
	}
}

// Engine computes the analytics views.
type Engine struct {
	climbThreshold   int
	descentThreshold int
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithClimbThreshold sets the elevation gain (meters) a section must exceed to count as a climb.
func WithClimbThreshold(meters int) Option {
	return func(e *Engine) {
		if meters >= 0 {
			e.climbThreshold = meters
		}
	}
}

// WithDescentThreshold sets the elevation loss (meters) a section must exceed to count as a descent.
func WithDescentThreshold(meters int) Option {
	return func(e *Engine) {
		if meters >= 0 {
			e.descentThreshold = meters
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		climbThreshold:   defaultClimbThreshold,
		descentThreshold: defaultDescentThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// selectRunners returns the runners of q.Race ordered by bib.
func selectRunners(runners []model.Runner, race string) []*model.Runner {
	race = strings.TrimSpace(race)
	out := make([]*model.Runner, 0, len(runners))
	for i := range runners {
		if race == "" || strings.EqualFold(runners[i].Infos.RaceName, race) {
			out = append(out, &runners[i])
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Infos.BibNumber < out[b].Infos.BibNumber })
	return out
}

// leg is one adjacent checkpoint pair with a usable, strictly positive elapsed time.
type leg struct {
	index   int
	from    *model.Checkpoint
	to      *model.Checkpoint
	seconds int
}

func (l leg) hours() float64 { return float64(l.seconds) / 3600 }

func (l leg) key() string { return SectionKey(l.from.Point, l.to.Point) }

// distance is the kilometer delta, or false when the course data runs backwards.
func (l leg) distance() (float64, bool) {
	d := l.to.Kilometer - l.from.Kilometer
	if d <= 0 {
		return 0, false
	}
	return d, true
}

// legsOf walks adjacent checkpoints. Pairs whose race times do not parse or do not
// move forward are skipped.
func legsOf(r *model.Runner) []leg {
	var out []leg
	for i := 0; i+1 < len(r.Checkpoints); i++ {
		from, to := &r.Checkpoints[i], &r.Checkpoints[i+1]
		start, ok1 := from.RaceSeconds()
		end, ok2 := to.RaceSeconds()
		if !ok1 || !ok2 || end <= start {
			continue
		}
		out = append(out, leg{index: i, from: from, to: to, seconds: end - start})
	}
	return out
}

// SectionKey renders the key grouping a checkpoint pair across runners.
func SectionKey(from, to string) string {
	return from + " → " + to
}

// SegmentSeconds returns the elapsed seconds between two checkpoints using
// accumulated race time, so legs across midnight or past 24h stay positive.
func SegmentSeconds(from, to *model.Checkpoint) (int, bool) {
	start, ok1 := from.RaceSeconds()
	end, ok2 := to.RaceSeconds()
	if !ok1 || !ok2 {
		return 0, false
	}
	return end - start, true
}

// FormatSeconds renders seconds as HH:MM:SS, hours unbounded.
func FormatSeconds(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}

func truncate[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
