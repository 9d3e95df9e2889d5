package analytics

import (
	"sort"

	"github.com/okian/raidtrack/internal/domain/model"
)

// SegmentTime is one runner's passage over a segment.
type SegmentTime struct {
	RunnerRef
	Seconds  int     `json:"seconds"`
	Duration string  `json:"duration"`
	SpeedKmh float64 `json:"speed_kmh,omitempty"`
	hasSpeed bool
}

// SegmentBoard holds the fastest and slowest passages over one segment.
type SegmentBoard struct {
	Segment string        `json:"segment"`
	From    string        `json:"from"`
	To      string        `json:"to"`
	Fastest []SegmentTime `json:"fastest"`
	Slowest []SegmentTime `json:"slowest"`
}

// lessFastest orders by the speed reported at the arrival checkpoint, descending, then bib.
func lessFastest(a, b *SegmentTime) bool {
	if a.SpeedKmh != b.SpeedKmh {
		return a.SpeedKmh > b.SpeedKmh
	}
	return a.Bib < b.Bib
}

// lessSlowest orders by elapsed seconds, descending, then bib: the head holds the
// largest durations.
func lessSlowest(a, b *SegmentTime) bool {
	if a.Seconds != b.Seconds {
		return a.Seconds > b.Seconds
	}
	return a.Bib < b.Bib
}

type sectionOrder struct {
	key  string
	from string
	to   string
	km   float64
}

// courseOrder sorts section keys by the lowest kilometer seen at their start, then by key.
func courseOrder(sections map[string]*sectionOrder) []*sectionOrder {
	out := make([]*sectionOrder, 0, len(sections))
	for _, s := range sections {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].km != out[j].km {
			return out[i].km < out[j].km
		}
		return out[i].key < out[j].key
	})
	return out
}

func noteSection(sections map[string]*sectionOrder, l leg) {
	key := l.key()
	s, ok := sections[key]
	if !ok {
		sections[key] = &sectionOrder{key: key, from: l.from.Point, to: l.to.Point, km: l.from.Kilometer}
		return
	}
	if l.from.Kilometer < s.km {
		s.km = l.from.Kilometer
	}
}

// Segments groups every adjacent checkpoint pair of every runner by segment key
// and ranks the passages. A passage without a reported arrival speed only enters
// the slowest table.
func (e *Engine) Segments(runners []model.Runner, q Query) []SegmentBoard {
	times := make(map[string][]SegmentTime)
	sections := make(map[string]*sectionOrder)

	for _, r := range selectRunners(runners, q.Race) {
		for _, l := range legsOf(r) {
			noteSection(sections, l)
			st := SegmentTime{
				RunnerRef: refOf(r),
				Seconds:   l.seconds,
				Duration:  FormatSeconds(l.seconds),
			}
			if v, ok := l.to.SpeedKmh(); ok {
				st.SpeedKmh = v
				st.hasSpeed = true
			}
			times[l.key()] = append(times[l.key()], st)
		}
	}

	out := make([]SegmentBoard, 0, len(sections))
	for _, s := range courseOrder(sections) {
		all := times[s.key]

		fastest := make([]SegmentTime, 0, len(all))
		for _, st := range all {
			if st.hasSpeed {
				fastest = append(fastest, st)
			}
		}
		sort.SliceStable(fastest, func(i, j int) bool { return lessFastest(&fastest[i], &fastest[j]) })

		slowest := make([]SegmentTime, len(all))
		copy(slowest, all)
		sort.SliceStable(slowest, func(i, j int) bool { return lessSlowest(&slowest[i], &slowest[j]) })

		out = append(out, SegmentBoard{
			Segment: s.key,
			From:    s.from,
			To:      s.to,
			Fastest: truncate(fastest, q.Limit),
			Slowest: truncate(slowest, q.Limit),
		})
	}
	return out
}
