// Package normalize turns the raw output of the page-extraction collaborator
// into well-formed runner records.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/raidtrack/internal/domain/model"
)

var clockRe = regexp.MustCompile(`(\d+)\s*[:hH]\s*(\d{1,2})(?:\s*[:'mM]\s*(\d{1,2}))?`)

// Normalizer converts raw pages to runner records. It holds no mutable state
// and is safe for concurrent use.
type Normalizer struct {
	raceNames      map[string]string
	stateRules     []StateRule
	nonDataMarkers map[string]struct{}
}

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithRaceNames replaces the race code table. Codes are matched case-insensitively.
func WithRaceNames(names map[string]string) Option {
	return func(n *Normalizer) {
		if len(names) == 0 {
			return
		}
		n.raceNames = make(map[string]string, len(names))
		for code, name := range names {
			n.raceNames[strings.ToUpper(strings.TrimSpace(code))] = name
		}
	}
}

// WithStateRules replaces the ordered state classification rules.
func WithStateRules(rules []StateRule) Option {
	return func(n *Normalizer) {
		if len(rules) > 0 {
			n.stateRules = rules
		}
	}
}

// WithNonDataMarkers replaces the labels of rows that are never checkpoints.
func WithNonDataMarkers(markers []string) Option {
	return func(n *Normalizer) {
		n.nonDataMarkers = make(map[string]struct{}, len(markers))
		for _, m := range markers {
			n.nonDataMarkers[fold(m)] = struct{}{}
		}
	}
}

// New creates a Normalizer with the default rules and race table.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		raceNames: map[string]string{
			"MAS": "Mascareignes",
			"GRR": "Diagonale des Fous",
			"TDB": "Trail de Bourbon",
			"MTR": "Métiss Trail",
			"ZEM": "Zembrocal",
		},
		stateRules: DefaultStateRules,
	}
	WithNonDataMarkers(DefaultNonDataMarkers)(n)
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize builds the runner record for bib. It fails only when the header is
// missing altogether; every other gap is filled with a placeholder.
func (n *Normalizer) Normalize(bib int, header *RawHeader, rows []RawCheckpoint) (model.Runner, error) {
	if bib <= 0 {
		return model.Runner{}, fmt.Errorf("%w: %d", ErrInvalidBib, bib)
	}
	if header.empty() {
		return model.Runner{}, fmt.Errorf("%w: bib %d", ErrNoHeader, bib)
	}

	state := ClassifyState(header.State, n.stateRules)
	info := model.Info{
		RaceName:  n.raceName(header),
		BibNumber: bib,
		Name:      orDefault(header.Name, model.DefaultName),
		Category:  orDefault(header.Category, model.DefaultCategory),
		State:     state,
	}

	if state == model.StateNotStarted {
		info.CategoryRank = model.NotApplicable
		info.GenderRank = model.NotApplicable
		info.OverallRank = model.NotApplicable
		info.AverageSpeed = model.NotApplicable
		info.FinishTime = model.NotApplicable
		r := model.Runner{Infos: info, Checkpoints: []model.Checkpoint{}}
		r.Derive()
		return r, nil
	}

	overall, gender, category := rankings(header)
	info.OverallRank = overall
	info.GenderRank = gender
	info.CategoryRank = category
	info.AverageSpeed = speed(header.AverageSpeed)
	info.FinishTime = finishTime(state, header.FinishTime)

	r := model.Runner{Infos: info, Checkpoints: n.checkpoints(rows)}
	r.Derive()
	return r, nil
}

func (n *Normalizer) raceName(h *RawHeader) string {
	if name, ok := n.raceNames[strings.ToUpper(strings.TrimSpace(h.RaceCode))]; ok {
		return name
	}
	return orDefault(h.RaceName, model.DefaultRaceName)
}

func (n *Normalizer) checkpoints(rows []RawCheckpoint) []model.Checkpoint {
	out := make([]model.Checkpoint, 0, len(rows))
	for i := range rows {
		if cp, ok := n.checkpoint(&rows[i]); ok {
			out = append(out, cp)
		}
	}
	return out
}

func (n *Normalizer) checkpoint(raw *RawCheckpoint) (model.Checkpoint, bool) {
	point := strings.Join(strings.Fields(raw.Point), " ")
	if blank(point) {
		return model.Checkpoint{}, false
	}
	if _, marker := n.nonDataMarkers[fold(point)]; marker {
		return model.Checkpoint{}, false
	}
	informative := false
	for _, f := range raw.fields()[1:] {
		if !blank(f) {
			informative = true
			break
		}
	}
	if !informative {
		return model.Checkpoint{}, false
	}

	cp := model.Checkpoint{
		Point:         point,
		PassageTime:   clock(raw.PassageTime),
		RaceTime:      clock(raw.RaceTime),
		Speed:         speed(raw.Speed),
		EffortSpeed:   speed(raw.EffortSpeed),
		ElevationGain: elevation(raw.ElevationGain),
		ElevationLoss: elevation(raw.ElevationLoss),
		Rank:          rank(raw.Rank),
		RankEvolution: rankEvolution(raw.RankEvolution),
	}
	if km, ok := model.FirstFloat(raw.Kilometer); ok {
		cp.Kilometer = math.Abs(km)
	}
	return cp, true
}

// rankings resolves overall/gender/category ranks from explicit fields first,
// then from the labelled ranking cells.
func rankings(h *RawHeader) (overall, gender, category string) {
	overall, gender, category = clean(h.OverallRank), clean(h.GenderRank), clean(h.CategoryRank)
	labels := make([]string, 0, len(h.Rankings))
	for label := range h.Rankings {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		value := clean(h.Rankings[label])
		if value == "" {
			continue
		}
		switch l := fold(label); {
		case strings.Contains(l, "GENERAL") && overall == "":
			overall = value
		case strings.Contains(l, "SEXE") && gender == "":
			gender = value
		case strings.Contains(l, "CATEGORIE") && category == "":
			category = value
		}
	}
	return overall, gender, category
}

func finishTime(state model.State, raw string) string {
	switch {
	case state == model.StateRacing:
		return model.RacingMarker
	case !state.HasFinishTime():
		return model.NotApplicable
	case blank(raw):
		return model.NotApplicable
	}
	h, m, _, ok := splitClock(raw)
	if !ok {
		return strings.TrimSpace(raw)
	}
	return fmt.Sprintf("%02dh%02d", h, m)
}

// clock renders a time of day or an elapsed time as zero-padded HH:MM:SS.
func clock(raw string) string {
	h, m, s, ok := splitClock(raw)
	if !ok {
		return model.Sentinel
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func splitClock(raw string) (h, m, s int, ok bool) {
	if blank(raw) {
		return 0, 0, 0, false
	}
	g := clockRe.FindStringSubmatch(raw)
	if g == nil {
		return 0, 0, 0, false
	}
	h, _ = strconv.Atoi(g[1])
	m, _ = strconv.Atoi(g[2])
	if g[3] != "" {
		s, _ = strconv.Atoi(g[3])
	}
	if m > 59 || s > 59 {
		return 0, 0, 0, false
	}
	return h, m, s, true
}

func speed(raw string) string {
	v, ok := model.ParseSpeed(raw)
	if !ok {
		return model.Sentinel
	}
	return model.FormatSpeed(v)
}

// elevation falls back to 0: a missing delta means no climb was recorded.
func elevation(raw string) int {
	v, ok := model.FirstInt(raw)
	if !ok {
		return 0
	}
	if v < 0 {
		v = -v
	}
	return v
}

// rank falls back to absent: a missing rank is not rank 0.
func rank(raw string) *int {
	v, ok := model.FirstInt(raw)
	if !ok || v <= 0 {
		return nil
	}
	return &v
}

func rankEvolution(raw string) *int {
	v, ok := model.FirstInt(strings.Trim(strings.TrimSpace(raw), "()"))
	if !ok {
		return nil
	}
	return &v
}

func clean(s string) string {
	if blank(s) {
		return ""
	}
	return strings.Join(strings.Fields(s), " ")
}

func orDefault(s, def string) string {
	if c := clean(s); c != "" {
		return c
	}
	return def
}
