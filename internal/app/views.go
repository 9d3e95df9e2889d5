package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/okian/raidtrack/internal/domain/analytics"
	"github.com/okian/raidtrack/internal/domain/model"
	"github.com/okian/raidtrack/internal/domain/types"
	"github.com/okian/raidtrack/pkg/metrics"
)

// Analytics view names.
const (
	ViewLeaderboards       = "leaderboards"
	ViewSegments           = "segments"
	ViewProgression        = "progression"
	ViewClimbers           = "climbers"
	ViewDescenders         = "descenders"
	ViewRegularity         = "regularity"
	ViewAverageSpeed       = "average-speed"
	ViewEffortSpeed        = "effort-speed"
	ViewSectionSpeeds      = "section-speeds"
	ViewSections           = "sections"
	ViewSectionPerformance = "section-performance"
)

type viewFunc func(e *analytics.Engine, runners []model.Runner, q analytics.Query) any

type viewDef struct {
	compute viewFunc
	// short views default to the leaderboard limit, the others to the ranking limit.
	short bool
}

var views = map[string]viewDef{
	ViewLeaderboards: {short: true, compute: func(e *analytics.Engine, rs []model.Runner, q analytics.Query) any {
		return e.RaceLeaderboards(rs, q)
	}},
	ViewSegments: {short: true, compute: func(e *analytics.Engine, rs []model.Runner, q analytics.Query) any {
		return e.Segments(rs, q)
	}},
	ViewRegularity: {short: true, compute: func(e *analytics.Engine, rs []model.Runner, q analytics.Query) any {
		return e.MostRegular(rs, q)
	}},
	ViewProgression: {compute: func(e *analytics.Engine, rs []model.Runner, q analytics.Query) any {
		return e.Progressions(rs, q)
	}},
	ViewClimbers: {compute: func(e *analytics.Engine, rs []model.Runner, q analytics.Query) any {
		return e.Climbers(rs, q)
	}},
	ViewDescenders: {compute: func(e *analytics.Engine, rs []model.Runner, q analytics.Query) any {
		return e.Descenders(rs, q)
	}},
	ViewAverageSpeed: {compute: func(e *analytics.Engine, rs []model.Runner, q analytics.Query) any {
		return e.AverageSpeeds(rs, q)
	}},
	ViewEffortSpeed: {compute: func(e *analytics.Engine, rs []model.Runner, q analytics.Query) any {
		return e.AverageEffortSpeeds(rs, q)
	}},
	ViewSectionSpeeds: {compute: func(e *analytics.Engine, rs []model.Runner, q analytics.Query) any {
		return e.SectionSpeeds(rs, q)
	}},
	ViewSections: {compute: func(e *analytics.Engine, rs []model.Runner, q analytics.Query) any {
		return e.Sections(rs, q)
	}},
	ViewSectionPerformance: {compute: func(e *analytics.Engine, rs []model.Runner, q analytics.Query) any {
		return e.SectionPerformance(rs, q)
	}},
}

// ViewNames lists the analytics views in a stable order.
func ViewNames() []string {
	return []string{
		ViewLeaderboards, ViewSegments, ViewProgression, ViewClimbers, ViewDescenders,
		ViewRegularity, ViewAverageSpeed, ViewEffortSpeed, ViewSectionSpeeds, ViewSections,
		ViewSectionPerformance,
	}
}

// View computes the named analytics view over the current cache snapshot. A zero
// q.Limit takes the view's default. Results are memoized per cache version.
func (s *Service) View(ctx context.Context, name string, q analytics.Query) (any, error) {
	def, ok := views[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
	if name == ViewSectionPerformance && strings.TrimSpace(q.Section) == "" {
		return nil, ErrMissingSection
	}
	store := s.currentStore()
	if store == nil {
		return nil, ErrNotStarted
	}
	if q.Limit == 0 {
		q.Limit = s.rankingLimit
		if def.short {
			q.Limit = s.leaderboardLimit
		}
	}

	version := store.Version()
	key := fmt.Sprintf("%s|%s|%d|%s|%d", name, strings.ToLower(strings.TrimSpace(q.Race)), q.Limit, q.Section, version)
	if s.viewCacheTTL > 0 {
		// Entries of older versions can never hit again.
		if prev := s.viewVersion.Swap(version); prev != version {
			s.views.Flush()
		}
		if v, found := s.views.Get(key); found {
			metrics.RecordViewCacheHit(name)
			return v, nil
		}
		metrics.RecordViewCacheMiss(name)
	}

	start := time.Now()
	result := def.compute(s.engine, store.Snapshot(ctx), q)
	metrics.RecordAnalyticsLatency(name, float64(time.Since(start).Milliseconds()))

	if s.viewCacheTTL > 0 {
		s.views.Set(key, result, cache.DefaultExpiration)
	}
	return result, nil
}

// Runner returns the cached record for bib.
func (s *Service) Runner(ctx context.Context, bib int) (model.Runner, error) {
	store := s.currentStore()
	if store == nil {
		return model.Runner{}, ErrNotStarted
	}
	return store.Get(ctx, bib)
}

// Runners lists cached runners of race (all races when empty) ordered by bib.
func (s *Service) Runners(ctx context.Context, race string) []types.RunnerSummary {
	store := s.currentStore()
	if store == nil {
		return []types.RunnerSummary{}
	}
	race = strings.TrimSpace(race)
	snap := store.Snapshot(ctx)
	out := make([]types.RunnerSummary, 0, len(snap))
	for i := range snap {
		if race != "" && !strings.EqualFold(snap[i].Infos.RaceName, race) {
			continue
		}
		out = append(out, types.Summarize(&snap[i]))
	}
	return out
}
