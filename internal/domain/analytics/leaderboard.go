package analytics

import (
	"sort"

	"github.com/okian/raidtrack/internal/domain/model"
)

// Standing is one row of a per-race leaderboard.
type Standing struct {
	RunnerRef
	Position    int         `json:"position"`
	OverallRank int         `json:"overall_rank,omitempty"`
	GenderRank  string      `json:"gender_rank"`
	FinishTime  string      `json:"finish_time"`
	State       model.State `json:"state"`
}

// RaceLeaderboard holds the men and women tables of one race.
type RaceLeaderboard struct {
	Race  string     `json:"race_name"`
	Men   []Standing `json:"men"`
	Women []Standing `json:"women"`
}

type standingRow struct {
	Standing
	ranked bool
}

// lessStanding orders by overall rank ascending, ranked rows before unranked ones,
// then by bib ascending.
func lessStanding(a, b *standingRow) bool {
	if a.ranked != b.ranked {
		return a.ranked
	}
	if a.ranked && a.OverallRank != b.OverallRank {
		return a.OverallRank < b.OverallRank
	}
	return a.Bib < b.Bib
}

// RaceLeaderboards groups runners by race and splits each race into a men and a
// women table. A category containing "F" puts a runner in the women table; this
// is a heuristic on free-text categories. Runners with neither a parsable overall
// rank nor a finish time are left out. Races are ordered by name.
func (e *Engine) RaceLeaderboards(runners []model.Runner, q Query) []RaceLeaderboard {
	type buckets struct{ men, women []standingRow }
	byRace := make(map[string]*buckets)

	for _, r := range selectRunners(runners, q.Race) {
		rank, ranked := r.OverallRankValue()
		if !ranked && !r.HasFinishTime() {
			continue
		}
		row := standingRow{
			Standing: Standing{
				RunnerRef:   refOf(r),
				OverallRank: rank,
				GenderRank:  r.Infos.GenderRank,
				FinishTime:  r.Infos.FinishTime,
				State:       r.Infos.State,
			},
			ranked: ranked,
		}
		b, ok := byRace[r.Infos.RaceName]
		if !ok {
			b = &buckets{}
			byRace[r.Infos.RaceName] = b
		}
		if r.IsFemale() {
			b.women = append(b.women, row)
		} else {
			b.men = append(b.men, row)
		}
	}

	races := make([]string, 0, len(byRace))
	for race := range byRace {
		races = append(races, race)
	}
	sort.Strings(races)

	out := make([]RaceLeaderboard, 0, len(races))
	for _, race := range races {
		b := byRace[race]
		out = append(out, RaceLeaderboard{
			Race:  race,
			Men:   finishStandings(b.men, q.Limit),
			Women: finishStandings(b.women, q.Limit),
		})
	}
	return out
}

func finishStandings(rows []standingRow, limit int) []Standing {
	sort.SliceStable(rows, func(i, j int) bool { return lessStanding(&rows[i], &rows[j]) })
	rows = truncate(rows, limit)
	out := make([]Standing, len(rows))
	for i := range rows {
		out[i] = rows[i].Standing
		out[i].Position = i + 1
	}
	return out
}
