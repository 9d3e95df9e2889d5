package normalize

import "strings"

// RawHeader is the free-text runner header returned by the page-extraction collaborator.
// Any field may be empty or hold a placeholder.
type RawHeader struct {
	RaceCode     string `json:"race_code"`
	RaceName     string `json:"race_name"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	State        string `json:"state"`
	FinishTime   string `json:"finish_time"`
	AverageSpeed string `json:"average_speed"`
	OverallRank  string `json:"overall_rank"`
	GenderRank   string `json:"gender_rank"`
	CategoryRank string `json:"category_rank"`
	// Rankings holds ranking cells keyed by their column label (GÉNÉRAL, SEXE, CATÉGORIE).
	Rankings map[string]string `json:"rankings"`
}

// RawCheckpoint is one free-text row of the passage table.
type RawCheckpoint struct {
	Point         string `json:"point"`
	Kilometer     string `json:"kilometer"`
	PassageTime   string `json:"passage_time"`
	RaceTime      string `json:"race_time"`
	Speed         string `json:"speed"`
	EffortSpeed   string `json:"effort_speed"`
	ElevationGain string `json:"elevation_gain"`
	ElevationLoss string `json:"elevation_loss"`
	Rank          string `json:"rank"`
	RankEvolution string `json:"rank_evolution"`
}

func (h *RawHeader) empty() bool {
	if h == nil {
		return true
	}
	for _, v := range []string{
		h.RaceCode, h.RaceName, h.Name, h.Category, h.State, h.FinishTime,
		h.AverageSpeed, h.OverallRank, h.GenderRank, h.CategoryRank,
	} {
		if !blank(v) {
			return false
		}
	}
	for _, v := range h.Rankings {
		if !blank(v) {
			return false
		}
	}
	return true
}

func (c *RawCheckpoint) fields() []string {
	return []string{
		c.Point, c.Kilometer, c.PassageTime, c.RaceTime, c.Speed, c.EffortSpeed,
		c.ElevationGain, c.ElevationLoss, c.Rank, c.RankEvolution,
	}
}

// blank reports whether a raw cell carries no information.
func blank(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "N/A", "n/a", "-", "--", "—":
		return true
	}
	return false
}

var accentFolder = strings.NewReplacer(
	"É", "E", "È", "E", "Ê", "E", "Ë", "E",
	"À", "A", "Â", "A", "Î", "I", "Ï", "I",
	"Ô", "O", "Ù", "U", "Û", "U", "Ç", "C",
)

// fold uppercases, strips French accents and collapses whitespace.
func fold(s string) string {
	return accentFolder.Replace(strings.ToUpper(strings.Join(strings.Fields(s), " ")))
}
