// Package model contains the runner record passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Placeholder values written when upstream data is missing.
const (
	Sentinel        = "N/A"
	NotApplicable   = "-"
	RacingMarker    = "Racing"
	DefaultRaceName = "Course inconnue"
	DefaultName     = "Inconnu"
	DefaultCategory = "Inconnue"
)

// ErrInvalidRunner is returned by Validate.
var ErrInvalidRunner = errors.New("invalid runner record")

// Info is the header part of a runner record. Field order is the persisted order.
type Info struct {
	RaceName           string `json:"race_name" validate:"required"`
	BibNumber          int    `json:"bib_number" validate:"gt=0"`
	Name               string `json:"name"`
	Category           string `json:"category"`
	CategoryRank       string `json:"category_rank"`
	GenderRank         string `json:"gender_rank"`
	State              State  `json:"state" validate:"required"`
	LastCheckpoint     string `json:"last_checkpoint"`
	FinishTime         string `json:"finish_time"`
	OverallRank        string `json:"overall_rank"`
	AverageSpeed       string `json:"average_speed"`
	TotalElevationGain int    `json:"total_elevation_gain" validate:"gte=0"`
	TotalElevationLoss int    `json:"total_elevation_loss" validate:"gte=0"`
}

// Runner aggregates header info and checkpoints in passage order.
type Runner struct {
	Infos       Info         `json:"infos"`
	Checkpoints []Checkpoint `json:"checkpoints" validate:"dive"`
}

// Bib returns the runner's bib number.
func (r *Runner) Bib() int { return r.Infos.BibNumber }

// Derive recomputes the fields that only exist as a function of the checkpoints.
func (r *Runner) Derive() {
	r.Infos.TotalElevationGain = 0
	r.Infos.TotalElevationLoss = 0
	for i := range r.Checkpoints {
		r.Infos.TotalElevationGain += r.Checkpoints[i].ElevationGain
		r.Infos.TotalElevationLoss += r.Checkpoints[i].ElevationLoss
	}
	if r.Infos.State == StateNotStarted {
		r.Infos.LastCheckpoint = NotApplicable
		return
	}
	r.Infos.LastCheckpoint = ""
	if n := len(r.Checkpoints); n > 0 {
		r.Infos.LastCheckpoint = r.Checkpoints[n-1].Point
	}
}

// Clone returns a deep copy.
func (r *Runner) Clone() Runner {
	out := Runner{Infos: r.Infos}
	if r.Checkpoints != nil {
		out.Checkpoints = make([]Checkpoint, len(r.Checkpoints))
		for i, cp := range r.Checkpoints {
			out.Checkpoints[i] = cp
			out.Checkpoints[i].Rank = cloneInt(cp.Rank)
			out.Checkpoints[i].RankEvolution = cloneInt(cp.RankEvolution)
		}
	}
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// OverallRankValue parses the overall rank text.
func (r *Runner) OverallRankValue() (int, bool) {
	n, ok := FirstInt(r.Infos.OverallRank)
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}

// HasFinishTime reports whether a finish time was recorded.
func (r *Runner) HasFinishTime() bool {
	switch strings.TrimSpace(r.Infos.FinishTime) {
	case "", NotApplicable, Sentinel, RacingMarker:
		return false
	}
	return true
}

// IsFemale applies the category heuristic: a category containing "F" is the women's bucket.
func (r *Runner) IsFemale() bool {
	return strings.Contains(r.Infos.Category, "F")
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks the structural invariants of a record before it is cached.
func (r *Runner) Validate() error {
	validateOnce.Do(func() { validate = validator.New() })
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: bib %d: %w", ErrInvalidRunner, r.Infos.BibNumber, err)
	}
	if !r.Infos.State.Valid() {
		return fmt.Errorf("%w: bib %d: unknown state %q", ErrInvalidRunner, r.Infos.BibNumber, r.Infos.State)
	}
	return nil
}
