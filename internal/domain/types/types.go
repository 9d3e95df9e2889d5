// Package types contains read shapes shared by the service and the API.
package types

import (
	"time"

	"github.com/okian/raidtrack/internal/domain/model"
)

// RunnerSummary is the list view of a cached runner.
type RunnerSummary struct {
	Bib            int         `json:"bib_number"`
	Name           string      `json:"name"`
	RaceName       string      `json:"race_name"`
	Category       string      `json:"category"`
	State          model.State `json:"state"`
	OverallRank    string      `json:"overall_rank"`
	FinishTime     string      `json:"finish_time"`
	LastCheckpoint string      `json:"last_checkpoint"`
	Checkpoints    int         `json:"checkpoints"`
}

// Summarize builds the list view of r.
func Summarize(r *model.Runner) RunnerSummary {
	return RunnerSummary{
		Bib:            r.Infos.BibNumber,
		Name:           r.Infos.Name,
		RaceName:       r.Infos.RaceName,
		Category:       r.Infos.Category,
		State:          r.Infos.State,
		OverallRank:    r.Infos.OverallRank,
		FinishTime:     r.Infos.FinishTime,
		LastCheckpoint: r.Infos.LastCheckpoint,
		Checkpoints:    len(r.Checkpoints),
	}
}

// BatchReport counts what happened to the bibs of one scan batch.
type BatchReport struct {
	BatchID    string     `json:"batch_id"`
	Total      int        `json:"total"`
	Cached     int        `json:"cached"`
	Fetched    int        `json:"fetched"`
	Failed     int        `json:"failed"`
	Cancelled  int        `json:"cancelled"`
	FailedBibs []int      `json:"failed_bibs"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Done       bool       `json:"done"`
}

// Processed is the number of bibs the worker has settled.
func (b BatchReport) Processed() int {
	return b.Cached + b.Fetched + b.Failed + b.Cancelled
}
