package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/raidtrack/internal/adapters/mq/worker"
	"github.com/okian/raidtrack/internal/domain/types"
	"github.com/okian/raidtrack/pkg/metrics"
)

// maxFinishedBatches bounds how many finished batch reports are retained.
const maxFinishedBatches = 256

type batch struct {
	report    types.BatchReport
	pending   int
	cancelled bool
	done      chan struct{}
}

// batchTracker records the progress of scan batches. It implements worker.Tracker.
type batchTracker struct {
	mu       sync.RWMutex
	batches  map[string]*batch
	finished []string
}

var _ worker.Tracker = (*batchTracker)(nil)

func newBatchTracker() *batchTracker {
	return &batchTracker{batches: make(map[string]*batch)}
}

func (t *batchTracker) open(id string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.batches[id] = &batch{
		report: types.BatchReport{
			BatchID:    id,
			Total:      total,
			FailedBibs: []int{},
			StartedAt:  time.Now().UTC(),
		},
		pending: total,
		done:    make(chan struct{}),
	}
	metrics.RecordBatchStarted()
}

// Cancelled implements worker.Tracker.
func (t *batchTracker) Cancelled(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.batches[id]
	return ok && b.cancelled
}

// Settle implements worker.Tracker.
func (t *batchTracker) Settle(id string, bib int, outcome worker.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.batches[id]
	if !ok || b.pending == 0 {
		return
	}
	switch outcome {
	case worker.Cached:
		b.report.Cached++
	case worker.Fetched:
		b.report.Fetched++
	case worker.Failed:
		b.report.Failed++
		b.report.FailedBibs = append(b.report.FailedBibs, bib)
	case worker.Cancelled:
		b.report.Cancelled++
	}
	b.pending--
	if b.pending > 0 {
		return
	}

	now := time.Now().UTC()
	b.report.FinishedAt = &now
	b.report.Done = true
	sort.Ints(b.report.FailedBibs)
	close(b.done)
	metrics.RecordBatchFinished()

	t.finished = append(t.finished, id)
	for len(t.finished) > maxFinishedBatches {
		delete(t.batches, t.finished[0])
		t.finished = t.finished[1:]
	}
}

func (t *batchTracker) cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.batches[id]
	if !ok {
		return ErrBatchNotFound
	}
	b.cancelled = true
	return nil
}

func (t *batchTracker) report(id string) (types.BatchReport, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.batches[id]
	if !ok {
		return types.BatchReport{}, ErrBatchNotFound
	}
	return copyReport(&b.report), nil
}

func (t *batchTracker) wait(ctx context.Context, id string) (types.BatchReport, error) {
	t.mu.RLock()
	b, ok := t.batches[id]
	t.mu.RUnlock()
	if !ok {
		return types.BatchReport{}, ErrBatchNotFound
	}
	select {
	case <-b.done:
	case <-ctx.Done():
		return types.BatchReport{}, ctx.Err()
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return copyReport(&b.report), nil
}

func (t *batchTracker) active() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, b := range t.batches {
		if b.pending > 0 {
			n++
		}
	}
	return n
}

func copyReport(r *types.BatchReport) types.BatchReport {
	out := *r
	out.FailedBibs = append([]int{}, r.FailedBibs...)
	if r.FinishedAt != nil {
		at := *r.FinishedAt
		out.FinishedAt = &at
	}
	return out
}
