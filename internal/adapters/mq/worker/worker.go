// Package worker runs the single acquisition loop that turns scan jobs into
// cached runner records.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/raidtrack/internal/adapters/mq/queue"
	"github.com/okian/raidtrack/internal/adapters/repository"
	"github.com/okian/raidtrack/internal/domain/model"
	"github.com/okian/raidtrack/internal/domain/normalize"
	"github.com/okian/raidtrack/pkg/logger"
	"github.com/okian/raidtrack/pkg/metrics"
)

const defaultFetchInterval = time.Second

// Outcome is what happened to one scan job.
type Outcome string

// Scan outcomes.
const (
	Cached    Outcome = metrics.OutcomeCached
	Fetched   Outcome = metrics.OutcomeFetched
	Failed    Outcome = metrics.OutcomeFailed
	Cancelled Outcome = metrics.OutcomeCancelled
)

// Queue defines how the worker receives jobs.
type Queue interface {
	Dequeue() <-chan queue.Job
}

// Store is the part of the runner cache the worker writes to.
type Store interface {
	Has(ctx context.Context, bib int) bool
	Put(ctx context.Context, r model.Runner) error
}

// Fetcher returns the raw page of one runner.
type Fetcher interface {
	Fetch(ctx context.Context, bib int) (*normalize.RawHeader, []normalize.RawCheckpoint, error)
}

// Normalizer builds runner records from raw pages.
type Normalizer interface {
	Normalize(bib int, header *normalize.RawHeader, rows []normalize.RawCheckpoint) (model.Runner, error)
}

// Tracker follows batches: it tells whether a batch was cancelled and receives
// the outcome of every job.
type Tracker interface {
	Cancelled(batchID string) bool
	Settle(batchID string, bib int, outcome Outcome)
}

// Worker processes scan jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)
	// Shutdown stops the loop after the job in progress.
	Shutdown(ctx context.Context) error
}

// AcquisitionWorker handles jobs strictly one at a time. Cached bibs settle
// without waiting; network fetches are paced by a rate limiter.
type AcquisitionWorker struct {
	queue      Queue
	store      Store
	fetcher    Fetcher
	normalizer Normalizer
	tracker    Tracker
	limiter    *rate.Limiter
	name       string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

var _ Worker = (*AcquisitionWorker)(nil)

// NewAcquisitionWorker creates a worker.
func NewAcquisitionWorker(q Queue, store Store, fetcher Fetcher, normalizer Normalizer, tracker Tracker, opts ...Option) *AcquisitionWorker {
	w := &AcquisitionWorker{
		queue:      q,
		store:      store,
		fetcher:    fetcher,
		normalizer: normalizer,
		tracker:    tracker,
		limiter:    rate.NewLimiter(rate.Every(defaultFetchInterval), 1),
		name:       "worker",
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *AcquisitionWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			outcome := w.process(ctx, job)
			metrics.RecordScanOutcome(string(outcome))
			w.tracker.Settle(job.BatchID, job.Bib, outcome)
		}
	}
}

// Shutdown signals the loop to stop and waits for it.
func (w *AcquisitionWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *AcquisitionWorker) Done() <-chan struct{} { return w.done }

// process makes job.Bib available in the cache. The fetch runs on the worker
// context, so cancelling the batch never interrupts a request in flight.
func (w *AcquisitionWorker) process(ctx context.Context, job queue.Job) Outcome {
	if w.tracker.Cancelled(job.BatchID) {
		return Cancelled
	}
	if w.store.Has(ctx, job.Bib) {
		w.logger.Debug(ctx, "bib already cached", logger.Int("bib", job.Bib))
		return Cached
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return Cancelled
	}
	if w.tracker.Cancelled(job.BatchID) {
		return Cancelled
	}

	header, rows, err := w.fetcher.Fetch(ctx, job.Bib)
	if err != nil {
		metrics.RecordErrorByComponent("worker", "fetch")
		w.logger.Warn(ctx, "fetch failed",
			logger.Int("bib", job.Bib),
			logger.String("batch", job.BatchID),
			logger.Error(err))
		return Failed
	}

	runner, err := w.normalizer.Normalize(job.Bib, header, rows)
	if err != nil {
		metrics.RecordErrorByComponent("worker", "normalize")
		w.logger.Warn(ctx, "normalize failed", logger.Int("bib", job.Bib), logger.Error(err))
		return Failed
	}

	if err := w.store.Put(ctx, runner); err != nil {
		if errors.Is(err, repository.ErrPersist) {
			// The record is in memory; the next Put or Flush writes it out.
			w.logger.Warn(ctx, "runner cached but not persisted", logger.Int("bib", job.Bib), logger.Error(err))
			return Fetched
		}
		metrics.RecordErrorByComponent("worker", "store")
		w.logger.Error(ctx, "store rejected runner", logger.Int("bib", job.Bib), logger.Error(err))
		return Failed
	}

	w.logger.Info(ctx, "runner cached",
		logger.Int("bib", job.Bib),
		logger.String("race", runner.Infos.RaceName),
		logger.String("state", string(runner.Infos.State)),
		logger.Int("checkpoints", len(runner.Checkpoints)))
	return Fetched
}
