// Package service owns the runner cache and wires the acquisition worker, scan
// batches, the scan scheduler and the analytics views behind one API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"

	eventqueue "github.com/okian/raidtrack/internal/adapters/mq/queue"
	"github.com/okian/raidtrack/internal/adapters/mq/worker"
	"github.com/okian/raidtrack/internal/adapters/repository"
	"github.com/okian/raidtrack/internal/domain/analytics"
	"github.com/okian/raidtrack/internal/domain/biblist"
	"github.com/okian/raidtrack/internal/domain/dedupe"
	"github.com/okian/raidtrack/internal/domain/normalize"
	"github.com/okian/raidtrack/internal/domain/types"
	"github.com/okian/raidtrack/pkg/logger"
	"github.com/okian/raidtrack/pkg/metrics"
)

const (
	defaultQueueSize        = 10000
	defaultFetchInterval    = time.Second
	defaultViewCacheTTL     = 5 * time.Minute
	defaultLeaderboardLimit = 7
	defaultRankingLimit     = 20
	workerShutdownTimeout   = 30 * time.Second
)

// Service implements the dependencies of the HTTP API and the CLI.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	fetcher    worker.Fetcher
	normalizer *normalize.Normalizer
	engine     *analytics.Engine
	queue      *eventqueue.InMemoryQueue
	worker     *worker.AcquisitionWorker
	batches    *batchTracker
	scheduler  *cron.Cron
	views      *cache.Cache

	// Configuration
	queueSize        int
	dedupeSize       int
	fetchInterval    time.Duration
	viewCacheTTL     time.Duration
	leaderboardLimit int
	rankingLimit     int
	scanSchedule     string
	bibsFile         string

	// State
	started     bool
	cancelRun   context.CancelFunc
	viewVersion atomic.Uint64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the runner cache. The service loads it on Start and closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithFetcher sets the page source. Without one, scans are refused.
func WithFetcher(f worker.Fetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithNormalizer sets the normalizer used for fetched pages.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *Service) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithEngine sets the analytics engine.
func WithEngine(e *analytics.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithQueueSize sets the maximum number of pending scan jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the per-batch de-duplication set; 0 keeps it unbounded.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithFetchInterval sets the minimum spacing between page fetches.
func WithFetchInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.fetchInterval = d
		}
	}
}

// WithViewCacheTTL sets how long computed views are reused; 0 disables memoization.
func WithViewCacheTTL(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.viewCacheTTL = d
		}
	}
}

// WithDefaultLimits sets the default row counts of the short and long views.
func WithDefaultLimits(leaderboard, ranking int) Option {
	return func(s *Service) {
		if leaderboard > 0 {
			s.leaderboardLimit = leaderboard
		}
		if ranking > 0 {
			s.rankingLimit = ranking
		}
	}
}

// WithBibsFile sets the bib list scanned by ScanFile.
func WithBibsFile(path string) Option {
	return func(s *Service) {
		s.bibsFile = path
	}
}

// WithScanSchedule sets the cron expression that triggers ScanFile.
func WithScanSchedule(spec string) Option {
	return func(s *Service) {
		s.scanSchedule = spec
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:        defaultQueueSize,
		fetchInterval:    defaultFetchInterval,
		viewCacheTTL:     defaultViewCacheTTL,
		leaderboardLimit: defaultLeaderboardLimit,
		rankingLimit:     defaultRankingLimit,
		batches:          newBatchTracker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.normalizer == nil {
		s.normalizer = normalize.New()
	}
	if s.engine == nil {
		s.engine = analytics.New()
	}
	return s
}

// Start loads the cache and starts the worker and the scheduler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting raidtrack service...")

	if s.store == nil {
		s.store = repository.NewJSONStore(repository.WithLogger(s.logger.Named("repository")))
	}
	if err := s.store.Load(ctx); err != nil {
		// The cache starts empty and is rebuilt by the next scans.
		s.logger.Warn(ctx, "runner cache not loaded", logger.Error(err))
	}
	s.views = cache.New(s.viewCacheTTL, 2*s.viewCacheTTL)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel

	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	if s.fetcher != nil {
		s.worker = worker.NewAcquisitionWorker(s.queue, s.store, s.fetcher, s.normalizer, s.batches,
			worker.WithLogger(s.logger.Named("worker")),
			worker.WithName("acquisition"),
			worker.WithFetchInterval(s.fetchInterval),
		)
		go s.worker.Run(runCtx)
	}

	if s.scanSchedule != "" {
		if err := s.startScheduler(runCtx); err != nil {
			cancel()
			return err
		}
	}

	s.started = true
	s.logger.Info(ctx, "raidtrack service started",
		logger.Int("runners", s.store.Count(ctx)),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("fetchInterval", s.fetchInterval),
		logger.Bool("scanner", s.worker != nil),
	)
	return nil
}

// Stop halts the scheduler and the worker, settles queued jobs as cancelled,
// then flushes and closes the cache.
func (s *Service) Stop() {
	// A scheduled scan in progress needs the read lock to finish.
	s.mu.RLock()
	scheduler := s.scheduler
	s.mu.RUnlock()
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping raidtrack service...")
	s.scheduler = nil
	if s.worker != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, workerShutdownTimeout)
		if err := s.worker.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "worker shutdown failed", logger.Error(err))
		}
		cancel()
	}
	s.cancelRun()

	_ = s.queue.Close()
	for job := range s.queue.Dequeue() {
		metrics.RecordScanOutcome(metrics.OutcomeCancelled)
		s.batches.Settle(job.BatchID, job.Bib, worker.Cancelled)
	}

	if err := s.store.Flush(ctx); err != nil {
		s.logger.Error(ctx, "final flush failed", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "closing runner cache failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "raidtrack service stopped")
}

// Scan submits bibs as a new batch and returns its ID. Repeated and
// non-positive bibs are dropped. Bibs that do not fit in the queue are
// reported as failed.
func (s *Service) Scan(ctx context.Context, bibs []int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return "", ErrNotStarted
	}
	if s.worker == nil {
		return "", ErrNoSource
	}

	d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	unique := make([]int, 0, len(bibs))
	for _, bib := range bibs {
		if bib > 0 && !d.SeenAndRecord(ctx, bib) {
			unique = append(unique, bib)
		}
	}
	if len(unique) == 0 {
		return "", ErrEmptyBatch
	}

	id := uuid.NewString()
	s.batches.open(id, len(unique))

	accepted := 0
	var lastErr error
	for _, bib := range unique {
		if err := s.queue.Enqueue(ctx, eventqueue.Job{BatchID: id, Bib: bib}); err != nil {
			lastErr = err
			s.batches.Settle(id, bib, worker.Failed)
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return "", fmt.Errorf("enqueue batch: %w", lastErr)
	}
	if lastErr != nil {
		s.logger.Warn(ctx, "batch partially enqueued",
			logger.String("batch", id),
			logger.Int("accepted", accepted),
			logger.Int("total", len(unique)),
			logger.Error(lastErr))
	}
	s.logger.Info(ctx, "scan batch submitted", logger.String("batch", id), logger.Int("bibs", len(unique)))
	return id, nil
}

// ScanFile submits the bibs of the configured bib list file.
func (s *Service) ScanFile(ctx context.Context) (string, error) {
	if s.bibsFile == "" {
		return "", ErrNoBibsFile
	}
	bibs, err := biblist.ReadFile(s.bibsFile)
	if err != nil {
		return "", err
	}
	return s.Scan(ctx, bibs)
}

// Batch returns the current report of a batch.
func (s *Service) Batch(_ context.Context, id string) (types.BatchReport, error) {
	return s.batches.report(id)
}

// Wait blocks until the batch is done or ctx ends.
func (s *Service) Wait(ctx context.Context, id string) (types.BatchReport, error) {
	return s.batches.wait(ctx, id)
}

// Cancel stops a batch before its next bib. Records already written are kept.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if err := s.batches.cancel(id); err != nil {
		return err
	}
	s.logger.Info(ctx, "scan batch cancelled", logger.String("batch", id))
	return nil
}

func (s *Service) startScheduler(ctx context.Context) error {
	if s.bibsFile == "" {
		return fmt.Errorf("scan schedule %q: %w", s.scanSchedule, ErrNoBibsFile)
	}
	c := cron.New()
	_, err := c.AddFunc(s.scanSchedule, func() {
		id, err := s.ScanFile(ctx)
		switch {
		case errors.Is(err, ErrEmptyBatch):
			s.logger.Debug(ctx, "scheduled scan skipped, empty bib list")
		case err != nil:
			s.logger.Error(ctx, "scheduled scan failed", logger.Error(err))
		default:
			s.logger.Info(ctx, "scheduled scan started", logger.String("batch", id))
		}
	})
	if err != nil {
		return fmt.Errorf("scan schedule %q: %w", s.scanSchedule, err)
	}
	c.Start()
	s.scheduler = c
	return nil
}

func (s *Service) currentStore() repository.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil
	}
	return s.store
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":       s.started,
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
		"fetchInterval": s.fetchInterval.String(),
		"scanSchedule":  s.scanSchedule,
		"activeBatches": s.batches.active(),
	}

	if s.started {
		queueLen := s.queue.Len()
		runners := s.store.Count(ctx)
		stats["queueLength"] = queueLen
		stats["runners"] = runners
		stats["storeVersion"] = s.store.Version()
		stats["scanner"] = s.worker != nil

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		metrics.UpdateSystemMemoryUsage(mem.Alloc)
		metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		metrics.UpdateRunnersStored(runners)
	}
	return stats
}
