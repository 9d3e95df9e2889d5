package worker

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/raidtrack/pkg/logger"
)

// Option applies a configuration option to the AcquisitionWorker.
type Option func(*AcquisitionWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *AcquisitionWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *AcquisitionWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithFetchInterval sets the minimum spacing between two network fetches.
// Zero or less disables pacing.
func WithFetchInterval(d time.Duration) Option {
	return func(w *AcquisitionWorker) {
		if d <= 0 {
			w.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		w.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}
