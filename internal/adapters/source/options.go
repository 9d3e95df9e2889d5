package source

import (
	"time"

	"github.com/okian/raidtrack/pkg/logger"
)

// Option applies a configuration option to the HTTPSource.
type Option func(*HTTPSource)

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *HTTPSource) {
		if d > 0 {
			s.client.HTTPClient.Timeout = d
		}
	}
}

// WithRetryMax sets how many times a failed request is retried.
func WithRetryMax(n int) Option {
	return func(s *HTTPSource) {
		if n >= 0 {
			s.client.RetryMax = n
		}
	}
}

// WithRetryWait bounds the backoff between retries.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(s *HTTPSource) {
		if minWait > 0 && maxWait >= minWait {
			s.client.RetryWaitMin = minWait
			s.client.RetryWaitMax = maxWait
		}
	}
}

// WithLogger routes request and retry logs to l.
func WithLogger(l logger.Logger) Option {
	return func(s *HTTPSource) {
		if l != nil {
			s.log = l
			s.client.Logger = leveledLogger{log: l}
		}
	}
}
