// Package source fetches raw runner pages from the page-extraction collaborator.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/okian/raidtrack/internal/domain/normalize"
	"github.com/okian/raidtrack/pkg/logger"
	"github.com/okian/raidtrack/pkg/metrics"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultRetryMax = 2
	maxBodyBytes    = 4 << 20
)

// Fetcher returns the raw header and passage rows of one runner.
type Fetcher interface {
	Fetch(ctx context.Context, bib int) (*normalize.RawHeader, []normalize.RawCheckpoint, error)
}

// Page is the collaborator's response body.
type Page struct {
	Header      *normalize.RawHeader      `json:"header"`
	Checkpoints []normalize.RawCheckpoint `json:"checkpoints"`
}

// HTTPSource reads pages from GET {baseURL}/runners/{bib}.
type HTTPSource struct {
	baseURL string
	client  *retryablehttp.Client
	log     logger.Logger
}

var _ Fetcher = (*HTTPSource)(nil)

// NewHTTPSource creates a source for baseURL.
func NewHTTPSource(baseURL string, opts ...Option) *HTTPSource {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = defaultTimeout
	client.RetryMax = defaultRetryMax
	client.CheckRetry = retryPolicy

	s := &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		log:     logger.Nop(),
	}
	client.Logger = leveledLogger{log: s.log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch implements Fetcher.
func (s *HTTPSource) Fetch(ctx context.Context, bib int) (*normalize.RawHeader, []normalize.RawCheckpoint, error) {
	start := time.Now()
	defer func() {
		metrics.RecordFetchLatency(float64(time.Since(start).Milliseconds()))
	}()

	url := s.baseURL + "/runners/" + strconv.Itoa(bib)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.RecordErrorByComponent("source", "transport")
		return nil, nil, fmt.Errorf("%w: bib %d: %w", ErrUpstream, bib, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil, fmt.Errorf("%w: bib %d", ErrNotFound, bib)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		metrics.RecordErrorByComponent("source", "status")
		return nil, nil, fmt.Errorf("%w: bib %d: status %d", ErrUpstream, bib, resp.StatusCode)
	}

	var page Page
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&page); err != nil {
		metrics.RecordErrorByComponent("source", "decode")
		return nil, nil, fmt.Errorf("%w: bib %d: decode page: %w", ErrUpstream, bib, err)
	}
	if page.Header == nil {
		return nil, nil, fmt.Errorf("%w: bib %d", normalize.ErrNoHeader, bib)
	}
	s.log.Debug(ctx, "page fetched",
		logger.Int("bib", bib),
		logger.Int("rows", len(page.Checkpoints)),
		logger.Duration("took", time.Since(start)))
	return page.Header, page.Checkpoints, nil
}

// Close releases idle connections.
func (s *HTTPSource) Close() error {
	s.client.HTTPClient.CloseIdleConnections()
	return nil
}

// retryPolicy retries transport errors, 429 and 5xx; other statuses are final.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, err
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

// leveledLogger adapts the structured logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log logger.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) {
	l.log.Error(context.Background(), msg, fields(kv)...)
}

func (l leveledLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug(context.Background(), msg, fields(kv)...)
}

func (l leveledLogger) Debug(msg string, kv ...interface{}) {
	l.log.Debug(context.Background(), msg, fields(kv)...)
}

func (l leveledLogger) Warn(msg string, kv ...interface{}) {
	l.log.Warn(context.Background(), msg, fields(kv)...)
}

func fields(kv []interface{}) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
