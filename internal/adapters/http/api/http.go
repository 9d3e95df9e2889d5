// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/cors"

	"github.com/okian/raidtrack/internal/adapters/http/swagger"
	"github.com/okian/raidtrack/internal/adapters/repository"
	service "github.com/okian/raidtrack/internal/app"
	"github.com/okian/raidtrack/internal/domain/analytics"
	"github.com/okian/raidtrack/internal/domain/model"
	"github.com/okian/raidtrack/internal/domain/types"
	"github.com/okian/raidtrack/pkg/logger"
)

const defaultMaxLimit = 100

// Dependencies required by HTTP handlers.
type Dependencies interface {
	RunnerDependencies
	ScanDependencies
	AnalyticsDependencies
}

// RunnerDependencies reads the runner cache.
type RunnerDependencies interface {
	Runner(ctx context.Context, bib int) (model.Runner, error)
	Runners(ctx context.Context, race string) []types.RunnerSummary
}

// ScanDependencies submits and follows scan batches.
type ScanDependencies interface {
	Scan(ctx context.Context, bibs []int) (string, error)
	Batch(ctx context.Context, id string) (types.BatchReport, error)
	Cancel(ctx context.Context, id string) error
}

// AnalyticsDependencies computes analytics views.
type AnalyticsDependencies interface {
	View(ctx context.Context, name string, q analytics.Query) (any, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	runnersHandler   *RunnersHandler
	scansHandler     *ScansHandler
	analyticsHandler *AnalyticsHandler

	corsOrigins []string
	logger      logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*serverOptions)

type serverOptions struct {
	maxLimit    int
	corsOrigins []string
	logger      logger.Logger
}

// WithMaxLimit sets the largest limit accepted by the analytics routes.
func WithMaxLimit(n int) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxLimit = n
		}
	}
}

// WithCORSOrigins sets the origins allowed to call the API from a browser.
func WithCORSOrigins(origins []string) Option {
	return func(o *serverOptions) {
		o.corsOrigins = origins
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	o := serverOptions{maxLimit: defaultMaxLimit, logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		runnersHandler:   NewRunnersHandler(deps),
		scansHandler:     NewScansHandler(deps),
		analyticsHandler: NewAnalyticsHandler(deps, o.maxLimit),
		corsOrigins:      o.corsOrigins,
		logger:           o.logger,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /runners", MetricsMiddleware(s.runnersHandler.HandleListRunners, "runners"))
	mux.HandleFunc("GET /runners/{bib}", MetricsMiddleware(s.runnersHandler.HandleGetRunner, "runner"))
	mux.HandleFunc("POST /scans", MetricsMiddleware(s.scansHandler.HandlePostScan, "scans"))
	mux.HandleFunc("GET /scans/{id}", MetricsMiddleware(s.scansHandler.HandleGetScan, "scan"))
	mux.HandleFunc("DELETE /scans/{id}", MetricsMiddleware(s.scansHandler.HandleCancelScan, "scan"))
	mux.HandleFunc("GET /analytics/{view}", MetricsMiddleware(s.analyticsHandler.HandleGetView, "analytics"))
	swagger.Register(mux)
}

// Handler returns the routes wrapped with request logging and CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)

	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return RequestID(s.logger)(c.Handler(mux))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates service and cache errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrBatchNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrUnknownView):
		writeError(w, http.StatusNotFound, "unknown_view", err)
	case errors.Is(err, service.ErrEmptyBatch), errors.Is(err, service.ErrMissingSection):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNoSource), errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
