package repository

import "github.com/okian/raidtrack/pkg/logger"

const (
	defaultJSONPath   = "race_data.json"
	defaultSQLitePath = "race_data.db"
)

type options struct {
	path   string
	atomic bool
	log    logger.Logger
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithPath sets the backing file.
func WithPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.path = path
		}
	}
}

// WithAtomicWrite makes the JSON store write a temporary file and rename it over the target.
func WithAtomicWrite(atomic bool) Option {
	return func(o *options) {
		o.atomic = atomic
	}
}

// WithLogger sets the logger used for load and persist events.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func buildOptions(defaultPath string, opts []Option) options {
	o := options{path: defaultPath, log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
