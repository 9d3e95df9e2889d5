// Package watch rescans the bib list file whenever it changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/okian/raidtrack/pkg/logger"
)

const defaultDebounce = 500 * time.Millisecond

// ErrNoPath is returned when the watcher has no file to watch.
var ErrNoPath = errors.New("no file to watch")

// Scanner submits the bibs of the watched file.
type Scanner interface {
	ScanFile(ctx context.Context) (string, error)
}

// Watcher triggers a scan after the bib list file is written, created or
// replaced. Bursts of events within the debounce window trigger one scan.
type Watcher struct {
	path     string
	scanner  Scanner
	debounce time.Duration
	logger   logger.Logger
}

// Option applies a configuration option to the Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the watcher waits for the file to settle.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets a custom logger for the watcher.
func WithLogger(l logger.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a watcher of path.
func New(path string, scanner Scanner, opts ...Option) *Watcher {
	w := &Watcher{
		path:     path,
		scanner:  scanner,
		debounce: defaultDebounce,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx ends. The parent directory is watched so editors that
// replace the file by rename are followed.
func (w *Watcher) Run(ctx context.Context) error {
	if w.path == "" {
		return ErrNoPath
	}
	target, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	defer fsw.Close()
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	w.logger.Info(ctx, "watching bib list", logger.String("path", target))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != target {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "watcher error", logger.Error(err))
		case <-timer.C:
			w.scan(ctx)
		}
	}
}

func (w *Watcher) scan(ctx context.Context) {
	id, err := w.scanner.ScanFile(ctx)
	if err != nil {
		w.logger.Warn(ctx, "bib list rescan failed", logger.String("path", w.path), logger.Error(err))
		return
	}
	w.logger.Info(ctx, "bib list changed, scan started", logger.String("batch", id))
}
