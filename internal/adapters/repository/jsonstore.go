package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/okian/raidtrack/internal/domain/model"
	"github.com/okian/raidtrack/pkg/logger"
	"github.com/okian/raidtrack/pkg/metrics"
)

// JSONStore persists the cache as one JSON object keyed by bib.
type JSONStore struct {
	*memory
	opts options

	// persistMu serializes writers so files land in mutation order.
	persistMu sync.Mutex
	dirty     bool
}

var _ Store = (*JSONStore)(nil)

// NewJSONStore creates an empty JSON-backed store. Call Load to read the file.
func NewJSONStore(opts ...Option) *JSONStore {
	return &JSONStore{
		memory: newMemory(),
		opts:   buildOptions(defaultJSONPath, opts),
	}
}

// Path returns the backing file.
func (s *JSONStore) Path() string { return s.opts.path }

// Load reads the backing file. A missing file leaves the cache empty; a file
// that cannot be decoded leaves it empty and returns an error wrapping ErrMalformed.
func (s *JSONStore) Load(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.dirty = false

	data, err := os.ReadFile(s.opts.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.replace(make(map[int]model.Runner))
		s.opts.log.Info(ctx, "no runner cache file, starting empty", logger.String("path", s.opts.path))
		return nil
	}
	if err != nil {
		s.replace(make(map[int]model.Runner))
		return fmt.Errorf("%w: read %s: %w", ErrMalformed, s.opts.path, err)
	}

	byBib, err := decodeMapping(ctx, data, s.opts.log)
	if err != nil {
		s.replace(make(map[int]model.Runner))
		return fmt.Errorf("%w: %s: %w", ErrMalformed, s.opts.path, err)
	}
	s.replace(byBib)
	s.opts.log.Info(ctx, "runner cache loaded",
		logger.String("path", s.opts.path),
		logger.Int("runners", len(byBib)))
	return nil
}

// Get implements Store.
func (s *JSONStore) Get(_ context.Context, bib int) (model.Runner, error) { return s.get(bib) }

// Has implements Store.
func (s *JSONStore) Has(_ context.Context, bib int) bool { return s.has(bib) }

// Count implements Store.
func (s *JSONStore) Count(_ context.Context) int { return s.count() }

// Snapshot implements Store.
func (s *JSONStore) Snapshot(_ context.Context) []model.Runner { return s.snapshot() }

// Version implements Store.
func (s *JSONStore) Version() uint64 { return s.version.Load() }

// Put validates r, stores it and rewrites the file.
func (s *JSONStore) Put(ctx context.Context, r model.Runner) error {
	if err := r.Validate(); err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_runner")
		return err
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.set(&r)
	return s.persistLocked(ctx)
}

// Flush rewrites the file when a previous write failed. A store that holds no
// unpersisted writes leaves the file untouched, so a mapping read from a
// malformed file is never written back.
func (s *JSONStore) Flush(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.persistLocked(ctx)
}

// Close flushes when a previous write failed.
func (s *JSONStore) Close() error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.persistLocked(context.Background())
}

func (s *JSONStore) persistLocked(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.RecordPersistLatency(float64(time.Since(start).Milliseconds()))
	}()

	data, err := s.encodeJSON()
	if err == nil {
		err = writeFile(s.opts.path, data, s.opts.atomic)
	}
	if err != nil {
		s.dirty = true
		metrics.RecordPersistError()
		s.opts.log.Error(ctx, "persist runner cache failed",
			logger.String("path", s.opts.path), logger.Error(err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.dirty = false
	return nil
}

// marshalMapping renders records keyed by bib with four-space indentation and
// non-ASCII text kept verbatim.
func marshalMapping(byBib map[int]model.Runner) ([]byte, error) {
	keyed := make(map[string]model.Runner, len(byBib))
	for bib, r := range byBib {
		keyed[strconv.Itoa(bib)] = r
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(keyed); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeMapping parses a persisted mapping. Entries whose key is not a positive
// bib or whose record cannot be decoded are skipped.
func decodeMapping(ctx context.Context, data []byte, log logger.Logger) (map[int]model.Runner, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[int]model.Runner, len(raw))
	for key, msg := range raw {
		bib, err := strconv.Atoi(key)
		if err != nil || bib <= 0 {
			log.Warn(ctx, "skipping cache entry with invalid bib", logger.String("key", key))
			continue
		}
		var r model.Runner
		if err := json.Unmarshal(msg, &r); err != nil {
			log.Warn(ctx, "skipping undecodable cache entry", logger.Int("bib", bib), logger.Error(err))
			continue
		}
		r.Infos.BibNumber = bib
		out[bib] = r
	}
	return out, nil
}

func writeFile(path string, data []byte, atomic bool) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if !atomic {
		return os.WriteFile(path, data, 0o644)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
