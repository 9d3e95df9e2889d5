// Package repository holds the runner cache: an in-memory mapping from bib to
// runner record, persisted to a JSON file or a SQLite database.
package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/okian/raidtrack/internal/domain/model"
	"github.com/okian/raidtrack/pkg/metrics"
)

// Store provides read/write access to the runner cache.
//
// A single writer is expected; readers may run concurrently with it and only
// ever observe fully built records.
type Store interface {
	// Load replaces the in-memory mapping with the persisted one.
	// A missing backing file yields an empty cache and no error.
	Load(ctx context.Context) error
	// Get returns a copy of the record for bib, or ErrNotFound.
	Get(ctx context.Context, bib int) (model.Runner, error)
	// Put inserts or overwrites the record then persists. On ErrPersist the
	// in-memory mapping still holds the record.
	Put(ctx context.Context, r model.Runner) error
	// Has reports whether bib is cached.
	Has(ctx context.Context, bib int) bool
	// Flush persists writes that have not reached storage yet. It never
	// rewrites storage that holds no pending writes.
	Flush(ctx context.Context) error
	// Snapshot returns a copy of every record ordered by bib.
	Snapshot(ctx context.Context) []model.Runner
	// Count returns the number of cached records.
	Count(ctx context.Context) int
	// Version changes every time the mapping changes.
	Version() uint64
	Close() error
}

// Drivers accepted by Open.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Open builds the store for driver.
func Open(ctx context.Context, driver string, opts ...Option) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverJSON:
		return NewJSONStore(opts...), nil
	case DriverSQLite:
		return OpenSQLite(ctx, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// memory is the authoritative mapping shared by the store implementations.
type memory struct {
	mu      sync.RWMutex
	byBib   map[int]model.Runner
	version atomic.Uint64
}

func newMemory() *memory {
	return &memory{byBib: make(map[int]model.Runner)}
}

func (m *memory) get(bib int) (model.Runner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byBib[bib]
	if !ok {
		return model.Runner{}, ErrNotFound
	}
	return r.Clone(), nil
}

func (m *memory) has(bib int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byBib[bib]
	return ok
}

func (m *memory) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byBib)
}

func (m *memory) snapshot() []model.Runner {
	m.mu.RLock()
	out := make([]model.Runner, 0, len(m.byBib))
	for _, r := range m.byBib {
		out = append(out, r.Clone())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Infos.BibNumber < out[j].Infos.BibNumber })
	return out
}

// set stores a private copy of r.
func (m *memory) set(r *model.Runner) {
	c := r.Clone()
	m.mu.Lock()
	m.byBib[c.Infos.BibNumber] = c
	n := len(m.byBib)
	m.mu.Unlock()
	m.version.Add(1)
	metrics.UpdateRunnersStored(n)
}

func (m *memory) replace(byBib map[int]model.Runner) {
	m.mu.Lock()
	m.byBib = byBib
	n := len(byBib)
	m.mu.Unlock()
	m.version.Add(1)
	metrics.UpdateRunnersStored(n)
}

// encodeJSON renders the mapping keyed by bib string. Holding the read lock
// keeps the encoded view consistent.
func (m *memory) encodeJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return marshalMapping(m.byBib)
}
