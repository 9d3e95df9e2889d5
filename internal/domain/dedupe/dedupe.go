// Package dedupe collapses repeated bibs so each is scanned at most once per batch.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen bibs.
type Deduper interface {
	// SeenAndRecord reports whether bib was already recorded and records it if not.
	SeenAndRecord(ctx context.Context, bib int) bool
	Size() int
}

// inMemoryDeduper keeps a set plus insertion order for bounded eviction.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[int]struct{}
	order   []int
	maxSize int
}

// NewInMemoryDeduper creates a deduper. It is unbounded unless WithMaxSize is given.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{seen: make(map[int]struct{})}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, bib int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[bib]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[bib] = struct{}{}
	if d.maxSize > 0 {
		d.order = append(d.order, bib)
	}
	return false
}

// evictOldest drops the earliest recorded bib. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	if len(d.order) == 0 {
		return
	}
	delete(d.seen, d.order[0])
	d.order = d.order[1:]
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
