// Package dedupe guards evaluation confirmation so each evaluation is
// awarded at most once.
package dedupe

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxSize = 50_000

// Deduper records confirmed evaluation IDs to ensure at-most-once awards.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Seen reports whether id is recorded without recording it.
	Seen(ctx context.Context, id string) bool

	// Unrecord removes an ID so the confirm can be retried. Only used when
	// the ledger write failed after the ID was recorded.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper implements Deduper.
// Bounded mode (maxSize > 0) evicts the least recently recorded ID.
// Unbounded mode (maxSize <= 0) keeps every ID in a plain map.
type inMemoryDeduper struct {
	mu      sync.Mutex
	maxSize int
	bounded *lru.Cache[string, struct{}]
	seen    map[string]struct{}
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}

	if d.maxSize > 0 {
		// lru.New only fails for a non-positive size.
		d.bounded, _ = lru.New[string, struct{}](d.maxSize)
	} else {
		d.seen = make(map[string]struct{})
	}
	return d
}

// SeenAndRecord atomically checks if id was seen and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bounded != nil {
		// Peek so a repeated confirm does not refresh the entry's age.
		if _, ok := d.bounded.Peek(id); ok {
			return true
		}
		d.bounded.Add(id, struct{}{})
		return false
	}

	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	return false
}

// Seen reports whether id is recorded.
func (d *inMemoryDeduper) Seen(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bounded != nil {
		return d.bounded.Contains(id)
	}
	_, ok := d.seen[id]
	return ok
}

// Unrecord removes an ID from the seen set, allowing it to be retried.
func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bounded != nil {
		d.bounded.Remove(id)
		return
	}
	delete(d.seen, id)
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bounded != nil {
		return int64(d.bounded.Len())
	}
	return int64(len(d.seen))
}
