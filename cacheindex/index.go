package cacheindex

import (
	"sync"
	"time"
)

// Config controls the expiry arithmetic an Index applies on every read.
// It does not control eviction by size — that is the evict package's job.
type Config struct {
	MaxAge     time.Duration
	DefaultTTL *time.Duration
	// Now overrides the index's clock; nil means time.Now. Tests use this
	// to make expiry deterministic instead of sleeping.
	Now func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Index is the single-owner, mutex-guarded in-memory cache index. Every
// exported method is safe for concurrent use; the mutex is never held
// across a suspension point (persistence happens outside the lock).
type Index struct {
	cfg Config

	mu      sync.Mutex
	entries map[string]Entry
	hits    uint64
	misses  uint64
	errors  uint64
	lastGC  time.Time
	dirty   bool
}

// New creates an empty index with the given expiry configuration.
func New(cfg Config) *Index {
	return &Index{cfg: cfg, entries: map[string]Entry{}}
}

// Put inserts or replaces the mapping for key unconditionally. Callers
// that need first-writer-wins semantics must call Peek first themselves;
// the facade layer owns that policy, not the index.
func (idx *Index) Put(key CacheKey, d Descriptor, m CacheMetadata) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[key.String()] = Entry{Key: key.String(), Descriptor: d, Metadata: m}
	idx.dirty = true
}

// Get looks up key. On a miss it increments the miss counter and
// returns (Entry{}, false). On a hit it increments the hit counter and,
// only if the entry is not expired, advances accessedAt monotonically;
// the returned entry's Metadata.IsExpired reflects the freshly computed
// expiry so the cache facade can decide whether to treat the hit as a
// miss.
func (idx *Index) Get(key CacheKey) (Entry, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.getLocked(key.String())
}

// GetByString looks up an already-canonicalized key string, for callers
// (snapshot restore tests, diagnostics) that already hold one.
func (idx *Index) GetByString(key string) (Entry, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.getLocked(key)
}

// Peek looks up key the same way Get does — including the freshly
// computed Metadata.IsExpired — but never mutates hit/miss counters or
// AccessedAt. Callers that need to know whether an entry already
// exists as an internal precondition (a first-writer-wins check before
// Put, a GC sweep re-checking an entry's expiry) must use Peek, not
// Get: Get is the public, stats-counted lookup path and reserving it
// for genuine client reads keeps statistics().hit_rate meaning what it
// says — the fraction of real cache clients that got a hit — instead
// of being diluted by the cache's own internal bookkeeping.
func (idx *Index) Peek(key CacheKey) (Entry, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.peekLocked(key.String())
}

// PeekByString is Peek for callers that already hold a canonical key
// string (the eviction engine, which works from Entry.Key).
func (idx *Index) PeekByString(key string) (Entry, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.peekLocked(key)
}

func (idx *Index) getLocked(key string) (Entry, bool) {
	e, ok := idx.peekLocked(key)
	if !ok {
		idx.misses++
		return Entry{}, false
	}
	idx.hits++
	if !e.Metadata.IsExpired {
		e.Metadata.AccessedAt = idx.cfg.now()
		idx.entries[key] = e
		idx.dirty = true
	}
	return e, true
}

func (idx *Index) peekLocked(key string) (Entry, bool) {
	e, ok := idx.entries[key]
	if !ok {
		return Entry{}, false
	}
	now := idx.cfg.now()
	ttl := effectiveTTL(e.Metadata.TTL, idx.cfg.DefaultTTL, idx.cfg.MaxAge)
	e.Metadata.IsExpired = ttl > 0 && now.Sub(e.Metadata.CreatedAt) > ttl
	return e, true
}

// Remove deletes the given keys in bulk.
func (idx *Index) Remove(keys []CacheKey) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, k := range keys {
		delete(idx.entries, k.String())
	}
	idx.dirty = true
}

// RemoveByString deletes entries by their canonical key string, used by
// the eviction engine which works from Entry.Key rather than a
// reconstructed CacheKey.
func (idx *Index) RemoveByString(keys []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, k := range keys {
		delete(idx.entries, k)
	}
	idx.dirty = true
}

// AllEntries returns a snapshot copy of every entry, keyed by its
// canonical key string.
func (idx *Index) AllEntries() map[string]Entry {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make(map[string]Entry, len(idx.entries))
	for k, v := range idx.entries {
		out[k] = v
	}
	return out
}

// IncrementErrors bumps the index's error counter, used by the cache
// facade when it encounters a MissingBlob condition.
func (idx *Index) IncrementErrors() {
	idx.mu.Lock()
	idx.errors++
	idx.mu.Unlock()
}

// RecordGC stamps the index's last-GC timestamp, used by statistics().
func (idx *Index) RecordGC(t time.Time) {
	idx.mu.Lock()
	idx.lastGC = t
	idx.dirty = true
	idx.mu.Unlock()
}

// Dirty reports whether the index has unflushed mutations.
func (idx *Index) Dirty() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.dirty
}

// clearDirty is called by the persistence layer after a successful
// flush.
func (idx *Index) clearDirty() {
	idx.mu.Lock()
	idx.dirty = false
	idx.mu.Unlock()
}
