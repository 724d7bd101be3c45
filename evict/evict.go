// Package evict implements the eviction engine: size and age budget
// enforcement over a cacheindex.Index, in two modes — a cheap
// synchronous trim called after every put, and a periodic GC tick that
// additionally sweeps expired entries regardless of the size budget.
package evict

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/banksean/buildcache/cacheindex"
	"github.com/banksean/buildcache/digest"
	"github.com/banksean/buildcache/store"
)

// Policy selects which entry an Engine removes next when the index is
// over budget.
type Policy string

const (
	PolicyLRU  Policy = "lru"
	PolicyFIFO Policy = "fifo"
	PolicyARC  Policy = "arc"
)

// Config controls an Engine's size budget and GC cadence. Age-based
// expiry is enforced by the index itself (cacheindex.Config.MaxAge);
// the engine only decides when to sweep for it.
type Config struct {
	Policy      Policy
	MaxSizeByte int64
	GCInterval  time.Duration
}

// Engine enforces Config's budgets against an index, deleting both the
// index entry and its backing blob through the content store so the
// two never drift apart.
type Engine struct {
	cfg   Config
	idx   *cacheindex.Index
	store *store.Store
	arc   *arcState

	done chan struct{}
	stop chan struct{}
}

// New constructs an Engine. Only PolicyARC allocates the ghost-list
// state; LRU and FIFO are stateless beyond the index itself.
func New(cfg Config, idx *cacheindex.Index, s *store.Store) *Engine {
	e := &Engine{cfg: cfg, idx: idx, store: s, done: make(chan struct{}), stop: make(chan struct{})}
	if cfg.Policy == PolicyARC {
		e.arc = newARCState()
	}
	return e
}

// TrimAfterPut runs the cheap synchronous pass: while total_size
// exceeds the budget, evict the next victim. It does not check TTLs —
// that is the GC tick's job — so a trim never blocks a put on a full
// directory scan.
func (e *Engine) TrimAfterPut(ctx context.Context) error {
	for {
		stats := e.idx.Statistics(time.Now())
		if e.cfg.MaxSizeByte <= 0 || stats.TotalSize <= e.cfg.MaxSizeByte {
			return nil
		}
		victim, ok := e.nextVictim()
		if !ok {
			return nil
		}
		if err := e.evictEntry(ctx, victim); err != nil {
			return err
		}
	}
}

// RunGC performs the expensive full pass: delete every expired entry
// regardless of size, then trim down to budget if still over. It
// records the sweep's completion time on the index for statistics().
func (e *Engine) RunGC(ctx context.Context) error {
	now := time.Now()
	for _, key := range entryKeys(e.idx.AllEntries()) {
		refreshed, ok := e.idx.PeekByString(key)
		if !ok {
			continue
		}
		if refreshed.Metadata.IsExpired {
			if err := e.evictEntry(ctx, refreshed); err != nil {
				return err
			}
		}
	}
	if err := e.TrimAfterPut(ctx); err != nil {
		return err
	}
	e.idx.RecordGC(now)
	return nil
}

// Start launches the periodic GC tick in a background goroutine. Stop
// cancels it; Start must be called at most once per Engine.
func (e *Engine) Start(ctx context.Context) {
	if e.cfg.GCInterval <= 0 {
		close(e.done)
		return
	}
	ticker := time.NewTicker(e.cfg.GCInterval)
	go func() {
		defer ticker.Stop()
		defer close(e.done)
		for {
			select {
			case <-ticker.C:
				if err := e.RunGC(ctx); err != nil {
					slog.ErrorContext(ctx, "evict: GC tick failed", "error", err)
				}
			case <-e.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop signals the GC goroutine to exit and waits for it to finish. A
// Stop on an Engine whose Start chose GCInterval <= 0 returns
// immediately, since done is already closed.
func (e *Engine) Stop() {
	select {
	case <-e.done:
		return
	default:
	}
	close(e.stop)
	<-e.done
}

func (e *Engine) evictEntry(ctx context.Context, entry cacheindex.Entry) error {
	if _, _, err := e.store.Delete(ctx, []digest.Digest{entry.Descriptor.Digest}); err != nil {
		return err
	}
	e.idx.RemoveByString([]string{entry.Key})
	if e.arc != nil {
		e.arc.onEvict(entry)
	}
	return nil
}

// nextVictim picks the entry the configured policy would remove next.
func (e *Engine) nextVictim() (cacheindex.Entry, bool) {
	entries := e.idx.AllEntries()
	if len(entries) == 0 {
		return cacheindex.Entry{}, false
	}
	switch e.cfg.Policy {
	case PolicyFIFO:
		return oldestBy(entries, func(en cacheindex.Entry) time.Time { return en.Metadata.CreatedAt })
	case PolicyARC:
		return e.arc.victim(entries)
	default: // PolicyLRU
		return oldestBy(entries, func(en cacheindex.Entry) time.Time { return en.Metadata.AccessedAt })
	}
}

func oldestBy(entries map[string]cacheindex.Entry, field func(cacheindex.Entry) time.Time) (cacheindex.Entry, bool) {
	var victim cacheindex.Entry
	found := false
	for _, key := range entryKeys(entries) {
		en := entries[key]
		if !found || field(en).Before(field(victim)) {
			victim = en
			found = true
		}
	}
	return victim, found
}

// entryKeys returns entries' keys in sorted order, so picking among
// equally-old victims is deterministic instead of depending on map
// iteration order.
func entryKeys(entries map[string]cacheindex.Entry) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
