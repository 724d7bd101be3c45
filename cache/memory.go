package cache

import (
	"context"
	"sync"
	"time"

	"github.com/banksean/buildcache/cacheindex"
	"github.com/banksean/buildcache/ir"
	"github.com/banksean/buildcache/ir/analyze"
)

// MemoryBuildCache is the in-process BuildCache: no persistence, no
// eviction, but the same get/put/statistics contract as
// ContentAddressableCache, including first-writer-wins. Entries written
// by Put carry no TTL and never expire; only an entry whose metadata
// carries a TTL is treated as a miss once that TTL has passed.
// Its total_size is a logical estimate (len(manifest bytes)), not a
// manifest blob's on-disk size — tests compare entry_count, not
// total_size, across the two implementations for this reason.
type MemoryBuildCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	hits    uint64
	misses  uint64

	now func() time.Time
}

type memoryEntry struct {
	manifest CacheManifest
	size     int64
	meta     cacheindex.CacheMetadata
}

// NewMemory constructs an empty MemoryBuildCache.
func NewMemory() *MemoryBuildCache {
	return &MemoryBuildCache{entries: map[string]memoryEntry{}, now: time.Now}
}

func (m *MemoryBuildCache) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

// Get mirrors ContentAddressableCache.Get's miss/expiry semantics
// without touching a content store.
func (m *MemoryBuildCache) Get(ctx context.Context, key cacheindex.CacheKey, op ir.Operation) (*CachedResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key.String()]
	if !ok {
		m.misses++
		return nil, nil
	}
	m.hits++

	now := m.clock()
	ttl := e.meta.TTL
	if ttl != nil && now.Sub(e.meta.CreatedAt) > *ttl {
		return nil, nil
	}
	e.meta.AccessedAt = now
	m.entries[key.String()] = e

	result := e.manifest.result()
	return &result, nil
}

// Put mirrors ContentAddressableCache.Put's first-writer-wins policy.
func (m *MemoryBuildCache) Put(ctx context.Context, result CachedResult, key cacheindex.CacheKey, op ir.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[key.String()]; ok {
		ttl := existing.meta.TTL
		if ttl == nil || m.clock().Sub(existing.meta.CreatedAt) <= *ttl {
			return nil
		}
	}

	manifest := manifestFor(result)
	body, err := marshalManifest(manifest)
	if err != nil {
		return err
	}
	now := m.clock()

	opHash, err := analyze.NodeContentDigest(op, key.OperationDigest.Algorithm())
	if err != nil {
		return err
	}

	m.entries[key.String()] = memoryEntry{
		manifest: manifest,
		size:     int64(len(body)),
		meta: cacheindex.CacheMetadata{
			CreatedAt:     now,
			AccessedAt:    now,
			OperationHash: opHash,
			Platform:      key.Platform,
		},
	}
	return nil
}

// Statistics reports entry_count and a logical total_size; hit_rate
// follows the same hits/(hits+misses) formula as the persistent cache.
func (m *MemoryBuildCache) Statistics(ctx context.Context) (cacheindex.Statistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := cacheindex.Statistics{EntryCount: len(m.entries)}
	for _, e := range m.entries {
		st.TotalSize += e.size
	}
	if st.EntryCount > 0 {
		st.AverageEntrySize = float64(st.TotalSize) / float64(st.EntryCount)
	}
	if total := m.hits + m.misses; total > 0 {
		st.HitRate = float64(m.hits) / float64(total)
	}
	return st, nil
}
