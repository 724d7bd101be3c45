package cacheindex

import (
	"time"

	"github.com/banksean/buildcache/internal/humanize"
)

// OperationMetric is the per-operation-kind slice of statistics() —
// counts and bytes broken down by the kind of build operation an entry
// memoizes (exec, filesystem, metadata, image).
type OperationMetric struct {
	EntryCount int
	TotalSize  int64
}

// ShardInfo describes the index's sharding layout, when sharding is
// enabled. A nil *ShardInfo in Statistics means sharding is off.
type ShardInfo struct {
	ShardCount int
	EntriesPer []int
}

// Statistics is the index's half of statistics(): the counters the
// index itself can compute from its entry map and hit/miss tallies.
// EvictionPolicy, CompressionRatio, OperationMetrics, and ShardInfo are
// left zero-valued here, since the index has no notion of eviction
// policy, on-disk compression, or sharding topology. Nothing fills them
// in later: ContentAddressableCache.Statistics returns this struct as
// the index computed it.
type Statistics struct {
	EntryCount         int
	TotalSize          int64
	AverageEntrySize   float64
	HitRate            float64
	OldestEntryAge     time.Duration
	MostRecentEntryAge time.Duration
	EvictionPolicy     string
	CompressionRatio   float64
	OperationMetrics   map[string]OperationMetric
	ErrorCount         uint64
	LastGCTime         time.Time
	ShardInfo          *ShardInfo
}

// HumanTotalSize renders TotalSize in human-readable form, for log lines
// and diagnostic output.
func (s Statistics) HumanTotalSize() string {
	return humanize.Bytes(s.TotalSize)
}

// Statistics computes the index-local portion of statistics() as of
// now. hit_rate is 0 when no gets have been observed yet, matching the
// documented hits/(hits+misses) formula's 0/0 edge case.
func (idx *Index) Statistics(now time.Time) Statistics {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	st := Statistics{
		EntryCount: len(idx.entries),
		ErrorCount: idx.errors,
		LastGCTime: idx.lastGC,
	}

	var oldest, newest time.Time
	for _, e := range idx.entries {
		st.TotalSize += e.Descriptor.Size
		if oldest.IsZero() || e.Metadata.CreatedAt.Before(oldest) {
			oldest = e.Metadata.CreatedAt
		}
		if newest.IsZero() || e.Metadata.AccessedAt.After(newest) {
			newest = e.Metadata.AccessedAt
		}
	}
	if st.EntryCount > 0 {
		st.AverageEntrySize = float64(st.TotalSize) / float64(st.EntryCount)
	}
	if !oldest.IsZero() {
		st.OldestEntryAge = now.Sub(oldest)
	}
	if !newest.IsZero() {
		st.MostRecentEntryAge = now.Sub(newest)
	}

	total := idx.hits + idx.misses
	if total > 0 {
		st.HitRate = float64(idx.hits) / float64(total)
	}
	return st
}
