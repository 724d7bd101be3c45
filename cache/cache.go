// Package cache implements the cache facade (C8): the BuildCache
// interface and its three implementations — ContentAddressableCache
// (persistent, backed by the content store, index, and eviction
// engine), MemoryBuildCache (in-process, no persistence or eviction,
// same contract), and NoOpBuildCache (always misses).
package cache

import (
	"context"

	"github.com/banksean/buildcache/cacheindex"
	"github.com/banksean/buildcache/ir"
)

// BuildCache is the surface an external builder consumes: look up a
// memoized result for a key/operation pair, record one, and report
// statistics.
type BuildCache interface {
	Get(ctx context.Context, key cacheindex.CacheKey, op ir.Operation) (*CachedResult, error)
	Put(ctx context.Context, result CachedResult, key cacheindex.CacheKey, op ir.Operation) error
	Statistics(ctx context.Context) (cacheindex.Statistics, error)
}

var (
	_ BuildCache = (*ContentAddressableCache)(nil)
	_ BuildCache = (*MemoryBuildCache)(nil)
	_ BuildCache = NoOpBuildCache{}
)
