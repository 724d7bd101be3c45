package cache

import (
	"context"

	"github.com/banksean/buildcache/cacheindex"
	"github.com/banksean/buildcache/ir"
)

// NoOpBuildCache always misses, accepts puts silently without storing
// anything, and reports zero statistics. It logs nothing, unlike the
// other two implementations.
type NoOpBuildCache struct{}

func (NoOpBuildCache) Get(ctx context.Context, key cacheindex.CacheKey, op ir.Operation) (*CachedResult, error) {
	return nil, nil
}

func (NoOpBuildCache) Put(ctx context.Context, result CachedResult, key cacheindex.CacheKey, op ir.Operation) error {
	return nil
}

func (NoOpBuildCache) Statistics(ctx context.Context) (cacheindex.Statistics, error) {
	return cacheindex.Statistics{}, nil
}
