package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"go.opentelemetry.io/otel"

	"github.com/banksean/buildcache/cacheindex"
	"github.com/banksean/buildcache/digest"
	"github.com/banksean/buildcache/evict"
	"github.com/banksean/buildcache/ir"
	"github.com/banksean/buildcache/ir/analyze"
	"github.com/banksean/buildcache/store"
)

var tracer = otel.Tracer("github.com/banksean/buildcache/cache")

// Config configures a ContentAddressableCache beyond what the store,
// index, and evict packages already take: the default TTL to stamp on
// new entries and the concurrency limits applied to reads and writes.
// MaxEvictions is accepted but not applied by this type; evictions run
// without a concurrency bound.
type Config struct {
	DefaultTTL      *time.Duration
	VerifyIntegrity bool
	MaxReads        int64
	MaxWrites       int64
	MaxEvictions    int64
}

// ContentAddressableCache is the persistent BuildCache, composing the
// content store (C5), index (C6), and eviction engine (C7) behind the
// facade's get/put/statistics contract, plus the first-writer-wins put
// policy and integrity verification the index and store don't know
// about themselves.
type ContentAddressableCache struct {
	cfg   Config
	store *store.Store
	idx   *cacheindex.Index
	evict *evict.Engine

	reads  *semaphore.Weighted
	writes *semaphore.Weighted
}

// New wires a ContentAddressableCache from its already-open
// dependencies. The caller owns starting and stopping the eviction
// engine's background GC (evict.Engine.Start/Stop).
func New(cfg Config, s *store.Store, idx *cacheindex.Index, ev *evict.Engine) *ContentAddressableCache {
	c := &ContentAddressableCache{cfg: cfg, store: s, idx: idx, evict: ev}
	if cfg.MaxReads > 0 {
		c.reads = semaphore.NewWeighted(cfg.MaxReads)
	}
	if cfg.MaxWrites > 0 {
		c.writes = semaphore.NewWeighted(cfg.MaxWrites)
	}
	return c
}

// Get looks up key. A miss, an expired entry, or a missing backing
// blob (which increments the index's error counter rather than
// failing the call — GC reconciles it later) all return (nil, nil).
func (c *ContentAddressableCache) Get(ctx context.Context, key cacheindex.CacheKey, op ir.Operation) (*CachedResult, error) {
	ctx, span := tracer.Start(ctx, "cache.Get")
	defer span.End()

	if c.reads != nil {
		if err := c.reads.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("cache: get: %w", err)
		}
		defer c.reads.Release(1)
	}

	entry, ok := c.idx.Get(key)
	if !ok {
		return nil, nil
	}
	if entry.Metadata.IsExpired {
		return nil, nil
	}

	blob, ok, err := c.store.Get(ctx, entry.Descriptor.Digest)
	if err != nil {
		return nil, fmt.Errorf("cache: get: %w", err)
	}
	if !ok {
		c.idx.IncrementErrors()
		slog.WarnContext(ctx, "cache: index entry references a missing blob", "key", key.String(), "digest", entry.Descriptor.Digest.String())
		return nil, nil
	}

	if c.cfg.VerifyIntegrity {
		sum, err := digest.Compute(blob.Bytes(), entry.Descriptor.Digest.Algorithm())
		if err != nil {
			return nil, fmt.Errorf("cache: get: verify: %w", err)
		}
		if sum.String() != entry.Descriptor.Digest.String() {
			c.idx.IncrementErrors()
			slog.ErrorContext(ctx, "cache: manifest digest mismatch", "key", key.String(), "want", entry.Descriptor.Digest.String(), "got", sum.String())
			return nil, nil
		}
	}

	manifest, err := unmarshalManifest(blob.Bytes())
	if err != nil {
		return nil, fmt.Errorf("cache: get: %w", err)
	}
	result := manifest.result()
	return &result, nil
}

// Put serializes result into a manifest, commits it through an ingest
// session, and inserts the (key, descriptor, metadata) triple into the
// index — unless key already names a live, non-expired entry, in which
// case the first write wins and this call is a no-op. A put that does
// write an entry then triggers a synchronous size-trim.
func (c *ContentAddressableCache) Put(ctx context.Context, result CachedResult, key cacheindex.CacheKey, op ir.Operation) error {
	ctx, span := tracer.Start(ctx, "cache.Put")
	defer span.End()

	if c.writes != nil {
		if err := c.writes.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("cache: put: %w", err)
		}
		defer c.writes.Release(1)
	}

	if existing, ok := c.idx.Peek(key); ok && !existing.Metadata.IsExpired {
		return nil
	}

	manifest := manifestFor(result)
	body, err := marshalManifest(manifest)
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}

	sessionID, _, err := c.store.NewIngestSession(ctx)
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	if err := c.store.WriteStaged(ctx, sessionID, "manifest", body); err != nil {
		_ = c.store.CancelIngestSession(ctx, sessionID)
		return fmt.Errorf("cache: put: %w", err)
	}
	digests, err := c.store.CompleteIngestSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	if len(digests) != 1 {
		return fmt.Errorf("cache: put: expected exactly one promoted blob, got %d", len(digests))
	}
	manifestDigest := digests[0]

	opHash, err := analyze.NodeContentDigest(op, key.OperationDigest.Algorithm())
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}

	now := time.Now()
	c.idx.Put(key, cacheindex.Descriptor{
		MediaType: manifestMediaType,
		Digest:    manifestDigest,
		Size:      int64(len(body)),
	}, cacheindex.CacheMetadata{
		CreatedAt:     now,
		AccessedAt:    now,
		OperationHash: opHash,
		Platform:      key.Platform,
		TTL:           c.cfg.DefaultTTL,
	})

	if c.evict != nil {
		if err := c.evict.TrimAfterPut(ctx); err != nil {
			slog.ErrorContext(ctx, "cache: post-put trim failed", "error", err)
		}
	}
	return nil
}

// Statistics reports the index's current counters as of now.
func (c *ContentAddressableCache) Statistics(ctx context.Context) (cacheindex.Statistics, error) {
	_, span := tracer.Start(ctx, "cache.Statistics")
	defer span.End()
	return c.idx.Statistics(time.Now()), nil
}
