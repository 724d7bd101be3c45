package cacheindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/banksean/buildcache/digest"
	"github.com/banksean/buildcache/ir"
)

const snapshotVersion = "1.0"

// snapshotDescriptor and snapshotMetadata mirror Descriptor and
// CacheMetadata's externally-documented on-disk shape: nested objects
// under each entry, field names and a platform sub-object matching the
// cache.json schema a persistent cache's root directory exposes to
// anything that reads it directly. Only CacheMetadata.TTL's
// representation as seconds (rather than a Go duration string) and
// the snapshotStats extension fields below are implementation
// choices not pinned down by that schema.
type snapshotDescriptor struct {
	MediaType string `json:"mediaType"`
	Digest    string `json:"digest"`
	Size      int64  `json:"size"`
}

type snapshotMetadata struct {
	CreatedAt     time.Time         `json:"createdAt"`
	AccessedAt    time.Time         `json:"accessedAt"`
	OperationHash string            `json:"operationHash"`
	Platform      ir.Platform       `json:"platform"`
	TTL           *float64          `json:"ttl"`
	Tags          map[string]string `json:"tags,omitempty"`
}

type snapshotEntry struct {
	Key        string             `json:"key"`
	Descriptor snapshotDescriptor `json:"descriptor"`
	Metadata   snapshotMetadata   `json:"metadata"`
}

// snapshotStats carries the documented hits/misses pair plus two
// extension fields (errors, lastGC) that are not shown in the
// documented cache.json example but back statistics()'s error_count
// and last_gc_time, which must also survive a restart.
type snapshotStats struct {
	Hits   uint64     `json:"hits"`
	Misses uint64     `json:"misses"`
	Errors uint64     `json:"errors,omitempty"`
	LastGC *time.Time `json:"lastGC,omitempty"`
}

type snapshot struct {
	Version string          `json:"version"`
	Entries []snapshotEntry `json:"entries"`
	Stats   snapshotStats   `json:"stats"`
}

// Save writes idx's current state to path as a single JSON document,
// via write-to-temp-then-rename so a crash or concurrent reader never
// observes a partial file.
func Save(idx *Index, path string) error {
	idx.mu.Lock()
	snap := snapshot{
		Version: snapshotVersion,
		Stats: snapshotStats{
			Hits:   idx.hits,
			Misses: idx.misses,
			Errors: idx.errors,
		},
	}
	if !idx.lastGC.IsZero() {
		t := idx.lastGC
		snap.Stats.LastGC = &t
	}
	for _, k := range sortedKeys(idx.entries) {
		e := idx.entries[k]
		var ttl *float64
		if e.Metadata.TTL != nil {
			s := e.Metadata.TTL.Seconds()
			ttl = &s
		}
		snap.Entries = append(snap.Entries, snapshotEntry{
			Key: e.Key,
			Descriptor: snapshotDescriptor{
				MediaType: e.Descriptor.MediaType,
				Digest:    e.Descriptor.Digest.String(),
				Size:      e.Descriptor.Size,
			},
			Metadata: snapshotMetadata{
				CreatedAt:     e.Metadata.CreatedAt,
				AccessedAt:    e.Metadata.AccessedAt,
				OperationHash: e.Metadata.OperationHash.String(),
				Platform:      e.Metadata.Platform,
				TTL:           ttl,
				Tags:          e.Metadata.Tags,
			},
		})
	}
	idx.mu.Unlock()

	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("cacheindex: save %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, ".cache.json.tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("cacheindex: save %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cacheindex: save %s: %w", path, err)
	}
	idx.clearDirty()
	return nil
}

// Load reads path into a fresh Index configured with cfg. A missing file
// is not an error: it yields an empty index, matching an unseeded cache
// directory's usual state. A corrupt or unparseable file also yields an
// empty index, but is logged once rather than returned as an error —
// losing an index recovers into an empty cache, not a failure to start.
//
// Load restores the digest-typed fields (descriptor digest, operation
// hash) by parsing their canonical string forms; an entry whose digest
// fails to parse is dropped and logged, the rest of the snapshot is kept.
func Load(ctx context.Context, path string, cfg Config) (*Index, error) {
	idx := New(cfg)

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return idx, nil
		}
		return nil, fmt.Errorf("cacheindex: load %s: %w", path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		slog.WarnContext(ctx, "cacheindex: snapshot unreadable, starting from an empty index", "path", path, "error", err)
		return idx, nil
	}

	idx.hits = snap.Stats.Hits
	idx.misses = snap.Stats.Misses
	idx.errors = snap.Stats.Errors
	if snap.Stats.LastGC != nil {
		idx.lastGC = *snap.Stats.LastGC
	}

	for _, se := range snap.Entries {
		e, ok := decodeSnapshotEntry(se)
		if !ok {
			slog.WarnContext(ctx, "cacheindex: dropping unparseable snapshot entry", "key", se.Key, "path", path)
			continue
		}
		idx.entries[e.Key] = e
	}
	return idx, nil
}

func decodeSnapshotEntry(se snapshotEntry) (Entry, bool) {
	d, err := digest.Parse(se.Descriptor.Digest)
	if err != nil {
		return Entry{}, false
	}
	opHash, err := digest.Parse(se.Metadata.OperationHash)
	if err != nil {
		return Entry{}, false
	}
	var ttl *time.Duration
	if se.Metadata.TTL != nil {
		d := time.Duration(*se.Metadata.TTL * float64(time.Second))
		ttl = &d
	}
	return Entry{
		Key: se.Key,
		Descriptor: Descriptor{
			MediaType: se.Descriptor.MediaType,
			Digest:    d,
			Size:      se.Descriptor.Size,
		},
		Metadata: CacheMetadata{
			CreatedAt:     se.Metadata.CreatedAt,
			AccessedAt:    se.Metadata.AccessedAt,
			OperationHash: opHash,
			Platform:      se.Metadata.Platform,
			TTL:           ttl,
			Tags:          se.Metadata.Tags,
		},
	}, true
}
