package cacheindex

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banksean/buildcache/digest"
	"github.com/banksean/buildcache/ir"
)

func TestLoadMissingFileYieldsEmptyIndex(t *testing.T) {
	idx, err := Load(context.Background(), filepath.Join(t.TempDir(), "cache.json"), Config{MaxAge: time.Hour})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(idx.AllEntries()) != 0 {
		t.Errorf("AllEntries() not empty for a missing snapshot file")
	}
}

func TestLoadCorruptFileYieldsEmptyIndexNoError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	idx, err := Load(context.Background(), path, Config{MaxAge: time.Hour})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(idx.AllEntries()) != 0 {
		t.Errorf("AllEntries() not empty for a corrupt snapshot file")
	}
}

func TestSaveThenLoadRoundTripsEntries(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	idx := New(Config{MaxAge: time.Hour, Now: func() time.Time { return now }})

	opDigest, err := digest.Compute([]byte("op"), digest.SHA256)
	if err != nil {
		t.Fatalf("digest.Compute: %v", err)
	}
	blobDigest, err := digest.Compute([]byte("blob"), digest.SHA256)
	if err != nil {
		t.Fatalf("digest.Compute: %v", err)
	}
	ttl := 5 * time.Minute
	key := CacheKey{OperationDigest: opDigest, Platform: ir.Platform{OS: "linux", Architecture: "amd64"}}
	meta := CacheMetadata{
		CreatedAt:     now,
		AccessedAt:    now,
		OperationHash: opDigest,
		Platform:      ir.Platform{OS: "linux", Architecture: "amd64"},
		TTL:           &ttl,
		Tags:          map[string]string{"stage": "build"},
	}
	idx.Put(key, Descriptor{MediaType: "application/vnd.buildcache.blob", Digest: blobDigest, Size: 4}, meta)
	idx.RecordGC(now)

	path := filepath.Join(t.TempDir(), "cache.json")
	if err := Save(idx, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(context.Background(), path, Config{MaxAge: time.Hour, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	entry, ok := loaded.GetByString(key.String())
	if !ok {
		t.Fatalf("GetByString: expected the persisted entry to round-trip")
	}
	if diff := cmp.Diff(entry.Descriptor.Digest.String(), blobDigest.String()); diff != "" {
		t.Errorf("Descriptor.Digest mismatch (-got +want):\n%s", diff)
	}
	if entry.Descriptor.Size != 4 {
		t.Errorf("Size = %d, want 4", entry.Descriptor.Size)
	}
	if entry.Metadata.Tags["stage"] != "build" {
		t.Errorf("Tags[stage] = %q, want %q", entry.Metadata.Tags["stage"], "build")
	}
	if entry.Metadata.TTL == nil || *entry.Metadata.TTL != ttl {
		t.Errorf("TTL = %v, want %v", entry.Metadata.TTL, ttl)
	}
}

func TestLoadDropsUnparseableEntryButKeepsTheRest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	body := `{
		"version": "1.0",
		"entries": [
			{"key": "bad",
			 "descriptor": {"mediaType": "application/vnd.buildcache.blob", "digest": "not-a-digest", "size": 0},
			 "metadata": {"operationHash": "sha256:` + repeatHexChar("1", 64) + `", "platform": {"os": "linux", "architecture": "amd64"}}},
			{"key": "good",
			 "descriptor": {"mediaType": "application/vnd.buildcache.blob", "digest": "sha256:` + repeatHexChar("2", 64) + `", "size": 10},
			 "metadata": {"operationHash": "sha256:` + repeatHexChar("1", 64) + `", "platform": {"os": "linux", "architecture": "amd64"}}}
		],
		"stats": {"hits": 3, "misses": 1}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	idx, err := Load(context.Background(), path, Config{MaxAge: time.Hour})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	entries := idx.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1 (the unparseable entry should be dropped)", len(entries))
	}
	if _, ok := entries["good"]; !ok {
		t.Errorf("expected the well-formed entry %q to survive", "good")
	}
}

func TestSaveWritesDocumentedSchemaShape(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	idx := New(Config{MaxAge: time.Hour, Now: func() time.Time { return now }})

	opDigest, err := digest.Compute([]byte("op"), digest.SHA256)
	if err != nil {
		t.Fatalf("digest.Compute: %v", err)
	}
	blobDigest, err := digest.Compute([]byte("blob"), digest.SHA256)
	if err != nil {
		t.Fatalf("digest.Compute: %v", err)
	}
	ttl := 5 * time.Minute
	key := CacheKey{OperationDigest: opDigest, Platform: ir.Platform{OS: "linux", Architecture: "amd64"}}
	meta := CacheMetadata{
		CreatedAt:     now,
		AccessedAt:    now,
		OperationHash: opDigest,
		Platform:      ir.Platform{OS: "linux", Architecture: "amd64"},
		TTL:           &ttl,
	}
	idx.Put(key, Descriptor{MediaType: "application/vnd.buildcache.blob", Digest: blobDigest, Size: 4}, meta)

	path := filepath.Join(t.TempDir(), "cache.json")
	if err := Save(idx, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	entries, _ := generic["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("entries length = %d, want 1", len(entries))
	}
	entry, _ := entries[0].(map[string]any)
	descriptor, ok := entry["descriptor"].(map[string]any)
	if !ok {
		t.Fatalf("entry.descriptor is not a nested object: %#v", entry["descriptor"])
	}
	if _, ok := descriptor["mediaType"]; !ok {
		t.Errorf("descriptor missing mediaType field")
	}
	metadata, ok := entry["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("entry.metadata is not a nested object: %#v", entry["metadata"])
	}
	platform, ok := metadata["platform"].(map[string]any)
	if !ok {
		t.Fatalf("metadata.platform is not a nested object: %#v", metadata["platform"])
	}
	if platform["os"] != "linux" || platform["architecture"] != "amd64" {
		t.Errorf("platform = %#v, want {os:linux architecture:amd64}", platform)
	}
	if _, ok := metadata["ttl"]; !ok {
		t.Errorf("metadata missing ttl field (documented schema names it ttl, not ttlSeconds)")
	}
}

func repeatHexChar(c string, n int) string {
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, c[0])
	}
	return string(out)
}
