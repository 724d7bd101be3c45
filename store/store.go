// Package store implements the content-addressable blob store (C5): a
// filesystem-backed CAS keyed by digest string, with atomic ingest
// sessions staged under ingest/<session-id>/ and promoted into
// blobs/<alg>/<hex> by rename. Follows the same write-to-temp-then-rename
// idiom and digest-keyed directory layout as the aegisvm image cache.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/banksean/buildcache/digest"
)

// SessionNotFoundError reports a reference to an ingest session id the
// store does not recognize (never opened, already completed, or already
// cancelled).
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("store: session %q not found", e.SessionID)
}

// IngestFailureError wraps a failure encountered while promoting staged
// files; already-promoted blobs from the same session are retained.
type IngestFailureError struct {
	SessionID string
	Err       error
}

func (e *IngestFailureError) Error() string {
	return fmt.Sprintf("store: ingest session %q failed: %v", e.SessionID, e.Err)
}

func (e *IngestFailureError) Unwrap() error { return e.Err }

// CompressionAlgorithm selects the transparent compression applied to
// blobs at or above CompressionConfig.MinSize.
type CompressionAlgorithm string

const (
	CompressionNone CompressionAlgorithm = "none"
	CompressionZstd CompressionAlgorithm = "zstd"
	CompressionLZ4  CompressionAlgorithm = "lz4"
	CompressionGzip CompressionAlgorithm = "gzip"
)

// CompressionConfig controls whether and how blobs are compressed at
// rest. Compression is transparent to callers: Get always returns the
// original bytes regardless of what's on disk.
type CompressionConfig struct {
	Algorithm CompressionAlgorithm
	Level     int
	MinSize   int64
}

// DefaultCompressionConfig matches CacheConfiguration's documented
// default: zstd, level 3, applied to blobs of 1024 bytes or more.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{Algorithm: CompressionZstd, Level: 3, MinSize: 1024}
}

// Store is a single-owner content-addressable blob store rooted at one
// directory. All exported methods are safe for concurrent use; the
// store's own mutex only ever guards the in-memory session table, never
// filesystem I/O, so no suspension point runs while holding it.
type Store struct {
	root        string
	compression CompressionConfig

	mu       sync.Mutex
	sessions map[string]*ingestSession
}

// Open creates (if absent) the store's directory layout under root and
// returns a ready Store.
func Open(root string, compression CompressionConfig) (*Store, error) {
	for _, alg := range []digest.Algorithm{digest.SHA256, digest.SHA384, digest.SHA512} {
		if err := os.MkdirAll(filepath.Join(root, "blobs", string(alg)), 0o755); err != nil {
			return nil, fmt.Errorf("store: open: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "ingest"), 0o755); err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	return &Store{
		root:        root,
		compression: compression,
		sessions:    map[string]*ingestSession{},
	}, nil
}

func (s *Store) blobPath(d digest.Digest) string {
	return filepath.Join(s.root, "blobs", string(d.Algorithm()), d.Hex())
}

// Blob is a handle onto a committed blob's decompressed content.
type Blob struct {
	data []byte
}

// Reader returns a fresh reader over the blob's full content.
func (b Blob) Reader() io.Reader { return bytesReader(b.data) }

// ReadAt reads length bytes starting at offset, matching the "whole or
// by (offset, length) windows" read model a content store exposes.
func (b Blob) ReadAt(offset, length int64) ([]byte, error) {
	if offset < 0 || offset > int64(len(b.data)) {
		return nil, fmt.Errorf("store: read window offset %d out of range [0,%d]", offset, len(b.data))
	}
	end := offset + length
	if length < 0 || end > int64(len(b.data)) {
		end = int64(len(b.data))
	}
	return b.data[offset:end], nil
}

// Bytes returns the blob's full decompressed content.
func (b Blob) Bytes() []byte { return b.data }

func bytesReader(p []byte) io.Reader { return &sliceReader{data: p} }

type sliceReader struct {
	data []byte
	pos  int
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

// Get returns the blob committed at digest d, or (Blob{}, false, nil) if
// no such blob exists. A read error on an existing file is returned as
// an error, not a miss.
func (s *Store) Get(ctx context.Context, d digest.Digest) (Blob, bool, error) {
	raw, err := os.ReadFile(s.blobPath(d))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Blob{}, false, nil
		}
		return Blob{}, false, fmt.Errorf("store: get %s: %w", d, err)
	}
	decoded, err := decompress(raw)
	if err != nil {
		return Blob{}, false, fmt.Errorf("store: get %s: %w", d, err)
	}
	return Blob{data: decoded}, true, nil
}

// GetDecoded reads the blob at d and JSON-decodes it into a value of
// type T. It reports (zero, false, nil) on a missing blob, matching
// Get's miss semantics.
func GetDecoded[T any](ctx context.Context, s *Store, d digest.Digest) (T, bool, error) {
	var zero T
	blob, ok, err := s.Get(ctx, d)
	if err != nil || !ok {
		return zero, ok, err
	}
	var v T
	if err := json.Unmarshal(blob.Bytes(), &v); err != nil {
		return zero, false, fmt.Errorf("store: get decoded %s: %w", d, err)
	}
	return v, true, nil
}

// Put writes value at the given digest directly, skipping the ingest
// session workflow — intended for small, already-fully-available
// structured blobs such as manifests. The caller is responsible for d
// matching digest.Compute(value, d.Algorithm()); Put does not
// re-validate this, trusting the caller for internal writes.
func (s *Store) Put(ctx context.Context, value []byte, d digest.Digest) error {
	encoded, err := compress(value, s.compression)
	if err != nil {
		return fmt.Errorf("store: put %s: %w", d, err)
	}
	path := s.blobPath(d)
	tmp := path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("store: put %s: %w", d, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: put %s: %w", d, err)
	}
	return nil
}

// Delete removes the listed blobs and reports how many bytes were
// freed. Digests with no corresponding blob are silently skipped.
func (s *Store) Delete(ctx context.Context, digests []digest.Digest) ([]digest.Digest, int64, error) {
	var removed []digest.Digest
	var freed int64
	for _, d := range digests {
		path := s.blobPath(d)
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return removed, freed, fmt.Errorf("store: delete %s: %w", d, err)
		}
		if err := os.Remove(path); err != nil {
			return removed, freed, fmt.Errorf("store: delete %s: %w", d, err)
		}
		removed = append(removed, d)
		freed += info.Size()
	}
	return removed, freed, nil
}

// DeleteKeeping removes every committed blob whose digest is not in
// keep, returning the removed digests and bytes freed.
func (s *Store) DeleteKeeping(ctx context.Context, keep map[string]struct{}) ([]digest.Digest, int64, error) {
	var toDelete []digest.Digest
	for _, alg := range []digest.Algorithm{digest.SHA256, digest.SHA384, digest.SHA512} {
		dir := filepath.Join(s.root, "blobs", string(alg))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, 0, fmt.Errorf("store: delete keeping: %w", err)
		}
		for _, e := range entries {
			key := string(alg) + ":" + e.Name()
			if _, ok := keep[key]; ok {
				continue
			}
			d, err := digest.Parse(key)
			if err != nil {
				slog.WarnContext(ctx, "store: skipping unparseable blob filename during GC", "path", filepath.Join(dir, e.Name()))
				continue
			}
			toDelete = append(toDelete, d)
		}
	}
	return s.Delete(ctx, toDelete)
}
