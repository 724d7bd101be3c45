package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banksean/buildcache/digest"
)

// ingestSession tracks one open staging area. Sessions are single-writer
// by construction: only the Store's own methods touch sessions, and each
// is looked up by id under Store.mu before any filesystem work begins.
type ingestSession struct {
	id  string
	dir string
}

// NewIngestSession creates an isolated staging directory and returns its
// session id. Files may be written directly under the returned directory
// by the caller (e.g. via os.WriteFile(filepath.Join(dir, name), ...))
// before calling CompleteIngestSession.
func (s *Store) NewIngestSession(ctx context.Context) (sessionID string, stagingDir string, err error) {
	id := uuid.NewString()
	dir := filepath.Join(s.root, "ingest", id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("store: new ingest session: %w", err)
	}
	s.mu.Lock()
	s.sessions[id] = &ingestSession{id: id, dir: dir}
	s.mu.Unlock()
	return id, dir, nil
}

// WriteStaged writes name (relative to the session's staging directory)
// with the given content. A convenience for callers that don't want to
// build the path themselves.
func (s *Store) WriteStaged(ctx context.Context, sessionID, name string, content []byte) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return &SessionNotFoundError{SessionID: sessionID}
	}
	path := filepath.Join(sess.dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("store: write staged file: %w", err)
	}
	return nil
}

// CompleteIngestSession promotes every file staged in the session to a
// committed blob keyed by its SHA-256 digest, then removes the staging
// directory regardless of outcome. On partial failure, blobs already
// promoted before the error are retained; the error is returned wrapped
// in IngestFailureError.
func (s *Store) CompleteIngestSession(ctx context.Context, sessionID string) ([]digest.Digest, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return nil, &SessionNotFoundError{SessionID: sessionID}
	}
	defer os.RemoveAll(sess.dir)

	entries, err := os.ReadDir(sess.dir)
	if err != nil {
		return nil, &IngestFailureError{SessionID: sessionID, Err: err}
	}

	digests := make([]digest.Digest, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			if e.IsDir() {
				return fmt.Errorf("unexpected subdirectory %q in ingest session", e.Name())
			}
			raw, err := os.ReadFile(filepath.Join(sess.dir, e.Name()))
			if err != nil {
				return err
			}
			d, err := digest.Compute(raw, digest.SHA256)
			if err != nil {
				return err
			}
			if err := s.promote(gctx, raw, d); err != nil {
				return err
			}
			digests[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &IngestFailureError{SessionID: sessionID, Err: err}
	}

	slog.InfoContext(ctx, "store: completed ingest session", "session_id", sessionID, "blob_count", len(digests))
	return digests, nil
}

// promote atomically writes raw at the blob path for d, applying the
// store's configured compression. It is idempotent: promoting the same
// digest twice is a harmless overwrite, since content-addressing
// guarantees the bytes are identical.
func (s *Store) promote(ctx context.Context, raw []byte, d digest.Digest) error {
	return s.Put(ctx, raw, d)
}

// CancelIngestSession discards a session's staging directory without
// promoting anything.
func (s *Store) CancelIngestSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return &SessionNotFoundError{SessionID: sessionID}
	}
	if err := os.RemoveAll(sess.dir); err != nil {
		return fmt.Errorf("store: cancel ingest session: %w", err)
	}
	return nil
}
