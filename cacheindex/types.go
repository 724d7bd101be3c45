// Package cacheindex implements the cache key -> (descriptor, metadata)
// index: an in-memory authoritative map with hit/miss accounting and an
// atomically-rewritten cache.json snapshot, using the same
// write-to-temp-then-rename idiom as the content store.
package cacheindex

import (
	"sort"
	"strings"
	"time"

	"github.com/banksean/buildcache/digest"
	"github.com/banksean/buildcache/ir"
)

// CacheKey identifies a memoization slot: an operation's content digest,
// the ordered digests of its inputs, and the target platform. Order of
// Inputs is semantically meaningful.
type CacheKey struct {
	OperationDigest digest.Digest
	Inputs          []digest.Digest
	Platform        ir.Platform
}

// String canonicalizes the key into the stable string the index uses
// internally as its map key.
func (k CacheKey) String() string {
	var b strings.Builder
	b.WriteString(k.OperationDigest.String())
	b.WriteByte('|')
	for i, in := range k.Inputs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(in.String())
	}
	b.WriteByte('|')
	b.WriteString(k.Platform.String())
	return b.String()
}

// Descriptor points into the content store: a media type, the blob's
// digest, and its size in bytes.
type Descriptor struct {
	MediaType string        `json:"mediaType"`
	Digest    digest.Digest `json:"digest"`
	Size      int64         `json:"size"`
}

// CacheMetadata is the bookkeeping attached to an index entry.
// IsExpired is never persisted — it is computed fresh against the
// index's configured TTL/age budget every time an entry is read.
type CacheMetadata struct {
	CreatedAt     time.Time         `json:"createdAt"`
	AccessedAt    time.Time         `json:"accessedAt"`
	OperationHash digest.Digest     `json:"operationHash"`
	Platform      ir.Platform       `json:"platform"`
	TTL           *time.Duration    `json:"ttl,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
	IsExpired     bool              `json:"-"`
}

// Entry is one (key, descriptor, metadata) record held by the index.
type Entry struct {
	Key        string
	Descriptor Descriptor
	Metadata   CacheMetadata
}

// effectiveTTL returns the shortest of the entry's own TTL, the index's
// configured default TTL, and its configured max age
// expiry formula: "now - createdAt > min(ttl, defaultTTL, max_age_seconds)".
func effectiveTTL(entryTTL *time.Duration, defaultTTL *time.Duration, maxAge time.Duration) time.Duration {
	ttl := maxAge
	if defaultTTL != nil && *defaultTTL < ttl {
		ttl = *defaultTTL
	}
	if entryTTL != nil && *entryTTL < ttl {
		ttl = *entryTTL
	}
	return ttl
}

// sortedKeys returns m's keys in sorted order, used wherever the index
// needs a deterministic iteration order (snapshot writing, tests).
func sortedKeys(m map[string]Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
