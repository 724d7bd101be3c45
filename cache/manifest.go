package cache

import (
	"encoding/json"
	"fmt"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/banksean/buildcache/digest"
)

// snapshotMediaType is the media type recorded on the OCI descriptor
// Snapshot.Descriptor produces; it is opaque filesystem-tree content,
// not an OCI image layer.
const snapshotMediaType = "application/vnd.buildcache.blob.v1"

// Snapshot points at the filesystem-tree blob a cached operation
// produced.
type Snapshot struct {
	Digest digest.Digest `json:"digest"`
	Size   int64         `json:"size"`
}

// Descriptor renders s in the OCI content descriptor shape, so a
// manifest can be inspected or re-used by tooling built against
// github.com/opencontainers/image-spec rather than this module's own
// digest.Digest type.
func (s Snapshot) Descriptor() (ocispec.Descriptor, error) {
	d, err := s.Digest.ToOCI()
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("cache: snapshot descriptor: %w", err)
	}
	return ocispec.Descriptor{
		MediaType: snapshotMediaType,
		Digest:    d,
		Size:      s.Size,
	}, nil
}

// CachedResult is what a successful get reconstitutes and what a put
// stores: the output snapshot plus the environment and metadata
// changes the operation made.
type CachedResult struct {
	Snapshot           Snapshot          `json:"snapshot"`
	EnvironmentChanges map[string]string `json:"environmentChanges,omitempty"`
	MetadataChanges    map[string]string `json:"metadataChanges,omitempty"`
}

// CacheManifest is the immutable, content-addressed record a put
// writes into the store; the index holds only its descriptor.
type CacheManifest struct {
	Snapshot           Snapshot          `json:"snapshot"`
	EnvironmentChanges map[string]string `json:"environmentChanges,omitempty"`
	MetadataChanges    map[string]string `json:"metadataChanges,omitempty"`
}

const manifestMediaType = "application/vnd.buildcache.manifest.v1+json"

func manifestFor(r CachedResult) CacheManifest {
	return CacheManifest{
		Snapshot:           r.Snapshot,
		EnvironmentChanges: r.EnvironmentChanges,
		MetadataChanges:    r.MetadataChanges,
	}
}

func (m CacheManifest) result() CachedResult {
	return CachedResult{
		Snapshot:           m.Snapshot,
		EnvironmentChanges: m.EnvironmentChanges,
		MetadataChanges:    m.MetadataChanges,
	}
}

func marshalManifest(m CacheManifest) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("cache: marshal manifest: %w", err)
	}
	return b, nil
}

func unmarshalManifest(b []byte) (CacheManifest, error) {
	var m CacheManifest
	if err := json.Unmarshal(b, &m); err != nil {
		return CacheManifest{}, fmt.Errorf("cache: unmarshal manifest: %w", err)
	}
	return m, nil
}
