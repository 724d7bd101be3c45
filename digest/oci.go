package digest

import (
	"fmt"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	godigest "github.com/opencontainers/go-digest"
)

// ToOCI converts d to the go-digest representation used throughout the OCI
// ecosystem (content stores hand these out on Descriptors returned to an
// embedding builder).
func (d Digest) ToOCI() (godigest.Digest, error) {
	if d.IsZero() {
		return "", fmt.Errorf("digest: cannot convert zero digest to OCI form")
	}
	gd := godigest.Digest(d.String())
	if err := gd.Validate(); err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return gd, nil
}

// FromOCI parses a go-digest value into a buildcache Digest.
func FromOCI(gd godigest.Digest) (Digest, error) {
	if err := gd.Validate(); err != nil {
		return Digest{}, fmt.Errorf("digest: %w", err)
	}
	return Parse(gd.String())
}

// ToImageHash converts a sha256 Digest to the go-containerregistry v1.Hash
// type used by Image operation source references. Only sha256 is valid here
// since OCI image/manifest digests are always sha256.
func (d Digest) ToImageHash() (v1.Hash, error) {
	if d.alg != SHA256 {
		return v1.Hash{}, fmt.Errorf("digest: image hashes must be sha256, got %s", d.alg)
	}
	return v1.NewHash(d.String())
}

// FromImageHash converts a go-containerregistry v1.Hash into a Digest.
func FromImageHash(h v1.Hash) (Digest, error) {
	return Parse(h.Algorithm + ":" + h.Hex)
}
