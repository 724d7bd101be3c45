package analyze

import (
	"fmt"

	"github.com/banksean/buildcache/digest"
	"github.com/banksean/buildcache/ir"
	"github.com/banksean/buildcache/ir/codec"
)

// ContentDigests computes a stable content digest for every node in the
// graph, keyed by node id. The digest covers an operation's semantic
// fields only (ids and source locations are excluded by
// codec.CanonicalOperationBytes), so two graphs built from equivalent
// instructions hash identically regardless of variable naming or
// formatting differences in the frontend that produced them.
func ContentDigests(g *ir.BuildGraph, alg digest.Algorithm) (map[string]digest.Digest, error) {
	out := make(map[string]digest.Digest, len(g.AllNodeIDs()))
	for _, s := range g.Stages {
		for _, n := range s.Nodes {
			b, err := codec.CanonicalOperationBytes(n.Op)
			if err != nil {
				return nil, fmt.Errorf("analyze: content digest for node %q: %w", n.ID, err)
			}
			d, err := digest.Compute(b, alg)
			if err != nil {
				return nil, fmt.Errorf("analyze: content digest for node %q: %w", n.ID, err)
			}
			out[n.ID] = d
		}
	}
	return out, nil
}

// NodeContentDigest computes the content digest for a single node's
// operation, the unit a CacheKey's operation digest is built from.
func NodeContentDigest(op ir.Operation, alg digest.Algorithm) (digest.Digest, error) {
	b, err := codec.CanonicalOperationBytes(op)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("analyze: content digest: %w", err)
	}
	return digest.Compute(b, alg)
}
