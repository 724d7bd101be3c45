package cache

import (
	"testing"

	"github.com/banksean/buildcache/digest"
)

func TestSnapshotDescriptorRendersOCIShape(t *testing.T) {
	d, err := digest.Compute([]byte("snapshot bytes"), digest.SHA256)
	if err != nil {
		t.Fatalf("digest.Compute: %v", err)
	}
	snap := Snapshot{Digest: d, Size: 14}

	desc, err := snap.Descriptor()
	if err != nil {
		t.Fatalf("Descriptor: %v", err)
	}
	if desc.MediaType != snapshotMediaType {
		t.Errorf("MediaType = %q, want %q", desc.MediaType, snapshotMediaType)
	}
	if desc.Size != 14 {
		t.Errorf("Size = %d, want 14", desc.Size)
	}
	if desc.Digest.String() != d.String() {
		t.Errorf("Digest = %s, want %s", desc.Digest, d)
	}
}

func TestSnapshotDescriptorRejectsZeroDigest(t *testing.T) {
	if _, err := (Snapshot{}).Descriptor(); err == nil {
		t.Error("Descriptor on a zero Snapshot should fail, not silently emit a zero digest")
	}
}
