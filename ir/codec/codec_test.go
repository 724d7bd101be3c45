package codec

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banksean/buildcache/ir"
)

func sampleGraph(t *testing.T) *ir.BuildGraph {
	t.Helper()
	g, err := ir.NewBuilder(nil).
		WithBuildArgDefault("VERSION", "1.0.0").
		WithTargetPlatform(ir.Platform{OS: "linux", Architecture: "amd64"}).
		Stage("builder", ir.ImageOperation{Source: ir.ImageSource{Kind: ir.ImageSourceRegistry, Reference: "golang:1.25"}}, ir.Platform{OS: "linux", Architecture: "amd64"}).
		Exec("fetch", ir.ExecOperation{
			Command: ir.Command{Shell: "go mod download"},
			Env:     []ir.EnvVar{{Key: "GOFLAGS", Value: ir.LiteralEnv("-mod=mod")}},
		}).
		Exec("build", ir.ExecOperation{
			Command: ir.Command{Argv: []string{"go", "build", "./..."}},
			Mounts: []ir.Mount{{Kind: ir.MountCache, Target: "/root/.cache/go-build"}},
		}, "fetch").
		Stage("final", ir.ImageOperation{Source: ir.ImageSource{Kind: ir.ImageSourceScratch}}, ir.Platform{OS: "linux", Architecture: "amd64"}).
		Filesystem("copy-bin", ir.FilesystemOperation{
			Action: ir.FileCopy,
			Source: ir.FileSource{
				Kind:       ir.SourceStage,
				StageRef:   ir.NamedStageRef("builder"),
				StagePaths: []string{"/app/bin"},
			},
			Destination: "/bin/app",
		}).
		Metadata("entrypoint", ir.MetadataOperation{
			Action:  ir.ActionSetEntrypoint,
			Command: ir.Command{Argv: []string{"/bin/app"}},
		}, "copy-bin").
		Build()
	if err != nil {
		t.Fatalf("building sample graph: %v", err)
	}
	return g
}

func TestJSONRoundTrip(t *testing.T) {
	g := sampleGraph(t)
	encoded, err := EncodeJSON(g, false)
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	decoded, err := DecodeJSON(encoded)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if diff := cmp.Diff(g, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONRoundTripEmptyGraph(t *testing.T) {
	g := &ir.BuildGraph{}
	encoded, err := EncodeJSON(g, true)
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	decoded, err := DecodeJSON(encoded)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if diff := cmp.Diff(g, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	g := sampleGraph(t)
	encoded, err := EncodeBinary(g)
	if err != nil {
		t.Fatalf("EncodeBinary: %v", err)
	}
	decoded, err := DecodeBinary(encoded)
	if err != nil {
		t.Fatalf("DecodeBinary: %v", err)
	}
	if diff := cmp.Diff(g, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestBinarySmallerThanJSONForNonTrivialGraph(t *testing.T) {
	g := sampleGraph(t)
	jsonBytes, err := EncodeJSON(g, false)
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	binBytes, err := EncodeBinary(g)
	if err != nil {
		t.Fatalf("EncodeBinary: %v", err)
	}
	if len(binBytes) >= len(jsonBytes) {
		t.Errorf("expected binary encoding (%d bytes) to be smaller than JSON (%d bytes)", len(binBytes), len(jsonBytes))
	}
}

func TestDecodeJSONTruncated(t *testing.T) {
	g := sampleGraph(t)
	encoded, _ := EncodeJSON(g, false)
	truncated := encoded[:len(encoded)/2]
	if _, err := DecodeJSON(truncated); err == nil {
		t.Error("expected error decoding truncated JSON")
	}
}

func TestDecodeJSONVersionMismatch(t *testing.T) {
	bad := []byte(`{"version":"99.0","stages":[]}`)
	_, err := DecodeJSON(bad)
	if err == nil {
		t.Fatal("expected version mismatch error")
	}
	var vme *VersionMismatchError
	if !errors.As(err, &vme) {
		t.Errorf("expected *VersionMismatchError, got %T: %v", err, err)
	}
}

func TestDecodeBinaryTruncated(t *testing.T) {
	g := sampleGraph(t)
	encoded, err := EncodeBinary(g)
	if err != nil {
		t.Fatalf("EncodeBinary: %v", err)
	}
	if _, err := DecodeBinary(encoded[:3]); err == nil {
		t.Error("expected error decoding truncated header")
	}
	if _, err := DecodeBinary(encoded[:len(encoded)-10]); err == nil {
		t.Error("expected error decoding truncated payload")
	}
}

func TestDecodeBinaryVersionMismatch(t *testing.T) {
	g := sampleGraph(t)
	encoded, err := EncodeBinary(g)
	if err != nil {
		t.Fatalf("EncodeBinary: %v", err)
	}
	corrupted := append([]byte(nil), encoded...)
	corrupted[4] = 0xFF
	_, err = DecodeBinary(corrupted)
	if err == nil {
		t.Fatal("expected version mismatch error")
	}
}

func TestDecodeBinaryUnknownAlgorithmTag(t *testing.T) {
	g := sampleGraph(t)
	encoded, err := EncodeBinary(g)
	if err != nil {
		t.Fatalf("EncodeBinary: %v", err)
	}
	corrupted := append([]byte(nil), encoded...)
	corrupted[5] = 0xEE
	_, err = DecodeBinary(corrupted)
	if err == nil {
		t.Fatal("expected unknown algorithm tag error")
	}
	var tagErr *UnknownAlgorithmTagError
	if !errors.As(err, &tagErr) {
		t.Errorf("expected *UnknownAlgorithmTagError, got %T: %v", err, err)
	}
}

