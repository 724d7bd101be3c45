package analyze

import (
	"testing"

	"github.com/banksean/buildcache/digest"
	"github.com/banksean/buildcache/ir"
)

func buildGraph(t *testing.T, reporter ir.Reporter) *ir.BuildGraph {
	t.Helper()
	g, err := ir.NewBuilder(reporter).
		Stage("builder", ir.ImageOperation{Source: ir.ImageSource{Kind: ir.ImageSourceRegistry, Reference: "golang:1.25"}}, ir.Platform{OS: "linux", Architecture: "amd64"}).
		Exec("fetch", ir.ExecOperation{Command: ir.Command{Shell: "go mod download"}}).
		Exec("build", ir.ExecOperation{Command: ir.Command{Argv: []string{"go", "build", "./..."}}}, "fetch").
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
		t.Fatalf("building graph: %v", err)
	}
	return g
}

func TestAnalyzeOrdersEachStageTopologically(t *testing.T) {
	g := buildGraph(t, nil)
	a, err := Analyze(g, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got, want := a.Order[0], []string{"fetch", "build"}; !equalSlices(got, want) {
		t.Errorf("stage 0 order = %v, want %v", got, want)
	}
	if got, want := a.Order[1], []string{"copy-bin", "entrypoint"}; !equalSlices(got, want) {
		t.Errorf("stage 1 order = %v, want %v", got, want)
	}
}

func TestAnalyzeInjectsCrossStageDependency(t *testing.T) {
	g := buildGraph(t, nil)
	a, err := Analyze(g, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	deps := a.Deps["copy-bin"]
	if !contains(deps, "build") {
		t.Errorf("copy-bin deps = %v, want to contain injected cross-stage dep %q", deps, "build")
	}
}

func TestAnalyzeInjectsSequentialDependency(t *testing.T) {
	g := buildGraph(t, nil)
	a, err := Analyze(g, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got, want := a.Deps["build"], []string{"fetch"}; !equalSlices(got, want) {
		t.Errorf("build deps = %v, want %v", got, want)
	}
}

func TestAnalyzeWarnsOnUndefinedStageReference(t *testing.T) {
	var r ir.CollectingReporter
	g, err := ir.NewBuilder(nil).
		Stage("only", ir.ImageOperation{Source: ir.ImageSource{Kind: ir.ImageSourceScratch}}, ir.Platform{}).
		Filesystem("copy", ir.FilesystemOperation{
			Action:      ir.FileCopy,
			Source:      ir.FileSource{Kind: ir.SourceStage, StageRef: ir.NamedStageRef("nonexistent")},
			Destination: "/x",
		}).
		Build()
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	if _, err := Analyze(g, &r); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(r.Warnings) != 1 || r.Warnings[0].Code != ir.WarnUndefinedStageName {
		t.Errorf("warnings = %+v, want exactly one WarnUndefinedStageName", r.Warnings)
	}
}

func TestAnalyzeDetectsCrossStageReferenceCycle(t *testing.T) {
	g, err := ir.NewBuilder(nil).
		Stage("a", ir.ImageOperation{Source: ir.ImageSource{Kind: ir.ImageSourceScratch}}, ir.Platform{}).
		Filesystem("from-b", ir.FilesystemOperation{
			Action:      ir.FileCopy,
			Source:      ir.FileSource{Kind: ir.SourceStage, StageRef: ir.NamedStageRef("b")},
			Destination: "/x",
		}).
		Stage("b", ir.ImageOperation{Source: ir.ImageSource{Kind: ir.ImageSourceScratch}}, ir.Platform{}).
		Filesystem("from-a", ir.FilesystemOperation{
			Action:      ir.FileCopy,
			Source:      ir.FileSource{Kind: ir.SourceStage, StageRef: ir.NamedStageRef("a")},
			Destination: "/y",
		}).
		Build()
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	if _, err := Analyze(g, nil); err == nil {
		t.Fatal("expected a cross-stage reference cycle error")
	}
}

func TestContentDigestsAreStableAcrossNodeIDAndSourceLocation(t *testing.T) {
	mk := func(id string, loc *ir.SourceLocation) *ir.BuildGraph {
		b := ir.NewBuilder(nil).Stage("s", ir.ImageOperation{Source: ir.ImageSource{Kind: ir.ImageSourceScratch}}, ir.Platform{})
		b.Exec(id, ir.ExecOperation{Command: ir.Command{Shell: "echo hi"}, SourceLoc: loc})
		g, err := b.Build()
		if err != nil {
			t.Fatalf("building graph: %v", err)
		}
		return g
	}
	g1 := mk("step-a", &ir.SourceLocation{File: "Dockerfile", Line: 3})
	g2 := mk("step-b", &ir.SourceLocation{File: "Dockerfile.other", Line: 99})

	d1, err := ContentDigests(g1, digest.SHA256)
	if err != nil {
		t.Fatalf("ContentDigests: %v", err)
	}
	d2, err := ContentDigests(g2, digest.SHA256)
	if err != nil {
		t.Fatalf("ContentDigests: %v", err)
	}
	if !d1["step-a"].Equal(d2["step-b"]) {
		t.Errorf("content digests differ despite identical semantic content: %s vs %s", d1["step-a"], d2["step-b"])
	}
}

func TestContentDigestsDifferForDifferentCommands(t *testing.T) {
	b := ir.NewBuilder(nil).Stage("s", ir.ImageOperation{Source: ir.ImageSource{Kind: ir.ImageSourceScratch}}, ir.Platform{})
	b.Exec("a", ir.ExecOperation{Command: ir.Command{Shell: "echo one"}})
	b.Exec("b", ir.ExecOperation{Command: ir.Command{Shell: "echo two"}})
	g, err := b.Build()
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	digests, err := ContentDigests(g, digest.SHA256)
	if err != nil {
		t.Fatalf("ContentDigests: %v", err)
	}
	if digests["a"].Equal(digests["b"]) {
		t.Error("expected different commands to produce different content digests")
	}
}

func TestSummarizeCountsOperationsAndStageDependencies(t *testing.T) {
	g := buildGraph(t, nil)
	a, err := Analyze(g, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	sum := Summarize(a)
	if sum.StageCount != 2 {
		t.Errorf("StageCount = %d, want 2", sum.StageCount)
	}
	if sum.NodeCount != 4 {
		t.Errorf("NodeCount = %d, want 4", sum.NodeCount)
	}
	if sum.OperationCounts[ir.KindExec] != 2 {
		t.Errorf("exec count = %d, want 2", sum.OperationCounts[ir.KindExec])
	}
	if len(sum.StageDependencies[`"final"`]) != 1 {
		t.Errorf("StageDependencies[final] = %v, want one entry", sum.StageDependencies[`"final"`])
	}
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func contains(s []string, v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}
