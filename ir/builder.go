package ir

import "fmt"

// Builder assembles a BuildGraph in a single stateful, fluent pass. It is
// not safe for concurrent use — a single goroutine drives construction from
// Stage() calls through Build().
type Builder struct {
	reporter         Reporter
	stages           []BuildStage
	buildArgDefaults map[string]string
	targetPlatforms  []Platform
	seenNodeIDs      map[string]struct{}
	err              error // first structural error observed; sticky
}

// NewBuilder creates an empty Builder. The Reporter is stored on the
// Builder, but construction raises no warnings through it; nil is
// replaced with NoOpReporter.
func NewBuilder(reporter Reporter) *Builder {
	if reporter == nil {
		reporter = NoOpReporter{}
	}
	return &Builder{
		reporter:    reporter,
		seenNodeIDs: map[string]struct{}{},
	}
}

// WithBuildArgDefault records a default value for a build argument declared
// somewhere in the graph.
func (b *Builder) WithBuildArgDefault(name, value string) *Builder {
	if b.buildArgDefaults == nil {
		b.buildArgDefaults = map[string]string{}
	}
	b.buildArgDefaults[name] = value
	return b
}

// WithTargetPlatform adds a platform the embedder wants this graph built
// for.
func (b *Builder) WithTargetPlatform(p Platform) *Builder {
	b.targetPlatforms = append(b.targetPlatforms, p)
	return b
}

// Stage begins a new stage based on the given image. name may be empty for
// an anonymous stage. Subsequent Exec/Filesystem/Metadata calls attach
// nodes to this stage until the next Stage() call.
func (b *Builder) Stage(name string, from ImageOperation, platform Platform) *Builder {
	if b.err != nil {
		return b
	}
	for _, s := range b.stages {
		if name != "" && s.Name == name {
			b.err = invalidf("duplicate stage name %q", name)
			return b
		}
	}
	b.stages = append(b.stages, BuildStage{
		Name:     name,
		Base:     from,
		Platform: platform,
	})
	return b
}

func (b *Builder) currentStage() (*BuildStage, error) {
	if len(b.stages) == 0 {
		return nil, invalidf("no stage has been started; call Stage() first")
	}
	return &b.stages[len(b.stages)-1], nil
}

// addNode appends a node of any kind to the current stage after cheap
// structural validation: a non-empty, graph-unique id.
func (b *Builder) addNode(id string, op Operation, deps []string) *Builder {
	if b.err != nil {
		return b
	}
	if id == "" {
		b.err = invalidf("node id must not be empty")
		return b
	}
	if _, dup := b.seenNodeIDs[id]; dup {
		b.err = invalidf("duplicate node id %q", id)
		return b
	}
	stage, err := b.currentStage()
	if err != nil {
		b.err = err
		return b
	}
	b.seenNodeIDs[id] = struct{}{}
	stage.Nodes = append(stage.Nodes, BuildNode{
		ID:           id,
		Op:           op,
		Dependencies: append([]string(nil), deps...),
	})
	return b
}

// Exec attaches an Exec operation to the current stage.
func (b *Builder) Exec(id string, op ExecOperation, deps ...string) *Builder {
	opCopy := op
	return b.addNode(id, &opCopy, deps)
}

// Filesystem attaches a Filesystem operation to the current stage.
func (b *Builder) Filesystem(id string, op FilesystemOperation, deps ...string) *Builder {
	opCopy := op
	return b.addNode(id, &opCopy, deps)
}

// Metadata attaches a Metadata operation to the current stage.
func (b *Builder) Metadata(id string, op MetadataOperation, deps ...string) *Builder {
	opCopy := op
	return b.addNode(id, &opCopy, deps)
}

// Build validates the accumulated graph and, on success, returns an
// immutable BuildGraph. Once returned, the graph is never mutated again;
// the Builder itself remains usable only to inspect the error that halted
// it, if any.
func (b *Builder) Build() (*BuildGraph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.stages) == 0 {
		return &BuildGraph{
			BuildArgDefaults: b.buildArgDefaults,
			TargetPlatforms:  b.targetPlatforms,
		}, nil
	}

	g := &BuildGraph{
		Stages:           append([]BuildStage(nil), b.stages...),
		BuildArgDefaults: b.buildArgDefaults,
		TargetPlatforms:  b.targetPlatforms,
	}

	if err := validateStructure(g); err != nil {
		return nil, err
	}
	if err := validateStageRefs(g, b.reporter); err != nil {
		return nil, err
	}

	return g, nil
}

// validateStructure enforces the cheap, always-on invariants from
// : unique node ids graph-wide, dependencies that resolve within
// the same stage, and an acyclic per-stage dependency graph.
func validateStructure(g *BuildGraph) error {
	seen := map[string]string{} // node id -> stage name (or index) it belongs to
	for si, s := range g.Stages {
		stageLabel := stageLabel(s, si)
		inStage := map[string]struct{}{}
		for _, n := range s.Nodes {
			if n.ID == "" {
				return invalidf("stage %s: node id must not be empty", stageLabel)
			}
			if prior, dup := seen[n.ID]; dup {
				return invalidf("duplicate node id %q (stage %s and stage %s)", n.ID, prior, stageLabel)
			}
			seen[n.ID] = stageLabel
			inStage[n.ID] = struct{}{}
		}
		for _, n := range s.Nodes {
			for _, dep := range n.Dependencies {
				if _, ok := inStage[dep]; !ok {
					return invalidf("stage %s: node %q depends on %q which is not in the same stage", stageLabel, n.ID, dep)
				}
			}
		}
		if err := checkAcyclic(s, stageLabel); err != nil {
			return err
		}
	}
	return nil
}

func stageLabel(s BuildStage, index int) string {
	if s.Name != "" {
		return fmt.Sprintf("%q", s.Name)
	}
	return fmt.Sprintf("#%d", index)
}

// checkAcyclic runs a plain DFS cycle check over a single stage's explicit
// dependency edges. The analyzer's Kahn-style topological sort (C3) is the
// authority on the fully dependency-injected graph; this is a cheaper,
// builder-time check over only what the caller declared explicitly.
func checkAcyclic(s BuildStage, stageLabel string) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(s.Nodes))
	byID := make(map[string]BuildNode, len(s.Nodes))
	for _, n := range s.Nodes {
		byID[n.ID] = n
	}

	var visit func(id string, stack []string) error
	visit = func(id string, stack []string) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return invalidf("stage %s: cyclic dependency involving %q", stageLabel, id)
		}
		color[id] = gray
		for _, dep := range byID[id].Dependencies {
			if err := visit(dep, append(stack, id)); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}

	for _, n := range s.Nodes {
		if color[n.ID] == white {
			if err := visit(n.ID, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateStageRefs enforces the one stage-reference invariant that is a
// hard error rather than a warning: `.previous` is illegal from the first
// stage. Undefined `.named`/out-of-bounds `.index`
// references are surfaced as warnings by analyze.Validate instead, since
// this design treats those as non-fatal.
func validateStageRefs(g *BuildGraph, reporter Reporter) error {
	for si, s := range g.Stages {
		for _, n := range s.Nodes {
			fs, ok := n.Op.(*FilesystemOperation)
			if !ok || fs.Source.Kind != SourceStage {
				continue
			}
			if fs.Source.StageRef.Kind == StageRefPrevious && si == 0 {
				return invalidf("stage #0: node %q uses .previous stage reference, illegal in the first stage", n.ID)
			}
		}
	}
	return nil
}
