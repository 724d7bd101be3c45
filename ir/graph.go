package ir

// BuildGraph is the immutable, validated output of a Builder run: an
// ordered sequence of BuildStages plus build-arg defaults and the set of
// platforms the embedder wants the graph built for.
type BuildGraph struct {
	Stages           []BuildStage      `json:"stages"`
	BuildArgDefaults map[string]string `json:"buildArgDefaults,omitempty"`
	TargetPlatforms  []Platform        `json:"targetPlatforms,omitempty"`
}

// StageByName returns the stage with the given name, or false if undefined.
func (g *BuildGraph) StageByName(name string) (*BuildStage, bool) {
	for i := range g.Stages {
		if g.Stages[i].Name == name {
			return &g.Stages[i], true
		}
	}
	return nil, false
}

// StageByIndex returns the stage at position i, or false if out of bounds.
func (g *BuildGraph) StageByIndex(i int) (*BuildStage, bool) {
	if i < 0 || i >= len(g.Stages) {
		return nil, false
	}
	return &g.Stages[i], true
}

// ResolveStageRef resolves a symbolic StageRef against this graph from the
// perspective of the stage at fromIndex. It returns the resolved stage
// index and true, or false if the reference cannot be resolved (undefined
// name, out-of-bounds index) or is illegal (.previous from stage 0) — the
// caller (analyzer) is responsible for turning "false" into either a
// warning or a hard error depending on the reference kind.
func (g *BuildGraph) ResolveStageRef(ref StageRef, fromIndex int) (int, bool) {
	switch ref.Kind {
	case StageRefNamed:
		for i := range g.Stages {
			if g.Stages[i].Name == ref.Name {
				return i, true
			}
		}
		return -1, false
	case StageRefIndex:
		if ref.Index < 0 || ref.Index >= len(g.Stages) {
			return -1, false
		}
		return ref.Index, true
	case StageRefPrevious:
		if fromIndex <= 0 {
			return -1, false
		}
		return fromIndex - 1, true
	default:
		return -1, false
	}
}

// AllNodeIDs returns every node id in the graph, stage order then node
// order.
func (g *BuildGraph) AllNodeIDs() []string {
	var ids []string
	for _, s := range g.Stages {
		for _, n := range s.Nodes {
			ids = append(ids, n.ID)
		}
	}
	return ids
}
