package analyze

import "github.com/banksean/buildcache/ir"

// Summary is a read-only digest of a graph's shape, useful for logging and
// for cache-planning heuristics (e.g. deciding whether a graph is large
// enough to warrant parallel ingest).
type Summary struct {
	StageCount      int
	NodeCount       int
	OperationCounts map[ir.OperationKind]int
	// StageDependencies maps a stage's label to the labels of the stages
	// it copies files from, per resolved Filesystem stage references.
	StageDependencies map[string][]string
	// MaxStageDepth is the longest dependency chain found in any single
	// stage, a rough proxy for how much of that stage's work is forced
	// to run sequentially.
	MaxStageDepth int
}

// Summarize computes a Summary for an already-analyzed graph.
func Summarize(a *Analysis) Summary {
	g := a.Graph
	sum := Summary{
		StageCount:        len(g.Stages),
		OperationCounts:    map[ir.OperationKind]int{},
		StageDependencies: map[string][]string{},
	}
	for si, s := range g.Stages {
		sum.NodeCount += len(s.Nodes)
		sum.OperationCounts[ir.KindImage]++
		for _, n := range s.Nodes {
			sum.OperationCounts[n.Op.Kind()]++
		}
		if deps, ok := a.crossStageDeps[si]; ok {
			label := stageLabel(s, si)
			for dep := range deps {
				sum.StageDependencies[label] = append(sum.StageDependencies[label], stageLabel(g.Stages[dep], dep))
			}
		}
		if depth := stageDepth(s, a.Deps); depth > sum.MaxStageDepth {
			sum.MaxStageDepth = depth
		}
	}
	return sum
}

// stageDepth computes the length of the longest dependency chain among a
// stage's own nodes (cross-stage edges do not contribute to a stage's
// internal depth).
func stageDepth(s ir.BuildStage, deps map[string][]string) int {
	inStage := make(map[string]struct{}, len(s.Nodes))
	for _, n := range s.Nodes {
		inStage[n.ID] = struct{}{}
	}
	memo := make(map[string]int, len(s.Nodes))
	var depth func(id string) int
	depth = func(id string) int {
		if d, ok := memo[id]; ok {
			return d
		}
		best := 0
		for _, dep := range deps[id] {
			if _, ok := inStage[dep]; !ok {
				continue
			}
			if d := depth(dep); d+1 > best {
				best = d + 1
			}
		}
		memo[id] = best
		return best
	}
	max := 0
	for _, n := range s.Nodes {
		if d := depth(n.ID); d > max {
			max = d
		}
	}
	return max
}
