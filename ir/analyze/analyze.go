// Package analyze implements the graph analyses that turn a built ir.BuildGraph
// into the inputs a cache needs: dependency injection for implicit
// sequential/cross-stage edges, a deterministic topological order per
// stage, and a stable content digest per operation.
package analyze

import (
	"fmt"

	"github.com/banksean/buildcache/ir"
)

// CyclicDependencyError reports a cycle the topological sort could not
// resolve.
type CyclicDependencyError struct {
	Stage string
	Node  string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("analyze: cyclic dependency in stage %s at node %q", e.Stage, e.Node)
}

// Analysis is the read-only result of analyzing a BuildGraph: every node's
// fully resolved dependency set (explicit deps, plus any the analyzer
// injected) and a deterministic topological order per stage.
type Analysis struct {
	Graph *ir.BuildGraph

	// Deps maps node id -> the union of its explicit dependencies and any
	// the analyzer injected (sequential-previous, cross-stage copy edges).
	Deps map[string][]string

	// Order maps stage index -> that stage's nodes in topological order.
	Order map[int][]string

	// crossStageDeps maps stage index -> set of stage indices it depends
	// on via a resolved stage-reference FileSource, used for the
	// graph-wide cross-stage cycle check.
	crossStageDeps map[int]map[int]struct{}
}

// Analyze runs dependency injection followed by a per-stage topological
// sort. An optional Reporter receives warnings for unresolvable stage
// references (undefined name, out-of-bounds index); nil discards them.
func Analyze(g *ir.BuildGraph, reporter ir.Reporter) (*Analysis, error) {
	if reporter == nil {
		reporter = ir.NoOpReporter{}
	}
	a := &Analysis{
		Graph:          g,
		Deps:           map[string][]string{},
		Order:          map[int][]string{},
		crossStageDeps: map[int]map[int]struct{}{},
	}

	injectDependencies(g, a, reporter)

	if err := checkCrossStageCycles(a); err != nil {
		return nil, err
	}

	for si, s := range g.Stages {
		order, err := topoSortStage(si, s, a.Deps)
		if err != nil {
			return nil, err
		}
		a.Order[si] = order
	}

	return a, nil
}

// injectDependencies implements dependency-injection rule:
// a node with no explicit dependency gets one on the textually previous
// node in its stage; a Filesystem node whose source is a stage reference
// additionally depends on the last node of the resolved source stage.
func injectDependencies(g *ir.BuildGraph, a *Analysis, reporter ir.Reporter) {
	for si, s := range g.Stages {
		for ni, n := range s.Nodes {
			deps := append([]string(nil), n.Dependencies...)
			if len(deps) == 0 && ni > 0 {
				deps = append(deps, s.Nodes[ni-1].ID)
			}

			if fs, ok := n.Op.(*ir.FilesystemOperation); ok && fs.Source.Kind == ir.SourceStage {
				resolved, ok := g.ResolveStageRef(fs.Source.StageRef, si)
				switch {
				case !ok && fs.Source.StageRef.Kind == ir.StageRefNamed:
					reporter.Warn(ir.Warning{
						Code:    ir.WarnUndefinedStageName,
						Stage:   stageLabel(s, si),
						NodeID:  n.ID,
						Message: fmt.Sprintf("undefined stage reference %q", fs.Source.StageRef.Name),
					})
				case !ok && fs.Source.StageRef.Kind == ir.StageRefIndex:
					reporter.Warn(ir.Warning{
						Code:    ir.WarnStageIndexOutOfBounds,
						Stage:   stageLabel(s, si),
						NodeID:  n.ID,
						Message: fmt.Sprintf("stage index %d out of bounds", fs.Source.StageRef.Index),
					})
				case ok:
					if last, hasLast := g.Stages[resolved].LastNode(); hasLast {
						deps = append(deps, last.ID)
					}
					if resolved >= si {
						reporter.Warn(ir.Warning{
							Code:    ir.WarnForwardStageReference,
							Stage:   stageLabel(s, si),
							NodeID:  n.ID,
							Message: "stage reference points to a stage at or after the current one",
						})
					}
					if a.crossStageDeps[si] == nil {
						a.crossStageDeps[si] = map[int]struct{}{}
					}
					a.crossStageDeps[si][resolved] = struct{}{}
				}
			}

			a.Deps[n.ID] = deps
		}
	}
}

func stageLabel(s ir.BuildStage, index int) string {
	if s.Name != "" {
		return fmt.Sprintf("%q", s.Name)
	}
	return fmt.Sprintf("#%d", index)
}

// checkCrossStageCycles detects a cycle formed purely out of stage-level
// copy-from-stage references (e.g. stage A copies from stage B which
// copies from stage A). Per-stage node cycles are caught separately by
// topoSortStage and, earlier, by the builder's own acyclic check.
func checkCrossStageCycles(a *Analysis) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(a.Graph.Stages))
	var visit func(i int) error
	visit = func(i int) error {
		switch color[i] {
		case black:
			return nil
		case gray:
			return &CyclicDependencyError{Stage: stageLabel(a.Graph.Stages[i], i), Node: "(stage reference cycle)"}
		}
		color[i] = gray
		for dep := range a.crossStageDeps[i] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[i] = black
		return nil
	}
	for i := range a.Graph.Stages {
		if color[i] == white {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// topoSortStage runs a deterministic Kahn-style sort over one stage's
// nodes using the fully-injected dependency set, restricted to
// dependencies that are themselves in this stage (cross-stage edges only
// order the stage-level DAG, not node order within a stage). Ties are
// broken by input order, so the result is stable across runs.
func topoSortStage(stageIndex int, s ir.BuildStage, deps map[string][]string) ([]string, error) {
	inStage := make(map[string]struct{}, len(s.Nodes))
	indexOf := make(map[string]int, len(s.Nodes))
	for i, n := range s.Nodes {
		inStage[n.ID] = struct{}{}
		indexOf[n.ID] = i
	}

	indegree := make(map[string]int, len(s.Nodes))
	children := make(map[string][]string, len(s.Nodes))
	for _, n := range s.Nodes {
		for _, dep := range deps[n.ID] {
			if _, ok := inStage[dep]; !ok {
				continue // cross-stage edge, not part of this stage's internal order
			}
			indegree[n.ID]++
			children[dep] = append(children[dep], n.ID)
		}
	}

	// Ready set ordered by original input position for a deterministic
	// tie-break, implemented as a simple sorted-insert queue rather than
	// pulling in a heap for what is, per node, a small fan-out.
	var ready []string
	for _, n := range s.Nodes {
		if indegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}

	var order []string
	for len(ready) > 0 {
		// Pop the lowest-original-index ready node.
		best := 0
		for i := 1; i < len(ready); i++ {
			if indexOf[ready[i]] < indexOf[ready[best]] {
				best = i
			}
		}
		next := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		order = append(order, next)

		for _, child := range children[next] {
			indegree[child]--
			if indegree[child] == 0 {
				ready = append(ready, child)
			}
		}
	}

	if len(order) != len(s.Nodes) {
		// Some node never reached zero indegree: a cycle remains.
		for _, n := range s.Nodes {
			if indegree[n.ID] > 0 {
				return nil, &CyclicDependencyError{Stage: stageLabel(s, stageIndex), Node: n.ID}
			}
		}
		return nil, &CyclicDependencyError{Stage: stageLabel(s, stageIndex), Node: "(unknown)"}
	}
	return order, nil
}
