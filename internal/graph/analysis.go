package graph

import (
	"sort"

	"github.com/apexls/apexls/internal/types"
)

// DependencyAnalysis summarizes a symbol's place in the reference graph.
type DependencyAnalysis struct {
	Dependencies         []types.SymbolID   `json:"dependencies"`
	Dependents           []types.SymbolID   `json:"dependents"`
	ImpactScore          int                `json:"impact_score"`
	CircularDependencies [][]types.SymbolID `json:"circular_dependencies,omitempty"`
}

// DetectCircularDependencies runs strongly-connected-component detection over
// the reference graph restricted to type-level edges (type references and
// inheritance) and returns each non-trivial component.
func (g *SymbolGraph) DetectCircularDependencies() [][]types.SymbolID {
	g.mu.RLock()
	adjacency := make(map[types.SymbolID][]types.SymbolID, len(g.outgoing))
	selfLoops := make(map[types.SymbolID]bool)
	for src, edges := range g.outgoing {
		for _, e := range edges {
			if !e.Type.IsTypeLevel() {
				continue
			}
			adjacency[src] = append(adjacency[src], e.TargetID)
			if e.TargetID == src {
				selfLoops[src] = true
			}
		}
	}
	vertices := make([]types.SymbolID, 0, len(g.symbolIDs))
	for id := range g.symbolIDs {
		vertices = append(vertices, id)
	}
	g.mu.RUnlock()

	// Deterministic iteration order keeps component output stable.
	sort.Slice(vertices, func(i, j int) bool { return vertices[i] < vertices[j] })

	sccs := tarjan(vertices, adjacency)

	var out [][]types.SymbolID
	for _, component := range sccs {
		if len(component) > 1 || selfLoops[component[0]] {
			out = append(out, component)
		}
	}
	return out
}

// tarjan computes strongly connected components iteratively to stay safe on
// deep inheritance chains.
func tarjan(vertices []types.SymbolID, adjacency map[types.SymbolID][]types.SymbolID) [][]types.SymbolID {
	index := make(map[types.SymbolID]int, len(vertices))
	lowlink := make(map[types.SymbolID]int, len(vertices))
	onStack := make(map[types.SymbolID]bool, len(vertices))
	var stack []types.SymbolID
	var result [][]types.SymbolID
	next := 0

	type frame struct {
		v       types.SymbolID
		childIx int
	}

	for _, start := range vertices {
		if _, seen := index[start]; seen {
			continue
		}

		frames := []frame{{v: start}}
		index[start] = next
		lowlink[start] = next
		next++
		stack = append(stack, start)
		onStack[start] = true

		for len(frames) > 0 {
			f := &frames[len(frames)-1]
			children := adjacency[f.v]

			if f.childIx < len(children) {
				child := children[f.childIx]
				f.childIx++
				if _, seen := index[child]; !seen {
					index[child] = next
					lowlink[child] = next
					next++
					stack = append(stack, child)
					onStack[child] = true
					frames = append(frames, frame{v: child})
				} else if onStack[child] {
					if index[child] < lowlink[f.v] {
						lowlink[f.v] = index[child]
					}
				}
				continue
			}

			// All children visited: maybe pop a component, then fold the
			// lowlink into the parent frame.
			if lowlink[f.v] == index[f.v] {
				var component []types.SymbolID
				for {
					top := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[top] = false
					component = append(component, top)
					if top == f.v {
						break
					}
				}
				result = append(result, component)
			}
			done := f.v
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := &frames[len(frames)-1]
				if lowlink[done] < lowlink[parent.v] {
					lowlink[parent.v] = lowlink[done]
				}
			}
		}
	}
	return result
}

// AnalyzeDependencies reports a symbol's direct dependencies, dependents, a
// coarse impact score (dependents weighted double), and any type-level cycles
// it participates in.
func (g *SymbolGraph) AnalyzeDependencies(id types.SymbolID) DependencyAnalysis {
	g.mu.RLock()
	depSet := make(map[types.SymbolID]struct{})
	for _, e := range g.outgoing[id] {
		depSet[e.TargetID] = struct{}{}
	}
	depdntSet := make(map[types.SymbolID]struct{})
	for _, e := range g.incoming[id] {
		depdntSet[e.SourceID] = struct{}{}
	}
	g.mu.RUnlock()

	analysis := DependencyAnalysis{
		Dependencies: make([]types.SymbolID, 0, len(depSet)),
		Dependents:   make([]types.SymbolID, 0, len(depdntSet)),
	}
	for dep := range depSet {
		analysis.Dependencies = append(analysis.Dependencies, dep)
	}
	for d := range depdntSet {
		analysis.Dependents = append(analysis.Dependents, d)
	}
	sort.Slice(analysis.Dependencies, func(i, j int) bool { return analysis.Dependencies[i] < analysis.Dependencies[j] })
	sort.Slice(analysis.Dependents, func(i, j int) bool { return analysis.Dependents[i] < analysis.Dependents[j] })

	analysis.ImpactScore = len(analysis.Dependents)*2 + len(analysis.Dependencies)

	for _, component := range g.DetectCircularDependencies() {
		for _, member := range component {
			if member == id {
				analysis.CircularDependencies = append(analysis.CircularDependencies, component)
				break
			}
		}
	}
	return analysis
}
