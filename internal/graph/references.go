package graph

import (
	"strings"

	"github.com/apexls/apexls/internal/debug"
	"github.com/apexls/apexls/internal/identity"
	"github.com/apexls/apexls/internal/types"
)

// deferredReference is a pending edge whose target has not been registered.
// Keyed by the target's canonical key, it carries everything needed to
// materialize the edge later but no live pointers into graph state.
type deferredReference struct {
	SourceID      types.SymbolID
	TargetID      types.SymbolID // best-guess encoded ID; may be empty
	TargetKey     string
	Type          types.ReferenceType
	Location      types.CompactLocation
	Context       *types.ReferenceContext
	SourceFileURI string
}

// ReferenceResult is one edge rehydrated for consumers: the compact location
// expanded and both endpoint symbols resolved.
type ReferenceResult struct {
	Edge     types.ReferenceEdge `json:"edge"`
	Location types.Range         `json:"location"`
	Source   *types.Symbol       `json:"source,omitempty"`
	Target   *types.Symbol       `json:"target,omitempty"`
}

// AddReference records a directed reference between two symbols. When both
// endpoints exist an edge is created (idempotent on source, target, type, and
// source location) and the target's reference count incremented. When either
// endpoint is absent the reference is held under the target's canonical key
// until the target appears; no warning is logged for the deferred case.
func (g *SymbolGraph) AddReference(source, target types.SymbolID, refType types.ReferenceType, location types.Range, context *types.ReferenceContext) error {
	compact, err := types.PackLocation(location)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	_, srcOK := g.symbolIDs[source]
	_, dstOK := g.symbolIDs[target]

	if srcOK && dstOK {
		g.addEdgeLocked(source, target, refType, compact, context)
		return nil
	}

	key := g.targetKeyForSymbolLocked(target, nil)
	g.deferred[key] = append(g.deferred[key], deferredReference{
		SourceID:      source,
		TargetID:      target,
		TargetKey:     key,
		Type:          refType,
		Location:      compact,
		Context:       context,
		SourceFileURI: g.symbolFile[source],
	})
	g.stats.DeferredCount++
	return nil
}

// AddDeferredReference records a pending reference by target name when no
// target ID could even be guessed. Used by the resolver for unresolved
// forward references.
func (g *SymbolGraph) AddDeferredReference(source types.SymbolID, targetName string, refType types.ReferenceType, location types.Range, context *types.ReferenceContext) error {
	compact, err := types.PackLocation(location)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := strings.ToLower(targetName)
	g.deferred[key] = append(g.deferred[key], deferredReference{
		SourceID:      source,
		TargetKey:     key,
		Type:          refType,
		Location:      compact,
		Context:       context,
		SourceFileURI: g.symbolFile[source],
	})
	g.stats.DeferredCount++
	return nil
}

// addEdgeLocked materializes one edge. Duplicate (src, dst, type, location)
// tuples are ignored.
func (g *SymbolGraph) addEdgeLocked(source, target types.SymbolID, refType types.ReferenceType, compact types.CompactLocation, context *types.ReferenceContext) {
	key := edgeKey(source, target, refType, compact)
	if _, dup := g.edgeKeys[key]; dup {
		return
	}
	g.edgeKeys[key] = struct{}{}

	edge := &types.ReferenceEdge{
		SourceID:      source,
		TargetID:      target,
		Type:          refType,
		Location:      compact,
		Context:       context,
		SourceFileURI: g.symbolFile[source],
		TargetFileURI: g.symbolFile[target],
	}
	g.outgoing[source] = append(g.outgoing[source], edge)
	g.incoming[target] = append(g.incoming[target], edge)
	if node, ok := g.nodes[target]; ok {
		node.ReferenceCount++
	}
	g.stats.TotalEdges++
}

// targetKeyForSymbolLocked derives the canonical deferred key for a target.
// The lowercased name segment of the ID is authoritative; the resolved symbol
// (when available) contributes nothing further since name keys are what
// AddSymbol drains by.
func (g *SymbolGraph) targetKeyForSymbolLocked(target types.SymbolID, symbol *types.Symbol) string {
	if symbol != nil {
		return strings.ToLower(symbol.Name)
	}
	if parsed, err := identity.ParseSymbolID(target); err == nil {
		return strings.ToLower(parsed.Name)
	}
	return strings.ToLower(string(target))
}

// takeDeferredLocked removes and returns every pending reference waiting for
// the newly registered symbol, matched by lowercased name and by lowercased
// FQN. Each entry is flushed at most once.
func (g *SymbolGraph) takeDeferredLocked(symbol *types.Symbol) []deferredReference {
	var pending []deferredReference
	for _, key := range []string{strings.ToLower(symbol.Name), identity.NormalizeFQN(symbol.FQN)} {
		if key == "" {
			continue
		}
		if entries, ok := g.deferred[key]; ok {
			pending = append(pending, entries...)
			delete(g.deferred, key)
			g.stats.DeferredCount -= len(entries)
		}
	}
	g.clampStatsLocked()
	return pending
}

// materializeDeferred attempts to turn one drained entry into an edge against
// the symbol that just appeared. Entries whose source has since vanished are
// dropped with a debug log; they are not re-deferred.
func (g *SymbolGraph) materializeDeferred(d deferredReference, target types.SymbolID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.symbolIDs[d.SourceID]; !ok {
		debug.Logf("graph: dropping deferred reference from vanished source %s", d.SourceID)
		return
	}
	g.addEdgeLocked(d.SourceID, target, d.Type, d.Location, d.Context)
}

// FindReferencesTo walks the incoming edges of a symbol.
func (g *SymbolGraph) FindReferencesTo(id types.SymbolID) []ReferenceResult {
	g.mu.RLock()
	edges := make([]types.ReferenceEdge, 0, len(g.incoming[id]))
	for _, e := range g.incoming[id] {
		edges = append(edges, *e)
	}
	g.mu.RUnlock()
	return g.rehydrate(edges)
}

// FindReferencesFrom walks the outgoing edges of a symbol.
func (g *SymbolGraph) FindReferencesFrom(id types.SymbolID) []ReferenceResult {
	g.mu.RLock()
	edges := make([]types.ReferenceEdge, 0, len(g.outgoing[id]))
	for _, e := range g.outgoing[id] {
		edges = append(edges, *e)
	}
	g.mu.RUnlock()
	return g.rehydrate(edges)
}

func (g *SymbolGraph) rehydrate(edges []types.ReferenceEdge) []ReferenceResult {
	out := make([]ReferenceResult, 0, len(edges))
	for _, e := range edges {
		out = append(out, ReferenceResult{
			Edge:     e,
			Location: e.Location.Rehydrate(),
			Source:   g.GetSymbol(e.SourceID),
			Target:   g.GetSymbol(e.TargetID),
		})
	}
	return out
}

// DeferredCount returns the number of pending references for a target key.
func (g *SymbolGraph) DeferredCount(targetKey string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.deferred[strings.ToLower(targetKey)])
}
