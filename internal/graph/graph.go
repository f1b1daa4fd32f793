// Package graph maintains the cross-file reference graph. Vertices carry no
// symbol data; every symbol lookup delegates to the owning file's symbol
// table, so the graph never duplicates symbol storage.
package graph

import (
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/apexls/apexls/internal/debug"
	"github.com/apexls/apexls/internal/identity"
	"github.com/apexls/apexls/internal/symtab"
	"github.com/apexls/apexls/internal/types"
)

// Stats contains pre-computed graph statistics.
type Stats struct {
	TotalSymbols   int `json:"total_symbols"`
	TotalEdges     int `json:"total_edges"`
	TotalFiles     int `json:"total_files"`
	DeferredCount  int `json:"deferred_count"`
	EstimatedBytes int `json:"estimated_bytes"`
}

// estimatedBytesPerEntry is a coarse per-symbol memory estimate covering the
// vertex, index entries, and map overhead.
const estimatedBytesPerEntry = 256

// SymbolGraph is the process-wide reference-tracking index. All mutation goes
// through scheduler tasks; the mutex keeps read-only queries safe for
// consumers that hold results across task boundaries.
type SymbolGraph struct {
	// Per-file authoritative stores
	tables map[string]*symtab.SymbolTable // fileURI -> table

	// Existence predicate and delegation map
	symbolIDs  map[types.SymbolID]struct{}
	symbolFile map[types.SymbolID]string // symbol -> owning fileURI

	// Lookup indices. Name and FQN keys are lowercased before insertion and
	// before lookup.
	nameIndex map[string][]types.SymbolID
	fqnIndex  map[string][]types.SymbolID
	fileIndex map[string][]types.SymbolID

	// Vertices and edges
	nodes    map[types.SymbolID]*types.ReferenceNode
	outgoing map[types.SymbolID][]*types.ReferenceEdge
	incoming map[types.SymbolID][]*types.ReferenceEdge
	edgeKeys map[uint64]struct{} // dedup on (src, dst, type, srcLocation)

	// Pending edges whose target symbol has not been registered yet, keyed by
	// the target's canonical key. Deliberately a value store, not live
	// pointers, so unresolved forward references do not root symbols.
	deferred map[string][]deferredReference

	nextNodeID uint32
	stats      Stats
	mu         sync.RWMutex
}

// New creates an empty symbol graph.
func New() *SymbolGraph {
	// Conservative initial sizes; maps grow as the workspace is indexed.
	const expectedSymbols = 256
	return &SymbolGraph{
		tables:     make(map[string]*symtab.SymbolTable, 32),
		symbolIDs:  make(map[types.SymbolID]struct{}, expectedSymbols),
		symbolFile: make(map[types.SymbolID]string, expectedSymbols),
		nameIndex:  make(map[string][]types.SymbolID, expectedSymbols),
		fqnIndex:   make(map[string][]types.SymbolID, expectedSymbols),
		fileIndex:  make(map[string][]types.SymbolID, 32),
		nodes:      make(map[types.SymbolID]*types.ReferenceNode, expectedSymbols),
		outgoing:   make(map[types.SymbolID][]*types.ReferenceEdge, expectedSymbols),
		incoming:   make(map[types.SymbolID][]*types.ReferenceEdge, expectedSymbols),
		edgeKeys:   make(map[uint64]struct{}, expectedSymbols*2),
		deferred:   make(map[string][]deferredReference, 64),
		nextNodeID: 1,
	}
}

// AddSymbolTable registers a file's table and indexes every symbol in it.
// Re-adding a URI replaces the previous table wholesale.
func (g *SymbolGraph) AddSymbolTable(table *symtab.SymbolTable, fileURI string) {
	g.mu.Lock()
	if _, exists := g.tables[fileURI]; exists {
		g.removeFileLocked(fileURI)
	}
	g.tables[fileURI] = table
	g.mu.Unlock()

	for _, symbol := range table.GetAllSymbols() {
		g.AddSymbol(symbol, fileURI, table)
	}
}

// AddSymbol registers one symbol. Idempotent on the symbol ID: re-adding an
// existing ID only refreshes the vertex timestamp. Side effects: the table is
// registered for the file if new, all indices gain an entry, a vertex is
// created, and any deferred references waiting for this symbol are drained.
func (g *SymbolGraph) AddSymbol(symbol *types.Symbol, fileURI string, table *symtab.SymbolTable) {
	g.mu.Lock()

	if _, exists := g.tables[fileURI]; !exists && table != nil {
		g.tables[fileURI] = table
	}

	if _, exists := g.symbolIDs[symbol.ID]; exists {
		if node, ok := g.nodes[symbol.ID]; ok {
			node.LastUpdated = time.Now()
		}
		g.mu.Unlock()
		return
	}

	g.symbolIDs[symbol.ID] = struct{}{}
	g.symbolFile[symbol.ID] = fileURI
	g.fileIndex[fileURI] = append(g.fileIndex[fileURI], symbol.ID)

	nameKey := strings.ToLower(symbol.Name)
	g.nameIndex[nameKey] = append(g.nameIndex[nameKey], symbol.ID)
	if symbol.FQN != "" {
		fqnKey := identity.NormalizeFQN(symbol.FQN)
		g.fqnIndex[fqnKey] = append(g.fqnIndex[fqnKey], symbol.ID)
	}

	g.nodes[symbol.ID] = &types.ReferenceNode{
		SymbolID:    symbol.ID,
		FileURI:     fileURI,
		LastUpdated: time.Now(),
		NodeID:      g.nextNodeID,
	}
	g.nextNodeID++

	g.stats.TotalSymbols++
	g.stats.TotalFiles = len(g.tables)
	g.stats.EstimatedBytes += estimatedBytesPerEntry

	pending := g.takeDeferredLocked(symbol)
	g.mu.Unlock()

	// Flush outside the critical section re-entering the normal add path;
	// each entry is attempted at most once.
	for _, d := range pending {
		g.materializeDeferred(d, symbol.ID)
	}
}

// GetSymbol resolves a symbol ID by delegating to the owning table. Returns
// nil when either the file mapping or the table lookup misses.
func (g *SymbolGraph) GetSymbol(id types.SymbolID) *types.Symbol {
	g.mu.RLock()
	fileURI, ok := g.symbolFile[id]
	if !ok {
		g.mu.RUnlock()
		debug.Logf("graph: dangling symbol id %s", id)
		return nil
	}
	table, ok := g.tables[fileURI]
	g.mu.RUnlock()
	if !ok {
		debug.Logf("graph: no table for %s", fileURI)
		return nil
	}
	return table.GetSymbol(id)
}

// getAllSymbolsByID resolves every symbol sharing an ID (method overloads).
func (g *SymbolGraph) getAllSymbolsByID(id types.SymbolID) []*types.Symbol {
	g.mu.RLock()
	fileURI, ok := g.symbolFile[id]
	table := g.tables[fileURI]
	g.mu.RUnlock()
	if !ok || table == nil {
		return nil
	}
	return table.GetAllSymbolsByID(id)
}

// FindSymbolByName returns every symbol with the given name, any case.
func (g *SymbolGraph) FindSymbolByName(name string) []*types.Symbol {
	g.mu.RLock()
	ids := append([]types.SymbolID(nil), g.nameIndex[strings.ToLower(name)]...)
	g.mu.RUnlock()

	out := make([]*types.Symbol, 0, len(ids))
	for _, id := range ids {
		if s := g.GetSymbol(id); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// FindSymbolByFQN returns every symbol with the given fully qualified name.
// One-to-many: overloaded methods share an FQN.
func (g *SymbolGraph) FindSymbolByFQN(fqn string) []*types.Symbol {
	g.mu.RLock()
	ids := append([]types.SymbolID(nil), g.fqnIndex[identity.NormalizeFQN(fqn)]...)
	g.mu.RUnlock()

	out := make([]*types.Symbol, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.getAllSymbolsByID(id)...)
	}
	return out
}

// GetSymbolsInFile returns every symbol registered for a file URI.
func (g *SymbolGraph) GetSymbolsInFile(fileURI string) []*types.Symbol {
	g.mu.RLock()
	ids := append([]types.SymbolID(nil), g.fileIndex[fileURI]...)
	g.mu.RUnlock()

	out := make([]*types.Symbol, 0, len(ids))
	for _, id := range ids {
		if s := g.GetSymbol(id); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// GetSymbolTable returns the registered table for a file, or nil.
func (g *SymbolGraph) GetSymbolTable(fileURI string) *symtab.SymbolTable {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tables[fileURI]
}

// HasSymbol reports whether an ID is registered. symbolIDs is the
// authoritative existence predicate.
func (g *SymbolGraph) HasSymbol(id types.SymbolID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.symbolIDs[id]
	return ok
}

// SymbolIDs returns a snapshot of every registered symbol ID.
func (g *SymbolGraph) SymbolIDs() []types.SymbolID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]types.SymbolID, 0, len(g.symbolIDs))
	for id := range g.symbolIDs {
		out = append(out, id)
	}
	return out
}

// FileURIs returns every file with a registered table.
func (g *SymbolGraph) FileURIs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.tables))
	for uri := range g.tables {
		out = append(out, uri)
	}
	return out
}

// GetNode returns the vertex for a symbol, or nil.
func (g *SymbolGraph) GetNode(id types.SymbolID) *types.ReferenceNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if node, ok := g.nodes[id]; ok {
		copied := *node
		return &copied
	}
	return nil
}

// RemoveFile removes a file's table, symbols, index entries, and every edge
// touching its symbols. Edges from surviving files into the removed symbols
// are demoted back to deferred references under the target's canonical key so
// they can re-materialize if the file returns. Deferred entries sourced from
// the removed file are dropped.
func (g *SymbolGraph) RemoveFile(fileURI string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeFileLocked(fileURI)
}

func (g *SymbolGraph) removeFileLocked(fileURI string) {
	ids, ok := g.fileIndex[fileURI]
	if !ok {
		return
	}

	removed := make(map[types.SymbolID]struct{}, len(ids))
	for _, id := range ids {
		removed[id] = struct{}{}
	}

	for _, id := range ids {
		symbol := g.symbolLocked(id)

		// Outgoing edges disappear with their source.
		for _, edge := range g.outgoing[id] {
			g.dropEdgeKeyLocked(edge)
			g.incoming[edge.TargetID] = filterEdges(g.incoming[edge.TargetID], edge)
			if node, ok := g.nodes[edge.TargetID]; ok && node.ReferenceCount > 0 {
				node.ReferenceCount--
			}
			g.stats.TotalEdges--
		}
		delete(g.outgoing, id)

		// Incoming edges from surviving sources demote to deferred entries.
		for _, edge := range g.incoming[id] {
			g.dropEdgeKeyLocked(edge)
			g.outgoing[edge.SourceID] = filterEdges(g.outgoing[edge.SourceID], edge)
			g.stats.TotalEdges--
			if _, gone := removed[edge.SourceID]; gone {
				continue
			}
			key := g.targetKeyForSymbolLocked(id, symbol)
			g.deferred[key] = append(g.deferred[key], deferredReference{
				SourceID:      edge.SourceID,
				TargetID:      edge.TargetID,
				TargetKey:     key,
				Type:          edge.Type,
				Location:      edge.Location,
				Context:       edge.Context,
				SourceFileURI: edge.SourceFileURI,
			})
			g.stats.DeferredCount++
		}
		delete(g.incoming, id)

		delete(g.symbolIDs, id)
		delete(g.symbolFile, id)
		delete(g.nodes, id)
		if symbol != nil {
			g.removeFromSliceIndex(g.nameIndex, strings.ToLower(symbol.Name), id)
			if symbol.FQN != "" {
				g.removeFromSliceIndex(g.fqnIndex, identity.NormalizeFQN(symbol.FQN), id)
			}
		} else {
			g.scrubSliceIndexes(id)
		}
		g.stats.TotalSymbols--
		g.stats.EstimatedBytes -= estimatedBytesPerEntry
	}

	// Deferred entries originating in the removed file are dropped.
	for key, pending := range g.deferred {
		kept := pending[:0]
		for _, d := range pending {
			if d.SourceFileURI == fileURI {
				g.stats.DeferredCount--
				continue
			}
			kept = append(kept, d)
		}
		if len(kept) == 0 {
			delete(g.deferred, key)
		} else {
			g.deferred[key] = kept
		}
	}

	delete(g.fileIndex, fileURI)
	delete(g.tables, fileURI)
	g.stats.TotalFiles = len(g.tables)
	g.clampStatsLocked()
}

// Clear wipes all graph state.
func (g *SymbolGraph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.tables = make(map[string]*symtab.SymbolTable)
	g.symbolIDs = make(map[types.SymbolID]struct{})
	g.symbolFile = make(map[types.SymbolID]string)
	g.nameIndex = make(map[string][]types.SymbolID)
	g.fqnIndex = make(map[string][]types.SymbolID)
	g.fileIndex = make(map[string][]types.SymbolID)
	g.nodes = make(map[types.SymbolID]*types.ReferenceNode)
	g.outgoing = make(map[types.SymbolID][]*types.ReferenceEdge)
	g.incoming = make(map[types.SymbolID][]*types.ReferenceEdge)
	g.edgeKeys = make(map[uint64]struct{})
	g.deferred = make(map[string][]deferredReference)
	g.nextNodeID = 1
	g.stats = Stats{}
}

// GetStats returns the pre-computed statistics snapshot.
func (g *SymbolGraph) GetStats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.stats
}

// symbolLocked resolves a symbol while holding the mutex. Table lookups do
// not re-enter the graph lock.
func (g *SymbolGraph) symbolLocked(id types.SymbolID) *types.Symbol {
	fileURI, ok := g.symbolFile[id]
	if !ok {
		return nil
	}
	table, ok := g.tables[fileURI]
	if !ok {
		return nil
	}
	return table.GetSymbol(id)
}

func (g *SymbolGraph) removeFromSliceIndex(index map[string][]types.SymbolID, key string, id types.SymbolID) {
	entries := index[key]
	for i, e := range entries {
		if e == id {
			index[key] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(index[key]) == 0 {
		delete(index, key)
	}
}

// scrubSliceIndexes removes an ID from every index bucket. Only used on the
// slow path when the owning table is already gone.
func (g *SymbolGraph) scrubSliceIndexes(id types.SymbolID) {
	for key := range g.nameIndex {
		g.removeFromSliceIndex(g.nameIndex, key, id)
	}
	for key := range g.fqnIndex {
		g.removeFromSliceIndex(g.fqnIndex, key, id)
	}
}

// clampStatsLocked clamps counters to zero. Negative counts indicate an
// internal bug; they are logged and clamped, never surfaced.
func (g *SymbolGraph) clampStatsLocked() {
	if g.stats.TotalSymbols < 0 {
		debug.Logf("graph: negative symbol count %d clamped", g.stats.TotalSymbols)
		g.stats.TotalSymbols = 0
	}
	if g.stats.TotalEdges < 0 {
		debug.Logf("graph: negative edge count %d clamped", g.stats.TotalEdges)
		g.stats.TotalEdges = 0
	}
	if g.stats.DeferredCount < 0 {
		debug.Logf("graph: negative deferred count %d clamped", g.stats.DeferredCount)
		g.stats.DeferredCount = 0
	}
	if g.stats.EstimatedBytes < 0 {
		g.stats.EstimatedBytes = 0
	}
}

func filterEdges(edges []*types.ReferenceEdge, drop *types.ReferenceEdge) []*types.ReferenceEdge {
	out := edges[:0]
	for _, e := range edges {
		if e != drop {
			out = append(out, e)
		}
	}
	return out
}

// edgeKey computes the dedup key for (src, dst, type, srcLocation).
func edgeKey(src, dst types.SymbolID, refType types.ReferenceType, loc types.CompactLocation) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(string(src))
	_, _ = h.Write([]byte{0, byte(refType)})
	_, _ = h.WriteString(string(dst))
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(loc >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

func (g *SymbolGraph) dropEdgeKeyLocked(edge *types.ReferenceEdge) {
	delete(g.edgeKeys, edgeKey(edge.SourceID, edge.TargetID, edge.Type, edge.Location))
}
