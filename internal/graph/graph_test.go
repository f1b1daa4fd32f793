package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexls/apexls/internal/symtab"
	"github.com/apexls/apexls/internal/types"
)

// buildClassTable builds a table with one class containing the given members.
func buildClassTable(t *testing.T, uri, className string, members ...*types.Symbol) *symtab.SymbolTable {
	t.Helper()
	table := symtab.New(uri)
	require.NoError(t, table.AddSymbol(&types.Symbol{Name: className, Kind: types.SymbolKindClass}))
	_, err := table.EnterScope(className, types.SymbolKindClass, types.Range{
		Start: types.Position{Line: 1, Column: 0},
		End:   types.Position{Line: 100, Column: 0},
	})
	require.NoError(t, err)
	for _, m := range members {
		require.NoError(t, table.AddSymbol(m))
	}
	require.NoError(t, table.ExitScope())
	return table
}

// buildNestedClassTable reproduces the nested OuterClass/InnerClass fixture.
func buildNestedClassTable(t *testing.T) *symtab.SymbolTable {
	t.Helper()
	table := symtab.New("file:///OuterClass.cls")

	require.NoError(t, table.AddSymbol(&types.Symbol{Name: "OuterClass", Kind: types.SymbolKindClass}))
	_, err := table.EnterScope("OuterClass", types.SymbolKindClass, types.Range{
		Start: types.Position{Line: 1, Column: 0},
		End:   types.Position{Line: 10, Column: 0},
	})
	require.NoError(t, err)

	require.NoError(t, table.AddSymbol(&types.Symbol{Name: "InnerClass", Kind: types.SymbolKindClass}))
	_, err = table.EnterScope("InnerClass", types.SymbolKindClass, types.Range{
		Start: types.Position{Line: 2, Column: 0},
		End:   types.Position{Line: 8, Column: 0},
	})
	require.NoError(t, err)

	require.NoError(t, table.AddSymbol(&types.Symbol{
		Name: "innerMethod", Kind: types.SymbolKindMethod, ReturnType: "String",
	}))

	require.NoError(t, table.ExitScope())
	require.NoError(t, table.ExitScope())
	return table
}

func TestGraph_NestedFQNs(t *testing.T) {
	g := New()
	table := buildNestedClassTable(t)
	g.AddSymbolTable(table, table.FileURI())

	inner := g.FindSymbolByFQN("outerclass.innerclass")
	require.Len(t, inner, 1)
	assert.Equal(t, "InnerClass", inner[0].Name)
	assert.Equal(t, "outerclass.innerclass", inner[0].FQN)

	method := g.FindSymbolByFQN("outerclass.innerclass.innermethod")
	require.Len(t, method, 1)
	assert.Equal(t, "innerMethod", method[0].Name)
	assert.Equal(t, "outerclass.innerclass.innermethod", method[0].FQN)

	// FQN lookup is case-insensitive.
	assert.Len(t, g.FindSymbolByFQN("OuterClass.InnerClass"), 1)
	assert.Len(t, g.FindSymbolByFQN("OUTERCLASS.INNERCLASS.INNERMETHOD"), 1)
}

func TestGraph_GetSymbolDelegates(t *testing.T) {
	g := New()
	table := buildNestedClassTable(t)
	g.AddSymbolTable(table, table.FileURI())

	for _, want := range table.GetAllSymbols() {
		got := g.GetSymbol(want.ID)
		require.NotNil(t, got)
		assert.Same(t, want, got, "graph must delegate, not copy")
	}

	assert.Nil(t, g.GetSymbol("file:///Nope.cls::class:Nope"))
}

func TestGraph_AddSymbolIdempotent(t *testing.T) {
	g := New()
	table := buildClassTable(t, "file:///A.cls", "A")
	g.AddSymbolTable(table, table.FileURI())

	before := g.GetStats()
	sym := table.GetAllSymbols()[0]
	g.AddSymbol(sym, table.FileURI(), table)
	assert.Equal(t, before.TotalSymbols, g.GetStats().TotalSymbols)
}

func TestGraph_FileIndexMatchesTable(t *testing.T) {
	g := New()
	table := buildNestedClassTable(t)
	g.AddSymbolTable(table, table.FileURI())

	inGraph := g.GetSymbolsInFile(table.FileURI())
	inTable := table.GetAllSymbols()
	require.Len(t, inGraph, len(inTable))

	want := make(map[types.SymbolID]bool)
	for _, s := range inTable {
		want[s.ID] = true
	}
	for _, s := range inGraph {
		assert.True(t, want[s.ID])
	}
}

func TestGraph_FindSymbolByName_CaseInsensitive(t *testing.T) {
	g := New()
	table := buildClassTable(t, "file:///A.cls", "AccountService")
	g.AddSymbolTable(table, table.FileURI())

	assert.Len(t, g.FindSymbolByName("accountservice"), 1)
	assert.Len(t, g.FindSymbolByName("ACCOUNTSERVICE"), 1)
	assert.Empty(t, g.FindSymbolByName("other"))
}

func addTwoClasses(t *testing.T, g *SymbolGraph) (a, b *types.Symbol) {
	t.Helper()
	tableA := buildClassTable(t, "file:///A.cls", "AClass",
		&types.Symbol{Name: "doWork", Kind: types.SymbolKindMethod})
	tableB := buildClassTable(t, "file:///B.cls", "BClass")
	g.AddSymbolTable(tableA, tableA.FileURI())
	g.AddSymbolTable(tableB, tableB.FileURI())

	a = g.FindSymbolByName("AClass")[0]
	b = g.FindSymbolByName("BClass")[0]
	return a, b
}

func refLoc(line int) types.Range {
	return types.Range{
		Start: types.Position{Line: line, Column: 4},
		End:   types.Position{Line: line, Column: 12},
	}
}

func TestGraph_AddReference_CreatesEdge(t *testing.T) {
	g := New()
	a, b := addTwoClasses(t, g)

	require.NoError(t, g.AddReference(b.ID, a.ID, types.RefTypeTypeReference, refLoc(3), nil))

	refs := g.FindReferencesTo(a.ID)
	require.Len(t, refs, 1)
	assert.Equal(t, b.ID, refs[0].Edge.SourceID)
	assert.Equal(t, refLoc(3), refs[0].Location, "location rehydrates from compact form")
	assert.Same(t, b, refs[0].Source)
	assert.Same(t, a, refs[0].Target)

	node := g.GetNode(a.ID)
	require.NotNil(t, node)
	assert.Equal(t, 1, node.ReferenceCount)

	out := g.FindReferencesFrom(b.ID)
	require.Len(t, out, 1)
	assert.Equal(t, a.ID, out[0].Edge.TargetID)
}

func TestGraph_AddReference_Idempotent(t *testing.T) {
	g := New()
	a, b := addTwoClasses(t, g)

	for i := 0; i < 3; i++ {
		require.NoError(t, g.AddReference(b.ID, a.ID, types.RefTypeTypeReference, refLoc(3), nil))
	}
	assert.Len(t, g.FindReferencesTo(a.ID), 1)
	assert.Equal(t, 1, g.GetNode(a.ID).ReferenceCount)

	// A different source location is a distinct edge.
	require.NoError(t, g.AddReference(b.ID, a.ID, types.RefTypeTypeReference, refLoc(7), nil))
	assert.Len(t, g.FindReferencesTo(a.ID), 2)
}

func TestGraph_AddReference_BadLocation(t *testing.T) {
	g := New()
	a, b := addTwoClasses(t, g)
	err := g.AddReference(b.ID, a.ID, types.RefTypeTypeReference,
		types.Range{Start: types.Position{Line: -1}}, nil)
	assert.Error(t, err)
}

func TestGraph_DeferredReference_FlushedOnArrival(t *testing.T) {
	g := New()
	tableB := buildClassTable(t, "file:///B.cls", "BClass")
	g.AddSymbolTable(tableB, tableB.FileURI())
	b := g.FindSymbolByName("BClass")[0]

	// Target AClass not yet registered: the edge is held, not warned about.
	missing := types.SymbolID("file:///A.cls::class:AClass")
	require.NoError(t, g.AddReference(b.ID, missing, types.RefTypeTypeReference, refLoc(3), nil))
	assert.Empty(t, g.FindReferencesFrom(b.ID))
	assert.Equal(t, 1, g.DeferredCount("aclass"))

	// Target arrives: the deferred entry materializes exactly once.
	tableA := buildClassTable(t, "file:///A.cls", "AClass")
	g.AddSymbolTable(tableA, tableA.FileURI())

	a := g.FindSymbolByName("AClass")[0]
	assert.Equal(t, 0, g.DeferredCount("aclass"))
	refs := g.FindReferencesTo(a.ID)
	require.Len(t, refs, 1)
	assert.Equal(t, b.ID, refs[0].Edge.SourceID)
}

func TestGraph_DeferredByName(t *testing.T) {
	g := New()
	tableB := buildClassTable(t, "file:///B.cls", "BClass")
	g.AddSymbolTable(tableB, tableB.FileURI())
	b := g.FindSymbolByName("BClass")[0]

	require.NoError(t, g.AddDeferredReference(b.ID, "Widget", types.RefTypeConstructorCall, refLoc(9), nil))
	assert.Equal(t, 1, g.DeferredCount("widget"))

	tableW := buildClassTable(t, "file:///Widget.cls", "Widget")
	g.AddSymbolTable(tableW, tableW.FileURI())

	w := g.FindSymbolByName("Widget")[0]
	assert.Len(t, g.FindReferencesTo(w.ID), 1)
	assert.Equal(t, 0, g.DeferredCount("widget"))
}

func TestGraph_RemoveFile_Hygiene(t *testing.T) {
	g := New()
	a, b := addTwoClasses(t, g)
	require.NoError(t, g.AddReference(b.ID, a.ID, types.RefTypeTypeReference, refLoc(3), nil))

	g.RemoveFile("file:///A.cls")

	// B's symbols stay intact.
	assert.True(t, g.HasSymbol(b.ID))
	assert.Len(t, g.GetSymbolsInFile("file:///B.cls"), 1)

	// A's symbols, indices, and edges are gone.
	assert.False(t, g.HasSymbol(a.ID))
	assert.Nil(t, g.GetSymbol(a.ID))
	assert.Empty(t, g.FindSymbolByName("AClass"))
	assert.Empty(t, g.FindSymbolByFQN("aclass"))
	assert.Empty(t, g.GetSymbolsInFile("file:///A.cls"))
	assert.Empty(t, g.FindReferencesFrom(b.ID))

	// No surviving symbol ID references the removed file.
	for _, id := range g.SymbolIDs() {
		sym := g.GetSymbol(id)
		require.NotNil(t, sym)
		assert.NotEqual(t, "file:///A.cls", sym.FileURI)
	}

	// B's now-dangling reference is parked under A's target key.
	assert.Equal(t, 1, g.DeferredCount("aclass"))
}

func TestGraph_RemoveFile_ReaddRematerializes(t *testing.T) {
	g := New()
	a, b := addTwoClasses(t, g)
	require.NoError(t, g.AddReference(b.ID, a.ID, types.RefTypeTypeReference, refLoc(3), nil))

	g.RemoveFile("file:///A.cls")
	tableA := buildClassTable(t, "file:///A.cls", "AClass")
	g.AddSymbolTable(tableA, tableA.FileURI())

	a2 := g.FindSymbolByName("AClass")[0]
	refs := g.FindReferencesTo(a2.ID)
	require.Len(t, refs, 1)
	assert.Equal(t, b.ID, refs[0].Edge.SourceID)
}

func TestGraph_RemoveFile_DropsDeferredFromRemovedSource(t *testing.T) {
	g := New()
	tableB := buildClassTable(t, "file:///B.cls", "BClass")
	g.AddSymbolTable(tableB, tableB.FileURI())
	b := g.FindSymbolByName("BClass")[0]

	require.NoError(t, g.AddDeferredReference(b.ID, "Ghost", types.RefTypeTypeReference, refLoc(2), nil))
	require.Equal(t, 1, g.DeferredCount("ghost"))

	g.RemoveFile("file:///B.cls")
	assert.Equal(t, 0, g.DeferredCount("ghost"))
}

func TestGraph_DetectCircularDependencies(t *testing.T) {
	g := New()
	a, b := addTwoClasses(t, g)
	tableC := buildClassTable(t, "file:///C.cls", "CClass")
	g.AddSymbolTable(tableC, tableC.FileURI())
	c := g.FindSymbolByName("CClass")[0]

	require.NoError(t, g.AddReference(a.ID, b.ID, types.RefTypeTypeReference, refLoc(1), nil))
	require.NoError(t, g.AddReference(b.ID, a.ID, types.RefTypeInheritance, refLoc(2), nil))
	// C points into the cycle but is not part of it.
	require.NoError(t, g.AddReference(c.ID, a.ID, types.RefTypeTypeReference, refLoc(3), nil))

	sccs := g.DetectCircularDependencies()
	require.Len(t, sccs, 1)
	assert.Len(t, sccs[0], 2)
	assert.ElementsMatch(t, []types.SymbolID{a.ID, b.ID}, sccs[0])
}

func TestGraph_CycleDetectionIgnoresCallEdges(t *testing.T) {
	g := New()
	a, b := addTwoClasses(t, g)

	require.NoError(t, g.AddReference(a.ID, b.ID, types.RefTypeMethodCall, refLoc(1), nil))
	require.NoError(t, g.AddReference(b.ID, a.ID, types.RefTypeMethodCall, refLoc(2), nil))

	assert.Empty(t, g.DetectCircularDependencies(), "call cycles are not type cycles")
}

func TestGraph_AnalyzeDependencies(t *testing.T) {
	g := New()
	a, b := addTwoClasses(t, g)
	tableC := buildClassTable(t, "file:///C.cls", "CClass")
	g.AddSymbolTable(tableC, tableC.FileURI())
	c := g.FindSymbolByName("CClass")[0]

	// a depends on b; b and c depend on a.
	require.NoError(t, g.AddReference(a.ID, b.ID, types.RefTypeTypeReference, refLoc(1), nil))
	require.NoError(t, g.AddReference(b.ID, a.ID, types.RefTypeMethodCall, refLoc(2), nil))
	require.NoError(t, g.AddReference(c.ID, a.ID, types.RefTypeMethodCall, refLoc(3), nil))

	analysis := g.AnalyzeDependencies(a.ID)
	assert.ElementsMatch(t, []types.SymbolID{b.ID}, analysis.Dependencies)
	assert.ElementsMatch(t, []types.SymbolID{b.ID, c.ID}, analysis.Dependents)
	assert.Equal(t, 2*2+1, analysis.ImpactScore)
}

func TestGraph_Clear(t *testing.T) {
	g := New()
	a, b := addTwoClasses(t, g)
	require.NoError(t, g.AddReference(b.ID, a.ID, types.RefTypeTypeReference, refLoc(1), nil))

	g.Clear()
	stats := g.GetStats()
	assert.Zero(t, stats.TotalSymbols)
	assert.Zero(t, stats.TotalEdges)
	assert.Zero(t, stats.TotalFiles)
	assert.Empty(t, g.SymbolIDs())
	assert.Nil(t, g.GetSymbol(a.ID))
}

func TestGraph_Stats(t *testing.T) {
	g := New()
	a, b := addTwoClasses(t, g)

	stats := g.GetStats()
	assert.Equal(t, 3, stats.TotalSymbols, "AClass, doWork, BClass")
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Zero(t, stats.TotalEdges)

	require.NoError(t, g.AddReference(b.ID, a.ID, types.RefTypeTypeReference, refLoc(1), nil))
	assert.Equal(t, 1, g.GetStats().TotalEdges)
}
