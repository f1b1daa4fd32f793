package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexls/apexls/internal/symtab"
	"github.com/apexls/apexls/internal/types"
)

// duplicateClassFixture registers two classes named Handler in separate
// files, the first containing a method whose scope disambiguation can latch
// onto.
func duplicateClassFixture(t *testing.T) (*SymbolGraph, methodScopeIDs) {
	t.Helper()
	g := New()

	tableA := symtab.New("file:///A.cls")
	require.NoError(t, tableA.AddSymbol(&types.Symbol{Name: "Handler", Kind: types.SymbolKindClass}))
	_, err := tableA.EnterScope("Handler", types.SymbolKindClass, types.Range{
		Start: types.Position{Line: 1, Column: 0},
		End:   types.Position{Line: 50, Column: 0},
	})
	require.NoError(t, err)
	require.NoError(t, tableA.AddSymbol(&types.Symbol{Name: "run", Kind: types.SymbolKindMethod}))
	methodScope, err := tableA.EnterScope("run", types.SymbolKindMethod, types.Range{
		Start: types.Position{Line: 2, Column: 0},
		End:   types.Position{Line: 10, Column: 0},
	})
	require.NoError(t, err)
	require.NoError(t, tableA.ExitScope())
	require.NoError(t, tableA.ExitScope())

	tableB := buildClassTable(t, "file:///B.cls", "Handler")

	g.AddSymbolTable(tableA, tableA.FileURI())
	g.AddSymbolTable(tableB, tableB.FileURI())

	return g, methodScopeIDs{methodInA: methodScope.ID}
}

type methodScopeIDs struct {
	methodInA types.SymbolID
}

func TestLookup_Unambiguous(t *testing.T) {
	g := New()
	table := buildClassTable(t, "file:///Only.cls", "OnlyClass")
	g.AddSymbolTable(table, table.FileURI())

	res := g.LookupSymbolWithContext("OnlyClass", nil)
	require.NotNil(t, res)
	assert.Equal(t, ConfidenceUnambiguous, res.Confidence)
	assert.False(t, res.IsAmbiguous)
	assert.Equal(t, "OnlyClass", res.Symbol.Name)
}

func TestLookup_NoCandidate(t *testing.T) {
	g := New()
	assert.Nil(t, g.LookupSymbolWithContext("Missing", nil))
}

func TestLookup_AmbiguousSameFile(t *testing.T) {
	g, _ := duplicateClassFixture(t)

	res := g.LookupSymbolWithContext("Handler", &types.ResolutionContext{
		SourceFileURI: "file:///B.cls",
	})
	require.NotNil(t, res)
	assert.Equal(t, ConfidenceSameFile, res.Confidence)
	assert.True(t, res.IsAmbiguous)
	assert.Equal(t, "file:///B.cls", res.Symbol.FileURI)
	assert.Len(t, res.Candidates, 2)
}

func TestLookup_AmbiguousScopeContains(t *testing.T) {
	g, ids := duplicateClassFixture(t)

	res := g.LookupSymbolWithContext("Handler", &types.ResolutionContext{
		CurrentScopeID: ids.methodInA,
	})
	require.NotNil(t, res)
	assert.Equal(t, ConfidenceSameScope, res.Confidence)
	assert.True(t, res.IsAmbiguous)
	assert.Equal(t, "file:///A.cls", res.Symbol.FileURI)
}

func TestLookup_AmbiguousFallback(t *testing.T) {
	g, _ := duplicateClassFixture(t)

	res := g.LookupSymbolWithContext("Handler", nil)
	require.NotNil(t, res)
	assert.Equal(t, ConfidenceFallback, res.Confidence)
	assert.True(t, res.IsAmbiguous)
	assert.NotNil(t, res.Symbol)
}

func TestLookup_NamespaceFilter(t *testing.T) {
	g := New()
	tableA := buildClassTable(t, "file:///A.cls", "Util")
	g.AddSymbolTable(tableA, tableA.FileURI())

	tableNS := symtab.New("apexlib://Acme/Util")
	require.NoError(t, tableNS.AddSymbol(&types.Symbol{
		Name: "Util", Kind: types.SymbolKindClass, Namespace: "Acme",
	}))
	g.AddSymbolTable(tableNS, tableNS.FileURI())

	res := g.LookupSymbolWithContext("Util", &types.ResolutionContext{ExpectedNamespace: "acme"})
	require.NotNil(t, res)
	assert.Equal(t, "Acme", res.Symbol.Namespace)
	assert.Equal(t, ConfidenceUnambiguous, res.Confidence)
}

func TestLookup_StaticFilter(t *testing.T) {
	g := New()
	table := buildClassTable(t, "file:///A.cls", "Svc",
		&types.Symbol{Name: "run", Kind: types.SymbolKindMethod, Modifiers: types.Modifiers{IsStatic: true}},
	)
	g.AddSymbolTable(table, table.FileURI())

	isStatic := false
	res := g.LookupSymbolWithContext("run", &types.ResolutionContext{IsStatic: &isStatic})
	// The static filter keeps types and matching members; a static-only
	// method still resolves when nothing else matches.
	require.NotNil(t, res)

	isStatic = true
	res = g.LookupSymbolWithContext("run", &types.ResolutionContext{IsStatic: &isStatic})
	require.NotNil(t, res)
	assert.True(t, res.Symbol.Modifiers.IsStatic)
}
