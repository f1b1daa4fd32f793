package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apexerrors "github.com/apexls/apexls/internal/errors"
	"github.com/apexls/apexls/internal/types"
)

func TestGenerateParse_RoundTrip(t *testing.T) {
	cases := []struct {
		name      string
		symbol    *types.Symbol
		scopePath []string
		fileURI   string
	}{
		{
			name:    "top-level class",
			symbol:  &types.Symbol{Name: "OuterClass", Kind: types.SymbolKindClass},
			fileURI: "file:///OuterClass.cls",
		},
		{
			name:      "nested method",
			symbol:    &types.Symbol{Name: "doWork", Kind: types.SymbolKindMethod},
			scopePath: []string{"class:Foo"},
			fileURI:   "file:///Foo.cls",
		},
		{
			name:      "variable in block",
			symbol:    &types.Symbol{Name: "total", Kind: types.SymbolKindVariable},
			scopePath: []string{"class:Foo", "method:bar", "block1"},
			fileURI:   "file:///Foo.cls",
		},
		{
			name:      "library type",
			symbol:    &types.Symbol{Name: "String", Kind: types.SymbolKindClass},
			fileURI:   "apexlib://System/String",
			scopePath: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := GenerateSymbolID(tc.symbol, tc.scopePath, tc.fileURI)
			parsed, err := ParseSymbolID(id)
			require.NoError(t, err)

			assert.Equal(t, tc.fileURI, parsed.FileURI)
			assert.Equal(t, tc.scopePath, parsed.ScopePath)
			assert.Equal(t, tc.symbol.Kind, parsed.Kind)
			assert.Equal(t, tc.symbol.Name, parsed.Name)
		})
	}
}

func TestGenerateSymbolID_Deterministic(t *testing.T) {
	sym := &types.Symbol{Name: "doWork", Kind: types.SymbolKindMethod}
	id1 := GenerateSymbolID(sym, []string{"class:Foo"}, "file:///Foo.cls")
	id2 := GenerateSymbolID(sym, []string{"class:Foo"}, "file:///Foo.cls")
	assert.Equal(t, id1, id2)
	assert.Equal(t, types.SymbolID("file:///Foo.cls:class:Foo:method:doWork"), id1)
}

func TestParseSymbolID_Malformed(t *testing.T) {
	cases := []string{
		"",
		"garbage",
		"file:///Foo.cls",
		"file:///Foo.cls:class:Foo:notakind:x",
		"no-scheme:scope:class:Name",
	}
	for _, bad := range cases {
		_, err := ParseSymbolID(types.SymbolID(bad))
		require.Error(t, err, "input %q", bad)
		assert.ErrorIs(t, err, apexerrors.ErrMalformedID)
	}
}

func TestComputeFQN_NestedChain(t *testing.T) {
	outer := &types.Symbol{Name: "OuterClass", Kind: types.SymbolKindClass}
	inner := &types.Symbol{Name: "InnerClass", Kind: types.SymbolKindClass}
	method := &types.Symbol{Name: "innerMethod", Kind: types.SymbolKindMethod}

	assert.Equal(t, "outerclass", ComputeFQN(outer, nil))
	assert.Equal(t, "outerclass.innerclass", ComputeFQN(inner, []*types.Symbol{outer}))
	assert.Equal(t, "outerclass.innerclass.innermethod", ComputeFQN(method, []*types.Symbol{outer, inner}))
}

func TestComputeFQN_IdempotentAndLowercase(t *testing.T) {
	outer := &types.Symbol{Name: "OuterClass", Kind: types.SymbolKindClass}
	method := &types.Symbol{Name: "InnerMethod", Kind: types.SymbolKindMethod}

	fqn := ComputeFQN(method, []*types.Symbol{outer})
	assert.Equal(t, strings.ToLower(fqn), fqn)

	// A symbol with a non-empty FQN keeps it.
	method.FQN = fqn
	assert.Equal(t, fqn, ComputeFQN(method, []*types.Symbol{outer}))
	method.FQN = "pre.existing"
	assert.Equal(t, "pre.existing", ComputeFQN(method, []*types.Symbol{outer}))
}

func TestComputeFQN_ExcludesBlocks(t *testing.T) {
	outer := &types.Symbol{Name: "Foo", Kind: types.SymbolKindClass}
	method := &types.Symbol{Name: "bar", Kind: types.SymbolKindMethod}
	block := &types.Symbol{Name: "block1", Kind: types.SymbolKindBlock}
	local := &types.Symbol{Name: "x", Kind: types.SymbolKindVariable}

	assert.Equal(t, "foo.bar.x", ComputeFQN(local, []*types.Symbol{outer, method, block}))
}

func TestBlockSegment(t *testing.T) {
	assert.Equal(t, "block1", BlockSegment(1))
	assert.Equal(t, "block2", BlockSegment(2))
}

func TestScopeSegment(t *testing.T) {
	assert.Equal(t, "class:Foo", ScopeSegment(types.SymbolKindClass, "Foo"))
	assert.Equal(t, "method:bar", ScopeSegment(types.SymbolKindMethod, "bar"))
}
