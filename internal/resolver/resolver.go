// Package resolver performs scope-aware name resolution against the symbol
// graph. Lexical scopes win over graph-wide lookups, which implements
// shadowing: a local variable hides a field of the same name.
package resolver

import (
	"strings"

	"github.com/apexls/apexls/internal/debug"
	"github.com/apexls/apexls/internal/graph"
	"github.com/apexls/apexls/internal/symtab"
	"github.com/apexls/apexls/internal/types"
)

// Resolution is the outcome of resolving one use-site.
type Resolution struct {
	Symbol      *types.Symbol   `json:"symbol"`
	Confidence  float64         `json:"confidence"`
	IsAmbiguous bool            `json:"is_ambiguous"`
	Candidates  []*types.Symbol `json:"candidates,omitempty"`
}

// Resolver resolves names against a symbol graph.
type Resolver struct {
	graph *graph.SymbolGraph
}

// New creates a resolver over a graph.
func New(g *graph.SymbolGraph) *Resolver {
	return &Resolver{graph: g}
}

// ResolveAtPosition resolves a name used at a position in a file.
//
// Resolution order:
//  1. The scope hierarchy at the position, innermost outward; a symbol whose
//     parent is the scope and whose name matches case-insensitively wins.
//  2. Graph-wide contextual lookup with the file and innermost scope as
//     disambiguation context.
//
// Qualified names (Outer.Inner.member) resolve the head through the same
// chain, then walk type members dotting forward.
func (r *Resolver) ResolveAtPosition(fileURI string, pos types.Position, name string) *Resolution {
	if strings.Contains(name, ".") {
		return r.resolveQualified(fileURI, pos, name, nil)
	}
	return r.resolveSimple(fileURI, pos, name, nil)
}

// ResolveWithContext is ResolveAtPosition with an explicit static/instance
// filter carried into member lookups.
func (r *Resolver) ResolveWithContext(fileURI string, pos types.Position, name string, ctx *types.ResolutionContext) *Resolution {
	if strings.Contains(name, ".") {
		return r.resolveQualified(fileURI, pos, name, ctx)
	}
	return r.resolveSimple(fileURI, pos, name, ctx)
}

func (r *Resolver) resolveSimple(fileURI string, pos types.Position, name string, ctx *types.ResolutionContext) *Resolution {
	table := r.graph.GetSymbolTable(fileURI)

	var innermost types.SymbolID
	if table != nil {
		scopes := table.GetScopeHierarchy(pos)
		// Innermost scope last; walk backwards for lexical shadowing.
		for i := len(scopes) - 1; i >= 0; i-- {
			if s := r.lookupInScope(table, scopes[i], name); s != nil {
				return &Resolution{Symbol: s, Confidence: graph.ConfidenceUnambiguous}
			}
		}
		if len(scopes) > 1 {
			innermost = scopes[len(scopes)-1].ID
		}
	}

	lookupCtx := &types.ResolutionContext{
		SourceFileURI:  fileURI,
		CurrentScopeID: innermost,
	}
	if ctx != nil {
		lookupCtx.ExpectedNamespace = ctx.ExpectedNamespace
		lookupCtx.IsStatic = ctx.IsStatic
	}

	result := r.graph.LookupSymbolWithContext(name, lookupCtx)
	if result == nil {
		debug.LogResolver("unresolved name %q at %s:%d:%d", name, fileURI, pos.Line, pos.Column)
		return nil
	}
	return &Resolution{
		Symbol:      result.Symbol,
		Confidence:  result.Confidence,
		IsAmbiguous: result.IsAmbiguous,
		Candidates:  result.Candidates,
	}
}

func (r *Resolver) lookupInScope(table *symtab.SymbolTable, scope *symtab.Scope, name string) *types.Symbol {
	for _, s := range table.GetAllSymbols() {
		if s.ParentID == scope.ID && s.Kind != types.SymbolKindBlock && s.NameEquals(name) {
			return s
		}
	}
	return nil
}

// resolveQualified resolves "Outer.Inner.member" style names: the head via
// the normal chain, then each member by walking the previous hit's type.
func (r *Resolver) resolveQualified(fileURI string, pos types.Position, qualified string, ctx *types.ResolutionContext) *Resolution {
	parts := strings.Split(qualified, ".")

	head := r.resolveSimple(fileURI, pos, parts[0], nil)
	if head == nil || head.Symbol == nil {
		// Whole-path FQN fallback: "System.assertEquals" style library names
		// resolve through the FQN index directly.
		if matches := r.graph.FindSymbolByFQN(qualified); len(matches) > 0 {
			return &Resolution{
				Symbol:      matches[0],
				Confidence:  graph.ConfidenceFallback,
				IsAmbiguous: len(matches) > 1,
				Candidates:  matches,
			}
		}
		return nil
	}

	current := head.Symbol
	confidence := head.Confidence

	for _, part := range parts[1:] {
		owner := r.typeOf(current)
		if owner == nil {
			debug.LogResolver("cannot walk member %q: %s has no resolvable type", part, current.Name)
			return nil
		}
		member := r.lookupMember(owner, part, ctx)
		if member == nil {
			debug.LogResolver("no member %q on %s", part, owner.Name)
			return nil
		}
		current = member
	}

	return &Resolution{Symbol: current, Confidence: confidence}
}

// typeOf maps a resolved symbol to the type whose members the next path
// segment is looked up on. Types are themselves; variables, fields,
// properties, and parameters dereference their declared type; methods their
// return type.
func (r *Resolver) typeOf(symbol *types.Symbol) *types.Symbol {
	if symbol.Kind.IsType() {
		return symbol
	}

	typeName := symbol.ValueType
	if symbol.Kind == types.SymbolKindMethod {
		typeName = symbol.ReturnType
	}
	if typeName == "" {
		return nil
	}

	result := r.graph.LookupSymbolWithContext(typeName, &types.ResolutionContext{
		SourceFileURI: symbol.FileURI,
	})
	if result == nil {
		return nil
	}
	return result.Symbol
}

// lookupMember finds a member of a type case-insensitively, filtering
// static/instance compatibility when the context sets it.
func (r *Resolver) lookupMember(owner *types.Symbol, name string, ctx *types.ResolutionContext) *types.Symbol {
	table := r.graph.GetSymbolTable(owner.FileURI)
	if table == nil {
		return nil
	}
	for _, s := range table.GetAllSymbols() {
		if s.ParentID != owner.ID || s.Kind == types.SymbolKindBlock || !s.NameEquals(name) {
			continue
		}
		if ctx != nil && ctx.IsStatic != nil && !s.Kind.IsType() && s.Modifiers.IsStatic != *ctx.IsStatic {
			continue
		}
		return s
	}
	return nil
}
