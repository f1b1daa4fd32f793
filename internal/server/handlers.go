package server

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/apexls/apexls/internal/graph"
	"github.com/apexls/apexls/internal/types"
)

func (s *Server) handleHover(ctx context.Context, params any, g *graph.SymbolGraph) (any, error) {
	p, err := decodeParams[PositionalParams](params)
	if err != nil {
		return nil, err
	}

	res := s.resolver.ResolveAtPosition(p.URI, p.Position, p.Name)
	if res == nil || res.Symbol == nil {
		return nil, nil
	}

	return &HoverResult{
		Symbol:     res.Symbol,
		Confidence: res.Confidence,
		Contents:   formatSymbol(res.Symbol),
	}, nil
}

// formatSymbol renders the hover signature line.
func formatSymbol(sym *types.Symbol) string {
	var b strings.Builder
	if v := sym.Modifiers.Visibility.String(); v != "default" {
		b.WriteString(v)
		b.WriteString(" ")
	}
	if sym.Modifiers.IsStatic {
		b.WriteString("static ")
	}
	switch sym.Kind {
	case types.SymbolKindMethod:
		if sym.ReturnType != "" {
			b.WriteString(sym.ReturnType)
			b.WriteString(" ")
		}
		b.WriteString(sym.Name)
		b.WriteString("(")
		for i, param := range sym.Parameters {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(param.Type)
			b.WriteString(" ")
			b.WriteString(param.Name)
		}
		b.WriteString(")")
	case types.SymbolKindField, types.SymbolKindProperty, types.SymbolKindVariable, types.SymbolKindParameter:
		if sym.ValueType != "" {
			b.WriteString(sym.ValueType)
			b.WriteString(" ")
		}
		b.WriteString(sym.Name)
	default:
		b.WriteString(sym.Kind.String())
		b.WriteString(" ")
		b.WriteString(sym.Name)
	}
	return b.String()
}

func (s *Server) handleCompletion(ctx context.Context, params any, g *graph.SymbolGraph) (any, error) {
	p, err := decodeParams[PositionalParams](params)
	if err != nil {
		return nil, err
	}

	var items []CompletionItem
	seen := make(map[string]struct{})
	add := func(sym *types.Symbol) {
		key := strings.ToLower(sym.Name)
		if _, dup := seen[key]; dup || sym.Kind == types.SymbolKindBlock {
			return
		}
		seen[key] = struct{}{}
		items = append(items, CompletionItem{
			Label:  sym.Name,
			Kind:   sym.Kind.String(),
			Detail: formatSymbol(sym),
		})
	}

	// Member completion after a dot: resolve the qualifier and list its type
	// members.
	if idx := strings.LastIndexByte(p.Name, '.'); idx > 0 {
		qualifier := p.Name[:idx]
		prefix := strings.ToLower(p.Name[idx+1:])
		res := s.resolver.ResolveAtPosition(p.URI, p.Position, qualifier)
		if res != nil && res.Symbol != nil {
			for _, member := range s.membersOf(res.Symbol) {
				if prefix == "" || strings.HasPrefix(strings.ToLower(member.Name), prefix) {
					add(member)
				}
			}
		}
		return items, nil
	}

	prefix := strings.ToLower(p.Name)

	// Scope-visible symbols first, innermost outward.
	if table := g.GetSymbolTable(p.URI); table != nil {
		scopes := table.GetScopeHierarchy(p.Position)
		for i := len(scopes) - 1; i >= 0; i-- {
			for _, sym := range table.GetAllSymbols() {
				if sym.ParentID == scopes[i].ID && strings.HasPrefix(strings.ToLower(sym.Name), prefix) {
					add(sym)
				}
			}
		}
	}

	// Then workspace types.
	for _, uri := range g.FileURIs() {
		for _, sym := range g.GetSymbolsInFile(uri) {
			if sym.Kind.IsType() && strings.HasPrefix(strings.ToLower(sym.Name), prefix) {
				add(sym)
			}
		}
	}

	return items, nil
}

// membersOf lists the direct members of a type-ish symbol.
func (s *Server) membersOf(sym *types.Symbol) []*types.Symbol {
	owner := sym
	if !owner.Kind.IsType() {
		typeName := owner.ValueType
		if owner.Kind == types.SymbolKindMethod {
			typeName = owner.ReturnType
		}
		if typeName == "" {
			return nil
		}
		res := s.graph.LookupSymbolWithContext(typeName, &types.ResolutionContext{SourceFileURI: owner.FileURI})
		if res == nil {
			return nil
		}
		owner = res.Symbol
	}

	table := s.graph.GetSymbolTable(owner.FileURI)
	if table == nil {
		return nil
	}
	var out []*types.Symbol
	for _, member := range table.GetAllSymbols() {
		if member.ParentID == owner.ID && member.Kind != types.SymbolKindBlock {
			out = append(out, member)
		}
	}
	return out
}

func (s *Server) handleSignatureHelp(ctx context.Context, params any, g *graph.SymbolGraph) (any, error) {
	p, err := decodeParams[PositionalParams](params)
	if err != nil {
		return nil, err
	}

	res := s.resolver.ResolveAtPosition(p.URI, p.Position, p.Name)
	if res == nil || res.Symbol == nil || res.Symbol.Kind != types.SymbolKindMethod {
		return nil, nil
	}

	// Overloads share an encoded ID; surface every signature.
	table := g.GetSymbolTable(res.Symbol.FileURI)
	overloads := []*types.Symbol{res.Symbol}
	if table != nil {
		if all := table.GetAllSymbolsByID(res.Symbol.ID); len(all) > 0 {
			overloads = all
		}
	}

	signatures := make([]SignatureInformation, 0, len(overloads))
	for _, m := range overloads {
		sig := SignatureInformation{Label: formatSymbol(m)}
		for _, param := range m.Parameters {
			sig.Parameters = append(sig.Parameters, param.Type+" "+param.Name)
		}
		signatures = append(signatures, sig)
	}
	return signatures, nil
}

func (s *Server) handleDefinition(ctx context.Context, params any, g *graph.SymbolGraph) (any, error) {
	p, err := decodeParams[PositionalParams](params)
	if err != nil {
		return nil, err
	}

	res := s.resolver.ResolveAtPosition(p.URI, p.Position, p.Name)
	if res == nil || res.Symbol == nil {
		return nil, nil
	}
	return &LocationResult{
		URI:   res.Symbol.FileURI,
		Range: res.Symbol.Location.IdentifierRange,
	}, nil
}

func (s *Server) handleTypeDefinition(ctx context.Context, params any, g *graph.SymbolGraph) (any, error) {
	p, err := decodeParams[PositionalParams](params)
	if err != nil {
		return nil, err
	}

	res := s.resolver.ResolveAtPosition(p.URI, p.Position, p.Name)
	if res == nil || res.Symbol == nil {
		return nil, nil
	}

	typeName := res.Symbol.ValueType
	if res.Symbol.Kind == types.SymbolKindMethod {
		typeName = res.Symbol.ReturnType
	}
	if res.Symbol.Kind.IsType() {
		return &LocationResult{URI: res.Symbol.FileURI, Range: res.Symbol.Location.IdentifierRange}, nil
	}
	if typeName == "" {
		return nil, nil
	}

	typeRes := g.LookupSymbolWithContext(typeName, &types.ResolutionContext{SourceFileURI: p.URI})
	if typeRes == nil {
		return nil, nil
	}
	return &LocationResult{
		URI:   typeRes.Symbol.FileURI,
		Range: typeRes.Symbol.Location.IdentifierRange,
	}, nil
}

func (s *Server) handleImplementation(ctx context.Context, params any, g *graph.SymbolGraph) (any, error) {
	p, err := decodeParams[PositionalParams](params)
	if err != nil {
		return nil, err
	}

	res := s.resolver.ResolveAtPosition(p.URI, p.Position, p.Name)
	if res == nil || res.Symbol == nil {
		return nil, nil
	}

	// Implementations arrive as interface-impl and inheritance edges
	// pointing at the resolved type.
	var out []LocationResult
	for _, ref := range g.FindReferencesTo(res.Symbol.ID) {
		if ref.Edge.Type != types.RefTypeInterfaceImpl && ref.Edge.Type != types.RefTypeInheritance {
			continue
		}
		if ref.Source == nil {
			continue
		}
		out = append(out, LocationResult{
			URI:   ref.Source.FileURI,
			Range: ref.Source.Location.IdentifierRange,
		})
	}
	return out, nil
}

func (s *Server) handleDocumentSymbol(ctx context.Context, params any, g *graph.SymbolGraph) (any, error) {
	p, err := decodeParams[DocumentParams](params)
	if err != nil {
		return nil, err
	}

	table := g.GetSymbolTable(p.URI)
	if table == nil {
		return []DocumentSymbolResult{}, nil
	}

	symbols := table.GetAllSymbols()
	children := make(map[types.SymbolID][]*types.Symbol)
	var roots []*types.Symbol
	for _, sym := range symbols {
		if sym.Kind == types.SymbolKindBlock {
			continue
		}
		if sym.ParentID == "" {
			roots = append(roots, sym)
		} else {
			children[sym.ParentID] = append(children[sym.ParentID], sym)
		}
	}

	var build func(sym *types.Symbol) DocumentSymbolResult
	build = func(sym *types.Symbol) DocumentSymbolResult {
		node := DocumentSymbolResult{
			Name:  sym.Name,
			Kind:  sym.Kind.String(),
			Range: sym.Location.SymbolRange,
		}
		for _, child := range children[sym.ID] {
			node.Children = append(node.Children, build(child))
		}
		return node
	}

	out := make([]DocumentSymbolResult, 0, len(roots))
	for _, root := range roots {
		out = append(out, build(root))
	}
	return out, nil
}

func (s *Server) handleFoldingRange(ctx context.Context, params any, g *graph.SymbolGraph) (any, error) {
	p, err := decodeParams[DocumentParams](params)
	if err != nil {
		return nil, err
	}

	table := g.GetSymbolTable(p.URI)
	if table == nil {
		return []FoldingRangeResult{}, nil
	}

	var out []FoldingRangeResult
	for _, sym := range table.GetAllSymbols() {
		r := sym.Location.SymbolRange
		if r.End.Line > r.Start.Line {
			out = append(out, FoldingRangeResult{StartLine: r.Start.Line, EndLine: r.End.Line})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartLine < out[j].StartLine })
	return out, nil
}

func (s *Server) handleCodeLens(ctx context.Context, params any, g *graph.SymbolGraph) (any, error) {
	p, err := decodeParams[DocumentParams](params)
	if err != nil {
		return nil, err
	}

	var out []CodeLensResult
	for _, sym := range g.GetSymbolsInFile(p.URI) {
		if sym.Kind != types.SymbolKindMethod && !sym.Kind.IsType() {
			continue
		}
		count := 0
		if node := g.GetNode(sym.ID); node != nil {
			count = node.ReferenceCount
		}
		out = append(out, CodeLensResult{
			Range:   sym.Location.IdentifierRange,
			Command: "apexls.showReferences",
			Title:   fmt.Sprintf("%d references", count),
		})
	}
	return out, nil
}

func (s *Server) handleReferences(ctx context.Context, params any, g *graph.SymbolGraph) (any, error) {
	p, err := decodeParams[PositionalParams](params)
	if err != nil {
		return nil, err
	}

	res := s.resolver.ResolveAtPosition(p.URI, p.Position, p.Name)
	if res == nil || res.Symbol == nil {
		return []ReferenceLocation{}, nil
	}

	refs := g.FindReferencesTo(res.Symbol.ID)
	out := make([]ReferenceLocation, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ReferenceLocation{
			URI:        ref.Edge.SourceFileURI,
			Range:      ref.Location,
			RefType:    ref.Edge.Type.String(),
			SymbolID:   string(ref.Edge.SourceID),
			IsIncoming: true,
		})
	}
	return out, nil
}

func (s *Server) handleWorkspaceSymbol(ctx context.Context, params any, g *graph.SymbolGraph) (any, error) {
	p, err := decodeParams[WorkspaceSymbolParams](params)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(p.Query)
	var out []*types.Symbol
	for _, uri := range g.FileURIs() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		for _, sym := range g.GetSymbolsInFile(uri) {
			if sym.Kind == types.SymbolKindBlock {
				continue
			}
			if query == "" || strings.Contains(strings.ToLower(sym.Name), query) {
				out = append(out, sym)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
