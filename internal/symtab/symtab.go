// Package symtab holds the per-file authoritative symbol store: every symbol
// parsed from one file, the scope tree, and the raw reference sites the
// listener recorded. The cross-file graph delegates all symbol data here.
package symtab

import (
	"fmt"
	"strings"

	apexerrors "github.com/apexls/apexls/internal/errors"
	"github.com/apexls/apexls/internal/identity"
	"github.com/apexls/apexls/internal/types"
)

// Scope is one node of a file's scope tree. Named scopes (class, method) are
// bound to the symbol that introduced them; block scopes are bound to a
// synthetic Block symbol so that locals declared inside them have a resolvable
// parent.
type Scope struct {
	ID       types.SymbolID
	Name     string
	Kind     types.SymbolKind
	Segment  string // scope-path segment, e.g. "class:Foo" or "block1"
	Range    types.Range
	Parent   *Scope
	Children []*Scope

	symbol   *types.Symbol
	blockSeq int // counter for child blocks, numbered left-to-right
}

// IsRoot reports whether this is the file scope.
func (s *Scope) IsRoot() bool { return s.Parent == nil }

// SymbolTable is the authoritative store for one file.
type SymbolTable struct {
	fileURI    string
	symbols    []*types.Symbol
	byID       map[types.SymbolID][]*types.Symbol
	root       *Scope
	stack      []*Scope
	references []types.TypeReference
}

// New creates an empty symbol table for a file. The root file scope is open;
// callers balance every EnterScope with an ExitScope but never exit the root.
func New(fileURI string) *SymbolTable {
	root := &Scope{}
	return &SymbolTable{
		fileURI: fileURI,
		byID:    make(map[types.SymbolID][]*types.Symbol),
		root:    root,
		stack:   []*Scope{root},
	}
}

// FileURI returns the file this table owns.
func (t *SymbolTable) FileURI() string { return t.fileURI }

// current returns the innermost open scope.
func (t *SymbolTable) current() *Scope { return t.stack[len(t.stack)-1] }

// ScopePath returns the current scope-path segments, outermost first. Empty
// at file scope.
func (t *SymbolTable) ScopePath() []string {
	if len(t.stack) == 1 {
		return nil
	}
	segments := make([]string, 0, len(t.stack)-1)
	for _, s := range t.stack[1:] {
		segments = append(segments, s.Segment)
	}
	return segments
}

// ancestorSymbols returns the symbols binding each open scope, outermost
// first, skipping the root.
func (t *SymbolTable) ancestorSymbols() []*types.Symbol {
	if len(t.stack) == 1 {
		return nil
	}
	out := make([]*types.Symbol, 0, len(t.stack)-1)
	for _, s := range t.stack[1:] {
		if s.symbol != nil {
			out = append(out, s.symbol)
		}
	}
	return out
}

// AddSymbol inserts a symbol into the current scope. The scope stack supplies
// the parent ID and the scope path used for ID generation; the FQN is derived
// from the enclosing type chain. Duplicate names inside one scope are allowed
// only for overloaded methods.
func (t *SymbolTable) AddSymbol(symbol *types.Symbol) error {
	cur := t.current()

	for _, existing := range t.symbols {
		if existing.ParentID != cur.ID || !existing.NameEquals(symbol.Name) {
			continue
		}
		if existing.Kind == types.SymbolKindMethod && symbol.Kind == types.SymbolKindMethod {
			continue // overload
		}
		return &apexerrors.DuplicateSymbolError{
			Name:    symbol.Name,
			ScopeID: string(cur.ID),
			FileURI: t.fileURI,
		}
	}

	symbol.FileURI = t.fileURI
	symbol.ParentID = cur.ID
	if symbol.ID == "" {
		symbol.ID = identity.GenerateSymbolID(symbol, t.ScopePath(), t.fileURI)
	}
	if symbol.Kind != types.SymbolKindBlock {
		symbol.FQN = identity.ComputeFQN(symbol, t.ancestorSymbols())
	}

	t.symbols = append(t.symbols, symbol)
	t.byID[symbol.ID] = append(t.byID[symbol.ID], symbol)
	return nil
}

// EnterScope opens a scope for the most recently added symbol matching name
// and kind. Block scopes pass an empty name; a synthetic Block symbol is
// created and numbered left-to-right within the parent scope.
func (t *SymbolTable) EnterScope(name string, kind types.SymbolKind, rng types.Range) (*Scope, error) {
	cur := t.current()

	var bound *types.Symbol
	var segment string

	if kind == types.SymbolKindBlock {
		cur.blockSeq++
		segment = identity.BlockSegment(cur.blockSeq)
		bound = &types.Symbol{
			Name:     segment,
			Kind:     types.SymbolKindBlock,
			Location: types.Location{SymbolRange: rng, IdentifierRange: rng},
		}
		if err := t.AddSymbol(bound); err != nil {
			return nil, err
		}
	} else {
		for i := len(t.symbols) - 1; i >= 0; i-- {
			s := t.symbols[i]
			if s.ParentID == cur.ID && s.Kind == kind && s.NameEquals(name) {
				bound = s
				break
			}
		}
		if bound == nil {
			return nil, fmt.Errorf("enterScope %s %q in %s: scope entered before its symbol was added",
				kind, name, t.fileURI)
		}
		segment = identity.ScopeSegment(kind, bound.Name)
	}

	scope := &Scope{
		ID:      bound.ID,
		Name:    bound.Name,
		Kind:    kind,
		Segment: segment,
		Range:   rng,
		Parent:  cur,
		symbol:  bound,
	}
	cur.Children = append(cur.Children, scope)
	t.stack = append(t.stack, scope)
	return scope, nil
}

// ExitScope closes the innermost scope. Exiting the root file scope is
// unbalanced nesting and returns an error.
func (t *SymbolTable) ExitScope() error {
	if len(t.stack) == 1 {
		return fmt.Errorf("exitScope in %s: unbalanced scope nesting", t.fileURI)
	}
	t.stack = t.stack[:len(t.stack)-1]
	return nil
}

// Lookup walks outward from the current scope looking for a symbol whose name
// matches case-insensitively. First hit wins, which implements lexical
// shadowing.
func (t *SymbolTable) Lookup(name string) *types.Symbol {
	for i := len(t.stack) - 1; i >= 0; i-- {
		if s := t.lookupInScope(t.stack[i], name); s != nil {
			return s
		}
	}
	return nil
}

// LookupFrom walks outward from an arbitrary scope. Used by the resolver once
// the table is sealed and position-based scope chains replace the build-time
// stack.
func (t *SymbolTable) LookupFrom(scope *Scope, name string) *types.Symbol {
	for s := scope; s != nil; s = s.Parent {
		if found := t.lookupInScope(s, name); found != nil {
			return found
		}
	}
	return nil
}

func (t *SymbolTable) lookupInScope(scope *Scope, name string) *types.Symbol {
	for _, s := range t.symbols {
		if s.ParentID == scope.ID && s.Kind != types.SymbolKindBlock && s.NameEquals(name) {
			return s
		}
	}
	return nil
}

// GetAllSymbols returns every symbol in the table in declaration order.
func (t *SymbolTable) GetAllSymbols() []*types.Symbol {
	out := make([]*types.Symbol, len(t.symbols))
	copy(out, t.symbols)
	return out
}

// GetAllSymbolsByID returns all symbols sharing an encoded ID. Overloaded
// methods share one ID, so this is one-to-many.
func (t *SymbolTable) GetAllSymbolsByID(id types.SymbolID) []*types.Symbol {
	if matches, ok := t.byID[id]; ok {
		out := make([]*types.Symbol, len(matches))
		copy(out, matches)
		return out
	}
	// Fall back to case-insensitive name-segment comparison.
	for key, matches := range t.byID {
		if key.EqualFold(id) {
			out := make([]*types.Symbol, len(matches))
			copy(out, matches)
			return out
		}
	}
	return nil
}

// GetSymbol returns the first symbol for an ID, or nil.
func (t *SymbolTable) GetSymbol(id types.SymbolID) *types.Symbol {
	matches := t.GetAllSymbolsByID(id)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// AddReferenceSite records a use-site emitted by the parser listener. The
// innermost open scope is attached when the listener did not set one.
func (t *SymbolTable) AddReferenceSite(ref types.TypeReference) {
	if ref.SourceScopeID == "" {
		ref.SourceScopeID = t.current().ID
	}
	t.references = append(t.references, ref)
}

// GetAllReferences returns the recorded use-sites in listener order.
func (t *SymbolTable) GetAllReferences() []types.TypeReference {
	out := make([]types.TypeReference, len(t.references))
	copy(out, t.references)
	return out
}

// GetScopeHierarchy returns the chain of scopes containing a position,
// outermost first, innermost last. The root file scope is always included.
func (t *SymbolTable) GetScopeHierarchy(pos types.Position) []*Scope {
	chain := []*Scope{t.root}
	cur := t.root
	for {
		var next *Scope
		for _, child := range cur.Children {
			if child.Range.Contains(pos) {
				next = child
				break
			}
		}
		if next == nil {
			return chain
		}
		chain = append(chain, next)
		cur = next
	}
}

// RootScope returns the file scope.
func (t *SymbolTable) RootScope() *Scope { return t.root }

// FindScope locates the scope bound to a symbol ID, or nil.
func (t *SymbolTable) FindScope(id types.SymbolID) *Scope {
	return findScope(t.root, id)
}

func findScope(s *Scope, id types.SymbolID) *Scope {
	if s.ID == id {
		return s
	}
	for _, child := range s.Children {
		if found := findScope(child, id); found != nil {
			return found
		}
	}
	return nil
}

// ScopeContains reports whether the scope bound to outer (or any scope nested
// inside it) is the scope bound to inner.
func (t *SymbolTable) ScopeContains(outer, inner types.SymbolID) bool {
	outerScope := t.FindScope(outer)
	if outerScope == nil {
		return false
	}
	return findScope(outerScope, inner) != nil
}

// SymbolCount returns the number of symbols in the table.
func (t *SymbolTable) SymbolCount() int { return len(t.symbols) }

// Namespace guesses the table's namespace from its first namespaced symbol.
func (t *SymbolTable) Namespace() string {
	for _, s := range t.symbols {
		if s.Namespace != "" {
			return s.Namespace
		}
	}
	return ""
}

// String is a compact debug form.
func (t *SymbolTable) String() string {
	var b strings.Builder
	b.WriteString(t.fileURI)
	b.WriteString(" (")
	for i, s := range t.symbols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(s.Name)
	}
	b.WriteString(")")
	return b.String()
}
