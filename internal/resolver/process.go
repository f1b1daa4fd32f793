package resolver

import (
	"github.com/apexls/apexls/internal/debug"
	"github.com/apexls/apexls/internal/symtab"
	"github.com/apexls/apexls/internal/types"
)

// ProcessReferences resolves every recorded use-site in a table and emits at
// most one reference edge per site. Unresolved targets become deferred
// entries keyed by the referenced name, so they materialize when the target's
// file is indexed.
func (r *Resolver) ProcessReferences(table *symtab.SymbolTable) error {
	fileURI := table.FileURI()

	for _, ref := range table.GetAllReferences() {
		source := r.sourceSymbolFor(table, ref)
		if source == "" {
			debug.LogResolver("reference %q at %s:%d has no enclosing symbol, skipped",
				ref.Name, fileURI, ref.Location.Start.Line)
			continue
		}

		resolution := r.ResolveAtPosition(fileURI, ref.Location.Start, ref.Name)
		if resolution == nil || resolution.Symbol == nil {
			if err := r.graph.AddDeferredReference(source, referencedName(ref.Name), ref.Type, ref.Location, ref.Context); err != nil {
				return err
			}
			continue
		}

		if err := r.graph.AddReference(source, resolution.Symbol.ID, ref.Type, ref.Location, ref.Context); err != nil {
			return err
		}
	}
	return nil
}

// sourceSymbolFor picks the symbol a use-site is attributed to: the scope the
// listener recorded, else the innermost scope containing the site, else the
// file's first top-level symbol.
func (r *Resolver) sourceSymbolFor(table *symtab.SymbolTable, ref types.TypeReference) types.SymbolID {
	if ref.SourceScopeID != "" {
		return ref.SourceScopeID
	}
	scopes := table.GetScopeHierarchy(ref.Location.Start)
	for i := len(scopes) - 1; i >= 0; i-- {
		if scopes[i].ID != "" {
			return scopes[i].ID
		}
	}
	for _, s := range table.GetAllSymbols() {
		if s.ParentID == "" {
			return s.ID
		}
	}
	return ""
}

// referencedName reduces a possibly-dotted use-site to the deferred key
// segment: the final member for member paths.
func referencedName(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}
