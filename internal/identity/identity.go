// Package identity generates and parses workspace-wide symbol IDs and
// fully qualified names.
package identity

import (
	"fmt"
	"strings"

	"github.com/apexls/apexls/internal/errors"
	"github.com/apexls/apexls/internal/types"
)

// GenerateSymbolID builds the deterministic encoded ID for a symbol declared
// under the given scope path. The scope path is the dot-joined chain of
// enclosing scope segments; top-level symbols pass an empty slice.
func GenerateSymbolID(symbol *types.Symbol, scopePath []string, fileURI string) types.SymbolID {
	return types.SymbolID(fmt.Sprintf("%s:%s:%s:%s",
		fileURI, strings.Join(scopePath, "."), symbol.Kind.String(), symbol.Name))
}

// ScopeSegment formats one scope-path segment for a named scope
// ("class:Foo", "method:bar"). Block scopes use BlockSegment instead.
func ScopeSegment(kind types.SymbolKind, name string) string {
	return kind.String() + ":" + name
}

// BlockSegment formats the segment for the n-th block inside its parent
// scope, numbered left-to-right starting at 1.
func BlockSegment(n int) string {
	return fmt.Sprintf("block%d", n)
}

// ParsedSymbolID is the decoded form of an encoded symbol ID.
type ParsedSymbolID struct {
	FileURI   string
	ScopePath []string
	Kind      types.SymbolKind
	Name      string
}

// ParseSymbolID is the inverse of GenerateSymbolID.
//
// The name and kind segments are taken from the right; the boundary between
// the file URI and the scope path is the first ':' after the scheme's "//",
// since normalized URIs carry no further colons.
func ParseSymbolID(id types.SymbolID) (ParsedSymbolID, error) {
	s := string(id)

	nameIdx := strings.LastIndexByte(s, ':')
	if nameIdx <= 0 {
		return ParsedSymbolID{}, &errors.MalformedIDError{ID: s, Reason: "missing name segment"}
	}
	name := s[nameIdx+1:]
	if name == "" {
		return ParsedSymbolID{}, &errors.MalformedIDError{ID: s, Reason: "empty name"}
	}

	rest := s[:nameIdx]
	kindIdx := strings.LastIndexByte(rest, ':')
	if kindIdx <= 0 {
		return ParsedSymbolID{}, &errors.MalformedIDError{ID: s, Reason: "missing kind segment"}
	}
	kindStr := rest[kindIdx+1:]
	kind, ok := types.ParseSymbolKind(kindStr)
	if !ok {
		return ParsedSymbolID{}, &errors.MalformedIDError{ID: s, Reason: fmt.Sprintf("unknown kind %q", kindStr)}
	}

	rest = rest[:kindIdx]

	schemeIdx := strings.Index(rest, "://")
	if schemeIdx < 0 {
		return ParsedSymbolID{}, &errors.MalformedIDError{ID: s, Reason: "missing uri scheme"}
	}
	uriEnd := strings.IndexByte(rest[schemeIdx+3:], ':')
	if uriEnd < 0 {
		return ParsedSymbolID{}, &errors.MalformedIDError{ID: s, Reason: "missing scope-path segment"}
	}
	uriEnd += schemeIdx + 3

	fileURI := rest[:uriEnd]
	scopeStr := rest[uriEnd+1:]

	var scopePath []string
	if scopeStr != "" {
		scopePath = strings.Split(scopeStr, ".")
	}

	return ParsedSymbolID{
		FileURI:   fileURI,
		ScopePath: scopePath,
		Kind:      kind,
		Name:      name,
	}, nil
}

// ComputeFQN joins the names of the enclosing types and scopes down to the
// symbol, lowercased and dot-separated. Block scopes are excluded from the
// FQN (they stay in the scope path only). A symbol that already carries a
// non-empty FQN keeps it.
func ComputeFQN(symbol *types.Symbol, ancestors []*types.Symbol) string {
	if symbol.FQN != "" {
		return symbol.FQN
	}

	parts := make([]string, 0, len(ancestors)+1)
	for _, a := range ancestors {
		if a.Kind == types.SymbolKindBlock {
			continue
		}
		parts = append(parts, a.Name)
	}
	parts = append(parts, symbol.Name)

	return strings.ToLower(strings.Join(parts, "."))
}

// NormalizeFQN lowercases a query before it hits the FQN index.
func NormalizeFQN(fqn string) string {
	return strings.ToLower(fqn)
}
