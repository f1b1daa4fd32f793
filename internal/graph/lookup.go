package graph

import (
	"strings"

	"github.com/apexls/apexls/internal/types"
)

// Confidence buckets for contextual lookup. Deliberately coarse: downstream
// validators consume them as ordered labels.
const (
	ConfidenceUnambiguous = 1.0
	ConfidenceSameFile    = 0.8
	ConfidenceSameScope   = 0.7
	ConfidenceFallback    = 0.5
)

// ContextualResult is a disambiguated symbol lookup.
type ContextualResult struct {
	Symbol      *types.Symbol   `json:"symbol"`
	Confidence  float64         `json:"confidence"`
	IsAmbiguous bool            `json:"is_ambiguous"`
	Candidates  []*types.Symbol `json:"candidates,omitempty"`
}

// LookupSymbolWithContext resolves a name against the graph's name index,
// disambiguating with the resolution context:
//
//	1.0 - exactly one candidate
//	0.8 - ambiguous, one candidate shares ctx.SourceFileURI
//	0.7 - ambiguous, one candidate's scope contains ctx.CurrentScopeID
//	0.5 - ambiguous fallback, first candidate
//
// Returns nil when no candidate exists.
func (g *SymbolGraph) LookupSymbolWithContext(name string, ctx *types.ResolutionContext) *ContextualResult {
	candidates := g.FindSymbolByName(name)
	if len(candidates) == 0 {
		// Dotted queries fall through to the FQN index.
		if strings.Contains(name, ".") {
			candidates = g.FindSymbolByFQN(name)
		}
		if len(candidates) == 0 {
			return nil
		}
	}

	if ctx != nil && ctx.ExpectedNamespace != "" {
		filtered := candidates[:0:0]
		for _, c := range candidates {
			if strings.EqualFold(c.Namespace, ctx.ExpectedNamespace) {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > 0 {
			candidates = filtered
		}
	}

	if ctx != nil && ctx.IsStatic != nil {
		filtered := candidates[:0:0]
		for _, c := range candidates {
			if c.Modifiers.IsStatic == *ctx.IsStatic || c.Kind.IsType() {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > 0 {
			candidates = filtered
		}
	}

	if len(candidates) == 1 {
		return &ContextualResult{
			Symbol:     candidates[0],
			Confidence: ConfidenceUnambiguous,
			Candidates: candidates,
		}
	}

	if ctx != nil && ctx.SourceFileURI != "" {
		for _, c := range candidates {
			if c.FileURI == ctx.SourceFileURI {
				return &ContextualResult{
					Symbol:      c,
					Confidence:  ConfidenceSameFile,
					IsAmbiguous: true,
					Candidates:  candidates,
				}
			}
		}
	}

	if ctx != nil && ctx.CurrentScopeID != "" {
		for _, c := range candidates {
			if table := g.GetSymbolTable(c.FileURI); table != nil {
				if table.ScopeContains(c.ID, ctx.CurrentScopeID) {
					return &ContextualResult{
						Symbol:      c,
						Confidence:  ConfidenceSameScope,
						IsAmbiguous: true,
						Candidates:  candidates,
					}
				}
			}
		}
	}

	return &ContextualResult{
		Symbol:      candidates[0],
		Confidence:  ConfidenceFallback,
		IsAmbiguous: true,
		Candidates:  candidates,
	}
}
