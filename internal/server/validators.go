package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/apexls/apexls/internal/graph"
	"github.com/apexls/apexls/internal/symtab"
)

// Diagnostic is one validator finding.
type Diagnostic struct {
	Validator string `json:"validator"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	FileURI   string `json:"file_uri,omitempty"`
	SymbolID  string `json:"symbol_id,omitempty"`
}

// Validator is a pluggable consumer of the graph. Validators run as one
// Background task via validator/run-all.
type Validator interface {
	Name() string
	Validate(ctx context.Context, g *graph.SymbolGraph) []Diagnostic
}

// validators returns the run-all set; the circular-dependency check ships by
// default.
func (s *Server) validators() []Validator {
	s.validatorsMu.RLock()
	defer s.validatorsMu.RUnlock()
	out := make([]Validator, 0, len(s.extraValidators)+1)
	out = append(out, circularDependencyValidator{})
	out = append(out, s.extraValidators...)
	return out
}

// RegisterValidator adds a validator to the run-all set.
func (s *Server) RegisterValidator(v Validator) {
	s.validatorsMu.Lock()
	defer s.validatorsMu.Unlock()
	s.extraValidators = append(s.extraValidators, v)
}

func (s *Server) handleValidatorRunAll(ctx context.Context, params any, g *graph.SymbolGraph) (any, error) {
	var out []Diagnostic
	for _, v := range s.validators() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		out = append(out, v.Validate(ctx, g)...)
	}
	return out, nil
}

// circularDependencyValidator reports type-level reference cycles.
type circularDependencyValidator struct{}

func (circularDependencyValidator) Name() string { return "circular-dependencies" }

func (circularDependencyValidator) Validate(ctx context.Context, g *graph.SymbolGraph) []Diagnostic {
	var out []Diagnostic
	for _, component := range g.DetectCircularDependencies() {
		names := make([]string, 0, len(component))
		for _, id := range component {
			if sym := g.GetSymbol(id); sym != nil {
				names = append(names, sym.Name)
			}
		}
		out = append(out, Diagnostic{
			Validator: "circular-dependencies",
			Severity:  "warning",
			Message:   fmt.Sprintf("circular type dependency: %s", strings.Join(names, " -> ")),
			SymbolID:  string(component[0]),
		})
	}
	return out
}

func (s *Server) handleBatchLoad(ctx context.Context, params any, g *graph.SymbolGraph) (any, error) {
	p, err := decodeParams[BatchLoadParams](params)
	if err != nil {
		return nil, err
	}

	loaded := 0
	for _, entry := range p.Tables {
		select {
		case <-ctx.Done():
			return loaded, ctx.Err()
		default:
		}
		table, ok := entry.Table.(*symtab.SymbolTable)
		if !ok || table == nil {
			return loaded, fmt.Errorf("batch entry %s: missing symbol table", entry.URI)
		}
		g.AddSymbolTable(table, entry.URI)
		if err := s.resolver.ProcessReferences(table); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}
