// Package resources supplies standard-library symbol tables on first use.
// The bundled archive is a TOML manifest of the platform types; each type
// becomes a table registered with the graph under an apexlib:// URI.
package resources

import (
	"context"
	_ "embed"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/apexls/apexls/internal/debug"
	apexerrors "github.com/apexls/apexls/internal/errors"
	"github.com/apexls/apexls/internal/graph"
	"github.com/apexls/apexls/internal/scheduler"
	"github.com/apexls/apexls/internal/symtab"
	"github.com/apexls/apexls/internal/types"
	"github.com/apexls/apexls/pkg/uriutil"
)

//go:embed stdlib.toml
var stdlibArchive []byte

// registerTimeout bounds how long one library table may wait for a queue
// slot during initialization.
const registerTimeout = 5 * time.Second

// DirectoryStatistics summarizes the loaded archive.
type DirectoryStatistics struct {
	TotalFiles int      `json:"total_files"`
	Namespaces []string `json:"namespaces"`
}

// archive models the embedded manifest.
type archive struct {
	Types []archiveType `toml:"types"`
}

type archiveType struct {
	Namespace  string          `toml:"namespace"`
	Name       string          `toml:"name"`
	Kind       string          `toml:"kind"`
	Superclass string          `toml:"superclass,omitempty"`
	Interfaces []string        `toml:"interfaces,omitempty"`
	Methods    []archiveMethod `toml:"methods,omitempty"`
	Fields     []archiveField  `toml:"fields,omitempty"`
}

type archiveMethod struct {
	Name       string   `toml:"name"`
	ReturnType string   `toml:"return"`
	Static     bool     `toml:"static,omitempty"`
	Params     []string `toml:"params,omitempty"`
}

type archiveField struct {
	Name   string `toml:"name"`
	Type   string `toml:"type"`
	Static bool   `toml:"static,omitempty"`
}

// Loader deserializes the embedded archive and registers its tables with the
// graph at High priority. Initialization runs at most once; a failure leaves
// the loader unavailable and the rest of the system functions without
// standard-library resolution.
type Loader struct {
	graph *graph.SymbolGraph
	sched *scheduler.Scheduler

	once        sync.Once
	stats       DirectoryStatistics
	initErr     error
	unavailable bool
}

// NewLoader creates a loader bound to a graph and scheduler.
func NewLoader(g *graph.SymbolGraph, s *scheduler.Scheduler) *Loader {
	return &Loader{graph: g, sched: s}
}

// Initialize loads and registers the archive. Safe to call repeatedly; only
// the first call does work.
func (l *Loader) Initialize() (DirectoryStatistics, error) {
	l.once.Do(func() {
		l.initErr = l.load()
		if l.initErr != nil {
			l.unavailable = true
			debug.Errorf("RESOURCES", "library load failed, continuing without standard library: %v", l.initErr)
		}
	})
	if l.initErr != nil {
		return DirectoryStatistics{}, l.initErr
	}
	return l.stats, nil
}

// Available reports whether the archive loaded successfully.
func (l *Loader) Available() bool { return !l.unavailable && l.initErr == nil }

// GetDirectoryStatistics returns the archive summary, or an unavailable
// error before successful initialization.
func (l *Loader) GetDirectoryStatistics() (DirectoryStatistics, error) {
	if l.initErr != nil || l.stats.TotalFiles == 0 {
		return DirectoryStatistics{}, apexerrors.ErrResourceLoaderUnavailable
	}
	return l.stats, nil
}

func (l *Loader) load() error {
	var a archive
	if err := toml.Unmarshal(stdlibArchive, &a); err != nil {
		return &apexerrors.LoadError{Path: "stdlib.toml", Underlying: err}
	}

	namespaces := make(map[string]struct{})
	for i := range a.Types {
		t := &a.Types[i]
		table, err := buildTable(t)
		if err != nil {
			return &apexerrors.LoadError{Path: uriutil.LibraryURI(t.Namespace, t.Name), Underlying: err}
		}

		if err := l.register(table); err != nil {
			return err
		}
		namespaces[t.Namespace] = struct{}{}
	}

	l.stats.TotalFiles = len(a.Types)
	l.stats.Namespaces = make([]string, 0, len(namespaces))
	for ns := range namespaces {
		l.stats.Namespaces = append(l.stats.Namespaces, ns)
	}
	sort.Strings(l.stats.Namespaces)

	debug.Infof("RESOURCES", "loaded %d library types across %d namespaces",
		l.stats.TotalFiles, len(l.stats.Namespaces))
	return nil
}

// register submits the table to the graph as a High-priority task, matching
// the priority of workspace symbol-table registration.
func (l *Loader) register(table *symtab.SymbolTable) error {
	ctx, cancel := context.WithTimeout(context.Background(), registerTimeout)
	defer cancel()

	task, err := l.sched.Submit(ctx, types.RequestAddSymbolTable, scheduler.PriorityHigh, 0,
		func(taskCtx context.Context) error {
			l.graph.AddSymbolTable(table, table.FileURI())
			return nil
		})
	if err != nil {
		return &apexerrors.LoadError{Path: table.FileURI(), Underlying: err}
	}
	if err := task.Await(ctx); err != nil {
		return &apexerrors.LoadError{Path: table.FileURI(), Underlying: err}
	}
	return nil
}

// buildTable converts one archive type into a symbol table.
func buildTable(t *archiveType) (*symtab.SymbolTable, error) {
	uri := uriutil.LibraryURI(t.Namespace, t.Name)
	table := symtab.New(uri)

	kind := types.SymbolKindClass
	if parsed, ok := types.ParseSymbolKind(t.Kind); ok {
		kind = parsed
	}

	typeSymbol := &types.Symbol{
		Name:       t.Name,
		Kind:       kind,
		Namespace:  t.Namespace,
		Superclass: t.Superclass,
		Interfaces: t.Interfaces,
		Modifiers:  types.Modifiers{Visibility: types.VisibilityGlobal},
	}
	if err := table.AddSymbol(typeSymbol); err != nil {
		return nil, err
	}
	if _, err := table.EnterScope(t.Name, kind, types.Range{}); err != nil {
		return nil, err
	}

	for _, f := range t.Fields {
		field := &types.Symbol{
			Name:      f.Name,
			Kind:      types.SymbolKindField,
			Namespace: t.Namespace,
			ValueType: f.Type,
			Modifiers: types.Modifiers{
				Visibility: types.VisibilityGlobal,
				IsStatic:   f.Static,
			},
		}
		if err := table.AddSymbol(field); err != nil {
			return nil, err
		}
	}

	for _, m := range t.Methods {
		params := make([]types.Parameter, 0, len(m.Params))
		for i, p := range m.Params {
			params = append(params, types.Parameter{Name: "arg" + strconv.Itoa(i), Type: p})
		}
		method := &types.Symbol{
			Name:       m.Name,
			Kind:       types.SymbolKindMethod,
			Namespace:  t.Namespace,
			ReturnType: m.ReturnType,
			Parameters: params,
			Modifiers: types.Modifiers{
				Visibility: types.VisibilityGlobal,
				IsStatic:   m.Static,
			},
		}
		if err := table.AddSymbol(method); err != nil {
			return nil, err
		}
	}

	if err := table.ExitScope(); err != nil {
		return nil, err
	}
	return table, nil
}
