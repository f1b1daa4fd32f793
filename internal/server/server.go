// Package server is the transport-neutral protocol surface: it binds request
// kinds to handlers with their priorities and timeouts, exposes the
// file-lifecycle entry points the parser collaborator calls, and maps
// internal errors to wire codes. The JSON-RPC transport itself lives outside
// this module.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apexls/apexls/internal/config"
	"github.com/apexls/apexls/internal/debug"
	"github.com/apexls/apexls/internal/graph"
	"github.com/apexls/apexls/internal/requestqueue"
	"github.com/apexls/apexls/internal/resolver"
	"github.com/apexls/apexls/internal/resources"
	"github.com/apexls/apexls/internal/scheduler"
	"github.com/apexls/apexls/internal/symtab"
	"github.com/apexls/apexls/internal/types"
)

// Server wires the core subsystems together behind the request queue.
type Server struct {
	bus      *config.Bus
	sched    *scheduler.Scheduler
	graph    *graph.SymbolGraph
	resolver *resolver.Resolver
	queue    *requestqueue.Queue
	loader   *resources.Loader
	finder   *artifactFinder

	validatorsMu    sync.RWMutex
	extraValidators []Validator
}

// New assembles a server over explicitly passed collaborators.
func New(bus *config.Bus, sched *scheduler.Scheduler, g *graph.SymbolGraph) *Server {
	srv := &Server{
		bus:      bus,
		sched:    sched,
		graph:    g,
		resolver: resolver.New(g),
		queue:    requestqueue.New(sched, g),
		loader:   resources.NewLoader(g, sched),
	}
	srv.finder = newArtifactFinder(srv)
	srv.registerDefaultHandlers()
	srv.subscribeSettings()
	return srv
}

// Queue exposes the request queue for transports.
func (s *Server) Queue() *requestqueue.Queue { return s.queue }

// Loader exposes the standard-library loader.
func (s *Server) Loader() *resources.Loader { return s.loader }

// Resolver exposes the resolver for validators.
func (s *Server) Resolver() *resolver.Resolver { return s.resolver }

// registerDefaultHandlers installs the request table: one handler, priority,
// and timeout per request kind.
func (s *Server) registerDefaultHandlers() {
	register := func(kind types.RequestKind, p scheduler.Priority, timeout time.Duration, retries int, fn requestqueue.ProcessFunc) {
		s.queue.Register(requestqueue.Handler{
			RequestType: kind,
			Priority:    p,
			Timeout:     timeout,
			MaxRetries:  retries,
			Process:     fn,
		})
	}

	// Latency-sensitive editor feedback
	register(types.RequestHover, scheduler.PriorityImmediate, 300*time.Millisecond, 1, s.handleHover)
	register(types.RequestCompletion, scheduler.PriorityImmediate, 300*time.Millisecond, 1, s.handleCompletion)
	register(types.RequestSignatureHelp, scheduler.PriorityImmediate, 300*time.Millisecond, 1, s.handleSignatureHelp)

	// Navigation
	register(types.RequestDefinition, scheduler.PriorityHigh, time.Second, 1, s.handleDefinition)
	register(types.RequestTypeDefinition, scheduler.PriorityHigh, time.Second, 1, s.handleTypeDefinition)
	register(types.RequestImplementation, scheduler.PriorityHigh, time.Second, 1, s.handleImplementation)

	// Document structure
	register(types.RequestDocumentSymbol, scheduler.PriorityNormal, 2*time.Second, 1, s.handleDocumentSymbol)
	register(types.RequestFoldingRange, scheduler.PriorityNormal, 2*time.Second, 1, s.handleFoldingRange)
	register(types.RequestCodeLens, scheduler.PriorityNormal, 2*time.Second, 1, s.handleCodeLens)

	// Workspace-wide
	register(types.RequestReferences, scheduler.PriorityLow, 5*time.Second, 1, s.handleReferences)
	register(types.RequestWorkspaceSym, scheduler.PriorityLow, 5*time.Second, 1, s.handleWorkspaceSymbol)

	// Bulk and maintenance
	register(types.RequestBatchLoad, scheduler.PriorityBackground, 0, 0, s.handleBatchLoad)
	register(types.RequestValidatorRun, scheduler.PriorityBackground, 0, 0, s.handleValidatorRunAll)

	// Protocol extensions
	register(types.RequestGraphGet, scheduler.PriorityBackground, 0, 0, s.handleGraphGet)
	register(types.RequestFindMissingArtifact, scheduler.PriorityHigh, 0, 0, s.handleFindMissingArtifact)
}

// subscribeSettings forwards live scheduler-relevant changes.
func (s *Server) subscribeSettings() {
	if s.bus == nil {
		return
	}
	s.bus.Subscribe(func(old, next *config.Settings) error {
		debug.SetLevel(debug.ParseLevel(next.LogLevel))

		cfg := next.SchedulerConfig()
		var firstErr error
		for p := scheduler.Priority(0); p < scheduler.NumPriorities; p++ {
			if err := s.sched.UpdateMaxConcurrency(p, cfg.MaxConcurrency[p]); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if err := s.sched.UpdateMaxTotalConcurrency(cfg.MaxTotalConcurrency); err != nil && firstErr == nil {
			firstErr = err
		}

		// Queue capacities cannot change live; the buffers are sized at
		// scheduler start.
		for name, capacity := range next.Scheduler.QueueCapacity {
			if old.Scheduler.QueueCapacity[name] != capacity {
				debug.Warnf("CONFIG", "queue capacity %s=%d requires scheduler restart", name, capacity)
			}
		}
		return firstErr
	})
}

// SubmitRequest forwards one request into the queue.
func (s *Server) SubmitRequest(ctx context.Context, kind types.RequestKind, params any) (any, error) {
	return s.queue.SubmitRequest(ctx, kind, params, nil)
}

// AddSymbolTable registers parser output as a High-priority task. The
// returned task completes when the table is indexed and its references
// processed.
func (s *Server) AddSymbolTable(ctx context.Context, table *symtab.SymbolTable, fileURI string) (*scheduler.Task, error) {
	return s.sched.Submit(ctx, types.RequestAddSymbolTable, scheduler.PriorityHigh, 0,
		func(taskCtx context.Context) error {
			s.graph.AddSymbolTable(table, fileURI)
			return s.resolver.ProcessReferences(table)
		})
}

// RemoveFile drops a file from the graph as a High-priority task.
func (s *Server) RemoveFile(ctx context.Context, fileURI string) (*scheduler.Task, error) {
	return s.sched.Submit(ctx, types.RequestRemoveFile, scheduler.PriorityHigh, 0,
		func(taskCtx context.Context) error {
			s.graph.RemoveFile(fileURI)
			return nil
		})
}

// decodeParams asserts the payload type for a handler, producing an error on
// mismatch. That error matches none of the input-error sentinels, so
// ToWireError reports it as InternalError.
func decodeParams[T any](params any) (T, error) {
	typed, ok := params.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("invalid params: want %T, got %T", zero, params)
	}
	return typed, nil
}
