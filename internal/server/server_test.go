package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/apexls/apexls/internal/config"
	apexerrors "github.com/apexls/apexls/internal/errors"
	"github.com/apexls/apexls/internal/graph"
	"github.com/apexls/apexls/internal/scheduler"
	"github.com/apexls/apexls/internal/symtab"
	"github.com/apexls/apexls/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newServer(t *testing.T) *Server {
	t.Helper()
	sched := scheduler.New(scheduler.DefaultConfig())
	require.NoError(t, sched.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, sched.Shutdown(ctx))
	})
	return New(config.NewBus(config.Default()), sched, graph.New())
}

// loadFixture registers a small two-file workspace:
//
//	AccountService.cls: class with method process and field total
//	Consumer.cls: class referencing AccountService
func loadFixture(t *testing.T, srv *Server) {
	t.Helper()

	service := symtab.New("file:///AccountService.cls")
	require.NoError(t, service.AddSymbol(&types.Symbol{
		Name: "AccountService", Kind: types.SymbolKindClass,
		Location: types.Location{
			SymbolRange:     types.Range{Start: types.Position{Line: 1, Column: 0}, End: types.Position{Line: 40, Column: 0}},
			IdentifierRange: types.Range{Start: types.Position{Line: 1, Column: 13}, End: types.Position{Line: 1, Column: 27}},
		},
	}))
	_, err := service.EnterScope("AccountService", types.SymbolKindClass, types.Range{
		Start: types.Position{Line: 1, Column: 0},
		End:   types.Position{Line: 40, Column: 0},
	})
	require.NoError(t, err)
	require.NoError(t, service.AddSymbol(&types.Symbol{
		Name: "total", Kind: types.SymbolKindField, ValueType: "Integer",
	}))
	require.NoError(t, service.AddSymbol(&types.Symbol{
		Name: "process", Kind: types.SymbolKindMethod, ReturnType: "void",
		Location: types.Location{
			SymbolRange: types.Range{Start: types.Position{Line: 5, Column: 4}, End: types.Position{Line: 12, Column: 4}},
		},
	}))
	require.NoError(t, service.ExitScope())

	consumer := symtab.New("file:///Consumer.cls")
	require.NoError(t, consumer.AddSymbol(&types.Symbol{Name: "Consumer", Kind: types.SymbolKindClass}))
	_, err = consumer.EnterScope("Consumer", types.SymbolKindClass, types.Range{
		Start: types.Position{Line: 1, Column: 0},
		End:   types.Position{Line: 20, Column: 0},
	})
	require.NoError(t, err)
	consumer.AddReferenceSite(types.TypeReference{
		Name: "AccountService",
		Type: types.RefTypeTypeReference,
		Location: types.Range{
			Start: types.Position{Line: 3, Column: 8},
			End:   types.Position{Line: 3, Column: 22},
		},
	})
	require.NoError(t, consumer.ExitScope())

	ctx := context.Background()
	task, err := srv.AddSymbolTable(ctx, service, service.FileURI())
	require.NoError(t, err)
	require.NoError(t, task.Await(ctx))

	task, err = srv.AddSymbolTable(ctx, consumer, consumer.FileURI())
	require.NoError(t, err)
	require.NoError(t, task.Await(ctx))
}

func TestServer_Hover(t *testing.T) {
	srv := newServer(t)
	loadFixture(t, srv)

	result, err := srv.SubmitRequest(context.Background(), types.RequestHover, PositionalParams{
		URI:      "file:///Consumer.cls",
		Position: types.Position{Line: 3, Column: 8},
		Name:     "AccountService",
	})
	require.NoError(t, err)
	hover := result.(*HoverResult)
	assert.Equal(t, "AccountService", hover.Symbol.Name)
	assert.Contains(t, hover.Contents, "class AccountService")
}

func TestServer_Definition(t *testing.T) {
	srv := newServer(t)
	loadFixture(t, srv)

	result, err := srv.SubmitRequest(context.Background(), types.RequestDefinition, PositionalParams{
		URI:      "file:///Consumer.cls",
		Position: types.Position{Line: 3, Column: 8},
		Name:     "AccountService",
	})
	require.NoError(t, err)
	loc := result.(*LocationResult)
	assert.Equal(t, "file:///AccountService.cls", loc.URI)
	assert.Equal(t, 1, loc.Range.Start.Line)
}

func TestServer_DocumentSymbol(t *testing.T) {
	srv := newServer(t)
	loadFixture(t, srv)

	result, err := srv.SubmitRequest(context.Background(), types.RequestDocumentSymbol, DocumentParams{
		URI: "file:///AccountService.cls",
	})
	require.NoError(t, err)
	outline := result.([]DocumentSymbolResult)
	require.Len(t, outline, 1)
	assert.Equal(t, "AccountService", outline[0].Name)
	assert.Len(t, outline[0].Children, 2, "field and method")
}

func TestServer_References(t *testing.T) {
	srv := newServer(t)
	loadFixture(t, srv)

	result, err := srv.SubmitRequest(context.Background(), types.RequestReferences, PositionalParams{
		URI:      "file:///AccountService.cls",
		Position: types.Position{Line: 1, Column: 13},
		Name:     "AccountService",
	})
	require.NoError(t, err)
	refs := result.([]ReferenceLocation)
	require.Len(t, refs, 1)
	assert.Equal(t, "file:///Consumer.cls", refs[0].URI)
	assert.Equal(t, 3, refs[0].Range.Start.Line)
}

func TestServer_WorkspaceSymbol(t *testing.T) {
	srv := newServer(t)
	loadFixture(t, srv)

	result, err := srv.SubmitRequest(context.Background(), types.RequestWorkspaceSym, WorkspaceSymbolParams{
		Query: "account",
	})
	require.NoError(t, err)
	symbols := result.([]*types.Symbol)
	require.Len(t, symbols, 1)
	assert.Equal(t, "AccountService", symbols[0].Name)
}

func TestServer_Completion(t *testing.T) {
	srv := newServer(t)
	loadFixture(t, srv)

	result, err := srv.SubmitRequest(context.Background(), types.RequestCompletion, PositionalParams{
		URI:      "file:///Consumer.cls",
		Position: types.Position{Line: 3, Column: 8},
		Name:     "Acc",
	})
	require.NoError(t, err)
	items := result.([]CompletionItem)
	require.NotEmpty(t, items)
	assert.Equal(t, "AccountService", items[0].Label)
}

func TestServer_RemoveFile(t *testing.T) {
	srv := newServer(t)
	loadFixture(t, srv)

	ctx := context.Background()
	task, err := srv.RemoveFile(ctx, "file:///AccountService.cls")
	require.NoError(t, err)
	require.NoError(t, task.Await(ctx))

	result, err := srv.SubmitRequest(ctx, types.RequestHover, PositionalParams{
		URI:      "file:///Consumer.cls",
		Position: types.Position{Line: 3, Column: 8},
		Name:     "AccountService",
	})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestServer_GraphProjection(t *testing.T) {
	srv := newServer(t)
	loadFixture(t, srv)

	result, err := srv.SubmitRequest(context.Background(), types.RequestGraphGet, nil)
	require.NoError(t, err)
	projection := result.(*GraphProjection)

	assert.Equal(t, len(projection.Nodes), projection.Metadata.NodeCount)
	assert.Equal(t, 2, projection.Metadata.FileCount)
	require.NotEmpty(t, projection.Edges)

	// Edges carry the rehydrated location form.
	edge := projection.Edges[0]
	assert.Equal(t, 3, edge.Location.Start.Line)
	assert.Equal(t, "type_reference", edge.Type)
}

func TestServer_FindMissingArtifact_Blocking(t *testing.T) {
	srv := newServer(t)
	loadFixture(t, srv)

	params := FindMissingArtifactParams{Identifier: "AccountService", Mode: "blocking"}
	result, err := srv.SubmitRequest(context.Background(), types.RequestFindMissingArtifact, params)
	require.NoError(t, err)
	found := result.(*FindMissingArtifactResult)
	require.NotEmpty(t, found.Opened)
	assert.Equal(t, "file:///AccountService.cls", found.Opened[0])
	assert.False(t, found.NotFound)
}

func TestServer_FindMissingArtifact_FuzzyAndHints(t *testing.T) {
	srv := newServer(t)
	loadFixture(t, srv)

	// A close misspelling still finds the artifact.
	params := FindMissingArtifactParams{Identifier: "AccountServce", Mode: "blocking"}
	result, err := srv.SubmitRequest(context.Background(), types.RequestFindMissingArtifact, params)
	require.NoError(t, err)
	assert.NotEmpty(t, result.(*FindMissingArtifactResult).Opened)

	// Hints that exclude every file produce notFound.
	params = FindMissingArtifactParams{
		Identifier:  "AccountService",
		Mode:        "blocking",
		SearchHints: []string{"triggers/**"},
	}
	result, err = srv.SubmitRequest(context.Background(), types.RequestFindMissingArtifact, params)
	require.NoError(t, err)
	assert.True(t, result.(*FindMissingArtifactResult).NotFound)
}

func TestServer_FindMissingArtifact_Background(t *testing.T) {
	srv := newServer(t)
	loadFixture(t, srv)

	params := FindMissingArtifactParams{Identifier: "AccountService", Mode: "background"}
	result, err := srv.SubmitRequest(context.Background(), types.RequestFindMissingArtifact, params)
	require.NoError(t, err)
	assert.True(t, result.(*FindMissingArtifactResult).Accepted)
}

func TestServer_ValidatorRunAll(t *testing.T) {
	srv := newServer(t)
	loadFixture(t, srv)

	result, err := srv.SubmitRequest(context.Background(), types.RequestValidatorRun, nil)
	require.NoError(t, err)
	// The fixture has no type cycles; the run completes with no findings.
	assert.Empty(t, result)
}

func TestToWireError_Mapping(t *testing.T) {
	assert.Nil(t, ToWireError(nil))
	assert.Equal(t, CodeRequestCancelled, ToWireError(apexerrors.ErrTimeout).Code)
	assert.Equal(t, CodeRequestCancelled, ToWireError(apexerrors.ErrCancelled).Code)
	assert.Equal(t, CodeInvalidParams, ToWireError(apexerrors.ErrHandlerNotRegistered).Code)
	assert.Equal(t, CodeInvalidParams, ToWireError(&apexerrors.MalformedIDError{ID: "x", Reason: "y"}).Code)
	assert.Equal(t, CodeInvalidParams, ToWireError(&apexerrors.DuplicateSymbolError{Name: "a"}).Code)
	assert.Equal(t, CodeInternalError, ToWireError(assert.AnError).Code)
}

func TestServer_SettingsChangeAdjustsScheduler(t *testing.T) {
	bus := config.NewBus(config.Default())
	sched := scheduler.New(scheduler.DefaultConfig())
	require.NoError(t, sched.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, sched.Shutdown(ctx))
	})
	New(bus, sched, graph.New())

	next := config.Default()
	next.QueueProcessing.MaxConcurrency["NORMAL"] = 2
	require.NoError(t, bus.Publish(next))
}
