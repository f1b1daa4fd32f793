package server

import (
	"context"
	"runtime"

	"github.com/apexls/apexls/internal/graph"
)

// Projection batch sizes: the Background task yields between batches so the
// controller keeps servicing latency-sensitive work during large exports.
const (
	projectionNodeBatch   = 100
	projectionFileBatch   = 50
	projectionVertexBatch = 100
)

func (s *Server) handleGraphGet(ctx context.Context, params any, g *graph.SymbolGraph) (any, error) {
	projection := &GraphProjection{
		Nodes: []ProjectedNode{},
		Edges: []ProjectedEdge{},
	}

	processed := 0
	yield := func(batch int) error {
		processed++
		if processed%batch == 0 {
			runtime.Gosched()
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		return nil
	}

	files := g.FileURIs()
	for i, uri := range files {
		if i > 0 && i%projectionFileBatch == 0 {
			runtime.Gosched()
		}
		for _, sym := range g.GetSymbolsInFile(uri) {
			node := ProjectedNode{
				SymbolID: string(sym.ID),
				Name:     sym.Name,
				Kind:     sym.Kind.String(),
				FileURI:  sym.FileURI,
				FQN:      sym.FQN,
			}
			if vertex := g.GetNode(sym.ID); vertex != nil {
				node.ReferenceCount = vertex.ReferenceCount
			}
			projection.Nodes = append(projection.Nodes, node)
			if err := yield(projectionNodeBatch); err != nil {
				return nil, err
			}
		}
	}

	processed = 0
	for _, id := range g.SymbolIDs() {
		for _, ref := range g.FindReferencesFrom(id) {
			projection.Edges = append(projection.Edges, ProjectedEdge{
				SourceID: string(ref.Edge.SourceID),
				TargetID: string(ref.Edge.TargetID),
				Type:     ref.Edge.Type.String(),
				Location: ref.Location,
				Context:  ref.Edge.Context,
			})
		}
		if err := yield(projectionVertexBatch); err != nil {
			return nil, err
		}
	}

	projection.Metadata = GraphMetadata{
		NodeCount: len(projection.Nodes),
		EdgeCount: len(projection.Edges),
		FileCount: len(files),
	}
	return projection, nil
}
