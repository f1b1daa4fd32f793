package server

import (
	"context"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hbollon/go-edlib"

	"github.com/apexls/apexls/internal/debug"
	"github.com/apexls/apexls/internal/graph"
	"github.com/apexls/apexls/internal/scheduler"
	"github.com/apexls/apexls/internal/types"
	"github.com/apexls/apexls/pkg/uriutil"
)

// Candidate ranking constants for the missing-artifact search.
const (
	// fuzzyThreshold is the minimum Jaro-Winkler similarity for a candidate.
	fuzzyThreshold = 0.80
	// defaultMaxCandidates bounds how many artifacts one request opens.
	defaultMaxCandidates = 3
)

// artifactFinder services find-missing-artifact: given an identifier the
// resolver failed on, rank workspace and library files whose symbols are
// plausible matches.
type artifactFinder struct {
	srv *Server
}

func newArtifactFinder(srv *Server) *artifactFinder {
	return &artifactFinder{srv: srv}
}

type scoredCandidate struct {
	uri   string
	score float64
}

func (s *Server) handleFindMissingArtifact(ctx context.Context, params any, g *graph.SymbolGraph) (any, error) {
	p, err := decodeParams[FindMissingArtifactParams](params)
	if err != nil {
		return nil, err
	}

	settings := s.bus.Current()
	if !settings.FindMissingArtifact.Enabled {
		return &FindMissingArtifactResult{NotFound: true}, nil
	}

	// Background mode acknowledges immediately and finishes as a detached
	// Background task.
	if p.Mode == "background" {
		_, err := s.sched.Submit(context.Background(), types.RequestFindMissingArtifact,
			scheduler.PriorityBackground, 0, func(taskCtx context.Context) error {
				result := s.finder.search(taskCtx, p, settings.FindMissingArtifact.MaxCandidatesToOpen)
				debug.Log("ARTIFACT", "background search for %q found %d candidates",
					p.Identifier, len(result.Opened))
				return nil
			})
		if err != nil {
			return nil, err
		}
		return &FindMissingArtifactResult{Accepted: true}, nil
	}

	maxCandidates := p.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = settings.FindMissingArtifact.MaxCandidatesToOpen
	}
	if maxCandidates <= 0 {
		maxCandidates = defaultMaxCandidates
	}
	return s.finder.search(ctx, p, maxCandidates), nil
}

// search ranks every known file by how closely its symbols match the
// identifier, filtered by the caller's glob hints.
func (f *artifactFinder) search(ctx context.Context, p FindMissingArtifactParams, maxCandidates int) *FindMissingArtifactResult {
	identifier := strings.ToLower(p.Identifier)
	g := f.srv.graph

	var candidates []scoredCandidate
	for _, uri := range g.FileURIs() {
		select {
		case <-ctx.Done():
			return &FindMissingArtifactResult{NotFound: true}
		default:
		}

		if !matchesHints(uri, p.SearchHints) {
			continue
		}

		best := 0.0
		for _, sym := range g.GetSymbolsInFile(uri) {
			if sym.Kind == types.SymbolKindBlock {
				continue
			}
			score := similarity(identifier, strings.ToLower(sym.Name))
			if score > best {
				best = score
			}
		}
		if best >= fuzzyThreshold {
			candidates = append(candidates, scoredCandidate{uri: uri, score: best})
		}
	}

	if len(candidates) == 0 {
		return &FindMissingArtifactResult{NotFound: true}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].uri < candidates[j].uri
	})
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	opened := make([]string, 0, len(candidates))
	for _, c := range candidates {
		opened = append(opened, c.uri)
	}
	return &FindMissingArtifactResult{Opened: opened}
}

// matchesHints applies the request's glob hints against the candidate's
// normalized path. No hints means every file qualifies.
func matchesHints(uri string, hints []string) bool {
	if len(hints) == 0 {
		return true
	}
	path := strings.TrimPrefix(uriutil.ExtractFilePath(uri), "/")
	for _, hint := range hints {
		if ok, err := doublestar.Match(hint, path); err == nil && ok {
			return true
		}
	}
	return false
}

// similarity scores two identifiers. Exact (case-insensitive) equality short
// circuits at 1.0; otherwise Jaro-Winkler handles typos and partial names.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	return float64(edlib.JaroWinklerSimilarity(a, b))
}
