package server

import "github.com/apexls/apexls/internal/types"

// Typed request payloads. Each request kind gets one params struct; the
// dispatcher hands handlers the concrete type, never loose maps.

// PositionalParams addresses a point in a document. Used by hover,
// completion, signatureHelp, definition, typeDefinition, implementation, and
// references.
type PositionalParams struct {
	URI      string         `json:"uri"`
	Position types.Position `json:"position"`
	// Name is the identifier under the cursor, supplied by the document
	// layer. May be dotted for qualified expressions.
	Name string `json:"name"`
}

// DocumentParams addresses a whole document. Used by documentSymbol,
// foldingRange, and codeLens.
type DocumentParams struct {
	URI string `json:"uri"`
}

// WorkspaceSymbolParams carries a workspace-wide symbol query.
type WorkspaceSymbolParams struct {
	Query string `json:"query"`
}

// BatchLoadParams carries multiple parsed tables for bulk registration.
type BatchLoadParams struct {
	Tables []BatchLoadEntry `json:"tables"`
}

// BatchLoadEntry is one table in a batch load.
type BatchLoadEntry struct {
	URI   string `json:"uri"`
	Table any    `json:"-"` // *symtab.SymbolTable; any keeps the JSON shape clean
}

// HoverResult is the response to a hover request.
type HoverResult struct {
	Symbol     *types.Symbol `json:"symbol"`
	Confidence float64       `json:"confidence"`
	Contents   string        `json:"contents"`
}

// LocationResult is a resolved definition/implementation site.
type LocationResult struct {
	URI   string      `json:"uri"`
	Range types.Range `json:"range"`
}

// CompletionItem is one completion candidate.
type CompletionItem struct {
	Label  string `json:"label"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// SignatureInformation describes one callable signature.
type SignatureInformation struct {
	Label      string   `json:"label"`
	Parameters []string `json:"parameters,omitempty"`
}

// DocumentSymbolResult is one entry of a document outline.
type DocumentSymbolResult struct {
	Name     string                 `json:"name"`
	Kind     string                 `json:"kind"`
	Range    types.Range            `json:"range"`
	Children []DocumentSymbolResult `json:"children,omitempty"`
}

// FoldingRangeResult is one foldable region.
type FoldingRangeResult struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// CodeLensResult is one inline annotation anchor.
type CodeLensResult struct {
	Range   types.Range `json:"range"`
	Command string      `json:"command"`
	Title   string      `json:"title"`
}

// ReferenceLocation is one use-site of a symbol.
type ReferenceLocation struct {
	URI        string      `json:"uri"`
	Range      types.Range `json:"range"`
	RefType    string      `json:"ref_type"`
	SymbolID   string      `json:"symbol_id"`
	IsIncoming bool        `json:"is_incoming"`
}

// FindMissingArtifactParams matches the protocol extension request.
type FindMissingArtifactParams struct {
	Identifier string `json:"identifier"`
	Origin     struct {
		URI         string         `json:"uri"`
		Position    types.Position `json:"position"`
		RequestKind string         `json:"requestKind"`
	} `json:"origin"`
	Mode          string   `json:"mode"` // blocking | background
	MaxCandidates int      `json:"maxCandidates,omitempty"`
	TimeoutMsHint int      `json:"timeoutMsHint,omitempty"`
	SearchHints   []string `json:"searchHints,omitempty"`
}

// FindMissingArtifactResult is exactly one of opened, notFound, or accepted.
type FindMissingArtifactResult struct {
	Opened   []string `json:"opened,omitempty"`
	NotFound bool     `json:"notFound,omitempty"`
	Accepted bool     `json:"accepted,omitempty"`
}

// GraphProjection is the JSON-serialisable graph/get response.
type GraphProjection struct {
	Nodes    []ProjectedNode `json:"nodes"`
	Edges    []ProjectedEdge `json:"edges"`
	Metadata GraphMetadata   `json:"metadata"`
}

// ProjectedNode is one vertex in the projection.
type ProjectedNode struct {
	SymbolID       string `json:"symbol_id"`
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	FileURI        string `json:"file_uri"`
	FQN            string `json:"fqn,omitempty"`
	ReferenceCount int    `json:"reference_count"`
}

// ProjectedEdge is one edge with its location rehydrated from compact form.
type ProjectedEdge struct {
	SourceID string                  `json:"source_id"`
	TargetID string                  `json:"target_id"`
	Type     string                  `json:"type"`
	Location types.Range             `json:"location"`
	Context  *types.ReferenceContext `json:"context,omitempty"`
}

// GraphMetadata summarizes the projection.
type GraphMetadata struct {
	NodeCount int `json:"node_count"`
	EdgeCount int `json:"edge_count"`
	FileCount int `json:"file_count"`
}
