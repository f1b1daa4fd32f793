package types

// RequestKind names one serviceable request. Every task in the scheduler is
// tagged with the kind it serves so per-kind breakdowns are cheap.
type RequestKind string

const (
	RequestHover          RequestKind = "hover"
	RequestCompletion     RequestKind = "completion"
	RequestSignatureHelp  RequestKind = "signatureHelp"
	RequestDefinition     RequestKind = "definition"
	RequestTypeDefinition RequestKind = "typeDefinition"
	RequestImplementation RequestKind = "implementation"
	RequestDocumentSymbol RequestKind = "documentSymbol"
	RequestFoldingRange   RequestKind = "foldingRange"
	RequestCodeLens       RequestKind = "codeLens"
	RequestReferences     RequestKind = "references"
	RequestWorkspaceSym   RequestKind = "workspaceSymbol"
	RequestBatchLoad      RequestKind = "workspace/batch-load"
	RequestValidatorRun   RequestKind = "validator/run-all"

	// Protocol extensions
	RequestFindMissingArtifact RequestKind = "find-missing-artifact"
	RequestGraphGet            RequestKind = "graph/get"

	// Internal maintenance kinds
	RequestAddSymbolTable RequestKind = "symbols/add-table"
	RequestRemoveFile     RequestKind = "symbols/remove-file"
	RequestMetricsSample  RequestKind = "metrics/sample"
)
