package types

import (
	"fmt"
	"time"
)

// ReferenceType classifies how one symbol refers to another.
type ReferenceType uint8

const (
	RefTypeMethodCall ReferenceType = iota
	RefTypeFieldAccess
	RefTypeTypeReference
	RefTypeInheritance
	RefTypeInterfaceImpl
	RefTypeConstructorCall
	RefTypeStaticAccess
	RefTypeInstanceAccess
	RefTypeImport
	RefTypeNamespace
	RefTypeAnnotation
	RefTypeTriggerContext
	RefTypeSOQLQuery
	RefTypeSOSLQuery
	RefTypeDMLOperation
	RefTypeVariableRead
	RefTypeVariableWrite
	RefTypeParameterType
	RefTypeReturnType
	RefTypeCastType
	RefTypeInstanceOf
	RefTypeThrowType
	RefTypeCatchType
	RefTypeArrayAccess
	RefTypePropertyAccess
)

var referenceTypeStrings = map[ReferenceType]string{
	RefTypeMethodCall:      "method_call",
	RefTypeFieldAccess:     "field_access",
	RefTypeTypeReference:   "type_reference",
	RefTypeInheritance:     "inheritance",
	RefTypeInterfaceImpl:   "interface_impl",
	RefTypeConstructorCall: "constructor_call",
	RefTypeStaticAccess:    "static_access",
	RefTypeInstanceAccess:  "instance_access",
	RefTypeImport:          "import",
	RefTypeNamespace:       "namespace",
	RefTypeAnnotation:      "annotation",
	RefTypeTriggerContext:  "trigger_context",
	RefTypeSOQLQuery:       "soql_query",
	RefTypeSOSLQuery:       "sosl_query",
	RefTypeDMLOperation:    "dml_operation",
	RefTypeVariableRead:    "variable_read",
	RefTypeVariableWrite:   "variable_write",
	RefTypeParameterType:   "parameter_type",
	RefTypeReturnType:      "return_type",
	RefTypeCastType:        "cast_type",
	RefTypeInstanceOf:      "instance_of",
	RefTypeThrowType:       "throw_type",
	RefTypeCatchType:       "catch_type",
	RefTypeArrayAccess:     "array_access",
	RefTypePropertyAccess:  "property_access",
}

func (rt ReferenceType) String() string {
	if s, ok := referenceTypeStrings[rt]; ok {
		return s
	}
	return "unknown"
}

// IsTypeLevel reports whether the reference participates in type-dependency
// analysis (cycle detection walks only these).
func (rt ReferenceType) IsTypeLevel() bool {
	return rt == RefTypeTypeReference || rt == RefTypeInheritance
}

// CompactLocation packs a range as four uint16 values in one uint64:
// startLine | startColumn | endLine | endColumn from the high word down.
type CompactLocation uint64

const maxCompactCoordinate = 0xFFFF

// PackLocation encodes a range into compact form. Coordinates outside
// [0, 65535] return an error.
func PackLocation(r Range) (CompactLocation, error) {
	for _, v := range [4]int{r.Start.Line, r.Start.Column, r.End.Line, r.End.Column} {
		if v < 0 || v > maxCompactCoordinate {
			return 0, fmt.Errorf("location coordinate %d out of uint16 range", v)
		}
	}
	packed := uint64(r.Start.Line)<<48 |
		uint64(r.Start.Column)<<32 |
		uint64(r.End.Line)<<16 |
		uint64(r.End.Column)
	return CompactLocation(packed), nil
}

// Rehydrate expands the compact form back into a range.
func (c CompactLocation) Rehydrate() Range {
	return Range{
		Start: Position{
			Line:   int(c >> 48 & maxCompactCoordinate),
			Column: int(c >> 32 & maxCompactCoordinate),
		},
		End: Position{
			Line:   int(c >> 16 & maxCompactCoordinate),
			Column: int(c & maxCompactCoordinate),
		},
	}
}

// ReferenceContext carries optional detail about a reference site. Pointer
// fields distinguish "absent" from zero values in the JSON projection.
type ReferenceContext struct {
	MethodName     string  `json:"method_name,omitempty"`
	ParameterIndex *uint16 `json:"parameter_index,omitempty"`
	IsStatic       *bool   `json:"is_static,omitempty"`
	Namespace      string  `json:"namespace,omitempty"`
}

// ReferenceEdge is a directed edge between two symbols in the graph.
type ReferenceEdge struct {
	SourceID      SymbolID          `json:"source_id"`
	TargetID      SymbolID          `json:"target_id"`
	Type          ReferenceType     `json:"type"`
	Location      CompactLocation   `json:"-"`
	Context       *ReferenceContext `json:"context,omitempty"`
	SourceFileURI string            `json:"source_file_uri"`
	TargetFileURI string            `json:"target_file_uri"`
}

// ReferenceNode is a graph vertex. It carries no symbol data; symbol lookups
// delegate to the owning file's symbol table.
type ReferenceNode struct {
	SymbolID       SymbolID  `json:"symbol_id"`
	FileURI        string    `json:"file_uri"`
	LastUpdated    time.Time `json:"last_updated"`
	ReferenceCount int       `json:"reference_count"`
	NodeID         uint32    `json:"node_id"`
}

// TypeReference is a name-usage site recorded by the parser listener while
// walking a file. It has not yet been resolved against the graph.
type TypeReference struct {
	Name     string        `json:"name"` // may be dotted: "Outer.Inner.member"
	Type     ReferenceType `json:"type"`
	Location Range         `json:"location"`
	// SourceScopeID is the innermost scope enclosing the use-site, when the
	// listener tracked it. Empty means file scope.
	SourceScopeID SymbolID          `json:"source_scope_id,omitempty"`
	Context       *ReferenceContext `json:"context,omitempty"`
}

// ResolutionContext narrows a contextual symbol lookup.
type ResolutionContext struct {
	SourceFileURI     string   `json:"source_file_uri,omitempty"`
	ExpectedNamespace string   `json:"expected_namespace,omitempty"`
	CurrentScopeID    SymbolID `json:"current_scope_id,omitempty"`
	IsStatic          *bool    `json:"is_static,omitempty"`
}
