package types

import "strings"

// SymbolID identifies a symbol across the whole workspace. The encoded form is
// "<file-uri>:<scope-path>:<kind>:<name>" where the scope path is a dot-joined
// chain of enclosing scope segments ("class:Foo.method:bar.block1"). Top-level
// symbols carry an empty scope-path segment. Equality on the name segment is
// case-insensitive; the rest is case-sensitive.
type SymbolID string

// EqualFold compares two symbol IDs with case-insensitive name segments.
func (id SymbolID) EqualFold(other SymbolID) bool {
	if id == other {
		return true
	}
	a, ai := splitNameSegment(string(id))
	b, bi := splitNameSegment(string(other))
	if a != b {
		return false
	}
	return strings.EqualFold(ai, bi)
}

// splitNameSegment splits an encoded ID into everything-before-the-name and the
// name itself.
func splitNameSegment(s string) (prefix, name string) {
	idx := strings.LastIndexByte(s, ':')
	if idx < 0 {
		return "", s
	}
	return s[:idx], s[idx+1:]
}

// SymbolKind is the kind of a parsed Apex symbol.
type SymbolKind uint8

const (
	SymbolKindClass SymbolKind = iota
	SymbolKindInterface
	SymbolKindEnum
	SymbolKindTrigger
	SymbolKindMethod
	SymbolKindField
	SymbolKindProperty
	SymbolKindParameter
	SymbolKindVariable
	SymbolKindBlock
	SymbolKindAnnotation
)

// symbolKindStrings provides O(1) lookup for symbol kind names
var symbolKindStrings = map[SymbolKind]string{
	SymbolKindClass:      "class",
	SymbolKindInterface:  "interface",
	SymbolKindEnum:       "enum",
	SymbolKindTrigger:    "trigger",
	SymbolKindMethod:     "method",
	SymbolKindField:      "field",
	SymbolKindProperty:   "property",
	SymbolKindParameter:  "parameter",
	SymbolKindVariable:   "variable",
	SymbolKindBlock:      "block",
	SymbolKindAnnotation: "annotation",
}

func (sk SymbolKind) String() string {
	if s, ok := symbolKindStrings[sk]; ok {
		return s
	}
	return "unknown"
}

// ParseSymbolKind maps the string form back to a kind. The second return is
// false for unrecognized input.
func ParseSymbolKind(s string) (SymbolKind, bool) {
	for k, v := range symbolKindStrings {
		if v == s {
			return k, true
		}
	}
	return SymbolKindClass, false
}

// IsType reports whether the kind introduces a type scope (class, interface,
// enum, trigger).
func (sk SymbolKind) IsType() bool {
	switch sk {
	case SymbolKindClass, SymbolKindInterface, SymbolKindEnum, SymbolKindTrigger:
		return true
	}
	return false
}

// Visibility is the declared access level of a symbol.
type Visibility uint8

const (
	VisibilityDefault Visibility = iota
	VisibilityPrivate
	VisibilityProtected
	VisibilityPublic
	VisibilityGlobal
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPrivate:
		return "private"
	case VisibilityProtected:
		return "protected"
	case VisibilityPublic:
		return "public"
	case VisibilityGlobal:
		return "global"
	default:
		return "default"
	}
}

// Modifiers carries the declared modifiers of a symbol.
type Modifiers struct {
	Visibility   Visibility `json:"visibility"`
	IsStatic     bool       `json:"is_static,omitempty"`
	IsFinal      bool       `json:"is_final,omitempty"`
	IsAbstract   bool       `json:"is_abstract,omitempty"`
	IsVirtual    bool       `json:"is_virtual,omitempty"`
	IsOverride   bool       `json:"is_override,omitempty"`
	IsTestMethod bool       `json:"is_test_method,omitempty"`
	IsWebService bool       `json:"is_web_service,omitempty"`
	IsTransient  bool       `json:"is_transient,omitempty"`
}

// Position is a point in a source file. Lines are 1-based, columns 0-based,
// matching what the parser listeners emit.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Range is a span between two positions; both ends are inclusive.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Contains reports whether pos falls inside the range (inclusive of the start,
// inclusive of the end position).
func (r Range) Contains(pos Position) bool {
	if pos.Line < r.Start.Line || pos.Line > r.End.Line {
		return false
	}
	if pos.Line == r.Start.Line && pos.Column < r.Start.Column {
		return false
	}
	if pos.Line == r.End.Line && pos.Column > r.End.Column {
		return false
	}
	return true
}

// ContainsRange reports whether r fully encloses other.
func (r Range) ContainsRange(other Range) bool {
	return r.Contains(other.Start) && r.Contains(other.End)
}

// Location is the pair of ranges a symbol occupies: the whole declaration and
// just the identifier token.
type Location struct {
	SymbolRange     Range `json:"symbol_range"`
	IdentifierRange Range `json:"identifier_range"`
}

// Parameter is a method parameter declaration.
type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Symbol is one parsed Apex declaration. A single flat struct covers all
// variants; kind-specific fields are zero for kinds that don't use them.
type Symbol struct {
	ID       SymbolID   `json:"id"`
	Name     string     `json:"name"`
	Kind     SymbolKind `json:"kind"`
	FileURI  string     `json:"file_uri"`
	FQN      string     `json:"fqn"` // lowercased dot-path, excludes blocks
	ParentID SymbolID   `json:"parent_id,omitempty"`
	Location Location   `json:"location"`

	Modifiers   Modifiers `json:"modifiers"`
	Annotations []string  `json:"annotations,omitempty"`
	Namespace   string    `json:"namespace,omitempty"`

	// Type symbols only
	Superclass string   `json:"superclass,omitempty"`
	Interfaces []string `json:"interfaces,omitempty"`

	// Method symbols only
	Parameters []Parameter `json:"parameters,omitempty"`
	ReturnType string      `json:"return_type,omitempty"`

	// Fields, properties, parameters, and variables: the declared type name.
	ValueType string `json:"value_type,omitempty"`
}

// NameEquals compares the symbol name case-insensitively, the comparison
// used everywhere Apex identifiers are matched.
func (s *Symbol) NameEquals(name string) bool {
	return strings.EqualFold(s.Name, name)
}
