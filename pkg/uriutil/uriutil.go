// Package uriutil provides conversion between document URIs and file paths.
//
// Architecture Pattern:
// The symbol graph keys everything by URI (file:// for workspace sources,
// apexlib:// for standard-library tables) for consistency with the protocol
// layer. This package is the conversion boundary between URIs and the path
// form used in user-facing output.
package uriutil

import (
	"strings"
)

const (
	// SchemeFile prefixes workspace source documents.
	SchemeFile = "file://"
	// SchemeApexLib prefixes bundled standard-library documents.
	SchemeApexLib = "apexlib://"
)

// ExtractFilePath normalizes a file:// or apexlib:// URI into a stable path:
// forward slashes only, exactly one leading slash. Input without one of
// these schemes gets the same separator and leading-slash normalization.
//
// Examples:
//   - ExtractFilePath("file:///src/Foo.cls")        → "/src/Foo.cls"
//   - ExtractFilePath("file://C:\\src\\Foo.cls")    → "/C:/src/Foo.cls"
//   - ExtractFilePath("apexlib://System/String.cls") → "/System/String.cls"
func ExtractFilePath(uri string) string {
	path := uri
	switch {
	case strings.HasPrefix(uri, SchemeFile):
		path = uri[len(SchemeFile):]
	case strings.HasPrefix(uri, SchemeApexLib):
		path = uri[len(SchemeApexLib):]
	}

	path = strings.ReplaceAll(path, "\\", "/")

	// Collapse any run of leading slashes to exactly one.
	trimmed := strings.TrimLeft(path, "/")
	return "/" + trimmed
}

// FileURI builds a file:// URI from a path, normalizing separators.
func FileURI(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return SchemeFile + path
}

// LibraryURI builds an apexlib:// URI for a standard-library type.
func LibraryURI(namespace, typeName string) string {
	return SchemeApexLib + namespace + "/" + typeName
}

// IsLibraryURI reports whether the URI addresses a bundled library document.
func IsLibraryURI(uri string) bool {
	return strings.HasPrefix(uri, SchemeApexLib)
}
