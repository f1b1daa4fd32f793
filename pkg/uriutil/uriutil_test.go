package uriutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFilePath(t *testing.T) {
	cases := []struct {
		uri  string
		want string
	}{
		{"file:///src/Foo.cls", "/src/Foo.cls"},
		{"file:////double/slash.cls", "/double/slash.cls"},
		{"file://C:\\src\\Foo.cls", "/C:/src/Foo.cls"},
		{"apexlib://System/String", "/System/String"},
		{"/already/a/path.cls", "/already/a/path.cls"},
		{"relative\\windows\\path.cls", "/relative/windows/path.cls"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractFilePath(tc.uri), "uri %q", tc.uri)
	}
}

func TestFileURI(t *testing.T) {
	assert.Equal(t, "file:///src/Foo.cls", FileURI("/src/Foo.cls"))
	assert.Equal(t, "file:///src/Foo.cls", FileURI("src/Foo.cls"))
	assert.Equal(t, "file:///c/win/Foo.cls", FileURI("\\c\\win\\Foo.cls"))
}

func TestLibraryURI(t *testing.T) {
	assert.Equal(t, "apexlib://System/String", LibraryURI("System", "String"))
	assert.True(t, IsLibraryURI("apexlib://System/String"))
	assert.False(t, IsLibraryURI("file:///Foo.cls"))
}
