// Package source holds script text together with the name diagnostics show for it.
package source

import (
	"path/filepath"
	"strings"
)

// SourceFile is one unit of script text. Name is what error messages print when
// there is no Path: "<eval>", "<repl>", a module prelude or a header.
type SourceFile struct {
	Name    string
	Path    string
	Content string
	lines   []string
}

func NewSourceFile(name, path, content string) *SourceFile {
	return &SourceFile{Name: name, Path: path, Content: content}
}

// NewEvalSource wraps text handed in by the host without a filename.
func NewEvalSource(content string) *SourceFile {
	return &SourceFile{Name: "<eval>", Content: content}
}

// NewReplSource wraps the accumulated input of an interactive session.
func NewReplSource(content string) *SourceFile {
	return &SourceFile{Name: "<repl>", Content: content}
}

// NewHeaderSource wraps a native declaration header registered by module.
func NewHeaderSource(module, content string) *SourceFile {
	return &SourceFile{Name: "<header:" + module + ">", Content: content}
}

// FromFile wraps the content of a file read from disk.
func FromFile(filePath, content string) *SourceFile {
	return NewSourceFile(filepath.Base(filePath), filePath, content)
}

// Named wraps content under the filename the host supplied; an empty filename
// falls back to "<eval>".
func Named(filename, content string) *SourceFile {
	if filename == "" {
		return NewEvalSource(content)
	}
	return NewSourceFile(filename, "", content)
}

// Line returns the 1-based line n without its line terminator, or "" when n is
// out of range.
func (sf *SourceFile) Line(n int) string {
	if sf.lines == nil {
		sf.lines = strings.Split(sf.Content, "\n")
	}
	if n < 1 || n > len(sf.lines) {
		return ""
	}
	return strings.TrimRight(sf.lines[n-1], "\r")
}

// DisplayPath is the path when the source came from disk and the name otherwise.
func (sf *SourceFile) DisplayPath() string {
	switch {
	case sf == nil:
		return "<unknown>"
	case sf.Path != "":
		return sf.Path
	}
	return sf.Name
}
