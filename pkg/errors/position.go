package errors

import (
	"fmt"

	"kotlite/pkg/source"
)

// Position represents a specific location in the source code.
// It includes line and column numbers (1-based) for human-readability,
// and byte offsets (0-based) for potential use in tooling.
type Position struct {
	Line     int                // 1-based line number
	Column   int                // 1-based column number (rune index within the line)
	StartPos int                // 0-based byte offset of the start of the token/error span
	EndPos   int                // 0-based byte offset of the end of the token/error span (exclusive)
	Source   *source.SourceFile // Reference to the source file
}

// Filename returns the display name of the file the position points into.
func (p Position) Filename() string {
	return p.Source.DisplayPath()
}

// String formats the position as filename:line:column.
func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Filename(), p.Line, p.Column)
}

// IsValid reports whether the position points at a real line.
func (p Position) IsValid() bool {
	return p.Line > 0
}
