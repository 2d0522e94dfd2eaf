package parser

import (
	goerrors "errors"
	"io"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"kotlite/pkg/errors"
)

var astDumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	DisableMethods:          true,
	SortKeys:                true,
}

// DumpAST writes the full structure of a node tree, token positions included.
func DumpAST(w io.Writer, n Node) {
	astDumper.Fdump(w, n)
}

// IsIncomplete reports whether err was caused by input ending early, so that an
// interactive reader should ask for more lines.
func IsIncomplete(err error) bool {
	var perr *errors.ParseError
	if goerrors.As(err, &perr) {
		return perr.Token == ""
	}
	var lerr *errors.LexError
	if goerrors.As(err, &lerr) {
		return strings.HasPrefix(lerr.Msg, "unterminated")
	}
	return false
}
