package lexer

import (
	"io"

	"github.com/davecgh/go-spew/spew"
)

var tokenDumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// DumpTokens writes a token stream in a readable, one-token-per-line form.
func DumpTokens(w io.Writer, tokens []Token) {
	tokenDumper.Fdump(w, tokens)
}
