package lexer

import (
	"fmt"

	"kotlite/pkg/errors"
	"kotlite/pkg/source"
)

// TokenType represents the type of a token.
type TokenType string

// --- Token Types ---
const (
	// Special
	EOF     TokenType = "EOF"
	NEWLINE TokenType = "NewLine"

	// Identifiers + Literals. Keywords are IDENTIFIER tokens; the parser checks values.
	IDENTIFIER TokenType = "Identifier"
	INTEGER    TokenType = "Integer" // 123, 0xFF
	LONG       TokenType = "Long"    // 123L
	DOUBLE     TokenType = "Double"  // 45.67
	CHAR       TokenType = "Char"    // 'c'

	// String literal mode
	STRING_START   TokenType = "StringStart"           // " or """
	STRING_END     TokenType = "StringEnd"             // " or """
	STRING_CONTENT TokenType = "StringContent"         // literal text fragment (escapes decoded)
	STRING_FIELD   TokenType = "StringFieldIdentifier" // $name
	TEMPLATE_START TokenType = "StringTemplateStart"   // ${
	TEMPLATE_END   TokenType = "StringTemplateEnd"     // } closing ${

	OPERATOR  TokenType = "Operator"
	SYMBOL    TokenType = "Symbol"
	SEMICOLON TokenType = "Semicolon"
)

// Token represents a lexical token.
type Token struct {
	Type     TokenType
	Literal  string // lexeme, or decoded text for string fragments and chars
	Line     int    // 1-based line number where the token starts
	Column   int    // 1-based column number (rune index) where the token starts
	StartPos int    // 0-based byte offset where the token starts
	EndPos   int    // 0-based byte offset after the token ends
	Source   *source.SourceFile
}

// Position converts the token location into a diagnostics position.
func (t Token) Position() errors.Position {
	return errors.Position{
		Line:     t.Line,
		Column:   t.Column,
		StartPos: t.StartPos,
		EndPos:   t.EndPos,
		Source:   t.Source,
	}
}

// Is reports whether the token has the given type and literal.
func (t Token) Is(typ TokenType, literal string) bool {
	return t.Type == typ && t.Literal == literal
}

func (t Token) String() string {
	switch t.Type {
	case EOF:
		return "<EOF>"
	case NEWLINE:
		return "<NL>"
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Symbols are structural punctuation; everything else in the operator table is an OPERATOR.
var symbols = map[string]bool{
	"(": true, ")": true, "[": true, "]": true, "{": true, "}": true,
	",": true, ":": true, ".": true, "?.": true, "::": true, "->": true, "?": true, "@": true,
}

// operators lists every supported operator and symbol, longest first so that
// matching is greedy.
var operators = []string{
	"===", "!==",
	"!!", "?.", "?:", "..", "->", "::", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "==", "!=", "<=", ">=", "&&", "||",
	"+", "-", "*", "/", "%", "=", "<", ">", "!", "?", ":", ".", ",",
	"(", ")", "[", "]", "{", "}", "@",
}

// hardKeywords cannot be used as identifiers.
var hardKeywords = map[string]bool{
	"as": true, "break": true, "class": true, "continue": true, "do": true,
	"else": true, "false": true, "for": true, "fun": true, "if": true, "in": true,
	"interface": true, "is": true, "null": true, "object": true, "return": true,
	"super": true, "this": true, "throw": true, "true": true, "try": true,
	"typealias": true, "val": true, "var": true, "when": true, "while": true,
}

// IsHardKeyword reports whether an identifier is reserved.
func IsHardKeyword(s string) bool {
	return hardKeywords[s]
}
