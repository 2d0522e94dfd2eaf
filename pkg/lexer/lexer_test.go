package lexer

import (
	"testing"

	"kotlite/pkg/errors"
	"kotlite/pkg/source"
)

func tokenize(t *testing.T, input string) []Token {
	t.Helper()
	tokens, err := Tokenize(source.NewEvalSource(input))
	if err != nil {
		t.Fatalf("unexpected lex error: %v", err)
	}
	return tokens
}

func TestNextToken(t *testing.T) {
	input := `val five: Int = 5;
var ten = 10.5

fun add(x: Int, y: Int): Int {
  return x + y
}
// comment
a?.b ?: c!!
x += 1; y++
1..10 === z`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
		expectedLine    int
	}{
		{IDENTIFIER, "val", 1},
		{IDENTIFIER, "five", 1},
		{SYMBOL, ":", 1},
		{IDENTIFIER, "Int", 1},
		{OPERATOR, "=", 1},
		{INTEGER, "5", 1},
		{SEMICOLON, ";", 1},
		{NEWLINE, "\n", 1},
		{IDENTIFIER, "var", 2},
		{IDENTIFIER, "ten", 2},
		{OPERATOR, "=", 2},
		{DOUBLE, "10.5", 2},
		{NEWLINE, "\n", 2},
		{NEWLINE, "\n", 3},
		{IDENTIFIER, "fun", 4},
		{IDENTIFIER, "add", 4},
		{SYMBOL, "(", 4},
		{IDENTIFIER, "x", 4},
		{SYMBOL, ":", 4},
		{IDENTIFIER, "Int", 4},
		{SYMBOL, ",", 4},
		{IDENTIFIER, "y", 4},
		{SYMBOL, ":", 4},
		{IDENTIFIER, "Int", 4},
		{SYMBOL, ")", 4},
		{SYMBOL, ":", 4},
		{IDENTIFIER, "Int", 4},
		{SYMBOL, "{", 4},
		{NEWLINE, "\n", 4},
		{IDENTIFIER, "return", 5},
		{IDENTIFIER, "x", 5},
		{OPERATOR, "+", 5},
		{IDENTIFIER, "y", 5},
		{NEWLINE, "\n", 5},
		{SYMBOL, "}", 6},
		{NEWLINE, "\n", 6},
		{NEWLINE, "\n", 7},
		{IDENTIFIER, "a", 8},
		{SYMBOL, "?.", 8},
		{IDENTIFIER, "b", 8},
		{OPERATOR, "?:", 8},
		{IDENTIFIER, "c", 8},
		{OPERATOR, "!!", 8},
		{NEWLINE, "\n", 8},
		{IDENTIFIER, "x", 9},
		{OPERATOR, "+=", 9},
		{INTEGER, "1", 9},
		{SEMICOLON, ";", 9},
		{IDENTIFIER, "y", 9},
		{OPERATOR, "++", 9},
		{NEWLINE, "\n", 9},
		{INTEGER, "1", 10},
		{OPERATOR, "..", 10},
		{INTEGER, "10", 10},
		{OPERATOR, "===", 10},
		{IDENTIFIER, "z", 10},
		{EOF, "", 10},
	}

	tokens := tokenize(t, input)
	if len(tokens) != len(tests) {
		t.Fatalf("token count wrong. expected=%d, got=%d: %v", len(tests), len(tokens), tokens)
	}
	for i, tt := range tests {
		tok := tokens[i]
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q (literal %q)", i, tt.expectedType, tok.Type, tok.Literal)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
		if tok.Line != tt.expectedLine {
			t.Fatalf("tests[%d] - line wrong. expected=%d, got=%d", i, tt.expectedLine, tok.Line)
		}
	}
}

func TestNewlinesSuppressedInsideBrackets(t *testing.T) {
	tokens := tokenize(t, "f(\n1,\n2\n)[\n0\n]\n{\n}")
	var types []TokenType
	for _, tok := range tokens {
		types = append(types, tok.Type)
	}
	expected := []TokenType{
		IDENTIFIER, SYMBOL, INTEGER, SYMBOL, INTEGER, SYMBOL, SYMBOL, INTEGER, SYMBOL,
		NEWLINE, SYMBOL, NEWLINE, SYMBOL, EOF,
	}
	if len(types) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, types)
	}
	for i := range expected {
		if types[i] != expected[i] {
			t.Fatalf("token %d: expected %s, got %s (%v)", i, expected[i], types[i], tokens)
		}
	}
}

func TestNumberLiterals(t *testing.T) {
	tests := []struct {
		input    string
		typ      TokenType
		expected string
	}{
		{"0", INTEGER, "0"},
		{"2147483648", INTEGER, "2147483648"},
		{"9999999999", INTEGER, "9999999999"},
		{"12L", LONG, "12L"},
		{"1234567890123456789L", LONG, "1234567890123456789L"},
		{"3.25", DOUBLE, "3.25"},
		{"0xFF", INTEGER, "0xFF"},
		{"0x10L", LONG, "0x10L"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens := tokenize(t, tt.input)
			if tokens[0].Type != tt.typ || tokens[0].Literal != tt.expected {
				t.Fatalf("expected %s(%q), got %s", tt.typ, tt.expected, tokens[0])
			}
		})
	}
}

func TestDotAfterIntegerIsNotADouble(t *testing.T) {
	tokens := tokenize(t, "1.toString()")
	if tokens[0].Type != INTEGER || tokens[1].Literal != "." || tokens[2].Literal != "toString" {
		t.Fatalf("unexpected tokens: %v", tokens)
	}
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"integer too long", "12345678901"},
		{"long too long", "12345678901234567890L"},
		{"malformed number", "12abc"},
		{"unterminated block comment", "/* never closed"},
		{"unterminated nested block comment", "/* outer /* inner */"},
		{"unterminated string", `"abc`},
		{"newline in string", "\"abc\ndef\""},
		{"unterminated template", `"${a`},
		{"unsupported operator", "a & b"},
		{"unsupported bitwise", "a ^ b"},
		{"illegal escape", `"\q"`},
		{"empty char", "''"},
		{"long char", "'ab'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(source.NewEvalSource(tt.input))
			if err == nil {
				t.Fatalf("expected a lex error for %q", tt.input)
			}
			if _, ok := err.(*errors.LexError); !ok {
				t.Fatalf("expected *errors.LexError, got %T", err)
			}
		})
	}
}

func TestNestedBlockComment(t *testing.T) {
	tokens := tokenize(t, "a /* one /* two */ still comment */ b")
	if len(tokens) != 3 || tokens[0].Literal != "a" || tokens[1].Literal != "b" {
		t.Fatalf("unexpected tokens: %v", tokens)
	}
}

func TestStringTemplates(t *testing.T) {
	tokens := tokenize(t, `"Hi $name, ${a + b}{}!\n"`)
	expected := []struct {
		typ TokenType
		lit string
	}{
		{STRING_START, `"`},
		{STRING_CONTENT, "Hi "},
		{STRING_FIELD, "name"},
		{STRING_CONTENT, ", "},
		{TEMPLATE_START, "${"},
		{IDENTIFIER, "a"},
		{OPERATOR, "+"},
		{IDENTIFIER, "b"},
		{TEMPLATE_END, "}"},
		{STRING_CONTENT, "{}!\n"},
		{STRING_END, `"`},
		{EOF, ""},
	}
	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d: %v", len(expected), len(tokens), tokens)
	}
	for i, e := range expected {
		if tokens[i].Type != e.typ || tokens[i].Literal != e.lit {
			t.Fatalf("token %d: expected %s(%q), got %s", i, e.typ, e.lit, tokens[i])
		}
	}
}

func TestTemplateWithNestedBracesAndStrings(t *testing.T) {
	tokens := tokenize(t, `"${ listOf(1).map { "<$it>" } }"`)
	if tokens[len(tokens)-2].Type != STRING_END {
		t.Fatalf("expected the outer string to close, got %v", tokens)
	}
	var templateEnds int
	for _, tok := range tokens {
		if tok.Type == TEMPLATE_END {
			templateEnds++
		}
	}
	if templateEnds != 1 {
		t.Fatalf("expected exactly one template end, got %d: %v", templateEnds, tokens)
	}
}

func TestEscapes(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`"\t\b\n\r\'\"\\\$"`, "\t\b\n\r'\"\\$"},
		{`"\u0041"`, "A"},
		{`"\uD83D\uDE00"`, "\U0001F600"},
		{`"\uD83D"`, "�"},
		{`"\uDE00x"`, "�x"},
		{`"\uD83D\u0041"`, "�A"},
		{`"\uD83D\uD83D\uDE00"`, "�\U0001F600"},
		{`"$"`, "$"},
		{`"$1"`, "$1"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens := tokenize(t, tt.input)
			if tokens[1].Type != STRING_CONTENT || tokens[1].Literal != tt.expected {
				t.Fatalf("expected content %q, got %v", tt.expected, tokens)
			}
		})
	}
}

func TestRawString(t *testing.T) {
	tokens := tokenize(t, "\"\"\"a\\n\n\"b\" $x\"\"\"")
	if tokens[0].Literal != `"""` || tokens[1].Literal != "a\\n\n\"b\" " || tokens[2].Type != STRING_FIELD || tokens[3].Type != STRING_END {
		t.Fatalf("unexpected raw string tokens: %v", tokens)
	}
}

func TestCharLiterals(t *testing.T) {
	tokens := tokenize(t, `'a' '\n' 'é' 'ж'`)
	expected := []string{"a", "\n", "é", "ж"}
	for i, e := range expected {
		if tokens[i].Type != CHAR || tokens[i].Literal != e {
			t.Fatalf("char %d: expected %q, got %s", i, e, tokens[i])
		}
	}
}

func TestUnicodeIdentifiers(t *testing.T) {
	tokens := tokenize(t, "val größe = 1")
	if tokens[1].Type != IDENTIFIER || tokens[1].Literal != "größe" {
		t.Fatalf("expected unicode identifier, got %v", tokens)
	}
	if tokens[2].Column != 11 {
		t.Fatalf("expected rune-based column 11, got %d", tokens[2].Column)
	}
}

func TestBackward(t *testing.T) {
	l := NewLexer(source.NewEvalSource("ab"))
	l.advance()
	l.advance()
	l.backward()
	if l.cur.pos != 1 || l.cur.column != 2 {
		t.Fatalf("backward did not restore the cursor: %+v", l.cur)
	}
	l.backward()
	l.backward()
	if l.cur.pos != 0 {
		t.Fatalf("backward past the start should stay at 0, got %+v", l.cur)
	}
}
