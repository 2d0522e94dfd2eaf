package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"kotlite/pkg/errors"
	"kotlite/pkg/source"
)

const (
	maxIntDigits  = 10
	maxLongDigits = 19
)

// cursor is one entry of the lexer's position history.
type cursor struct {
	pos    int // byte offset of the current rune
	line   int // 1-based
	column int // 1-based, in runes
}

type modeKind int

const (
	modeMain     modeKind = iota
	modeTemplate          // inside ${ ... }, ended by the matching }
	modeQuoted            // inside "..."
	modeRaw               // inside """..."""
)

// modeFrame is one level of the lexer mode stack. Main and template frames keep
// their own bracket stack so newline suppression inside a template does not leak.
type modeFrame struct {
	kind     modeKind
	brackets []rune
}

func (m *modeFrame) suppressNewlines() bool {
	if len(m.brackets) == 0 {
		return false
	}
	top := m.brackets[len(m.brackets)-1]
	return top == '(' || top == '['
}

// Lexer holds the state of the scanner.
type Lexer struct {
	src   *source.SourceFile
	input string
	cur   cursor
	// history is append-only while scanning forward; backward() pops one step.
	history []cursor
	modes   []*modeFrame
}

// NewLexer creates a new Lexer over the given source file.
func NewLexer(src *source.SourceFile) *Lexer {
	return &Lexer{
		src:   src,
		input: src.Content,
		cur:   cursor{pos: 0, line: 1, column: 1},
		modes: []*modeFrame{{kind: modeMain}},
	}
}

// Tokenize scans the whole source. It either returns every token up to and
// including EOF or the first LexError.
func Tokenize(src *source.SourceFile) ([]Token, error) {
	return NewLexer(src).Tokenize()
}

// Tokenize drains the lexer.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}

// NextToken scans the input and returns the next token.
func (l *Lexer) NextToken() (Token, error) {
	mode := l.modes[len(l.modes)-1]
	switch mode.kind {
	case modeQuoted, modeRaw:
		return l.nextStringToken(mode)
	default:
		return l.nextMainToken(mode)
	}
}

// --- cursor movement ---

func (l *Lexer) atEOF() bool {
	return l.cur.pos >= len(l.input)
}

func (l *Lexer) peek() rune {
	return l.peekAt(0)
}

// peekAt looks n runes ahead without consuming anything. Returns 0 past EOF.
func (l *Lexer) peekAt(n int) rune {
	pos := l.cur.pos
	for i := 0; ; i++ {
		if pos >= len(l.input) {
			return 0
		}
		r, size := utf8.DecodeRuneInString(l.input[pos:])
		if i == n {
			return r
		}
		pos += size
	}
}

func (l *Lexer) advance() rune {
	l.history = append(l.history, l.cur)
	r, size := utf8.DecodeRuneInString(l.input[l.cur.pos:])
	l.cur.pos += size
	if r == '\n' {
		l.cur.line++
		l.cur.column = 1
	} else {
		l.cur.column++
	}
	return r
}

// backward undoes the most recent advance.
func (l *Lexer) backward() {
	n := len(l.history)
	if n == 0 {
		return
	}
	l.cur = l.history[n-1]
	l.history = l.history[:n-1]
}

func (l *Lexer) hasPrefix(s string) bool {
	return strings.HasPrefix(l.input[l.cur.pos:], s)
}

func (l *Lexer) token(typ TokenType, literal string, start cursor) Token {
	return Token{
		Type:     typ,
		Literal:  literal,
		Line:     start.line,
		Column:   start.column,
		StartPos: start.pos,
		EndPos:   l.cur.pos,
		Source:   l.src,
	}
}

func (l *Lexer) errorAt(at cursor, format string, args ...interface{}) error {
	return &errors.LexError{
		Position: errors.Position{
			Line:     at.line,
			Column:   at.column,
			StartPos: at.pos,
			EndPos:   l.cur.pos,
			Source:   l.src,
		},
		Msg: fmt.Sprintf(format, args...),
	}
}

// --- main mode ---

func (l *Lexer) nextMainToken(mode *modeFrame) (Token, error) {
	for {
		l.skipBlanks()
		start := l.cur
		if l.atEOF() {
			if len(l.modes) > 1 {
				return Token{}, l.errorAt(start, "unterminated string template")
			}
			return l.token(EOF, "", start), nil
		}

		r := l.peek()
		switch {
		case r == '\n':
			l.advance()
			if mode.suppressNewlines() {
				continue
			}
			return l.token(NEWLINE, "\n", start), nil

		case r == '/':
			// comments are discarded as a side effect of scanning '/'
			l.advance()
			switch l.peek() {
			case '/':
				for !l.atEOF() && l.peek() != '\n' {
					l.advance()
				}
				continue
			case '*':
				l.advance()
				if err := l.skipBlockComment(start); err != nil {
					return Token{}, err
				}
				continue
			}
			l.backward()
			return l.readOperator(start, mode)

		case isDigit(r):
			return l.readNumber(start)

		case r == '"':
			if l.hasPrefix(`"""`) {
				l.advance()
				l.advance()
				l.advance()
				l.modes = append(l.modes, &modeFrame{kind: modeRaw})
				return l.token(STRING_START, `"""`, start), nil
			}
			l.advance()
			l.modes = append(l.modes, &modeFrame{kind: modeQuoted})
			return l.token(STRING_START, `"`, start), nil

		case r == '\'':
			return l.readChar(start)

		case r == ';':
			l.advance()
			return l.token(SEMICOLON, ";", start), nil

		case isOperatorChar(r):
			return l.readOperator(start, mode)

		default:
			for !l.atEOF() && isIdentChar(l.peek()) {
				l.advance()
			}
			return l.token(IDENTIFIER, l.input[start.pos:l.cur.pos], start), nil
		}
	}
}

func (l *Lexer) skipBlanks() {
	for !l.atEOF() {
		switch l.peek() {
		case ' ', '\t', '\r', '\f':
			l.advance()
		default:
			return
		}
	}
}

// skipBlockComment consumes up to the matching "*/". Block comments nest.
func (l *Lexer) skipBlockComment(start cursor) error {
	depth := 1
	for depth > 0 {
		if l.atEOF() {
			return l.errorAt(start, "unterminated block comment")
		}
		switch {
		case l.hasPrefix("*/"):
			l.advance()
			l.advance()
			depth--
		case l.hasPrefix("/*"):
			l.advance()
			l.advance()
			depth++
		default:
			l.advance()
		}
	}
	return nil
}

func (l *Lexer) readOperator(start cursor, mode *modeFrame) (Token, error) {
	for _, op := range operators {
		if !l.hasPrefix(op) {
			continue
		}
		for range op {
			l.advance()
		}
		switch op {
		case "(", "[", "{":
			mode.brackets = append(mode.brackets, rune(op[0]))
		case ")", "]":
			l.popBracket(mode, map[string]rune{")": '(', "]": '['}[op])
		case "}":
			if mode.kind == modeTemplate && len(mode.brackets) == 0 {
				l.modes = l.modes[:len(l.modes)-1]
				return l.token(TEMPLATE_END, "}", start), nil
			}
			l.popBracket(mode, '{')
		}
		typ := OPERATOR
		if symbols[op] {
			typ = SYMBOL
		}
		return l.token(typ, op, start), nil
	}
	l.advance()
	return Token{}, l.errorAt(start, "unsupported operator %q", l.input[start.pos:l.cur.pos])
}

func (l *Lexer) popBracket(mode *modeFrame, open rune) {
	n := len(mode.brackets)
	if n > 0 && mode.brackets[n-1] == open {
		mode.brackets = mode.brackets[:n-1]
	}
}

// readNumber scans an integer or double literal. A '.' is only part of the number
// when a digit follows it, so 1..10 and 1.toString() lex as expected.
func (l *Lexer) readNumber(start cursor) (Token, error) {
	if l.peek() == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X') {
		l.advance()
		l.advance()
		digits := 0
		for isHexDigit(l.peek()) {
			l.advance()
			digits++
		}
		if digits == 0 {
			return Token{}, l.errorAt(start, "malformed hexadecimal literal")
		}
		typ := INTEGER
		if l.peek() == 'L' {
			l.advance()
			typ = LONG
		}
		if !l.atEOF() && isIdentChar(l.peek()) {
			return Token{}, l.errorAt(start, "malformed numeric literal %q", l.input[start.pos:l.cur.pos+1])
		}
		return l.token(typ, l.input[start.pos:l.cur.pos], start), nil
	}

	digits := 0
	for isDigit(l.peek()) {
		l.advance()
		digits++
	}
	typ := INTEGER
	if l.peek() == '.' {
		l.advance()
		if isDigit(l.peek()) {
			typ = DOUBLE
			for isDigit(l.peek()) {
				l.advance()
			}
		} else {
			l.backward()
		}
	}
	if typ == INTEGER && l.peek() == 'L' {
		l.advance()
		typ = LONG
	}
	if !l.atEOF() && isIdentChar(l.peek()) && !isDigit(l.peek()) {
		l.advance()
		return Token{}, l.errorAt(start, "malformed numeric literal %q", l.input[start.pos:l.cur.pos])
	}

	literal := l.input[start.pos:l.cur.pos]
	switch {
	case typ == INTEGER && digits > maxIntDigits:
		return Token{}, l.errorAt(start, "integer literal %s is too long", literal)
	case typ == LONG && digits > maxLongDigits:
		return Token{}, l.errorAt(start, "long literal %s is too long", literal)
	}
	return l.token(typ, literal, start), nil
}

func (l *Lexer) readChar(start cursor) (Token, error) {
	l.advance() // opening '
	if l.atEOF() || l.peek() == '\n' {
		return Token{}, l.errorAt(start, "unterminated character literal")
	}
	var r rune
	switch l.peek() {
	case '\'':
		return Token{}, l.errorAt(start, "empty character literal")
	case '\\':
		var err error
		if r, err = l.readEscape(); err != nil {
			return Token{}, err
		}
	default:
		r = l.advance()
	}
	if l.peek() != '\'' {
		return Token{}, l.errorAt(start, "unterminated or too long character literal")
	}
	l.advance()
	if r > 0xFFFF {
		return Token{}, l.errorAt(start, "character literal does not fit into a single UTF-16 code unit")
	}
	return l.token(CHAR, string(r), start), nil
}

// --- string mode ---

func (l *Lexer) nextStringToken(mode *modeFrame) (Token, error) {
	start := l.cur
	raw := mode.kind == modeRaw
	if l.atEOF() {
		return Token{}, l.errorAt(start, "unterminated string literal")
	}

	if raw && l.hasPrefix(`"""`) {
		l.advance()
		l.advance()
		l.advance()
		l.modes = l.modes[:len(l.modes)-1]
		return l.token(STRING_END, `"""`, start), nil
	}
	if !raw && l.peek() == '"' {
		l.advance()
		l.modes = l.modes[:len(l.modes)-1]
		return l.token(STRING_END, `"`, start), nil
	}
	if l.peek() == '$' {
		next := l.peekAt(1)
		if next == '{' {
			l.advance()
			l.advance()
			l.modes = append(l.modes, &modeFrame{kind: modeTemplate})
			return l.token(TEMPLATE_START, "${", start), nil
		}
		if isIdentStart(next) {
			l.advance()
			nameStart := l.cur.pos
			for isLetterOrDigit(l.peek()) {
				l.advance()
			}
			return l.token(STRING_FIELD, l.input[nameStart:l.cur.pos], start), nil
		}
	}

	var b strings.Builder
	for !l.atEOF() {
		r := l.peek()
		if r == '"' && (!raw || l.hasPrefix(`"""`)) {
			break
		}
		if r == '$' && (l.peekAt(1) == '{' || isIdentStart(l.peekAt(1))) {
			break
		}
		if !raw && r == '\n' {
			return Token{}, l.errorAt(start, "unterminated string literal")
		}
		if !raw && r == '\\' {
			decoded, err := l.readEscape()
			if err != nil {
				return Token{}, err
			}
			b.WriteRune(decoded)
			continue
		}
		b.WriteRune(l.advance())
	}
	return l.token(STRING_CONTENT, b.String(), start), nil
}

// readEscape decodes one backslash escape. A high surrogate immediately followed by a
// low surrogate escape is joined into one code point; lone surrogates decode to U+FFFD.
func (l *Lexer) readEscape() (rune, error) {
	start := l.cur
	l.advance() // backslash
	if l.atEOF() {
		return 0, l.errorAt(start, "unterminated escape sequence")
	}
	c := l.advance()
	switch c {
	case 't':
		return '\t', nil
	case 'b':
		return '\b', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case '\'', '"', '\\', '$':
		return c, nil
	case 'u':
		unit, err := l.readHex4(start)
		if err != nil {
			return 0, err
		}
		if utf16.IsSurrogate(unit) {
			if unit <= 0xDBFF && l.hasPrefix(`\u`) {
				// Only a low surrogate completes the pair; anything else is
				// read again as an escape of its own.
				mark := len(l.history)
				l.advance()
				l.advance()
				low, err := l.readHex4(start)
				if err == nil {
					if r := utf16.DecodeRune(unit, low); r != unicode.ReplacementChar {
						return r, nil
					}
				}
				for len(l.history) > mark {
					l.backward()
				}
			}
			return unicode.ReplacementChar, nil
		}
		return unit, nil
	}
	return 0, l.errorAt(start, "illegal escape: \\%c", c)
}

func (l *Lexer) readHex4(start cursor) (rune, error) {
	var v rune
	for i := 0; i < 4; i++ {
		c := l.peek()
		if !isHexDigit(c) {
			return 0, l.errorAt(start, "illegal unicode escape")
		}
		l.advance()
		v = v*16 + hexValue(c)
	}
	return v, nil
}

// --- character classes ---

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func hexValue(r rune) rune {
	switch {
	case isDigit(r):
		return r - '0'
	case r >= 'a' && r <= 'f':
		return r - 'a' + 10
	default:
		return r - 'A' + 10
	}
}

func isOperatorChar(r rune) bool {
	return strings.ContainsRune("+-*/%=<>!?:.,()[]{}@&|^~#`\\$", r)
}

// isIdentChar: identifiers are maximal runs of non-whitespace, non-operator characters.
func isIdentChar(r rune) bool {
	return r != 0 && !unicode.IsSpace(r) && !isOperatorChar(r) && r != '"' && r != '\'' && r != ';'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isLetterOrDigit(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
