package parser

import (
	"fmt"

	"kotlite/pkg/errors"
	"kotlite/pkg/lexer"
	"kotlite/pkg/source"
)

// --- Debug Flag ---
const debugParser = false

func debugPrint(format string, args ...interface{}) {
	if debugParser {
		fmt.Printf("[Parser Debug] "+format+"\n", args...)
	}
}

// --- End Debug Flag ---

// modifierKeywords are soft keywords accepted in front of declarations.
var modifierKeywords = map[string]bool{
	"open": true, "abstract": true, "override": true, "operator": true, "infix": true,
	"private": true, "protected": true, "public": true, "internal": true, "final": true,
}

var assignmentOperators = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
}

// bailout carries the first parse error up to the entry point. Parsing never resyncs.
type bailout struct {
	err *errors.ParseError
}

// Parser builds an AST from a token slice by recursive descent.
type Parser struct {
	tokens []lexer.Token
	pos    int
	source *source.SourceFile
}

// NewParser creates a parser over a complete token stream ending in EOF.
func NewParser(tokens []lexer.Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != lexer.EOF {
		tokens = append(tokens, lexer.Token{Type: lexer.EOF})
	}
	p := &Parser{tokens: tokens}
	p.source = tokens[0].Source
	return p
}

// Parse parses a whole script.
func Parse(tokens []lexer.Token) (script *ScriptNode, err error) {
	p := NewParser(tokens)
	defer p.recoverError(&err)
	return p.parseScript(), nil
}

// ParseSource tokenizes and parses a whole script.
func ParseSource(src *source.SourceFile) (*ScriptNode, error) {
	tokens, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

// ParseExpression parses source text holding exactly one expression.
func ParseExpression(src *source.SourceFile) (expr Expression, err error) {
	tokens, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := NewParser(tokens)
	defer p.recoverError(&err)
	p.skipSeparators()
	expr = p.parseExpression()
	p.skipSeparators()
	p.expectType(lexer.EOF)
	return expr, nil
}

func (p *Parser) recoverError(err *error) {
	if r := recover(); r != nil {
		b, ok := r.(bailout)
		if !ok {
			panic(r)
		}
		*err = b.err
	}
}

// --- token cursor ---

func (p *Parser) cur() lexer.Token {
	return p.tokens[p.pos]
}

func (p *Parser) peek(n int) lexer.Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.pos]
	if tok.Type != lexer.EOF {
		p.pos++
	}
	debugPrint("advance(): consumed %s, cur=%s", tok, p.cur())
	return tok
}

func isPunct(tok lexer.Token, lit string) bool {
	return (tok.Type == lexer.OPERATOR || tok.Type == lexer.SYMBOL) && tok.Literal == lit
}

// at reports whether the current token is the operator or symbol lit.
func (p *Parser) at(lit string) bool {
	return isPunct(p.cur(), lit)
}

func (p *Parser) atType(typ lexer.TokenType) bool {
	return p.cur().Type == typ
}

// atKeyword reports whether the current token is the identifier kw.
func (p *Parser) atKeyword(kw string) bool {
	tok := p.cur()
	return tok.Type == lexer.IDENTIFIER && tok.Literal == kw
}

func (p *Parser) atSeparator() bool {
	return p.atType(lexer.NEWLINE) || p.atType(lexer.SEMICOLON)
}

// skipNL consumes any run of newlines ("repeatable NL").
func (p *Parser) skipNL() {
	for p.atType(lexer.NEWLINE) {
		p.advance()
	}
}

func (p *Parser) skipSeparators() {
	for p.atSeparator() {
		p.advance()
	}
}

// peekPastNL returns the first token that is not a newline, without consuming.
func (p *Parser) peekPastNL() lexer.Token {
	i := p.pos
	for i < len(p.tokens)-1 && p.tokens[i].Type == lexer.NEWLINE {
		i++
	}
	return p.tokens[i]
}

// eat consumes the operator/symbol lit or fails with ExpectTokenMismatch.
func (p *Parser) eat(lit string) lexer.Token {
	if !p.at(lit) {
		p.mismatch(fmt.Sprintf("'%s'", lit))
	}
	return p.advance()
}

// eatKeyword consumes the identifier kw or fails with ExpectTokenMismatch.
func (p *Parser) eatKeyword(kw string) lexer.Token {
	if !p.atKeyword(kw) {
		p.mismatch(fmt.Sprintf("'%s'", kw))
	}
	return p.advance()
}

func (p *Parser) expectType(typ lexer.TokenType) lexer.Token {
	if !p.atType(typ) {
		p.mismatch(string(typ))
	}
	return p.advance()
}

// eatIdentifier consumes a non-reserved identifier.
func (p *Parser) eatIdentifier() lexer.Token {
	tok := p.cur()
	if tok.Type != lexer.IDENTIFIER || lexer.IsHardKeyword(tok.Literal) {
		p.mismatch("identifier")
	}
	return p.advance()
}

func (p *Parser) mismatch(expected string) {
	tok := p.cur()
	panic(bailout{&errors.ParseError{
		Position: tok.Position(),
		Reason:   errors.ExpectTokenMismatch,
		Token:    tok.Literal,
		Msg:      fmt.Sprintf("expected %s but got %s", expected, describe(tok)),
	}})
}

func (p *Parser) unexpected() {
	tok := p.cur()
	panic(bailout{&errors.ParseError{
		Position: tok.Position(),
		Reason:   errors.UnexpectedToken,
		Token:    tok.Literal,
		Msg:      fmt.Sprintf("unexpected %s", describe(tok)),
	}})
}

func (p *Parser) failAt(tok lexer.Token, format string, args ...interface{}) {
	panic(bailout{&errors.ParseError{
		Position: tok.Position(),
		Reason:   errors.UnexpectedToken,
		Token:    tok.Literal,
		Msg:      fmt.Sprintf(format, args...),
	}})
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.EOF:
		return "end of input"
	case lexer.NEWLINE:
		return "newline"
	}
	return fmt.Sprintf("'%s'", tok.Literal)
}

// speculate runs fn and reports whether it parsed without error. On failure the
// cursor is restored.
func (p *Parser) speculate(fn func()) (ok bool) {
	saved := p.pos
	defer func() {
		if r := recover(); r != nil {
			if _, isBailout := r.(bailout); !isBailout {
				panic(r)
			}
			p.pos = saved
			ok = false
		}
	}()
	fn()
	return true
}

// --- Statement lists ---

func (p *Parser) parseScript() *ScriptNode {
	script := &ScriptNode{BaseNode: BaseNode{Token: p.cur()}}
	script.Statements = p.parseStatements(func() bool { return p.atType(lexer.EOF) })
	return script
}

// parseStatements parses statements until done() holds. Two statements must be
// separated by a semicolon or a newline.
func (p *Parser) parseStatements(done func() bool) []Statement {
	var stmts []Statement
	p.skipSeparators()
	for !done() {
		if p.atType(lexer.EOF) {
			p.unexpected()
		}
		stmts = append(stmts, p.parseStatement())
		if done() {
			break
		}
		if !p.atSeparator() {
			p.mismatch("';' or newline")
		}
		p.skipSeparators()
	}
	return stmts
}

func (p *Parser) parseBlock(scope ScopeType) *BlockNode {
	tok := p.eat("{")
	block := &BlockNode{Type: scope}
	block.Token = tok
	block.Statements = p.parseStatements(func() bool { return p.at("}") })
	p.eat("}")
	return block
}

// parseControlBody parses the body of if/when/loops: a braced block or a single
// statement wrapped in a block.
func (p *Parser) parseControlBody(scope ScopeType) *BlockNode {
	if p.at("{") {
		return p.parseBlock(scope)
	}
	tok := p.cur()
	block := &BlockNode{Type: scope, Statements: []Statement{p.parseStatement()}}
	block.Token = tok
	return block
}

func (p *Parser) parseModifiers() Modifiers {
	var mods Modifiers
	for {
		tok := p.cur()
		if tok.Type != lexer.IDENTIFIER || !modifierKeywords[tok.Literal] {
			return mods
		}
		if next := p.peek(1); next.Type != lexer.IDENTIFIER {
			return mods
		}
		mods = append(mods, tok.Literal)
		p.advance()
	}
}

func (p *Parser) parseStatement() Statement {
	start := p.pos
	mods := p.parseModifiers()
	tok := p.cur()
	if tok.Type == lexer.IDENTIFIER {
		switch tok.Literal {
		case "class", "interface":
			return p.parseClassDeclaration(mods)
		case "fun":
			return p.parseFunctionDeclaration(mods, true)
		case "val", "var":
			return p.parsePropertyDeclaration(mods)
		}
	}
	if len(mods) > 0 {
		p.pos = start
		p.mismatch("declaration after modifiers")
	}

	switch {
	case p.atKeyword("while"):
		return p.parseWhile()
	case p.atKeyword("do"):
		return p.parseDoWhile()
	case p.atKeyword("for"):
		return p.parseFor()
	}

	expr := p.parseExpression()
	if op := p.cur(); op.Type == lexer.OPERATOR && assignmentOperators[op.Literal] {
		switch expr.(type) {
		case *VariableReferenceNode, *NavigationNode, *IndexOpNode:
		default:
			p.failAt(op, "invalid assignment target %s", expr.String())
		}
		p.advance()
		p.skipNL()
		assign := &AssignmentNode{Target: expr, Operator: op.Literal}
		assign.Token = op
		assign.Value = p.parseExpression()
		return assign
	}
	return expr
}

// --- Declarations ---

// parsePropertyDeclaration parses `val|var [<T>] [Receiver.]name [: Type] [= init]`.
func (p *Parser) parsePropertyDeclaration(mods Modifiers) *PropertyDeclarationNode {
	tok := p.advance() // val / var
	decl := &PropertyDeclarationNode{Modifiers: mods, IsMutable: tok.Literal == "var"}
	decl.Token = tok
	if p.at("<") {
		decl.TypeParameters = p.parseTypeParameters()
	}
	decl.Receiver = p.parseOptionalReceiver()
	decl.Name = p.eatIdentifier().Literal
	if p.at(":") {
		p.advance()
		decl.Type = p.parseType()
	}
	if p.at("=") {
		p.advance()
		p.skipNL()
		decl.Initializer = p.parseExpression()
	}
	return decl
}

// parseOptionalReceiver parses `Type.` in front of an extension name, when present.
func (p *Parser) parseOptionalReceiver() *TypeNode {
	next := p.peek(1)
	if p.cur().Type == lexer.IDENTIFIER && (isPunct(next, ".") || isPunct(next, "<") || isPunct(next, "?") || isPunct(next, "?.")) {
		return p.eatReceiverDot(p.parseType())
	}
	if p.at("(") {
		// (A) -> B receiver types are written parenthesized: ((A) -> B).name
		return p.eatReceiverDot(p.parseType())
	}
	return nil
}

// eatReceiverDot consumes the dot after a receiver type. The lexer reads `T?.`
// as the type name followed by a single `?.`, which makes the receiver nullable.
func (p *Parser) eatReceiverDot(receiver *TypeNode) *TypeNode {
	if p.at("?.") {
		p.advance()
		receiver.IsNullable = true
		return receiver
	}
	p.eat(".")
	return receiver
}

// parseFunctionDeclaration parses a named function. Bodies are optional; the
// analyzer decides where a missing body is legal.
func (p *Parser) parseFunctionDeclaration(mods Modifiers, allowBody bool) *FunctionDeclarationNode {
	tok := p.eatKeyword("fun")
	fn := &FunctionDeclarationNode{Modifiers: mods}
	fn.Token = tok
	if p.at("<") {
		fn.TypeParameters = p.parseTypeParameters()
	}
	fn.Receiver = p.parseOptionalReceiver()
	fn.Name = p.eatIdentifier().Literal
	fn.Parameters = p.parseValueParameters(true)
	if p.at(":") {
		p.advance()
		fn.ReturnType = p.parseType()
	}
	if !allowBody {
		return fn
	}
	switch {
	case p.at("="):
		eq := p.advance()
		p.skipNL()
		body := &BlockNode{Type: ScopeFunction}
		body.Token = eq
		body.Statements = []Statement{p.parseExpression()}
		fn.Body = body
		fn.IsExpressionBody = true
	case p.at("{"):
		fn.Body = p.parseBlock(ScopeFunction)
	case p.atType(lexer.NEWLINE) && isPunct(p.peekPastNL(), "{"):
		p.skipNL()
		fn.Body = p.parseBlock(ScopeFunction)
	}
	return fn
}

// parseValueParameters parses `(p1: T1 = d, vararg p2: T2,)`. Types are required
// unless requireTypes is false.
func (p *Parser) parseValueParameters(requireTypes bool) []*FunctionValueParameterNode {
	p.eat("(")
	var params []*FunctionValueParameterNode
	for !p.at(")") {
		params = append(params, p.parseValueParameter(requireTypes))
		if !p.at(",") {
			break
		}
		p.advance()
	}
	p.eat(")")
	return params
}

func (p *Parser) parseValueParameter(requireTypes bool) *FunctionValueParameterNode {
	param := &FunctionValueParameterNode{}
	param.Token = p.cur()
	if p.atKeyword("vararg") && p.peek(1).Type == lexer.IDENTIFIER {
		param.Modifiers = append(param.Modifiers, "vararg")
		p.advance()
	}
	param.Name = p.eatIdentifier().Literal
	if requireTypes || p.at(":") {
		p.eat(":")
		param.Type = p.parseType()
	}
	if p.at("=") {
		p.advance()
		param.DefaultValue = p.parseExpression()
	}
	return param
}

// --- Loops ---

func (p *Parser) parseLoopBody(scope ScopeType) *BlockNode {
	if p.atType(lexer.SEMICOLON) {
		block := &BlockNode{Type: scope}
		block.Token = p.cur()
		return block
	}
	p.skipNL()
	return p.parseControlBody(scope)
}

func (p *Parser) parseWhile() *WhileNode {
	tok := p.eatKeyword("while")
	n := &WhileNode{}
	n.Token = tok
	p.eat("(")
	n.Condition = p.parseExpression()
	p.eat(")")
	n.Body = p.parseLoopBody(ScopeWhile)
	return n
}

func (p *Parser) parseDoWhile() *DoWhileNode {
	tok := p.eatKeyword("do")
	n := &DoWhileNode{}
	n.Token = tok
	p.skipNL()
	n.Body = p.parseControlBody(ScopeDoWhile)
	p.skipNL()
	p.eatKeyword("while")
	p.eat("(")
	n.Condition = p.parseExpression()
	p.eat(")")
	return n
}

func (p *Parser) parseFor() *ForNode {
	tok := p.eatKeyword("for")
	n := &ForNode{}
	n.Token = tok
	p.eat("(")
	n.VariableName = p.eatIdentifier().Literal
	if p.at(":") {
		p.advance()
		n.VariableType = p.parseType()
	}
	p.eatKeyword("in")
	n.Subject = p.parseExpression()
	p.eat(")")
	n.Body = p.parseLoopBody(ScopeFor)
	return n
}
