package parser

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"kotlite/pkg/lexer"
)

// Precedence tiers, lowest first. Each tier loops over its own fixed operator set
// and recurses into the next tier for operands.
//
//	disjunction     ||
//	conjunction     &&
//	equality        == != === !==
//	comparison      < > <= >=
//	named checks    in !in is !is
//	elvis           ?:
//	infix call      a name b
//	range           ..
//	additive        + -
//	multiplicative  * / %
//	type cast       as as?
//	prefix          + - ! ++ --
//	postfix         ++ -- !! . ?. () [] <T>() trailing-lambda

// IsInfixCallOperator reports whether a BinaryOpNode operator names an infix
// function rather than a built-in operator.
func IsInfixCallOperator(op string) bool {
	r, _ := utf8.DecodeRuneInString(op)
	return r == '_' || unicode.IsLetter(r)
}

func (p *Parser) parseExpression() Expression {
	return p.parseDisjunction()
}

// matchOperator consumes one of ops when present. With nlBefore, newlines in front of
// the operator are skipped when the operator follows them.
func (p *Parser) matchOperator(nlBefore bool, ops ...string) (lexer.Token, bool) {
	tok := p.cur()
	if nlBefore && tok.Type == lexer.NEWLINE {
		tok = p.peekPastNL()
	}
	for _, op := range ops {
		if isPunct(tok, op) {
			p.skipNL()
			p.advance()
			return tok, true
		}
	}
	return tok, false
}

func newBinary(op lexer.Token, left, right Expression) *BinaryOpNode {
	n := &BinaryOpNode{Left: left, Operator: op.Literal, Right: right}
	n.Token = op
	return n
}

func (p *Parser) parseLeftAssoc(operand func() Expression, nlBefore bool, ops ...string) Expression {
	left := operand()
	for {
		op, ok := p.matchOperator(nlBefore, ops...)
		if !ok {
			return left
		}
		p.skipNL()
		left = newBinary(op, left, operand())
	}
}

func (p *Parser) parseDisjunction() Expression {
	return p.parseLeftAssoc(p.parseConjunction, true, "||")
}

func (p *Parser) parseConjunction() Expression {
	return p.parseLeftAssoc(p.parseEquality, true, "&&")
}

func (p *Parser) parseEquality() Expression {
	return p.parseLeftAssoc(p.parseComparison, false, "==", "!=", "===", "!==")
}

func (p *Parser) parseComparison() Expression {
	return p.parseLeftAssoc(p.parseNamedChecks, false, "<", ">", "<=", ">=")
}

func (p *Parser) parseNamedChecks() Expression {
	left := p.parseElvis()
	for {
		tok := p.cur()
		negated := false
		if isPunct(tok, "!") {
			next := p.peek(1)
			if next.Type != lexer.IDENTIFIER || (next.Literal != "in" && next.Literal != "is") {
				return left
			}
			p.advance()
			negated = true
		}
		kw := p.cur()
		if kw.Type != lexer.IDENTIFIER || (kw.Literal != "in" && kw.Literal != "is") {
			return left
		}
		p.advance()
		p.skipNL()
		if kw.Literal == "is" {
			n := &IsNode{Subject: left, Negated: negated}
			n.Token = tok
			n.Type = p.parseType()
			left = n
			continue
		}
		op := kw
		op.Literal = "in"
		if negated {
			op = tok
			op.Literal = "!in"
		}
		left = newBinary(op, left, p.parseElvis())
	}
}

func (p *Parser) parseElvis() Expression {
	return p.parseLeftAssoc(p.parseInfixCall, true, "?:")
}

// parseInfixCall handles `a to b`, `1 until 10` and other infix function calls. The
// function name must be on the same line as the left operand.
func (p *Parser) parseInfixCall() Expression {
	left := p.parseRange()
	for {
		tok := p.cur()
		if tok.Type != lexer.IDENTIFIER || lexer.IsHardKeyword(tok.Literal) {
			return left
		}
		p.advance()
		p.skipNL()
		left = newBinary(tok, left, p.parseRange())
	}
}

func (p *Parser) parseRange() Expression {
	return p.parseLeftAssoc(p.parseAdditive, false, "..")
}

func (p *Parser) parseAdditive() Expression {
	return p.parseLeftAssoc(p.parseMultiplicative, false, "+", "-")
}

func (p *Parser) parseMultiplicative() Expression {
	return p.parseLeftAssoc(p.parseTypeCast, false, "*", "/", "%")
}

func (p *Parser) parseTypeCast() Expression {
	left := p.parsePrefix()
	for p.atKeyword("as") {
		tok := p.advance()
		n := &AsNode{Subject: left}
		n.Token = tok
		if p.at("?") {
			p.advance()
			n.IsSafe = true
		}
		n.Type = p.parseType()
		left = n
	}
	return left
}

func (p *Parser) parsePrefix() Expression {
	tok := p.cur()
	if tok.Type == lexer.OPERATOR {
		switch tok.Literal {
		case "-", "+", "!", "++", "--":
			p.advance()
			n := &UnaryOpNode{Operator: tok.Literal, IsPrefix: true}
			n.Token = tok
			n.Operand = p.parsePrefix()
			return n
		}
	}
	return p.parsePostfix()
}

func isCallable(e Expression) bool {
	switch e.(type) {
	case *VariableReferenceNode, *NavigationNode:
		return true
	}
	return false
}

func (p *Parser) parsePostfix() Expression {
	expr := p.parsePrimary()
	for {
		tok := p.cur()
		switch {
		case isPunct(tok, "++") || isPunct(tok, "--") || isPunct(tok, "!!"):
			p.advance()
			n := &UnaryOpNode{Operator: tok.Literal, Operand: expr}
			n.Token = tok
			expr = n

		case isPunct(tok, ".") || isPunct(tok, "?."),
			tok.Type == lexer.NEWLINE && (isPunct(p.peekPastNL(), ".") || isPunct(p.peekPastNL(), "?.")):
			p.skipNL()
			op := p.advance()
			p.skipNL()
			n := &NavigationNode{Receiver: expr, Operator: op.Literal}
			n.Token = op
			n.Member = p.eatIdentifier().Literal
			expr = n

		case isPunct(tok, "("):
			call := &FunctionCallNode{Function: expr}
			call.Token = tok
			call.Arguments = p.parseCallArguments()
			expr = p.parseTrailingLambda(call)

		case isPunct(tok, "<") && isCallable(expr):
			var typeArgs []*TypeNode
			ok := p.speculate(func() {
				typeArgs = p.parseTypeArguments()
				if !p.at("(") {
					p.mismatch("'('")
				}
			})
			if !ok {
				return expr
			}
			call := &FunctionCallNode{Function: expr, TypeArguments: typeArgs}
			call.Token = tok
			call.Arguments = p.parseCallArguments()
			expr = p.parseTrailingLambda(call)

		case isPunct(tok, "["):
			p.advance()
			n := &IndexOpNode{Subject: expr}
			n.Token = tok
			for {
				n.Indices = append(n.Indices, p.parseExpression())
				if !p.at(",") {
					break
				}
				p.advance()
			}
			p.eat("]")
			expr = n

		case isPunct(tok, "{") && isCallable(expr):
			call := &FunctionCallNode{Function: expr}
			call.Token = tok
			expr = p.parseTrailingLambda(call)

		default:
			return expr
		}
	}
}

// parseTrailingLambda appends `{ ... }` written after a call's argument list.
func (p *Parser) parseTrailingLambda(call *FunctionCallNode) *FunctionCallNode {
	if !p.at("{") {
		return call
	}
	arg := &FunctionCallArgumentNode{Index: len(call.Arguments), IsTrailingLambda: true}
	arg.Token = p.cur()
	arg.Value = p.parseLambda()
	call.Arguments = append(call.Arguments, arg)
	return call
}

// parseCallArguments parses `(a, name = b,)`.
func (p *Parser) parseCallArguments() []*FunctionCallArgumentNode {
	p.eat("(")
	var args []*FunctionCallArgumentNode
	for !p.at(")") {
		arg := &FunctionCallArgumentNode{Index: len(args)}
		arg.Token = p.cur()
		if tok := p.cur(); tok.Type == lexer.IDENTIFIER && !lexer.IsHardKeyword(tok.Literal) && isPunct(p.peek(1), "=") {
			arg.Name = tok.Literal
			p.advance()
			p.advance()
		}
		arg.Value = p.parseExpression()
		args = append(args, arg)
		if !p.at(",") {
			break
		}
		p.advance()
	}
	p.eat(")")
	return args
}

// --- Primary expressions ---

func (p *Parser) parsePrimary() Expression {
	tok := p.cur()
	switch tok.Type {
	case lexer.INTEGER:
		return p.parseIntegerLiteral()
	case lexer.LONG:
		p.advance()
		v, err := parseIntegerText(strings.TrimSuffix(tok.Literal, "L"))
		if err != nil || v > math.MaxInt64 {
			p.failAt(tok, "long literal %s is out of range", tok.Literal)
		}
		n := &LongNode{Value: int64(v)}
		n.Token = tok
		return n
	case lexer.DOUBLE:
		p.advance()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.failAt(tok, "malformed double literal %s", tok.Literal)
		}
		n := &DoubleNode{Value: v}
		n.Token = tok
		return n
	case lexer.CHAR:
		p.advance()
		r, _ := utf8.DecodeRuneInString(tok.Literal)
		n := &CharNode{Value: r}
		n.Token = tok
		return n
	case lexer.STRING_START:
		return p.parseString()
	case lexer.SYMBOL:
		switch tok.Literal {
		case "(":
			p.advance()
			p.skipNL()
			e := p.parseExpression()
			p.skipNL()
			p.eat(")")
			return e
		case "{":
			return p.parseLambda()
		}
	case lexer.IDENTIFIER:
		return p.parseIdentifierExpression()
	}
	p.unexpected()
	return nil
}

func parseIntegerText(text string) (uint64, error) {
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		return strconv.ParseUint(text[2:], 16, 64)
	}
	return strconv.ParseUint(text, 10, 64)
}

// parseIntegerLiteral yields an IntegerNode, or a LongNode when the value does not
// fit into 32 bits.
func (p *Parser) parseIntegerLiteral() Expression {
	tok := p.advance()
	v, err := parseIntegerText(tok.Literal)
	if err != nil || v > math.MaxInt64 {
		p.failAt(tok, "integer literal %s is out of range", tok.Literal)
	}
	if v > math.MaxInt32 {
		n := &LongNode{Value: int64(v)}
		n.Token = tok
		return n
	}
	n := &IntegerNode{Value: int32(v)}
	n.Token = tok
	return n
}

func (p *Parser) parseString() Expression {
	start := p.advance()
	s := &StringNode{IsRaw: start.Literal == `"""`}
	s.Token = start
	for !p.atType(lexer.STRING_END) {
		tok := p.cur()
		switch tok.Type {
		case lexer.STRING_CONTENT:
			p.advance()
			lit := &StringLiteralNode{Value: tok.Literal}
			lit.Token = tok
			s.Parts = append(s.Parts, lit)
		case lexer.STRING_FIELD:
			p.advance()
			if tok.Literal == "this" {
				this := &ThisReferenceNode{}
				this.Token = tok
				s.Parts = append(s.Parts, this)
				continue
			}
			ref := &VariableReferenceNode{Name: tok.Literal}
			ref.Token = tok
			s.Parts = append(s.Parts, ref)
		case lexer.TEMPLATE_START:
			p.advance()
			p.skipNL()
			s.Parts = append(s.Parts, p.parseExpression())
			p.skipNL()
			p.expectType(lexer.TEMPLATE_END)
		default:
			p.unexpected()
		}
	}
	p.advance()
	return s
}

// parseLambda parses `{ [params ->] statements }`. Parameters are detected by
// speculatively parsing up to the arrow.
func (p *Parser) parseLambda() *LambdaLiteralNode {
	tok := p.eat("{")
	lambda := &LambdaLiteralNode{}
	lambda.Token = tok
	p.skipNL()
	lambda.HasArrow = p.speculate(func() {
		var params []*FunctionValueParameterNode
		if !p.at("->") {
			for {
				param := &FunctionValueParameterNode{}
				param.Token = p.cur()
				param.Name = p.eatIdentifier().Literal
				if p.at(":") {
					p.advance()
					param.Type = p.parseType()
				}
				params = append(params, param)
				if !p.at(",") {
					break
				}
				p.advance()
			}
		}
		p.eat("->")
		lambda.Parameters = params
	})
	body := &BlockNode{Type: ScopeLambda}
	body.Token = tok
	body.Statements = p.parseStatements(func() bool { return p.at("}") })
	p.eat("}")
	lambda.Body = body
	return lambda
}

func (p *Parser) parseIdentifierExpression() Expression {
	tok := p.cur()
	switch tok.Literal {
	case "true", "false":
		p.advance()
		n := &BooleanNode{Value: tok.Literal == "true"}
		n.Token = tok
		return n
	case "null":
		p.advance()
		n := &NullNode{}
		n.Token = tok
		return n
	case "this":
		p.advance()
		n := &ThisReferenceNode{}
		n.Token = tok
		return n
	case "super":
		p.advance()
		n := &SuperReferenceNode{}
		n.Token = tok
		return n
	case "if":
		return p.parseIf()
	case "when":
		return p.parseWhen()
	case "try":
		return p.parseTry()
	case "throw":
		p.advance()
		n := &ThrowNode{}
		n.Token = tok
		n.Value = p.parseExpression()
		return n
	case "return":
		p.advance()
		n := &ReturnNode{}
		n.Token = tok
		if !p.atExpressionEnd() {
			n.Value = p.parseExpression()
		}
		return n
	case "break":
		p.advance()
		n := &BreakNode{}
		n.Token = tok
		return n
	case "continue":
		p.advance()
		n := &ContinueNode{}
		n.Token = tok
		return n
	}
	if lexer.IsHardKeyword(tok.Literal) {
		p.unexpected()
	}
	p.advance()
	ref := &VariableReferenceNode{Name: tok.Literal}
	ref.Token = tok
	return ref
}

func (p *Parser) atExpressionEnd() bool {
	return p.atSeparator() || p.atType(lexer.EOF) || p.at("}") || p.at(")") ||
		p.atKeyword("else") || p.atType(lexer.TEMPLATE_END)
}

// elseFollows reports whether `else` is the next token after offset, ignoring newlines.
func (p *Parser) elseFollows(offset int) bool {
	i := p.pos + offset
	for i < len(p.tokens)-1 && p.tokens[i].Type == lexer.NEWLINE {
		i++
	}
	tok := p.tokens[i]
	return tok.Type == lexer.IDENTIFIER && tok.Literal == "else"
}

// parseIf parses `if (cond) then [else alt]`. A bodiless `if` is only valid when
// followed by `;` or `else`.
func (p *Parser) parseIf() Expression {
	tok := p.eatKeyword("if")
	n := &IfNode{}
	n.Token = tok
	p.eat("(")
	p.skipNL()
	n.Condition = p.parseExpression()
	p.skipNL()
	p.eat(")")

	if p.atType(lexer.SEMICOLON) {
		if p.elseFollows(1) {
			p.advance()
			p.skipNL()
			p.advance()
			p.skipNL()
			n.Else = p.parseControlBody(ScopeIf)
		}
		return n
	}
	p.skipNL()
	if p.atKeyword("else") {
		p.advance()
		p.skipNL()
		n.Else = p.parseControlBody(ScopeIf)
		return n
	}
	if p.at("}") || p.atType(lexer.EOF) {
		p.mismatch("';' or 'else'")
	}
	n.Then = p.parseControlBody(ScopeIf)

	if (p.atType(lexer.SEMICOLON) && p.elseFollows(1)) || (p.atType(lexer.NEWLINE) && p.elseFollows(0)) {
		if p.atType(lexer.SEMICOLON) {
			p.advance()
		}
		p.skipNL()
	}
	if p.atKeyword("else") {
		p.advance()
		p.skipNL()
		n.Else = p.parseControlBody(ScopeIf)
	}
	return n
}

func (p *Parser) parseWhen() Expression {
	tok := p.eatKeyword("when")
	n := &WhenNode{}
	n.Token = tok
	if p.at("(") {
		p.advance()
		p.skipNL()
		n.Subject = p.parseExpression()
		p.skipNL()
		p.eat(")")
	}
	p.skipNL()
	p.eat("{")
	p.skipSeparators()
	for !p.at("}") {
		if n.Else != nil {
			p.failAt(p.cur(), "'else' branch must be the last branch of 'when'")
		}
		if p.atKeyword("else") {
			p.advance()
			p.skipNL()
			p.eat("->")
			p.skipNL()
			n.Else = p.parseControlBody(ScopeWhen)
		} else {
			branch := &WhenBranchNode{}
			branch.Token = p.cur()
			for {
				branch.Conditions = append(branch.Conditions, p.parseWhenCondition())
				if !p.at(",") {
					break
				}
				p.advance()
				p.skipNL()
			}
			p.skipNL()
			p.eat("->")
			p.skipNL()
			branch.Body = p.parseControlBody(ScopeWhen)
			n.Branches = append(n.Branches, branch)
		}
		if p.at("}") {
			break
		}
		if !p.atSeparator() {
			p.mismatch("';' or newline")
		}
		p.skipSeparators()
	}
	p.eat("}")
	return n
}

func (p *Parser) parseWhenCondition() *WhenConditionNode {
	c := &WhenConditionNode{}
	c.Token = p.cur()
	if p.at("!") {
		if next := p.peek(1); next.Type == lexer.IDENTIFIER && (next.Literal == "is" || next.Literal == "in") {
			p.advance()
			c.Negated = true
		}
	}
	switch {
	case p.atKeyword("is"):
		p.advance()
		c.Kind = WhenIs
		c.Type = p.parseType()
	case p.atKeyword("in"):
		p.advance()
		c.Kind = WhenIn
		c.Expression = p.parseExpression()
	default:
		if c.Negated {
			p.mismatch("'is' or 'in'")
		}
		c.Kind = WhenExpression
		c.Expression = p.parseExpression()
	}
	return c
}

func (p *Parser) parseTry() Expression {
	tok := p.eatKeyword("try")
	n := &TryNode{}
	n.Token = tok
	p.skipNL()
	n.Body = p.parseBlock(ScopeTry)
	for {
		next := p.peekPastNL()
		if next.Type != lexer.IDENTIFIER || next.Literal != "catch" {
			break
		}
		p.skipNL()
		c := &CatchNode{}
		c.Token = p.advance()
		p.eat("(")
		c.Name = p.eatIdentifier().Literal
		p.eat(":")
		c.Type = p.parseType()
		p.eat(")")
		p.skipNL()
		c.Body = p.parseBlock(ScopeCatch)
		n.Catches = append(n.Catches, c)
	}
	if next := p.peekPastNL(); next.Type == lexer.IDENTIFIER && next.Literal == "finally" {
		p.skipNL()
		p.advance()
		p.skipNL()
		n.Finally = p.parseBlock(ScopeFinally)
	}
	if len(n.Catches) == 0 && n.Finally == nil {
		p.mismatch("'catch' or 'finally'")
	}
	return n
}
