package parser

import (
	"kotlite/pkg/lexer"
)

// parseType parses a written type:
//
//	Name [<args>] [?]
//	(A, B) -> R
//	Recv.(A) -> R
//	(Type) [?]
func (p *Parser) parseType() *TypeNode {
	tok := p.cur()
	if p.at("(") {
		p.advance()
		var params []*TypeNode
		for !p.at(")") {
			params = append(params, p.parseType())
			if !p.at(",") {
				break
			}
			p.advance()
		}
		p.eat(")")
		if p.at("->") {
			p.advance()
			fn := &TypeNode{Function: &FunctionTypeNode{Parameters: params}}
			fn.Token = tok
			fn.Function.ReturnType = p.parseType()
			return fn
		}
		// parenthesized type, e.g. ((Int) -> Unit)?
		if len(params) != 1 {
			p.mismatch("'->'")
		}
		inner := params[0]
		if p.at("?") {
			p.advance()
			inner.IsNullable = true
		}
		return inner
	}

	t := &TypeNode{}
	t.Token = tok
	t.Name = p.eatIdentifier().Literal
	if p.at("<") {
		t.Arguments = p.parseTypeArguments()
	}
	if p.at("?") {
		p.advance()
		t.IsNullable = true
	}
	// Receiver function type: T.(A) -> R
	if p.at(".") && isPunct(p.peek(1), "(") {
		save := p.pos
		p.advance()
		var fnType *TypeNode
		if p.speculate(func() { fnType = p.parseType() }) && fnType.Function != nil {
			fnType.Function.Receiver = t
			fnType.Token = tok
			return fnType
		}
		p.pos = save
	}
	return t
}

// parseTypeArguments parses `<T1, out T2, *>`. Use-site variance is accepted and
// ignored.
func (p *Parser) parseTypeArguments() []*TypeNode {
	p.eat("<")
	var args []*TypeNode
	for {
		if p.at("*") {
			star := &TypeNode{IsStar: true}
			star.Token = p.advance()
			args = append(args, star)
		} else {
			if (p.atKeyword("out") || p.atKeyword("in")) && p.peek(1).Type == lexer.IDENTIFIER {
				p.advance()
			}
			args = append(args, p.parseType())
		}
		if !p.at(",") {
			break
		}
		p.advance()
	}
	p.eat(">")
	return args
}

// parseTypeParameters parses `<in T, out R : Bound>`.
func (p *Parser) parseTypeParameters() []*TypeParameterNode {
	p.eat("<")
	var params []*TypeParameterNode
	for {
		tp := &TypeParameterNode{}
		tp.Token = p.cur()
		if (p.atKeyword("out") || p.atKeyword("in")) && p.peek(1).Type == lexer.IDENTIFIER {
			tp.Variance = p.advance().Literal
		}
		tp.Name = p.eatIdentifier().Literal
		if p.at(":") {
			p.advance()
			tp.Bound = p.parseType()
		}
		params = append(params, tp)
		if !p.at(",") {
			break
		}
		p.advance()
	}
	p.eat(">")
	return params
}
