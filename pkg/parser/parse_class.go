package parser

import (
	"kotlite/pkg/lexer"
)

// parseClassDeclaration parses a class or interface declaration.
// Syntax: [modifiers] class Name [<T>] [(ctor params)] [: Super(args), Iface] [{ body }]
func (p *Parser) parseClassDeclaration(mods Modifiers) *ClassDeclarationNode {
	tok := p.advance() // class / interface
	class := &ClassDeclarationNode{Modifiers: mods, IsInterface: tok.Literal == "interface"}
	class.Token = tok
	class.Name = p.eatIdentifier().Literal
	if p.at("<") {
		class.TypeParameters = p.parseTypeParameters()
	}
	if p.at("(") {
		class.HasPrimaryConstructor = true
		class.PrimaryConstructor = p.parseClassParameters()
	}
	if p.at(":") {
		p.advance()
		p.skipNL()
		class.SuperTypes = p.parseSuperTypes()
	}
	if p.at("{") || (p.atType(lexer.NEWLINE) && isPunct(p.peekPastNL(), "{")) {
		p.skipNL()
		class.Declarations = p.parseClassBody()
	}
	return class
}

func (p *Parser) parseClassParameters() []*ClassParameterNode {
	p.eat("(")
	var params []*ClassParameterNode
	for !p.at(")") {
		cp := &ClassParameterNode{}
		cp.Token = p.cur()
		cp.Modifiers = p.parseModifiers()
		if p.atKeyword("val") || p.atKeyword("var") {
			cp.IsProperty = true
			cp.IsMutable = p.advance().Literal == "var"
		} else if len(cp.Modifiers) > 0 {
			p.mismatch("'val' or 'var'")
		}
		cp.Parameter = p.parseValueParameter(true)
		params = append(params, cp)
		if !p.at(",") {
			break
		}
		p.advance()
	}
	p.eat(")")
	return params
}

func (p *Parser) parseSuperTypes() []*SuperTypeNode {
	var supers []*SuperTypeNode
	for {
		st := &SuperTypeNode{}
		st.Token = p.cur()
		st.Type = p.parseType()
		if p.at("(") {
			st.IsConstructorCall = true
			st.Arguments = p.parseCallArguments()
		}
		supers = append(supers, st)
		if !p.at(",") {
			return supers
		}
		p.advance()
		p.skipNL()
	}
}

// parseClassBody parses member declarations in source order.
func (p *Parser) parseClassBody() []Statement {
	p.eat("{")
	var decls []Statement
	p.skipSeparators()
	for !p.at("}") {
		decls = append(decls, p.parseMemberDeclaration())
		if p.at("}") {
			break
		}
		if !p.atSeparator() {
			p.mismatch("';' or newline")
		}
		p.skipSeparators()
	}
	p.eat("}")
	return decls
}

func (p *Parser) parseMemberDeclaration() Statement {
	mods := p.parseModifiers()
	switch {
	case p.atKeyword("val") || p.atKeyword("var"):
		return p.parsePropertyDeclaration(mods)
	case p.atKeyword("fun"):
		return p.parseFunctionDeclaration(mods, true)
	case p.atKeyword("class") || p.atKeyword("interface"):
		// rejected by the analyzer, parsed so the error points at the declaration
		return p.parseClassDeclaration(mods)
	case p.atKeyword("init") && len(mods) == 0:
		tok := p.advance()
		p.skipNL()
		init := &ClassInstanceInitializerNode{Body: p.parseBlock(ScopeClassInitializer)}
		init.Token = tok
		return init
	}
	p.unexpected()
	return nil
}
