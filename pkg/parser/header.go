package parser

import (
	"kotlite/pkg/lexer"
	"kotlite/pkg/source"
)

// ParseHeader parses one native declaration header: a class or interface signature,
// a function signature or a property signature. Headers never have bodies.
//
//	open class Any
//	class Regex(pattern: String)
//	interface List<out E> : Collection<E>
//	fun <T> listOf(vararg elements: T): List<T>
//	infix fun Int.until(to: Int): IntRange
//	val String.length: Int
//	val PI: Double
func ParseHeader(src *source.SourceFile) (decl Statement, err error) {
	tokens, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := NewParser(tokens)
	defer p.recoverError(&err)
	decl = p.parseHeader()
	return decl, nil
}

func (p *Parser) parseHeader() Statement {
	p.skipSeparators()
	mods := p.parseModifiers()
	var decl Statement
	switch {
	case p.atKeyword("class") || p.atKeyword("interface"):
		class := p.parseClassDeclaration(mods)
		if len(class.Declarations) > 0 {
			p.failAt(class.Token, "class headers cannot declare members")
		}
		for _, st := range class.SuperTypes {
			if st.IsConstructorCall {
				p.failAt(st.Token, "class headers cannot call a superclass constructor")
			}
		}
		decl = class
	case p.atKeyword("fun"):
		fn := p.parseFunctionDeclaration(mods, false)
		if fn.ReturnType == nil {
			p.mismatch("':' and a return type")
		}
		decl = fn
	case p.atKeyword("val") || p.atKeyword("var"):
		prop := p.parsePropertyDeclaration(mods)
		if prop.Type == nil {
			p.failAt(prop.Token, "property headers need a type")
		}
		if prop.Initializer != nil {
			p.failAt(prop.Token, "property headers cannot have an initializer")
		}
		decl = prop
	default:
		p.mismatch("'class', 'interface', 'fun', 'val' or 'var'")
	}
	p.skipSeparators()
	p.expectType(lexer.EOF)
	return decl
}
