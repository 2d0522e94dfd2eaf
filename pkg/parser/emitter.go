package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Expression precedence levels used by the emitter, mirroring the parser tiers.
const (
	precGreedy = iota // throw / return with value: extend as far right as possible
	precDisjunction
	precConjunction
	precEquality
	precComparison
	precNamedCheck
	precElvis
	precInfix
	precRange
	precAdditive
	precMultiplicative
	precCast
	precPrefix
	precPostfix
	precPrimary
)

var binaryPrecedence = map[string]int{
	"||": precDisjunction,
	"&&": precConjunction,
	"==": precEquality, "!=": precEquality, "===": precEquality, "!==": precEquality,
	"<": precComparison, ">": precComparison, "<=": precComparison, ">=": precComparison,
	"in": precNamedCheck, "!in": precNamedCheck,
	"?:": precElvis,
	"..": precRange,
	"+":  precAdditive, "-": precAdditive,
	"*": precMultiplicative, "/": precMultiplicative, "%": precMultiplicative,
}

func precedenceOf(e Expression) int {
	switch n := e.(type) {
	case *BinaryOpNode:
		if IsInfixCallOperator(n.Operator) {
			return precInfix
		}
		return binaryPrecedence[n.Operator]
	case *IsNode:
		return precNamedCheck
	case *AsNode:
		return precCast
	case *UnaryOpNode:
		if n.IsPrefix {
			return precPrefix
		}
		return precPostfix
	case *NavigationNode, *FunctionCallNode, *IndexOpNode:
		return precPostfix
	case *ThrowNode:
		return precGreedy
	case *ReturnNode:
		if n.Value != nil {
			return precGreedy
		}
	}
	return precPrimary
}

// SourceEmitter turns AST nodes back into source text. Expressions are emitted with
// the minimum parentheses needed to reparse to the same tree.
type SourceEmitter struct {
	indentLevel int
	buffer      bytes.Buffer
}

// NewSourceEmitter creates a new emitter.
func NewSourceEmitter() *SourceEmitter {
	return &SourceEmitter{}
}

// Emit renders a whole script.
func (e *SourceEmitter) Emit(script *ScriptNode) string {
	e.buffer.Reset()
	e.indentLevel = 0
	for _, st := range script.Statements {
		e.writeIndent()
		e.emitStatement(st)
		e.buffer.WriteString("\n")
	}
	return e.buffer.String()
}

// EmitExpression renders a single expression.
func EmitExpression(expr Expression) string {
	e := NewSourceEmitter()
	e.emitExpression(expr, precGreedy)
	return e.buffer.String()
}

// EmitStatement renders a single statement or declaration.
func EmitStatement(st Statement) string {
	e := NewSourceEmitter()
	e.emitStatement(st)
	return e.buffer.String()
}

// Helper methods

func (e *SourceEmitter) indent() { e.indentLevel++ }

func (e *SourceEmitter) dedent() {
	if e.indentLevel > 0 {
		e.indentLevel--
	}
}

func (e *SourceEmitter) writeIndent() {
	for i := 0; i < e.indentLevel; i++ {
		e.buffer.WriteString("    ")
	}
}

func (e *SourceEmitter) write(format string, args ...interface{}) {
	fmt.Fprintf(&e.buffer, format, args...)
}

// --- statements ---

func (e *SourceEmitter) emitStatement(st Statement) {
	switch n := st.(type) {
	case *PropertyDeclarationNode:
		e.write("%s", n.Modifiers.String())
		if n.IsMutable {
			e.write("var ")
		} else {
			e.write("val ")
		}
		if len(n.TypeParameters) > 0 {
			e.write("%s ", typeParameterList(n.TypeParameters))
		}
		if n.Receiver != nil {
			e.write("%s.", n.Receiver.String())
		}
		e.write("%s", n.Name)
		if n.Type != nil {
			e.write(": %s", n.Type.String())
		}
		if n.Initializer != nil {
			e.write(" = ")
			e.emitExpression(n.Initializer, precGreedy)
		}
	case *FunctionDeclarationNode:
		e.emitFunction(n)
	case *ClassDeclarationNode:
		e.emitClass(n)
	case *AssignmentNode:
		e.emitExpression(n.Target, precPostfix)
		e.write(" %s ", n.Operator)
		e.emitExpression(n.Value, precGreedy)
	case *WhileNode:
		e.write("while (")
		e.emitExpression(n.Condition, precGreedy)
		e.write(") ")
		e.emitBlock(n.Body)
	case *DoWhileNode:
		e.write("do ")
		e.emitBlock(n.Body)
		e.write(" while (")
		e.emitExpression(n.Condition, precGreedy)
		e.write(")")
	case *ForNode:
		e.write("for (%s", n.VariableName)
		if n.VariableType != nil {
			e.write(": %s", n.VariableType.String())
		}
		e.write(" in ")
		e.emitExpression(n.Subject, precGreedy)
		e.write(") ")
		e.emitBlock(n.Body)
	case *ClassInstanceInitializerNode:
		e.write("init ")
		e.emitBlock(n.Body)
	case Expression:
		e.emitExpression(n, precGreedy)
	default:
		e.write("/* unsupported %T */", st)
	}
}

func (e *SourceEmitter) emitParameters(params []*FunctionValueParameterNode) {
	e.write("(")
	for i, p := range params {
		if i > 0 {
			e.write(", ")
		}
		e.emitParameter(p)
	}
	e.write(")")
}

func (e *SourceEmitter) emitParameter(p *FunctionValueParameterNode) {
	e.write("%s%s", p.Modifiers.String(), p.Name)
	if p.Type != nil {
		e.write(": %s", p.Type.String())
	}
	if p.DefaultValue != nil {
		e.write(" = ")
		e.emitExpression(p.DefaultValue, precGreedy)
	}
}

func (e *SourceEmitter) emitFunction(n *FunctionDeclarationNode) {
	e.write("%sfun ", n.Modifiers.String())
	if len(n.TypeParameters) > 0 {
		e.write("%s ", typeParameterList(n.TypeParameters))
	}
	if n.Receiver != nil {
		e.write("%s.", n.Receiver.String())
	}
	e.write("%s", n.Name)
	e.emitParameters(n.Parameters)
	if n.ReturnType != nil {
		e.write(": %s", n.ReturnType.String())
	}
	if n.Body == nil {
		return
	}
	if n.IsExpressionBody && len(n.Body.Statements) == 1 {
		if expr, ok := n.Body.Statements[0].(Expression); ok {
			e.write(" = ")
			e.emitExpression(expr, precGreedy)
			return
		}
	}
	e.write(" ")
	e.emitBlock(n.Body)
}

func (e *SourceEmitter) emitClass(n *ClassDeclarationNode) {
	e.write("%s", n.Modifiers.String())
	if n.IsInterface {
		e.write("interface ")
	} else {
		e.write("class ")
	}
	e.write("%s", n.Name)
	if len(n.TypeParameters) > 0 {
		e.write("%s", typeParameterList(n.TypeParameters))
	}
	if n.HasPrimaryConstructor {
		e.write("(")
		for i, cp := range n.PrimaryConstructor {
			if i > 0 {
				e.write(", ")
			}
			e.write("%s", cp.Modifiers.String())
			if cp.IsProperty {
				if cp.IsMutable {
					e.write("var ")
				} else {
					e.write("val ")
				}
			}
			e.emitParameter(cp.Parameter)
		}
		e.write(")")
	}
	for i, st := range n.SuperTypes {
		if i == 0 {
			e.write(" : ")
		} else {
			e.write(", ")
		}
		e.write("%s", st.Type.String())
		if st.IsConstructorCall {
			e.emitArguments(st.Arguments)
		}
	}
	if len(n.Declarations) == 0 {
		return
	}
	e.write(" {\n")
	e.indent()
	for _, d := range n.Declarations {
		e.writeIndent()
		e.emitStatement(d)
		e.write("\n")
	}
	e.dedent()
	e.writeIndent()
	e.write("}")
}

func (e *SourceEmitter) emitBlock(b *BlockNode) {
	if b == nil || len(b.Statements) == 0 {
		e.write("{}")
		return
	}
	e.write("{\n")
	e.indent()
	for _, st := range b.Statements {
		e.writeIndent()
		e.emitStatement(st)
		e.write("\n")
	}
	e.dedent()
	e.writeIndent()
	e.write("}")
}

// --- expressions ---

func (e *SourceEmitter) emitExpression(expr Expression, minPrec int) {
	if precedenceOf(expr) < minPrec {
		e.write("(")
		e.emitExpression(expr, precGreedy)
		e.write(")")
		return
	}

	switch n := expr.(type) {
	case *IntegerNode:
		e.write("%d", n.Value)
	case *LongNode:
		e.write("%dL", n.Value)
	case *DoubleNode:
		e.write("%s", formatDoubleLiteral(n.Value))
	case *BooleanNode:
		e.write("%t", n.Value)
	case *NullNode:
		e.write("null")
	case *CharNode:
		e.write("%s", quoteChar(n.Value))
	case *StringLiteralNode:
		e.write("%s", quoteString(n.Value))
	case *StringNode:
		e.emitString(n)
	case *VariableReferenceNode:
		e.write("%s", n.Name)
	case *ThisReferenceNode:
		e.write("this")
	case *SuperReferenceNode:
		e.write("super")

	case *BinaryOpNode:
		prec := precedenceOf(n)
		e.emitExpression(n.Left, prec)
		e.write(" %s ", n.Operator)
		e.emitExpression(n.Right, prec+1)
	case *IsNode:
		e.emitExpression(n.Subject, precNamedCheck)
		if n.Negated {
			e.write(" !is ")
		} else {
			e.write(" is ")
		}
		e.write("%s", n.Type.String())
	case *AsNode:
		e.emitExpression(n.Subject, precCast)
		if n.IsSafe {
			e.write(" as? ")
		} else {
			e.write(" as ")
		}
		e.write("%s", n.Type.String())
	case *UnaryOpNode:
		if n.IsPrefix {
			operand := EmitExpression(n.Operand)
			if precedenceOf(n.Operand) < precPrefix {
				operand = "(" + operand + ")"
			}
			e.write("%s", n.Operator)
			if strings.HasPrefix(operand, "-") || strings.HasPrefix(operand, "+") || strings.HasPrefix(operand, "!") {
				e.write(" ")
			}
			e.write("%s", operand)
			return
		}
		e.emitExpression(n.Operand, precPostfix)
		e.write("%s", n.Operator)

	case *NavigationNode:
		e.emitExpression(n.Receiver, precPostfix)
		e.write("%s%s", n.Operator, n.Member)
	case *IndexOpNode:
		e.emitExpression(n.Subject, precPostfix)
		e.write("[")
		for i, idx := range n.Indices {
			if i > 0 {
				e.write(", ")
			}
			e.emitExpression(idx, precGreedy)
		}
		e.write("]")
	case *FunctionCallNode:
		e.emitExpression(n.Function, precPostfix)
		if len(n.TypeArguments) > 0 {
			e.write("<%s>", joinTypes(n.TypeArguments))
		}
		e.emitArguments(n.Arguments)
	case *LambdaLiteralNode:
		e.emitLambda(n)

	case *IfNode:
		e.write("if (")
		e.emitExpression(n.Condition, precGreedy)
		e.write(")")
		if n.Then != nil {
			e.write(" ")
			e.emitBlock(n.Then)
		} else if n.Else == nil {
			e.write(";")
		}
		if n.Else != nil {
			e.write(" else ")
			e.emitBlock(n.Else)
		}
	case *WhenNode:
		e.emitWhen(n)
	case *TryNode:
		e.write("try ")
		e.emitBlock(n.Body)
		for _, c := range n.Catches {
			e.write(" catch (%s: %s) ", c.Name, c.Type.String())
			e.emitBlock(c.Body)
		}
		if n.Finally != nil {
			e.write(" finally ")
			e.emitBlock(n.Finally)
		}
	case *ThrowNode:
		e.write("throw ")
		e.emitExpression(n.Value, precGreedy)
	case *ReturnNode:
		e.write("return")
		if n.Value != nil {
			e.write(" ")
			e.emitExpression(n.Value, precGreedy)
		}
	case *BreakNode:
		e.write("break")
	case *ContinueNode:
		e.write("continue")
	case *BlockNode:
		e.emitBlock(n)
	default:
		e.write("/* unsupported %T */", expr)
	}
}

func (e *SourceEmitter) emitArguments(args []*FunctionCallArgumentNode) {
	e.write("(")
	var trailing *FunctionCallArgumentNode
	first := true
	for _, a := range args {
		if a.IsTrailingLambda {
			trailing = a
			continue
		}
		if !first {
			e.write(", ")
		}
		first = false
		if a.Name != "" {
			e.write("%s = ", a.Name)
		}
		e.emitExpression(a.Value, precGreedy)
	}
	e.write(")")
	if trailing != nil {
		e.write(" ")
		e.emitExpression(trailing.Value, precGreedy)
	}
}

func (e *SourceEmitter) emitLambda(n *LambdaLiteralNode) {
	e.write("{")
	if n.HasArrow {
		e.write(" ")
		for i, p := range n.Parameters {
			if i > 0 {
				e.write(", ")
			}
			e.write("%s", p.Name)
			if p.Type != nil {
				e.write(": %s", p.Type.String())
			}
		}
		if len(n.Parameters) > 0 {
			e.write(" ")
		}
		e.write("->")
	}
	if len(n.Body.Statements) == 0 {
		e.write(" }")
		return
	}
	e.write("\n")
	e.indent()
	for _, st := range n.Body.Statements {
		e.writeIndent()
		e.emitStatement(st)
		e.write("\n")
	}
	e.dedent()
	e.writeIndent()
	e.write("}")
}

func (e *SourceEmitter) emitWhen(n *WhenNode) {
	e.write("when ")
	if n.Subject != nil {
		e.write("(")
		e.emitExpression(n.Subject, precGreedy)
		e.write(") ")
	}
	e.write("{\n")
	e.indent()
	for _, b := range n.Branches {
		e.writeIndent()
		for i, c := range b.Conditions {
			if i > 0 {
				e.write(", ")
			}
			if c.Negated {
				e.write("!")
			}
			switch c.Kind {
			case WhenIs:
				e.write("is %s", c.Type.String())
			case WhenIn:
				e.write("in ")
				e.emitExpression(c.Expression, precGreedy)
			default:
				e.emitExpression(c.Expression, precGreedy)
			}
		}
		e.write(" -> ")
		e.emitBlock(b.Body)
		e.write("\n")
	}
	if n.Else != nil {
		e.writeIndent()
		e.write("else -> ")
		e.emitBlock(n.Else)
		e.write("\n")
	}
	e.dedent()
	e.writeIndent()
	e.write("}")
}

func (e *SourceEmitter) emitString(n *StringNode) {
	quote := `"`
	if n.IsRaw {
		quote = `"""`
	}
	e.write("%s", quote)
	for _, part := range n.Parts {
		if lit, ok := part.(*StringLiteralNode); ok {
			if n.IsRaw {
				e.write("%s", lit.Value)
			} else {
				e.write("%s", escapeString(lit.Value))
			}
			continue
		}
		e.write("${")
		e.emitExpression(part, precGreedy)
		e.write("}")
	}
	e.write("%s", quote)
}

// formatDoubleLiteral renders a double so that it lexes back as a double.
func formatDoubleLiteral(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
