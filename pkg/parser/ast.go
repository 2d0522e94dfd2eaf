package parser

import (
	"bytes"
	"fmt"
	"strings"

	"kotlite/pkg/errors"
	"kotlite/pkg/lexer"
	"kotlite/pkg/types"
)

// --- Interfaces ---

// Node is the base interface for all AST nodes.
type Node interface {
	TokenLiteral() string // Returns the literal value of the token associated with the node
	String() string       // Returns a string representation of the node (for debugging)
	Pos() errors.Position
}

// Statement represents anything that may appear in a statement list.
type Statement interface {
	Node
	statementNode()
}

// Expression represents a node that evaluates to a value. Every expression is also
// a valid statement.
type Expression interface {
	Statement
	expressionNode()
	GetComputedType() types.Type
	SetComputedType(t types.Type)
}

// Binding is the resolution cache the analyzer attaches to references, calls and
// operators. Concrete bindings live in the runtime package.
type Binding interface {
	BindingName() string
}

// BaseNode carries the token a node starts at.
type BaseNode struct {
	Token lexer.Token
}

func (b *BaseNode) TokenLiteral() string { return b.Token.Literal }
func (b *BaseNode) Pos() errors.Position { return b.Token.Position() }

// BaseExpression holds the type the analyzer resolved for an expression.
type BaseExpression struct {
	BaseNode
	ComputedType types.Type
}

func (be *BaseExpression) GetComputedType() types.Type  { return be.ComputedType }
func (be *BaseExpression) SetComputedType(t types.Type) { be.ComputedType = t }
func (be *BaseExpression) statementNode()               {}
func (be *BaseExpression) expressionNode()              {}

// BaseStatement is embedded by nodes that are statements only.
type BaseStatement struct {
	BaseNode
}

func (bs *BaseStatement) statementNode() {}

// ScopeType tags a block with its syntactic role. The evaluator uses it to decide
// where control-flow signals are caught.
type ScopeType int

const (
	ScopeScript ScopeType = iota
	ScopeFunction
	ScopeLambda
	ScopeBlock
	ScopeIf
	ScopeWhen
	ScopeWhile
	ScopeDoWhile
	ScopeFor
	ScopeTry
	ScopeCatch
	ScopeFinally
	ScopeClass
	ScopeClassInitializer
	ScopeConstructor
)

var scopeTypeNames = [...]string{
	"Script", "Function", "Lambda", "Block", "If", "When", "While", "DoWhile", "For",
	"Try", "Catch", "Finally", "Class", "ClassInitializer", "Constructor",
}

func (s ScopeType) String() string {
	if int(s) < len(scopeTypeNames) {
		return scopeTypeNames[s]
	}
	return fmt.Sprintf("ScopeType(%d)", int(s))
}

// IsLoop reports whether break/continue target a scope of this type.
func (s ScopeType) IsLoop() bool {
	return s == ScopeWhile || s == ScopeDoWhile || s == ScopeFor
}

// Modifiers is the list of declaration modifiers in source order.
type Modifiers []string

// Has reports whether the modifier is present.
func (m Modifiers) Has(name string) bool {
	for _, s := range m {
		if s == name {
			return true
		}
	}
	return false
}

func (m Modifiers) String() string {
	if len(m) == 0 {
		return ""
	}
	return strings.Join(m, " ") + " "
}

// --- Script Node ---

// ScriptNode is the root node of the AST.
type ScriptNode struct {
	BaseNode
	Statements []Statement
}

func (s *ScriptNode) String() string {
	var out bytes.Buffer
	for _, st := range s.Statements {
		out.WriteString(st.String())
		out.WriteString("\n")
	}
	return out.String()
}

// --- Literals ---

// IntegerNode is a 32-bit integer literal.
type IntegerNode struct {
	BaseExpression
	Value int32
}

func (n *IntegerNode) String() string { return fmt.Sprintf("%d", n.Value) }

// LongNode is a 64-bit integer literal.
type LongNode struct {
	BaseExpression
	Value int64
}

func (n *LongNode) String() string { return fmt.Sprintf("%dL", n.Value) }

// DoubleNode is a floating-point literal.
type DoubleNode struct {
	BaseExpression
	Value float64
}

func (n *DoubleNode) String() string { return n.Token.Literal }

// BooleanNode is `true` or `false`.
type BooleanNode struct {
	BaseExpression
	Value bool
}

func (n *BooleanNode) String() string { return fmt.Sprintf("%t", n.Value) }

// NullNode is the `null` literal.
type NullNode struct {
	BaseExpression
}

func (n *NullNode) String() string { return "null" }

// CharNode is a character literal holding one UTF-16 code unit.
type CharNode struct {
	BaseExpression
	Value rune
}

func (n *CharNode) String() string { return quoteChar(n.Value) }

// StringLiteralNode is one literal fragment of a string.
type StringLiteralNode struct {
	BaseExpression
	Value string
}

func (n *StringLiteralNode) String() string { return quoteString(n.Value) }

// StringNode is a string literal with template parts. Parts are StringLiteralNodes
// for literal text and arbitrary expressions for `$name` and `${...}`.
type StringNode struct {
	BaseExpression
	Parts []Expression
	IsRaw bool
}

func (n *StringNode) String() string {
	var out bytes.Buffer
	out.WriteString(`"`)
	for _, p := range n.Parts {
		if lit, ok := p.(*StringLiteralNode); ok {
			out.WriteString(escapeString(lit.Value))
			continue
		}
		out.WriteString("${")
		out.WriteString(p.String())
		out.WriteString("}")
	}
	out.WriteString(`"`)
	return out.String()
}

// --- References ---

// VariableReferenceNode names a property, parameter, function or class.
type VariableReferenceNode struct {
	BaseExpression
	Name string
	// TransformedRefName is the unique internal name of the resolved declaration.
	TransformedRefName string
	Binding            Binding
}

func (n *VariableReferenceNode) String() string { return n.Name }

// ThisReferenceNode is `this`.
type ThisReferenceNode struct {
	BaseExpression
}

func (n *ThisReferenceNode) String() string { return "this" }

// SuperReferenceNode is `super`, only valid as a navigation receiver.
type SuperReferenceNode struct {
	BaseExpression
}

func (n *SuperReferenceNode) String() string { return "super" }

// --- Operators ---

// BinaryOpNode is an infix operator application, including named infix calls
// (`a to b`), `..`, `?:`, `in` and `!in`.
type BinaryOpNode struct {
	BaseExpression
	Left     Expression
	Operator string
	Right    Expression
	// Binding is set when the operator resolves to an operator/infix function.
	Binding Binding
}

func (n *BinaryOpNode) String() string {
	return "(" + n.Left.String() + " " + n.Operator + " " + n.Right.String() + ")"
}

// UnaryOpNode covers prefix `+ - ! ++ --` and postfix `++ -- !!`.
type UnaryOpNode struct {
	BaseExpression
	Operator string
	Operand  Expression
	IsPrefix bool
	Binding  Binding
}

func (n *UnaryOpNode) String() string {
	if n.IsPrefix {
		return "(" + n.Operator + n.Operand.String() + ")"
	}
	return "(" + n.Operand.String() + n.Operator + ")"
}

// AssignmentNode is `target op value` for `= += -= *= /= %=`. Assignments are
// statements, not expressions.
type AssignmentNode struct {
	BaseStatement
	Target   Expression
	Operator string
	Value    Expression
	// Binding is the resolved operator function for augmented assignment: either a
	// `plusAssign`-style function or a `plus`-style function whose result is stored.
	Binding Binding
	// IndexBinding is the resolved `set` operator when Target is an IndexOpNode.
	IndexBinding Binding
}

func (n *AssignmentNode) String() string {
	return n.Target.String() + " " + n.Operator + " " + n.Value.String()
}

// NavigationNode is member access through `.` or `?.`.
type NavigationNode struct {
	BaseExpression
	Receiver Expression
	Operator string // "." or "?."
	Member   string
	Binding  Binding
}

func (n *NavigationNode) String() string {
	return n.Receiver.String() + n.Operator + n.Member
}

// IndexOpNode is `subject[indices]`.
type IndexOpNode struct {
	BaseExpression
	Subject Expression
	Indices []Expression
	Binding Binding
}

func (n *IndexOpNode) String() string {
	parts := make([]string, len(n.Indices))
	for i, e := range n.Indices {
		parts[i] = e.String()
	}
	return n.Subject.String() + "[" + strings.Join(parts, ", ") + "]"
}

// FunctionCallArgumentNode is one argument of a call.
type FunctionCallArgumentNode struct {
	BaseNode
	Name  string // empty for positional arguments
	Value Expression
	// Index is the argument's source position after parsing; the analyzer replaces it
	// with the index of the parameter it binds to.
	Index            int
	IsTrailingLambda bool
}

func (n *FunctionCallArgumentNode) String() string {
	if n.Name != "" {
		return n.Name + " = " + n.Value.String()
	}
	return n.Value.String()
}

// FunctionCallNode is a call of a named function, a member, a constructor or any
// expression of function type.
type FunctionCallNode struct {
	BaseExpression
	Function      Expression // VariableReferenceNode, NavigationNode or any callee
	TypeArguments []*TypeNode
	Arguments     []*FunctionCallArgumentNode
	Binding       Binding
}

func (n *FunctionCallNode) String() string {
	var out bytes.Buffer
	out.WriteString(n.Function.String())
	if len(n.TypeArguments) > 0 {
		out.WriteString("<")
		out.WriteString(joinTypes(n.TypeArguments))
		out.WriteString(">")
	}
	var regular []string
	var trailing *FunctionCallArgumentNode
	for _, a := range n.Arguments {
		if a.IsTrailingLambda {
			trailing = a
			continue
		}
		regular = append(regular, a.String())
	}
	out.WriteString("(" + strings.Join(regular, ", ") + ")")
	if trailing != nil {
		out.WriteString(" " + trailing.Value.String())
	}
	return out.String()
}

// LambdaLiteralNode is `{ params -> body }`. When no parameters are declared and
// the expected type takes one parameter, the analyzer binds the implicit `it`.
type LambdaLiteralNode struct {
	BaseExpression
	Parameters  []*FunctionValueParameterNode
	HasArrow    bool
	Body        *BlockNode
	ItRefName   string // set when the implicit `it` parameter is used
	ReturnsUnit bool   // set when the expected return type is Unit
}

func (n *LambdaLiteralNode) String() string {
	var out bytes.Buffer
	out.WriteString("{ ")
	if n.HasArrow {
		params := make([]string, len(n.Parameters))
		for i, p := range n.Parameters {
			params[i] = p.String()
		}
		out.WriteString(strings.Join(params, ", "))
		out.WriteString(" -> ")
	}
	for i, s := range n.Body.Statements {
		if i > 0 {
			out.WriteString("; ")
		}
		out.WriteString(s.String())
	}
	out.WriteString(" }")
	return out.String()
}

// --- Control flow ---

// BlockNode is a braced statement list.
type BlockNode struct {
	BaseExpression
	Statements []Statement
	Type       ScopeType
}

func (n *BlockNode) String() string {
	var out bytes.Buffer
	out.WriteString("{\n")
	for _, s := range n.Statements {
		if s == nil {
			continue
		}
		lines := strings.Split(s.String(), "\n")
		for i, line := range lines {
			out.WriteString("\t" + line)
			if i < len(lines)-1 {
				out.WriteString("\n")
			}
		}
		out.WriteString("\n")
	}
	out.WriteString("}")
	return out.String()
}

// IfNode is `if (cond) then else alt`. Then is nil for a bodiless `if`.
type IfNode struct {
	BaseExpression
	Condition Expression
	Then      *BlockNode
	Else      *BlockNode
}

func (n *IfNode) String() string {
	var out bytes.Buffer
	out.WriteString("if (" + n.Condition.String() + ") ")
	if n.Then != nil {
		out.WriteString(n.Then.String())
	} else {
		out.WriteString(";")
	}
	if n.Else != nil {
		out.WriteString(" else ")
		out.WriteString(n.Else.String())
	}
	return out.String()
}

// WhenConditionKind distinguishes the forms of a when-branch condition.
type WhenConditionKind int

const (
	WhenExpression WhenConditionKind = iota // value equality, or a boolean without subject
	WhenIs                                  // is T / !is T
	WhenIn                                  // in x / !in x
)

// WhenConditionNode is one comma-separated condition of a when branch.
type WhenConditionNode struct {
	BaseNode
	Kind       WhenConditionKind
	Negated    bool
	Expression Expression
	Type       *TypeNode
	Binding    Binding // contains() for WhenIn
}

func (n *WhenConditionNode) String() string {
	neg := ""
	if n.Negated {
		neg = "!"
	}
	switch n.Kind {
	case WhenIs:
		return neg + "is " + n.Type.String()
	case WhenIn:
		return neg + "in " + n.Expression.String()
	}
	return n.Expression.String()
}

// WhenBranchNode is `cond1, cond2 -> body`.
type WhenBranchNode struct {
	BaseNode
	Conditions []*WhenConditionNode
	Body       *BlockNode
}

func (n *WhenBranchNode) String() string {
	conds := make([]string, len(n.Conditions))
	for i, c := range n.Conditions {
		conds[i] = c.String()
	}
	return strings.Join(conds, ", ") + " -> " + n.Body.String()
}

// WhenNode is `when (subject) { branches else -> ... }`.
type WhenNode struct {
	BaseExpression
	Subject  Expression // nil for a subject-less when
	Branches []*WhenBranchNode
	Else     *BlockNode
}

func (n *WhenNode) String() string {
	var out bytes.Buffer
	out.WriteString("when ")
	if n.Subject != nil {
		out.WriteString("(" + n.Subject.String() + ") ")
	}
	out.WriteString("{\n")
	for _, b := range n.Branches {
		out.WriteString("\t" + b.String() + "\n")
	}
	if n.Else != nil {
		out.WriteString("\telse -> " + n.Else.String() + "\n")
	}
	out.WriteString("}")
	return out.String()
}

// WhileNode is `while (cond) body`.
type WhileNode struct {
	BaseStatement
	Condition Expression
	Body      *BlockNode
}

func (n *WhileNode) String() string {
	return "while (" + n.Condition.String() + ") " + n.Body.String()
}

// DoWhileNode is `do body while (cond)`.
type DoWhileNode struct {
	BaseStatement
	Body      *BlockNode
	Condition Expression
}

func (n *DoWhileNode) String() string {
	return "do " + n.Body.String() + " while (" + n.Condition.String() + ")"
}

// ForNode is `for (name in subject) body`.
type ForNode struct {
	BaseStatement
	VariableName       string
	VariableType       *TypeNode
	TransformedRefName string
	Subject            Expression
	Body               *BlockNode
}

func (n *ForNode) String() string {
	v := n.VariableName
	if n.VariableType != nil {
		v += ": " + n.VariableType.String()
	}
	return "for (" + v + " in " + n.Subject.String() + ") " + n.Body.String()
}

// BreakNode is `break`.
type BreakNode struct {
	BaseExpression
}

func (n *BreakNode) String() string { return "break" }

// ContinueNode is `continue`.
type ContinueNode struct {
	BaseExpression
}

func (n *ContinueNode) String() string { return "continue" }

// ReturnNode is `return [value]`.
type ReturnNode struct {
	BaseExpression
	Value Expression
}

func (n *ReturnNode) String() string {
	if n.Value == nil {
		return "return"
	}
	return "return " + n.Value.String()
}

// ThrowNode is `throw value`.
type ThrowNode struct {
	BaseExpression
	Value Expression
}

func (n *ThrowNode) String() string { return "throw " + n.Value.String() }

// CatchNode is `catch (name: Type) body`.
type CatchNode struct {
	BaseNode
	Name               string
	Type               *TypeNode
	TransformedRefName string
	Body               *BlockNode
}

func (n *CatchNode) String() string {
	return "catch (" + n.Name + ": " + n.Type.String() + ") " + n.Body.String()
}

// TryNode is `try body catch... finally`.
type TryNode struct {
	BaseExpression
	Body    *BlockNode
	Catches []*CatchNode
	Finally *BlockNode
}

func (n *TryNode) String() string {
	var out bytes.Buffer
	out.WriteString("try " + n.Body.String())
	for _, c := range n.Catches {
		out.WriteString(" " + c.String())
	}
	if n.Finally != nil {
		out.WriteString(" finally " + n.Finally.String())
	}
	return out.String()
}

// IsNode is `subject is Type` / `subject !is Type`.
type IsNode struct {
	BaseExpression
	Subject Expression
	Type    *TypeNode
	Negated bool
}

func (n *IsNode) String() string {
	op := " is "
	if n.Negated {
		op = " !is "
	}
	return "(" + n.Subject.String() + op + n.Type.String() + ")"
}

// AsNode is `subject as Type` / `subject as? Type`.
type AsNode struct {
	BaseExpression
	Subject Expression
	Type    *TypeNode
	IsSafe  bool
}

func (n *AsNode) String() string {
	op := " as "
	if n.IsSafe {
		op = " as? "
	}
	return "(" + n.Subject.String() + op + n.Type.String() + ")"
}

// --- Declarations ---

// PropertyDeclarationNode is `val`/`var` at script, block or class level. A
// Receiver is only allowed in headers (extension properties).
type PropertyDeclarationNode struct {
	BaseStatement
	Modifiers          Modifiers
	IsMutable          bool
	TypeParameters     []*TypeParameterNode
	Receiver           *TypeNode
	Name               string
	Type               *TypeNode
	Initializer        Expression
	TransformedRefName string
}

func (n *PropertyDeclarationNode) String() string {
	var out bytes.Buffer
	out.WriteString(n.Modifiers.String())
	if n.IsMutable {
		out.WriteString("var ")
	} else {
		out.WriteString("val ")
	}
	if len(n.TypeParameters) > 0 {
		out.WriteString(typeParameterList(n.TypeParameters) + " ")
	}
	if n.Receiver != nil {
		out.WriteString(n.Receiver.String() + ".")
	}
	out.WriteString(n.Name)
	if n.Type != nil {
		out.WriteString(": " + n.Type.String())
	}
	if n.Initializer != nil {
		out.WriteString(" = " + n.Initializer.String())
	}
	return out.String()
}

// FunctionValueParameterNode is one declared parameter of a function or lambda.
type FunctionValueParameterNode struct {
	BaseNode
	Modifiers          Modifiers // vararg
	Name               string
	Type               *TypeNode // may be nil for lambda parameters
	DefaultValue       Expression
	TransformedRefName string
}

// IsVararg reports whether the parameter collects the remaining positional arguments.
func (n *FunctionValueParameterNode) IsVararg() bool { return n.Modifiers.Has("vararg") }

func (n *FunctionValueParameterNode) String() string {
	s := n.Modifiers.String() + n.Name
	if n.Type != nil {
		s += ": " + n.Type.String()
	}
	if n.DefaultValue != nil {
		s += " = " + n.DefaultValue.String()
	}
	return s
}

// FunctionDeclarationNode is `fun` at script, block or class level. Body is nil for
// abstract members, interface members and headers.
type FunctionDeclarationNode struct {
	BaseStatement
	Modifiers          Modifiers
	TypeParameters     []*TypeParameterNode
	Receiver           *TypeNode
	Name               string
	Parameters         []*FunctionValueParameterNode
	ReturnType         *TypeNode
	Body               *BlockNode
	IsExpressionBody   bool
	TransformedRefName string
	// Definition is the function metadata the analyzer built for this declaration.
	Definition Binding
}

func (n *FunctionDeclarationNode) String() string {
	var out bytes.Buffer
	out.WriteString(n.Modifiers.String())
	out.WriteString("fun ")
	if len(n.TypeParameters) > 0 {
		out.WriteString(typeParameterList(n.TypeParameters) + " ")
	}
	if n.Receiver != nil {
		out.WriteString(n.Receiver.String() + ".")
	}
	out.WriteString(n.Name)
	params := make([]string, len(n.Parameters))
	for i, p := range n.Parameters {
		params[i] = p.String()
	}
	out.WriteString("(" + strings.Join(params, ", ") + ")")
	if n.ReturnType != nil {
		out.WriteString(": " + n.ReturnType.String())
	}
	if n.Body != nil {
		if n.IsExpressionBody && len(n.Body.Statements) == 1 {
			out.WriteString(" = " + n.Body.Statements[0].String())
		} else {
			out.WriteString(" " + n.Body.String())
		}
	}
	return out.String()
}

// ClassParameterNode is a primary-constructor parameter, optionally promoted to a
// member property with `val`/`var`.
type ClassParameterNode struct {
	BaseNode
	Modifiers  Modifiers
	Parameter  *FunctionValueParameterNode
	IsProperty bool
	IsMutable  bool
	// PropertyRefName is the member field name when IsProperty.
	PropertyRefName string
}

func (n *ClassParameterNode) String() string {
	s := n.Modifiers.String()
	if n.IsProperty {
		if n.IsMutable {
			s += "var "
		} else {
			s += "val "
		}
	}
	return s + n.Parameter.String()
}

// SuperTypeNode is one entry of a class's supertype list, with constructor
// arguments when it invokes the superclass constructor.
type SuperTypeNode struct {
	BaseNode
	Type              *TypeNode
	IsConstructorCall bool
	Arguments         []*FunctionCallArgumentNode
}

func (n *SuperTypeNode) String() string {
	if !n.IsConstructorCall {
		return n.Type.String()
	}
	args := make([]string, len(n.Arguments))
	for i, a := range n.Arguments {
		args[i] = a.String()
	}
	return n.Type.String() + "(" + strings.Join(args, ", ") + ")"
}

// ClassInstanceInitializerNode is an `init { ... }` block.
type ClassInstanceInitializerNode struct {
	BaseStatement
	Body *BlockNode
}

func (n *ClassInstanceInitializerNode) String() string { return "init " + n.Body.String() }

// ClassDeclarationNode is a `class` or `interface` declaration. Declarations keeps
// property declarations, functions and init blocks in source order.
type ClassDeclarationNode struct {
	BaseStatement
	Modifiers             Modifiers
	IsInterface           bool
	Name                  string
	TypeParameters        []*TypeParameterNode
	HasPrimaryConstructor bool
	PrimaryConstructor    []*ClassParameterNode
	SuperTypes            []*SuperTypeNode
	Declarations          []Statement
	TransformedRefName    string
	// Definition is the class metadata the analyzer built for this declaration.
	Definition Binding
}

func (n *ClassDeclarationNode) String() string {
	var out bytes.Buffer
	out.WriteString(n.Modifiers.String())
	if n.IsInterface {
		out.WriteString("interface ")
	} else {
		out.WriteString("class ")
	}
	out.WriteString(n.Name)
	if len(n.TypeParameters) > 0 {
		out.WriteString(typeParameterList(n.TypeParameters))
	}
	if n.HasPrimaryConstructor {
		params := make([]string, len(n.PrimaryConstructor))
		for i, p := range n.PrimaryConstructor {
			params[i] = p.String()
		}
		out.WriteString("(" + strings.Join(params, ", ") + ")")
	}
	if len(n.SuperTypes) > 0 {
		supers := make([]string, len(n.SuperTypes))
		for i, s := range n.SuperTypes {
			supers[i] = s.String()
		}
		out.WriteString(" : " + strings.Join(supers, ", "))
	}
	if len(n.Declarations) > 0 {
		out.WriteString(" {\n")
		for _, d := range n.Declarations {
			out.WriteString("\t" + strings.ReplaceAll(d.String(), "\n", "\n\t") + "\n")
		}
		out.WriteString("}")
	}
	return out.String()
}

// --- Types ---

// FunctionTypeNode is `(A, B) -> R` or `T.(A) -> R`.
type FunctionTypeNode struct {
	Receiver   *TypeNode
	Parameters []*TypeNode
	ReturnType *TypeNode
}

// TypeNode is a written type: a (possibly generic) class name, a star projection,
// or a function type.
type TypeNode struct {
	BaseNode
	Name       string
	Arguments  []*TypeNode
	IsNullable bool
	IsStar     bool
	Function   *FunctionTypeNode
	// Resolved is the static type the analyzer resolved this node to.
	Resolved types.Type
}

func (n *TypeNode) String() string {
	if n == nil {
		return "<nil>"
	}
	if n.IsStar {
		return "*"
	}
	var s string
	if n.Function != nil {
		s = "(" + joinTypes(n.Function.Parameters) + ") -> " + n.Function.ReturnType.String()
		if n.Function.Receiver != nil {
			s = n.Function.Receiver.String() + "." + s
		}
		if n.IsNullable {
			return "(" + s + ")?"
		}
		return s
	}
	s = n.Name
	if len(n.Arguments) > 0 {
		s += "<" + joinTypes(n.Arguments) + ">"
	}
	if n.IsNullable {
		s += "?"
	}
	return s
}

// TypeParameterNode is a declared type parameter `[in|out] T [: Bound]`.
type TypeParameterNode struct {
	BaseNode
	Variance string // "", "in" or "out"
	Name     string
	Bound    *TypeNode
}

func (n *TypeParameterNode) String() string {
	s := n.Name
	if n.Variance != "" {
		s = n.Variance + " " + s
	}
	if n.Bound != nil {
		s += " : " + n.Bound.String()
	}
	return s
}

// --- helpers ---

func joinTypes(ts []*TypeNode) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func typeParameterList(tps []*TypeParameterNode) string {
	parts := make([]string, len(tps))
	for i, tp := range tps {
		parts[i] = tp.String()
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

func escapeString(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '\b':
			b.WriteString(`\b`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '$':
			b.WriteString(`\$`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func quoteString(s string) string { return `"` + escapeString(s) + `"` }

func quoteChar(r rune) string {
	switch r {
	case '\'':
		return `'\''`
	case '\\':
		return `'\\'`
	case '\n':
		return `'\n'`
	case '\t':
		return `'\t'`
	case '\r':
		return `'\r'`
	case '\b':
		return `'\b'`
	}
	if r < 0x20 || (r >= 0xD800 && r <= 0xDFFF) {
		return fmt.Sprintf(`'\u%04X'`, r)
	}
	return "'" + string(r) + "'"
}
