package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"kotlite/pkg/errors"
	"kotlite/pkg/lexer"
	"kotlite/pkg/source"
)

func parseScript(t *testing.T, input string) *ScriptNode {
	t.Helper()
	script, err := ParseSource(source.NewEvalSource(input))
	if err != nil {
		t.Fatalf("unexpected parse error for %q: %v", input, err)
	}
	return script
}

func parseExpr(t *testing.T, input string) Expression {
	t.Helper()
	expr, err := ParseExpression(source.NewEvalSource(input))
	if err != nil {
		t.Fatalf("unexpected parse error for %q: %v", input, err)
	}
	return expr
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"a - b - c", "((a - b) - c)"},
		{"a || b && c", "(a || (b && c))"},
		{"a == b || c < d", "((a == b) || (c < d))"},
		{"a ?: b ?: c", "((a ?: b) ?: c)"},
		{"x in 1..10", "(x in (1 .. 10))"},
		{"x !in xs", "(x !in xs)"},
		{"a to b to c", "((a to b) to c)"},
		{"1..10 step 2", "((1 .. 10) step 2)"},
		{"x is Int && y !is String", "((x is Int) && (y !is String))"},
		{"a as String? ?: b", "((a as String?) ?: b)"},
		{"a as? Int", "(a as? Int)"},
		{"-a.b!!", "(-(a.b!!))"},
		{"!flag", "(!flag)"},
		{"x++ + --y", "((x++) + (--y))"},
		{"a ?: b + c", "(a ?: (b + c))"},
		{"a + b to c", "((a + b) to c)"},
		{"a < b == c > d", "((a < b) == (c > d))"},
		{"f(1, b = 2) { it }", "f(1, b = 2) { it }"},
		{"listOf<Int>(1, 2)", "listOf<Int>(1, 2)"},
		{"list.map { x -> x * 2 }", "list.map() { x -> (x * 2) }"},
		{"obj?.field?.method()", "obj?.field?.method()"},
		{"arr[i + 1]", "arr[(i + 1)]"},
	}

	for _, tt := range tests {
		expr := parseExpr(t, tt.input)
		if actual := expr.String(); actual != tt.expected {
			t.Errorf("%q: expected %q, got %q", tt.input, tt.expected, actual)
		}
	}
}

func TestLiterals(t *testing.T) {
	if n, ok := parseExpr(t, "2147483647").(*IntegerNode); !ok || n.Value != 2147483647 {
		t.Fatalf("expected Int literal")
	}
	if n, ok := parseExpr(t, "2147483648").(*LongNode); !ok || n.Value != 2147483648 {
		t.Fatalf("expected 10-digit literal above Int range to become Long")
	}
	if n, ok := parseExpr(t, "7L").(*LongNode); !ok || n.Value != 7 {
		t.Fatalf("expected Long literal")
	}
	if n, ok := parseExpr(t, "0xFF").(*IntegerNode); !ok || n.Value != 255 {
		t.Fatalf("expected hex literal 255")
	}
	if n, ok := parseExpr(t, "2.5").(*DoubleNode); !ok || n.Value != 2.5 {
		t.Fatalf("expected Double literal")
	}
	if n, ok := parseExpr(t, "'x'").(*CharNode); !ok || n.Value != 'x' {
		t.Fatalf("expected Char literal")
	}
	s, ok := parseExpr(t, `"a $b ${c + 1}"`).(*StringNode)
	if !ok || len(s.Parts) != 4 {
		t.Fatalf("expected a 4-part string template, got %#v", s)
	}
	if _, ok := s.Parts[1].(*VariableReferenceNode); !ok {
		t.Fatalf("expected $b to be a reference, got %T", s.Parts[1])
	}
	if _, ok := s.Parts[3].(*BinaryOpNode); !ok {
		t.Fatalf("expected ${c + 1} to be a binary op, got %T", s.Parts[3])
	}
}

// ignoreTokens compares AST structure only.
var ignoreTokens = cmpopts.IgnoreTypes(lexer.Token{})

func TestExpressionRoundTrip(t *testing.T) {
	inputs := []string{
		"1 + 2 * 3 - 4 / 5 % 6",
		"(1 + 2) * 3",
		"a - (b - c)",
		"a || b && !c",
		"x == y != z",
		"a ?: b ?: c",
		"a ?: (b ?: c)",
		"-(-x)",
		"!(!flag)",
		"-(a + b)",
		"x is String && y !is Int",
		`a as? String ?: "default"`,
		"1..10 step 2",
		"a to b to c",
		"a to (b to c)",
		"(a to b).first",
		"list.filter { it > 0 }.map { x -> x * 2 }.sum()",
		`foo(1, name = "x", flag = true,)`,
		"mutableMapOf<String, List<Int?>>()",
		"obj?.field?.method()!!",
		"arr[i + 1][j]",
		"if (a > b) a else b",
		"if (a) { b } else if (c) { d } else { e }",
		`when (x) { 1, 2 -> "low"; in 3..5 -> "mid"; !is Int -> "odd"; else -> "other" }`,
		"when { a < b -> 1\n else -> 2 }",
		`"Hello, $name! ${a + b} \$ \n \"q\""`,
		`'c'`,
		`'\n'`,
		"3.5 * 2.0",
		"10000000000L",
		"7L + 1",
		"try { risky() } catch (e: Exception) { 0 } finally { done() }",
		"x++ + ++y",
		"a < b == c > d",
		"{ a: Int, b: Int -> a + b }",
		"{ -> 1 }",
		"{}",
		"x in list && y !in set",
		`throw IllegalStateException("bad")`,
		"repeat(3) { i -> println(i) }",
		"(if (c) 1 else 2) + 3",
		"- -x",
		"this.x + super.y()",
		"f(g(h(1)))",
		"(x as Int) + 1",
	}

	for _, input := range inputs {
		first := parseExpr(t, input)
		emitted := EmitExpression(first)
		second, err := ParseExpression(source.NewEvalSource(emitted))
		if err != nil {
			t.Errorf("%q: re-parsing emitted source %q failed: %v", input, emitted, err)
			continue
		}
		if diff := cmp.Diff(first, second, ignoreTokens); diff != "" {
			t.Errorf("%q: round trip through %q changed the tree (-first +second):\n%s", input, emitted, diff)
		}
	}
}

func TestScriptRoundTrip(t *testing.T) {
	input := `
open class Shape(val name: String) {
    open fun area(): Double = 0.0
}
class Circle(val r: Double) : Shape("circle") {
    override fun area(): Double = 3.14 * r * r
    init {
        println(name)
    }
}
fun <T : Comparable<T>> maxOf(a: T, b: T): T {
    return if (a > b) a else b
}
val shapes = listOf(Circle(1.0), Circle(2.0))
var total = 0.0
for (s in shapes) {
    total += s.area()
}
while (total > 10.0) total -= 1.0
do {
    total++
} while (total < 5.0)
`
	first := parseScript(t, input)
	emitted := NewSourceEmitter().Emit(first)
	second, err := ParseSource(source.NewEvalSource(emitted))
	if err != nil {
		t.Fatalf("re-parsing emitted script failed: %v\n%s", err, emitted)
	}
	if diff := cmp.Diff(first, second, ignoreTokens); diff != "" {
		t.Fatalf("script round trip changed the tree (-first +second):\n%s\nemitted:\n%s", diff, emitted)
	}
}

func TestStatements(t *testing.T) {
	script := parseScript(t, `val x: Int = 1 + 2; var y = 3
y += x
fun add(a: Int, b: Int = 2): Int = a + b
if (x > 0) y = 1
`)
	if len(script.Statements) != 5 {
		t.Fatalf("expected 5 statements, got %d", len(script.Statements))
	}
	decl, ok := script.Statements[0].(*PropertyDeclarationNode)
	if !ok || decl.IsMutable || decl.Type.Name != "Int" {
		t.Fatalf("unexpected first statement %#v", script.Statements[0])
	}
	assign, ok := script.Statements[2].(*AssignmentNode)
	if !ok || assign.Operator != "+=" {
		t.Fatalf("expected += assignment, got %T", script.Statements[2])
	}
	fn, ok := script.Statements[3].(*FunctionDeclarationNode)
	if !ok || !fn.IsExpressionBody || fn.Parameters[1].DefaultValue == nil {
		t.Fatalf("unexpected function %#v", script.Statements[3])
	}
	ifNode, ok := script.Statements[4].(*IfNode)
	if !ok {
		t.Fatalf("expected if, got %T", script.Statements[4])
	}
	if _, ok := ifNode.Then.Statements[0].(*AssignmentNode); !ok {
		t.Fatalf("expected assignment inside if body, got %T", ifNode.Then.Statements[0])
	}
}

func TestBodilessIf(t *testing.T) {
	script := parseScript(t, "if (a);\nif (b) else c()")
	first := script.Statements[0].(*IfNode)
	if first.Then != nil || first.Else != nil {
		t.Fatalf("expected a bodiless if")
	}
	second := script.Statements[1].(*IfNode)
	if second.Then != nil || second.Else == nil {
		t.Fatalf("expected if with only an else branch")
	}

	script = parseScript(t, "if (a) b(); else c(); d()")
	if len(script.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(script.Statements))
	}
	oneLine := script.Statements[0].(*IfNode)
	if oneLine.Then == nil || oneLine.Else == nil {
		t.Fatalf("expected then and else on one line: %s", oneLine.String())
	}

	script = parseScript(t, "while (next());\nx")
	if loop := script.Statements[0].(*WhileNode); len(loop.Body.Statements) != 0 {
		t.Fatalf("expected an empty loop body")
	}
}

func TestClassDeclaration(t *testing.T) {
	script := parseScript(t, `abstract class A<T>(val x: Int, y: Int = 2, var z: T) : B(x), I<T> {
    val p = y
    init { println(p) }
    abstract fun f(): Int
    open val q: Int = 3
}`)
	class := script.Statements[0].(*ClassDeclarationNode)
	if !class.Modifiers.Has("abstract") || class.Name != "A" || len(class.TypeParameters) != 1 {
		t.Fatalf("unexpected class header: %s", class.String())
	}
	if len(class.PrimaryConstructor) != 3 {
		t.Fatalf("expected 3 constructor parameters")
	}
	if !class.PrimaryConstructor[0].IsProperty || class.PrimaryConstructor[1].IsProperty || !class.PrimaryConstructor[2].IsMutable {
		t.Fatalf("constructor property flags are wrong")
	}
	if len(class.SuperTypes) != 2 || !class.SuperTypes[0].IsConstructorCall || class.SuperTypes[1].IsConstructorCall {
		t.Fatalf("unexpected supertypes")
	}
	kinds := []string{}
	for _, d := range class.Declarations {
		switch d.(type) {
		case *PropertyDeclarationNode:
			kinds = append(kinds, "prop")
		case *ClassInstanceInitializerNode:
			kinds = append(kinds, "init")
		case *FunctionDeclarationNode:
			kinds = append(kinds, "fun")
		}
	}
	if diff := cmp.Diff([]string{"prop", "init", "fun", "prop"}, kinds); diff != "" {
		t.Fatalf("declaration order not preserved: %s", diff)
	}
	if fn := class.Declarations[2].(*FunctionDeclarationNode); fn.Body != nil {
		t.Fatalf("abstract function should have no body")
	}
}

func TestLambdaParameters(t *testing.T) {
	lambda := parseExpr(t, "{ a, b: Int -> a }").(*LambdaLiteralNode)
	if !lambda.HasArrow || len(lambda.Parameters) != 2 || lambda.Parameters[1].Type == nil {
		t.Fatalf("unexpected lambda parameters: %s", lambda.String())
	}
	implicit := parseExpr(t, "{ it + 1 }").(*LambdaLiteralNode)
	if implicit.HasArrow || len(implicit.Parameters) != 0 {
		t.Fatalf("expected implicit-parameter lambda")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input  string
		reason errors.ParseReason
	}{
		{"val x = 1 val y = 2", errors.ExpectTokenMismatch},
		{"val = 5", errors.ExpectTokenMismatch},
		{"if (x)", errors.ExpectTokenMismatch},
		{"fun f(a: Int { }", errors.ExpectTokenMismatch},
		{"1 +", errors.UnexpectedToken},
		{"f(a = )", errors.UnexpectedToken},
		{"try { }", errors.ExpectTokenMismatch},
		{"when (x) { else -> 1; 2 -> 3 }", errors.UnexpectedToken},
		{"1 = 2", errors.UnexpectedToken},
		{"class A { x }", errors.UnexpectedToken},
	}
	for _, tt := range tests {
		_, err := ParseSource(source.NewEvalSource(tt.input))
		if err == nil {
			t.Errorf("%q: expected a parse error", tt.input)
			continue
		}
		perr, ok := err.(*errors.ParseError)
		if !ok {
			t.Errorf("%q: expected *errors.ParseError, got %T (%v)", tt.input, err, err)
			continue
		}
		if perr.Reason != tt.reason {
			t.Errorf("%q: expected reason %s, got %s (%v)", tt.input, tt.reason, perr.Reason, perr)
		}
		if !perr.Pos().IsValid() {
			t.Errorf("%q: error has no position", tt.input)
		}
	}
}

func TestParseHeader(t *testing.T) {
	decl, err := ParseHeader(source.NewHeaderSource("test", "fun <T> listOf(vararg elements: T): List<T>"))
	if err != nil {
		t.Fatal(err)
	}
	fn := decl.(*FunctionDeclarationNode)
	if fn.Name != "listOf" || len(fn.TypeParameters) != 1 || !fn.Parameters[0].IsVararg() || fn.ReturnType.String() != "List<T>" {
		t.Fatalf("unexpected header: %s", fn.String())
	}

	decl, err = ParseHeader(source.NewHeaderSource("test", "infix fun Int.until(to: Int): IntRange"))
	if err != nil {
		t.Fatal(err)
	}
	if fn := decl.(*FunctionDeclarationNode); fn.Receiver == nil || fn.Receiver.Name != "Int" || !fn.Modifiers.Has("infix") {
		t.Fatalf("unexpected extension header: %s", fn.String())
	}

	decl, err = ParseHeader(source.NewHeaderSource("test", "val <T> List<T>.lastIndex: Int"))
	if err != nil {
		t.Fatal(err)
	}
	if prop := decl.(*PropertyDeclarationNode); prop.Receiver.String() != "List<T>" || prop.Name != "lastIndex" {
		t.Fatalf("unexpected property header: %s", prop.String())
	}

	decl, err = ParseHeader(source.NewHeaderSource("test", "interface MutableList<E> : List<E>"))
	if err != nil {
		t.Fatal(err)
	}
	if class := decl.(*ClassDeclarationNode); !class.IsInterface || class.SuperTypes[0].Type.String() != "List<E>" {
		t.Fatalf("unexpected class header: %s", class.String())
	}

	decl, err = ParseHeader(source.NewHeaderSource("test", "fun <T> Iterable<T>.forEach(action: (T) -> Unit): Unit"))
	if err != nil {
		t.Fatal(err)
	}
	if fn := decl.(*FunctionDeclarationNode); fn.Parameters[0].Type.Function == nil {
		t.Fatalf("expected a function-typed parameter")
	}

	decl, err = ParseHeader(source.NewHeaderSource("test", "fun String?.isNullOrEmpty(): Boolean"))
	if err != nil {
		t.Fatal(err)
	}
	if fn := decl.(*FunctionDeclarationNode); fn.Receiver.String() != "String?" || fn.Name != "isNullOrEmpty" {
		t.Fatalf("unexpected nullable receiver header: %s", fn.String())
	}

	for _, bad := range []string{"fun f()", "val x: Int = 3", "fun f(): Int { 1 }", "class A { fun f(): Int }", "x + 1"} {
		if _, err := ParseHeader(source.NewHeaderSource("test", bad)); err == nil {
			t.Errorf("%q: expected header parse error", bad)
		}
	}
}

func TestNullableExtensionReceiver(t *testing.T) {
	tests := []struct {
		input    string
		receiver string
		name     string
	}{
		{"fun String?.orBlank(): String = this ?: \"\"", "String?", "orBlank"},
		{"fun <T> List<T>?.sizeOrZero(): Int = this?.size ?: 0", "List<T>?", "sizeOrZero"},
		{"fun Int.half(): Int = this / 2", "Int", "half"},
	}
	for _, tt := range tests {
		script := parseScript(t, tt.input)
		fn, ok := script.Statements[0].(*FunctionDeclarationNode)
		if !ok {
			t.Fatalf("%q: expected a function declaration, got %T", tt.input, script.Statements[0])
		}
		if fn.Receiver == nil || fn.Receiver.String() != tt.receiver || fn.Name != tt.name {
			t.Errorf("%q: got receiver %v name %q", tt.input, fn.Receiver, fn.Name)
		}
	}
}
