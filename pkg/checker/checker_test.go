package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotlite/pkg/builtins"
	"kotlite/pkg/errors"
	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
	"kotlite/pkg/source"
)

func newEnv(t *testing.T) *runtime.ExecutionEnvironment {
	t.Helper()
	env := runtime.NewExecutionEnvironment()
	require.NoError(t, env.Install(builtins.Standard()...))
	require.NoError(t, Prepare(env))
	return env
}

func analyze(t *testing.T, env *runtime.ExecutionEnvironment, input string) error {
	t.Helper()
	script, err := parser.ParseSource(source.NewEvalSource(input))
	if err != nil {
		return err
	}
	return Analyze(script, env)
}

func TestAccepts(t *testing.T) {
	env := newEnv(t)
	tests := []struct {
		name  string
		input string
	}{
		{"block scoped var", "if (true) { var a = 2; a = 30 }"},
		{"shadowing", "val a = 1\nfun f(): Int { val a = \"s\"; return a.length }"},
		{"smart cast", "fun f(x: Any): Int = if (x is String) x.length else 0"},
		{"null check narrowing", "fun f(s: String?): Int { if (s == null) return 0; return s.length }"},
		{"elvis", "fun f(s: String?): Int = s?.length ?: 0"},
		{"named and default arguments", "fun f(a: Int, b: Int = 2, c: Int = 3): Int = a + b + c\nf(1, c = 5)"},
		{"vararg", "fun sum(vararg xs: Int): Int { var t = 0; for (x in xs) t += x; return t }\nsum(1, 2, 3)"},
		{"generic class", "class Box<T>(val v: T)\nval s: String = Box(\"x\").v"},
		{"generic function", "fun <T> id(x: T): T = x\nval n: Int = id(3)"},
		{"abstract class", "abstract class A { abstract fun f(): Int }\nclass B : A() { override fun f(): Int = 1 }"},
		{"interface member implemented", "interface I { fun f(): Int }\nclass C : I { override fun f(): Int = 1 }\nval x = C().f()"},
		{"int range", "for (i in 1..3) println(i)\nval r: IntRange = 1..3\nval b = 2 in 1..3"},
		{"long range", "val r: LongRange = 1L..3\nval s: LongRange = 1..3L"},
		{"range step", "for (i in 10 downTo 0 step 2) println(i)\nval l = (1..9 step 3).toList()"},
		{"literal picks Int overload", "val n: Int = max(1, 2)\nval m: Long = max(1L, 2L)"},
		{"operator overload", "class V(val x: Int) { operator fun plus(o: V): V = V(x + o.x) }\nval v = V(1) + V(2)"},
		{"compound assignment on var property", "class C { var n = 0 }\nval c = C()\nc.n += 1"},
		{"lambda with receiver", "val s = \"abc\".run { length }"},
		{"iterate native list", "for (s in listOf(\"a\")) { println(s.length) }"},
		{"script iterable", `
class Countdown(val from: Int) : Iterable<Int> {
    override fun iterator(): Iterator<Int> = listOf(from, from - 1).iterator()
}
for (i in Countdown(2)) println(i)`},
		{"try as expression", "val n: Int = try { 1 } catch (e: Exception) { 2 }"},
		{"when with subject", "fun f(x: Int): String = when (x) { 1 -> \"a\"; in 2..3 -> \"b\"; else -> \"c\" }"},
		{"custom exception", "class MyError(msg: String) : RuntimeException(msg)\nfun f(): Nothing = throw MyError(\"x\")"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, analyze(t, env, tt.input))
		})
	}
}

func TestRejects(t *testing.T) {
	env := newEnv(t)
	tests := []struct {
		name   string
		input  string
		errMsg string
	}{
		{"val reassigned", "val a = 1\na = 2", "Val cannot be reassigned"},
		{"val mutated in nested if", "val a = 2\nif (true) { if (a > 0) { a = 30 } }", "Val cannot be reassigned"},
		{"constructor parameter incremented", "class Cls(var a: Int = 60, var b: Int = a++)", "Val cannot be reassigned"},
		{"unknown named argument", "fun f(a: Int): Int = a\nf(b = 1)", "Cannot find a parameter with this name: b"},
		{"abstract member in concrete class", "class A { abstract fun f(): Int }", "Abstract function 'f' in non-abstract class 'A'"},
		{"missing implementation", "interface I { fun f(): Int }\nclass C : I", "does not implement abstract member"},
		{"missing override modifier", "open class A { open fun f() {} }\nclass B : A() { fun f() {} }", "needs 'override' modifier"},
		{"final base", "class A\nclass B : A()", "This type is final"},
		{"type mismatch", "val s: String = 1", "type mismatch: expected String, got Int"},
		{"nullable receiver", "fun f(s: String?): Int = s.length", "Only safe (?.) or non-null asserted (!!.) calls"},
		{"unresolved", "println(nope)", "Unresolved reference: nope"},
		{"break outside loop", "break", "'break' and 'continue' are only allowed inside a loop"},
		{"abstract instantiation", "abstract class A\nval a = A()", "Cannot create an instance of an abstract class"},
		{"native class inheritance", "class MyList : MutableList<Int>", "cannot be implemented by script classes"},
		{"missing return", "fun f(): Int { }", "A 'return' expression required"},
		{"too many arguments", "fun f(a: Int) {}\nf(1, 2)", "Too many arguments"},
		{"interface function body", "interface I { fun f(): Int = 1 }", "Interface function f cannot have a body"},
		{"interface property initializer", "interface I { val x: Int = 1 }", "Property initializers are not allowed in interfaces"},
		{"nested interface", "interface A { interface B }", "Nested classes are not supported"},
		{"interface inherits class", "open class A\ninterface I : A", "An interface cannot inherit from a class"},
		{"interface instantiation", "interface I\nval i = I()", "Interface I does not have constructors"},
		{"override of final function", "open class A { fun f() {} }\nclass B : A() { override fun f() {} }", "is final and cannot be overridden"},
		{"nullable compareTo", "class P { operator fun compareTo(o: P): Int? = 0 }", "'compareTo' must return Int"},
		{"contains not Boolean", "class S { operator fun contains(x: Int): Int = 1 }", "'contains' must return Boolean"},
		{"plus without operator", "class V { fun plus(o: V): V = this }\nval v = V() + V()", "'operator' modifier is required on"},
		{"ambiguous augmented assignment", "class V {\n    operator fun plus(o: V): V = this\n    operator fun plusAssign(o: V) {}\n}\nvar v = V()\nv += V()", "Assignment operators ambiguity"},
		{"return outside function", "return", "'return' is not allowed here"},
		{"continue outside loop", "continue", "'break' and 'continue' are only allowed inside a loop"},
		{"parameter reassigned", "fun f(a: Int) { a = 2 }", "Val cannot be reassigned"},
		{"parameter incremented", "fun f(a: Int) { a++ }", "Val cannot be reassigned"},
		{"statements without separator", "val a = 1 val b = 2", "Parse Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := analyze(t, env, tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			var kerr errors.KotliteError
			require.ErrorAs(t, err, &kerr)
			assert.True(t, kerr.Pos().IsValid(), "error has no position: %v", err)
		})
	}
}

func TestAnalysisIsIdempotent(t *testing.T) {
	env := newEnv(t)
	inputs := []string{
		"val x: Int = 1 + 2\nval y = x * 2",
		"val a = 1\na = 2",
		"class P(val x: Int) { override fun equals(other: Any?): Boolean = other is P && other.x == x }",
		"fun f(n: Int): Int = if (n < 2) n else f(n - 1) + f(n - 2)\nf(10)",
		"class A { abstract fun f(): Int }",
	}
	for _, input := range inputs {
		first := analyze(t, env, input)
		second := analyze(t, env, input)
		if first == nil {
			assert.NoError(t, second, input)
			continue
		}
		require.Error(t, second, input)
		assert.Equal(t, first.Error(), second.Error(), input)
	}
}

func TestPrepareIsOnce(t *testing.T) {
	env := newEnv(t)
	require.NoError(t, Prepare(env))
	assert.True(t, env.IsSealed())
	assert.NotNil(t, env.Class("Throwable"))
	assert.NotNil(t, env.Class("MutableList"))
	assert.Error(t, env.Install(builtins.Numbers{}))
}
