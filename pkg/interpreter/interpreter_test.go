package interpreter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotlite/pkg/builtins"
	"kotlite/pkg/checker"
	"kotlite/pkg/errors"
	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
	"kotlite/pkg/source"
)

type run struct {
	value     runtime.Value
	display   string
	output    string
	variables map[string]runtime.Value
}

func newEnv(t *testing.T) *runtime.ExecutionEnvironment {
	t.Helper()
	env := runtime.NewExecutionEnvironment()
	require.NoError(t, env.Install(builtins.Standard()...))
	require.NoError(t, checker.Prepare(env))
	return env
}

func eval(t *testing.T, env *runtime.ExecutionEnvironment, input string) (*run, error) {
	t.Helper()
	script, err := parser.ParseSource(source.Named("test.kt", input))
	require.NoError(t, err)
	require.NoError(t, checker.Analyze(script, env))
	var out bytes.Buffer
	it, err := New(env, Options{Stdout: &out})
	require.NoError(t, err)
	v, err := it.Eval(script)
	if err != nil {
		return &run{output: out.String()}, err
	}
	display, err := it.ToString(v)
	require.NoError(t, err)
	return &run{value: v, display: display, output: out.String(), variables: it.Variables()}, nil
}

func mustEval(t *testing.T, input string) *run {
	t.Helper()
	r, err := eval(t, newEnv(t), input)
	require.NoError(t, err)
	return r
}

func TestArithmeticScenario(t *testing.T) {
	r := mustEval(t, "val x: Int = 1 + 2; val y: Int = 5 + 4 * (7 + 3) - 1; val z: Int = x * 2 + y")
	assert.Equal(t, runtime.IntValue(3), r.variables["x"])
	assert.Equal(t, runtime.IntValue(44), r.variables["y"])
	assert.Equal(t, runtime.IntValue(50), r.variables["z"])
}

func TestMemoizedFibonacci(t *testing.T) {
	r := mustEval(t, `
val cache = mutableMapOf<Int, Long>()
fun fib(n: Int): Long {
    if (n <= 2) return 1L
    return cache.getOrPut(n) { fib(n - 1) + fib(n - 2) }
}
fib(19)
`)
	assert.Equal(t, runtime.LongValue(4181), r.value)
}

func TestEqualKeysCoalesce(t *testing.T) {
	r := mustEval(t, `
class Point(val x: Int, val y: Int) {
    override fun equals(other: Any?): Boolean = other is Point && other.x == x && other.y == y
    override fun hashCode(): Int = 31 * x + y
}
val m = mutableMapOf<Point, Int>()
m[Point(1, 2)] = 1
m[Point(1, 2)] = m[Point(1, 2)]!! + 10
m[Point(2, 1)] = 5
"${m.size} ${m[Point(1, 2)]} ${Point(1, 2) == Point(1, 2)} ${Point(1, 2) === Point(1, 2)}"
`)
	assert.Equal(t, "2 11 true false", r.display)
}

func TestEvaluation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"int overflow wraps", "2147483647 + 1", "-2147483648"},
		{"long arithmetic", "3000000000L * 2", "6000000000"},
		{"integer division", "-7 / 2", "-3"},
		{"remainder sign", "-7 % 3", "-1"},
		{"double formatting", "1.0 / 4", "0.25"},
		{"whole double", "2.0 * 3", "6.0"},
		{"char arithmetic", "'a' + 2", "c"},
		{"string concatenation", `"n=" + 1 + true`, "n=1true"},
		{"template", `val a = 2; "${a * 3}$a"`, "62"},
		{"compound assignment", "var a = 5; a -= 2; a *= 4; a", "12"},
		{"postfix and prefix", "var a = 1; val b = a++ + ++a; \"$a $b\"", "3 4"},
		{"short circuit", "var hits = 0; fun hit(): Boolean { hits++; return true }; false && hit(); true || hit(); hits", "0"},
		{"elvis", "val s: String? = null; s?.length ?: -1", "-1"},
		{"safe call chain", `val s: String? = "abc"; s?.uppercase()?.length`, "3"},
		{"when subject", `fun f(x: Any): String = when (x) { is Int -> "int"; is String -> "str"; else -> "other" }; f(1) + f("a") + f(2.0)`, "intstrother"},
		{"if expression", "val a = 3; if (a > 2) \"big\" else \"small\"", "big"},
		{"while loop", "var i = 0; var s = 0; while (i < 5) { s += i; i++ }; s", "10"},
		{"do while", "var i = 10; do { i++ } while (i < 5); i", "11"},
		{"labeled style break and continue", "var s = 0; for (i in 1..10) { if (i % 2 == 0) continue; if (i > 7) break; s += i }; s", "16"},
		{"downTo step", "(10 downTo 1 step 3).toList()", "[10, 7, 4, 1]"},
		{"until", "(0 until 3).map { it * it }", "[0, 1, 4]"},
		{"closure captures", "fun adder(n: Int): (Int) -> Int = { it + n }; val add5 = adder(5); add5(10)", "15"},
		{"closure mutates", "var c = 0; val inc = { c++ }; inc(); inc(); c", "2"},
		{"default arguments", "fun f(a: Int, b: Int = a * 2): Int = a + b; f(3)", "9"},
		{"named arguments", "fun f(a: Int, b: Int): Int = a - b; f(b = 1, a = 10)", "9"},
		{"vararg", "fun count(vararg xs: String): Int = xs.size; count(\"a\", \"b\", \"c\")", "3"},
		{"extension function", "fun Int.squared(): Int = this * this; 7.squared()", "49"},
		{"apply and also", "val l = mutableListOf<Int>().apply { add(1); add(2) }.also { it.add(3) }; l", "[1, 2, 3]"},
		{"is smart cast", "val a: Any = \"hello\"; if (a is String) a.length else 0", "5"},
		{"as cast", "val a: Any = 42; (a as Int) + 1", "43"},
		{"safe cast", "val a: Any = 42; (a as? String) ?: \"none\"", "none"},
		{"string index", `"kotlin"[2]`, "t"},
		{"ranges contain", "5 in 1..10 && 11 !in 1..10", "true"},
	}
	env := newEnv(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := eval(t, env, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.display)
		})
	}
}

func TestClasses(t *testing.T) {
	r := mustEval(t, `
interface Shape {
    fun area(): Double
    fun describe(): String
    fun name(): String
}

abstract class Base(val label: String) : Shape {
    override fun describe(): String = "${name()} with area ${area()}"
    override fun name(): String = label
}

open class Rect(val w: Double, val h: Double) : Base("rect") {
    override fun area(): Double = w * h
}

class Square(side: Double) : Rect(side, side) {
    override fun name(): String = "square(" + super.name() + ")"
}

val shapes: List<Shape> = listOf(Rect(2.0, 3.0), Square(2.0))
shapes.map { it.describe() }.joinToString("; ")
`)
	assert.Equal(t, "rect with area 6.0; square(rect) with area 4.0", r.display)
}

func TestInitializerOrder(t *testing.T) {
	r := mustEval(t, `
val log = mutableListOf<String>()
open class A(val x: Int) {
    init { log.add("A.init x=$x") }
    val y = x + 1
    init { log.add("A.init2 y=$y") }
}
class B(x: Int, val z: Int = x * 10) : A(x) {
    init { log.add("B.init z=$z") }
}
B(2)
log.joinToString(" | ")
`)
	assert.Equal(t, "A.init x=2 | A.init2 y=3 | B.init z=20", r.display)
}

func TestDynamicDispatch(t *testing.T) {
	r := mustEval(t, `
open class Animal { open fun sound(): String = "..." }
class Dog : Animal() { override fun sound(): String = "woof" }
fun speak(a: Animal): String = a.sound()
speak(Dog()) + speak(Animal())
`)
	assert.Equal(t, "woof...", r.display)
}

func TestGenerics(t *testing.T) {
	r := mustEval(t, `
class Stack<T> {
    private val items = mutableListOf<T>()
    fun push(item: T) { items.add(item) }
    fun pop(): T? = if (items.isEmpty()) null else items.removeAt(items.size - 1)
    fun size(): Int = items.size
}
val s = Stack<String>()
s.push("a")
s.push("b")
"${s.size()} ${s.pop()} ${s.pop()} ${s.pop()}"
`)
	assert.Equal(t, "2 b a null", r.display)
}

func TestPrintln(t *testing.T) {
	r := mustEval(t, `
println("a")
print(1)
print(' ')
println(listOf(1, 2))
println(null)
`)
	assert.Equal(t, "a\n1 [1, 2]\nnull\n", r.output)
}

func TestExceptions(t *testing.T) {
	r := mustEval(t, `
class ValidationError(val field: String) : IllegalArgumentException("invalid $field")

fun validate(name: String): String {
    if (name.isBlank()) throw ValidationError("name")
    return name
}

val results = mutableListOf<String>()
for (input in listOf("ok", " ")) {
    try {
        results.add(validate(input))
    } catch (e: ValidationError) {
        results.add("${e.field}: ${e.message}")
    } finally {
        results.add("done")
    }
}
val npe = try { val s: String? = null; s!!.length; "no" } catch (e: NullPointerException) { "npe" }
val wrapped = try { error("inner") } catch (e: Exception) { RuntimeException("outer", e).cause?.message }
"$results $npe $wrapped"
`)
	assert.Equal(t, "[ok, done, name: invalid name, done] npe inner", r.display)
}

func TestUncaughtException(t *testing.T) {
	_, err := eval(t, newEnv(t), `
fun divide(a: Int, b: Int): Int = a / b
fun compute(): Int = divide(1, 0)
compute()
`)
	var rerr *errors.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "ArithmeticException", rerr.ExceptionClass)
	assert.Equal(t, "/ by zero", rerr.Msg)
	require.GreaterOrEqual(t, len(rerr.StackTrace), 3)
	assert.Equal(t, "divide", rerr.StackTrace[0].Function)
	assert.Equal(t, "compute", rerr.StackTrace[1].Function)
	assert.Equal(t, 2, rerr.Position.Line)
}

func TestStackOverflow(t *testing.T) {
	env := newEnv(t)
	script, err := parser.ParseSource(source.Named("deep.kt", "fun f(n: Int): Int = f(n + 1)\nf(0)"))
	require.NoError(t, err)
	require.NoError(t, checker.Analyze(script, env))
	it, err := New(env, Options{MaxCallDepth: 64})
	require.NoError(t, err)
	_, err = it.Eval(script)
	var rerr *errors.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "StackOverflowError", rerr.ExceptionClass)

	r, err := eval(t, env, `
fun f(n: Int): Int = f(n + 1)
try { f(0) } catch (e: StackOverflowError) { -1 }
`)
	require.NoError(t, err)
	assert.Equal(t, "-1", r.display)
}

func TestScriptIterable(t *testing.T) {
	r := mustEval(t, `
class Countdown(val from: Int) : Iterable<Int> {
    override fun iterator(): Iterator<Int> = countdownFrom(from)
}
class CountdownIterator(var current: Int) : Iterator<Int> {
    override fun hasNext(): Boolean = current > 0
    override fun next(): Int = current--
}
fun countdownFrom(from: Int): Iterator<Int> = CountdownIterator(from)

val seen = mutableListOf<Int>()
for (i in Countdown(3)) seen.add(i)
"$seen ${Countdown(4).map { it * 2 }} ${Countdown(5).sum()}"
`)
	assert.Equal(t, "[3, 2, 1] [8, 6, 4, 2] 15", r.display)
}

func TestNullSafetyAtRuntime(t *testing.T) {
	_, err := eval(t, newEnv(t), "val s: String? = null\ns!!.length")
	var rerr *errors.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "NullPointerException", rerr.ExceptionClass)
}

func TestPreludesRunPerInterpreter(t *testing.T) {
	env := newEnv(t)
	for i := 0; i < 2; i++ {
		r, err := eval(t, env, `IllegalStateException("x").toString()`)
		require.NoError(t, err)
		assert.Equal(t, "IllegalStateException: x", r.display)
	}
}

func TestNewRequiresPreparedEnvironment(t *testing.T) {
	_, err := New(runtime.NewExecutionEnvironment(), Options{})
	assert.Error(t, err)
}
