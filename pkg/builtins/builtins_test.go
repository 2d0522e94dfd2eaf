package builtins_test

import (
	"bytes"
	goerrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotlite/pkg/builtins"
	"kotlite/pkg/checker"
	"kotlite/pkg/errors"
	"kotlite/pkg/interpreter"
	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
	"kotlite/pkg/source"
)

func newEnv(t *testing.T) *runtime.ExecutionEnvironment {
	t.Helper()
	env := runtime.NewExecutionEnvironment()
	require.NoError(t, env.Install(builtins.Standard()...))
	require.NoError(t, checker.Prepare(env))
	return env
}

// evalString runs a script and renders the value of its last statement.
func evalString(t *testing.T, env *runtime.ExecutionEnvironment, input string) (string, string, error) {
	t.Helper()
	script, err := parser.ParseSource(source.Named("builtins.kt", input))
	require.NoError(t, err, input)
	require.NoError(t, checker.Analyze(script, env), input)
	var out bytes.Buffer
	it, err := interpreter.New(env, interpreter.Options{Stdout: &out})
	require.NoError(t, err)
	v, err := it.Eval(script)
	if err != nil {
		return "", out.String(), err
	}
	s, err := it.ToString(v)
	return s, out.String(), err
}

type evalCase struct {
	input string
	want  string
}

func runCases(t *testing.T, cases []evalCase) {
	t.Helper()
	env := newEnv(t)
	for _, tt := range cases {
		t.Run(tt.input, func(t *testing.T) {
			got, _, err := evalString(t, env, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCore(t *testing.T) {
	runCases(t, []evalCase{
		{`5.let { it * 2 }`, "10"},
		{`"abc".run { length + 1 }`, "4"},
		{`with(mutableListOf(1)) { add(2); size }`, "2"},
		{`maxOf(3, 7) + minOf(3, 7)`, "10"},
		{`maxOf("pear", "apple")`, "pear"},
		{`var n = 0; repeat(4) { n += it }; n`, "6"},
		{`classNameOf(listOf(1)) + " " + classNameOf(null) + " " + classNameOf(IllegalStateException())`, "List Nothing IllegalStateException"},
		{`fun id(s: String?): String? = s
requireNotNull(id("x"))`, "x"},
		{`true and false or true xor true`, "false"},
		{`!true`, "false"},
		{`"a" < "b"`, "true"},
		{`"abc".compareTo("abd")`, "-1"},
		{"class A\nval a = A()\na == a && a.hashCode() == a.hashCode() && a != A()", "true"},
		{"class B(val n: Int) { override fun toString(): String = \"B($n)\" }\n\"${B(1)} \" + listOf(B(2))", "B(1) [B(2)]"},
	})
}

func TestNumbers(t *testing.T) {
	runCases(t, []evalCase{
		{`3.7.toInt()`, "3"},
		{`(-3.7).toInt()`, "-3"},
		{`(1.0 / 0.0).toInt()`, "2147483647"},
		{`3000000000L.toInt()`, "-1294967296"},
		{`300.toByte()`, "44"},
		{`65.toChar()`, "A"},
		{`'A'.code`, "65"},
		{`255.toString(16)`, "ff"},
		{`5.coerceAtLeast(10)`, "10"},
		{`15.coerceAtMost(10)`, "10"},
		{`12.coerceIn(1, 10)`, "10"},
		{`(-4).absoluteValue`, "4"},
		{`abs(-2.5)`, "2.5"},
		{`max(3L, 9L)`, "9"},
		{`sqrt(16.0)`, "4.0"},
		{`2.0.pow(10)`, "1024.0"},
		{`2.5.roundToInt()`, "3"},
		{`floor(2.7) + ceil(2.1)`, "5.0"},
		{`(1..10 step 4).toList()`, "[1, 5, 9]"},
		{`(1..4).toString()`, "1..4"},
		{`(0.0 / 0.0).isNaN()`, "true"},
		{`PI > 3.14 && E < 2.72`, "true"},
	})
}

func TestText(t *testing.T) {
	runCases(t, []evalCase{
		{`"  hi  ".trim() + "|"`, "hi|"},
		{`"Hello".uppercase() + "Hello".lowercase()`, "HELLOhello"},
		{`"straße".uppercase()`, "STRASSE"},
		{`"kotlin".capitalize()`, "Kotlin"},
		{`"abc".reversed()`, "cba"},
		{`"ab".repeat(3)`, "ababab"},
		{`"7".padStart(3, '0')`, "007"},
		{`"a,b,,c".split(",")`, "[a, b, , c]"},
		{`"one\ntwo".lines().size`, "2"},
		{`"banana".replace("an", "AN")`, "bANANa"},
		{`"banana".indexOf("na") + "banana".lastIndexOf("na")`, "6"},
		{`"banana".indexOf('n', 3)`, "4"},
		{`"hello".substring(1, 3) + "hello".substring(3)`, "ello"},
		{`"hello".startsWith("he") && "hello".endsWith("lo") && "ell" in "hello"`, "true"},
		{`"   ".isBlank() && "".isEmpty() && " ".isNotEmpty()`, "true"},
		{`val s: String? = null; s.isNullOrEmpty()`, "true"},
		{`"42".toInt() + "8".toLong()`, "50"},
		{`"x".toIntOrNull() ?: -1`, "-1"},
		{`"2.5".toDouble() * 2`, "5.0"},
		{`"abc".toList()`, "[a, b, c]"},
		{`'7'.digitToInt() + 1`, "8"},
		{`'x'.isLetter() && '3'.isDigit() && ' '.isWhitespace()`, "true"},
		{`'a'.uppercaseChar()`, "A"},
		{`"😀a".length`, "3"},
	})
}

func TestRegex(t *testing.T) {
	runCases(t, []evalCase{
		{`Regex("[0-9]+").matches("123")`, "true"},
		{`Regex("[0-9]+").matches("123a")`, "false"},
		{`Regex("\\d").containsMatchIn("a1")`, "true"},
		{`Regex("\\d+").findAll("a1b22c333").map { it.value }`, "[1, 22, 333]"},
		{`Regex("(\\w)(\\d)").find("xx a1")?.groupValues`, "[a1, a, 1]"},
		{`Regex("b+").find("abbbc")?.range`, "1..3"},
		{`Regex("\\s+").replace("a  b   c", " ")`, "a b c"},
		{`"a1b2c".split(Regex("\\d"))`, "[a, b, c]"},
		{`"2024-01-02".matches(Regex("\\d{4}-\\d{2}-\\d{2}"))`, "true"},
		{`"x" + "aXbX".replace("X".toRegex(), "-")`, "xa-b-"},
		{`Regex("a").find("bbb")`, "null"},
		{`Regex("(?<year>\\d{4})").pattern`, "(?<year>\\d{4})"},
		{`val m = Regex("\\d").find("1a2")!!; m.next()?.value`, "2"},
	})
}

func TestCollections(t *testing.T) {
	runCases(t, []evalCase{
		{`listOf(1, 2, 3).map { it * 2 }.filter { it > 2 }`, "[4, 6]"},
		{`listOf(1, 2, 3, 4).fold(0) { acc, x -> acc + x }`, "10"},
		{`listOf(1, 2, 3).reduce { a, b -> a * b }`, "6"},
		{`listOf(3, 1, 2).sorted().toString() + listOf(3, 1, 2).sortedDescending()`, "[1, 2, 3][3, 2, 1]"},
		{`listOf("bb", "a", "ccc").sortedBy { it.length }`, "[a, bb, ccc]"},
		{`listOf(1, 2, 3).joinToString("-", "<", ">")`, "<1-2-3>"},
		{`listOf(1, 2).joinToString(transform = { "n$it" })`, "n1, n2"},
		{`listOf(1, 2, 3).any { it > 2 } && listOf(1, 2).all { it > 0 } && listOf(1).none { it > 5 }`, "true"},
		{`listOf(1, 2, 3).count { it % 2 == 1 }`, "2"},
		{`listOf(1, 2, 3).sum() + listOf(1L).sum()`, "7"},
		{`listOf("a", "bb").sumOf { it.length }`, "3"},
		{`listOf(4, 9, 2).maxOrNull()`, "9"},
		{`emptyList<Int>().minOrNull()`, "null"},
		{`listOf(1, 2, 3).first() + listOf(1, 2, 3).last()`, "4"},
		{`listOf(1, 2, 3).firstOrNull { it > 1 }`, "2"},
		{`listOf(1, 2, 3).find { it > 5 }`, "null"},
		{`listOf(1, 2, 3, 4).take(2).toString() + listOf(1, 2, 3, 4).drop(3)`, "[1, 2][4]"},
		{`listOf(1, 1, 2, 1).distinct()`, "[1, 2]"},
		{`listOf(1, 2, 3).reversed()`, "[3, 2, 1]"},
		{`listOf("a", "bb", "cc").groupBy { it.length }`, "{1=[a], 2=[bb, cc]}"},
		{`listOf("a", "bb").associateWith { it.length }`, "{a=1, bb=2}"},
		{`listOf(1, 2).zip(listOf("a", "b"))`, "[(1, a), (2, b)]"},
		{`listOf(1, 2).indices`, "0..1"},
		{`listOf(1, 2, 3).lastIndex`, "2"},
		{`listOf(1, 2, 3, 4).subList(1, 3)`, "[2, 3]"},
		{`listOf(5, 6).indexOf(6)`, "1"},
		{`val l = mutableListOf(1, 2); l.add(0, 9); l[1] = 7; l.removeAt(2); l += 4; l`, "[9, 7, 4]"},
		{`val l = mutableListOf(1, 2, 1); l.remove(1); l`, "[2, 1]"},
		{`val s = mutableSetOf(1, 2); s.add(2); s.add(3); s`, "[1, 2, 3]"},
		{`setOf(1, 2, 2, 3).size`, "3"},
		{`3 in setOf(1, 2, 3)`, "true"},
		{`val m = mutableMapOf("a" to 1); m["b"] = 2; m.put("a", 5); m`, "{a=5, b=2}"},
		{`mapOf(1 to "x").getOrDefault(2, "d")`, "d"},
		{`mapOf("k" to 1).containsKey("k") && "k" in mapOf("k" to 1) && mapOf("k" to 1).containsValue(1)`, "true"},
		{`mapOf(1 to 2, 3 to 4).keys.toString() + mapOf(1 to 2, 3 to 4).values`, "[1, 3][2, 4]"},
		{`val sb = mutableListOf<String>(); mapOf("a" to 1, "b" to 2).forEach { k, v -> sb.add("$k$v") }; sb`, "[a1, b2]"},
		{`mapOf("a" to 1).mapValues { k, v -> k + v }`, "{a=a1}"},
		{`mapOf(1 to "a").toList()`, "[(1, a)]"},
		{`val m = mutableMapOf<String, Int>(); m.getOrPut("x") { 3 }; m.getOrPut("x") { 4 }`, "3"},
		{`val p = 1 to "one"; "${p.first} ${p.second} $p"`, "1 one (1, one)"},
		{`Pair("a", 2).second`, "2"},
		{`var seen = ""; listOf("x", "y").forEachIndexed { i, s -> seen += "$i$s" }; seen`, "0x1y"},
		{`listOf(10, 20).mapIndexed { i, x -> i + x }`, "[10, 21]"},
		{`(1..3).toSet().toMutableList()`, "[1, 2, 3]"},
		{`listOf(1, 2) + 3`, "[1, 2, 3]"},
	})
}

func TestExceptionsFromBuiltins(t *testing.T) {
	tests := []struct {
		input string
		class string
		msg   string
	}{
		{`listOf(1, 2)[5]`, "IndexOutOfBoundsException", "Index 5 out of bounds for length 2"},
		{`"abc"[3]`, "IndexOutOfBoundsException", ""},
		{`"abc".toInt()`, "NumberFormatException", `For input string: "abc"`},
		{`emptyList<Int>().first()`, "NoSuchElementException", ""},
		{`listOf<Int>().reduce { a, b -> a + b }`, "UnsupportedOperationException", ""},
		{`require(false) { "must hold" }`, "IllegalArgumentException", "must hold"},
		{`check(1 > 2)`, "IllegalStateException", "Check failed."},
		{`error("custom")`, "IllegalStateException", "custom"},
		{`TODO("later")`, "NotImplementedError", "An operation is not implemented: later"},
		{`Regex("(")`, "IllegalArgumentException", ""},
		{`(1..5) step 0`, "IllegalArgumentException", "Step must be positive"},
		{`5.coerceIn(10, 1)`, "IllegalArgumentException", "empty range"},
		{`listOf(1).iterator().apply { next() }.next()`, "NoSuchElementException", ""},
	}
	env := newEnv(t)
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, _, err := evalString(t, env, tt.input)
			var rerr *errors.RuntimeError
			require.True(t, goerrors.As(err, &rerr), "expected a runtime error, got %v", err)
			assert.Equal(t, tt.class, rerr.ExceptionClass)
			assert.Contains(t, rerr.Msg, tt.msg)
		})
	}
}

func TestThrowableMembers(t *testing.T) {
	got, _, err := evalString(t, newEnv(t), `
fun fail(): Nothing = throw IllegalStateException("deep")
val e = try { fail() } catch (e: Exception) { e }
"${e} | ${e.stackTraceToString().lines().first()} | ${Exception().toString()}"
`)
	require.NoError(t, err)
	assert.Equal(t, "IllegalStateException: deep | IllegalStateException: deep | Exception", got)
}

func TestPrint(t *testing.T) {
	_, out, err := evalString(t, newEnv(t), `print("a"); print(1.5); println(); println('c'); println(mapOf(1 to null))`)
	require.NoError(t, err)
	assert.Equal(t, "a1.5\nc\n{1=null}\n", out)
}

func TestByName(t *testing.T) {
	for _, m := range builtins.Standard() {
		found, ok := builtins.ByName(m.Name())
		require.True(t, ok, m.Name())
		assert.Equal(t, m.Name(), found.Name())
	}
	_, ok := builtins.ByName("io")
	assert.False(t, ok)
}
