package driver

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotlite/pkg/builtins"
	"kotlite/pkg/errors"
	"kotlite/pkg/runtime"
)

func newTestEnvironment(t *testing.T, opts Options) (*Environment, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	if opts.Stdout == nil {
		opts.Stdout = &out
	}
	env, err := NewEnvironment(opts)
	require.NoError(t, err)
	return env, &out
}

func TestDefaultEnvironment(t *testing.T) {
	env, err := NewEnvironment(Options{})
	require.NoError(t, err)
	require.NoError(t, env.Prepare())
	exec := env.Execution()
	assert.True(t, exec.IsSealed())
	for _, name := range []string{"Any", "String", "Iterator", "MutableMap", "Regex", "Throwable"} {
		assert.NotNil(t, exec.Class(name), name)
	}

	res, err := env.Evaluate("defaults.kt", `emptyList<String>().firstOrNull().isNullOrEmpty() && (1..3).toList().size == 3`)
	require.NoError(t, err)
	assert.Equal(t, "true", res.Display)
}

func TestArithmeticVariables(t *testing.T) {
	env, _ := newTestEnvironment(t, Options{})
	res, err := env.Run("scenario.kt", "val x: Int = 1 + 2; val y: Int = 5 + 4 * (7 + 3) - 1; val z: Int = x * 2 + y")
	require.NoError(t, err)
	assert.Equal(t, runtime.IntValue(3), res.Variables["x"])
	assert.Equal(t, runtime.IntValue(44), res.Variables["y"])
	assert.Equal(t, runtime.IntValue(50), res.Variables["z"])
	assert.NotEmpty(t, res.RunID)
}

func TestPrintlnGoesToStdout(t *testing.T) {
	env, out := newTestEnvironment(t, Options{})
	_, err := env.Run("hello.kt", `
val name = "world"
println("Hello, $name!")
print(1 + 1)
println()
`)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!\n2\n", out.String())
}

func TestEvaluate(t *testing.T) {
	env, _ := newTestEnvironment(t, Options{})
	tests := []struct {
		expr string
		want string
	}{
		{"1 + 2 * 3", "7"},
		{`"abc".length`, "3"},
		{"listOf(3, 1, 2).sorted()", "[1, 2, 3]"},
		{"mapOf(1 to \"one\")", "{1=one}"},
		{"7 / 2.0", "3.5"},
		{"if (2 > 1) 'y' else 'n'", "y"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			res, err := env.Evaluate("<eval>", tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Display)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	env, _ := newTestEnvironment(t, Options{})
	_, err := env.Evaluate("<eval>", "1 +")
	var perr *errors.ParseError
	require.ErrorAs(t, err, &perr)

	_, err = env.Evaluate("<eval>", "undefinedName + 1")
	var serr *errors.SemanticError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Message(), "Unresolved reference: undefinedName")

	_, err = env.Evaluate("<eval>", `"x".toInt()`)
	var rerr *errors.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "NumberFormatException", rerr.ExceptionClass)
}

func TestRuntimeErrorCarriesStackTrace(t *testing.T) {
	env, _ := newTestEnvironment(t, Options{})
	_, err := env.Run("trace.kt", `
fun inner(): Int = throw IllegalArgumentException("bad")
fun outer(): Int = inner() + 1
outer()
`)
	var rerr *errors.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "IllegalArgumentException", rerr.ExceptionClass)
	assert.Equal(t, "bad", rerr.Msg)
	require.NotEmpty(t, rerr.StackTrace)
	assert.Equal(t, "inner", rerr.StackTrace[0].Function)
	assert.Equal(t, "trace.kt", rerr.Position.Source.Name)

	var buf bytes.Buffer
	errors.DisplayErrors(&buf, AsKotliteError(err))
	assert.Contains(t, buf.String(), "IllegalArgumentException")
	assert.Contains(t, buf.String(), "inner")
}

func TestMaxCallDepth(t *testing.T) {
	env, _ := newTestEnvironment(t, Options{MaxCallDepth: 50})
	_, err := env.Run("deep.kt", `
fun depth(n: Int): Int = if (n == 0) 0 else depth(n - 1) + 1
depth(100)
`)
	var rerr *errors.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "StackOverflowError", rerr.ExceptionClass)

	res, err := env.Run("shallow.kt", "fun depth(n: Int): Int = if (n == 0) 0 else depth(n - 1) + 1\ndepth(20)")
	require.NoError(t, err)
	assert.Equal(t, "20", res.Display)
}

func TestRunsDoNotShareState(t *testing.T) {
	env, _ := newTestEnvironment(t, Options{})
	src := "var counter = 0\ncounter += 1\ncounter"
	for i := 0; i < 3; i++ {
		res, err := env.Run("counter.kt", src)
		require.NoError(t, err)
		assert.Equal(t, "1", res.Display)
	}
}

func TestCompileCache(t *testing.T) {
	env, _ := newTestEnvironment(t, Options{CacheSize: 2})
	first, err := env.Compile("a.kt", "val a = 1")
	require.NoError(t, err)
	again, err := env.Compile("a.kt", "val a = 1")
	require.NoError(t, err)
	assert.Same(t, first, again)

	renamed, err := env.Compile("b.kt", "val a = 1")
	require.NoError(t, err)
	assert.NotSame(t, first, renamed)

	_, err = env.Compile("c.kt", "val a = 1")
	require.NoError(t, err)
	assert.Equal(t, 2, env.cache.Len())

	evicted, err := env.Compile("a.kt", "val a = 1")
	require.NoError(t, err)
	assert.NotSame(t, first, evicted)
}

func TestCompileCacheDisabled(t *testing.T) {
	env, _ := newTestEnvironment(t, Options{CacheSize: -1})
	first, err := env.Compile("a.kt", "val a = 1")
	require.NoError(t, err)
	again, err := env.Compile("a.kt", "val a = 1")
	require.NoError(t, err)
	assert.NotSame(t, first, again)
	assert.Equal(t, 0, env.cache.Len())
}

func TestMetrics(t *testing.T) {
	env, _ := newTestEnvironment(t, Options{})
	_, err := env.Run("ok.kt", "val a = 1")
	require.NoError(t, err)
	_, err = env.Run("ok.kt", "val a = 1")
	require.NoError(t, err)
	_, err = env.Run("bad.kt", "val a: Int = true")
	require.Error(t, err)

	families, err := env.Metrics().Registry.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			labels := []string{f.GetName()}
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			key := strings.Join(labels, ",")
			if c := m.GetCounter(); c != nil {
				counts[key] = c.GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, counts["kotlite_compile_cache_hits_total"])
	assert.Equal(t, 2.0, counts["kotlite_phases_total,phase=run"])
	assert.Equal(t, 1.0, counts["kotlite_phase_failures_total,kind=Semantic,phase=analyze"])
}

func TestInstallAfterCompileFails(t *testing.T) {
	env, _ := newTestEnvironment(t, Options{})
	require.NoError(t, env.Check("a.kt", "val a = 1"))
	err := env.Install(greeter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sealed")
}

func TestModulesByName(t *testing.T) {
	modules, err := Modules([]string{"core", "numbers", "exceptions"})
	require.NoError(t, err)
	require.Len(t, modules, 3)
	assert.Equal(t, "numbers", modules[1].Name())

	_, err = Modules([]string{"core", "network"})
	require.Error(t, err)
}

// greeter exercises every kind of registration a host module can make.
type greeter struct{}

func (greeter) Name() string { return "greeter" }

type greeting struct {
	count int
}

func (greeter) Register(b *runtime.ModuleBuilder) error {
	b.Class("class Greeter(prefix: String)", func(ctx runtime.Invoker, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return &runtime.NativeDelegate{ClassName: "Greeter", Value: &greeting{}}, nil
	}).
		Method("fun greet(name: String): String", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			g := recv.(*runtime.NativeDelegate).Value.(*greeting)
			g.count++
			return runtime.StringValue(fmt.Sprintf("hello %s #%d", args[0], g.count)), nil
		}).
		Property("val count: Int", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
			return runtime.IntValue(recv.(*runtime.NativeDelegate).Value.(*greeting).count), nil
		}, nil)

	var volume runtime.Value = runtime.IntValue(1)
	b.Property("var volume: Int", func(runtime.Invoker, runtime.Value, []runtime.Value) (runtime.Value, error) {
		return volume, nil
	}, func(_ runtime.Invoker, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		volume = args[0]
		return runtime.Unit, nil
	})
	b.Function("fun String.shout(times: Int = 1): String", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		n := 1
		if args[0] != nil {
			n = int(args[0].(runtime.IntValue))
		}
		return runtime.StringValue(strings.Repeat(strings.ToUpper(string(recv.(runtime.StringValue)))+"!", n)), nil
	})
	b.Prelude("greeter.kt", `fun welcome(name: String): String = Greeter("hi").greet(name).shout()`)
	return nil
}

func TestHostModule(t *testing.T) {
	env, _ := newTestEnvironment(t, Options{Modules: append(builtins.Standard(), greeter{})})
	res, err := env.Run("host.kt", `
val g = Greeter(">")
g.greet("a")
volume = volume + 4
"${g.greet("b")} ${g.count} $volume ${"x".shout(3)} ${welcome("c")}"
`)
	require.NoError(t, err)
	assert.Equal(t, "hello b #2 2 5 X!X!X! HELLO C #1!", res.Display)

	names := map[string]bool{}
	for _, c := range env.Execution().Classes() {
		names[c.Name] = true
	}
	assert.True(t, names["Greeter"])
	assert.True(t, names["Throwable"])
}

func TestSession(t *testing.T) {
	env, out := newTestEnvironment(t, Options{})
	s := env.NewSession()

	res, err := s.Eval(`println("declaring"); var total = 10`)
	require.NoError(t, err)
	assert.Equal(t, "", res.Display)

	_, err = s.Eval("fun bump(by: Int): Int { total += by; return total }")
	require.NoError(t, err)

	res, err = s.Eval("bump(5)")
	require.NoError(t, err)
	assert.Equal(t, "15", res.Display)

	_, err = s.Eval("bump(")
	require.Error(t, err)

	res, err = s.Eval("bump(1) + total")
	require.NoError(t, err)
	assert.Equal(t, "32", res.Display)
	assert.Equal(t, "declaring\n", out.String())

	s.Reset()
	_, err = s.Eval("total")
	require.Error(t, err)
}
