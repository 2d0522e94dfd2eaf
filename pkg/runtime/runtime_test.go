package runtime

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotlite/pkg/errors"
	"kotlite/pkg/parser"
)

// primitiveInvoker compares primitives structurally; enough for collection tests.
type primitiveInvoker struct{}

func (primitiveInvoker) Call(fn Value, args ...Value) (Value, error) { return nil, fmt.Errorf("no calls") }
func (primitiveInvoker) Equals(a, b Value) (bool, error)             { return a == b, nil }
func (primitiveInvoker) HashCode(v Value) (int32, error) {
	h, _ := PrimitiveHashCode(v)
	return h, nil
}
func (primitiveInvoker) ToString(v Value) (string, error) { return Describe(v), nil }
func (primitiveInvoker) Compare(a, b Value) (int, error)  { return 0, nil }
func (primitiveInvoker) Iterate(v Value, fn func(Value) error) error {
	return Iterate(v, fn)
}
func (primitiveInvoker) NewException(class, msg string) error {
	return fmt.Errorf("%s: %s", class, msg)
}
func (primitiveInvoker) Stdout() io.Writer                  { return io.Discard }
func (primitiveInvoker) Environment() *ExecutionEnvironment { return nil }

func TestHashMapKeepsInsertionOrder(t *testing.T) {
	ctx := primitiveInvoker{}
	m := NewHashMap()
	for i, k := range []string{"b", "a", "c"} {
		_, err := m.Put(ctx, StringValue(k), IntValue(i))
		require.NoError(t, err)
	}
	prev, err := m.Put(ctx, StringValue("a"), IntValue(10))
	require.NoError(t, err)
	assert.Equal(t, IntValue(1), prev)
	assert.Equal(t, []Value{StringValue("b"), StringValue("a"), StringValue("c")}, m.Keys())
	assert.Equal(t, []Value{IntValue(0), IntValue(10), IntValue(2)}, m.Values())

	removed, err := m.Remove(ctx, StringValue("b"))
	require.NoError(t, err)
	assert.Equal(t, IntValue(0), removed)
	assert.Equal(t, 2, m.Len())
	_, found, err := m.Get(ctx, StringValue("b"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHashMapCollidingHashes(t *testing.T) {
	ctx := primitiveInvoker{}
	m := NewHashMap()
	// "Aa" and "BB" share a JVM hash code.
	require.Equal(t, StringHashCode("Aa"), StringHashCode("BB"))
	_, err := m.Put(ctx, StringValue("Aa"), IntValue(1))
	require.NoError(t, err)
	_, err = m.Put(ctx, StringValue("BB"), IntValue(2))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
	v, _, err := m.Get(ctx, StringValue("BB"))
	require.NoError(t, err)
	assert.Equal(t, IntValue(2), v)
}

func TestRangeData(t *testing.T) {
	r := &RangeData{First: 1, Last: 10, Step: 3}
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, IntValue(7), r.At(2))
	assert.True(t, r.Contains(4))
	assert.False(t, r.Contains(5))

	down := &RangeData{First: 5, Last: 1, Step: -2}
	elems, err := Elements(&NativeDelegate{ClassName: IntRangeClass, Value: down})
	require.NoError(t, err)
	assert.Equal(t, []Value{IntValue(5), IntValue(3), IntValue(1)}, elems)

	empty := &RangeData{First: 3, Last: 1, Step: 1}
	assert.Equal(t, 0, empty.Len())
}

func TestStringHelpers(t *testing.T) {
	assert.Equal(t, int32(99162322), StringHashCode("hello"))
	assert.Equal(t, 3, StringLength("a😀"), "supplementary characters count twice")
	assert.Equal(t, "3.0", FormatDouble(3))
	assert.Equal(t, "0.1", FormatDouble(0.1))
	assert.Equal(t, "1.0E7", FormatDouble(1e7))
	assert.Equal(t, "1.0E-4", FormatDouble(0.0001))
}

func TestSymbolTableScoping(t *testing.T) {
	root := NewSymbolTable("script", parser.ScopeScript)
	require.True(t, root.DeclareProperty(&PropertyInfo{Name: "x", TransformedName: "x/1"}))
	assert.False(t, root.DeclareProperty(&PropertyInfo{Name: "x", TransformedName: "x/2"}), "duplicate in one scope")

	child := root.NewChild("if", parser.ScopeIf)
	assert.Equal(t, 1, child.Level)
	require.True(t, child.DeclareProperty(&PropertyInfo{Name: "x", TransformedName: "x/3"}), "shadowing in a nested scope")
	p, owner := child.FindProperty("x")
	assert.Equal(t, "x/3", p.TransformedName)
	assert.Same(t, child, owner)

	root.Define("x/1", IntValue(1))
	child.Define("x/3", IntValue(3))
	require.True(t, child.Assign("x/1", IntValue(10)))
	v, ok := root.Lookup("x/1")
	require.True(t, ok)
	assert.Equal(t, IntValue(10), v)
	_, ok = root.Lookup("x/3")
	assert.False(t, ok, "values never leak upward")
}

func TestCallStackDepth(t *testing.T) {
	cs := NewCallStack(2)
	fn := &FunctionDefinition{Name: "f"}
	pos := errors.Position{Line: 3, Column: 1}
	require.True(t, cs.Push(&Frame{Name: "<script>", ScopeType: parser.ScopeScript}))
	require.True(t, cs.Push(&Frame{Function: fn, Name: "f", Position: pos}))
	require.True(t, cs.Push(&Frame{ScopeType: parser.ScopeBlock}), "block frames do not count")
	require.True(t, cs.Push(&Frame{Function: fn, Name: "f", Position: pos}))
	assert.False(t, cs.Push(&Frame{Function: fn, Name: "f"}))
	assert.Equal(t, 2, cs.Depth())

	trace := cs.Trace(errors.Position{Line: 7})
	require.Len(t, trace, 3)
	assert.Equal(t, 7, trace[0].Position.Line)
	assert.Equal(t, "<script>", trace[2].Function)

	cs.Pop()
	cs.Pop()
	assert.Equal(t, 1, cs.Depth())
}

func TestDispatchTableOverrides(t *testing.T) {
	base := NewClassDefinition("Base", parser.Modifiers{"open"})
	base.AddFunction(&FunctionDefinition{Name: "greet", SlotKey: "Base.greet/0", Modifiers: parser.Modifiers{"open"},
		Native: func(Invoker, Value, []Value) (Value, error) { return StringValue("base"), nil }})
	base.BuildDispatchTable()

	derived := NewClassDefinition("Derived", nil)
	derived.SuperClass = base
	derived.SuperClassType = base.Type
	override := &FunctionDefinition{Name: "greet", SlotKey: "Base.greet/0", Modifiers: parser.Modifiers{"override"},
		Native: func(Invoker, Value, []Value) (Value, error) { return StringValue("derived"), nil }}
	derived.AddFunction(override)
	derived.BuildDispatchTable()

	assert.Same(t, override, derived.Dispatch("Base.greet/0"))
	assert.NotSame(t, override, base.Dispatch("Base.greet/0"))
	assert.True(t, derived.IsSubclassOf(base))
	assert.Len(t, derived.FindFunctions("greet"), 1)
}

type testModule struct{}

func (testModule) Name() string { return "test" }
func (testModule) Register(b *ModuleBuilder) error {
	b.Class("class Box(value: Int)", nil).
		Property("val value: Int", func(Invoker, Value, []Value) (Value, error) { return IntValue(0), nil }, nil)
	b.Function("fun twice(x: Int): Int", func(_ Invoker, _ Value, args []Value) (Value, error) {
		return args[0].(IntValue) * 2, nil
	})
	b.Prelude("box", "fun boxed(): Box = Box(1)")
	return nil
}

type brokenModule struct{}

func (brokenModule) Name() string { return "broken" }
func (brokenModule) Register(b *ModuleBuilder) error {
	b.Function("fun missingReturnType(x: Int)", func(Invoker, Value, []Value) (Value, error) { return Unit, nil })
	return nil
}

func TestExecutionEnvironmentInstall(t *testing.T) {
	env := NewExecutionEnvironment()
	require.NoError(t, env.Install(testModule{}))
	assert.Len(t, env.ClassSpecs(), 1)
	assert.Len(t, env.FunctionSpecs(), 1)
	assert.Len(t, env.Preludes(), 1)
	assert.Error(t, env.Install(testModule{}), "duplicate module")
	assert.Error(t, env.Install(brokenModule{}), "header without return type")

	env.Seal()
	assert.Error(t, env.Install(&namedModule{"late"}), "sealed environments reject modules")
}

type namedModule struct{ name string }

func (m *namedModule) Name() string                  { return m.name }
func (m *namedModule) Register(*ModuleBuilder) error { return nil }
