// Package builtins is the standard library: core types and functions, numbers,
// text, regular expressions, collections and the exception classes, packaged as
// runtime.Modules.
package builtins

import (
	"kotlite/pkg/runtime"
)

// Standard returns the standard modules in installation order.
func Standard() []runtime.Module {
	return []runtime.Module{Core{}, Numbers{}, Text{}, Regex{}, Collections{}, Exceptions{}}
}

// ByName returns the standard module with the given name.
func ByName(name string) (runtime.Module, bool) {
	for _, m := range Standard() {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// --- Argument helpers ---
//
// The analyzer has checked every argument, so the conversions below only see
// values of the declared types.

func str(v runtime.Value) string { return string(v.(runtime.StringValue)) }

func integer(v runtime.Value) int32 { return int32(v.(runtime.NumberValue).AsLong()) }

func long(v runtime.Value) int64 { return v.(runtime.NumberValue).AsLong() }

func double(v runtime.Value) float64 { return v.(runtime.NumberValue).AsDouble() }

func boolean(v runtime.Value) bool { return v == runtime.True }

func char(v runtime.Value) runtime.CharValue { return v.(runtime.CharValue) }

// stringOr returns a string argument, or def when it was omitted.
func stringOr(v runtime.Value, def string) string {
	if v == nil {
		return def
	}
	return str(v)
}

// intOr returns an Int argument, or def when it was omitted.
func intOr(v runtime.Value, def int32) int32 {
	if v == nil {
		return def
	}
	return integer(v)
}

func listData(v runtime.Value) *runtime.ListData {
	return v.(*runtime.NativeDelegate).Value.(*runtime.ListData)
}

func setData(v runtime.Value) *runtime.SetData {
	return v.(*runtime.NativeDelegate).Value.(*runtime.SetData)
}

func mapData(v runtime.Value) *runtime.HashMap {
	return v.(*runtime.NativeDelegate).Value.(*runtime.HashMap)
}

func rangeData(v runtime.Value) *runtime.RangeData {
	return v.(*runtime.NativeDelegate).Value.(*runtime.RangeData)
}

// elements collects the elements of any iterable, script Iterables included.
func elements(ctx runtime.Invoker, v runtime.Value) ([]runtime.Value, error) {
	if nd, ok := v.(*runtime.NativeDelegate); ok {
		if l, ok := nd.Value.(*runtime.ListData); ok {
			return l.Elements, nil
		}
	}
	var out []runtime.Value
	err := ctx.Iterate(v, func(e runtime.Value) error {
		out = append(out, e)
		return nil
	})
	return out, err
}

// predicate calls a Boolean-returning lambda.
func predicate(ctx runtime.Invoker, fn runtime.Value, args ...runtime.Value) (bool, error) {
	v, err := ctx.Call(fn, args...)
	if err != nil {
		return false, err
	}
	return boolean(v), nil
}

// fixed wraps a result that cannot fail.
func fixed(f func(recv runtime.Value, args []runtime.Value) runtime.Value) runtime.NativeFunction {
	return func(_ runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return f(recv, args), nil
	}
}
