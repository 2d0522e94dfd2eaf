package interpreter

import (
	"math"
	"strings"

	"kotlite/pkg/errors"
	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
	"kotlite/pkg/types"
)

func (it *Interpreter) evalBinary(n *parser.BinaryOpNode) (ExecResult, error) {
	switch op := n.Operator; op {
	case "&&", "||":
		ok, r, err := it.condition(n.Left)
		if abrupt(r, err) {
			return r, err
		}
		if ok == (op == "||") {
			return normal(runtime.Bool(ok)), nil
		}
		ok, r, err = it.condition(n.Right)
		if abrupt(r, err) {
			return r, err
		}
		return normal(runtime.Bool(ok)), nil

	case "?:":
		r, err := it.eval(n.Left)
		if abrupt(r, err) || !runtime.IsNull(r.Value) {
			return r, err
		}
		return it.eval(n.Right)
	}

	l, r, err := it.evalOperand(n.Left)
	if abrupt(r, err) {
		return r, err
	}
	right, rr, err := it.evalOperand(n.Right)
	if abrupt(rr, err) {
		return rr, err
	}
	it.pos = n.Pos()

	switch op := n.Operator; op {
	case "==", "!=":
		eq, err := it.Equals(l, right)
		return normal(runtime.Bool(eq == (op == "=="))), err
	case "===", "!==":
		return normal(runtime.Bool(identical(l, right) == (op == "==="))), nil
	case "in", "!in":
		b, ok := n.Binding.(*runtime.CallBinding)
		if !ok {
			return ExecResult{}, runtime.Internalf("'%s' is not bound", op)
		}
		v, err := it.callBinding(b, right, []runtime.Value{l}, n.Pos())
		if err != nil {
			return ExecResult{}, err
		}
		return normal(runtime.Bool((v == runtime.True) == (op == "in"))), nil
	case "<", ">", "<=", ">=":
		var cmp int
		if b, ok := n.Binding.(*runtime.CallBinding); ok {
			v, err := it.callBinding(b, l, []runtime.Value{right}, n.Pos())
			if err != nil {
				return ExecResult{}, err
			}
			c, ok := v.(runtime.IntValue)
			if !ok {
				return ExecResult{}, runtime.Internalf("compareTo returned %s", runtime.Describe(v))
			}
			cmp = int(c)
		} else {
			c, err := compareIntrinsic(l, right)
			if err != nil {
				return ExecResult{}, err
			}
			cmp = c
		}
		return normal(runtime.Bool(compareResult(op, cmp))), nil
	}

	if b, ok := n.Binding.(*runtime.CallBinding); ok {
		v, err := it.callBinding(b, l, []runtime.Value{right}, n.Pos())
		return normal(v), err
	}
	v, err := it.arithmetic(n.Pos(), n.Operator, l, right)
	return normal(v), err
}

// evalOperand evaluates an operand and also returns its value directly.
func (it *Interpreter) evalOperand(e parser.Expression) (runtime.Value, ExecResult, error) {
	r, err := it.eval(e)
	return r.Value, r, err
}

func compareResult(op string, cmp int) bool {
	switch op {
	case "<":
		return cmp < 0
	case ">":
		return cmp > 0
	case "<=":
		return cmp <= 0
	}
	return cmp >= 0
}

// identical is referential equality; primitives compare by value.
func identical(a, b runtime.Value) bool {
	if runtime.IsNull(a) || runtime.IsNull(b) {
		return runtime.IsNull(a) && runtime.IsNull(b)
	}
	switch a := a.(type) {
	case *runtime.ClassInstance, *runtime.LambdaValue, *runtime.NativeDelegate:
		return a == b
	}
	return primitiveEquals(a, b)
}

// --- Intrinsic arithmetic ---

// rank orders the numeric value kinds for promotion; -1 for anything else.
func rank(v runtime.Value) int {
	switch v.(type) {
	case runtime.ByteValue:
		return 0
	case runtime.IntValue:
		return 1
	case runtime.LongValue:
		return 2
	case runtime.DoubleValue:
		return 3
	}
	return -1
}

// arithmetic performs the operators the evaluator implements itself: numeric
// arithmetic with promotion, string concatenation and character offsets.
func (it *Interpreter) arithmetic(pos errors.Position, op string, l, r runtime.Value) (runtime.Value, error) {
	if s, ok := l.(runtime.StringValue); ok && op == "+" {
		rs, err := it.ToString(r)
		if err != nil {
			return nil, err
		}
		return runtime.StringValue(string(s) + rs), nil
	}
	if c, ok := l.(runtime.CharValue); ok {
		switch r := r.(type) {
		case runtime.IntValue:
			if op == "+" {
				return runtime.CharValue(int32(c) + int32(r)), nil
			}
			if op == "-" {
				return runtime.CharValue(int32(c) - int32(r)), nil
			}
		case runtime.CharValue:
			if op == "-" {
				return runtime.IntValue(int32(c) - int32(r)), nil
			}
		}
	}
	lr, rr := rank(l), rank(r)
	if lr < 0 || rr < 0 {
		return nil, runtime.Internalf("operator %s on %s and %s", op, runtime.Describe(l), runtime.Describe(r))
	}
	switch max(lr, rr, 1) {
	case 3:
		return doubleArithmetic(op, l.(runtime.NumberValue).AsDouble(), r.(runtime.NumberValue).AsDouble()), nil
	case 2:
		a, b := l.(runtime.NumberValue).AsLong(), r.(runtime.NumberValue).AsLong()
		if b == 0 && (op == "/" || op == "%") {
			return nil, it.throwAt(pos, "ArithmeticException", "/ by zero")
		}
		return runtime.LongValue(longArithmetic(op, a, b)), nil
	}
	a, b := int32(l.(runtime.NumberValue).AsLong()), int32(r.(runtime.NumberValue).AsLong())
	if b == 0 && (op == "/" || op == "%") {
		return nil, it.throwAt(pos, "ArithmeticException", "/ by zero")
	}
	return runtime.IntValue(intArithmetic(op, a, b)), nil
}

func intArithmetic(op string, a, b int32) int32 {
	switch op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		return a / b
	}
	return a % b
}

func longArithmetic(op string, a, b int64) int64 {
	switch op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		return a / b
	}
	return a % b
}

func doubleArithmetic(op string, a, b float64) runtime.Value {
	switch op {
	case "+":
		return runtime.DoubleValue(a + b)
	case "-":
		return runtime.DoubleValue(a - b)
	case "*":
		return runtime.DoubleValue(a * b)
	case "/":
		return runtime.DoubleValue(a / b)
	}
	return runtime.DoubleValue(math.Mod(a, b))
}

// compareIntrinsic orders numbers, characters, strings and booleans.
func compareIntrinsic(a, b runtime.Value) (int, error) {
	if ra, rb := rank(a), rank(b); ra >= 0 && rb >= 0 {
		if ra == 3 || rb == 3 {
			x, y := a.(runtime.NumberValue).AsDouble(), b.(runtime.NumberValue).AsDouble()
			return compareDoubles(x, y), nil
		}
		x, y := a.(runtime.NumberValue).AsLong(), b.(runtime.NumberValue).AsLong()
		return compareOrdered(x, y), nil
	}
	switch a := a.(type) {
	case runtime.CharValue:
		if b, ok := b.(runtime.CharValue); ok {
			return compareOrdered(a, b), nil
		}
	case runtime.StringValue:
		if b, ok := b.(runtime.StringValue); ok {
			return compareStrings(string(a), string(b)), nil
		}
	case runtime.BooleanValue:
		if b, ok := b.(runtime.BooleanValue); ok {
			return compareOrdered(boolRank(bool(a)), boolRank(bool(b))), nil
		}
	}
	return 0, runtime.Internalf("cannot compare %s and %s", runtime.Describe(a), runtime.Describe(b))
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func compareOrdered[T int | int64 | runtime.CharValue](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareDoubles is the total order of Double.compareTo: NaN is largest and -0.0
// is below 0.0.
func compareDoubles(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	ab, bb := math.Float64bits(a), math.Float64bits(b)
	if math.IsNaN(a) {
		ab = 0x7ff8000000000000
	}
	if math.IsNaN(b) {
		bb = 0x7ff8000000000000
	}
	return compareOrdered(int64(ab), int64(bb))
}

// compareStrings compares lexicographically by UTF-16 code unit.
func compareStrings(a, b string) int {
	if !strings.ContainsFunc(a+b, func(r rune) bool { return r >= 0xE000 }) {
		return strings.Compare(a, b)
	}
	ua, ub := runtime.UTF16(a), runtime.UTF16(b)
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			return compareOrdered(int(ua[i]), int(ub[i]))
		}
	}
	return compareOrdered(len(ua), len(ub))
}

// --- Unary operators ---

func (it *Interpreter) evalUnary(n *parser.UnaryOpNode) (ExecResult, error) {
	switch n.Operator {
	case "++", "--":
		return it.evalIncrement(n)
	}
	v, r, err := it.evalOperand(n.Operand)
	if abrupt(r, err) {
		return r, err
	}
	it.pos = n.Pos()
	if b, ok := n.Binding.(*runtime.CallBinding); ok {
		v, err := it.callBinding(b, v, nil, n.Pos())
		return normal(v), err
	}
	switch n.Operator {
	case "!":
		b, ok := v.(runtime.BooleanValue)
		if !ok {
			return ExecResult{}, runtime.Internalf("'!' on %s", runtime.Describe(v))
		}
		return normal(!b), nil
	case "!!":
		if runtime.IsNull(v) {
			return ExecResult{}, it.throwAt(n.Pos(), "NullPointerException", "Value of %s is null", n.Operand)
		}
		return normal(v), nil
	case "+":
		if b, ok := v.(runtime.ByteValue); ok && !types.IsNamed(n.ComputedType, types.ByteName) {
			return normal(runtime.IntValue(b)), nil
		}
		return normal(v), nil
	case "-":
		return normal(negate(v, types.IsNamed(n.ComputedType, types.ByteName))), nil
	}
	return ExecResult{}, runtime.Internalf("unsupported operator %s", n.Operator)
}

func negate(v runtime.Value, keepByte bool) runtime.Value {
	switch v := v.(type) {
	case runtime.ByteValue:
		if keepByte {
			return -v
		}
		return runtime.IntValue(-int32(v))
	case runtime.IntValue:
		return -v
	case runtime.LongValue:
		return -v
	case runtime.DoubleValue:
		return -v
	}
	return v
}

// step adds delta to a number or character, keeping its type.
func step(v runtime.Value, delta int) (runtime.Value, bool) {
	switch v := v.(type) {
	case runtime.ByteValue:
		return v + runtime.ByteValue(delta), true
	case runtime.IntValue:
		return v + runtime.IntValue(delta), true
	case runtime.LongValue:
		return v + runtime.LongValue(delta), true
	case runtime.DoubleValue:
		return v + runtime.DoubleValue(delta), true
	case runtime.CharValue:
		return runtime.CharValue(int32(v) + int32(delta)), true
	}
	return nil, false
}

// evalIncrement stores the stepped value back; prefix forms yield the new value and
// postfix forms the old one.
func (it *Interpreter) evalIncrement(n *parser.UnaryOpNode) (ExecResult, error) {
	target, r, err := it.resolveTarget(n.Operand)
	if abrupt(r, err) {
		return r, err
	}
	if target == nil {
		return normal(runtime.Null), nil
	}
	old, err := target.get()
	if err != nil {
		return ExecResult{}, err
	}
	delta := 1
	if n.Operator == "--" {
		delta = -1
	}
	next, ok := step(old, delta)
	if !ok {
		b, bound := n.Binding.(*runtime.CallBinding)
		if !bound {
			return ExecResult{}, runtime.Internalf("'%s' is not bound", n.Operator)
		}
		if next, err = it.callBinding(b, old, nil, n.Pos()); err != nil {
			return ExecResult{}, err
		}
	}
	if err := target.set(next); err != nil {
		return ExecResult{}, err
	}
	if n.IsPrefix {
		return normal(next), nil
	}
	return normal(old), nil
}
