package runtime

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"kotlite/pkg/parser"
)

// Value is a tagged runtime value. The concrete Go type is the tag.
type Value interface {
	// TypeName is the name of the value's runtime class.
	TypeName() string
}

// --- Primitive values ---

type IntValue int32
type LongValue int64
type DoubleValue float64
type BooleanValue bool

// CharValue is one UTF-16 code unit.
type CharValue uint16
type ByteValue int8

// StringValue holds UTF-8 text. Lengths and indices are counted in UTF-16 code units.
type StringValue string

type NullValue struct{}
type UnitValue struct{}

var (
	Null  Value = NullValue{}
	Unit  Value = UnitValue{}
	True  Value = BooleanValue(true)
	False Value = BooleanValue(false)
)

func (IntValue) TypeName() string     { return "Int" }
func (LongValue) TypeName() string    { return "Long" }
func (DoubleValue) TypeName() string  { return "Double" }
func (BooleanValue) TypeName() string { return "Boolean" }
func (CharValue) TypeName() string    { return "Char" }
func (ByteValue) TypeName() string    { return "Byte" }
func (StringValue) TypeName() string  { return "String" }
func (NullValue) TypeName() string    { return "Nothing" }
func (UnitValue) TypeName() string    { return "Unit" }

// Bool wraps a Go bool.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// IsNull reports whether v is the null value.
func IsNull(v Value) bool {
	_, ok := v.(NullValue)
	return v == nil || ok
}

// --- NumberValue capability ---

// NumberValue is implemented by the numeric primitives.
type NumberValue interface {
	Value
	AsLong() int64
	AsDouble() float64
}

func (v IntValue) AsLong() int64        { return int64(v) }
func (v IntValue) AsDouble() float64    { return float64(v) }
func (v LongValue) AsLong() int64       { return int64(v) }
func (v LongValue) AsDouble() float64   { return float64(v) }
func (v DoubleValue) AsLong() int64     { return doubleToLong(float64(v)) }
func (v DoubleValue) AsDouble() float64 { return float64(v) }
func (v ByteValue) AsLong() int64       { return int64(v) }
func (v ByteValue) AsDouble() float64   { return float64(v) }

// doubleToLong truncates like the JVM: NaN becomes 0, out-of-range values saturate.
func doubleToLong(d float64) int64 {
	switch {
	case math.IsNaN(d):
		return 0
	case d >= math.MaxInt64:
		return math.MaxInt64
	case d <= math.MinInt64:
		return math.MinInt64
	}
	return int64(d)
}

// DoubleToInt truncates like the JVM.
func DoubleToInt(d float64) int32 {
	switch {
	case math.IsNaN(d):
		return 0
	case d >= math.MaxInt32:
		return math.MaxInt32
	case d <= math.MinInt32:
		return math.MinInt32
	}
	return int32(d)
}

// --- Objects ---

// ClassInstance is an instance of a script class.
type ClassInstance struct {
	Class  *ClassDefinition
	Fields map[string]Value
	// ID is the identity hash.
	ID int32
	// StackTrace is recorded when a Throwable instance is thrown.
	StackTrace []StackFrameInfo
}

func (ci *ClassInstance) TypeName() string { return ci.Class.Name }

// LambdaValue is a closure over a lambda literal or a function declaration.
type LambdaValue struct {
	Lambda   *parser.LambdaLiteralNode
	Function *FunctionDefinition
	Closure  *SymbolTable
}

func (*LambdaValue) TypeName() string { return "Function" }

// NativeDelegate wraps a Go value backing a library class: lists, sets, maps,
// ranges, regexes.
type NativeDelegate struct {
	ClassName string
	Value     interface{}
}

func (nd *NativeDelegate) TypeName() string { return nd.ClassName }

// --- Formatting ---

// FormatDouble renders a Double the way the JVM does for common magnitudes.
func FormatDouble(d float64) string {
	switch {
	case math.IsNaN(d):
		return "NaN"
	case math.IsInf(d, 1):
		return "Infinity"
	case math.IsInf(d, -1):
		return "-Infinity"
	case d == math.Trunc(d) && math.Abs(d) < 1e7:
		return strconv.FormatFloat(d, 'f', 1, 64)
	}
	abs := math.Abs(d)
	if abs >= 1e-3 && abs < 1e7 {
		return strconv.FormatFloat(d, 'f', -1, 64)
	}
	s := strconv.FormatFloat(d, 'E', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	neg := strings.HasPrefix(exp, "-")
	exp = strings.TrimLeft(strings.TrimLeft(exp, "+-"), "0")
	if neg {
		exp = "-" + exp
	}
	return mantissa + "E" + exp
}

// FormatPrimitive renders primitive values. ok is false for objects.
func FormatPrimitive(v Value) (s string, ok bool) {
	switch v := v.(type) {
	case IntValue:
		return strconv.FormatInt(int64(v), 10), true
	case LongValue:
		return strconv.FormatInt(int64(v), 10), true
	case ByteValue:
		return strconv.FormatInt(int64(v), 10), true
	case DoubleValue:
		return FormatDouble(float64(v)), true
	case BooleanValue:
		return strconv.FormatBool(bool(v)), true
	case CharValue:
		return string(utf16.Decode([]uint16{uint16(v)})), true
	case StringValue:
		return string(v), true
	case NullValue:
		return "null", true
	case UnitValue:
		return "kotlin.Unit", true
	case nil:
		return "null", true
	}
	return "", false
}

// --- UTF-16 helpers ---

// UTF16 returns the code units of s.
func UTF16(s string) []uint16 { return utf16.Encode([]rune(s)) }

// FromUTF16 builds a string from code units; lone surrogates become U+FFFD.
func FromUTF16(units []uint16) string { return string(utf16.Decode(units)) }

// StringLength is the length in UTF-16 code units.
func StringLength(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// StringHashCode is the JVM String.hashCode.
func StringHashCode(s string) int32 {
	var h int32
	for _, u := range UTF16(s) {
		h = 31*h + int32(u)
	}
	return h
}

// PrimitiveHashCode is the JVM hashCode of boxed primitives.
func PrimitiveHashCode(v Value) (int32, bool) {
	switch v := v.(type) {
	case IntValue:
		return int32(v), true
	case LongValue:
		return int32(int64(v) ^ int64(uint64(v)>>32)), true
	case ByteValue:
		return int32(v), true
	case CharValue:
		return int32(v), true
	case DoubleValue:
		bits := math.Float64bits(float64(v))
		if math.IsNaN(float64(v)) {
			bits = 0x7ff8000000000000
		}
		return int32(bits ^ (bits >> 32)), true
	case BooleanValue:
		if v {
			return 1231, true
		}
		return 1237, true
	case StringValue:
		return StringHashCode(string(v)), true
	case NullValue, nil:
		return 0, true
	case UnitValue:
		return 0, true
	}
	return 0, false
}

// Describe renders a value for internal diagnostics.
func Describe(v Value) string {
	if s, ok := FormatPrimitive(v); ok {
		return s
	}
	switch v := v.(type) {
	case *ClassInstance:
		return fmt.Sprintf("%s@%x", v.Class.Name, v.ID)
	case *LambdaValue:
		return "(lambda)"
	case *NativeDelegate:
		return fmt.Sprintf("%s(%v)", v.ClassName, v.Value)
	}
	return fmt.Sprintf("%v", v)
}
