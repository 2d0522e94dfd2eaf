package builtins

import (
	"math"
	"strconv"

	"kotlite/pkg/runtime"
)

// Numbers declares the numeric classes, conversions, ranges and the math functions.
type Numbers struct{}

func (Numbers) Name() string { return "numbers" }

func (Numbers) Register(b *runtime.ModuleBuilder) error {
	for _, name := range []string{"Int", "Long", "Double", "Byte"} {
		b.Class("class "+name+" : Comparable<"+name+">", nil).
			Method("operator fun compareTo(other: "+name+"): Int", compareNatural).
			Method("fun toInt(): Int", fixed(toInt)).
			Method("fun toLong(): Long", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
				return runtime.LongValue(long(recv))
			})).
			Method("fun toDouble(): Double", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
				return runtime.DoubleValue(double(recv))
			})).
			Method("fun toByte(): Byte", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
				return runtime.ByteValue(int8(toInt(recv, nil).(runtime.IntValue)))
			}))
	}
	b.Class("class Char : Comparable<Char>", nil).
		Method("operator fun compareTo(other: Char): Int", compareNatural).
		Property("val code: Int", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			return runtime.IntValue(char(recv))
		}), nil)

	b.Function("fun Int.toChar(): Char", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		return runtime.CharValue(uint16(integer(recv)))
	}))
	b.Function("fun Int.toString(radix: Int): String", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return formatRadix(ctx, long(recv), integer(args[0]))
	})
	b.Function("fun Long.toString(radix: Int): String", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return formatRadix(ctx, long(recv), integer(args[0]))
	})

	b.Function("operator fun Int.rangeTo(other: Int): IntRange", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.NewRange(long(recv), long(args[0]), 1, false)
	}))
	b.Function("operator fun Int.rangeTo(other: Long): LongRange", fixed(longRange))
	b.Function("operator fun Long.rangeTo(other: Int): LongRange", fixed(longRange))
	b.Function("operator fun Long.rangeTo(other: Long): LongRange", fixed(longRange))
	b.Function("infix fun Int.until(to: Int): IntRange", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.NewRange(long(recv), long(args[0])-1, 1, false)
	}))
	b.Function("infix fun Long.until(to: Long): LongRange", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.NewRange(long(recv), long(args[0])-1, 1, true)
	}))
	b.Function("infix fun Int.downTo(to: Int): IntRange", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.NewRange(long(recv), long(args[0]), -1, false)
	}))
	b.Function("infix fun Long.downTo(to: Long): LongRange", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.NewRange(long(recv), long(args[0]), -1, true)
	}))
	b.Function("infix fun IntRange.step(step: Int): IntRange", stepRange)
	b.Function("infix fun LongRange.step(step: Long): LongRange", stepRange)

	b.Function("fun Int.coerceAtLeast(minimumValue: Int): Int", fixed(coerce(1)))
	b.Function("fun Int.coerceAtMost(maximumValue: Int): Int", fixed(coerce(-1)))
	b.Function("fun Long.coerceAtLeast(minimumValue: Long): Long", fixed(coerce(1)))
	b.Function("fun Long.coerceAtMost(maximumValue: Long): Long", fixed(coerce(-1)))
	b.Function("fun Double.coerceAtLeast(minimumValue: Double): Double", fixed(coerce(1)))
	b.Function("fun Double.coerceAtMost(maximumValue: Double): Double", fixed(coerce(-1)))
	b.Function("fun <T : Comparable<T>> T.coerceIn(minimumValue: T, maximumValue: T): T", coerceIn)

	b.Property("val Int.absoluteValue: Int", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		return absInt(integer(recv))
	}), nil)
	b.Property("val Double.absoluteValue: Double", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		return runtime.DoubleValue(math.Abs(double(recv)))
	}), nil)
	b.Function("fun abs(x: Int): Int", fixed(func(_ runtime.Value, args []runtime.Value) runtime.Value {
		return absInt(integer(args[0]))
	}))
	b.Function("fun abs(x: Long): Long", fixed(func(_ runtime.Value, args []runtime.Value) runtime.Value {
		n := long(args[0])
		if n < 0 {
			n = -n
		}
		return runtime.LongValue(n)
	}))
	b.Function("fun abs(x: Double): Double", doubleFunc(math.Abs))
	b.Function("fun min(a: Int, b: Int): Int", fixed(func(_ runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.IntValue(min(integer(args[0]), integer(args[1])))
	}))
	b.Function("fun max(a: Int, b: Int): Int", fixed(func(_ runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.IntValue(max(integer(args[0]), integer(args[1])))
	}))
	b.Function("fun min(a: Long, b: Long): Long", fixed(func(_ runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.LongValue(min(long(args[0]), long(args[1])))
	}))
	b.Function("fun max(a: Long, b: Long): Long", fixed(func(_ runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.LongValue(max(long(args[0]), long(args[1])))
	}))
	b.Function("fun min(a: Double, b: Double): Double", fixed(func(_ runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.DoubleValue(math.Min(double(args[0]), double(args[1])))
	}))
	b.Function("fun max(a: Double, b: Double): Double", fixed(func(_ runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.DoubleValue(math.Max(double(args[0]), double(args[1])))
	}))
	b.Function("fun sqrt(x: Double): Double", doubleFunc(math.Sqrt))
	b.Function("fun floor(x: Double): Double", doubleFunc(math.Floor))
	b.Function("fun ceil(x: Double): Double", doubleFunc(math.Ceil))
	b.Function("fun Double.pow(x: Double): Double", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.DoubleValue(math.Pow(double(recv), double(args[0])))
	}))
	b.Function("fun Double.pow(n: Int): Double", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.DoubleValue(math.Pow(double(recv), double(args[0])))
	}))
	b.Function("fun Double.roundToInt(): Int", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		d := double(recv)
		if math.IsNaN(d) {
			return nil, ctx.NewException("IllegalArgumentException", "Cannot round NaN value.")
		}
		return runtime.IntValue(runtime.DoubleToInt(math.Floor(d + 0.5))), nil
	})
	b.Function("fun Double.isNaN(): Boolean", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		return runtime.Bool(math.IsNaN(double(recv)))
	}))

	b.Property("val PI: Double", fixed(func(runtime.Value, []runtime.Value) runtime.Value {
		return runtime.DoubleValue(math.Pi)
	}), nil)
	b.Property("val E: Double", fixed(func(runtime.Value, []runtime.Value) runtime.Value {
		return runtime.DoubleValue(math.E)
	}), nil)
	return nil
}

// toInt narrows any number to Int with JVM semantics: integers wrap, doubles
// truncate and saturate.
func toInt(recv runtime.Value, _ []runtime.Value) runtime.Value {
	if d, ok := recv.(runtime.DoubleValue); ok {
		return runtime.IntValue(runtime.DoubleToInt(float64(d)))
	}
	return runtime.IntValue(int32(long(recv)))
}

func absInt(n int32) runtime.Value {
	if n < 0 {
		n = -n
	}
	return runtime.IntValue(n)
}

func longRange(recv runtime.Value, args []runtime.Value) runtime.Value {
	return runtime.NewRange(long(recv), long(args[0]), 1, true)
}

func stepRange(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
	r := rangeData(recv)
	s := long(args[0])
	if s <= 0 {
		return nil, runtime.Throwf(ctx, "IllegalArgumentException", "Step must be positive, was: %d.", s)
	}
	if r.Step < 0 {
		s = -s
	}
	return runtime.NewRange(r.First, r.Last, s, r.IsLong), nil
}

// coerce clamps the receiver from below (sign 1) or above (sign -1), keeping its
// numeric class.
func coerce(sign int) func(runtime.Value, []runtime.Value) runtime.Value {
	return func(recv runtime.Value, args []runtime.Value) runtime.Value {
		a, b := recv.(runtime.NumberValue).AsDouble(), args[0].(runtime.NumberValue).AsDouble()
		if (sign > 0 && a < b) || (sign < 0 && a > b) {
			return args[0]
		}
		return recv
	}
}

func coerceIn(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
	lo, hi := args[0], args[1]
	c, err := ctx.Compare(lo, hi)
	if err != nil {
		return nil, err
	}
	if c > 0 {
		return nil, ctx.NewException("IllegalArgumentException", "Cannot coerce value to an empty range.")
	}
	if c, err := ctx.Compare(recv, lo); err != nil || c < 0 {
		return lo, err
	}
	if c, err := ctx.Compare(recv, hi); err != nil || c > 0 {
		return hi, err
	}
	return recv, nil
}

func doubleFunc(f func(float64) float64) runtime.NativeFunction {
	return fixed(func(_ runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.DoubleValue(f(double(args[0])))
	})
}

func formatRadix(ctx runtime.Invoker, n int64, radix int32) (runtime.Value, error) {
	if radix < 2 || radix > 36 {
		return nil, runtime.Throwf(ctx, "IllegalArgumentException", "radix %d was not in valid range 2..36", radix)
	}
	return runtime.StringValue(strconv.FormatInt(n, int(radix))), nil
}
