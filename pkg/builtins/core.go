package builtins

import (
	"fmt"

	"kotlite/pkg/errors"
	"kotlite/pkg/runtime"
)

// Core declares the classes every script depends on, console output, preconditions
// and the scope functions.
type Core struct{}

func (Core) Name() string { return "core" }

func (Core) Register(b *runtime.ModuleBuilder) error {
	b.Class("open class Any", nil).
		Method("open fun equals(other: Any?): Boolean", anyEquals).
		Method("open fun hashCode(): Int", anyHashCode).
		Method("open fun toString(): String", anyToString)
	b.Class("class Unit", nil)
	b.Class("class Nothing", nil)
	b.Class("interface Comparable<in T>", nil).
		Method("operator fun compareTo(other: T): Int", nil)

	b.Class("class Boolean : Comparable<Boolean>", nil).
		Method("operator fun compareTo(other: Boolean): Int", compareNatural).
		Method("operator fun not(): Boolean", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			return runtime.Bool(!boolean(recv))
		})).
		Method("infix fun and(other: Boolean): Boolean", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
			return runtime.Bool(boolean(recv) && boolean(args[0]))
		})).
		Method("infix fun or(other: Boolean): Boolean", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
			return runtime.Bool(boolean(recv) || boolean(args[0]))
		})).
		Method("infix fun xor(other: Boolean): Boolean", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
			return runtime.Bool(boolean(recv) != boolean(args[0]))
		}))

	b.Class("class String : Comparable<String>", nil).
		Property("val length: Int", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			return runtime.IntValue(runtime.StringLength(str(recv)))
		}), nil).
		Method("operator fun compareTo(other: String): Int", compareNatural).
		Method("operator fun get(index: Int): Char", stringGet).
		Method("operator fun plus(other: Any?): String", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			s, err := ctx.ToString(args[0])
			return runtime.StringValue(str(recv) + s), err
		})

	b.Function("fun println(): Unit", func(ctx runtime.Invoker, _ runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		_, err := fmt.Fprintln(ctx.Stdout())
		return runtime.Unit, err
	})
	b.Function("fun println(message: Any?): Unit", printer("\n"))
	b.Function("fun print(message: Any?): Unit", printer(""))

	b.Function("fun error(message: Any): Nothing", func(ctx runtime.Invoker, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		s, err := ctx.ToString(args[0])
		if err != nil {
			return nil, err
		}
		return nil, ctx.NewException("IllegalStateException", s)
	})
	b.Function("fun require(value: Boolean): Unit", precondition("IllegalArgumentException", "Failed requirement."))
	b.Function("fun require(value: Boolean, lazyMessage: () -> Any): Unit", precondition("IllegalArgumentException", ""))
	b.Function("fun check(value: Boolean): Unit", precondition("IllegalStateException", "Check failed."))
	b.Function("fun check(value: Boolean, lazyMessage: () -> Any): Unit", precondition("IllegalStateException", ""))
	b.Function("fun <T : Any> requireNotNull(value: T?): T", func(ctx runtime.Invoker, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		if runtime.IsNull(args[0]) {
			return nil, ctx.NewException("IllegalArgumentException", "Required value was null.")
		}
		return args[0], nil
	})
	b.Function("fun <T : Any> checkNotNull(value: T?): T", func(ctx runtime.Invoker, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		if runtime.IsNull(args[0]) {
			return nil, ctx.NewException("IllegalStateException", "Required value was null.")
		}
		return args[0], nil
	})

	b.Function("fun repeat(times: Int, action: (Int) -> Unit): Unit", func(ctx runtime.Invoker, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		for i := int32(0); i < integer(args[0]); i++ {
			if _, err := ctx.Call(args[1], runtime.IntValue(i)); err != nil {
				return nil, err
			}
		}
		return runtime.Unit, nil
	})

	b.Function("fun <T, R> T.let(block: (T) -> R): R", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return ctx.Call(args[0], recv)
	})
	b.Function("fun <T, R> T.run(block: T.() -> R): R", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return ctx.Call(args[0], recv)
	})
	b.Function("fun <T> T.also(block: (T) -> Unit): T", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		_, err := ctx.Call(args[0], recv)
		return recv, err
	})
	b.Function("fun <T> T.apply(block: T.() -> Unit): T", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		_, err := ctx.Call(args[0], recv)
		return recv, err
	})
	b.Function("fun <T, R> with(receiver: T, block: T.() -> R): R", func(ctx runtime.Invoker, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return ctx.Call(args[1], args[0])
	})
	b.Function("fun <T : Comparable<T>> maxOf(a: T, b: T): T", func(ctx runtime.Invoker, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		c, err := ctx.Compare(args[0], args[1])
		if c >= 0 {
			return args[0], err
		}
		return args[1], err
	})
	b.Function("fun <T : Comparable<T>> minOf(a: T, b: T): T", func(ctx runtime.Invoker, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		c, err := ctx.Compare(args[0], args[1])
		if c <= 0 {
			return args[0], err
		}
		return args[1], err
	})

	b.Function("fun classNameOf(value: Any?): String", fixed(func(_ runtime.Value, args []runtime.Value) runtime.Value {
		if runtime.IsNull(args[0]) {
			return runtime.StringValue("Nothing")
		}
		return runtime.StringValue(args[0].TypeName())
	}))
	b.Function("fun stackTraceOf(throwable: Any): String", stackTraceOf)
	return nil
}

func anyEquals(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
	if _, ok := recv.(*runtime.ClassInstance); ok {
		return runtime.Bool(recv == args[0]), nil
	}
	eq, err := ctx.Equals(recv, args[0])
	return runtime.Bool(eq), err
}

func anyHashCode(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
	if inst, ok := recv.(*runtime.ClassInstance); ok {
		return runtime.IntValue(inst.ID), nil
	}
	h, err := ctx.HashCode(recv)
	return runtime.IntValue(h), err
}

func anyToString(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
	if inst, ok := recv.(*runtime.ClassInstance); ok {
		h, err := ctx.HashCode(inst)
		if err != nil {
			return nil, err
		}
		return runtime.StringValue(fmt.Sprintf("%s@%x", inst.Class.Name, uint32(h))), nil
	}
	s, err := ctx.ToString(recv)
	return runtime.StringValue(s), err
}

// compareNatural implements compareTo of the built-in comparable classes.
func compareNatural(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
	c, err := ctx.Compare(recv, args[0])
	return runtime.IntValue(c), err
}

func stringGet(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
	units := runtime.UTF16(str(recv))
	i := int(integer(args[0]))
	if i < 0 || i >= len(units) {
		return nil, runtime.IndexOutOfBounds(ctx, i, len(units))
	}
	return runtime.CharValue(units[i]), nil
}

func printer(end string) runtime.NativeFunction {
	return func(ctx runtime.Invoker, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		s, err := ctx.ToString(args[0])
		if err != nil {
			return nil, err
		}
		_, err = fmt.Fprint(ctx.Stdout(), s+end)
		return runtime.Unit, err
	}
}

// precondition implements require and check. Without a lazy message the fixed
// message is used.
func precondition(className, message string) runtime.NativeFunction {
	return func(ctx runtime.Invoker, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		if boolean(args[0]) {
			return runtime.Unit, nil
		}
		msg := message
		if len(args) > 1 {
			v, err := ctx.Call(args[1])
			if err != nil {
				return nil, err
			}
			if msg, err = ctx.ToString(v); err != nil {
				return nil, err
			}
		}
		return nil, ctx.NewException(className, msg)
	}
}

// stackTraceOf renders a thrown instance with the frames captured when it was
// thrown.
func stackTraceOf(_ runtime.Invoker, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
	inst, ok := args[0].(*runtime.ClassInstance)
	if !ok {
		return nil, runtime.Internalf("stackTraceOf expects a Throwable, got %s", runtime.Describe(args[0]))
	}
	rt := &errors.RuntimeError{ExceptionClass: inst.Class.Name, StackTrace: runtime.ToErrorFrames(inst.StackTrace)}
	if m, ok := inst.Fields[runtime.ThrowableMessageField].(runtime.StringValue); ok {
		rt.Msg = string(m)
	}
	return runtime.StringValue(rt.StackTraceString()), nil
}
