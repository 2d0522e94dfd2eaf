package runtime

import (
	"fmt"
	"io"
)

// Invoker is the evaluator as seen from native code. Natives call back into script
// code through it: lambdas, overridden equals/hashCode/toString/compareTo.
type Invoker interface {
	// Call invokes a function value with the given arguments.
	Call(fn Value, args ...Value) (Value, error)
	Equals(a, b Value) (bool, error)
	HashCode(v Value) (int32, error)
	ToString(v Value) (string, error)
	// Compare orders two values with natural ordering or compareTo.
	Compare(a, b Value) (int, error)
	// Iterate visits the elements of native iterables and of script Iterable
	// instances.
	Iterate(v Value, fn func(Value) error) error
	// NewException creates a Throwable of the named class and returns it as an error
	// ready to be thrown.
	NewException(className, message string) error
	Stdout() io.Writer
	Environment() *ExecutionEnvironment
}

// ThrowError carries a thrown Throwable instance through Go error returns.
type ThrowError struct {
	Instance *ClassInstance
}

func (e *ThrowError) Error() string {
	msg := ""
	if m, ok := e.Instance.Fields[ThrowableMessageField].(StringValue); ok {
		msg = ": " + string(m)
	}
	return fmt.Sprintf("%s%s", e.Instance.Class.Name, msg)
}

// Field names of the prelude Throwable class.
const (
	ThrowableMessageField = "Throwable.message"
	ThrowableCauseField   = "Throwable.cause"
)

// Throwf raises an exception of the named class from native code.
func Throwf(ctx Invoker, className, format string, args ...interface{}) error {
	return ctx.NewException(className, fmt.Sprintf(format, args...))
}

// IndexOutOfBounds raises the conventional index error.
func IndexOutOfBounds(ctx Invoker, index, size int) error {
	return Throwf(ctx, "IndexOutOfBoundsException", "Index %d out of bounds for length %d", index, size)
}

// InternalError reports a defect: a state the analyzer should have ruled out.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string { return "internal error: " + e.Msg }

// Internalf builds an InternalError.
func Internalf(format string, args ...interface{}) error {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}
