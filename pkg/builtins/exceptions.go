package builtins

import (
	"fmt"
	"strings"

	"kotlite/pkg/runtime"
)

// Exceptions contributes the Throwable hierarchy as script source, so that scripts
// can subclass and construct exceptions like any other class.
type Exceptions struct{}

func (Exceptions) Name() string { return "exceptions" }

const throwablePrelude = `
open class Throwable(val message: String? = null, val cause: Throwable? = null) {
    override fun toString(): String {
        val m = message
        return if (m == null) classNameOf(this) else "${classNameOf(this)}: $m"
    }

    fun stackTraceToString(): String = stackTraceOf(this)
}
`

// hierarchy lists each exception class with its superclass, supertypes first.
var hierarchy = [][2]string{
	{"Exception", "Throwable"},
	{"Error", "Throwable"},
	{"RuntimeException", "Exception"},
	{"IllegalArgumentException", "RuntimeException"},
	{"IllegalStateException", "RuntimeException"},
	{"NullPointerException", "RuntimeException"},
	{"ArithmeticException", "RuntimeException"},
	{"IndexOutOfBoundsException", "RuntimeException"},
	{"NoSuchElementException", "RuntimeException"},
	{"ClassCastException", "RuntimeException"},
	{"UnsupportedOperationException", "RuntimeException"},
	{"NumberFormatException", "IllegalArgumentException"},
	{"StackOverflowError", "Error"},
	{"AssertionError", "Error"},
	{"NotImplementedError", "Error"},
}

func (Exceptions) Register(b *runtime.ModuleBuilder) error {
	var sb strings.Builder
	sb.WriteString(throwablePrelude)
	for _, h := range hierarchy {
		fmt.Fprintf(&sb, "\nopen class %s(message: String? = null, cause: Throwable? = null) : %s(message, cause)\n", h[0], h[1])
	}
	sb.WriteString(`
fun TODO(): Nothing = throw NotImplementedError("An operation is not implemented.")

fun TODO(reason: String): Nothing = throw NotImplementedError("An operation is not implemented: $reason")
`)
	b.Prelude("exceptions.kt", sb.String())
	return nil
}
