package errors

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// KotliteError is the interface implemented by all interpreter errors.
type KotliteError interface {
	error
	Pos() Position
	Kind() string // "Lex", "Parse", "Semantic", "Runtime"
	// Message returns the specific error message without position info.
	Message() string
	Unwrap() error
}

// --- Concrete Error Types ---

// LexError represents a malformed literal, an unterminated comment or string, or an
// operator sequence the lexer does not support.
type LexError struct {
	Position
	Msg   string
	Cause error
}

func (e *LexError) Error() string {
	return fmt.Sprintf("Lex Error at %s: %s", e.Position, e.Msg)
}
func (e *LexError) Pos() Position   { return e.Position }
func (e *LexError) Kind() string    { return "Lex" }
func (e *LexError) Message() string { return e.Msg }
func (e *LexError) Unwrap() error   { return e.Cause }

// ParseReason distinguishes the two grammar failures the parser can raise.
type ParseReason string

const (
	ExpectTokenMismatch ParseReason = "ExpectTokenMismatch"
	UnexpectedToken     ParseReason = "UnexpectedToken"
)

// ParseError is raised at the first grammar violation. Parsing never resyncs.
type ParseError struct {
	Position
	Reason ParseReason
	Token  string // literal of the offending token
	Msg    string
	Cause  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Parse Error at %s: %s", e.Position, e.Msg)
}
func (e *ParseError) Pos() Position   { return e.Position }
func (e *ParseError) Kind() string    { return "Parse" }
func (e *ParseError) Message() string { return e.Msg }
func (e *ParseError) Unwrap() error   { return e.Cause }

// SemanticError represents a violation found by the static analyzer.
type SemanticError struct {
	Position
	Msg   string
	Cause error
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("Semantic Error at %s: %s", e.Position, e.Msg)
}
func (e *SemanticError) Pos() Position   { return e.Position }
func (e *SemanticError) Kind() string    { return "Semantic" }
func (e *SemanticError) Message() string { return e.Msg }
func (e *SemanticError) Unwrap() error   { return e.Cause }
func (e *SemanticError) CausedBy(cause error) *SemanticError {
	e.Cause = cause
	return e
}

// TypeMismatchError is the SemanticError specialization for incompatible types.
// errors.As(err, **SemanticError) matches it as well.
type TypeMismatchError struct {
	SemanticError
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("Type Mismatch at %s: %s", e.Position, e.Msg)
}
func (e *TypeMismatchError) Unwrap() error { return &e.SemanticError }

// NewTypeMismatch builds a TypeMismatchError with the conventional message.
func NewTypeMismatch(pos Position, expected, actual string) *TypeMismatchError {
	return &TypeMismatchError{
		SemanticError: SemanticError{
			Position: pos,
			Msg:      fmt.Sprintf("type mismatch: expected %s, got %s", expected, actual),
		},
		Expected: expected,
		Actual:   actual,
	}
}

// StackFrame is one line of a synthetic stack trace.
type StackFrame struct {
	Function string
	Position
}

func (f StackFrame) String() string {
	name := f.Function
	if name == "" {
		name = "<script>"
	}
	return fmt.Sprintf("at %s(%s)", name, f.Position)
}

// RuntimeError represents a failure during evaluation: an uncaught exception, an
// unresolved dynamic target or a null-unsafe access.
type RuntimeError struct {
	Position
	// ExceptionClass is the qualified class name of the thrown value, e.g.
	// "NullPointerException". Empty for internal defects.
	ExceptionClass string
	Msg            string
	StackTrace     []StackFrame
	Cause          error
}

func (e *RuntimeError) Error() string {
	if e.ExceptionClass != "" {
		return fmt.Sprintf("Runtime Error at %s: %s: %s", e.Position, e.ExceptionClass, e.Msg)
	}
	return fmt.Sprintf("Runtime Error at %s: %s", e.Position, e.Msg)
}
func (e *RuntimeError) Pos() Position   { return e.Position }
func (e *RuntimeError) Kind() string    { return "Runtime" }
func (e *RuntimeError) Message() string { return e.Msg }
func (e *RuntimeError) Unwrap() error   { return e.Cause }
func (e *RuntimeError) CausedBy(cause error) *RuntimeError {
	e.Cause = cause
	return e
}

// StackTraceString renders the trace the way Throwable.stackTraceToString does.
func (e *RuntimeError) StackTraceString() string {
	var b strings.Builder
	if e.ExceptionClass != "" {
		b.WriteString(e.ExceptionClass)
		if e.Msg != "" {
			b.WriteString(": ")
			b.WriteString(e.Msg)
		}
	} else {
		b.WriteString(e.Msg)
	}
	for _, f := range e.StackTrace {
		b.WriteString("\n\t")
		b.WriteString(f.String())
	}
	return b.String()
}

// --- Error Reporting ---

var (
	kindColor   = color.New(color.FgRed, color.Bold)
	markerColor = color.New(color.FgGreen)
	traceColor  = color.New(color.FgHiBlack)
)

// DisplayErrors writes a list of errors to w in a user-friendly format,
// including the source line and position marker.
func DisplayErrors(w io.Writer, errs ...KotliteError) {
	for _, err := range errs {
		pos := err.Pos()
		header := fmt.Sprintf("%s Error", err.Kind())
		if rt, ok := err.(*RuntimeError); ok && rt.ExceptionClass != "" {
			header = rt.ExceptionClass
		}
		if !pos.IsValid() || pos.Source == nil {
			fmt.Fprintf(w, "%s: %s\n", kindColor.Sprint(header), err.Message())
			continue
		}

		fmt.Fprintf(w, "%s at %s: %s\n", kindColor.Sprint(header), pos, err.Message())

		line := strings.TrimRight(pos.Source.Line(pos.Line), "\t ")
		fmt.Fprintf(w, "  %s\n", line)
		col := pos.Column - 1
		if col < 0 {
			col = 0
		}
		fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", col), markerColor.Sprint("^"))

		if rt, ok := err.(*RuntimeError); ok {
			for _, f := range rt.StackTrace {
				fmt.Fprintf(w, "    %s\n", traceColor.Sprint(f.String()))
			}
		}
		fmt.Fprintln(w)
	}
}
