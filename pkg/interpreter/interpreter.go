// Package interpreter is the tree-walking evaluator. It runs analyzed ASTs: every
// name has been resolved to a transformed reference name or a binding, so the
// evaluator performs no lookup by source name.
package interpreter

import (
	goerrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"kotlite/pkg/errors"
	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
)

// ExecSignal is the way a statement completed.
type ExecSignal int

const (
	SigNone ExecSignal = iota
	SigReturn
	SigBreak
	SigContinue
)

// ExecResult carries a completion signal and a value: the statement's value for
// SigNone, the returned value for SigReturn.
type ExecResult struct {
	Signal ExecSignal
	Value  runtime.Value
}

func normal(v runtime.Value) ExecResult { return ExecResult{Value: v} }

// abrupt reports whether evaluation must stop: an error or a jump.
func abrupt(r ExecResult, err error) bool { return err != nil || r.Signal != SigNone }

// Options configure an interpreter.
type Options struct {
	// Stdout receives print and println output. Defaults to os.Stdout.
	Stdout io.Writer
	// MaxCallDepth bounds nested calls; <= 0 selects runtime.DefaultMaxCallDepth.
	MaxCallDepth int
}

// Interpreter evaluates scripts against one prepared environment. It is not safe
// for concurrent use; create one per evaluation.
type Interpreter struct {
	env   *runtime.ExecutionEnvironment
	out   io.Writer
	stack *runtime.CallStack

	root   *runtime.SymbolTable
	script *runtime.SymbolTable
	scope  *runtime.SymbolTable

	// classClosures holds the scope each class was declared in.
	classClosures map[*runtime.ClassDefinition]*runtime.SymbolTable
	nextID        int32
	// pos is the position of the node being evaluated, for stack traces.
	pos errors.Position
}

// lambdaFunction stands for lambdas in call frames.
var lambdaFunction = &runtime.FunctionDefinition{Name: "<lambda>"}

// New creates an interpreter and runs the preludes of env, which must be prepared.
func New(env *runtime.ExecutionEnvironment, opts Options) (*Interpreter, error) {
	if !env.IsPrepared() {
		return nil, fmt.Errorf("environment is not prepared")
	}
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}
	root := runtime.NewSymbolTable("<global>", parser.ScopeScript)
	it := &Interpreter{
		env:           env,
		out:           out,
		stack:         runtime.NewCallStack(opts.MaxCallDepth),
		root:          root,
		scope:         root,
		classClosures: map[*runtime.ClassDefinition]*runtime.SymbolTable{},
	}
	for _, p := range env.Preludes() {
		if p.Script == nil {
			return nil, fmt.Errorf("prelude %s/%s was not analyzed", p.Module, p.Name)
		}
		if _, err := it.run(p.Source.Name, p.Script.Statements); err != nil {
			return nil, it.report(err)
		}
	}
	it.script = root.NewChild("<script>", parser.ScopeScript)
	return it, nil
}

// Eval runs an analyzed script and returns the value of its last statement.
func (it *Interpreter) Eval(script *parser.ScriptNode) (runtime.Value, error) {
	it.scope = it.script
	v, err := it.run("<script>", script.Statements)
	if err != nil {
		return nil, it.report(err)
	}
	return v, nil
}

// EvalExpression evaluates an analyzed expression in the script scope.
func (it *Interpreter) EvalExpression(e parser.Expression) (runtime.Value, error) {
	it.scope = it.script
	r, err := it.eval(e)
	if err == nil && r.Signal != SigNone {
		err = runtime.Internalf("control flow signal escaped the expression")
	}
	if err != nil {
		return nil, it.report(err)
	}
	return r.Value, nil
}

// Variables returns the script's top-level properties by source name.
func (it *Interpreter) Variables() map[string]runtime.Value {
	out := map[string]runtime.Value{}
	for ref, v := range it.script.Values() {
		name, _, _ := strings.Cut(ref, "/")
		out[name] = v
	}
	return out
}

// run executes a top-level statement list under a script frame.
func (it *Interpreter) run(name string, stmts []parser.Statement) (runtime.Value, error) {
	it.stack.Push(&runtime.Frame{Name: name, ScopeType: parser.ScopeScript, Scope: it.scope})
	defer it.stack.Pop()
	r, err := it.execStatements(stmts, true)
	if err != nil {
		return nil, err
	}
	if r.Signal != SigNone {
		return nil, runtime.Internalf("control flow signal escaped the script")
	}
	return r.Value, nil
}

// report converts an escaping exception or defect into a RuntimeError.
func (it *Interpreter) report(err error) error {
	var thrown *runtime.ThrowError
	if goerrors.As(err, &thrown) {
		inst := thrown.Instance
		rt := &errors.RuntimeError{ExceptionClass: inst.Class.Name, Cause: err}
		if m, ok := inst.Fields[runtime.ThrowableMessageField].(runtime.StringValue); ok {
			rt.Msg = string(m)
		}
		rt.StackTrace = runtime.ToErrorFrames(inst.StackTrace)
		if len(inst.StackTrace) > 0 {
			rt.Position = inst.StackTrace[0].Position
		}
		return rt
	}
	var kerr errors.KotliteError
	if goerrors.As(err, &kerr) {
		return err
	}
	return &errors.RuntimeError{Position: it.pos, Msg: err.Error(), Cause: err}
}

// --- runtime.Invoker ---

func (it *Interpreter) Stdout() io.Writer                          { return it.out }
func (it *Interpreter) Environment() *runtime.ExecutionEnvironment { return it.env }

// Call invokes a function value. For lambdas with a receiver the receiver is the
// first argument.
func (it *Interpreter) Call(fn runtime.Value, args ...runtime.Value) (runtime.Value, error) {
	lv, ok := fn.(*runtime.LambdaValue)
	if !ok {
		return nil, runtime.Internalf("%s is not a function", runtime.Describe(fn))
	}
	return it.invokeLambda(lv, args, it.pos)
}

// NewException instantiates a Throwable class from the preludes with a message.
func (it *Interpreter) NewException(className, message string) error {
	def := it.env.Class(className)
	if def == nil {
		return runtime.Internalf("exception class %s is not available (%s)", className, message)
	}
	pos := it.pos
	inst, err := it.instantiate(def, []runtime.Value{runtime.StringValue(message)}, pos)
	if err != nil {
		return err
	}
	it.pos = pos
	in := inst.(*runtime.ClassInstance)
	in.StackTrace = it.stack.Trace(pos)
	return &runtime.ThrowError{Instance: in}
}

// throwAt raises a runtime fault as an exception at pos.
func (it *Interpreter) throwAt(pos errors.Position, className, format string, args ...interface{}) error {
	it.pos = pos
	return it.NewException(className, fmt.Sprintf(format, args...))
}

// --- Scopes and frames ---

func (it *Interpreter) withScope(s *runtime.SymbolTable, fn func() (ExecResult, error)) (ExecResult, error) {
	saved := it.scope
	it.scope = s
	defer func() { it.scope = saved }()
	return fn()
}

// enter pushes a frame owning scope and makes scope current until the returned
// function is called.
func (it *Interpreter) enter(fn *runtime.FunctionDefinition, name string, scope *runtime.SymbolTable, pos errors.Position) (func(), error) {
	if !it.stack.Push(&runtime.Frame{Function: fn, Name: name, ScopeType: scope.ScopeType, Position: pos, Scope: scope}) {
		return nil, it.overflow(pos)
	}
	saved := it.scope
	it.scope = scope
	return func() {
		it.scope = saved
		it.stack.Pop()
	}, nil
}

// overflowReserve is the extra depth granted while the StackOverflowError itself
// is constructed.
const overflowReserve = 8

func (it *Interpreter) overflow(pos errors.Position) error {
	limit := it.stack.MaxDepth
	it.stack.MaxDepth += overflowReserve
	defer func() { it.stack.MaxDepth = limit }()
	return it.throwAt(pos, "StackOverflowError", "Stack overflow: call depth exceeds %d", limit)
}

// receiver returns the innermost implicit receiver accepted by match.
func (it *Interpreter) receiver(match func(runtime.Value) bool) (runtime.Value, error) {
	for s := it.scope; s != nil; s = s.Parent {
		if s.HasThis && (match == nil || match(s.This)) {
			return s.This, nil
		}
	}
	return nil, runtime.Internalf("no implicit receiver in scope")
}
