package interpreter

import (
	goerrors "errors"

	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
)

// execStatements runs a statement list in the current scope. A top-level list has
// its functions and classes bound before the first statement runs.
func (it *Interpreter) execStatements(stmts []parser.Statement, topLevel bool) (ExecResult, error) {
	if topLevel {
		it.hoist(stmts)
	}
	var last runtime.Value = runtime.Unit
	for _, st := range stmts {
		r, err := it.exec(st)
		if abrupt(r, err) {
			return r, err
		}
		last = r.Value
	}
	return normal(last), nil
}

func (it *Interpreter) hoist(stmts []parser.Statement) {
	for _, st := range stmts {
		switch d := st.(type) {
		case *parser.ClassDeclarationNode:
			if def, ok := d.Definition.(*runtime.ClassDefinition); ok {
				it.classClosures[def] = it.scope
			}
		case *parser.FunctionDeclarationNode:
			it.declareFunction(d)
		}
	}
}

func (it *Interpreter) declareFunction(d *parser.FunctionDeclarationNode) {
	fn := d.Definition.(*runtime.FunctionDefinition)
	it.scope.Define(fn.TransformedName, &runtime.LambdaValue{Function: fn, Closure: it.scope})
}

func (it *Interpreter) exec(st parser.Statement) (ExecResult, error) {
	switch n := st.(type) {
	case *parser.PropertyDeclarationNode:
		var v runtime.Value = runtime.Null
		if n.Initializer != nil {
			r, err := it.eval(n.Initializer)
			if abrupt(r, err) {
				return r, err
			}
			v = r.Value
		}
		it.scope.Define(n.TransformedRefName, v)
	case *parser.FunctionDeclarationNode:
		if it.scope != it.script && it.scope != it.root {
			it.declareFunction(n)
		}
	case *parser.ClassDeclarationNode:
	case *parser.AssignmentNode:
		return it.execAssignment(n)
	case *parser.WhileNode:
		return it.execWhile(n)
	case *parser.DoWhileNode:
		return it.execDoWhile(n)
	case *parser.ForNode:
		return it.execFor(n)
	case parser.Expression:
		return it.eval(n)
	default:
		return ExecResult{}, runtime.Internalf("unsupported statement %T", st)
	}
	return normal(runtime.Unit), nil
}

// execBlock runs a block in a new scope with its own frame. declare runs first in
// the new scope.
func (it *Interpreter) execBlock(b *parser.BlockNode, declare func(*runtime.SymbolTable)) (ExecResult, error) {
	scope := it.scope.NewChild(b.Type.String(), b.Type)
	if declare != nil {
		declare(scope)
	}
	leave, err := it.enter(nil, b.Type.String(), scope, b.Pos())
	if err != nil {
		return ExecResult{}, err
	}
	defer leave()
	return it.execStatements(b.Statements, false)
}

// loopBody runs one iteration and reports whether the loop must stop, passing on a
// return.
func loopBody(r ExecResult, err error) (stop bool, out ExecResult, outErr error) {
	if err != nil {
		return true, r, err
	}
	switch r.Signal {
	case SigBreak:
		return true, normal(runtime.Unit), nil
	case SigReturn:
		return true, r, nil
	}
	return false, r, nil
}

func (it *Interpreter) condition(e parser.Expression) (bool, ExecResult, error) {
	r, err := it.eval(e)
	if abrupt(r, err) {
		return false, r, err
	}
	b, ok := r.Value.(runtime.BooleanValue)
	if !ok {
		return false, r, runtime.Internalf("condition evaluated to %s", runtime.Describe(r.Value))
	}
	return bool(b), r, nil
}

func (it *Interpreter) execWhile(n *parser.WhileNode) (ExecResult, error) {
	for {
		ok, r, err := it.condition(n.Condition)
		if abrupt(r, err) {
			return r, err
		}
		if !ok {
			return normal(runtime.Unit), nil
		}
		if stop, r, err := loopBody(it.execBlock(n.Body, nil)); stop {
			return r, err
		}
	}
}

func (it *Interpreter) execDoWhile(n *parser.DoWhileNode) (ExecResult, error) {
	for {
		scope := it.scope.NewChild(n.Body.Type.String(), n.Body.Type)
		leave, err := it.enter(nil, n.Body.Type.String(), scope, n.Body.Pos())
		if err != nil {
			return ExecResult{}, err
		}
		stop, r, err := loopBody(it.execStatements(n.Body.Statements, false))
		var more bool
		if !stop {
			var cr ExecResult
			more, cr, err = it.condition(n.Condition)
			if abrupt(cr, err) {
				stop, r = true, cr
			}
		}
		leave()
		if stop {
			return r, err
		}
		if !more {
			return normal(runtime.Unit), nil
		}
	}
}

func (it *Interpreter) execFor(n *parser.ForNode) (ExecResult, error) {
	r, err := it.eval(n.Subject)
	if abrupt(r, err) {
		return r, err
	}
	var result ExecResult
	body := func(elem runtime.Value) error {
		stop, r, err := loopBody(it.execBlock(n.Body, func(s *runtime.SymbolTable) {
			s.Define(n.TransformedRefName, elem)
		}))
		if stop {
			result = r
			if err == nil {
				err = errStopLoop
			}
		}
		return err
	}
	err = it.Iterate(r.Value, body)
	if err != nil && !goerrors.Is(err, errStopLoop) {
		return ExecResult{}, err
	}
	if result.Value == nil {
		result = normal(runtime.Unit)
	}
	return result, nil
}

var errStopLoop = goerrors.New("stop loop")

// Iterate visits the elements of an iterable value.
func (it *Interpreter) Iterate(v runtime.Value, fn func(runtime.Value) error) error {
	if inst, ok := v.(*runtime.ClassInstance); ok {
		return it.iterateInstance(inst, fn)
	}
	return runtime.Iterate(v, fn)
}

// iterateInstance drives a script Iterable through iterator, hasNext and next.
func (it *Interpreter) iterateInstance(inst *runtime.ClassInstance, fn func(runtime.Value) error) error {
	iter, err := it.callMethod(inst, "iterator")
	if err != nil {
		return err
	}
	for {
		more, err := it.callMethod(iter, "hasNext")
		if err != nil {
			return err
		}
		if more != runtime.True {
			return nil
		}
		elem, err := it.callMethod(iter, "next")
		if err != nil {
			return err
		}
		if err := fn(elem); err != nil {
			return err
		}
	}
}
