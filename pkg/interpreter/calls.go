package interpreter

import (
	goerrors "errors"

	"kotlite/pkg/errors"
	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
	"kotlite/pkg/types"
)

func asThrow(err error) *runtime.ThrowError {
	var thrown *runtime.ThrowError
	if goerrors.As(err, &thrown) {
		return thrown
	}
	return nil
}

func (it *Interpreter) evalCall(n *parser.FunctionCallNode) (ExecResult, error) {
	b, ok := n.Binding.(*runtime.CallBinding)
	if !ok {
		return ExecResult{}, runtime.Internalf("call %s is not bound", n.Function)
	}
	var recv runtime.Value
	switch b.Kind {
	case runtime.CallInvoke:
		r, err := it.eval(n.Function)
		if abrupt(r, err) {
			return r, err
		}
		recv = r.Value
	case runtime.CallConstructor, runtime.CallFunction:
	default:
		if nav, ok := n.Function.(*parser.NavigationNode); ok {
			if _, super := nav.Receiver.(*parser.SuperReferenceNode); super {
				v, err := it.receiver(nil)
				if err != nil {
					return ExecResult{}, err
				}
				recv = v
				break
			}
			r, err := it.eval(nav.Receiver)
			if abrupt(r, err) {
				return r, err
			}
			if runtime.IsNull(r.Value) && nav.Operator == "?." {
				return normal(runtime.Null), nil
			}
			recv = r.Value
		} else if b.ImplicitThis {
			v, err := it.implicitReceiver(b)
			if err != nil {
				return ExecResult{}, err
			}
			recv = v
		}
	}
	argv, r, err := it.arguments(parametersOf(b), n.Arguments)
	if abrupt(r, err) {
		return r, err
	}
	v, err := it.callBinding(b, recv, argv, n.Pos())
	return normal(v), err
}

// implicitReceiver selects among nested receivers the one the binding expects.
func (it *Interpreter) implicitReceiver(b *runtime.CallBinding) (runtime.Value, error) {
	if b.Kind == runtime.CallMember && b.Function.Owner != nil {
		return it.memberReceiver(b.Function.Owner)
	}
	want := b.ReceiverType
	if want == nil {
		want = b.Function.Receiver
	}
	return it.receiver(func(v runtime.Value) bool { return it.isInstance(v, want) })
}

// parametersOf returns the callee's parameters, or nil for function values.
func parametersOf(b *runtime.CallBinding) []*runtime.ParameterDefinition {
	switch b.Kind {
	case runtime.CallConstructor:
		return b.Class.PrimaryConstructor.Parameters
	case runtime.CallInvoke:
		return nil
	}
	return b.Function.Parameters
}

// arguments evaluates call arguments in source order and places them by parameter
// index. Omitted parameters stay nil; vararg arguments are collected into a list.
// Without parameter metadata the arguments are positional.
func (it *Interpreter) arguments(params []*runtime.ParameterDefinition, args []*parser.FunctionCallArgumentNode) ([]runtime.Value, ExecResult, error) {
	size := len(params)
	if params == nil {
		size = len(args)
	}
	argv := make([]runtime.Value, size)
	vararg := -1
	for i, p := range params {
		if p.IsVararg {
			vararg = i
		}
	}
	var rest []runtime.Value
	for _, a := range args {
		r, err := it.eval(a.Value)
		if abrupt(r, err) {
			return nil, r, err
		}
		if a.Index == vararg {
			rest = append(rest, r.Value)
			continue
		}
		if a.Index < 0 || a.Index >= size {
			return nil, ExecResult{}, runtime.Internalf("argument index %d out of range", a.Index)
		}
		argv[a.Index] = r.Value
	}
	if vararg >= 0 {
		argv[vararg] = runtime.NewList(false, rest)
	}
	return argv, ExecResult{}, nil
}

// callBinding executes a resolved call with arguments in parameter order.
func (it *Interpreter) callBinding(b *runtime.CallBinding, recv runtime.Value, argv []runtime.Value, pos errors.Position) (runtime.Value, error) {
	fn := b.Function
	switch b.Kind {
	case runtime.CallFunction, runtime.CallExtension:
		v, ok := it.scope.Lookup(fn.TransformedName)
		lv, isFn := v.(*runtime.LambdaValue)
		if !ok || !isFn {
			return nil, runtime.Internalf("function %s is not defined", fn.QualifiedName())
		}
		return it.callFunction(fn, lv.Closure, recv, b.Kind == runtime.CallExtension, argv, pos)
	case runtime.CallNative:
		return it.callNative(fn, recv, argv, pos)
	case runtime.CallMember:
		if runtime.IsNull(recv) {
			return nil, it.throwAt(pos, "NullPointerException", "Cannot invoke '%s' on null", fn.Name)
		}
		impl := fn
		if cls := it.classOf(recv); cls != nil {
			if d := cls.Dispatch(fn.SlotKey); d != nil {
				impl = d
			}
		}
		return it.callMember(impl, recv, argv, pos)
	case runtime.CallSuper:
		return it.callMember(fn, recv, argv, pos)
	case runtime.CallConstructor:
		return it.construct(b.Class, argv, pos)
	case runtime.CallInvoke:
		lv, ok := recv.(*runtime.LambdaValue)
		if !ok {
			return nil, runtime.Internalf("%s is not a function", runtime.Describe(recv))
		}
		return it.invokeLambda(lv, argv, pos)
	}
	return nil, runtime.Internalf("unsupported call kind %s", b.Kind)
}

func (it *Interpreter) callMember(fn *runtime.FunctionDefinition, recv runtime.Value, argv []runtime.Value, pos errors.Position) (runtime.Value, error) {
	if fn.Native != nil {
		return it.callNative(fn, recv, argv, pos)
	}
	if fn.IsAbstract() {
		return nil, runtime.Internalf("abstract member %s was called", fn.QualifiedName())
	}
	closure := it.classClosures[fn.Owner]
	if closure == nil {
		return nil, runtime.Internalf("class %s was not declared", fn.Owner.Name)
	}
	return it.callFunction(fn, closure, recv, true, argv, pos)
}

// callMethod calls a member of recv by name and arity, dispatching on its runtime
// class.
func (it *Interpreter) callMethod(recv runtime.Value, name string, args ...runtime.Value) (runtime.Value, error) {
	cls := it.classOf(recv)
	if cls != nil {
		for _, fn := range cls.FindFunctions(name) {
			if len(fn.Parameters) == len(args) {
				return it.callMember(fn, recv, args, it.pos)
			}
		}
	}
	return nil, runtime.Internalf("%s has no member %s/%d", runtime.Describe(recv), name, len(args))
}

func padArguments(argv []runtime.Value, n int) []runtime.Value {
	for len(argv) < n {
		argv = append(argv, nil)
	}
	return argv
}

// callNative invokes a native implementation with vararg lists flattened.
func (it *Interpreter) callNative(fn *runtime.FunctionDefinition, recv runtime.Value, argv []runtime.Value, pos errors.Position) (runtime.Value, error) {
	argv = padArguments(argv, len(fn.Parameters))
	if vi := fn.VarargIndex(); vi >= 0 {
		flat := append([]runtime.Value{}, argv[:vi]...)
		if nd, ok := argv[vi].(*runtime.NativeDelegate); ok {
			if l, ok := nd.Value.(*runtime.ListData); ok {
				flat = append(flat, l.Elements...)
			}
		}
		argv = append(flat, argv[vi+1:]...)
	}
	leave, err := it.enter(fn, fn.QualifiedName(), it.scope, pos)
	if err != nil {
		return nil, err
	}
	defer leave()
	it.pos = pos
	v, err := fn.Native(it, recv, argv)
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = runtime.Unit
	}
	return v, nil
}

// callFunction runs a script function body in a new frame. Missing arguments are
// filled from default values, evaluated left to right in the parameter scope.
func (it *Interpreter) callFunction(fn *runtime.FunctionDefinition, closure *runtime.SymbolTable, this runtime.Value, hasThis bool, argv []runtime.Value, pos errors.Position) (runtime.Value, error) {
	d := fn.Declaration
	if d == nil || d.Body == nil {
		return nil, runtime.Internalf("function %s has no body", fn.QualifiedName())
	}
	scope := closure.NewChild(fn.Name, parser.ScopeFunction)
	scope.Function = fn
	if hasThis {
		scope.This, scope.HasThis = this, true
	}
	leave, err := it.enter(fn, fn.QualifiedName(), scope, pos)
	if err != nil {
		return nil, err
	}
	defer leave()
	if err := it.bindParameters(scope, fn.Parameters, padArguments(argv, len(fn.Parameters))); err != nil {
		return nil, err
	}
	if d.IsExpressionBody {
		r, err := it.eval(d.Body.Statements[0].(parser.Expression))
		if err != nil {
			return nil, err
		}
		return r.Value, nil
	}
	it.scope = scope.NewChild(fn.Name, parser.ScopeBlock)
	r, err := it.execStatements(d.Body.Statements, false)
	if err != nil {
		return nil, err
	}
	if r.Signal == SigReturn {
		return r.Value, nil
	}
	return runtime.Unit, nil
}

func (it *Interpreter) bindParameters(scope *runtime.SymbolTable, params []*runtime.ParameterDefinition, argv []runtime.Value) error {
	for i, p := range params {
		v := argv[i]
		if v == nil {
			dv := p.Declaration.DefaultValue
			if dv == nil {
				return runtime.Internalf("no value passed for parameter %s", p.Name)
			}
			r, err := it.eval(dv)
			if err != nil {
				return err
			}
			v = r.Value
		}
		scope.Define(p.TransformedName, v)
	}
	return nil
}

// invokeLambda calls a lambda. A lambda with a receiver takes it as the first
// argument.
func (it *Interpreter) invokeLambda(lv *runtime.LambdaValue, args []runtime.Value, pos errors.Position) (runtime.Value, error) {
	if lv.Function != nil {
		return it.callFunction(lv.Function, lv.Closure, nil, false, args, pos)
	}
	n := lv.Lambda
	scope := lv.Closure.NewChild("<lambda>", parser.ScopeLambda)
	if ft, ok := n.ComputedType.(*types.FunctionType); ok && ft.Receiver != nil && len(args) > 0 {
		scope.This, scope.HasThis = args[0], true
		args = args[1:]
	}
	if n.ItRefName != "" && len(args) > 0 {
		scope.Define(n.ItRefName, args[0])
	}
	for i, p := range n.Parameters {
		if i < len(args) && p.Name != "_" {
			scope.Define(p.TransformedRefName, args[i])
		}
	}
	leave, err := it.enter(lambdaFunction, "<lambda>", scope, pos)
	if err != nil {
		return nil, err
	}
	defer leave()
	r, err := it.execStatements(n.Body.Statements, false)
	if err != nil {
		return nil, err
	}
	if r.Signal != SigNone {
		return nil, runtime.Internalf("control flow signal escaped a lambda")
	}
	if n.ReturnsUnit {
		return runtime.Unit, nil
	}
	return r.Value, nil
}

// --- Instances ---

func (it *Interpreter) construct(def *runtime.ClassDefinition, argv []runtime.Value, pos errors.Position) (runtime.Value, error) {
	ctor := def.PrimaryConstructor
	if ctor == nil {
		return nil, runtime.Internalf("class %s has no constructor", def.Name)
	}
	if ctor.Native != nil {
		return it.callNative(ctor, nil, argv, pos)
	}
	return it.instantiate(def, argv, pos)
}

// instantiate creates a script class instance and runs its initialization.
func (it *Interpreter) instantiate(def *runtime.ClassDefinition, argv []runtime.Value, pos errors.Position) (runtime.Value, error) {
	it.nextID++
	inst := &runtime.ClassInstance{Class: def, Fields: map[string]runtime.Value{}, ID: it.nextID}
	if err := it.initClass(def, inst, argv, pos); err != nil {
		return nil, err
	}
	return inst, nil
}

// initClass runs one class's part of an instance initialization: constructor
// parameters and their defaults, the superclass constructor, property parameters,
// then property initializers and init blocks in declaration order.
func (it *Interpreter) initClass(def *runtime.ClassDefinition, inst *runtime.ClassInstance, argv []runtime.Value, pos errors.Position) error {
	ctor := def.PrimaryConstructor
	closure := it.classClosures[def]
	if ctor == nil || closure == nil {
		return runtime.Internalf("class %s cannot be initialized", def.Name)
	}
	scope := closure.NewChild(def.Name, parser.ScopeConstructor)
	scope.Function = ctor
	leave, err := it.enter(ctor, ctor.QualifiedName(), scope, pos)
	if err != nil {
		return err
	}
	defer leave()
	if err := it.bindParameters(scope, ctor.Parameters, padArguments(argv, len(ctor.Parameters))); err != nil {
		return err
	}

	if st := def.SuperConstructorCall; st != nil && def.SuperClass != nil && !def.SuperClass.IsNative {
		superArgs, r, err := it.arguments(def.SuperClass.PrimaryConstructor.Parameters, st.Arguments)
		if abrupt(r, err) {
			return orInternal(r, err)
		}
		if err := it.initClass(def.SuperClass, inst, superArgs, st.Pos()); err != nil {
			return err
		}
	}

	for _, cp := range def.Declaration.PrimaryConstructor {
		if cp.IsProperty {
			v, _ := scope.Lookup(cp.Parameter.TransformedRefName)
			inst.Fields[cp.PropertyRefName] = v
		}
	}

	init := scope.NewChild(def.Name, parser.ScopeClassInitializer)
	init.This, init.HasThis = inst, true
	it.scope = init
	for _, st := range def.OrderedInitializers {
		switch st := st.(type) {
		case *parser.PropertyDeclarationNode:
			r, err := it.eval(st.Initializer)
			if abrupt(r, err) {
				return orInternal(r, err)
			}
			inst.Fields[st.TransformedRefName] = r.Value
		case *parser.ClassInstanceInitializerNode:
			r, err := it.execBlock(st.Body, nil)
			if abrupt(r, err) {
				return orInternal(r, err)
			}
		}
	}
	return nil
}

// orInternal turns a control flow signal where none can occur into a defect.
func orInternal(r ExecResult, err error) error {
	if err != nil {
		return err
	}
	return runtime.Internalf("unexpected control flow signal %d", r.Signal)
}
