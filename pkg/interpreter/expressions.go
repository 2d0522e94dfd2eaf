package interpreter

import (
	"strings"

	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
	"kotlite/pkg/types"
)

func (it *Interpreter) eval(e parser.Expression) (ExecResult, error) {
	it.pos = e.Pos()
	switch n := e.(type) {
	case *parser.IntegerNode:
		return normal(integerLiteral(int64(n.Value), n.ComputedType)), nil
	case *parser.LongNode:
		return normal(runtime.LongValue(n.Value)), nil
	case *parser.DoubleNode:
		return normal(runtime.DoubleValue(n.Value)), nil
	case *parser.BooleanNode:
		return normal(runtime.Bool(n.Value)), nil
	case *parser.NullNode:
		return normal(runtime.Null), nil
	case *parser.CharNode:
		return normal(runtime.CharValue(n.Value)), nil
	case *parser.StringLiteralNode:
		return normal(runtime.StringValue(n.Value)), nil
	case *parser.StringNode:
		return it.evalTemplate(n)
	case *parser.VariableReferenceNode:
		return it.evalReference(n)
	case *parser.ThisReferenceNode:
		v, err := it.receiver(nil)
		return normal(v), err
	case *parser.NavigationNode:
		return it.evalNavigation(n)
	case *parser.IndexOpNode:
		return it.evalIndex(n)
	case *parser.FunctionCallNode:
		return it.evalCall(n)
	case *parser.LambdaLiteralNode:
		return normal(&runtime.LambdaValue{Lambda: n, Closure: it.scope}), nil
	case *parser.BinaryOpNode:
		return it.evalBinary(n)
	case *parser.UnaryOpNode:
		return it.evalUnary(n)
	case *parser.BlockNode:
		return it.execBlock(n, nil)
	case *parser.IfNode:
		return it.evalIf(n)
	case *parser.WhenNode:
		return it.evalWhen(n)
	case *parser.TryNode:
		return it.evalTry(n)
	case *parser.ThrowNode:
		return it.evalThrow(n)
	case *parser.ReturnNode:
		if n.Value == nil {
			return ExecResult{Signal: SigReturn, Value: runtime.Unit}, nil
		}
		r, err := it.eval(n.Value)
		if abrupt(r, err) {
			return r, err
		}
		return ExecResult{Signal: SigReturn, Value: r.Value}, nil
	case *parser.BreakNode:
		return ExecResult{Signal: SigBreak}, nil
	case *parser.ContinueNode:
		return ExecResult{Signal: SigContinue}, nil
	case *parser.IsNode:
		r, err := it.eval(n.Subject)
		if abrupt(r, err) {
			return r, err
		}
		return normal(runtime.Bool(it.isInstance(r.Value, n.Type.Resolved) != n.Negated)), nil
	case *parser.AsNode:
		return it.evalCast(n)
	}
	return ExecResult{}, runtime.Internalf("unsupported expression %T", e)
}

// integerLiteral materializes an integer literal at the type the analyzer chose.
func integerLiteral(v int64, t types.Type) runtime.Value {
	switch {
	case types.IsNamed(t, types.LongName):
		return runtime.LongValue(v)
	case types.IsNamed(t, types.ByteName):
		return runtime.ByteValue(int8(v))
	case types.IsNamed(t, types.DoubleName):
		return runtime.DoubleValue(float64(v))
	}
	return runtime.IntValue(int32(v))
}

// evalValues evaluates expressions left to right.
func (it *Interpreter) evalValues(es []parser.Expression) ([]runtime.Value, ExecResult, error) {
	out := make([]runtime.Value, len(es))
	for i, e := range es {
		r, err := it.eval(e)
		if abrupt(r, err) {
			return nil, r, err
		}
		out[i] = r.Value
	}
	return out, ExecResult{}, nil
}

func (it *Interpreter) evalTemplate(n *parser.StringNode) (ExecResult, error) {
	var sb strings.Builder
	for _, part := range n.Parts {
		if lit, ok := part.(*parser.StringLiteralNode); ok {
			sb.WriteString(lit.Value)
			continue
		}
		r, err := it.eval(part)
		if abrupt(r, err) {
			return r, err
		}
		s, err := it.ToString(r.Value)
		if err != nil {
			return ExecResult{}, err
		}
		sb.WriteString(s)
	}
	return normal(runtime.StringValue(sb.String())), nil
}

// --- Properties ---

func (it *Interpreter) evalReference(n *parser.VariableReferenceNode) (ExecResult, error) {
	switch b := n.Binding.(type) {
	case *runtime.LocalBinding:
		v, ok := it.scope.Lookup(b.RefName)
		if !ok {
			return ExecResult{}, runtime.Internalf("unresolved reference %s", b.RefName)
		}
		return normal(v), nil
	case *runtime.GlobalPropertyBinding:
		v, err := b.Property.Getter(it, nil, nil)
		return normal(v), err
	case *runtime.MemberPropertyBinding:
		recv, err := it.memberReceiver(b.Property.Owner)
		if err != nil {
			return ExecResult{}, err
		}
		v, err := it.getMember(recv, b.Property)
		return normal(v), err
	case *runtime.ExtensionPropertyBinding:
		recv, err := it.receiver(func(v runtime.Value) bool { return it.isInstance(v, b.Property.Receiver) })
		if err != nil {
			return ExecResult{}, err
		}
		v, err := b.Property.Getter(it, recv, nil)
		return normal(v), err
	}
	return ExecResult{}, runtime.Internalf("reference %s is not bound", n.Name)
}

// memberReceiver finds the implicit receiver that is an instance of owner.
func (it *Interpreter) memberReceiver(owner *runtime.ClassDefinition) (runtime.Value, error) {
	return it.receiver(func(v runtime.Value) bool {
		cls := it.classOf(v)
		return cls != nil && (owner == nil || cls.IsSubclassOf(owner))
	})
}

// getMember reads a member property. Script instances store it in a field shared by
// all overrides; native members go through their getter.
func (it *Interpreter) getMember(recv runtime.Value, p *runtime.PropertyDefinition) (runtime.Value, error) {
	if inst, ok := recv.(*runtime.ClassInstance); ok && p.Getter == nil {
		v, ok := inst.Fields[p.FieldName]
		if !ok {
			if actual := inst.Class.FindProperty(p.Name); actual != nil {
				v, ok = inst.Fields[actual.FieldName]
			}
		}
		if !ok {
			return runtime.Null, nil
		}
		return v, nil
	}
	if p.Getter == nil {
		return nil, runtime.Internalf("property %s has no getter", p.BindingName())
	}
	return p.Getter(it, recv, nil)
}

func (it *Interpreter) setMember(recv runtime.Value, p *runtime.PropertyDefinition, v runtime.Value) error {
	if inst, ok := recv.(*runtime.ClassInstance); ok && p.Setter == nil {
		inst.Fields[p.FieldName] = v
		return nil
	}
	if p.Setter == nil {
		return runtime.Internalf("property %s has no setter", p.BindingName())
	}
	_, err := p.Setter(it, recv, []runtime.Value{v})
	return err
}

func (it *Interpreter) evalNavigation(n *parser.NavigationNode) (ExecResult, error) {
	if _, ok := n.Receiver.(*parser.SuperReferenceNode); ok {
		recv, err := it.receiver(nil)
		if err != nil {
			return ExecResult{}, err
		}
		b, ok := n.Binding.(*runtime.MemberPropertyBinding)
		if !ok {
			return ExecResult{}, runtime.Internalf("super property %s is not bound", n.Member)
		}
		v, err := it.getMember(recv, b.Property)
		return normal(v), err
	}
	r, err := it.eval(n.Receiver)
	if abrupt(r, err) {
		return r, err
	}
	recv := r.Value
	if runtime.IsNull(recv) && n.Operator == "?." {
		return normal(runtime.Null), nil
	}
	it.pos = n.Pos()
	switch b := n.Binding.(type) {
	case *runtime.MemberPropertyBinding:
		if runtime.IsNull(recv) {
			return ExecResult{}, it.throwAt(n.Pos(), "NullPointerException", "Cannot read property '%s' of null", n.Member)
		}
		v, err := it.getMember(recv, b.Property)
		return normal(v), err
	case *runtime.ExtensionPropertyBinding:
		v, err := b.Property.Getter(it, recv, nil)
		return normal(v), err
	}
	return ExecResult{}, runtime.Internalf("member %s is not bound", n.Member)
}

func (it *Interpreter) evalIndex(n *parser.IndexOpNode) (ExecResult, error) {
	r, err := it.eval(n.Subject)
	if abrupt(r, err) {
		return r, err
	}
	indices, ir, err := it.evalValues(n.Indices)
	if abrupt(ir, err) {
		return ir, err
	}
	b, ok := n.Binding.(*runtime.CallBinding)
	if !ok {
		return ExecResult{}, runtime.Internalf("index access is not bound")
	}
	v, err := it.callBinding(b, r.Value, indices, n.Pos())
	return normal(v), err
}

// --- Control flow ---

func (it *Interpreter) evalIf(n *parser.IfNode) (ExecResult, error) {
	ok, r, err := it.condition(n.Condition)
	if abrupt(r, err) {
		return r, err
	}
	var branch *parser.BlockNode
	if ok {
		branch = n.Then
	} else {
		branch = n.Else
	}
	if branch == nil {
		return normal(runtime.Unit), nil
	}
	r, err = it.execBlock(branch, nil)
	if abrupt(r, err) || n.Else != nil {
		return r, err
	}
	return normal(runtime.Unit), nil
}

func (it *Interpreter) evalWhen(n *parser.WhenNode) (ExecResult, error) {
	var subject runtime.Value
	if n.Subject != nil {
		r, err := it.eval(n.Subject)
		if abrupt(r, err) {
			return r, err
		}
		subject = r.Value
	}
	for _, br := range n.Branches {
		for _, cond := range br.Conditions {
			matched, r, err := it.whenCondition(n, cond, subject)
			if abrupt(r, err) {
				return r, err
			}
			if matched {
				return it.whenResult(n, br.Body)
			}
		}
	}
	if n.Else != nil {
		return it.whenResult(n, n.Else)
	}
	return normal(runtime.Unit), nil
}

func (it *Interpreter) whenResult(n *parser.WhenNode, body *parser.BlockNode) (ExecResult, error) {
	r, err := it.execBlock(body, nil)
	if abrupt(r, err) || n.Else != nil {
		return r, err
	}
	return normal(runtime.Unit), nil
}

func (it *Interpreter) whenCondition(n *parser.WhenNode, cond *parser.WhenConditionNode, subject runtime.Value) (bool, ExecResult, error) {
	switch cond.Kind {
	case parser.WhenIs:
		return it.isInstance(subject, cond.Type.Resolved) != cond.Negated, ExecResult{}, nil
	case parser.WhenIn:
		r, err := it.eval(cond.Expression)
		if abrupt(r, err) {
			return false, r, err
		}
		b, ok := cond.Binding.(*runtime.CallBinding)
		if !ok {
			return false, ExecResult{}, runtime.Internalf("'in' condition is not bound")
		}
		v, err := it.callBinding(b, r.Value, []runtime.Value{subject}, cond.Pos())
		if err != nil {
			return false, ExecResult{}, err
		}
		return (v == runtime.True) != cond.Negated, ExecResult{}, nil
	}
	if n.Subject == nil {
		return it.condition(cond.Expression)
	}
	r, err := it.eval(cond.Expression)
	if abrupt(r, err) {
		return false, r, err
	}
	eq, err := it.Equals(subject, r.Value)
	return eq, ExecResult{}, err
}

func (it *Interpreter) evalTry(n *parser.TryNode) (ExecResult, error) {
	r, err := it.execBlock(n.Body, nil)
	if thrown := asThrow(err); thrown != nil {
		for _, cn := range n.Catches {
			if !it.isInstance(thrown.Instance, cn.Type.Resolved) {
				continue
			}
			r, err = it.execBlock(cn.Body, func(s *runtime.SymbolTable) {
				s.Define(cn.TransformedRefName, thrown.Instance)
			})
			break
		}
	}
	if n.Finally != nil {
		fr, ferr := it.execBlock(n.Finally, nil)
		if abrupt(fr, ferr) {
			return fr, ferr
		}
	}
	return r, err
}

func (it *Interpreter) evalThrow(n *parser.ThrowNode) (ExecResult, error) {
	r, err := it.eval(n.Value)
	if abrupt(r, err) {
		return r, err
	}
	inst, ok := r.Value.(*runtime.ClassInstance)
	if !ok {
		return ExecResult{}, it.throwAt(n.Pos(), "NullPointerException", "Cannot throw null")
	}
	inst.StackTrace = it.stack.Trace(n.Pos())
	return ExecResult{}, &runtime.ThrowError{Instance: inst}
}

func (it *Interpreter) evalCast(n *parser.AsNode) (ExecResult, error) {
	r, err := it.eval(n.Subject)
	if abrupt(r, err) {
		return r, err
	}
	t := n.Type.Resolved
	if it.isInstance(r.Value, t) {
		return r, nil
	}
	if n.IsSafe {
		return normal(runtime.Null), nil
	}
	if runtime.IsNull(r.Value) {
		return ExecResult{}, it.throwAt(n.Pos(), "NullPointerException", "null cannot be cast to non-null type %s", t)
	}
	return ExecResult{}, it.throwAt(n.Pos(), "ClassCastException", "%s cannot be cast to %s", r.Value.TypeName(), t)
}

// --- Type tests ---

// classOf returns the runtime class of a value: the instance class or the native
// class registered under the value's type name.
func (it *Interpreter) classOf(v runtime.Value) *runtime.ClassDefinition {
	if inst, ok := v.(*runtime.ClassInstance); ok {
		return inst.Class
	}
	if runtime.IsNull(v) {
		return nil
	}
	return it.env.Class(v.TypeName())
}

// isInstance tests a value against a static type. Type arguments are erased.
func (it *Interpreter) isInstance(v runtime.Value, t types.Type) bool {
	if t == nil {
		return true
	}
	if runtime.IsNull(v) {
		return types.MayBeNull(t)
	}
	switch t := t.(type) {
	case *types.ClassType:
		if t.Name() == types.AnyName {
			return true
		}
		def, ok := t.Class.(*runtime.ClassDefinition)
		cls := it.classOf(v)
		return ok && cls != nil && cls.IsSubclassOf(def)
	case *types.FunctionType:
		_, ok := v.(*runtime.LambdaValue)
		return ok
	case *types.TypeParameterType:
		return t.Bound == nil || it.isInstance(v, t.Bound)
	}
	return true
}
