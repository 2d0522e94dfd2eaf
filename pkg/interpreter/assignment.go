package interpreter

import (
	"strings"

	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
)

// target is an assignable location.
type target struct {
	get func() (runtime.Value, error)
	set func(runtime.Value) error
}

// resolveTarget evaluates the receiver of an assignment target once. A nil target
// without error means a safe call on null skipped the assignment.
func (it *Interpreter) resolveTarget(e parser.Expression) (*target, ExecResult, error) {
	switch n := e.(type) {
	case *parser.VariableReferenceNode:
		switch b := n.Binding.(type) {
		case *runtime.LocalBinding:
			return &target{
				get: func() (runtime.Value, error) {
					v, ok := it.scope.Lookup(b.RefName)
					if !ok {
						return nil, runtime.Internalf("unresolved reference %s", b.RefName)
					}
					return v, nil
				},
				set: func(v runtime.Value) error {
					if !it.scope.Assign(b.RefName, v) {
						it.scope.Define(b.RefName, v)
					}
					return nil
				},
			}, ExecResult{}, nil
		case *runtime.GlobalPropertyBinding:
			p := b.Property
			return &target{
				get: func() (runtime.Value, error) { return p.Getter(it, nil, nil) },
				set: func(v runtime.Value) error {
					_, err := p.Setter(it, nil, []runtime.Value{v})
					return err
				},
			}, ExecResult{}, nil
		case *runtime.MemberPropertyBinding:
			recv, err := it.memberReceiver(b.Property.Owner)
			if err != nil {
				return nil, ExecResult{}, err
			}
			return it.memberTarget(recv, b.Property), ExecResult{}, nil
		case *runtime.ExtensionPropertyBinding:
			recv, err := it.receiver(func(v runtime.Value) bool { return it.isInstance(v, b.Property.Receiver) })
			if err != nil {
				return nil, ExecResult{}, err
			}
			return it.extensionTarget(recv, b.Property), ExecResult{}, nil
		}
		return nil, ExecResult{}, runtime.Internalf("assignment target %s is not bound", n.Name)

	case *parser.NavigationNode:
		recv, r, err := it.evalOperand(n.Receiver)
		if abrupt(r, err) {
			return nil, r, err
		}
		if runtime.IsNull(recv) {
			if n.Operator == "?." {
				return nil, ExecResult{}, nil
			}
			return nil, ExecResult{}, it.throwAt(n.Pos(), "NullPointerException", "Cannot assign property '%s' of null", n.Member)
		}
		switch b := n.Binding.(type) {
		case *runtime.MemberPropertyBinding:
			return it.memberTarget(recv, b.Property), ExecResult{}, nil
		case *runtime.ExtensionPropertyBinding:
			return it.extensionTarget(recv, b.Property), ExecResult{}, nil
		}
		return nil, ExecResult{}, runtime.Internalf("assignment target %s is not bound", n.Member)
	}
	return nil, ExecResult{}, runtime.Internalf("unsupported assignment target %T", e)
}

func (it *Interpreter) memberTarget(recv runtime.Value, p *runtime.PropertyDefinition) *target {
	return &target{
		get: func() (runtime.Value, error) { return it.getMember(recv, p) },
		set: func(v runtime.Value) error { return it.setMember(recv, p, v) },
	}
}

func (it *Interpreter) extensionTarget(recv runtime.Value, p *runtime.PropertyDefinition) *target {
	return &target{
		get: func() (runtime.Value, error) { return p.Getter(it, recv, nil) },
		set: func(v runtime.Value) error {
			if p.Setter == nil {
				return runtime.Internalf("property %s has no setter", p.BindingName())
			}
			_, err := p.Setter(it, recv, []runtime.Value{v})
			return err
		},
	}
}

// isAssignOperator reports whether an augmented assignment resolved to a
// `plusAssign`-style function, which updates its receiver instead of storing.
func isAssignOperator(b *runtime.CallBinding) bool {
	return b != nil && b.Function != nil && strings.HasSuffix(b.Function.Name, "Assign")
}

func (it *Interpreter) execAssignment(n *parser.AssignmentNode) (ExecResult, error) {
	if idx, ok := n.Target.(*parser.IndexOpNode); ok {
		return it.execIndexAssignment(n, idx)
	}
	t, r, err := it.resolveTarget(n.Target)
	if abrupt(r, err) {
		return r, err
	}
	value, r, err := it.evalOperand(n.Value)
	if abrupt(r, err) {
		return r, err
	}
	if t == nil {
		return normal(runtime.Unit), nil
	}
	if n.Operator != "=" {
		current, err := t.get()
		if err != nil {
			return ExecResult{}, err
		}
		b, _ := n.Binding.(*runtime.CallBinding)
		if isAssignOperator(b) {
			_, err := it.callBinding(b, current, []runtime.Value{value}, n.Pos())
			return normal(runtime.Unit), err
		}
		if value, err = it.combine(n, b, current, value); err != nil {
			return ExecResult{}, err
		}
	}
	return normal(runtime.Unit), t.set(value)
}

// combine applies the operator of `a op= b` either through its operator function or
// as intrinsic arithmetic.
func (it *Interpreter) combine(n *parser.AssignmentNode, b *runtime.CallBinding, current, value runtime.Value) (runtime.Value, error) {
	if b != nil {
		return it.callBinding(b, current, []runtime.Value{value}, n.Pos())
	}
	return it.arithmetic(n.Pos(), strings.TrimSuffix(n.Operator, "="), current, value)
}

func (it *Interpreter) execIndexAssignment(n *parser.AssignmentNode, idx *parser.IndexOpNode) (ExecResult, error) {
	subject, r, err := it.evalOperand(idx.Subject)
	if abrupt(r, err) {
		return r, err
	}
	indices, r, err := it.evalValues(idx.Indices)
	if abrupt(r, err) {
		return r, err
	}
	value, r, err := it.evalOperand(n.Value)
	if abrupt(r, err) {
		return r, err
	}
	set, _ := n.IndexBinding.(*runtime.CallBinding)
	if n.Operator != "=" {
		get, ok := idx.Binding.(*runtime.CallBinding)
		if !ok {
			return ExecResult{}, runtime.Internalf("index access is not bound")
		}
		current, err := it.callBinding(get, subject, indices, idx.Pos())
		if err != nil {
			return ExecResult{}, err
		}
		b, _ := n.Binding.(*runtime.CallBinding)
		if isAssignOperator(b) {
			_, err := it.callBinding(b, current, []runtime.Value{value}, n.Pos())
			return normal(runtime.Unit), err
		}
		if value, err = it.combine(n, b, current, value); err != nil {
			return ExecResult{}, err
		}
	}
	if set == nil {
		return ExecResult{}, runtime.Internalf("indexed assignment is not bound")
	}
	args := append(append([]runtime.Value{}, indices...), value)
	_, err = it.callBinding(set, subject, args, idx.Pos())
	return normal(runtime.Unit), err
}
