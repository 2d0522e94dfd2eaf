package checker

import (
	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
	"kotlite/pkg/types"
)

// assignTarget is a resolved property on the left of an assignment.
type assignTarget struct {
	declared types.Type
	mutable  bool
	// assigned records the store: it marks a val as assigned and updates smart casts.
	assigned func(value types.Type)
}

func (c *Checker) checkAssignment(n *parser.AssignmentNode) {
	if idx, ok := n.Target.(*parser.IndexOpNode); ok {
		c.checkIndexAssignment(n, idx)
		return
	}
	target := c.resolveAssignTarget(n.Target)
	n.Target.SetComputedType(target.declared)
	if n.Operator == "=" {
		if !target.mutable {
			c.errorf(n.Target, "Val cannot be reassigned")
		}
		vt := c.checkExpected(n.Value, target.declared)
		target.assigned(vt)
		return
	}
	result := c.compoundAssignment(n, target.declared, target.mutable)
	if result != nil {
		target.assigned(result)
	}
}

// compoundAssignment resolves `a op= b` either to an op-assign function called on a,
// or to the plain operator whose result is stored back. It returns the stored type,
// or nil when the op-assign function was chosen.
func (c *Checker) compoundAssignment(n *parser.AssignmentNode, current types.Type, mutable bool) types.Type {
	op := n.Operator[:len(n.Operator)-1]
	name := operatorFunctions[op]
	args := c.operandArgs([]parser.Expression{n.Value})
	valueType := args[0].t

	assign, assignErr := c.tryOperator(n, current, name+"Assign", args, "operator")
	intrinsic := c.intrinsicArithmetic(op, current, valueType)
	var plain *resolvedCall
	var plainErr error
	if intrinsic == nil {
		plain, plainErr = c.tryOperator(n, current, name, args, "operator")
	}
	plainOK := intrinsic != nil || plain != nil
	switch {
	case assign != nil && plainOK && mutable:
		c.errorf(n, "Assignment operators ambiguity: both '%s' and '%sAssign' apply", name, name)
	case assign != nil:
		if !types.IsUnit(assign.returnType) {
			c.errorf(n, "Function '%sAssign' should return Unit", name)
		}
		n.Binding = assign.binding
		return nil
	case plainOK:
		if !mutable {
			c.errorf(n.Target, "Val cannot be reassigned")
		}
		result := intrinsic
		if plain != nil {
			result = plain.returnType
			n.Binding = plain.binding
		}
		if !types.IsSubtype(result, current) {
			c.mismatch(n, current, result)
		}
		return result
	case assignErr != nil:
		c.fail(assignErr)
	case plainErr != nil:
		c.fail(plainErr)
	}
	c.errorf(n, "Operator '%s' cannot be applied to '%s' and '%s'", n.Operator, current, typeString(valueType))
	return nil
}

// checkIndexAssignment handles `a[i] = v` through set, and `a[i] op= v` through get
// and then op-assign on the element or op followed by set.
func (c *Checker) checkIndexAssignment(n *parser.AssignmentNode, idx *parser.IndexOpNode) {
	subject := c.checkExpression(idx.Subject, nil)
	if types.MayBeNull(subject) {
		c.nullableReceiver(idx, subject)
	}
	for _, e := range idx.Indices {
		c.checkExpression(e, nil)
	}
	if n.Operator == "=" {
		operands := append(append([]parser.Expression{}, idx.Indices...), n.Value)
		r := c.resolveOperator(idx, subject, "set", operands, "operator")
		if r == nil {
			c.errorf(idx, "No set method providing array access on %s", subject)
		}
		n.IndexBinding = r.binding
		return
	}
	get := c.resolveOperator(idx, subject, "get", idx.Indices, "operator")
	if get == nil {
		c.errorf(idx, "No get method providing array access on %s", subject)
	}
	idx.Binding = get.binding
	idx.SetComputedType(get.returnType)
	hasSet := len(c.receiverCandidates(subject, "set", false)) > 0
	result := c.compoundAssignment(n, get.returnType, hasSet)
	if result == nil {
		return
	}
	args := c.operandArgs(idx.Indices)
	args = append(args, &callArg{t: result})
	set, err := c.tryOperator(idx, subject, "set", args, "operator")
	if err != nil {
		c.fail(err)
	}
	n.IndexBinding = set.binding
}

// resolveAssignTarget binds a variable or navigation target and decides whether it
// may be assigned here.
func (c *Checker) resolveAssignTarget(e parser.Expression) *assignTarget {
	switch n := e.(type) {
	case *parser.VariableReferenceNode:
		for s := c.scope; s != nil; s = s.Parent {
			if p := s.LocalProperty(n.Name); p != nil {
				return c.localTarget(n, p, s)
			}
			if s.ThisType != nil {
				if t := c.memberTarget(n, s.ThisType, n.Name, true, s); t != nil {
					n.Binding = bindingOf(t)
					return t.target
				}
			}
		}
		c.errorf(n, "Unresolved reference: %s", n.Name)

	case *parser.NavigationNode:
		if _, ok := n.Receiver.(*parser.SuperReferenceNode); ok {
			c.errorf(n, "Assignment through 'super' is not supported")
		}
		recv := c.checkExpression(n.Receiver, nil)
		if types.MayBeNull(recv) && n.Operator != "?." {
			c.nullableReceiver(n, recv)
		}
		var initScope *runtime.SymbolTable
		if _, ok := n.Receiver.(*parser.ThisReferenceNode); ok {
			initScope = c.scope.FindThis()
		}
		t := c.memberTarget(n, types.NonNull(recv), n.Member, false, initScope)
		if t == nil {
			c.errorf(n, "Unresolved reference: %s", n.Member)
		}
		n.Binding = bindingOf(t)
		return t.target
	}
	c.errorf(e, "Variable expected")
	return nil
}

func (c *Checker) localTarget(n *parser.VariableReferenceNode, p *runtime.PropertyInfo, declared *runtime.SymbolTable) *assignTarget {
	if p.Kind == runtime.GlobalNativeProperty {
		n.Binding = &runtime.GlobalPropertyBinding{Property: p.Definition}
		return &assignTarget{declared: p.Type, mutable: p.IsMutable && p.Definition.Setter != nil, assigned: func(types.Type) {}}
	}
	n.TransformedRefName = p.TransformedName
	n.Binding = &runtime.LocalBinding{RefName: p.TransformedName, Info: p}
	mutable := p.IsMutable
	if !p.IsMutable && p.Kind == runtime.LocalProperty && !p.Assigned {
		mutable = !c.crossesBoundary(declared)
	}
	return &assignTarget{
		declared: p.Type,
		mutable:  mutable,
		assigned: func(value types.Type) {
			p.Assigned = true
			c.invalidate(p.TransformedName, p.Type)
			if value != nil && !types.Equal(value, p.Type) && types.IsSubtype(value, p.Type) {
				c.scope.Narrow(p.TransformedName, value)
			}
		},
	}
}

// crossesBoundary reports whether a loop or lambda lies between the current scope
// and the scope that declared a property. A val may not be initialized there.
func (c *Checker) crossesBoundary(declared *runtime.SymbolTable) bool {
	for s := c.scope; s != nil && s != declared; s = s.Parent {
		if s.ScopeType.IsLoop() || s.ScopeType == parser.ScopeLambda {
			return true
		}
	}
	return false
}

type memberAssign struct {
	target    *assignTarget
	member    *runtime.PropertyDefinition
	extension bool
	implicit  bool
}

func bindingOf(m *memberAssign) parser.Binding {
	if m.extension {
		return &runtime.ExtensionPropertyBinding{Property: m.member, ImplicitThis: m.implicit}
	}
	return &runtime.MemberPropertyBinding{Property: m.member, ImplicitThis: m.implicit}
}

// memberTarget resolves an assignable member or extension property of recv. A val
// member may be assigned once from the initializers of its own class, where this
// is the receiver; thisScope is the scope carrying that receiver.
func (c *Checker) memberTarget(at parser.Node, recv types.Type, name string, implicit bool, thisScope *runtime.SymbolTable) *memberAssign {
	if p := c.memberProperty(recv, name); p != nil {
		declared := c.memberPropertyType(recv, p, at)
		mutable := p.IsMutable
		if !mutable && !p.Assigned && thisScope != nil && c.inInitializerOf(p.Owner, thisScope) {
			mutable = true
		}
		return &memberAssign{
			member: p, implicit: implicit,
			target: &assignTarget{declared: declared, mutable: mutable, assigned: func(types.Type) { p.Assigned = true }},
		}
	}
	if p, t := c.extensionProperty(recv, name); p != nil {
		return &memberAssign{
			member: p, extension: true, implicit: implicit,
			target: &assignTarget{declared: t, mutable: p.IsMutable && p.Setter != nil, assigned: func(types.Type) {}},
		}
	}
	return nil
}

// inInitializerOf reports whether thisScope is the initializer scope of owner and no
// loop or lambda separates it from the current scope.
func (c *Checker) inInitializerOf(owner *runtime.ClassDefinition, thisScope *runtime.SymbolTable) bool {
	if thisScope.ScopeType != parser.ScopeClassInitializer || c.classOf(thisScope.ThisType) != owner {
		return false
	}
	return !c.crossesBoundary(thisScope)
}
