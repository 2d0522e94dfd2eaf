package checker

import (
	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
	"kotlite/pkg/types"
)

// resolveType turns a written type into a static type and records it on the node.
func (c *Checker) resolveType(n *parser.TypeNode) types.Type {
	if n == nil {
		return nil
	}
	var t types.Type
	switch {
	case n.Function != nil:
		ft := &types.FunctionType{}
		if n.Function.Receiver != nil {
			ft.Receiver = c.resolveType(n.Function.Receiver)
		}
		for _, p := range n.Function.Parameters {
			ft.Parameters = append(ft.Parameters, c.resolveType(p))
		}
		ft.ReturnType = c.resolveType(n.Function.ReturnType)
		t = ft
	case n.IsStar:
		t = types.Star
	default:
		if tp := c.scope.FindTypeParameter(n.Name); tp != nil {
			if len(n.Arguments) > 0 {
				c.errorf(n, "Type arguments are not allowed for type parameters")
			}
			t = tp
			break
		}
		class := c.scope.FindClass(n.Name)
		if class == nil {
			c.errorf(n, "Unresolved reference: %s", n.Name)
		}
		if len(n.Arguments) != len(class.TypeParameters) {
			c.errorf(n, "%d type arguments expected for %s", len(class.TypeParameters), class.Type)
		}
		args := make([]types.Type, len(n.Arguments))
		for i, a := range n.Arguments {
			args[i] = c.resolveType(a)
		}
		c.checkBounds(n, class.TypeParameters, args)
		t = types.NewClassType(class, args...)
	}
	if n.IsNullable {
		t = t.WithNullable(true)
	}
	n.Resolved = t
	return t
}

// checkBounds verifies explicit or inferred type arguments against their bounds.
func (c *Checker) checkBounds(at parser.Node, params []*types.TypeParameterType, args []types.Type) {
	s := types.Bind(params, args)
	for i, tp := range params {
		if tp.Bound == nil || i >= len(args) || args[i] == nil {
			continue
		}
		if _, star := args[i].(*types.StarType); star {
			continue
		}
		bound := types.Substitute(tp.Bound, s)
		if !types.IsSubtype(args[i], bound) {
			c.errorf(at, "Type argument is not within its bounds: %s is not a subtype of %s", args[i], bound)
		}
	}
}

// declareTypeParameters declares type parameters in the current scope and resolves
// their bounds, which may mention each other.
func (c *Checker) declareTypeParameters(owner string, nodes []*parser.TypeParameterNode) []*types.TypeParameterType {
	if len(nodes) == 0 {
		return nil
	}
	tps := make([]*types.TypeParameterType, len(nodes))
	seen := map[string]bool{}
	for i, n := range nodes {
		if seen[n.Name] {
			c.errorf(n, "Conflicting type parameter: %s", n.Name)
		}
		seen[n.Name] = true
		tps[i] = &types.TypeParameterType{Name: n.Name, Owner: owner, Variance: n.Variance}
		c.scope.DeclareTypeParameter(tps[i])
	}
	for i, n := range nodes {
		if n.Bound != nil {
			tps[i].Bound = c.resolveType(n.Bound)
		}
	}
	return tps
}

// classOf returns the class whose members a value of type t has.
func (c *Checker) classOf(t types.Type) *runtime.ClassDefinition {
	switch t := types.NonNull(t).(type) {
	case *types.ClassType:
		if def, ok := t.Class.(*runtime.ClassDefinition); ok {
			return def
		}
	case *types.TypeParameterType:
		if t.Bound != nil {
			return c.classOf(t.Bound)
		}
		return c.classDef(types.AnyName)
	}
	return nil
}

// asSuper views a receiver type as an application of owner. Type parameters are
// viewed through their bounds.
func (c *Checker) asSuper(t types.Type, owner *runtime.ClassDefinition) *types.ClassType {
	switch t := types.NonNull(t).(type) {
	case *types.ClassType:
		return types.AsSuperType(t, owner)
	case *types.TypeParameterType:
		if t.Bound != nil {
			return c.asSuper(t.Bound, owner)
		}
		return types.AsSuperType(c.builtin(types.AnyName), owner)
	}
	return nil
}

// ownerSubstitution maps the owner's type parameters to the receiver's arguments.
func (c *Checker) ownerSubstitution(receiver types.Type, owner *runtime.ClassDefinition) types.Substitution {
	s := types.Substitution{}
	if owner == nil || receiver == nil || len(owner.TypeParameters) == 0 {
		return s
	}
	view := c.asSuper(receiver, owner)
	if view == nil {
		return s
	}
	for i, tp := range owner.TypeParameters {
		if i < len(view.Arguments) {
			s[tp.Key()] = c.project(view.Arguments[i])
		}
	}
	return s
}

// project reads a star projection as Any?.
func (c *Checker) project(t types.Type) types.Type {
	if _, star := t.(*types.StarType); star {
		return c.nullableAny()
	}
	return t
}

// iterableElement returns the element type a for-loop over t yields.
func (c *Checker) iterableElement(t types.Type) (types.Type, bool) {
	if types.MayBeNull(t) {
		return nil, false
	}
	if types.IsNamed(t, types.StringName) {
		return c.builtin(types.CharName), true
	}
	view := c.asSuper(t, c.classDef("Iterable"))
	if view == nil || len(view.Arguments) != 1 {
		return nil, false
	}
	return c.project(view.Arguments[0]), true
}

// isPrimitive reports whether t is one of the value classes with built-in operators.
func isPrimitive(t types.Type) bool {
	switch {
	case types.IsNamed(t, types.IntName), types.IsNamed(t, types.LongName), types.IsNamed(t, types.DoubleName),
		types.IsNamed(t, types.ByteName), types.IsNamed(t, types.CharName), types.IsNamed(t, types.BooleanName),
		types.IsNamed(t, types.StringName):
		return true
	}
	return false
}

// numericRank orders the numeric classes for promotion; -1 for anything else.
func numericRank(t types.Type) int {
	if t == nil || t.IsNullable() {
		return -1
	}
	switch {
	case types.IsNamed(t, types.ByteName):
		return 0
	case types.IsNamed(t, types.IntName):
		return 1
	case types.IsNamed(t, types.LongName):
		return 2
	case types.IsNamed(t, types.DoubleName):
		return 3
	}
	return -1
}

func (c *Checker) numericType(rank int) types.Type {
	switch rank {
	case 2:
		return c.builtin(types.LongName)
	case 3:
		return c.builtin(types.DoubleName)
	}
	return c.intType()
}

func isNonNullNamed(t types.Type, name string) bool {
	return t != nil && !t.IsNullable() && types.IsNamed(t, name)
}
