package checker

import (
	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
	"kotlite/pkg/types"
)

// checkExpression infers the type of e, records it on the node and returns it.
// expected guides literal typing, lambdas and generic inference; it is not enforced.
func (c *Checker) checkExpression(e parser.Expression, expected types.Type) types.Type {
	t := c.expression(e, expected)
	e.SetComputedType(t)
	return t
}

// checkExpected checks e and requires its type to conform to expected.
func (c *Checker) checkExpected(e parser.Expression, expected types.Type) types.Type {
	t := c.checkExpression(e, expected)
	if expected != nil && !types.IsSubtype(t, expected) {
		c.mismatch(e, expected, t)
	}
	return t
}

func (c *Checker) expression(e parser.Expression, expected types.Type) types.Type {
	switch n := e.(type) {
	case *parser.IntegerNode:
		return c.integerLiteralType(n, expected)
	case *parser.LongNode:
		return c.builtin(types.LongName)
	case *parser.DoubleNode:
		return c.builtin(types.DoubleName)
	case *parser.BooleanNode:
		return c.booleanType()
	case *parser.CharNode:
		return c.builtin(types.CharName)
	case *parser.NullNode:
		return c.nothingType().WithNullable(true)
	case *parser.StringLiteralNode:
		return c.stringType()
	case *parser.StringNode:
		for _, part := range n.Parts {
			c.checkExpression(part, nil)
		}
		return c.stringType()
	case *parser.VariableReferenceNode:
		return c.checkReference(n)
	case *parser.ThisReferenceNode:
		s := c.scope.FindThis()
		if s == nil {
			c.errorf(n, "'this' is not defined in this context")
		}
		return s.ThisType
	case *parser.SuperReferenceNode:
		c.errorf(n, "'super' is not an expression, it can only be used on the left-hand side of a dot ('.')")
	case *parser.BinaryOpNode:
		return c.checkBinary(n, expected)
	case *parser.UnaryOpNode:
		return c.checkUnary(n, expected)
	case *parser.NavigationNode:
		return c.checkNavigation(n)
	case *parser.IndexOpNode:
		return c.checkIndex(n)
	case *parser.FunctionCallNode:
		return c.checkCall(n, expected)
	case *parser.LambdaLiteralNode:
		return c.checkLambda(n, expected)
	case *parser.BlockNode:
		return c.checkBlock(n, expected, nil)
	case *parser.IfNode:
		return c.checkIf(n, expected)
	case *parser.WhenNode:
		return c.checkWhen(n, expected)
	case *parser.TryNode:
		return c.checkTry(n, expected)
	case *parser.ThrowNode:
		c.checkExpected(n.Value, c.throwableType())
		return c.nothingType()
	case *parser.ReturnNode:
		return c.checkReturn(n)
	case *parser.BreakNode:
		c.checkJump(n)
		return c.nothingType()
	case *parser.ContinueNode:
		c.checkJump(n)
		return c.nothingType()
	case *parser.IsNode:
		c.checkExpression(n.Subject, nil)
		c.checkTypeTest(n.Type)
		return c.booleanType()
	case *parser.AsNode:
		c.checkExpression(n.Subject, nil)
		t := c.resolveType(n.Type)
		if n.IsSafe {
			return t.WithNullable(true)
		}
		return t
	}
	c.errorf(e, "Unsupported expression")
	return nil
}

// integerLiteralType types an Int literal as Long or Byte when that is expected.
func (c *Checker) integerLiteralType(n *parser.IntegerNode, expected types.Type) types.Type {
	switch {
	case types.IsNamed(expected, types.LongName):
		return c.builtin(types.LongName)
	case types.IsNamed(expected, types.ByteName) && n.Value >= -128 && n.Value <= 127:
		return c.builtin(types.ByteName)
	}
	return c.intType()
}

// isIntegerLiteral reports whether e is an Int literal, possibly negated.
func isIntegerLiteral(e parser.Expression) bool {
	switch n := e.(type) {
	case *parser.IntegerNode:
		return true
	case *parser.UnaryOpNode:
		return n.IsPrefix && (n.Operator == "-" || n.Operator == "+") && isIntegerLiteral(n.Operand)
	}
	return false
}

// checkTypeTest resolves the type of an is-check. Only the class can be tested at
// runtime, so type arguments must be star projections.
func (c *Checker) checkTypeTest(n *parser.TypeNode) types.Type {
	t := c.resolveType(n)
	switch t := t.(type) {
	case *types.TypeParameterType:
		c.errorf(n, "Cannot check for instance of erased type: %s", t)
	case *types.FunctionType:
		c.errorf(n, "Cannot check for instance of function type: %s", t)
	case *types.ClassType:
		for _, a := range t.Arguments {
			if _, star := a.(*types.StarType); !star {
				c.errorf(n, "Cannot check for instance of erased type: %s", t)
			}
		}
	}
	return t
}

// --- References ---

func (c *Checker) checkReference(n *parser.VariableReferenceNode) types.Type {
	for s := c.scope; s != nil; s = s.Parent {
		if p := s.LocalProperty(n.Name); p != nil {
			if p.Kind == runtime.GlobalNativeProperty {
				n.Binding = &runtime.GlobalPropertyBinding{Property: p.Definition}
				return p.Type
			}
			if !p.Assigned {
				c.errorf(n, "Variable '%s' must be initialized", n.Name)
			}
			n.TransformedRefName = p.TransformedName
			n.Binding = &runtime.LocalBinding{RefName: p.TransformedName, Info: p}
			if t, ok := c.scope.NarrowedType(p.TransformedName); ok {
				return t
			}
			return p.Type
		}
		if s.ThisType != nil {
			if t := c.implicitProperty(n, s.ThisType); t != nil {
				return t
			}
		}
	}
	if len(c.visibleFunctions(n.Name)) > 0 {
		c.errorf(n, "Function references are not supported: call '%s' instead", n.Name)
	}
	c.errorf(n, "Unresolved reference: %s", n.Name)
	return nil
}

// implicitProperty resolves a bare name against a member or extension property of
// an implicit receiver.
func (c *Checker) implicitProperty(n *parser.VariableReferenceNode, this types.Type) types.Type {
	if p := c.memberProperty(this, n.Name); p != nil {
		n.Binding = &runtime.MemberPropertyBinding{Property: p, ImplicitThis: true}
		return c.memberPropertyType(this, p, n)
	}
	if p, t := c.extensionProperty(this, n.Name); p != nil {
		n.Binding = &runtime.ExtensionPropertyBinding{Property: p, ImplicitThis: true}
		return t
	}
	return nil
}

func (c *Checker) memberProperty(receiver types.Type, name string) *runtime.PropertyDefinition {
	class := c.classOf(receiver)
	if class == nil {
		return nil
	}
	return class.FindProperty(name)
}

// memberPropertyType substitutes the receiver's type arguments into the property type.
func (c *Checker) memberPropertyType(receiver types.Type, p *runtime.PropertyDefinition, at parser.Node) types.Type {
	t := c.propertyType(p, at)
	return c.project(types.Substitute(t, c.ownerSubstitution(receiver, p.Owner)))
}

// extensionProperty finds a native extension property applicable to receiver.
func (c *Checker) extensionProperty(receiver types.Type, name string) (*runtime.PropertyDefinition, types.Type) {
	for _, p := range c.extensionProperties[name] {
		free := map[string]bool{}
		for _, tp := range p.TypeParameters {
			free[tp.Key()] = true
		}
		s := types.Substitution{}
		types.Unify(p.Receiver, receiver, s, free, c.anyType())
		if types.IsSubtype(receiver, types.Substitute(p.Receiver, s)) {
			return p, c.project(types.Substitute(p.Type, s))
		}
	}
	return nil, nil
}

// --- Navigation ---

func (c *Checker) checkNavigation(n *parser.NavigationNode) types.Type {
	if _, ok := n.Receiver.(*parser.SuperReferenceNode); ok {
		super := c.superType(n.Receiver)
		p := c.memberProperty(super, n.Member)
		if p == nil {
			c.errorf(n, "Unresolved reference: %s", n.Member)
		}
		if p.IsAbstract {
			c.errorf(n, "Abstract member cannot be accessed directly")
		}
		n.Binding = &runtime.MemberPropertyBinding{Property: p}
		return c.memberPropertyType(super, p, n)
	}
	recv := c.checkExpression(n.Receiver, nil)
	safe := n.Operator == "?."
	nullable := types.MayBeNull(recv)
	if p := c.memberProperty(recv, n.Member); p != nil {
		if nullable && !safe {
			c.nullableReceiver(n, recv)
		}
		n.Binding = &runtime.MemberPropertyBinding{Property: p}
		return c.safeResult(c.memberPropertyType(recv, p, n), safe && nullable)
	}
	lookup := recv
	if safe {
		lookup = types.NonNull(recv)
	}
	if p, t := c.extensionProperty(lookup, n.Member); p != nil {
		n.Binding = &runtime.ExtensionPropertyBinding{Property: p}
		return c.safeResult(t, safe && nullable)
	}
	if nullable && !safe {
		if p, _ := c.extensionProperty(types.NonNull(recv), n.Member); p != nil {
			c.nullableReceiver(n, recv)
		}
	}
	c.errorf(n, "Unresolved reference: %s", n.Member)
	return nil
}

func (c *Checker) safeResult(t types.Type, nullable bool) types.Type {
	if nullable {
		return t.WithNullable(true)
	}
	return t
}

func (c *Checker) nullableReceiver(n parser.Node, recv types.Type) {
	c.errorf(n, "Only safe (?.) or non-null asserted (!!.) calls are allowed on a nullable receiver of type %s", recv)
}

// superType is the superclass type seen from the innermost class body.
func (c *Checker) superType(n parser.Expression) types.Type {
	s := c.scope.FindThis()
	if s == nil {
		c.errorf(n, "'super' is not allowed here")
	}
	class := c.classOf(s.ThisType)
	if class == nil || class.SuperClassType == nil || s.Function != nil && s.Function.Owner == nil && s.Function.Receiver != nil {
		c.errorf(n, "'super' is not allowed here")
	}
	t := types.Substitute(class.SuperClassType, c.ownerSubstitution(s.ThisType, class))
	n.SetComputedType(t)
	return t
}

// --- Index access ---

func (c *Checker) checkIndex(n *parser.IndexOpNode) types.Type {
	subject := c.checkExpression(n.Subject, nil)
	if types.MayBeNull(subject) {
		c.nullableReceiver(n, subject)
	}
	r := c.resolveOperator(n, subject, "get", n.Indices, "operator")
	if r == nil {
		c.errorf(n, "No get method providing array access on %s", subject)
	}
	n.Binding = r.binding
	return r.returnType
}

// --- Conditionals ---

func (c *Checker) checkIf(n *parser.IfNode, expected types.Type) types.Type {
	c.checkExpected(n.Condition, c.booleanType())
	whenTrue, whenFalse := c.conditionFacts(n.Condition)
	if n.Else == nil {
		if n.Then != nil {
			c.checkBlock(n.Then, nil, whenTrue)
		}
		return c.unitType()
	}
	var thenType types.Type = c.unitType()
	if n.Then != nil {
		thenType = c.checkBlock(n.Then, expected, whenTrue)
	}
	elseType := c.checkBlock(n.Else, expected, whenFalse)
	return types.CommonSupertype(thenType, elseType, c.anyType())
}

func (c *Checker) checkWhen(n *parser.WhenNode, expected types.Type) types.Type {
	var subject types.Type
	var subjectRef string
	if n.Subject != nil {
		subject = c.checkExpression(n.Subject, nil)
		subjectRef, _ = stableRef(n.Subject)
	}
	if n.Else == nil {
		expected = nil
	}
	var result types.Type
	var rest narrowing
	for _, br := range n.Branches {
		var facts narrowing
		for _, cond := range br.Conditions {
			c.checkWhenCondition(n, cond, subject, rest)
		}
		if len(br.Conditions) == 1 {
			cond := br.Conditions[0]
			switch {
			case n.Subject == nil:
				whenTrue, whenFalse := c.conditionFacts(cond.Expression)
				facts = merge(rest, whenTrue)
				rest = merge(rest, whenFalse)
			case cond.Kind == parser.WhenIs && subjectRef != "":
				if cond.Negated {
					rest = merge(rest, narrowing{subjectRef: cond.Type.Resolved})
				} else {
					facts = narrowing{subjectRef: cond.Type.Resolved}
				}
			}
		}
		if n.Subject == nil && facts == nil {
			facts = rest
		}
		t := c.checkBlock(br.Body, expected, facts)
		result = types.CommonSupertype(result, t, c.anyType())
	}
	if n.Else == nil {
		return c.unitType()
	}
	t := c.checkBlock(n.Else, expected, rest)
	return types.CommonSupertype(result, t, c.anyType())
}

func (c *Checker) checkWhenCondition(n *parser.WhenNode, cond *parser.WhenConditionNode, subject types.Type, facts narrowing) {
	switch cond.Kind {
	case parser.WhenExpression:
		if n.Subject == nil {
			c.withFacts(facts, func() { c.checkExpected(cond.Expression, c.booleanType()) })
			return
		}
		t := c.checkExpression(cond.Expression, subject)
		c.checkEqualityApplicable(cond, subject, t)
	case parser.WhenIs:
		if n.Subject == nil {
			c.errorf(cond, "Expected a when subject for 'is'")
		}
		c.checkTypeTest(cond.Type)
	case parser.WhenIn:
		if n.Subject == nil {
			c.errorf(cond, "Expected a when subject for 'in'")
		}
		container := c.checkExpression(cond.Expression, nil)
		r := c.resolveOperatorTypes(cond, container, "contains", []types.Type{subject}, "operator")
		if r == nil {
			c.errorf(cond, "Unresolved reference: contains on %s", container)
		}
		if !isNonNullNamed(r.returnType, types.BooleanName) {
			c.errorf(cond, "'contains' must return Boolean")
		}
		cond.Binding = r.binding
	}
}

// checkEqualityApplicable rejects equality between unrelated built-in value types,
// which can never be equal.
func (c *Checker) checkEqualityApplicable(at parser.Node, a, b types.Type) {
	na, nb := types.NonNull(a), types.NonNull(b)
	if isPrimitive(na) && isPrimitive(nb) && !types.Equal(na, nb) {
		c.errorf(at, "Operator '==' cannot be applied to '%s' and '%s'", a, b)
	}
}

func (c *Checker) checkTry(n *parser.TryNode, expected types.Type) types.Type {
	result := c.checkBlock(n.Body, expected, nil)
	for _, cn := range n.Catches {
		exc := c.resolveType(cn.Type)
		if !types.IsSubtype(exc, c.throwableType()) {
			c.mismatch(cn.Type, c.throwableType(), exc)
		}
		if _, ok := exc.(*types.ClassType); !ok || exc.IsNullable() {
			c.errorf(cn.Type, "Catch parameter must be a non-null class type")
		}
		cn.TransformedRefName = c.newRefName(cn.Name)
		t := c.checkBlockWith(cn.Body, expected, nil, func() {
			c.scope.DeclareProperty(&runtime.PropertyInfo{
				Name: cn.Name, TransformedName: cn.TransformedRefName, Type: exc,
				Assigned: true, Kind: runtime.LocalProperty,
			})
		})
		result = types.CommonSupertype(result, t, c.anyType())
	}
	if n.Finally != nil {
		c.checkBlock(n.Finally, nil, nil)
	}
	return result
}

func (c *Checker) checkReturn(n *parser.ReturnNode) types.Type {
	s := c.returnScope(n)
	want := s.ReturnType
	if want == nil {
		c.errorf(n, "Returns are not allowed for functions with expression body. Use block body in '{...}'")
	}
	if n.Value == nil {
		if !types.IsUnit(want) {
			c.mismatch(n, want, c.unitType())
		}
	} else {
		c.checkExpected(n.Value, want)
	}
	return c.nothingType()
}

// --- Lambdas ---

func (c *Checker) checkLambda(n *parser.LambdaLiteralNode, expected types.Type) types.Type {
	var want *types.FunctionType
	if expected != nil {
		want, _ = types.NonNull(expected).(*types.FunctionType)
	}
	scope := c.scope.NewChild("<lambda>", parser.ScopeLambda)
	ft := &types.FunctionType{}
	var wantParams []types.Type
	if want != nil {
		ft.Receiver = want.Receiver
		scope.ThisType = want.Receiver
		wantParams = want.Parameters
	}
	c.withScope(scope, func() {
		switch {
		case n.HasArrow || len(n.Parameters) > 0:
			if want != nil && len(n.Parameters) != len(wantParams) {
				c.errorf(n, "Expected %d parameters, but %d were declared", len(wantParams), len(n.Parameters))
			}
			for i, p := range n.Parameters {
				var t types.Type
				if p.Type != nil {
					t = c.resolveType(p.Type)
					if want != nil && wantParams[i] != nil && !types.IsSubtype(wantParams[i], t) {
						c.mismatch(p.Type, wantParams[i], t)
					}
				} else if want != nil && wantParams[i] != nil {
					t = wantParams[i]
				} else {
					c.errorf(p, "Cannot infer a type for this parameter. Please specify it explicitly.")
				}
				p.TransformedRefName = c.newRefName(p.Name)
				if p.Name != "_" && !scope.DeclareProperty(&runtime.PropertyInfo{
					Name: p.Name, TransformedName: p.TransformedRefName, Type: t,
					Assigned: true, Kind: runtime.ParameterProperty,
				}) {
					c.errorf(p, "Conflicting declarations: %s", p.Name)
				}
				ft.Parameters = append(ft.Parameters, t)
			}
		case len(wantParams) == 1:
			if wantParams[0] == nil {
				c.errorf(n, "Cannot infer a type for the implicit parameter 'it'. Please specify it explicitly.")
			}
			n.ItRefName = c.newRefName("it")
			scope.DeclareProperty(&runtime.PropertyInfo{
				Name: "it", TransformedName: n.ItRefName, Type: wantParams[0],
				Assigned: true, Kind: runtime.ParameterProperty,
			})
			ft.Parameters = []types.Type{wantParams[0]}
		case len(wantParams) > 1:
			c.errorf(n, "Expected %d parameters, but the lambda declares none", len(wantParams))
		}

		var ret types.Type
		if want != nil {
			ret = want.ReturnType
		}
		if ret != nil && types.IsUnit(ret) {
			n.ReturnsUnit = true
			c.checkStatements(n.Body.Statements, nil)
			ft.ReturnType = ret
			return
		}
		t := c.checkStatements(n.Body.Statements, ret)
		if len(n.Body.Statements) > 0 {
			if _, isExpr := n.Body.Statements[len(n.Body.Statements)-1].(parser.Expression); !isExpr && !types.IsNothing(t) {
				t = c.unitType()
			}
		}
		if ret != nil && !types.IsSubtype(t, ret) {
			at := parser.Node(n)
			if len(n.Body.Statements) > 0 {
				at = n.Body.Statements[len(n.Body.Statements)-1]
			}
			c.mismatch(at, ret, t)
		}
		ft.ReturnType = t
	})
	n.Body.ComputedType = ft.ReturnType
	return ft
}
