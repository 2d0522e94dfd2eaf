package checker

import (
	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
	"kotlite/pkg/types"
)

// checkStatements checks a statement list in the current scope and returns the type
// of the last statement, or Nothing when some statement never completes. expected
// applies to the last statement.
func (c *Checker) checkStatements(stmts []parser.Statement, expected types.Type) types.Type {
	if c.scope == c.root {
		c.hoist(stmts)
	}
	var last types.Type = c.unitType()
	jumps := false
	for i, st := range stmts {
		var want types.Type
		if i == len(stmts)-1 {
			want = expected
		}
		last = c.checkStatement(st, want)
		if types.IsNothing(last) && !last.IsNullable() {
			jumps = true
		}
		if n, ok := st.(*parser.IfNode); ok {
			c.narrowAfterIf(n)
		}
	}
	if jumps {
		return c.nothingType()
	}
	return last
}

// hoist declares the classes and functions of a top-level statement list before
// any statement is checked, so they may be used ahead of their declaration.
func (c *Checker) hoist(stmts []parser.Statement) {
	var classes []*parser.ClassDeclarationNode
	for _, st := range stmts {
		if d, ok := st.(*parser.ClassDeclarationNode); ok {
			classes = append(classes, d)
		}
	}
	if len(classes) > 0 {
		c.declareScriptClasses(classes)
	}
	for _, st := range stmts {
		if d, ok := st.(*parser.FunctionDeclarationNode); ok {
			c.declareFunction(d)
		}
	}
}

func (c *Checker) checkStatement(st parser.Statement, expected types.Type) types.Type {
	switch n := st.(type) {
	case *parser.PropertyDeclarationNode:
		c.checkPropertyDeclaration(n)
	case *parser.FunctionDeclarationNode:
		if c.scope != c.root {
			c.declareFunction(n)
		}
		c.checkFunctionBody(n.Definition.(*runtime.FunctionDefinition))
	case *parser.ClassDeclarationNode:
		def, ok := n.Definition.(*runtime.ClassDefinition)
		if c.scope != c.root || !ok {
			c.errorf(n, "Class declarations are only allowed at the top level")
		}
		c.checkClassBody(c.classes[def])
	case *parser.AssignmentNode:
		c.checkAssignment(n)
	case *parser.WhileNode:
		return c.checkWhile(n)
	case *parser.DoWhileNode:
		c.checkDoWhile(n)
	case *parser.ForNode:
		c.checkFor(n)
	case *parser.ClassInstanceInitializerNode:
		c.errorf(n, "Initializers are only allowed in class bodies")
	case parser.Expression:
		return c.checkExpression(n, expected)
	default:
		c.errorf(st, "Unsupported statement")
	}
	return c.unitType()
}

// checkBlock checks a block in a fresh scope of the block's kind. facts are smart
// casts that hold inside; declare runs first in the new scope.
func (c *Checker) checkBlock(b *parser.BlockNode, expected types.Type, facts narrowing) types.Type {
	return c.checkBlockWith(b, expected, facts, nil)
}

func (c *Checker) checkBlockWith(b *parser.BlockNode, expected types.Type, facts narrowing, declare func()) types.Type {
	scope := c.scope.NewChild(b.Type.String(), b.Type)
	facts.apply(scope)
	var t types.Type
	c.withScope(scope, func() {
		if declare != nil {
			declare()
		}
		t = c.checkStatements(b.Statements, expected)
	})
	b.ComputedType = t
	return t
}

// --- Properties ---

func (c *Checker) checkPropertyDeclaration(n *parser.PropertyDeclarationNode) {
	if n.Receiver != nil || len(n.TypeParameters) > 0 {
		c.errorf(n, "Extension properties can only be declared by native modules")
	}
	for _, m := range n.Modifiers {
		if c.scope != c.root || (m != "private" && m != "const") {
			c.errorf(n, "Modifier '%s' is not applicable to 'local variable'", m)
		}
	}
	declared := c.resolveType(n.Type)
	t := declared
	var initType types.Type
	if n.Initializer != nil {
		initType = c.checkExpected(n.Initializer, declared)
		if t == nil {
			t = initType
		}
	} else if declared == nil {
		c.errorf(n, "This variable must either have a type annotation or be initialized")
	}
	info := &runtime.PropertyInfo{
		Name: n.Name, TransformedName: c.newRefName(n.Name), Type: t,
		IsMutable: n.IsMutable, Assigned: n.Initializer != nil, Kind: runtime.LocalProperty,
	}
	if !c.scope.DeclareProperty(info) {
		c.errorf(n, "Conflicting declarations: %s", n.Name)
	}
	n.TransformedRefName = info.TransformedName
	if declared != nil && initType != nil && !types.Equal(initType, declared) && !types.IsNothing(initType) {
		c.scope.Narrow(info.TransformedName, initType)
	}
}

// --- Functions ---

// declareFunction builds the signature of a script function and declares it in the
// current scope.
func (c *Checker) declareFunction(d *parser.FunctionDeclarationNode) *runtime.FunctionDefinition {
	if d.Body == nil {
		c.errorf(d, "Function '%s' must have a body", d.Name)
	}
	for _, m := range d.Modifiers {
		switch m {
		case "operator", "infix", "private", "inline", "tailrec":
		default:
			c.errorf(d, "Modifier '%s' is not applicable to functions outside classes", m)
		}
	}
	fn := c.functionSignature(d, nil)
	for _, other := range c.scope.LocalFunctions(fn.Name) {
		if types.Equal(other.Receiver, fn.Receiver) && sameParameters(other.ParameterTypes(), fn.ParameterTypes()) {
			c.errorf(d, "Conflicting overloads: %s", fn)
		}
	}
	c.scope.DeclareFunction(fn)
	return fn
}

// functionSignature resolves type parameters, receiver, parameters and the declared
// return type. An expression body without a declared type is inferred on demand.
func (c *Checker) functionSignature(d *parser.FunctionDeclarationNode, owner *runtime.ClassDefinition) *runtime.FunctionDefinition {
	fn := &runtime.FunctionDefinition{
		Name: d.Name, TransformedName: c.newRefName(d.Name), Modifiers: d.Modifiers,
		Declaration: d, Owner: owner,
	}
	d.TransformedRefName = fn.TransformedName
	d.Definition = fn
	sig := c.scope.NewChild(d.Name, parser.ScopeBlock)
	c.functions[fn] = &functionInfo{scope: sig}
	c.withScope(sig, func() {
		fn.TypeParameters = c.declareTypeParameters(fn.TransformedName, d.TypeParameters)
		if d.Receiver != nil {
			fn.Receiver = c.resolveType(d.Receiver)
		}
		seen := map[string]bool{}
		for _, pn := range d.Parameters {
			fn.Parameters = append(fn.Parameters, c.parameter(pn, seen))
		}
		switch {
		case d.ReturnType != nil:
			fn.ReturnType = c.resolveType(d.ReturnType)
		case d.IsExpressionBody:
		default:
			fn.ReturnType = c.unitType()
		}
	})
	c.checkOperatorDeclaration(fn)
	return fn
}

func (c *Checker) parameter(n *parser.FunctionValueParameterNode, seen map[string]bool) *runtime.ParameterDefinition {
	if n.Type == nil {
		c.errorf(n, "A type annotation is required on a value parameter")
	}
	if seen[n.Name] {
		c.errorf(n, "Conflicting declarations: %s", n.Name)
	}
	if n.IsVararg() && seen["vararg"] {
		c.errorf(n, "Multiple vararg-parameters are prohibited")
	}
	seen[n.Name] = true
	if n.IsVararg() {
		seen["vararg"] = true
	}
	p := &runtime.ParameterDefinition{
		Name: n.Name, Type: c.resolveType(n.Type), HasDefault: n.DefaultValue != nil,
		IsVararg: n.IsVararg(), TransformedName: c.newRefName(n.Name), Declaration: n,
	}
	n.TransformedRefName = p.TransformedName
	return p
}

// parameterValueType is the type of a parameter inside the body: a vararg of T is a
// List<T>.
func (c *Checker) parameterValueType(p *runtime.ParameterDefinition) types.Type {
	if p.IsVararg {
		return c.listOf(p.Type)
	}
	return p.Type
}

// checkOperatorDeclaration validates the shape of functions marked operator.
func (c *Checker) checkOperatorDeclaration(fn *runtime.FunctionDefinition) {
	if !fn.Modifiers.Has("operator") {
		return
	}
	arity := len(fn.Parameters)
	ok := true
	switch fn.Name {
	case "plus", "minus", "times", "div", "rem", "rangeTo",
		"plusAssign", "minusAssign", "timesAssign", "divAssign", "remAssign":
		ok = arity == 1
	case "unaryPlus", "unaryMinus", "not", "inc", "dec", "hasNext", "next":
		ok = arity == 0
	case "compareTo":
		ok = arity == 1
		if fn.ReturnType != nil && !isNonNullNamed(fn.ReturnType, types.IntName) {
			c.errorf(fn.Declaration, "'compareTo' must return Int")
		}
	case "contains":
		ok = arity == 1
		if fn.ReturnType != nil && !isNonNullNamed(fn.ReturnType, types.BooleanName) {
			c.errorf(fn.Declaration, "'contains' must return Boolean")
		}
	case "get":
		ok = arity >= 1
	case "set":
		ok = arity >= 2
	case "equals":
		ok = arity == 1
	case "invoke", "iterator", "hashCode", "toString":
	default:
		c.errorf(fn.Declaration, "'operator' modifier is inapplicable on this function: illegal function name")
	}
	if !ok {
		c.errorf(fn.Declaration, "'operator' modifier is inapplicable on this function: wrong number of parameters")
	}
}

// returnType returns the return type of fn, checking its body first when the type
// is inferred.
func (c *Checker) returnType(fn *runtime.FunctionDefinition, at parser.Node) types.Type {
	if fn.ReturnType == nil {
		c.checkFunctionBody(fn)
	}
	if fn.ReturnType == nil {
		c.errorf(at, "Cannot infer the return type of '%s'", fn.Name)
	}
	return fn.ReturnType
}

func (c *Checker) checkFunctionBody(fn *runtime.FunctionDefinition) {
	info := c.functions[fn]
	d := fn.Declaration
	if info == nil || info.checked || d == nil || d.Body == nil || fn.Native != nil {
		return
	}
	if info.inferring {
		c.errorf(d, "Type checking has run into a recursive problem for '%s': specify its return type explicitly", fn.Name)
	}
	info.inferring = true
	params := info.scope.NewChild(fn.Name, parser.ScopeFunction)
	params.Function = fn
	params.ReturnType = fn.ReturnType
	switch {
	case fn.Owner != nil:
		params.ThisType = fn.Owner.Type
	case fn.Receiver != nil:
		params.ThisType = fn.Receiver
	}
	c.withScope(params, func() {
		for _, p := range fn.Parameters {
			if dv := p.Declaration.DefaultValue; dv != nil {
				c.checkExpected(dv, c.parameterValueType(p))
			}
			params.DeclareProperty(&runtime.PropertyInfo{
				Name: p.Name, TransformedName: p.TransformedName, Type: c.parameterValueType(p),
				Assigned: true, Kind: runtime.ParameterProperty,
			})
		}
		if d.IsExpressionBody {
			expr, ok := d.Body.Statements[0].(parser.Expression)
			if !ok {
				c.errorf(d, "Expecting an expression")
			}
			if fn.ReturnType == nil {
				fn.ReturnType = c.checkExpression(expr, nil)
				c.checkOperatorDeclaration(fn)
			} else {
				c.checkExpected(expr, fn.ReturnType)
			}
			d.Body.ComputedType = fn.ReturnType
			return
		}
		var t types.Type
		c.withScope(params.NewChild(fn.Name, parser.ScopeBlock), func() {
			t = c.checkStatements(d.Body.Statements, nil)
		})
		d.Body.ComputedType = t
		if !types.IsUnit(fn.ReturnType) && !(types.IsNothing(t) && !t.IsNullable()) {
			c.errorf(d, "A 'return' expression required in a function with a block body ('{...}')")
		}
	})
	info.inferring = false
	info.checked = true
}

// --- Loops ---

func (c *Checker) checkWhile(n *parser.WhileNode) types.Type {
	c.checkExpected(n.Condition, c.booleanType())
	whenTrue, _ := c.conditionFacts(n.Condition)
	c.checkBlock(n.Body, nil, whenTrue)
	if b, ok := n.Condition.(*parser.BooleanNode); ok && b.Value && !containsBreak(n.Body.Statements) {
		return c.nothingType()
	}
	return c.unitType()
}

// checkDoWhile checks the condition in the body scope: declarations of the body are
// visible to it.
func (c *Checker) checkDoWhile(n *parser.DoWhileNode) {
	scope := c.scope.NewChild(n.Body.Type.String(), n.Body.Type)
	c.withScope(scope, func() {
		n.Body.ComputedType = c.checkStatements(n.Body.Statements, nil)
		c.checkExpected(n.Condition, c.booleanType())
	})
}

func (c *Checker) checkFor(n *parser.ForNode) {
	subject := c.checkExpression(n.Subject, nil)
	elem, ok := c.iterableElement(subject)
	if !ok {
		c.errorf(n.Subject, "For-loop range must be an Iterable, got %s", subject)
	}
	if n.VariableType != nil {
		declared := c.resolveType(n.VariableType)
		if !types.IsSubtype(elem, declared) {
			c.mismatch(n.VariableType, declared, elem)
		}
		elem = declared
	}
	n.TransformedRefName = c.newRefName(n.VariableName)
	c.checkBlockWith(n.Body, nil, nil, func() {
		c.scope.DeclareProperty(&runtime.PropertyInfo{
			Name: n.VariableName, TransformedName: n.TransformedRefName, Type: elem,
			Assigned: true, Kind: runtime.LocalProperty,
		})
	})
}

// containsBreak reports whether a break may leave the loop whose body is stmts.
func containsBreak(stmts []parser.Statement) bool {
	for _, st := range stmts {
		if jumpsOut(st) {
			return true
		}
	}
	return false
}

func jumpsOut(st parser.Statement) bool {
	switch n := st.(type) {
	case *parser.BreakNode:
		return true
	case *parser.BlockNode:
		return n != nil && containsBreak(n.Statements)
	case *parser.IfNode:
		return (n.Then != nil && containsBreak(n.Then.Statements)) || (n.Else != nil && containsBreak(n.Else.Statements))
	case *parser.WhenNode:
		for _, br := range n.Branches {
			if containsBreak(br.Body.Statements) {
				return true
			}
		}
		return n.Else != nil && containsBreak(n.Else.Statements)
	case *parser.TryNode:
		if containsBreak(n.Body.Statements) {
			return true
		}
		for _, cn := range n.Catches {
			if containsBreak(cn.Body.Statements) {
				return true
			}
		}
		return n.Finally != nil && containsBreak(n.Finally.Statements)
	case *parser.BinaryOpNode:
		return jumpsOut(n.Left) || jumpsOut(n.Right)
	}
	return false
}

// --- Control flow placement ---

// checkJump verifies that break or continue has an enclosing loop within the same
// function or lambda.
func (c *Checker) checkJump(n parser.Node) {
	for s := c.scope; s != nil; s = s.Parent {
		if s.ScopeType.IsLoop() {
			return
		}
		if isBoundary(s.ScopeType) {
			break
		}
	}
	c.errorf(n, "'break' and 'continue' are only allowed inside a loop")
}

// returnScope finds the function body a return belongs to.
func (c *Checker) returnScope(n parser.Node) *runtime.SymbolTable {
	for s := c.scope; s != nil; s = s.Parent {
		if s.ScopeType == parser.ScopeFunction && s.Function != nil {
			return s
		}
		if isBoundary(s.ScopeType) {
			break
		}
	}
	c.errorf(n, "'return' is not allowed here")
	return nil
}

func isBoundary(t parser.ScopeType) bool {
	switch t {
	case parser.ScopeFunction, parser.ScopeLambda, parser.ScopeScript, parser.ScopeClass,
		parser.ScopeClassInitializer, parser.ScopeConstructor:
		return true
	}
	return false
}
