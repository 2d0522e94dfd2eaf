package checker

import (
	"kotlite/pkg/parser"
	"kotlite/pkg/types"
)

// operatorFunctions maps arithmetic operators to their convention names.
var operatorFunctions = map[string]string{
	"+":  "plus",
	"-":  "minus",
	"*":  "times",
	"/":  "div",
	"%":  "rem",
	"..": "rangeTo",
}

func (c *Checker) checkBinary(n *parser.BinaryOpNode, expected types.Type) types.Type {
	switch op := n.Operator; op {
	case "&&", "||":
		c.checkExpected(n.Left, c.booleanType())
		whenTrue, whenFalse := c.conditionFacts(n.Left)
		facts := whenTrue
		if op == "||" {
			facts = whenFalse
		}
		c.withFacts(facts, func() { c.checkExpected(n.Right, c.booleanType()) })
		return c.booleanType()

	case "?:":
		l := c.checkExpression(n.Left, expected)
		hint := expected
		if hint == nil {
			hint = types.NonNull(l)
		}
		r := c.checkExpression(n.Right, hint)
		return types.CommonSupertype(types.NonNull(l), r, c.anyType())

	case "==", "!=":
		l := c.checkExpression(n.Left, nil)
		r := c.checkExpression(n.Right, l)
		c.checkEqualityApplicable(n, l, r)
		return c.booleanType()

	case "===", "!==":
		c.checkExpression(n.Left, nil)
		c.checkExpression(n.Right, nil)
		return c.booleanType()

	case "in", "!in":
		c.checkExpression(n.Left, nil)
		container := c.checkExpression(n.Right, nil)
		r := c.resolveOperator(n, container, "contains", []parser.Expression{n.Left}, "operator")
		if r == nil {
			c.errorf(n, "Unresolved reference: contains on %s", container)
		}
		if !isNonNullNamed(r.returnType, types.BooleanName) {
			c.errorf(n, "'contains' must return Boolean")
		}
		n.Binding = r.binding
		return c.booleanType()

	case "<", ">", "<=", ">=":
		l := c.checkExpression(n.Left, nil)
		r := c.checkExpression(n.Right, l)
		if c.intrinsicComparison(l, r) {
			return c.booleanType()
		}
		res := c.resolveOperator(n, l, "compareTo", []parser.Expression{n.Right}, "operator")
		if res == nil {
			c.errorf(n, "Operator '%s' cannot be applied to '%s' and '%s'", op, l, r)
		}
		if !isNonNullNamed(res.returnType, types.IntName) {
			c.errorf(n, "'compareTo' must return Int")
		}
		n.Binding = res.binding
		return c.booleanType()

	case "+", "-", "*", "/", "%", "..":
		l := c.checkExpression(n.Left, nil)
		var hint types.Type
		if isIntegerLiteral(n.Right) && numericRank(l) >= 0 {
			hint = l
		}
		if _, lambda := n.Right.(*parser.LambdaLiteralNode); !lambda {
			c.checkExpression(n.Right, hint)
		}
		if op != ".." {
			if t := c.intrinsicArithmetic(op, l, n.Right.GetComputedType()); t != nil {
				return t
			}
		}
		res := c.resolveOperator(n, l, operatorFunctions[op], []parser.Expression{n.Right}, "operator")
		if res == nil {
			c.errorf(n, "Operator '%s' cannot be applied to '%s' and '%s'", op, l, typeString(n.Right.GetComputedType()))
		}
		n.Binding = res.binding
		return res.returnType
	}

	if !parser.IsInfixCallOperator(n.Operator) {
		c.errorf(n, "Unsupported operator '%s'", n.Operator)
	}
	l := c.checkExpression(n.Left, nil)
	res := c.resolveOperator(n, l, n.Operator, []parser.Expression{n.Right}, "infix")
	if res == nil {
		c.errorf(n, "Unresolved reference: %s", n.Operator)
	}
	n.Binding = res.binding
	return res.returnType
}

// intrinsicArithmetic types the arithmetic the evaluator performs itself on numbers,
// characters and strings. It returns nil when an operator function is needed.
func (c *Checker) intrinsicArithmetic(op string, l, r types.Type) types.Type {
	lr, rr := numericRank(l), numericRank(r)
	switch {
	case lr >= 0 && rr >= 0:
		return c.numericType(max(lr, rr, 1))
	case op == "+" && types.IsNamed(l, types.StringName):
		return c.stringType()
	case isNonNullNamed(l, types.CharName) && (op == "+" || op == "-") && isNonNullNamed(r, types.IntName):
		return c.builtin(types.CharName)
	case op == "-" && isNonNullNamed(l, types.CharName) && isNonNullNamed(r, types.CharName):
		return c.intType()
	}
	return nil
}

func (c *Checker) intrinsicComparison(l, r types.Type) bool {
	switch {
	case numericRank(l) >= 0 && numericRank(r) >= 0:
		return true
	case isNonNullNamed(l, types.CharName) && isNonNullNamed(r, types.CharName):
		return true
	case isNonNullNamed(l, types.StringName) && isNonNullNamed(r, types.StringName):
		return true
	}
	return false
}

func (c *Checker) checkUnary(n *parser.UnaryOpNode, expected types.Type) types.Type {
	switch n.Operator {
	case "!":
		t := c.checkExpression(n.Operand, nil)
		if isNonNullNamed(t, types.BooleanName) {
			return t
		}
		return c.unaryOperator(n, t, "not")

	case "-", "+":
		var hint types.Type
		if isIntegerLiteral(n.Operand) {
			hint = expected
		}
		t := c.checkExpression(n.Operand, hint)
		if r := numericRank(t); r >= 0 {
			if r == 0 && isIntegerLiteral(n.Operand) {
				return t
			}
			return c.numericType(max(r, 1))
		}
		name := "unaryMinus"
		if n.Operator == "+" {
			name = "unaryPlus"
		}
		return c.unaryOperator(n, t, name)

	case "!!":
		t := c.checkExpression(n.Operand, nil)
		return types.NonNull(t)

	case "++", "--":
		if _, ok := n.Operand.(*parser.IndexOpNode); ok {
			c.errorf(n, "Increment and decrement of indexed expressions are not supported")
		}
		target := c.resolveAssignTarget(n.Operand)
		if !target.mutable {
			c.errorf(n.Operand, "Val cannot be reassigned")
		}
		t := target.declared
		n.Operand.SetComputedType(t)
		if numericRank(t) < 0 && !isNonNullNamed(t, types.CharName) {
			name := "inc"
			if n.Operator == "--" {
				name = "dec"
			}
			r := c.unaryOperator(n, t, name)
			if !types.IsSubtype(r, t) {
				c.mismatch(n, t, r)
			}
		}
		target.assigned(t)
		return t
	}
	c.errorf(n, "Unsupported operator '%s'", n.Operator)
	return nil
}

func (c *Checker) unaryOperator(n *parser.UnaryOpNode, operand types.Type, name string) types.Type {
	r := c.resolveOperator(n, operand, name, nil, "operator")
	if r == nil {
		c.errorf(n, "Operator '%s' cannot be applied to '%s'", n.Operator, operand)
	}
	n.Binding = r.binding
	return r.returnType
}
