package checker

import (
	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
	"kotlite/pkg/types"
)

// narrowing maps transformed names of local properties to smart-cast types.
type narrowing map[string]types.Type

func (n narrowing) apply(scope *runtime.SymbolTable) {
	for ref, t := range n {
		scope.Narrow(ref, t)
	}
}

func merge(a, b narrowing) narrowing {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	out := narrowing{}
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// stableRef returns the transformed name of a local property or parameter reference,
// the only expressions smart casts apply to.
func stableRef(e parser.Expression) (string, *runtime.PropertyInfo) {
	ref, ok := e.(*parser.VariableReferenceNode)
	if !ok {
		return "", nil
	}
	b, ok := ref.Binding.(*runtime.LocalBinding)
	if !ok {
		return "", nil
	}
	return b.RefName, b.Info
}

// conditionFacts derives the smart casts that hold when an already checked boolean
// condition is true and when it is false.
func (c *Checker) conditionFacts(e parser.Expression) (whenTrue, whenFalse narrowing) {
	switch n := e.(type) {
	case *parser.IsNode:
		ref, _ := stableRef(n.Subject)
		if ref == "" || n.Type.Resolved == nil {
			return nil, nil
		}
		facts := narrowing{ref: n.Type.Resolved}
		if n.Negated {
			return nil, facts
		}
		return facts, nil
	case *parser.BinaryOpNode:
		switch n.Operator {
		case "!=", "==", "!==", "===":
			subject := n.Left
			if _, null := n.Left.(*parser.NullNode); null {
				subject = n.Right
			} else if _, null := n.Right.(*parser.NullNode); !null {
				return nil, nil
			}
			ref, _ := stableRef(subject)
			if ref == "" || subject.GetComputedType() == nil {
				return nil, nil
			}
			facts := narrowing{ref: types.NonNull(subject.GetComputedType())}
			if n.Operator == "!=" || n.Operator == "!==" {
				return facts, nil
			}
			return nil, facts
		case "&&":
			lt, _ := c.conditionFacts(n.Left)
			rt, _ := c.conditionFacts(n.Right)
			return merge(lt, rt), nil
		case "||":
			_, lf := c.conditionFacts(n.Left)
			_, rf := c.conditionFacts(n.Right)
			return nil, merge(lf, rf)
		}
	case *parser.UnaryOpNode:
		if n.Operator == "!" {
			t, f := c.conditionFacts(n.Operand)
			return f, t
		}
	}
	return nil, nil
}

// withFacts runs fn in a transparent scope carrying smart casts.
func (c *Checker) withFacts(facts narrowing, fn func()) {
	if len(facts) == 0 {
		fn()
		return
	}
	scope := c.scope.NewChild("<narrowing>", parser.ScopeBlock)
	facts.apply(scope)
	c.withScope(scope, fn)
}

// narrowAfterIf applies the facts of an if-statement without else whose branch
// always jumps away: the rest of the block runs only when the condition was false.
func (c *Checker) narrowAfterIf(n *parser.IfNode) {
	if n.Then == nil || n.Condition.GetComputedType() == nil {
		return
	}
	whenTrue, whenFalse := c.conditionFacts(n.Condition)
	if n.Else == nil && jumps(n.Then) {
		whenFalse.apply(c.scope)
	} else if n.Else != nil && jumps(n.Else) && !jumps(n.Then) {
		whenTrue.apply(c.scope)
	}
}

func jumps(b *parser.BlockNode) bool {
	t := b.GetComputedType()
	return t != nil && types.IsNothing(t) && !t.IsNullable()
}

// invalidate drops smart casts of a local that is being reassigned, from the current
// scope up to the scope declaring it.
func (c *Checker) invalidate(ref string, declared types.Type) {
	for s := c.scope; s != nil; s = s.Parent {
		if _, ok := s.LocalNarrowing(ref); ok {
			s.Narrow(ref, declared)
		}
	}
}
