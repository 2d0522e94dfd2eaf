package checker

import (
	"strings"

	"kotlite/pkg/errors"
	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
	"kotlite/pkg/types"
)

// candidate is one function a call may resolve to.
type candidate struct {
	fn           *runtime.FunctionDefinition
	kind         runtime.CallKind
	class        *runtime.ClassDefinition
	implicitThis bool
	// receiver is the explicit or implicit receiver type the call is made on.
	receiver types.Type
	// invoke is set for calls of a function-typed value.
	invoke *types.FunctionType
	// fixed binds type parameters known before inference.
	fixed types.Substitution
	// property is the function-typed member property an invoke candidate reads.
	property *runtime.PropertyDefinition
}

func (cand *candidate) typeParameters() []*types.TypeParameterType {
	switch {
	case cand.fn == nil:
		return nil
	case cand.kind == runtime.CallConstructor:
		return cand.class.TypeParameters
	}
	return cand.fn.TypeParameters
}

func (cand *candidate) String() string {
	if cand.invoke != nil {
		return cand.invoke.String()
	}
	return cand.fn.String()
}

// callArg is an argument whose type is known before a candidate is chosen. Lambdas
// are checked only against the chosen candidate.
type callArg struct {
	node   *parser.FunctionCallArgumentNode // nil for operator operands
	value  parser.Expression                // nil when only the type is known
	t      types.Type
	lambda bool
}

func (a *callArg) isNamed() bool { return a.node != nil && a.node.Name != "" }

func (a *callArg) isTrailing() bool { return a.node != nil && a.node.IsTrailingLambda }

// param is a parameter as seen by argument mapping.
type param struct {
	name       string
	t          types.Type
	hasDefault bool
	vararg     bool
}

// match is an applicable candidate with its argument mapping and inferred bindings.
type match struct {
	cand         *candidate
	params       []param
	bound        [][]*callArg
	s            types.Substitution
	tps          []*types.TypeParameterType
	free         map[string]bool
	usedDefaults bool
	// widened is set when an integer literal only fits by widening to Long or Byte.
	widened bool
}

// resolvedCall is the outcome of overload resolution.
type resolvedCall struct {
	binding    *runtime.CallBinding
	returnType types.Type
	cand       *candidate
}

// --- Call expressions ---

func (c *Checker) checkCall(n *parser.FunctionCallNode, expected types.Type) types.Type {
	var typeArgs []types.Type
	for _, ta := range n.TypeArguments {
		typeArgs = append(typeArgs, c.resolveType(ta))
	}
	var r *resolvedCall
	switch f := n.Function.(type) {
	case *parser.VariableReferenceNode:
		r = c.callByName(n, f, typeArgs, expected)
	case *parser.NavigationNode:
		r = c.callMember(n, f, typeArgs, expected)
	default:
		t := c.checkExpression(f, nil)
		ft := functionTypeOf(t)
		if ft == nil {
			c.errorf(f, "Expression '%s' of type %s cannot be invoked as a function", f, t)
		}
		if t.IsNullable() {
			c.errorf(f, "Reference has a nullable type '%s', use explicit '?.invoke()' to make a function-like call instead", t)
		}
		cand := &candidate{kind: runtime.CallInvoke, invoke: ft}
		args := c.callArguments(n.Arguments, []*candidate{cand})
		r = c.resolveCall(n, [][]*candidate{{cand}}, args, typeArgs, expected)
	}
	n.Binding = r.binding
	return r.returnType
}

func (c *Checker) callByName(n *parser.FunctionCallNode, f *parser.VariableReferenceNode, typeArgs []types.Type, expected types.Type) *resolvedCall {
	levels := c.nameCandidates(n, f.Name)
	if len(levels) == 0 {
		if p, _ := c.scope.FindProperty(f.Name); p != nil {
			c.errorf(f, "Expression '%s' of type %s cannot be invoked as a function", f.Name, p.Type)
		}
		c.errorf(f, "Unresolved reference: %s", f.Name)
	}
	args := c.callArguments(n.Arguments, flatten(levels))
	r := c.resolveCall(n, levels, args, typeArgs, expected)
	if r.binding.Kind == runtime.CallInvoke {
		c.checkExpression(f, nil)
	}
	return r
}

// nameCandidates collects the functions a bare name may call, innermost scope first.
// Members and extensions of an implicit receiver are tried where its scope is met;
// class constructors come last.
func (c *Checker) nameCandidates(at parser.Node, name string) [][]*candidate {
	var levels [][]*candidate
	for s := c.scope; s != nil; s = s.Parent {
		var level []*candidate
		for _, fn := range s.LocalFunctions(name) {
			if fn.Receiver != nil {
				continue
			}
			kind := runtime.CallFunction
			if fn.Native != nil {
				kind = runtime.CallNative
			}
			level = append(level, &candidate{fn: fn, kind: kind})
		}
		if p := s.LocalProperty(name); p != nil {
			t := p.Type
			if nt, ok := c.scope.NarrowedType(p.TransformedName); ok {
				t = nt
			}
			if ft := functionTypeOf(t); ft != nil && !t.IsNullable() {
				level = append(level, &candidate{kind: runtime.CallInvoke, invoke: ft})
			}
		}
		if len(level) > 0 {
			levels = append(levels, level)
		}
		if s.ThisType != nil {
			levels = append(levels, c.receiverCandidates(s.ThisType, name, true)...)
		}
	}
	if class := c.scope.FindClass(name); class != nil {
		switch {
		case class.IsInterface:
			if len(levels) == 0 {
				c.errorf(at, "Interface %s does not have constructors", name)
			}
		case class.IsAbstract():
			if len(levels) == 0 {
				c.errorf(at, "Cannot create an instance of an abstract class")
			}
		case class.PrimaryConstructor == nil:
			if len(levels) == 0 {
				c.errorf(at, "%s does not have a constructor", name)
			}
		default:
			levels = append(levels, []*candidate{{fn: class.PrimaryConstructor, kind: runtime.CallConstructor, class: class}})
		}
	}
	return levels
}

// receiverCandidates returns the member level and the extension level for calls on
// a receiver of type recv. A function-typed member property joins the member level.
func (c *Checker) receiverCandidates(recv types.Type, name string, implicit bool) [][]*candidate {
	var levels [][]*candidate
	var members []*candidate
	lookup := types.NonNull(recv)
	if class := c.classOf(lookup); class != nil {
		for _, fn := range class.FindFunctions(name) {
			members = append(members, &candidate{fn: fn, kind: runtime.CallMember, class: class, implicitThis: implicit, receiver: lookup})
		}
		if p := class.FindProperty(name); p != nil && p.Type != nil {
			t := types.Substitute(p.Type, c.ownerSubstitution(lookup, p.Owner))
			if ft := functionTypeOf(t); ft != nil && !t.IsNullable() {
				members = append(members, &candidate{kind: runtime.CallInvoke, invoke: ft, implicitThis: implicit, receiver: lookup, property: p})
			}
		}
	}
	if len(members) > 0 {
		levels = append(levels, members)
	}
	if ext := c.extensionCandidates(recv, name, implicit); len(ext) > 0 {
		levels = append(levels, ext)
	}
	return levels
}

func (c *Checker) extensionCandidates(recv types.Type, name string, implicit bool) []*candidate {
	var out []*candidate
	for s := c.scope; s != nil; s = s.Parent {
		for _, fn := range s.LocalFunctions(name) {
			if fn.Receiver == nil {
				continue
			}
			kind := runtime.CallExtension
			if fn.Native != nil {
				kind = runtime.CallNative
			}
			out = append(out, &candidate{fn: fn, kind: kind, implicitThis: implicit, receiver: recv})
		}
	}
	return out
}

// visibleFunctions lists the functions a bare name refers to.
func (c *Checker) visibleFunctions(name string) []*runtime.FunctionDefinition {
	var out []*runtime.FunctionDefinition
	for s := c.scope; s != nil; s = s.Parent {
		out = append(out, s.LocalFunctions(name)...)
		if s.ThisType != nil {
			if class := c.classOf(s.ThisType); class != nil {
				out = append(out, class.FindFunctions(name)...)
			}
		}
	}
	return out
}

func (c *Checker) callMember(n *parser.FunctionCallNode, f *parser.NavigationNode, typeArgs []types.Type, expected types.Type) *resolvedCall {
	if _, ok := f.Receiver.(*parser.SuperReferenceNode); ok {
		super := c.superType(f.Receiver)
		var level []*candidate
		if class := c.classOf(super); class != nil {
			for _, fn := range class.FindFunctions(f.Member) {
				level = append(level, &candidate{fn: fn, kind: runtime.CallSuper, class: class, receiver: super})
			}
		}
		if len(level) == 0 {
			c.errorf(f, "Unresolved reference: %s", f.Member)
		}
		args := c.callArguments(n.Arguments, level)
		r := c.resolveCall(n, [][]*candidate{level}, args, typeArgs, expected)
		if r.cand.fn.IsAbstract() {
			c.errorf(f, "Abstract member cannot be accessed directly")
		}
		return r
	}

	recv := c.checkExpression(f.Receiver, nil)
	safe := f.Operator == "?."
	nullable := types.MayBeNull(recv)
	callRecv := recv
	if safe {
		callRecv = types.NonNull(recv)
	}
	levels := c.receiverCandidates(callRecv, f.Member, false)
	if len(levels) == 0 {
		c.errorf(f, "Unresolved reference: %s", f.Member)
	}
	args := c.callArguments(n.Arguments, flatten(levels))
	r := c.resolveCall(n, levels, args, typeArgs, expected)
	if nullable && !safe && (r.cand.kind == runtime.CallMember || r.cand.kind == runtime.CallInvoke) {
		c.nullableReceiver(f, recv)
	}
	if r.cand.kind == runtime.CallInvoke {
		f.Binding = &runtime.MemberPropertyBinding{Property: r.cand.property}
		f.SetComputedType(r.cand.invoke)
	}
	if safe && nullable {
		r.returnType = r.returnType.WithNullable(true)
	}
	return r
}

// --- Operators ---

// resolveOperator resolves an operator convention call on receiver with already
// checked operands. It returns nil when no function of that name exists.
func (c *Checker) resolveOperator(at parser.Node, receiver types.Type, name string, operands []parser.Expression, modifier string) *resolvedCall {
	r, err := c.tryOperator(at, receiver, name, c.operandArgs(operands), modifier)
	if err != nil {
		c.fail(err)
	}
	return r
}

// resolveOperatorTypes is resolveOperator for operands known only by type.
func (c *Checker) resolveOperatorTypes(at parser.Node, receiver types.Type, name string, operands []types.Type, modifier string) *resolvedCall {
	args := make([]*callArg, len(operands))
	for i, t := range operands {
		args[i] = &callArg{t: t}
	}
	r, err := c.tryOperator(at, receiver, name, args, modifier)
	if err != nil {
		c.fail(err)
	}
	return r
}

// tryOperator reports an error instead of failing when functions exist but none
// applies, so callers can fall back to another convention.
func (c *Checker) tryOperator(at parser.Node, receiver types.Type, name string, args []*callArg, modifier string) (*resolvedCall, error) {
	var levels [][]*candidate
	for _, level := range c.receiverCandidates(receiver, name, false) {
		var ok []*candidate
		for _, cand := range level {
			if cand.invoke == nil {
				ok = append(ok, cand)
			}
		}
		if len(ok) > 0 {
			levels = append(levels, ok)
		}
	}
	if len(levels) == 0 {
		return nil, nil
	}
	m, err := c.selectCall(at, levels, args, nil)
	if err != nil {
		return nil, err
	}
	if !m.cand.fn.Modifiers.Has(modifier) {
		return nil, c.semantic(at, "'%s' modifier is required on '%s'", modifier, m.cand.fn.QualifiedName())
	}
	if types.MayBeNull(receiver) && m.cand.kind == runtime.CallMember {
		return nil, c.semantic(at, "Only safe (?.) or non-null asserted (!!.) calls are allowed on a nullable receiver of type %s", receiver)
	}
	return c.finish(at, m, nil), nil
}

// operandArgs wraps operands as call arguments, checking those not yet checked.
func (c *Checker) operandArgs(operands []parser.Expression) []*callArg {
	args := make([]*callArg, len(operands))
	for i, e := range operands {
		a := &callArg{value: e}
		if _, ok := e.(*parser.LambdaLiteralNode); ok {
			a.lambda = true
		} else if a.t = e.GetComputedType(); a.t == nil {
			a.t = c.checkExpression(e, nil)
		}
		args[i] = a
	}
	return args
}

// --- Resolution ---

// callArguments checks the non-lambda arguments of a call. With a single candidate
// its parameter types guide literal typing.
func (c *Checker) callArguments(args []*parser.FunctionCallArgumentNode, cands []*candidate) []*callArg {
	out := make([]*callArg, len(args))
	for i, a := range args {
		ca := &callArg{node: a, value: a.Value}
		if _, ok := a.Value.(*parser.LambdaLiteralNode); ok {
			ca.lambda = true
		} else {
			var hint types.Type
			if len(cands) == 1 {
				hint = c.parameterHint(cands[0], a, i)
			}
			ca.t = c.checkExpression(a.Value, hint)
		}
		out[i] = ca
	}
	return out
}

// parameterHint returns the type of the parameter an argument will likely bind to,
// when it does not depend on inference.
func (c *Checker) parameterHint(cand *candidate, a *parser.FunctionCallArgumentNode, pos int) types.Type {
	params := c.candidateParams(cand)
	idx := -1
	if a.Name != "" {
		for i, p := range params {
			if p.name == a.Name {
				idx = i
			}
		}
	} else if pos < len(params) {
		idx = pos
	} else if len(params) > 0 && params[len(params)-1].vararg {
		idx = len(params) - 1
	}
	if idx < 0 {
		return nil
	}
	t := params[idx].t
	if cand.fn != nil && cand.fn.Owner != nil && cand.receiver != nil {
		t = types.Substitute(t, c.ownerSubstitution(cand.receiver, cand.fn.Owner))
	}
	t = types.Substitute(t, cand.fixed)
	if types.Contains(t, func(*types.TypeParameterType) bool { return true }) {
		return nil
	}
	return t
}

func (c *Checker) candidateParams(cand *candidate) []param {
	if cand.invoke != nil {
		flat := cand.invoke.FlatParameters()
		out := make([]param, len(flat))
		for i, t := range flat {
			out[i] = param{t: t}
		}
		return out
	}
	out := make([]param, len(cand.fn.Parameters))
	for i, p := range cand.fn.Parameters {
		out[i] = param{name: p.Name, t: p.Type, hasDefault: p.HasDefault, vararg: p.IsVararg}
	}
	return out
}

// resolveCall picks the most specific applicable candidate of the innermost level
// that has one, completes inference and builds the binding.
func (c *Checker) resolveCall(at parser.Node, levels [][]*candidate, args []*callArg, typeArgs []types.Type, expected types.Type) *resolvedCall {
	m, err := c.selectCall(at, levels, args, typeArgs)
	if err != nil {
		c.fail(err)
	}
	return c.finish(at, m, expected)
}

func (c *Checker) selectCall(at parser.Node, levels [][]*candidate, args []*callArg, typeArgs []types.Type) (*match, error) {
	var firstErr error
	all := 0
	for _, level := range levels {
		var matches []*match
		for _, cand := range level {
			all++
			m, err := c.tryCandidate(at, cand, args, typeArgs)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			matches = append(matches, m)
		}
		if len(matches) > 0 {
			return c.mostSpecific(at, matches)
		}
	}
	if all == 1 && firstErr != nil {
		return nil, firstErr
	}
	var sigs []string
	for _, cand := range flatten(levels) {
		sigs = append(sigs, cand.String())
	}
	return nil, c.semantic(at, "None of the following functions can be called with the arguments supplied: %s", strings.Join(sigs, "; "))
}

func (c *Checker) tryCandidate(at parser.Node, cand *candidate, args []*callArg, typeArgs []types.Type) (*match, error) {
	m := &match{cand: cand, params: c.candidateParams(cand), tps: cand.typeParameters(), free: map[string]bool{}}
	s := types.Substitution{}
	if cand.fn != nil && cand.fn.Owner != nil && cand.receiver != nil {
		s = c.ownerSubstitution(cand.receiver, cand.fn.Owner)
	}
	s = s.Merge(cand.fixed)
	for _, tp := range m.tps {
		if _, ok := s[tp.Key()]; !ok {
			m.free[tp.Key()] = true
		}
	}
	if typeArgs != nil {
		if len(typeArgs) != len(m.tps) {
			return nil, c.semantic(at, "%d type arguments expected for %s", len(m.tps), cand)
		}
		for i, tp := range m.tps {
			s[tp.Key()] = typeArgs[i]
			delete(m.free, tp.Key())
		}
	}
	m.s = s

	if fn := cand.fn; fn != nil && fn.Receiver != nil && cand.receiver != nil {
		types.Unify(fn.Receiver, cand.receiver, s, m.free, c.anyType())
		want := c.bounded(types.Substitute(fn.Receiver, s), m)
		if !types.IsSubtype(cand.receiver, want) {
			if types.IsSubtype(types.NonNull(cand.receiver), want) {
				return nil, c.semantic(at, "Only safe (?.) or non-null asserted (!!.) calls are allowed on a nullable receiver of type %s", cand.receiver)
			}
			return nil, c.semantic(at, "Receiver type mismatch: expected %s, got %s", want, cand.receiver)
		}
	}

	bound, err := c.mapArguments(at, m.params, cand.invoke == nil, args)
	if err != nil {
		return nil, err
	}
	m.bound = bound
	for i, group := range bound {
		if group == nil && m.params[i].hasDefault {
			m.usedDefaults = true
		}
		for _, a := range group {
			if !a.lambda {
				types.Unify(m.params[i].t, a.t, s, m.free, c.anyType())
			}
		}
	}
	for i, group := range bound {
		for _, a := range group {
			pt := types.Substitute(m.params[i].t, s)
			if a.lambda {
				ft, ok := types.NonNull(pt).(*types.FunctionType)
				if !ok {
					return nil, c.semantic(a.value, "Type mismatch: a lambda was passed where %s was expected", pt)
				}
				lam := a.value.(*parser.LambdaLiteralNode)
				declared := len(lam.Parameters)
				if lam.HasArrow || declared > 0 {
					if declared != len(ft.Parameters) {
						return nil, c.semantic(a.value, "Expected %d parameters of types %s, but %d were declared", len(ft.Parameters), ft, declared)
					}
				} else if len(ft.Parameters) > 1 {
					return nil, c.semantic(a.value, "Expected %d parameters of types %s, but the lambda declares none", len(ft.Parameters), ft)
				}
				continue
			}
			want := c.bounded(pt, m)
			if types.IsSubtype(a.t, want) {
				continue
			}
			if r := numericRank(types.NonNull(want)); isIntegerLiteral(a.value) && (r == 0 || r == 2) {
				m.widened = true
				continue
			}
			return nil, c.argumentMismatch(at, a, want)
		}
	}
	return m, nil
}

func (c *Checker) argumentMismatch(at parser.Node, a *callArg, want types.Type) error {
	pos := at.Pos()
	if a.value != nil {
		pos = a.value.Pos()
	}
	return errors.NewTypeMismatch(pos, typeString(want), typeString(a.t))
}

// bounded replaces the type parameters still free in t by their bounds.
func (c *Checker) bounded(t types.Type, m *match) types.Type {
	rest := types.Substitution{}
	for _, tp := range m.tps {
		if !m.free[tp.Key()] {
			continue
		}
		if _, ok := m.s[tp.Key()]; ok {
			continue
		}
		if tp.Bound != nil {
			rest[tp.Key()] = types.Substitute(tp.Bound, m.s)
		} else {
			rest[tp.Key()] = c.nullableAny()
		}
	}
	return types.Substitute(t, rest)
}

// mapArguments binds arguments to parameters: positional arguments first, then
// named ones. A vararg parameter absorbs the remaining positional arguments and a
// trailing lambda binds to the last parameter.
func (c *Checker) mapArguments(at parser.Node, params []param, named bool, args []*callArg) ([][]*callArg, error) {
	bound := make([][]*callArg, len(params))
	pos := 0
	sawNamed := false
	for _, a := range args {
		switch {
		case a.isTrailing():
			last := len(params) - 1
			if last < 0 {
				return nil, c.semantic(a.node, "Too many arguments")
			}
			if bound[last] != nil && !params[last].vararg {
				return nil, c.semantic(a.node, "An argument is already passed for this parameter")
			}
			bound[last] = append(bound[last], a)
		case a.isNamed():
			if !named {
				return nil, c.semantic(a.node, "Named arguments are not allowed for function types")
			}
			idx := -1
			for i, p := range params {
				if p.name == a.node.Name {
					idx = i
				}
			}
			if idx < 0 {
				return nil, c.semantic(a.node, "Cannot find a parameter with this name: %s", a.node.Name)
			}
			if bound[idx] != nil {
				return nil, c.semantic(a.node, "An argument is already passed for this parameter")
			}
			bound[idx] = []*callArg{a}
			sawNamed = true
		default:
			if sawNamed {
				return nil, c.semantic(a.node, "Mixing named and positioned arguments is not allowed")
			}
			if pos >= len(params) {
				if a.node != nil {
					return nil, c.semantic(a.node, "Too many arguments")
				}
				return nil, c.semantic(at, "Too many arguments")
			}
			bound[pos] = append(bound[pos], a)
			if !params[pos].vararg {
				pos++
			}
		}
	}
	for i, p := range params {
		if bound[i] == nil && !p.hasDefault && !p.vararg {
			if p.name == "" {
				return nil, c.semantic(at, "No value passed for parameter %d", i+1)
			}
			return nil, c.semantic(at, "No value passed for parameter '%s'", p.name)
		}
	}
	return bound, nil
}

// mostSpecific picks the match whose parameters are all subtypes of every other
// match's parameters for the same arguments.
func (c *Checker) mostSpecific(at parser.Node, matches []*match) (*match, error) {
	if len(matches) == 1 {
		return matches[0], nil
	}
	for _, m := range matches {
		best := true
		for _, other := range matches {
			if other != m && !c.beats(m, other) {
				best = false
				break
			}
		}
		if best {
			return m, nil
		}
	}
	var sigs []string
	for _, m := range matches {
		sigs = append(sigs, m.cand.String())
	}
	return nil, c.semantic(at, "Overload resolution ambiguity: %s", strings.Join(sigs, "; "))
}

func (c *Checker) beats(a, b *match) bool {
	ab, ba := c.asSpecific(a, b), c.asSpecific(b, a)
	switch {
	case ab && !ba:
		return true
	case ba && !ab:
		return false
	case a.widened != b.widened:
		// 1..3 takes rangeTo(Int) over rangeTo(Long).
		return b.widened
	case !ab:
		return false
	}
	switch {
	case len(a.tps) == 0 && len(b.tps) > 0:
		return true
	case !a.usedDefaults && b.usedDefaults:
		return true
	case !hasVararg(a) && hasVararg(b):
		return true
	}
	return false
}

// asSpecific reports whether every argument's parameter in a is a subtype of its
// parameter in b. Type parameters count as their bounds.
func (c *Checker) asSpecific(a, b *match) bool {
	pa, pb := c.argumentParams(a), c.argumentParams(b)
	for arg, ta := range pa {
		tb, ok := pb[arg]
		if !ok {
			continue
		}
		if !types.IsSubtype(ta, tb) {
			return false
		}
	}
	return true
}

func (c *Checker) argumentParams(m *match) map[*callArg]types.Type {
	out := map[*callArg]types.Type{}
	all := &match{tps: m.tps, free: map[string]bool{}, s: types.Substitution{}}
	for _, tp := range m.tps {
		all.free[tp.Key()] = true
	}
	for i, group := range m.bound {
		for _, a := range group {
			out[a] = c.bounded(m.params[i].t, all)
		}
	}
	return out
}

func hasVararg(m *match) bool {
	for _, p := range m.params {
		if p.vararg {
			return true
		}
	}
	return false
}

// finish checks lambda arguments against the chosen candidate, completes type
// inference and records parameter indices and the binding.
func (c *Checker) finish(at parser.Node, m *match, expected types.Type) *resolvedCall {
	s := m.s
	for i, group := range m.bound {
		for _, a := range group {
			if !a.lambda {
				continue
			}
			pt := types.Substitute(m.params[i].t, s)
			want := lambdaExpectation(pt, m.free)
			lt := c.checkExpression(a.value, want)
			types.Unify(pt, lt, s, m.free, c.anyType())
			a.t = lt
			if final := types.Substitute(pt, s); !types.Unresolved(final, m.free) && !types.IsSubtype(lt, final) {
				c.mismatch(a.value, final, lt)
			}
		}
	}

	var ret types.Type
	switch {
	case m.cand.invoke != nil:
		ret = m.cand.invoke.ReturnType
	case m.cand.kind == runtime.CallConstructor:
		args := make([]types.Type, len(m.cand.class.TypeParameters))
		for i, tp := range m.cand.class.TypeParameters {
			args[i] = tp
		}
		ret = types.NewClassType(m.cand.class, args...)
	default:
		ret = c.returnType(m.cand.fn, at)
	}

	if expected != nil {
		unbound := map[string]bool{}
		for k := range m.free {
			if _, ok := s[k]; !ok {
				unbound[k] = true
			}
		}
		if len(unbound) > 0 {
			types.Unify(ret, expected, s, unbound, c.anyType())
		}
	}
	for _, tp := range m.tps {
		if _, ok := s[tp.Key()]; !ok && m.free[tp.Key()] {
			c.errorf(at, "Not enough information to infer type variable %s", tp.Name)
		}
	}
	if len(m.tps) > 0 {
		args := make([]types.Type, len(m.tps))
		for i, tp := range m.tps {
			args[i] = s[tp.Key()]
		}
		c.checkBounds(at, m.tps, args)
	}

	for i, group := range m.bound {
		pt := types.Substitute(m.params[i].t, s)
		for _, a := range group {
			if a.node != nil {
				a.node.Index = i
			}
			if !a.lambda && isIntegerLiteral(a.value) && !types.IsSubtype(a.t, pt) {
				a.t = c.checkExpected(a.value, pt)
			} else if !a.lambda && !types.IsSubtype(a.t, pt) {
				c.mismatch(a.value, pt, a.t)
			}
		}
	}

	ret = c.project(types.Substitute(ret, s))
	binding := &runtime.CallBinding{
		Kind: m.cand.kind, Function: m.cand.fn, Class: m.cand.class,
		ImplicitThis: m.cand.implicitThis, ReturnType: ret,
	}
	if m.cand.implicitThis {
		binding.ReceiverType = m.cand.receiver
	}
	if m.cand.kind == runtime.CallConstructor {
		binding.Class = m.cand.class
	}
	return &resolvedCall{binding: binding, returnType: ret, cand: m.cand}
}

// lambdaExpectation is the function type a lambda argument is checked against, with
// parts that still depend on inference left unknown.
func lambdaExpectation(pt types.Type, free map[string]bool) types.Type {
	ft, ok := types.NonNull(pt).(*types.FunctionType)
	if !ok {
		return nil
	}
	known := func(t types.Type) types.Type {
		if t == nil || types.Unresolved(t, free) {
			return nil
		}
		return t
	}
	out := &types.FunctionType{Receiver: known(ft.Receiver), ReturnType: known(ft.ReturnType)}
	for _, p := range ft.Parameters {
		out.Parameters = append(out.Parameters, known(p))
	}
	return out
}

func functionTypeOf(t types.Type) *types.FunctionType {
	ft, _ := types.NonNull(t).(*types.FunctionType)
	return ft
}

func flatten(levels [][]*candidate) []*candidate {
	var out []*candidate
	for _, level := range levels {
		out = append(out, level...)
	}
	return out
}
