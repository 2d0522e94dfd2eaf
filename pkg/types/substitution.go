package types

// Substitution maps type parameter keys to the types that replace them.
type Substitution map[string]Type

// Bind pairs parameters with arguments. Missing arguments leave the parameter unbound.
func Bind(params []*TypeParameterType, args []Type) Substitution {
	s := make(Substitution, len(params))
	for i, p := range params {
		if i < len(args) && args[i] != nil {
			s[p.Key()] = args[i]
		}
	}
	return s
}

// Merge returns a substitution holding the entries of s and then other.
func (s Substitution) Merge(other Substitution) Substitution {
	out := make(Substitution, len(s)+len(other))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Substitute replaces every bound type parameter in t. The input is never mutated.
func Substitute(t Type, s Substitution) Type {
	if t == nil || len(s) == 0 {
		return t
	}
	switch t := t.(type) {
	case *TypeParameterType:
		r, ok := s[t.Key()]
		if !ok {
			return t
		}
		if _, star := r.(*StarType); star {
			return r
		}
		if t.Nullable {
			return r.WithNullable(true)
		}
		return r
	case *ClassType:
		if len(t.Arguments) == 0 {
			return t
		}
		args := make([]Type, len(t.Arguments))
		for i, a := range t.Arguments {
			args[i] = Substitute(a, s)
		}
		return &ClassType{Class: t.Class, Arguments: args, Nullable: t.Nullable}
	case *FunctionType:
		ft := &FunctionType{Nullable: t.Nullable}
		if t.Receiver != nil {
			ft.Receiver = Substitute(t.Receiver, s)
		}
		ft.Parameters = make([]Type, len(t.Parameters))
		for i, p := range t.Parameters {
			ft.Parameters[i] = Substitute(p, s)
		}
		ft.ReturnType = Substitute(t.ReturnType, s)
		return ft
	}
	return t
}

// Unify infers bindings for the free type parameters in param from a value of type
// arg. Conflicting bindings widen to their common supertype. It never fails: the
// caller checks the substituted parameter against the argument afterwards.
func Unify(param, arg Type, s Substitution, free map[string]bool, top Type) {
	if param == nil || arg == nil {
		return
	}
	switch p := param.(type) {
	case *TypeParameterType:
		if !free[p.Key()] {
			return
		}
		target := arg
		if p.Nullable {
			if IsNothing(arg) {
				return
			}
			target = NonNull(arg)
		}
		if existing, ok := s[p.Key()]; ok {
			s[p.Key()] = CommonSupertype(existing, target, top)
		} else {
			s[p.Key()] = target
		}
	case *ClassType:
		if tp, ok := arg.(*TypeParameterType); ok {
			if tp.Bound != nil {
				Unify(param, tp.Bound, s, free, top)
			}
			return
		}
		a, ok := arg.(*ClassType)
		if !ok || IsNothing(a) {
			return
		}
		view := AsSuperType(a, p.Class)
		if view == nil {
			return
		}
		for i, pa := range p.Arguments {
			if i < len(view.Arguments) {
				if _, star := view.Arguments[i].(*StarType); !star {
					Unify(pa, view.Arguments[i], s, free, top)
				}
			}
		}
	case *FunctionType:
		a, ok := arg.(*FunctionType)
		if !ok {
			return
		}
		pp, ap := p.FlatParameters(), a.FlatParameters()
		if len(pp) == len(ap) {
			for i := range pp {
				Unify(pp[i], ap[i], s, free, top)
			}
		}
		Unify(p.ReturnType, a.ReturnType, s, free, top)
	}
}

// Unresolved reports whether t still mentions one of the free parameters.
func Unresolved(t Type, free map[string]bool) bool {
	return Contains(t, func(tp *TypeParameterType) bool { return free[tp.Key()] })
}
