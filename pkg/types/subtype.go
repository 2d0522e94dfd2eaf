package types

// IsSubtype reports whether a value of type sub may be used where super is expected.
func IsSubtype(sub, super Type) bool {
	if sub == nil || super == nil {
		return false
	}
	if _, ok := super.(*StarType); ok {
		return true
	}
	if st, ok := sub.(*TypeParameterType); ok {
		if pt, ok := super.(*TypeParameterType); ok && st.Key() == pt.Key() {
			return !st.Nullable || pt.Nullable
		}
	}
	if IsNothing(sub) {
		return !sub.IsNullable() || super.IsNullable()
	}
	if MayBeNull(sub) && !super.IsNullable() {
		return false
	}
	return isSubtypeCore(NonNull(sub), NonNull(super))
}

// isSubtypeCore compares two types whose nullability has already been checked.
func isSubtypeCore(sub, super Type) bool {
	if IsNothing(sub) {
		return true
	}
	if st, ok := sub.(*TypeParameterType); ok {
		if pt, ok := super.(*TypeParameterType); ok && st.Key() == pt.Key() {
			return true
		}
		if st.Bound == nil {
			return IsNamed(super, AnyName)
		}
		return isSubtypeCore(NonNull(st.Bound), super)
	}
	switch sup := super.(type) {
	case *StarType:
		return true
	case *TypeParameterType:
		return false
	case *ClassType:
		if sup.Name() == AnyName {
			return true
		}
		sub, ok := sub.(*ClassType)
		if !ok {
			return false
		}
		view := AsSuperType(sub, sup.Class)
		if view == nil {
			return false
		}
		return argumentsConform(view, sup)
	case *FunctionType:
		sub, ok := sub.(*FunctionType)
		if !ok {
			return false
		}
		sp, pp := sub.FlatParameters(), sup.FlatParameters()
		if len(sp) != len(pp) {
			return false
		}
		for i := range sp {
			if !IsSubtype(pp[i], sp[i]) {
				return false
			}
		}
		if IsUnit(sup.ReturnType) {
			return true
		}
		return IsSubtype(sub.ReturnType, sup.ReturnType)
	}
	return false
}

// argumentsConform compares the type arguments of two applications of the same
// class, honouring declaration-site variance.
func argumentsConform(sub, super *ClassType) bool {
	params := super.Class.ClassTypeParameters()
	for i, want := range super.Arguments {
		if _, ok := want.(*StarType); ok {
			continue
		}
		if i >= len(sub.Arguments) || i >= len(params) {
			return false
		}
		have := sub.Arguments[i]
		if _, ok := have.(*StarType); ok {
			return false
		}
		switch params[i].Variance {
		case "out":
			if !IsSubtype(have, want) {
				return false
			}
		case "in":
			if !IsSubtype(want, have) {
				return false
			}
		default:
			if !Equal(have, want) {
				return false
			}
		}
	}
	return true
}

// AsSuperType views t as an application of target, substituting type arguments
// bottom-up through the hierarchy. It returns nil when target is not a supertype.
func AsSuperType(t *ClassType, target ClassInfo) *ClassType {
	return asSuperType(t, target, 0)
}

func asSuperType(t *ClassType, target ClassInfo, depth int) *ClassType {
	if depth > 64 {
		return nil
	}
	if t.Class == target {
		if t.Nullable {
			return t.WithNullable(false).(*ClassType)
		}
		return t
	}
	s := Bind(t.Class.ClassTypeParameters(), t.Arguments)
	for _, st := range t.Class.ClassSuperTypes() {
		applied, ok := Substitute(st, s).(*ClassType)
		if !ok {
			continue
		}
		if view := asSuperType(applied, target, depth+1); view != nil {
			return view
		}
	}
	return nil
}

// SuperTypesOf lists the direct supertypes of t with t's arguments substituted.
func SuperTypesOf(t *ClassType) []*ClassType {
	s := Bind(t.Class.ClassTypeParameters(), t.Arguments)
	var out []*ClassType
	for _, st := range t.Class.ClassSuperTypes() {
		if applied, ok := Substitute(st, s).(*ClassType); ok {
			out = append(out, applied)
		}
	}
	return out
}

// CommonSupertype returns the least upper bound of a and b that the hierarchy walk
// can find, falling back to top (usually Any) with the combined nullability.
func CommonSupertype(a, b, top Type) Type {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case IsSubtype(a, b):
		return b
	case IsSubtype(b, a):
		return a
	}
	nullable := MayBeNull(a) || MayBeNull(b)
	a0, b0 := NonNull(a), NonNull(b)
	if IsNothing(a0) {
		return b0.WithNullable(nullable)
	}
	if IsNothing(b0) {
		return a0.WithNullable(nullable)
	}
	if isSubtypeCore(a0, b0) {
		return b0.WithNullable(nullable)
	}
	if isSubtypeCore(b0, a0) {
		return a0.WithNullable(nullable)
	}
	if ct, ok := a0.(*ClassType); ok {
		queue := SuperTypesOf(ct)
		seen := map[ClassInfo]bool{}
		for len(queue) > 0 {
			st := queue[0]
			queue = queue[1:]
			if seen[st.Class] {
				continue
			}
			seen[st.Class] = true
			if st.Name() != AnyName && isSubtypeCore(b0, st) {
				return st.WithNullable(nullable)
			}
			queue = append(queue, SuperTypesOf(st)...)
		}
	}
	if tp, ok := a0.(*TypeParameterType); ok && tp.Bound != nil {
		return CommonSupertype(tp.Bound.WithNullable(nullable || tp.Bound.IsNullable()), b, top)
	}
	return top.WithNullable(nullable)
}
