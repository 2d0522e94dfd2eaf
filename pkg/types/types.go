package types

import (
	"strings"
)

// Names of the classes the type rules treat specially.
const (
	AnyName     = "Any"
	NothingName = "Nothing"
	UnitName    = "Unit"
	IntName     = "Int"
	LongName    = "Long"
	DoubleName  = "Double"
	ByteName    = "Byte"
	CharName    = "Char"
	BooleanName = "Boolean"
	StringName  = "String"
)

// Type is the interface implemented by all static type representations.
type Type interface {
	// String returns the type the way it is written in source.
	String() string
	// IsNullable reports whether the type is marked with '?'.
	IsNullable() bool
	// WithNullable returns a copy of the type with the nullable mark set or cleared.
	WithNullable(nullable bool) Type

	// typeNode() keeps the set of types closed to this package.
	typeNode()
}

// ClassInfo is the view of a class declaration the type rules need. The runtime
// class definitions implement it.
type ClassInfo interface {
	ClassName() string
	ClassTypeParameters() []*TypeParameterType
	// ClassSuperTypes returns the direct supertypes written in terms of the class's
	// own type parameters.
	ClassSuperTypes() []*ClassType
}

// --- Class types ---

// ClassType is a (possibly generic) class or interface applied to type arguments.
type ClassType struct {
	Class     ClassInfo
	Arguments []Type
	Nullable  bool
}

// NewClassType applies a class to type arguments.
func NewClassType(class ClassInfo, args ...Type) *ClassType {
	return &ClassType{Class: class, Arguments: args}
}

func (ct *ClassType) Name() string { return ct.Class.ClassName() }

func (ct *ClassType) String() string {
	var sb strings.Builder
	sb.WriteString(ct.Name())
	if len(ct.Arguments) > 0 {
		sb.WriteString("<")
		sb.WriteString(joinTypes(ct.Arguments))
		sb.WriteString(">")
	}
	if ct.Nullable {
		sb.WriteString("?")
	}
	return sb.String()
}

func (ct *ClassType) IsNullable() bool { return ct.Nullable }

func (ct *ClassType) WithNullable(nullable bool) Type {
	if ct.Nullable == nullable {
		return ct
	}
	cp := *ct
	cp.Nullable = nullable
	return &cp
}

func (ct *ClassType) typeNode() {}

// --- Function types ---

// FunctionType is the type of a lambda or function value: `R.(A, B) -> C`.
type FunctionType struct {
	Receiver   Type
	Parameters []Type
	ReturnType Type
	Nullable   bool
}

func (ft *FunctionType) String() string {
	var sb strings.Builder
	if ft.Nullable {
		sb.WriteString("(")
	}
	if ft.Receiver != nil {
		sb.WriteString(ft.Receiver.String())
		sb.WriteString(".")
	}
	sb.WriteString("(")
	sb.WriteString(joinTypes(ft.Parameters))
	sb.WriteString(") -> ")
	if ft.ReturnType != nil {
		sb.WriteString(ft.ReturnType.String())
	} else {
		sb.WriteString("?")
	}
	if ft.Nullable {
		sb.WriteString(")?")
	}
	return sb.String()
}

func (ft *FunctionType) IsNullable() bool { return ft.Nullable }

func (ft *FunctionType) WithNullable(nullable bool) Type {
	if ft.Nullable == nullable {
		return ft
	}
	cp := *ft
	cp.Nullable = nullable
	return &cp
}

func (ft *FunctionType) typeNode() {}

// FlatParameters returns the parameter list with the receiver, if any, prepended.
// `A.(B) -> C` and `(A, B) -> C` are interchangeable for assignment and invocation.
func (ft *FunctionType) FlatParameters() []Type {
	if ft.Receiver == nil {
		return ft.Parameters
	}
	return append([]Type{ft.Receiver}, ft.Parameters...)
}

// --- Type parameters ---

// TypeParameterType is a reference to a class or function type parameter.
type TypeParameterType struct {
	Name string
	// Owner identifies the declaring class or function; together with Name it
	// keys substitutions.
	Owner    string
	Bound    Type // nil means Any?
	Variance string
	Nullable bool
}

// Key identifies the parameter independently of its nullable mark.
func (tp *TypeParameterType) Key() string { return tp.Owner + "." + tp.Name }

func (tp *TypeParameterType) String() string {
	if tp.Nullable {
		return tp.Name + "?"
	}
	return tp.Name
}

func (tp *TypeParameterType) IsNullable() bool { return tp.Nullable }

func (tp *TypeParameterType) WithNullable(nullable bool) Type {
	if tp.Nullable == nullable {
		return tp
	}
	cp := *tp
	cp.Nullable = nullable
	return &cp
}

func (tp *TypeParameterType) typeNode() {}

// --- Star projection ---

// StarType is the `*` projection in a type argument list.
type StarType struct{}

// Star is the shared star projection.
var Star = &StarType{}

func (s *StarType) String() string         { return "*" }
func (s *StarType) IsNullable() bool       { return true }
func (s *StarType) WithNullable(bool) Type { return s }
func (s *StarType) typeNode()              {}

// --- Helpers ---

func joinTypes(ts []Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		if t == nil {
			parts[i] = "?"
			continue
		}
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// IsNamed reports whether t is the class type with the given name, ignoring nullability.
func IsNamed(t Type, name string) bool {
	ct, ok := t.(*ClassType)
	return ok && ct.Name() == name
}

// IsNothing reports whether t is Nothing or Nothing?. The type of `null` is Nothing?.
func IsNothing(t Type) bool { return IsNamed(t, NothingName) }

// IsUnit reports whether t is Unit.
func IsUnit(t Type) bool { return IsNamed(t, UnitName) }

// MayBeNull reports whether a value of type t can hold null. A type parameter
// without a non-null bound may, even without the '?' mark.
func MayBeNull(t Type) bool {
	switch t := t.(type) {
	case *TypeParameterType:
		if t.Nullable {
			return true
		}
		return t.Bound == nil || MayBeNull(t.Bound)
	case nil:
		return false
	default:
		return t.IsNullable()
	}
}

// NonNull strips the nullable mark. For type parameters with nullable bounds the
// result is still the parameter: the checker treats `T` after a null check as non-null
// through its bound.
func NonNull(t Type) Type {
	if t == nil {
		return nil
	}
	return t.WithNullable(false)
}

// Equal reports structural equality.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.IsNullable() != b.IsNullable() {
		return false
	}
	switch a := a.(type) {
	case *ClassType:
		b, ok := b.(*ClassType)
		if !ok || a.Class != b.Class || len(a.Arguments) != len(b.Arguments) {
			return false
		}
		for i := range a.Arguments {
			if !Equal(a.Arguments[i], b.Arguments[i]) {
				return false
			}
		}
		return true
	case *FunctionType:
		b, ok := b.(*FunctionType)
		if !ok {
			return false
		}
		ap, bp := a.FlatParameters(), b.FlatParameters()
		if len(ap) != len(bp) || !Equal(a.ReturnType, b.ReturnType) {
			return false
		}
		for i := range ap {
			if !Equal(ap[i], bp[i]) {
				return false
			}
		}
		return true
	case *TypeParameterType:
		b, ok := b.(*TypeParameterType)
		return ok && a.Key() == b.Key()
	case *StarType:
		_, ok := b.(*StarType)
		return ok
	}
	return false
}

// Contains reports whether t mentions a type parameter accepted by pred.
func Contains(t Type, pred func(*TypeParameterType) bool) bool {
	switch t := t.(type) {
	case *TypeParameterType:
		return pred(t)
	case *ClassType:
		for _, a := range t.Arguments {
			if Contains(a, pred) {
				return true
			}
		}
	case *FunctionType:
		if t.Receiver != nil && Contains(t.Receiver, pred) {
			return true
		}
		for _, p := range t.Parameters {
			if Contains(p, pred) {
				return true
			}
		}
		return t.ReturnType != nil && Contains(t.ReturnType, pred)
	}
	return false
}
