package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClass struct {
	name   string
	params []*TypeParameterType
	supers []*ClassType
}

func (c *testClass) ClassName() string                         { return c.name }
func (c *testClass) ClassTypeParameters() []*TypeParameterType { return c.params }
func (c *testClass) ClassSuperTypes() []*ClassType             { return c.supers }

type hierarchy struct {
	any, nothing, unit, intC, stringC, number *testClass
	iterable, list, mutableList, pair        *testClass
}

func newHierarchy() *hierarchy {
	h := &hierarchy{}
	h.any = &testClass{name: AnyName}
	anyT := NewClassType(h.any)
	h.nothing = &testClass{name: NothingName}
	h.unit = &testClass{name: UnitName, supers: []*ClassType{anyT}}
	h.number = &testClass{name: "Number", supers: []*ClassType{anyT}}
	h.intC = &testClass{name: IntName, supers: []*ClassType{NewClassType(h.number)}}
	h.stringC = &testClass{name: StringName, supers: []*ClassType{anyT}}

	t := &TypeParameterType{Name: "T", Owner: "Iterable", Variance: "out"}
	h.iterable = &testClass{name: "Iterable", params: []*TypeParameterType{t}, supers: []*ClassType{anyT}}
	e := &TypeParameterType{Name: "E", Owner: "List", Variance: "out"}
	h.list = &testClass{name: "List", params: []*TypeParameterType{e}, supers: []*ClassType{NewClassType(h.iterable, e)}}
	me := &TypeParameterType{Name: "E", Owner: "MutableList"}
	h.mutableList = &testClass{name: "MutableList", params: []*TypeParameterType{me}, supers: []*ClassType{NewClassType(h.list, me)}}
	a := &TypeParameterType{Name: "A", Owner: "Pair", Variance: "out"}
	b := &TypeParameterType{Name: "B", Owner: "Pair", Variance: "out"}
	h.pair = &testClass{name: "Pair", params: []*TypeParameterType{a, b}, supers: []*ClassType{anyT}}
	return h
}

func (h *hierarchy) t(c *testClass, args ...Type) *ClassType { return NewClassType(c, args...) }

func TestIsSubtype(t *testing.T) {
	h := newHierarchy()
	intT, strT, anyT := h.t(h.intC), h.t(h.stringC), h.t(h.any)
	nullT := h.t(h.nothing).WithNullable(true)
	tests := []struct {
		name     string
		sub, sup Type
		expected bool
	}{
		{"reflexive", intT, intT, true},
		{"to Any", intT, anyT, true},
		{"through hierarchy", intT, h.t(h.number), true},
		{"unrelated", intT, strT, false},
		{"nullable to non-null", intT.WithNullable(true), intT, false},
		{"non-null to nullable", intT, intT.WithNullable(true), true},
		{"null literal", nullT, strT.WithNullable(true), true},
		{"null literal to non-null", nullT, strT, false},
		{"Nothing to anything", h.t(h.nothing), strT, true},
		{"covariant list", h.t(h.list, intT), h.t(h.list, anyT), true},
		{"list as iterable", h.t(h.mutableList, intT), h.t(h.iterable, h.t(h.number)), true},
		{"invariant mutable list", h.t(h.mutableList, intT), h.t(h.mutableList, anyT), false},
		{"star projection", h.t(h.mutableList, intT), h.t(h.mutableList, Star), true},
		{"function contravariance",
			&FunctionType{Parameters: []Type{anyT}, ReturnType: intT},
			&FunctionType{Parameters: []Type{strT}, ReturnType: anyT}, true},
		{"function wrong arity",
			&FunctionType{Parameters: []Type{anyT}, ReturnType: intT},
			&FunctionType{ReturnType: intT}, false},
		{"receiver flattening",
			&FunctionType{Receiver: strT, ReturnType: intT},
			&FunctionType{Parameters: []Type{strT}, ReturnType: intT}, true},
		{"unit-returning target accepts any return",
			&FunctionType{ReturnType: intT},
			&FunctionType{ReturnType: h.t(h.unit)}, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, IsSubtype(tt.sub, tt.sup), tt.name)
	}
}

func TestTypeParameterSubtyping(t *testing.T) {
	h := newHierarchy()
	unbounded := &TypeParameterType{Name: "T", Owner: "f"}
	bounded := &TypeParameterType{Name: "N", Owner: "g", Bound: h.t(h.number)}

	assert.True(t, IsSubtype(unbounded, unbounded))
	assert.True(t, IsSubtype(unbounded, h.t(h.any).WithNullable(true)))
	assert.False(t, IsSubtype(unbounded, h.t(h.any)), "T may be null")
	assert.True(t, IsSubtype(bounded, h.t(h.any)))
	assert.True(t, IsSubtype(bounded, h.t(h.number)))
	assert.False(t, IsSubtype(h.t(h.intC), bounded), "a concrete type is never a subtype of a type parameter")
}

func TestAsSuperTypeSubstitutesBottomUp(t *testing.T) {
	h := newHierarchy()
	view := AsSuperType(h.t(h.mutableList, h.t(h.stringC)), h.iterable)
	require.NotNil(t, view)
	assert.Equal(t, "Iterable<String>", view.String())
	assert.Nil(t, AsSuperType(h.t(h.stringC), h.iterable))
}

func TestUnify(t *testing.T) {
	h := newHierarchy()
	tp := &TypeParameterType{Name: "T", Owner: "listOf"}
	free := map[string]bool{tp.Key(): true}
	anyT := h.t(h.any)

	s := Substitution{}
	Unify(h.t(h.iterable, tp), h.t(h.mutableList, h.t(h.intC)), s, free, anyT)
	assert.Equal(t, "Int", s[tp.Key()].String())

	s = Substitution{}
	Unify(tp, h.t(h.intC), s, free, anyT)
	Unify(tp, h.t(h.nothing).WithNullable(true), s, free, anyT)
	assert.Equal(t, "Int?", s[tp.Key()].String())

	s = Substitution{}
	Unify(tp, h.t(h.intC), s, free, anyT)
	Unify(tp, h.t(h.stringC), s, free, anyT)
	assert.Equal(t, "Any", s[tp.Key()].String())

	r := &TypeParameterType{Name: "R", Owner: "map"}
	free[r.Key()] = true
	s = Substitution{}
	Unify(&FunctionType{Parameters: []Type{tp}, ReturnType: r},
		&FunctionType{Parameters: []Type{h.t(h.stringC)}, ReturnType: h.t(h.intC)}, s, free, anyT)
	assert.Equal(t, "String", s[tp.Key()].String())
	assert.Equal(t, "Int", s[r.Key()].String())
}

func TestSubstitute(t *testing.T) {
	h := newHierarchy()
	tp := &TypeParameterType{Name: "T", Owner: "f"}
	s := Substitution{tp.Key(): h.t(h.stringC)}

	assert.Equal(t, "String?", Substitute(tp.WithNullable(true), s).String())
	fn := &FunctionType{Parameters: []Type{tp}, ReturnType: h.t(h.list, tp)}
	assert.Equal(t, "(String) -> List<String>", Substitute(fn, s).String())
	assert.Equal(t, "(T) -> List<T>", fn.String(), "substitution must not mutate its input")
	assert.True(t, Unresolved(fn, map[string]bool{tp.Key(): true}))
}

func TestCommonSupertype(t *testing.T) {
	h := newHierarchy()
	anyT := h.t(h.any)
	intT, strT := h.t(h.intC), h.t(h.stringC)
	nullT := h.t(h.nothing).WithNullable(true)

	assert.Equal(t, "Int", CommonSupertype(intT, h.t(h.nothing), anyT).String())
	assert.Equal(t, "Int?", CommonSupertype(intT, nullT, anyT).String())
	assert.Equal(t, "Any", CommonSupertype(intT, strT, anyT).String())
	assert.Equal(t, "List<Int>", CommonSupertype(h.t(h.mutableList, intT), h.t(h.list, intT), anyT).String())
	assert.Equal(t, "Iterable<Int>", CommonSupertype(h.t(h.mutableList, intT), h.t(h.iterable, intT), anyT).String())
}
