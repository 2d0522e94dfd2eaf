package runtime

import (
	"fmt"

	"kotlite/pkg/parser"
	"kotlite/pkg/types"
)

// PropertyKind tells the analyzer where a visible property lives.
type PropertyKind int

const (
	LocalProperty PropertyKind = iota
	ParameterProperty
	GlobalNativeProperty
)

// PropertyInfo is a property as seen by the analyzer: its declared type, its
// transformed reference name and its mutability state.
type PropertyInfo struct {
	Name            string
	TransformedName string
	Type            types.Type
	IsMutable       bool
	// Assigned is set once the property holds a value. A val may be assigned only
	// while this is false.
	Assigned   bool
	Kind       PropertyKind
	Definition *PropertyDefinition
}

// SymbolTable is one scope. The analyzer fills the declaration maps; the evaluator
// stores values by transformed reference name. Declaration is always into the
// current scope; lookup walks the parent chain.
type SymbolTable struct {
	Level     int
	Name      string
	ScopeType parser.ScopeType
	// Parent is a lookup link, never ownership.
	Parent *SymbolTable

	properties     map[string]*PropertyInfo
	functions      map[string][]*FunctionDefinition
	classes        map[string]*ClassDefinition
	typeParameters map[string]*types.TypeParameterType
	narrowings     map[string]types.Type
	values         map[string]Value

	// ThisType is the implicit receiver type inside class bodies, member functions and
	// extension functions (analyzer).
	ThisType types.Type
	// This is the implicit receiver value (evaluator).
	This    Value
	HasThis bool
	// Function is the function whose body this scope belongs to.
	Function *FunctionDefinition
	// ReturnType is the expected return type of the enclosing function body (analyzer).
	ReturnType types.Type
}

// NewSymbolTable creates a root scope.
func NewSymbolTable(name string, scopeType parser.ScopeType) *SymbolTable {
	return &SymbolTable{Name: name, ScopeType: scopeType}
}

// NewChild creates a nested scope.
func (st *SymbolTable) NewChild(name string, scopeType parser.ScopeType) *SymbolTable {
	return &SymbolTable{Level: st.Level + 1, Name: name, ScopeType: scopeType, Parent: st}
}

func (st *SymbolTable) String() string {
	return fmt.Sprintf("scope#%d(%s, %s)", st.Level, st.Name, st.ScopeType)
}

// --- Properties ---

// DeclareProperty declares a property in this scope. It reports false when the name
// is already declared here.
func (st *SymbolTable) DeclareProperty(info *PropertyInfo) bool {
	if st.properties == nil {
		st.properties = map[string]*PropertyInfo{}
	}
	if _, exists := st.properties[info.Name]; exists {
		return false
	}
	st.properties[info.Name] = info
	return true
}

// LocalProperty finds a property declared in this scope only.
func (st *SymbolTable) LocalProperty(name string) *PropertyInfo {
	return st.properties[name]
}

// FindProperty walks up the chain.
func (st *SymbolTable) FindProperty(name string) (*PropertyInfo, *SymbolTable) {
	for s := st; s != nil; s = s.Parent {
		if p, ok := s.properties[name]; ok {
			return p, s
		}
	}
	return nil, nil
}

// Properties returns the properties declared in this scope.
func (st *SymbolTable) Properties() map[string]*PropertyInfo { return st.properties }

// --- Functions ---

// DeclareFunction adds an overload to this scope.
func (st *SymbolTable) DeclareFunction(fn *FunctionDefinition) {
	if st.functions == nil {
		st.functions = map[string][]*FunctionDefinition{}
	}
	st.functions[fn.Name] = append(st.functions[fn.Name], fn)
}

// LocalFunctions returns the overloads declared in this scope only.
func (st *SymbolTable) LocalFunctions(name string) []*FunctionDefinition {
	return st.functions[name]
}

// Functions returns every function declared in this scope.
func (st *SymbolTable) Functions() map[string][]*FunctionDefinition { return st.functions }

// --- Classes ---

// DeclareClass declares a class in this scope. It reports false when the name is
// already visible.
func (st *SymbolTable) DeclareClass(c *ClassDefinition) bool {
	if existing := st.FindClass(c.Name); existing != nil {
		return false
	}
	if st.classes == nil {
		st.classes = map[string]*ClassDefinition{}
	}
	st.classes[c.Name] = c
	return true
}

// FindClass walks up the chain.
func (st *SymbolTable) FindClass(name string) *ClassDefinition {
	for s := st; s != nil; s = s.Parent {
		if c, ok := s.classes[name]; ok {
			return c
		}
	}
	return nil
}

// Classes returns the classes declared in this scope.
func (st *SymbolTable) Classes() map[string]*ClassDefinition { return st.classes }

// --- Type parameters ---

// DeclareTypeParameter makes a type parameter resolvable by name.
func (st *SymbolTable) DeclareTypeParameter(tp *types.TypeParameterType) {
	if st.typeParameters == nil {
		st.typeParameters = map[string]*types.TypeParameterType{}
	}
	st.typeParameters[tp.Name] = tp
}

// FindTypeParameter walks up the chain.
func (st *SymbolTable) FindTypeParameter(name string) *types.TypeParameterType {
	for s := st; s != nil; s = s.Parent {
		if tp, ok := s.typeParameters[name]; ok {
			return tp
		}
	}
	return nil
}

// --- Smart casts ---

// Narrow records a smart-cast type for a property in this scope.
func (st *SymbolTable) Narrow(transformedName string, t types.Type) {
	if st.narrowings == nil {
		st.narrowings = map[string]types.Type{}
	}
	st.narrowings[transformedName] = t
}

// LocalNarrowing returns the smart-cast type recorded in this scope only.
func (st *SymbolTable) LocalNarrowing(transformedName string) (types.Type, bool) {
	t, ok := st.narrowings[transformedName]
	return t, ok
}

// NarrowedType returns the innermost smart-cast type recorded for a property.
func (st *SymbolTable) NarrowedType(transformedName string) (types.Type, bool) {
	for s := st; s != nil; s = s.Parent {
		if t, ok := s.narrowings[transformedName]; ok {
			return t, true
		}
	}
	return nil, false
}

// --- Receivers ---

// FindThis returns the innermost scope carrying an implicit receiver.
func (st *SymbolTable) FindThis() *SymbolTable {
	for s := st; s != nil; s = s.Parent {
		if s.HasThis || s.ThisType != nil {
			return s
		}
	}
	return nil
}

// EnclosingFunction returns the innermost function or lambda body scope.
func (st *SymbolTable) EnclosingFunction() *SymbolTable {
	for s := st; s != nil; s = s.Parent {
		switch s.ScopeType {
		case parser.ScopeFunction, parser.ScopeLambda, parser.ScopeConstructor,
			parser.ScopeClassInitializer, parser.ScopeScript, parser.ScopeClass:
			return s
		}
	}
	return nil
}

// --- Values ---

// Define stores a value in this scope.
func (st *SymbolTable) Define(refName string, v Value) {
	if st.values == nil {
		st.values = map[string]Value{}
	}
	st.values[refName] = v
}

// Lookup finds a value by transformed reference name.
func (st *SymbolTable) Lookup(refName string) (Value, bool) {
	for s := st; s != nil; s = s.Parent {
		if v, ok := s.values[refName]; ok {
			return v, true
		}
	}
	return nil, false
}

// Assign overwrites an existing value wherever it is declared.
func (st *SymbolTable) Assign(refName string, v Value) bool {
	for s := st; s != nil; s = s.Parent {
		if _, ok := s.values[refName]; ok {
			s.values[refName] = v
			return true
		}
	}
	return false
}

// Values returns the values stored in this scope.
func (st *SymbolTable) Values() map[string]Value { return st.values }
