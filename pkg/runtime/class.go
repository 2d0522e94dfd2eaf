package runtime

import (
	"fmt"
	"sort"
	"strings"

	"kotlite/pkg/parser"
	"kotlite/pkg/types"
)

// Dispatch slots of the Any members the runtime calls on its own.
const (
	EqualsSlot   = "Any.equals/1"
	HashCodeSlot = "Any.hashCode/0"
	ToStringSlot = "Any.toString/0"
)

// NativeFunction backs a native function, method, constructor or property accessor.
// Arguments arrive in parameter order; an omitted argument with a default is nil and
// the implementation supplies the default. Vararg arguments arrive flattened.
type NativeFunction func(ctx Invoker, receiver Value, args []Value) (Value, error)

// ClassDefinition is the metadata of a class or interface. It is immutable once the
// analyzer has built its dispatch table.
type ClassDefinition struct {
	Name               string
	FullyQualifiedName string
	Modifiers          parser.Modifiers
	IsInterface        bool
	IsNative           bool
	TypeParameters     []*types.TypeParameterType

	SuperClass          *ClassDefinition
	SuperClassType      *types.ClassType
	SuperInterfaces     []*ClassDefinition
	SuperInterfaceTypes []*types.ClassType

	PrimaryConstructor *FunctionDefinition
	// SuperConstructorCall is the supertype entry carrying the superclass constructor arguments.
	SuperConstructorCall *parser.SuperTypeNode
	MemberProperties     map[string]*PropertyDefinition
	MemberFunctions      map[string][]*FunctionDefinition
	// OrderedInitializers mixes *parser.PropertyDeclarationNode and
	// *parser.ClassInstanceInitializerNode in declaration order.
	OrderedInitializers []parser.Statement

	Declaration       *parser.ClassDeclarationNode
	NativeConstructor NativeFunction

	// Type is the class applied to its own type parameters.
	Type *types.ClassType

	dispatch   map[string]*FunctionDefinition
	properties map[string]*PropertyDefinition
}

// NewClassDefinition creates an empty class definition.
func NewClassDefinition(name string, mods parser.Modifiers) *ClassDefinition {
	c := &ClassDefinition{
		Name:               name,
		FullyQualifiedName: name,
		Modifiers:          mods,
		MemberProperties:   map[string]*PropertyDefinition{},
		MemberFunctions:    map[string][]*FunctionDefinition{},
	}
	c.Type = types.NewClassType(c)
	return c
}

// types.ClassInfo

func (c *ClassDefinition) ClassName() string { return c.Name }

func (c *ClassDefinition) ClassTypeParameters() []*types.TypeParameterType { return c.TypeParameters }

func (c *ClassDefinition) ClassSuperTypes() []*types.ClassType {
	var out []*types.ClassType
	if c.SuperClassType != nil {
		out = append(out, c.SuperClassType)
	}
	return append(out, c.SuperInterfaceTypes...)
}

// BindingName makes a class usable as a constructor binding.
func (c *ClassDefinition) BindingName() string { return c.FullyQualifiedName }

func (c *ClassDefinition) String() string {
	kind := "class"
	if c.IsInterface {
		kind = "interface"
	}
	var sb strings.Builder
	if len(c.Modifiers) > 0 {
		sb.WriteString(c.Modifiers.String())
		sb.WriteString(" ")
	}
	sb.WriteString(kind)
	sb.WriteString(" ")
	sb.WriteString(c.Type.String())
	return sb.String()
}

// IsAbstract reports whether the class may leave members unimplemented.
func (c *ClassDefinition) IsAbstract() bool { return c.IsInterface || c.Modifiers.Has("abstract") }

// IsOpen reports whether the class may be subclassed.
func (c *ClassDefinition) IsOpen() bool {
	return c.IsInterface || c.Modifiers.Has("open") || c.Modifiers.Has("abstract")
}

// IsInstanceCreationAllowed reports whether constructor calls may create instances.
func (c *ClassDefinition) IsInstanceCreationAllowed() bool {
	return !c.IsAbstract() && (c.PrimaryConstructor != nil || c.NativeConstructor != nil)
}

// IsSubclassOf reports whether c is other or inherits from it.
func (c *ClassDefinition) IsSubclassOf(other *ClassDefinition) bool {
	if c == nil || other == nil {
		return false
	}
	if c == other {
		return true
	}
	if c.SuperClass != nil && c.SuperClass.IsSubclassOf(other) {
		return true
	}
	for _, iface := range c.SuperInterfaces {
		if iface.IsSubclassOf(other) {
			return true
		}
	}
	return false
}

// AddFunction registers a member function declared directly in this class.
func (c *ClassDefinition) AddFunction(fn *FunctionDefinition) {
	fn.Owner = c
	c.MemberFunctions[fn.Name] = append(c.MemberFunctions[fn.Name], fn)
}

// AddProperty registers a member property declared directly in this class.
func (c *ClassDefinition) AddProperty(p *PropertyDefinition) {
	p.Owner = c
	c.MemberProperties[p.Name] = p
}

// BuildDispatchTable resolves every slot and property name to its most derived
// declaration. Supertypes must already have their tables built.
func (c *ClassDefinition) BuildDispatchTable() {
	c.dispatch = map[string]*FunctionDefinition{}
	c.properties = map[string]*PropertyDefinition{}
	inherit := func(super *ClassDefinition) {
		for slot, fn := range super.dispatch {
			if have, ok := c.dispatch[slot]; !ok || (have.IsAbstract() && !fn.IsAbstract()) {
				c.dispatch[slot] = fn
			}
		}
		for name, p := range super.properties {
			if have, ok := c.properties[name]; !ok || (have.IsAbstract && !p.IsAbstract) {
				c.properties[name] = p
			}
		}
	}
	if c.SuperClass != nil {
		inherit(c.SuperClass)
	}
	for _, iface := range c.SuperInterfaces {
		inherit(iface)
	}
	for _, fns := range c.MemberFunctions {
		for _, fn := range fns {
			c.dispatch[fn.SlotKey] = fn
		}
	}
	for name, p := range c.MemberProperties {
		c.properties[name] = p
	}
}

// Dispatch returns the implementation of a slot for instances of this class.
func (c *ClassDefinition) Dispatch(slot string) *FunctionDefinition {
	return c.dispatch[slot]
}

// Slots returns every resolved slot.
func (c *ClassDefinition) Slots() map[string]*FunctionDefinition { return c.dispatch }

// FindProperty resolves a member property, including inherited ones.
func (c *ClassDefinition) FindProperty(name string) *PropertyDefinition {
	if c.properties != nil {
		return c.properties[name]
	}
	if p, ok := c.MemberProperties[name]; ok {
		return p
	}
	if c.SuperClass != nil {
		if p := c.SuperClass.FindProperty(name); p != nil {
			return p
		}
	}
	for _, iface := range c.SuperInterfaces {
		if p := iface.FindProperty(name); p != nil {
			return p
		}
	}
	return nil
}

// AllProperties returns every resolved member property.
func (c *ClassDefinition) AllProperties() map[string]*PropertyDefinition { return c.properties }

// FindFunctions returns the most derived member functions with the given name.
func (c *ClassDefinition) FindFunctions(name string) []*FunctionDefinition {
	var out []*FunctionDefinition
	for _, fn := range c.dispatch {
		if fn.Name == name {
			out = append(out, fn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotKey < out[j].SlotKey })
	return out
}

// PropertyDefinition describes a member, extension or global property.
type PropertyDefinition struct {
	Name string
	// FieldName keys the value in ClassInstance.Fields. Overrides reuse the
	// overridden property's field.
	FieldName  string
	Type       types.Type
	IsMutable  bool
	IsAbstract bool
	Modifiers  parser.Modifiers
	Owner      *ClassDefinition
	// Receiver is set for extension properties.
	Receiver       types.Type
	TypeParameters []*types.TypeParameterType
	Getter         NativeFunction
	Setter         NativeFunction
	Declaration    *parser.PropertyDeclarationNode
	// Assigned tracks the one permitted assignment of a val member without
	// an initializer while the class body is analyzed.
	Assigned bool
}

func (p *PropertyDefinition) BindingName() string {
	if p.Owner != nil {
		return p.Owner.Name + "." + p.Name
	}
	return p.Name
}

func (p *PropertyDefinition) String() string {
	kw := "val"
	if p.IsMutable {
		kw = "var"
	}
	recv := ""
	if p.Receiver != nil {
		recv = p.Receiver.String() + "."
	}
	return fmt.Sprintf("%s %s%s: %s", kw, recv, p.Name, p.Type)
}

// IsOpen reports whether subclasses may override the property.
func (p *PropertyDefinition) IsOpen() bool {
	return p.IsAbstract || p.Modifiers.Has("open") || p.Modifiers.Has("override") ||
		(p.Owner != nil && p.Owner.IsInterface)
}

// ParameterDefinition is one declared value parameter.
type ParameterDefinition struct {
	Name            string
	Type            types.Type
	HasDefault      bool
	IsVararg        bool
	TransformedName string
	Declaration     *parser.FunctionValueParameterNode
}

// FunctionDefinition describes a script or native function, method or constructor.
type FunctionDefinition struct {
	Name string
	// TransformedName is the scope-unique name a script function's closure is
	// stored under.
	TransformedName string
	// SlotKey identifies the dispatch slot of a member function. Overrides reuse the
	// root declaration's key.
	SlotKey        string
	Modifiers      parser.Modifiers
	TypeParameters []*types.TypeParameterType
	Receiver       types.Type
	Parameters     []*ParameterDefinition
	ReturnType     types.Type
	Owner          *ClassDefinition
	IsConstructor  bool
	Declaration    *parser.FunctionDeclarationNode
	Native         NativeFunction
}

func (f *FunctionDefinition) BindingName() string { return f.QualifiedName() }

// QualifiedName is the name used in stack traces.
func (f *FunctionDefinition) QualifiedName() string {
	switch {
	case f.IsConstructor && f.Owner != nil:
		return f.Owner.Name + ".<init>"
	case f.Owner != nil:
		return f.Owner.Name + "." + f.Name
	case f.Receiver != nil:
		return types.NonNull(f.Receiver).String() + "." + f.Name
	}
	return f.Name
}

// IsAbstract reports whether the function has no implementation.
func (f *FunctionDefinition) IsAbstract() bool {
	return f.Native == nil && (f.Declaration == nil || f.Declaration.Body == nil) && !f.IsConstructor
}

// IsOpen reports whether subclasses may override the function.
func (f *FunctionDefinition) IsOpen() bool {
	if f.Modifiers.Has("final") {
		return false
	}
	return f.IsAbstract() || f.Modifiers.Has("open") || f.Modifiers.Has("override") ||
		(f.Owner != nil && f.Owner.IsInterface)
}

// VarargIndex returns the index of the vararg parameter or -1.
func (f *FunctionDefinition) VarargIndex() int {
	for i, p := range f.Parameters {
		if p.IsVararg {
			return i
		}
	}
	return -1
}

// ParameterTypes returns the declared parameter types. A vararg parameter of
// element type T is reported as T.
func (f *FunctionDefinition) ParameterTypes() []types.Type {
	out := make([]types.Type, len(f.Parameters))
	for i, p := range f.Parameters {
		out[i] = p.Type
	}
	return out
}

// Type returns the function's type as a function value.
func (f *FunctionDefinition) Type() *types.FunctionType {
	return &types.FunctionType{Receiver: f.Receiver, Parameters: f.ParameterTypes(), ReturnType: f.ReturnType}
}

func (f *FunctionDefinition) String() string {
	var sb strings.Builder
	sb.WriteString("fun ")
	if len(f.TypeParameters) > 0 {
		names := make([]string, len(f.TypeParameters))
		for i, tp := range f.TypeParameters {
			names[i] = tp.Name
		}
		sb.WriteString("<" + strings.Join(names, ", ") + "> ")
	}
	if f.Receiver != nil {
		sb.WriteString(f.Receiver.String() + ".")
	}
	sb.WriteString(f.Name)
	sb.WriteString("(")
	for i, p := range f.Parameters {
		if i > 0 {
			sb.WriteString(", ")
		}
		if p.IsVararg {
			sb.WriteString("vararg ")
		}
		sb.WriteString(p.Name + ": " + p.Type.String())
	}
	sb.WriteString(")")
	if f.ReturnType != nil {
		sb.WriteString(": " + f.ReturnType.String())
	}
	return sb.String()
}
