package checker

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set"

	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
	"kotlite/pkg/types"
)

// classInfo is the analysis state of one class.
type classInfo struct {
	def  *runtime.ClassDefinition
	decl *parser.ClassDeclarationNode
	// spec is set for native classes.
	spec *runtime.NativeClassSpec

	// scope holds the class type parameters. Member functions are declared below it.
	scope *runtime.SymbolTable
	// ctorScope holds the constructor parameters; initScope adds this.
	ctorScope *runtime.SymbolTable
	initScope *runtime.SymbolTable
	ctorInfos []*runtime.PropertyInfo

	checked     bool
	initChecked map[*parser.PropertyDeclarationNode]bool
	inferring   map[*runtime.PropertyDefinition]bool
}

// declareScriptClasses hoists the classes of a top-level statement list.
func (c *Checker) declareScriptClasses(decls []*parser.ClassDeclarationNode) {
	var infos []*classInfo
	for _, d := range decls {
		def := runtime.NewClassDefinition(d.Name, d.Modifiers)
		def.IsInterface = d.IsInterface
		def.Declaration = d
		d.Definition = def
		d.TransformedRefName = c.newRefName(d.Name)
		if !c.scope.DeclareClass(def) {
			c.errorf(d, "Redeclaration: class %s", d.Name)
		}
		infos = append(infos, &classInfo{def: def, decl: d})
	}
	c.declareClasses(infos)
}

// declareClasses resolves headers and member signatures of a batch of classes whose
// shells are already declared, and builds their dispatch tables.
func (c *Checker) declareClasses(infos []*classInfo) {
	for _, ci := range infos {
		c.classes[ci.def] = ci
		ci.initChecked = map[*parser.PropertyDeclarationNode]bool{}
		ci.inferring = map[*runtime.PropertyDefinition]bool{}
		ci.scope = c.scope.NewChild(ci.def.Name, parser.ScopeClass)
		c.withScope(ci.scope, func() {
			ci.def.TypeParameters = c.declareTypeParameters(ci.def.Name, ci.decl.TypeParameters)
		})
		args := make([]types.Type, len(ci.def.TypeParameters))
		for i, tp := range ci.def.TypeParameters {
			args[i] = tp
		}
		ci.def.Type = types.NewClassType(ci.def, args...)
	}
	for _, ci := range infos {
		c.resolveSuperTypes(ci)
	}
	for _, ci := range infos {
		c.checkInheritanceCycle(ci)
	}
	for _, ci := range superFirst(infos) {
		c.declareMembers(ci)
	}
}

func (c *Checker) resolveSuperTypes(ci *classInfo) {
	def := ci.def
	c.withScope(ci.scope, func() {
		for _, st := range ci.decl.SuperTypes {
			t, ok := c.resolveType(st.Type).(*types.ClassType)
			if !ok || t.IsNullable() {
				c.errorf(st, "Only classes and interfaces may serve as supertypes")
			}
			super := t.Class.(*runtime.ClassDefinition)
			if super.IsInterface {
				if st.IsConstructorCall {
					c.errorf(st, "Interface %s does not have constructors", super.Name)
				}
				if ci.spec == nil && super.IsNative && !implementable(super) {
					c.errorf(st, "Native interface %s cannot be implemented by script classes", super.Name)
				}
				for _, have := range def.SuperInterfaces {
					if have == super {
						c.errorf(st, "An interface can appear only once in a supertype list")
					}
				}
				def.SuperInterfaces = append(def.SuperInterfaces, super)
				def.SuperInterfaceTypes = append(def.SuperInterfaceTypes, t)
				continue
			}
			switch {
			case def.IsInterface:
				c.errorf(st, "An interface cannot inherit from a class")
			case def.SuperClass != nil:
				c.errorf(st, "Only one class may appear in a supertype list")
			case !super.IsOpen():
				c.errorf(st, "This type is final, so it cannot be inherited from")
			case ci.spec == nil && super.IsNative && super.Name != types.AnyName:
				c.errorf(st, "Native class %s cannot be inherited from", super.Name)
			case ci.spec == nil && !st.IsConstructorCall:
				c.errorf(st, "This type has a constructor, and thus must be initialized here")
			}
			def.SuperClass = super
			def.SuperClassType = t
			if st.IsConstructorCall && super.Name != types.AnyName {
				def.SuperConstructorCall = st
			}
		}
	})
	if def.SuperClass == nil && def.Name != types.AnyName {
		anyDef := c.classDef(types.AnyName)
		def.SuperClass = anyDef
		def.SuperClassType = anyDef.Type
	}
}

// implementable reports whether a native interface only declares abstract members,
// so that a script class can supply the whole behaviour.
func implementable(iface *runtime.ClassDefinition) bool {
	if len(iface.MemberFunctions) == 0 || len(iface.MemberProperties) > 0 {
		return false
	}
	for _, fns := range iface.MemberFunctions {
		for _, fn := range fns {
			if !fn.IsAbstract() {
				return false
			}
		}
	}
	return true
}

func (c *Checker) checkInheritanceCycle(ci *classInfo) {
	seen := map[*runtime.ClassDefinition]bool{}
	var reaches func(d *runtime.ClassDefinition) bool
	reaches = func(d *runtime.ClassDefinition) bool {
		if d == nil || seen[d] {
			return false
		}
		seen[d] = true
		if d.SuperClass == ci.def || reaches(d.SuperClass) {
			return true
		}
		for _, iface := range d.SuperInterfaces {
			if iface == ci.def || reaches(iface) {
				return true
			}
		}
		return false
	}
	if reaches(ci.def) {
		c.errorf(ci.decl, "There's a cycle in the inheritance hierarchy for %s", ci.def.Name)
	}
}

// superFirst orders a batch so every class follows its supertypes.
func superFirst(infos []*classInfo) []*classInfo {
	byDef := map[*runtime.ClassDefinition]*classInfo{}
	for _, ci := range infos {
		byDef[ci.def] = ci
	}
	done := map[*classInfo]bool{}
	var out []*classInfo
	var visit func(ci *classInfo)
	visit = func(ci *classInfo) {
		if ci == nil || done[ci] {
			return
		}
		done[ci] = true
		visit(byDef[ci.def.SuperClass])
		for _, iface := range ci.def.SuperInterfaces {
			visit(byDef[iface])
		}
		out = append(out, ci)
	}
	for _, ci := range infos {
		visit(ci)
	}
	return out
}

// --- Members ---

func (c *Checker) declareMembers(ci *classInfo) {
	def := ci.def
	c.withScope(ci.scope, func() {
		c.declareConstructor(ci)
		if ci.spec != nil {
			for _, m := range ci.spec.Methods {
				fn := c.declareMemberFunction(ci, m.Header)
				fn.Native = m.Impl
			}
			for _, p := range ci.spec.Properties {
				c.declareNativeMemberProperty(ci, p)
			}
		} else {
			for _, d := range ci.decl.Declarations {
				switch d := d.(type) {
				case *parser.PropertyDeclarationNode:
					c.declareMemberProperty(ci, d)
				case *parser.FunctionDeclarationNode:
					c.declareMemberFunction(ci, d)
				case *parser.ClassInstanceInitializerNode:
					if def.IsInterface {
						c.errorf(d, "Interfaces cannot have initializers")
					}
					def.OrderedInitializers = append(def.OrderedInitializers, d)
				case *parser.ClassDeclarationNode:
					c.errorf(d, "Nested classes are not supported")
				default:
					c.errorf(d, "Expecting member declaration")
				}
			}
		}
	})
	def.BuildDispatchTable()
	c.checkAbstractMembers(ci)

	ci.initScope = ci.ctorScope.NewChild(def.Name, parser.ScopeClassInitializer)
	ci.initScope.ThisType = def.Type
}

func (c *Checker) declareConstructor(ci *classInfo) {
	def := ci.def
	ci.ctorScope = ci.scope.NewChild(def.Name, parser.ScopeConstructor)
	if def.IsInterface {
		if ci.decl.HasPrimaryConstructor {
			c.errorf(ci.decl, "An interface may not have a constructor")
		}
		return
	}
	if ci.spec != nil && ci.spec.Constructor == nil {
		return
	}
	ctor := &runtime.FunctionDefinition{
		Name: def.Name, TransformedName: c.newRefName("<init>"), IsConstructor: true,
		Owner: def, ReturnType: def.Type,
	}
	if ci.spec != nil {
		ctor.Native = ci.spec.Constructor
	}
	seen := map[string]bool{}
	for _, cp := range ci.decl.PrimaryConstructor {
		param := c.parameter(cp.Parameter, seen)
		ctor.Parameters = append(ctor.Parameters, param)
		info := &runtime.PropertyInfo{
			Name: param.Name, TransformedName: param.TransformedName, Type: c.parameterValueType(param),
			Assigned: true, Kind: runtime.ParameterProperty,
		}
		ci.ctorScope.DeclareProperty(info)
		ci.ctorInfos = append(ci.ctorInfos, info)
		if cp.IsProperty {
			if param.IsVararg {
				c.errorf(cp, "Vararg constructor parameters cannot be properties")
			}
			p := &runtime.PropertyDefinition{
				Name: param.Name, FieldName: def.Name + "." + param.Name, Type: param.Type,
				IsMutable: cp.IsMutable, Modifiers: cp.Modifiers, Assigned: true,
			}
			c.addMemberProperty(ci, p, cp)
			cp.PropertyRefName = p.FieldName
		}
	}
	def.PrimaryConstructor = ctor
}

func (c *Checker) declareMemberProperty(ci *classInfo, d *parser.PropertyDeclarationNode) {
	def := ci.def
	if d.Receiver != nil || len(d.TypeParameters) > 0 {
		c.errorf(d, "Member extension properties are not supported")
	}
	abstract := def.IsInterface || d.Modifiers.Has("abstract")
	switch {
	case def.IsInterface && d.Initializer != nil:
		c.errorf(d, "Property initializers are not allowed in interfaces")
	case abstract && d.Initializer != nil:
		c.errorf(d, "Property with initializer cannot be abstract")
	case d.Type == nil && d.Initializer == nil:
		c.errorf(d, "This property must either have a type annotation or be initialized")
	}
	p := &runtime.PropertyDefinition{
		Name: d.Name, FieldName: def.Name + "." + d.Name, Type: c.resolveType(d.Type),
		IsMutable: d.IsMutable, IsAbstract: abstract, Modifiers: d.Modifiers,
		Declaration: d, Assigned: d.Initializer != nil,
	}
	c.addMemberProperty(ci, p, d)
	d.TransformedRefName = p.FieldName
	if d.Initializer != nil {
		def.OrderedInitializers = append(def.OrderedInitializers, d)
	}
}

func (c *Checker) declareNativeMemberProperty(ci *classInfo, spec *runtime.NativePropertySpec) {
	h := spec.Header
	if h.Type == nil {
		c.errorf(h, "Native property %s needs a type", h.Name)
	}
	p := &runtime.PropertyDefinition{
		Name: h.Name, Type: c.resolveType(h.Type), IsMutable: h.IsMutable, Modifiers: h.Modifiers,
		Getter: spec.Getter, Setter: spec.Setter, Declaration: h, Assigned: true,
	}
	c.addMemberProperty(ci, p, h)
}

// addMemberProperty applies the override rules and registers the property.
func (c *Checker) addMemberProperty(ci *classInfo, p *runtime.PropertyDefinition, at parser.Node) {
	def := ci.def
	if _, dup := def.MemberProperties[p.Name]; dup {
		c.errorf(at, "Conflicting declarations: %s", p.Name)
	}
	inherited := c.inheritedProperty(def, p.Name)
	override := p.Modifiers.Has("override")
	switch {
	case inherited == nil && override:
		c.errorf(at, "'%s' overrides nothing", p.Name)
	case inherited == nil:
	case !override && ci.spec == nil:
		c.errorf(at, "'%s' hides member of supertype '%s' and needs 'override' modifier", p.Name, inherited.Owner.Name)
	default:
		if ci.spec == nil && !inherited.IsOpen() {
			c.errorf(at, "'%s' in '%s' is final and cannot be overridden", p.Name, inherited.Owner.Name)
		}
		if inherited.IsMutable && !p.IsMutable {
			c.errorf(at, "Var-property %s cannot be overridden by val-property", p.Name)
		}
		if p.Type != nil && inherited.Type != nil {
			want := types.Substitute(inherited.Type, c.ownerSubstitution(def.Type, inherited.Owner))
			ok := types.IsSubtype(p.Type, want)
			if inherited.IsMutable {
				ok = types.Equal(p.Type, want)
			}
			if !ok {
				c.errorf(at, "Type of '%s' is not a subtype of the overridden property", p.Name)
			}
		}
		if inherited.FieldName != "" {
			p.FieldName = inherited.FieldName
		}
	}
	def.AddProperty(p)
}

func (c *Checker) inheritedProperty(def *runtime.ClassDefinition, name string) *runtime.PropertyDefinition {
	if def.SuperClass != nil {
		if p := def.SuperClass.FindProperty(name); p != nil {
			return p
		}
	}
	for _, iface := range def.SuperInterfaces {
		if p := iface.FindProperty(name); p != nil {
			return p
		}
	}
	return nil
}

func (c *Checker) declareMemberFunction(ci *classInfo, d *parser.FunctionDeclarationNode) *runtime.FunctionDefinition {
	def := ci.def
	if d.Receiver != nil {
		c.errorf(d, "Member extension functions are not supported")
	}
	native := ci.spec != nil
	switch {
	case def.IsInterface && d.Body != nil && !native:
		c.errorf(d, "Interface function %s cannot have a body", d.Name)
	case d.Modifiers.Has("abstract") && d.Body != nil:
		c.errorf(d, "A function with body cannot be abstract")
	case d.Modifiers.Has("abstract") && !def.IsAbstract():
		c.errorf(d, "Abstract function '%s' in non-abstract class '%s'", d.Name, def.Name)
	}
	fn := c.functionSignature(d, def)
	for _, other := range def.MemberFunctions[fn.Name] {
		if sameParameters(other.ParameterTypes(), fn.ParameterTypes()) {
			c.errorf(d, "Conflicting overloads: %s", fn)
		}
	}

	overridden := c.overriddenFunction(def, fn)
	override := d.Modifiers.Has("override")
	switch {
	case overridden == nil && override:
		c.errorf(d, "'%s' overrides nothing", fn.Name)
	case overridden == nil:
		fn.SlotKey = c.newSlotKey(def, fn)
	case !override && !native:
		c.errorf(d, "'%s' hides member of supertype '%s' and needs 'override' modifier", fn.Name, overridden.Owner.Name)
	default:
		if !native && !overridden.IsOpen() {
			c.errorf(d, "'%s' in '%s' is final and cannot be overridden", fn.Name, overridden.Owner.Name)
		}
		fn.SlotKey = overridden.SlotKey
	}
	def.AddFunction(fn)
	return fn
}

func (c *Checker) newSlotKey(def *runtime.ClassDefinition, fn *runtime.FunctionDefinition) string {
	base := fmt.Sprintf("%s.%s/%d", def.Name, fn.Name, len(fn.Parameters))
	key := base
	for n := 2; ; n++ {
		taken := false
		for _, other := range def.MemberFunctions[fn.Name] {
			if other.SlotKey == key {
				taken = true
				break
			}
		}
		if !taken {
			return key
		}
		key = fmt.Sprintf("%s#%d", base, n)
	}
}

// overriddenFunction finds the inherited member fn would override: same name and
// the same parameter types once the supertype's arguments and the function type
// parameters are aligned.
func (c *Checker) overriddenFunction(def *runtime.ClassDefinition, fn *runtime.FunctionDefinition) *runtime.FunctionDefinition {
	supers := append([]*runtime.ClassDefinition{}, def.SuperInterfaces...)
	if def.SuperClass != nil {
		supers = append([]*runtime.ClassDefinition{def.SuperClass}, supers...)
	}
	for _, super := range supers {
		for _, g := range super.FindFunctions(fn.Name) {
			if len(g.TypeParameters) != len(fn.TypeParameters) {
				continue
			}
			s := c.ownerSubstitution(def.Type, g.Owner)
			for i, tp := range g.TypeParameters {
				s[tp.Key()] = fn.TypeParameters[i]
			}
			want := make([]types.Type, len(g.Parameters))
			for i, p := range g.Parameters {
				want[i] = types.Substitute(p.Type, s)
			}
			if sameParameters(want, fn.ParameterTypes()) {
				return g
			}
		}
	}
	return nil
}

func sameParameters(a, b []types.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !types.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// checkAbstractMembers rejects a concrete class that leaves abstract members of its
// own or of its supertypes without implementation.
func (c *Checker) checkAbstractMembers(ci *classInfo) {
	def := ci.def
	if def.IsAbstract() || ci.spec != nil {
		return
	}
	required := mapset.NewSet()
	implemented := mapset.NewSet()
	for slot, fn := range def.Slots() {
		if fn.IsAbstract() {
			required.Add(slot)
		} else {
			implemented.Add(slot)
		}
	}
	for name, p := range def.AllProperties() {
		if p.IsAbstract {
			required.Add("property " + name)
		} else {
			implemented.Add("property " + name)
		}
	}
	missing := required.Difference(implemented)
	if missing.Cardinality() == 0 {
		return
	}
	var names []string
	for _, m := range missing.ToSlice() {
		names = append(names, m.(string))
	}
	sort.Strings(names)
	if fn := def.Slots()[names[0]]; fn != nil {
		if fn.Owner == def {
			c.errorf(fn.Declaration, "Abstract function '%s' in non-abstract class '%s'", fn.Name, def.Name)
		}
		c.errorf(ci.decl, "Class '%s' is not abstract and does not implement abstract member '%s'", def.Name, fn.Name)
	}
	c.errorf(ci.decl, "Class '%s' is not abstract and does not implement abstract member '%s'", def.Name, names[0][len("property "):])
}

// --- Bodies ---

// checkClassBody checks constructor defaults, the superclass constructor call,
// initializers and member function bodies.
func (c *Checker) checkClassBody(ci *classInfo) {
	if ci.checked {
		return
	}
	ci.checked = true
	def := ci.def
	if def.PrimaryConstructor != nil {
		defaults := ci.scope.NewChild(def.Name, parser.ScopeConstructor)
		c.withScope(defaults, func() {
			for i, param := range def.PrimaryConstructor.Parameters {
				if dv := param.Declaration.DefaultValue; dv != nil {
					c.checkExpected(dv, c.parameterValueType(param))
				}
				defaults.DeclareProperty(ci.ctorInfos[i])
			}
		})
	}
	c.withScope(ci.ctorScope, func() {
		if st := def.SuperConstructorCall; st != nil {
			c.checkSuperConstructorCall(def, st)
		}
	})
	c.withScope(ci.initScope, func() {
		for _, st := range def.OrderedInitializers {
			switch st := st.(type) {
			case *parser.PropertyDeclarationNode:
				c.checkMemberInitializer(ci, def.MemberProperties[st.Name])
			case *parser.ClassInstanceInitializerNode:
				c.checkBlock(st.Body, nil, nil)
			}
		}
	})
	for _, name := range sortedFunctionNames(def) {
		for _, fn := range def.MemberFunctions[name] {
			c.checkFunctionBody(fn)
			c.checkOverrideReturnType(def, fn)
		}
	}
	for _, name := range sortedPropertyNames(def) {
		p := def.MemberProperties[name]
		if p.Declaration == nil {
			continue
		}
		if !p.IsAbstract && !p.Assigned {
			c.errorf(p.Declaration, "Property must be initialized or be abstract")
		}
		if p.Modifiers.Has("override") && p.Declaration.Type == nil {
			inherited := c.inheritedProperty(def, p.Name)
			want := types.Substitute(c.propertyType(inherited, p.Declaration), c.ownerSubstitution(def.Type, inherited.Owner))
			if !types.IsSubtype(c.propertyType(p, p.Declaration), want) {
				c.errorf(p.Declaration, "Type of '%s' is not a subtype of the overridden property", p.Name)
			}
		}
	}
}

func (c *Checker) checkOverrideReturnType(def *runtime.ClassDefinition, fn *runtime.FunctionDefinition) {
	if !fn.Modifiers.Has("override") {
		return
	}
	base := def.SuperClass
	var overridden *runtime.FunctionDefinition
	for _, super := range append([]*runtime.ClassDefinition{base}, def.SuperInterfaces...) {
		if super == nil {
			continue
		}
		for _, g := range super.FindFunctions(fn.Name) {
			if g.SlotKey == fn.SlotKey {
				overridden = g
			}
		}
	}
	if overridden == nil {
		return
	}
	s := c.ownerSubstitution(def.Type, overridden.Owner)
	for i, tp := range overridden.TypeParameters {
		s[tp.Key()] = fn.TypeParameters[i]
	}
	want := types.Substitute(c.returnType(overridden, fn.Declaration), s)
	if have := c.returnType(fn, fn.Declaration); !types.IsSubtype(have, want) {
		c.errorf(fn.Declaration, "Return type of '%s' is not a subtype of the return type of the overridden member", fn.Name)
	}
}

func (c *Checker) checkSuperConstructorCall(def *runtime.ClassDefinition, st *parser.SuperTypeNode) {
	ctor := def.SuperClass.PrimaryConstructor
	if ctor == nil {
		c.errorf(st, "%s does not have a constructor", def.SuperClass.Name)
	}
	cand := &candidate{fn: ctor, kind: runtime.CallConstructor, class: def.SuperClass, fixed: c.ownerSubstitution(def.SuperClassType, def.SuperClass)}
	args := c.callArguments(st.Arguments, []*candidate{cand})
	c.resolveCall(st, [][]*candidate{{cand}}, args, nil, nil)
}

// checkMemberInitializer checks a property initializer in the initializer scope,
// inferring the property type when it was not declared.
func (c *Checker) checkMemberInitializer(ci *classInfo, p *runtime.PropertyDefinition) {
	d := p.Declaration
	if ci.initChecked[d] {
		return
	}
	if ci.inferring[p] {
		c.errorf(d, "Type checking has run into a recursive problem for '%s': specify its type explicitly", p.Name)
	}
	ci.inferring[p] = true
	c.withScope(ci.initScope, func() {
		if p.Type == nil {
			p.Type = c.checkExpression(d.Initializer, nil)
		} else {
			c.checkExpected(d.Initializer, p.Type)
		}
	})
	ci.inferring[p] = false
	ci.initChecked[d] = true
}

// propertyType returns the type of a member property, inferring it from the
// initializer on first use.
func (c *Checker) propertyType(p *runtime.PropertyDefinition, at parser.Node) types.Type {
	if p.Type != nil {
		return p.Type
	}
	ci := c.classes[p.Owner]
	if ci == nil || p.Declaration == nil || p.Declaration.Initializer == nil {
		c.errorf(at, "Cannot infer the type of '%s'", p.Name)
	}
	c.checkMemberInitializer(ci, p)
	return p.Type
}

func sortedFunctionNames(def *runtime.ClassDefinition) []string {
	names := make([]string, 0, len(def.MemberFunctions))
	for name := range def.MemberFunctions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedPropertyNames(def *runtime.ClassDefinition) []string {
	names := make([]string, 0, len(def.MemberProperties))
	for name := range def.MemberProperties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
