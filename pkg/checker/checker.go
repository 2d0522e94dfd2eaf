// Package checker is the static analyzer. It resolves every name to a declaration,
// infers and checks types, enforces mutability and class rules, and annotates the
// AST with the bindings and transformed names the interpreter runs on.
package checker

import (
	"fmt"
	"sort"

	"kotlite/pkg/errors"
	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
	"kotlite/pkg/types"
)

// preludeTag marks transformed names declared by module preludes so they never
// collide with names of user scripts.
const preludeTag = "std"

// Checker holds the state of one analysis run.
type Checker struct {
	env   *runtime.ExecutionEnvironment
	scope *runtime.SymbolTable
	// root is the scope top-level declarations go into.
	root    *runtime.SymbolTable
	tag     string
	counter int

	classes   map[*runtime.ClassDefinition]*classInfo
	functions map[*runtime.FunctionDefinition]*functionInfo
	// extensionProperties indexes native extension properties by name.
	extensionProperties map[string][]*runtime.PropertyDefinition
	builtins            map[string]*types.ClassType
}

type functionInfo struct {
	// scope holds the type parameters; the body scope is created below it.
	scope     *runtime.SymbolTable
	checked   bool
	inferring bool
}

// bailout carries the first violation up to the entry point.
type bailout struct {
	err error
}

func newChecker(env *runtime.ExecutionEnvironment, root *runtime.SymbolTable, tag string) *Checker {
	c := &Checker{
		env:                 env,
		scope:               root,
		root:                root,
		tag:                 tag,
		classes:             map[*runtime.ClassDefinition]*classInfo{},
		functions:           map[*runtime.FunctionDefinition]*functionInfo{},
		extensionProperties: map[string][]*runtime.PropertyDefinition{},
		builtins:            map[string]*types.ClassType{},
	}
	for _, p := range env.Properties() {
		if p.Receiver != nil {
			c.extensionProperties[p.Name] = append(c.extensionProperties[p.Name], p)
		}
	}
	return c
}

func catch(err *error) {
	if r := recover(); r != nil {
		b, ok := r.(bailout)
		if !ok {
			panic(r)
		}
		*err = b.err
	}
}

// Prepare analyzes the native declarations and preludes of an environment and seals
// it. It runs once; later calls return immediately.
func Prepare(env *runtime.ExecutionEnvironment) (err error) {
	if env.IsPrepared() {
		return nil
	}
	env.Seal()
	global := runtime.NewSymbolTable("<global>", parser.ScopeScript)
	c := newChecker(env, global, preludeTag)
	defer catch(&err)
	c.prepare()
	return nil
}

// Analyze checks a parsed script against a prepared environment and annotates it.
// The first violation is returned; the AST is then only partially annotated.
func Analyze(script *parser.ScriptNode, env *runtime.ExecutionEnvironment) (err error) {
	if err := Prepare(env); err != nil {
		return err
	}
	root := env.Global().NewChild("<script>", parser.ScopeScript)
	c := newChecker(env, root, "")
	defer catch(&err)
	c.checkStatements(script.Statements, nil)
	return nil
}

func (c *Checker) prepare() {
	var natives []*classInfo
	for _, spec := range c.env.ClassSpecs() {
		h := spec.Header
		def := runtime.NewClassDefinition(h.Name, h.Modifiers)
		def.IsNative = true
		def.IsInterface = h.IsInterface
		def.Declaration = h
		def.NativeConstructor = spec.Constructor
		h.Definition = def
		if !c.scope.DeclareClass(def) {
			c.errorf(h, "Redeclaration: class %s", h.Name)
		}
		natives = append(natives, &classInfo{def: def, decl: h, spec: spec})
	}
	if c.scope.FindClass(types.AnyName) == nil {
		c.fail(fmt.Errorf("no module declares class %s", types.AnyName))
	}
	c.declareClasses(natives)

	var functions []*runtime.FunctionDefinition
	for _, spec := range c.env.FunctionSpecs() {
		fn := c.functionSignature(spec.Header, nil)
		fn.Native = spec.Impl
		c.scope.DeclareFunction(fn)
		functions = append(functions, fn)
	}
	var properties []*runtime.PropertyDefinition
	for _, spec := range c.env.PropertySpecs() {
		p := c.nativeProperty(spec)
		if p.Receiver != nil {
			c.extensionProperties[p.Name] = append(c.extensionProperties[p.Name], p)
		} else if !c.scope.DeclareProperty(&runtime.PropertyInfo{
			Name: p.Name, TransformedName: p.Name, Type: p.Type, IsMutable: p.IsMutable,
			Assigned: true, Kind: runtime.GlobalNativeProperty, Definition: p,
		}) {
			c.errorf(spec.Header, "Conflicting declarations: %s", p)
		}
		properties = append(properties, p)
	}

	for _, prelude := range c.env.Preludes() {
		script, err := parser.ParseSource(prelude.Source)
		if err != nil {
			c.fail(err)
		}
		c.checkStatements(script.Statements, nil)
		prelude.Script = script
	}
	c.env.SetPrepared(c.scope, functions, properties)
}

// nativeProperty builds the definition of a registered global or extension property.
func (c *Checker) nativeProperty(spec *runtime.NativePropertySpec) *runtime.PropertyDefinition {
	h := spec.Header
	p := &runtime.PropertyDefinition{
		Name: h.Name, IsMutable: h.IsMutable, Modifiers: h.Modifiers,
		Getter: spec.Getter, Setter: spec.Setter, Declaration: h, Assigned: true,
	}
	c.withScope(c.scope.NewChild(h.Name, parser.ScopeBlock), func() {
		p.TypeParameters = c.declareTypeParameters(c.newRefName(h.Name), h.TypeParameters)
		if h.Receiver != nil {
			p.Receiver = c.resolveType(h.Receiver)
		}
		if h.Type == nil {
			c.errorf(h, "Native property %s needs a type", h.Name)
		}
		p.Type = c.resolveType(h.Type)
	})
	return p
}

// --- Errors ---

func (c *Checker) fail(err error) {
	panic(bailout{err: err})
}

func (c *Checker) semantic(n parser.Node, format string, args ...interface{}) *errors.SemanticError {
	return &errors.SemanticError{Position: n.Pos(), Msg: fmt.Sprintf(format, args...)}
}

func (c *Checker) errorf(n parser.Node, format string, args ...interface{}) {
	c.fail(c.semantic(n, format, args...))
}

func (c *Checker) mismatch(n parser.Node, expected, actual types.Type) {
	c.fail(errors.NewTypeMismatch(n.Pos(), typeString(expected), typeString(actual)))
}

func typeString(t types.Type) string {
	if t == nil {
		return "<unknown>"
	}
	return t.String()
}

// --- Scopes and names ---

func (c *Checker) withScope(s *runtime.SymbolTable, fn func()) {
	saved := c.scope
	c.scope = s
	defer func() { c.scope = saved }()
	fn()
}

// newRefName returns a transformed reference name unique within the analysis run.
func (c *Checker) newRefName(name string) string {
	c.counter++
	return fmt.Sprintf("%s/%s%d", name, c.tag, c.counter)
}

// --- Builtin types ---

func (c *Checker) builtin(name string) *types.ClassType {
	if t, ok := c.builtins[name]; ok {
		return t
	}
	class := c.scope.FindClass(name)
	if class == nil {
		c.fail(fmt.Errorf("class %s is not available: is the core module installed?", name))
	}
	c.builtins[name] = class.Type
	return class.Type
}

func (c *Checker) classDef(name string) *runtime.ClassDefinition {
	return c.builtin(name).Class.(*runtime.ClassDefinition)
}

func (c *Checker) anyType() types.Type { return c.builtin(types.AnyName) }
func (c *Checker) nullableAny() types.Type { return c.builtin(types.AnyName).WithNullable(true) }
func (c *Checker) unitType() types.Type { return c.builtin(types.UnitName) }
func (c *Checker) nothingType() types.Type { return c.builtin(types.NothingName) }
func (c *Checker) booleanType() types.Type { return c.builtin(types.BooleanName) }
func (c *Checker) intType() types.Type { return c.builtin(types.IntName) }
func (c *Checker) stringType() types.Type { return c.builtin(types.StringName) }
func (c *Checker) throwableType() types.Type { return c.builtin("Throwable") }

// listOf applies List to an element type; vararg parameters are lists inside
// function bodies.
func (c *Checker) listOf(elem types.Type) types.Type {
	return types.NewClassType(c.classDef(runtime.ListClass), elem)
}

// sortedKeys orders substitution keys for deterministic diagnostics.
func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
