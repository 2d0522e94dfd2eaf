package runtime

import (
	"fmt"
	"sort"
	"sync"

	"kotlite/pkg/parser"
	"kotlite/pkg/source"
)

// Module is a bundle of native classes, functions, properties and script preludes
// installed into an ExecutionEnvironment before the first compilation.
type Module interface {
	Name() string
	Register(b *ModuleBuilder) error
}

// NativeClassSpec is a registered native class before analysis.
type NativeClassSpec struct {
	Module      string
	Header      *parser.ClassDeclarationNode
	Constructor NativeFunction
	Methods     []*NativeFunctionSpec
	Properties  []*NativePropertySpec
}

// NativeFunctionSpec is a registered native function or method.
type NativeFunctionSpec struct {
	Module string
	Header *parser.FunctionDeclarationNode
	Impl   NativeFunction
}

// NativePropertySpec is a registered native property.
type NativePropertySpec struct {
	Module string
	Header *parser.PropertyDeclarationNode
	Getter NativeFunction
	Setter NativeFunction
}

// Prelude is script source contributed by a module. Its declarations are visible
// to every script compiled in the environment.
type Prelude struct {
	Module string
	Name   string
	Source *source.SourceFile
	// Script is the analyzed AST, set when the environment is prepared.
	Script *parser.ScriptNode
}

// ExecutionEnvironment holds everything a compilation or evaluation needs beyond the
// script itself. Registration completes before the environment is sealed; afterwards
// it is shared read-only.
type ExecutionEnvironment struct {
	mu      sync.Mutex
	sealed  bool
	modules []string

	classSpecs    []*NativeClassSpec
	functionSpecs []*NativeFunctionSpec
	propertySpecs []*NativePropertySpec
	preludes      []*Prelude

	prepared   bool
	global     *SymbolTable
	classes    map[string]*ClassDefinition
	functions  []*FunctionDefinition
	properties []*PropertyDefinition
}

// NewExecutionEnvironment creates an empty environment.
func NewExecutionEnvironment() *ExecutionEnvironment {
	return &ExecutionEnvironment{classes: map[string]*ClassDefinition{}}
}

// Install registers modules in order.
func (env *ExecutionEnvironment) Install(modules ...Module) error {
	env.mu.Lock()
	defer env.mu.Unlock()
	if env.sealed {
		return fmt.Errorf("cannot install modules: environment is sealed")
	}
	for _, m := range modules {
		for _, name := range env.modules {
			if name == m.Name() {
				return fmt.Errorf("module %q is already installed", name)
			}
		}
		b := &ModuleBuilder{module: m.Name()}
		if err := m.Register(b); err != nil {
			return fmt.Errorf("module %q: %w", m.Name(), err)
		}
		if err := b.Err(); err != nil {
			return fmt.Errorf("module %q: %w", m.Name(), err)
		}
		env.modules = append(env.modules, m.Name())
		env.classSpecs = append(env.classSpecs, b.classes...)
		env.functionSpecs = append(env.functionSpecs, b.functions...)
		env.propertySpecs = append(env.propertySpecs, b.properties...)
		env.preludes = append(env.preludes, b.preludes...)
	}
	return nil
}

// Seal forbids further registration. It is idempotent.
func (env *ExecutionEnvironment) Seal() {
	env.mu.Lock()
	env.sealed = true
	env.mu.Unlock()
}

// IsSealed reports whether registration is closed.
func (env *ExecutionEnvironment) IsSealed() bool {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.sealed
}

// Modules lists the installed module names.
func (env *ExecutionEnvironment) Modules() []string { return append([]string(nil), env.modules...) }

func (env *ExecutionEnvironment) ClassSpecs() []*NativeClassSpec       { return env.classSpecs }
func (env *ExecutionEnvironment) FunctionSpecs() []*NativeFunctionSpec { return env.functionSpecs }
func (env *ExecutionEnvironment) PropertySpecs() []*NativePropertySpec { return env.propertySpecs }
func (env *ExecutionEnvironment) Preludes() []*Prelude                 { return env.preludes }

// SetPrepared stores the analyzed environment: the global scope holding native and
// prelude declarations, and the definitions for read-only walks.
func (env *ExecutionEnvironment) SetPrepared(global *SymbolTable, functions []*FunctionDefinition, properties []*PropertyDefinition) {
	env.global = global
	env.functions = functions
	env.properties = properties
	for name, c := range global.Classes() {
		env.classes[name] = c
	}
	env.prepared = true
}

// IsPrepared reports whether the analyzer has prepared the environment.
func (env *ExecutionEnvironment) IsPrepared() bool { return env.prepared }

// Global is the analyzer's root scope.
func (env *ExecutionEnvironment) Global() *SymbolTable { return env.global }

// Class looks up a native or prelude class by name.
func (env *ExecutionEnvironment) Class(name string) *ClassDefinition { return env.classes[name] }

// Classes returns the native and prelude classes sorted by name.
func (env *ExecutionEnvironment) Classes() []*ClassDefinition {
	out := make([]*ClassDefinition, 0, len(env.classes))
	for _, c := range env.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Functions returns the native global and extension functions.
func (env *ExecutionEnvironment) Functions() []*FunctionDefinition { return env.functions }

// Properties returns the native global and extension properties.
func (env *ExecutionEnvironment) Properties() []*PropertyDefinition { return env.properties }

// --- Module builder ---

// ModuleBuilder collects one module's registrations. Signatures are header strings
// in the declaration grammar; they are parsed immediately and resolved when the
// environment is prepared.
type ModuleBuilder struct {
	module     string
	errs       []error
	classes    []*NativeClassSpec
	functions  []*NativeFunctionSpec
	properties []*NativePropertySpec
	preludes   []*Prelude
}

// NewModuleBuilder creates a builder for a module, for use outside Install.
func NewModuleBuilder(module string) *ModuleBuilder { return &ModuleBuilder{module: module} }

// ClassBuilder adds members to a native class.
type ClassBuilder struct {
	b    *ModuleBuilder
	spec *NativeClassSpec
}

func (b *ModuleBuilder) header(content string) parser.Statement {
	decl, err := parser.ParseHeader(source.NewHeaderSource(b.module, content))
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("header %q: %w", content, err))
		return nil
	}
	return decl
}

// Class declares a native class or interface. ctor may be nil for interfaces and
// classes without script-visible constructors.
func (b *ModuleBuilder) Class(header string, ctor NativeFunction) *ClassBuilder {
	spec := &NativeClassSpec{Module: b.module, Constructor: ctor}
	cb := &ClassBuilder{b: b, spec: spec}
	decl, ok := b.header(header).(*parser.ClassDeclarationNode)
	if !ok {
		if len(b.errs) == 0 {
			b.errs = append(b.errs, fmt.Errorf("header %q is not a class header", header))
		}
		return cb
	}
	spec.Header = decl
	b.classes = append(b.classes, spec)
	return cb
}

// Method adds a member function. impl may be nil for abstract interface members.
func (cb *ClassBuilder) Method(header string, impl NativeFunction) *ClassBuilder {
	decl, ok := cb.b.header(header).(*parser.FunctionDeclarationNode)
	if !ok {
		cb.b.errs = append(cb.b.errs, fmt.Errorf("header %q is not a function header", header))
		return cb
	}
	cb.spec.Methods = append(cb.spec.Methods, &NativeFunctionSpec{Module: cb.b.module, Header: decl, Impl: impl})
	return cb
}

// Property adds a member property backed by accessors. setter is nil for val.
func (cb *ClassBuilder) Property(header string, getter, setter NativeFunction) *ClassBuilder {
	decl, ok := cb.b.header(header).(*parser.PropertyDeclarationNode)
	if !ok {
		cb.b.errs = append(cb.b.errs, fmt.Errorf("header %q is not a property header", header))
		return cb
	}
	cb.spec.Properties = append(cb.spec.Properties, &NativePropertySpec{Module: cb.b.module, Header: decl, Getter: getter, Setter: setter})
	return cb
}

// Function declares a global function, or an extension function when the header has
// a receiver.
func (b *ModuleBuilder) Function(header string, impl NativeFunction) *ModuleBuilder {
	decl, ok := b.header(header).(*parser.FunctionDeclarationNode)
	if !ok {
		b.errs = append(b.errs, fmt.Errorf("header %q is not a function header", header))
		return b
	}
	if impl == nil {
		b.errs = append(b.errs, fmt.Errorf("function %q has no implementation", decl.Name))
		return b
	}
	b.functions = append(b.functions, &NativeFunctionSpec{Module: b.module, Header: decl, Impl: impl})
	return b
}

// Property declares a global property, or an extension property when the header has
// a receiver.
func (b *ModuleBuilder) Property(header string, getter, setter NativeFunction) *ModuleBuilder {
	decl, ok := b.header(header).(*parser.PropertyDeclarationNode)
	if !ok {
		b.errs = append(b.errs, fmt.Errorf("header %q is not a property header", header))
		return b
	}
	if getter == nil {
		b.errs = append(b.errs, fmt.Errorf("property %q has no getter", decl.Name))
		return b
	}
	if decl.IsMutable != (setter != nil) {
		b.errs = append(b.errs, fmt.Errorf("property %q: var needs a setter and val must not have one", decl.Name))
		return b
	}
	b.properties = append(b.properties, &NativePropertySpec{Module: b.module, Header: decl, Getter: getter, Setter: setter})
	return b
}

// Prelude contributes script declarations written in the language itself.
func (b *ModuleBuilder) Prelude(name, content string) *ModuleBuilder {
	src := source.NewSourceFile(b.module+"/"+name, "", content)
	b.preludes = append(b.preludes, &Prelude{Module: b.module, Name: name, Source: src})
	return b
}

// Err returns the first registration error.
func (b *ModuleBuilder) Err() error {
	if len(b.errs) == 0 {
		return nil
	}
	return b.errs[0]
}
