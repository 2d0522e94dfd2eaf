package runtime

import (
	"kotlite/pkg/types"
)

// Bindings are the resolution cache the analyzer attaches to AST nodes. The
// evaluator trusts them and performs no name resolution of its own.

// LocalBinding refers to a property, parameter or function value stored in a scope
// under its transformed reference name.
type LocalBinding struct {
	RefName string
	Info    *PropertyInfo
}

func (b *LocalBinding) BindingName() string { return b.RefName }

// MemberPropertyBinding refers to a member property of a class instance. The
// receiver is the navigation receiver, or the implicit this.
type MemberPropertyBinding struct {
	Property     *PropertyDefinition
	ImplicitThis bool
}

func (b *MemberPropertyBinding) BindingName() string { return b.Property.BindingName() }

// ExtensionPropertyBinding refers to a native extension property.
type ExtensionPropertyBinding struct {
	Property     *PropertyDefinition
	ImplicitThis bool
}

func (b *ExtensionPropertyBinding) BindingName() string { return b.Property.BindingName() }

// GlobalPropertyBinding refers to a native global property.
type GlobalPropertyBinding struct {
	Property *PropertyDefinition
}

func (b *GlobalPropertyBinding) BindingName() string { return b.Property.BindingName() }

// CallKind selects how a call binding is executed.
type CallKind int

const (
	// CallFunction calls a script function through the closure stored under its
	// transformed name.
	CallFunction CallKind = iota
	// CallNative calls a native global or extension function.
	CallNative
	// CallMember dispatches through the receiver's class.
	CallMember
	// CallSuper calls a member without dynamic dispatch.
	CallSuper
	// CallExtension calls a script extension function with the receiver as this.
	CallExtension
	// CallConstructor creates an instance.
	CallConstructor
	// CallInvoke invokes a function-typed value.
	CallInvoke
)

var callKindNames = [...]string{"function", "native", "member", "super", "extension", "constructor", "invoke"}

func (k CallKind) String() string {
	if int(k) < len(callKindNames) {
		return callKindNames[k]
	}
	return "unknown"
}

// CallBinding resolves a call, an operator or an index access to a function.
type CallBinding struct {
	Kind     CallKind
	Function *FunctionDefinition
	Class    *ClassDefinition
	// ImplicitThis is set when the receiver is an implicit this rather than an
	// explicit navigation receiver.
	ImplicitThis bool
	// ReceiverType is the type the implicit receiver must have; it selects among
	// nested receivers.
	ReceiverType types.Type
	// ReturnType is the declared return type after substitution.
	ReturnType types.Type
}

func (b *CallBinding) BindingName() string {
	if b.Kind == CallConstructor && b.Class != nil {
		return b.Class.Name
	}
	if b.Function != nil {
		return b.Function.QualifiedName()
	}
	return b.Kind.String()
}
