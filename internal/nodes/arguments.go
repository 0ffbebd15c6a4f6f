package nodes

import "github.com/jward/pyrite/internal/errs"

// ParamKind classifies a function parameter.
type ParamKind uint8

const (
	ParamPositional ParamKind = iota
	ParamVararg
	ParamKwOnly
	ParamKwarg
)

// Params returns the positional parameters of an Arguments node.
func (n *Node) Params() []*Node { return n.List(ListParams) }

// KwOnly returns the keyword-only parameters of an Arguments node.
func (n *Node) KwOnly() []*Node { return n.List(ListKwOnly) }

// Vararg returns the *args parameter, or nil.
func (n *Node) Vararg() *Node { return n.Slot(SlotVararg) }

// Kwarg returns the **kwargs parameter, or nil.
func (n *Node) Kwarg() *Node { return n.Slot(SlotKwarg) }

// FindParam locates the parameter called name in an Arguments node.
func (n *Node) FindParam(name string) (*Node, ParamKind, bool) {
	for _, p := range n.Params() {
		if p.Name == name {
			return p, ParamPositional, true
		}
	}
	if v := n.Vararg(); v != nil && v.Name == name {
		return v, ParamVararg, true
	}
	for _, p := range n.KwOnly() {
		if p.Name == name {
			return p, ParamKwOnly, true
		}
	}
	if k := n.Kwarg(); k != nil && k.Name == name {
		return k, ParamKwarg, true
	}
	return nil, 0, false
}

// DefaultValue returns the default expression of the named parameter.
// Defaults align with the trailing positional parameters. Parameters
// without a default fail with errs.ErrNoDefault.
func (n *Node) DefaultValue(name string) (*Node, error) {
	params := n.Params()
	defaults := n.List(ListDefaults)
	offset := len(params) - len(defaults)
	for i, p := range params {
		if p.Name == name && i >= offset {
			return defaults[i-offset], nil
		}
	}
	kwDefaults := n.List(ListKwDefaults)
	for i, p := range n.KwOnly() {
		if p.Name == name && i < len(kwDefaults) && kwDefaults[i] != nil {
			return kwDefaults[i], nil
		}
	}
	return nil, errs.New(errs.ErrNoDefault, "parameter %q has no default", name).At(n)
}

// DecoratorNames returns the dotted source names of a definition's
// decorators (`property`, `abc.abstractmethod`, `x.setter`). Decorators
// that are not plain names or attribute chains are skipped.
func (n *Node) DecoratorNames() []string {
	var out []string
	for _, d := range n.Decorators() {
		if d.kind == Call {
			d = d.Func()
		}
		if name, ok := DottedName(d); ok {
			out = append(out, name)
		}
	}
	return out
}

// DottedName renders a Name or Attribute chain as "a.b.c".
func DottedName(n *Node) (string, bool) {
	switch {
	case n == nil:
		return "", false
	case n.kind == Name:
		return n.Name, true
	case n.kind == Attribute:
		base, ok := DottedName(n.Value())
		if !ok {
			return "", false
		}
		return base + "." + n.Name, true
	}
	return "", false
}

// FunctionType is how a function behaves when fetched from a class.
type FunctionType uint8

const (
	PlainFunction FunctionType = iota
	Method
	StaticMethod
	ClassMethod
	PropertyMethod
)

// FunctionType classifies a FunctionDef by its placement and decorators.
func (n *Node) FunctionType() FunctionType {
	if n.kind != FunctionDef {
		return PlainFunction
	}
	for _, d := range n.DecoratorNames() {
		switch d {
		case "staticmethod":
			return StaticMethod
		case "classmethod":
			return ClassMethod
		case "property", "functools.cached_property", "cached_property", "abc.abstractproperty":
			return PropertyMethod
		}
	}
	if s := n.Scope(); s != nil && s.kind == ClassDef {
		switch n.Name {
		case "__new__":
			return StaticMethod
		case "__init_subclass__", "__class_getitem__":
			return ClassMethod
		}
		return Method
	}
	return PlainFunction
}
