package inference

import (
	"errors"

	"github.com/jward/pyrite/internal/errs"
	"github.com/jward/pyrite/internal/nodes"
)

// inferAttribute infers `expr.name` on every value of expr. Owners that
// lack the attribute are skipped; the lookup fails only when none has it.
func (e *Engine) inferAttribute(n *nodes.Node, ic *Context) Result {
	switch n.Ctx {
	case nodes.Store:
		return e.inferAssigned(n, ic)
	case nodes.Del:
		return Produced()
	}

	var out []Value
	var lastErr error
	for _, owner := range e.values(n.Value(), ic) {
		if IsUninferable(owner) {
			out = append(out, Uninferable)
			continue
		}
		vals, err := e.getAttr(owner, n.Name, ic)
		if err != nil {
			if errs.IsStructural(err) {
				return Failed(err)
			}
			lastErr = err
			continue
		}
		out = append(out, vals...)
	}
	if len(out) == 0 && lastErr != nil {
		var ee *errs.Error
		if errors.As(lastErr, &ee) && ee.Node == "" {
			ee.At(n)
		}
		return Failed(lastErr)
	}
	return Produced(out...)
}

func notFound(owner Value, name string) error {
	return errs.New(errs.ErrNotFound, "%v has no attribute %q", owner, name)
}

// getAttr returns the values of owner.name.
func (e *Engine) getAttr(owner Value, name string, ic *Context) ([]Value, error) {
	switch x := owner.(type) {
	case *Instance:
		if x.IsSuper() {
			return e.superAttr(x, name, ic)
		}
		return e.instanceAttr(x, name, ic)
	case *BoundMethod:
		switch name {
		case "__self__":
			return []Value{x.Receiver}, nil
		case "__func__":
			return []Value{x.Func}, nil
		}
		return e.functionAttr(x.Func, owner, name, ic)
	case *UnboundMethod:
		return e.functionAttr(x.Func, owner, name, ic)
	case *nodes.Node:
		switch x.Kind() {
		case nodes.Module:
			return e.moduleAttr(x, name, ic, map[*nodes.Node]bool{})
		case nodes.ClassDef:
			return e.classAttr(x, name, ic)
		case nodes.FunctionDef, nodes.Lambda:
			return e.functionAttr(x, owner, name, ic)
		case nodes.Const, nodes.JoinedStr, nodes.List, nodes.Tuple, nodes.Set, nodes.Dict:
			if name == "__class__" {
				if cls := e.classOf(x); cls != nil {
					return []Value{cls}, nil
				}
			}
			if vals, ok, err := e.memberAttr(e.classOf(x), owner, name, ic); ok || err != nil {
				return vals, err
			}
		}
	}
	if IsUninferable(owner) {
		return []Value{Uninferable}, nil
	}
	return nil, notFound(owner, name)
}

// moduleAttr resolves name in mod: its bindings, a submodule, a module
// dunder, or a name re-exported by a wildcard import.
func (e *Engine) moduleAttr(mod *nodes.Node, name string, ic *Context, seen map[*nodes.Node]bool) ([]Value, error) {
	if defs := mod.Bindings(name); len(defs) > 0 {
		var out []Value
		for _, d := range defs {
			out = append(out, e.inferDefinition(d, name, ic.detached())...)
		}
		return out, nil
	}
	if v, ok := moduleDunder(mod, name); ok {
		return []Value{v}, nil
	}
	if e.loader != nil && mod.Tree().Name != "" {
		if sub, err := e.loader.Import(mod.Tree().Name + "." + name); err == nil {
			return []Value{sub}, nil
		}
	}
	if vals, ok := e.wildcardLookup(mod, name, ic, seen); ok {
		return vals, nil
	}
	return nil, notFound(mod, name)
}

// wildcardLookup resolves name through the `from m import *` statements of
// mod. Private names are not re-exported.
func (e *Engine) wildcardLookup(mod *nodes.Node, name string, ic *Context, seen map[*nodes.Node]bool) ([]Value, bool) {
	if seen[mod] || len(name) > 0 && name[0] == '_' {
		return nil, false
	}
	seen[mod] = true
	for _, stmt := range mod.Body() {
		if stmt.Kind() != nodes.ImportFrom || len(stmt.Aliases) != 1 || stmt.Aliases[0].Name != "*" {
			continue
		}
		src, err := e.importModule(absoluteModule(mod.Tree(), stmt.Level, stmt.Name))
		if err != nil {
			continue
		}
		if vals, err := e.moduleAttr(src, name, ic, seen); err == nil {
			return vals, true
		}
	}
	return nil, false
}

// classAttr looks name up on a class: its MRO, then attributes every class
// gets from its metaclass.
func (e *Engine) classAttr(cls *nodes.Node, name string, ic *Context) ([]Value, error) {
	mro, err := e.resolver.Compute(cls)
	if err != nil {
		return nil, err
	}
	for _, c := range mro {
		if defs := c.Bindings(name); len(defs) > 0 {
			var out []Value
			for _, v := range e.definitions(defs, name, ic) {
				out = append(out, e.bindMember(v, c, cls, true, ic)...)
			}
			return out, nil
		}
	}

	switch name {
	case "__name__":
		return []Value{nodes.NewConst(cls.Name)}, nil
	case "__qualname__":
		return []Value{nodes.NewConst(cls.QualName())}, nil
	case "__module__":
		return []Value{nodes.NewConst(cls.Tree().Name)}, nil
	case "__doc__":
		return []Value{nodes.NewConst(nil)}, nil
	case "__mro__":
		return []Value{nodes.NewSequence(nodes.Tuple, mro)}, nil
	case "__class__":
		if t := e.builtinClass("type"); t != nil {
			return []Value{t}, nil
		}
	}
	if vals, ok, err := e.memberAttr(e.builtinClass("type"), cls, name, ic); ok || err != nil {
		return vals, err
	}
	return nil, notFound(cls, name)
}

// instanceAttr looks name up on an instance: properties, the instance
// attributes assigned in methods, then class members bound to inst.
func (e *Engine) instanceAttr(inst *Instance, name string, ic *Context) ([]Value, error) {
	mro, err := e.resolver.Compute(inst.Class)
	if err != nil {
		return nil, err
	}
	owner, defs := findInMRO(mro, name)
	var members []Value
	if owner != nil {
		members = e.definitions(defs, name, ic)
		for _, v := range members {
			if fn, ok := asNode(v, nodes.FunctionDef); ok && fn.FunctionType() == nodes.PropertyMethod {
				return e.bindMember(v, owner, inst, false, ic), nil
			}
		}
	}

	for _, c := range mro {
		if attrs := c.InstanceAttrNodes(name); len(attrs) > 0 {
			var out []Value
			for _, a := range attrs {
				out = append(out, e.values(a, ic.detached())...)
			}
			return out, nil
		}
	}

	if owner != nil {
		var out []Value
		for _, v := range members {
			out = append(out, e.bindMember(v, owner, inst, false, ic)...)
		}
		return out, nil
	}

	switch name {
	case "__class__":
		return []Value{inst.Class}, nil
	case "__dict__":
		return e.instanceOf("dict"), nil
	}
	if getattr, ok, err := e.special(inst, "__getattr__", ic); err == nil && ok {
		var out []Value
		for _, m := range getattr {
			out = append(out, e.callValue(m, &CallContext{ArgValues: [][]Value{{nodes.NewConst(name)}}}, ic)...)
		}
		return out, nil
	}
	return nil, notFound(inst, name)
}

// memberAttr looks name up in the MRO of cls and binds what it finds to
// receiver. ok is false when no class in the MRO defines name.
func (e *Engine) memberAttr(cls *nodes.Node, receiver Value, name string, ic *Context) ([]Value, bool, error) {
	if cls == nil {
		return nil, false, nil
	}
	mro, err := e.resolver.Compute(cls)
	if err != nil {
		return nil, false, err
	}
	owner, defs := findInMRO(mro, name)
	if owner == nil {
		return nil, false, nil
	}
	var out []Value
	for _, v := range e.definitions(defs, name, ic) {
		out = append(out, e.bindMember(v, owner, receiver, false, ic)...)
	}
	return out, true, nil
}

// special looks up a dunder on the type of v, skipping the instance.
func (e *Engine) special(v Value, name string, ic *Context) ([]Value, bool, error) {
	cls := e.classOf(v)
	if cls == nil {
		return nil, false, nil
	}
	return e.memberAttr(cls, v, name, ic)
}

func (e *Engine) functionAttr(fn *nodes.Node, owner Value, name string, ic *Context) ([]Value, error) {
	switch name {
	case "__name__":
		return []Value{nodes.NewConst(fn.Name)}, nil
	case "__qualname__":
		return []Value{nodes.NewConst(fn.QualName())}, nil
	case "__module__":
		return []Value{nodes.NewConst(fn.Tree().Name)}, nil
	case "__doc__":
		return []Value{nodes.NewConst(nil)}, nil
	}
	if vals, ok, err := e.memberAttr(e.builtinClass("function"), owner, name, ic); ok || err != nil {
		return vals, err
	}
	return nil, notFound(owner, name)
}

func findInMRO(mro []*nodes.Node, name string) (*nodes.Node, []*nodes.Node) {
	for _, c := range mro {
		if defs := c.Bindings(name); len(defs) > 0 {
			return c, defs
		}
	}
	return nil, nil
}

// definitions infers class-body bindings of name.
func (e *Engine) definitions(defs []*nodes.Node, name string, ic *Context) []Value {
	var out []Value
	for _, d := range defs {
		out = append(out, e.inferDefinition(d, name, ic.detached())...)
	}
	return out
}

func isMethod(fn *nodes.Node) bool {
	if fn.Kind() == nodes.Lambda {
		s := fn.Scope()
		return s != nil && s.Kind() == nodes.ClassDef
	}
	return fn.FunctionType() == nodes.Method
}

// bindMember adapts a member defined on owner to how it was fetched. With
// viaClass, receiver is the class the lookup started from; otherwise it is
// the object the member is bound to.
func (e *Engine) bindMember(v Value, owner *nodes.Node, receiver Value, viaClass bool, ic *Context) []Value {
	fn, ok := asNode(v, nodes.FunctionDef, nodes.Lambda)
	if !ok {
		return []Value{v}
	}
	switch {
	case fn.FunctionType() == nodes.StaticMethod:
		return []Value{fn}
	case fn.FunctionType() == nodes.ClassMethod:
		cls, isClass := asNode(receiver, nodes.ClassDef)
		if !viaClass || !isClass {
			cls = e.classOf(receiver)
		}
		if cls == nil {
			return []Value{Uninferable}
		}
		return []Value{&BoundMethod{Func: fn, Receiver: cls}}
	case fn.FunctionType() == nodes.PropertyMethod:
		if viaClass {
			return e.instanceOf("property")
		}
		return e.callFunction(fn, &CallContext{Receiver: receiver}, ic)
	case isMethod(fn):
		if viaClass {
			return []Value{&UnboundMethod{Func: fn, Class: owner}}
		}
		return []Value{&BoundMethod{Func: fn, Receiver: receiver}}
	}
	return []Value{fn}
}
