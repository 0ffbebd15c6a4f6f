package inference

import (
	"github.com/jward/pyrite/internal/errs"
	"github.com/jward/pyrite/internal/nodes"
)

// inferSuper resolves super() and super(T, obj) to a proxy over the part of
// obj's MRO after T. The one-argument form is unbound and Uninferable.
func (e *Engine) inferSuper(n *nodes.Node, ic *Context) Result {
	if !e.calleeIsBuiltin(n, "super", ic) {
		return Declined()
	}

	var types, objs []Value
	switch args := n.CallArgs(); len(args) {
	case 0:
		fn := n.Scope()
		if fn == nil || fn.Kind() != nodes.FunctionDef {
			return Failed(errs.New(errs.ErrSuper, "super() used outside a method").At(n))
		}
		cls := fn.Scope()
		if cls == nil || cls.Kind() != nodes.ClassDef {
			return Failed(errs.New(errs.ErrSuper, "super() used outside a class").At(n))
		}
		params := fn.Args().Params()
		if len(params) == 0 || fn.FunctionType() == nodes.StaticMethod {
			return Failed(errs.New(errs.ErrSuper, "super(): no arguments").At(n))
		}
		types = []Value{cls}
		objs = e.values(params[0], ic)
	case 1:
		return Produced(Uninferable)
	case 2:
		types = e.values(args[0], ic)
		objs = e.values(args[1], ic)
	default:
		return Failed(errs.New(errs.ErrSuper, "super() takes at most 2 arguments, got %d", len(args)).At(n))
	}

	var out []Value
	for _, t := range types {
		for _, obj := range objs {
			v, err := e.superProxy(n, t, obj)
			if err != nil {
				return Failed(err)
			}
			out = append(out, v)
		}
	}
	return Produced(out...)
}

func (e *Engine) superProxy(site *nodes.Node, t, obj Value) (Value, error) {
	if IsUninferable(t) || IsUninferable(obj) {
		return Uninferable, nil
	}
	pointer, ok := asNode(t, nodes.ClassDef)
	if !ok {
		return nil, errs.New(errs.ErrSuperArgumentType, "super() argument 1 must be a type, not %s", t.PyType()).At(site)
	}

	var objClass *nodes.Node
	switch x := obj.(type) {
	case *Instance:
		if x.IsSuper() {
			return Uninferable, nil
		}
		objClass = x.Class
	case *nodes.Node:
		if x.Kind() == nodes.ClassDef {
			objClass = x
		}
	}
	if objClass == nil {
		return nil, errs.New(errs.ErrSuperArgumentType,
			"super(type, obj): obj must be an instance or subtype of type").At(site)
	}

	mro, err := e.resolver.Compute(objClass)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, c := range mro {
		if c == pointer {
			idx = i
			break
		}
	}
	switch {
	case idx < 0:
		return nil, errs.New(errs.ErrSuperArgumentType,
			"super(%s, obj): obj is not an instance or subtype of %s", pointer.Name, pointer.Name).At(site)
	case idx == len(mro)-1:
		return nil, errs.New(errs.ErrSuper, "no class after %s in the MRO of %s", pointer.Name, objClass.Name).At(site)
	}
	rest := mro[idx+1:]
	return &Instance{Class: rest[0], superMRO: rest, superSelf: obj}, nil
}

// superAttr looks name up along the proxy's remaining MRO and binds the
// result to the proxied object.
func (e *Engine) superAttr(proxy *Instance, name string, ic *Context) ([]Value, error) {
	switch name {
	case "__thisclass__":
		return []Value{proxy.Class}, nil
	case "__self__":
		return []Value{proxy.superSelf}, nil
	}
	owner, defs := findInMRO(proxy.superMRO, name)
	if owner == nil {
		return nil, notFound(proxy, name)
	}
	_, viaClass := asNode(proxy.superSelf, nodes.ClassDef)
	var out []Value
	for _, v := range e.definitions(defs, name, ic) {
		out = append(out, e.bindMember(v, owner, proxy.superSelf, viaClass, ic)...)
	}
	return out, nil
}
