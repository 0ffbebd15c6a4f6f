package inference

import (
	"unicode/utf8"

	"github.com/jward/pyrite/internal/nodes"
)

// callTo matches calls spelled `name(...)`. The handlers still check that
// the callee is the builtin and decline otherwise.
func callTo(name string) Predicate {
	return func(n *nodes.Node) bool {
		f := n.Func()
		return f != nil && f.Kind() == nodes.Name && f.Name == name
	}
}

func (e *Engine) calleeIsBuiltin(call *nodes.Node, name string, ic *Context) bool {
	vals := e.values(call.Func(), ic)
	if len(vals) != 1 {
		return false
	}
	def, ok := asNode(vals[0], nodes.ClassDef, nodes.FunctionDef)
	return ok && e.isBuiltin(def, name)
}

func (e *Engine) registerBuiltinTips() {
	tips := []struct {
		name    string
		handler Handler
	}{
		{"super", e.inferSuper},
		{"type", e.inferTypeCall},
		{"getattr", e.inferGetattrCall},
		{"isinstance", e.inferIsinstanceCall},
		{"len", e.inferLenCall},
	}
	for _, t := range tips {
		_ = e.registry.Register(nodes.Call, callTo(t.name), t.handler, WithTipName("builtins."+t.name))
	}
}

// inferTypeCall infers type(x) as the class of x.
func (e *Engine) inferTypeCall(n *nodes.Node, ic *Context) Result {
	args := n.CallArgs()
	if len(args) != 1 || len(n.Keywords()) > 0 || !e.calleeIsBuiltin(n, "type", ic) {
		return Declined()
	}
	var out []Value
	for _, v := range e.values(args[0], ic) {
		if cls := e.classOf(v); cls != nil {
			out = append(out, cls)
		} else {
			out = append(out, Uninferable)
		}
	}
	return Produced(out...)
}

// inferGetattrCall infers getattr(obj, "name"[, default]).
func (e *Engine) inferGetattrCall(n *nodes.Node, ic *Context) Result {
	args := n.CallArgs()
	if len(args) < 2 || len(args) > 3 || !e.calleeIsBuiltin(n, "getattr", ic) {
		return Declined()
	}
	names := e.values(args[1], ic)
	if len(names) != 1 {
		return Produced(Uninferable)
	}
	name, ok := constValueOf[string](names[0])
	if !ok {
		return Produced(Uninferable)
	}

	var out []Value
	for _, owner := range e.values(args[0], ic) {
		if IsUninferable(owner) {
			out = append(out, Uninferable)
			continue
		}
		vals, err := e.getAttr(owner, name, ic)
		switch {
		case err == nil:
			out = append(out, vals...)
		case len(args) == 3:
			out = append(out, e.values(args[2], ic)...)
		default:
			out = append(out, Uninferable)
		}
	}
	return Produced(out...)
}

// inferIsinstanceCall folds isinstance(obj, cls) when the class of obj and
// the classes tested against are known.
func (e *Engine) inferIsinstanceCall(n *nodes.Node, ic *Context) Result {
	args := n.CallArgs()
	if len(args) != 2 || !e.calleeIsBuiltin(n, "isinstance", ic) {
		return Declined()
	}
	var classes []*nodes.Node
	for _, v := range e.values(args[1], ic) {
		if c, ok := asNode(v, nodes.ClassDef); ok {
			classes = append(classes, c)
			continue
		}
		seq, ok := asNode(v, nodes.Tuple)
		if !ok {
			return Produced(Uninferable)
		}
		for _, el := range seq.Elts() {
			for _, ev := range e.values(el, ic) {
				c, ok := asNode(ev, nodes.ClassDef)
				if !ok {
					return Produced(Uninferable)
				}
				classes = append(classes, c)
			}
		}
	}

	var out []Value
	for _, obj := range e.values(args[0], ic) {
		cls := e.classOf(obj)
		if cls == nil {
			out = append(out, Uninferable)
			continue
		}
		match := false
		for _, c := range classes {
			if e.isSubclass(cls, c) {
				match = true
				break
			}
		}
		out = append(out, nodes.NewConst(match))
	}
	return Produced(out...)
}

// inferLenCall folds len() over literals and calls __len__ on instances.
func (e *Engine) inferLenCall(n *nodes.Node, ic *Context) Result {
	args := n.CallArgs()
	if len(args) != 1 || !e.calleeIsBuiltin(n, "len", ic) {
		return Declined()
	}
	var out []Value
	for _, v := range e.values(args[0], ic) {
		out = append(out, e.length(v, ic)...)
	}
	return Produced(out...)
}

func (e *Engine) length(v Value, ic *Context) []Value {
	switch x := v.(type) {
	case *Instance:
		if vals, ok := e.callSpecial(x, "__len__", nil, ic); ok {
			return vals
		}
	case *nodes.Node:
		switch x.Kind() {
		case nodes.List, nodes.Tuple, nodes.Set:
			elts := x.Elts()
			for _, el := range elts {
				if el.Kind() == nodes.Starred {
					return []Value{Uninferable}
				}
			}
			if x.Kind() == nodes.Set {
				break
			}
			return []Value{nodes.NewConst(int64(len(elts)))}
		case nodes.Dict:
			for _, k := range x.Keys() {
				if k == nil {
					return []Value{Uninferable}
				}
			}
			return []Value{nodes.NewConst(int64(len(x.Keys())))}
		case nodes.Const:
			switch s := x.Literal.(type) {
			case string:
				return []Value{nodes.NewConst(int64(utf8.RuneCountInString(s)))}
			case nodes.Bytes:
				return []Value{nodes.NewConst(int64(len(s)))}
			}
		}
	}
	return []Value{Uninferable}
}
