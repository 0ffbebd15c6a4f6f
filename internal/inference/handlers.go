package inference

import (
	"github.com/jward/pyrite/internal/nodes"
)

// registerDefaults installs the engine's own tips. They go through the
// registry like any plugin tip, so tips registered later take precedence.
func (e *Engine) registerDefaults() {
	self := func(n *nodes.Node, _ *Context) Result { return Produced(n) }
	for _, k := range []nodes.Kind{
		nodes.Module, nodes.ClassDef, nodes.FunctionDef, nodes.Lambda,
		nodes.Const, nodes.JoinedStr, nodes.List, nodes.Tuple, nodes.Set, nodes.Dict,
	} {
		e.mustRegister(k, nil, self)
	}
	e.mustRegister(nodes.Empty, nil, func(*nodes.Node, *Context) Result { return Produced(Uninferable) })
	e.mustRegister(nodes.Starred, nil, func(*nodes.Node, *Context) Result { return Produced(Uninferable) })
	e.mustRegister(nodes.Keyword, nil, func(n *nodes.Node, ic *Context) Result {
		return Produced(e.values(n.Value(), ic)...)
	})
	e.mustRegister(nodes.IfExp, nil, e.inferIfExp)

	e.mustRegister(nodes.Name, nil, e.inferName)
	e.mustRegister(nodes.Attribute, nil, e.inferAttribute)
	e.mustRegister(nodes.Subscript, nil, e.inferSubscript)
	e.mustRegister(nodes.Call, nil, e.inferCall)

	e.mustRegister(nodes.BinOp, nil, e.inferBinOp)
	e.mustRegister(nodes.UnaryOp, nil, e.inferUnaryOp)
	e.mustRegister(nodes.BoolOp, nil, e.inferBoolOp)
	e.mustRegister(nodes.Compare, nil, e.inferCompare)

	e.registerBuiltinTips()
}

func (e *Engine) mustRegister(kind nodes.Kind, pred Predicate, h Handler) {
	// Unnamed tips cannot collide.
	_ = e.registry.Register(kind, pred, h)
}

// inferIfExp yields the union of both branches.
func (e *Engine) inferIfExp(n *nodes.Node, ic *Context) Result {
	return Produced(union(e.values(n.Value(), ic), e.values(n.Slot(nodes.SlotAlt), ic))...)
}

// union concatenates value lists into a fresh slice. Slices returned by
// infer may be shared with the cache and are never appended to in place.
func union(lists ...[]Value) []Value {
	size := 0
	for _, l := range lists {
		size += len(l)
	}
	out := make([]Value, 0, size)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
