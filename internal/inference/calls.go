package inference

import (
	"github.com/jward/pyrite/internal/nodes"
)

// CallStub computes the result of calling a function whose body the engine
// should not evaluate. Plugins register stubs by qualified name.
type CallStub func(fn *nodes.Node, cc *CallContext, ic *Context) []Value

// RegisterCallStub makes calls to the function with the given qualified
// name (for example "hashlib.md5") return what stub computes. A later
// registration for the same name replaces the earlier one.
func (e *Engine) RegisterCallStub(qualname string, stub CallStub) {
	e.stubs.Store(qualname, stub)
}

// CallFunction infers a call into fn with the frame cc. Stubs use it to
// delegate to a replacement function. A nil ic starts a fresh query.
func (e *Engine) CallFunction(fn *nodes.Node, cc *CallContext, ic *Context) []Value {
	if ic == nil {
		ic = NewContext()
	}
	if cc == nil {
		cc = &CallContext{}
	}
	return e.callFunction(fn, cc, ic)
}

func (e *Engine) callStub(fn *nodes.Node) CallStub {
	if fn.Kind() != nodes.FunctionDef {
		return nil
	}
	s, ok := e.stubs.Load(fn.QualName())
	if !ok {
		return nil
	}
	return s.(CallStub)
}

// inferCall infers a call through every value of its callee.
func (e *Engine) inferCall(n *nodes.Node, ic *Context) Result {
	var out []Value
	for _, callee := range e.values(n.Func(), ic) {
		cc := &CallContext{Args: n.CallArgs(), Keywords: n.Keywords()}
		out = append(out, e.callValue(callee, cc, ic)...)
	}
	return Produced(out...)
}

// callValue returns what calling callee with cc produces.
func (e *Engine) callValue(callee Value, cc *CallContext, ic *Context) []Value {
	switch x := callee.(type) {
	case *nodes.Node:
		switch x.Kind() {
		case nodes.ClassDef:
			return []Value{NewInstance(x)}
		case nodes.FunctionDef, nodes.Lambda:
			return e.callFunction(x, cc, ic)
		}
	case *BoundMethod:
		c := *cc
		c.Receiver = x.Receiver
		return e.callFunction(x.Func, &c, ic)
	case *UnboundMethod:
		return e.callFunction(x.Func, cc, ic)
	case *Instance:
		if x.IsSuper() {
			break
		}
		methods, ok, err := e.special(x, "__call__", ic)
		if err != nil || !ok {
			break
		}
		var out []Value
		for _, m := range methods {
			out = append(out, e.callValue(m, cc, ic)...)
		}
		return out
	}
	return []Value{Uninferable}
}

// callFunction evaluates a call into fn: the union of its return values
// inferred in a new frame binding the call's arguments.
func (e *Engine) callFunction(fn *nodes.Node, cc *CallContext, ic *Context) []Value {
	if stub := e.callStub(fn); stub != nil {
		return stub(fn, cc, ic)
	}
	c := *cc
	c.Callee = fn
	if c.Caller == nil {
		c.Caller = ic
	}
	inner := ic.withCall(&c)

	if fn.Kind() == nodes.Lambda {
		return e.values(fn.Value(), inner)
	}
	if fn.Generator {
		return e.instanceOf("generator")
	}
	if isStubBody(fn) {
		return []Value{Uninferable}
	}

	rets := nodes.ReturnsOf(fn)
	if len(rets) == 0 {
		for _, stmt := range fn.Body() {
			if stmt.Kind() == nodes.Raise {
				return []Value{Uninferable}
			}
		}
		return []Value{nodes.NewConst(nil)}
	}
	var out []Value
	for _, r := range rets {
		if r.Value() == nil {
			out = append(out, nodes.NewConst(nil))
			continue
		}
		out = append(out, e.values(r.Value(), inner)...)
	}
	return out
}

// isStubBody reports whether a function body holds only a docstring and
// `...`, as declarations in stub modules do.
func isStubBody(fn *nodes.Node) bool {
	body := fn.Body()
	if len(body) == 0 {
		return false
	}
	for _, stmt := range body {
		if stmt.Kind() != nodes.Expr {
			return false
		}
		v := stmt.Value()
		if v == nil || v.Kind() != nodes.Const {
			return false
		}
		switch v.Literal.(type) {
		case nodes.Ellipsis, string:
		default:
			return false
		}
	}
	return true
}
