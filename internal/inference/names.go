package inference

import (
	"github.com/jward/pyrite/internal/errs"
	"github.com/jward/pyrite/internal/nodes"
)

// inferName resolves a Load reference through the scope chain, or infers
// the value bound by a Store target.
func (e *Engine) inferName(n *nodes.Node, ic *Context) Result {
	switch n.Ctx {
	case nodes.Store:
		return e.inferAssigned(n, ic)
	case nodes.Del:
		return Produced()
	}
	return e.lookupName(n, n.Name, ic)
}

func (e *Engine) lookupName(ref *nodes.Node, name string, ic *Context) Result {
	scope, defs, err := ref.Lookup(name)
	if err != nil {
		return Failed(err)
	}
	if scope == nil {
		return e.lookupModuleFallback(ref, name, ic)
	}
	if scope.Kind() == nodes.Module {
		ic = ic.detached()
	}
	var out []Value
	for _, d := range defs {
		out = append(out, e.inferDefinition(d, name, ic)...)
	}
	return Produced(out...)
}

// lookupModuleFallback resolves names no scope binds: module dunders,
// names pulled in by wildcard imports, then builtins.
func (e *Engine) lookupModuleFallback(ref *nodes.Node, name string, ic *Context) Result {
	mod := ref.Root()
	if v, ok := moduleDunder(mod, name); ok {
		return Produced(v)
	}
	if vals, ok := e.wildcardLookup(mod, name, ic.detached(), map[*nodes.Node]bool{}); ok {
		return Produced(vals...)
	}
	if b := e.builtinsModule(); b != nil && b != mod {
		if defs := b.Bindings(name); len(defs) > 0 {
			var out []Value
			for _, d := range defs {
				out = append(out, e.inferDefinition(d, name, ic.detached())...)
			}
			return Produced(out...)
		}
	}
	return Failed(errs.New(errs.ErrNameInference, "name %q is not defined", name).At(ref))
}

// moduleDunder answers the attributes every module has.
func moduleDunder(mod *nodes.Node, name string) (Value, bool) {
	switch name {
	case "__name__":
		return nodes.NewConst(mod.Tree().Name), true
	case "__file__":
		if mod.Tree().Path == "" {
			return nil, false
		}
		return nodes.NewConst(mod.Tree().Path), true
	case "__doc__":
		return nodes.NewConst(nil), true
	}
	return nil, false
}

// inferDefinition infers one binding of name.
func (e *Engine) inferDefinition(def *nodes.Node, name string, ic *Context) []Value {
	switch def.Kind() {
	case nodes.ClassDef, nodes.FunctionDef:
		return []Value{def}
	case nodes.Import:
		vals, err := e.inferImport(def, name)
		if err != nil {
			return []Value{Uninferable}
		}
		return vals
	case nodes.ImportFrom:
		vals, err := e.inferImportFrom(def, name, ic)
		if err != nil {
			return []Value{Uninferable}
		}
		return vals
	}
	return e.values(def, ic)
}

// step is one level of tuple unpacking: the target's position among count
// targets, with star the index of the starred target or -1.
type step struct {
	idx, count, star int
}

// inferAssigned infers the value bound to a Store target (a Name or an
// Attribute) by whatever statement binds it.
func (e *Engine) inferAssigned(target *nodes.Node, ic *Context) Result {
	var steps []step
	cur := target
	for {
		p := cur.Parent()
		if p == nil {
			return Produced(Uninferable)
		}
		switch p.Kind() {
		case nodes.Starred:
			cur = p
			continue
		case nodes.Tuple, nodes.List:
			elts := p.Elts()
			s := step{count: len(elts), star: -1}
			for i, el := range elts {
				if el == cur {
					s.idx = i
				}
				if el.Kind() == nodes.Starred {
					s.star = i
				}
			}
			steps = append([]step{s}, steps...)
			cur = p
			continue
		}

		switch p.Kind() {
		case nodes.Assign, nodes.AnnAssign:
			if p.Value() == nil {
				return Produced()
			}
			return Produced(e.unpackAll(e.values(p.Value(), ic), steps, ic)...)
		case nodes.AugAssign:
			return e.inferAugAssign(p, ic)
		case nodes.For:
			return Produced(e.unpackAll(e.iterate(e.values(p.Iter(), ic), ic), steps, ic)...)
		case nodes.ExceptHandler:
			return Produced(e.caught(p, ic)...)
		case nodes.Arguments:
			return e.inferParam(target, ic)
		case nodes.Delete:
			return Produced()
		}
		return Produced(Uninferable)
	}
}

func (e *Engine) unpackAll(vals []Value, steps []step, ic *Context) []Value {
	if len(steps) == 0 {
		return vals
	}
	var out []Value
	for _, v := range vals {
		out = append(out, e.unpack(v, steps, ic)...)
	}
	return out
}

// unpack selects the element of v addressed by steps, following Python's
// starred assignment rules. Length mismatches yield Uninferable.
func (e *Engine) unpack(v Value, steps []step, ic *Context) []Value {
	if len(steps) == 0 {
		return []Value{v}
	}
	seq, ok := asNode(v, nodes.Tuple, nodes.List)
	if !ok {
		return []Value{Uninferable}
	}
	elts := seq.Elts()
	for _, el := range elts {
		if el.Kind() == nodes.Starred {
			return []Value{Uninferable}
		}
	}

	s := steps[0]
	var el *nodes.Node
	switch {
	case s.star < 0:
		if len(elts) != s.count {
			return []Value{Uninferable}
		}
		el = elts[s.idx]
	case len(elts) < s.count-1:
		return []Value{Uninferable}
	case s.idx < s.star:
		el = elts[s.idx]
	case s.idx == s.star:
		rest := nodes.NewSequence(nodes.List, elts[s.star:len(elts)-(s.count-1-s.star)])
		return e.unpack(rest, steps[1:], ic)
	default:
		el = elts[len(elts)-(s.count-s.idx)]
	}
	return e.unpackAll(e.values(el, ic), steps[1:], ic)
}

// iterate returns the values produced by iterating over each of vals.
func (e *Engine) iterate(vals []Value, ic *Context) []Value {
	var out []Value
	for _, v := range vals {
		n, ok := v.(*nodes.Node)
		if !ok {
			out = append(out, Uninferable)
			continue
		}
		switch n.Kind() {
		case nodes.Tuple, nodes.List, nodes.Set:
			for _, el := range n.Elts() {
				if el.Kind() == nodes.Starred {
					out = append(out, Uninferable)
					continue
				}
				out = append(out, e.values(el, ic)...)
			}
		case nodes.Dict:
			for _, k := range n.Keys() {
				if k == nil {
					out = append(out, Uninferable)
					continue
				}
				out = append(out, e.values(k, ic)...)
			}
		case nodes.Const, nodes.JoinedStr:
			if cls := e.classOf(n); cls != nil && cls.Name == "str" {
				out = append(out, NewInstance(cls))
				continue
			}
			out = append(out, Uninferable)
		default:
			out = append(out, Uninferable)
		}
	}
	return out
}

// caught infers the exception bound by `except T as e`.
func (e *Engine) caught(handler *nodes.Node, ic *Context) []Value {
	typ := handler.Value()
	if typ == nil {
		if cls := e.builtinClass("BaseException"); cls != nil {
			return []Value{NewInstance(cls)}
		}
		return []Value{Uninferable}
	}
	var out []Value
	var add func(vals []Value)
	add = func(vals []Value) {
		for _, v := range vals {
			n, ok := v.(*nodes.Node)
			switch {
			case ok && n.Kind() == nodes.ClassDef:
				out = append(out, NewInstance(n))
			case ok && n.Kind() == nodes.Tuple:
				for _, el := range n.Elts() {
					add(e.values(el, ic))
				}
			default:
				out = append(out, Uninferable)
			}
		}
	}
	add(e.values(typ, ic))
	return out
}

// inferParam infers a parameter: from the call frame binding it when there
// is one, otherwise from its role (self, cls, *args, **kwargs) or default.
func (e *Engine) inferParam(p *nodes.Node, ic *Context) Result {
	fn := p.Parent().Parent()
	if fn == nil {
		return Produced(Uninferable)
	}
	if frame := ic.frameFor(fn); frame != nil {
		return Produced(e.bindArgument(fn, p, frame)...)
	}
	return Produced(e.unboundParam(fn, p, ic)...)
}

func (e *Engine) unboundParam(fn, p *nodes.Node, ic *Context) []Value {
	args := fn.Args()
	_, kind, _ := args.FindParam(p.Name)
	switch kind {
	case nodes.ParamVararg:
		return e.instanceOf("tuple")
	case nodes.ParamKwarg:
		return e.instanceOf("dict")
	}

	if params := args.Params(); len(params) > 0 && params[0] == p && fn.Kind() == nodes.FunctionDef {
		class := fn.Scope()
		switch fn.FunctionType() {
		case nodes.Method, nodes.PropertyMethod:
			return []Value{NewInstance(class)}
		case nodes.ClassMethod:
			return []Value{class}
		}
	}

	def, err := args.DefaultValue(p.Name)
	if err != nil {
		return []Value{Uninferable}
	}
	return e.values(def, ic.detached())
}

func (e *Engine) instanceOf(className string) []Value {
	if cls := e.builtinClass(className); cls != nil {
		return []Value{NewInstance(cls)}
	}
	return []Value{Uninferable}
}

// argSource is one positional argument: an expression evaluated in the
// caller, or values computed by the engine.
type argSource struct {
	node *nodes.Node
	vals []Value
}

// positionalArgs flattens the frame's positional arguments. Starred
// arguments over literal sequences are expanded; ok is false when a
// starred argument hides how many arguments follow.
func (e *Engine) positionalArgs(frame *CallContext) (srcs []argSource, ok bool) {
	for _, vals := range frame.ArgValues {
		srcs = append(srcs, argSource{vals: vals})
	}
	for _, a := range frame.Args {
		if a.Kind() != nodes.Starred {
			srcs = append(srcs, argSource{node: a})
			continue
		}
		vals := e.values(a.Value(), frame.Caller)
		if len(vals) != 1 {
			return srcs, false
		}
		seq, isSeq := asNode(vals[0], nodes.Tuple, nodes.List)
		if !isSeq {
			return srcs, false
		}
		for _, el := range seq.Elts() {
			if el.Kind() == nodes.Starred {
				return srcs, false
			}
			srcs = append(srcs, argSource{node: el})
		}
	}
	return srcs, true
}

func (e *Engine) argValues(src argSource, frame *CallContext) []Value {
	if src.node == nil {
		return src.vals
	}
	return e.values(src.node, frame.Caller)
}

// bindArgument maps the frame's arguments onto parameter p of fn.
func (e *Engine) bindArgument(fn, p *nodes.Node, frame *CallContext) []Value {
	args := fn.Args()
	params := args.Params()
	offset := 0
	if frame.Receiver != nil && len(params) > 0 {
		if params[0] == p {
			return []Value{frame.Receiver}
		}
		offset = 1
	}

	srcs, complete := e.positionalArgs(frame)
	keyword := func(name string) (*nodes.Node, bool) {
		for _, kw := range frame.Keywords {
			if kw.Name == name {
				return kw.Value(), true
			}
		}
		return nil, false
	}
	hasSplat := false
	for _, kw := range frame.Keywords {
		if kw.Name == "" {
			hasSplat = true
		}
	}
	fallback := func() []Value {
		if v, ok := keyword(p.Name); ok {
			return e.values(v, frame.Caller)
		}
		if def, err := args.DefaultValue(p.Name); err == nil {
			return e.values(def, frame.Caller.detached())
		}
		return []Value{Uninferable}
	}

	_, kind, _ := args.FindParam(p.Name)
	switch kind {
	case nodes.ParamPositional:
		idx := -1
		for i, q := range params {
			if q == p {
				idx = i - offset
			}
		}
		if idx >= 0 && idx < len(srcs) {
			return e.argValues(srcs[idx], frame)
		}
		if !complete || hasSplat {
			if _, ok := keyword(p.Name); !ok {
				return []Value{Uninferable}
			}
		}
		return fallback()
	case nodes.ParamKwOnly:
		if hasSplat {
			if _, ok := keyword(p.Name); !ok {
				return []Value{Uninferable}
			}
		}
		return fallback()
	case nodes.ParamVararg:
		extra := len(params) - offset
		if !complete || extra > len(srcs) {
			return e.instanceOf("tuple")
		}
		var elts []*nodes.Node
		for _, s := range srcs[extra:] {
			if s.node == nil {
				return e.instanceOf("tuple")
			}
			elts = append(elts, s.node)
		}
		return []Value{nodes.NewSequence(nodes.Tuple, elts)}
	case nodes.ParamKwarg:
		return e.instanceOf("dict")
	}
	return []Value{Uninferable}
}
