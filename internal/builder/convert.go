package builder

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/pyrite/internal/nodes"
)

// converter lowers one tree-sitter syntax tree into a nodes.Tree.
type converter struct {
	tree    *nodes.Tree
	src     []byte
	skipped int
}

func (c *converter) text(n *sitter.Node) string { return n.Content(c.src) }

func (c *converter) node(kind nodes.Kind, ts *sitter.Node) *nodes.Node {
	return c.tree.New(kind, position(ts))
}

// empty records a construct the engine does not model.
func (c *converter) empty(ts *sitter.Node) *nodes.Node {
	c.skipped++
	return c.node(nodes.Empty, ts)
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := range count {
		if ch := n.NamedChild(i); ch != nil && ch.Type() != "comment" {
			out = append(out, ch)
		}
	}
	return out
}

func allChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.ChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := range count {
		out = append(out, n.Child(i))
	}
	return out
}

// block converts the statements of a module or block node.
func (c *converter) block(ts *sitter.Node) []*nodes.Node {
	if ts == nil {
		return nil
	}
	var out []*nodes.Node
	for _, ch := range namedChildren(ts) {
		out = append(out, c.statement(ch)...)
	}
	return out
}

func appendAll(parent *nodes.Node, f nodes.ListField, children []*nodes.Node) {
	for _, ch := range children {
		parent.Append(f, ch)
	}
}

// statement converts one statement. Compound lowering (with blocks) may
// yield several statements.
func (c *converter) statement(ts *sitter.Node) []*nodes.Node {
	switch ts.Type() {
	case "expression_statement":
		return []*nodes.Node{c.expressionStatement(ts)}
	case "function_definition":
		return []*nodes.Node{c.function(ts, nil)}
	case "class_definition":
		return []*nodes.Node{c.class(ts, nil)}
	case "decorated_definition":
		return []*nodes.Node{c.decorated(ts)}
	case "return_statement":
		ret := c.node(nodes.Return, ts)
		if kids := namedChildren(ts); len(kids) > 0 {
			ret.SetSlot(nodes.SlotValue, c.expr(kids[0]))
		}
		return []*nodes.Node{ret}
	case "raise_statement":
		r := c.node(nodes.Raise, ts)
		if kids := namedChildren(ts); len(kids) > 0 {
			r.SetSlot(nodes.SlotValue, c.expr(kids[0]))
		}
		return []*nodes.Node{r}
	case "pass_statement":
		return []*nodes.Node{c.node(nodes.Pass, ts)}
	case "break_statement":
		return []*nodes.Node{c.node(nodes.Break, ts)}
	case "continue_statement":
		return []*nodes.Node{c.node(nodes.Continue, ts)}
	case "if_statement":
		return []*nodes.Node{c.ifStatement(ts)}
	case "for_statement":
		return []*nodes.Node{c.forStatement(ts)}
	case "while_statement":
		w := c.node(nodes.While, ts)
		w.SetSlot(nodes.SlotTest, c.expr(ts.ChildByFieldName("condition")))
		appendAll(w, nodes.ListBody, c.block(ts.ChildByFieldName("body")))
		if alt := ts.ChildByFieldName("alternative"); alt != nil {
			appendAll(w, nodes.ListOrElse, c.block(alt.ChildByFieldName("body")))
		}
		return []*nodes.Node{w}
	case "try_statement":
		return []*nodes.Node{c.tryStatement(ts)}
	case "with_statement":
		return c.withStatement(ts)
	case "import_statement":
		return []*nodes.Node{c.importStatement(ts)}
	case "import_from_statement", "future_import_statement":
		return []*nodes.Node{c.importFrom(ts)}
	case "global_statement", "nonlocal_statement":
		kind := nodes.Global
		if ts.Type() == "nonlocal_statement" {
			kind = nodes.Nonlocal
		}
		g := c.node(kind, ts)
		for _, id := range namedChildren(ts) {
			g.Names = append(g.Names, c.text(id))
		}
		return []*nodes.Node{g}
	case "delete_statement":
		d := c.node(nodes.Delete, ts)
		for _, ch := range namedChildren(ts) {
			targets := []*sitter.Node{ch}
			if ch.Type() == "expression_list" {
				targets = namedChildren(ch)
			}
			for _, t := range targets {
				d.Append(nodes.ListTargets, c.target(t, nodes.Del))
			}
		}
		return []*nodes.Node{d}
	}
	// assert, match, type aliases, print/exec statements...
	e := c.node(nodes.Expr, ts)
	e.SetSlot(nodes.SlotValue, c.empty(ts))
	return []*nodes.Node{e}
}

func (c *converter) expressionStatement(ts *sitter.Node) *nodes.Node {
	kids := namedChildren(ts)
	if len(kids) == 1 {
		switch kids[0].Type() {
		case "assignment":
			return c.assignment(kids[0])
		case "augmented_assignment":
			return c.augAssignment(kids[0])
		}
	}
	e := c.node(nodes.Expr, ts)
	if len(kids) == 1 {
		e.SetSlot(nodes.SlotValue, c.expr(kids[0]))
		return e
	}
	tup := c.node(nodes.Tuple, ts)
	for _, k := range kids {
		tup.Append(nodes.ListElts, c.expr(k))
	}
	e.SetSlot(nodes.SlotValue, tup)
	return e
}

// assignment handles chained (`a = b = v`) and annotated (`a: T = v`) forms.
func (c *converter) assignment(ts *sitter.Node) *nodes.Node {
	if typ := ts.ChildByFieldName("type"); typ != nil {
		a := c.node(nodes.AnnAssign, ts)
		a.SetSlot(nodes.SlotTarget, c.target(ts.ChildByFieldName("left"), nodes.Store))
		a.SetSlot(nodes.SlotAnnotation, c.expr(typ))
		if right := ts.ChildByFieldName("right"); right != nil {
			a.SetSlot(nodes.SlotValue, c.expr(right))
		}
		return a
	}

	a := c.node(nodes.Assign, ts)
	cur := ts
	for {
		a.Append(nodes.ListTargets, c.target(cur.ChildByFieldName("left"), nodes.Store))
		right := cur.ChildByFieldName("right")
		if right != nil && right.Type() == "assignment" && right.ChildByFieldName("type") == nil {
			cur = right
			continue
		}
		if right != nil {
			a.SetSlot(nodes.SlotValue, c.expr(right))
		}
		return a
	}
}

func (c *converter) augAssignment(ts *sitter.Node) *nodes.Node {
	a := c.node(nodes.AugAssign, ts)
	if op := ts.ChildByFieldName("operator"); op != nil {
		a.Op = op.Type()
	}
	a.SetSlot(nodes.SlotTarget, c.target(ts.ChildByFieldName("left"), nodes.Store))
	a.SetSlot(nodes.SlotValue, c.expr(ts.ChildByFieldName("right")))
	return a
}

// target converts an assignment, for, with or del target and marks the
// bound references with ctx.
func (c *converter) target(ts *sitter.Node, ctx nodes.Context) *nodes.Node {
	if ts == nil {
		return nil
	}
	var n *nodes.Node
	switch ts.Type() {
	case "pattern_list", "tuple_pattern", "expression_list", "tuple":
		n = c.node(nodes.Tuple, ts)
		for _, ch := range namedChildren(ts) {
			n.Append(nodes.ListElts, c.target(ch, ctx))
		}
	case "list_pattern", "list":
		n = c.node(nodes.List, ts)
		for _, ch := range namedChildren(ts) {
			n.Append(nodes.ListElts, c.target(ch, ctx))
		}
	case "list_splat_pattern", "list_splat":
		n = c.node(nodes.Starred, ts)
		if kids := namedChildren(ts); len(kids) > 0 {
			n.SetSlot(nodes.SlotValue, c.target(kids[0], ctx))
		}
	case "parenthesized_expression":
		if kids := namedChildren(ts); len(kids) == 1 {
			return c.target(kids[0], ctx)
		}
		return c.empty(ts)
	case "as_pattern_target":
		if kids := namedChildren(ts); len(kids) > 0 {
			return c.target(kids[0], ctx)
		}
		n = c.node(nodes.Name, ts)
		n.Name = c.text(ts)
	default:
		n = c.expr(ts)
	}
	switch n.Kind() {
	case nodes.Name, nodes.Attribute, nodes.Subscript, nodes.Tuple, nodes.List, nodes.Starred:
		n.Ctx = ctx
	}
	return n
}

func (c *converter) decorated(ts *sitter.Node) *nodes.Node {
	var decorators []*nodes.Node
	for _, ch := range namedChildren(ts) {
		if ch.Type() != "decorator" {
			continue
		}
		if kids := namedChildren(ch); len(kids) > 0 {
			decorators = append(decorators, c.expr(kids[0]))
		}
	}
	def := ts.ChildByFieldName("definition")
	if def == nil {
		return c.empty(ts)
	}
	switch def.Type() {
	case "function_definition":
		return c.function(def, decorators)
	case "class_definition":
		return c.class(def, decorators)
	}
	return c.empty(ts)
}

func (c *converter) function(ts *sitter.Node, decorators []*nodes.Node) *nodes.Node {
	fn := c.node(nodes.FunctionDef, ts)
	fn.Name = c.text(ts.ChildByFieldName("name"))
	appendAll(fn, nodes.ListDecorators, decorators)
	fn.SetSlot(nodes.SlotArgs, c.parameters(ts.ChildByFieldName("parameters")))
	if ret := ts.ChildByFieldName("return_type"); ret != nil {
		fn.SetSlot(nodes.SlotReturns, c.expr(ret))
	}
	body := ts.ChildByFieldName("body")
	appendAll(fn, nodes.ListBody, c.block(body))
	fn.Generator = containsYield(body)
	return fn
}

// containsYield reports whether a function body yields, ignoring nested
// functions, lambdas and classes.
func containsYield(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "yield":
		return true
	case "function_definition", "lambda", "class_definition":
		return false
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if containsYield(n.NamedChild(i)) {
			return true
		}
	}
	return false
}

func (c *converter) class(ts *sitter.Node, decorators []*nodes.Node) *nodes.Node {
	cls := c.node(nodes.ClassDef, ts)
	cls.Name = c.text(ts.ChildByFieldName("name"))
	appendAll(cls, nodes.ListDecorators, decorators)
	if supers := ts.ChildByFieldName("superclasses"); supers != nil {
		for _, arg := range namedChildren(supers) {
			if arg.Type() == "keyword_argument" {
				cls.Append(nodes.ListKeywords, c.keyword(arg))
				continue
			}
			cls.Append(nodes.ListBases, c.expr(arg))
		}
	}
	appendAll(cls, nodes.ListBody, c.block(ts.ChildByFieldName("body")))
	return cls
}

// parameters converts a `parameters` or `lambda_parameters` node.
func (c *converter) parameters(ts *sitter.Node) *nodes.Node {
	if ts == nil {
		return c.tree.New(nodes.Arguments, nodes.Position{})
	}
	args := c.node(nodes.Arguments, ts)

	kwOnly := false
	param := func(name *sitter.Node, def *sitter.Node) {
		p := c.node(nodes.Name, name)
		p.Name = c.text(name)
		p.Ctx = nodes.Store
		if kwOnly {
			args.Append(nodes.ListKwOnly, p)
			if def != nil {
				args.Append(nodes.ListKwDefaults, c.expr(def))
			} else {
				args.Append(nodes.ListKwDefaults, nil)
			}
			return
		}
		args.Append(nodes.ListParams, p)
		if def != nil {
			args.Append(nodes.ListDefaults, c.expr(def))
		}
	}
	splat := func(ts *sitter.Node, slot nodes.Slot) {
		kids := namedChildren(ts)
		if len(kids) == 0 {
			return
		}
		p := c.node(nodes.Name, kids[0])
		p.Name = c.text(kids[0])
		p.Ctx = nodes.Store
		args.SetSlot(slot, p)
	}

	for _, ch := range namedChildren(ts) {
		switch ch.Type() {
		case "identifier":
			param(ch, nil)
		case "default_parameter", "typed_default_parameter":
			param(ch.ChildByFieldName("name"), ch.ChildByFieldName("value"))
		case "typed_parameter":
			inner := namedChildren(ch)
			if len(inner) == 0 {
				continue
			}
			switch inner[0].Type() {
			case "list_splat_pattern":
				splat(inner[0], nodes.SlotVararg)
				kwOnly = true
			case "dictionary_splat_pattern":
				splat(inner[0], nodes.SlotKwarg)
			default:
				param(inner[0], nil)
			}
		case "list_splat_pattern":
			splat(ch, nodes.SlotVararg)
			kwOnly = true
		case "dictionary_splat_pattern":
			splat(ch, nodes.SlotKwarg)
		case "keyword_separator":
			kwOnly = true
		}
	}
	return args
}

func (c *converter) ifStatement(ts *sitter.Node) *nodes.Node {
	n := c.node(nodes.If, ts)
	n.SetSlot(nodes.SlotTest, c.expr(ts.ChildByFieldName("condition")))
	appendAll(n, nodes.ListBody, c.block(ts.ChildByFieldName("consequence")))

	// elif chains nest as If nodes in the else branch.
	cur := n
	for _, ch := range namedChildren(ts) {
		switch ch.Type() {
		case "elif_clause":
			elif := c.node(nodes.If, ch)
			elif.SetSlot(nodes.SlotTest, c.expr(ch.ChildByFieldName("condition")))
			appendAll(elif, nodes.ListBody, c.block(ch.ChildByFieldName("consequence")))
			cur.Append(nodes.ListOrElse, elif)
			cur = elif
		case "else_clause":
			appendAll(cur, nodes.ListOrElse, c.block(ch.ChildByFieldName("body")))
		}
	}
	return n
}

func (c *converter) forStatement(ts *sitter.Node) *nodes.Node {
	n := c.node(nodes.For, ts)
	n.SetSlot(nodes.SlotTarget, c.target(ts.ChildByFieldName("left"), nodes.Store))
	n.SetSlot(nodes.SlotIter, c.expr(ts.ChildByFieldName("right")))
	appendAll(n, nodes.ListBody, c.block(ts.ChildByFieldName("body")))
	if alt := ts.ChildByFieldName("alternative"); alt != nil {
		appendAll(n, nodes.ListOrElse, c.block(alt.ChildByFieldName("body")))
	}
	return n
}

func (c *converter) tryStatement(ts *sitter.Node) *nodes.Node {
	n := c.node(nodes.Try, ts)
	appendAll(n, nodes.ListBody, c.block(ts.ChildByFieldName("body")))
	for _, ch := range namedChildren(ts) {
		switch ch.Type() {
		case "except_clause", "except_group_clause":
			n.Append(nodes.ListHandlers, c.exceptClause(ch))
		case "else_clause":
			appendAll(n, nodes.ListOrElse, c.block(ch.ChildByFieldName("body")))
		case "finally_clause":
			for _, b := range namedChildren(ch) {
				if b.Type() == "block" {
					appendAll(n, nodes.ListFinal, c.block(b))
				}
			}
		}
	}
	return n
}

// exceptClause handles both grammar shapes for `except T as e`: an
// as_pattern child, or the type and the name as sibling expressions.
func (c *converter) exceptClause(ts *sitter.Node) *nodes.Node {
	h := c.node(nodes.ExceptHandler, ts)
	var exprs []*sitter.Node
	for _, ch := range namedChildren(ts) {
		if ch.Type() == "block" {
			appendAll(h, nodes.ListBody, c.block(ch))
			continue
		}
		exprs = append(exprs, ch)
	}
	if len(exprs) == 0 {
		return h
	}
	first := exprs[0]
	if first.Type() == "as_pattern" {
		inner := namedChildren(first)
		if len(inner) > 0 {
			h.SetSlot(nodes.SlotValue, c.expr(inner[0]))
		}
		if alias := asTarget(first); alias != nil {
			h.SetSlot(nodes.SlotTarget, c.target(alias, nodes.Store))
		}
		return h
	}
	h.SetSlot(nodes.SlotValue, c.expr(first))
	if len(exprs) > 1 && exprs[1].Type() == "identifier" {
		h.SetSlot(nodes.SlotTarget, c.target(exprs[1], nodes.Store))
	}
	return h
}

// asTarget returns the bound expression of an as_pattern.
func asTarget(ts *sitter.Node) *sitter.Node {
	return ts.ChildByFieldName("alias")
}

// withStatement lowers `with ctx as x: body` to `x = ctx` followed by the
// body statements. Items without a target become expression statements.
func (c *converter) withStatement(ts *sitter.Node) []*nodes.Node {
	var out []*nodes.Node
	var items []*sitter.Node
	for _, ch := range namedChildren(ts) {
		if ch.Type() == "with_clause" {
			for _, item := range namedChildren(ch) {
				if item.Type() == "with_item" {
					items = append(items, item)
				}
			}
		}
	}
	for _, item := range items {
		value := item.ChildByFieldName("value")
		if value == nil {
			if kids := namedChildren(item); len(kids) > 0 {
				value = kids[0]
			}
		}
		if value == nil {
			continue
		}
		if value.Type() == "as_pattern" {
			inner := namedChildren(value)
			a := c.node(nodes.Assign, item)
			if alias := asTarget(value); alias != nil {
				a.Append(nodes.ListTargets, c.target(alias, nodes.Store))
			}
			if len(inner) > 0 {
				a.SetSlot(nodes.SlotValue, c.expr(inner[0]))
			}
			out = append(out, a)
			continue
		}
		e := c.node(nodes.Expr, item)
		e.SetSlot(nodes.SlotValue, c.expr(value))
		out = append(out, e)
	}
	return append(out, c.block(ts.ChildByFieldName("body"))...)
}

func (c *converter) importStatement(ts *sitter.Node) *nodes.Node {
	n := c.node(nodes.Import, ts)
	for _, ch := range namedChildren(ts) {
		if a, ok := c.alias(ch); ok {
			n.Aliases = append(n.Aliases, a)
		}
	}
	return n
}

func (c *converter) importFrom(ts *sitter.Node) *nodes.Node {
	n := c.node(nodes.ImportFrom, ts)
	mod := ts.ChildByFieldName("module_name")
	if ts.Type() == "future_import_statement" {
		n.Name = "__future__"
	} else if mod != nil {
		if mod.Type() == "relative_import" {
			for _, ch := range namedChildren(mod) {
				switch ch.Type() {
				case "import_prefix":
					n.Level = strings.Count(c.text(ch), ".")
				case "dotted_name":
					n.Name = c.text(ch)
				}
			}
		} else {
			n.Name = c.text(mod)
		}
	}
	for _, ch := range namedChildren(ts) {
		if mod != nil && ch.StartByte() == mod.StartByte() {
			continue
		}
		if ch.Type() == "wildcard_import" {
			n.Aliases = append(n.Aliases, nodes.Alias{Name: "*"})
			continue
		}
		if a, ok := c.alias(ch); ok {
			n.Aliases = append(n.Aliases, a)
		}
	}
	return n
}

func (c *converter) alias(ts *sitter.Node) (nodes.Alias, bool) {
	switch ts.Type() {
	case "dotted_name", "identifier":
		return nodes.Alias{Name: c.text(ts)}, true
	case "aliased_import":
		a := nodes.Alias{}
		if name := ts.ChildByFieldName("name"); name != nil {
			a.Name = c.text(name)
		}
		if as := ts.ChildByFieldName("alias"); as != nil {
			a.AsName = c.text(as)
		}
		return a, a.Name != ""
	}
	return nodes.Alias{}, false
}
