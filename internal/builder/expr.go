package builder

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/pyrite/internal/nodes"
)

// expr converts an expression. Unmodelled expressions (comprehensions,
// await, yield, slices, walrus) become Empty.
func (c *converter) expr(ts *sitter.Node) *nodes.Node {
	if ts == nil {
		return nil
	}
	switch ts.Type() {
	case "identifier":
		n := c.node(nodes.Name, ts)
		n.Name = c.text(ts)
		return n
	case "attribute":
		n := c.node(nodes.Attribute, ts)
		n.SetSlot(nodes.SlotValue, c.expr(ts.ChildByFieldName("object")))
		n.Name = c.text(ts.ChildByFieldName("attribute"))
		return n
	case "call":
		return c.call(ts)
	case "binary_operator":
		n := c.node(nodes.BinOp, ts)
		n.SetSlot(nodes.SlotLeft, c.expr(ts.ChildByFieldName("left")))
		n.Op = ts.ChildByFieldName("operator").Type()
		n.SetSlot(nodes.SlotRight, c.expr(ts.ChildByFieldName("right")))
		return n
	case "unary_operator":
		n := c.node(nodes.UnaryOp, ts)
		n.Op = ts.ChildByFieldName("operator").Type()
		n.SetSlot(nodes.SlotValue, c.expr(ts.ChildByFieldName("argument")))
		return n
	case "not_operator":
		n := c.node(nodes.UnaryOp, ts)
		n.Op = "not"
		n.SetSlot(nodes.SlotValue, c.expr(ts.ChildByFieldName("argument")))
		return n
	case "boolean_operator":
		return c.boolOp(ts)
	case "comparison_operator":
		return c.compare(ts)
	case "conditional_expression":
		kids := namedChildren(ts)
		if len(kids) != 3 {
			return c.empty(ts)
		}
		n := c.node(nodes.IfExp, ts)
		n.SetSlot(nodes.SlotValue, c.expr(kids[0]))
		n.SetSlot(nodes.SlotTest, c.expr(kids[1]))
		n.SetSlot(nodes.SlotAlt, c.expr(kids[2]))
		return n
	case "lambda":
		n := c.node(nodes.Lambda, ts)
		n.Name = "<lambda>"
		n.SetSlot(nodes.SlotArgs, c.parameters(ts.ChildByFieldName("parameters")))
		n.SetSlot(nodes.SlotValue, c.expr(ts.ChildByFieldName("body")))
		return n
	case "parenthesized_expression":
		kids := namedChildren(ts)
		if len(kids) == 1 {
			return c.expr(kids[0])
		}
		return c.empty(ts)
	case "expression_list", "tuple":
		return c.sequence(nodes.Tuple, ts)
	case "list":
		return c.sequence(nodes.List, ts)
	case "set":
		return c.sequence(nodes.Set, ts)
	case "dictionary":
		return c.dict(ts)
	case "subscript":
		n := c.node(nodes.Subscript, ts)
		n.SetSlot(nodes.SlotValue, c.expr(ts.ChildByFieldName("value")))
		n.SetSlot(nodes.SlotSlice, c.expr(ts.ChildByFieldName("subscript")))
		return n
	case "list_splat", "dictionary_splat":
		n := c.node(nodes.Starred, ts)
		if kids := namedChildren(ts); len(kids) > 0 {
			n.SetSlot(nodes.SlotValue, c.expr(kids[0]))
		}
		return n
	case "integer", "float", "true", "false", "none", "ellipsis":
		return c.number(ts)
	case "string", "concatenated_string":
		return c.str(ts)
	case "keyword_argument":
		return c.keyword(ts)
	}
	return c.empty(ts)
}

func (c *converter) sequence(kind nodes.Kind, ts *sitter.Node) *nodes.Node {
	n := c.node(kind, ts)
	for _, ch := range namedChildren(ts) {
		n.Append(nodes.ListElts, c.expr(ch))
	}
	return n
}

// dict keeps keys and values aligned; `**other` entries have no key.
func (c *converter) dict(ts *sitter.Node) *nodes.Node {
	n := c.node(nodes.Dict, ts)
	for _, ch := range namedChildren(ts) {
		switch ch.Type() {
		case "pair":
			n.Append(nodes.ListKeys, c.expr(ch.ChildByFieldName("key")))
			n.Append(nodes.ListElts, c.expr(ch.ChildByFieldName("value")))
		case "dictionary_splat":
			n.Append(nodes.ListKeys, nil)
			if kids := namedChildren(ch); len(kids) > 0 {
				n.Append(nodes.ListElts, c.expr(kids[0]))
			} else {
				n.Append(nodes.ListElts, c.empty(ch))
			}
		}
	}
	return n
}

func (c *converter) call(ts *sitter.Node) *nodes.Node {
	n := c.node(nodes.Call, ts)
	n.SetSlot(nodes.SlotFunc, c.expr(ts.ChildByFieldName("function")))
	args := ts.ChildByFieldName("arguments")
	if args == nil {
		return n
	}
	if args.Type() == "generator_expression" {
		n.Append(nodes.ListCallArgs, c.empty(args))
		return n
	}
	for _, arg := range namedChildren(args) {
		switch arg.Type() {
		case "keyword_argument":
			n.Append(nodes.ListKeywords, c.keyword(arg))
		case "dictionary_splat":
			// **kwargs is a keyword without a name.
			kw := c.node(nodes.Keyword, arg)
			if kids := namedChildren(arg); len(kids) > 0 {
				kw.SetSlot(nodes.SlotValue, c.expr(kids[0]))
			}
			n.Append(nodes.ListKeywords, kw)
		default:
			n.Append(nodes.ListCallArgs, c.expr(arg))
		}
	}
	return n
}

func (c *converter) keyword(ts *sitter.Node) *nodes.Node {
	kw := c.node(nodes.Keyword, ts)
	kw.Name = c.text(ts.ChildByFieldName("name"))
	kw.SetSlot(nodes.SlotValue, c.expr(ts.ChildByFieldName("value")))
	return kw
}

// boolOp flattens `a and b and c` into one BoolOp.
func (c *converter) boolOp(ts *sitter.Node) *nodes.Node {
	op := ts.ChildByFieldName("operator").Type()
	n := c.node(nodes.BoolOp, ts)
	n.Op = op
	var flatten func(*sitter.Node)
	flatten = func(x *sitter.Node) {
		if x.Type() == "boolean_operator" && x.ChildByFieldName("operator").Type() == op {
			flatten(x.ChildByFieldName("left"))
			flatten(x.ChildByFieldName("right"))
			return
		}
		n.Append(nodes.ListElts, c.expr(x))
	}
	flatten(ts.ChildByFieldName("left"))
	flatten(ts.ChildByFieldName("right"))
	return n
}

// compare splits `a < b <= c` into the left operand, the operators and the
// comparators. Operators are the anonymous children ("<", "not in", ...).
func (c *converter) compare(ts *sitter.Node) *nodes.Node {
	n := c.node(nodes.Compare, ts)
	first := true
	for _, ch := range allChildren(ts) {
		if ch == nil || ch.Type() == "comment" {
			continue
		}
		if !ch.IsNamed() {
			op := ch.Type()
			if last := len(n.Ops) - 1; last >= 0 && len(n.Ops) > len(n.List(nodes.ListElts)) {
				// "not in" and "is not" may arrive as two tokens.
				n.Ops[last] += " " + op
				continue
			}
			n.Ops = append(n.Ops, op)
			continue
		}
		if first {
			n.SetSlot(nodes.SlotLeft, c.expr(ch))
			first = false
			continue
		}
		n.Append(nodes.ListElts, c.expr(ch))
	}
	return n
}
