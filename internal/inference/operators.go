package inference

import (
	"math"
	"strings"

	"github.com/jward/pyrite/internal/errs"
	"github.com/jward/pyrite/internal/nodes"
)

// binaryDunders maps an operator to its method and reflected method.
var binaryDunders = map[string][2]string{
	"+":  {"__add__", "__radd__"},
	"-":  {"__sub__", "__rsub__"},
	"*":  {"__mul__", "__rmul__"},
	"@":  {"__matmul__", "__rmatmul__"},
	"/":  {"__truediv__", "__rtruediv__"},
	"//": {"__floordiv__", "__rfloordiv__"},
	"%":  {"__mod__", "__rmod__"},
	"**": {"__pow__", "__rpow__"},
	"<<": {"__lshift__", "__rlshift__"},
	">>": {"__rshift__", "__rrshift__"},
	"&":  {"__and__", "__rand__"},
	"|":  {"__or__", "__ror__"},
	"^":  {"__xor__", "__rxor__"},
}

var unaryDunders = map[string]string{
	"-": "__neg__",
	"+": "__pos__",
	"~": "__invert__",
}

func (e *Engine) inferBinOp(n *nodes.Node, ic *Context) Result {
	left := e.values(n.Left(), ic)
	right := e.values(n.Right(), ic)
	return Produced(e.binaryProduct(n, n.Op, false, left, right, ic)...)
}

// inferAugAssign infers the value an augmented assignment binds: the
// earlier value of the target combined with the right-hand side, trying
// the in-place method first.
func (e *Engine) inferAugAssign(stmt *nodes.Node, ic *Context) Result {
	target := stmt.Target()
	op := strings.TrimSuffix(stmt.Op, "=")

	var prior []Value
	switch target.Kind() {
	case nodes.Name:
		res := e.lookupName(target, target.Name, ic)
		if res.err != nil {
			return Produced(Uninferable)
		}
		prior = res.values
	case nodes.Attribute:
		for _, owner := range e.values(target.Value(), ic) {
			vals, err := e.getAttr(owner, target.Name, ic)
			if err != nil {
				prior = append(prior, Uninferable)
				continue
			}
			prior = append(prior, vals...)
		}
	default:
		return Produced(Uninferable)
	}
	return Produced(e.binaryProduct(stmt, op, true, prior, e.values(stmt.Value(), ic), ic)...)
}

// binaryProduct applies op to every pair of operand values.
func (e *Engine) binaryProduct(site *nodes.Node, op string, inplace bool, left, right []Value, ic *Context) []Value {
	var out []Value
	for _, l := range left {
		for _, r := range right {
			if len(out) > MaxValues {
				return out
			}
			out = append(out, e.binary(site, op, inplace, l, r, ic)...)
		}
	}
	return out
}

func (e *Engine) binary(site *nodes.Node, op string, inplace bool, l, r Value, ic *Context) []Value {
	if IsUninferable(l) || IsUninferable(r) {
		return []Value{Uninferable}
	}
	if v, ok := foldBinary(op, l, r); ok {
		return []Value{v}
	}
	if vals, ok := e.binaryDunder(op, inplace, l, r, ic); ok {
		return vals
	}
	ic.sess.record(errs.New(errs.ErrBinaryOperation,
		"unsupported operand type(s) for %s: %q and %q", op, l.PyType(), r.PyType()).At(site))
	return []Value{Uninferable}
}

// binaryDunder dispatches op through the operand methods: the in-place
// method, then the left method and the right's reflected one. The reflected
// method goes first when the right operand's class is a proper subclass of
// the left's.
func (e *Engine) binaryDunder(op string, inplace bool, l, r Value, ic *Context) ([]Value, bool) {
	names, ok := binaryDunders[op]
	if !ok {
		return nil, false
	}
	if inplace {
		if vals, ok := e.callSpecial(l, "__i"+names[0][2:], r, ic); ok {
			return vals, true
		}
	}

	lcls, rcls := e.classOf(l), e.classOf(r)
	reflectFirst := lcls != nil && rcls != nil && lcls != rcls && e.isSubclass(rcls, lcls)
	if reflectFirst {
		if vals, ok := e.callSpecial(r, names[1], l, ic); ok {
			return vals, true
		}
	}
	if vals, ok := e.callSpecial(l, names[0], r, ic); ok {
		return vals, true
	}
	if !reflectFirst && lcls != rcls {
		if vals, ok := e.callSpecial(r, names[1], l, ic); ok {
			return vals, true
		}
	}
	return nil, false
}

// callSpecial calls the dunder method name of recv's type with args.
func (e *Engine) callSpecial(recv Value, name string, arg Value, ic *Context) ([]Value, bool) {
	methods, ok, err := e.special(recv, name, ic)
	if err != nil || !ok || len(methods) == 0 {
		return nil, false
	}
	if arg != nil && e.builtinRejects(methods, arg) {
		return nil, false
	}
	cc := &CallContext{}
	if arg != nil {
		cc.ArgValues = [][]Value{{arg}}
	}
	var out []Value
	for _, m := range methods {
		out = append(out, e.callValue(m, cc, ic)...)
	}
	return out, true
}

// builtinRejects reports whether a builtins dunder is being applied to an
// operand of a user-defined class. Those calls return NotImplemented.
func (e *Engine) builtinRejects(methods []Value, arg Value) bool {
	mod := e.builtinsModule()
	if mod == nil {
		return false
	}
	for _, m := range methods {
		bm, ok := m.(*BoundMethod)
		if !ok || bm.Func.Root() != mod {
			continue
		}
		if cls := e.classOf(arg); cls == nil || cls.Root() != mod {
			return true
		}
	}
	return false
}

func (e *Engine) inferUnaryOp(n *nodes.Node, ic *Context) Result {
	var out []Value
	for _, v := range e.values(n.Value(), ic) {
		if IsUninferable(v) {
			out = append(out, Uninferable)
			continue
		}
		if n.Op == "not" {
			if b, known := e.truthiness(v, ic); known {
				out = append(out, nodes.NewConst(!b))
			} else {
				out = append(out, Uninferable)
			}
			continue
		}
		if folded, ok := foldUnary(n.Op, v); ok {
			out = append(out, folded)
			continue
		}
		if vals, ok := e.callSpecial(v, unaryDunders[n.Op], nil, ic); ok {
			out = append(out, vals...)
			continue
		}
		ic.sess.record(errs.New(errs.ErrUnaryOperation,
			"bad operand type for unary %s: %q", n.Op, v.PyType()).At(n))
		out = append(out, Uninferable)
	}
	return Produced(out...)
}

// truthiness evaluates bool(v) where it can be decided statically.
func (e *Engine) truthiness(v Value, ic *Context) (value, known bool) {
	switch x := v.(type) {
	case *BoundMethod, *UnboundMethod:
		return true, true
	case *Instance:
		if x.IsSuper() {
			return true, true
		}
		vals, ok := e.callSpecial(x, "__bool__", nil, ic)
		if !ok || len(vals) != 1 {
			return false, false
		}
		if b, isBool := constValue(vals[0]); isBool {
			if bv, isB := b.(bool); isB {
				return bv, true
			}
		}
		return false, false
	case *nodes.Node:
		switch x.Kind() {
		case nodes.Const:
			return constTruth(x.Literal), true
		case nodes.List, nodes.Tuple, nodes.Set:
			elts := x.Elts()
			for _, el := range elts {
				if el.Kind() == nodes.Starred {
					return false, false
				}
			}
			return len(elts) > 0, true
		case nodes.Dict:
			return len(x.Keys()) > 0, true
		case nodes.ClassDef, nodes.FunctionDef, nodes.Lambda, nodes.Module:
			return true, true
		}
	}
	return false, false
}

func constTruth(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case nodes.Bytes:
		return x != ""
	}
	return true
}

// inferBoolOp infers `a and b` / `a or b`: each operand value either decides
// the result or hands over to the next operand.
func (e *Engine) inferBoolOp(n *nodes.Node, ic *Context) Result {
	operands := n.Elts()
	and := n.Op == "and"
	var out []Value
	var walk func(i int)
	walk = func(i int) {
		for _, v := range e.values(operands[i], ic) {
			if len(out) > MaxValues {
				return
			}
			if i == len(operands)-1 {
				out = append(out, v)
				continue
			}
			if IsUninferable(v) {
				out = append(out, Uninferable)
				continue
			}
			t, known := e.truthiness(v, ic)
			switch {
			case !known:
				out = append(out, Uninferable)
			case t == and:
				walk(i + 1)
			default:
				out = append(out, v)
			}
		}
	}
	if len(operands) > 0 {
		walk(0)
	}
	return Produced(out...)
}

// inferCompare folds comparison chains over constants and literals.
// Undecidable comparisons are Uninferable.
func (e *Engine) inferCompare(n *nodes.Node, ic *Context) Result {
	operands := append([]*nodes.Node{n.Left()}, n.Elts()...)
	if len(operands) != len(n.Ops)+1 {
		return Produced(Uninferable)
	}
	vals := make([][]Value, len(operands))
	combos := 1
	for i, o := range operands {
		vals[i] = e.values(o, ic)
		combos *= len(vals[i])
		if combos > MaxValues {
			return Produced(Uninferable)
		}
	}

	var out []Value
	var walk func(i int, prev Value)
	walk = func(i int, prev Value) {
		for _, v := range vals[i+1] {
			res, known := e.compare(n.Ops[i], prev, v)
			switch {
			case !known:
				out = append(out, Uninferable)
			case !res || i == len(n.Ops)-1:
				out = append(out, nodes.NewConst(res))
			default:
				walk(i+1, v)
			}
		}
	}
	for _, first := range vals[0] {
		walk(0, first)
	}
	return Produced(out...)
}

// compare evaluates one comparison, reporting whether it was decidable.
func (e *Engine) compare(op string, l, r Value) (result, known bool) {
	if IsUninferable(l) || IsUninferable(r) {
		return false, false
	}
	switch op {
	case "is", "is not":
		same, ok := identical(l, r)
		if !ok {
			return false, false
		}
		return same == (op == "is"), true
	case "in", "not in":
		in, ok := e.contains(r, l)
		if !ok {
			return false, false
		}
		return in == (op == "in"), true
	case "==", "!=":
		eq, ok := equal(l, r)
		if !ok {
			return false, false
		}
		return eq == (op == "=="), true
	case "<", "<=", ">", ">=":
		c, ok := order(l, r)
		if !ok {
			return false, false
		}
		switch op {
		case "<":
			return c < 0, true
		case "<=":
			return c <= 0, true
		case ">":
			return c > 0, true
		}
		return c >= 0, true
	}
	return false, false
}

// identical decides `l is r` for singletons and definitions.
func identical(l, r Value) (bool, bool) {
	lc, lok := constValue(l)
	rc, rok := constValue(r)
	if lok && rok {
		switch lc.(type) {
		case nil, bool, nodes.Ellipsis:
			return lc == rc, true
		}
		switch rc.(type) {
		case nil, bool, nodes.Ellipsis:
			return false, true
		}
		return false, false
	}
	ln, lIsNode := asNode(l, nodes.ClassDef, nodes.FunctionDef, nodes.Module)
	rn, rIsNode := asNode(r, nodes.ClassDef, nodes.FunctionDef, nodes.Module)
	if lIsNode && rIsNode {
		return ln == rn, true
	}
	if (lIsNode && rok) || (rIsNode && lok) {
		return false, true
	}
	return false, false
}

// equal decides `l == r` for constants and definitions.
func equal(l, r Value) (bool, bool) {
	lc, lok := constValue(l)
	rc, rok := constValue(r)
	if lok && rok {
		if a, b, isNum := numbers(lc, rc); isNum {
			return a == b, true
		}
		switch lc.(type) {
		case string, nodes.Bytes, nil, nodes.Ellipsis:
			return lc == rc, true
		}
		return false, false
	}
	return identical(l, r)
}

// order compares two constants: negative, zero or positive.
func order(l, r Value) (int, bool) {
	lc, lok := constValue(l)
	rc, rok := constValue(r)
	if !lok || !rok {
		return 0, false
	}
	if a, b, isNum := numbers(lc, rc); isNum {
		switch {
		case a < b:
			return -1, true
		case a > b:
			return 1, true
		}
		return 0, true
	}
	switch a := lc.(type) {
	case string:
		if b, ok := rc.(string); ok {
			return strings.Compare(a, b), true
		}
	case nodes.Bytes:
		if b, ok := rc.(nodes.Bytes); ok {
			return strings.Compare(string(a), string(b)), true
		}
	}
	return 0, false
}

// contains decides `item in container` for literal containers and strings.
func (e *Engine) contains(container, item Value) (bool, bool) {
	if s, ok := constValue(container); ok {
		hay, isStr := s.(string)
		needle, needleStr := constValueOf[string](item)
		if isStr && needleStr {
			return strings.Contains(hay, needle), true
		}
		return false, false
	}
	n, ok := asNode(container, nodes.List, nodes.Tuple, nodes.Set, nodes.Dict)
	if !ok {
		return false, false
	}
	elts := n.Elts()
	if n.Kind() == nodes.Dict {
		elts = n.Keys()
	}
	for _, el := range elts {
		if el == nil || el.Kind() != nodes.Const {
			return false, false
		}
		eq, known := equal(el, item)
		if !known {
			return false, false
		}
		if eq {
			return true, true
		}
	}
	return false, true
}

func constValueOf[T any](v Value) (T, bool) {
	var zero T
	c, ok := constValue(v)
	if !ok {
		return zero, false
	}
	t, ok := c.(T)
	return t, ok
}

// numbers widens two numeric constants (bools count as ints) to float64.
func numbers(a, b any) (float64, float64, bool) {
	x, ok1 := toFloat(a)
	y, ok2 := toFloat(b)
	return x, y, ok1 && ok2
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case int64:
		return x, true
	}
	return 0, false
}

// foldUnary evaluates -x, +x and ~x on numeric constants.
func foldUnary(op string, v Value) (Value, bool) {
	c, ok := constValue(v)
	if !ok {
		return nil, false
	}
	if i, isInt := toInt(c); isInt {
		switch op {
		case "-":
			if i == math.MinInt64 {
				return Uninferable, true
			}
			return nodes.NewConst(-i), true
		case "+":
			return nodes.NewConst(i), true
		case "~":
			return nodes.NewConst(^i), true
		}
	}
	if f, isFloat := c.(float64); isFloat {
		switch op {
		case "-":
			return nodes.NewConst(-f), true
		case "+":
			return nodes.NewConst(f), true
		}
	}
	return nil, false
}

// foldBinary evaluates op on constants and literal sequences with Python
// semantics. ok is false when the operands are not foldable; a fold that
// would raise (division by zero, overflow) yields Uninferable.
func foldBinary(op string, l, r Value) (Value, bool) {
	lc, lok := constValue(l)
	rc, rok := constValue(r)
	if lok && rok {
		return foldConsts(op, lc, rc)
	}
	return foldSequences(op, l, r)
}

func foldConsts(op string, a, b any) (Value, bool) {
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch op {
			case "&":
				return nodes.NewConst(ab && bb), true
			case "|":
				return nodes.NewConst(ab || bb), true
			case "^":
				return nodes.NewConst(ab != bb), true
			}
		}
	}
	x, xInt := toInt(a)
	y, yInt := toInt(b)
	if xInt && yInt {
		return foldInts(op, x, y)
	}
	if fx, fy, ok := numbers(a, b); ok {
		return foldFloats(op, fx, fy)
	}

	switch s := a.(type) {
	case string:
		switch t := b.(type) {
		case string:
			if op == "+" {
				return nodes.NewConst(s + t), true
			}
		case int64, bool:
			if op == "*" {
				return repeatString(s, y)
			}
		}
	case nodes.Bytes:
		switch t := b.(type) {
		case nodes.Bytes:
			if op == "+" {
				return nodes.NewConst(s + t), true
			}
		case int64, bool:
			if op == "*" {
				v, ok := repeatString(string(s), y)
				if c, isConst := constValue(v); isConst {
					return nodes.NewConst(nodes.Bytes(c.(string))), ok
				}
				return v, ok
			}
		}
	case int64, bool:
		if t, ok := b.(string); ok && op == "*" {
			return repeatString(t, x)
		}
	}
	return nil, false
}

const maxFoldedLen = 1 << 16

func repeatString(s string, n int64) (Value, bool) {
	if n <= 0 || s == "" {
		return nodes.NewConst(""), true
	}
	if n > maxFoldedLen/int64(len(s)) {
		return Uninferable, true
	}
	return nodes.NewConst(strings.Repeat(s, int(n))), true
}

func foldInts(op string, x, y int64) (Value, bool) {
	overflow := func() (Value, bool) { return Uninferable, true }
	switch op {
	case "+":
		s := x + y
		if (s > x) != (y > 0) {
			return overflow()
		}
		return nodes.NewConst(s), true
	case "-":
		d := x - y
		if (d < x) != (y > 0) {
			return overflow()
		}
		return nodes.NewConst(d), true
	case "*":
		if x == 0 || y == 0 {
			return nodes.NewConst(int64(0)), true
		}
		p := x * y
		if p/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
			return overflow()
		}
		return nodes.NewConst(p), true
	case "/":
		if y == 0 {
			return Uninferable, true
		}
		return nodes.NewConst(float64(x) / float64(y)), true
	case "//":
		if y == 0 || (x == math.MinInt64 && y == -1) {
			return Uninferable, true
		}
		q := x / y
		if x%y != 0 && (x < 0) != (y < 0) {
			q--
		}
		return nodes.NewConst(q), true
	case "%":
		if y == 0 {
			return Uninferable, true
		}
		m := x % y
		if m != 0 && (m < 0) != (y < 0) {
			m += y
		}
		return nodes.NewConst(m), true
	case "**":
		if y < 0 {
			return foldFloats(op, float64(x), float64(y))
		}
		switch x {
		case 0:
			if y == 0 {
				return nodes.NewConst(int64(1)), true
			}
			return nodes.NewConst(int64(0)), true
		case 1:
			return nodes.NewConst(int64(1)), true
		case -1:
			if y%2 == 0 {
				return nodes.NewConst(int64(1)), true
			}
			return nodes.NewConst(int64(-1)), true
		}
		result := int64(1)
		for range y {
			next := result * x
			if next/x != result {
				return overflow()
			}
			result = next
		}
		return nodes.NewConst(result), true
	case "<<":
		if y < 0 {
			return Uninferable, true
		}
		if y >= 63 || (x<<y)>>y != x {
			return overflow()
		}
		return nodes.NewConst(x << y), true
	case ">>":
		if y < 0 {
			return Uninferable, true
		}
		if y >= 63 {
			y = 63
		}
		return nodes.NewConst(x >> y), true
	case "&":
		return nodes.NewConst(x & y), true
	case "|":
		return nodes.NewConst(x | y), true
	case "^":
		return nodes.NewConst(x ^ y), true
	}
	return nil, false
}

func foldFloats(op string, x, y float64) (Value, bool) {
	switch op {
	case "+":
		return nodes.NewConst(x + y), true
	case "-":
		return nodes.NewConst(x - y), true
	case "*":
		return nodes.NewConst(x * y), true
	case "/":
		if y == 0 {
			return Uninferable, true
		}
		return nodes.NewConst(x / y), true
	case "//":
		if y == 0 {
			return Uninferable, true
		}
		return nodes.NewConst(math.Floor(x / y)), true
	case "%":
		if y == 0 {
			return Uninferable, true
		}
		m := math.Mod(x, y)
		if m != 0 && (m < 0) != (y < 0) {
			m += y
		}
		return nodes.NewConst(m), true
	case "**":
		if x == 0 && y < 0 {
			return Uninferable, true
		}
		p := math.Pow(x, y)
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return Uninferable, true
		}
		return nodes.NewConst(p), true
	}
	return nil, false
}

// foldSequences concatenates and repeats literal tuples and lists.
func foldSequences(op string, l, r Value) (Value, bool) {
	ls, lok := asNode(l, nodes.Tuple, nodes.List)
	rs, rok := asNode(r, nodes.Tuple, nodes.List)
	switch {
	case op == "+" && lok && rok && ls.Kind() == rs.Kind():
		elts := union2(ls.Elts(), rs.Elts())
		if len(elts) > MaxValues {
			return Uninferable, true
		}
		return nodes.NewSequence(ls.Kind(), elts), true
	case op == "*" && lok:
		if n, ok := constValueOf[int64](r); ok {
			return repeatSequence(ls, n)
		}
	case op == "*" && rok:
		if n, ok := constValueOf[int64](l); ok {
			return repeatSequence(rs, n)
		}
	}
	return nil, false
}

func repeatSequence(seq *nodes.Node, n int64) (Value, bool) {
	elts := seq.Elts()
	if n <= 0 || len(elts) == 0 {
		return nodes.NewSequence(seq.Kind(), nil), true
	}
	if n > int64(MaxValues/len(elts)) {
		return Uninferable, true
	}
	out := make([]*nodes.Node, 0, len(elts)*int(n))
	for range n {
		out = append(out, elts...)
	}
	return nodes.NewSequence(seq.Kind(), out), true
}

func union2(a, b []*nodes.Node) []*nodes.Node {
	out := make([]*nodes.Node, 0, len(a)+len(b))
	return append(append(out, a...), b...)
}
