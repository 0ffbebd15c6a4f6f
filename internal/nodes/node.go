package nodes

import (
	"fmt"
	"sync/atomic"
)

// ID is a node handle within its Tree.
type ID int32

// NoID marks an empty slot.
const NoID ID = -1

// Position is a source span. Lines are 1-based, columns 0-based.
type Position struct {
	Line    int
	Col     int
	EndLine int
	EndCol  int
}

// Before reports whether p starts strictly before o.
func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Col < o.Col
}

// Contains reports whether the point (line, col) falls inside p.
func (p Position) Contains(line, col int) bool {
	if line < p.Line || line > p.EndLine {
		return false
	}
	if line == p.Line && col < p.Col {
		return false
	}
	if line == p.EndLine && col >= p.EndCol {
		return false
	}
	return true
}

// Bytes is a bytes literal payload.
type Bytes string

// Ellipsis is the payload of the `...` literal.
type Ellipsis struct{}

// Alias is one imported name: `import a.b as c`, `from m import x as y`.
type Alias struct {
	Name   string
	AsName string
}

// Bound returns the local name the alias binds.
func (a Alias) Bound() string {
	if a.AsName != "" {
		return a.AsName
	}
	return a.Name
}

// Slot names a single-child field.
type Slot uint8

const (
	SlotValue      Slot = iota // Attribute/Subscript/Keyword/Starred/Assign/Return/Expr/Raise value, UnaryOp operand, Lambda body, IfExp body, ExceptHandler type
	SlotLeft                   // BinOp/Compare left
	SlotRight                  // BinOp right
	SlotFunc                   // Call callee
	SlotTest                   // If/While/IfExp condition
	SlotAlt                    // IfExp else branch
	SlotTarget                 // For/AugAssign/AnnAssign/ExceptHandler target
	SlotIter                   // For iterable
	SlotArgs                   // FunctionDef/Lambda Arguments
	SlotSlice                  // Subscript index
	SlotAnnotation             // AnnAssign annotation
	SlotReturns                // FunctionDef return annotation
	SlotVararg                 // Arguments *args
	SlotKwarg                  // Arguments **kwargs
	numSlots
)

// ListField names a multi-child field.
type ListField uint8

const (
	ListBody ListField = iota
	ListOrElse
	ListHandlers
	ListFinal
	ListElts     // List/Tuple/Set elements, BoolOp values, Compare comparators, Dict values
	ListKeys     // Dict keys
	ListCallArgs // Call positional arguments
	ListKeywords // Call/ClassDef keywords
	ListBases
	ListDecorators
	ListTargets // Assign/Delete targets
	ListParams
	ListDefaults
	ListKwOnly
	ListKwDefaults // aligned with ListKwOnly, NoID where there is no default
	numLists
)

var treeSerial atomic.Uint64

// Tree is the arena holding every node of one module. Parent, child and
// locals relations are ID handles into the arena.
type Tree struct {
	serial  uint64
	nodes   []*Node
	Name    string
	Path    string
	Package bool
	Source  []byte

	synthetic bool
}

// NewTree creates an empty arena for the module name at path.
func NewTree(name, path string) *Tree {
	return &Tree{serial: treeSerial.Add(1), Name: name, Path: path}
}

// Serial is unique per Tree in the process.
func (t *Tree) Serial() uint64 { return t.serial }

// Len returns the number of allocated nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// New allocates a detached node of the given kind.
func (t *Tree) New(kind Kind, pos Position) *Node {
	n := &Node{
		tree:   t,
		id:     ID(len(t.nodes)),
		kind:   kind,
		parent: NoID,
		Pos:    pos,
	}
	for i := range n.slots {
		n.slots[i] = NoID
	}
	if kind.IsScope() {
		n.locals = newLocals()
	}
	if kind == ClassDef {
		n.instanceAttrs = newLocals()
	}
	t.nodes = append(t.nodes, n)
	return n
}

// Node resolves a handle. NoID yields nil.
func (t *Tree) Node(id ID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Root returns the first Module node allocated in the tree.
func (t *Tree) Root() *Node {
	if len(t.nodes) == 0 {
		return nil
	}
	return t.nodes[0]
}

// MROEntry is the memoised linearisation of a class.
type MROEntry struct {
	Classes []*Node
	Err     error
}

// Node is one element of the semantic tree.
type Node struct {
	tree   *Tree
	id     ID
	kind   Kind
	parent ID

	Ctx     Context
	Name    string // def/class name, referenced name, attribute, keyword arg, ImportFrom module
	Op      string
	Ops     []string
	Literal any // Const payload: int64, float64, string, Bytes, bool, Ellipsis or nil (None)
	Level   int
	Aliases []Alias
	Names   []string // Global/Nonlocal declared names
	Pos     Position

	// Generator is set on functions whose body yields.
	Generator bool

	slots [numSlots]ID
	lists [numLists][]ID

	locals        *Locals
	instanceAttrs *Locals
	globals       map[string]bool
	nonlocals     map[string]bool

	// extElts holds elements of synthetic containers built during
	// inference; those elements belong to other trees.
	extElts []*Node

	mro atomic.Pointer[MROEntry]
}

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// ID returns the node's handle in its tree.
func (n *Node) ID() ID { return n.id }

// Tree returns the owning arena.
func (n *Node) Tree() *Tree { return n.tree }

// Key is unique across every tree in the process.
func (n *Node) Key() uint64 { return n.tree.serial<<32 | uint64(uint32(n.id)) }

// Parent returns the owning node, or nil for a root.
func (n *Node) Parent() *Node { return n.tree.Node(n.parent) }

// Root returns the module node of the owning tree.
func (n *Node) Root() *Node {
	cur := n
	for p := cur.Parent(); p != nil; p = cur.Parent() {
		cur = p
	}
	return cur
}

// Slot returns a single-child field.
func (n *Node) Slot(s Slot) *Node { return n.tree.Node(n.slots[s]) }

// List returns a multi-child field. NoID entries come back as nil.
func (n *Node) List(f ListField) []*Node {
	if f == ListElts && n.extElts != nil {
		return n.extElts
	}
	ids := n.lists[f]
	if len(ids) == 0 {
		return nil
	}
	out := make([]*Node, len(ids))
	for i, id := range ids {
		out[i] = n.tree.Node(id)
	}
	return out
}

// SetSlot attaches child to a single-child field and makes n its parent.
func (n *Node) SetSlot(s Slot, child *Node) {
	if child == nil {
		n.slots[s] = NoID
		return
	}
	n.mustOwn(child)
	child.parent = n.id
	n.slots[s] = child.id
}

// Append attaches child to the end of a multi-child field. A nil child
// appends NoID, which keeps aligned fields (ListKwDefaults) in step.
func (n *Node) Append(f ListField, child *Node) {
	if child == nil {
		n.lists[f] = append(n.lists[f], NoID)
		return
	}
	n.mustOwn(child)
	child.parent = n.id
	n.lists[f] = append(n.lists[f], child.id)
}

func (n *Node) mustOwn(child *Node) {
	if child.tree != n.tree {
		panic(fmt.Sprintf("nodes: %s and %s belong to different trees", n, child))
	}
}

// ReplaceChild swaps old for repl in whichever field holds old. repl must be
// a node of the same tree; old is detached.
func (n *Node) ReplaceChild(old, repl *Node) bool {
	n.mustOwn(repl)
	for i, id := range n.slots {
		if id == old.id {
			n.slots[i] = repl.id
			repl.parent = n.id
			old.parent = NoID
			return true
		}
	}
	for f := range n.lists {
		for i, id := range n.lists[f] {
			if id == old.id {
				n.lists[f][i] = repl.id
				repl.parent = n.id
				old.parent = NoID
				return true
			}
		}
	}
	return false
}

// Children returns the owned children in source order.
func (n *Node) Children() []*Node {
	var out []*Node
	slot := func(s Slot) {
		if c := n.Slot(s); c != nil {
			out = append(out, c)
		}
	}
	list := func(f ListField) {
		for _, id := range n.lists[f] {
			if c := n.tree.Node(id); c != nil {
				out = append(out, c)
			}
		}
	}

	switch n.kind {
	case Module:
		list(ListBody)
	case ClassDef:
		list(ListDecorators)
		list(ListBases)
		list(ListKeywords)
		list(ListBody)
	case FunctionDef:
		list(ListDecorators)
		slot(SlotArgs)
		slot(SlotReturns)
		list(ListBody)
	case Lambda:
		slot(SlotArgs)
		slot(SlotValue)
	case Arguments:
		list(ListParams)
		slot(SlotVararg)
		list(ListKwOnly)
		slot(SlotKwarg)
		list(ListDefaults)
		list(ListKwDefaults)
	case Call:
		slot(SlotFunc)
		list(ListCallArgs)
		list(ListKeywords)
	case BinOp:
		slot(SlotLeft)
		slot(SlotRight)
	case Compare:
		slot(SlotLeft)
		list(ListElts)
	case Dict:
		keys, vals := n.lists[ListKeys], n.lists[ListElts]
		for i := range vals {
			if i < len(keys) {
				if k := n.tree.Node(keys[i]); k != nil {
					out = append(out, k)
				}
			}
			if v := n.tree.Node(vals[i]); v != nil {
				out = append(out, v)
			}
		}
	case List, Tuple, Set, BoolOp:
		list(ListElts)
	case Subscript:
		slot(SlotValue)
		slot(SlotSlice)
	case IfExp:
		slot(SlotValue)
		slot(SlotTest)
		slot(SlotAlt)
	case Assign:
		list(ListTargets)
		slot(SlotValue)
	case AugAssign:
		slot(SlotTarget)
		slot(SlotValue)
	case AnnAssign:
		slot(SlotTarget)
		slot(SlotAnnotation)
		slot(SlotValue)
	case If, While:
		slot(SlotTest)
		list(ListBody)
		list(ListOrElse)
	case For:
		slot(SlotTarget)
		slot(SlotIter)
		list(ListBody)
		list(ListOrElse)
	case Try:
		list(ListBody)
		list(ListHandlers)
		list(ListOrElse)
		list(ListFinal)
	case ExceptHandler:
		slot(SlotValue)
		slot(SlotTarget)
		list(ListBody)
	case Delete:
		list(ListTargets)
	default:
		slot(SlotValue)
	}
	return out
}

// Convenience accessors for the common fields.

func (n *Node) Value() *Node        { return n.Slot(SlotValue) }
func (n *Node) Left() *Node         { return n.Slot(SlotLeft) }
func (n *Node) Right() *Node        { return n.Slot(SlotRight) }
func (n *Node) Func() *Node         { return n.Slot(SlotFunc) }
func (n *Node) Test() *Node         { return n.Slot(SlotTest) }
func (n *Node) Target() *Node       { return n.Slot(SlotTarget) }
func (n *Node) Iter() *Node         { return n.Slot(SlotIter) }
func (n *Node) Args() *Node         { return n.Slot(SlotArgs) }
func (n *Node) Body() []*Node       { return n.List(ListBody) }
func (n *Node) Elts() []*Node       { return n.List(ListElts) }
func (n *Node) Keys() []*Node       { return n.List(ListKeys) }
func (n *Node) CallArgs() []*Node   { return n.List(ListCallArgs) }
func (n *Node) Keywords() []*Node   { return n.List(ListKeywords) }
func (n *Node) Bases() []*Node      { return n.List(ListBases) }
func (n *Node) Decorators() []*Node { return n.List(ListDecorators) }
func (n *Node) Targets() []*Node    { return n.List(ListTargets) }

// Locals returns the scope's symbol table, nil for non-scope nodes.
func (n *Node) Locals() *Locals { return n.locals }

// InstanceAttrs returns `self.x = ...` targets recorded on a class.
func (n *Node) InstanceAttrs() *Locals { return n.instanceAttrs }

// LocalNodes resolves the defining nodes bound to name in n's locals.
func (n *Node) LocalNodes(name string) []*Node {
	if n.locals == nil {
		return nil
	}
	return n.resolve(n.locals.Get(name))
}

// InstanceAttrNodes resolves the `self.name` targets of a class.
func (n *Node) InstanceAttrNodes(name string) []*Node {
	if n.instanceAttrs == nil {
		return nil
	}
	return n.resolve(n.instanceAttrs.Get(name))
}

func (n *Node) resolve(ids []ID) []*Node {
	if len(ids) == 0 {
		return nil
	}
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if c := n.tree.Node(id); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// DeclareGlobal records a `global name` statement in a function scope.
func (n *Node) DeclareGlobal(name string) {
	if n.globals == nil {
		n.globals = make(map[string]bool)
	}
	n.globals[name] = true
}

// DeclareNonlocal records a `nonlocal name` statement in a function scope.
func (n *Node) DeclareNonlocal(name string) {
	if n.nonlocals == nil {
		n.nonlocals = make(map[string]bool)
	}
	n.nonlocals[name] = true
}

// IsGlobal reports whether name was declared global in this scope.
func (n *Node) IsGlobal(name string) bool { return n.globals[name] }

// IsNonlocal reports whether name was declared nonlocal in this scope.
func (n *Node) IsNonlocal(name string) bool { return n.nonlocals[name] }

// CachedMRO returns the memoised MRO, or nil if none was stored.
func (n *Node) CachedMRO() *MROEntry { return n.mro.Load() }

// StoreMRO stores e unless another entry won the race, and returns whichever
// entry is now cached.
func (n *Node) StoreMRO(e *MROEntry) *MROEntry {
	if n.mro.CompareAndSwap(nil, e) {
		return e
	}
	return n.mro.Load()
}

// QualName returns the dotted name of a definition within its module.
func (n *Node) QualName() string {
	name := n.Name
	if n.kind == Module {
		return n.tree.Name
	}
	for s := n.Scope(); s != nil && s.kind != Module; s = s.Scope() {
		name = s.Name + "." + name
	}
	if n.tree.Name != "" {
		return n.tree.Name + "." + name
	}
	return name
}

// PyType names the Python type of the value the node denotes.
func (n *Node) PyType() string {
	switch n.kind {
	case Module:
		return "module"
	case ClassDef:
		return "type"
	case FunctionDef, Lambda:
		return "function"
	case Const:
		return literalType(n.Literal)
	case JoinedStr:
		return "str"
	case List:
		return "list"
	case Tuple:
		return "tuple"
	case Set:
		return "set"
	case Dict:
		return "dict"
	}
	return n.kind.String()
}

func literalType(v any) string {
	switch v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case Bytes:
		return "bytes"
	case Ellipsis:
		return "ellipsis"
	}
	return "object"
}

func (n *Node) String() string {
	label := n.kind.String()
	switch n.kind {
	case Module:
		label += "(" + n.tree.Name + ")"
	case ClassDef, FunctionDef, Name, Attribute, Keyword:
		label += "(" + n.Name + ")"
	case Const:
		label += fmt.Sprintf("(%s)", FormatLiteral(n.Literal))
	case BinOp, UnaryOp, BoolOp, AugAssign:
		label += "(" + n.Op + ")"
	}
	if n.Pos.Line > 0 {
		label += fmt.Sprintf(" @%d:%d", n.Pos.Line, n.Pos.Col)
	}
	return label
}

// FormatLiteral renders a Const payload the way Python's repr would.
func FormatLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return fmt.Sprintf("%q", x)
	case Bytes:
		return fmt.Sprintf("b%q", string(x))
	case Ellipsis:
		return "Ellipsis"
	default:
		return fmt.Sprint(x)
	}
}

// NewConst builds a detached Const in its own tree. Used for values
// computed during inference.
func NewConst(v any) *Node {
	t := NewTree("", "")
	t.synthetic = true
	n := t.New(Const, Position{})
	n.Literal = v
	return n
}

// NewSequence builds a detached List, Tuple or Set whose elements are nodes
// owned by other trees.
func NewSequence(kind Kind, elts []*Node) *Node {
	t := NewTree("", "")
	t.synthetic = true
	n := t.New(kind, Position{})
	n.extElts = append([]*Node{}, elts...)
	if n.extElts == nil {
		n.extElts = []*Node{}
	}
	return n
}

// IsSynthetic reports whether n was built during inference rather than
// parsed.
func (n *Node) IsSynthetic() bool { return n.tree.synthetic }
