package nodes

import (
	"testing"

	"github.com/jward/pyrite/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(line, col int) Position {
	return Position{Line: line, Col: col, EndLine: line, EndCol: col + 1}
}

// fixture builds small trees by hand, registering bindings the way the
// builder does.
type fixture struct {
	t   *Tree
	mod *Node
}

func newFixture(name string) *fixture {
	t := NewTree(name, name+".py")
	return &fixture{t: t, mod: t.New(Module, Position{Line: 1, EndLine: 100})}
}

func (f *fixture) name(id string, ctx Context, p Position) *Node {
	n := f.t.New(Name, p)
	n.Name = id
	n.Ctx = ctx
	return n
}

// assign adds `target = value` to body of scope at line.
func (f *fixture) assign(scope *Node, target string, value *Node, line int) *Node {
	stmt := f.t.New(Assign, at(line, 0))
	tgt := f.name(target, Store, at(line, 0))
	stmt.Append(ListTargets, tgt)
	stmt.SetSlot(SlotValue, value)
	scope.Append(ListBody, stmt)
	scope.AddLocal(target, tgt)
	return tgt
}

func (f *fixture) constant(v any, line int) *Node {
	c := f.t.New(Const, at(line, 4))
	c.Literal = v
	return c
}

// ref adds `_ = <name>` at line and returns the Load reference.
func (f *fixture) ref(scope *Node, id string, line int) *Node {
	r := f.name(id, Load, at(line, 4))
	stmt := f.t.New(Expr, Position{Line: line, EndLine: line, EndCol: 80})
	stmt.SetSlot(SlotValue, r)
	scope.Append(ListBody, stmt)
	return r
}

func (f *fixture) function(scope *Node, name string, line int, params ...string) *Node {
	fn := f.t.New(FunctionDef, Position{Line: line, EndLine: line + 10})
	fn.Name = name
	args := f.t.New(Arguments, at(line, 8))
	for _, p := range params {
		pn := f.name(p, Store, at(line, 9))
		args.Append(ListParams, pn)
		fn.AddLocal(p, pn)
	}
	fn.SetSlot(SlotArgs, args)
	scope.Append(ListBody, fn)
	scope.AddLocal(name, fn)
	return fn
}

// =====================================================================
// Tree and parent invariants
// =====================================================================

func TestChildrenParentInvariant(t *testing.T) {
	t.Parallel()

	f := newFixture("m")
	f.assign(f.mod, "x", f.constant(int64(1), 1), 1)
	fn := f.function(f.mod, "g", 2, "a", "b")
	f.ref(fn, "a", 3)

	Walk(f.mod, func(n *Node) bool {
		for _, c := range n.Children() {
			require.Equal(t, n, c.Parent(), "child %s of %s", c, n)
		}
		return true
	})
	assert.Nil(t, f.mod.Parent())
	assert.Equal(t, f.mod, fn.Root())
}

func TestLocalsPreserveOrder(t *testing.T) {
	t.Parallel()

	f := newFixture("m")
	f.assign(f.mod, "b", f.constant(int64(1), 1), 1)
	f.assign(f.mod, "a", f.constant(int64(2), 2), 2)
	second := f.assign(f.mod, "b", f.constant(int64(3), 3), 3)

	assert.Equal(t, []string{"b", "a"}, f.mod.Locals().Names())
	defs := f.mod.LocalNodes("b")
	require.Len(t, defs, 2)
	assert.Equal(t, second, defs[1])
}

func TestKeysAreUniqueAcrossTrees(t *testing.T) {
	t.Parallel()

	a := newFixture("a")
	b := newFixture("b")
	assert.NotEqual(t, a.mod.Key(), b.mod.Key())
	assert.Equal(t, ID(0), a.mod.ID())
}

func TestReplaceChild(t *testing.T) {
	t.Parallel()

	f := newFixture("m")
	old := f.constant(int64(1), 1)
	f.assign(f.mod, "x", old, 1)
	stmt := old.Parent()
	repl := f.constant(int64(2), 1)

	require.True(t, stmt.ReplaceChild(old, repl))
	assert.Equal(t, repl, stmt.Value())
	assert.Equal(t, stmt, repl.Parent())
	assert.Nil(t, old.Parent())
}

func TestStoreMROFirstWriterWins(t *testing.T) {
	t.Parallel()

	f := newFixture("m")
	cls := f.t.New(ClassDef, at(1, 0))
	first := &MROEntry{Classes: []*Node{cls}}
	second := &MROEntry{}

	assert.Nil(t, cls.CachedMRO())
	assert.Same(t, first, cls.StoreMRO(first))
	assert.Same(t, first, cls.StoreMRO(second))
	assert.Same(t, first, cls.CachedMRO())
}

// =====================================================================
// Scope and lookup
// =====================================================================

func TestScopeOfParametersAndDefaults(t *testing.T) {
	t.Parallel()

	f := newFixture("m")
	fn := f.function(f.mod, "g", 1, "a")
	args := fn.Args()
	def := f.constant(int64(0), 1)
	args.Append(ListDefaults, def)

	assert.Equal(t, fn, args.Params()[0].Scope())
	assert.Equal(t, f.mod, def.Scope())
	assert.Equal(t, f.mod, fn.Scope())

	got, err := args.DefaultValue("a")
	require.NoError(t, err)
	assert.Equal(t, def, got)
}

func TestDefaultValueMissing(t *testing.T) {
	t.Parallel()

	f := newFixture("m")
	fn := f.function(f.mod, "g", 1, "a", "b")
	fn.Args().Append(ListDefaults, f.constant(int64(0), 1))

	_, err := fn.Args().DefaultValue("a")
	assert.ErrorIs(t, err, errs.ErrNoDefault)
	_, err = fn.Args().DefaultValue("b")
	assert.NoError(t, err)
}

func TestLookupSeesOnlyEarlierBindingsInSameScope(t *testing.T) {
	t.Parallel()

	f := newFixture("m")
	first := f.assign(f.mod, "x", f.constant(int64(1), 1), 1)
	r := f.ref(f.mod, "x", 2)
	f.assign(f.mod, "x", f.constant(int64(2), 3), 3)

	scope, defs, err := r.Lookup("x")
	require.NoError(t, err)
	assert.Equal(t, f.mod, scope)
	assert.Equal(t, []*Node{first}, defs)
}

func TestLookupLaterUnconditionalBindingShadows(t *testing.T) {
	t.Parallel()

	f := newFixture("m")
	f.assign(f.mod, "x", f.constant(int64(1), 1), 1)
	second := f.assign(f.mod, "x", f.constant(int64(2), 2), 2)
	r := f.ref(f.mod, "x", 3)

	_, defs, err := r.Lookup("x")
	require.NoError(t, err)
	assert.Equal(t, []*Node{second}, defs)
}

func TestLookupAfterDelIsUnresolvable(t *testing.T) {
	t.Parallel()

	f := newFixture("m")
	f.assign(f.mod, "x", f.constant(int64(1), 1), 1)
	before := f.ref(f.mod, "x", 2)

	del := f.t.New(Delete, at(3, 0))
	dn := f.name("x", Del, at(3, 4))
	del.Append(ListTargets, dn)
	f.mod.Append(ListBody, del)
	f.mod.AddLocal("x", dn)

	after := f.ref(f.mod, "x", 4)

	_, defs, err := before.Lookup("x")
	require.NoError(t, err)
	assert.Len(t, defs, 1)

	_, _, err = after.Lookup("x")
	assert.ErrorIs(t, err, errs.ErrUnresolvableName)
}

func TestLookupRebindAfterDel(t *testing.T) {
	t.Parallel()

	f := newFixture("m")
	f.assign(f.mod, "x", f.constant(int64(1), 1), 1)
	del := f.t.New(Delete, at(2, 0))
	dn := f.name("x", Del, at(2, 4))
	del.Append(ListTargets, dn)
	f.mod.Append(ListBody, del)
	f.mod.AddLocal("x", dn)
	rebound := f.assign(f.mod, "x", f.constant(int64(3), 3), 3)
	r := f.ref(f.mod, "x", 4)

	_, defs, err := r.Lookup("x")
	require.NoError(t, err)
	assert.Equal(t, []*Node{rebound}, defs)
}

func TestLookupFunctionSeesModuleAndParams(t *testing.T) {
	t.Parallel()

	f := newFixture("m")
	fn := f.function(f.mod, "g", 1, "a")
	inner := f.ref(fn, "a", 2)
	glob := f.ref(fn, "CONST", 3)
	constDef := f.assign(f.mod, "CONST", f.constant(int64(7), 20), 20)

	scope, defs, err := inner.Lookup("a")
	require.NoError(t, err)
	assert.Equal(t, fn, scope)
	assert.Equal(t, "a", defs[0].Name)

	// Module bindings after the function are visible from its body.
	scope, defs, err = glob.Lookup("CONST")
	require.NoError(t, err)
	assert.Equal(t, f.mod, scope)
	assert.Equal(t, []*Node{constDef}, defs)
}

func TestLookupUnknownNameFallsThrough(t *testing.T) {
	t.Parallel()

	f := newFixture("m")
	r := f.ref(f.mod, "len", 1)
	scope, defs, err := r.Lookup("len")
	require.NoError(t, err)
	assert.Nil(t, scope)
	assert.Empty(t, defs)
}

func TestLookupSkipsClassScopeFromMethods(t *testing.T) {
	t.Parallel()

	f := newFixture("m")
	modX := f.assign(f.mod, "x", f.constant(int64(1), 1), 1)
	cls := f.t.New(ClassDef, Position{Line: 2, EndLine: 10})
	cls.Name = "C"
	f.mod.Append(ListBody, cls)
	f.mod.AddLocal("C", cls)
	f.assign(cls, "x", f.constant(int64(2), 3), 3)
	meth := f.function(cls, "m", 4, "self")
	r := f.ref(meth, "x", 5)

	_, defs, err := r.Lookup("x")
	require.NoError(t, err)
	assert.Equal(t, []*Node{modX}, defs)
	assert.Equal(t, Method, meth.FunctionType())
	assert.Equal(t, "m.C.m", meth.QualName())
}

func TestLookupGlobalDeclaration(t *testing.T) {
	t.Parallel()

	f := newFixture("m")
	modX := f.assign(f.mod, "x", f.constant(int64(1), 1), 1)
	fn := f.function(f.mod, "g", 2)
	fn.DeclareGlobal("x")
	r := f.ref(fn, "x", 3)

	scope, defs, err := r.Lookup("x")
	require.NoError(t, err)
	assert.Equal(t, f.mod, scope)
	assert.Equal(t, []*Node{modX}, defs)
}

// =====================================================================
// Grafting
// =====================================================================

func TestGraftCopiesSubtreeAndRemapsLocals(t *testing.T) {
	t.Parallel()

	ext := newFixture("ext")
	cls := ext.t.New(ClassDef, Position{Line: 5, EndLine: 9})
	cls.Name = "Foo"
	ext.mod.Append(ListBody, cls)
	ext.mod.AddLocal("Foo", cls)
	ext.assign(cls, "attr", ext.constant("v", 6), 6)

	target := newFixture("target")
	r := target.ref(target.mod, "Foo", 1)

	cp, mapping := target.mod.Graft(cls, ListBody)
	target.mod.AddLocal("Foo", target.t.Node(mapping[cls.ID()]))

	assert.Equal(t, target.mod, cp.Parent())
	assert.Same(t, target.t, cp.Tree())
	assert.Contains(t, target.mod.Children(), cp)
	require.Len(t, cp.LocalNodes("attr"), 1)
	assert.Same(t, target.t, cp.LocalNodes("attr")[0].Tree())

	// Grafted definitions are visible to earlier native statements.
	_, defs, err := r.Lookup("Foo")
	require.NoError(t, err)
	assert.Equal(t, []*Node{cp}, defs)
}

func TestNodeAt(t *testing.T) {
	t.Parallel()

	f := newFixture("m")
	r := f.ref(f.mod, "x", 3)
	assert.Equal(t, r, NodeAt(f.mod, 3, 4))
	assert.Nil(t, NodeAt(f.mod, 50, 0))
}

func TestDottedNameAndDecorators(t *testing.T) {
	t.Parallel()

	f := newFixture("m")
	cls := f.t.New(ClassDef, Position{Line: 1, EndLine: 10})
	f.mod.Append(ListBody, cls)
	fn := f.function(cls, "size", 2, "self")
	dec := f.name("property", Load, at(1, 1))
	fn.Append(ListDecorators, dec)

	assert.Equal(t, []string{"property"}, fn.DecoratorNames())
	assert.Equal(t, PropertyMethod, fn.FunctionType())

	attr := f.t.New(Attribute, at(1, 1))
	attr.Name = "setter"
	attr.SetSlot(SlotValue, f.name("size", Load, at(1, 1)))
	name, ok := DottedName(attr)
	require.True(t, ok)
	assert.Equal(t, "size.setter", name)
}
