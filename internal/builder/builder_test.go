package builder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/pyrite/internal/errs"
	"github.com/jward/pyrite/internal/nodes"
)

func buildModule(t *testing.T, src string) *nodes.Node {
	t.Helper()
	tree, err := New(nil).BuildString(context.Background(), "m", src)
	require.NoError(t, err)
	return tree.Root()
}

func single(t *testing.T, scope *nodes.Node, name string) *nodes.Node {
	t.Helper()
	defs := scope.LocalNodes(name)
	require.Len(t, defs, 1, "bindings of %s", name)
	return defs[0]
}

func TestBuildModuleLocalsInOrder(t *testing.T) {
	t.Parallel()

	mod := buildModule(t, `
x = 1
def f(a):
    return a
class C:
    pass
x = 2
`)
	assert.Equal(t, nodes.Module, mod.Kind())
	assert.Equal(t, []string{"x", "f", "C"}, mod.Locals().Names())
	assert.Len(t, mod.LocalNodes("x"), 2)
	assert.Equal(t, nodes.FunctionDef, single(t, mod, "f").Kind())
	assert.Equal(t, nodes.ClassDef, single(t, mod, "C").Kind())
}

func TestBuildFunctionParameters(t *testing.T) {
	t.Parallel()

	mod := buildModule(t, `
def f(a, b=2, *args, c, d=3, **kw):
    return a
`)
	fn := single(t, mod, "f")
	args := fn.Args()
	require.NotNil(t, args)

	var params []string
	for _, p := range args.Params() {
		params = append(params, p.Name)
	}
	assert.Equal(t, []string{"a", "b"}, params)
	assert.Equal(t, "args", args.Vararg().Name)
	assert.Equal(t, "kw", args.Kwarg().Name)
	require.Len(t, args.KwOnly(), 2)

	def, err := args.DefaultValue("b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), def.Literal)

	def, err = args.DefaultValue("d")
	require.NoError(t, err)
	assert.Equal(t, int64(3), def.Literal)

	_, err = args.DefaultValue("c")
	assert.ErrorIs(t, err, errs.ErrNoDefault)

	for _, name := range []string{"a", "b", "args", "c", "d", "kw"} {
		assert.True(t, fn.Locals().Has(name), name)
		assert.Equal(t, fn, single(t, fn, name).Scope())
	}
	assert.False(t, mod.Locals().Has("a"))
}

func TestBuildClass(t *testing.T) {
	t.Parallel()

	mod := buildModule(t, `
class B:
    pass

@decorate
class C(B, metaclass=M):
    y = 'hi'

    def __init__(self, v):
        self.z = v
        other.w = v

    @staticmethod
    def s():
        pass
`)
	c := single(t, mod, "C")
	require.Len(t, c.Bases(), 1)
	assert.Equal(t, "B", c.Bases()[0].Name)
	require.Len(t, c.Keywords(), 1)
	assert.Equal(t, "metaclass", c.Keywords()[0].Name)
	assert.Equal(t, []string{"decorate"}, c.DecoratorNames())

	assert.Equal(t, []string{"y", "__init__", "s"}, c.Locals().Names())
	assert.Equal(t, []string{"z"}, c.InstanceAttrs().Names())

	assert.Equal(t, nodes.Method, single(t, c, "__init__").FunctionType())
	assert.Equal(t, nodes.StaticMethod, single(t, c, "s").FunctionType())
	assert.Equal(t, "m.C.__init__", single(t, c, "__init__").QualName())
}

func TestBuildSyntaxError(t *testing.T) {
	t.Parallel()

	_, err := New(nil).BuildString(context.Background(), "bad", "def f(:\n    pass\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrSyntax)
	assert.ErrorIs(t, err, errs.ErrBuilding)
}

func TestBuildLiterals(t *testing.T) {
	t.Parallel()

	mod := buildModule(t, `
a = 1_000
b = 0x1F
c = 1.5
d = 'x' "y"
e = b'raw'
f = True
g = None
h = "tab\there"
i = r"\d"
j = f"{a}!"
k = ...
l = 2j
`)
	value := func(name string) *nodes.Node {
		return single(t, mod, name).Parent().Value()
	}
	assert.Equal(t, int64(1000), value("a").Literal)
	assert.Equal(t, int64(31), value("b").Literal)
	assert.Equal(t, 1.5, value("c").Literal)
	assert.Equal(t, "xy", value("d").Literal)
	assert.Equal(t, nodes.Bytes("raw"), value("e").Literal)
	assert.Equal(t, true, value("f").Literal)
	assert.Nil(t, value("g").Literal)
	assert.Equal(t, nodes.Const, value("g").Kind())
	assert.Equal(t, "tab\there", value("h").Literal)
	assert.Equal(t, `\d`, value("i").Literal)
	assert.Equal(t, nodes.JoinedStr, value("j").Kind())
	assert.Equal(t, nodes.Ellipsis{}, value("k").Literal)
	assert.Equal(t, nodes.Empty, value("l").Kind())
}

func TestBuildImports(t *testing.T) {
	t.Parallel()

	mod := buildModule(t, `
import os.path
import a.b as c
from ..pkg import x as y, z
from m import *
`)
	assert.Equal(t, []string{"os", "c", "y", "z"}, mod.Locals().Names())

	imp := single(t, mod, "os")
	assert.Equal(t, nodes.Import, imp.Kind())
	assert.Equal(t, []nodes.Alias{{Name: "os.path"}}, imp.Aliases)

	from := single(t, mod, "y")
	assert.Equal(t, nodes.ImportFrom, from.Kind())
	assert.Equal(t, "pkg", from.Name)
	assert.Equal(t, 2, from.Level)
	assert.Equal(t, []nodes.Alias{{Name: "x", AsName: "y"}, {Name: "z"}}, from.Aliases)

	star := mod.Body()[3]
	assert.Equal(t, "m", star.Name)
	assert.Equal(t, []nodes.Alias{{Name: "*"}}, star.Aliases)
}

func TestBuildGlobalBindsInModule(t *testing.T) {
	t.Parallel()

	mod := buildModule(t, `
def f():
    global g
    g = 1
    h = 2
`)
	fn := single(t, mod, "f")
	assert.True(t, mod.Locals().Has("g"))
	assert.False(t, fn.Locals().Has("g"))
	assert.True(t, fn.Locals().Has("h"))
	assert.True(t, fn.IsGlobal("g"))
}

func TestBuildWithLowersToAssign(t *testing.T) {
	t.Parallel()

	mod := buildModule(t, `
with open(p) as fh, lock:
    pass
`)
	body := mod.Body()
	require.Len(t, body, 3)
	assert.Equal(t, nodes.Assign, body[0].Kind())
	assert.Equal(t, nodes.Call, body[0].Value().Kind())
	assert.Equal(t, nodes.Expr, body[1].Kind())
	assert.Equal(t, nodes.Pass, body[2].Kind())
	assert.Equal(t, body[0], single(t, mod, "fh").Parent())
}

func TestBuildTupleTargets(t *testing.T) {
	t.Parallel()

	mod := buildModule(t, `
a, (b, *c) = t
for i, j in pairs:
    pass
`)
	assert.Equal(t, []string{"a", "b", "c", "i", "j"}, mod.Locals().Names())
	a := single(t, mod, "a")
	assert.Equal(t, nodes.Store, a.Ctx)
	assert.Equal(t, nodes.Tuple, a.Parent().Kind())
	c := single(t, mod, "c")
	assert.Equal(t, nodes.Starred, c.Parent().Kind())
	i := single(t, mod, "i")
	assert.Equal(t, nodes.For, i.Parent().Parent().Kind())
}

func TestBuildDelete(t *testing.T) {
	t.Parallel()

	mod := buildModule(t, "x = 1\ndel x\n")
	defs := mod.LocalNodes("x")
	require.Len(t, defs, 2)
	assert.Equal(t, nodes.Del, defs[1].Ctx)
	assert.Equal(t, nodes.Delete, defs[1].Parent().Kind())
}

func TestBuildGeneratorFlag(t *testing.T) {
	t.Parallel()

	mod := buildModule(t, `
def gen():
    yield 1

def plain():
    def inner():
        yield 2
    return inner
`)
	assert.True(t, single(t, mod, "gen").Generator)
	assert.False(t, single(t, mod, "plain").Generator)
}

func TestBuildControlFlow(t *testing.T) {
	t.Parallel()

	mod := buildModule(t, `
if a:
    x = 1
elif b:
    x = 2
else:
    x = 3
try:
    pass
except ValueError as err:
    pass
finally:
    pass
`)
	ifNode := mod.Body()[0]
	assert.Equal(t, nodes.If, ifNode.Kind())
	elif := ifNode.List(nodes.ListOrElse)
	require.Len(t, elif, 1)
	assert.Equal(t, nodes.If, elif[0].Kind())
	assert.Len(t, elif[0].List(nodes.ListOrElse), 1)
	assert.Len(t, mod.LocalNodes("x"), 3)

	try := mod.Body()[1]
	handlers := try.List(nodes.ListHandlers)
	require.Len(t, handlers, 1)
	assert.Equal(t, "ValueError", handlers[0].Value().Name)
	assert.Equal(t, handlers[0], single(t, mod, "err").Parent())
	assert.Len(t, try.List(nodes.ListFinal), 1)
}

func TestBuildExpressions(t *testing.T) {
	t.Parallel()

	mod := buildModule(t, `
r = a + b * c
s = not x
u = a and b and c
v = x not in y
w = p if q else z
k = d[0]
l = lambda n, m=1: n
call(1, *rest, key=2, **opts)
`)
	value := func(name string) *nodes.Node {
		return single(t, mod, name).Parent().Value()
	}
	r := value("r")
	assert.Equal(t, "+", r.Op)
	assert.Equal(t, "*", r.Right().Op)
	assert.Equal(t, "not", value("s").Op)

	u := value("u")
	assert.Equal(t, "and", u.Op)
	assert.Len(t, u.Elts(), 3)

	assert.Equal(t, []string{"not in"}, value("v").Ops)
	assert.Equal(t, nodes.IfExp, value("w").Kind())
	assert.Equal(t, nodes.Subscript, value("k").Kind())

	l := value("l")
	assert.Equal(t, nodes.Lambda, l.Kind())
	assert.True(t, l.Locals().Has("n"))

	call := mod.Body()[len(mod.Body())-1].Value()
	require.Equal(t, nodes.Call, call.Kind())
	require.Len(t, call.CallArgs(), 2)
	assert.Equal(t, nodes.Starred, call.CallArgs()[1].Kind())
	require.Len(t, call.Keywords(), 2)
	assert.Equal(t, "key", call.Keywords()[0].Name)
	assert.Equal(t, "", call.Keywords()[1].Name)
}

func TestBuildPositionsAndChildren(t *testing.T) {
	t.Parallel()

	mod := buildModule(t, "x = 1\ny = x\n")
	y := single(t, mod, "y")
	assert.Equal(t, 2, y.Pos.Line)
	assert.Equal(t, 0, y.Pos.Col)

	ref := nodes.NodeAt(mod, 2, 4)
	require.NotNil(t, ref)
	assert.Equal(t, nodes.Name, ref.Kind())
	assert.Equal(t, nodes.Load, ref.Ctx)

	nodes.Walk(mod, func(n *nodes.Node) bool {
		for _, ch := range n.Children() {
			assert.Equal(t, n, ch.Parent())
		}
		return true
	})
}
