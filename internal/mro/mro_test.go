package mro

import (
	"testing"

	"github.com/jward/pyrite/internal/errs"
	"github.com/jward/pyrite/internal/nodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hierarchy is a BaseInferer backed by an explicit table.
type hierarchy struct {
	tree    *nodes.Tree
	object  *nodes.Node
	classes map[string]*nodes.Node
	bases   map[*nodes.Node][][]*nodes.Node
	calls   map[*nodes.Node]int
}

func newHierarchy() *hierarchy {
	h := &hierarchy{
		tree:    nodes.NewTree("m", "m.py"),
		classes: make(map[string]*nodes.Node),
		bases:   make(map[*nodes.Node][][]*nodes.Node),
		calls:   make(map[*nodes.Node]int),
	}
	h.tree.New(nodes.Module, nodes.Position{})
	h.object = h.class("object")
	return h
}

func (h *hierarchy) class(name string) *nodes.Node {
	if c, ok := h.classes[name]; ok {
		return c
	}
	c := h.tree.New(nodes.ClassDef, nodes.Position{Line: len(h.classes) + 1})
	c.Name = name
	h.classes[name] = c
	return c
}

// define sets the bases of name; each base is one unambiguous class.
func (h *hierarchy) define(name string, bases ...string) *nodes.Node {
	c := h.class(name)
	var decl [][]*nodes.Node
	for _, b := range bases {
		decl = append(decl, []*nodes.Node{h.class(b)})
	}
	h.bases[c] = decl
	return c
}

func (h *hierarchy) InferBases(class *nodes.Node) [][]*nodes.Node {
	h.calls[class]++
	return h.bases[class]
}

func (h *hierarchy) resolver(maxDepth int) *Resolver {
	return New(h, func() *nodes.Node { return h.object }, maxDepth)
}

func names(classes []*nodes.Node) []string {
	out := make([]string, len(classes))
	for i, c := range classes {
		out[i] = c.Name
	}
	return out
}

func TestComputeC3(t *testing.T) {
	t.Parallel()

	h := newHierarchy()
	h.define("F", "object")
	h.define("E", "object")
	h.define("D", "object")
	h.define("C", "D", "F")
	h.define("B", "D", "E")
	a := h.define("A", "B", "C")

	got, err := h.resolver(0).Compute(a)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F", "object"}, names(got))
}

func TestComputeImplicitObject(t *testing.T) {
	t.Parallel()

	h := newHierarchy()
	c := h.define("C")
	r := h.resolver(0)

	got, err := r.Compute(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "object"}, names(got))

	got, err = r.Compute(h.object)
	require.NoError(t, err)
	assert.Equal(t, []string{"object"}, names(got))
}

func TestComputeDuplicateBases(t *testing.T) {
	t.Parallel()

	h := newHierarchy()
	h.define("B")
	x := h.define("X", "B", "B")

	_, err := h.resolver(0).Compute(x)
	assert.ErrorIs(t, err, errs.ErrDuplicateBases)
	assert.ErrorIs(t, err, errs.ErrMro)
}

func TestComputeInconsistentDiamond(t *testing.T) {
	t.Parallel()

	h := newHierarchy()
	h.define("B")
	h.define("C")
	h.define("A", "B", "C")
	h.define("D", "C", "B")
	x := h.define("X", "A", "D")

	_, err := h.resolver(0).Compute(x)
	assert.ErrorIs(t, err, errs.ErrInconsistentMro)
}

func TestComputeUnresolvableBaseDegrades(t *testing.T) {
	t.Parallel()

	h := newHierarchy()
	c := h.class("C")
	h.bases[c] = [][]*nodes.Node{{}}
	d := h.define("D", "C")
	r := h.resolver(0)

	got, err := r.Compute(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "object"}, names(got))

	got, err = r.Compute(d)
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "C", "object"}, names(got))

	_, err = r.ComputeStrict(d)
	assert.ErrorIs(t, err, errs.ErrMro)
}

func TestComputeAmbiguousBasesTriesEachCandidate(t *testing.T) {
	t.Parallel()

	h := newHierarchy()
	y := h.define("Y")
	z := h.define("Z")
	x := h.class("X")
	// First candidate combination (Y, Y) cannot be linearised.
	h.bases[x] = [][]*nodes.Node{{y, z}, {y}}

	got, err := h.resolver(0).Compute(x)
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Z", "Y", "object"}, names(got))
}

func TestComputeAmbiguousBasesAllFail(t *testing.T) {
	t.Parallel()

	h := newHierarchy()
	h.define("B")
	h.define("C")
	a := h.define("A", "B", "C")
	d := h.define("D", "C", "B")
	x := h.class("X")
	h.bases[x] = [][]*nodes.Node{{a, d}, {d, a}}

	_, err := h.resolver(0).Compute(x)
	assert.ErrorIs(t, err, errs.ErrMro)
}

func TestComputeTooManyLevels(t *testing.T) {
	t.Parallel()

	h := newHierarchy()
	prev := "object"
	for _, name := range []string{"L1", "L2", "L3", "L4", "L5", "L6"} {
		h.define(name, prev)
		prev = name
	}

	_, err := h.resolver(3).Compute(h.classes["L6"])
	assert.ErrorIs(t, err, errs.ErrTooManyLevels)

	got, err := h.resolver(10).Compute(h.classes["L6"])
	require.NoError(t, err)
	assert.Len(t, got, 7)
}

func TestComputeCycle(t *testing.T) {
	t.Parallel()

	h := newHierarchy()
	h.define("A", "B")
	b := h.define("B", "A")

	_, err := h.resolver(0).Compute(b)
	assert.ErrorIs(t, err, errs.ErrMro)
}

func TestComputeIsMemoised(t *testing.T) {
	t.Parallel()

	h := newHierarchy()
	h.define("B")
	a := h.define("A", "B")
	r := h.resolver(0)

	first, err := r.Compute(a)
	require.NoError(t, err)
	second, err := r.Compute(a)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.calls[a])
	assert.Equal(t, 1, h.calls[h.classes["B"]])
	require.NotNil(t, a.CachedMRO())
}
