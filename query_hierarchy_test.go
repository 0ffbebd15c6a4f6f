package pyrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/pyrite/internal/store"
)

func TestClasses_SourceOrder(t *testing.T) {
	t.Parallel()
	q, s := newTestQueryBuilder(t)
	mod := insertModule(t, s, "shapes", 20)
	insertClass(t, s, mod, "Square", 10, nil, "shapes.Shape")
	insertClass(t, s, mod, "Shape", 1, nil)

	classes, err := q.Classes("shapes")
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, "Shape", classes[0].Name)
	assert.Equal(t, "Square", classes[1].Name)
	assert.Equal(t, []string{"shapes.Shape"}, classes[1].Bases)
	assert.Equal(t, Location{File: "/src/shapes.py", StartLine: 10, EndLine: 11}, classes[1].Location())

	_, err = q.Classes("nowhere")
	assert.ErrorContains(t, err, "not indexed")
}

func TestClassMRO(t *testing.T) {
	t.Parallel()
	q, s := newTestQueryBuilder(t)
	mod := insertModule(t, s, "m", 5)
	insertClass(t, s, mod, "A", 1, []string{"m.A", "builtins.object"})
	_, err := s.InsertClass(&store.Class{ModuleID: mod.ID, Name: "Bad", QualName: "m.Bad", MROError: "inconsistent"})
	require.NoError(t, err)

	mro, err := q.ClassMRO("m.A")
	require.NoError(t, err)
	assert.Equal(t, []string{"m.A", "builtins.object"}, mro)

	_, err = q.ClassMRO("m.Bad")
	require.ErrorIs(t, err, ErrMROUnavailable)
	assert.ErrorContains(t, err, "inconsistent")

	_, err = q.ClassMRO("m.Missing")
	assert.ErrorContains(t, err, "not indexed")

	c, err := q.Class("m.Missing")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestSubclassesAndHierarchy(t *testing.T) {
	t.Parallel()
	q, s := newTestQueryBuilder(t)
	base := insertModule(t, s, "base", 5)
	app := insertModule(t, s, "app", 5)
	animal := insertClass(t, s, base, "Animal", 1, []string{"base.Animal", "builtins.object"})
	insertClass(t, s, app, "Dog", 1, nil, "base.Animal")
	insertClass(t, s, app, "Puppy", 3, nil, "app.Dog")
	insertClass(t, s, app, "Rock", 5, nil)
	insertSymbol(t, s, base, animal, "speak", store.KindMethod, 2)
	insertSymbol(t, s, base, animal, "legs", store.KindVariable, 3)

	subs, err := q.Subclasses("base.Animal")
	require.NoError(t, err)
	var names []string
	for _, c := range subs {
		names = append(names, c.QualName)
	}
	assert.Equal(t, []string{"app.Dog", "app.Puppy"}, names)
	assert.Equal(t, "app", subs[0].ModuleName)

	h, err := q.Hierarchy("base.Animal")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, []string{"base.Animal", "builtins.object"}, h.MRO)
	assert.Len(t, h.Subclasses, 2)
	assert.Equal(t, []string{"speak"}, symbolNames(h.Methods))

	h, err = q.Hierarchy("base.Nothing")
	require.NoError(t, err)
	assert.Nil(t, h)
}
