package pyrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/pyrite/internal/store"
)

// seedImportGraph indexes app -> svc -> db -> os and cli -> app.
func seedImportGraph(t *testing.T, s *store.Store) {
	t.Helper()
	app := insertModule(t, s, "app", 10)
	svc := insertModule(t, s, "svc", 10)
	db := insertModule(t, s, "db", 10)
	cli := insertModule(t, s, "cli", 10)
	insertImport(t, s, app, "svc", 1)
	insertImport(t, s, svc, "db", 1)
	insertImport(t, s, db, "os", 1)
	insertImport(t, s, cli, "app", 2)
	alias := "j"
	_, err := s.InsertImport(&store.Import{ModuleID: app.ID, Imported: "json", Alias: &alias, Line: 2})
	require.NoError(t, err)
}

func TestDependencies(t *testing.T) {
	t.Parallel()
	q, s := newTestQueryBuilder(t)
	seedImportGraph(t, s)

	deps, err := q.Dependencies("app")
	require.NoError(t, err)
	assert.Equal(t, []ImportEdge{
		{From: "app", To: "svc", Line: 1, Resolved: true},
		{From: "app", To: "json", Alias: "j", Line: 2},
	}, deps)

	_, err = q.Dependencies("ghost")
	assert.Error(t, err)
}

func TestDependents(t *testing.T) {
	t.Parallel()
	q, s := newTestQueryBuilder(t)
	seedImportGraph(t, s)

	direct, err := q.Dependents("db", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"svc"}, direct)

	all, err := q.Dependents("db", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "cli", "svc"}, all)
}

func TestImportClosure(t *testing.T) {
	t.Parallel()
	q, s := newTestQueryBuilder(t)
	seedImportGraph(t, s)

	g, err := q.ImportClosure("app", 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"app": 0, "svc": 1, "json": 1, "db": 2, "os": 3}, g.Nodes)
	assert.Len(t, g.Edges, 4)

	g, err = q.ImportClosure("app", 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"app": 0, "svc": 1, "json": 1}, g.Nodes)
}
