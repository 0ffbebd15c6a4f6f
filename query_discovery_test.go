package pyrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/pyrite/internal/store"
)

func symbolNames(items []SymbolResult) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestModules_PrefixAndPaging(t *testing.T) {
	t.Parallel()
	q, s := newTestQueryBuilder(t)
	insertModule(t, s, "app", 10)
	insertModule(t, s, "app.models", 30)
	insertModule(t, s, "app.views", 20)
	insertModule(t, s, "application", 5)

	res, err := q.Modules("app", Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)
	var names []string
	for _, m := range res.Items {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"app", "app.models", "app.views"}, names)

	res, err = q.Modules("", Sort{Field: SortByLine, Order: Desc}, Pagination{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalCount)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "app.models", res.Items[0].Name)
	assert.Equal(t, "app.views", res.Items[1].Name)
}

func TestSearchSymbols_Glob(t *testing.T) {
	t.Parallel()
	q, s := newTestQueryBuilder(t)
	mod := insertModule(t, s, "pkg.util", 40)
	insertSymbol(t, s, mod, nil, "parse_args", store.KindFunction, 1)
	insertSymbol(t, s, mod, nil, "parse_env", store.KindFunction, 5)
	insertSymbol(t, s, mod, nil, "parser", store.KindVariable, 9)
	insertSymbol(t, s, mod, nil, "render", store.KindFunction, 12)

	res, err := q.SearchSymbols("parse_*", SymbolFilter{}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, []string{"parse_args", "parse_env"}, symbolNames(res.Items))
	assert.Equal(t, "pkg.util", res.Items[0].ModuleName)
	assert.Equal(t, "/src/pkg.util.py", res.Items[0].ModulePath)

	res, err = q.SearchSymbols("*", SymbolFilter{Kinds: []string{store.KindFunction}}, Sort{Field: SortByLine, Order: Desc}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, []string{"render", "parse_env", "parse_args"}, symbolNames(res.Items))

	// An underscore in the pattern is literal.
	res, err = q.SearchSymbols("parse_", SymbolFilter{}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Zero(t, res.TotalCount)
}

func TestSymbols_Filters(t *testing.T) {
	t.Parallel()
	q, s := newTestQueryBuilder(t)
	models := insertModule(t, s, "app.models", 40)
	other := insertModule(t, s, "lib", 10)
	user := insertClass(t, s, models, "User", 3, nil)
	insertSymbol(t, s, models, nil, "User", store.KindClass, 3)
	insertSymbol(t, s, models, user, "save", store.KindMethod, 5)
	insertSymbol(t, s, models, user, "name", store.KindVariable, 4)
	insertSymbol(t, s, other, nil, "helper", store.KindFunction, 1)

	classID := user.ID
	res, err := q.Symbols(SymbolFilter{ClassID: &classID}, Sort{Field: SortByLine}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "save"}, symbolNames(res.Items))

	prefix := "app"
	res, err = q.Symbols(SymbolFilter{ModulePrefix: &prefix}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)

	scope := "app.models"
	res, err = q.Symbols(SymbolFilter{Scope: &scope}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, []string{"User"}, symbolNames(res.Items))

	modID := other.ID
	res, err = q.Symbols(SymbolFilter{ModuleID: &modID}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, []string{"helper"}, symbolNames(res.Items))
}

func TestSummary(t *testing.T) {
	t.Parallel()
	q, s := newTestQueryBuilder(t)

	empty, err := q.Summary()
	require.NoError(t, err)
	assert.Zero(t, empty.Modules)
	assert.True(t, empty.LastIndexed.IsZero())

	mod := insertModule(t, s, "m", 12)
	insertClass(t, s, mod, "A", 1, []string{"m.A", "builtins.object"})
	bad := &store.Class{ModuleID: mod.ID, Name: "B", QualName: "m.B", MROError: "cannot linearise"}
	_, err = s.InsertClass(bad)
	require.NoError(t, err)
	insertSymbol(t, s, mod, nil, "A", store.KindClass, 1)
	insertSymbol(t, s, mod, nil, "f", store.KindFunction, 4)
	insertImport(t, s, mod, "os", 1)

	sum, err := q.Summary()
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Modules)
	assert.Equal(t, 12, sum.Lines)
	assert.Equal(t, 2, sum.Classes)
	assert.Equal(t, 1, sum.MROErrors)
	assert.Equal(t, 2, sum.Symbols)
	assert.Equal(t, 1, sum.Imports)
	assert.Equal(t, map[string]int{store.KindClass: 1, store.KindFunction: 1}, sum.KindCounts)
	assert.False(t, sum.LastIndexed.IsZero())
}
