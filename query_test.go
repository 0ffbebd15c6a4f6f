package pyrite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/pyrite/internal/store"
)

func newTestQueryBuilder(t *testing.T) (*QueryBuilder, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return &QueryBuilder{store: s}, s
}

func insertModule(t *testing.T, s *store.Store, name string, lines int) *store.Module {
	t.Helper()
	now := time.Now().UTC()
	m := &store.Module{Name: name, Path: "/src/" + name + ".py", Hash: "h", LineCount: lines, LastIndexed: now}
	_, err := s.InsertModule(m)
	require.NoError(t, err)
	return m
}

func insertClass(t *testing.T, s *store.Store, mod *store.Module, name string, line int, mro []string, bases ...string) *store.Class {
	t.Helper()
	c := &store.Class{ModuleID: mod.ID, Name: name, QualName: mod.Name + "." + name, StartLine: line, EndLine: line + 1, MRO: mro}
	_, err := s.InsertClass(c)
	require.NoError(t, err)
	for i, b := range bases {
		_, err := s.InsertClassBase(&store.ClassBase{ClassID: c.ID, Ordinal: i, Base: b})
		require.NoError(t, err)
	}
	return c
}

func insertSymbol(t *testing.T, s *store.Store, mod *store.Module, class *store.Class, name, kind string, line int) *store.Symbol {
	t.Helper()
	sym := &store.Symbol{ModuleID: mod.ID, Scope: mod.Name, Name: name, Kind: kind, StartLine: line}
	if class != nil {
		id := class.ID
		sym.ClassID = &id
		sym.Scope = class.QualName
	}
	_, err := s.InsertSymbol(sym)
	require.NoError(t, err)
	return sym
}

func insertImport(t *testing.T, s *store.Store, mod *store.Module, imported string, line int) {
	t.Helper()
	_, err := s.InsertImport(&store.Import{ModuleID: mod.ID, Imported: imported, Line: line})
	require.NoError(t, err)
}

func TestPagination_Normalize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Pagination{Offset: 0, Limit: defaultLimit}, Pagination{Offset: -3}.normalize())
	assert.Equal(t, Pagination{Offset: 5, Limit: maxLimit}, Pagination{Offset: 5, Limit: 10_000}.normalize())
	assert.Equal(t, Pagination{Limit: 7}, Pagination{Limit: 7}.normalize())
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `a\%b\_c\\d`, escapeLike(`a%b_c\d`))
}

func TestPrefixCols(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "s.id, s.name", prefixCols("s", "id, name"))
}
