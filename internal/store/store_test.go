package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// insertTestModule inserts a module and returns it with ID set.
func insertTestModule(t *testing.T, s *Store, name, path string) *Module {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	m := &Module{Name: name, Path: path, Hash: "00000000000000ab", Version: 1, LineCount: 3, BuiltAt: now, LastIndexed: now}
	id, err := s.InsertModule(m)
	require.NoError(t, err)
	require.Positive(t, id)
	return m
}

func insertTestClass(t *testing.T, s *Store, mod *Module, name string, mro []string, bases ...string) *Class {
	t.Helper()
	c := &Class{ModuleID: mod.ID, Name: name, QualName: mod.Name + "." + name, StartLine: 1, EndLine: 2, MRO: mro}
	_, err := s.InsertClass(c)
	require.NoError(t, err)
	for i, b := range bases {
		_, err := s.InsertClassBase(&ClassBase{ClassID: c.ID, Ordinal: i, Base: b})
		require.NoError(t, err)
	}
	return c
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())

	for _, table := range []string{"modules", "classes", "class_bases", "symbols", "imports", "metadata"} {
		var name string
		err := s.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}
}

func TestModuleRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	m := insertTestModule(t, s, "pkg.mod", "/src/pkg/mod.py")

	got, err := s.ModuleByName("pkg.mod")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, "/src/pkg/mod.py", got.Path)
	assert.Equal(t, m.Hash, got.Hash)
	assert.True(t, m.BuiltAt.Equal(got.BuiltAt))

	byPath, err := s.ModuleByPath("/src/pkg/mod.py")
	require.NoError(t, err)
	require.NotNil(t, byPath)
	assert.Equal(t, m.ID, byPath.ID)

	missing, err := s.ModuleByName("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	m.Hash = "00000000000000cd"
	m.Version = 2
	require.NoError(t, s.UpdateModule(m))
	got, err = s.ModuleByID(m.ID)
	require.NoError(t, err)
	assert.Equal(t, "00000000000000cd", got.Hash)
	assert.Equal(t, int64(2), got.Version)
}

func TestModuleNameAndPathUnique(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestModule(t, s, "a", "/a.py")

	_, err := s.InsertModule(&Module{Name: "a", Path: "/a.py"})
	assert.Error(t, err)
}

func TestClassMRORoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	mod := insertTestModule(t, s, "m", "/m.py")

	insertTestClass(t, s, mod, "A", []string{"m.A", "builtins.object"}, "builtins.object")
	bad := &Class{ModuleID: mod.ID, Name: "Bad", QualName: "m.Bad", MROError: "duplicate bases"}
	_, err := s.InsertClass(bad)
	require.NoError(t, err)

	classes, err := s.ClassesByModule(mod.ID)
	require.NoError(t, err)
	require.Len(t, classes, 2)

	byName := map[string]*Class{}
	for _, c := range classes {
		byName[c.Name] = c
	}
	assert.Equal(t, []string{"m.A", "builtins.object"}, byName["A"].MRO)
	assert.Empty(t, byName["A"].MROError)
	assert.Nil(t, byName["Bad"].MRO)
	assert.Equal(t, "duplicate bases", byName["Bad"].MROError)

	bases, err := s.ClassBases(byName["A"].ID)
	require.NoError(t, err)
	require.Len(t, bases, 1)
	assert.Equal(t, "builtins.object", bases[0].Base)

	found, err := s.ClassesByQualName("m.A")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestSymbolsAndImports(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	mod := insertTestModule(t, s, "m", "/m.py")
	c := insertTestClass(t, s, mod, "C", nil)

	_, err := s.InsertSymbol(&Symbol{ModuleID: mod.ID, Scope: "m", Name: "C", Kind: KindClass, StartLine: 1})
	require.NoError(t, err)
	_, err = s.InsertSymbol(&Symbol{ModuleID: mod.ID, ClassID: &c.ID, Scope: "m.C", Name: "run", Kind: KindMethod, StartLine: 2})
	require.NoError(t, err)
	_, err = s.InsertImport(&Import{ModuleID: mod.ID, Imported: "os.path", Alias: ptr("p"), Line: 1})
	require.NoError(t, err)

	syms, err := s.SymbolsByModule(mod.ID)
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Nil(t, syms[0].ClassID)
	require.NotNil(t, syms[1].ClassID)
	assert.Equal(t, c.ID, *syms[1].ClassID)

	members, err := s.SymbolsByClass(c.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "run", members[0].Name)

	named, err := s.SymbolsByName("run")
	require.NoError(t, err)
	assert.Len(t, named, 1)

	imps, err := s.ImportsByModule(mod.ID)
	require.NoError(t, err)
	require.Len(t, imps, 1)
	assert.Equal(t, "os.path", imps[0].Imported)
	require.NotNil(t, imps[0].Alias)
	assert.Equal(t, "p", *imps[0].Alias)
}

func TestDeleteModuleData(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	keep := insertTestModule(t, s, "keep", "/keep.py")
	drop := insertTestModule(t, s, "drop", "/drop.py")

	for _, mod := range []*Module{keep, drop} {
		c := insertTestClass(t, s, mod, "C", []string{mod.Name + ".C"}, "builtins.object")
		_, err := s.InsertSymbol(&Symbol{ModuleID: mod.ID, ClassID: &c.ID, Name: "f", Kind: KindMethod})
		require.NoError(t, err)
		_, err = s.InsertImport(&Import{ModuleID: mod.ID, Imported: "os"})
		require.NoError(t, err)
	}

	require.NoError(t, s.DeleteModuleData(drop.ID))

	classes, err := s.ClassesByModule(drop.ID)
	require.NoError(t, err)
	assert.Empty(t, classes)
	syms, err := s.SymbolsByModule(drop.ID)
	require.NoError(t, err)
	assert.Empty(t, syms)
	imps, err := s.ImportsByModule(drop.ID)
	require.NoError(t, err)
	assert.Empty(t, imps)

	kept, err := s.ClassesByModule(keep.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	require.NoError(t, s.DeleteModule(drop.ID))
	gone, err := s.ModuleByID(drop.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestDependentModules(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	base := insertTestModule(t, s, "base", "/base.py")
	mid := insertTestModule(t, s, "mid", "/mid.py")
	top := insertTestModule(t, s, "top", "/top.py")
	insertTestModule(t, s, "other", "/other.py")

	for _, edge := range []struct {
		from *Module
		to   string
	}{{mid, "base"}, {top, "mid"}, {base, "os"}} {
		_, err := s.InsertImport(&Import{ModuleID: edge.from.ID, Imported: edge.to})
		require.NoError(t, err)
	}

	deps, err := s.DependentModules([]string{"base"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mid", "top"}, deps)

	direct, err := s.ModulesImporting("base")
	require.NoError(t, err)
	assert.Equal(t, []int64{mid.ID}, direct)

	none, err := s.DependentModules(nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSubclasses(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	mod := insertTestModule(t, s, "m", "/m.py")
	insertTestClass(t, s, mod, "A", nil, "builtins.object")
	insertTestClass(t, s, mod, "B", nil, "m.A")
	insertTestClass(t, s, mod, "C", nil, "m.B")
	insertTestClass(t, s, mod, "D", nil, "m.A", "m.C")
	insertTestClass(t, s, mod, "X", nil, "builtins.object")

	subs, err := s.Subclasses("m.A")
	require.NoError(t, err)
	var names []string
	for _, c := range subs {
		names = append(names, c.QualName)
	}
	assert.Equal(t, []string{"m.B", "m.C", "m.D"}, names)
}

func TestMetadata(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, ok, err := s.Metadata("plugins_hash")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetMetadata("plugins_hash", "one"))
	require.NoError(t, s.SetMetadata("plugins_hash", "two"))
	v, ok, err := s.Metadata("plugins_hash")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", v)
}

func TestComputeSignatureHash(t *testing.T) {
	t.Parallel()

	a := ComputeSignatureHash("f", KindFunction, []string{"x", "y=1"}, nil, nil)
	b := ComputeSignatureHash("f", KindFunction, []string{"x", "y=1"}, nil, nil)
	c := ComputeSignatureHash("f", KindFunction, []string{"x"}, nil, nil)
	d := ComputeSignatureHash("f", KindFunction, []string{"x", "y=1"}, nil, []string{"staticmethod"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Len(t, a, 16)
	assert.Equal(t, "00000000000000ff", ContentHash(255))
}
