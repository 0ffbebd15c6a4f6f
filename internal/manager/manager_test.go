package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jward/pyrite/internal/builder"
	"github.com/jward/pyrite/internal/builtins"
	"github.com/jward/pyrite/internal/errs"
	"github.com/jward/pyrite/internal/nodes"
)

// countingBuilder counts builds and can slow them down so concurrent
// callers overlap.
type countingBuilder struct {
	inner *builder.Builder
	delay time.Duration
	count atomic.Int32
}

func (b *countingBuilder) Build(ctx context.Context, src builder.Source) (*nodes.Tree, error) {
	b.count.Add(1)
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	return b.inner.Build(ctx, src)
}

func newCounting(delay time.Duration) *countingBuilder {
	return &countingBuilder{inner: builder.New(nil), delay: delay}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewSharesState(t *testing.T) {
	t.Parallel()

	a, b := New(), New()
	assert.Same(t, a.s, b.s)
	assert.NotSame(t, a.s, NewIsolated().s)
}

func TestGetOrBuildCachesModel(t *testing.T) {
	t.Parallel()

	m := NewIsolated()
	m.RegisterSource("a", "x = 1\n", false)

	first, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "a"})
	require.NoError(t, err)
	second, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "a"})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, xxhash.Sum64String("x = 1\n"), first.SourceHash)
	assert.NotZero(t, first.Version)
	assert.False(t, first.BuiltAt.IsZero())
	assert.Len(t, first.Module.Bindings("x"), 1)

	cached, ok := m.Cached(ModuleIdentity{Name: "a"})
	require.True(t, ok)
	assert.Same(t, first, cached)
	assert.Len(t, m.Models(), 1)
}

func TestImportBuiltins(t *testing.T) {
	t.Parallel()

	m := NewIsolated()
	mod, err := m.Import(builtins.ModuleName)
	require.NoError(t, err)
	assert.NotEmpty(t, mod.Bindings("object"))
}

func TestImportMissingModule(t *testing.T) {
	t.Parallel()

	m := NewIsolated()
	_, err := m.Import("does.not.exist")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrImport))
}

func TestInvalidateNotifiesListeners(t *testing.T) {
	t.Parallel()

	m := NewIsolated()
	m.RegisterSource("a", "x = 1\n", false)
	var evicted []*Model
	m.OnEvict(func(model *Model) { evicted = append(evicted, model) })

	first, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "a"})
	require.NoError(t, err)

	assert.True(t, m.Invalidate(ModuleIdentity{Name: "a"}))
	assert.False(t, m.Invalidate(ModuleIdentity{Name: "a"}))
	require.Len(t, evicted, 1)
	assert.Same(t, first, evicted[0])

	second, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "a"})
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.BuildID, second.BuildID)
	assert.Greater(t, second.Version, first.Version)
}

func TestConcurrentBuildsShareOneBuild(t *testing.T) {
	t.Parallel()

	b := newCounting(50 * time.Millisecond)
	m := NewIsolated(WithBuilder(b))
	m.RegisterSource("slow", "def f():\n    return 1\n", false)

	results := make([]*Model, 16)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			model, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "slow"})
			results[i] = model
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), b.count.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestFailedTransformIsNotCached(t *testing.T) {
	t.Parallel()

	m := NewIsolated()
	m.RegisterSource("a", "x = 1\n", false)
	fail := true
	m.RegisterTransform(Transform{
		Name: "flaky",
		Apply: func(*Model) error {
			if fail {
				return errors.New("boom")
			}
			return nil
		},
	})

	_, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrBuilding))
	_, ok := m.Cached(ModuleIdentity{Name: "a"})
	assert.False(t, ok)

	fail = false
	model, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "a"})
	require.NoError(t, err)
	assert.True(t, model.Transformed)
}

func TestTransformsApplyToLaterBuilds(t *testing.T) {
	t.Parallel()

	m := NewIsolated()
	m.RegisterSource("a", "x = 1\n", false)
	m.RegisterSource("b", "y = 2\n", false)

	cached, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "a"})
	require.NoError(t, err)

	var seen []string
	m.RegisterTransform(Transform{
		Name:      "only-b",
		Predicate: func(model *Model) bool { return model.Identity.Name == "b" },
		Apply: func(model *Model) error {
			seen = append(seen, model.Identity.Name)
			return nil
		},
	})

	again, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "a"})
	require.NoError(t, err)
	assert.Same(t, cached, again)
	assert.False(t, again.Transformed)

	for range 2 {
		_, err = m.GetOrBuild(context.Background(), ModuleIdentity{Name: "b"})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"b"}, seen)
}

func TestNodeTransformRewritesConstants(t *testing.T) {
	t.Parallel()

	m := NewIsolated()
	m.RegisterSource("a", "x = 1\ny = 'keep'\n", false)
	m.RegisterNodeTransform(nodes.Const,
		func(n *nodes.Node) bool { return n.Literal == int64(1) },
		func(n *nodes.Node) *nodes.Node {
			repl := n.Tree().New(nodes.Const, n.Pos)
			repl.Literal = int64(42)
			return repl
		})

	model, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "a"})
	require.NoError(t, err)
	assert.True(t, model.Transformed)

	x := model.Module.Bindings("x")
	require.Len(t, x, 1)
	assert.Equal(t, int64(42), x[0].Parent().Value().Literal)

	y := model.Module.Bindings("y")
	require.Len(t, y, 1)
	assert.Equal(t, "keep", y[0].Parent().Value().Literal)
}

func TestOnEvictCancel(t *testing.T) {
	t.Parallel()

	m := NewIsolated()
	m.RegisterSource("a", "x = 1\n", false)

	var kept, dropped int
	m.OnEvict(func(*Model) { kept++ })
	cancel := m.OnEvict(func(*Model) { dropped++ })

	_, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "a"})
	require.NoError(t, err)
	require.True(t, m.Invalidate(ModuleIdentity{Name: "a"}))
	assert.Equal(t, 1, kept)
	assert.Equal(t, 1, dropped)

	cancel()
	cancel()
	_, err = m.GetOrBuild(context.Background(), ModuleIdentity{Name: "a"})
	require.NoError(t, err)
	require.True(t, m.Invalidate(ModuleIdentity{Name: "a"}))
	assert.Equal(t, 2, kept)
	assert.Equal(t, 1, dropped)
}

func TestModuleExtender(t *testing.T) {
	t.Parallel()

	m := NewIsolated()
	m.RegisterSource("x", "a = 1\n", false)
	m.RegisterSource("y", "a = 1\n", false)

	before, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "x"})
	require.NoError(t, err)
	assert.Empty(t, before.Module.Bindings("foo"))

	m.RegisterModuleExtender("x", "def foo():\n    return 1\n")

	after, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "x"})
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	foo := after.Module.Bindings("foo")
	require.Len(t, foo, 1)
	assert.Equal(t, nodes.FunctionDef, foo[0].Kind())
	assert.Same(t, after.Module, foo[0].Parent())
	assert.Len(t, after.Module.Bindings("a"), 1)

	other, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "y"})
	require.NoError(t, err)
	assert.Empty(t, other.Module.Bindings("foo"))
}

func TestModuleExtenderCreatesSyntheticModule(t *testing.T) {
	t.Parallel()

	m := NewIsolated()
	m.RegisterModuleExtender("_ext", "class Hash:\n    pass\n")

	model, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "_ext"})
	require.NoError(t, err)
	assert.True(t, model.Synthetic)
	hash := model.Module.Bindings("Hash")
	require.Len(t, hash, 1)
	assert.Equal(t, nodes.ClassDef, hash[0].Kind())
}

func TestResolveFromSearchPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "__init__.py"), "VERSION = 1\n")
	writeFile(t, filepath.Join(root, "pkg", "mod.py"), "def f():\n    pass\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ns", "inner"), 0o755))

	m := NewIsolated(WithSearchPath(root))
	assert.Equal(t, []string{root}, m.SearchPath())

	pkg, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "pkg"})
	require.NoError(t, err)
	assert.True(t, pkg.Package)
	assert.Equal(t, filepath.Join(root, "pkg", "__init__.py"), pkg.Identity.Path)

	mod, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "pkg.mod"})
	require.NoError(t, err)
	assert.False(t, mod.Package)
	assert.Len(t, mod.Module.Bindings("f"), 1)

	ns, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "ns"})
	require.NoError(t, err)
	assert.True(t, ns.Package)
}

func TestStalenessCheckRebuilds(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, "a.py")
	writeFile(t, path, "x = 1\n")

	m := NewIsolated(WithSearchPath(root), WithStalenessCheck(true))
	first, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "a"})
	require.NoError(t, err)

	writeFile(t, path, "x = 1\ny = 2\n")
	second, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "a"})
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.True(t, first.Stale())
	assert.Len(t, second.Module.Bindings("y"), 1)
}

func TestWatchMarksModelsStale(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, "w.py")
	writeFile(t, path, "x = 1\n")

	m := NewIsolated(WithSearchPath(root))
	model, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "w"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, m.Watch(ctx, root))

	writeFile(t, path, "x = 2\n")
	require.Eventually(t, model.Stale, 5*time.Second, 20*time.Millisecond)

	rebuilt, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "w"})
	require.NoError(t, err)
	assert.NotSame(t, model, rebuilt)
}

func TestResetDropsEverything(t *testing.T) {
	t.Parallel()

	m := NewIsolated()
	m.RegisterSource("a", "x = 1\n", false)
	m.RegisterModuleExtender("b", "y = 1\n")
	_, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: "a"})
	require.NoError(t, err)

	var evicted int
	m.OnEvict(func(*Model) { evicted++ })
	m.Reset()

	assert.Equal(t, 1, evicted)
	assert.Empty(t, m.Models())
	_, err = m.Import("a")
	assert.True(t, errors.Is(err, errs.ErrImport))
	_, err = m.Import("b")
	assert.True(t, errors.Is(err, errs.ErrImport))
	_, err = m.Import(builtins.ModuleName)
	assert.NoError(t, err)
}

func TestModuleName(t *testing.T) {
	t.Parallel()

	root := filepath.Join("src", "proj")
	tests := []struct {
		file string
		want string
	}{
		{file: filepath.Join(root, "a.py"), want: "a"},
		{file: filepath.Join(root, "pkg", "mod.py"), want: "pkg.mod"},
		{file: filepath.Join(root, "pkg", "__init__.py"), want: "pkg"},
		{file: filepath.Join(root, "__init__.py"), want: "proj"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			got, err := ModuleName(root, tt.file)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
