package main_test

import (
	"database/sql"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// buildBinary compiles the pyrite binary into t.TempDir().
func buildBinary(t *testing.T) string {
	t.Helper()
	binName := "pyrite"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	bin := filepath.Join(t.TempDir(), binName)
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Dir = filepath.Join(projectRoot(t), "cmd", "pyrite")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(out))
	return bin
}

// projectRoot walks up from this file to the directory holding go.mod.
func projectRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed")
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, parent, dir, "could not find project root")
		dir = parent
	}
}

// createPythonFixture writes a small package under a fake repo root.
func createPythonFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	files := map[string]string{
		"zoo/__init__.py": "",
		"zoo/base.py":     "class Animal:\n    legs = 4\n",
		"zoo/birds.py":    "from zoo.base import Animal\n\nclass Bird(Animal):\n    legs = 2\n\nclass Parrot(Bird):\n    pass\n\nn = Parrot().legs\n",
	}
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func run(t *testing.T, bin, dir string, args ...string) []byte {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if ee, ok := err.(*exec.ExitError); ok {
		t.Fatalf("pyrite %v: %v\n%s", args, err, ee.Stderr)
	}
	require.NoError(t, err)
	return out
}

func TestCLI_IndexQueryInfer(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the binary")
	}
	bin := buildBinary(t)
	dir := createPythonFixture(t)

	run(t, bin, dir, "index", ".")
	dbPath := filepath.Join(dir, ".pyrite", "index.db")
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var modules int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM modules").Scan(&modules))
	assert.Equal(t, 3, modules)

	out := run(t, bin, dir, "query", "class", "zoo.birds.Parrot")
	assert.Equal(t,
		[]any{"zoo.birds.Parrot", "zoo.birds.Bird", "zoo.base.Animal", "builtins.object"},
		gjson.GetBytes(out, "results.mro").Value())

	out = run(t, bin, dir, "query", "subclasses", "zoo.base.Animal", "--select", "results.#.qualname")
	assert.JSONEq(t, `["zoo.birds.Bird", "zoo.birds.Parrot"]`, string(out))

	out = run(t, bin, dir, "infer", filepath.Join(dir, "zoo", "birds.py"), "9", "13")
	assert.Equal(t, "2", gjson.GetBytes(out, "results.values.0.value").String())
	assert.Equal(t, "zoo.birds", gjson.GetBytes(out, "results.build.module").String())
	_, err = uuid.Parse(gjson.GetBytes(out, "results.build.id").String())
	assert.NoError(t, err)

	out = run(t, bin, dir, "mro", filepath.Join(dir, "zoo", "birds.py"), "Parrot", "--format", "text")
	assert.Equal(t, "zoo.birds.Parrot -> zoo.birds.Bird -> zoo.base.Animal -> builtins.object\n", string(out))

	// A second run finds nothing changed.
	cmd := exec.Command(bin, "index", ".")
	cmd.Dir = dir
	stderr, err := cmd.CombinedOutput()
	require.NoError(t, err)
	assert.Contains(t, string(stderr), "0 indexed, 3 unchanged")
}
