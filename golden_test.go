package pyrite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/pyrite/internal/nodes"
)

// Golden test format.
type goldenFile struct {
	MRO       map[string][]string `json:"mro,omitempty"`
	MROErrors []string            `json:"mro_errors,omitempty"`
	Infer     []goldenInfer       `json:"infer,omitempty"`
}

type goldenInfer struct {
	File   string   `json:"file"`
	Line   int      `json:"line"`
	Col    int      `json:"col"`
	Values []string `json:"values"`
}

// TestGolden indexes every testdata/golden/{case}/src tree and checks the
// recorded MROs and the values inferred at the listed positions.
func TestGolden(t *testing.T) {
	cases, err := os.ReadDir(filepath.Join("testdata", "golden"))
	if err != nil {
		t.Skip("no golden testdata")
	}
	for _, c := range cases {
		if !c.IsDir() {
			continue
		}
		dir := filepath.Join("testdata", "golden", c.Name())
		t.Run(c.Name(), func(t *testing.T) {
			t.Parallel()
			runGoldenTest(t, filepath.Join(dir, "src"), filepath.Join(dir, "golden.json"))
		})
	}
}

func runGoldenTest(t *testing.T, srcDir, goldenPath string) {
	t.Helper()
	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	var golden goldenFile
	require.NoError(t, json.Unmarshal(data, &golden))

	srcDir, err = filepath.Abs(srcDir)
	require.NoError(t, err)
	e, err := New(
		WithIsolatedManager(),
		WithDatabase(filepath.Join(t.TempDir(), "golden.db")),
		WithSearchPath(srcDir),
	)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	ctx := context.Background()
	_, err = e.IndexDirectory(ctx, srcDir)
	require.NoError(t, err)

	q := e.Query()
	for qualname, want := range golden.MRO {
		got, err := q.ClassMRO(qualname)
		if assert.NoError(t, err, qualname) {
			assert.Equal(t, want, got, qualname)
		}
	}
	for _, qualname := range golden.MROErrors {
		_, err := q.ClassMRO(qualname)
		assert.ErrorIs(t, err, ErrMROUnavailable, qualname)
	}
	for _, in := range golden.Infer {
		vals, err := e.InferAt(ctx, filepath.Join(srcDir, in.File), in.Line, in.Col)
		if assert.NoError(t, err, "%s:%d:%d", in.File, in.Line, in.Col) {
			assert.Equal(t, in.Values, renderValues(vals), "%s:%d:%d", in.File, in.Line, in.Col)
		}
	}
}

// renderValues prints constants by value and instances by class.
func renderValues(vals []Value) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		switch v := v.(type) {
		case *Node:
			if v.Kind() == nodes.Const {
				out = append(out, fmt.Sprint(v.Literal))
				continue
			}
			out = append(out, v.QualName())
		case *Instance:
			out = append(out, "instance:"+v.Class.QualName())
		default:
			out = append(out, v.PyType())
		}
	}
	return out
}
