package builtins

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceDeclaresCoreClasses(t *testing.T) {
	t.Parallel()

	src := string(Source())
	for _, decl := range []string{
		"class object:",
		"class type:",
		"class int:",
		"class bool(int):",
		"class str:",
		"class NoneType:",
		"class function:",
		"class generator:",
		"def len(obj):",
	} {
		assert.Contains(t, src, decl)
	}
	// int must precede bool so bool's base resolves to an earlier binding.
	assert.Less(t, strings.Index(src, "class int:"), strings.Index(src, "class bool(int):"))
}

func TestSourceReturnsCopy(t *testing.T) {
	t.Parallel()

	a := Source()
	a[0] = 'X'
	assert.NotEqual(t, a[0], Source()[0])
}
