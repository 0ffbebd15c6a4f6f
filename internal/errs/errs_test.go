package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesAncestors(t *testing.T) {
	t.Parallel()

	err := New(ErrDuplicateBases, "duplicate base %q", "B")
	assert.ErrorIs(t, err, ErrDuplicateBases)
	assert.ErrorIs(t, err, ErrMro)
	assert.ErrorIs(t, err, ErrResolve)
	assert.ErrorIs(t, err, ErrAstroid)
	assert.NotErrorIs(t, err, ErrInconsistentMro)
	assert.NotErrorIs(t, err, ErrSuper)
}

func TestErrorIsThroughWrapping(t *testing.T) {
	t.Parallel()

	inner := New(ErrUnresolvableName, "name %q deleted", "x")
	wrapped := fmt.Errorf("pyrite: infer: %w", inner)

	assert.ErrorIs(t, wrapped, ErrUnresolvableName)
	assert.ErrorIs(t, wrapped, ErrNameInference)
	assert.ErrorIs(t, wrapped, ErrInference)
	assert.Equal(t, ErrUnresolvableName, KindOf(wrapped))
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := Wrap(ErrBuilding, cause, "transform %s", "extender")
	assert.Equal(t, "AstroidBuildingError: transform extender: boom", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := New(ErrSuper, "")
	assert.Equal(t, "SuperError", bare.Error())
}

func TestIsStructural(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind *Kind
		want bool
	}{
		{ErrInconsistentMro, true},
		{ErrSuperArgumentType, true},
		{ErrSyntax, true},
		{ErrNameInference, false},
		{ErrBinaryOperation, false},
		{ErrNoDefault, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.Name(), func(t *testing.T) {
			assert.Equal(t, tt.want, IsStructural(New(tt.kind, "x")))
		})
	}
}

func TestIsStructuralUsesOutermostKind(t *testing.T) {
	t.Parallel()

	cause := New(ErrImport, "no module named x")
	assert.True(t, IsStructural(fmt.Errorf("pyrite: %w", cause)))
	assert.False(t, IsStructural(Wrap(ErrInference, cause, "import failed")))
	assert.False(t, IsStructural(errors.New("plain")))
}

func TestKindTree(t *testing.T) {
	t.Parallel()

	require.NotNil(t, ErrImport.Parent())
	assert.Equal(t, ErrBuilding, ErrImport.Parent())
	assert.True(t, ErrNotFound.IsA(ErrAttributeInference))
	assert.Nil(t, ErrAstroid.Parent())
	assert.Nil(t, KindOf(errors.New("plain")))
}
