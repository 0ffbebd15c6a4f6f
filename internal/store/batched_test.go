package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_SymbolsByModule_MergesWithDatabase(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	mod := insertTestModule(t, s, "m", "/m.py")

	// A symbol from a previous indexing run.
	_, err := s.InsertSymbol(&Symbol{ModuleID: mod.ID, Name: "Existing", Kind: KindFunction})
	require.NoError(t, err)

	batch := NewBatchedStore(s)
	id, err := batch.InsertSymbol(&Symbol{ModuleID: mod.ID, Name: "New", Kind: KindClass})
	require.NoError(t, err)
	assert.Negative(t, id, "batched IDs should be negative")
	_, err = batch.InsertSymbol(&Symbol{ModuleID: mod.ID + 100, Name: "Elsewhere", Kind: KindClass})
	require.NoError(t, err)

	syms, err := batch.SymbolsByModule(mod.ID)
	require.NoError(t, err)
	require.Len(t, syms, 2)
	names := []string{syms[0].Name, syms[1].Name}
	assert.Contains(t, names, "Existing")
	assert.Contains(t, names, "New")
}

func TestCommitBatch_RemapsClassIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	mod := insertTestModule(t, s, "m", "/m.py")

	batch := NewBatchedStore(s)
	c := &Class{ModuleID: mod.ID, Name: "C", QualName: "m.C", MRO: []string{"m.C", "builtins.object"}}
	classID, err := batch.InsertClass(c)
	require.NoError(t, err)
	_, err = batch.InsertClassBase(&ClassBase{ClassID: classID, Base: "builtins.object"})
	require.NoError(t, err)
	_, err = batch.InsertSymbol(&Symbol{ModuleID: mod.ID, ClassID: &classID, Scope: "m.C", Name: "run", Kind: KindMethod})
	require.NoError(t, err)
	_, err = batch.InsertImport(&Import{ModuleID: mod.ID, Imported: "os"})
	require.NoError(t, err)
	assert.Equal(t, 4, batch.Len())

	require.NoError(t, s.CommitBatch(batch))

	classes, err := s.ClassesByModule(mod.ID)
	require.NoError(t, err)
	require.Len(t, classes, 1)
	realID := classes[0].ID
	assert.Positive(t, realID)
	assert.Equal(t, []string{"m.C", "builtins.object"}, classes[0].MRO)

	members, err := s.SymbolsByClass(realID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "run", members[0].Name)

	bases, err := s.ClassBases(realID)
	require.NoError(t, err)
	require.Len(t, bases, 1)

	imps, err := s.ImportsByModule(mod.ID)
	require.NoError(t, err)
	assert.Len(t, imps, 1)
}

func TestCommitBatch_UnknownFakeIDFails(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	mod := insertTestModule(t, s, "m", "/m.py")

	batch := NewBatchedStore(s)
	_, err := batch.InsertClassBase(&ClassBase{ClassID: -42, Base: "x"})
	require.NoError(t, err)

	err = s.CommitBatch(batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in batch")

	classes, err := s.ClassesByModule(mod.ID)
	require.NoError(t, err)
	assert.Empty(t, classes)
}

func TestBatchedStore_ConcurrentInserts(t *testing.T) {
	t.Parallel()
	batch := NewBatchedStore(nil)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_, _ = batch.InsertSymbol(&Symbol{ModuleID: int64(i), Name: "s", Kind: KindVariable})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, batch.Len())
	seen := map[int64]bool{}
	for _, sym := range batch.Symbols {
		assert.False(t, seen[sym.ID], "duplicate fake id %d", sym.ID)
		seen[sym.ID] = true
	}
	syms, err := batch.SymbolsByModule(3)
	require.NoError(t, err)
	assert.Len(t, syms, 50)
}
