package store

import "sync"

// BatchedStore collects one module's summary rows during the parallel phase
// of indexing. Rows get negative IDs, which CommitBatch maps to real ones;
// a class base or member symbol refers to its class by that fake ID.
// All methods are safe for concurrent use.
type BatchedStore struct {
	store *Store
	mu    sync.Mutex

	Classes    []Class
	ClassBases []ClassBase
	Symbols    []Symbol
	Imports    []Import

	nextFakeID int64
}

var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore backed by s for read queries.
// s may be nil when nothing needs reading back.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{
		store:      s,
		nextFakeID: -1,
	}
}

// buffer assigns the next fake ID under the lock and hands it to add, which
// stamps the row and appends it.
func (b *BatchedStore) buffer(add func(id int64)) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextFakeID
	b.nextFakeID--
	add(id)
	return id
}

func (b *BatchedStore) InsertClass(c *Class) (int64, error) {
	return b.buffer(func(id int64) {
		c.ID = id
		b.Classes = append(b.Classes, *c)
	}), nil
}

func (b *BatchedStore) InsertClassBase(cb *ClassBase) (int64, error) {
	return b.buffer(func(id int64) {
		cb.ID = id
		b.ClassBases = append(b.ClassBases, *cb)
	}), nil
}

func (b *BatchedStore) InsertSymbol(sym *Symbol) (int64, error) {
	return b.buffer(func(id int64) {
		sym.ID = id
		b.Symbols = append(b.Symbols, *sym)
	}), nil
}

func (b *BatchedStore) InsertImport(imp *Import) (int64, error) {
	return b.buffer(func(id int64) {
		imp.ID = id
		b.Imports = append(b.Imports, *imp)
	}), nil
}

// SymbolsByModule returns the committed symbols of the module followed by
// the ones still buffered.
func (b *BatchedStore) SymbolsByModule(moduleID int64) ([]*Symbol, error) {
	var out []*Symbol
	if b.store != nil {
		dbSyms, err := b.store.SymbolsByModule(moduleID)
		if err != nil {
			return nil, err
		}
		out = dbSyms
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Symbols {
		if b.Symbols[i].ModuleID == moduleID {
			out = append(out, &b.Symbols[i])
		}
	}
	return out, nil
}

// Len returns the number of buffered rows.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Classes) + len(b.ClassBases) + len(b.Symbols) + len(b.Imports)
}
