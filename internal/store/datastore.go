package store

// DataStore receives the rows summary extraction produces. *Store writes
// them straight to SQLite; *BatchedStore holds them for CommitBatch.
type DataStore interface {
	// Inserts return the assigned ID.
	InsertClass(c *Class) (int64, error)
	InsertClassBase(b *ClassBase) (int64, error)
	InsertSymbol(sym *Symbol) (int64, error)
	InsertImport(imp *Import) (int64, error)

	// SymbolsByModule sees rows not yet committed.
	SymbolsByModule(moduleID int64) ([]*Symbol, error)
}

var _ DataStore = (*Store)(nil)
