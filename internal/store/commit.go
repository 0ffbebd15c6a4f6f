package store

import (
	"database/sql"
	"fmt"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// CommitBatch inserts all buffered rows of a BatchedStore within a single
// transaction. Fake (negative) IDs are remapped to real ones, and class
// references inside the batch are rewritten through the mapping.
//
// Insert order respects FK dependencies:
//  1. Classes (depend on module_id only, which is already real)
//  2. ClassBases (depend on class_id)
//  3. Symbols (depend on module_id, class_id)
//  4. Imports (depend on module_id only)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)
	remap := func(id int64) (int64, error) {
		if id >= 0 {
			return id, nil
		}
		realID, ok := fakeToReal[id]
		if !ok {
			return 0, fmt.Errorf("id %d not in batch", id)
		}
		return realID, nil
	}

	// 1. Classes
	for _, c := range batch.Classes {
		realID, err := insertClassTx(tx, &c)
		if err != nil {
			return fmt.Errorf("commit batch: class %q: %w", c.QualName, err)
		}
		fakeToReal[c.ID] = realID
	}

	// 2. ClassBases
	for _, b := range batch.ClassBases {
		if b.ClassID, err = remap(b.ClassID); err != nil {
			return fmt.Errorf("commit batch: base %q: %w", b.Base, err)
		}
		if _, err := insertClassBaseTx(tx, &b); err != nil {
			return fmt.Errorf("commit batch: base %q: %w", b.Base, err)
		}
	}

	// 3. Symbols
	for _, sym := range batch.Symbols {
		if sym.ClassID != nil {
			realID, err := remap(*sym.ClassID)
			if err != nil {
				return fmt.Errorf("commit batch: symbol %q: %w", sym.Name, err)
			}
			sym.ClassID = &realID
		}
		realID, err := insertSymbolTx(tx, &sym)
		if err != nil {
			return fmt.Errorf("commit batch: symbol %q: %w", sym.Name, err)
		}
		fakeToReal[sym.ID] = realID
	}

	// 4. Imports
	for _, imp := range batch.Imports {
		if _, err := insertImportTx(tx, &imp); err != nil {
			return fmt.Errorf("commit batch: import %q: %w", imp.Imported, err)
		}
	}

	return tx.Commit()
}

func lastID(res sql.Result, err error, what string) (int64, error) {
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", what, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func insertClassTx(x execer, c *Class) (int64, error) {
	blob, err := encodeMRO(c.MRO)
	if err != nil {
		return 0, fmt.Errorf("insert class: %w", err)
	}
	res, err := x.Exec(
		`INSERT INTO classes (module_id, name, qualname, start_line, start_col, end_line, mro, mro_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ModuleID, c.Name, c.QualName, c.StartLine, c.StartCol, c.EndLine, blob, c.MROError,
	)
	return lastID(res, err, "class")
}

func insertClassBaseTx(x execer, b *ClassBase) (int64, error) {
	res, err := x.Exec(
		"INSERT INTO class_bases (class_id, ordinal, base) VALUES (?, ?, ?)",
		b.ClassID, b.Ordinal, b.Base,
	)
	return lastID(res, err, "class base")
}

func insertSymbolTx(x execer, sym *Symbol) (int64, error) {
	res, err := x.Exec(
		`INSERT INTO symbols (module_id, class_id, scope, name, kind, signature_hash, start_line, start_col, end_line)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.ModuleID, sym.ClassID, sym.Scope, sym.Name, sym.Kind, sym.SignatureHash,
		sym.StartLine, sym.StartCol, sym.EndLine,
	)
	return lastID(res, err, "symbol")
}

func insertImportTx(x execer, imp *Import) (int64, error) {
	res, err := x.Exec(
		"INSERT INTO imports (module_id, imported, alias, line) VALUES (?, ?, ?, ?)",
		imp.ModuleID, imp.Imported, imp.Alias, imp.Line,
	)
	return lastID(res, err, "import")
}
