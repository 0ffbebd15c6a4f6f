package store

import (
	"database/sql"
	"fmt"
)

// --- Module operations ---

func (s *Store) InsertModule(m *Module) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO modules (name, path, hash, package, synthetic, version, line_count, built_at, last_indexed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Name, m.Path, m.Hash, m.Package, m.Synthetic, m.Version, m.LineCount, m.BuiltAt, m.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert module: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id
	return id, nil
}

// UpdateModule rewrites the build metadata of an existing module row.
func (s *Store) UpdateModule(m *Module) error {
	_, err := s.db.Exec(
		`UPDATE modules SET hash = ?, package = ?, synthetic = ?, version = ?, line_count = ?,
			built_at = ?, last_indexed = ? WHERE id = ?`,
		m.Hash, m.Package, m.Synthetic, m.Version, m.LineCount, m.BuiltAt, m.LastIndexed, m.ID,
	)
	if err != nil {
		return fmt.Errorf("update module: %w", err)
	}
	return nil
}

// ModuleCols is the column list for module queries, exported for use by QueryBuilder.
const ModuleCols = `id, name, path, hash, package, synthetic, version, line_count, built_at, last_indexed`

// ScanModuleRow scans a single row selected with ModuleCols.
func ScanModuleRow(scanner interface{ Scan(...any) error }) (*Module, error) {
	m := &Module{}
	var hash sql.NullString
	err := scanner.Scan(&m.ID, &m.Name, &m.Path, &hash, &m.Package, &m.Synthetic,
		&m.Version, &m.LineCount, &m.BuiltAt, &m.LastIndexed)
	if err != nil {
		return nil, err
	}
	m.Hash = hash.String
	return m, nil
}

func (s *Store) queryModules(query string, args ...any) ([]*Module, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var mods []*Module
	for rows.Next() {
		m, err := ScanModuleRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		mods = append(mods, m)
	}
	return mods, rows.Err()
}

func (s *Store) queryModule(what, query string, args ...any) (*Module, error) {
	m, err := ScanModuleRow(s.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return m, nil
}

// ModuleByName returns the module of that name, or nil. When several
// paths provide the name, the first indexed wins.
func (s *Store) ModuleByName(name string) (*Module, error) {
	return s.queryModule("module by name", "SELECT "+ModuleCols+" FROM modules WHERE name = ? ORDER BY id LIMIT 1", name)
}

func (s *Store) ModuleByPath(path string) (*Module, error) {
	return s.queryModule("module by path", "SELECT "+ModuleCols+" FROM modules WHERE path = ? AND path != ''", path)
}

func (s *Store) ModuleByID(id int64) (*Module, error) {
	return s.queryModule("module by id", "SELECT "+ModuleCols+" FROM modules WHERE id = ?", id)
}

func (s *Store) Modules() ([]*Module, error) {
	mods, err := s.queryModules("SELECT " + ModuleCols + " FROM modules ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("modules: %w", err)
	}
	return mods, nil
}

// --- Class operations ---

func (s *Store) InsertClass(c *Class) (int64, error) {
	id, err := insertClassTx(s.db, c)
	if err != nil {
		return 0, err
	}
	c.ID = id
	return id, nil
}

// ClassCols is the column list for class queries, exported for use by QueryBuilder.
const ClassCols = `id, module_id, name, qualname, start_line, start_col, end_line, mro, mro_error`

// ScanClassRow scans a single row selected with ClassCols and decodes the MRO.
func ScanClassRow(scanner interface{ Scan(...any) error }) (*Class, error) {
	c := &Class{}
	var (
		blob   []byte
		mroErr sql.NullString
	)
	err := scanner.Scan(&c.ID, &c.ModuleID, &c.Name, &c.QualName, &c.StartLine, &c.StartCol, &c.EndLine, &blob, &mroErr)
	if err != nil {
		return nil, err
	}
	if c.MRO, err = decodeMRO(blob); err != nil {
		return nil, err
	}
	c.MROError = mroErr.String
	return c, nil
}

func (s *Store) queryClasses(query string, args ...any) ([]*Class, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var classes []*Class
	for rows.Next() {
		c, err := ScanClassRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

func (s *Store) ClassesByModule(moduleID int64) ([]*Class, error) {
	return s.queryClasses("SELECT "+ClassCols+" FROM classes WHERE module_id = ? ORDER BY start_line, id", moduleID)
}

func (s *Store) ClassesByQualName(qualname string) ([]*Class, error) {
	return s.queryClasses("SELECT "+ClassCols+" FROM classes WHERE qualname = ? ORDER BY id", qualname)
}

func (s *Store) InsertClassBase(b *ClassBase) (int64, error) {
	id, err := insertClassBaseTx(s.db, b)
	if err != nil {
		return 0, err
	}
	b.ID = id
	return id, nil
}

// ClassBases returns the declared bases of a class in order.
func (s *Store) ClassBases(classID int64) ([]*ClassBase, error) {
	rows, err := s.db.Query("SELECT id, class_id, ordinal, base FROM class_bases WHERE class_id = ? ORDER BY ordinal", classID)
	if err != nil {
		return nil, fmt.Errorf("class bases: %w", err)
	}
	defer rows.Close()
	var bases []*ClassBase
	for rows.Next() {
		b := &ClassBase{}
		if err := rows.Scan(&b.ID, &b.ClassID, &b.Ordinal, &b.Base); err != nil {
			return nil, fmt.Errorf("scan class base: %w", err)
		}
		bases = append(bases, b)
	}
	return bases, rows.Err()
}

// --- Symbol operations ---

func (s *Store) InsertSymbol(sym *Symbol) (int64, error) {
	id, err := insertSymbolTx(s.db, sym)
	if err != nil {
		return 0, err
	}
	sym.ID = id
	return id, nil
}

// SymbolCols is the column list for symbol queries, exported for use by QueryBuilder.
const SymbolCols = `id, module_id, class_id, scope, name, kind, signature_hash, start_line, start_col, end_line`

// ScanSymbolRow scans a single row selected with SymbolCols.
func ScanSymbolRow(scanner interface{ Scan(...any) error }) (*Symbol, error) {
	sym := &Symbol{}
	var hash sql.NullString
	err := scanner.Scan(&sym.ID, &sym.ModuleID, &sym.ClassID, &sym.Scope, &sym.Name, &sym.Kind,
		&hash, &sym.StartLine, &sym.StartCol, &sym.EndLine)
	if err != nil {
		return nil, err
	}
	sym.SignatureHash = hash.String
	return sym, nil
}

func (s *Store) querySymbols(query string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var symbols []*Symbol
	for rows.Next() {
		sym, err := ScanSymbolRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *Store) SymbolsByModule(moduleID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE module_id = ? ORDER BY start_line, id", moduleID)
}

func (s *Store) SymbolsByName(name string) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE name = ?", name)
}

func (s *Store) SymbolsByClass(classID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE class_id = ? ORDER BY start_line, id", classID)
}

// --- Import operations ---

func (s *Store) InsertImport(imp *Import) (int64, error) {
	id, err := insertImportTx(s.db, imp)
	if err != nil {
		return 0, err
	}
	imp.ID = id
	return id, nil
}

func (s *Store) ImportsByModule(moduleID int64) ([]*Import, error) {
	rows, err := s.db.Query("SELECT id, module_id, imported, alias, line FROM imports WHERE module_id = ? ORDER BY line, id", moduleID)
	if err != nil {
		return nil, fmt.Errorf("imports by module: %w", err)
	}
	defer rows.Close()
	var imps []*Import
	for rows.Next() {
		imp := &Import{}
		if err := rows.Scan(&imp.ID, &imp.ModuleID, &imp.Imported, &imp.Alias, &imp.Line); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		imps = append(imps, imp)
	}
	return imps, rows.Err()
}
